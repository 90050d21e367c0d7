package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

// URLPrefix is where the HTTP layer serves stored images.
const URLPrefix = "/static/images/"

// FileStore keeps generated images as PNG files below dir.
type FileStore struct {
	dir string
}

var _ ports.ImageStore = (*FileStore)(nil)

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Save(ctx context.Context, articleID uint64, data []byte) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}
	if len(data) == 0 {
		return "", article.Providerf("image backend returned no data")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errs.Wrap(err, "create image dir")
	}

	name := fmt.Sprintf("%d_%s.png", articleID, uuid.NewString()[:8])
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", errs.Wrapf(err, "write image %s", name)
	}
	return URLPrefix + name, nil
}

// Load resolves a URL produced by Save; anything outside the image dir is not found.
func (s *FileStore) Load(ctx context.Context, imageURL string) ([]byte, string, error) {
	if ctx == nil {
		return nil, "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, "", errs.Wrap(err, "check context")
	}
	if !strings.HasPrefix(imageURL, URLPrefix) {
		return nil, "", fmt.Errorf("image %q: %w", imageURL, article.ErrNotFound)
	}
	name := path.Base(strings.TrimPrefix(imageURL, URLPrefix))
	if name == "." || name == "/" || name == ".." {
		return nil, "", fmt.Errorf("image %q: %w", imageURL, article.ErrNotFound)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("image %q: %w", imageURL, article.ErrNotFound)
		}
		return nil, "", errs.Wrapf(err, "read image %s", name)
	}
	return data, name, nil
}
