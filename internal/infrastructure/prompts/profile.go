package prompts

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/errs"
)

//go:embed default_prompts.toml
var defaultProfile []byte

const profileVersion = 1

type templateConfig struct {
	Temperature float64 `toml:"temperature"`
	System      string  `toml:"system"`
	User        string  `toml:"user"`
}

type profileFile struct {
	Version   int                       `toml:"version"`
	Templates map[string]templateConfig `toml:"templates"`
}

type compiled struct {
	temperature float64
	system      *template.Template
	user        *template.Template
}

// Rendered is one prompt ready to send to a chat model.
type Rendered struct {
	System      string
	User        string
	Temperature float64
}

// Profile holds the prompt templates. Templates in the profile file
// override the built-in ones by name.
type Profile struct {
	path string

	mu        sync.RWMutex
	templates map[string]compiled
}

func Load(path string) (*Profile, error) {
	p := &Profile{path: strings.TrimSpace(path)}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) Reload() error {
	templates, err := parseProfile(defaultProfile)
	if err != nil {
		return errs.Wrap(err, "parse built-in prompts")
	}

	if p.path != "" {
		raw, err := os.ReadFile(p.path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return errs.Wrapf(err, "read prompt profile %s", p.path)
		default:
			overrides, err := parseProfile(raw)
			if err != nil {
				return errs.Wrapf(err, "parse prompt profile %s", p.path)
			}
			for name, tpl := range overrides {
				templates[name] = tpl
			}
		}
	}

	p.mu.Lock()
	p.templates = templates
	p.mu.Unlock()
	return nil
}

func (p *Profile) Render(name string, data any) (Rendered, error) {
	p.mu.RLock()
	tpl, ok := p.templates[name]
	p.mu.RUnlock()
	if !ok {
		return Rendered{}, fmt.Errorf("prompt template %q not found", name)
	}

	system, err := execute(tpl.system, data)
	if err != nil {
		return Rendered{}, errs.Wrapf(err, "render %s system prompt", name)
	}
	user, err := execute(tpl.user, data)
	if err != nil {
		return Rendered{}, errs.Wrapf(err, "render %s user prompt", name)
	}
	return Rendered{System: system, User: user, Temperature: tpl.temperature}, nil
}

func (p *Profile) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.templates))
	for name := range p.templates {
		names = append(names, name)
	}
	return names
}

// Watch reloads the profile whenever the file changes, until ctx is done.
// A broken edit is logged and the previous templates stay active.
func (p *Profile) Watch(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if p.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create prompt watcher")
	}
	// editors replace files, so watch the directory
	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return errs.Wrapf(err, "watch %s", dir)
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "infrastructure.prompts"), slog.String("path", p.path))
	target := filepath.Clean(p.path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				if err := p.Reload(); err != nil {
					logging.Warn(logCtx, "prompt reload failed, keeping previous templates", slog.Any("err", errs.Loggable(err)))
					continue
				}
				logging.Info(logCtx, "prompt profile reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn(logCtx, "prompt watcher error", slog.Any("err", errs.Loggable(err)))
			}
		}
	}()
	return nil
}

func parseProfile(raw []byte) (map[string]compiled, error) {
	var file profileFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if file.Version != profileVersion {
		return nil, fmt.Errorf("unsupported prompt profile version %d, expected %d", file.Version, profileVersion)
	}

	out := make(map[string]compiled, len(file.Templates))
	for name, cfg := range file.Templates {
		name = strings.TrimSpace(name)
		if strings.TrimSpace(cfg.User) == "" {
			return nil, fmt.Errorf("templates.%s.user is required", name)
		}
		system, err := template.New(name + ".system").Option("missingkey=error").Parse(cfg.System)
		if err != nil {
			return nil, errs.Wrapf(err, "parse templates.%s.system", name)
		}
		user, err := template.New(name + ".user").Option("missingkey=error").Parse(cfg.User)
		if err != nil {
			return nil, errs.Wrapf(err, "parse templates.%s.user", name)
		}
		out[name] = compiled{temperature: cfg.Temperature, system: system, user: user}
	}
	return out, nil
}

func execute(tpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
