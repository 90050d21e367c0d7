package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

const backendCacheTTL = 30 * time.Second

type ImageTrigger struct {
	Prompt    string
	ImageType string
}

type ImageJob struct {
	ArticleID uint64
	JobID     string
	Backend   string
	Type      article.ImageType
}

// ImageState is the image view of an article.
type ImageState struct {
	ArticleID uint64
	Status    article.ImageStatus
	Type      article.ImageType
	Prompt    string
	URL       string
	AltText   string
	Error     string
}

// TriggerImage starts a new image job. A job already running for the article is superseded.
func (s *Service) TriggerImage(ctx context.Context, articleID uint64, trigger ImageTrigger) (ImageJob, error) {
	if err := s.check(ctx); err != nil {
		return ImageJob{}, err
	}
	if err := s.requireFeature(FeatureImage); err != nil {
		return ImageJob{}, err
	}
	imageType, err := article.ParseImageType(trigger.ImageType)
	if err != nil {
		return ImageJob{}, err
	}

	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return ImageJob{}, err
	}
	prompt := strings.TrimSpace(trigger.Prompt)
	if prompt == "" {
		prompt = item.Image.Prompt
	}
	if strings.TrimSpace(prompt) == "" {
		return ImageJob{}, article.Validationf("prompt is required")
	}
	return s.startImage(ctx, item, imageType, prompt)
}

func (s *Service) startImage(ctx context.Context, item ports.Article, imageType article.ImageType, prompt string) (ImageJob, error) {
	if item.Status == article.StatusCancelled || item.Status == article.StatusRejected {
		return ImageJob{}, article.InvalidStatef("no images for an article in %s", item.Status)
	}
	if imageType == "" {
		imageType = article.DefaultImageType
	}

	backend := s.firstAvailableBackend(ctx)
	if backend == "" {
		return ImageJob{}, article.Unavailablef("no image backend available")
	}

	unlock := s.locks.Lock(item.ArticleID)
	defer unlock()

	s.scheduler.CancelArticle(item.ArticleID, TaskImage)

	job := ImageJob{
		ArticleID: item.ArticleID,
		JobID:     uuid.NewString(),
		Backend:   backend,
		Type:      imageType,
	}
	if err := s.deps.Articles.StartImageJob(ctx, ports.ImageJobStart{
		ArticleID: item.ArticleID,
		JobID:     job.JobID,
		Type:      imageType,
		Prompt:    prompt,
		UpdatedAt: s.timestamp(),
	}); err != nil {
		return ImageJob{}, err
	}
	s.emit(ctx, article.EventImageGenerating, item.ArticleID, map[string]any{
		"job_id":     job.JobID,
		"image_type": string(imageType),
		"backend":    backend,
	})

	request := ports.ImageRequest{ArticleID: item.ArticleID, Prompt: prompt, Type: imageType}
	if !s.enqueueStage(ctx, TaskImage, item.ArticleID, s.opts.ImageTimeout, func(taskCtx context.Context) error {
		return s.runImage(taskCtx, job.JobID, request)
	}) {
		s.finishImage(context.WithoutCancel(ctx), job.JobID, request.ArticleID, "", ErrQueueFull)
		return ImageJob{}, errs.Wrap(ErrQueueFull, "enqueue image job")
	}
	return job, nil
}

// runImage tries the backends in order and stores the first image produced.
func (s *Service) runImage(ctx context.Context, jobID string, req ports.ImageRequest) error {
	logCtx := logging.WithAttrs(s.logger(ctx, "image", req.ArticleID), slog.String("job_id", jobID))

	active, err := s.imageJobActive(ctx, req.ArticleID, jobID)
	if err != nil {
		return err
	}
	if !active {
		logging.Info(logCtx, "image job no longer active, skipped")
		return nil
	}

	var (
		data    []byte
		lastErr error
	)
	for _, backend := range s.deps.ImageBackends {
		if !backend.Available(ctx) {
			continue
		}
		out, err := backend.Generate(ctx, req)
		if err != nil {
			lastErr = err
			logging.Warn(logCtx, "image backend failed", slog.String("backend", backend.Name()), slog.Any("err", errs.Loggable(err)))
			if errors.Is(err, context.Canceled) {
				break
			}
			continue
		}
		logging.Info(logCtx, "image generated", slog.String("backend", backend.Name()), slog.Int("bytes", len(out)))
		data = out
		break
	}

	storeCtx := context.WithoutCancel(ctx)
	if data == nil {
		if lastErr == nil {
			lastErr = article.Unavailablef("no image backend available")
		}
		s.finishImage(storeCtx, jobID, req.ArticleID, "", lastErr)
		return lastErr
	}
	if s.deps.Images == nil {
		err := errors.New("image store is required")
		s.finishImage(storeCtx, jobID, req.ArticleID, "", err)
		return err
	}

	url, err := s.deps.Images.Save(storeCtx, req.ArticleID, data)
	if err != nil {
		s.finishImage(storeCtx, jobID, req.ArticleID, "", err)
		return err
	}
	s.finishImage(storeCtx, jobID, req.ArticleID, url, nil)
	return nil
}

// imageJobActive reports whether jobID is still the running image job of a live article.
func (s *Service) imageJobActive(ctx context.Context, articleID uint64, jobID string) (bool, error) {
	unlock := s.locks.Lock(articleID)
	defer unlock()

	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return false, err
	}
	if item.Status == article.StatusCancelled || item.Status == article.StatusRejected {
		return false, nil
	}
	return item.Image.JobID == jobID && item.Image.Status == article.ImageGenerating, nil
}

// finishImage records the job outcome; a superseded job changes nothing and emits nothing.
func (s *Service) finishImage(ctx context.Context, jobID string, articleID uint64, url string, cause error) {
	logCtx := logging.WithAttrs(s.logger(ctx, "image", articleID), slog.String("job_id", jobID))

	unlock := s.locks.Lock(articleID)
	defer unlock()

	result := ports.ImageJobResult{
		ArticleID: articleID,
		JobID:     jobID,
		Status:    article.ImageReady,
		URL:       url,
		UpdatedAt: s.timestamp(),
	}
	if cause != nil {
		result.Status = article.ImageFailed
		result.Error = cause.Error()
	}

	applied, err := s.deps.Articles.FinishImageJob(ctx, result)
	if err != nil {
		logging.Error(logCtx, "record image result", slog.Any("err", errs.Loggable(err)))
		return
	}
	if !applied {
		logging.Info(logCtx, "superseded image result discarded")
		return
	}

	if cause != nil {
		s.emit(ctx, article.EventImageFailed, articleID, map[string]any{"job_id": jobID, "error": result.Error})
		return
	}
	s.emit(ctx, article.EventImageReady, articleID, map[string]any{"job_id": jobID, "url": url})
}

func (s *Service) ImageStatus(ctx context.Context, articleID uint64) (ImageState, error) {
	if err := s.check(ctx); err != nil {
		return ImageState{}, err
	}
	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return ImageState{}, err
	}
	return ImageState{
		ArticleID: item.ArticleID,
		Status:    article.ResolveImageStatus(item.Image.Status, item.Image.Prompt, item.Image.URL),
		Type:      item.Image.Type,
		Prompt:    item.Image.Prompt,
		URL:       item.Image.URL,
		AltText:   item.Image.AltText,
		Error:     item.Image.Error,
	}, nil
}

// ImageBackends reports backend availability, cached briefly because probes hit the network.
func (s *Service) ImageBackends(ctx context.Context) (map[string]bool, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(s.deps.ImageBackends))
	for _, backend := range s.deps.ImageBackends {
		out[backend.Name()] = s.backendAvailable(ctx, backend)
	}
	return out, nil
}

func (s *Service) firstAvailableBackend(ctx context.Context) string {
	for _, backend := range s.deps.ImageBackends {
		if s.backendAvailable(ctx, backend) {
			return backend.Name()
		}
	}
	return ""
}

func (s *Service) backendAvailable(ctx context.Context, backend ports.ImageBackend) bool {
	key := "image:backend:" + backend.Name()
	if s.deps.Cache != nil {
		if value, found, err := s.deps.Cache.Get(ctx, key); err == nil && found {
			return value == "1"
		}
	}

	available := backend.Available(ctx)
	if s.deps.Cache != nil {
		value := "0"
		if available {
			value = "1"
		}
		if err := s.deps.Cache.Set(ctx, key, value, backendCacheTTL); err != nil {
			logging.Warn(ctx, "cache backend availability", slog.String("backend", backend.Name()), slog.Any("err", errs.Loggable(err)))
		}
	}
	return available
}
