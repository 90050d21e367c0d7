package lifecycle

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

const (
	wpCheckCacheKey = "publish:wp-check"
	wpCheckCacheTTL = 60 * time.Second

	PublicationPublished = "published"
	PublicationFailed    = "failed"
)

type PublishOptions struct {
	Status      string
	Languages   []string
	UploadImage bool
}

func (o PublishOptions) normalize() (PublishOptions, error) {
	status := strings.ToLower(strings.TrimSpace(o.Status))
	switch status {
	case "":
		status = "draft"
	case "draft", "publish", "pending", "private":
	default:
		return PublishOptions{}, article.Validationf("invalid wp_status %q (draft|publish|pending|private)", o.Status)
	}

	languages := make([]string, 0, len(o.Languages))
	for _, raw := range o.Languages {
		code, err := article.NormalizeLanguageCode(raw)
		if err != nil {
			return PublishOptions{}, err
		}
		languages = append(languages, code)
	}
	return PublishOptions{Status: status, Languages: languages, UploadImage: o.UploadImage}, nil
}

func (o PublishOptions) includes(language string) bool {
	if len(o.Languages) == 0 {
		return true
	}
	for _, code := range o.Languages {
		if code == language {
			return true
		}
	}
	return false
}

// PublishStatus lists the per-language publications of an article.
type PublishStatus struct {
	ArticleID    uint64
	Published    bool
	Publications []ports.Publication
}

// Publish sends an approved article and its translations to the publishing target.
func (s *Service) Publish(ctx context.Context, articleID uint64, options PublishOptions) (PublishOptions, error) {
	if err := s.check(ctx); err != nil {
		return PublishOptions{}, err
	}
	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return PublishOptions{}, err
	}
	return s.schedulePublish(ctx, item, options)
}

func (s *Service) schedulePublish(ctx context.Context, item ports.Article, options PublishOptions) (PublishOptions, error) {
	options, err := options.normalize()
	if err != nil {
		return PublishOptions{}, err
	}
	if item.Status != article.StatusPublished {
		return PublishOptions{}, article.InvalidStatef("only approved articles are published, article is %s", item.Status)
	}
	if item.Body == "" {
		return PublishOptions{}, errNoContent
	}
	if s.deps.Publisher == nil {
		return PublishOptions{}, article.Unavailablef("no publishing target configured")
	}
	status, err := s.WPCheck(ctx)
	if err != nil {
		return PublishOptions{}, err
	}
	if !status.Connected {
		return PublishOptions{}, article.Unavailablef("publishing target not reachable or not configured")
	}

	articleID := item.ArticleID
	if !s.enqueueStage(ctx, TaskPublish, articleID, s.opts.PublishTimeout, func(taskCtx context.Context) error {
		return s.runPublish(taskCtx, articleID, options)
	}) {
		return PublishOptions{}, errs.Wrap(ErrQueueFull, "enqueue publish job")
	}
	return options, nil
}

func (s *Service) runPublish(ctx context.Context, articleID uint64, options PublishOptions) error {
	logCtx := s.logger(ctx, "publish", articleID)
	storeCtx := context.WithoutCancel(ctx)

	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return err
	}
	if item.Status != article.StatusPublished {
		logging.Info(logCtx, "publish skipped", slog.String("status", string(item.Status)))
		return nil
	}

	mediaID := s.uploadFeaturedImage(ctx, item, options)

	meta := map[string]string{}
	if item.SEOTitle != "" {
		meta["_yoast_wpseo_title"] = item.SEOTitle
	}
	if item.SEODescription != "" {
		meta["_yoast_wpseo_metadesc"] = item.SEODescription
	}

	posted := make([]string, 0, 4)
	failed := make([]string, 0)

	if options.includes(article.MasterLanguage) {
		err := s.publishLanguage(ctx, item.ArticleID, article.MasterLanguage, ports.PostInput{
			Title:           item.Title,
			Content:         item.Body,
			Excerpt:         item.Lead,
			Status:          options.Status,
			Language:        article.MasterLanguage,
			FeaturedMediaID: mediaID,
			Meta:            meta,
		})
		if err != nil {
			s.emit(storeCtx, article.EventPublishFailed, articleID, map[string]any{
				"language": article.MasterLanguage,
				"error":    err.Error(),
			})
			return err
		}
		posted = append(posted, article.MasterLanguage)
	}

	translations, err := s.deps.Articles.ListTranslations(ctx, articleID)
	if err != nil {
		return err
	}
	for _, translation := range translations {
		if !options.includes(translation.Language) || strings.TrimSpace(translation.Body) == "" {
			continue
		}
		title := translation.Title
		if title == "" {
			title = item.Title
		}
		if err := s.publishLanguage(ctx, item.ArticleID, translation.Language, ports.PostInput{
			Title:           title,
			Content:         translation.Body,
			Excerpt:         translation.Lead,
			Status:          options.Status,
			Language:        translation.Language,
			FeaturedMediaID: mediaID,
		}); err != nil {
			failed = append(failed, translation.Language)
			continue
		}
		posted = append(posted, translation.Language)
	}

	logging.Info(logCtx, "publish finished", slog.Any("posted", posted), slog.Any("failed", failed))
	if len(failed) > 0 {
		s.emit(storeCtx, article.EventPublishFailed, articleID, map[string]any{"languages": failed})
	}
	s.emit(storeCtx, article.EventPublishComplete, articleID, map[string]any{
		"languages": posted,
		"wp_status": options.Status,
	})
	return nil
}

func (s *Service) publishLanguage(ctx context.Context, articleID uint64, language string, input ports.PostInput) error {
	storeCtx := context.WithoutCancel(ctx)
	logCtx := logging.WithAttrs(s.logger(ctx, "publish", articleID), slog.String("language", language))

	post, err := s.deps.Publisher.CreatePost(ctx, input)
	now := s.timestamp()
	if err != nil {
		logging.Warn(logCtx, "create post failed", slog.Any("err", errs.Loggable(err)))
		if recordErr := s.deps.Articles.UpsertPublication(storeCtx, ports.Publication{
			ArticleID:   articleID,
			Language:    language,
			WPStatus:    input.Status,
			State:       PublicationFailed,
			Error:       err.Error(),
			PublishedAt: now,
		}); recordErr != nil {
			logging.Error(logCtx, "record publication failure", slog.Any("err", errs.Loggable(recordErr)))
		}
		return err
	}

	if err := s.deps.Articles.UpsertPublication(storeCtx, ports.Publication{
		ArticleID:   articleID,
		Language:    language,
		WPPostID:    post.ID,
		URL:         post.URL,
		WPStatus:    input.Status,
		State:       PublicationPublished,
		PublishedAt: now,
	}); err != nil {
		return err
	}
	s.emit(storeCtx, article.EventPublished, articleID, map[string]any{
		"language":   language,
		"wp_post_id": post.ID,
		"url":        post.URL,
	})
	return nil
}

// uploadFeaturedImage returns 0 when there is nothing to upload or the upload failed.
func (s *Service) uploadFeaturedImage(ctx context.Context, item ports.Article, options PublishOptions) int64 {
	if !options.UploadImage || item.Image.URL == "" || s.deps.Images == nil {
		return 0
	}
	logCtx := s.logger(ctx, "publish", item.ArticleID)

	data, filename, err := s.deps.Images.Load(ctx, item.Image.URL)
	if err != nil {
		logging.Warn(logCtx, "load featured image failed", slog.Any("err", errs.Loggable(err)))
		return 0
	}
	alt := item.Image.AltText
	if alt == "" {
		alt = item.Title
	}
	media, err := s.deps.Publisher.UploadMedia(ctx, filename, data, alt)
	if err != nil {
		logging.Warn(logCtx, "upload featured image failed", slog.Any("err", errs.Loggable(err)))
		return 0
	}
	return media.ID
}

func (s *Service) PublishStatus(ctx context.Context, articleID uint64) (PublishStatus, error) {
	if err := s.check(ctx); err != nil {
		return PublishStatus{}, err
	}
	if _, err := s.deps.Articles.GetArticle(ctx, articleID); err != nil {
		return PublishStatus{}, err
	}
	publications, err := s.deps.Articles.ListPublications(ctx, articleID)
	if err != nil {
		return PublishStatus{}, err
	}

	published := false
	for _, publication := range publications {
		if publication.State == PublicationPublished {
			published = true
			break
		}
	}
	return PublishStatus{ArticleID: articleID, Published: published, Publications: publications}, nil
}

// WPCheck reports the publishing target connection, cached for a minute.
func (s *Service) WPCheck(ctx context.Context) (ports.PublisherStatus, error) {
	if err := s.check(ctx); err != nil {
		return ports.PublisherStatus{}, err
	}
	if s.deps.Publisher == nil {
		return ports.PublisherStatus{Connected: false}, nil
	}

	if s.deps.Cache != nil {
		if raw, found, err := s.deps.Cache.Get(ctx, wpCheckCacheKey); err == nil && found {
			var cached ports.PublisherStatus
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	status, err := s.deps.Publisher.Check(ctx)
	if err != nil {
		logging.Warn(logging.WithAttrs(ctx, slog.String("component", "lifecycle.publish")), "publishing target check failed", slog.Any("err", errs.Loggable(err)))
		status.Connected = false
	}

	if s.deps.Cache != nil {
		if raw, err := json.Marshal(status); err == nil {
			if err := s.deps.Cache.Set(ctx, wpCheckCacheKey, string(raw), wpCheckCacheTTL); err != nil {
				logging.Warn(ctx, "cache publishing target status", slog.Any("err", errs.Loggable(err)))
			}
		}
	}
	return status, nil
}
