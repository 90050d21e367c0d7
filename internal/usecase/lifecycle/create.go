package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

const maxBulkTopics = 50

type CreateInput = article.CreateInput

// Create stores a new article in generating and hands it to the generation worker.
func (s *Service) Create(ctx context.Context, input CreateInput) (ports.Article, error) {
	if err := s.check(ctx); err != nil {
		return ports.Article{}, err
	}

	normalized, err := article.NormalizeCreate(input)
	if err != nil {
		return ports.Article{}, err
	}

	created, err := s.createNormalized(ctx, normalized)
	if err != nil {
		return ports.Article{}, err
	}
	s.dispatch(ctx, created)
	return created, nil
}

func (s *Service) createNormalized(ctx context.Context, normalized article.NewArticle) (ports.Article, error) {
	now := s.timestamp()
	created, err := s.deps.Articles.CreateArticle(ctx, ports.Article{
		Status:      article.StatusGenerating,
		TriggerType: normalized.TriggerType,
		Category:    normalized.Category,
		Languages:   normalized.Languages,
		TriggerText: normalized.Text,
		TriggerURLs: normalized.URLs,
		ContentHash: normalized.ContentHash,
		Title:       normalized.Title,
		Image: ports.Image{
			Type:   normalized.ImageType,
			Status: article.ImagePending,
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return ports.Article{}, err
	}

	logging.Info(s.logger(ctx, "create", created.ArticleID), "article created",
		slog.String("trigger_type", string(created.TriggerType)),
		slog.String("category", created.Category),
	)
	s.emit(ctx, article.EventCreated, created.ArticleID, map[string]any{
		"status": string(created.Status),
		"title":  created.Title,
	})
	return created, nil
}

type BulkInput struct {
	Topics    []string
	Category  string
	Languages map[string]bool
	ImageType string
}

type BulkSkip struct {
	Topic     string
	ArticleID uint64
	Reason    string
}

type BulkResult struct {
	Created []ports.Article
	Skipped []BulkSkip
}

// BulkCreate creates one prompt article per topic and skips topics already in flight.
func (s *Service) BulkCreate(ctx context.Context, input BulkInput) (BulkResult, error) {
	if err := s.check(ctx); err != nil {
		return BulkResult{}, err
	}
	if err := s.requireFeature(FeatureBulkInput); err != nil {
		return BulkResult{}, err
	}

	topics := make([]string, 0, len(input.Topics))
	for _, topic := range input.Topics {
		if topic = strings.TrimSpace(topic); topic != "" {
			topics = append(topics, topic)
		}
	}
	if len(topics) == 0 || len(topics) > maxBulkTopics {
		return BulkResult{}, article.Validationf("bulk input needs 1 to %d topics, got %d", maxBulkTopics, len(topics))
	}

	normalized := make([]article.NewArticle, 0, len(topics))
	for _, topic := range topics {
		item, err := article.NormalizeCreate(article.CreateInput{
			TriggerType: string(article.TriggerPrompt),
			Text:        topic,
			Category:    input.Category,
			Languages:   input.Languages,
			ImageType:   input.ImageType,
		})
		if err != nil {
			return BulkResult{}, errs.Wrapf(err, "topic %q", topic)
		}
		normalized = append(normalized, item)
	}

	result := BulkResult{}
	seen := make(map[string]uint64, len(normalized))
	for _, item := range normalized {
		if id, ok := seen[item.ContentHash]; ok {
			result.Skipped = append(result.Skipped, BulkSkip{Topic: item.Text, ArticleID: id, Reason: "duplicate topic in request"})
			continue
		}
		existing, found, err := s.deps.Articles.FindActiveByContentHash(ctx, item.ContentHash)
		if err != nil {
			return result, err
		}
		if found {
			seen[item.ContentHash] = existing.ArticleID
			result.Skipped = append(result.Skipped, BulkSkip{Topic: item.Text, ArticleID: existing.ArticleID, Reason: "active article with the same topic exists"})
			continue
		}

		created, err := s.createNormalized(ctx, item)
		if err != nil {
			return result, err
		}
		seen[item.ContentHash] = created.ArticleID
		result.Created = append(result.Created, created)
	}

	for _, created := range result.Created {
		s.dispatch(ctx, created)
	}
	return result, nil
}

// dispatch claims the article's current generation round and enqueues the generation task.
// A claim that cannot be enqueued is released so the dispatcher picks it up later.
func (s *Service) dispatch(ctx context.Context, item ports.Article) bool {
	if item.Status != article.StatusGenerating || s.opts.DeferDispatch {
		return false
	}
	logCtx := s.logger(ctx, "dispatch", item.ArticleID)

	now := s.now()
	claimed, err := s.deps.Articles.ClaimDispatch(ctx, item.ArticleID, item.GenerationRound,
		article.FormatTime(now), article.FormatTime(now.Add(s.opts.GenerationTimeout)))
	if err != nil {
		logging.Error(logCtx, "claim dispatch failed", slog.Any("err", errs.Loggable(err)))
		return false
	}
	if !claimed {
		return false
	}

	round := item.GenerationRound
	task := newTask(TaskGeneration, item.ArticleID, s.opts.GenerationTimeout, func(taskCtx context.Context) error {
		return s.runGeneration(taskCtx, item.ArticleID, round)
	})
	if err := s.enqueue(task); err != nil {
		logging.Warn(logCtx, "enqueue generation failed, releasing dispatch", slog.Any("err", errs.Loggable(err)))
		if releaseErr := s.deps.Articles.ReleaseDispatch(context.WithoutCancel(ctx), item.ArticleID, round); releaseErr != nil && !errors.Is(releaseErr, ports.ErrArticleNotFound) {
			logging.Error(logCtx, "release dispatch failed", slog.Any("err", errs.Loggable(releaseErr)))
		}
		return false
	}
	return true
}

// enqueueStage logs instead of failing: stage results are recoverable through explicit retries.
func (s *Service) enqueueStage(ctx context.Context, kind TaskKind, articleID uint64, timeout time.Duration, run func(ctx context.Context) error) bool {
	if err := s.enqueue(newTask(kind, articleID, timeout, run)); err != nil {
		logging.Warn(s.logger(ctx, string(kind), articleID), "enqueue stage failed", slog.Any("err", errs.Loggable(err)))
		return false
	}
	return true
}
