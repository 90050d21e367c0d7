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

const contextFeedItems = 5

// GenerationCallback is a generation result delivered from outside the process.
// Round zero is accepted only while the article is in its first round.
type GenerationCallback struct {
	ArticleID uint64
	Round     uint64
	Failed    bool
	Error     string
	Content   ports.GeneratedContent
}

// runGeneration is the generation worker body for one round.
func (s *Service) runGeneration(ctx context.Context, articleID uint64, round uint64) error {
	logCtx := s.logger(ctx, "generation", articleID)

	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return err
	}
	if item.Status != article.StatusGenerating || item.GenerationRound != round {
		logging.Debug(logCtx, "generation skipped, article moved on",
			slog.String("status", string(item.Status)),
			slog.Uint64("round", round),
		)
		return nil
	}

	if s.deps.Generator == nil {
		err := article.Unavailablef("no content generator configured")
		s.failGeneration(ctx, articleID, round, err)
		return err
	}

	req := ports.GenerationRequest{
		ArticleID:    item.ArticleID,
		Round:        round,
		TriggerType:  item.TriggerType,
		Text:         item.TriggerText,
		URLs:         item.TriggerURLs,
		Category:     item.Category,
		Feedback:     item.Feedback,
		PreviousBody: item.Body,
		Context:      s.contextDocuments(ctx, item),
	}

	content, err := s.deps.Generator.Generate(ctx, req)
	if errors.Is(err, ports.ErrGenerationDeferred) {
		logging.Info(logCtx, "generation handed off, waiting for callback", slog.Uint64("round", round))
		return nil
	}
	if errors.Is(err, context.Canceled) {
		// cancelled, paused or shutting down; a still-generating round is picked up again by the dispatcher
		if releaseErr := s.deps.Articles.ReleaseDispatch(context.WithoutCancel(ctx), articleID, round); releaseErr != nil {
			logging.Warn(logCtx, "release dispatch failed", slog.Any("err", errs.Loggable(releaseErr)))
		}
		return err
	}
	if err != nil {
		s.failGeneration(ctx, articleID, round, err)
		return err
	}
	return s.completeGeneration(ctx, articleID, round, content)
}

// contextDocuments gathers source material for url and rss triggers. Fetch failures are logged and skipped.
func (s *Service) contextDocuments(ctx context.Context, item ports.Article) []ports.ContextDocument {
	logCtx := s.logger(ctx, "generation", item.ArticleID)

	docs := make([]ports.ContextDocument, 0, len(item.TriggerURLs))
	switch item.TriggerType {
	case article.TriggerURL:
		if s.deps.Pages == nil {
			return nil
		}
		for _, url := range item.TriggerURLs {
			page, err := s.deps.Pages.Extract(ctx, url)
			if err != nil {
				logging.Warn(logCtx, "extract page failed", slog.String("url", url), slog.Any("err", errs.Loggable(err)))
				continue
			}
			docs = append(docs, ports.ContextDocument{Title: page.Title, URL: page.URL, Text: page.Text})
		}
	case article.TriggerRSS:
		if s.deps.Feeds == nil {
			return nil
		}
		for _, url := range item.TriggerURLs {
			feed, err := s.deps.Feeds.ParseURL(ctx, url, contextFeedItems)
			if err != nil {
				logging.Warn(logCtx, "parse feed failed", slog.String("url", url), slog.Any("err", errs.Loggable(err)))
				continue
			}
			for _, entry := range feed.Items {
				docs = append(docs, ports.ContextDocument{Title: entry.Title, URL: entry.Link, Text: entry.Summary})
			}
		}
	}
	return docs
}

// completeGeneration applies a generation result with a compare-and-set on (generating, round).
// A lost race means the result is stale and is dropped without an event.
func (s *Service) completeGeneration(ctx context.Context, articleID uint64, round uint64, content ports.GeneratedContent) error {
	if strings.TrimSpace(content.Title) == "" || strings.TrimSpace(content.Body) == "" {
		err := article.Providerf("generator returned an empty title or body")
		s.failGeneration(ctx, articleID, round, err)
		return err
	}

	storeCtx := context.WithoutCancel(ctx)
	logCtx := s.logger(ctx, "generation", articleID)

	updated, targets, applied, err := s.applyGeneration(storeCtx, articleID, round, content)
	if err != nil {
		return err
	}
	if !applied {
		logging.Info(logCtx, "stale generation result discarded", slog.Uint64("round", round))
		return nil
	}

	logging.Info(logCtx, "generation completed",
		slog.Uint64("round", round),
		slog.String("status", string(updated.Status)),
		slog.Int("translations", len(targets)),
	)

	switch updated.Status {
	case article.StatusTranslating:
		for _, language := range targets {
			s.enqueueTranslation(storeCtx, updated.ArticleID, language, round)
		}
	case article.StatusReview:
		s.enqueueSupervisor(storeCtx, updated.ArticleID, updated.ReviewRound)
	}

	if strings.TrimSpace(content.ImagePrompt) != "" && s.FeatureEnabled(FeatureImage) && len(s.deps.ImageBackends) > 0 {
		if _, err := s.startImage(storeCtx, updated, updated.Image.Type, content.ImagePrompt); err != nil {
			logging.Warn(logCtx, "auto image trigger failed", slog.Any("err", errs.Loggable(err)))
		}
	}
	if s.FeatureEnabled(FeatureCrosslinking) && s.deps.Embedder != nil {
		s.enqueueEmbedding(storeCtx, updated.ArticleID)
	}
	return nil
}

func (s *Service) applyGeneration(ctx context.Context, articleID uint64, round uint64, content ports.GeneratedContent) (ports.Article, []string, bool, error) {
	unlock := s.locks.Lock(articleID)
	defer unlock()

	current, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return ports.Article{}, nil, false, err
	}
	if current.Status != article.StatusGenerating || current.GenerationRound != round {
		return ports.Article{}, nil, false, nil
	}

	targets := article.TranslationTargets(current.Languages)
	if len(targets) > 0 && (!s.FeatureEnabled(FeatureTranslation) || s.deps.Translator == nil) {
		logging.Warn(s.logger(ctx, "generation", articleID), "requested translations skipped",
			slog.Any("languages", targets),
			slog.Bool("feature_enabled", s.FeatureEnabled(FeatureTranslation)),
			slog.Bool("translator_configured", s.deps.Translator != nil),
		)
		targets = nil
	}
	to := article.StatusReview
	var deadline *string
	if len(targets) > 0 {
		to = article.StatusTranslating
		// each language runs as its own task with its own budget
		deadline = stringPtr(article.FormatTime(s.now().Add(s.opts.TranslationTimeout * time.Duration(len(targets)))))
	}

	now := s.timestamp()
	var updated ports.Article
	err = s.withTx(ctx, func(txCtx context.Context) error {
		item, err := s.deps.Articles.Transition(txCtx, ports.TransitionInput{
			ArticleID:       articleID,
			From:            article.StatusGenerating,
			To:              to,
			GenerationRound: uint64Ptr(round),
			Patch: ports.ArticlePatch{
				ContentPatch:         generatedPatch(content),
				LastError:            stringPtr(""),
				FailureCause:         stringPtr(""),
				ClearDispatch:        true,
				TimeoutAt:            deadline,
				IncrementReviewRound: to == article.StatusReview,
			},
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		for _, language := range targets {
			if _, err := s.deps.Articles.UpsertTranslation(txCtx, ports.Translation{
				ArticleID: articleID,
				Language:  language,
				Status:    article.TranslationPending,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
		}
		updated = item
		return nil
	})
	if errors.Is(err, ports.ErrTransitionConflict) {
		return ports.Article{}, nil, false, nil
	}
	if err != nil {
		return ports.Article{}, nil, false, err
	}

	s.emitTransition(ctx, article.EventUpdated, article.StatusGenerating, updated, map[string]any{"stage": "generation"})
	return updated, targets, true, nil
}

func generatedPatch(content ports.GeneratedContent) ports.ContentPatch {
	sources := content.Sources
	if sources == nil {
		sources = []article.Source{}
	}
	patch := ports.ContentPatch{
		Title:          stringPtr(strings.TrimSpace(content.Title)),
		Lead:           stringPtr(strings.TrimSpace(content.Lead)),
		Body:           stringPtr(content.Body),
		SEOTitle:       stringPtr(content.SEOTitle),
		SEODescription: stringPtr(content.SEODescription),
		Sources:        &sources,
	}
	if prompt := strings.TrimSpace(content.ImagePrompt); prompt != "" {
		patch.ImagePrompt = stringPtr(prompt)
	}
	if alt := strings.TrimSpace(content.ImageAltText); alt != "" {
		patch.ImageAltText = stringPtr(alt)
	}
	return patch
}

// failGeneration moves the round to failed or timeout. Stale failures are dropped like stale results.
func (s *Service) failGeneration(ctx context.Context, articleID uint64, round uint64, cause error) {
	s.failStage(ctx, "generation", articleID, article.StatusGenerating, uint64Ptr(round), cause)
}

func (s *Service) failStage(ctx context.Context, stage string, articleID uint64, from article.Status, round *uint64, cause error) {
	storeCtx := context.WithoutCancel(ctx)
	logCtx := s.logger(ctx, stage, articleID)

	unlock := s.locks.Lock(articleID)
	defer unlock()

	failure, to := article.ClassifyFailure(cause)
	message := cause.Error()
	updated, err := s.deps.Articles.Transition(storeCtx, ports.TransitionInput{
		ArticleID:       articleID,
		From:            from,
		To:              to,
		GenerationRound: round,
		Patch: ports.ArticlePatch{
			LastError:     stringPtr(message),
			FailureCause:  stringPtr(string(failure)),
			ClearDispatch: true,
		},
		UpdatedAt: s.timestamp(),
	})
	if errors.Is(err, ports.ErrTransitionConflict) {
		logging.Info(logCtx, "stale stage failure discarded", slog.String("err_message", message))
		return
	}
	if err != nil {
		logging.Error(logCtx, "record stage failure", slog.Any("err", errs.Loggable(err)))
		return
	}

	logging.Warn(logCtx, "stage failed",
		slog.String("to", string(to)),
		slog.String("cause", string(failure)),
		slog.String("err_message", message),
	)
	s.emitTransition(storeCtx, article.TransitionEvent(to), from, updated, map[string]any{
		"stage":         stage,
		"failure_cause": string(failure),
		"error":         message,
	})
}

// HandleCallback routes an externally produced generation result through the same
// compare-and-set completion path as the in-process generator.
func (s *Service) HandleCallback(ctx context.Context, callback GenerationCallback) (ports.Article, error) {
	if err := s.check(ctx); err != nil {
		return ports.Article{}, err
	}

	item, err := s.deps.Articles.GetArticle(ctx, callback.ArticleID)
	if err != nil {
		return ports.Article{}, err
	}
	round := callback.Round
	if round == 0 {
		if item.GenerationRound > 1 {
			return ports.Article{}, article.Validationf("generation_round is required once an article has been regenerated")
		}
		round = 1
		logging.Debug(s.logger(ctx, "callback", item.ArticleID), "callback without round applied to first round")
	}

	if callback.Failed {
		message := strings.TrimSpace(callback.Error)
		if message == "" {
			message = "external generator reported a failure"
		}
		s.failGeneration(ctx, item.ArticleID, round, article.Providerf("%s", message))
	} else if err := s.completeGeneration(ctx, item.ArticleID, round, callback.Content); err != nil {
		return ports.Article{}, err
	}
	return s.deps.Articles.GetArticle(ctx, item.ArticleID)
}
