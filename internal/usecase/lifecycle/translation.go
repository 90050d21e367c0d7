package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

type TranslationEdit struct {
	Title *string
	Lead  *string
	Body  *string
}

func (s *Service) enqueueTranslation(ctx context.Context, articleID uint64, language string, round uint64) bool {
	return s.enqueueStage(ctx, TaskTranslation, articleID, s.opts.TranslationTimeout, func(taskCtx context.Context) error {
		return s.runTranslation(taskCtx, articleID, language, round)
	})
}

// translatable reports whether a translation for round may still be written.
func translatable(item ports.Article, round uint64) bool {
	if item.GenerationRound != round {
		return false
	}
	switch item.Status {
	case article.StatusTranslating, article.StatusReview, article.StatusPublished:
		return true
	default:
		return false
	}
}

func (s *Service) runTranslation(ctx context.Context, articleID uint64, language string, round uint64) error {
	logCtx := logging.WithAttrs(s.logger(ctx, "translation", articleID), slog.String("language", language))

	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return err
	}
	if !translatable(item, round) {
		logging.Debug(logCtx, "translation skipped, article moved on", slog.String("status", string(item.Status)))
		return nil
	}
	if s.deps.Translator == nil {
		err := article.Unavailablef("no translator configured")
		s.failTranslation(ctx, item, language, round, err)
		return err
	}

	source := ports.TranslatedContent{Title: item.Title, Lead: item.Lead, Body: item.Body}
	translated, err := s.deps.Translator.Translate(ctx, ports.TranslationRequest{
		SourceLanguage: article.MasterLanguage,
		TargetLanguage: language,
		Content:        source,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		s.failTranslation(ctx, item, language, round, err)
		return err
	}

	storeCtx := context.WithoutCancel(ctx)
	if ok, err := s.storeTranslation(storeCtx, articleID, language, round, translated, article.TranslationDeepLDone); err != nil || !ok {
		return err
	}
	logging.Info(logCtx, "machine translation stored")

	if s.deps.Reviewer != nil {
		reviewed, err := s.deps.Reviewer.ReviewTranslation(ctx, ports.TranslationReview{
			TargetLanguage: language,
			Source:         source,
			Draft:          translated,
		})
		if err != nil {
			logging.Warn(logCtx, "translation review failed, keeping machine translation", slog.Any("err", errs.Loggable(err)))
		} else if _, err := s.storeTranslation(storeCtx, articleID, language, round, reviewed, article.TranslationReviewed); err != nil {
			return err
		}
	}

	return s.advanceTranslating(storeCtx, articleID, round)
}

func (s *Service) storeTranslation(ctx context.Context, articleID uint64, language string, round uint64, content ports.TranslatedContent, status article.TranslationStatus) (bool, error) {
	unlock := s.locks.Lock(articleID)
	defer unlock()

	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return false, err
	}
	if !translatable(item, round) {
		return false, nil
	}

	stored, err := s.deps.Articles.UpsertTranslation(ctx, ports.Translation{
		ArticleID: articleID,
		Language:  language,
		Title:     content.Title,
		Lead:      content.Lead,
		Body:      content.Body,
		Status:    status,
		UpdatedAt: s.timestamp(),
	})
	if err != nil {
		return false, err
	}
	s.emit(ctx, article.EventTranslationUpdated, articleID, map[string]any{
		"language": stored.Language,
		"status":   string(stored.Status),
	})
	return true, nil
}

// advanceTranslating moves translating to review once every requested language is machine translated.
func (s *Service) advanceTranslating(ctx context.Context, articleID uint64, round uint64) error {
	unlock := s.locks.Lock(articleID)

	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		unlock()
		return err
	}
	if item.Status != article.StatusTranslating || item.GenerationRound != round {
		unlock()
		return nil
	}

	statuses, err := s.translationStatuses(ctx, articleID)
	if err != nil {
		unlock()
		return err
	}
	if !article.TranslationsComplete(item.Languages, statuses) {
		unlock()
		return nil
	}

	updated, err := s.deps.Articles.Transition(ctx, ports.TransitionInput{
		ArticleID:       articleID,
		From:            article.StatusTranslating,
		To:              article.StatusReview,
		GenerationRound: uint64Ptr(round),
		Patch:           ports.ArticlePatch{ClearDispatch: true, IncrementReviewRound: true},
		UpdatedAt:       s.timestamp(),
	})
	if errors.Is(err, ports.ErrTransitionConflict) {
		unlock()
		return nil
	}
	if err != nil {
		unlock()
		return err
	}
	s.emitTransition(ctx, article.EventUpdated, article.StatusTranslating, updated, map[string]any{"stage": "translation"})
	unlock()

	s.enqueueSupervisor(ctx, articleID, updated.ReviewRound)
	return nil
}

// failTranslation fails the article only while it waits in translating; later re-translations just log.
func (s *Service) failTranslation(ctx context.Context, item ports.Article, language string, round uint64, cause error) {
	if item.Status == article.StatusTranslating {
		s.failStage(ctx, "translation", item.ArticleID, article.StatusTranslating, uint64Ptr(round), cause)
		return
	}
	logging.Warn(s.logger(ctx, "translation", item.ArticleID), "re-translation failed",
		slog.String("language", language),
		slog.Any("err", errs.Loggable(cause)),
	)
	s.emit(context.WithoutCancel(ctx), article.EventTranslationUpdated, item.ArticleID, map[string]any{
		"language": language,
		"status":   "failed",
		"error":    cause.Error(),
	})
}

func (s *Service) translationStatuses(ctx context.Context, articleID uint64) (map[string]article.TranslationStatus, error) {
	rows, err := s.deps.Articles.ListTranslations(ctx, articleID)
	if err != nil {
		return nil, err
	}
	statuses := make(map[string]article.TranslationStatus, len(rows))
	for _, row := range rows {
		statuses[row.Language] = row.Status
	}
	return statuses, nil
}

// TriggerTranslation (re)starts translation for an explicit subset or every language still missing.
// article.ErrNoOp is returned when nothing is left to translate.
func (s *Service) TriggerTranslation(ctx context.Context, articleID uint64, languages []string) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if err := s.requireFeature(FeatureTranslation); err != nil {
		return nil, err
	}
	if s.deps.Translator == nil {
		return nil, article.Unavailablef("no translator configured")
	}

	unlock := s.locks.Lock(articleID)
	defer unlock()

	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if item.Body == "" {
		return nil, errNoContent
	}
	switch item.Status {
	case article.StatusTranslating, article.StatusReview, article.StatusPublished:
	default:
		return nil, article.InvalidStatef("cannot translate an article in %s", item.Status)
	}

	statuses, err := s.translationStatuses(ctx, articleID)
	if err != nil {
		return nil, err
	}
	targets, err := article.ResolveTranslationTargets(languages, item.Languages, statuses)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	for _, language := range targets {
		if _, ok := statuses[language]; !ok {
			if _, err := s.deps.Articles.UpsertTranslation(ctx, ports.Translation{
				ArticleID: articleID,
				Language:  language,
				Status:    article.TranslationPending,
				UpdatedAt: now,
			}); err != nil {
				return nil, err
			}
		}
		s.enqueueTranslation(ctx, articleID, language, item.GenerationRound)
	}

	logging.Info(s.logger(ctx, "translation", articleID), "translation triggered", slog.Any("languages", targets))
	return targets, nil
}

func (s *Service) ListTranslations(ctx context.Context, articleID uint64) ([]ports.Translation, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if _, err := s.deps.Articles.GetArticle(ctx, articleID); err != nil {
		return nil, err
	}
	return s.deps.Articles.ListTranslations(ctx, articleID)
}

func (s *Service) GetTranslation(ctx context.Context, articleID uint64, language string) (ports.Translation, error) {
	if err := s.check(ctx); err != nil {
		return ports.Translation{}, err
	}
	code, err := article.NormalizeLanguageCode(language)
	if err != nil {
		return ports.Translation{}, err
	}
	return s.deps.Articles.GetTranslation(ctx, articleID, code)
}

// EditTranslation stores reviewer corrections; an edited translation counts as approved.
func (s *Service) EditTranslation(ctx context.Context, articleID uint64, language string, edit TranslationEdit) (ports.Translation, error) {
	return s.updateTranslation(ctx, articleID, language, &edit)
}

func (s *Service) ApproveTranslation(ctx context.Context, articleID uint64, language string) (ports.Translation, error) {
	return s.updateTranslation(ctx, articleID, language, nil)
}

func (s *Service) updateTranslation(ctx context.Context, articleID uint64, language string, edit *TranslationEdit) (ports.Translation, error) {
	if err := s.check(ctx); err != nil {
		return ports.Translation{}, err
	}
	code, err := article.NormalizeLanguageCode(language)
	if err != nil {
		return ports.Translation{}, err
	}

	unlock := s.locks.Lock(articleID)
	defer unlock()

	current, err := s.deps.Articles.GetTranslation(ctx, articleID, code)
	if err != nil {
		return ports.Translation{}, err
	}
	if edit != nil {
		if edit.Title != nil {
			current.Title = *edit.Title
		}
		if edit.Lead != nil {
			current.Lead = *edit.Lead
		}
		if edit.Body != nil {
			current.Body = *edit.Body
		}
	}
	current.Status = article.TranslationApproved
	current.UpdatedAt = s.timestamp()

	stored, err := s.deps.Articles.UpsertTranslation(ctx, current)
	if err != nil {
		return ports.Translation{}, err
	}
	s.emit(ctx, article.EventTranslationUpdated, articleID, map[string]any{
		"language": stored.Language,
		"status":   string(stored.Status),
	})
	return stored, nil
}
