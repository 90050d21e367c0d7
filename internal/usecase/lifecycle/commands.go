package lifecycle

import (
	"context"
	"log/slog"
	"strings"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/ports"
)

// ArticleEdit carries editor changes to a draft in review.
type ArticleEdit = ports.ContentPatch

// commandDef describes one editor command as a single edge plus its idempotent target.
type commandDef struct {
	name     string
	event    string
	from     []article.Status
	to       article.Status
	noop     article.Status
	decision article.Decision
}

var (
	approveCommand = commandDef{name: "approve", event: article.EventApproved, from: []article.Status{article.StatusReview}, to: article.StatusPublished, noop: article.StatusPublished, decision: article.DecisionApprove}
	reviseCommand  = commandDef{name: "revise", event: article.EventRevised, from: []article.Status{article.StatusReview}, to: article.StatusGenerating, decision: article.DecisionRevise}
	rejectCommand  = commandDef{name: "reject", event: article.EventRejected, from: []article.Status{article.StatusReview}, to: article.StatusRejected, noop: article.StatusRejected, decision: article.DecisionReject}
	cancelCommand  = commandDef{name: "cancel", event: article.EventCancelled, from: []article.Status{article.StatusGenerating, article.StatusPaused}, to: article.StatusCancelled, noop: article.StatusCancelled}
	retryCommand   = commandDef{name: "retry", event: article.EventRetry, from: []article.Status{article.StatusFailed, article.StatusTimeout, article.StatusCancelled}, to: article.StatusGenerating, noop: article.StatusGenerating}
	pauseCommand   = commandDef{name: "pause", event: article.EventPaused, from: []article.Status{article.StatusGenerating}, to: article.StatusPaused, noop: article.StatusPaused}
	resumeCommand  = commandDef{name: "resume", event: article.EventUpdated, from: []article.Status{article.StatusPaused}, to: article.StatusGenerating, noop: article.StatusGenerating}
)

func (c commandDef) source(status article.Status) bool {
	for _, from := range c.from {
		if from == status {
			return true
		}
	}
	return false
}

// Approve publishes an article in review. Approving a published article returns it unchanged.
func (s *Service) Approve(ctx context.Context, articleID uint64, feedback string) (ports.Article, error) {
	updated, changed, err := s.command(ctx, approveCommand, articleID, feedback, func(txCtx context.Context, evaluation *ports.Evaluation) error {
		if evaluation == nil || s.deps.Tonality == nil {
			return nil
		}
		existing, err := s.deps.Tonality.ListTonality(txCtx)
		if err != nil {
			return err
		}
		return s.deps.Tonality.SaveTonality(txCtx, article.LearnFromApproval(existing, evaluation.TonalityTags))
	}, ports.ArticlePatch{ClearDispatch: true})
	if err != nil || !changed {
		return updated, err
	}

	if s.opts.PublishOnApprove && s.deps.Publisher != nil {
		if _, err := s.schedulePublish(ctx, updated, PublishOptions{Status: "draft", UploadImage: true}); err != nil {
			logging.Warn(s.logger(ctx, "approve", articleID), "auto publish not scheduled", slog.String("err_message", err.Error()))
		}
	}
	return updated, nil
}

// Revise sends the draft back to generation with the editor feedback attached.
func (s *Service) Revise(ctx context.Context, articleID uint64, feedback string) (ports.Article, error) {
	feedback = strings.TrimSpace(feedback)
	updated, changed, err := s.command(ctx, reviseCommand, articleID, feedback, nil, ports.ArticlePatch{
		Feedback:                 stringPtr(feedback),
		ClearDispatch:            true,
		IncrementGenerationRound: true,
	})
	if err != nil || !changed {
		return updated, err
	}
	s.dispatch(ctx, updated)
	return updated, nil
}

func (s *Service) Reject(ctx context.Context, articleID uint64, feedback string) (ports.Article, error) {
	updated, changed, err := s.command(ctx, rejectCommand, articleID, strings.TrimSpace(feedback), s.abandonImageJob(articleID), ports.ArticlePatch{ClearDispatch: true})
	if err != nil || !changed {
		return updated, err
	}
	s.scheduler.CancelArticle(articleID, TaskImage)
	return updated, nil
}

// Cancel stops an article immediately; late worker results are rejected by the status guard.
func (s *Service) Cancel(ctx context.Context, articleID uint64) (ports.Article, error) {
	updated, changed, err := s.command(ctx, cancelCommand, articleID, "", s.abandonImageJob(articleID), ports.ArticlePatch{ClearDispatch: true})
	if err != nil || !changed {
		return updated, err
	}
	s.scheduler.CancelArticle(articleID)
	return updated, nil
}

// abandonImageJob fails the running image job so its result can no longer be applied.
func (s *Service) abandonImageJob(articleID uint64) func(ctx context.Context, _ *ports.Evaluation) error {
	return func(ctx context.Context, _ *ports.Evaluation) error {
		item, err := s.deps.Articles.GetArticle(ctx, articleID)
		if err != nil {
			return err
		}
		if item.Image.Status != article.ImageGenerating || item.Image.JobID == "" {
			return nil
		}
		_, err = s.deps.Articles.FinishImageJob(ctx, ports.ImageJobResult{
			ArticleID: articleID,
			JobID:     item.Image.JobID,
			Status:    article.ImageFailed,
			Error:     "image job abandoned",
			UpdatedAt: s.timestamp(),
		})
		return err
	}
}

// Retry restarts a failed, timed out or cancelled article from generation.
func (s *Service) Retry(ctx context.Context, articleID uint64) (ports.Article, error) {
	updated, changed, err := s.command(ctx, retryCommand, articleID, "", nil, ports.ArticlePatch{
		LastError:                stringPtr(""),
		FailureCause:             stringPtr(""),
		ClearDispatch:            true,
		IncrementGenerationRound: true,
		IncrementRetryCount:      true,
	})
	if err != nil || !changed {
		return updated, err
	}
	s.dispatch(ctx, updated)
	return updated, nil
}

func (s *Service) Pause(ctx context.Context, articleID uint64) (ports.Article, error) {
	updated, changed, err := s.command(ctx, pauseCommand, articleID, "", nil, ports.ArticlePatch{ClearDispatch: true})
	if err != nil || !changed {
		return updated, err
	}
	s.scheduler.CancelArticle(articleID, TaskGeneration)
	return updated, nil
}

func (s *Service) Resume(ctx context.Context, articleID uint64) (ports.Article, error) {
	updated, changed, err := s.command(ctx, resumeCommand, articleID, "", nil, ports.ArticlePatch{
		ClearDispatch:            true,
		IncrementGenerationRound: true,
	})
	if err != nil || !changed {
		return updated, err
	}
	s.dispatch(ctx, updated)
	return updated, nil
}

// command applies one editor command as a compare-and-set. changed is false for idempotent repeats.
func (s *Service) command(
	ctx context.Context,
	def commandDef,
	articleID uint64,
	feedback string,
	inTx func(ctx context.Context, evaluation *ports.Evaluation) error,
	patch ports.ArticlePatch,
) (ports.Article, bool, error) {
	if err := s.check(ctx); err != nil {
		return ports.Article{}, false, err
	}
	logCtx := s.logger(ctx, def.name, articleID)

	unlock := s.locks.Lock(articleID)
	defer unlock()

	current, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return ports.Article{}, false, err
	}
	if def.noop != "" && current.Status == def.noop {
		logging.Debug(logCtx, "command is a no-op", slog.String("status", string(current.Status)))
		return current, false, nil
	}
	if !def.source(current.Status) {
		return ports.Article{}, false, article.InvalidStatef("cannot %s an article in %s", def.name, current.Status)
	}

	var (
		updated    ports.Article
		evaluation *ports.Evaluation
	)
	err = s.withTx(ctx, func(txCtx context.Context) error {
		if def.decision != "" {
			recorded, err := s.recordDecision(txCtx, articleID, current.ReviewRound, def.decision, feedback)
			if err != nil {
				return err
			}
			evaluation = recorded
		}
		if inTx != nil {
			if err := inTx(txCtx, evaluation); err != nil {
				return err
			}
		}

		item, err := s.deps.Articles.Transition(txCtx, ports.TransitionInput{
			ArticleID: articleID,
			From:      current.Status,
			To:        def.to,
			Patch:     patch,
			UpdatedAt: s.timestamp(),
		})
		if err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return ports.Article{}, false, err
	}

	logging.Info(logCtx, "command applied",
		slog.String("from", string(current.Status)),
		slog.String("to", string(updated.Status)),
	)
	extra := map[string]any{}
	if feedback != "" {
		extra["feedback"] = feedback
	}
	if evaluation != nil {
		extra["deviation"] = evaluation.Deviation
		extra["recommendation"] = string(evaluation.Recommendation)
	}
	s.emitTransition(ctx, def.event, current.Status, updated, extra)
	return updated, true, nil
}

// Edit changes draft content while the article waits in review.
func (s *Service) Edit(ctx context.Context, articleID uint64, edit ArticleEdit) (ports.Article, error) {
	if err := s.check(ctx); err != nil {
		return ports.Article{}, err
	}
	if err := validateEdit(edit); err != nil {
		return ports.Article{}, err
	}

	unlock := s.locks.Lock(articleID)
	defer unlock()

	current, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return ports.Article{}, err
	}
	if current.Status != article.StatusReview {
		return ports.Article{}, article.InvalidStatef("articles can be edited in review only, article is %s", current.Status)
	}

	updated, err := s.deps.Articles.UpdateContent(ctx, articleID, article.StatusReview, edit, s.timestamp())
	if err != nil {
		return ports.Article{}, err
	}
	s.emitTransition(ctx, article.EventUpdated, current.Status, updated, map[string]any{"stage": "edit"})
	return updated, nil
}

func validateEdit(edit ArticleEdit) error {
	empty := edit.Title == nil && edit.Lead == nil && edit.Body == nil && edit.Category == nil &&
		edit.SEOTitle == nil && edit.SEODescription == nil && edit.Sources == nil &&
		edit.ImagePrompt == nil && edit.ImageAltText == nil
	if empty {
		return article.Validationf("edit contains no fields")
	}
	if edit.Title != nil && strings.TrimSpace(*edit.Title) == "" {
		return article.Validationf("title must not be empty")
	}
	if edit.Body != nil && strings.TrimSpace(*edit.Body) == "" {
		return article.Validationf("body must not be empty")
	}
	if edit.Category != nil && strings.TrimSpace(*edit.Category) == "" {
		return article.Validationf("category must not be empty")
	}
	return nil
}
