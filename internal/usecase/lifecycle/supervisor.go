package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

const (
	dashboardTopics    = 20
	dashboardDecisions = 20
	defaultDecisions   = 50
)

type TonalityInput struct {
	Trait  string
	Value  string
	Weight float64
}

type Dashboard struct {
	Tonality        []article.TonalityEntry
	Topics          []ports.TopicRank
	RecentDecisions []ports.Evaluation
	Deviations      ports.DeviationStats
}

func (s *Service) enqueueSupervisor(ctx context.Context, articleID uint64, reviewRound uint64) bool {
	if s.deps.Evaluator == nil {
		return false
	}
	return s.enqueueStage(ctx, TaskSupervisor, articleID, s.opts.SupervisorTimeout, func(taskCtx context.Context) error {
		return s.runSupervisor(taskCtx, articleID, reviewRound)
	})
}

// runSupervisor scores the article for one review round. The result is advisory and never moves the article.
func (s *Service) runSupervisor(ctx context.Context, articleID uint64, reviewRound uint64) error {
	logCtx := s.logger(ctx, "supervisor", articleID)

	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return err
	}
	if item.Status != article.StatusReview || item.ReviewRound != reviewRound {
		logging.Debug(logCtx, "evaluation skipped, article moved on", slog.String("status", string(item.Status)))
		return nil
	}

	storeCtx := context.WithoutCancel(ctx)
	evaluation, err := s.evaluate(ctx, item)
	if err != nil {
		logging.Warn(logCtx, "supervisor evaluation failed", slog.Any("err", errs.Loggable(err)))
		s.emit(storeCtx, article.EventSupervisorFailed, articleID, map[string]any{
			"review_round": reviewRound,
			"error":        err.Error(),
		})
		return err
	}

	unlock := s.locks.Lock(articleID)
	defer unlock()

	current, err := s.deps.Articles.GetArticle(storeCtx, articleID)
	if err != nil {
		return err
	}
	if current.Status != article.StatusReview || current.ReviewRound != reviewRound {
		logging.Info(logCtx, "stale evaluation discarded", slog.Uint64("review_round", reviewRound))
		return nil
	}

	stored, err := s.deps.Articles.SaveEvaluation(storeCtx, evaluation)
	if err != nil {
		return err
	}
	logging.Info(logCtx, "article evaluated",
		slog.Int("score", stored.Score),
		slog.String("recommendation", string(stored.Recommendation)),
	)
	s.emit(storeCtx, article.EventSupervisorEvaluated, articleID, map[string]any{
		"evaluation_id":  stored.EvaluationID,
		"review_round":   stored.ReviewRound,
		"score":          stored.Score,
		"recommendation": string(stored.Recommendation),
	})
	return nil
}

func (s *Service) evaluate(ctx context.Context, item ports.Article) (ports.Evaluation, error) {
	if s.deps.Evaluator == nil {
		return ports.Evaluation{}, article.Unavailablef("no supervisor evaluator configured")
	}

	var profile []article.TonalityEntry
	if s.deps.Tonality != nil {
		entries, err := s.deps.Tonality.ListTonality(ctx)
		if err != nil {
			return ports.Evaluation{}, err
		}
		profile = entries
	}

	result, err := s.deps.Evaluator.Evaluate(ctx, ports.EvaluationRequest{
		ArticleID: item.ArticleID,
		Title:     item.Title,
		Lead:      item.Lead,
		Body:      item.Body,
		Category:  item.Category,
		Tonality:  article.TonalityContext(profile),
	})
	if err != nil {
		return ports.Evaluation{}, err
	}

	return ports.Evaluation{
		ArticleID:      item.ArticleID,
		ReviewRound:    item.ReviewRound,
		Score:          article.ClampScore(result.Score),
		Recommendation: result.Recommendation,
		Reasoning:      result.Reasoning,
		TonalityTags:   article.NormalizeTags(result.TonalityTags),
		Details:        result.Details,
		Improvements:   result.Improvements,
		CreatedAt:      s.timestamp(),
	}, nil
}

// TriggerEvaluation re-runs the supervisor for the current review round.
func (s *Service) TriggerEvaluation(ctx context.Context, articleID uint64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.deps.Evaluator == nil {
		return article.Unavailablef("no supervisor evaluator configured")
	}

	item, err := s.deps.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return err
	}
	if item.Body == "" {
		return errNoContent
	}
	if item.Status != article.StatusReview {
		return article.InvalidStatef("supervisor evaluates articles in review, article is %s", item.Status)
	}
	if !s.enqueueSupervisor(ctx, articleID, item.ReviewRound) {
		return errs.Wrap(ErrQueueFull, "enqueue evaluation")
	}
	return nil
}

func (s *Service) LatestEvaluation(ctx context.Context, articleID uint64) (ports.Evaluation, error) {
	if err := s.check(ctx); err != nil {
		return ports.Evaluation{}, err
	}
	return s.deps.Articles.LatestEvaluation(ctx, articleID)
}

func (s *Service) ListDecisions(ctx context.Context, limit int, offset int) ([]ports.Evaluation, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultDecisions
	}
	if offset < 0 {
		return nil, article.Validationf("offset must not be negative")
	}
	return s.deps.Articles.ListDecisions(ctx, limit, offset)
}

func (s *Service) ListTonality(ctx context.Context) ([]article.TonalityEntry, error) {
	if err := s.checkSupervisorStore(ctx); err != nil {
		return nil, err
	}
	return s.deps.Tonality.ListTonality(ctx)
}

// SaveTonalityEntry adds a trait or overwrites value and weight of an existing one.
func (s *Service) SaveTonalityEntry(ctx context.Context, input TonalityInput) (article.TonalityEntry, error) {
	if err := s.checkSupervisorStore(ctx); err != nil {
		return article.TonalityEntry{}, err
	}
	trait := strings.TrimSpace(input.Trait)
	if trait == "" {
		return article.TonalityEntry{}, article.Validationf("trait is required")
	}
	if strings.TrimSpace(input.Value) == "" {
		return article.TonalityEntry{}, article.Validationf("value is required")
	}
	if err := article.ValidateWeight(input.Weight); err != nil {
		return article.TonalityEntry{}, err
	}
	return s.deps.Tonality.UpsertTonality(ctx, article.TonalityEntry{
		Trait:  trait,
		Value:  input.Value,
		Weight: input.Weight,
	})
}

func (s *Service) DeleteTonalityEntry(ctx context.Context, entryID uint64) error {
	if err := s.checkSupervisorStore(ctx); err != nil {
		return err
	}
	return s.deps.Tonality.DeleteTonality(ctx, entryID)
}

func (s *Service) TopicRanking(ctx context.Context, limit int) ([]ports.TopicRank, error) {
	if err := s.checkSupervisorStore(ctx); err != nil {
		return nil, err
	}
	return s.deps.ReadModel.TopicRanking(ctx, limit)
}

func (s *Service) DeviationStats(ctx context.Context) (ports.DeviationStats, error) {
	if err := s.checkSupervisorStore(ctx); err != nil {
		return ports.DeviationStats{}, err
	}
	return s.deps.ReadModel.DeviationStats(ctx)
}

func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	if err := s.checkSupervisorStore(ctx); err != nil {
		return Dashboard{}, err
	}

	tonality, err := s.deps.Tonality.ListTonality(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	topics, err := s.deps.ReadModel.TopicRanking(ctx, dashboardTopics)
	if err != nil {
		return Dashboard{}, err
	}
	decisions, err := s.deps.Articles.ListDecisions(ctx, dashboardDecisions, 0)
	if err != nil {
		return Dashboard{}, err
	}
	deviations, err := s.deps.ReadModel.DeviationStats(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Tonality:        tonality,
		Topics:          topics,
		RecentDecisions: decisions,
		Deviations:      deviations,
	}, nil
}

func (s *Service) checkSupervisorStore(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.deps.Tonality == nil || s.deps.ReadModel == nil {
		return errors.New("supervisor repository is required")
	}
	return nil
}

// recordDecision attaches the editor decision to the evaluation of the current review round, if any.
// Must run inside the caller's transaction.
func (s *Service) recordDecision(ctx context.Context, articleID uint64, reviewRound uint64, decision article.Decision, feedback string) (*ports.Evaluation, error) {
	evaluation, err := s.deps.Articles.LatestEvaluation(ctx, articleID)
	if errors.Is(err, ports.ErrEvaluationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if evaluation.ReviewRound != reviewRound {
		return nil, nil
	}

	deviation := article.IsDeviation(evaluation.Recommendation, decision)
	now := s.timestamp()
	if err := s.deps.Articles.RecordDecision(ctx, ports.DecisionRecord{
		EvaluationID: evaluation.EvaluationID,
		Decision:     decision,
		Feedback:     feedback,
		Deviation:    deviation,
		DecidedAt:    now,
	}); err != nil {
		return nil, err
	}
	evaluation.EditorDecision = decision
	evaluation.EditorFeedback = feedback
	evaluation.Deviation = deviation
	evaluation.DecidedAt = &now
	return &evaluation, nil
}
