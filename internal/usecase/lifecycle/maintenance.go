package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

const sweepBatch = 100

type loops struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Start runs the worker pool, the dispatcher and the watchdog until Stop.
func (s *Service) Start(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "lifecycle.service"))

	s.scheduler.Start(logCtx)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(logCtx))
	s.loops = &loops{cancel: cancel}
	s.runEvery(loopCtx, s.opts.DispatchInterval, func(ctx context.Context) { s.DispatchPending(ctx) })
	s.runEvery(loopCtx, s.opts.WatchdogInterval, func(ctx context.Context) { s.SweepExpired(ctx) })

	logging.Info(logCtx, "lifecycle service started",
		slog.Duration("dispatch_interval", s.opts.DispatchInterval),
		slog.Duration("watchdog_interval", s.opts.WatchdogInterval),
	)
	return nil
}

// Stop ends the background loops and cancels running tasks.
func (s *Service) Stop() {
	if s.loops != nil {
		s.loops.cancel()
		s.loops.wg.Wait()
	}
	s.scheduler.Stop()
}

func (s *Service) runEvery(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	s.loops.wg.Add(1)
	go func() {
		defer s.loops.wg.Done()
		fn(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// DispatchPending enqueues generation for articles in generating without a claimed task.
func (s *Service) DispatchPending(ctx context.Context) int {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "lifecycle.dispatcher"))

	items, err := s.deps.Articles.ListDispatchable(ctx, sweepBatch)
	if err != nil {
		logging.Error(logCtx, "list dispatchable articles", slog.Any("err", errs.Loggable(err)))
		return 0
	}
	dispatched := 0
	for _, item := range items {
		if s.dispatch(ctx, item) {
			dispatched++
		}
	}
	if dispatched > 0 {
		logging.Info(logCtx, "articles dispatched", slog.Int("count", dispatched))
	}
	return dispatched
}

// SweepExpired moves generating and translating articles past their deadline to timeout. It never retries.
func (s *Service) SweepExpired(ctx context.Context) int {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "lifecycle.watchdog"))

	items, err := s.deps.Articles.ListExpired(ctx, s.timestamp(), sweepBatch)
	if err != nil {
		logging.Error(logCtx, "list expired articles", slog.Any("err", errs.Loggable(err)))
		return 0
	}

	expired := 0
	for _, item := range items {
		if s.expire(ctx, item) {
			expired++
		}
	}
	if expired > 0 {
		logging.Warn(logCtx, "articles timed out", slog.Int("count", expired))
	}
	return expired
}

// stageOf names the pipeline stage an article status is waiting on.
func stageOf(status article.Status) (string, TaskKind, bool) {
	switch status {
	case article.StatusGenerating:
		return "generation", TaskGeneration, true
	case article.StatusTranslating:
		return "translation", TaskTranslation, true
	default:
		return "", "", false
	}
}

func (s *Service) expire(ctx context.Context, item ports.Article) bool {
	logCtx := s.logger(ctx, "watchdog", item.ArticleID)

	stage, kind, ok := stageOf(item.Status)
	if !ok {
		return false
	}

	unlock := s.locks.Lock(item.ArticleID)
	defer unlock()

	message := stage + " exceeded its time budget"
	if item.TimeoutAt != nil {
		message += " (deadline " + *item.TimeoutAt + ")"
	}
	updated, err := s.deps.Articles.Transition(ctx, ports.TransitionInput{
		ArticleID:       item.ArticleID,
		From:            item.Status,
		To:              article.StatusTimeout,
		GenerationRound: uint64Ptr(item.GenerationRound),
		Patch: ports.ArticlePatch{
			LastError:     stringPtr(message),
			FailureCause:  stringPtr(string(article.CauseTimeout)),
			ClearDispatch: true,
		},
		UpdatedAt: s.timestamp(),
	})
	if errors.Is(err, ports.ErrTransitionConflict) {
		return false
	}
	if err != nil {
		logging.Error(logCtx, "expire article", slog.Any("err", errs.Loggable(err)))
		return false
	}

	s.scheduler.CancelArticle(item.ArticleID, kind)
	s.emitTransition(ctx, article.EventTimeout, item.Status, updated, map[string]any{
		"stage":         stage,
		"failure_cause": string(article.CauseTimeout),
		"error":         message,
	})
	return true
}

// QueueStats is a snapshot of the worker pool.
type QueueStats struct {
	Queued  int
	Running int
}

func (s *Service) QueueStats() QueueStats {
	return QueueStats{Queued: s.scheduler.QueueDepth(), Running: s.scheduler.Running()}
}
