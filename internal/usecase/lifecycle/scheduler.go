package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/errs"
)

// ErrQueueFull is returned when the bounded task queue cannot take more work.
var ErrQueueFull = errors.New("task queue is full")

type TaskKind string

const (
	TaskGeneration  TaskKind = "generation"
	TaskTranslation TaskKind = "translation"
	TaskImage       TaskKind = "image"
	TaskSupervisor  TaskKind = "supervisor"
	TaskPublish     TaskKind = "publish"
	TaskSocial      TaskKind = "social"
	TaskEmbedding   TaskKind = "embedding"
)

// Task is one asynchronous pipeline stage bound to an article.
type Task struct {
	ID        string
	Kind      TaskKind
	ArticleID uint64
	Timeout   time.Duration
	Run       func(ctx context.Context) error
}

func newTask(kind TaskKind, articleID uint64, timeout time.Duration, run func(ctx context.Context) error) Task {
	return Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		ArticleID: articleID,
		Timeout:   timeout,
		Run:       run,
	}
}

type runningTask struct {
	task   Task
	cancel context.CancelFunc
}

// Scheduler is a fixed worker pool over a bounded queue. Failed tasks are never retried here.
type Scheduler struct {
	workerCount int
	taskQueue   chan Task
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	mu      sync.Mutex
	running map[string]runningTask
	started bool
}

func NewScheduler(workers int, queueSize int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		workerCount: workers,
		taskQueue:   make(chan Task, queueSize),
		ctx:         ctx,
		cancel:      cancel,
		running:     make(map[string]runningTask),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	logCtx := logging.WithAttrs(ctx, slog.String("component", "lifecycle.scheduler"))
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(logCtx, i)
	}
	logging.Info(logCtx, "scheduler started", slog.Int("workers", s.workerCount), slog.Int("queue_size", cap(s.taskQueue)))
}

// Stop cancels running tasks and waits for the workers to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) Enqueue(task Task) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("%w: %s task for article %d", ErrQueueFull, task.Kind, task.ArticleID)
	}
}

// QueueDepth returns the number of tasks waiting for a worker.
func (s *Scheduler) QueueDepth() int {
	return len(s.taskQueue)
}

// Running returns the number of tasks currently executing.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// CancelArticle cancels running tasks of the article; with no kinds given every kind matches.
func (s *Scheduler) CancelArticle(articleID uint64, kinds ...TaskKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := 0
	for _, item := range s.running {
		if item.task.ArticleID != articleID || !matchesKind(item.task.Kind, kinds) {
			continue
		}
		item.cancel()
		cancelled++
	}
	return cancelled
}

func matchesKind(kind TaskKind, kinds []TaskKind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, candidate := range kinds {
		if candidate == kind {
			return true
		}
	}
	return false
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(ctx, id, task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(ctx context.Context, workerID int, task Task) {
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	taskCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	taskCtx = logging.WithArticle(logging.WithLogger(taskCtx, logging.Logger(ctx)), task.ArticleID, task.ID)

	s.mu.Lock()
	s.running[task.ID] = runningTask{task: task, cancel: cancel}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, task.ID)
		s.mu.Unlock()
	}()

	logCtx := logging.WithAttrs(ctx,
		slog.Int("worker_id", workerID),
		slog.String("task_id", task.ID),
		slog.String("task_kind", string(task.Kind)),
		slog.Uint64("article_id", task.ArticleID),
	)

	started := time.Now()
	err := runSafely(taskCtx, task)
	if err != nil {
		logging.Error(logCtx, "task failed", slog.Duration("elapsed", time.Since(started)), slog.Any("err", errs.Loggable(err)))
		return
	}
	logging.Debug(logCtx, "task finished", slog.Duration("elapsed", time.Since(started)))
}

func runSafely(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.WithStack(fmt.Errorf("task panic: %v", r))
		}
	}()
	return task.Run(ctx)
}
