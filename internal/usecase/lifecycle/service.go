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

var (
	errRepositoryRequired = errors.New("article repository is required")
	errNoContent          = article.InvalidStatef("article has no content yet")
)

// Feature names gating optional subsystems.
const (
	FeatureImage        = "image"
	FeatureTranslation  = "translation"
	FeatureSocial       = "social"
	FeatureRSS          = "rss"
	FeatureCrosslinking = "crosslinking"
	FeatureBulkInput    = "bulk_input"
)

// Dependencies are the collaborators the orchestrator drives. Providers left nil are treated as not configured.
type Dependencies struct {
	Articles   ports.ArticleRepository
	Tonality   ports.TonalityRepository
	ReadModel  ports.ReadModel
	UnitOfWork ports.UnitOfWork
	Cache      ports.Cache
	Notifier   ports.Notifier

	Generator     ports.ContentGenerator
	Translator    ports.Translator
	Reviewer      ports.TranslationReviewer
	Evaluator     ports.SupervisorEvaluator
	ImageBackends []ports.ImageBackend
	Images        ports.ImageStore
	Publisher     ports.Publisher
	Feeds         ports.FeedParser
	Pages         ports.PageExtractor
	Social        ports.SocialWriter
	Embedder      ports.Embedder
}

type Options struct {
	Workers            int
	QueueSize          int
	GenerationTimeout  time.Duration
	TranslationTimeout time.Duration
	ImageTimeout       time.Duration
	SupervisorTimeout  time.Duration
	PublishTimeout     time.Duration
	DispatchInterval   time.Duration
	WatchdogInterval   time.Duration
	PublishOnApprove   bool
	Features           map[string]bool
	// DeferDispatch leaves generation to the dispatcher of a running server; set by CLI commands.
	DeferDispatch bool
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 300
	}
	o.GenerationTimeout = positiveOr(o.GenerationTimeout, 10*time.Minute)
	o.TranslationTimeout = positiveOr(o.TranslationTimeout, 5*time.Minute)
	o.ImageTimeout = positiveOr(o.ImageTimeout, 10*time.Minute)
	o.SupervisorTimeout = positiveOr(o.SupervisorTimeout, 2*time.Minute)
	o.PublishTimeout = positiveOr(o.PublishTimeout, 5*time.Minute)
	o.DispatchInterval = positiveOr(o.DispatchInterval, 15*time.Second)
	o.WatchdogInterval = positiveOr(o.WatchdogInterval, 60*time.Second)
	return o
}

// Service is the article lifecycle orchestrator.
type Service struct {
	deps      Dependencies
	opts      Options
	locks     *keyedMutex
	scheduler *Scheduler
	loops     *loops
	enqueue   func(Task) error
	now       func() time.Time
}

func NewService(deps Dependencies, opts Options) *Service {
	opts = opts.withDefaults()
	scheduler := NewScheduler(opts.Workers, opts.QueueSize)

	return &Service{
		deps:      deps,
		opts:      opts,
		locks:     newKeyedMutex(),
		scheduler: scheduler,
		enqueue:   scheduler.Enqueue,
		now:       time.Now,
	}
}

// FeatureEnabled reports whether an optional subsystem is switched on.
func (s *Service) FeatureEnabled(name string) bool {
	return s.opts.Features[strings.ToLower(strings.TrimSpace(name))]
}

// Features returns a copy of the feature map for /health.
func (s *Service) Features() map[string]bool {
	out := make(map[string]bool, len(s.opts.Features))
	for name, enabled := range s.opts.Features {
		out[name] = enabled
	}
	return out
}

func (s *Service) requireFeature(name string) error {
	if !s.FeatureEnabled(name) {
		return errs.Wrapf(article.ErrFeatureDisabled, "feature %s", name)
	}
	return nil
}

func (s *Service) timestamp() string {
	return article.FormatTime(s.now())
}

func (s *Service) check(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.deps.Articles == nil {
		return errRepositoryRequired
	}
	return nil
}

// withTx runs fn inside the unit of work when one is wired.
func (s *Service) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.deps.UnitOfWork == nil {
		return fn(ctx)
	}
	return s.deps.UnitOfWork.WithTx(ctx, fn)
}

// emit publishes after the store committed; callers hold the article lock so events keep commit order.
func (s *Service) emit(ctx context.Context, name string, articleID uint64, data map[string]any) {
	if s.deps.Notifier == nil {
		return
	}
	payload := make(map[string]any, len(data)+1)
	for key, value := range data {
		payload[key] = value
	}
	payload["article_id"] = articleID
	s.deps.Notifier.Publish(ctx, ports.Event{Name: name, Data: payload})
}

func (s *Service) emitTransition(ctx context.Context, name string, from article.Status, item ports.Article, extra map[string]any) {
	data := map[string]any{
		"status": string(item.Status),
		"from":   string(from),
		"title":  item.Title,
	}
	for key, value := range extra {
		data[key] = value
	}
	s.emit(ctx, name, item.ArticleID, data)
}

func (s *Service) logger(ctx context.Context, component string, articleID uint64) context.Context {
	return logging.WithAttrs(ctx, slog.String("component", "lifecycle."+component), slog.Uint64("article_id", articleID))
}

func positiveOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}

func stringPtr(value string) *string {
	return &value
}

func uint64Ptr(value uint64) *uint64 {
	return &value
}
