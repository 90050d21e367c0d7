package bootstrap

import (
	"context"
	"log/slog"
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"newsroom/internal/bootstrap/config"
	"newsroom/internal/bootstrap/database"
	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	cacheinfra "newsroom/internal/infrastructure/cache"
	"newsroom/internal/infrastructure/deepl"
	"newsroom/internal/infrastructure/feeds"
	"newsroom/internal/infrastructure/imagegen"
	"newsroom/internal/infrastructure/llm"
	"newsroom/internal/infrastructure/n8n"
	"newsroom/internal/infrastructure/notify"
	sqliterepo "newsroom/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "newsroom/internal/infrastructure/persistence/sqlite/uow"
	"newsroom/internal/infrastructure/prompts"
	"newsroom/internal/infrastructure/webfetch"
	"newsroom/internal/infrastructure/wordpress"
	"newsroom/internal/ports"
	"newsroom/internal/usecase/lifecycle"
)

// RunMode tells the container whether this process owns the dispatcher and workers.
type RunMode struct {
	Serve bool
}

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewArticleRepository,
			fx.As(new(ports.ArticleRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewSupervisorRepository,
			fx.As(new(ports.TonalityRepository)),
			fx.As(new(ports.ReadModel)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideCache),
	fx.Provide(provideBroker),
	fx.Provide(providePrompts),
	fx.Provide(provideLLMClient),
	fx.Provide(provideDependencies),
	fx.Provide(provideService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideCache(lc fx.Lifecycle, ctx context.Context, cfg config.Config, db *gorm.DB) (ports.Cache, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	switch backend {
	case "", "sqlite":
		return cacheinfra.NewSQLiteCache(db), nil
	case "redis":
	default:
		return nil, article.Validationf("unsupported cache backend %q", cfg.Cache.Backend)
	}

	cache := cacheinfra.NewRedisCache(cacheinfra.RedisOptions{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
		Prefix:   cfg.App.Name + ":",
	})
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))
	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			if err := cache.Ping(startCtx); err != nil {
				return errs.Wrap(err, "ping redis cache")
			}
			logging.Info(logCtx, "redis cache connected", slog.String("addr", cfg.Cache.RedisAddr))
			return nil
		},
		OnStop: func(_ context.Context) error {
			return cache.Close()
		},
	})
	return cache, nil
}

func provideBroker(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*notify.Broker, error) {
	var bridges []ports.Notifier
	var bridge *notify.NATSBridge
	if url := strings.TrimSpace(cfg.Notify.NATSURL); url != "" {
		var err error
		bridge, err = notify.ConnectNATS(ctx, url, cfg.Notify.SubjectPrefix)
		if err != nil {
			return nil, errs.Wrap(err, "connect nats")
		}
		bridges = append(bridges, bridge)
	}

	broker := notify.NewBroker(cfg.Notify.SubscriberBuffer, bridges...)
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			broker.Close()
			if bridge != nil {
				bridge.Close()
			}
			return nil
		},
	})
	return broker, nil
}

func providePrompts(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*prompts.Profile, error) {
	profile, err := prompts.Load(cfg.Pipeline.PromptsFile)
	if err != nil {
		return nil, errs.Wrap(err, "load prompt profile")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := profile.Watch(watchCtx); err != nil {
				logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))
				logging.Warn(logCtx, "prompt hot reload disabled", slog.Any("err", errs.Loggable(err)))
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
	return profile, nil
}

func provideLLMClient(cfg config.Config, profile *prompts.Profile) *llm.Client {
	return llm.NewClient(cfg.LLM, profile)
}

type dependencyParams struct {
	fx.In

	Ctx        context.Context
	Config     config.Config
	App        *App
	Articles   ports.ArticleRepository
	Tonality   ports.TonalityRepository
	ReadModel  ports.ReadModel
	UnitOfWork ports.UnitOfWork
	Cache      ports.Cache
	Broker     *notify.Broker
	LLM        *llm.Client
}

// provideDependencies leaves every provider without credentials unset so the service reports it as not configured.
func provideDependencies(p dependencyParams) lifecycle.Dependencies {
	cfg := p.Config
	deps := lifecycle.Dependencies{
		Articles:   p.Articles,
		Tonality:   p.Tonality,
		ReadModel:  p.ReadModel,
		UnitOfWork: p.UnitOfWork,
		Cache:      p.Cache,
		Notifier:   p.Broker,
		Images:     imagegen.NewFileStore(p.App.ImageDir()),
		Feeds:      feeds.NewParser(nil),
		Pages:      webfetch.NewExtractor(nil),
	}

	if p.LLM.Configured() {
		deps.Reviewer = llm.NewReviewer(p.LLM)
		deps.Evaluator = llm.NewEvaluator(p.LLM)
		deps.Social = llm.NewSocialWriter(p.LLM)
		deps.Embedder = llm.NewEmbedder(p.LLM)
	}

	generator := strings.ToLower(strings.TrimSpace(cfg.Pipeline.Generator))
	switch {
	case generator == "webhook" && strings.TrimSpace(cfg.Webhook.GenerateURL) != "":
		deps.Generator = n8n.NewGenerator(cfg.Webhook, nil)
	case generator != "webhook" && p.LLM.Configured():
		deps.Generator = llm.NewGenerator(p.LLM)
	}

	if translator := deepl.NewClient(cfg.DeepL, nil); translator.Configured() {
		deps.Translator = translator
	}
	if publisher := wordpress.NewClient(cfg.WordPress, nil); publisher.Configured() {
		deps.Publisher = publisher
	}

	if strings.TrimSpace(cfg.ComfyUI.URL) != "" {
		deps.ImageBackends = append(deps.ImageBackends, imagegen.NewComfyUI(cfg.ComfyUI, nil))
	}
	if strings.TrimSpace(cfg.RunPod.EndpointID) != "" && strings.TrimSpace(cfg.RunPod.APIKey) != "" {
		deps.ImageBackends = append(deps.ImageBackends, imagegen.NewRunPod(cfg.RunPod, cfg.ComfyUI.Checkpoint, nil))
	}

	logCtx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	logging.Info(
		logCtx,
		"providers wired",
		slog.Bool("generator", deps.Generator != nil),
		slog.String("generator_kind", generator),
		slog.Bool("translator", deps.Translator != nil),
		slog.Bool("publisher", deps.Publisher != nil),
		slog.Bool("evaluator", deps.Evaluator != nil),
		slog.Int("image_backends", len(deps.ImageBackends)),
	)
	return deps
}

type serviceParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Deps      lifecycle.Dependencies
	Mode      RunMode `optional:"true"`
}

func provideService(p serviceParams) *lifecycle.Service {
	cfg := p.Config
	svc := lifecycle.NewService(p.Deps, lifecycle.Options{
		Workers:            cfg.Pipeline.Workers,
		QueueSize:          cfg.Pipeline.QueueSize,
		GenerationTimeout:  cfg.Pipeline.GenerationTimeout,
		TranslationTimeout: cfg.Pipeline.TranslationTimeout,
		ImageTimeout:       cfg.Pipeline.ImageTimeout,
		SupervisorTimeout:  cfg.Pipeline.SupervisorTimeout,
		PublishTimeout:     cfg.Pipeline.PublishTimeout,
		DispatchInterval:   cfg.Pipeline.DispatchInterval,
		WatchdogInterval:   cfg.Pipeline.WatchdogInterval,
		PublishOnApprove:   cfg.Pipeline.PublishOnApprove,
		Features:           cfg.Features,
		DeferDispatch:      !p.Mode.Serve,
	})

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			svc.Stop()
			return nil
		},
	})
	return svc
}
