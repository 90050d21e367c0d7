package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/errs"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	LLM       LLMConfig       `mapstructure:"llm"`
	DeepL     DeepLConfig     `mapstructure:"deepl"`
	ComfyUI   ComfyUIConfig   `mapstructure:"comfyui"`
	RunPod    RunPodConfig    `mapstructure:"runpod"`
	WordPress WordPressConfig `mapstructure:"wordpress"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Features  map[string]bool `mapstructure:"features"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	StaticDir       string        `mapstructure:"static_dir"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CacheConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type NotifyConfig struct {
	NATSURL          string `mapstructure:"nats_url"`
	SubjectPrefix    string `mapstructure:"subject_prefix"`
	SubscriberBuffer int    `mapstructure:"subscriber_buffer"`
}

type PipelineConfig struct {
	Workers            int           `mapstructure:"workers"`
	QueueSize          int           `mapstructure:"queue_size"`
	Generator          string        `mapstructure:"generator"`
	GenerationTimeout  time.Duration `mapstructure:"generation_timeout"`
	TranslationTimeout time.Duration `mapstructure:"translation_timeout"`
	ImageTimeout       time.Duration `mapstructure:"image_timeout"`
	SupervisorTimeout  time.Duration `mapstructure:"supervisor_timeout"`
	PublishTimeout     time.Duration `mapstructure:"publish_timeout"`
	DispatchInterval   time.Duration `mapstructure:"dispatch_interval"`
	WatchdogInterval   time.Duration `mapstructure:"watchdog_interval"`
	PublishOnApprove   bool          `mapstructure:"publish_on_approve"`
	PromptsFile        string        `mapstructure:"prompts_file"`
}

type LLMConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

type DeepLConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type ComfyUIConfig struct {
	URL          string        `mapstructure:"url"`
	Checkpoint   string        `mapstructure:"checkpoint"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type RunPodConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	EndpointID   string        `mapstructure:"endpoint_id"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type WordPressConfig struct {
	URL         string `mapstructure:"url"`
	User        string `mapstructure:"user"`
	AppPassword string `mapstructure:"app_password"`
}

type WebhookConfig struct {
	Token       string `mapstructure:"token"`
	GenerateURL string `mapstructure:"generate_url"`
	CallbackURL string `mapstructure:"callback_url"`
}

// FeatureNames lists the optional subsystems reported by /health.
var FeatureNames = []string{"image", "translation", "social", "rss", "crosslinking", "bulk_input"}

// FeatureEnabled reports whether an optional subsystem is switched on.
func (c Config) FeatureEnabled(name string) bool {
	return c.Features[strings.ToLower(strings.TrimSpace(name))]
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(logCtx, v)

	v.SetEnvPrefix("NEWSROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (configFile != "" && errors.Is(err, fs.ErrNotExist)) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env", slog.String("path", configFile))
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	cfg.Features = normalizeFeatures(cfg.Features)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("generator", cfg.Pipeline.Generator),
		slog.Int("workers", cfg.Pipeline.Workers),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Pipeline.Workers <= 0 {
		return errors.New("pipeline.workers must be positive")
	}
	if c.Pipeline.QueueSize <= 0 {
		return errors.New("pipeline.queue_size must be positive")
	}
	switch strings.ToLower(c.Pipeline.Generator) {
	case "llm", "webhook":
	default:
		return fmt.Errorf("pipeline.generator must be llm or webhook, got %q", c.Pipeline.Generator)
	}
	switch strings.ToLower(c.Cache.Backend) {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("cache.backend must be sqlite or redis, got %q", c.Cache.Backend)
	}
	return nil
}

func setDefaults(ctx context.Context, v *viper.Viper) {
	if ctx == nil {
		return
	}

	v.SetDefault("app.name", "newsroom")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.version", "0.4.0")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/newsroom.sqlite?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")

	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.static_dir", "static")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("notify.nats_url", "")
	v.SetDefault("notify.subject_prefix", "newsroom.status")
	v.SetDefault("notify.subscriber_buffer", 64)

	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.queue_size", 300)
	v.SetDefault("pipeline.generator", "llm")
	v.SetDefault("pipeline.generation_timeout", 10*time.Minute)
	v.SetDefault("pipeline.translation_timeout", 5*time.Minute)
	v.SetDefault("pipeline.image_timeout", 10*time.Minute)
	v.SetDefault("pipeline.supervisor_timeout", 2*time.Minute)
	v.SetDefault("pipeline.publish_timeout", 5*time.Minute)
	v.SetDefault("pipeline.dispatch_interval", 15*time.Second)
	v.SetDefault("pipeline.watchdog_interval", 60*time.Second)
	v.SetDefault("pipeline.publish_on_approve", true)
	v.SetDefault("pipeline.prompts_file", "prompts.toml")

	v.SetDefault("llm.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "mistral-large-latest")
	v.SetDefault("llm.embedding_model", "mistral-embed")

	v.SetDefault("deepl.base_url", "https://api-free.deepl.com/v2")
	v.SetDefault("deepl.api_key", "")

	v.SetDefault("comfyui.url", "http://localhost:8188")
	v.SetDefault("comfyui.checkpoint", "sd_xl_base_1.0.safetensors")
	v.SetDefault("comfyui.poll_interval", 2*time.Second)
	v.SetDefault("comfyui.timeout", 300*time.Second)

	v.SetDefault("runpod.base_url", "https://api.runpod.ai/v2")
	v.SetDefault("runpod.api_key", "")
	v.SetDefault("runpod.endpoint_id", "")
	v.SetDefault("runpod.poll_interval", 5*time.Second)
	v.SetDefault("runpod.timeout", 600*time.Second)

	v.SetDefault("wordpress.url", "")
	v.SetDefault("wordpress.user", "")
	v.SetDefault("wordpress.app_password", "")

	v.SetDefault("webhook.token", "")
	v.SetDefault("webhook.generate_url", "")
	v.SetDefault("webhook.callback_url", "http://localhost:8000/api/webhook/n8n")

	v.SetDefault("features.image", true)
	v.SetDefault("features.translation", true)
	v.SetDefault("features.social", false)
	v.SetDefault("features.rss", false)
	v.SetDefault("features.crosslinking", false)
	v.SetDefault("features.bulk_input", false)
}

func normalizeFeatures(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(FeatureNames))
	for _, name := range FeatureNames {
		out[name] = false
	}
	for key, enabled := range in {
		out[strings.ToLower(strings.TrimSpace(key))] = enabled
	}
	return out
}
