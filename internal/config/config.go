// Package config loads leadgen configuration from config.yaml and LEADGEN_
// environment variables, and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Crawl      CrawlConfig      `yaml:"crawl" mapstructure:"crawl"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Publish    PublishConfig    `yaml:"publish" mapstructure:"publish"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the job ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// GoogleConfig holds Google Places settings used for discovery.
type GoogleConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// CrawlConfig configures the site crawler.
type CrawlConfig struct {
	PageTimeoutSecs    int      `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	MaxAttempts        int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	MaxNavigationDepth int      `yaml:"max_navigation_depth" mapstructure:"max_navigation_depth"`
	MinContentChars    int      `yaml:"min_content_chars" mapstructure:"min_content_chars"`
	NameWindow         int      `yaml:"name_window" mapstructure:"name_window"`
	RatePerSec         float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Browser            bool     `yaml:"browser" mapstructure:"browser"`
	ChromePath         string   `yaml:"chrome_path" mapstructure:"chrome_path"`
	CacheTTLHours      int      `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	ExcludePaths       []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	UserAgents         []string `yaml:"user_agents" mapstructure:"user_agents"`
}

// PageTimeout returns the per-page timeout.
func (c CrawlConfig) PageTimeout() time.Duration {
	return time.Duration(c.PageTimeoutSecs) * time.Second
}

// CacheTTL returns the crawl cache lifetime.
func (c CrawlConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// ExtractionConfig configures the structured-extraction adapter.
type ExtractionConfig struct {
	Model           string `yaml:"model" mapstructure:"model"`
	MaxTokens       int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxAttempts     int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	MaxContentChars int    `yaml:"max_content_chars" mapstructure:"max_content_chars"`
}

// PipelineConfig configures job orchestration.
type PipelineConfig struct {
	Concurrency        int    `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs        int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DefaultCountryCode string `yaml:"default_country_code" mapstructure:"default_country_code"`
	SourceAgent        string `yaml:"source_agent" mapstructure:"source_agent"`
	QueueSize          int    `yaml:"queue_size" mapstructure:"queue_size"`
}

// Timeout returns the wall-clock budget of one job.
func (c PipelineConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// PublishConfig configures the lead publisher.
type PublishConfig struct {
	Broker         string   `yaml:"broker" mapstructure:"broker"`
	Brokers        []string `yaml:"brokers" mapstructure:"brokers"`
	Topic          string   `yaml:"topic" mapstructure:"topic"`
	MaxAttempts    int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff int      `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	FallbackDir    string   `yaml:"fallback_dir" mapstructure:"fallback_dir"`
}

// ServerConfig configures the HTTP trigger.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures delivery health alerts.
type MonitoringConfig struct {
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	FallbackRateThreshold float64 `yaml:"fallback_rate_threshold" mapstructure:"fallback_rate_threshold"`
	FallbackBacklog       int     `yaml:"fallback_backlog" mapstructure:"fallback_backlog"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadgen.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawl.page_timeout_secs", 60)
	v.SetDefault("crawl.max_attempts", 3)
	v.SetDefault("crawl.max_navigation_depth", 1)
	v.SetDefault("crawl.min_content_chars", 200)
	v.SetDefault("crawl.name_window", 150)
	v.SetDefault("crawl.rate_per_sec", 2.0)
	v.SetDefault("crawl.browser", false)
	v.SetDefault("crawl.cache_ttl_hours", 24)
	v.SetDefault("crawl.exclude_paths", []string{"/blog/*", "/news/*", "/press/*", "/careers/*"})
	v.SetDefault("pipeline.concurrency", 5)
	v.SetDefault("pipeline.timeout_secs", 300)
	v.SetDefault("pipeline.default_country_code", "1")
	v.SetDefault("pipeline.source_agent", "leadgen")
	v.SetDefault("pipeline.queue_size", 16)
	v.SetDefault("extraction.model", "claude-haiku-4-5-20251001")
	v.SetDefault("extraction.max_tokens", 1024)
	v.SetDefault("extraction.max_attempts", 3)
	v.SetDefault("extraction.max_content_chars", 8000)
	v.SetDefault("publish.broker", "kafka")
	v.SetDefault("publish.brokers", []string{"localhost:9092"})
	v.SetDefault("publish.topic", "lead_generated")
	v.SetDefault("publish.max_attempts", 3)
	v.SetDefault("publish.initial_backoff_ms", 1000)
	v.SetDefault("publish.fallback_dir", "fallback_queue")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.enabled", true)
	v.SetDefault("google.max_results", 20)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.fallback_rate_threshold", 0.2)
	v.SetDefault("monitoring.fallback_backlog", 100)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the keys required by a command. mode is one of serve,
// run, replay or jobs.
func (c *Config) Validate(mode string) error {
	var problems []string
	require := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "serve", "run":
		require(c.Anthropic.Key != "", "anthropic.key is required")
		require(c.Extraction.Model != "", "extraction.model is required")
		require(c.Pipeline.Concurrency >= 1 && c.Pipeline.Concurrency <= 50,
			"pipeline.concurrency must be between 1 and 50")
		require(c.Pipeline.TimeoutSecs > 0, "pipeline.timeout_secs must be > 0")
		require(c.Crawl.PageTimeoutSecs > 0, "crawl.page_timeout_secs must be > 0")
		require(c.Crawl.MaxNavigationDepth >= 0, "crawl.max_navigation_depth must be >= 0")
		c.validatePublish(require)
		c.validateStore(require)
		if mode == "serve" {
			require(c.Server.Port > 0, "server.port must be > 0")
		}
	case "replay":
		c.validatePublish(require)
	case "jobs":
		c.validateStore(require)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validatePublish(require func(bool, string)) {
	switch c.Publish.Broker {
	case "kafka":
		require(len(c.Publish.Brokers) > 0, "publish.brokers is required for the kafka broker")
		require(c.Publish.Topic != "", "publish.topic is required")
	case "log":
	default:
		require(false, "publish.broker must be kafka or log")
	}
	require(c.Publish.FallbackDir != "", "publish.fallback_dir is required")
}

func (c *Config) validateStore(require func(bool, string)) {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		require(false, "store.driver must be sqlite or postgres")
	}
	require(c.Store.DatabaseURL != "", "store.database_url is required")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
