// Package config loads the service configuration from viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/feeds/internal/assembler"
	"github.com/jonesrussell/north-cloud/feeds/internal/cache"
	"github.com/jonesrussell/north-cloud/feeds/internal/export"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
	"github.com/jonesrussell/north-cloud/feeds/internal/refresh"
	"github.com/jonesrussell/north-cloud/feeds/internal/subscriptions"
)

// EnvPrefix prefixes every environment override, e.g. FEEDS_CACHE_BACKEND.
const EnvPrefix = "FEEDS"

// Server defaults
const (
	defaultServerAddress         = ":8080"
	defaultServerReadTimeout     = 30 * time.Second
	defaultServerWriteTimeout    = 30 * time.Second
	defaultServerIdleTimeout     = 60 * time.Second
	defaultServerShutdownTimeout = 15 * time.Second
)

// Feed defaults
const (
	defaultFetchTimeout = 15 * time.Second
	defaultUserAgent    = "north-cloud-feeds/1.0"
)

// Config is the full service configuration.
type Config struct {
	App           AppConfig            `mapstructure:"app"`
	Logger        logger.Config        `mapstructure:"logger"`
	Server        ServerConfig         `mapstructure:"server"`
	Cache         cache.Config         `mapstructure:"cache"`
	Feeds         FeedsConfig          `mapstructure:"feeds"`
	Patch         PatchConfig          `mapstructure:"patch"`
	Scheduler     SchedulerConfig      `mapstructure:"scheduler"`
	Assembler     assembler.Config     `mapstructure:"assembler"`
	Subscriptions subscriptions.Config `mapstructure:"subscriptions"`
	Export        export.Config        `mapstructure:"export"`
	Metrics       MetricsConfig        `mapstructure:"metrics"`
}

// AppConfig identifies the deployment.
type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// FeedsConfig configures the source table, fetching and refresh.
type FeedsConfig struct {
	SourcesFile    string        `mapstructure:"sources_file"`
	DefaultTTL     time.Duration `mapstructure:"default_ttl"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	ProxyPrefix    string        `mapstructure:"proxy_prefix"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// Refresh returns the orchestrator settings.
func (f FeedsConfig) Refresh() refresh.Config {
	return refresh.Config{DefaultTTL: f.DefaultTTL, MaxConcurrency: f.MaxConcurrency}
}

// PatchConfig locates the patch catalog.
type PatchConfig struct {
	CatalogFile string `mapstructure:"catalog_file"`
}

// SchedulerConfig controls tick timing and cross-instance locking.
type SchedulerConfig struct {
	Schedule   string     `mapstructure:"schedule"`
	RunOnStart bool       `mapstructure:"run_on_start"`
	Lock       LockConfig `mapstructure:"lock"`
}

// Refresh returns the scheduler settings.
func (s SchedulerConfig) Refresh() refresh.SchedulerConfig {
	return refresh.SchedulerConfig{Schedule: s.Schedule, RunOnStart: s.RunOnStart}
}

// LockConfig enables the Redis tick lock.
type LockConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Key     string        `mapstructure:"key"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "feeds")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", false)

	v.SetDefault("logger.level", logger.DefaultLevel)
	v.SetDefault("logger.development", false)
	v.SetDefault("logger.output_paths", []string{"stdout"})

	v.SetDefault("server.address", defaultServerAddress)
	v.SetDefault("server.read_timeout", defaultServerReadTimeout)
	v.SetDefault("server.write_timeout", defaultServerWriteTimeout)
	v.SetDefault("server.idle_timeout", defaultServerIdleTimeout)
	v.SetDefault("server.shutdown_timeout", defaultServerShutdownTimeout)

	v.SetDefault("cache.backend", cache.BackendMemory)
	v.SetDefault("cache.default_ttl", cache.DefaultTTL)
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.key_prefix", "")

	v.SetDefault("feeds.sources_file", "")
	v.SetDefault("feeds.default_ttl", refresh.DefaultSourceTTL)
	v.SetDefault("feeds.max_concurrency", refresh.DefaultMaxConcurrency)
	v.SetDefault("feeds.fetch_timeout", defaultFetchTimeout)
	v.SetDefault("feeds.proxy_prefix", "")
	v.SetDefault("feeds.rate_limit", 0)
	v.SetDefault("feeds.rate_burst", 1)
	v.SetDefault("feeds.user_agent", defaultUserAgent)

	v.SetDefault("patch.catalog_file", "")

	v.SetDefault("scheduler.schedule", refresh.DefaultSchedule)
	v.SetDefault("scheduler.run_on_start", true)
	v.SetDefault("scheduler.lock.enabled", false)
	v.SetDefault("scheduler.lock.key", "feeds:tick:lock")
	v.SetDefault("scheduler.lock.ttl", 5*time.Minute)

	v.SetDefault("assembler.response_ttl", assembler.DefaultResponseTTL)
	v.SetDefault("assembler.page_size", 10)

	v.SetDefault("subscriptions.backend", "static")
	v.SetDefault("subscriptions.postgres.host", "localhost")
	v.SetDefault("subscriptions.postgres.port", "5432")
	v.SetDefault("subscriptions.postgres.sslmode", "disable")

	v.SetDefault("export.enabled", false)
	v.SetDefault("export.sink", export.FileSinkName)
	v.SetDefault("export.timeout", export.DefaultTimeout)
	v.SetDefault("export.file.path", export.DefaultFilePath)
	v.SetDefault("export.elasticsearch.url", "http://localhost:9200")
	v.SetDefault("export.elasticsearch.index", export.DefaultIndex)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load applies defaults, decodes v and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigParseFailed, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
