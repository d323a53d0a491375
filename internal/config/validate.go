package config

import (
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/feeds/internal/cache"
	"github.com/jonesrussell/north-cloud/feeds/internal/export"
)

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}

// Validate checks the configuration and reports the first problem found.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateLogger,
		c.validateServer,
		c.validateCache,
		c.validateFeeds,
		c.validateScheduler,
		c.validateSubscriptions,
		c.validateExport,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateLogger() error {
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return &ValidationError{Field: "logger.level", Value: c.Logger.Level, Reason: "must be one of debug, info, warn, error, fatal"}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Address == "" {
		return &ValidationError{Field: "server.address", Value: c.Server.Address, Reason: "must not be empty"}
	}
	return nil
}

func (c *Config) validateCache() error {
	switch strings.ToLower(c.Cache.Backend) {
	case "", cache.BackendMemory:
	case cache.BackendRedis:
		if c.Cache.Redis.Address == "" {
			return &ValidationError{Field: "cache.redis.address", Value: "", Reason: "required for the redis backend"}
		}
	default:
		return &ValidationError{Field: "cache.backend", Value: c.Cache.Backend, Reason: "must be memory or redis"}
	}
	if c.Cache.DefaultTTL < 0 {
		return &ValidationError{Field: "cache.default_ttl", Value: c.Cache.DefaultTTL, Reason: "must not be negative"}
	}
	return nil
}

func (c *Config) validateFeeds() error {
	switch {
	case c.Feeds.DefaultTTL <= 0:
		return &ValidationError{Field: "feeds.default_ttl", Value: c.Feeds.DefaultTTL, Reason: "must be positive"}
	case c.Feeds.MaxConcurrency <= 0:
		return &ValidationError{Field: "feeds.max_concurrency", Value: c.Feeds.MaxConcurrency, Reason: "must be positive"}
	case c.Feeds.FetchTimeout <= 0:
		return &ValidationError{Field: "feeds.fetch_timeout", Value: c.Feeds.FetchTimeout, Reason: "must be positive"}
	case c.Feeds.RateLimit < 0:
		return &ValidationError{Field: "feeds.rate_limit", Value: c.Feeds.RateLimit, Reason: "must not be negative"}
	}
	return nil
}

func (c *Config) validateScheduler() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Scheduler.Schedule); err != nil {
		return &ValidationError{Field: "scheduler.schedule", Value: c.Scheduler.Schedule, Reason: err.Error()}
	}
	if c.Scheduler.Lock.Enabled && !strings.EqualFold(c.Cache.Backend, cache.BackendRedis) {
		return &ValidationError{Field: "scheduler.lock.enabled", Value: true, Reason: "requires the redis cache backend"}
	}
	return nil
}

func (c *Config) validateSubscriptions() error {
	switch c.Subscriptions.Backend {
	case "", "static":
	case "postgres":
		if c.Subscriptions.Postgres.Host == "" || c.Subscriptions.Postgres.DBName == "" {
			return &ValidationError{Field: "subscriptions.postgres", Value: c.Subscriptions.Postgres.Host, Reason: "host and dbname are required"}
		}
	default:
		return &ValidationError{Field: "subscriptions.backend", Value: c.Subscriptions.Backend, Reason: "must be static or postgres"}
	}
	return nil
}

func (c *Config) validateExport() error {
	if !c.Export.Enabled {
		return nil
	}
	if c.Export.Timeout < 0 {
		return &ValidationError{Field: "export.timeout", Value: c.Export.Timeout, Reason: "must not be negative"}
	}
	switch c.Export.Sink {
	case export.FileSinkName:
		if c.Export.File.Path == "" {
			return &ValidationError{Field: "export.file.path", Value: "", Reason: "required for the file sink"}
		}
	case export.ElasticsearchSinkName:
		if c.Export.Elasticsearch.Index == "" {
			return &ValidationError{Field: "export.elasticsearch.index", Value: "", Reason: "required for the elasticsearch sink"}
		}
	default:
		return &ValidationError{Field: "export.sink", Value: c.Export.Sink, Reason: "must be file or elasticsearch"}
	}
	return nil
}
