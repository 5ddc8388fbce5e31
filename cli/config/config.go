package config

import (
	"fmt"
	"time"

	"github.com/pellucid-io/beacon"
	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/platform"
	"github.com/pellucid-io/beacon/storage/redisstore"
)

// Config represents a beacon.yaml configuration file.
// All values except app_id are optional; CLI flags override config values.
type Config struct {
	AppID             string        `yaml:"app_id"`
	AppBuild          string        `yaml:"app_build"`
	AppDisplayVersion string        `yaml:"app_display_version"`
	ServerEndpoint    string        `yaml:"server_endpoint"`
	UploadEnabled     *bool         `yaml:"upload_enabled"`
	Storage           StorageConfig `yaml:"storage"`
	LogPings          bool          `yaml:"log_pings"`
	DebugViewTag      string        `yaml:"debug_view_tag"`
	SourceTags        []string      `yaml:"source_tags"`
}

// StorageConfig selects where stores persist.
type StorageConfig struct {
	// Backend is one of "memory", "file" or "redis". Empty means memory.
	Backend string `yaml:"backend"`
	// Path is the data directory for the file backend.
	Path string `yaml:"path"`
	// RedisURL is the connection URL for the redis backend.
	RedisURL string `yaml:"redis_url"`
	// RedisTimeout bounds each redis operation.
	RedisTimeout Duration `yaml:"redis_timeout"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Wants reports the effective upload-enabled setting; unset means enabled.
func (c *Config) Wants() bool {
	if c.UploadEnabled == nil {
		return true
	}
	return *c.UploadEnabled
}

// Build converts the file config into SDK config. The redis backend opens
// a connection here; the returned closer releases it and is a no-op for
// the other backends.
func (c *Config) Build(logger *log.Logger) (beacon.Config, func() error, error) {
	cfg := beacon.Config{
		AppBuild:          c.AppBuild,
		AppDisplayVersion: c.AppDisplayVersion,
		ServerEndpoint:    c.ServerEndpoint,
		LogPings:          c.LogPings,
		DebugViewTag:      c.DebugViewTag,
		SourceTags:        c.SourceTags,
		Logger:            logger,
	}
	noop := func() error { return nil }

	switch c.Storage.Backend {
	case "", "memory":
		return cfg, noop, nil
	case "file":
		if c.Storage.Path == "" {
			return cfg, noop, fmt.Errorf("storage backend %q requires storage.path", c.Storage.Backend)
		}
		cfg.StoragePath = c.Storage.Path
		return cfg, noop, nil
	case "redis":
		if c.Storage.RedisURL == "" {
			return cfg, noop, fmt.Errorf("storage backend %q requires storage.redis_url", c.Storage.Backend)
		}
		client, err := redisstore.New(redisstore.Config{
			URL:     c.Storage.RedisURL,
			Timeout: c.Storage.RedisTimeout.Duration,
		})
		if err != nil {
			return cfg, noop, fmt.Errorf("connect redis storage: %w", err)
		}
		plat := platform.Host("", logger)
		plat.OpenStore = client.Factory()
		cfg.Platform = plat
		return cfg, client.Close, nil
	default:
		return cfg, noop, fmt.Errorf("unknown storage backend %q (must be memory, file or redis)", c.Storage.Backend)
	}
}
