// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends accepted by storage.backend.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig        `mapstructure:"crawler"`
	Jobs    map[string]JobConfig `mapstructure:"jobs"`
	Storage StorageConfig        `mapstructure:"storage"`
	Index   IndexConfig          `mapstructure:"index"`
	PubSub  PubSubConfig         `mapstructure:"pubsub"`
	Metrics MetricsConfig        `mapstructure:"metrics"`
	Logging LoggingConfig        `mapstructure:"logging"`
}

// CrawlerConfig governs fetching and pagination.
type CrawlerConfig struct {
	StartURL        string        `mapstructure:"start_url"`
	BaseURL         string        `mapstructure:"base_url"`
	UserAgent       string        `mapstructure:"user_agent"`
	Parallelism     int           `mapstructure:"parallelism"`
	Delay           time.Duration `mapstructure:"delay"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	IgnoreRobots    bool          `mapstructure:"ignore_robots"`
	MaxListingPages int           `mapstructure:"max_listing_pages"`
}

// JobConfig overrides per-job settings.
type JobConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// StorageConfig selects where records are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// IndexConfig enables the Postgres decision index when DSN is set.
type IndexConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig enables saved-record notifications when Topic is set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig exposes /metrics and /healthz when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DECISIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.start_url", "https://www.gesetze-bayern.de/Search/Filter/DOKTYP/rspr")
	v.SetDefault("crawler.base_url", "https://www.gesetze-bayern.de")
	v.SetDefault("crawler.user_agent", "legal-decisions-crawler/0.1")
	v.SetDefault("crawler.parallelism", 4)
	v.SetDefault("crawler.delay", "0s")
	v.SetDefault("crawler.request_timeout", "30s")
	v.SetDefault("crawler.ignore_robots", true)
	v.SetDefault("crawler.max_listing_pages", 0)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("index.table", "decisions")
	v.SetDefault("index.max_conns", 4)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := validateURL("crawler.start_url", c.Crawler.StartURL); err != nil {
		return err
	}
	if err := validateURL("crawler.base_url", c.Crawler.BaseURL); err != nil {
		return err
	}
	if c.Crawler.Parallelism <= 0 {
		return fmt.Errorf("crawler.parallelism must be > 0")
	}
	if c.Crawler.Delay < 0 {
		return fmt.Errorf("crawler.delay must be >= 0")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.MaxListingPages < 0 {
		return fmt.Errorf("crawler.max_listing_pages must be >= 0")
	}
	switch c.Storage.Backend {
	case BackendLocal, BackendMemory:
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.backend is gcs")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of local, gcs, memory", c.Storage.Backend)
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic is set")
	}
	return nil
}

// OutputDir returns the configured output directory for job, or def when the
// job has no override.
func (c Config) OutputDir(job, def string) string {
	if jc, ok := c.Jobs[job]; ok && strings.TrimSpace(jc.OutputDir) != "" {
		return jc.OutputDir
	}
	return def
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}
