// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP API server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	RequestTimeout int `mapstructure:"request_timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_seconds"`
}

// CrawlerConfig governs the harvest pipeline.
type CrawlerConfig struct {
	ListingURL          string  `mapstructure:"listing_url"`
	ListingPages        int     `mapstructure:"listing_pages"`
	InitialListingPages int     `mapstructure:"initial_listing_pages"`
	Workers             int     `mapstructure:"workers"`
	IntervalMinutes     int     `mapstructure:"interval_minutes"`
	RunTimeoutMinutes   int     `mapstructure:"run_timeout_minutes"`
	FailureStreakLimit  int     `mapstructure:"failure_streak_limit"`
	MaxAttempts         int     `mapstructure:"max_attempts"`
	BackoffInitialMs    int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs        int     `mapstructure:"backoff_max_ms"`
	RequestsPerSecond   float64 `mapstructure:"requests_per_second"`
	Burst               int     `mapstructure:"burst"`
}

// ProbeConfig configures the plain-HTTP fast path.
type ProbeConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	UserAgent      string `mapstructure:"user_agent"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	// PromotionThresh is the body length below which high script
	// density promotes the fetch to headless.
	PromotionThresh int `mapstructure:"promotion_threshold"`
}

// HeadlessConfig configures the Chrome rendering subsystem.
type HeadlessConfig struct {
	UserAgent     string `mapstructure:"user_agent"`
	MaxParallel   int    `mapstructure:"max_parallel"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	SettleDelayMs int    `mapstructure:"settle_delay_ms"`
	Headful       bool   `mapstructure:"headful"`
}

// ArchiveConfig sets where raw page snapshots are kept. Backend is
// "none", "local", or "gcs".
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PublisherConfig holds metadata for run-completed notifications.
type PublisherConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime_seconds", 1800)
	v.SetDefault("crawler.listing_url", "https://www.ft.com/world")
	v.SetDefault("crawler.listing_pages", 1)
	v.SetDefault("crawler.initial_listing_pages", 10)
	v.SetDefault("crawler.workers", 2)
	v.SetDefault("crawler.interval_minutes", 60)
	v.SetDefault("crawler.run_timeout_minutes", 15)
	v.SetDefault("crawler.failure_streak_limit", 5)
	v.SetDefault("crawler.max_attempts", 3)
	v.SetDefault("crawler.backoff_initial_ms", 250)
	v.SetDefault("crawler.backoff_max_ms", 5000)
	v.SetDefault("crawler.requests_per_second", 0.5)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("probe.enabled", true)
	v.SetDefault("probe.respect_robots", false)
	v.SetDefault("probe.timeout_seconds", 15)
	v.SetDefault("probe.promotion_threshold", 2048)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.settle_delay_ms", 500)
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("publisher.enabled", false)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.ListingURL == "" {
		return fmt.Errorf("crawler.listing_url is required")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.IntervalMinutes <= 0 {
		return fmt.Errorf("crawler.interval_minutes must be > 0")
	}
	if c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0")
	}
	switch c.Archive.Backend {
	case "", "none":
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required for the local backend")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend must be none, local, or gcs")
	}
	if c.Publisher.Enabled {
		if c.Publisher.ProjectID == "" || c.Publisher.TopicName == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic_name are required when publishing is enabled")
		}
	}
	return nil
}

// Interval returns the scheduler period.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Crawler.IntervalMinutes) * time.Minute
}

// RunTimeout returns the per-run deadline.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Crawler.RunTimeoutMinutes) * time.Minute
}
