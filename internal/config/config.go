// Package config loads and validates the corpus builder configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Archive drivers.
const (
	ArchiveNone   = "none"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
	ArchiveMemory = "memory"
)

// Config captures every configuration knob loaded via Viper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Builder BuilderConfig `mapstructure:"builder"`
	Store   StoreConfig   `mapstructure:"store"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Publish PublishConfig `mapstructure:"publish"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SiteConfig locates the site being extracted.
type SiteConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	IndexPath string `mapstructure:"index_path"`
}

// HTTPConfig configures the fetcher.
type HTTPConfig struct {
	UserAgent         string  `mapstructure:"user_agent"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	MaxRetries        int     `mapstructure:"max_retries"`
	BackoffInitialMs  int     `mapstructure:"backoff_initial_ms"`
	RespectRobots     bool    `mapstructure:"respect_robots"`
}

// BuilderConfig controls a run.
type BuilderConfig struct {
	BatchSize int      `mapstructure:"batch_size"`
	Rebuild   bool     `mapstructure:"rebuild"`
	Poets     []string `mapstructure:"poets"`
}

// StoreConfig selects the tabular sink.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// ArchiveConfig selects where raw pages are archived.
type ArchiveConfig struct {
	Driver  string `mapstructure:"driver"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// PublishConfig holds Pub/Sub notification settings. An empty topic disables
// publishing.
type PublishConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional file and POESIE_* variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POESIE")
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
	v.SetDefault("site.base_url", "https://www.poesie-francaise.fr/")
	v.SetDefault("site.index_path", "poemes-auteurs/")
	v.SetDefault("http.user_agent", "poesie-francaise-scraper/1.0")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.requests_per_second", 2)
	v.SetDefault("http.burst", 1)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 500)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("builder.batch_size", 100)
	v.SetDefault("builder.rebuild", true)
	v.SetDefault("builder.poets", []string{})
	v.SetDefault("store.driver", StoreSQLite)
	v.SetDefault("store.path", "poesie_francaise.sqlite")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("archive.driver", ArchiveNone)
	v.SetDefault("archive.base_dir", "archive")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("publish.topic", "")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute url, got %q", c.Site.BaseURL)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.Builder.BatchSize <= 0 {
		return fmt.Errorf("builder.batch_size must be > 0")
	}

	switch c.Store.Driver {
	case StoreSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	switch c.Archive.Driver {
	case ArchiveNone, ArchiveMemory, "":
	case ArchiveLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required for the local driver")
		}
	case ArchiveGCS:
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required for the gcs driver")
		}
	default:
		return fmt.Errorf("unknown archive.driver %q", c.Archive.Driver)
	}

	if c.Publish.Topic != "" && c.Publish.ProjectID == "" {
		return fmt.Errorf("publish.project_id must be set when publish.topic is set")
	}
	return nil
}

// Timeout returns the per-request HTTP timeout.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Backoff returns the first retry delay.
func (c HTTPConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}
