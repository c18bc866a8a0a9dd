// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Output   OutputConfig   `mapstructure:"output"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Status   StatusConfig   `mapstructure:"status"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// InputConfig locates the worklist.
type InputConfig struct {
	Path     string `mapstructure:"path"`
	StartRow int    `mapstructure:"start_row"`
	EndRow   int    `mapstructure:"end_row"`
}

// OutputConfig controls the result sinks.
type OutputConfig struct {
	Path            string `mapstructure:"path"`
	FailedPath      string `mapstructure:"failed_path"`
	PersistFailures bool   `mapstructure:"persist_failures"`
	Formatting      bool   `mapstructure:"formatting"`
}

// ScrapeConfig governs dispatcher and worker behavior.
type ScrapeConfig struct {
	WorkerCount  int `mapstructure:"worker_count"`
	MaxRetries   int `mapstructure:"max_retries"`
	DelaySeconds int `mapstructure:"delay_seconds"`
}

// HeadlessConfig configures the browser sessions.
type HeadlessConfig struct {
	Visible        bool   `mapstructure:"visible"`
	NavTimeoutSec  int    `mapstructure:"nav_timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	BlockResources bool   `mapstructure:"block_resources"`
	WaitExpression string `mapstructure:"wait_expression"`
}

// SnapshotConfig controls raw page archiving.
type SnapshotConfig struct {
	// Backend is one of "none", "local", "gcs".
	Backend string `mapstructure:"backend"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// DBConfig controls the optional Postgres run ledger.
type DBConfig struct {
	DSN           string `mapstructure:"dsn"`
	RunsTable     string `mapstructure:"runs_table"`
	OutcomesTable string `mapstructure:"outcomes_table"`
	MaxConns      int32  `mapstructure:"max_conns"`
	MinConns      int32  `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for run event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// StatusConfig controls the optional status HTTP server.
type StatusConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment, layered under any values
// already set on v (e.g. bound CLI flags).
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix("APPMETA")
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
	v.SetDefault("input.path", "links.xlsx")
	v.SetDefault("input.start_row", 1)
	v.SetDefault("input.end_row", 0)
	v.SetDefault("output.path", "scraped_app_data.xlsx")
	v.SetDefault("output.failed_path", "failed_links.xlsx")
	v.SetDefault("output.persist_failures", false)
	v.SetDefault("output.formatting", true)
	v.SetDefault("scrape.worker_count", 1)
	v.SetDefault("scrape.max_retries", 0)
	v.SetDefault("scrape.delay_seconds", 1)
	v.SetDefault("headless.visible", false)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.user_agent", "appmeta-scraper/0.1")
	v.SetDefault("headless.block_resources", true)
	v.SetDefault("snapshot.backend", "none")
	v.SetDefault("snapshot.prefix", "pages")
	v.SetDefault("db.runs_table", "scrape_runs")
	v.SetDefault("db.outcomes_table", "scrape_outcomes")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Input.Path) == "" {
		return fmt.Errorf("input.path is required")
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		return fmt.Errorf("output.path is required")
	}
	if c.Input.StartRow < 0 || c.Input.EndRow < 0 {
		return fmt.Errorf("input row range must be positive")
	}
	if c.Input.EndRow > 0 && c.Input.StartRow > c.Input.EndRow {
		return fmt.Errorf("input.start_row must not exceed input.end_row")
	}
	if c.Scrape.WorkerCount < 1 {
		return fmt.Errorf("scrape.worker_count must be >= 1")
	}
	if c.Scrape.MaxRetries < 0 {
		return fmt.Errorf("scrape.max_retries must be >= 0")
	}
	if c.Headless.NavTimeoutSec <= 0 {
		return fmt.Errorf("headless.nav_timeout_seconds must be > 0")
	}
	switch c.Snapshot.Backend {
	case "", "none":
	case "local":
		if strings.TrimSpace(c.Snapshot.BaseDir) == "" {
			return fmt.Errorf("snapshot.base_dir must be set when snapshot.backend is local")
		}
	case "gcs":
		if strings.TrimSpace(c.Snapshot.Bucket) == "" {
			return fmt.Errorf("snapshot.bucket must be set when snapshot.backend is gcs")
		}
	default:
		return fmt.Errorf("snapshot.backend must be one of none, local, gcs")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// Delay is the politeness pause between items within a shard.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Scrape.DelaySeconds) * time.Second
}

// NavTimeout is the per-navigation budget for the browser.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
