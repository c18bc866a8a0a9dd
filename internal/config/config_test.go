package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	require.Equal(t, "links.xlsx", cfg.Input.Path)
	require.Equal(t, 1, cfg.Input.StartRow)
	require.Equal(t, 0, cfg.Input.EndRow)
	require.Equal(t, "scraped_app_data.xlsx", cfg.Output.Path)
	require.Equal(t, "failed_links.xlsx", cfg.Output.FailedPath)
	require.True(t, cfg.Output.Formatting)
	require.False(t, cfg.Output.PersistFailures)
	require.Equal(t, 1, cfg.Scrape.WorkerCount)
	require.Equal(t, 0, cfg.Scrape.MaxRetries)
	require.Equal(t, time.Second, cfg.Delay())
	require.False(t, cfg.Headless.Visible)
	require.Equal(t, 30*time.Second, cfg.NavTimeout())
	require.True(t, cfg.Headless.BlockResources)
	require.Equal(t, "none", cfg.Snapshot.Backend)
	require.Equal(t, "pages", cfg.Snapshot.Prefix)
	require.Equal(t, "scrape_runs", cfg.DB.RunsTable)
	require.Equal(t, "scrape_outcomes", cfg.DB.OutcomesTable)
	require.Empty(t, cfg.Status.Addr)
	require.True(t, cfg.Logging.Development)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input:
  path: my_links.xlsx
  start_row: 10
  end_row: 50
scrape:
  worker_count: 4
  max_retries: 2
  delay_seconds: 0
snapshot:
  backend: local
  base_dir: /tmp/pages
`), 0o644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, "my_links.xlsx", cfg.Input.Path)
	require.Equal(t, 10, cfg.Input.StartRow)
	require.Equal(t, 50, cfg.Input.EndRow)
	require.Equal(t, 4, cfg.Scrape.WorkerCount)
	require.Equal(t, 2, cfg.Scrape.MaxRetries)
	require.Zero(t, cfg.Delay())
	require.Equal(t, "local", cfg.Snapshot.Backend)
}

func TestLoadFlagOverridesWin(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("input.path", "from_flag.xlsx")
	v.Set("scrape.worker_count", 8)

	cfg, err := Load(v, "")
	require.NoError(t, err)
	require.Equal(t, "from_flag.xlsx", cfg.Input.Path)
	require.Equal(t, 8, cfg.Scrape.WorkerCount)
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Parallel()

	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Input:    InputConfig{Path: "links.xlsx", StartRow: 1},
			Output:   OutputConfig{Path: "out.xlsx"},
			Scrape:   ScrapeConfig{WorkerCount: 1},
			Headless: HeadlessConfig{NavTimeoutSec: 30},
			Snapshot: SnapshotConfig{Backend: "none"},
		}
	}
	require.NoError(t, valid().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing input path", func(c *Config) { c.Input.Path = " " }},
		{"missing output path", func(c *Config) { c.Output.Path = "" }},
		{"negative start row", func(c *Config) { c.Input.StartRow = -1 }},
		{"inverted row range", func(c *Config) { c.Input.StartRow = 9; c.Input.EndRow = 3 }},
		{"zero workers", func(c *Config) { c.Scrape.WorkerCount = 0 }},
		{"negative retries", func(c *Config) { c.Scrape.MaxRetries = -1 }},
		{"zero nav timeout", func(c *Config) { c.Headless.NavTimeoutSec = 0 }},
		{"unknown snapshot backend", func(c *Config) { c.Snapshot.Backend = "s3" }},
		{"local backend without base dir", func(c *Config) { c.Snapshot.Backend = "local" }},
		{"gcs backend without bucket", func(c *Config) { c.Snapshot.Backend = "gcs" }},
		{"topic without project", func(c *Config) { c.PubSub.TopicName = "events" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
