package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/exposure-scanner/autoscan/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8010, cfg.Server.Port)
	assert.Equal(t, TransportNone, cfg.Events.Transport)
	assert.False(t, cfg.History.Enabled)
	assert.False(t, cfg.Callback.Enabled())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, scheduler.DefaultConfig(), cfg.Scheduler.ToScheduler())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := []byte(`
scheduler:
  interval_hours: 6
  max_concurrent_scans: 3
  sites:
    - spokeo.com
    - radaris.com
events:
  transport: NATS
  url: nats://localhost:4222
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("SCANNER_SCHEDULER_MAX_CONCURRENT_SCANS", "8")
	t.Setenv("SCANNER_SERVER_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6.0, cfg.Scheduler.IntervalHours)
	assert.Equal(t, 8, cfg.Scheduler.MaxConcurrentScans)
	assert.Equal(t, []string{"spokeo.com", "radaris.com"}, cfg.Scheduler.Sites)
	assert.Equal(t, TransportNATS, cfg.Events.Transport)
	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REDIS_ADDR=cache:6380\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("REDIS_ADDR") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "cache:6380", cfg.History.Addr)
}

func validConfig() Config {
	return Config{
		Server:    ServerConfig{Port: 8010},
		Scheduler: SchedulerConfig{IntervalHours: 1, MaxConcurrentScans: 5, ProbeMinDelayMS: 10, ProbeMaxDelayMS: 20},
		Events:    EventsConfig{Transport: TransportNone},
		History:   HistoryConfig{Addr: "localhost:6379", MaxEntries: 10},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero interval", func(c *Config) { c.Scheduler.IntervalHours = 0 }, "interval_hours"},
		{"zero concurrency", func(c *Config) { c.Scheduler.MaxConcurrentScans = 0 }, "max_concurrent_scans"},
		{"negative retries", func(c *Config) { c.Scheduler.RetryAttempts = -1 }, "retry_attempts"},
		{"inverted probe delays", func(c *Config) { c.Scheduler.ProbeMinDelayMS = 50 }, "probe delay range"},
		{"broker without url", func(c *Config) { c.Events.Transport = TransportRabbitMQ }, "events.url"},
		{"unknown transport", func(c *Config) { c.Events.Transport = "kafka" }, "unknown events.transport"},
		{"history without entries", func(c *Config) {
			c.History.Enabled = true
			c.History.MaxEntries = 0
		}, "max_entries"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"relative callback url", func(c *Config) { c.Callback.CompleteURL = "/done" }, "callback.complete_url"},
		{"absolute callback url", func(c *Config) { c.Callback.ProgressURL = "https://hooks.example.com/progress" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
