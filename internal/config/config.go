// Package config handles configuration loading from YAML files, .env files
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/exposure-scanner/autoscan/internal/scheduler"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Event transports.
const (
	TransportNone     = "none"
	TransportRabbitMQ = "rabbitmq"
	TransportNATS     = "nats"
)

// Config holds all configuration for the exposure scanner service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Threats   ThreatsConfig   `mapstructure:"threats"`
	Events    EventsConfig    `mapstructure:"events"`
	History   HistoryConfig   `mapstructure:"history"`
	Callback  CallbackConfig  `mapstructure:"callback"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	APIKey       string `mapstructure:"api_key"`
}

// SchedulerConfig holds the autonomous scan scheduler settings. Sites, when
// non-empty, replaces the embedded broker catalog.
type SchedulerConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	IntervalHours      float64  `mapstructure:"interval_hours"`
	MaxConcurrentScans int      `mapstructure:"max_concurrent_scans"`
	RetryAttempts      int      `mapstructure:"retry_attempts"`
	TimeoutMS          int      `mapstructure:"timeout_ms"`
	ScheduleOnHour     bool     `mapstructure:"schedule_on_hour"`
	BatchPauseMS       int      `mapstructure:"batch_pause_ms"`
	PhaseUnitMS        int      `mapstructure:"phase_unit_ms"`
	ProbeMinDelayMS    int      `mapstructure:"probe_min_delay_ms"`
	ProbeMaxDelayMS    int      `mapstructure:"probe_max_delay_ms"`
	RateLimit          int      `mapstructure:"rate_limit"`
	Sites              []string `mapstructure:"sites"`
}

// ThreatsConfig holds threat generator settings. A zero seed draws a fresh
// seed per process.
type ThreatsConfig struct {
	Seed uint64 `mapstructure:"seed"`
}

// EventsConfig selects the broker that scheduler events are forwarded to.
type EventsConfig struct {
	Transport     string `mapstructure:"transport"`
	URL           string `mapstructure:"url"`
	Exchange      string `mapstructure:"exchange"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// HistoryConfig holds Redis history settings.
type HistoryConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxEntries int    `mapstructure:"max_entries"`
	TTLHours   int    `mapstructure:"ttl_hours"`
}

// CallbackConfig holds webhook URLs notified of cycle progress and completion.
type CallbackConfig struct {
	ProgressURL string `mapstructure:"progress_url"`
	CompleteURL string `mapstructure:"complete_url"`
	APIKey      string `mapstructure:"api_key"`
}

// Enabled reports whether any callback URL is configured.
func (c CallbackConfig) Enabled() bool {
	return c.ProgressURL != "" || c.CompleteURL != ""
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from files and environment variables. A .env file
// in the working directory is applied to the environment first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/exposure-scanner/")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("SCANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional broker and cache variables, used when the prefixed ones are unset.
	_ = v.BindEnv("events.url", "SCANNER_EVENTS_URL", "RABBITMQ_URL", "NATS_URL")
	_ = v.BindEnv("history.addr", "SCANNER_HISTORY_ADDR", "REDIS_ADDR")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Events.Transport = strings.ToLower(strings.TrimSpace(cfg.Events.Transport))

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8010)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.api_key", "")

	// Scheduler defaults
	d := scheduler.DefaultConfig()
	v.SetDefault("scheduler.enabled", d.Enabled)
	v.SetDefault("scheduler.interval_hours", d.IntervalHours)
	v.SetDefault("scheduler.max_concurrent_scans", d.MaxConcurrentScans)
	v.SetDefault("scheduler.retry_attempts", d.RetryAttempts)
	v.SetDefault("scheduler.timeout_ms", d.TimeoutMS)
	v.SetDefault("scheduler.schedule_on_hour", d.ScheduleOnHour)
	v.SetDefault("scheduler.batch_pause_ms", d.BatchPauseMS)
	v.SetDefault("scheduler.phase_unit_ms", d.PhaseUnitMS)
	v.SetDefault("scheduler.probe_min_delay_ms", d.ProbeMinDelayMS)
	v.SetDefault("scheduler.probe_max_delay_ms", d.ProbeMaxDelayMS)
	v.SetDefault("scheduler.rate_limit", d.RateLimit)
	v.SetDefault("scheduler.sites", []string{})

	v.SetDefault("threats.seed", 0)

	// Event forwarding defaults
	v.SetDefault("events.transport", TransportNone)
	v.SetDefault("events.url", "")
	v.SetDefault("events.exchange", "exposure.events")
	v.SetDefault("events.subject_prefix", "exposure")

	// History defaults
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.addr", "localhost:6379")
	v.SetDefault("history.password", "")
	v.SetDefault("history.db", 0)
	v.SetDefault("history.max_entries", 200)
	v.SetDefault("history.ttl_hours", 72)

	// Callback defaults
	v.SetDefault("callback.progress_url", "")
	v.SetDefault("callback.complete_url", "")
	v.SetDefault("callback.api_key", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate reports every setting that would leave a component unusable.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	s := c.Scheduler
	if s.IntervalHours <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.interval_hours must be positive, got %v", s.IntervalHours))
	}
	if s.MaxConcurrentScans <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.max_concurrent_scans must be positive, got %d", s.MaxConcurrentScans))
	}
	if s.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("scheduler.retry_attempts must not be negative, got %d", s.RetryAttempts))
	}
	if s.TimeoutMS < 0 || s.BatchPauseMS < 0 || s.PhaseUnitMS < 0 || s.RateLimit < 0 {
		errs = append(errs, errors.New("scheduler durations and rate_limit must not be negative"))
	}
	if s.ProbeMinDelayMS < 0 || s.ProbeMaxDelayMS < s.ProbeMinDelayMS {
		errs = append(errs, fmt.Errorf("scheduler probe delay range [%d, %d] is invalid", s.ProbeMinDelayMS, s.ProbeMaxDelayMS))
	}

	switch c.Events.Transport {
	case "", TransportNone:
	case TransportRabbitMQ, TransportNATS:
		if c.Events.URL == "" {
			errs = append(errs, fmt.Errorf("events.url is required for transport %q", c.Events.Transport))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events.transport %q", c.Events.Transport))
	}

	if c.History.Enabled {
		if c.History.Addr == "" {
			errs = append(errs, errors.New("history.addr is required when history is enabled"))
		}
		if c.History.MaxEntries <= 0 {
			errs = append(errs, fmt.Errorf("history.max_entries must be positive, got %d", c.History.MaxEntries))
		}
	}

	for key, raw := range map[string]string{
		"callback.progress_url": c.Callback.ProgressURL,
		"callback.complete_url": c.Callback.CompleteURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s %q is not an absolute URL", key, raw))
		}
	}

	return errors.Join(errs...)
}

// ToScheduler converts the scheduler section into the scheduler's own config.
func (s SchedulerConfig) ToScheduler() scheduler.Config {
	return scheduler.Config{
		Enabled:            s.Enabled,
		IntervalHours:      s.IntervalHours,
		MaxConcurrentScans: s.MaxConcurrentScans,
		RetryAttempts:      s.RetryAttempts,
		TimeoutMS:          s.TimeoutMS,
		ScheduleOnHour:     s.ScheduleOnHour,
		BatchPauseMS:       s.BatchPauseMS,
		PhaseUnitMS:        s.PhaseUnitMS,
		ProbeMinDelayMS:    s.ProbeMinDelayMS,
		ProbeMaxDelayMS:    s.ProbeMaxDelayMS,
		RateLimit:          s.RateLimit,
	}
}
