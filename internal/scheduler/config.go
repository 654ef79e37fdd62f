package scheduler

import (
	"time"
)

// Config controls the cadence and pacing of scan cycles.
type Config struct {
	Enabled            bool    `json:"enabled"`
	IntervalHours      float64 `json:"interval_hours"`
	MaxConcurrentScans int     `json:"max_concurrent_scans"`
	RetryAttempts      int     `json:"retry_attempts"`
	TimeoutMS          int     `json:"timeout_ms"`
	ScheduleOnHour     bool    `json:"schedule_on_hour"`

	// Pacing of the simulated work. Zero disables the corresponding delay.
	BatchPauseMS    int `json:"batch_pause_ms"`
	PhaseUnitMS     int `json:"phase_unit_ms"`
	ProbeMinDelayMS int `json:"probe_min_delay_ms"`
	ProbeMaxDelayMS int `json:"probe_max_delay_ms"`

	// RateLimit caps probe attempts per second across a cycle; 0 means unlimited.
	RateLimit int `json:"rate_limit"`
}

// DefaultConfig returns the stock scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		IntervalHours:      1,
		MaxConcurrentScans: 5,
		RetryAttempts:      2,
		TimeoutMS:          30000,
		ScheduleOnHour:     true,
		BatchPauseMS:       500,
		PhaseUnitMS:        200,
		ProbeMinDelayMS:    200,
		ProbeMaxDelayMS:    500,
	}
}

// ConfigPatch is a partial update; nil fields are left untouched.
type ConfigPatch struct {
	Enabled            *bool    `json:"enabled,omitempty"`
	IntervalHours      *float64 `json:"interval_hours,omitempty"`
	MaxConcurrentScans *int     `json:"max_concurrent_scans,omitempty"`
	RetryAttempts      *int     `json:"retry_attempts,omitempty"`
	TimeoutMS          *int     `json:"timeout_ms,omitempty"`
	ScheduleOnHour     *bool    `json:"schedule_on_hour,omitempty"`
	BatchPauseMS       *int     `json:"batch_pause_ms,omitempty"`
}

// apply merges the patch into c. Out-of-range values are reported in rejected
// and leave the current value in place.
func (p ConfigPatch) apply(c Config) (merged Config, rejected []string) {
	merged = c

	if p.Enabled != nil {
		merged.Enabled = *p.Enabled
	}
	if p.IntervalHours != nil {
		if *p.IntervalHours > 0 {
			merged.IntervalHours = *p.IntervalHours
		} else {
			rejected = append(rejected, "interval_hours")
		}
	}
	if p.MaxConcurrentScans != nil {
		if *p.MaxConcurrentScans > 0 {
			merged.MaxConcurrentScans = *p.MaxConcurrentScans
		} else {
			rejected = append(rejected, "max_concurrent_scans")
		}
	}
	if p.RetryAttempts != nil {
		if *p.RetryAttempts >= 0 {
			merged.RetryAttempts = *p.RetryAttempts
		} else {
			rejected = append(rejected, "retry_attempts")
		}
	}
	if p.TimeoutMS != nil {
		if *p.TimeoutMS >= 0 {
			merged.TimeoutMS = *p.TimeoutMS
		} else {
			rejected = append(rejected, "timeout_ms")
		}
	}
	if p.ScheduleOnHour != nil {
		merged.ScheduleOnHour = *p.ScheduleOnHour
	}
	if p.BatchPauseMS != nil {
		if *p.BatchPauseMS >= 0 {
			merged.BatchPauseMS = *p.BatchPauseMS
		} else {
			rejected = append(rejected, "batch_pause_ms")
		}
	}

	return merged, rejected
}

func (c Config) interval() time.Duration {
	if c.IntervalHours <= 0 {
		return time.Hour
	}
	return time.Duration(c.IntervalHours * float64(time.Hour))
}

func (c Config) batchSize() int {
	if c.MaxConcurrentScans < 1 {
		return 1
	}
	return c.MaxConcurrentScans
}

func (c Config) attempts() int {
	if c.RetryAttempts < 0 {
		return 1
	}
	return c.RetryAttempts + 1
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c Config) batchPause() time.Duration {
	return time.Duration(c.BatchPauseMS) * time.Millisecond
}

func (c Config) phaseUnit() time.Duration {
	return time.Duration(c.PhaseUnitMS) * time.Millisecond
}
