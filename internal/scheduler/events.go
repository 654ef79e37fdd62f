package scheduler

import (
	"time"

	"github.com/exposure-scanner/autoscan/internal/sites"
)

// EventType discriminates scheduler events. Consumers should ignore types they
// do not recognise.
type EventType string

const (
	EventSitesLoaded         EventType = "sites_loaded"
	EventScanStarted         EventType = "scan_started"
	EventScanStopped         EventType = "scan_stopped"
	EventManualScanTriggered EventType = "manual_scan_triggered"
	EventConfigUpdated       EventType = "config_updated"
	EventCycleStarted        EventType = "cycle_started"
	EventPhaseStarted        EventType = "phase_started"
	EventPhaseProgress       EventType = "phase_progress"
	EventPhaseCompleted      EventType = "phase_completed"
	EventCycleCompleted      EventType = "cycle_completed"
	EventSiteScanStarted     EventType = "site_scan_started"
	EventSiteScanCompleted   EventType = "site_scan_completed"
	EventSiteScanFailed      EventType = "site_scan_failed"
)

// Event is one of the concrete event structs declared in this file.
type Event interface {
	Type() EventType
	OccurredAt() time.Time
}

// Handler receives scheduler events.
type Handler func(Event)

// SitesLoaded is emitted when the catalog is (re)announced to subscribers.
type SitesLoaded struct {
	TotalSites int       `json:"totalSites"`
	Timestamp  time.Time `json:"timestamp"`
}

// ScanStarted is emitted when the recurring schedule starts.
type ScanStarted struct {
	TotalSites    int       `json:"totalSites"`
	IntervalHours float64   `json:"intervalHours"`
	Timestamp     time.Time `json:"timestamp"`
}

// ScanStopped is emitted when the recurring schedule stops.
type ScanStopped struct {
	Timestamp time.Time `json:"timestamp"`
}

// ManualScanTriggered precedes the cycle events of a manual run.
type ManualScanTriggered struct {
	Timestamp time.Time `json:"timestamp"`
}

// ConfigUpdated carries the configuration after a merge.
type ConfigUpdated struct {
	Config    Config    `json:"config"`
	Timestamp time.Time `json:"timestamp"`
}

// CycleStarted opens a scan cycle.
type CycleStarted struct {
	CycleID    int64     `json:"cycleId"`
	TotalSites int       `json:"totalSites"`
	Phases     []Phase   `json:"phases"`
	Timestamp  time.Time `json:"timestamp"`
}

// PhaseStarted opens a phase of a cycle.
type PhaseStarted struct {
	CycleID     int64     `json:"cycleId"`
	Phase       string    `json:"phase"`
	PhaseIndex  int       `json:"phaseIndex"`
	TotalPhases int       `json:"totalPhases"`
	Description string    `json:"description"`
	TotalSites  int       `json:"totalSites"`
	Timestamp   time.Time `json:"timestamp"`
}

// PhaseProgress reports an estimated sites-processed count within a phase.
type PhaseProgress struct {
	CycleID        int64     `json:"cycleId"`
	Phase          string    `json:"phase"`
	PhaseIndex     int       `json:"phaseIndex"`
	Progress       int       `json:"progress"`
	SitesProcessed int       `json:"sitesProcessed"`
	TotalSites     int       `json:"totalSites"`
	Timestamp      time.Time `json:"timestamp"`
}

// PhaseCompleted closes a phase.
type PhaseCompleted struct {
	CycleID        int64     `json:"cycleId"`
	Phase          string    `json:"phase"`
	PhaseIndex     int       `json:"phaseIndex"`
	SitesProcessed int       `json:"sitesProcessed"`
	TotalSites     int       `json:"totalSites"`
	Timestamp      time.Time `json:"timestamp"`
}

// CycleCompleted closes a cycle. Cancelled is set when the scheduler was
// stopped mid-cycle, in which case the counts cover only the sites reached.
type CycleCompleted struct {
	CycleID      int64      `json:"cycleId"`
	DurationMS   int64      `json:"duration"`
	SuccessCount int        `json:"successCount"`
	ErrorCount   int        `json:"errorCount"`
	TotalSites   int        `json:"totalSites"`
	Cancelled    bool       `json:"cancelled,omitempty"`
	NextScan     *time.Time `json:"nextScan,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// SiteScanStarted is emitted before a site is probed.
type SiteScanStarted struct {
	CycleID    int64      `json:"cycleId"`
	Site       sites.Site `json:"site"`
	Index      int        `json:"index"`
	Batch      int        `json:"batch"`
	TotalSites int        `json:"totalSites"`
	Progress   int        `json:"progress"`
	Timestamp  time.Time  `json:"timestamp"`
}

// SiteScanCompleted is emitted when a site probe succeeded.
type SiteScanCompleted struct {
	CycleID    int64       `json:"cycleId"`
	Site       sites.Site  `json:"site"`
	Index      int         `json:"index"`
	Batch      int         `json:"batch"`
	Result     ProbeResult `json:"result"`
	Attempts   int         `json:"attempts"`
	DurationMS int64       `json:"duration"`
	Timestamp  time.Time   `json:"timestamp"`
}

// SiteScanFailed is emitted when a site stayed unavailable after all attempts.
type SiteScanFailed struct {
	CycleID    int64      `json:"cycleId"`
	Site       sites.Site `json:"site"`
	Index      int        `json:"index"`
	Batch      int        `json:"batch"`
	Error      string     `json:"error"`
	Attempts   int        `json:"attempts"`
	DurationMS int64      `json:"duration"`
	Timestamp  time.Time  `json:"timestamp"`
}

func (SitesLoaded) Type() EventType         { return EventSitesLoaded }
func (ScanStarted) Type() EventType         { return EventScanStarted }
func (ScanStopped) Type() EventType         { return EventScanStopped }
func (ManualScanTriggered) Type() EventType { return EventManualScanTriggered }
func (ConfigUpdated) Type() EventType       { return EventConfigUpdated }
func (CycleStarted) Type() EventType        { return EventCycleStarted }
func (PhaseStarted) Type() EventType        { return EventPhaseStarted }
func (PhaseProgress) Type() EventType       { return EventPhaseProgress }
func (PhaseCompleted) Type() EventType      { return EventPhaseCompleted }
func (CycleCompleted) Type() EventType      { return EventCycleCompleted }
func (SiteScanStarted) Type() EventType     { return EventSiteScanStarted }
func (SiteScanCompleted) Type() EventType   { return EventSiteScanCompleted }
func (SiteScanFailed) Type() EventType      { return EventSiteScanFailed }

func (e SitesLoaded) OccurredAt() time.Time         { return e.Timestamp }
func (e ScanStarted) OccurredAt() time.Time         { return e.Timestamp }
func (e ScanStopped) OccurredAt() time.Time         { return e.Timestamp }
func (e ManualScanTriggered) OccurredAt() time.Time { return e.Timestamp }
func (e ConfigUpdated) OccurredAt() time.Time       { return e.Timestamp }
func (e CycleStarted) OccurredAt() time.Time        { return e.Timestamp }
func (e PhaseStarted) OccurredAt() time.Time        { return e.Timestamp }
func (e PhaseProgress) OccurredAt() time.Time       { return e.Timestamp }
func (e PhaseCompleted) OccurredAt() time.Time      { return e.Timestamp }
func (e CycleCompleted) OccurredAt() time.Time      { return e.Timestamp }
func (e SiteScanStarted) OccurredAt() time.Time     { return e.Timestamp }
func (e SiteScanCompleted) OccurredAt() time.Time   { return e.Timestamp }
func (e SiteScanFailed) OccurredAt() time.Time      { return e.Timestamp }
