// Package scheduler runs recurring, bounded-concurrency scan cycles over the
// broker site catalog and broadcasts lifecycle and progress events.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/exposure-scanner/autoscan/internal/random"
	"github.com/exposure-scanner/autoscan/internal/sites"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Scheduler owns the site catalog, the accumulated scan results and the
// subscriber set. The zero value is not usable; call New.
type Scheduler struct {
	catalog *sites.Catalog
	logger  *zap.SugaredLogger
	clock   clockwork.Clock
	rng     *random.Source
	prober  Prober
	bus     *bus

	// lifecycle serializes Start, Stop and UpdateConfig.
	lifecycle sync.Mutex

	mu          sync.RWMutex
	config      Config
	running     bool
	cancel      context.CancelFunc
	nextScan    time.Time
	limiter     *rate.Limiter
	lastCycleID int64
	wg          sync.WaitGroup

	// cycleSlot holds a token while a cycle runs; one cycle at a time.
	cycleSlot chan struct{}

	resultsMu sync.RWMutex
	results   []ScanResult
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithRand pins the random source used by the simulated prober.
func WithRand(rng *random.Source) Option {
	return func(s *Scheduler) { s.rng = rng }
}

// WithProber replaces the simulated prober.
func WithProber(p Prober) Option {
	return func(s *Scheduler) { s.prober = p }
}

// New creates a Scheduler. No scans run until Start or TriggerManualScan.
func New(cfg Config, catalog *sites.Catalog, logger *zap.SugaredLogger, opts ...Option) *Scheduler {
	s := &Scheduler{
		catalog: catalog,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
		config:  cfg,
		bus:     newBus(logger),

		cycleSlot: make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.rng == nil {
		s.rng = random.NewUnseeded()
	}
	if s.prober == nil {
		s.prober = NewSimulatedProber(s.clock, s.rng,
			time.Duration(cfg.ProbeMinDelayMS)*time.Millisecond,
			time.Duration(cfg.ProbeMaxDelayMS)*time.Millisecond,
		)
	}
	s.limiter = newLimiter(cfg.RateLimit)

	return s
}

func newLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}

// Subscribe registers h for every event and returns a function that removes it.
func (s *Scheduler) Subscribe(h Handler) (unsubscribe func()) {
	return s.bus.subscribe(h)
}

func (s *Scheduler) emit(e Event) {
	s.bus.publish(e)
}

// Sites returns the catalog entries.
func (s *Scheduler) Sites() []sites.Site {
	return s.catalog.Sites()
}

// Config returns the current configuration.
func (s *Scheduler) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// IsRunning reports whether the recurring schedule is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Start runs one cycle immediately and then arms the recurring schedule.
// It returns once the schedule goroutine is launched. Calling Start while
// running or while disabled is a logged no-op.
func (s *Scheduler) Start() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.start()
}

func (s *Scheduler) start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Infow("Auto scan already running")
		return
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Infow("Auto scan disabled, not starting")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	cfg := s.config
	s.mu.Unlock()

	s.logger.Infow("Starting auto scan",
		"total_sites", s.catalog.Len(),
		"interval_hours", cfg.IntervalHours,
		"max_concurrent_scans", cfg.MaxConcurrentScans,
	)

	s.emit(ScanStarted{
		TotalSites:    s.catalog.Len(),
		IntervalHours: cfg.IntervalHours,
		Timestamp:     s.clock.Now(),
	})

	s.wg.Add(1)
	go s.run(ctx, cfg)
}

// Stop cancels the schedule and waits for the schedule goroutine to exit.
// Probes already in flight finish and are recorded. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stop()
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.nextScan = time.Time{}
	s.mu.Unlock()

	s.logger.Info("Stopping auto scan")
	cancel()
	s.wg.Wait()

	s.emit(ScanStopped{Timestamp: s.clock.Now()})
	s.logger.Info("Auto scan stopped")
}

func (s *Scheduler) run(ctx context.Context, cfg Config) {
	defer s.wg.Done()

	interval := cfg.interval()
	now := s.clock.Now()
	first := now.Add(interval)
	if cfg.ScheduleOnHour {
		first = now.Add(NextAlignedDelay(now))
	}
	s.setNextScan(first)

	s.runCycle(ctx)
	s.scheduleHourlyScans(ctx, first, interval)
}

// scheduleHourlyScans waits for the first scheduled tick, runs a cycle, then
// repeats every interval until ctx is cancelled.
func (s *Scheduler) scheduleHourlyScans(ctx context.Context, first time.Time, interval time.Duration) {
	delay := first.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	timer := s.clock.NewTimer(delay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return
	case fired := <-timer.Chan():
		s.setNextScan(fired.Add(interval))
	}

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.Chan():
			s.setNextScan(tick.Add(interval))
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) setNextScan(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.nextScan = t
	}
}

func (s *Scheduler) nextScanTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running || s.nextScan.IsZero() {
		return nil
	}
	next := s.nextScan
	return &next
}

// RunScanCycle runs one cycle if the schedule is active. The boolean is false
// when the call was a no-op.
func (s *Scheduler) RunScanCycle(ctx context.Context) (CycleSummary, bool) {
	if !s.IsRunning() {
		s.logger.Infow("Scan cycle requested while auto scan is stopped, skipping")
		return CycleSummary{}, false
	}
	return s.runCycle(ctx)
}

// TriggerManualScan runs one cycle now, independent of the schedule, and
// returns its summary once complete.
func (s *Scheduler) TriggerManualScan(ctx context.Context) (CycleSummary, bool) {
	if !s.IsRunning() {
		s.emit(SitesLoaded{TotalSites: s.catalog.Len(), Timestamp: s.clock.Now()})
	}

	s.logger.Infow("Manual scan triggered")
	s.emit(ManualScanTriggered{Timestamp: s.clock.Now()})

	return s.runCycle(ctx)
}

// UpdateConfig merges patch into the configuration. When the schedule is
// running and the interval changed, the schedule is restarted.
func (s *Scheduler) UpdateConfig(patch ConfigPatch) Config {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	old := s.config
	merged, rejected := patch.apply(old)
	s.config = merged
	s.limiter = newLimiter(merged.RateLimit)
	running := s.running
	s.mu.Unlock()

	if len(rejected) > 0 {
		s.logger.Warnw("Ignored invalid config values", "fields", rejected)
	}

	s.logger.Infow("Scheduler config updated",
		"interval_hours", merged.IntervalHours,
		"max_concurrent_scans", merged.MaxConcurrentScans,
		"enabled", merged.Enabled,
	)
	s.emit(ConfigUpdated{Config: merged, Timestamp: s.clock.Now()})

	if running && merged.IntervalHours != old.IntervalHours {
		s.logger.Infow("Interval changed, restarting schedule",
			"old_interval_hours", old.IntervalHours,
			"new_interval_hours", merged.IntervalHours,
		)
		s.stop()
		s.start()
	}

	return merged
}

// CycleSummary is the tally of a finished cycle.
type CycleSummary struct {
	CycleID      int64         `json:"cycleId"`
	StartTime    time.Time     `json:"startTime"`
	Duration     time.Duration `json:"-"`
	DurationMS   int64         `json:"duration"`
	SuccessCount int           `json:"successCount"`
	ErrorCount   int           `json:"errorCount"`
	TotalSites   int           `json:"totalSites"`
	Batches      int           `json:"batches"`
	Cancelled    bool          `json:"cancelled"`
}

func (s *Scheduler) newCycleID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.clock.Now().UnixMilli()
	if id <= s.lastCycleID {
		id = s.lastCycleID + 1
	}
	s.lastCycleID = id
	return id
}

func (s *Scheduler) runCycle(ctx context.Context) (CycleSummary, bool) {
	if s.catalog.Len() == 0 {
		s.logger.Warnw("No sites loaded, skipping scan cycle")
		return CycleSummary{}, false
	}

	// Wait for any running cycle, but give up if ctx ends first.
	select {
	case s.cycleSlot <- struct{}{}:
	case <-ctx.Done():
		return CycleSummary{}, false
	}
	defer func() { <-s.cycleSlot }()

	if ctx.Err() != nil {
		return CycleSummary{}, false
	}

	cfg := s.Config()
	list := s.catalog.Sites()
	cycleID := s.newCycleID()
	start := s.clock.Now()

	s.logger.Infow("Scan cycle started", "cycle_id", cycleID, "total_sites", len(list))
	s.emit(CycleStarted{
		CycleID:    cycleID,
		TotalSites: len(list),
		Phases:     Phases(),
		Timestamp:  start,
	})

	summary := CycleSummary{
		CycleID:    cycleID,
		StartTime:  start,
		TotalSites: len(list),
	}

	if s.runPhases(ctx, cycleID, cfg, len(list)) {
		summary.SuccessCount, summary.ErrorCount, summary.Batches = s.sweepSites(ctx, cycleID, cfg, list)
	}

	summary.Cancelled = ctx.Err() != nil
	summary.Duration = s.clock.Since(start)
	summary.DurationMS = summary.Duration.Milliseconds()

	s.emit(CycleCompleted{
		CycleID:      cycleID,
		DurationMS:   summary.DurationMS,
		SuccessCount: summary.SuccessCount,
		ErrorCount:   summary.ErrorCount,
		TotalSites:   summary.TotalSites,
		Cancelled:    summary.Cancelled,
		NextScan:     s.nextScanTime(),
		Timestamp:    s.clock.Now(),
	})

	s.logger.Infow("Scan cycle completed",
		"cycle_id", cycleID,
		"duration_ms", summary.DurationMS,
		"success", summary.SuccessCount,
		"errors", summary.ErrorCount,
		"cancelled", summary.Cancelled,
	)

	return summary, true
}
