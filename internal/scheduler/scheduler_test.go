package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/exposure-scanner/autoscan/internal/random"
	"github.com/exposure-scanner/autoscan/internal/sites"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// instantConfig disables every artificial delay.
func instantConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchPauseMS = 0
	cfg.PhaseUnitMS = 0
	cfg.ProbeMinDelayMS = 0
	cfg.ProbeMaxDelayMS = 0
	return cfg
}

func siteNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("broker%02d.com", i+1)
	}
	return names
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) ofType(t EventType) []Event {
	var out []Event
	for _, e := range r.all() {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) types() []EventType {
	var out []EventType
	for _, e := range r.all() {
		out = append(out, e.Type())
	}
	return out
}

// stubProber fails the configured sites a fixed number of times and tracks
// how many probes overlap.
type stubProber struct {
	mu        sync.Mutex
	failures  map[string]int
	calls     map[string]int
	hold      time.Duration
	inFlight  int32
	maxFlight int32
}

func newStubProber(failures map[string]int) *stubProber {
	if failures == nil {
		failures = map[string]int{}
	}
	return &stubProber{failures: failures, calls: map[string]int{}}
}

func (p *stubProber) Probe(ctx context.Context, site sites.Site) (ProbeResult, error) {
	n := atomic.AddInt32(&p.inFlight, 1)
	defer atomic.AddInt32(&p.inFlight, -1)
	for {
		cur := atomic.LoadInt32(&p.maxFlight)
		if n <= cur || atomic.CompareAndSwapInt32(&p.maxFlight, cur, n) {
			break
		}
	}

	if p.hold > 0 {
		time.Sleep(p.hold)
	}

	p.mu.Lock()
	p.calls[site.Name]++
	fail := p.failures[site.Name] > 0
	if fail {
		p.failures[site.Name]--
	}
	p.mu.Unlock()

	if fail {
		return ProbeResult{}, ErrSiteUnavailable
	}
	return ProbeResult{Accessible: true, Status: "scanned", Findings: &Findings{}}, nil
}

func (p *stubProber) callsFor(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

func newTestScheduler(t *testing.T, cfg Config, names []string, opts ...Option) (*Scheduler, *recorder) {
	t.Helper()
	s := New(cfg, sites.NewCatalog(names), zap.NewNop().Sugar(), opts...)
	rec := &recorder{}
	unsubscribe := s.Subscribe(rec.handle)
	t.Cleanup(func() {
		s.Stop()
		unsubscribe()
	})
	return s, rec
}

func TestTriggerManualScan_TwelveSitesInThreeBatches(t *testing.T) {
	cfg := instantConfig()
	cfg.MaxConcurrentScans = 5
	s, rec := newTestScheduler(t, cfg, siteNames(12), WithProber(newStubProber(nil)))

	summary, ran := s.TriggerManualScan(context.Background())
	require.True(t, ran)

	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 12, summary.TotalSites)
	assert.Equal(t, 12, summary.SuccessCount)
	assert.Equal(t, 0, summary.ErrorCount)
	assert.False(t, summary.Cancelled)

	batchSizes := map[int]int{}
	for _, e := range rec.ofType(EventSiteScanStarted) {
		batchSizes[e.(SiteScanStarted).Batch]++
	}
	assert.Equal(t, map[int]int{0: 5, 1: 5, 2: 2}, batchSizes)

	completed := rec.ofType(EventCycleCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, 12, completed[0].(CycleCompleted).TotalSites)

	types := rec.types()
	require.GreaterOrEqual(t, len(types), 3)
	assert.Equal(t, EventSitesLoaded, types[0])
	assert.Equal(t, EventManualScanTriggered, types[1])
	assert.Equal(t, EventCycleStarted, types[2])
	assert.Equal(t, EventCycleCompleted, types[len(types)-1])
}

func TestSweep_BatchSettlesBeforeNextBatch(t *testing.T) {
	for _, tc := range []struct{ n, k int }{{1, 1}, {7, 3}, {10, 5}, {13, 4}, {4, 10}} {
		t.Run(fmt.Sprintf("n=%d,k=%d", tc.n, tc.k), func(t *testing.T) {
			cfg := instantConfig()
			cfg.MaxConcurrentScans = tc.k
			prober := newStubProber(nil)
			prober.hold = 2 * time.Millisecond
			s, rec := newTestScheduler(t, cfg, siteNames(tc.n), WithProber(prober))

			summary, _ := s.TriggerManualScan(context.Background())
			assert.Equal(t, (tc.n+tc.k-1)/tc.k, summary.Batches)
			assert.LessOrEqual(t, int(atomic.LoadInt32(&prober.maxFlight)), tc.k)

			settled := map[int]int{}
			sizes := map[int]int{}
			for _, e := range rec.all() {
				switch ev := e.(type) {
				case SiteScanStarted:
					sizes[ev.Batch]++
					if ev.Batch > 0 {
						assert.Equal(t, sizes[ev.Batch-1], settled[ev.Batch-1],
							"batch %d started before batch %d settled", ev.Batch, ev.Batch-1)
					}
				case SiteScanCompleted:
					settled[ev.Batch]++
				case SiteScanFailed:
					settled[ev.Batch]++
				}
			}
		})
	}
}

func TestCycle_CountsCoverEverySite(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		cfg := instantConfig()
		cfg.RetryAttempts = 0
		s, _ := newTestScheduler(t, cfg, siteNames(17), WithRand(random.New(seed)))

		summary, ran := s.TriggerManualScan(context.Background())
		require.True(t, ran)
		assert.Equal(t, 17, summary.SuccessCount+summary.ErrorCount, "seed %d", seed)
	}
}

func TestScanSite_RetriesThenFails(t *testing.T) {
	cfg := instantConfig()
	cfg.RetryAttempts = 2
	prober := newStubProber(map[string]int{"broker02.com": 10})
	s, rec := newTestScheduler(t, cfg, siteNames(3), WithProber(prober))

	summary, _ := s.TriggerManualScan(context.Background())

	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.ErrorCount)
	assert.Equal(t, 3, prober.callsFor("broker02.com"))

	failed := rec.ofType(EventSiteScanFailed)
	require.Len(t, failed, 1)
	ev := failed[0].(SiteScanFailed)
	assert.Equal(t, "broker02.com", ev.Site.Name)
	assert.Equal(t, 3, ev.Attempts)
	assert.Contains(t, ev.Error, ErrSiteUnavailable.Error())
}

func TestScanSite_RetryRecovers(t *testing.T) {
	cfg := instantConfig()
	cfg.RetryAttempts = 2
	prober := newStubProber(map[string]int{"broker01.com": 1})
	s, _ := newTestScheduler(t, cfg, siteNames(1), WithProber(prober))

	summary, _ := s.TriggerManualScan(context.Background())

	assert.Equal(t, 1, summary.SuccessCount)
	results := s.RecentResults(1)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 2, results[0].Attempts)
}

type unreachableProber struct{}

func (unreachableProber) Probe(context.Context, sites.Site) (ProbeResult, error) {
	return ProbeResult{Accessible: false, Status: "unavailable"}, nil
}

func TestScanSite_InaccessibleSiteCompletes(t *testing.T) {
	cfg := instantConfig()
	cfg.RetryAttempts = 2
	s, rec := newTestScheduler(t, cfg, siteNames(3), WithProber(unreachableProber{}))

	summary, _ := s.TriggerManualScan(context.Background())

	assert.Equal(t, 3, summary.SuccessCount)
	assert.Equal(t, 0, summary.ErrorCount)
	assert.Empty(t, rec.ofType(EventSiteScanFailed))

	completed := rec.ofType(EventSiteScanCompleted)
	require.Len(t, completed, 3)
	for _, e := range completed {
		ev := e.(SiteScanCompleted)
		assert.False(t, ev.Result.Accessible)
		assert.Equal(t, "unavailable", ev.Result.Status)
		assert.Equal(t, 1, ev.Attempts)
	}
	for _, r := range s.RecentResults(0) {
		assert.True(t, r.Success)
		require.NotNil(t, r.Result)
		assert.False(t, r.Result.Accessible)
	}
}

func TestTriggerManualScan_SimulatedUnavailableSitesAreReported(t *testing.T) {
	cfg := instantConfig()
	cfg.RetryAttempts = 2
	s, rec := newTestScheduler(t, cfg, siteNames(40), WithRand(random.New(11)))

	for range 25 {
		_, ran := s.TriggerManualScan(context.Background())
		require.True(t, ran)
	}

	inaccessible := 0
	completed := rec.ofType(EventSiteScanCompleted)
	for _, e := range completed {
		if !e.(SiteScanCompleted).Result.Accessible {
			inaccessible++
		}
	}

	assert.Len(t, completed, 1000)
	assert.Empty(t, rec.ofType(EventSiteScanFailed))
	assert.InDelta(t, 0.10, float64(inaccessible)/1000, 0.03)
}

type blockingProber struct{}

func (blockingProber) Probe(ctx context.Context, _ sites.Site) (ProbeResult, error) {
	<-ctx.Done()
	return ProbeResult{}, ctx.Err()
}

func TestScanSite_HonoursTimeout(t *testing.T) {
	cfg := instantConfig()
	cfg.RetryAttempts = 0
	cfg.TimeoutMS = 10
	s, _ := newTestScheduler(t, cfg, siteNames(2), WithProber(blockingProber{}))

	summary, _ := s.TriggerManualScan(context.Background())

	assert.Equal(t, 2, summary.ErrorCount)
	for _, r := range s.RecentResults(0) {
		assert.False(t, r.Success)
		assert.Contains(t, r.Error, context.DeadlineExceeded.Error())
	}
}

func TestStats(t *testing.T) {
	cfg := instantConfig()
	cfg.RetryAttempts = 0
	prober := newStubProber(map[string]int{"broker04.com": 1})
	s, _ := newTestScheduler(t, cfg, siteNames(4), WithProber(prober))

	empty := s.Stats()
	assert.Equal(t, 0, empty.TotalScans)
	assert.Equal(t, 0.0, empty.SuccessRate)
	assert.Nil(t, empty.LastScan)
	assert.Nil(t, empty.NextScan)
	assert.Equal(t, 4, empty.TotalSites)

	s.TriggerManualScan(context.Background())

	stats := s.Stats()
	assert.False(t, stats.IsActive)
	assert.Equal(t, 4, stats.TotalScans)
	assert.Equal(t, 3, stats.SuccessfulScans)
	assert.Equal(t, 1, stats.FailedScans)
	assert.InDelta(t, 75.0, stats.SuccessRate, 0.0001)
	assert.NotNil(t, stats.LastScan)
	assert.Equal(t, cfg, stats.Config)
}

func TestRecentResults_NewestFirst(t *testing.T) {
	s, _ := newTestScheduler(t, instantConfig(), siteNames(12), WithProber(newStubProber(nil)))

	s.TriggerManualScan(context.Background())

	recent := s.RecentResults(0)
	require.Len(t, recent, 10)

	all := s.RecentResults(100)
	require.Len(t, all, 12)
	assert.Equal(t, recent, all[:10])

	three := s.RecentResults(3)
	require.Len(t, three, 3)
	assert.Equal(t, all[0], three[0])
}

func TestSubscribe_IsolatesPanicsAndUnsubscribes(t *testing.T) {
	s := New(instantConfig(), sites.NewCatalog(siteNames(2)), zap.NewNop().Sugar(), WithProber(newStubProber(nil)))

	s.Subscribe(func(Event) { panic("bad consumer") })

	var first, second int32
	unsubscribe := s.Subscribe(func(Event) { atomic.AddInt32(&first, 1) })
	s.Subscribe(func(Event) { atomic.AddInt32(&second, 1) })

	_, ran := s.TriggerManualScan(context.Background())
	require.True(t, ran)

	delivered := atomic.LoadInt32(&second)
	assert.Positive(t, delivered)
	assert.Equal(t, delivered, atomic.LoadInt32(&first))

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 2, s.bus.count())

	s.TriggerManualScan(context.Background())
	assert.Equal(t, delivered, atomic.LoadInt32(&first))
	assert.Greater(t, atomic.LoadInt32(&second), delivered)
}

func TestLifecycle_NoOps(t *testing.T) {
	t.Run("disabled start", func(t *testing.T) {
		cfg := instantConfig()
		cfg.Enabled = false
		s, rec := newTestScheduler(t, cfg, siteNames(3))

		s.Start()

		assert.False(t, s.IsRunning())
		assert.Empty(t, rec.all())
	})

	t.Run("cycle while stopped", func(t *testing.T) {
		s, rec := newTestScheduler(t, instantConfig(), siteNames(3))

		_, ran := s.RunScanCycle(context.Background())

		assert.False(t, ran)
		assert.Empty(t, rec.all())
	})

	t.Run("empty catalog", func(t *testing.T) {
		s, rec := newTestScheduler(t, instantConfig(), nil)

		_, ran := s.TriggerManualScan(context.Background())

		assert.False(t, ran)
		assert.Empty(t, rec.ofType(EventCycleStarted))
	})

	t.Run("stop while stopped", func(t *testing.T) {
		s, rec := newTestScheduler(t, instantConfig(), siteNames(3))

		s.Stop()
		s.Stop()

		assert.Empty(t, rec.ofType(EventScanStopped))
	})
}

func TestNextAlignedDelay(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		expected time.Duration
	}{
		{"half past", time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC), 30 * time.Minute},
		{"on the hour", time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC), time.Hour},
		{"just before", time.Date(2025, 3, 14, 10, 59, 59, 0, time.UTC), time.Second},
		{"before midnight", time.Date(2025, 3, 14, 23, 45, 0, 0, time.UTC), 15 * time.Minute},
		{"half-hour offset zone", time.Date(2025, 3, 14, 10, 20, 0, 0, time.FixedZone("IST", 5*3600+1800)), 40 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NextAlignedDelay(tt.now))
		})
	}
}

func waitForWaiters(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func TestSchedule_StopStartDoesNotDoubleSchedule(t *testing.T) {
	start := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	s, rec := newTestScheduler(t, instantConfig(), siteNames(6),
		WithClock(clock), WithProber(newStubProber(nil)))

	s.Start()
	waitForWaiters(t, clock, 1)
	assert.True(t, s.IsRunning())
	require.NotNil(t, s.Stats().NextScan)
	assert.Equal(t, start.Add(30*time.Minute), *s.Stats().NextScan)

	s.Stop()
	s.Start()
	waitForWaiters(t, clock, 1)

	clock.Advance(30 * time.Minute)
	require.Eventually(t, func() bool {
		return len(rec.ofType(EventCycleCompleted)) == 3
	}, 2*time.Second, 5*time.Millisecond)
	waitForWaiters(t, clock, 1)

	next := s.Stats().NextScan
	require.NotNil(t, next)
	assert.Equal(t, start.Add(90*time.Minute), *next)

	s.Stop()

	assert.Len(t, rec.ofType(EventCycleStarted), 3)
	assert.Len(t, rec.ofType(EventScanStarted), 2)
	assert.Len(t, rec.ofType(EventScanStopped), 2)
	assert.False(t, s.IsRunning())
}

func TestSchedule_TicksEveryInterval(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC))
	cfg := instantConfig()
	cfg.ScheduleOnHour = false
	cfg.IntervalHours = 2
	s, rec := newTestScheduler(t, cfg, siteNames(3), WithClock(clock), WithProber(newStubProber(nil)))

	s.Start()
	waitForWaiters(t, clock, 1)
	require.Len(t, rec.ofType(EventCycleCompleted), 1)

	clock.Advance(2 * time.Hour)
	require.Eventually(t, func() bool {
		return len(rec.ofType(EventCycleCompleted)) == 2
	}, 2*time.Second, 5*time.Millisecond)
	waitForWaiters(t, clock, 1)

	clock.Advance(2 * time.Hour)
	require.Eventually(t, func() bool {
		return len(rec.ofType(EventCycleCompleted)) == 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestUpdateConfig(t *testing.T) {
	t.Run("merges and rejects invalid values", func(t *testing.T) {
		s, rec := newTestScheduler(t, instantConfig(), siteNames(3))

		zero := 0
		retries := 4
		merged := s.UpdateConfig(ConfigPatch{MaxConcurrentScans: &zero, RetryAttempts: &retries})

		assert.Equal(t, 5, merged.MaxConcurrentScans)
		assert.Equal(t, 4, merged.RetryAttempts)
		assert.Equal(t, merged, s.Config())
		require.Len(t, rec.ofType(EventConfigUpdated), 1)
		assert.Equal(t, merged, rec.ofType(EventConfigUpdated)[0].(ConfigUpdated).Config)
	})

	t.Run("interval change restarts schedule", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC))
		s, rec := newTestScheduler(t, instantConfig(), siteNames(3),
			WithClock(clock), WithProber(newStubProber(nil)))

		s.Start()
		waitForWaiters(t, clock, 1)

		hours := 2.0
		s.UpdateConfig(ConfigPatch{IntervalHours: &hours})
		waitForWaiters(t, clock, 1)

		assert.True(t, s.IsRunning())
		assert.Equal(t, 2.0, s.Config().IntervalHours)
		assert.Len(t, rec.ofType(EventScanStopped), 1)
		assert.Len(t, rec.ofType(EventScanStarted), 2)
		assert.Len(t, rec.ofType(EventCycleCompleted), 2)

		var afterUpdate []EventType
		seen := false
		for _, typ := range rec.types() {
			if typ == EventConfigUpdated {
				seen = true
			}
			if seen {
				afterUpdate = append(afterUpdate, typ)
			}
		}
		require.GreaterOrEqual(t, len(afterUpdate), 3)
		assert.Equal(t, []EventType{EventConfigUpdated, EventScanStopped, EventScanStarted}, afterUpdate[:3])
	})

	t.Run("unchanged interval keeps schedule", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC))
		s, rec := newTestScheduler(t, instantConfig(), siteNames(3),
			WithClock(clock), WithProber(newStubProber(nil)))

		s.Start()
		waitForWaiters(t, clock, 1)

		size := 2
		s.UpdateConfig(ConfigPatch{MaxConcurrentScans: &size})

		assert.Empty(t, rec.ofType(EventScanStopped))
		assert.Len(t, rec.ofType(EventScanStarted), 1)
	})
}

func TestStop_CancelsRemainingBatches(t *testing.T) {
	cfg := instantConfig()
	cfg.MaxConcurrentScans = 1
	cfg.BatchPauseMS = 50
	s, rec := newTestScheduler(t, cfg, siteNames(20), WithProber(newStubProber(nil)))

	var once sync.Once
	firstSite := make(chan struct{})
	s.Subscribe(func(e Event) {
		if e.Type() == EventSiteScanCompleted {
			once.Do(func() { close(firstSite) })
		}
	})

	s.Start()
	<-firstSite
	s.Stop()

	completed := rec.ofType(EventCycleCompleted)
	require.Len(t, completed, 1)
	ev := completed[0].(CycleCompleted)
	assert.True(t, ev.Cancelled)
	assert.Less(t, ev.SuccessCount+ev.ErrorCount, 20)
	assert.Equal(t, ev.SuccessCount+ev.ErrorCount, s.Stats().TotalScans)
}

func TestSimulatedProber_OutcomeRates(t *testing.T) {
	p := NewSimulatedProber(clockwork.NewFakeClock(), random.New(42), 0, 0)
	site := sites.Site{ID: 1, Name: "spokeo.com"}

	const runs = 20000
	accessible, withData, removal := 0, 0, 0
	for range runs {
		res, err := p.Probe(context.Background(), site)
		require.NoError(t, err)
		if !res.Accessible {
			assert.Equal(t, "unavailable", res.Status)
			assert.Nil(t, res.Findings)
			continue
		}
		accessible++
		assert.Equal(t, "scanned", res.Status)
		require.NotNil(t, res.Findings)
		if !res.Findings.DataFound {
			assert.Zero(t, res.Findings.RecordsFound)
			assert.False(t, res.Findings.RequiresRemoval)
			continue
		}
		withData++
		assert.GreaterOrEqual(t, res.Findings.RecordsFound, 1)
		assert.LessOrEqual(t, res.Findings.RecordsFound, 5)
		if res.Findings.RequiresRemoval {
			removal++
		}
	}

	assert.InDelta(t, 0.90, float64(accessible)/runs, 0.01)
	assert.InDelta(t, 0.30, float64(withData)/float64(accessible), 0.015)
	assert.InDelta(t, 0.20, float64(removal)/float64(withData), 0.025)
}

func TestSimulatedProber_DelayWithinBounds(t *testing.T) {
	minDelay, maxDelay := 10*time.Millisecond, 40*time.Millisecond
	p := NewSimulatedProber(clockwork.NewFakeClock(), random.New(5), minDelay, maxDelay)

	lowest, highest := maxDelay, minDelay
	for range 2000 {
		d := p.nextDelay()
		require.GreaterOrEqual(t, d, minDelay)
		require.LessOrEqual(t, d, maxDelay)
		lowest, highest = min(lowest, d), max(highest, d)
	}
	assert.Less(t, lowest, 12*time.Millisecond)
	assert.Greater(t, highest, 38*time.Millisecond)

	// Inverted bounds collapse to the minimum.
	fixed := NewSimulatedProber(clockwork.NewFakeClock(), random.New(5), 20*time.Millisecond, 0)
	assert.Equal(t, 20*time.Millisecond, fixed.nextDelay())
}

func TestSimulatedProber_WaitsOnClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := NewSimulatedProber(clock, random.New(5), 100*time.Millisecond, 100*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Probe(context.Background(), sites.Site{Name: "radaris.com"})
	}()

	waitForWaiters(t, clock, 1)
	clock.Advance(99 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("probe returned before its delay elapsed")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(time.Millisecond)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("probe did not return after its delay")
	}
}

func TestScanSite_RateLimitPacesAttempts(t *testing.T) {
	cfg := instantConfig()
	cfg.RetryAttempts = 0
	cfg.MaxConcurrentScans = 10
	cfg.RateLimit = 20
	prober := newStubProber(nil)
	s, _ := newTestScheduler(t, cfg, siteNames(30), WithProber(prober))

	start := time.Now()
	summary, _ := s.TriggerManualScan(context.Background())
	elapsed := time.Since(start)

	assert.Equal(t, 30, summary.SuccessCount)
	// A burst of 20, then 10 more at 20 per second.
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)

	cfg.RateLimit = 0
	unlimited, _ := newTestScheduler(t, cfg, siteNames(30), WithProber(newStubProber(nil)))
	start = time.Now()
	unlimited.TriggerManualScan(context.Background())
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

// gatedProber blocks every probe until gate is closed.
type gatedProber struct {
	gate chan struct{}
}

func (p gatedProber) Probe(ctx context.Context, _ sites.Site) (ProbeResult, error) {
	select {
	case <-p.gate:
	case <-ctx.Done():
		return ProbeResult{}, ctx.Err()
	}
	return ProbeResult{Accessible: true, Status: "scanned", Findings: &Findings{}}, nil
}

func TestStop_DoesNotWaitForManualCycle(t *testing.T) {
	gate := make(chan struct{})
	s, rec := newTestScheduler(t, instantConfig(), siteNames(2), WithProber(gatedProber{gate: gate}))

	manual := make(chan CycleSummary, 1)
	go func() {
		summary, _ := s.TriggerManualScan(context.Background())
		manual <- summary
	}()
	require.Eventually(t, func() bool {
		return len(rec.ofType(EventSiteScanStarted)) == 2
	}, 2*time.Second, 5*time.Millisecond)

	// The schedule's first cycle queues behind the manual one.
	s.Start()

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop waited for the manual cycle")
	}

	close(gate)
	summary := <-manual
	assert.Equal(t, 2, summary.SuccessCount)
	assert.False(t, summary.Cancelled)
	assert.Len(t, rec.ofType(EventCycleStarted), 1)
	assert.Len(t, rec.ofType(EventCycleCompleted), 1)
}

func TestRunCycle_CancelledWhileWaitingEmitsNothing(t *testing.T) {
	gate := make(chan struct{})
	s, rec := newTestScheduler(t, instantConfig(), siteNames(1), WithProber(gatedProber{gate: gate}))

	manual := make(chan struct{})
	go func() {
		defer close(manual)
		s.TriggerManualScan(context.Background())
	}()
	require.Eventually(t, func() bool {
		return len(rec.ofType(EventCycleStarted)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan bool, 1)
	go func() {
		_, ran := s.runCycle(ctx)
		result <- ran
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ran := <-result:
		assert.False(t, ran)
	case <-time.After(2 * time.Second):
		t.Fatal("runCycle kept waiting after cancellation")
	}

	close(gate)
	<-manual
	assert.Len(t, rec.ofType(EventCycleStarted), 1)
	assert.Len(t, rec.ofType(EventCycleCompleted), 1)
}
