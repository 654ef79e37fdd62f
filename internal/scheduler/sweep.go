package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/exposure-scanner/autoscan/internal/sites"
)

// ScanResult is appended once per site per cycle and never removed.
type ScanResult struct {
	CycleID    int64        `json:"cycleId"`
	Site       sites.Site   `json:"site"`
	Success    bool         `json:"success"`
	Result     *ProbeResult `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
	Attempts   int          `json:"attempts"`
	DurationMS int64        `json:"duration"`
	Timestamp  time.Time    `json:"timestamp"`
}

// sweepSites scans list in sequential batches of cfg.MaxConcurrentScans.
// Every scan in a batch settles before the next batch starts.
func (s *Scheduler) sweepSites(ctx context.Context, cycleID int64, cfg Config, list []sites.Site) (success, failed, batches int) {
	size := cfg.batchSize()

	for start := 0; start < len(list); start += size {
		if ctx.Err() != nil {
			s.logger.Infow("Scan stopped between batches", "cycle_id", cycleID, "batches_done", batches)
			break
		}
		if start > 0 {
			if err := sleep(ctx, s.clock, cfg.batchPause()); err != nil {
				break
			}
		}

		end := min(start+size, len(list))
		batch := list[start:end]
		errs := make([]error, len(batch))

		var wg sync.WaitGroup
		for i, site := range batch {
			wg.Add(1)
			go func(i int, site sites.Site) {
				defer wg.Done()
				errs[i] = s.scanSite(ctx, cycleID, cfg, site, start+i, batches, len(list))
			}(i, site)
		}
		wg.Wait()

		batchFailed := 0
		for _, err := range errs {
			if err != nil {
				batchFailed++
			}
		}
		success += len(batch) - batchFailed
		failed += batchFailed
		batches++

		s.logger.Debugw("Batch completed",
			"cycle_id", cycleID,
			"batch", batches,
			"size", len(batch),
			"failed", batchFailed,
		)
	}

	return success, failed, batches
}

// scanSite probes one site, records the result and reports it. The returned
// error is non-nil when the site counts as failed.
func (s *Scheduler) scanSite(ctx context.Context, cycleID int64, cfg Config, site sites.Site, index, batch, total int) error {
	s.emit(SiteScanStarted{
		CycleID:    cycleID,
		Site:       site,
		Index:      index,
		Batch:      batch,
		TotalSites: total,
		Progress:   (index + 1) * 100 / total,
		Timestamp:  s.clock.Now(),
	})

	start := s.clock.Now()
	res, attempts, err := s.probeWithRetry(ctx, cfg, site)
	elapsed := s.clock.Since(start)

	result := ScanResult{
		CycleID:    cycleID,
		Site:       site,
		Success:    err == nil,
		Attempts:   attempts,
		DurationMS: elapsed.Milliseconds(),
		Timestamp:  s.clock.Now(),
	}
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Result = &res
	}
	s.appendResult(result)

	if err != nil {
		s.logger.Debugw("Site scan failed", "cycle_id", cycleID, "site", site.Name, "error", err)
		s.emit(SiteScanFailed{
			CycleID:    cycleID,
			Site:       site,
			Index:      index,
			Batch:      batch,
			Error:      err.Error(),
			Attempts:   attempts,
			DurationMS: result.DurationMS,
			Timestamp:  result.Timestamp,
		})
		return err
	}

	s.emit(SiteScanCompleted{
		CycleID:    cycleID,
		Site:       site,
		Index:      index,
		Batch:      batch,
		Result:     res,
		Attempts:   attempts,
		DurationMS: result.DurationMS,
		Timestamp:  result.Timestamp,
	})
	return nil
}

// probeWithRetry runs up to cfg.attempts() probes, each bounded by
// cfg.TimeoutMS. Only probe errors are retried; an inaccessible site is a
// completed scan. Probes are detached from cycle cancellation so an attempt in
// flight completes, but no new attempt starts once ctx is done.
func (s *Scheduler) probeWithRetry(ctx context.Context, cfg Config, site sites.Site) (ProbeResult, int, error) {
	probeCtx := context.WithoutCancel(ctx)

	s.mu.RLock()
	limiter := s.limiter
	s.mu.RUnlock()

	var lastErr error
	attempt := 0
	for attempt < cfg.attempts() {
		if attempt > 0 && ctx.Err() != nil {
			break
		}
		attempt++

		if limiter != nil {
			if err := limiter.Wait(probeCtx); err != nil {
				lastErr = err
				continue
			}
		}

		res, err := s.probeOnce(probeCtx, cfg, site)
		if err == nil {
			return res, attempt, nil
		}
		lastErr = err

		s.logger.Debugw("Site probe attempt failed",
			"site", site.Name,
			"attempt", attempt,
			"error", err,
		)
	}

	return ProbeResult{Accessible: false, Status: "unavailable"}, attempt, fmt.Errorf("scan %s: %w", site.Name, lastErr)
}

func (s *Scheduler) probeOnce(ctx context.Context, cfg Config, site sites.Site) (ProbeResult, error) {
	if timeout := cfg.timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.prober.Probe(ctx, site)
}
