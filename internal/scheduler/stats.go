package scheduler

import (
	"time"
)

const defaultRecentLimit = 10

// Stats is a snapshot of scheduler state derived from the result log.
type Stats struct {
	IsActive        bool       `json:"isActive"`
	TotalSites      int        `json:"totalSites"`
	TotalScans      int        `json:"totalScans"`
	SuccessfulScans int        `json:"successfulScans"`
	FailedScans     int        `json:"failedScans"`
	SuccessRate     float64    `json:"successRate"`
	LastScan        *time.Time `json:"lastScan,omitempty"`
	NextScan        *time.Time `json:"nextScan,omitempty"`
	Config          Config     `json:"config"`
}

func (s *Scheduler) appendResult(r ScanResult) {
	s.resultsMu.Lock()
	defer s.resultsMu.Unlock()
	s.results = append(s.results, r)
}

// Stats computes a snapshot over every recorded scan result.
func (s *Scheduler) Stats() Stats {
	s.resultsMu.RLock()
	total := len(s.results)
	successful := 0
	var last *time.Time
	for i := range s.results {
		if s.results[i].Success {
			successful++
		}
	}
	if total > 0 {
		ts := s.results[total-1].Timestamp
		last = &ts
	}
	s.resultsMu.RUnlock()

	rate := 0.0
	if total > 0 {
		rate = float64(successful) / float64(total) * 100
	}

	return Stats{
		IsActive:        s.IsRunning(),
		TotalSites:      s.catalog.Len(),
		TotalScans:      total,
		SuccessfulScans: successful,
		FailedScans:     total - successful,
		SuccessRate:     rate,
		LastScan:        last,
		NextScan:        s.nextScanTime(),
		Config:          s.Config(),
	}
}

// RecentResults returns up to limit results, newest first. A non-positive
// limit means the default of 10.
func (s *Scheduler) RecentResults(limit int) []ScanResult {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	s.resultsMu.RLock()
	defer s.resultsMu.RUnlock()

	n := min(limit, len(s.results))
	out := make([]ScanResult, 0, n)
	for i := len(s.results) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.results[i])
	}
	return out
}
