// Package callback posts scan cycle progress and completion to external
// webhook URLs.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/exposure-scanner/autoscan/internal/config"
	"github.com/exposure-scanner/autoscan/internal/scheduler"
	"go.uber.org/zap"
)

const (
	collectorName = "exposure-scanner"
	queueSize     = 64
)

// Progress represents a progress update.
type Progress struct {
	CycleID       int64  `json:"cycle_id"`
	Collector     string `json:"collector"`
	Sequence      int    `json:"sequence"`
	Phase         string `json:"phase,omitempty"`
	Progress      int    `json:"progress"`
	ExposureCount int    `json:"exposure_count"`
	Message       string `json:"message,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// Completion represents a finished scan cycle.
type Completion struct {
	CycleID       int64  `json:"cycle_id"`
	Collector     string `json:"collector"`
	Status        string `json:"status"` // completed, cancelled
	SuccessCount  int    `json:"success_count"`
	ErrorCount    int    `json:"error_count"`
	ExposureCount int    `json:"exposure_count"`
	ErrorMessage  string `json:"error_message,omitempty"`
	Timestamp     string `json:"timestamp"`
}

type request struct {
	url     string
	payload any
}

// Reporter turns scheduler events into webhook callbacks. Callbacks are sent
// in order from a single worker so a slow endpoint never blocks the scheduler.
type Reporter struct {
	progressURL string
	completeURL string
	apiKey      string
	logger      *zap.SugaredLogger
	client      *http.Client

	cycleID       atomic.Int64
	sequence      atomic.Int64 // monotonic per cycle, for idempotency
	exposureCount atomic.Int64

	mu     sync.Mutex
	queue  chan request
	closed bool
}

// NewReporter creates a new callback reporter.
func NewReporter(cfg config.CallbackConfig, logger *zap.SugaredLogger) *Reporter {
	return &Reporter{
		progressURL: cfg.ProgressURL,
		completeURL: cfg.CompleteURL,
		apiKey:      cfg.APIKey,
		logger:      logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Attach subscribes the reporter to s and starts the delivery worker. The
// returned func unsubscribes and waits for queued callbacks to be sent.
func (r *Reporter) Attach(s *scheduler.Scheduler) func() {
	queue := make(chan request, queueSize)
	done := make(chan struct{})

	r.mu.Lock()
	r.queue = queue
	r.closed = false
	r.mu.Unlock()

	go r.run(queue, done)
	unsubscribe := s.Subscribe(r.HandleEvent)

	return func() {
		unsubscribe()
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		r.closed = true
		close(queue)
		r.mu.Unlock()
		<-done
	}
}

// HandleEvent is a scheduler.Handler.
func (r *Reporter) HandleEvent(e scheduler.Event) {
	switch ev := e.(type) {
	case scheduler.CycleStarted:
		r.cycleID.Store(ev.CycleID)
		r.sequence.Store(0)
		r.exposureCount.Store(0)
		r.enqueue(r.progressURL, r.progress("initializing", 0, fmt.Sprintf("Scanning %d sites", ev.TotalSites)))

	case scheduler.PhaseStarted:
		pct := ev.PhaseIndex * 100 / max(ev.TotalPhases, 1)
		r.enqueue(r.progressURL, r.progress(ev.Phase, pct, ev.Description))

	case scheduler.SiteScanCompleted:
		if f := ev.Result.Findings; f != nil && f.DataFound {
			r.exposureCount.Add(1)
		}

	case scheduler.CycleCompleted:
		r.enqueue(r.completeURL, r.completion(ev))
	}
}

// ExposureCount returns the number of sites with data found in the current cycle.
func (r *Reporter) ExposureCount() int {
	return int(r.exposureCount.Load())
}

func (r *Reporter) progress(phase string, progress int, message string) Progress {
	return Progress{
		CycleID:       r.cycleID.Load(),
		Collector:     collectorName,
		Sequence:      int(r.sequence.Add(1)),
		Phase:         phase,
		Progress:      progress,
		ExposureCount: r.ExposureCount(),
		Message:       message,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}

func (r *Reporter) completion(ev scheduler.CycleCompleted) Completion {
	status := "completed"
	if ev.Cancelled {
		status = "cancelled"
	}

	var msg string
	if ev.ErrorCount > 0 {
		msg = fmt.Sprintf("%d of %d site scans failed", ev.ErrorCount, ev.TotalSites)
	}

	return Completion{
		CycleID:       ev.CycleID,
		Collector:     collectorName,
		Status:        status,
		SuccessCount:  ev.SuccessCount,
		ErrorCount:    ev.ErrorCount,
		ExposureCount: r.ExposureCount(),
		ErrorMessage:  msg,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}

func (r *Reporter) enqueue(url string, payload any) {
	if url == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queue == nil || r.closed {
		return
	}

	select {
	case r.queue <- request{url: url, payload: payload}:
	default:
		r.logger.Warnw("Callback queue full, dropping callback", "url", url)
	}
}

func (r *Reporter) run(queue <-chan request, done chan<- struct{}) {
	defer close(done)
	for req := range queue {
		_ = r.sendCallback(req.url, req.payload)
	}
}

func (r *Reporter) sendCallback(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("X-Internal-API-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warnw("Callback failed", "url", url, "error", err)
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		r.logger.Warnw("Callback returned error", "url", url, "status", resp.StatusCode)
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}

	r.logger.Debugw("Callback sent", "url", url, "status", resp.StatusCode)
	return nil
}
