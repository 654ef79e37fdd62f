package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/exposure-scanner/autoscan/internal/scheduler"
	"github.com/exposure-scanner/autoscan/internal/threats"
	"go.uber.org/zap"
)

const forwardQueueSize = 256

// ErrNotConnected is returned by Ready when the broker connection is down.
var ErrNotConnected = errors.New("event broker not connected")

// forwardedEvents are the scheduler events worth sending off-process. Phase
// and per-site progress stay local.
var forwardedEvents = map[scheduler.EventType]bool{
	scheduler.EventScanStarted:         true,
	scheduler.EventScanStopped:         true,
	scheduler.EventManualScanTriggered: true,
	scheduler.EventConfigUpdated:       true,
	scheduler.EventCycleStarted:        true,
	scheduler.EventCycleCompleted:      true,
	scheduler.EventSiteScanFailed:      true,
}

// connectionState is implemented by publishers holding a broker connection.
type connectionState interface {
	IsConnected() bool
}

// ReportGenerated announces a finished threat report.
type ReportGenerated struct {
	ReportID    string            `json:"report_id"`
	Stats       threats.ScanStats `json:"stats"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Forwarder republishes scheduler events and threat reports as CloudEvents.
// Scheduler events are queued and published by a single worker, so a slow
// broker never stalls the scheduler. Publish failures are logged only.
type Forwarder struct {
	pub    Publisher
	logger *zap.SugaredLogger

	mu     sync.Mutex
	queue  chan scheduler.Event
	closed bool
}

// NewForwarder creates a forwarder writing to pub.
func NewForwarder(pub Publisher, logger *zap.SugaredLogger) *Forwarder {
	return &Forwarder{pub: pub, logger: logger}
}

// Attach subscribes the forwarder to s and starts the publish worker. The
// returned func unsubscribes and waits for queued events to be published.
func (f *Forwarder) Attach(s *scheduler.Scheduler) func() {
	stop := f.start()
	unsubscribe := s.Subscribe(f.HandleEvent)

	return func() {
		unsubscribe()
		stop()
	}
}

func (f *Forwarder) start() func() {
	queue := make(chan scheduler.Event, forwardQueueSize)
	done := make(chan struct{})

	f.mu.Lock()
	f.queue = queue
	f.closed = false
	f.mu.Unlock()

	go f.run(queue, done)

	return func() {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return
		}
		f.closed = true
		close(queue)
		f.mu.Unlock()
		<-done
	}
}

// HandleEvent is a scheduler.Handler. It only queues the event.
func (f *Forwarder) HandleEvent(e scheduler.Event) {
	if !forwardedEvents[e.Type()] {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queue == nil || f.closed {
		return
	}

	select {
	case f.queue <- e:
	default:
		f.logger.Warnw("Event queue full, dropping scheduler event", "type", e.Type())
	}
}

func (f *Forwarder) run(queue <-chan scheduler.Event, done chan<- struct{}) {
	defer close(done)
	for e := range queue {
		f.forward(e)
	}
}

func (f *Forwarder) forward(e scheduler.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	event := NewEvent(string(e.Type()), e.OccurredAt(), e)
	if err := f.pub.Publish(ctx, event, "scan."+string(e.Type())); err != nil {
		f.logger.Warnw("Failed to forward scheduler event",
			"type", e.Type(),
			"error", err,
		)
	}
}

// PublishReport announces a generated threat report.
func (f *Forwarder) PublishReport(ctx context.Context, report ReportGenerated) {
	event := NewEvent("threat_report_generated", report.GeneratedAt, report)
	if err := f.pub.Publish(ctx, event, "threats.report_generated"); err != nil {
		f.logger.Warnw("Failed to publish threat report",
			"report_id", report.ReportID,
			"error", err,
		)
	}
}

// Ready reports ErrNotConnected while the broker connection is down.
// Publishers without a connection are always ready.
func (f *Forwarder) Ready() error {
	if c, ok := f.pub.(connectionState); ok && !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}
