package history

import (
	"context"
	"time"

	"github.com/exposure-scanner/autoscan/internal/scheduler"
	"go.uber.org/zap"
)

const saveTimeout = 5 * time.Second

// CycleSaver persists completed cycles.
type CycleSaver interface {
	SaveCycle(ctx context.Context, rec CycleRecord) error
}

// Recorder persists every completed scheduler cycle.
type Recorder struct {
	store  CycleSaver
	logger *zap.SugaredLogger
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store CycleSaver, logger *zap.SugaredLogger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Attach subscribes the recorder to s and returns the unsubscribe func.
func (r *Recorder) Attach(s *scheduler.Scheduler) func() {
	return s.Subscribe(r.HandleEvent)
}

// HandleEvent is a scheduler.Handler.
func (r *Recorder) HandleEvent(e scheduler.Event) {
	done, ok := e.(scheduler.CycleCompleted)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	rec := CycleRecord{
		CycleID:      done.CycleID,
		DurationMS:   done.DurationMS,
		SuccessCount: done.SuccessCount,
		ErrorCount:   done.ErrorCount,
		TotalSites:   done.TotalSites,
		Cancelled:    done.Cancelled,
		CompletedAt:  done.Timestamp,
		NextScan:     done.NextScan,
	}
	if err := r.store.SaveCycle(ctx, rec); err != nil {
		r.logger.Errorw("Failed to record cycle", "cycle_id", done.CycleID, "error", err)
		return
	}

	r.logger.Debugw("Cycle recorded", "cycle_id", done.CycleID)
}
