package scheduler

import (
	"context"
	"math"
	"time"
)

// Phase is one narrated stage of a scan cycle. Weight scales both its
// duration and its share of the sites-processed estimate.
type Phase struct {
	Name        string `json:"name"`
	Weight      int    `json:"weight"`
	Description string `json:"description"`
}

var cyclePhases = []Phase{
	{Name: "Initializing", Weight: 1, Description: "Preparing scan environment"},
	{Name: "Connecting", Weight: 2, Description: "Establishing connections to data broker sites"},
	{Name: "Searching", Weight: 4, Description: "Searching broker databases for personal information"},
	{Name: "Analyzing", Weight: 2, Description: "Analyzing discovered listings"},
	{Name: "Verifying", Weight: 1, Description: "Verifying matches and removal requirements"},
}

// progress ticks emitted within each phase
const phaseSteps = 4

// Phases returns the fixed phase sequence.
func Phases() []Phase {
	out := make([]Phase, len(cyclePhases))
	copy(out, cyclePhases)
	return out
}

func totalPhaseWeight() int {
	total := 0
	for _, p := range cyclePhases {
		total += p.Weight
	}
	return total
}

// estimateSitesProcessed maps completed phase weight onto the site count.
func estimateSitesProcessed(totalSites int, weightDone float64) int {
	return int(math.Round(float64(totalSites) * weightDone / float64(totalPhaseWeight())))
}

// runPhases narrates the phase sequence. It returns false when ctx was
// cancelled before every phase finished.
func (s *Scheduler) runPhases(ctx context.Context, cycleID int64, cfg Config, totalSites int) bool {
	weightBefore := 0

	for i, phase := range cyclePhases {
		if ctx.Err() != nil {
			s.logger.Infow("Scan stopped between phases", "cycle_id", cycleID, "phase", phase.Name)
			return false
		}

		s.emit(PhaseStarted{
			CycleID:     cycleID,
			Phase:       phase.Name,
			PhaseIndex:  i,
			TotalPhases: len(cyclePhases),
			Description: phase.Description,
			TotalSites:  totalSites,
			Timestamp:   s.clock.Now(),
		})

		step := cfg.phaseUnit() * time.Duration(phase.Weight) / phaseSteps
		for n := 1; n <= phaseSteps; n++ {
			if err := sleep(ctx, s.clock, step); err != nil {
				return false
			}
			done := float64(weightBefore) + float64(phase.Weight)*float64(n)/phaseSteps
			s.emit(PhaseProgress{
				CycleID:        cycleID,
				Phase:          phase.Name,
				PhaseIndex:     i,
				Progress:       n * 100 / phaseSteps,
				SitesProcessed: estimateSitesProcessed(totalSites, done),
				TotalSites:     totalSites,
				Timestamp:      s.clock.Now(),
			})
		}

		weightBefore += phase.Weight
		s.emit(PhaseCompleted{
			CycleID:        cycleID,
			Phase:          phase.Name,
			PhaseIndex:     i,
			SitesProcessed: estimateSitesProcessed(totalSites, float64(weightBefore)),
			TotalSites:     totalSites,
			Timestamp:      s.clock.Now(),
		})
	}

	return true
}
