package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/exposure-scanner/autoscan/internal/random"
	"github.com/exposure-scanner/autoscan/internal/sites"
	"github.com/jonboulle/clockwork"
)

// ErrSiteUnavailable is returned by probers that cannot reach a site at all.
var ErrSiteUnavailable = errors.New("site unavailable")

// ProbeResult is the outcome of one probe attempt against a site.
type ProbeResult struct {
	Accessible bool      `json:"accessible"`
	Status     string    `json:"status"`
	Findings   *Findings `json:"findings,omitempty"`
}

// Findings describes what a probe reported about a site's listing.
type Findings struct {
	DataFound       bool   `json:"dataFound"`
	RequiresRemoval bool   `json:"requiresRemoval"`
	RecordsFound    int    `json:"recordsFound"`
	Message         string `json:"message"`
}

// Prober checks a single site. Implementations must honour ctx.
type Prober interface {
	Probe(ctx context.Context, site sites.Site) (ProbeResult, error)
}

// SimulatedProber fakes a broker lookup without any network I/O.
type SimulatedProber struct {
	clock    clockwork.Clock
	rng      *random.Source
	minDelay time.Duration
	maxDelay time.Duration
}

// NewSimulatedProber creates a prober that waits a random delay in [minDelay, maxDelay].
func NewSimulatedProber(clock clockwork.Clock, rng *random.Source, minDelay, maxDelay time.Duration) *SimulatedProber {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &SimulatedProber{
		clock:    clock,
		rng:      rng,
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

// Probe waits, then reports the site accessible 90% of the time. Accessible
// sites have data 30% of the time, a fifth of which needs removal. An
// inaccessible site is a result, not an error.
func (p *SimulatedProber) Probe(ctx context.Context, site sites.Site) (ProbeResult, error) {
	if err := sleep(ctx, p.clock, p.nextDelay()); err != nil {
		return ProbeResult{}, err
	}

	if !p.rng.Chance(0.9) {
		return ProbeResult{Accessible: false, Status: "unavailable"}, nil
	}

	findings := &Findings{Message: "No matching records"}
	if p.rng.Chance(0.3) {
		findings.DataFound = true
		findings.RecordsFound = p.rng.IntRange(1, 5)
		findings.Message = "Potential profile match"
		if p.rng.Chance(0.2) {
			findings.RequiresRemoval = true
			findings.Message = "Profile listing requires removal"
		}
	}

	return ProbeResult{Accessible: true, Status: "scanned", Findings: findings}, nil
}

func (p *SimulatedProber) nextDelay() time.Duration {
	delay := p.minDelay
	if span := int(p.maxDelay - p.minDelay); span > 0 {
		delay += time.Duration(p.rng.IntN(span + 1))
	}
	return delay
}
