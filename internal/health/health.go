// Package health tracks the service's startup and ingestion state and
// derives liveness and readiness answers from it.
package health

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/E3-JSI/co2-emissions-prediction/internal/clock"
)

// stalenessGrace is added on top of three sample intervals when judging
// whether ingestion has gone stale.
const stalenessGrace = 5 * time.Second

// Background loop names registered with the health state. The sampling loop
// is mandatory; the others count once started.
const (
	LoopSampling  = "sampling"
	LoopIntensity = "intensity refresh"
	LoopFlush     = "flush"
)

// State is the mutable health state of the service. The background loops and
// startup sequence feed it; the HTTP handlers read it.
type State struct {
	mu             sync.Mutex
	clk            clock.Clock
	sampleInterval time.Duration
	startedAt      time.Time

	startupDone   bool
	startupErrors []string

	loops        map[string]bool
	everIngested bool
	lastSuccess  time.Time
	lastError    string
}

// Liveness is the answer to a liveness probe.
type Liveness struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Readiness is the answer to a readiness probe. Reasons is empty when ready.
type Readiness struct {
	Ready       bool      `json:"ready"`
	Reasons     []string  `json:"reasons,omitempty"`
	LastIngest  time.Time `json:"last_ingest,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	StartupDone bool      `json:"startup_done"`
}

// NewState creates health state for a service sampling at the given interval.
func NewState(sampleInterval time.Duration, clk clock.Clock) *State {
	return &State{
		clk:            clk,
		sampleInterval: sampleInterval,
		startedAt:      clk.Now(),
		loops:          make(map[string]bool),
	}
}

// SetStartupResult records the outcome of the startup self-check. An empty
// error list marks the check as passed.
func (s *State) SetStartupResult(errs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startupDone = true
	s.startupErrors = append([]string(nil), errs...)
}

// LoopStarted marks the named background loop as running.
func (s *State) LoopStarted(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loops[name] = true
}

// LoopStopped marks the named background loop as no longer running.
func (s *State) LoopStopped(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loops[name] = false
}

// RecordIngest notes the outcome of one sampling cycle. Satisfies
// ingest.ResultRecorder.
func (s *State) RecordIngest(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.everIngested = true
		s.lastSuccess = s.clk.Now()
		s.lastError = ""
	} else {
		s.lastError = "last sampling cycle failed"
	}
}

// Liveness reports that the process is up. It never fails: a wedged
// sampling loop is a readiness problem, not a liveness one.
func (s *State) Liveness() Liveness {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Liveness{
		Status:        "ok",
		UptimeSeconds: int64(s.clk.Since(s.startedAt).Seconds()),
	}
}

// Readiness reports whether the service can serve meaningful answers: the
// startup check has passed, every background loop is alive, and at least
// one sampling cycle succeeded recently. "Recently" is three sample
// intervals plus a small grace period; beyond that the data is stale and
// the service should be taken out of rotation.
func (s *State) Readiness() Readiness {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Readiness{
		StartupDone: s.startupDone,
		LastIngest:  s.lastSuccess,
		LastError:   s.lastError,
	}

	if !s.startupDone {
		r.Reasons = append(r.Reasons, "startup check not completed")
	}
	for _, err := range s.startupErrors {
		r.Reasons = append(r.Reasons, fmt.Sprintf("startup check failed: %s", err))
	}
	if !s.loops[LoopSampling] {
		r.Reasons = append(r.Reasons, "sampling loop not running")
	}
	others := make([]string, 0, len(s.loops))
	for name := range s.loops {
		if name != LoopSampling && !s.loops[name] {
			others = append(others, name)
		}
	}
	sort.Strings(others)
	for _, name := range others {
		r.Reasons = append(r.Reasons, fmt.Sprintf("%s loop not running", name))
	}
	if !s.everIngested {
		r.Reasons = append(r.Reasons, "no successful ingest yet")
	} else {
		staleAfter := 3*s.sampleInterval + stalenessGrace
		if age := s.clk.Since(s.lastSuccess); age > staleAfter {
			r.Reasons = append(r.Reasons, fmt.Sprintf("last successful ingest %s ago exceeds %s", age.Round(time.Second), staleAfter))
		}
	}

	r.Ready = len(r.Reasons) == 0
	return r
}
