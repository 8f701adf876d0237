package health

import (
	"strings"
	"testing"
	"time"

	"github.com/E3-JSI/co2-emissions-prediction/internal/clock"
)

const sampleInterval = 10 * time.Second

func readyState(clk clock.Clock) *State {
	s := NewState(sampleInterval, clk)
	s.SetStartupResult(nil)
	s.LoopStarted(LoopSampling)
	s.LoopStarted(LoopIntensity)
	s.RecordIngest(true)
	return s
}

func TestNotReadyBeforeStartupCheck(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	s := NewState(sampleInterval, clk)

	r := s.Readiness()
	if r.Ready {
		t.Fatal("ready before startup check")
	}
	if !hasReason(r.Reasons, "startup check not completed") {
		t.Errorf("missing startup reason, got %v", r.Reasons)
	}
}

func TestStartupFailureKeepsNotReady(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	s := NewState(sampleInterval, clk)
	s.SetStartupResult([]string{"exporter unreachable"})
	s.LoopStarted(LoopSampling)
	s.RecordIngest(true)

	r := s.Readiness()
	if r.Ready {
		t.Fatal("ready despite failed startup check")
	}
	if !hasReason(r.Reasons, "exporter unreachable") {
		t.Errorf("missing startup failure reason, got %v", r.Reasons)
	}
}

func TestNotReadyBeforeFirstIngest(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	s := NewState(sampleInterval, clk)
	s.SetStartupResult(nil)
	s.LoopStarted(LoopSampling)

	r := s.Readiness()
	if r.Ready {
		t.Fatal("ready before any successful ingest")
	}
	if !hasReason(r.Reasons, "no successful ingest yet") {
		t.Errorf("missing ingest reason, got %v", r.Reasons)
	}
}

func TestReadyAfterSuccessfulCycle(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	s := readyState(clk)

	if r := s.Readiness(); !r.Ready {
		t.Errorf("expected ready, got reasons %v", r.Reasons)
	}
}

// Ingestion that keeps failing flips readiness once the last success ages
// past three sample intervals plus grace.
func TestStalenessFlipsReadiness(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	s := readyState(clk)

	// Just inside the bound: 3*10s + 5s = 35s.
	clk.Advance(34 * time.Second)
	s.RecordIngest(false)
	if r := s.Readiness(); !r.Ready {
		t.Fatalf("expected ready inside staleness bound, got reasons %v", r.Reasons)
	}

	clk.Advance(2 * time.Second)
	r := s.Readiness()
	if r.Ready {
		t.Fatal("expected not ready past staleness bound")
	}
	if !hasReason(r.Reasons, "exceeds") {
		t.Errorf("missing staleness reason, got %v", r.Reasons)
	}

	// A successful cycle recovers readiness.
	s.RecordIngest(true)
	if r := s.Readiness(); !r.Ready {
		t.Errorf("expected ready after recovery, got reasons %v", r.Reasons)
	}
}

func TestLoopStoppedFlipsReadiness(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	s := readyState(clk)

	s.LoopStopped(LoopSampling)
	r := s.Readiness()
	if r.Ready {
		t.Fatal("expected not ready with stopped loop")
	}
	if !hasReason(r.Reasons, "sampling loop not running") {
		t.Errorf("missing loop reason, got %v", r.Reasons)
	}
}

// Every registered loop counts toward readiness, not just the sampling one.
func TestAnyStoppedLoopFlipsReadiness(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	s := readyState(clk)
	s.LoopStarted(LoopFlush)

	if r := s.Readiness(); !r.Ready {
		t.Fatalf("expected ready with all loops running, got reasons %v", r.Reasons)
	}

	s.LoopStopped(LoopFlush)
	r := s.Readiness()
	if r.Ready {
		t.Fatal("expected not ready with stopped flush loop")
	}
	if !hasReason(r.Reasons, "flush loop not running") {
		t.Errorf("missing flush loop reason, got %v", r.Reasons)
	}

	s.LoopStarted(LoopFlush)
	s.LoopStopped(LoopIntensity)
	r = s.Readiness()
	if r.Ready {
		t.Fatal("expected not ready with stopped intensity loop")
	}
	if !hasReason(r.Reasons, "intensity refresh loop not running") {
		t.Errorf("missing intensity loop reason, got %v", r.Reasons)
	}
}

func TestLivenessAlwaysOK(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	s := NewState(sampleInterval, clk)

	clk.Advance(90 * time.Second)
	l := s.Liveness()
	if l.Status != "ok" {
		t.Errorf("expected ok, got %q", l.Status)
	}
	if l.UptimeSeconds != 90 {
		t.Errorf("expected 90s uptime, got %d", l.UptimeSeconds)
	}
}

func hasReason(reasons []string, substr string) bool {
	for _, r := range reasons {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}
