package ingest

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/E3-JSI/co2-emissions-prediction/pkg/models"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

var testKey = models.WorkloadKey{Pod: "web-1", Container: "app", Namespace: "prod"}

func TestIngestFirstSampleSeedsBaseline(t *testing.T) {
	ing := NewIngestor(10*time.Second, testLogger())

	_, ok := ing.Ingest(testKey, 100, time.Now())
	if ok {
		t.Fatal("first sample must not produce a measurement")
	}

	keys := ing.TrackedKeys()
	if len(keys) != 1 || keys[0] != testKey {
		t.Errorf("expected baseline tracked for key, got %v", keys)
	}
}

func TestIngestRateDerivation(t *testing.T) {
	// Scenario: cumulative values 100,150,210,210,400 at 10s spacing yield
	// rates 5.0, 6.0, 0.0, 19.0 after the baseline sample.
	ing := NewIngestor(10*time.Second, testLogger())
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	values := []float64{100, 150, 210, 210, 400}
	wantRates := []float64{5.0, 6.0, 0.0, 19.0}

	var rates []float64
	for i, v := range values {
		m, ok := ing.Ingest(testKey, v, t0.Add(time.Duration(i)*10*time.Second))
		if i == 0 {
			if ok {
				t.Fatal("baseline sample emitted a measurement")
			}
			continue
		}
		if !ok {
			t.Fatalf("sample %d emitted no measurement", i)
		}
		rates = append(rates, m.JoulesPerSecond)
		if m.JoulesTotal != v {
			t.Errorf("sample %d: expected cumulative total %f, got %f", i, v, m.JoulesTotal)
		}
	}

	if len(rates) != len(wantRates) {
		t.Fatalf("expected %d measurements, got %d", len(wantRates), len(rates))
	}
	for i, want := range wantRates {
		if rates[i] != want {
			t.Errorf("rate %d: expected %f, got %f", i, want, rates[i])
		}
	}
}

func TestIngestCounterReset(t *testing.T) {
	ing := NewIngestor(10*time.Second, testLogger())
	now := time.Now()

	ing.Ingest(testKey, 500, now)

	// Counter dropped: workload restarted. No measurement, but the baseline
	// must resynchronize so the next delta is sane.
	_, ok := ing.Ingest(testKey, 30, now.Add(10*time.Second))
	if ok {
		t.Fatal("reset sample must not produce a measurement")
	}

	m, ok := ing.Ingest(testKey, 80, now.Add(20*time.Second))
	if !ok {
		t.Fatal("sample after reset must produce a measurement")
	}
	if m.JoulesPerSecond != 5.0 {
		t.Errorf("expected rate 5.0 after resync, got %f", m.JoulesPerSecond)
	}
}

func TestIngestIndependentKeys(t *testing.T) {
	ing := NewIngestor(10*time.Second, testLogger())
	other := models.WorkloadKey{Pod: "db-0", Container: "postgres", Namespace: "prod"}
	now := time.Now()

	ing.Ingest(testKey, 100, now)
	ing.Ingest(other, 1000, now)

	m1, ok1 := ing.Ingest(testKey, 150, now.Add(10*time.Second))
	m2, ok2 := ing.Ingest(other, 1100, now.Add(10*time.Second))

	if !ok1 || !ok2 {
		t.Fatal("expected measurements for both keys")
	}
	if m1.JoulesPerSecond != 5.0 || m2.JoulesPerSecond != 10.0 {
		t.Errorf("keys interfered: got %f and %f", m1.JoulesPerSecond, m2.JoulesPerSecond)
	}
}
