package query

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"
	"time"

	"github.com/E3-JSI/co2-emissions-prediction/internal/clock"
	"github.com/E3-JSI/co2-emissions-prediction/internal/storage"
	"github.com/E3-JSI/co2-emissions-prediction/pkg/models"
)

var (
	testKey = models.WorkloadKey{Pod: "web-1", Container: "app", Namespace: "prod"}
	t0      = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// fakeBuffer serves a fixed flattened series.
type fakeBuffer struct {
	series map[models.WorkloadKey][]models.Measurement
}

func (b *fakeBuffer) Flatten(key models.WorkloadKey) []models.Measurement {
	return append([]models.Measurement(nil), b.series[key]...)
}

func (b *fakeBuffer) Keys() []models.WorkloadKey {
	keys := make([]models.WorkloadKey, 0, len(b.series))
	for key := range b.series {
		keys = append(keys, key)
	}
	return keys
}

// fixedIntensity resolves every region and timestamp to one value.
type fixedIntensity struct {
	value   float64
	regions []string
}

func (f *fixedIntensity) GetAt(region string, ts time.Time) float64 { return f.value }

func (f *fixedIntensity) Regions() []string { return f.regions }

// steppedIntensity returns before until the step time, after from then on.
type steppedIntensity struct {
	step          time.Time
	before, after float64
}

func (s *steppedIntensity) GetAt(region string, ts time.Time) float64 {
	if ts.Before(s.step) {
		return s.before
	}
	return s.after
}
func (s *steppedIntensity) Regions() []string { return []string{"DE"} }

// failingStore wraps a DurableStore and fails every call.
type failingStore struct {
	storage.DurableStore
}

func (f *failingStore) QueryRange(ctx context.Context, key models.WorkloadKey, start, end time.Time) ([]models.Measurement, error) {
	return nil, errors.New("connection refused")
}

func (f *failingStore) Workloads(ctx context.Context) ([]models.WorkloadKey, error) {
	return nil, errors.New("connection refused")
}

func measurementAt(ts time.Time, rate float64) models.Measurement {
	return models.Measurement{Timestamp: ts, JoulesPerSecond: rate, Namespace: testKey.Namespace}
}

func newEngine(buffer *fakeBuffer, store storage.DurableStore, intensities IntensityReader, clk clock.Clock) *Engine {
	return NewEngine(buffer, nil, store, intensities, 10*time.Second, clk, testLogger())
}

// fakeTracker lists fixed keys, as the ingestor does for observed counters.
type fakeTracker struct {
	keys []models.WorkloadKey
}

func (f *fakeTracker) TrackedKeys() []models.WorkloadKey { return f.keys }

func TestMeasurementsLocalModeLastN(t *testing.T) {
	buffer := &fakeBuffer{series: map[models.WorkloadKey][]models.Measurement{
		testKey: {
			measurementAt(t0, 1),
			measurementAt(t0.Add(10*time.Second), 2),
			measurementAt(t0.Add(20*time.Second), 3),
		},
	}}
	engine := newEngine(buffer, nil, &fixedIntensity{}, clock.NewMockClock(t0))

	got, err := engine.Measurements(context.Background(), testKey, models.LastN(2))
	if err != nil {
		t.Fatalf("measurements: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected the trailing 2 measurements, got %d", len(got))
	}
	if got[0].JoulesPerSecond != 2 || got[1].JoulesPerSecond != 3 {
		t.Errorf("wrong selection: %v", got)
	}
}

func TestMeasurementsMergeDeduplicates(t *testing.T) {
	// The newest block was flushed to storage but is still in the ring, so
	// both sides return the same samples. They must be counted once.
	shared := []models.Measurement{
		measurementAt(t0, 5),
		measurementAt(t0.Add(10*time.Second), 6),
	}
	buffer := &fakeBuffer{series: map[models.WorkloadKey][]models.Measurement{testKey: shared}}

	store := storage.NewMemoryStore()
	store.Insert(context.Background(), testKey, shared)
	store.Insert(context.Background(), testKey, []models.Measurement{
		measurementAt(t0.Add(-time.Hour), 4), // only in storage
	})

	clk := clock.NewMockClock(t0.Add(time.Minute))
	engine := newEngine(buffer, store, &fixedIntensity{}, clk)

	got, err := engine.Measurements(context.Background(), testKey, models.LastN(10))
	if err != nil {
		t.Fatalf("measurements: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 distinct measurements, got %d", len(got))
	}
	if got[0].JoulesPerSecond != 4 {
		t.Error("storage-only measurement missing or out of order")
	}
}

func TestMeasurementsRangeInclusiveBounds(t *testing.T) {
	buffer := &fakeBuffer{series: map[models.WorkloadKey][]models.Measurement{
		testKey: {
			measurementAt(t0, 1),
			measurementAt(t0.Add(10*time.Second), 2),
			measurementAt(t0.Add(20*time.Second), 3),
		},
	}}
	engine := newEngine(buffer, nil, &fixedIntensity{}, clock.NewMockClock(t0))

	got, err := engine.Measurements(context.Background(), testKey,
		models.Range(t0, t0.Add(10*time.Second)))
	if err != nil {
		t.Fatalf("measurements: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both boundary measurements, got %d", len(got))
	}
}

func TestMeasurementsLastNDegradesWhenStoreDown(t *testing.T) {
	buffer := &fakeBuffer{series: map[models.WorkloadKey][]models.Measurement{
		testKey: {measurementAt(t0, 5)},
	}}
	engine := newEngine(buffer, &failingStore{}, &fixedIntensity{}, clock.NewMockClock(t0))

	got, err := engine.Measurements(context.Background(), testKey, models.LastN(5))
	if err != nil {
		t.Fatalf("expected in-memory fallback, got error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 measurement from memory, got %d", len(got))
	}
}

func TestMeasurementsRangeFailsWhenStoreDown(t *testing.T) {
	buffer := &fakeBuffer{series: map[models.WorkloadKey][]models.Measurement{
		testKey: {measurementAt(t0, 5)},
	}}
	engine := newEngine(buffer, &failingStore{}, &fixedIntensity{}, clock.NewMockClock(t0))

	_, err := engine.Measurements(context.Background(), testKey,
		models.Range(t0.Add(-time.Hour), t0))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestMeasurementsNoData(t *testing.T) {
	engine := newEngine(&fakeBuffer{series: map[models.WorkloadKey][]models.Measurement{}},
		nil, &fixedIntensity{}, clock.NewMockClock(t0))

	_, err := engine.Measurements(context.Background(), testKey, models.LastN(5))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestMeasurementsInvalidSelector(t *testing.T) {
	engine := newEngine(&fakeBuffer{}, nil, &fixedIntensity{}, clock.NewMockClock(t0))

	cases := []models.Selector{
		models.LastN(0),
		models.LastN(-3),
		models.Range(t0, t0.Add(-time.Hour)),
		{Mode: "median"},
	}
	for _, sel := range cases {
		if _, err := engine.Measurements(context.Background(), testKey, sel); !errors.Is(err, ErrInvalidSelector) {
			t.Errorf("selector %+v: expected ErrInvalidSelector, got %v", sel, err)
		}
	}
}

func TestComputeEmissionsArithmetic(t *testing.T) {
	// 100 J/s over a 10s interval is 1000 J per sample. At 360 g/kWh that
	// is 1000 / 3.6e6 * 360 = 0.1 g per sample.
	buffer := &fakeBuffer{series: map[models.WorkloadKey][]models.Measurement{
		testKey: {
			measurementAt(t0, 100),
			measurementAt(t0.Add(10*time.Second), 100),
		},
	}}
	engine := newEngine(buffer, nil, &fixedIntensity{value: 360, regions: []string{"DE"}}, clock.NewMockClock(t0))

	report, err := engine.ComputeEmissions(context.Background(), testKey, []string{"DE"}, models.LastN(10))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	de, ok := report.Regions["DE"]
	if !ok {
		t.Fatal("missing DE in report")
	}
	if math.Abs(de.CO2Grams-0.2) > 1e-9 {
		t.Errorf("expected 0.2 g total, got %f", de.CO2Grams)
	}
	if math.Abs(de.EnergyJoules-2000) > 1e-9 {
		t.Errorf("expected 2000 J total, got %f", de.EnergyJoules)
	}
	if report.MeasurementCount != 2 {
		t.Errorf("expected 2 measurements, got %d", report.MeasurementCount)
	}
	if !report.StartTime.Equal(t0) || !report.EndTime.Equal(t0.Add(10*time.Second)) {
		t.Errorf("wrong report bounds: %v .. %v", report.StartTime, report.EndTime)
	}
}

func TestComputeEmissionsUsesIntensityAtTimestamp(t *testing.T) {
	// The intensity changes between the two samples; each sample must be
	// priced with the value in effect at its own timestamp.
	step := t0.Add(5 * time.Second)
	buffer := &fakeBuffer{series: map[models.WorkloadKey][]models.Measurement{
		testKey: {
			measurementAt(t0, 100),                     // priced at 360 g/kWh -> 0.1 g
			measurementAt(t0.Add(10*time.Second), 100), // priced at 720 g/kWh -> 0.2 g
		},
	}}
	intensities := &steppedIntensity{step: step, before: 360, after: 720}
	engine := newEngine(buffer, nil, intensities, clock.NewMockClock(t0))

	report, err := engine.ComputeEmissions(context.Background(), testKey, []string{"DE"}, models.LastN(10))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	de := report.Regions["DE"]
	if math.Abs(de.CO2Grams-0.3) > 1e-9 {
		t.Errorf("expected 0.3 g total, got %f", de.CO2Grams)
	}
	if de.Measurements[0].IntensityGPerKWh != 360 || de.Measurements[1].IntensityGPerKWh != 720 {
		t.Error("per-measurement intensities not resolved at their timestamps")
	}
}

func TestComputeEmissionsDefaultsToAllRegions(t *testing.T) {
	buffer := &fakeBuffer{series: map[models.WorkloadKey][]models.Measurement{
		testKey: {measurementAt(t0, 100)},
	}}
	engine := newEngine(buffer, nil, &fixedIntensity{value: 100, regions: []string{"AT", "DE", "SI"}}, clock.NewMockClock(t0))

	report, err := engine.ComputeEmissions(context.Background(), testKey, nil, models.LastN(1))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(report.Regions) != 3 {
		t.Errorf("expected all 3 regions, got %d", len(report.Regions))
	}
}

func TestComputeEmissionsRejectsUnknownRegion(t *testing.T) {
	buffer := &fakeBuffer{series: map[models.WorkloadKey][]models.Measurement{
		testKey: {measurementAt(t0, 100)},
	}}
	engine := newEngine(buffer, nil, &fixedIntensity{value: 100, regions: []string{"DE", "FR"}}, clock.NewMockClock(t0))

	_, err := engine.ComputeEmissions(context.Background(), testKey, []string{"DE", "ZZ"}, models.LastN(1))
	if !errors.Is(err, ErrUnknownRegion) {
		t.Errorf("expected ErrUnknownRegion, got %v", err)
	}
}

func TestComputeEmissionsUsesArchivedIntensity(t *testing.T) {
	// The measurement is older than the in-memory intensity history, but the
	// value in effect then was archived. It must win over the memory
	// fallback.
	old := t0.Add(-10 * time.Hour)
	buffer := &fakeBuffer{}

	store := storage.NewMemoryStore()
	store.InsertIntensities(context.Background(), "DE", []models.IntensityRecord{
		{Region: "DE", Timestamp: old.Add(-30 * time.Minute), Value: 500},
	})
	store.Insert(context.Background(), testKey, []models.Measurement{measurementAt(old, 100)})

	engine := newEngine(buffer, store, &fixedIntensity{value: 148, regions: []string{"DE"}}, clock.NewMockClock(t0))

	report, err := engine.ComputeEmissions(context.Background(), testKey, []string{"DE"},
		models.Range(old.Add(-time.Hour), old.Add(time.Hour)))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	de := report.Regions["DE"]
	if de.Measurements[0].IntensityGPerKWh != 500 {
		t.Errorf("expected the archived 500 g/kWh, got %f", de.Measurements[0].IntensityGPerKWh)
	}
	// 100 J/s * 10s = 1000 J; 1000 / 3.6e6 * 500 g/kWh.
	if math.Abs(de.CO2Grams-1000.0/3.6e6*500) > 1e-9 {
		t.Errorf("wrong grams: %f", de.CO2Grams)
	}
}

func TestComputeEmissionsFallsBackWithoutArchivedRecord(t *testing.T) {
	buffer := &fakeBuffer{series: map[models.WorkloadKey][]models.Measurement{
		testKey: {measurementAt(t0, 100)},
	}}
	store := storage.NewMemoryStore()
	store.Insert(context.Background(), testKey, []models.Measurement{measurementAt(t0, 100)})

	engine := newEngine(buffer, store, &fixedIntensity{value: 148, regions: []string{"DE"}}, clock.NewMockClock(t0))

	report, err := engine.ComputeEmissions(context.Background(), testKey, []string{"DE"}, models.LastN(1))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := report.Regions["DE"].Measurements[0].IntensityGPerKWh; got != 148 {
		t.Errorf("expected the in-memory 148 g/kWh, got %f", got)
	}
}

func TestWorkloadsIncludesBaselineOnlyKeys(t *testing.T) {
	// A workload whose counter was observed once has a baseline but no
	// measurement yet. It must still be listed.
	seeded := models.WorkloadKey{Pod: "new-1", Container: "app", Namespace: "dev"}
	buffer := &fakeBuffer{series: map[models.WorkloadKey][]models.Measurement{
		testKey: {measurementAt(t0, 1)},
	}}
	tracker := &fakeTracker{keys: []models.WorkloadKey{seeded, testKey}}
	engine := NewEngine(buffer, tracker, nil, &fixedIntensity{}, 10*time.Second, clock.NewMockClock(t0), testLogger())

	keys, err := engine.Workloads(context.Background())
	if err != nil {
		t.Fatalf("workloads: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 workloads, got %d", len(keys))
	}
	if keys[0] != seeded || keys[1] != testKey {
		t.Errorf("unexpected order: %v", keys)
	}
}

func TestWorkloadsMergesBufferAndStore(t *testing.T) {
	stored := models.WorkloadKey{Pod: "api-1", Container: "app", Namespace: "dev"}
	buffer := &fakeBuffer{series: map[models.WorkloadKey][]models.Measurement{
		testKey: {measurementAt(t0, 1)},
	}}
	store := storage.NewMemoryStore()
	store.Insert(context.Background(), stored, []models.Measurement{measurementAt(t0, 2)})
	store.Insert(context.Background(), testKey, []models.Measurement{measurementAt(t0, 1)})

	engine := newEngine(buffer, store, &fixedIntensity{}, clock.NewMockClock(t0))

	keys, err := engine.Workloads(context.Background())
	if err != nil {
		t.Fatalf("workloads: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 distinct workloads, got %d", len(keys))
	}
	if keys[0] != stored || keys[1] != testKey {
		t.Errorf("unexpected order: %v", keys)
	}
}

func TestWorkloadsDegradesWhenStoreDown(t *testing.T) {
	buffer := &fakeBuffer{series: map[models.WorkloadKey][]models.Measurement{
		testKey: {measurementAt(t0, 1)},
	}}
	engine := newEngine(buffer, &failingStore{}, &fixedIntensity{}, clock.NewMockClock(t0))

	keys, err := engine.Workloads(context.Background())
	if err != nil {
		t.Fatalf("workloads: %v", err)
	}
	if len(keys) != 1 || keys[0] != testKey {
		t.Errorf("expected the in-memory key only, got %v", keys)
	}
}
