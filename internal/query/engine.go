// Package query merges in-memory block history with durable storage and
// computes carbon emissions over the merged measurement series.
package query

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/E3-JSI/co2-emissions-prediction/internal/clock"
	"github.com/E3-JSI/co2-emissions-prediction/internal/storage"
	"github.com/E3-JSI/co2-emissions-prediction/pkg/models"
)

// Common errors returned by the query engine.
var (
	ErrNoData           = errors.New("no measurements for workload")
	ErrStoreUnavailable = errors.New("durable store unavailable")
	ErrInvalidSelector  = errors.New("invalid selector")
	ErrUnknownRegion    = errors.New("unknown region")
)

// lastNLookback bounds how far back the durable store is consulted when a
// query asks for the trailing N measurements rather than an explicit range.
const lastNLookback = 24 * time.Hour

// intensityLookback is prepended to an emissions window when fetching
// archived intensity records, so the record in effect at the window's start
// is included even though it was written earlier.
const intensityLookback = 24 * time.Hour

// MeasurementBuffer is the in-memory side of a query: the live block history
// kept by the ingest path.
type MeasurementBuffer interface {
	Flatten(key models.WorkloadKey) []models.Measurement
	Keys() []models.WorkloadKey
}

// IntensityReader resolves the carbon intensity in effect at a timestamp.
type IntensityReader interface {
	GetAt(region string, ts time.Time) float64
	Regions() []string
}

// KeyTracker lists workloads whose counters have been observed, including
// ones still waiting on their first measurement. May be nil.
type KeyTracker interface {
	TrackedKeys() []models.WorkloadKey
}

// Engine answers measurement and emissions queries. The durable store is nil
// in local mode; queries are then served from the block history alone.
type Engine struct {
	buffer         MeasurementBuffer
	tracker        KeyTracker
	store          storage.DurableStore
	intensities    IntensityReader
	sampleInterval time.Duration
	clk            clock.Clock
	logger         *log.Logger
}

// NewEngine creates a query engine. Pass a nil store for local mode.
func NewEngine(buffer MeasurementBuffer, tracker KeyTracker, store storage.DurableStore, intensities IntensityReader, sampleInterval time.Duration, clk clock.Clock, logger *log.Logger) *Engine {
	return &Engine{
		buffer:         buffer,
		tracker:        tracker,
		store:          store,
		intensities:    intensities,
		sampleInterval: sampleInterval,
		clk:            clk,
		logger:         logger,
	}
}

// dedupKey identifies a measurement across the memory and storage copies of
// the same sample. A block can be present in both when it was flushed but
// not yet evicted from the in-memory ring.
type dedupKey struct {
	ts        int64
	rate      float64
	namespace string
}

// Measurements returns the workload's measurements for the selector, merged
// across the block history and the durable store, deduplicated and in
// chronological order.
func (e *Engine) Measurements(ctx context.Context, key models.WorkloadKey, sel models.Selector) ([]models.Measurement, error) {
	if err := validateSelector(sel); err != nil {
		return nil, err
	}

	merged := e.buffer.Flatten(key)

	if e.store != nil {
		stored, err := e.queryStore(ctx, key, sel)
		if err != nil {
			if sel.Mode == models.SelectRange {
				// A range can reach past the in-memory ring; partial
				// answers would silently drop history.
				return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			e.logger.Printf("Store query failed for %s, serving from memory: %v", key, err)
		} else {
			merged = append(merged, stored...)
		}
	}

	merged = dedupe(merged)
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	selected := applySelector(merged, sel)
	if len(selected) == 0 {
		return nil, ErrNoData
	}
	return selected, nil
}

// ComputeEmissions converts the selected measurements into CO2 grams for
// each requested region, using the intensity in effect at each measurement's
// timestamp. An empty region list means all tracked regions. When the window
// reaches past the in-memory intensity horizon, archived records from the
// durable store resolve the historical values.
func (e *Engine) ComputeEmissions(ctx context.Context, key models.WorkloadKey, regions []string, sel models.Selector) (*models.EmissionsReport, error) {
	if err := e.validateRegions(regions); err != nil {
		return nil, err
	}

	measurements, err := e.Measurements(ctx, key, sel)
	if err != nil {
		return nil, err
	}

	if len(regions) == 0 {
		regions = e.intensities.Regions()
	}

	report := &models.EmissionsReport{
		Key:              key,
		SelectionMode:    sel.Mode,
		MeasurementCount: len(measurements),
		StartTime:        measurements[0].Timestamp,
		EndTime:          measurements[len(measurements)-1].Timestamp,
		Regions:          make(map[string]models.RegionEmissions, len(regions)),
	}

	for _, region := range regions {
		getAt := e.intensityAt(ctx, region, report.StartTime, report.EndTime)
		agg := models.RegionEmissions{
			Measurements: make([]models.MeasurementEmissions, 0, len(measurements)),
		}
		for _, m := range measurements {
			me := models.EmissionsFor(m, getAt(m.Timestamp), e.sampleInterval)
			agg.CO2Grams += me.CO2Grams
			agg.EnergyJoules += me.EnergyJoules
			agg.Measurements = append(agg.Measurements, me)
		}
		report.Regions[region] = agg
	}

	return report, nil
}

// intensityAt builds a region's intensity lookup for one report. Archived
// records covering the window are fetched once and take precedence; the
// in-memory store answers for timestamps they do not cover, and on archive
// errors the lookup degrades to memory alone.
func (e *Engine) intensityAt(ctx context.Context, region string, start, end time.Time) func(ts time.Time) float64 {
	var archived []models.IntensityRecord
	if e.store != nil {
		records, err := e.store.QueryIntensities(ctx, region, start.Add(-intensityLookback), end)
		if err != nil {
			e.logger.Printf("Intensity history query failed for %s, serving from memory: %v", region, err)
		} else {
			archived = records
		}
	}

	return func(ts time.Time) float64 {
		for i := len(archived) - 1; i >= 0; i-- {
			if !archived[i].Timestamp.After(ts) {
				return archived[i].Value
			}
		}
		return e.intensities.GetAt(region, ts)
	}
}

// validateRegions rejects regions the intensity store does not track.
func (e *Engine) validateRegions(regions []string) error {
	if len(regions) == 0 {
		return nil
	}
	known := make(map[string]struct{})
	for _, region := range e.intensities.Regions() {
		known[region] = struct{}{}
	}
	for _, region := range regions {
		if _, ok := known[region]; !ok {
			return fmt.Errorf("%w %q", ErrUnknownRegion, region)
		}
	}
	return nil
}

// Workloads returns every known workload key: the ones whose counters have
// been observed (including baseline-only ones), the ones with live in-memory
// blocks, plus, in durable mode, the ones with recently persisted data.
func (e *Engine) Workloads(ctx context.Context) ([]models.WorkloadKey, error) {
	seen := make(map[models.WorkloadKey]struct{})
	for _, key := range e.buffer.Keys() {
		seen[key] = struct{}{}
	}
	if e.tracker != nil {
		for _, key := range e.tracker.TrackedKeys() {
			seen[key] = struct{}{}
		}
	}

	if e.store != nil {
		stored, err := e.store.Workloads(ctx)
		if err != nil {
			e.logger.Printf("Store workload listing failed, serving from memory: %v", err)
		} else {
			for _, key := range stored {
				seen[key] = struct{}{}
			}
		}
	}

	keys := make([]models.WorkloadKey, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys, nil
}

// queryStore fetches the selector's window from durable storage. For a
// trailing-N selection the window is the recent lookback period.
func (e *Engine) queryStore(ctx context.Context, key models.WorkloadKey, sel models.Selector) ([]models.Measurement, error) {
	switch sel.Mode {
	case models.SelectRange:
		return e.store.QueryRange(ctx, key, sel.Start, sel.End)
	default:
		now := e.clk.Now()
		return e.store.QueryRange(ctx, key, now.Add(-lastNLookback), now)
	}
}

func validateSelector(sel models.Selector) error {
	switch sel.Mode {
	case models.SelectLastN:
		if sel.N <= 0 {
			return fmt.Errorf("%w: last_n requires n > 0", ErrInvalidSelector)
		}
	case models.SelectRange:
		if sel.End.Before(sel.Start) {
			return fmt.Errorf("%w: range end precedes start", ErrInvalidSelector)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidSelector, sel.Mode)
	}
	return nil
}

// dedupe removes duplicate copies of the same sample, identified by
// timestamp, rate and namespace.
func dedupe(measurements []models.Measurement) []models.Measurement {
	seen := make(map[dedupKey]struct{}, len(measurements))
	out := measurements[:0]
	for _, m := range measurements {
		k := dedupKey{ts: m.Timestamp.UnixNano(), rate: m.JoulesPerSecond, namespace: m.Namespace}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, m)
	}
	return out
}

// applySelector narrows sorted measurements to the selector's window.
func applySelector(measurements []models.Measurement, sel models.Selector) []models.Measurement {
	switch sel.Mode {
	case models.SelectRange:
		out := make([]models.Measurement, 0, len(measurements))
		for _, m := range measurements {
			if m.Timestamp.Before(sel.Start) || m.Timestamp.After(sel.End) {
				continue
			}
			out = append(out, m)
		}
		return out
	default:
		if sel.N >= len(measurements) {
			return measurements
		}
		return measurements[len(measurements)-sel.N:]
	}
}
