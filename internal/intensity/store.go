// Package intensity maintains current and historical carbon-intensity values
// per region, refreshed from an external source with bounded retry and
// fallback.
package intensity

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/E3-JSI/co2-emissions-prediction/internal/clock"
	"github.com/E3-JSI/co2-emissions-prediction/internal/retry"
	"github.com/E3-JSI/co2-emissions-prediction/pkg/config"
	"github.com/E3-JSI/co2-emissions-prediction/pkg/models"
)

// FetchFunc obtains the current intensity for one region. A single call is
// one best-effort attempt; the store's refresh loop owns retrying.
type FetchFunc func(ctx context.Context, region string) (float64, error)

// Archiver persists intensity records beyond the in-memory horizon, so
// emissions queries over old measurements can resolve the value in effect
// at the time. The durable store satisfies it.
type Archiver interface {
	InsertIntensities(ctx context.Context, region string, records []models.IntensityRecord) error
}

// Store holds per-region intensity values and their recent history. A usable
// value is always obtainable for a known region: current, last-known, or the
// static default.
type Store struct {
	mu       sync.Mutex
	current  map[string]float64
	history  map[string][]models.IntensityRecord
	defaults map[string]float64

	horizon       time.Duration
	refreshPeriod time.Duration
	retryCfg      retry.Config
	sleep         retry.Sleeper
	archive       Archiver
	clk           clock.Clock
	logger        *log.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

// Option customizes a Store.
type Option func(*Store)

// WithSleeper injects the pause function used between fetch attempts. Tests
// pass a no-op.
func WithSleeper(sleep retry.Sleeper) Option {
	return func(s *Store) { s.sleep = sleep }
}

// WithArchive persists each refreshed record to durable storage as it is
// recorded.
func WithArchive(archive Archiver) Option {
	return func(s *Store) { s.archive = archive }
}

// WithDefaults replaces the static default intensity table.
func WithDefaults(defaults map[string]float64) Option {
	return func(s *Store) {
		s.defaults = make(map[string]float64, len(defaults))
		for region, value := range defaults {
			s.defaults[region] = value
		}
	}
}

// NewStore creates a store seeded from the static default table: every
// region starts with its default as the current value and one seed record,
// so lookups resolve before the first refresh completes.
func NewStore(cfg config.IntensityConfig, clk clock.Clock, logger *log.Logger, opts ...Option) *Store {
	s := &Store{
		current:       make(map[string]float64),
		history:       make(map[string][]models.IntensityRecord),
		defaults:      DefaultIntensities,
		horizon:       cfg.HistoryHorizon,
		refreshPeriod: cfg.RefreshPeriod,
		retryCfg:      retry.Config{Attempts: cfg.FetchAttempts, Delay: cfg.FetchRetryDelay},
		sleep:         time.Sleep,
		clk:           clk,
		logger:        logger,
		ready:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	seedTime := clk.Now()
	for region, value := range s.defaults {
		s.current[region] = value
		s.history[region] = []models.IntensityRecord{{Region: region, Timestamp: seedTime, Value: value}}
	}

	return s
}

// Ready returns a channel closed once the first full refresh pass over all
// regions has finished. Consumers that must not query before intensities are
// bootstrapped block on it.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Regions returns the tracked region codes, sorted.
func (s *Store) Regions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	regions := make([]string, 0, len(s.current))
	for region := range s.current {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions
}

// RefreshAll refreshes every tracked region sequentially, never concurrently,
// so the external source is not overloaded. Each region gets the configured
// attempt budget; on exhaustion the previous current value (or the static
// default) is substituted. A record is always appended so time-indexed
// lookups stay consistent. The one-time ready signal fires after the first
// complete pass.
func (s *Store) RefreshAll(ctx context.Context, fetch FetchFunc) {
	regions := s.Regions()
	s.logger.Printf("Refreshing intensities for %d regions", len(regions))

	updated := 0
	for _, region := range regions {
		if ctx.Err() != nil {
			return
		}
		region := region

		value, fresh := retry.Value(s.retryCfg, s.sleep,
			func() (float64, error) { return fetch(ctx, region) },
			func() float64 { return s.fallbackFor(region) })
		if fresh {
			updated++
		} else {
			s.logger.Printf("Intensity fetch exhausted for %s; keeping %.1f g/kWh", region, value)
		}

		rec := s.record(region, value)
		if s.archive != nil {
			if err := s.archive.InsertIntensities(ctx, region, []models.IntensityRecord{rec}); err != nil {
				s.logger.Printf("Failed to archive intensity for %s: %v", region, err)
			}
		}
	}

	s.logger.Printf("Intensity refresh done: %d/%d fetched", updated, len(regions))
	s.readyOnce.Do(func() { close(s.ready) })
}

// Get returns the current intensity for a region.
func (s *Store) Get(region string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value, ok := s.current[region]; ok {
		return value
	}
	return s.defaults[region]
}

// GetAt returns the intensity in effect at ts: the value of the latest
// record with timestamp <= ts. When ts predates all history the static
// default applies.
func (s *Store) GetAt(region string, ts time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.history[region]
	for i := len(records) - 1; i >= 0; i-- {
		if !records[i].Timestamp.After(ts) {
			return records[i].Value
		}
	}
	return s.defaults[region]
}

// Snapshot returns a copy of the current value per region.
func (s *Store) Snapshot() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]float64, len(s.current))
	for region, value := range s.current {
		snapshot[region] = value
	}
	return snapshot
}

// History returns a copy of the retained records for a region, oldest first.
func (s *Store) History(region string) []models.IntensityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]models.IntensityRecord, len(s.history[region]))
	copy(records, s.history[region])
	return records
}

// Run refreshes immediately, then repeats aligned to refresh-period
// boundaries (top of the hour for the default period) until the context is
// cancelled.
func (s *Store) Run(ctx context.Context, fetch FetchFunc) {
	s.RefreshAll(ctx, fetch)

	for {
		now := s.clk.Now()
		// A small grace offset past the boundary, so upstream sources have
		// published the new hour's value.
		next := now.Truncate(s.refreshPeriod).Add(s.refreshPeriod + 5*time.Second)

		s.logger.Printf("Next intensity refresh at %s", next.Format(time.RFC3339))
		select {
		case <-ctx.Done():
			return
		case <-s.clk.After(next.Sub(now)):
		}

		s.RefreshAll(ctx, fetch)
	}
}

func (s *Store) fallbackFor(region string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value, ok := s.current[region]; ok {
		return value
	}
	return s.defaults[region]
}

func (s *Store) record(region string, value float64) models.IntensityRecord {
	now := s.clk.Now()
	rec := models.IntensityRecord{Region: region, Timestamp: now, Value: value}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current[region] = value

	records := append(s.history[region], rec)
	cutoff := now.Add(-s.horizon)
	start := 0
	for start < len(records)-1 && records[start].Timestamp.Before(cutoff) {
		start++
	}
	s.history[region] = records[start:]
	return rec
}
