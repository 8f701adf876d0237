// Package ingest converts cumulative energy-counter samples into rate
// measurements and batches them into fixed-size blocks per workload.
package ingest

import (
	"log"
	"sync"
	"time"

	"github.com/E3-JSI/co2-emissions-prediction/pkg/models"
)

// Ingestor derives rate measurements from cumulative joules counters,
// tracking the last-seen value per key and handling counter resets.
type Ingestor struct {
	mu         sync.Mutex
	lastJoules map[models.WorkloadKey]float64
	interval   time.Duration
	logger     *log.Logger
}

// NewIngestor creates an ingestor for the given sample interval.
func NewIngestor(sampleInterval time.Duration, logger *log.Logger) *Ingestor {
	return &Ingestor{
		lastJoules: make(map[models.WorkloadKey]float64),
		interval:   sampleInterval,
		logger:     logger,
	}
}

// Ingest processes one raw counter sample. The first sample for a key only
// seeds the baseline; no measurement exists without a prior reading. A
// negative delta is a counter reset (workload restart): the baseline is
// resynchronized and no measurement is emitted. Otherwise the returned
// measurement carries delta/interval as its rate.
func (i *Ingestor) Ingest(key models.WorkloadKey, joules float64, timestamp time.Time) (models.Measurement, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	last, seen := i.lastJoules[key]
	i.lastJoules[key] = joules

	if !seen {
		i.logger.Printf("Tracking new workload %s (baseline %.1f J)", key, joules)
		return models.Measurement{}, false
	}

	delta := joules - last
	if delta < 0 {
		i.logger.Printf("Counter reset detected for %s (%.1f -> %.1f); skipping sample", key, last, joules)
		return models.Measurement{}, false
	}

	return models.Measurement{
		Timestamp:       timestamp,
		JoulesPerSecond: delta / i.interval.Seconds(),
		Namespace:       key.Namespace,
		JoulesTotal:     joules,
	}, true
}

// TrackedKeys returns the keys that have at least a baseline recorded.
func (i *Ingestor) TrackedKeys() []models.WorkloadKey {
	i.mu.Lock()
	defer i.mu.Unlock()

	keys := make([]models.WorkloadKey, 0, len(i.lastJoules))
	for key := range i.lastJoules {
		keys = append(keys, key)
	}
	return keys
}
