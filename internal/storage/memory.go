package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/E3-JSI/co2-emissions-prediction/pkg/models"
)

// MemoryStore implements DurableStore in process memory. It backs tests and
// ad-hoc runs where no InfluxDB instance is available; nothing survives a
// restart.
type MemoryStore struct {
	mu           sync.RWMutex
	measurements map[models.WorkloadKey][]models.Measurement
	intensities  map[string][]models.IntensityRecord

	totalInserts int64
	newest       time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		measurements: make(map[models.WorkloadKey][]models.Measurement),
		intensities:  make(map[string][]models.IntensityRecord),
	}
}

// Insert appends the measurements, keeping each workload's series sorted.
func (s *MemoryStore) Insert(ctx context.Context, key models.WorkloadKey, measurements []models.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	series := append(s.measurements[key], measurements...)
	sort.Slice(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
	s.measurements[key] = series

	s.totalInserts++
	for _, m := range measurements {
		if m.Timestamp.After(s.newest) {
			s.newest = m.Timestamp
		}
	}
	return nil
}

// QueryRange returns measurements with start <= timestamp <= end, oldest first.
func (s *MemoryStore) QueryRange(ctx context.Context, key models.WorkloadKey, start, end time.Time) ([]models.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Measurement, 0)
	for _, m := range s.measurements[key] {
		if m.Timestamp.Before(start) || m.Timestamp.After(end) {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

// InsertIntensities appends the region's records, keeping them sorted.
func (s *MemoryStore) InsertIntensities(ctx context.Context, region string, records []models.IntensityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	series := append(s.intensities[region], records...)
	sort.Slice(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
	s.intensities[region] = series
	return nil
}

// QueryIntensities returns records with start <= timestamp <= end, oldest first.
func (s *MemoryStore) QueryIntensities(ctx context.Context, region string, start, end time.Time) ([]models.IntensityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.IntensityRecord, 0)
	for _, rec := range s.intensities[region] {
		if rec.Timestamp.Before(start) || rec.Timestamp.After(end) {
			continue
		}
		result = append(result, rec)
	}
	return result, nil
}

// Workloads returns all stored workload keys.
func (s *MemoryStore) Workloads(ctx context.Context) ([]models.WorkloadKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]models.WorkloadKey, 0, len(s.measurements))
	for key := range s.measurements {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Stats returns storage statistics.
func (s *MemoryStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(0)
	for _, series := range s.measurements {
		total += int64(len(series))
	}
	return StoreStats{
		TotalInserts:      s.totalInserts,
		TotalMeasurements: total,
		NewestMeasurement: s.newest,
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
