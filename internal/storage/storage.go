// Package storage provides durable measurement storage backends.
package storage

import (
	"context"
	"time"

	"github.com/E3-JSI/co2-emissions-prediction/pkg/models"
)

// DurableStore defines the interface for persisting and querying workload
// rate measurements. In local mode no store is configured and queries are
// served from the in-memory block history alone.
type DurableStore interface {
	// Insert persists the measurements of one completed block.
	Insert(ctx context.Context, key models.WorkloadKey, measurements []models.Measurement) error

	// QueryRange returns a workload's measurements with start <= timestamp <= end,
	// in chronological order.
	QueryRange(ctx context.Context, key models.WorkloadKey, start, end time.Time) ([]models.Measurement, error)

	// Workloads returns the workload keys with recently persisted data.
	Workloads(ctx context.Context) ([]models.WorkloadKey, error)

	// InsertIntensities persists carbon-intensity records for one region.
	InsertIntensities(ctx context.Context, region string, records []models.IntensityRecord) error

	// QueryIntensities returns a region's intensity records with
	// start <= timestamp <= end, in chronological order.
	QueryIntensities(ctx context.Context, region string, start, end time.Time) ([]models.IntensityRecord, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the storage.
	Close() error
}

// StoreStats provides storage statistics.
type StoreStats struct {
	TotalInserts      int64     `json:"total_inserts"`
	TotalMeasurements int64     `json:"total_measurements"`
	NewestMeasurement time.Time `json:"newest_measurement,omitempty"`
}
