package storage

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/E3-JSI/co2-emissions-prediction/pkg/models"
)

// energyMeasurement is the InfluxDB measurement name for workload rate samples.
const energyMeasurement = "workload_energy"

// intensityMeasurement is the InfluxDB measurement name for carbon-intensity
// records.
const intensityMeasurement = "carbon_intensity"

// InfluxConfig holds InfluxDB connection settings.
type InfluxConfig struct {
	URL    string `json:"url"`    // e.g., "http://localhost:8086"
	Token  string `json:"token"`  // API token
	Org    string `json:"org"`    // Organization name
	Bucket string `json:"bucket"` // Bucket name
}

// InfluxStore implements DurableStore on InfluxDB 2.x. Measurements are
// written as points tagged with pod, container and namespace, carrying the
// rate and the raw counter value as fields.
type InfluxStore struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	config   InfluxConfig

	totalInserts      int64
	totalMeasurements int64
}

// NewInfluxStore creates an InfluxDB-backed store and verifies the
// connection before returning.
func NewInfluxStore(config InfluxConfig) (*InfluxStore, error) {
	client := influxdb2.NewClient(config.URL, config.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		return nil, fmt.Errorf("InfluxDB health check failed: %s", health.Status)
	}

	return &InfluxStore{
		client:   client,
		writeAPI: client.WriteAPIBlocking(config.Org, config.Bucket),
		queryAPI: client.QueryAPI(config.Org),
		config:   config,
	}, nil
}

// Insert persists a completed block's measurements in a single write.
func (s *InfluxStore) Insert(ctx context.Context, key models.WorkloadKey, measurements []models.Measurement) error {
	points := make([]*write.Point, 0, len(measurements))
	for _, m := range measurements {
		point := influxdb2.NewPointWithMeasurement(energyMeasurement).
			AddTag("pod", key.Pod).
			AddTag("container", key.Container).
			AddTag("namespace", key.Namespace).
			AddField("joules_per_second", m.JoulesPerSecond).
			AddField("joules_total", m.JoulesTotal).
			SetTime(m.Timestamp)
		points = append(points, point)
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write to InfluxDB: %w", err)
	}

	atomic.AddInt64(&s.totalInserts, 1)
	atomic.AddInt64(&s.totalMeasurements, int64(len(measurements)))
	return nil
}

// QueryRange returns the workload's measurements inside [start, end],
// oldest first.
func (s *InfluxStore) QueryRange(ctx context.Context, key models.WorkloadKey, start, end time.Time) ([]models.Measurement, error) {
	fluxQuery := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: %s, stop: %s)
			|> filter(fn: (r) => r._measurement == "%s")
			|> filter(fn: (r) => r.pod == "%s" and r.container == "%s" and r.namespace == "%s")
			|> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"])
	`, s.config.Bucket,
		start.Format(time.RFC3339),
		// The Flux stop bound is exclusive; nudge it so end itself matches.
		end.Add(time.Nanosecond).Format(time.RFC3339Nano),
		energyMeasurement,
		key.Pod, key.Container, key.Namespace)

	result, err := s.queryAPI.Query(ctx, fluxQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query InfluxDB: %w", err)
	}
	defer result.Close()

	measurements := make([]models.Measurement, 0)
	for result.Next() {
		record := result.Record()
		values := record.Values()

		m := models.Measurement{Timestamp: record.Time()}
		if v, ok := values["joules_per_second"].(float64); ok {
			m.JoulesPerSecond = v
		}
		if v, ok := values["joules_total"].(float64); ok {
			m.JoulesTotal = v
		}
		if v, ok := values["namespace"].(string); ok {
			m.Namespace = v
		}
		measurements = append(measurements, m)
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("query error: %w", result.Err())
	}

	return measurements, nil
}

// InsertIntensities persists intensity records as points tagged with the
// region, so historical emissions queries can resolve values past the
// in-memory horizon.
func (s *InfluxStore) InsertIntensities(ctx context.Context, region string, records []models.IntensityRecord) error {
	points := make([]*write.Point, 0, len(records))
	for _, rec := range records {
		point := influxdb2.NewPointWithMeasurement(intensityMeasurement).
			AddTag("region", region).
			AddField("grams_per_kwh", rec.Value).
			SetTime(rec.Timestamp)
		points = append(points, point)
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write intensities to InfluxDB: %w", err)
	}
	return nil
}

// QueryIntensities returns the region's intensity records inside
// [start, end], oldest first.
func (s *InfluxStore) QueryIntensities(ctx context.Context, region string, start, end time.Time) ([]models.IntensityRecord, error) {
	fluxQuery := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: %s, stop: %s)
			|> filter(fn: (r) => r._measurement == "%s")
			|> filter(fn: (r) => r.region == "%s" and r._field == "grams_per_kwh")
			|> sort(columns: ["_time"])
	`, s.config.Bucket,
		start.Format(time.RFC3339),
		// The Flux stop bound is exclusive; nudge it so end itself matches.
		end.Add(time.Nanosecond).Format(time.RFC3339Nano),
		intensityMeasurement, region)

	result, err := s.queryAPI.Query(ctx, fluxQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query intensities: %w", err)
	}
	defer result.Close()

	records := make([]models.IntensityRecord, 0)
	for result.Next() {
		record := result.Record()
		value, ok := record.Value().(float64)
		if !ok {
			continue
		}
		records = append(records, models.IntensityRecord{
			Region:    region,
			Timestamp: record.Time(),
			Value:     value,
		})
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("query error: %w", result.Err())
	}

	return records, nil
}

// Workloads returns the distinct workload keys written in the last 24 hours.
func (s *InfluxStore) Workloads(ctx context.Context) ([]models.WorkloadKey, error) {
	fluxQuery := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -24h)
			|> filter(fn: (r) => r._measurement == "%s")
			|> group(columns: ["pod", "container", "namespace"])
			|> last()
	`, s.config.Bucket, energyMeasurement)

	result, err := s.queryAPI.Query(ctx, fluxQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query workloads: %w", err)
	}
	defer result.Close()

	seen := make(map[models.WorkloadKey]struct{})
	for result.Next() {
		values := result.Record().Values()

		key := models.WorkloadKey{}
		if v, ok := values["pod"].(string); ok {
			key.Pod = v
		}
		if v, ok := values["container"].(string); ok {
			key.Container = v
		}
		if v, ok := values["namespace"].(string); ok {
			key.Namespace = v
		}
		if key.Pod == "" {
			continue
		}

		seen[key] = struct{}{}
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("query error: %w", result.Err())
	}

	keys := make([]models.WorkloadKey, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	return keys, nil
}

// Ping checks the InfluxDB health endpoint.
func (s *InfluxStore) Ping(ctx context.Context) error {
	health, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("InfluxDB unreachable: %w", err)
	}
	if health.Status != "pass" {
		return fmt.Errorf("InfluxDB health check failed: %s", health.Status)
	}
	return nil
}

// Stats returns storage statistics.
func (s *InfluxStore) Stats() StoreStats {
	return StoreStats{
		TotalInserts:      atomic.LoadInt64(&s.totalInserts),
		TotalMeasurements: atomic.LoadInt64(&s.totalMeasurements),
	}
}

// Close closes the InfluxDB client.
func (s *InfluxStore) Close() error {
	s.client.Close()
	return nil
}
