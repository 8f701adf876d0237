// Package models defines the core data structures for workload energy
// tracking and carbon-emissions accounting.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// WorkloadKey uniquely identifies one tracked workload series.
// A key appears the moment its first raw counter sample arrives.
type WorkloadKey struct {
	// Pod is the workload (pod) name
	Pod string `json:"pod"`

	// Container is the container name within the pod
	Container string `json:"container"`

	// Namespace is the namespace the workload runs in
	Namespace string `json:"namespace"`
}

// String returns a compact representation for logging.
func (k WorkloadKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Namespace, k.Pod, k.Container)
}

// Measurement is a derived power reading for one workload at one instant.
// Measurements are immutable once derived; timestamp order is canonical.
type Measurement struct {
	// Timestamp is when the underlying counter sample was taken
	Timestamp time.Time `json:"timestamp"`

	// JoulesPerSecond is the energy rate over the sample interval
	JoulesPerSecond float64 `json:"joules_per_second"`

	// Namespace is carried on each measurement for downstream grouping
	Namespace string `json:"namespace"`

	// JoulesTotal is the cumulative counter value the rate was derived from
	JoulesTotal float64 `json:"joules_total"`
}

// Block is a fixed-capacity, time-ordered batch of measurements for one key.
// A block is mutable while open and immutable once complete.
type Block struct {
	// StartTime is the timestamp of the first measurement in the block
	StartTime time.Time `json:"start_time"`

	// EndTime is the timestamp of the most recent measurement
	EndTime time.Time `json:"end_time"`

	// Measurements in append (chronological) order
	Measurements []Measurement `json:"measurements"`

	// Capacity is the measurement count at which the block completes
	Capacity int `json:"capacity"`

	// Complete marks the block as closed; complete blocks are read-only
	Complete bool `json:"complete"`
}

// Clone returns a deep copy of the block. Callers that hand blocks across
// goroutine boundaries clone first so readers never observe later appends.
func (b *Block) Clone() Block {
	clone := *b
	clone.Measurements = make([]Measurement, len(b.Measurements))
	copy(clone.Measurements, b.Measurements)
	return clone
}

// IntensityRecord is one observed (or fallback) carbon-intensity value for a
// region. Records are append-only per region and form a step function over
// time.
type IntensityRecord struct {
	// Region is the ISO2 zone code (e.g. "DE")
	Region string `json:"region"`

	// Timestamp is when the value was observed or substituted
	Timestamp time.Time `json:"timestamp"`

	// Value is the carbon intensity in gCO2eq/kWh
	Value float64 `json:"value"`
}

// SelectionMode picks how measurements are selected for a query.
type SelectionMode string

const (
	// SelectLastN keeps the final N measurements after a global sort.
	SelectLastN SelectionMode = "last_n"

	// SelectRange keeps measurements with start <= timestamp <= end.
	SelectRange SelectionMode = "range"
)

// Selector describes the measurement window of an emissions or raw-data
// query: either the trailing N samples or an inclusive time range.
type Selector struct {
	Mode SelectionMode `json:"mode"`

	// N is the trailing sample count (SelectLastN only)
	N int `json:"n,omitempty"`

	// Start and End bound the window inclusively (SelectRange only)
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// LastN returns a selector for the trailing n measurements.
func LastN(n int) Selector {
	return Selector{Mode: SelectLastN, N: n}
}

// Range returns a selector for the inclusive window [start, end].
func Range(start, end time.Time) Selector {
	return Selector{Mode: SelectRange, Start: start, End: end}
}

// MeasurementEmissions is the per-measurement breakdown of an emissions
// computation for a single region.
type MeasurementEmissions struct {
	Timestamp        time.Time `json:"timestamp"`
	JoulesPerSecond  float64   `json:"joules_per_second"`
	EnergyJoules     float64   `json:"energy_j"`
	CO2Grams         float64   `json:"co2_g"`
	IntensityGPerKWh float64   `json:"intensity_g_per_kwh"`
}

// RegionEmissions aggregates emissions for one region over the selected
// measurements.
type RegionEmissions struct {
	// CO2Grams is the total emissions over the selection
	CO2Grams float64 `json:"co2_g"`

	// EnergyJoules is the total energy over the selection
	EnergyJoules float64 `json:"energy_j"`

	// Measurements is the per-measurement breakdown
	Measurements []MeasurementEmissions `json:"measurements"`
}

// EmissionsReport is the result of an emissions query for one key across one
// or more regions.
type EmissionsReport struct {
	Key              WorkloadKey   `json:"key"`
	SelectionMode    SelectionMode `json:"selection_mode"`
	MeasurementCount int           `json:"measurement_count"`

	// StartTime and EndTime bound the selected measurements
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// Regions maps region code to its aggregate and breakdown
	Regions map[string]RegionEmissions `json:"regions"`
}

// ToJSON serializes the report to JSON bytes.
func (r *EmissionsReport) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON deserializes JSON bytes into an EmissionsReport.
func (r *EmissionsReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}

// JoulesPerKWh is the number of joules in one kilowatt-hour.
const JoulesPerKWh = 3.6e6

// EmissionsFor computes the emissions of a single measurement against an
// intensity value, given the sample interval the rate was derived over.
func EmissionsFor(m Measurement, intensity float64, sampleInterval time.Duration) MeasurementEmissions {
	energyJ := m.JoulesPerSecond * sampleInterval.Seconds()
	energyKWh := energyJ / JoulesPerKWh
	return MeasurementEmissions{
		Timestamp:        m.Timestamp,
		JoulesPerSecond:  m.JoulesPerSecond,
		EnergyJoules:     energyJ,
		CO2Grams:         energyKWh * intensity,
		IntensityGPerKWh: intensity,
	}
}
