// Package config provides configuration structures and loading for all
// service components.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Mode selects where completed blocks are retained.
type Mode string

const (
	// ModeLocal keeps data in memory only; nothing is persisted.
	ModeLocal Mode = "local"

	// ModeDurable persists completed blocks to the durable store.
	ModeDurable Mode = "durable"
)

// TrackerConfig holds configuration for sampling and block buffering.
type TrackerConfig struct {
	// SampleInterval is how often the energy exporter is sampled
	SampleInterval time.Duration `yaml:"sample_interval" json:"sample_interval"`

	// ExporterURL is the metrics endpoint of the energy exporter
	ExporterURL string `yaml:"exporter_url" json:"exporter_url"`

	// CounterName is the cumulative-joules counter family to track
	CounterName string `yaml:"counter_name" json:"counter_name"`

	// ScrapeTimeout bounds a single exporter scrape
	ScrapeTimeout time.Duration `yaml:"scrape_timeout" json:"scrape_timeout"`

	// BlockCapacity is the measurement count at which a block completes
	BlockCapacity int `yaml:"block_capacity" json:"block_capacity"`

	// BlockHistory is the number of completed blocks retained per key
	BlockHistory int `yaml:"block_history" json:"block_history"`

	// ReplayFile, when set, replays recorded counter snapshots from a CSV
	// file instead of scraping the exporter
	ReplayFile string `yaml:"replay_file" json:"replay_file"`
}

// IntensityConfig holds configuration for the carbon-intensity store and its
// refresh loop.
type IntensityConfig struct {
	// APIURL is the base URL of the intensity data source
	APIURL string `yaml:"api_url" json:"api_url"`

	// APIToken authenticates against the intensity data source
	APIToken string `yaml:"api_token" json:"api_token"`

	// FetchTimeout bounds a single fetch attempt for one region
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`

	// FetchAttempts is the per-region attempt bound during a refresh pass
	FetchAttempts int `yaml:"fetch_attempts" json:"fetch_attempts"`

	// FetchRetryDelay is the pause between attempts for one region
	FetchRetryDelay time.Duration `yaml:"fetch_retry_delay" json:"fetch_retry_delay"`

	// HistoryHorizon is how long per-region records are retained
	HistoryHorizon time.Duration `yaml:"history_horizon" json:"history_horizon"`

	// RefreshPeriod is the interval between full refresh passes; passes are
	// aligned to period boundaries (top of the hour for the default)
	RefreshPeriod time.Duration `yaml:"refresh_period" json:"refresh_period"`
}

// FlushConfig holds configuration for the durable-write flush queue.
type FlushConfig struct {
	// Interval is the flush loop period
	Interval time.Duration `yaml:"interval" json:"interval"`

	// InsertAttempts is the in-tick attempt bound per batch before the batch
	// is re-enqueued for the next tick
	InsertAttempts int `yaml:"insert_attempts" json:"insert_attempts"`

	// InsertRetryDelay is the pause between in-tick attempts
	InsertRetryDelay time.Duration `yaml:"insert_retry_delay" json:"insert_retry_delay"`
}

// APIConfig holds configuration for the REST API server.
type APIConfig struct {
	// Host is the API server host
	Host string `yaml:"host" json:"host"`

	// Port is the API server port
	Port int `yaml:"port" json:"port"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// DefaultLastN is the default trailing sample count for queries
	DefaultLastN int `yaml:"default_last_n" json:"default_last_n"`

	// MaxLastN is the maximum trailing sample count for queries
	MaxLastN int `yaml:"max_last_n" json:"max_last_n"`
}

// ServiceConfig is the full configuration for the emissions service.
type ServiceConfig struct {
	Mode Mode `yaml:"mode" json:"mode"`

	// InfluxURL and InfluxToken configure the durable store connection;
	// required when Mode is durable
	InfluxURL    string `yaml:"influx_url" json:"influx_url"`
	InfluxToken  string `yaml:"influx_token" json:"influx_token"`
	InfluxOrg    string `yaml:"influx_org" json:"influx_org"`
	InfluxBucket string `yaml:"influx_bucket" json:"influx_bucket"`

	Tracker   TrackerConfig   `yaml:"tracker" json:"tracker"`
	Intensity IntensityConfig `yaml:"intensity" json:"intensity"`
	Flush     FlushConfig     `yaml:"flush" json:"flush"`
	API       APIConfig       `yaml:"api" json:"api"`
}

// DefaultTrackerConfig returns a default tracker configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		SampleInterval: getEnvDuration("SAMPLE_INTERVAL", 10*time.Second),
		ExporterURL:    getEnv("EXPORTER_URL", "http://localhost:9102/metrics"),
		CounterName:    getEnv("ENERGY_COUNTER", "kepler_container_joules"),
		ScrapeTimeout:  getEnvDuration("SCRAPE_TIMEOUT", 5*time.Second),
		BlockCapacity:  getEnvInt("BLOCK_CAPACITY", 5),
		BlockHistory:   getEnvInt("BLOCK_HISTORY", 10),
		ReplayFile:     os.Getenv("REPLAY_FILE"),
	}
}

// DefaultIntensityConfig returns a default intensity configuration.
func DefaultIntensityConfig() IntensityConfig {
	return IntensityConfig{
		APIURL:          getEnv("INTENSITY_API_URL", "https://api.electricitymap.org"),
		APIToken:        os.Getenv("INTENSITY_API_TOKEN"),
		FetchTimeout:    getEnvDuration("INTENSITY_FETCH_TIMEOUT", 15*time.Second),
		FetchAttempts:   getEnvInt("INTENSITY_FETCH_ATTEMPTS", 3),
		FetchRetryDelay: getEnvDuration("INTENSITY_RETRY_DELAY", 2*time.Second),
		HistoryHorizon:  getEnvDuration("INTENSITY_HISTORY_HORIZON", 5*time.Hour),
		RefreshPeriod:   getEnvDuration("INTENSITY_REFRESH_PERIOD", time.Hour),
	}
}

// DefaultFlushConfig returns a default flush configuration.
func DefaultFlushConfig() FlushConfig {
	return FlushConfig{
		Interval:         getEnvDuration("DB_FLUSH_INTERVAL", 5*time.Second),
		InsertAttempts:   getEnvInt("DB_INSERT_ATTEMPTS", 2),
		InsertRetryDelay: getEnvDuration("DB_INSERT_RETRY_DELAY", time.Second),
	}
}

// DefaultAPIConfig returns a default API configuration.
func DefaultAPIConfig() APIConfig {
	return APIConfig{
		Host:         getEnv("API_HOST", "0.0.0.0"),
		Port:         getEnvInt("API_PORT", 8080),
		ReadTimeout:  getEnvDuration("API_READ_TIMEOUT", 10*time.Second),
		WriteTimeout: getEnvDuration("API_WRITE_TIMEOUT", 30*time.Second),
		DefaultLastN: getEnvInt("DEFAULT_LAST_N", 5),
		MaxLastN:     getEnvInt("MAX_LAST_N", 1000),
	}
}

// DefaultServiceConfig returns the full default configuration from
// environment variables.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Mode:         Mode(getEnv("MODE", string(ModeLocal))),
		InfluxURL:    getEnv("INFLUXDB_URL", "http://localhost:8086"),
		InfluxToken:  os.Getenv("INFLUXDB_TOKEN"),
		InfluxOrg:    getEnv("INFLUXDB_ORG", "e3"),
		InfluxBucket: getEnv("INFLUXDB_BUCKET", "workload_energy"),
		Tracker:      DefaultTrackerConfig(),
		Intensity:    DefaultIntensityConfig(),
		Flush:        DefaultFlushConfig(),
		API:          DefaultAPIConfig(),
	}
}

// Validate returns the list of configuration problems. An empty list means
// the configuration is usable. Problems degrade readiness at startup rather
// than crashing the process.
func (c *ServiceConfig) Validate() []string {
	var problems []string

	if c.Mode != ModeLocal && c.Mode != ModeDurable {
		problems = append(problems, fmt.Sprintf("MODE must be one of: %s, %s", ModeLocal, ModeDurable))
	}
	if c.Tracker.SampleInterval <= 0 {
		problems = append(problems, "SAMPLE_INTERVAL must be positive")
	}
	if c.Tracker.ExporterURL == "" {
		problems = append(problems, "EXPORTER_URL is required")
	}
	if c.Tracker.BlockCapacity <= 0 {
		problems = append(problems, "BLOCK_CAPACITY must be positive")
	}
	if c.Tracker.BlockHistory <= 0 {
		problems = append(problems, "BLOCK_HISTORY must be positive")
	}
	if c.Flush.Interval <= 0 {
		problems = append(problems, "DB_FLUSH_INTERVAL must be positive")
	}
	if c.Intensity.FetchAttempts <= 0 {
		problems = append(problems, "INTENSITY_FETCH_ATTEMPTS must be positive")
	}
	if c.Mode == ModeDurable {
		if c.InfluxURL == "" {
			problems = append(problems, "INFLUXDB_URL is required in durable mode")
		}
		if c.InfluxToken == "" {
			problems = append(problems, "INFLUXDB_TOKEN is required in durable mode")
		}
	}

	return problems
}

// Helper functions for environment variable parsing.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare integers are treated as seconds, matching the original
		// deployment's environment files.
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
