// Package api provides the REST API router.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/E3-JSI/co2-emissions-prediction/internal/api/handlers"
	"github.com/E3-JSI/co2-emissions-prediction/internal/health"
)

// HealthReporter answers the Kubernetes probe endpoints.
type HealthReporter interface {
	Liveness() health.Liveness
	Readiness() health.Readiness
}

// RouterConfig configures the API router.
type RouterConfig struct {
	// DefaultLastN is the trailing sample count when a query gives none
	DefaultLastN int

	// MaxLastN is the maximum trailing sample count
	MaxLastN int
}

// DefaultRouterConfig returns a router config with sensible defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		DefaultLastN: 5,
		MaxLastN:     1000,
	}
}

// NewRouter creates a new mux router with all routes configured.
func NewRouter(engine handlers.Engine, intensities handlers.IntensityReader, reporter HealthReporter,
	stats handlers.StatsFunc, config RouterConfig) *mux.Router {
	router := mux.NewRouter()

	handler := handlers.NewHandler(engine, intensities, stats, config.DefaultLastN, config.MaxLastN)

	// Health check endpoints for Kubernetes probes
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, http.StatusOK, reporter.Liveness())
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		readiness := reporter.Readiness()
		status := http.StatusOK
		if !readiness.Ready {
			status = http.StatusServiceUnavailable
		}
		writeProbe(w, status, readiness)
	}).Methods(http.MethodGet)

	// Swagger UI
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// GET /api/v1/workloads - List tracked workloads
	api.HandleFunc("/workloads", handler.ListWorkloads).Methods(http.MethodGet)

	// GET /api/v1/workloads/measurements - Get a workload's measurements
	api.HandleFunc("/workloads/measurements", handler.GetMeasurements).Methods(http.MethodGet)

	// POST /api/v1/emissions - Compute emissions for a workload
	api.HandleFunc("/emissions", handler.ComputeEmissions).Methods(http.MethodPost)

	// GET /api/v1/intensities - Current intensity per region
	api.HandleFunc("/intensities", handler.ListIntensities).Methods(http.MethodGet)

	// GET /api/v1/intensities/{region} - One region's retained history
	api.HandleFunc("/intensities/{region}", handler.GetIntensityHistory).Methods(http.MethodGet)

	// GET /api/v1/stats - Service statistics
	api.HandleFunc("/stats", handler.GetStats).Methods(http.MethodGet)

	return router
}

func writeProbe(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
