// Package handlers provides HTTP handlers for the REST API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/E3-JSI/co2-emissions-prediction/internal/flush"
	"github.com/E3-JSI/co2-emissions-prediction/internal/ingest"
	"github.com/E3-JSI/co2-emissions-prediction/internal/query"
	"github.com/E3-JSI/co2-emissions-prediction/pkg/models"
)

// Engine answers measurement and emissions queries.
type Engine interface {
	Measurements(ctx context.Context, key models.WorkloadKey, sel models.Selector) ([]models.Measurement, error)
	ComputeEmissions(ctx context.Context, key models.WorkloadKey, regions []string, sel models.Selector) (*models.EmissionsReport, error)
	Workloads(ctx context.Context) ([]models.WorkloadKey, error)
}

// IntensityReader exposes the carbon-intensity state.
type IntensityReader interface {
	Snapshot() map[string]float64
	History(region string) []models.IntensityRecord
	Regions() []string
}

// ServiceStats aggregates the counters exposed by the stats endpoint.
type ServiceStats struct {
	Buffer ingest.BufferStats `json:"buffer"`
	Flush  flush.QueueStats   `json:"flush"`
	Mode   string             `json:"mode"`
}

// StatsFunc supplies a stats snapshot.
type StatsFunc func() ServiceStats

// Handler handles emissions API requests.
type Handler struct {
	engine       Engine
	intensities  IntensityReader
	stats        StatsFunc
	defaultLastN int
	maxLastN     int
}

// NewHandler creates a new handler.
func NewHandler(engine Engine, intensities IntensityReader, stats StatsFunc, defaultLastN, maxLastN int) *Handler {
	return &Handler{
		engine:       engine,
		intensities:  intensities,
		stats:        stats,
		defaultLastN: defaultLastN,
		maxLastN:     maxLastN,
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error" example:"internal_error"`
	Message string `json:"message,omitempty" example:"Failed to fetch data"`
}

// WorkloadListResponse represents the response for listing workloads.
type WorkloadListResponse struct {
	Data  []models.WorkloadKey `json:"data"`
	Count int                  `json:"count" example:"12"`
}

// MeasurementsResponse represents the response for measurement queries.
type MeasurementsResponse struct {
	Key   models.WorkloadKey   `json:"key"`
	Data  []models.Measurement `json:"data"`
	Count int                  `json:"count" example:"5"`
}

// IntensityListResponse represents the current intensity per region.
type IntensityListResponse struct {
	Data  map[string]float64 `json:"data"`
	Count int                `json:"count" example:"42"`
}

// IntensityHistoryResponse represents one region's retained history.
type IntensityHistoryResponse struct {
	Region  string                   `json:"region" example:"DE"`
	Current float64                  `json:"current" example:"148"`
	History []models.IntensityRecord `json:"history"`
}

// EmissionsRequest is the body of an emissions query.
type EmissionsRequest struct {
	Pod       string   `json:"pod" example:"web-1"`
	Container string   `json:"container" example:"app"`
	Namespace string   `json:"namespace" example:"prod"`
	Regions   []string `json:"regions,omitempty" example:"DE,FR"`

	// LastN selects the trailing N measurements. Mutually exclusive with
	// StartTime/EndTime.
	LastN int `json:"last_n,omitempty" example:"5"`

	// StartTime and EndTime select an inclusive RFC3339 window.
	StartTime string `json:"start_time,omitempty" example:"2025-06-01T00:00:00Z"`
	EndTime   string `json:"end_time,omitempty" example:"2025-06-02T00:00:00Z"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   err,
		Message: message,
	})
}

// writeQueryError maps a query-engine error to an HTTP response.
func writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, query.ErrInvalidSelector), errors.Is(err, query.ErrUnknownRegion):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, query.ErrNoData):
		writeError(w, http.StatusNotFound, "not_found", "No measurements for this workload")
	case errors.Is(err, query.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// ListWorkloads godoc
// @Summary      List tracked workloads
// @Description  Returns every workload with live or recently persisted measurements
// @Tags         workloads
// @Produce      json
// @Success      200  {object}  WorkloadListResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/v1/workloads [get]
func (h *Handler) ListWorkloads(w http.ResponseWriter, r *http.Request) {
	keys, err := h.engine.Workloads(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, WorkloadListResponse{
		Data:  keys,
		Count: len(keys),
	})
}

// GetMeasurements godoc
// @Summary      Get workload measurements
// @Description  Returns a workload's rate measurements, merged across memory and durable storage
// @Tags         workloads
// @Produce      json
// @Param        pod         query     string  true   "Pod name"
// @Param        container   query     string  true   "Container name"
// @Param        namespace   query     string  false  "Namespace"
// @Param        last_n      query     int     false  "Trailing sample count"        default(5)
// @Param        start_time  query     string  false  "Start time filter (RFC3339)"  example(2025-06-01T00:00:00Z)
// @Param        end_time    query     string  false  "End time filter (RFC3339)"    example(2025-06-02T00:00:00Z)
// @Success      200  {object}  MeasurementsResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /api/v1/workloads/measurements [get]
func (h *Handler) GetMeasurements(w http.ResponseWriter, r *http.Request) {
	key, ok := keyFromQuery(w, r)
	if !ok {
		return
	}
	sel, ok := h.selectorFromQuery(w, r)
	if !ok {
		return
	}

	measurements, err := h.engine.Measurements(r.Context(), key, sel)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MeasurementsResponse{
		Key:   key,
		Data:  measurements,
		Count: len(measurements),
	})
}

// ComputeEmissions godoc
// @Summary      Compute workload emissions
// @Description  Computes CO2 emissions for a workload's measurements across one or more regions
// @Tags         emissions
// @Accept       json
// @Produce      json
// @Param        request  body      EmissionsRequest  true  "Emissions query"
// @Success      200  {object}  models.EmissionsReport
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /api/v1/emissions [post]
func (h *Handler) ComputeEmissions(w http.ResponseWriter, r *http.Request) {
	var req EmissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}
	if req.Pod == "" || req.Container == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "pod and container are required")
		return
	}

	key := models.WorkloadKey{Pod: req.Pod, Container: req.Container, Namespace: req.Namespace}

	sel, ok := h.selectorFromRequest(w, req)
	if !ok {
		return
	}

	report, err := h.engine.ComputeEmissions(r.Context(), key, req.Regions, sel)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ListIntensities godoc
// @Summary      List current carbon intensities
// @Description  Returns the current carbon intensity per region in gCO2eq/kWh
// @Tags         intensities
// @Produce      json
// @Success      200  {object}  IntensityListResponse
// @Router       /api/v1/intensities [get]
func (h *Handler) ListIntensities(w http.ResponseWriter, r *http.Request) {
	snapshot := h.intensities.Snapshot()
	writeJSON(w, http.StatusOK, IntensityListResponse{
		Data:  snapshot,
		Count: len(snapshot),
	})
}

// GetIntensityHistory godoc
// @Summary      Get a region's intensity history
// @Description  Returns the retained intensity records for one region, oldest first
// @Tags         intensities
// @Produce      json
// @Param        region  path      string  true  "Region code"  example(DE)
// @Success      200  {object}  IntensityHistoryResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/intensities/{region} [get]
func (h *Handler) GetIntensityHistory(w http.ResponseWriter, r *http.Request) {
	region := mux.Vars(r)["region"]

	snapshot := h.intensities.Snapshot()
	current, ok := snapshot[region]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Unknown region")
		return
	}

	writeJSON(w, http.StatusOK, IntensityHistoryResponse{
		Region:  region,
		Current: current,
		History: h.intensities.History(region),
	})
}

// GetStats godoc
// @Summary      Get service statistics
// @Description  Returns ingestion buffer and flush queue counters
// @Tags         stats
// @Produce      json
// @Success      200  {object}  ServiceStats
// @Router       /api/v1/stats [get]
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats())
}

// keyFromQuery builds the workload key from query parameters.
func keyFromQuery(w http.ResponseWriter, r *http.Request) (models.WorkloadKey, bool) {
	q := r.URL.Query()
	key := models.WorkloadKey{
		Pod:       q.Get("pod"),
		Container: q.Get("container"),
		Namespace: q.Get("namespace"),
	}
	if key.Pod == "" || key.Container == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "pod and container are required")
		return models.WorkloadKey{}, false
	}
	return key, true
}

// selectorFromQuery parses the selection window from query parameters.
// A time bound switches to range mode; otherwise last_n applies.
func (h *Handler) selectorFromQuery(w http.ResponseWriter, r *http.Request) (models.Selector, bool) {
	q := r.URL.Query()

	startStr, endStr := q.Get("start_time"), q.Get("end_time")
	if startStr != "" || endStr != "" {
		if startStr == "" || endStr == "" {
			writeError(w, http.StatusBadRequest, "bad_request", "start_time and end_time must be given together")
			return models.Selector{}, false
		}
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request",
				"Invalid start_time format. Use RFC3339 (e.g., 2025-06-01T00:00:00Z)")
			return models.Selector{}, false
		}
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request",
				"Invalid end_time format. Use RFC3339 (e.g., 2025-06-02T00:00:00Z)")
			return models.Selector{}, false
		}
		return models.Range(start, end), true
	}

	n := h.defaultLastN
	if nStr := q.Get("last_n"); nStr != "" {
		parsed, err := strconv.Atoi(nStr)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", "Invalid last_n parameter")
			return models.Selector{}, false
		}
		n = parsed
	}
	if n > h.maxLastN {
		n = h.maxLastN
	}
	return models.LastN(n), true
}

// selectorFromRequest parses the selection window from an emissions request
// body, with the same precedence as the query-parameter form.
func (h *Handler) selectorFromRequest(w http.ResponseWriter, req EmissionsRequest) (models.Selector, bool) {
	if req.StartTime != "" || req.EndTime != "" {
		if req.StartTime == "" || req.EndTime == "" {
			writeError(w, http.StatusBadRequest, "bad_request", "start_time and end_time must be given together")
			return models.Selector{}, false
		}
		start, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request",
				"Invalid start_time format. Use RFC3339 (e.g., 2025-06-01T00:00:00Z)")
			return models.Selector{}, false
		}
		end, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request",
				"Invalid end_time format. Use RFC3339 (e.g., 2025-06-02T00:00:00Z)")
			return models.Selector{}, false
		}
		return models.Range(start, end), true
	}

	n := req.LastN
	if n == 0 {
		n = h.defaultLastN
	}
	if n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid last_n parameter")
		return models.Selector{}, false
	}
	if n > h.maxLastN {
		n = h.maxLastN
	}
	return models.LastN(n), true
}
