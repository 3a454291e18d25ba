package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"climate-api/internal/models"
	"climate-api/internal/repository"
	"climate-api/internal/services"
	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

const (
	routePrecipitation = "/api/v1.0/precipitation"
	routeStations      = "/api/v1.0/stations"
	routeTobs          = "/api/v1.0/tobs"
	routeStart         = "/api/v1.0/{start}"
	routeStartEnd      = "/api/v1.0/{start}/{end}"
)

const homePage = `Welcome to the Climate App! Visit the following routes:<br/>` +
	`/api/v1.0/precipitation<br/>` +
	`/api/v1.0/stations<br/>` +
	`/api/v1.0/tobs<br/>` +
	`/api/v1.0/&lt;start&gt;<br/>` +
	`/api/v1.0/&lt;start&gt;/&lt;end&gt;<br/>`

// ClimateHandler handles climate API endpoints
type ClimateHandler struct {
	climateService *services.ClimateService
	logger         *logging.StructuredLogger
	metrics        *metrics.Collector
}

// NewClimateHandler creates a new climate handler
func NewClimateHandler(
	climateService *services.ClimateService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ClimateHandler {
	return &ClimateHandler{
		climateService: climateService,
		logger:         logger,
		metrics:        metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Home handles GET /
func (h *ClimateHandler) Home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, homePage)
}

// GetPrecipitation handles GET /api/v1.0/precipitation
func (h *ClimateHandler) GetPrecipitation(w http.ResponseWriter, r *http.Request) {
	series, err := h.climateService.Precipitation(r.Context())
	if err != nil {
		h.fail(w, r, "[API_PRECIPITATION_ERROR] Failed to get precipitation", "failed to retrieve precipitation", err)
		return
	}

	h.sendJSON(w, series, http.StatusOK)
}

// GetStations handles GET /api/v1.0/stations
func (h *ClimateHandler) GetStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.climateService.Stations(r.Context())
	if err != nil {
		h.fail(w, r, "[API_STATIONS_ERROR] Failed to list stations", "failed to retrieve stations", err)
		return
	}

	h.sendJSON(w, stations, http.StatusOK)
}

// GetTemperatureObservations handles GET /api/v1.0/tobs
func (h *ClimateHandler) GetTemperatureObservations(w http.ResponseWriter, r *http.Request) {
	observations, err := h.climateService.MostActiveStationObservations(r.Context())
	if err != nil {
		h.fail(w, r, "[API_TOBS_ERROR] Failed to get temperature observations", "failed to retrieve temperature observations", err)
		return
	}

	h.sendJSON(w, observations, http.StatusOK)
}

// GetTemperatureStats handles GET /api/v1.0/{start} and /api/v1.0/{start}/{end}.
// The dates are used exactly as given.
func (h *ClimateHandler) GetTemperatureStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	dateRange := models.DateRange{Start: vars["start"]}
	if end, ok := vars["end"]; ok {
		dateRange.End = &end
	}

	stats, err := h.climateService.TemperatureStats(r.Context(), dateRange)
	if err != nil {
		h.fail(w, r, "[API_TEMPERATURE_STATS_ERROR] Failed to calculate temperature stats", "failed to calculate temperature statistics", err)
		return
	}

	h.sendJSON(w, stats, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *ClimateHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now().UTC().Format(time.RFC3339)

	if err := h.climateService.HealthCheck(ctx); err != nil {
		h.logger.Error(ctx, "[HEALTH_CHECK_FAILED] Dataset unreachable", logging.Fields{}, err)
		h.sendJSON(w, map[string]string{
			"status":    "unhealthy",
			"timestamp": now,
		}, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, map[string]string{
		"status":    "healthy",
		"timestamp": now,
	}, http.StatusOK)
}

// fail logs err, counts it and answers 500
func (h *ClimateHandler) fail(w http.ResponseWriter, r *http.Request, logMessage, message string, err error) {
	ctx := r.Context()
	endpoint := routeTemplate(r)

	errorType := "internal_error"
	if errors.Is(err, repository.ErrEmptyDataset) {
		errorType = "empty_dataset"
		message = err.Error()
	}

	h.logger.Error(ctx, logMessage, logging.Fields{
		"endpoint":   endpoint,
		"error_type": errorType,
		"vars":       mux.Vars(r),
	}, err)
	h.metrics.RecordAPIError(errorType, endpoint)
	h.sendError(w, message, http.StatusInternalServerError)
}

// sendJSON sends a JSON response
func (h *ClimateHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn(context.Background(), "[API_ENCODE_ERROR] Failed to write response", logging.Fields{
			"error": err.Error(),
		})
	}
}

// sendError sends an error response
func (h *ClimateHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all climate API routes. The literal
// /api/v1.0/* routes must be registered before the {start} pattern.
func (h *ClimateHandler) RegisterRoutes(router *mux.Router) {
	router.Use(RequestID, Instrument(h.metrics))

	router.HandleFunc("/", h.Home).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods(http.MethodGet)
	router.HandleFunc("/api/docs", SwaggerUI).Methods(http.MethodGet)

	router.HandleFunc(routePrecipitation, h.GetPrecipitation).Methods(http.MethodGet)
	router.HandleFunc(routeStations, h.GetStations).Methods(http.MethodGet)
	router.HandleFunc(routeTobs, h.GetTemperatureObservations).Methods(http.MethodGet)
	router.HandleFunc(routeStart, h.GetTemperatureStats).Methods(http.MethodGet)
	router.HandleFunc(routeStartEnd, h.GetTemperatureStats).Methods(http.MethodGet)
}
