package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"wxstats/internal/repository"
	"wxstats/internal/services"
	"wxstats/pkg/logging"
	"wxstats/pkg/metrics"
)

const (
	defaultLimit  = 100
	maxLimit      = 1000
	apiDateLayout = "2006-01-02"
)

var validate = validator.New()

// WeatherHandler handles weather API endpoints
type WeatherHandler struct {
	weatherService *services.WeatherService
	logger         *logging.StructuredLogger
	metrics        *metrics.Collector
}

// NewWeatherHandler creates a new weather handler
func NewWeatherHandler(
	weatherService *services.WeatherService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *WeatherHandler {
	return &WeatherHandler{
		weatherService: weatherService,
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

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data   interface{} `json:"data"`
	Total  int         `json:"total"`
	Offset int         `json:"offset"`
	Limit  int         `json:"limit"`
}

// pageQuery holds the offset/limit pair shared by every list endpoint.
type pageQuery struct {
	Offset int `validate:"gte=0"`
	Limit  int `validate:"gte=1,lte=1000"`
}

func (p *pageQuery) bind(r *http.Request) error {
	q := r.URL.Query()

	var err error
	if p.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		return fmt.Errorf("offset must be an integer")
	}
	if p.Limit, err = intParam(q.Get("limit"), defaultLimit); err != nil {
		return fmt.Errorf("limit must be an integer")
	}
	return nil
}

// observationQuery holds query parameters for GET /api/weather.
type observationQuery struct {
	Page      pageQuery
	StationID string    `validate:"omitempty,max=64"`
	DateFrom  time.Time `validate:"omitempty"`
	DateTo    time.Time `validate:"omitempty,gtefield=DateFrom"`
}

func (o *observationQuery) bind(r *http.Request) error {
	if err := o.Page.bind(r); err != nil {
		return err
	}
	q := r.URL.Query()
	o.StationID = strings.TrimSpace(q.Get("station_id"))

	var err error
	if o.DateFrom, err = dateParam(q.Get("date_from")); err != nil {
		return fmt.Errorf("invalid date_from format, expected YYYY-MM-DD")
	}
	if o.DateTo, err = dateParam(q.Get("date_to")); err != nil {
		return fmt.Errorf("invalid date_to format, expected YYYY-MM-DD")
	}
	return nil
}

func (o *observationQuery) filter() repository.ObservationFilter {
	f := repository.ObservationFilter{Limit: o.Page.Limit, Offset: o.Page.Offset}
	if o.StationID != "" {
		f.StationCode = &o.StationID
	}
	if !o.DateFrom.IsZero() {
		f.DateFrom = &o.DateFrom
	}
	if !o.DateTo.IsZero() {
		f.DateTo = &o.DateTo
	}
	return f
}

// statisticsQuery holds query parameters for GET /api/weather/stats.
type statisticsQuery struct {
	Page      pageQuery
	StationID string `validate:"omitempty,max=64"`
	Year      *int   `validate:"omitempty,gte=1,lte=9999"`
}

func (s *statisticsQuery) bind(r *http.Request) error {
	if err := s.Page.bind(r); err != nil {
		return err
	}
	q := r.URL.Query()
	s.StationID = strings.TrimSpace(q.Get("station_id"))

	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid year, expected an integer")
		}
		s.Year = &year
	}
	return nil
}

func (s *statisticsQuery) filter() repository.StatisticsFilter {
	f := repository.StatisticsFilter{Year: s.Year, Limit: s.Page.Limit, Offset: s.Page.Offset}
	if s.StationID != "" {
		f.StationCode = &s.StationID
	}
	return f
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func dateParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(apiDateLayout, raw)
}

// validationMessage renders the first failed rule as a client-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Offset":
		return "offset must be >= 0"
	case "Limit":
		return fmt.Sprintf("limit must be between 1 and %d", maxLimit)
	case "DateTo":
		return "date_to must not be before date_from"
	case "StationID":
		return "station_id is too long"
	case "Year":
		return "year is out of range"
	}
	return fmt.Sprintf("invalid %s", strings.ToLower(fe.Field()))
}

// bindAndValidate fills q from the request and runs struct validation.
func (h *WeatherHandler) bindAndValidate(w http.ResponseWriter, r *http.Request, q interface{ bind(*http.Request) error }) bool {
	if err := q.bind(r); err != nil {
		h.metrics.RecordAPIError("bad_request", routeName(r))
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(q); err != nil {
		h.metrics.RecordAPIError("validation_error", routeName(r))
		h.sendError(w, r, validationMessage(err), http.StatusBadRequest)
		return false
	}
	return true
}

// GetObservations handles GET /api/weather
func (h *WeatherHandler) GetObservations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var q observationQuery
	if !h.bindAndValidate(w, r, &q) {
		return
	}
	filter := q.filter()

	observations, total, err := h.weatherService.GetObservations(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_OBSERVATIONS_ERROR] Failed to get observations", logging.Fields{
			"station_id": q.StationID,
			"offset":     filter.Offset,
			"limit":      filter.Limit,
		}, err)
		h.metrics.RecordAPIError("internal_error", routeName(r))
		h.sendError(w, r, "failed to retrieve observations", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, r, PaginatedResponse{
		Data:   observations,
		Total:  total,
		Offset: filter.Offset,
		Limit:  filter.Limit,
	}, http.StatusOK)
}

// GetStatistics handles GET /api/weather/stats
func (h *WeatherHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var q statisticsQuery
	if !h.bindAndValidate(w, r, &q) {
		return
	}
	filter := q.filter()

	statistics, total, err := h.weatherService.GetStatistics(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_STATISTICS_ERROR] Failed to get statistics", logging.Fields{
			"station_id": q.StationID,
			"offset":     filter.Offset,
			"limit":      filter.Limit,
		}, err)
		h.metrics.RecordAPIError("internal_error", routeName(r))
		h.sendError(w, r, "failed to retrieve statistics", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, r, PaginatedResponse{
		Data:   statistics,
		Total:  total,
		Offset: filter.Offset,
		Limit:  filter.Limit,
	}, http.StatusOK)
}

// GetStations handles GET /api/stations
func (h *WeatherHandler) GetStations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var q pageQuery
	if !h.bindAndValidate(w, r, &q) {
		return
	}

	stations, total, err := h.weatherService.GetStations(ctx, q.Limit, q.Offset)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_STATIONS_ERROR] Failed to get stations", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", routeName(r))
		h.sendError(w, r, "failed to retrieve stations", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, r, PaginatedResponse{
		Data:   stations,
		Total:  total,
		Offset: q.Offset,
		Limit:  q.Limit,
	}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *WeatherHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"database":  "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if err := h.weatherService.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Database unreachable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		status["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	}

	h.sendJSON(w, r, status, code)
}

// sendJSON sends a JSON response
func (h *WeatherHandler) sendJSON(w http.ResponseWriter, r *http.Request, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn(r.Context(), "[API_ENCODE_ERROR] Failed to write response", logging.Fields{
			"error": err.Error(),
		})
	}
}

// sendError sends an error response
func (h *WeatherHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.sendJSON(w, r, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// routeName returns the matched route template, falling back to the raw path.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// RegisterRoutes registers all weather API routes
func (h *WeatherHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/weather", h.GetObservations).Methods(http.MethodGet)
	router.HandleFunc("/api/weather/stats", h.GetStatistics).Methods(http.MethodGet)
	router.HandleFunc("/api/stations", h.GetStations).Methods(http.MethodGet)
	router.HandleFunc("/api/docs/openapi.json", h.OpenAPISpec).Methods(http.MethodGet)
	router.HandleFunc("/api/docs", h.SwaggerUI).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
}
