package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"wxstats/pkg/logging"
	"wxstats/pkg/metrics"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestID tags every request with an id, reusing a client-supplied one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// Instrument records request counts, latency and in-flight requests per route.
func Instrument(m *metrics.Collector, logger *logging.StructuredLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.APIInFlight.Inc()
			defer m.APIInFlight.Dec()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := routeName(r)
			duration := time.Since(start)
			m.APIRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
			m.RecordAPIRequest(route, r.Method, strconv.Itoa(rec.status))

			logger.Debug(r.Context(), "[API_REQUEST] Request served", logging.Fields{
				"method":      r.Method,
				"route":       route,
				"status":      rec.status,
				"duration_ms": duration.Milliseconds(),
			})
		})
	}
}

// NewRouter wires the weather routes behind the request id and metrics middleware.
func NewRouter(h *WeatherHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestID, Instrument(h.metrics, h.logger))
	h.RegisterRoutes(router)
	return router
}
