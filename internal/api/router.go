package api

import (
	"fmt"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/heysubinoy/quotakv/internal/logr"
	"github.com/heysubinoy/quotakv/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestIDHeader carries the identifier assigned to each request.
const RequestIDHeader = "X-Request-ID"

// RouterConfig configures the HTTP router.
type RouterConfig struct {
	// EnableRequestLogging logs every request with its status and duration.
	EnableRequestLogging bool
	// Gatherer serves /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Stats, if set, serves its snapshot on GET /stats and resets it on
	// DELETE /stats.
	Stats *store.InstrumentedStore
}

// NewRouter builds the HTTP handler for the service: the store endpoint plus
// health, stats and metrics routes.
func NewRouter(logger logr.Logger, srv *Server, cfg RouterConfig) *mux.Router {
	// Keys may contain '/' or dot segments, so match on the escaped path and
	// leave it uncleaned.
	r := mux.NewRouter().UseEncodedPath().SkipClean(true)

	// Catch panics and return 500s
	r.Use(gorillaHandlers.RecoveryHandler(gorillaHandlers.PrintRecoveryStack(true)))

	r.Use(requestID)
	if cfg.EnableRequestLogging {
		r.Use(requestLogger(logger))
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	if cfg.Stats != nil {
		r.HandleFunc("/stats", StatsHandler(cfg.Stats)).Methods(http.MethodGet)
		r.HandleFunc("/stats", ResetStatsHandler(cfg.Stats)).Methods(http.MethodDelete)
	}

	srv.RegisterRoutes(r)
	return r
}

// requestID propagates the caller's request ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger logr.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			logger.Info("request",
				"duration", fmt.Sprintf("%dms", m.Duration.Milliseconds()),
				"status", m.Code,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", r.Header.Get(RequestIDHeader))
		})
	}
}
