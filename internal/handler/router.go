package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YangLiliang/minivenue/internal/engine"
)

// NewRouter creates the ops sidecar router: health, metrics, and a
// read-only view of the resting book. Order flow itself goes over the
// grpc surface; this router exists for operators and probes.
func NewRouter(eng *engine.Matcher, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogging(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/orders", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, eng.Query())
	})

	r.Get("/orders/{order_id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "order_id"), 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", "order_id must be a positive integer")
			return
		}
		rep, ok := eng.Lookup(id)
		if !ok {
			WriteError(w, http.StatusNotFound, "not_found", "can not find order")
			return
		}
		WriteJSON(w, http.StatusOK, rep)
	})

	return r
}

// requestID is middleware that tags every request with an id, echoed in
// the X-Request-Id response header. Inbound ids are honored so callers can
// correlate across hops.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("request_id", ww.Header().Get("X-Request-Id")),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}
