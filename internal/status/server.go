package status

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"qaflow/internal/metrics"
	"qaflow/internal/model"
)

// Server exposes the aggregator over HTTP. It always answers with a
// well-formed body: a StatusView, a not_found view, or an error object.
type Server struct {
	aggregator *Aggregator
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewServer(aggregator *Aggregator, logger *slog.Logger, m *metrics.Metrics) *Server {
	return &Server{aggregator: aggregator, logger: logger, metrics: m}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.RequestTrackingMiddleware)
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/api/v1/runs/{runID}/status", s.handleGetStatus)
	return r
}

// ListenAndServe blocks serving the router on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("Status server listening", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	view, err := s.aggregator.GetStatus(r.Context(), runID)
	if err != nil {
		s.logger.Error("Status lookup failed", "run_id", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": string(model.StatusError),
			"error":  "storage lookup failed",
		})
		return
	}

	code := http.StatusOK
	if view.Status == model.StatusNotFound {
		code = http.StatusNotFound
	}
	writeJSON(w, code, view)
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
