package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/tow-etl-service/internal/domain"
	"github.com/couchcryptid/tow-etl-service/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StationQuerier is the read side of the station store.
type StationQuerier interface {
	StationIDs() []string
	Summary(id string) (domain.StationSummary, error)
	Coverage(id string, year int, metric domain.Metric) (domain.CoverageResult, error)
}

// Server exposes health, readiness, metrics and station query endpoints.
type Server struct {
	httpServer *http.Server
	stations   StationQuerier
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /stations routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, stations StationQuerier, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		stations: stations,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /stations", s.handleListStations)
	mux.HandleFunc("GET /stations/{id}/summary", s.handleSummary)
	mux.HandleFunc("GET /stations/{id}/coverage", s.handleCoverage)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleListStations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"stations": s.stations.StationIDs()})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.stations.Summary(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleCoverage scores ?metric= (temperature by default) for ?year=.
func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil || year < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "year must be a positive integer"})
		return
	}

	metric := domain.MetricTemperature
	if raw := q.Get("metric"); raw != "" {
		if metric, err = domain.ParseMetric(raw); err != nil {
			s.writeError(w, err)
			return
		}
	}

	res, err := s.stations.Coverage(r.PathValue("id"), year, metric)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrStationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownMetric):
		status = http.StatusBadRequest
	default:
		s.logger.Error("station query failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
