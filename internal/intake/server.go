package intake

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/dispatcher"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MessageIDHeader lets HTTP callers opt into redelivery protection.
const MessageIDHeader = "Idempotency-Key"

// ReadinessCheck reports whether one dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type WorkflowStats interface {
	WorkflowCounts(ctx context.Context, workflow string) (succeeded, failed int, err error)
}

type Server struct {
	intake *Intake
	checks map[string]ReadinessCheck
	stats  WorkflowStats
}

// NewServer builds the HTTP surface. stats may be nil when analytics is off.
func NewServer(in *Intake, checks map[string]ReadinessCheck, stats WorkflowStats) *Server {
	return &Server{intake: in, checks: checks, stats: stats}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", s.handleEvent)
		r.Get("/workflows/{workflow}/stats", s.handleStats)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	failures := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "not ready",
			"failures": failures,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev dispatcher.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.intake.Handle(r.Context(), ev, r.Header.Get(MessageIDHeader))
	if err != nil {
		status := http.StatusInternalServerError
		if stdErr, ok := errors.AsStandardError(err); ok {
			switch {
			case stdErr.Code == errors.ErrCodeInvalidInput || stdErr.Code == errors.ErrCodeUnknownEventType:
				status = http.StatusBadRequest
			case stdErr.Retryable:
				status = http.StatusServiceUnavailable
			}
		}
		writeError(w, status, err.Error())
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics disabled")
		return
	}
	workflow := chi.URLParam(r, "workflow")
	succeeded, failed, err := s.stats.WorkflowCounts(r.Context(), workflow)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workflow":  workflow,
		"succeeded": succeeded,
		"failed":    failed,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
