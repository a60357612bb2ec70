// File: api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/untillpro/goutils/logger"

	"voting-coordinator/identity"
	"voting-coordinator/models"
	"voting-coordinator/service"
)

// Server exposes one voting session over HTTP.
type Server struct {
	coordinator *service.Coordinator
	dispatcher  *service.Dispatcher
	tracker     *identity.Tracker
	metrics     *service.MetricsCollector
	hub         *Hub
	router      *mux.Router
}

type CandidatesResponse struct {
	Role       models.Role            `json:"role"`
	Candidates []models.CandidateView `json:"candidates"`
}

type RegisterCandidateRequest struct {
	Name  string `json:"name"`
	Party string `json:"party"`
}

type CastVoteRequest struct {
	CandidateID uint64 `json:"candidate_id"`
}

type IdentityRequest struct {
	Identity string `json:"identity"`
}

type OutcomeResponse struct {
	models.Outcome
	Message string `json:"message"`
}

type SessionResponse struct {
	Identity         models.Identity `json:"identity"`
	Role             models.Role     `json:"role"`
	Phase            service.Phase   `json:"phase"`
	CandidatesLoaded bool            `json:"candidates_loaded"`
	StartedAt        time.Time       `json:"started_at"`
}

func NewServer(coordinator *service.Coordinator, dispatcher *service.Dispatcher, tracker *identity.Tracker,
	metrics *service.MetricsCollector, hub *Hub) *Server {
	s := &Server{
		coordinator: coordinator,
		dispatcher:  dispatcher,
		tracker:     tracker,
		metrics:     metrics,
		hub:         hub,
		router:      mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/api/candidates", s.handleGetCandidates).Methods(http.MethodGet)
	s.router.HandleFunc("/api/candidates", s.handleRegisterCandidate).Methods(http.MethodPost)
	s.router.HandleFunc("/api/candidates/refresh", s.handleRefresh).Methods(http.MethodPost)
	s.router.HandleFunc("/api/vote", s.handleCastVote).Methods(http.MethodPost)
	s.router.HandleFunc("/api/session", s.handleGetSession).Methods(http.MethodGet)
	s.router.HandleFunc("/api/identity", s.handleSetIdentity).Methods(http.MethodPost)
	s.router.HandleFunc("/api/alerts/dismiss", s.handleDismissAlert).Methods(http.MethodPost)
	s.router.HandleFunc("/api/metrics", s.handleGetMetrics).Methods(http.MethodGet)
	if s.hub != nil {
		s.router.Handle("/api/events", s.hub).Methods(http.MethodGet)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting voting session API on", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.hub != nil {
		s.hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func (s *Server) handleGetCandidates(w http.ResponseWriter, r *http.Request) {
	if s.coordinator.Phase() == service.PhaseUninitialized {
		if _, outcome := s.coordinator.Bootstrap(context.WithoutCancel(r.Context())); !outcome.Succeeded() {
			writeOutcome(w, outcome)
			return
		}
	}
	s.writeCandidates(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if _, outcome := s.coordinator.Refresh(context.WithoutCancel(r.Context())); !outcome.Succeeded() {
		writeOutcome(w, outcome)
		return
	}
	s.writeCandidates(w)
}

func (s *Server) writeCandidates(w http.ResponseWriter) {
	state := s.coordinator.Snapshot()
	writeJSON(w, http.StatusOK, CandidatesResponse{
		Role:       state.Role,
		Candidates: service.VisibleCandidates(state.Candidates, state.Role),
	})
}

func (s *Server) handleRegisterCandidate(w http.ResponseWriter, r *http.Request) {
	var req RegisterCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// submitted transactions are not aborted when the client disconnects
	result := s.dispatcher.QueueRegistration(context.WithoutCancel(r.Context()),
		strings.TrimSpace(req.Name), strings.TrimSpace(req.Party))
	writeOutcome(w, <-result)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := s.dispatcher.QueueVote(context.WithoutCancel(r.Context()), req.CandidateID)
	writeOutcome(w, <-result)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	state := s.coordinator.Snapshot()
	writeJSON(w, http.StatusOK, SessionResponse{
		Identity:         state.Identity,
		Role:             state.Role,
		Phase:            state.Phase,
		CandidatesLoaded: state.CandidatesLoaded,
		StartedAt:        state.StartedAt,
	})
}

func (s *Server) handleSetIdentity(w http.ResponseWriter, r *http.Request) {
	var req IdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.tracker.OnIdentityChanged(models.Identity(strings.TrimSpace(req.Identity)))
	s.handleGetSession(w, r)
}

func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	if _, outcome := s.coordinator.DismissAlert(context.WithoutCancel(r.Context())); !outcome.Succeeded() {
		writeOutcome(w, outcome)
		return
	}
	s.handleGetSession(w, r)
}

func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		http.Error(w, "Metrics are disabled", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.GetMetrics())
}

func outcomeStatus(kind models.OutcomeKind) int {
	switch kind {
	case models.OutcomeLoaded, models.OutcomeVoted, models.OutcomeRegistered:
		return http.StatusOK
	case models.OutcomeAlreadyVoted:
		return http.StatusConflict
	case models.OutcomeRejected:
		return http.StatusUnprocessableEntity
	case models.OutcomeIdentityUnavailable:
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}

func writeOutcome(w http.ResponseWriter, outcome models.Outcome) {
	writeJSON(w, outcomeStatus(outcome.Kind), OutcomeResponse{Outcome: outcome, Message: outcome.Message()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write response:", err)
	}
}
