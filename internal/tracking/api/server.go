// Package api exposes the tracker over HTTP: transaction submission, the
// session signals (account, network, visibility), pending projections, and
// health/metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/propulsorfi/txtracker/internal/core/domain"
	"github.com/propulsorfi/txtracker/internal/core/session"
	"github.com/propulsorfi/txtracker/internal/tracking/store"
	"github.com/propulsorfi/txtracker/internal/tracking/submit"
)

// HeightSource provides the debounced block height per network.
// Satisfied by blocks.Tracker.
type HeightSource interface {
	Latest(chainID domain.ChainID) (uint64, bool)
}

// HealthChecker reports backing-service liveness.
type HealthChecker func(ctx context.Context) error

// Server serves the tracker HTTP API.
type Server struct {
	session  *session.Session
	store    *store.Store
	adder    *submit.Adder
	blocks   HeightSource
	networks []domain.ChainID
	checks   map[string]HealthChecker
	server   *http.Server
	log      *slog.Logger
}

// New creates the API server.
func New(
	port int,
	sess *session.Session,
	txStore *store.Store,
	adder *submit.Adder,
	tracker HeightSource,
	networks []domain.ChainID,
	checks map[string]HealthChecker,
) *Server {
	mux := http.NewServeMux()
	s := &Server{
		session:  sess,
		store:    txStore,
		adder:    adder,
		blocks:   tracker,
		networks: networks,
		checks:   checks,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		log: slog.Default(),
	}

	mux.HandleFunc("POST /v1/transactions", s.handleSubmit)
	mux.HandleFunc("GET /v1/transactions/pending", s.handlePending)
	mux.HandleFunc("GET /v1/transactions/recent", s.handleRecent)
	mux.HandleFunc("PUT /v1/session", s.handleSession)
	mux.HandleFunc("PUT /v1/visibility", s.handleVisibility)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Handler returns the underlying mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type submitRequest struct {
	Hash     string           `json:"hash"`
	Subject  domain.TxSubject `json:"subject"`
	Approval *domain.Approval `json:"approval,omitempty"`
}

type submitResponse struct {
	Recorded bool                      `json:"recorded"`
	Record   *domain.TransactionRecord `json:"record,omitempty"`
	Message  string                    `json:"message,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.KnownSubject(req.Subject) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown subject %q", req.Subject))
		return
	}

	record, err := s.adder.Add(r.Context(), submit.Broadcast{Hash: req.Hash}, req.Subject, submit.Options{Approval: req.Approval})
	switch {
	case errors.Is(err, submit.ErrMissingHash):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrDuplicateTransaction):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if record == nil {
		// No active account or network; nothing recorded.
		writeJSON(w, http.StatusOK, submitResponse{Recorded: false, Message: "no active account or network"})
		return
	}

	snap := s.session.Snapshot()
	writeJSON(w, http.StatusCreated, submitResponse{
		Recorded: true,
		Record:   record,
		Message:  domain.ProgressMessage(snap.ChainID, record.Hash, record.Subject),
	})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()
	if snap.ChainID == 0 {
		writeError(w, http.StatusConflict, "no active network")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chain_id":     snap.ChainID,
		"transactions": s.store.Pending(snap.ChainID),
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()
	if snap.ChainID == 0 {
		writeError(w, http.StatusConflict, "no active network")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chain_id":     snap.ChainID,
		"transactions": s.store.Recent(snap.ChainID),
	})
}

type sessionRequest struct {
	Account *string         `json:"account,omitempty"`
	ChainID *domain.ChainID `json:"chain_id,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ChainID != nil {
		if *req.ChainID != 0 && !s.configured(*req.ChainID) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("network %d is not configured", *req.ChainID))
			return
		}
		s.session.SetNetwork(*req.ChainID)
	}
	if req.Account != nil {
		s.session.SetAccount(*req.Account)
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) configured(chainID domain.ChainID) bool {
	for _, id := range s.networks {
		if id == chainID {
			return true
		}
	}
	return false
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.session.SetVisible(req.Visible)
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			s.log.Warn("Health check failed", "dependency", name, "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]string{"status": status})
}

type networkHealth struct {
	ChainID      domain.ChainID `json:"chain_id"`
	Name         string         `json:"name"`
	BlockHeight  uint64         `json:"block_height"`
	HeightKnown  bool           `json:"height_known"`
	PendingCount int            `json:"pending_count"`
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := make([]networkHealth, 0, len(s.networks))
	for _, chainID := range s.networks {
		height, known := s.blocks.Latest(chainID)
		report = append(report, networkHealth{
			ChainID:      chainID,
			Name:         chainID.Name(),
			BlockHeight:  height,
			HeightKnown:  known,
			PendingCount: s.store.PendingCount(chainID),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  s.session.Snapshot(),
		"networks": report,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
