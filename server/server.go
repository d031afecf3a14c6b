// Package server exposes the crowdsale engine over HTTP: a JSON command
// endpoint plus read-only state, journal and solvency endpoints.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/crowdsale-xyz/go-crowdsale/accesslist"
	"github.com/crowdsale-xyz/go-crowdsale/cache"
	"github.com/crowdsale-xyz/go-crowdsale/engine"
	"github.com/crowdsale-xyz/go-crowdsale/escrow"
	"github.com/crowdsale-xyz/go-crowdsale/eventsource"
	"github.com/crowdsale-xyz/go-crowdsale/ledger"
	"github.com/crowdsale-xyz/go-crowdsale/prover"
)

// Server is the HTTP transport over an engine.
type Server struct {
	engine *engine.Engine
	store  eventsource.Store
	prover *prover.Prover
	proofs *cache.ProofCache
	log    logrus.FieldLogger
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables the journal listing endpoint.
func WithStore(store eventsource.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithProver enables the solvency endpoint. Proofs are cached per
// balance table.
func WithProver(p *prover.Prover) Option {
	return func(s *Server) {
		s.prover = p
		s.proofs = cache.NewProofCache(64)
	}
}

// WithLogger sets the request logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// NewServer creates a server over the given engine.
func NewServer(e *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine: e,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mux returns an http.ServeMux with all routes configured.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/commands", s.handleCommand)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/solvency", s.handleSolvency)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Handler returns the command HTTP handler.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleCommand)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps component errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized),
		errors.Is(err, escrow.ErrUnauthorized),
		errors.Is(err, accesslist.ErrUnauthorized),
		errors.Is(err, accesslist.ErrNotWhitelisted):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInvalidArgument),
		errors.Is(err, escrow.ErrInvalidArgument),
		errors.Is(err, accesslist.ErrInvalidArgument),
		errors.Is(err, engine.ErrUnknownOp):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientAllowance),
		errors.Is(err, ledger.ErrSupplyCapExceeded),
		errors.Is(err, ledger.ErrSaleCapExceeded),
		errors.Is(err, ledger.ErrArithmeticOverflow),
		errors.Is(err, escrow.ErrArithmeticOverflow),
		errors.Is(err, escrow.ErrInvalidState),
		errors.Is(err, escrow.ErrGatesNotSet),
		errors.Is(err, eventsource.ErrConcurrencyConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleCommand dispatches one engine command.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var cmd engine.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	start := time.Now()
	res, err := s.engine.Dispatch(r.Context(), cmd)
	entry := s.log.WithFields(logrus.Fields{
		"op":      cmd.Op,
		"elapsed": time.Since(start),
	})
	if err != nil {
		entry.WithError(err).Warn("command rejected")
		s.writeError(w, err)
		return
	}
	entry.WithField("version", res.Version).Info("command applied")
	s.writeJSON(w, http.StatusOK, res)
}

// handleState returns the full engine snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// handleEvents lists journaled commands, optionally filtered by ?type=.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no journal configured"})
		return
	}
	filter := eventsource.EventFilter{
		StreamID: r.URL.Query().Get("stream"),
		Types:    r.URL.Query()["type"],
	}
	records, err := s.store.ReadAll(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []*eventsource.Event{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

type solvencyResponse struct {
	TotalSupply string `json:"totalSupply"`
	Commitment  string `json:"commitment"`
	Holders     int    `json:"holders"`
	Verified    bool   `json:"verified"`
}

// handleSolvency proves and self-verifies ledger solvency, returning the
// public inputs. Balances enter the circuit in principal order so the
// commitment is reproducible.
func (s *Server) handleSolvency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.prover == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no prover configured"})
		return
	}

	snap := s.engine.Ledger().Snapshot()
	principals := make([]string, 0, len(snap.Balances))
	for p := range snap.Balances {
		principals = append(principals, p)
	}
	sort.Strings(principals)
	balances := make([]*uint256.Int, 0, len(principals))
	for _, p := range principals {
		balances = append(balances, snap.Balances[p])
	}

	proof, err := s.proofs.GetOrCompute(snap.Balances, func() (*prover.Proof, error) {
		return s.prover.ProveSolvency(balances, snap.TotalSupply)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.prover.VerifySolvency(proof); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, solvencyResponse{
		TotalSupply: proof.TotalSupply.String(),
		Commitment:  proof.Commitment.String(),
		Holders:     len(balances),
		Verified:    true,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
