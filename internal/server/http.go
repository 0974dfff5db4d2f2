package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"VaultLedger/internal/engine"
	"VaultLedger/internal/observability"
	"VaultLedger/internal/query"
	"VaultLedger/internal/vault"
)

const actorHeader = "X-Actor-ID"

// HTTPServer is the JSON command-and-query surface. Commands funnel through
// the processor queue (same path as NATS); queries read from projections.
type HTTPServer struct {
	server    *http.Server
	processor *engine.Processor
	queries   *query.Service
	health    *observability.HealthChecker
	log       zerolog.Logger
	metrics   *observability.Metrics
}

func NewHTTPServer(
	addr string,
	processor *engine.Processor,
	queries *query.Service,
	health *observability.HealthChecker,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *HTTPServer {
	s := &HTTPServer{
		processor: processor,
		queries:   queries,
		health:    health,
		log:       log.With().Str("component", "http").Logger(),
		metrics:   metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", health.LivenessHandler)
	r.Get("/readyz", health.ReadinessHandler)

	r.Route("/v1", func(r chi.Router) {
		// Commands
		r.Post("/vaults", s.handleOpenVault)
		r.Post("/vaults/{id}/close", s.handleCloseVault)
		r.Post("/vaults/{id}/collateral", s.handleDeposit)
		r.Delete("/vaults/{id}/collateral/{unit}", s.handleWithdraw)
		r.Post("/vaults/{id}/debt/mint", s.handleMint)
		r.Post("/vaults/{id}/debt/burn", s.handleBurn)
		r.Post("/vaults/{id}/liquidate", s.handleLiquidate)

		// Queries
		r.Get("/vaults", s.handleListVaults)
		r.Get("/vaults/{id}", s.handleGetVault)
		r.Get("/vaults/{id}/history", s.handleVaultHistory)
		r.Get("/system/status", s.handleSystemStatus)

		// Admin
		r.Post("/admin/fee-rate", s.handleSetFeeRate)
		r.Post("/admin/pause", s.handlePause)
		r.Post("/admin/unpause", s.handleUnpause)
		r.Post("/admin/access-mode", s.handleAccessMode)
		r.Post("/admin/allow-list", s.handleAllow)
		r.Delete("/admin/allow-list/{subject}", s.handleDisallow)
		r.Get("/admin/integrity", s.handleIntegrity)
	})

	s.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving. Blocks until the listener fails or Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// --- command handlers ---

func (s *HTTPServer) handleOpenVault(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	res := s.processor.Submit(r.Context(), engine.Command{Type: engine.CmdOpenVault, Actor: actor})
	if res.Err != nil {
		s.writeError(w, res.Err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]uint64{"vault_id": uint64(res.VaultID)})
}

func (s *HTTPServer) handleCloseVault(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := s.vaultID(w, r)
	if !ok {
		return
	}

	// Optional body; an absent or nil recipient means the owner.
	var body struct {
		Recipient string `json:"recipient"`
	}
	recipient := uuid.Nil
	if r.ContentLength > 0 {
		if !s.decode(w, r, &body) {
			return
		}
		if body.Recipient != "" {
			var err error
			recipient, err = uuid.Parse(body.Recipient)
			if err != nil {
				s.writeError(w, fmt.Errorf("%w: recipient: %v", vault.ErrValidationFailure, err))
				return
			}
		}
	}

	res := s.processor.Submit(r.Context(), engine.Command{
		Type: engine.CmdCloseVault, Actor: actor, VaultID: id, Recipient: recipient,
	})
	if res.Err != nil {
		s.writeError(w, res.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *HTTPServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := s.vaultID(w, r)
	if !ok {
		return
	}

	var body struct {
		UnitID uint64 `json:"unit_id"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	res := s.processor.Submit(r.Context(), engine.Command{
		Type: engine.CmdDepositCollateral, Actor: actor,
		VaultID: id, UnitID: vault.UnitID(body.UnitID),
	})
	if res.Err != nil {
		s.writeError(w, res.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deposited"})
}

func (s *HTTPServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := s.vaultID(w, r)
	if !ok {
		return
	}
	unit, err := strconv.ParseUint(chi.URLParam(r, "unit"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit id"})
		return
	}

	res := s.processor.Submit(r.Context(), engine.Command{
		Type: engine.CmdWithdrawCollateral, Actor: actor,
		VaultID: id, UnitID: vault.UnitID(unit),
	})
	if res.Err != nil {
		s.writeError(w, res.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

func (s *HTTPServer) handleMint(w http.ResponseWriter, r *http.Request) {
	s.handleDebtOp(w, r, engine.CmdMintDebt, "minted")
}

func (s *HTTPServer) handleBurn(w http.ResponseWriter, r *http.Request) {
	s.handleDebtOp(w, r, engine.CmdBurnDebt, "burned")
}

func (s *HTTPServer) handleDebtOp(w http.ResponseWriter, r *http.Request, t engine.CommandType, status string) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := s.vaultID(w, r)
	if !ok {
		return
	}

	var body struct {
		Amount int64 `json:"amount"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if body.Amount <= 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}

	res := s.processor.Submit(r.Context(), engine.Command{
		Type: t, Actor: actor, VaultID: id, Amount: body.Amount,
	})
	if res.Err != nil {
		s.writeError(w, res.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *HTTPServer) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := s.vaultID(w, r)
	if !ok {
		return
	}

	res := s.processor.Submit(r.Context(), engine.Command{
		Type: engine.CmdLiquidate, Actor: actor, VaultID: id,
	})
	if res.Err != nil {
		s.writeError(w, res.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "liquidated"})
}

// --- admin handlers ---

func (s *HTTPServer) handleSetFeeRate(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	var body struct {
		Rate int64 `json:"rate"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	res := s.processor.Submit(r.Context(), engine.Command{
		Type: engine.CmdSetFeeRate, Actor: actor, Rate: body.Rate,
	})
	if res.Err != nil {
		s.writeError(w, res.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *HTTPServer) handlePause(w http.ResponseWriter, r *http.Request) {
	s.handleSystemToggle(w, r, engine.CmdPause, "paused")
}

func (s *HTTPServer) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.handleSystemToggle(w, r, engine.CmdUnpause, "unpaused")
}

func (s *HTTPServer) handleSystemToggle(w http.ResponseWriter, r *http.Request, t engine.CommandType, status string) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	res := s.processor.Submit(r.Context(), engine.Command{Type: t, Actor: actor})
	if res.Err != nil {
		s.writeError(w, res.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *HTTPServer) handleAccessMode(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	var body struct {
		Private bool `json:"private"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	res := s.processor.Submit(r.Context(), engine.Command{
		Type: engine.CmdSetAccessMode, Actor: actor, Private: body.Private,
	})
	if res.Err != nil {
		s.writeError(w, res.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"private": body.Private})
}

func (s *HTTPServer) handleAllow(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	var body struct {
		Subject string `json:"subject"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	subject, err := uuid.Parse(body.Subject)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid subject uuid"})
		return
	}

	res := s.processor.Submit(r.Context(), engine.Command{
		Type: engine.CmdAllow, Actor: actor, Subject: subject,
	})
	if res.Err != nil {
		s.writeError(w, res.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "allowed"})
}

func (s *HTTPServer) handleDisallow(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	subject, err := uuid.Parse(chi.URLParam(r, "subject"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid subject uuid"})
		return
	}

	res := s.processor.Submit(r.Context(), engine.Command{
		Type: engine.CmdDisallow, Actor: actor, Subject: subject,
	})
	if res.Err != nil {
		s.writeError(w, res.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "disallowed"})
}

func (s *HTTPServer) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, "integrity", func() (interface{}, error) {
		return s.queries.VerifyIntegrity(r.Context())
	})
}

// --- query handlers ---

func (s *HTTPServer) handleGetVault(w http.ResponseWriter, r *http.Request) {
	id, ok := s.vaultID(w, r)
	if !ok {
		return
	}
	s.serveQuery(w, "get_vault", func() (interface{}, error) {
		return s.queries.GetVault(r.Context(), uint64(id))
	})
}

func (s *HTTPServer) handleListVaults(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 100)
	var after *uint64
	if v := r.URL.Query().Get("after"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cursor"})
			return
		}
		after = &parsed
	}

	s.serveQuery(w, "list_vaults", func() (interface{}, error) {
		return s.queries.ListVaults(r.Context(), limit, after)
	})
}

func (s *HTTPServer) handleVaultHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.vaultID(w, r)
	if !ok {
		return
	}
	limit := queryLimit(r, 50)
	var after *int64
	if v := r.URL.Query().Get("after"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cursor"})
			return
		}
		after = &parsed
	}

	s.serveQuery(w, "vault_history", func() (interface{}, error) {
		return s.queries.GetVaultHistory(r.Context(), uint64(id), limit, after)
	})
}

func (s *HTTPServer) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, "system_status", func() (interface{}, error) {
		return s.queries.GetSystemStatus(r.Context())
	})
}

// --- helpers ---

func (s *HTTPServer) serveQuery(w http.ResponseWriter, endpoint string, fn func() (interface{}, error)) {
	start := time.Now()
	result, err := fn()
	status := "ok"

	switch {
	case errors.Is(err, sql.ErrNoRows):
		status = "not_found"
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case err != nil:
		status = "error"
		s.log.Error().Str("endpoint", endpoint).Err(err).Msg("query failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		s.writeJSON(w, http.StatusOK, result)
	}

	if s.metrics != nil {
		s.metrics.QueryRequests.WithLabelValues(endpoint, status).Inc()
		s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

func (s *HTTPServer) actor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actor, err := uuid.Parse(r.Header.Get(actorHeader))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": actorHeader + " header must be a valid UUID",
		})
		return uuid.Nil, false
	}
	return actor, true
}

func (s *HTTPServer) vaultID(w http.ResponseWriter, r *http.Request) (vault.VaultID, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid vault id"})
		return 0, false
	}
	return vault.VaultID(id), true
}

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("response encode failed")
	}
}

// writeError maps taxonomy roots to HTTP status codes.
func (s *HTTPServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vault.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, vault.ErrResourceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, vault.ErrValidationFailure):
		status = http.StatusBadRequest
	case errors.Is(err, vault.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, vault.ErrFinancialInvariant):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, vault.ErrMissingPriceData):
		status = http.StatusFailedDependency
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryLimit(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 1000 {
		return def
	}
	return n
}
