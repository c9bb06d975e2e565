// Package httpapi exposes the gate controller over HTTP: a JSON device
// protocol for the lane readers, a session-authenticated dashboard API
// for operators, and ops endpoints (health, metrics).
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tranbichdiep/smart-parking-management/internal/auth"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/service"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/store"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

type Dependencies struct {
	Logger      *slog.Logger
	Addr        string
	DeviceToken string

	Gate      *service.GateService
	Decisions *service.DecisionService
	CardAdmin *service.CardService
	Operators store.OperatorStore
	Auth      *auth.Manager
}

type Server struct {
	logger      *slog.Logger
	deviceToken string

	gate      *service.GateService
	decisions *service.DecisionService
	cardAdmin *service.CardService
	operators store.OperatorStore
	auth      *auth.Manager

	httpServer *http.Server
	router     chi.Router
}

func NewServer(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{
		logger:      deps.Logger,
		deviceToken: deps.DeviceToken,
		gate:        deps.Gate,
		decisions:   deps.Decisions,
		cardAdmin:   deps.CardAdmin,
		operators:   deps.Operators,
		auth:        deps.Auth,
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return s.requestLogger("auth", next) })
		r.Post("/api/login", s.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return s.requestLogger("device", next) })
		r.Post("/api/gate/scan", s.handleScan)
		r.Get("/api/gate/status", s.handleStatus)
	})

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return s.requestLogger("operator", next) })
		r.Use(s.requireRole(types.RoleSecurity))
		r.Get("/api/gate/pending", s.handlePending)
		r.Post("/api/gate/confirm_entry", s.handleConfirmEntry)
		r.Post("/api/gate/confirm_exit", s.handleConfirmExit)
		r.Post("/api/gate/cancel", s.handleCancel)
	})

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return s.requestLogger("admin", next) })
		r.Use(s.requireRole(types.RoleAdmin))
		r.Post("/api/cards", s.handleCreateCard)
		r.Post("/api/cards/{cardID}/lost", s.handleCardLost)
		r.Post("/api/cards/{cardID}/found", s.handleCardFound)
		r.Post("/api/cards/{cardID}/renew", s.handleCardRenew)
	})

	s.router = r
	s.httpServer = &http.Server{
		Addr:              deps.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- auth ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	op, err := s.operators.GetByUsername(r.Context(), req.Username)
	if err != nil {
		s.logger.Error("operator lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// Same answer for unknown user, bad password, and locked account.
	if op == nil || op.Status != types.OperatorActive || !auth.CheckPassword(op.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.auth.Issue(op.Username, op.Role, op.FullName)
	if err != nil {
		s.logger.Error("token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, types.LoginResponse{
		Token:    token,
		Role:     op.Role,
		FullName: op.FullName,
	})
}

// --- device protocol ---

// handleScan answers every outcome in the device envelope so firmware
// never has to parse two shapes. Bad token or bad request still gets a
// wait: a scan must never open the gate by erroring.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req types.ScanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, types.ScanResponse{
			Action: types.DeviceActionWait, Message: "malformed request",
		})
		return
	}
	if !s.deviceTokenOK(req.Token) {
		writeJSON(w, http.StatusForbidden, types.ScanResponse{
			Action: types.DeviceActionWait, Message: "unauthorized device",
		})
		return
	}

	resp, err := s.gate.HandleScan(r.Context(), req.CardID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCardID) {
			writeJSON(w, http.StatusBadRequest, types.ScanResponse{
				Action: types.DeviceActionWait, Message: "card_id is required",
			})
			return
		}
		s.logger.Error("scan failed", "card_id", req.CardID, "error", err)
		writeJSON(w, http.StatusInternalServerError, types.ScanResponse{
			Action: types.DeviceActionWait, Message: "internal error",
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStatus is the device's follow-up poll. Fail closed: anything that
// is not a readable approved action comes back denied.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.deviceTokenOK(r.URL.Query().Get("token")) {
		writeJSON(w, http.StatusForbidden, types.StatusResponse{Status: types.StatusDenied})
		return
	}

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusOK, types.StatusResponse{Status: types.StatusDenied})
		return
	}

	status, err := s.gate.CheckStatus(r.Context(), id)
	if err != nil {
		s.logger.Error("status poll failed", "poll_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, types.StatusResponse{Status: types.StatusDenied})
		return
	}
	writeJSON(w, http.StatusOK, types.StatusResponse{Status: status})
}

func (s *Server) deviceTokenOK(token string) bool {
	if s.deviceToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.deviceToken)) == 1
}

// --- operator dashboard ---

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	view, err := s.decisions.PollPending(r.Context())
	if err != nil {
		s.logger.Error("pending poll failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if view == nil {
		writeJSON(w, http.StatusOK, map[string]any{"pending": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": view})
}

func (s *Server) handleConfirmEntry(w http.ResponseWriter, r *http.Request) {
	var req types.ConfirmEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	err := s.decisions.ApproveEntry(r.Context(), req.PollID, req.CardID, req.LicensePlate, operatorFrom(r.Context()))
	if err != nil {
		s.writeDecisionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "approved"})
}

func (s *Server) handleConfirmExit(w http.ResponseWriter, r *http.Request) {
	var req types.ConfirmExitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	err := s.decisions.ApproveExit(r.Context(), req.PollID, req.TransactionID, req.Fee, operatorFrom(r.Context()))
	if err != nil {
		s.writeDecisionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "approved"})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req types.CancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := s.decisions.Deny(r.Context(), req.PollID); err != nil {
		s.writeDecisionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "denied"})
}

func (s *Server) writeDecisionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPollID),
		errors.Is(err, service.ErrInvalidCardID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrAlreadyProcessed):
		writeError(w, http.StatusNotFound, "transaction already processed")
	case errors.Is(err, store.ErrActionConflict):
		writeError(w, http.StatusConflict, "action already resolved or claimed elsewhere")
	case errors.Is(err, store.ErrOpenSessionExists):
		writeError(w, http.StatusConflict, "card already has an open parking session")
	default:
		s.logger.Error("decision failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// --- card administration ---

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req types.CreateCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	rec, err := s.cardAdmin.Enroll(r.Context(), req)
	if err != nil {
		s.writeCardError(w, err)
		return
	}

	resp := map[string]any{
		"card_id":     rec.CardID,
		"ticket_type": rec.TicketKind,
	}
	if rec.ExpiresAt != nil {
		resp["expires_at"] = rec.ExpiresAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCardLost(w http.ResponseWriter, r *http.Request) {
	if err := s.cardAdmin.ReportLost(r.Context(), chi.URLParam(r, "cardID")); err != nil {
		s.writeCardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(types.CardLost)})
}

func (s *Server) handleCardFound(w http.ResponseWriter, r *http.Request) {
	if err := s.cardAdmin.MarkFound(r.Context(), chi.URLParam(r, "cardID")); err != nil {
		s.writeCardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(types.CardActive)})
}

func (s *Server) handleCardRenew(w http.ResponseWriter, r *http.Request) {
	var req types.RenewCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	expiry, err := s.cardAdmin.Renew(r.Context(), chi.URLParam(r, "cardID"), req.Months)
	if err != nil {
		s.writeCardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"expires_at": expiry.Format(time.RFC3339),
	})
}

func (s *Server) writeCardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCardID),
		errors.Is(err, service.ErrInvalidTicketKind),
		errors.Is(err, service.ErrInvalidMonths),
		errors.Is(err, service.ErrNotSubscription):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrCardExists):
		writeError(w, http.StatusConflict, "card already enrolled")
	case errors.Is(err, store.ErrCardNotFound):
		writeError(w, http.StatusNotFound, "card not found")
	default:
		s.logger.Error("card admin failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
