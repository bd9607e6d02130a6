package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/shopsync/pkg/httputil"
	"github.com/utafrali/shopsync/pkg/validator"
	"github.com/utafrali/shopsync/services/storefront/internal/session"
)

// SessionHandler handles HTTP requests for session endpoints.
type SessionHandler struct {
	provider *session.Provider
	logger   *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(provider *session.Provider, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{provider: provider, logger: logger}
}

// LoginRequest is the JSON request body for storing an access token.
type LoginRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

// Get handles GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.provider.Current(r.Context()))
}

// Login handles POST /api/v1/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	if err := h.provider.Login(r.Context(), req.AccessToken); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, h.provider.Current(r.Context()))
}

// Logout handles POST /api/v1/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.Logout(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, h.provider.Current(r.Context()))
}
