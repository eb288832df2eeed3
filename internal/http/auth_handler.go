package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hubbroker/internal/connections"
	"hubbroker/internal/identity"
	"hubbroker/internal/provider"
)

// AuthHandler exposes the aggregate connection status, disconnects and
// session logout.
type AuthHandler struct {
	identity     *identity.Service
	connections  *connections.Service
	logger       *slog.Logger
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(identitySvc *identity.Service, connSvc *connections.Service, env string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		identity:     identitySvc,
		connections:  connSvc,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
	}
}

type statusUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

type statusResponse struct {
	Authenticated bool            `json:"authenticated"`
	User          *statusUser     `json:"user,omitempty"`
	Services      map[string]bool `json:"services"`
}

// Status handles GET /api/auth/status
// Reports whether the browser is signed in and one connected flag per
// known service. Raw tokens never appear in the response.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	response := statusResponse{Services: make(map[string]bool, len(provider.KnownServices))}
	for _, service := range provider.KnownServices {
		response.Services[string(service)] = false
	}

	user := sessionUser(r, h.identity)
	if user == nil {
		writeJSON(w, http.StatusOK, response)
		return
	}

	status, err := h.connections.Status(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("status lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read connection status")
		return
	}

	response.Authenticated = true
	response.User = &statusUser{
		ID:        user.ID.String(),
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
	}
	for service, connected := range status {
		response.Services[string(service)] = connected
	}

	writeJSON(w, http.StatusOK, response)
}

type disconnectResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Disconnect handles POST /api/auth/disconnect/{service}
// Idempotent: disconnecting an already-disconnected service succeeds,
// the message tells the caller nothing was there to remove.
func (h *AuthHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		unauthorized(w)
		return
	}

	service, ok := provider.ParseServiceType(chi.URLParam(r, "service"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown service")
		return
	}

	removed, err := h.connections.Disconnect(r.Context(), user.ID, service)
	if err != nil {
		h.logger.Error("disconnect failed", "error", err, "service", service)
		writeError(w, http.StatusInternalServerError, "failed to disconnect")
		return
	}

	message := service.DisplayName() + " disconnected"
	if !removed {
		message = service.DisplayName() + " was not connected; nothing to remove"
	}

	h.logger.Info("service disconnected", "user_id", user.ID, "service", service, "removed", removed)
	writeJSON(w, http.StatusOK, disconnectResponse{Success: true, Message: message})
}

// Logout handles POST /api/auth/logout
// Invalidates the server-side session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := h.identity.DeleteSession(r.Context(), cookie.Value); err != nil {
			h.logger.Error("logout failed", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})

	w.WriteHeader(http.StatusNoContent)
}
