package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"hubbroker/internal/connections"
	"hubbroker/internal/metrics"
	"hubbroker/internal/provider"
)

type motionValidator interface {
	ValidFormat(key string) bool
	ValidateKey(ctx context.Context, key string) (string, error)
}

// MotionHandler connects the Motion task service via its API-key flow.
type MotionHandler struct {
	motion      motionValidator
	connections *connections.Service
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewMotionHandler creates a new MotionHandler.
func NewMotionHandler(motion motionValidator, connSvc *connections.Service, m *metrics.Metrics, logger *slog.Logger) *MotionHandler {
	return &MotionHandler{
		motion:      motion,
		connections: connSvc,
		metrics:     m,
		logger:      logger,
	}
}

type connectMotionRequest struct {
	APIKey string `json:"apiKey"`
}

type connectMotionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Connect handles POST /auth/motion
// The key format is checked before any network call; only a well-formed
// key is sent to Motion for validation. The key itself is stored as the
// connection's access token and never returned to the frontend.
func (h *MotionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		unauthorized(w)
		return
	}

	var payload connectMotionRequest
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	key := strings.TrimSpace(payload.APIKey)
	if !h.motion.ValidFormat(key) {
		h.metrics.RecordOAuthFlow(string(provider.ServiceMotion), "invalid_format")
		writeJSON(w, http.StatusBadRequest, connectMotionResponse{Success: false, Message: "API key format is invalid"})
		return
	}

	workspace, err := h.motion.ValidateKey(r.Context(), key)
	h.metrics.RecordProviderRequest(string(provider.ServiceMotion), "validate_key", providerCallStatus(err))
	if err != nil {
		if provider.IsProviderError(err) {
			h.logger.Warn("motion key rejected", "user_id", user.ID)
			h.metrics.RecordOAuthFlow(string(provider.ServiceMotion), "provider_error")
			writeJSON(w, http.StatusUnauthorized, connectMotionResponse{Success: false, Message: "Motion rejected the API key"})
			return
		}
		h.logger.Error("motion validation failed", "error", err)
		h.metrics.RecordOAuthFlow(string(provider.ServiceMotion), "network_error")
		writeJSON(w, http.StatusBadGateway, connectMotionResponse{Success: false, Message: "Could not reach Motion. Please try again."})
		return
	}

	tokens := provider.TokenSet{AccessToken: key}
	if err := h.connections.Connect(r.Context(), user.ID, provider.ServiceMotion, tokens, nil); err != nil {
		h.logger.Error("storing motion connection failed", "error", err)
		h.metrics.RecordOAuthFlow(string(provider.ServiceMotion), "internal_error")
		writeJSON(w, http.StatusInternalServerError, connectMotionResponse{Success: false, Message: "Failed to store the connection"})
		return
	}

	message := "Motion connected"
	if workspace != "" {
		message = "Motion connected to workspace " + workspace
	}

	h.logger.Info("motion connected", "user_id", user.ID)
	h.metrics.RecordOAuthFlow(string(provider.ServiceMotion), "success")
	writeJSON(w, http.StatusOK, connectMotionResponse{Success: true, Message: message})
}
