package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"hubbroker/internal/connections"
	"hubbroker/internal/identity"
	"hubbroker/internal/metrics"
	"hubbroker/internal/provider"
)

type googleProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (provider.TokenSet, provider.Profile, error)
	Scopes() []string
}

// OAuthHandler runs the Google authorization-code flow: it issues the
// state token on the way out and completes the exchange, connection
// upsert and session binding on the way back.
type OAuthHandler struct {
	google       googleProvider
	connections  *connections.Service
	identity     *identity.Service
	metrics      *metrics.Metrics
	logger       *slog.Logger
	secureCookie bool
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(google googleProvider, connSvc *connections.Service, identitySvc *identity.Service, m *metrics.Metrics, env string, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		google:       google,
		connections:  connSvc,
		identity:     identitySvc,
		metrics:      m,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
	}
}

// InitiateGoogle handles GET /auth/google
// Issues a state token and redirects to Google's consent screen. When
// the request carries a valid session the state is bound to that user,
// so the callback attaches the connection to the signed-in account.
func (h *OAuthHandler) InitiateGoogle(w http.ResponseWriter, r *http.Request) {
	var userID uuid.NullUUID
	if user := sessionUser(r, h.identity); user != nil {
		userID = uuid.NullUUID{UUID: user.ID, Valid: true}
	}

	state, err := h.connections.IssueState(r.Context(), userID, provider.ServiceGoogle)
	if err != nil {
		h.logger.Error("failed to issue state", "error", err)
		h.redirectOutcome(w, r, provider.ServiceGoogle, false, "Could not start the sign-in flow. Please try again.")
		return
	}

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// CallbackGoogle handles GET /auth/google/callback
// Validates the state, exchanges the code, stores the connection and
// binds the browser session. Every failure ends at the callback page
// with success=false; a raw error never reaches the popup.
func (h *OAuthHandler) CallbackGoogle(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// Provider-reported refusal (user hit "cancel" on the consent screen)
	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("oauth callback: provider error", "error", errParam)
		h.metrics.RecordOAuthFlow(string(provider.ServiceGoogle), "provider_error")
		h.redirectOutcome(w, r, provider.ServiceGoogle, false, sanitizeProviderMessage(errParam, query.Get("error_description")))
		return
	}

	state, err := h.connections.ConsumeState(r.Context(), query.Get("state"), provider.ServiceGoogle)
	if err != nil {
		h.logger.Error("oauth callback: state lookup failed", "error", err)
		h.metrics.RecordOAuthFlow(string(provider.ServiceGoogle), "internal_error")
		h.redirectOutcome(w, r, provider.ServiceGoogle, false, "Could not complete authentication. Please try again.")
		return
	}
	if state == nil {
		h.logger.Warn("oauth callback: invalid or expired state")
		h.metrics.RecordOAuthFlow(string(provider.ServiceGoogle), "invalid_state")
		h.redirectOutcome(w, r, provider.ServiceGoogle, false, "The sign-in link is invalid or has expired. Please try again.")
		return
	}

	code := query.Get("code")
	if code == "" {
		h.metrics.RecordOAuthFlow(string(provider.ServiceGoogle), "invalid_request")
		h.redirectOutcome(w, r, provider.ServiceGoogle, false, "Missing authorization code.")
		return
	}

	tokens, profile, err := h.google.Exchange(r.Context(), code)
	h.metrics.RecordProviderRequest(string(provider.ServiceGoogle), "exchange", providerCallStatus(err))
	if err != nil {
		h.logger.Error("oauth callback: exchange failed", "error", err)
		if provider.IsProviderError(err) {
			h.metrics.RecordOAuthFlow(string(provider.ServiceGoogle), "provider_error")
			h.redirectOutcome(w, r, provider.ServiceGoogle, false, "Google rejected the sign-in attempt. Please try again.")
		} else {
			h.metrics.RecordOAuthFlow(string(provider.ServiceGoogle), "network_error")
			h.redirectOutcome(w, r, provider.ServiceGoogle, false, "Could not reach Google. Please try again.")
		}
		return
	}

	if !profile.EmailVerified {
		h.logger.Warn("oauth callback: email not verified", "email", profile.Email)
		h.metrics.RecordOAuthFlow(string(provider.ServiceGoogle), "email_not_verified")
		h.redirectOutcome(w, r, provider.ServiceGoogle, false, "Please verify your Google email address first.")
		return
	}

	user, err := h.resolveUser(r.Context(), state, profile)
	if err != nil {
		h.logger.Error("oauth callback: user resolution failed", "error", err)
		h.metrics.RecordOAuthFlow(string(provider.ServiceGoogle), "internal_error")
		h.redirectOutcome(w, r, provider.ServiceGoogle, false, "Failed to create your account.")
		return
	}

	if err := h.connections.Connect(r.Context(), user.ID, provider.ServiceGoogle, tokens, h.google.Scopes()); err != nil {
		h.logger.Error("oauth callback: storing connection failed", "error", err)
		h.metrics.RecordOAuthFlow(string(provider.ServiceGoogle), "internal_error")
		h.redirectOutcome(w, r, provider.ServiceGoogle, false, "Failed to store the connection.")
		return
	}

	sessionToken, err := h.identity.CreateSession(r.Context(), user.ID, r.UserAgent(), clientIPFromRequest(r))
	if err != nil {
		h.logger.Error("oauth callback: session creation failed", "error", err)
		h.metrics.RecordOAuthFlow(string(provider.ServiceGoogle), "internal_error")
		h.redirectOutcome(w, r, provider.ServiceGoogle, false, "Failed to create a session.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.identity.SessionTTL().Seconds()),
	})

	h.logger.Info("google connected", "user_id", user.ID, "email", profile.Email)
	h.metrics.RecordOAuthFlow(string(provider.ServiceGoogle), "success")
	h.redirectOutcome(w, r, provider.ServiceGoogle, true, "")
}

// resolveUser attaches the connection to the user the state was bound
// to, falling back to find-or-create by the profile's email for flows
// started without a session.
func (h *OAuthHandler) resolveUser(ctx context.Context, state *connections.State, profile provider.Profile) (*identity.User, error) {
	if state.UserID.Valid {
		user, err := h.identity.UserByID(ctx, state.UserID.UUID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
		// Bound user vanished between issue and callback; treat as a
		// fresh login.
	}
	return h.identity.FindOrCreateUser(ctx, profile)
}

// redirectOutcome sends the popup to the callback page with the flow
// outcome encoded in query parameters.
func (h *OAuthHandler) redirectOutcome(w http.ResponseWriter, r *http.Request, service provider.ServiceType, success bool, errMessage string) {
	values := url.Values{}
	if success {
		values.Set("success", "true")
	} else {
		values.Set("success", "false")
	}
	values.Set("service", service.DisplayName())
	if errMessage != "" {
		values.Set("error", errMessage)
	}
	http.Redirect(w, r, "/oauth-callback?"+values.Encode(), http.StatusTemporaryRedirect)
}

// providerCallStatus labels an outbound provider call for metrics.
func providerCallStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case provider.IsProviderError(err):
		return "rejected"
	default:
		return "transport_error"
	}
}

// sanitizeProviderMessage keeps the provider's error code and a short
// description, dropping anything that could not be shown to a user.
func sanitizeProviderMessage(code, description string) string {
	code = strings.TrimSpace(code)
	description = strings.TrimSpace(description)
	if description == "" {
		return code
	}
	const maxLen = 200
	if len(description) > maxLen {
		description = description[:maxLen]
	}
	return code + ": " + description
}
