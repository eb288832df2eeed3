package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hubbroker/internal/provider"
)

func TestStatusAnonymous(t *testing.T) {
	env := newTestEnv(t)
	handler := NewAuthHandler(env.identity, env.connections, env.cfg.Environment, env.logger)

	rec := httptest.NewRecorder()
	handler.Status(rec, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if payload.Authenticated {
		t.Fatal("expected authenticated=false without a session")
	}
	if payload.User != nil {
		t.Fatal("expected no user payload")
	}
	for _, service := range provider.KnownServices {
		connected, ok := payload.Services[string(service)]
		if !ok {
			t.Fatalf("expected %s in the services map", service)
		}
		if connected {
			t.Fatalf("expected %s reported disconnected", service)
		}
	}
}

func TestStatusAuthenticatedReflectsConnections(t *testing.T) {
	env := newTestEnv(t)
	handler := NewAuthHandler(env.identity, env.connections, env.cfg.Environment, env.logger)

	user, cookie := env.signIn(t, "status@example.com")
	if err := env.connections.Connect(context.Background(), user.ID, provider.ServiceMotion, provider.TokenSet{AccessToken: "mot_key_value"}, nil); err != nil {
		t.Fatalf("connecting motion: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/status", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	var payload statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !payload.Authenticated {
		t.Fatal("expected authenticated=true")
	}
	if payload.User == nil || payload.User.Email != "status@example.com" {
		t.Fatalf("expected the user in the payload, got %+v", payload.User)
	}
	if !payload.Services["motion"] {
		t.Fatal("expected motion reported connected")
	}
	if payload.Services["google"] {
		t.Fatal("expected google reported disconnected")
	}
	if strings.Contains(rec.Body.String(), "mot_key_value") {
		t.Fatal("status response must never contain the stored key")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	user, cookie := env.signIn(t, "disconnect@example.com")
	if err := env.connections.Connect(context.Background(), user.ID, provider.ServiceGoogle, provider.TokenSet{AccessToken: "at"}, nil); err != nil {
		t.Fatalf("connecting google: %v", err)
	}

	google := &fakeGoogleProvider{}
	router := NewRouter(env.cfg, google, &fakeMotionValidator{}, env.connections, env.identity, env.metrics, env.logger)

	disconnect := func() disconnectResponse {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/disconnect/google", nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var payload disconnectResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		return payload
	}

	first := disconnect()
	if !first.Success || !strings.Contains(first.Message, "disconnected") {
		t.Fatalf("unexpected first response: %+v", first)
	}

	second := disconnect()
	if !second.Success {
		t.Fatal("expected the repeat disconnect to succeed")
	}
	if !strings.Contains(second.Message, "not connected") {
		t.Fatalf("expected the repeat to report nothing to remove, got %q", second.Message)
	}

	conn, err := env.connections.Get(context.Background(), user.ID, provider.ServiceGoogle)
	if err != nil {
		t.Fatalf("loading connection: %v", err)
	}
	if conn != nil {
		t.Fatal("expected the connection removed")
	}
}

func TestDisconnectUnknownService(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.signIn(t, "unknown@example.com")

	router := NewRouter(env.cfg, &fakeGoogleProvider{}, &fakeMotionValidator{}, env.connections, env.identity, env.metrics, env.logger)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/disconnect/slack", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	env := newTestEnv(t)
	handler := NewAuthHandler(env.identity, env.connections, env.cfg.Environment, env.logger)

	_, cookie := env.signIn(t, "logout@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			cleared = c
		}
	}
	if cleared == nil || cleared.MaxAge != -1 {
		t.Fatal("expected the session cookie to be cleared")
	}

	user, err := env.identity.ValidateSession(context.Background(), cookie.Value)
	if err != nil {
		t.Fatalf("validating session: %v", err)
	}
	if user != nil {
		t.Fatal("expected the session to be invalid after logout")
	}
}
