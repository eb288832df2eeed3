package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func protectedEcho(t *testing.T, env *testEnv) http.Handler {
	t.Helper()
	mw := newAuthMiddleware(env.identity, env.logger)
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			t.Fatal("expected the middleware to put the user in context")
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthMiddlewareRejectsMissingCookie(t *testing.T) {
	env := newTestEnv(t)
	handler := protectedEcho(t, env)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	handler := protectedEcho(t, env)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "not-a-real-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewarePassesValidSession(t *testing.T) {
	env := newTestEnv(t)
	handler := protectedEcho(t, env)

	_, cookie := env.signIn(t, "middleware@example.com")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	mw := newSecurityHeadersMiddleware("production")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff, got %q", got)
	}
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("expected HSTS outside development")
	}
}

func TestSecurityHeadersSkipHSTSInDevelopment(t *testing.T) {
	mw := newSecurityHeadersMiddleware("development")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("expected no HSTS in development")
	}
}
