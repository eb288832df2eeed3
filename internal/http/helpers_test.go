package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"hubbroker/internal/config"
	"hubbroker/internal/connections"
	"hubbroker/internal/identity"
	"hubbroker/internal/metrics"
	"hubbroker/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	cfg         config.Config
	connections *connections.Service
	identity    *identity.Service
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		cfg: config.Config{
			Environment:    "development",
			AllowedOrigins: []string{"http://localhost:3000"},
			FrontendURL:    "http://localhost:3000",
		},
		connections: connections.NewService(connections.NewInMemoryTokenRepository(), connections.NewInMemoryStateRepository()),
		identity:    identity.NewService(identity.NewInMemoryRepository(), identity.DefaultSessionTTL),
		metrics:     metrics.New("test"),
		logger:      testLogger(),
	}
}

// signIn creates a user and a live session, returning the user and the
// cookie a browser would carry.
func (env *testEnv) signIn(t *testing.T, email string) (*identity.User, *http.Cookie) {
	t.Helper()

	user, err := env.identity.FindOrCreateUser(context.Background(), provider.Profile{
		ID:            uuid.NewString(),
		Email:         email,
		EmailVerified: true,
		Name:          "Test User",
	})
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}

	token, err := env.identity.CreateSession(context.Background(), user.ID, "test-agent", "127.0.0.1")
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}

	return user, &http.Cookie{Name: sessionCookieName, Value: token}
}

type fakeGoogleProvider struct {
	lastState   string
	tokens      provider.TokenSet
	profile     provider.Profile
	exchangeErr error
	exchanges   int
}

func (f *fakeGoogleProvider) AuthURL(state string) string {
	f.lastState = state
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (f *fakeGoogleProvider) Exchange(ctx context.Context, code string) (provider.TokenSet, provider.Profile, error) {
	f.exchanges++
	if f.exchangeErr != nil {
		return provider.TokenSet{}, provider.Profile{}, f.exchangeErr
	}
	return f.tokens, f.profile, nil
}

func (f *fakeGoogleProvider) Scopes() []string {
	return []string{"openid", "email"}
}

type fakeMotionValidator struct {
	prefix      string
	workspace   string
	validateErr error
	calls       int
}

func (f *fakeMotionValidator) ValidFormat(key string) bool {
	prefix := f.prefix
	if prefix == "" {
		prefix = provider.DefaultMotionKeyPrefix
	}
	return len(key) > len(prefix) && key[:len(prefix)] == prefix
}

func (f *fakeMotionValidator) ValidateKey(ctx context.Context, key string) (string, error) {
	f.calls++
	if f.validateErr != nil {
		return "", f.validateErr
	}
	return f.workspace, nil
}
