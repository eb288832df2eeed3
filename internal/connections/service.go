package connections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hubbroker/internal/provider"
)

const (
	// StateTTL is how long an issued state token stays redeemable.
	StateTTL = 10 * time.Minute
	// refreshSkew refreshes access tokens slightly before they expire
	// so callers never hand out a token about to go stale.
	refreshSkew = 5 * time.Minute
)

var (
	// ErrNotConnected is returned when no connection exists for the
	// requested (user, service) pair.
	ErrNotConnected = errors.New("service is not connected")
	// ErrReconnectRequired is returned when a connection can no longer
	// be refreshed; the user has to run the consent flow again.
	ErrReconnectRequired = errors.New("service disconnected, please reconnect")
	// ErrValidation is returned for malformed input such as an unknown
	// service type.
	ErrValidation = errors.New("validation error")
)

// Refresher exchanges an expiring token set for a fresh one. The Google
// provider adapter implements it; API-key services have no refresher.
type Refresher interface {
	Refresh(ctx context.Context, tokens provider.TokenSet) (provider.TokenSet, error)
}

// Service owns the OAuth state lifecycle and per-user credential
// storage. It never exposes raw tokens beyond its own callers; the
// HTTP layer only ever reads the per-service booleans from Status.
type Service struct {
	tokens     TokenRepository
	states     StateRepository
	refreshers map[provider.ServiceType]Refresher
	now        func() time.Time
}

// NewService creates a connections Service.
func NewService(tokens TokenRepository, states StateRepository) *Service {
	return &Service{
		tokens:     tokens,
		states:     states,
		refreshers: make(map[provider.ServiceType]Refresher),
		now:        time.Now,
	}
}

// RegisterRefresher installs the refresher used for a service's tokens.
func (s *Service) RegisterRefresher(service provider.ServiceType, refresher Refresher) {
	s.refreshers[service] = refresher
}

// IssueState creates a state token binding a pending OAuth attempt to
// the service and, when the flow starts from an authenticated session,
// to a user.
func (s *Service) IssueState(ctx context.Context, userID uuid.NullUUID, service provider.ServiceType) (string, error) {
	if _, ok := provider.ParseServiceType(string(service)); !ok {
		return "", fmt.Errorf("%w: unknown service %q", ErrValidation, service)
	}

	token, err := provider.GenerateStateToken()
	if err != nil {
		return "", fmt.Errorf("generate state token: %w", err)
	}

	now := s.now()
	state := State{
		Token:     token,
		UserID:    userID,
		Service:   service,
		ExpiresAt: now.Add(StateTTL),
		CreatedAt: now,
	}

	if err := s.states.Save(ctx, state); err != nil {
		return "", fmt.Errorf("save state: %w", err)
	}

	return token, nil
}

// ConsumeState redeems a state token exactly once. A missing, expired
// or service-mismatched token yields (nil, nil): an authentication
// failure for the caller to report, not a crash.
func (s *Service) ConsumeState(ctx context.Context, token string, service provider.ServiceType) (*State, error) {
	if token == "" {
		return nil, nil
	}

	state, err := s.states.Consume(ctx, token, service, s.now())
	if err != nil {
		return nil, fmt.Errorf("consume state: %w", err)
	}
	return state, nil
}

// Connect upserts the connection for (user, service); a repeated OAuth
// completion overwrites the prior record.
func (s *Service) Connect(ctx context.Context, userID uuid.UUID, service provider.ServiceType, tokens provider.TokenSet, scopes []string) error {
	if _, ok := provider.ParseServiceType(string(service)); !ok {
		return fmt.Errorf("%w: unknown service %q", ErrValidation, service)
	}
	if tokens.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", ErrValidation)
	}

	now := s.now()
	conn := Connection{
		UserID:       userID,
		Service:      service,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Expiry:       tokens.Expiry,
		Scopes:       scopes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.tokens.Upsert(ctx, conn); err != nil {
		return fmt.Errorf("store connection: %w", err)
	}
	return nil
}

// Get returns the stored connection for (user, service), or nil.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, service provider.ServiceType) (*Connection, error) {
	return s.tokens.Get(ctx, userID, service)
}

// Status reports one connected flag per known service. Tokens never
// leave this package through Status.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (map[provider.ServiceType]bool, error) {
	connected, err := s.tokens.ListServices(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	status := make(map[provider.ServiceType]bool, len(provider.KnownServices))
	for _, service := range provider.KnownServices {
		status[service] = false
	}
	for _, service := range connected {
		status[service] = true
	}
	return status, nil
}

// Disconnect removes the connection for (user, service). It is
// idempotent; the returned flag tells the caller whether anything was
// actually removed.
func (s *Service) Disconnect(ctx context.Context, userID uuid.UUID, service provider.ServiceType) (bool, error) {
	removed, err := s.tokens.Delete(ctx, userID, service)
	if err != nil {
		return false, fmt.Errorf("delete connection: %w", err)
	}
	return removed, nil
}

// RefreshIfExpired returns a connection whose access token is valid for
// at least the skew window, refreshing it first when needed. While the
// stored token is still fresh this performs zero provider calls.
//
// A connection that cannot be refreshed (no refresh token, no
// registered refresher, or a provider rejection) is removed and
// reported as ErrReconnectRequired rather than retried. Transport
// failures leave the record in place so a later attempt can succeed.
func (s *Service) RefreshIfExpired(ctx context.Context, userID uuid.UUID, service provider.ServiceType) (*Connection, error) {
	conn, err := s.tokens.Get(ctx, userID, service)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	if conn == nil {
		return nil, ErrNotConnected
	}

	// Non-expiring credentials (API keys) have no refresh semantics.
	if conn.Expiry.IsZero() {
		return conn, nil
	}

	if s.now().Before(conn.Expiry.Add(-refreshSkew)) {
		return conn, nil
	}

	refresher, ok := s.refreshers[service]
	if !ok || !conn.TokenSet().HasRefresh() {
		_, _ = s.tokens.Delete(ctx, userID, service)
		return nil, ErrReconnectRequired
	}

	refreshed, err := refresher.Refresh(ctx, conn.TokenSet())
	if err != nil {
		if provider.IsProviderError(err) {
			_, _ = s.tokens.Delete(ctx, userID, service)
			return nil, fmt.Errorf("%w: %v", ErrReconnectRequired, err)
		}
		return nil, fmt.Errorf("refresh tokens: %w", err)
	}

	conn.AccessToken = refreshed.AccessToken
	conn.Expiry = refreshed.Expiry
	if refreshed.RefreshToken != "" {
		conn.RefreshToken = refreshed.RefreshToken
	}
	conn.UpdatedAt = s.now()

	if err := s.tokens.Upsert(ctx, *conn); err != nil {
		return nil, fmt.Errorf("store refreshed connection: %w", err)
	}

	return conn, nil
}

// CleanupExpiredStates removes abandoned state tokens.
func (s *Service) CleanupExpiredStates(ctx context.Context) (int64, error) {
	return s.states.DeleteExpired(ctx, s.now())
}
