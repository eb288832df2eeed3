package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hubbroker/internal/provider"
)

// DefaultSessionTTL is the fixed lifetime of a browser session.
const DefaultSessionTTL = 24 * time.Hour

// Service provides user and session business logic.
type Service struct {
	repo       Repository
	sessionTTL time.Duration
	now        func() time.Time
}

// NewService creates a new identity Service.
func NewService(repo Repository, sessionTTL time.Duration) *Service {
	if sessionTTL == 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Service{
		repo:       repo,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// FindOrCreateUser resolves the profile to an existing user by email or
// creates a new one. Existing users get their name, avatar and last
// login refreshed; the email itself is never mutated.
func (s *Service) FindOrCreateUser(ctx context.Context, p provider.Profile) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return nil, fmt.Errorf("profile has no email")
	}

	existing, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if existing != nil {
		if err := s.repo.UpdateUserLogin(ctx, existing.ID, p.Name, p.Picture); err != nil {
			return nil, fmt.Errorf("update user login: %w", err)
		}
		existing.Name = p.Name
		existing.AvatarURL = p.Picture
		existing.LastLoginAt = s.now()
		return existing, nil
	}

	now := s.now()
	newUser := User{
		ID:          uuid.New(),
		Email:       email,
		Name:        p.Name,
		AvatarURL:   p.Picture,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastLoginAt: now,
	}

	created, err := s.repo.CreateUser(ctx, newUser)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &created, nil
}

// UserByID returns the user with the given id, or nil if unknown.
func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// CreateSession creates a new session for the given user and returns
// the opaque session token. Only the SHA-256 hash is stored.
func (s *Service) CreateSession(ctx context.Context, userID uuid.UUID, userAgent, ipAddress string) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	now := s.now()
	session := Session{
		ID:        uuid.New(),
		UserID:    userID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
		UserAgent: truncateString(userAgent, 512),
		IPAddress: truncateString(ipAddress, 45),
	}

	if err := s.repo.CreateSession(ctx, session, hashToken(token)); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	return token, nil
}

// ValidateSession checks the token and returns the associated user, or
// nil for a missing or expired session.
func (s *Service) ValidateSession(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, nil
	}

	session, user, err := s.repo.FindSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}

	if session == nil || user == nil {
		return nil, nil
	}

	if s.now().After(session.ExpiresAt) {
		_ = s.repo.DeleteSession(ctx, session.ID)
		return nil, nil
	}

	return user, nil
}

// DeleteSession removes the session associated with the given token.
func (s *Service) DeleteSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	session, _, err := s.repo.FindSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	if session == nil {
		return nil
	}

	return s.repo.DeleteSession(ctx, session.ID)
}

// CleanupExpiredSessions removes all expired sessions.
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx)
}

// SessionTTL returns the configured session lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// hashToken returns the SHA-256 hash of the token as a hex string.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// truncateString truncates a string to the given max length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
