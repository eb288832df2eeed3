package identity

import (
	"testing"
	"time"

	"hubbroker/internal/provider"
)

func TestFindOrCreateUserCreatesOnFirstLogin(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), time.Hour)

	user, err := svc.FindOrCreateUser(t.Context(), provider.Profile{
		Email:   "User@Example.com",
		Name:    "Test User",
		Picture: "https://img.test/avatar.png",
	})
	if err != nil {
		t.Fatalf("FindOrCreateUser returned error: %v", err)
	}

	if user.Email != "user@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if user.Name != "Test User" || user.AvatarURL != "https://img.test/avatar.png" {
		t.Fatalf("unexpected profile fields: %+v", user)
	}
}

func TestFindOrCreateUserReusesExistingByEmail(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, time.Hour)

	first, err := svc.FindOrCreateUser(t.Context(), provider.Profile{Email: "user@example.com", Name: "Old Name"})
	if err != nil {
		t.Fatalf("first FindOrCreateUser returned error: %v", err)
	}

	second, err := svc.FindOrCreateUser(t.Context(), provider.Profile{Email: "USER@example.com", Name: "New Name", Picture: "pic"})
	if err != nil {
		t.Fatalf("second FindOrCreateUser returned error: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same user, got %s and %s", first.ID, second.ID)
	}
	if second.Name != "New Name" || second.AvatarURL != "pic" {
		t.Fatalf("expected refreshed profile, got %+v", second)
	}

	stored, err := repo.FindUserByID(t.Context(), first.ID)
	if err != nil || stored == nil {
		t.Fatalf("expected stored user, got %v, %v", stored, err)
	}
	if stored.Name != "New Name" {
		t.Fatalf("expected persisted profile refresh, got %q", stored.Name)
	}
}

func TestFindOrCreateUserRejectsEmptyEmail(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), time.Hour)

	if _, err := svc.FindOrCreateUser(t.Context(), provider.Profile{Name: "No Email"}); err == nil {
		t.Fatal("expected error for profile without email")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), time.Hour)

	user, err := svc.FindOrCreateUser(t.Context(), provider.Profile{Email: "user@example.com"})
	if err != nil {
		t.Fatalf("FindOrCreateUser returned error: %v", err)
	}

	token, err := svc.CreateSession(t.Context(), user.ID, "agent", "127.0.0.1")
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty session token")
	}

	validated, err := svc.ValidateSession(t.Context(), token)
	if err != nil {
		t.Fatalf("ValidateSession returned error: %v", err)
	}
	if validated == nil || validated.ID != user.ID {
		t.Fatalf("expected session to resolve to user %s, got %+v", user.ID, validated)
	}

	if err := svc.DeleteSession(t.Context(), token); err != nil {
		t.Fatalf("DeleteSession returned error: %v", err)
	}

	validated, err = svc.ValidateSession(t.Context(), token)
	if err != nil {
		t.Fatalf("ValidateSession returned error: %v", err)
	}
	if validated != nil {
		t.Fatal("expected deleted session to be invalid")
	}
}

func TestValidateSessionRejectsExpired(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), time.Hour)

	user, err := svc.FindOrCreateUser(t.Context(), provider.Profile{Email: "user@example.com"})
	if err != nil {
		t.Fatalf("FindOrCreateUser returned error: %v", err)
	}

	token, err := svc.CreateSession(t.Context(), user.ID, "", "")
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	// Move the service clock past the session TTL.
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	validated, err := svc.ValidateSession(t.Context(), token)
	if err != nil {
		t.Fatalf("ValidateSession returned error: %v", err)
	}
	if validated != nil {
		t.Fatal("expected expired session to be invalid")
	}
}

func TestValidateSessionEmptyTokenIsAnonymous(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), time.Hour)

	user, err := svc.ValidateSession(t.Context(), "")
	if err != nil {
		t.Fatalf("ValidateSession returned error: %v", err)
	}
	if user != nil {
		t.Fatal("expected nil user for empty token")
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, time.Nanosecond)

	user, err := svc.FindOrCreateUser(t.Context(), provider.Profile{Email: "user@example.com"})
	if err != nil {
		t.Fatalf("FindOrCreateUser returned error: %v", err)
	}
	if _, err := svc.CreateSession(t.Context(), user.ID, "", ""); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	time.Sleep(time.Millisecond)

	removed, err := svc.CleanupExpiredSessions(t.Context())
	if err != nil {
		t.Fatalf("CleanupExpiredSessions returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed session, got %d", removed)
	}
}
