package identity

import (
	"time"

	"github.com/google/uuid"
)

// User is an account created on first successful OAuth completion.
// Users are found by email; profile fields are refreshed on re-login.
type User struct {
	ID          uuid.UUID
	Email       string
	Name        string
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt time.Time
}

// Session is a server-side browser session. Its lifetime is fixed and
// deliberately independent of any provider token expiry: an expired
// Google token disables that integration, it does not log the user out.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
	UserAgent string
	IPAddress string
}
