package connections

import (
	"time"

	"github.com/google/uuid"

	"hubbroker/internal/provider"
)

// Connection is a stored credential set binding a user to an external
// service. At most one connection exists per (user, service) pair; a
// new OAuth completion overwrites the prior record.
type Connection struct {
	UserID       uuid.UUID
	Service      provider.ServiceType
	AccessToken  string
	RefreshToken string
	Expiry       time.Time // zero for non-expiring credentials (API keys)
	Scopes       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenSet returns the connection's credentials in the provider
// boundary shape.
func (c Connection) TokenSet() provider.TokenSet {
	return provider.TokenSet{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

// State is a pending OAuth attempt: a short-lived random token bound
// to a service and, when the flow was started from an authenticated
// session, to a user. It is consumed read-once by the callback.
type State struct {
	Token     string
	UserID    uuid.NullUUID
	Service   provider.ServiceType
	ExpiresAt time.Time
	CreatedAt time.Time
}
