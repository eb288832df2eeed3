package connections

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hubbroker/internal/provider"
)

// TokenRepository persists service connections.
type TokenRepository interface {
	// Upsert stores the connection, replacing any prior record for the
	// same (user, service) pair.
	Upsert(ctx context.Context, conn Connection) error
	// Get returns the connection for (user, service), or nil.
	Get(ctx context.Context, userID uuid.UUID, service provider.ServiceType) (*Connection, error)
	// Delete removes the connection and reports whether one existed.
	Delete(ctx context.Context, userID uuid.UUID, service provider.ServiceType) (bool, error)
	// ListServices returns the service types the user has connections for.
	ListServices(ctx context.Context, userID uuid.UUID) ([]provider.ServiceType, error)
}

// StateRepository persists pending OAuth states.
//
// Consume must be atomic: under concurrent duplicate callbacks exactly
// one caller observes the state, the rest miss.
type StateRepository interface {
	Save(ctx context.Context, state State) error
	// Consume removes and returns the state if it exists, matches the
	// service and has not expired as of now; otherwise (nil, nil).
	Consume(ctx context.Context, token string, service provider.ServiceType, now time.Time) (*State, error)
	// DeleteExpired removes states past their expiry.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
