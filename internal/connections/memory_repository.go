package connections

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"hubbroker/internal/provider"
)

type connectionKey struct {
	userID  uuid.UUID
	service provider.ServiceType
}

// InMemoryTokenRepository stores connections in a process-local map,
// for single-instance deployments and tests.
type InMemoryTokenRepository struct {
	mu   sync.RWMutex
	data map[connectionKey]Connection
}

// NewInMemoryTokenRepository constructs an empty repository.
func NewInMemoryTokenRepository() *InMemoryTokenRepository {
	return &InMemoryTokenRepository{data: make(map[connectionKey]Connection)}
}

// Upsert stores the connection, last write wins.
func (r *InMemoryTokenRepository) Upsert(_ context.Context, conn Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[connectionKey{conn.UserID, conn.Service}] = conn
	return nil
}

// Get returns the connection for (user, service), or nil.
func (r *InMemoryTokenRepository) Get(_ context.Context, userID uuid.UUID, service provider.ServiceType) (*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.data[connectionKey{userID, service}]
	if !ok {
		return nil, nil
	}
	return &conn, nil
}

// Delete removes the connection and reports whether one existed.
func (r *InMemoryTokenRepository) Delete(_ context.Context, userID uuid.UUID, service provider.ServiceType) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := connectionKey{userID, service}
	if _, ok := r.data[key]; !ok {
		return false, nil
	}
	delete(r.data, key)
	return true, nil
}

// ListServices returns the services the user is connected to.
func (r *InMemoryTokenRepository) ListServices(_ context.Context, userID uuid.UUID) ([]provider.ServiceType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var services []provider.ServiceType
	for key := range r.data {
		if key.userID == userID {
			services = append(services, key.service)
		}
	}
	return services, nil
}

// InMemoryStateRepository stores pending OAuth states in a single
// mutex-guarded map. The check-and-delete in Consume is what makes a
// state token single-use under concurrent duplicate callbacks.
type InMemoryStateRepository struct {
	mu   sync.Mutex
	data map[string]State
}

// NewInMemoryStateRepository constructs an empty repository.
func NewInMemoryStateRepository() *InMemoryStateRepository {
	return &InMemoryStateRepository{data: make(map[string]State)}
}

// Save stores a pending state.
func (r *InMemoryStateRepository) Save(_ context.Context, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[state.Token] = state
	return nil
}

// Consume removes and returns the state if it is present, unexpired and
// matches the expected service. The expiry check runs even when the
// record still physically exists; an expired state is deleted and
// reported as a miss.
func (r *InMemoryStateRepository) Consume(_ context.Context, token string, service provider.ServiceType, now time.Time) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.data[token]
	if !ok {
		return nil, nil
	}
	if now.After(state.ExpiresAt) {
		delete(r.data, token)
		return nil, nil
	}
	if state.Service != service {
		return nil, nil
	}

	delete(r.data, token)
	return &state, nil
}

// DeleteExpired removes states past their expiry.
func (r *InMemoryStateRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for token, state := range r.data {
		if now.After(state.ExpiresAt) {
			delete(r.data, token)
			removed++
		}
	}
	return removed, nil
}
