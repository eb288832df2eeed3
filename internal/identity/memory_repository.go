package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository keeps users and sessions in process-local maps,
// for local development and tests. Safe for a single instance only.
type InMemoryRepository struct {
	mu             sync.RWMutex
	users          map[uuid.UUID]User
	usersByEmail   map[string]uuid.UUID
	sessions       map[uuid.UUID]Session
	sessionsByHash map[string]uuid.UUID
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:          make(map[uuid.UUID]User),
		usersByEmail:   make(map[string]uuid.UUID),
		sessions:       make(map[uuid.UUID]Session),
		sessionsByHash: make(map[string]uuid.UUID),
	}
}

// FindUserByEmail returns the user with the given email, or nil.
func (r *InMemoryRepository) FindUserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	user := r.users[id]
	return &user, nil
}

// FindUserByID returns the user with the given id, or nil.
func (r *InMemoryRepository) FindUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// CreateUser stores a new user.
func (r *InMemoryRepository) CreateUser(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[user.ID] = user
	r.usersByEmail[strings.ToLower(user.Email)] = user.ID
	return user, nil
}

// UpdateUserLogin refreshes profile fields and the last login time.
func (r *InMemoryRepository) UpdateUserLogin(_ context.Context, id uuid.UUID, name, avatarURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil
	}
	now := time.Now()
	user.Name = name
	user.AvatarURL = avatarURL
	user.LastLoginAt = now
	user.UpdatedAt = now
	r.users[id] = user
	return nil
}

// CreateSession stores a new session keyed by its token hash.
func (r *InMemoryRepository) CreateSession(_ context.Context, session Session, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = session
	r.sessionsByHash[tokenHash] = session.ID
	return nil
}

// FindSessionByTokenHash returns the session and its user, or nils.
func (r *InMemoryRepository) FindSessionByTokenHash(_ context.Context, tokenHash string) (*Session, *User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.sessionsByHash[tokenHash]
	if !ok {
		return nil, nil, nil
	}
	session, ok := r.sessions[id]
	if !ok {
		return nil, nil, nil
	}
	user, ok := r.users[session.UserID]
	if !ok {
		return nil, nil, nil
	}
	return &session, &user, nil
}

// DeleteSession removes a session by id.
func (r *InMemoryRepository) DeleteSession(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, sid := range r.sessionsByHash {
		if sid == id {
			delete(r.sessionsByHash, hash)
		}
	}
	delete(r.sessions, id)
	return nil
}

// DeleteExpiredSessions removes all sessions past their expiry.
func (r *InMemoryRepository) DeleteExpiredSessions(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var removed int64
	for id, session := range r.sessions {
		if now.After(session.ExpiresAt) {
			for hash, sid := range r.sessionsByHash {
				if sid == id {
					delete(r.sessionsByHash, hash)
				}
			}
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}
