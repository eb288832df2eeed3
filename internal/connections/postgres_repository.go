package connections

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"hubbroker/internal/provider"
)

// PostgresTokenRepository implements TokenRepository using PostgreSQL.
type PostgresTokenRepository struct {
	db *sqlx.DB
}

// NewPostgresTokenRepository creates a new PostgresTokenRepository.
func NewPostgresTokenRepository(db *sqlx.DB) *PostgresTokenRepository {
	return &PostgresTokenRepository{db: db}
}

// Upsert stores the connection, replacing any prior record for the
// same (user, service) pair.
func (r *PostgresTokenRepository) Upsert(ctx context.Context, conn Connection) error {
	const query = `
		INSERT INTO service_connections (user_id, service, access_token, refresh_token, expiry, scopes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, service) DO UPDATE
		SET access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expiry = EXCLUDED.expiry,
			scopes = EXCLUDED.scopes,
			updated_at = EXCLUDED.updated_at
	`

	var expiry sql.NullTime
	if !conn.Expiry.IsZero() {
		expiry = sql.NullTime{Time: conn.Expiry, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		conn.UserID,
		conn.Service,
		conn.AccessToken,
		conn.RefreshToken,
		expiry,
		pq.StringArray(conn.Scopes),
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	return err
}

// Get returns the connection for (user, service), or nil.
func (r *PostgresTokenRepository) Get(ctx context.Context, userID uuid.UUID, service provider.ServiceType) (*Connection, error) {
	const query = `
		SELECT user_id, service, access_token, refresh_token, expiry, scopes, created_at, updated_at
		FROM service_connections
		WHERE user_id = $1 AND service = $2
	`

	var row connectionRow
	if err := r.db.GetContext(ctx, &row, query, userID, service); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return row.toConnection(), nil
}

// Delete removes the connection and reports whether one existed.
func (r *PostgresTokenRepository) Delete(ctx context.Context, userID uuid.UUID, service provider.ServiceType) (bool, error) {
	const query = `DELETE FROM service_connections WHERE user_id = $1 AND service = $2`

	result, err := r.db.ExecContext(ctx, query, userID, service)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListServices returns the services the user is connected to.
func (r *PostgresTokenRepository) ListServices(ctx context.Context, userID uuid.UUID) ([]provider.ServiceType, error) {
	const query = `SELECT service FROM service_connections WHERE user_id = $1 ORDER BY service`

	var raw []string
	if err := r.db.SelectContext(ctx, &raw, query, userID); err != nil {
		return nil, err
	}

	services := make([]provider.ServiceType, 0, len(raw))
	for _, value := range raw {
		if service, ok := provider.ParseServiceType(value); ok {
			services = append(services, service)
		}
	}
	return services, nil
}

// connectionRow is a database row representation of Connection.
type connectionRow struct {
	UserID       uuid.UUID      `db:"user_id"`
	Service      string         `db:"service"`
	AccessToken  string         `db:"access_token"`
	RefreshToken string         `db:"refresh_token"`
	Expiry       sql.NullTime   `db:"expiry"`
	Scopes       pq.StringArray `db:"scopes"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *connectionRow) toConnection() *Connection {
	conn := &Connection{
		UserID:       r.UserID,
		Service:      provider.ServiceType(r.Service),
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		Scopes:       []string(r.Scopes),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Expiry.Valid {
		conn.Expiry = r.Expiry.Time
	}
	return conn
}

// PostgresStateRepository implements StateRepository using PostgreSQL.
// Consume relies on DELETE ... RETURNING for single-use semantics: of
// two concurrent callbacks, exactly one row deletion succeeds.
type PostgresStateRepository struct {
	db *sqlx.DB
}

// NewPostgresStateRepository creates a new PostgresStateRepository.
func NewPostgresStateRepository(db *sqlx.DB) *PostgresStateRepository {
	return &PostgresStateRepository{db: db}
}

// Save stores a pending state.
func (r *PostgresStateRepository) Save(ctx context.Context, state State) error {
	const query = `
		INSERT INTO oauth_states (token, user_id, service, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		state.Token,
		state.UserID,
		state.Service,
		state.ExpiresAt,
		state.CreatedAt,
	)
	return err
}

// Consume atomically removes and returns the state, with the expiry
// check inside the delete predicate.
func (r *PostgresStateRepository) Consume(ctx context.Context, token string, service provider.ServiceType, now time.Time) (*State, error) {
	const query = `
		DELETE FROM oauth_states
		WHERE token = $1 AND service = $2 AND expires_at > $3
		RETURNING token, user_id, service, expires_at, created_at
	`

	var row stateRow
	if err := r.db.GetContext(ctx, &row, query, token, service, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return row.toState(), nil
}

// DeleteExpired removes states past their expiry.
func (r *PostgresStateRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM oauth_states WHERE expires_at <= $1`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// stateRow is a database row representation of State.
type stateRow struct {
	Token     string        `db:"token"`
	UserID    uuid.NullUUID `db:"user_id"`
	Service   string        `db:"service"`
	ExpiresAt time.Time     `db:"expires_at"`
	CreatedAt time.Time     `db:"created_at"`
}

func (r *stateRow) toState() *State {
	return &State{
		Token:     r.Token,
		UserID:    r.UserID,
		Service:   provider.ServiceType(r.Service),
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}
