package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// DBTX is the subset of pgxpool.Pool used by the Postgres stores.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGCredentialStore implements CredentialStore on the users table.
type PGCredentialStore struct {
	db     DBTX
	hasher PasswordHasher
	now    Clock
}

// NewPGCredentialStore constructs a PostgreSQL credential store.
func NewPGCredentialStore(db DBTX, hasher PasswordHasher, now Clock) *PGCredentialStore {
	return &PGCredentialStore{db: db, hasher: hasher, now: clockOrDefault(now)}
}

// GetByID fetches a user by id.
func (r *PGCredentialStore) GetByID(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByUsername fetches a user by exact username.
func (r *PGCredentialStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// Create inserts a new user. The unique index on username backs the duplicate check.
func (r *PGCredentialStore) Create(ctx context.Context, username, password string) (*User, error) {
	existing, err := r.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateUser
	}
	hashed, err := r.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &User{Username: username, PasswordHash: hashed, CreatedAt: r.now().UTC()}
	err = r.db.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES ($1, $2, $3) RETURNING id`,
		user.Username, user.PasswordHash, user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("auth: insert user: %w", err)
	}
	return user, nil
}

// Validate returns the user when password matches, nil otherwise.
func (r *PGCredentialStore) Validate(ctx context.Context, username, password string) (*User, error) {
	return validateCredentials(ctx, r, r.hasher, username, password)
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: scan user: %w", err)
	}
	return &user, nil
}

// PGSessionStore implements SessionStore on the sessions table.
type PGSessionStore struct {
	db    DBTX
	users UserLookup
	opts  SessionOptions
}

// NewPGSessionStore constructs a PostgreSQL session store.
func NewPGSessionStore(db DBTX, users UserLookup, opts SessionOptions) *PGSessionStore {
	return &PGSessionStore{db: db, users: users, opts: opts.withDefaults()}
}

// Create persists a new session for userID.
func (r *PGSessionStore) Create(ctx context.Context, userID int64) (string, error) {
	sess, err := r.opts.newSession(userID)
	if err != nil {
		return "", err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`,
		sess.ID, sess.UserID, sess.ExpiresAt.UTC(), sess.CreatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("auth: insert session: %w", err)
	}
	return sess.ID, nil
}

// Get resolves id, purging expired and orphaned rows.
func (r *PGSessionStore) Get(ctx context.Context, id string) (*SessionData, error) {
	var sess Session
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: select session: %w", err)
	}
	if sess.Expired(r.opts.Clock()) {
		return nil, r.Delete(ctx, id)
	}
	user, err := r.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, r.Delete(ctx, id)
	}
	return &SessionData{User: user, Session: sess}, nil
}

// Delete removes id. Missing rows are not an error.
func (r *PGSessionStore) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	return nil
}

// SweepExpired deletes every row whose expiry is not after now.
func (r *PGSessionStore) SweepExpired(ctx context.Context) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, r.opts.Clock().UTC())
	if err != nil {
		return 0, fmt.Errorf("auth: sweep sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var (
	_ CredentialStore = (*PGCredentialStore)(nil)
	_ SessionStore    = (*PGSessionStore)(nil)
)
