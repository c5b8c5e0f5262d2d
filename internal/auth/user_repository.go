package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/imf-phoenix/gadgetd/internal/infrastructure/database"
)

// UserRepository stores accounts. Create fills in ID and CreatedAt and
// returns ErrUsernameExists for a taken name; lookups return
// ErrUserNotFound.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

const userColumns = "id, username, password_hash, created_at"

// newUserID returns "usr-" and eight hex digits.
func newUserID() string {
	return "usr-" + uuid.NewString()[:8]
}

// SQLiteUserRepository keeps accounts in the users table with RFC 3339
// text timestamps.
type SQLiteUserRepository struct {
	db database.DBTX
}

// NewUserRepository returns the SQLite store.
func NewUserRepository(db database.DBTX) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = newUserID()
	}
	created := time.Now().UTC().Truncate(time.Second)

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?)",
		user.ID, user.Username, user.PasswordHash, created.Format(time.RFC3339),
	)
	var sqliteErr sqlite3.Error
	switch {
	case err == nil:
		user.CreatedAt = created
		return nil
	case errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
		return ErrUsernameExists
	default:
		return fmt.Errorf("inserting user %q: %w", user.Username, err)
	}
}

func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.one(ctx, "id", id)
}

func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.one(ctx, "username", username)
}

// one looks a user up by a unique column.
func (r *SQLiteUserRepository) one(ctx context.Context, column, value string) (*User, error) {
	var (
		u       User
		created string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+column+" = ?", value,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading user by %s: %w", column, err)
	}

	if u.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("user %s: bad created_at %q: %w", u.ID, created, err)
	}
	return &u, nil
}
