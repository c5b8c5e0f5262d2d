package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/imf-phoenix/gadgetd/internal/infrastructure/database"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresUserRepository keeps accounts in Postgres; created_at is set by
// the column default.
type PostgresUserRepository struct {
	db database.DBTX
}

// NewPostgresUserRepository creates a Postgres-backed user repository.
func NewPostgresUserRepository(db database.DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = newUserID()
	}

	err := r.db.QueryRowContext(ctx,
		"INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3) RETURNING created_at",
		user.ID, user.Username, user.PasswordHash,
	).Scan(&user.CreatedAt)

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		return ErrUsernameExists
	default:
		return fmt.Errorf("inserting user %q: %w", user.Username, err)
	}
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.one(ctx, "id", id)
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.one(ctx, "username", username)
}

func (r *PostgresUserRepository) one(ctx context.Context, column, value string) (*User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+column+" = $1", value,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading user by %s: %w", column, err)
	}
	return &u, nil
}
