package gadget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for gadget persistence operations.
// This abstraction allows for different implementations (SQLite, Postgres, mock)
// and enables unit testing without database dependencies.
type Repository interface {
	// Create inserts a new gadget and stamps its timestamps.
	Create(ctx context.Context, g *Gadget) error

	// GetByID retrieves a gadget by its unique identifier.
	// Returns ErrGadgetNotFound if the gadget does not exist.
	GetByID(ctx context.Context, id string) (*Gadget, error)

	// List retrieves all gadgets.
	List(ctx context.Context) ([]Gadget, error)

	// ListByStatus retrieves gadgets whose status equals status exactly.
	// Unknown values simply match nothing.
	ListByStatus(ctx context.Context, status Status) ([]Gadget, error)

	// Update persists the status, decommissioned_at and updated_at fields.
	// Returns ErrGadgetNotFound if the gadget does not exist.
	Update(ctx context.Context, g *Gadget) error
}

const sqliteGadgetColumns = `id, name, status, decommissioned_at, created_at, updated_at`

// sqliteTimeLayout is fixed width so stored timestamps sort as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new gadget.
func (r *SQLiteRepository) Create(ctx context.Context, g *Gadget) error {
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO gadgets (`+sqliteGadgetColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, string(g.Status), formatNullTime(g.DecommissionedAt),
		g.CreatedAt.Format(sqliteTimeLayout), g.UpdatedAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting gadget: %w", err)
	}
	return nil
}

// GetByID retrieves a gadget by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Gadget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sqliteGadgetColumns+` FROM gadgets WHERE id = ?`, id)

	g, err := scanSQLiteGadget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGadgetNotFound
		}
		return nil, fmt.Errorf("querying gadget by id: %w", err)
	}
	return g, nil
}

// List retrieves all gadgets in creation order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Gadget, error) {
	return r.queryGadgets(ctx,
		`SELECT `+sqliteGadgetColumns+` FROM gadgets ORDER BY created_at, id`)
}

// ListByStatus retrieves gadgets with the given status.
func (r *SQLiteRepository) ListByStatus(ctx context.Context, status Status) ([]Gadget, error) {
	return r.queryGadgets(ctx,
		`SELECT `+sqliteGadgetColumns+` FROM gadgets WHERE status = ? ORDER BY created_at, id`,
		string(status))
}

// Update persists lifecycle fields of an existing gadget.
func (r *SQLiteRepository) Update(ctx context.Context, g *Gadget) error {
	g.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx,
		`UPDATE gadgets SET status = ?, decommissioned_at = ?, updated_at = ? WHERE id = ?`,
		string(g.Status), formatNullTime(g.DecommissionedAt), g.UpdatedAt.Format(sqliteTimeLayout), g.ID,
	)
	if err != nil {
		return fmt.Errorf("updating gadget: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrGadgetNotFound
	}
	return nil
}

func (r *SQLiteRepository) queryGadgets(ctx context.Context, query string, args ...any) ([]Gadget, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying gadgets: %w", err)
	}
	defer rows.Close()

	gadgets := []Gadget{}
	for rows.Next() {
		g, err := scanSQLiteGadget(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning gadget: %w", err)
		}
		gadgets = append(gadgets, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating gadgets: %w", err)
	}
	return gadgets, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteGadget(s rowScanner) (*Gadget, error) {
	var g Gadget
	var status, createdAt, updatedAt string
	var decommissionedAt sql.NullString

	if err := s.Scan(&g.ID, &g.Name, &status, &decommissionedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	g.Status = Status(status)

	var err error
	if g.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if g.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if decommissionedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, decommissionedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing decommissioned_at: %w", err)
		}
		g.DecommissionedAt = &t
	}
	return &g, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(sqliteTimeLayout), Valid: true}
}
