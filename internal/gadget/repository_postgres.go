package gadget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/imf-phoenix/gadgetd/internal/infrastructure/database"
)

const pgGadgetColumns = `id, name, status, decommissioned_at, created_at, updated_at`

// PostgresRepository implements Repository on Postgres.
type PostgresRepository struct {
	db database.DBTX
}

// NewPostgresRepository creates a Postgres-backed gadget repository.
func NewPostgresRepository(db database.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new gadget.
func (r *PostgresRepository) Create(ctx context.Context, g *Gadget) error {
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	query := `INSERT INTO gadgets (` + pgGadgetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.ExecContext(ctx, query,
		g.ID, g.Name, string(g.Status), nullTime(g.DecommissionedAt), g.CreatedAt, g.UpdatedAt,
	); err != nil {
		return fmt.Errorf("inserting gadget: %w", err)
	}
	return nil
}

// GetByID retrieves a gadget by its unique identifier.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Gadget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+pgGadgetColumns+` FROM gadgets WHERE id = $1`, id)

	g, err := scanPostgresGadget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGadgetNotFound
		}
		return nil, fmt.Errorf("querying gadget by id: %w", err)
	}
	return g, nil
}

// List retrieves all gadgets in creation order.
func (r *PostgresRepository) List(ctx context.Context) ([]Gadget, error) {
	return r.queryGadgets(ctx,
		`SELECT `+pgGadgetColumns+` FROM gadgets ORDER BY created_at, id`)
}

// ListByStatus retrieves gadgets with the given status.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status Status) ([]Gadget, error) {
	return r.queryGadgets(ctx,
		`SELECT `+pgGadgetColumns+` FROM gadgets WHERE status = $1 ORDER BY created_at, id`,
		string(status))
}

// Update persists lifecycle fields of an existing gadget.
func (r *PostgresRepository) Update(ctx context.Context, g *Gadget) error {
	g.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx,
		`UPDATE gadgets SET status = $1, decommissioned_at = $2, updated_at = $3 WHERE id = $4`,
		string(g.Status), nullTime(g.DecommissionedAt), g.UpdatedAt, g.ID,
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

func (r *PostgresRepository) queryGadgets(ctx context.Context, query string, args ...any) ([]Gadget, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying gadgets: %w", err)
	}
	defer rows.Close()

	gadgets := []Gadget{}
	for rows.Next() {
		g, err := scanPostgresGadget(rows)
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

func scanPostgresGadget(s rowScanner) (*Gadget, error) {
	var g Gadget
	var status string
	var decommissionedAt sql.NullTime

	if err := s.Scan(&g.ID, &g.Name, &status, &decommissionedAt, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.Status = Status(status)
	if decommissionedAt.Valid {
		t := decommissionedAt.Time
		g.DecommissionedAt = &t
	}
	return &g, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
