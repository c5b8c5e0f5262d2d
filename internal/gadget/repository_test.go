package gadget

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/imf-phoenix/gadgetd/internal/infrastructure/config"
	"github.com/imf-phoenix/gadgetd/internal/infrastructure/database"
	_ "github.com/imf-phoenix/gadgetd/migrations" // registers embedded schema
)

// testDB creates a temporary SQLite database with the embedded schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "gadget-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(t.Context()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

func seedGadget(t *testing.T, repo Repository, id, name string, status Status) *Gadget {
	t.Helper()
	g := &Gadget{ID: id, Name: name, Status: status}
	if err := repo.Create(context.Background(), g); err != nil {
		t.Fatalf("seeding gadget %s: %v", id, err)
	}
	return g
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	g := seedGadget(t, repo, "g-1", "The Kraken", StatusAvailable)
	if g.CreatedAt.IsZero() || !g.CreatedAt.Equal(g.UpdatedAt) {
		t.Errorf("Create() timestamps = %v / %v, want equal non-zero", g.CreatedAt, g.UpdatedAt)
	}

	got, err := repo.GetByID(ctx, "g-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "The Kraken" || got.Status != StatusAvailable {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.DecommissionedAt != nil {
		t.Errorf("DecommissionedAt = %v, want nil", got.DecommissionedAt)
	}
	if !got.CreatedAt.Equal(g.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, g.CreatedAt)
	}
}

func TestSQLiteRepository_GetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrGadgetNotFound) {
		t.Errorf("GetByID() error = %v, want ErrGadgetNotFound", err)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	empty, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("List() on empty store = %#v, want empty non-nil slice", empty)
	}

	seedGadget(t, repo, "g-1", "The Kraken", StatusAvailable)
	seedGadget(t, repo, "g-2", "The Ghost", StatusDestroyed)
	seedGadget(t, repo, "g-3", "The Viper", StatusAvailable)

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List() len = %d, want 3", len(all))
	}
	if all[0].ID != "g-1" || all[2].ID != "g-3" {
		t.Errorf("List() order = %s,%s,%s, want creation order", all[0].ID, all[1].ID, all[2].ID)
	}

	available, err := repo.ListByStatus(ctx, StatusAvailable)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(available) != 2 {
		t.Errorf("ListByStatus(Available) len = %d, want 2", len(available))
	}

	unknown, err := repo.ListByStatus(ctx, Status("Lost"))
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(unknown) != 0 {
		t.Errorf("ListByStatus(Lost) len = %d, want 0", len(unknown))
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()
	g := seedGadget(t, repo, "g-1", "The Kraken", StatusAvailable)
	created := g.CreatedAt

	when := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	g.Status = StatusDecommissioned
	g.DecommissionedAt = &when
	if err := repo.Update(ctx, g); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "g-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusDecommissioned {
		t.Errorf("Status = %q, want Decommissioned", got.Status)
	}
	if got.DecommissionedAt == nil || !got.DecommissionedAt.Equal(when) {
		t.Errorf("DecommissionedAt = %v, want %v", got.DecommissionedAt, when)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed: %v -> %v", created, got.CreatedAt)
	}
	if got.UpdatedAt.Before(created) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", got.UpdatedAt, created)
	}
}

func TestSQLiteRepository_Update_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	err := repo.Update(context.Background(), &Gadget{ID: "missing", Status: StatusDestroyed})
	if !errors.Is(err, ErrGadgetNotFound) {
		t.Errorf("Update() error = %v, want ErrGadgetNotFound", err)
	}
}

func TestSQLiteRepository_RejectsUnknownStatus(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	err := repo.Create(context.Background(), &Gadget{ID: "g-x", Name: "The Cobra", Status: Status("Lost")})
	if err == nil {
		t.Error("Create() with unknown status should violate the CHECK constraint")
	}
}
