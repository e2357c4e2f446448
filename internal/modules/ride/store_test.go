// README: DB-backed ride store tests; skipped unless REBECA_TEST_DSN is set.
package ride

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rebeca/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("REBECA_TEST_DSN")
	if dsn == "" {
		t.Skip("REBECA_TEST_DSN not set; skipping DB-backed store tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE ride_state_events, rides"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return NewStore(db)
}

func newStoredRide(t *testing.T, s *Store, riderID types.ID) *Ride {
	t.Helper()
	r := &Ride{
		ID:            types.ID("ride-" + string(riderID)),
		RiderID:       riderID,
		Status:        StatusPending,
		Pickup:        types.Point{Lat: -23.5327, Lng: -46.7917},
		Dropoff:       types.Point{Lat: -23.5614, Lng: -46.6559},
		PickupName:    "Osasco",
		Category:      "standard",
		EstimatedFare: types.Money{Amount: 2350, Currency: "BRL"},
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.Create(context.Background(), r); err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return r
}

func TestStore_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	r := newStoredRide(t, s, "rider-1")

	got, err := s.Get(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RiderID != "rider-1" || got.Status != StatusPending || got.StatusVersion != 0 {
		t.Fatalf("stored ride = %+v", got)
	}
	if got.EstimatedFare.Amount != 2350 || got.EstimatedFare.Currency != "BRL" {
		t.Fatalf("fare = %+v", got.EstimatedFare)
	}

	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_UpdateStatusCAS(t *testing.T) {
	s := setupTestStore(t)
	r := newStoredRide(t, s, "rider-1")

	ok, err := s.UpdateStatus(context.Background(), r.ID, StatusPending, StatusOffered, 0, nil)
	if err != nil || !ok {
		t.Fatalf("pending->offered: ok=%v err=%v", ok, err)
	}

	// Stale version must not win.
	ok, err = s.UpdateStatus(context.Background(), r.ID, StatusPending, StatusCancelled, 0, nil)
	if err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if ok {
		t.Fatal("stale CAS succeeded")
	}

	d := types.ID("d1")
	ok, err = s.UpdateStatus(context.Background(), r.ID, StatusOffered, StatusAssigned, 1, &d)
	if err != nil || !ok {
		t.Fatalf("offered->assigned: ok=%v err=%v", ok, err)
	}

	got, err := s.Get(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusAssigned || got.StatusVersion != 2 {
		t.Fatalf("ride = status %s version %d", got.Status, got.StatusVersion)
	}
	if got.DriverID == nil || *got.DriverID != "d1" {
		t.Fatalf("driver = %v, want d1", got.DriverID)
	}
	if got.OfferedAt == nil || got.AssignedAt == nil {
		t.Fatal("timestamps not set on transitions")
	}
}

func TestStore_HasActiveByRider(t *testing.T) {
	s := setupTestStore(t)
	r := newStoredRide(t, s, "rider-1")

	active, err := s.HasActiveByRider(context.Background(), "rider-1")
	if err != nil || !active {
		t.Fatalf("active=%v err=%v, want true", active, err)
	}

	for _, step := range []struct{ from, to Status }{
		{StatusPending, StatusOffered},
		{StatusOffered, StatusCancelled},
	} {
		ok, err := s.UpdateStatus(context.Background(), r.ID, step.from, step.to, r.StatusVersion, nil)
		if err != nil || !ok {
			t.Fatalf("%s->%s: ok=%v err=%v", step.from, step.to, ok, err)
		}
		r.StatusVersion++
	}

	active, err = s.HasActiveByRider(context.Background(), "rider-1")
	if err != nil || active {
		t.Fatalf("active=%v err=%v, want false", active, err)
	}
}

func TestStore_ListStaleOffered(t *testing.T) {
	s := setupTestStore(t)
	r := newStoredRide(t, s, "rider-1")

	if ok, err := s.UpdateStatus(context.Background(), r.ID, StatusPending, StatusOffered, 0, nil); err != nil || !ok {
		t.Fatalf("offer: ok=%v err=%v", ok, err)
	}

	stale, err := s.ListStaleOffered(context.Background(), time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("fresh offer listed as stale: %v", stale)
	}

	stale, err = s.ListStaleOffered(context.Background(), time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != r.ID {
		t.Fatalf("stale = %v, want [%s]", stale, r.ID)
	}
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
