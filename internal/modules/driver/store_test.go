// README: DB+Redis-backed driver store tests; skipped unless REBECA_TEST_DSN and REBECA_TEST_REDIS_ADDR are set.
package driver

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
	"github.com/redis/go-redis/v9"

	"rebeca/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("REBECA_TEST_DSN")
	redisAddr := os.Getenv("REBECA_TEST_REDIS_ADDR")
	if dsn == "" || redisAddr == "" {
		t.Skip("REBECA_TEST_DSN or REBECA_TEST_REDIS_ADDR not set; skipping store tests")
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
	if _, err := db.Exec(ctx, "TRUNCATE TABLE drivers"); err != nil {
		t.Fatalf("truncate drivers: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	t.Cleanup(func() { rdb.Close() })
	if err := rdb.Del(ctx, driverGeoKey).Err(); err != nil {
		t.Fatalf("clear geo set: %v", err)
	}

	return NewStore(db, rdb)
}

func createDriver(t *testing.T, s *Store, id types.ID, status Status) {
	t.Helper()
	err := s.Create(context.Background(), &Driver{
		ID:        id,
		Name:      "Driver " + string(id),
		Phone:     "+5511987650000",
		Plate:     "BRA2E19",
		Status:    status,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create driver %s: %v", id, err)
	}
}

func TestStore_CreateGetUpdateStatus(t *testing.T) {
	s := setupTestStore(t)
	createDriver(t, s, "d1", StatusOffline)

	got, err := s.Get(context.Background(), "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusOffline || got.Plate != "BRA2E19" {
		t.Fatalf("driver = %+v", got)
	}

	if err := s.UpdateStatus(context.Background(), "d1", StatusAvailable); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ = s.Get(context.Background(), "d1")
	if got.Status != StatusAvailable {
		t.Fatalf("status = %s, want %s", got.Status, StatusAvailable)
	}

	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := s.UpdateStatus(context.Background(), "missing", StatusBusy); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// Pickup in Osasco; near ≈0.4 km away, far ≈3.8 km away.
var (
	testPickup = types.Point{Lat: -23.5327, Lng: -46.7917}
	nearPos    = types.Point{Lat: -23.5350, Lng: -46.7890}
	farPos     = types.Point{Lat: -23.5100, Lng: -46.8200}
)

func TestService_ListAvailable_MergesGeoAndDirectory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createDriver(t, s, "d-far", StatusAvailable)
	createDriver(t, s, "d-near", StatusAvailable)
	createDriver(t, s, "d-busy", StatusBusy)
	createDriver(t, s, "d-no-pos", StatusAvailable)

	for id, p := range map[types.ID]types.Point{
		"d-far":  farPos,
		"d-near": nearPos,
		"d-busy": nearPos,
	} {
		if err := s.SetPosition(ctx, id, p); err != nil {
			t.Fatalf("set position %s: %v", id, err)
		}
	}

	svc := NewService(s, nil)
	got, err := svc.ListAvailable(ctx, testPickup, 10)
	if err != nil {
		t.Fatalf("ListAvailable: %v", err)
	}

	// Busy driver and the one without a position must be gone; geo
	// ordering (nearest first) must survive the directory merge.
	if len(got) != 2 {
		t.Fatalf("drivers = %d, want 2: %+v", len(got), got)
	}
	if got[0].ID != "d-near" || got[1].ID != "d-far" {
		t.Fatalf("order = [%s %s], want [d-near d-far]", got[0].ID, got[1].ID)
	}
	for _, d := range got {
		if d.Location == nil {
			t.Fatalf("driver %s has no live position", d.ID)
		}
	}
	// GEO coordinates come back with limited precision.
	if diff := got[0].Location.Lat - nearPos.Lat; diff > 0.001 || diff < -0.001 {
		t.Fatalf("near driver lat = %f, want ~%f", got[0].Location.Lat, nearPos.Lat)
	}
}

func TestService_SetStatusOffline_ClearsPosition(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createDriver(t, s, "d1", StatusAvailable)
	if err := s.SetPosition(ctx, "d1", nearPos); err != nil {
		t.Fatalf("set position: %v", err)
	}

	svc := NewService(s, nil)
	if err := svc.SetStatus(ctx, "d1", StatusOffline); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	ids, err := s.NearbyIDs(ctx, testPickup, 10)
	if err != nil {
		t.Fatalf("NearbyIDs: %v", err)
	}
	for _, id := range ids {
		if id == "d1" {
			t.Fatal("offline driver still in geo set")
		}
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
