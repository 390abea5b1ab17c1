package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"petclinic/backend/internal/domain"
	"petclinic/backend/internal/store"
)

func TestPostgresIntegration_VisitLifecycle(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("PETCLINIC_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("PETCLINIC_TEST_DATABASE_URL not set")
	}

	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	schema := "petclinic_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cleanupCancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(cleanupCtx)
	})

	if _, err := db.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	// single pooled connection, so a session-level search_path sticks
	if _, err := db.NewRaw("SET search_path TO " + schema).Exec(ctx); err != nil {
		t.Fatalf("set search_path: %v", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	repo := NewVisitRepo(db)

	hours, err := repo.WorkingHours(ctx)
	if err != nil {
		t.Fatalf("WorkingHours error: %v", err)
	}
	if len(hours) != 9 {
		t.Fatalf("len(hours) = %d, want 9", len(hours))
	}
	if _, err := domain.NewCatalog(hours); err != nil {
		t.Fatalf("seeded rows do not form a valid catalog: %v", err)
	}

	date := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)

	v1, err := repo.Create(ctx, domain.Visit{PetID: 1, Date: date, WorkingHourID: 1, Description: "checkup"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if v1.ID == uuid.Nil {
		t.Fatalf("expected assigned id")
	}

	// same (date, slot) for another pet hits the constraint
	_, err = repo.Create(ctx, domain.Visit{PetID: 2, Date: date, WorkingHourID: 1})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate slot error = %v, want store.ErrConflict", err)
	}

	// adjacent slot and adjacent day are both free
	if _, err := repo.Create(ctx, domain.Visit{PetID: 2, Date: date, WorkingHourID: 2}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	v3, err := repo.Create(ctx, domain.Visit{PetID: 1, Date: date.AddDate(0, 0, 4), WorkingHourID: 1})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	rows, err := repo.ListByPet(ctx, 1)
	if err != nil {
		t.Fatalf("ListByPet error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].ID != v3.ID || rows[1].ID != v1.ID {
		t.Fatalf("history order = [%s %s], want most recent date first", rows[0].ID, rows[1].ID)
	}

	if err := repo.Delete(ctx, v1.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := repo.Delete(ctx, v1.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete error = %v, want store.ErrNotFound", err)
	}

	// cancelled slot can be rebooked
	if _, err := repo.Create(ctx, domain.Visit{PetID: 3, Date: date, WorkingHourID: 1}); err != nil {
		t.Fatalf("rebooking a cancelled slot: %v", err)
	}
}

func TestPostgresIntegration_ConcurrentCreatesOneWinner(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("PETCLINIC_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("PETCLINIC_TEST_DATABASE_URL not set")
	}

	// A single pooled connection keeps the session search_path valid for
	// every goroutine. The inserts serialize at the pool, but the conflict
	// outcome is decided by the constraint, which is what this test pins.
	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	schema := "petclinic_race_" + randomHex(t, 8)
	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cleanupCancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(cleanupCtx)
	})

	if _, err := db.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	if _, err := db.NewRaw("SET search_path TO " + schema).Exec(ctx); err != nil {
		t.Fatalf("set search_path: %v", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	repo := NewVisitRepo(db)
	date := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		booked    int
		conflicts int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(petID int64) {
			defer wg.Done()
			_, err := repo.Create(ctx, domain.Visit{PetID: petID, Date: date, WorkingHourID: 3})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case errors.Is(err, store.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	if booked != 1 || conflicts != racers-1 {
		t.Fatalf("booked = %d, conflicts = %d; want 1 and %d", booked, conflicts, racers-1)
	}
}

func randomHex(t *testing.T, n int) string {
	t.Helper()
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(buf)
}

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

func applyMigrations(ctx context.Context, exec rawExecutor) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		up, err := extractGooseUp(string(raw))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		for _, stmt := range splitSQLStatements(up) {
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	base := filepath.Dir(file)
	return filepath.Clean(filepath.Join(base, "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := sql[upIdx+len(upMarker):]
	afterUp = strings.TrimLeft(afterUp, "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
