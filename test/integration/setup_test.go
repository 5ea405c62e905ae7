//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/account"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/auth"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/db"
)

// testDB holds the shared database for the suite.
type testDB struct {
	Pool          *pgxpool.Pool
	ConnStr       string
	MigrationsDir string
}

var globalDB *testDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres: %v\n", err)
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupPostgres(ctx context.Context) (*testDB, func(), error) {
	connStr, cleanup, err := startPostgres(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("start postgres container: %w", err)
	}

	pool, err := db.NewPool(ctx, connStr, 10, 1)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	tdb := &testDB{
		Pool:          pool,
		ConnStr:       connStr,
		MigrationsDir: findMigrationsDir(),
	}
	return tdb, func() {
		pool.Close()
		cleanup()
	}, nil
}

// findMigrationsDir locates the migrations directory relative to this file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// uniqueClinicID returns a fresh clinic id so tests never share a schema.
func uniqueClinicID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.New().String()[:8], "-", ""))
}

// createClinic creates and migrates a clinic schema and drops it when the
// test ends.
func createClinic(t *testing.T, ctx context.Context, prefix string) string {
	t.Helper()
	clinicID := uniqueClinicID(prefix)
	if err := db.CreateClinicSchema(ctx, globalDB.Pool, clinicID, globalDB.MigrationsDir); err != nil {
		t.Fatalf("create clinic schema %s: %v", clinicID, err)
	}
	t.Cleanup(func() {
		schema := db.SchemaName(clinicID)
		if _, err := globalDB.Pool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schema, err)
		}
	})
	return clinicID
}

// inClinic runs fn on a connection scoped to clinicID and fails the test on
// error.
func inClinic(t *testing.T, ctx context.Context, clinicID string, fn func(ctx context.Context) error) {
	t.Helper()
	if err := db.WithClinic(ctx, globalDB.Pool, clinicID, fn); err != nil {
		t.Fatal(err)
	}
}

// createTestAccount stores an account with role through the repository.
func createTestAccount(t *testing.T, ctx context.Context, clinicID, name, role string) *account.Account {
	t.Helper()
	a := &account.Account{
		Name:     name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@" + uuid.New().String()[:8] + ".test",
		Role:     role,
		IsActive: true,
	}
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	inClinic(t, ctx, clinicID, func(ctx context.Context) error {
		return account.NewAccountRepoPG(globalDB.Pool).Create(ctx, a, hash)
	})
	return a
}
