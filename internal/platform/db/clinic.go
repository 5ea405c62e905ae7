package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	ClinicIDKey contextKey = "clinic_id"
	DBConnKey   contextKey = "db_conn"
	TxKey       contextKey = "db_tx"
)

// ClinicHeader lets a client pick the clinic schema when the session does not
// carry one.
const ClinicHeader = "X-Clinic-ID"

var clinicIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SchemaName returns the Postgres schema that holds a clinic's tables.
func SchemaName(clinicID string) string {
	return "clinic_" + clinicID
}

// ValidClinicID reports whether id is safe to interpolate into a schema name.
func ValidClinicID(id string) bool {
	return clinicIDPattern.MatchString(id)
}

// ClinicMiddleware acquires a connection per request and points its
// search_path at the clinic schema. Repositories pick the connection up via
// ConnFromContext.
func ClinicMiddleware(pool *pgxpool.Pool, defaultClinic string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clinicID := extractClinicID(c, defaultClinic)

			if !ValidClinicID(clinicID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid clinic identifier")
			}

			ctx, release, err := scopeConn(c.Request().Context(), pool, clinicID)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer release()

			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("clinic_id", clinicID)

			return next(c)
		}
	}
}

// scopeConn acquires a connection, points it at the clinic schema and stores
// it on the returned context.
func scopeConn(ctx context.Context, pool *pgxpool.Pool, clinicID string) (context.Context, func(), error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", SchemaName(clinicID))); err != nil {
		conn.Release()
		return ctx, nil, fmt.Errorf("set search_path for %s: %w", clinicID, err)
	}
	ctx = context.WithValue(ctx, ClinicIDKey, clinicID)
	ctx = context.WithValue(ctx, DBConnKey, conn)
	return ctx, conn.Release, nil
}

// WithClinic runs fn against clinicID's schema outside of an HTTP request,
// e.g. from the CLI or a background refresh.
func WithClinic(ctx context.Context, pool *pgxpool.Pool, clinicID string, fn func(ctx context.Context) error) error {
	if !ValidClinicID(clinicID) {
		return fmt.Errorf("invalid clinic identifier: %s", clinicID)
	}
	scoped, release, err := scopeConn(ctx, pool, clinicID)
	if err != nil {
		return err
	}
	defer release()
	return fn(scoped)
}

func extractClinicID(c echo.Context, defaultClinic string) string {
	if cid, ok := c.Get("jwt_clinic_id").(string); ok && cid != "" {
		return cid
	}
	if cid := c.Request().Header.Get(ClinicHeader); cid != "" {
		return cid
	}
	if cid := c.QueryParam("clinic_id"); cid != "" {
		return cid
	}
	return defaultClinic
}

// ConnFromContext retrieves the clinic-scoped connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// ClinicFromContext retrieves the clinic ID from context.
func ClinicFromContext(ctx context.Context) string {
	cid, _ := ctx.Value(ClinicIDKey).(string)
	return cid
}

// CreateClinicSchema creates the schema for a clinic and, when migrationsDir
// is not empty, applies all migrations to it.
func CreateClinicSchema(ctx context.Context, pool *pgxpool.Pool, clinicID string, migrationsDir string) error {
	if !ValidClinicID(clinicID) {
		return fmt.Errorf("invalid clinic identifier: %s", clinicID)
	}

	schema := SchemaName(clinicID)
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrationsDir != "" {
		migrator := NewMigrator(pool, migrationsDir)
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}
	return nil
}
