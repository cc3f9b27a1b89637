// Package dbtest opens a migrated Postgres pool for store integration tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alumnet/alumnet/db"
	dbpkg "github.com/alumnet/alumnet/internal/db"
	"github.com/alumnet/alumnet/internal/logger"
)

// EnvDSN names the variable holding the integration database URL.
const EnvDSN = "TEST_POSTGRES_DSN"

// Pool connects to the database named by TEST_POSTGRES_DSN and applies every
// migration. The test is skipped when the variable is unset or the database
// is unreachable. The pool is closed on cleanup.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skip("skip integration test: TEST_POSTGRES_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("skip integration test: cannot connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skip integration test: database ping failed: %v", err)
	}
	t.Cleanup(pool.Close)

	migrations, err := db.Migrations()
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if err := dbpkg.RunMigrateDSN(logger.Discard(), dsn, migrations, dbpkg.MigrateUp, nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return pool
}
