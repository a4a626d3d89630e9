package postgres_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/sagarc03/tollgate"
	"github.com/sagarc03/tollgate/database/postgres"
)

var sharedContainer *pgcontainer.PostgresContainer

// postgresDSN starts one container for the whole package. Tests isolate
// themselves with unique table names instead of separate databases.
var postgresDSN = sync.OnceValues(func() (string, error) {
	ctx := context.Background()

	container, err := pgcontainer.Run(ctx,
		"postgres:18-alpine",
		pgcontainer.WithDatabase("tollgate"),
		pgcontainer.WithUsername("tollgate"),
		pgcontainer.WithPassword("tollgate"),
		pgcontainer.BasicWaitStrategies(),
	)
	if err != nil {
		return "", fmt.Errorf("start postgres container: %w", err)
	}
	sharedContainer = container

	return container.ConnectionString(ctx, "sslmode=disable")
})

func TestMain(m *testing.M) {
	code := m.Run()

	if sharedContainer != nil {
		if err := testcontainers.TerminateContainer(sharedContainer); err != nil {
			fmt.Fprintf(os.Stderr, "terminate postgres container: %v\n", err)
		}
	}
	os.Exit(code)
}

// testPool opens a pool against the shared container, closed with the test.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn, err := postgresDSN()
	require.NoError(t, err)

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

// uniqueTable returns a valid, unused table name starting with prefix.
func uniqueTable(t *testing.T, prefix string) string {
	t.Helper()
	return fmt.Sprintf("%s_%x", prefix, []byte(rand.Text()[:6]))
}

// dropTable removes table when the test finishes.
func dropTable(t *testing.T, pool *pgxpool.Pool, table string) {
	t.Helper()

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+pgx.Identifier{table}.Sanitize()+" CASCADE")
	})
}

// setupTestRepo migrates a fresh profiles table and returns its repo.
func setupTestRepo(t *testing.T) *postgres.Repo {
	t.Helper()

	pool := testPool(t)
	ctx := context.Background()
	tables := tollgate.Tables{Profiles: uniqueTable(t, "profiles")}

	db, err := postgres.Connect(ctx, pool.Config().ConnString(), tables)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	dropTable(t, pool, tables.Profiles)

	require.NoError(t, db.Migrate(ctx))
	return db.GetRepo()
}
