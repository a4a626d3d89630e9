package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sagarc03/tollgate"
	"github.com/sagarc03/tollgate/database/sqlite"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// setupTestRepo migrates a profiles table in a fresh in-memory database
// and returns its repo.
func setupTestRepo(t *testing.T) *sqlite.Repo {
	t.Helper()

	ctx := context.Background()
	db, err := sqlite.Connect(ctx, ":memory:", tollgate.Tables{Profiles: "profiles"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return db.GetRepo()
}
