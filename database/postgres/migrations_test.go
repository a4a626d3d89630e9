package postgres_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/tollgate"
	"github.com/sagarc03/tollgate/database/postgres"
)

func relationExists(t *testing.T, pool *pgxpool.Pool, query string, args ...any) bool {
	t.Helper()

	var exists bool
	require.NoError(t, pool.QueryRow(context.Background(), query, args...).Scan(&exists))
	return exists
}

func TestMigrate(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	tables := tollgate.Tables{Profiles: uniqueTable(t, "profiles")}
	dropTable(t, pool, tables.Profiles)

	tableQuery := `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`

	t.Run("creates table with identity index", func(t *testing.T) {
		require.NoError(t, postgres.Migrate(ctx, pool, tables))
		assert.True(t, relationExists(t, pool, tableQuery, tables.Profiles))
		assert.True(t, relationExists(t, pool,
			`SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE tablename = $1 AND indexname = $2)`,
			tables.Profiles, "idx_"+tables.Profiles+"_identity"))

		assert.NoError(t, postgres.ValidateSchema(ctx, pool, tables))
	})

	t.Run("idempotent", func(t *testing.T) {
		assert.NoError(t, postgres.Migrate(ctx, pool, tables))
	})

	t.Run("drop tables", func(t *testing.T) {
		require.NoError(t, postgres.DropTables(ctx, pool, tables))
		assert.False(t, relationExists(t, pool, tableQuery, tables.Profiles))
	})

	t.Run("invalid table name", func(t *testing.T) {
		err := postgres.Migrate(ctx, pool, tollgate.Tables{Profiles: "Robert'); DROP"})
		assert.Error(t, err)
	})
}

func TestValidateSchema(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		createSQL string
		wantErr   string
	}{
		{
			name:    "table does not exist",
			wantErr: "does not exist",
		},
		{
			name:      "missing columns",
			createSQL: `CREATE TABLE %s (id UUID PRIMARY KEY, provider TEXT NOT NULL)`,
			wantErr:   "missing columns",
		},
		{
			name: "wrong column type",
			createSQL: `CREATE TABLE %s (
				id UUID PRIMARY KEY,
				provider TEXT NOT NULL,
				external_id TEXT NOT NULL,
				name TEXT NOT NULL,
				auth TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			wantErr: "auth: expected bigint, got text",
		},
		{
			name: "no identity index",
			createSQL: `CREATE TABLE %s (
				id UUID PRIMARY KEY,
				provider TEXT NOT NULL,
				external_id TEXT NOT NULL,
				name TEXT NOT NULL,
				auth BIGINT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			wantErr: "_identity does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := uniqueTable(t, "schema")
			dropTable(t, pool, table)

			if tt.createSQL != "" {
				_, err := pool.Exec(ctx, fmt.Sprintf(tt.createSQL, pgx.Identifier{table}.Sanitize()))
				require.NoError(t, err)
			}

			err := postgres.ValidateSchema(ctx, pool, tollgate.Tables{Profiles: table})
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
