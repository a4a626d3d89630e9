package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/tollgate"
)

// column describes one expected column as reported by information_schema.
type column struct {
	name     string
	dataType string
	nullable bool
}

var profileColumns = []column{
	{name: "id", dataType: "uuid"},
	{name: "provider", dataType: "text"},
	{name: "external_id", dataType: "text"},
	{name: "name", dataType: "text"},
	{name: "auth", dataType: "bigint"},
	{name: "created_at", dataType: "timestamp with time zone"},
	{name: "updated_at", dataType: "timestamp with time zone"},
}

// identityIndex names the unique (provider, external_id) index used as the
// upsert conflict target.
func identityIndex(table string) string {
	return fmt.Sprintf("idx_%s_identity", table)
}

// ValidateSchema checks that the profiles table exists in the public schema
// with the columns and identity index Migrate creates.
func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, tables tollgate.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}

	if err := checkProfilesTable(ctx, pool, tables.Profiles); err != nil {
		return fmt.Errorf("validate schema %s: %w", tables.Profiles, err)
	}
	return nil
}

func checkProfilesTable(ctx context.Context, pool *pgxpool.Pool, table string) error {
	var found bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, table).Scan(&found)
	if err != nil {
		return fmt.Errorf("look up table: %w", err)
	}
	if !found {
		return fmt.Errorf("table %s does not exist", table)
	}

	actual, err := readColumns(ctx, pool, table)
	if err != nil {
		return err
	}

	var missing, problems []string
	for _, want := range profileColumns {
		got, ok := actual[want.name]
		switch {
		case !ok:
			missing = append(missing, want.name)
		case got.dataType != want.dataType:
			problems = append(problems, fmt.Sprintf("%s: expected %s, got %s", want.name, want.dataType, got.dataType))
		case got.nullable != want.nullable:
			problems = append(problems, fmt.Sprintf("%s: expected nullable=%t, got nullable=%t", want.name, want.nullable, got.nullable))
		}
	}
	if len(missing) > 0 {
		problems = append([]string{"missing columns [" + strings.Join(missing, ", ") + "]"}, problems...)
	}
	if len(problems) > 0 {
		return fmt.Errorf("table %s does not match: %s", table, strings.Join(problems, "; "))
	}

	err = pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = 'public' AND tablename = $1 AND indexname = $2
		)
	`, table, identityIndex(table)).Scan(&found)
	if err != nil {
		return fmt.Errorf("look up index: %w", err)
	}
	if !found {
		return fmt.Errorf("table %s: index %s does not exist", table, identityIndex(table))
	}

	return nil
}

func readColumns(ctx context.Context, pool *pgxpool.Pool, table string) (map[string]column, error) {
	rows, err := pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
	`, table)
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]column)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("read columns: %w", err)
		}
		columns[name] = column{name: name, dataType: strings.ToLower(dataType), nullable: nullable == "YES"}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	return columns, nil
}
