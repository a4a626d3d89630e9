package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sagarc03/tollgate"
)

// column describes one expected column of a table.
type column struct {
	name     string
	dataType string
	nullable bool
}

// profileColumns lists the profiles table as created by Migrate.
var profileColumns = []column{
	{name: "id", dataType: "text"},
	{name: "provider", dataType: "text"},
	{name: "external_id", dataType: "text"},
	{name: "name", dataType: "text"},
	{name: "auth", dataType: "integer"},
	{name: "created_at", dataType: "text"},
	{name: "updated_at", dataType: "text"},
}

// identityIndex names the unique (provider, external_id) index that
// UpsertProfile relies on for its conflict target.
func identityIndex(table string) string {
	return fmt.Sprintf("idx_%s_identity", table)
}

// schemaReport collects everything wrong with one table.
type schemaReport struct {
	table    string
	missing  []string
	mismatch []string
}

func (r *schemaReport) ok() bool {
	return len(r.missing) == 0 && len(r.mismatch) == 0
}

func (r *schemaReport) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "table %s does not match:", r.table)
	if len(r.missing) > 0 {
		fmt.Fprintf(&b, " missing columns [%s]", strings.Join(r.missing, ", "))
	}
	for _, m := range r.mismatch {
		fmt.Fprintf(&b, "; %s", m)
	}
	return b.String()
}

// ValidateSchema checks that the profiles table exists with the columns and
// identity index Migrate creates.
func ValidateSchema(ctx context.Context, db *sql.DB, tables tollgate.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}

	table := tables.Profiles
	if err := checkProfilesTable(ctx, db, table); err != nil {
		return fmt.Errorf("validate schema %s: %w", table, err)
	}

	return nil
}

func checkProfilesTable(ctx context.Context, db *sql.DB, table string) error {
	found, err := sqliteObjectExists(ctx, db, "table", table)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("table %s does not exist", table)
	}

	actual, err := readColumns(ctx, db, table)
	if err != nil {
		return err
	}

	report := &schemaReport{table: table}
	for _, want := range profileColumns {
		got, ok := actual[want.name]
		switch {
		case !ok:
			report.missing = append(report.missing, want.name)
		case got.dataType != want.dataType:
			report.mismatch = append(report.mismatch,
				fmt.Sprintf("%s: expected %s, got %s", want.name, want.dataType, got.dataType))
		case got.nullable != want.nullable:
			report.mismatch = append(report.mismatch,
				fmt.Sprintf("%s: expected nullable=%t, got nullable=%t", want.name, want.nullable, got.nullable))
		}
	}
	if !report.ok() {
		return report
	}

	found, err = sqliteObjectExists(ctx, db, "index", identityIndex(table))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("table %s: index %s does not exist", table, identityIndex(table))
	}

	return nil
}

func readColumns(ctx context.Context, db *sql.DB, table string) (map[string]column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make(map[string]column)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, dataType   string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("read columns: %w", err)
		}
		columns[name] = column{name: name, dataType: strings.ToLower(dataType), nullable: notNull == 0}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	return columns, nil
}

func sqliteObjectExists(ctx context.Context, db *sql.DB, kind, name string) (bool, error) {
	var got string
	err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = ? AND name = ?`, kind, name).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up %s %s: %w", kind, name, err)
	}
	return true, nil
}
