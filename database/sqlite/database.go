package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sagarc03/tollgate"

	_ "modernc.org/sqlite" // SQLite driver
)

// database provides SQLite database operations.
type database struct {
	db     *sql.DB
	tables tollgate.Tables
}

// Connect opens a SQLite database. Tables should be validated before calling
// Connect. In-memory databases are pinned to a single connection so every
// query sees the same schema.
func Connect(ctx context.Context, dsn string, tables tollgate.Tables) (*database, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}

	return &database{
		db:     db,
		tables: tables,
	}, nil
}

// Open returns a *sql.DB for dsn using the modernc driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// Ping verifies the database connection is alive.
func (d *database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate creates the profiles table and its indexes.
func (d *database) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.db, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches expected structure.
func (d *database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db, d.tables)
}

// GetRepo returns the profile repository.
func (d *database) GetRepo() *Repo {
	return &Repo{db: d.db, tableName: d.tables.Profiles}
}

// Close closes the database connection.
func (d *database) Close() error {
	return d.db.Close()
}
