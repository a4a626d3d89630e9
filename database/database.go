package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sagarc03/tollgate"
	"github.com/sagarc03/tollgate/database/postgres"
	"github.com/sagarc03/tollgate/database/sqlite"
	"github.com/sagarc03/tollgate/session"
)

// Config holds the configuration for connecting to a profile backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" validate:"required"`
	// Tables holds the table names
	Tables tollgate.Tables `mapstructure:"tables"`
}

// ProfileRepo is a session.ProfileStore that can also change permissions.
type ProfileRepo interface {
	session.ProfileStore
	SetAuth(ctx context.Context, id uuid.UUID, auth session.AuthFlags) (session.Profile, error)
	Ping(ctx context.Context) error
}

// Database is an opened but not necessarily migrated backend.
type Database interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	GetRepo() ProfileRepo
	Close() error
}

// Connect opens the configured backend without touching its schema.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return backend[*sqlite.Repo]{db}, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return backend[*postgres.Repo]{db}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// Open connects, runs migrations, validates the schema and returns a
// ready-to-use repository. The returned cleanup function closes the
// connection.
func Open(ctx context.Context, cfg Config) (ProfileRepo, func(), error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	if err = db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	if err = db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate %s: %w", cfg.Type, err)
	}

	if err = db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("validate %s schema: %w", cfg.Type, err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return db.GetRepo(), cleanup, nil
}

// backendDB is what both drivers' Connect return.
type backendDB[R ProfileRepo] interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	GetRepo() R
	Close() error
}

// backend adapts a driver handle whose GetRepo returns a concrete repo.
type backend[R ProfileRepo] struct {
	backendDB[R]
}

func (b backend[R]) GetRepo() ProfileRepo {
	return b.backendDB.GetRepo()
}
