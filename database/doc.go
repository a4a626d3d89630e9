// Package database connects the optional profile store that backs
// authenticated sessions.
//
// # Supported Backends
//
//   - PostgreSQL: pgx connection pool, for shared deployments
//   - SQLite: modernc.org/sqlite, for development and single-node use
//
// # Usage
//
//	cfg := database.Config{
//	    Type:   "sqlite",
//	    DSN:    "tollgate.db",
//	    Tables: tollgate.Tables{Profiles: "tollgate_profiles"},
//	}
//
//	repo, cleanup, err := database.Open(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
//
//	registry := session.NewRegistry(codec, session.WithProfileStore(repo))
//
// Open connects, runs migrations and validates the schema. Connect only
// opens the backend, leaving schema management to the caller.
package database
