// Package sqlite stores session profiles in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sagarc03/tollgate"
	"github.com/sagarc03/tollgate/session"
)

// Repo implements session.ProfileStore on a single SQLite table.
type Repo struct {
	db        *sql.DB
	tableName string
	now       func() time.Time
}

// NewRepo returns a profile repository. The schema must already exist.
func NewRepo(db *sql.DB, tables tollgate.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{db: db, tableName: tables.Profiles, now: time.Now}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UpsertProfile inserts the identity or refreshes its display name. The
// stored id and permission bits are never changed by a login.
func (r *Repo) UpsertProfile(ctx context.Context, provider, externalID, name string) (session.Profile, error) {
	now := r.timestamp()

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, provider, external_id, name, auth, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (provider, external_id) DO UPDATE
		SET name = excluded.name, updated_at = excluded.updated_at
		RETURNING id, provider, external_id, name, auth, created_at, updated_at`, r.tableName)

	row := r.db.QueryRowContext(ctx, query, uuid.NewString(), provider, externalID, name, now, now)

	p, err := scanProfile(row)
	if err != nil {
		return session.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}

	return p, nil
}

// GetProfile returns the profile with id, or tollgate.ErrNotFound.
func (r *Repo) GetProfile(ctx context.Context, id uuid.UUID) (session.Profile, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, provider, external_id, name, auth, created_at, updated_at
		FROM %s
		WHERE id = ?`, r.tableName)

	p, err := scanProfile(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Profile{}, tollgate.ErrNotFound
		}
		return session.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	return p, nil
}

// SetAuth replaces the permission bits of a profile.
func (r *Repo) SetAuth(ctx context.Context, id uuid.UUID, auth session.AuthFlags) (session.Profile, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET auth = ?, updated_at = ?
		WHERE id = ?
		RETURNING id, provider, external_id, name, auth, created_at, updated_at`, r.tableName)

	p, err := scanProfile(r.db.QueryRowContext(ctx, query, int64(auth), r.timestamp(), id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Profile{}, fmt.Errorf("set auth: %w", tollgate.ErrNotFound)
		}
		return session.Profile{}, fmt.Errorf("set auth: %w", err)
	}

	return p, nil
}

func (r *Repo) timestamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

func scanProfile(row *sql.Row) (session.Profile, error) {
	var p session.Profile
	var idStr, createdAt, updatedAt string
	var auth int64

	if err := row.Scan(&idStr, &p.Provider, &p.ExternalID, &p.Name, &auth, &createdAt, &updatedAt); err != nil {
		return session.Profile{}, err
	}

	var err error
	p.ID, err = uuid.Parse(idStr)
	if err != nil {
		return session.Profile{}, fmt.Errorf("parse uuid: %w", err)
	}

	p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return session.Profile{}, fmt.Errorf("parse created_at: %w", err)
	}

	p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return session.Profile{}, fmt.Errorf("parse updated_at: %w", err)
	}

	p.Auth = session.AuthFlags(auth)
	return p, nil
}
