// Package postgres stores session profiles in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/tollgate"
	"github.com/sagarc03/tollgate/session"
)

const profileSelect = `id, provider, external_id, name, auth, created_at, updated_at`

// Repo implements session.ProfileStore on a single PostgreSQL table.
type Repo struct {
	pool      *pgxpool.Pool
	tableName string
}

// NewRepo returns a profile repository. The schema must already exist.
func NewRepo(pool *pgxpool.Pool, tables tollgate.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{pool: pool, tableName: pgx.Identifier{tables.Profiles}.Sanitize()}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// UpsertProfile inserts the identity or refreshes its display name. The
// stored id and permission bits are never changed by a login.
func (r *Repo) UpsertProfile(ctx context.Context, provider, externalID, name string) (session.Profile, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (provider, external_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, external_id) DO UPDATE
		SET name = EXCLUDED.name,
			updated_at = NOW()
		RETURNING %s
	`, r.tableName, profileSelect)

	p, err := scanProfile(r.pool.QueryRow(ctx, query, provider, externalID, name))
	if err != nil {
		return session.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}

	return p, nil
}

// GetProfile returns the profile with id, or tollgate.ErrNotFound.
func (r *Repo) GetProfile(ctx context.Context, id uuid.UUID) (session.Profile, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1
	`, profileSelect, r.tableName)

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Profile{}, tollgate.ErrNotFound
		}
		return session.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	return p, nil
}

// SetAuth replaces the permission bits of a profile.
func (r *Repo) SetAuth(ctx context.Context, id uuid.UUID, auth session.AuthFlags) (session.Profile, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET auth = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING %s
	`, r.tableName, profileSelect)

	p, err := scanProfile(r.pool.QueryRow(ctx, query, int64(auth), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Profile{}, fmt.Errorf("set auth: %w", tollgate.ErrNotFound)
		}
		return session.Profile{}, fmt.Errorf("set auth: %w", err)
	}

	return p, nil
}

func scanProfile(row pgx.Row) (session.Profile, error) {
	var p session.Profile
	var auth int64

	if err := row.Scan(&p.ID, &p.Provider, &p.ExternalID, &p.Name, &auth, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return session.Profile{}, err
	}

	p.Auth = session.AuthFlags(auth)
	return p, nil
}
