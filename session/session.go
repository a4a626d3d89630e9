package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is an immutable snapshot of a tracked token. Rotation and
// authentication produce new values; existing pointers never change.
type Session struct {
	Token   string
	Claims  Claims
	Profile *Profile
}

// Prefix returns the lookup key of the session.
func (s *Session) Prefix() string {
	return tokenPrefix(s.Token)
}

// Authenticated reports whether the session is bound to an identity.
func (s *Session) Authenticated() bool {
	return s != nil && s.Claims.Authenticated()
}

func tokenPrefix(token string) string {
	if len(token) <= PrefixLength {
		return token
	}
	return token[:PrefixLength]
}

// Profile is the stored identity behind an authenticated session.
type Profile struct {
	ID         uuid.UUID `json:"id"`
	Provider   string    `json:"provider"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Auth       AuthFlags `json:"auth"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProfileStore persists profiles. Implementations live in the database
// packages.
type ProfileStore interface {
	// UpsertProfile creates the profile for provider/externalID or updates
	// its name. Permission bits of an existing profile are kept.
	UpsertProfile(ctx context.Context, provider, externalID, name string) (Profile, error)
	// GetProfile returns the profile with the given id.
	GetProfile(ctx context.Context, id uuid.UUID) (Profile, error)
}
