package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultGracePeriod is how long before expiry a session is rotated.
const DefaultGracePeriod = time.Hour

// DefaultProviders are the identity providers accepted by Authenticate.
var DefaultProviders = []string{"google", "github", "facebook"}

// Registry tracks live sessions by token prefix. Every operation holds a
// single mutex, including calls into the profile store.
//
// Entries are only removed by Rotate and Authenticate; prefixes of
// abandoned sessions stay until the process exits.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	codec     Codec
	store     ProfileStore
	grace     time.Duration
	providers map[string]struct{}
	now       func() time.Time
	logger    *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithProfileStore attaches stored profiles to authenticated sessions.
func WithProfileStore(store ProfileStore) RegistryOption {
	return func(r *Registry) {
		r.store = store
	}
}

// WithGracePeriod sets the window before expiry in which Expiring is true.
func WithGracePeriod(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.grace = d
	}
}

// WithProviders replaces the accepted identity providers.
func WithProviders(providers ...string) RegistryOption {
	return func(r *Registry) {
		r.providers = make(map[string]struct{}, len(providers))
		for _, p := range providers {
			r.providers[p] = struct{}{}
		}
	}
}

// WithRegistryClock sets the time source for expiry checks. It should match
// the codec's clock.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry backed by codec.
func NewRegistry(codec Codec, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		codec:    codec,
		grace:    DefaultGracePeriod,
		now:      time.Now,
		logger:   slog.Default(),
	}
	WithProviders(DefaultProviders...)(r)

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Len returns the number of tracked prefixes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Lookup returns the session tracked under prefix without decoding
// anything.
func (r *Registry) Lookup(prefix string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[prefix]
	return s, ok
}

// Get returns the session for token. A tracked session is returned when its
// full token matches; otherwise the token is decoded and, on success,
// tracked under its prefix. Expired sessions fail with ErrExpiredToken.
func (r *Registry) Get(ctx context.Context, token string) (*Session, error) {
	if len(token) < PrefixLength {
		return nil, fmt.Errorf("get session: token too short: %w", ErrInvalidToken)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[tokenPrefix(token)]; ok && s.Token == token {
		if r.expired(s) {
			return nil, fmt.Errorf("get session: %w", ErrExpiredToken)
		}
		return s, nil
	}

	claims, err := r.codec.Decode(token)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	s := &Session{Token: token, Claims: claims}
	s.Profile = r.loadProfile(ctx, claims)

	r.sessions[s.Prefix()] = s
	return s, nil
}

// Create mints an anonymous session and tracks it.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.issue(Claims{}, nil)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	r.sessions[s.Prefix()] = s
	r.logger.DebugContext(ctx, "session created", "prefix", s.Prefix())
	return s, nil
}

// Rotate re-issues s with a fresh nonce and expiry, tracks the new token
// and forgets the old prefix.
func (r *Registry) Rotate(ctx context.Context, s *Session) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := r.replace(s, s.Claims, s.Profile)
	if err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	r.logger.DebugContext(ctx, "session rotated", "old_prefix", s.Prefix(), "prefix", next.Prefix())
	return next, nil
}

// Supports reports whether Authenticate accepts provider.
func (r *Registry) Supports(provider string) bool {
	_, ok := r.providers[provider]
	return ok
}

// Authenticate binds s to an identity and re-issues it. A nil s issues a
// fresh authenticated session. With a profile store the profile is
// upserted and its id and permission bits go into the claims; without one
// the external id is used as is. Nothing is tracked or forgotten unless
// the call succeeds.
func (r *Registry) Authenticate(ctx context.Context, s *Session, provider, externalID, name string) (*Session, error) {
	if !r.Supports(provider) {
		return nil, fmt.Errorf("authenticate: %q: %w", provider, ErrUnsupportedProvider)
	}
	if externalID == "" {
		return nil, errors.New("authenticate: empty external id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var claims Claims
	if s != nil {
		claims = s.Claims
	}
	claims.Provider = provider
	claims.ID = externalID
	claims.Name = name
	claims.Auth = 0

	var profile *Profile
	if r.store != nil {
		p, err := r.store.UpsertProfile(ctx, provider, externalID, name)
		if err != nil {
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		profile = &p
		claims.ID = p.ID.String()
		claims.Name = p.Name
		claims.Auth = p.Auth
	}

	next, err := r.replace(s, claims, profile)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	r.logger.InfoContext(ctx, "session authenticated", "provider", provider, "id", claims.ID, "prefix", next.Prefix())
	return next, nil
}

// Expired reports whether s is past its expiry.
func (r *Registry) Expired(s *Session) bool {
	return r.expired(s)
}

// Expiring reports whether s is still valid but inside the grace period.
func (r *Registry) Expiring(s *Session) bool {
	now := r.now()
	return !s.Claims.ExpiresAt.Before(now) && s.Claims.ExpiresAt.Before(now.Add(r.grace))
}

func (r *Registry) expired(s *Session) bool {
	return s.Claims.ExpiresAt.Before(r.now())
}

// issue encodes claims and decodes the result so the session carries
// exactly what its token does. Callers hold r.mu.
func (r *Registry) issue(claims Claims, profile *Profile) (*Session, error) {
	token, err := r.codec.Encode(claims)
	if err != nil {
		return nil, err
	}

	issued, err := r.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	s := &Session{Token: token, Claims: issued, Profile: profile}
	if _, exists := r.sessions[s.Prefix()]; exists {
		return nil, fmt.Errorf("prefix %s: %w", s.Prefix(), ErrSessionExists)
	}

	return s, nil
}

// replace issues a session for claims, tracks it and drops old's prefix
// when there is one. Callers hold r.mu.
func (r *Registry) replace(old *Session, claims Claims, profile *Profile) (*Session, error) {
	next, err := r.issue(claims, profile)
	if err != nil {
		return nil, err
	}

	r.sessions[next.Prefix()] = next
	if old != nil {
		delete(r.sessions, old.Prefix())
	}
	return next, nil
}

// loadProfile fetches the stored profile for authenticated claims. Failures
// leave the session without a profile. Callers hold r.mu.
func (r *Registry) loadProfile(ctx context.Context, claims Claims) *Profile {
	if r.store == nil || !claims.Authenticated() {
		return nil
	}

	id, err := uuid.Parse(claims.ID)
	if err != nil {
		r.logger.DebugContext(ctx, "session id is not a profile id", "id", claims.ID)
		return nil
	}

	p, err := r.store.GetProfile(ctx, id)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, context.Canceled) {
			level = slog.LevelDebug
		}
		r.logger.Log(ctx, level, "load profile failed", "id", id, "err", err)
		return nil
	}

	return &p
}
