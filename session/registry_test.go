package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/tollgate/session"
)

const sessionTimeout = 30 * 24 * time.Hour

func newTestRegistry(t *testing.T, clock *testClock, opts ...session.RegistryOption) *session.Registry {
	t.Helper()

	codec := newTestCodec(t, clock, sessionTimeout)
	opts = append([]session.RegistryOption{session.WithRegistryClock(clock.Now)}, opts...)
	return session.NewRegistry(codec, opts...)
}

func TestRegistry_Create(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, newTestClock())
	ctx := context.Background()

	s, err := registry.Create(ctx)
	require.NoError(t, err)

	assert.False(t, s.Authenticated())
	assert.Len(t, s.Prefix(), session.PrefixLength)
	assert.Equal(t, s.Token[:session.PrefixLength], s.Prefix())
	assert.Equal(t, 1, registry.Len())

	found, ok := registry.Lookup(s.Prefix())
	require.True(t, ok)
	assert.Same(t, s, found)
}

func TestRegistry_Get(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	codec := newTestCodec(t, clock, sessionTimeout)
	registry := session.NewRegistry(codec, session.WithRegistryClock(clock.Now))
	ctx := context.Background()

	t.Run("tracked session is returned as is", func(t *testing.T) {
		created, err := registry.Create(ctx)
		require.NoError(t, err)

		got, err := registry.Get(ctx, created.Token)
		require.NoError(t, err)
		assert.Same(t, created, got)
	})

	t.Run("untracked token is decoded and tracked", func(t *testing.T) {
		token, err := codec.Encode(session.Claims{Provider: "github", ID: "99", Name: "octo"})
		require.NoError(t, err)

		before := registry.Len()
		got, err := registry.Get(ctx, token)
		require.NoError(t, err)

		assert.Equal(t, "99", got.Claims.ID)
		assert.True(t, got.Authenticated())
		assert.Equal(t, before+1, registry.Len())

		again, err := registry.Get(ctx, token)
		require.NoError(t, err)
		assert.Same(t, got, again)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := registry.Get(ctx, "this-is-not-a-session-token-at-all-but-long-enough")
		assert.ErrorIs(t, err, session.ErrInvalidToken)
	})

	t.Run("shorter than a prefix", func(t *testing.T) {
		_, err := registry.Get(ctx, "short")
		assert.ErrorIs(t, err, session.ErrInvalidToken)
	})
}

func TestRegistry_GetExpired(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	registry := newTestRegistry(t, clock)
	ctx := context.Background()

	s, err := registry.Create(ctx)
	require.NoError(t, err)

	clock.Advance(sessionTimeout + time.Second)

	_, err = registry.Get(ctx, s.Token)
	assert.ErrorIs(t, err, session.ErrExpiredToken)
	assert.True(t, registry.Expired(s))
}

func TestRegistry_Rotate(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	registry := newTestRegistry(t, clock)
	ctx := context.Background()

	s, err := registry.Create(ctx)
	require.NoError(t, err)
	s, err = registry.Authenticate(ctx, s, "google", "1234", "Grace Hopper")
	require.NoError(t, err)

	clock.Advance(sessionTimeout - 30*time.Minute)
	require.True(t, registry.Expiring(s))

	rotated, err := registry.Rotate(ctx, s)
	require.NoError(t, err)

	assert.NotEqual(t, s.Token, rotated.Token)
	assert.NotEqual(t, s.Prefix(), rotated.Prefix())
	assert.Equal(t, s.Claims.ID, rotated.Claims.ID)
	assert.Equal(t, s.Claims.Provider, rotated.Claims.Provider)
	assert.Equal(t, s.Claims.Name, rotated.Claims.Name)
	assert.True(t, rotated.Claims.ExpiresAt.After(s.Claims.ExpiresAt))
	assert.False(t, registry.Expiring(rotated))

	_, ok := registry.Lookup(s.Prefix())
	assert.False(t, ok, "old prefix must be forgotten")

	found, ok := registry.Lookup(rotated.Prefix())
	require.True(t, ok)
	assert.Same(t, rotated, found)
	assert.Equal(t, 1, registry.Len())

	// The previous value is untouched.
	assert.True(t, registry.Expiring(s))
}

func TestRegistry_ExpiringWindow(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	registry := newTestRegistry(t, clock, session.WithGracePeriod(2*time.Hour))

	s, err := registry.Create(context.Background())
	require.NoError(t, err)

	tests := []struct {
		name         string
		advance      time.Duration
		wantExpiring bool
		wantExpired  bool
	}{
		{name: "fresh", advance: 0},
		{name: "just outside grace", advance: sessionTimeout - 2*time.Hour - time.Second},
		{name: "inside grace", advance: sessionTimeout - time.Hour, wantExpiring: true},
		{name: "at expiry", advance: sessionTimeout, wantExpiring: true},
		{name: "past expiry", advance: sessionTimeout + time.Second, wantExpired: true},
	}

	start := clock.Now()
	for _, tt := range tests {
		clock.mu.Lock()
		clock.now = start.Add(tt.advance)
		clock.mu.Unlock()

		assert.Equal(t, tt.wantExpiring, registry.Expiring(s), tt.name)
		assert.Equal(t, tt.wantExpired, registry.Expired(s), tt.name)
	}
}

func TestRegistry_AuthenticateWithoutStore(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, newTestClock())
	ctx := context.Background()

	anon, err := registry.Create(ctx)
	require.NoError(t, err)

	s, err := registry.Authenticate(ctx, anon, "github", "583231", "octocat")
	require.NoError(t, err)

	assert.True(t, s.Authenticated())
	assert.Equal(t, "github", s.Claims.Provider)
	assert.Equal(t, "583231", s.Claims.ID)
	assert.Equal(t, "octocat", s.Claims.Name)
	assert.Nil(t, s.Profile)

	_, ok := registry.Lookup(anon.Prefix())
	assert.False(t, ok)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_AuthenticateUnsupportedProvider(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, newTestClock(), session.WithProviders("google"))
	ctx := context.Background()

	anon, err := registry.Create(ctx)
	require.NoError(t, err)

	_, err = registry.Authenticate(ctx, anon, "github", "1", "x")
	assert.ErrorIs(t, err, session.ErrUnsupportedProvider)

	_, err = registry.Authenticate(ctx, anon, "google", "", "x")
	assert.Error(t, err)

	_, ok := registry.Lookup(anon.Prefix())
	assert.True(t, ok, "failed authentication leaves the session alone")
}

func TestRegistry_Supports(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, newTestClock(), session.WithProviders("google"))

	tests := []struct {
		provider string
		want     bool
	}{
		{provider: "google", want: true},
		{provider: "github", want: false},
		{provider: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, registry.Supports(tt.provider))
		})
	}
}

func TestRegistry_AuthenticateWithoutCurrentSession(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, newTestClock(), session.WithProviders("github"))
	ctx := context.Background()

	_, err := registry.Authenticate(ctx, nil, "github", "", "octocat")
	require.Error(t, err)
	assert.Equal(t, 0, registry.Len())

	s, err := registry.Authenticate(ctx, nil, "github", "583231", "octocat")
	require.NoError(t, err)

	assert.True(t, s.Authenticated())
	assert.Equal(t, "583231", s.Claims.ID)
	assert.Equal(t, 1, registry.Len())

	found, ok := registry.Lookup(s.Prefix())
	require.True(t, ok)
	assert.Same(t, s, found)
}

func TestRegistry_AuthenticateWithStore(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	store := newMemoryProfiles()
	codec := newTestCodec(t, clock, sessionTimeout)
	registry := session.NewRegistry(codec, session.WithRegistryClock(clock.Now), session.WithProfileStore(store))
	ctx := context.Background()

	anon, err := registry.Create(ctx)
	require.NoError(t, err)

	s, err := registry.Authenticate(ctx, anon, "google", "108", "Alan")
	require.NoError(t, err)
	require.NotNil(t, s.Profile)

	id, err := uuid.Parse(s.Claims.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Profile.ID, id)
	assert.Equal(t, "108", s.Profile.ExternalID)
	assert.Equal(t, session.AuthFlags(0), s.Claims.Auth)

	// Permission changes show up on the next login.
	store.setAuth(id, session.AuthAdmin)
	s, err = registry.Authenticate(ctx, s, "google", "108", "Alan Turing")
	require.NoError(t, err)
	assert.Equal(t, id.String(), s.Claims.ID)
	assert.Equal(t, session.AuthAdmin, s.Claims.Auth)
	assert.Equal(t, "Alan Turing", s.Claims.Name)
	assert.Equal(t, 2, store.upserted)

	// Another process decoding the token attaches the stored profile.
	fresh := session.NewRegistry(codec, session.WithRegistryClock(clock.Now), session.WithProfileStore(store))
	got, err := fresh.Get(ctx, s.Token)
	require.NoError(t, err)
	require.NotNil(t, got.Profile)
	assert.Equal(t, id, got.Profile.ID)
}

func TestRegistry_ProfileMissing(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	codec := newTestCodec(t, clock, sessionTimeout)
	registry := session.NewRegistry(codec, session.WithRegistryClock(clock.Now), session.WithProfileStore(newMemoryProfiles()))

	token, err := codec.Encode(session.Claims{Provider: "google", ID: uuid.NewString()})
	require.NoError(t, err)

	s, err := registry.Get(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, s.Authenticated())
	assert.Nil(t, s.Profile)
}

func TestRegistry_Concurrent(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, newTestClock())
	ctx := context.Background()

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				s, err := registry.Create(ctx)
				if err != nil {
					errs <- err
					continue
				}
				if _, err := registry.Get(ctx, s.Token); err != nil {
					errs <- err
					continue
				}
				if _, err := registry.Rotate(ctx, s); err != nil {
					errs <- err
				}
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, workers*perWorker, registry.Len())
}
