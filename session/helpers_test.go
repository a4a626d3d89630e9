package session_test

import (
	"context"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/tollgate"
	"github.com/sagarc03/tollgate/session"
)

var testKey = sync.OnceValues(func() (*rsa.PrivateKey, error) {
	return session.GenerateKey(2048)
})

func getTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := testKey()
	require.NoError(t, err)
	return key
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCodec(t *testing.T, clock *testClock, timeout time.Duration) *session.RSACodec {
	t.Helper()

	codec, err := session.NewRSACodec(getTestKey(t), timeout, session.WithClock(clock.Now))
	require.NoError(t, err)
	return codec
}

// memoryProfiles is an in-memory ProfileStore.
type memoryProfiles struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]session.Profile
	upserted int
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{byID: make(map[uuid.UUID]session.Profile)}
}

func (m *memoryProfiles) UpsertProfile(_ context.Context, provider, externalID, name string) (session.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.upserted++
	for id, p := range m.byID {
		if p.Provider == provider && p.ExternalID == externalID {
			p.Name = name
			m.byID[id] = p
			return p, nil
		}
	}

	p := session.Profile{
		ID:         uuid.New(),
		Provider:   provider,
		ExternalID: externalID,
		Name:       name,
	}
	m.byID[p.ID] = p
	return p, nil
}

func (m *memoryProfiles) GetProfile(_ context.Context, id uuid.UUID) (session.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byID[id]
	if !ok {
		return session.Profile{}, tollgate.ErrNotFound
	}
	return p, nil
}

func (m *memoryProfiles) setAuth(id uuid.UUID, auth session.AuthFlags) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.byID[id]
	p.Auth = auth
	m.byID[id] = p
}
