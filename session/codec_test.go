package session_test

import (
	"bytes"
	"crypto/rsa"
	"encoding/base64"
	"encoding/binary"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/tollgate/session"
)

// recoverBlock applies the public operation to a token by hand.
func recoverBlock(t *testing.T, key *rsa.PrivateKey, token string) []byte {
	t.Helper()

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)

	c := new(big.Int).SetBytes(raw)
	m := new(big.Int).Exp(c, big.NewInt(int64(key.E)), key.N)
	return m.FillBytes(make([]byte, key.Size()))
}

func TestRSACodec_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		claims session.Claims
	}{
		{name: "anonymous", claims: session.Claims{}},
		{
			name: "authenticated",
			claims: session.Claims{
				Provider: "google",
				ID:       "108234567890123456789",
				Name:     "Ada Lovelace",
				Auth:     session.AuthAdmin | session.AuthMod,
			},
		},
		{
			name:   "html characters in name",
			claims: session.Claims{Provider: "github", ID: "42", Name: `<script>&"quotes"</script>`},
		},
		{
			name:   "unicode name",
			claims: session.Claims{Provider: "facebook", ID: "7", Name: "Zoë Ångström"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := newTestClock()
			codec := newTestCodec(t, clock, 30*24*time.Hour)

			token, err := codec.Encode(tt.claims)
			require.NoError(t, err)
			assert.NotContains(t, token, "=")
			assert.Greater(t, len(token), session.PrefixLength)

			got, err := codec.Decode(token)
			require.NoError(t, err)

			assert.True(t, clock.Now().Add(30*24*time.Hour).Equal(got.ExpiresAt))
			assert.Equal(t, tt.claims.Provider, got.Provider)
			assert.Equal(t, tt.claims.ID, got.ID)
			assert.Equal(t, tt.claims.Name, got.Name)
			assert.Equal(t, tt.claims.Auth, got.Auth)
		})
	}
}

func TestRSACodec_EncodeRefreshesNonceAndExpiry(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	codec := newTestCodec(t, clock, time.Hour)

	stale := session.Claims{Nonce: 1, ExpiresAt: time.Unix(0, 0), ID: "x", Provider: "google"}

	a, err := codec.Encode(stale)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	b, err := codec.Encode(stale)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a[:session.PrefixLength], b[:session.PrefixLength])

	ca, err := codec.Decode(a)
	require.NoError(t, err)
	cb, err := codec.Decode(b)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cb.ExpiresAt.Sub(ca.ExpiresAt))
	assert.NotEqual(t, uint64(1), ca.Nonce)
}

func TestRSACodec_NonceFromRandomSource(t *testing.T) {
	t.Parallel()

	nonce := make([]byte, 8)
	binary.BigEndian.PutUint64(nonce, 0xdeadbeef)

	codec, err := session.NewRSACodec(getTestKey(t), time.Hour, session.WithRandom(bytes.NewReader(nonce)))
	require.NoError(t, err)

	token, err := codec.Encode(session.Claims{})
	require.NoError(t, err)

	got, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), got.Nonce)

	_, err = codec.Encode(session.Claims{})
	assert.ErrorContains(t, err, "read nonce")
}

func TestRSACodec_WireFormat(t *testing.T) {
	t.Parallel()

	key := getTestKey(t)
	clock := newTestClock()

	nonce := make([]byte, 8)
	binary.BigEndian.PutUint64(nonce, 7)
	codec, err := session.NewRSACodec(key, time.Hour, session.WithClock(clock.Now), session.WithRandom(bytes.NewReader(nonce)))
	require.NoError(t, err)

	token, err := codec.Encode(session.Claims{})
	require.NoError(t, err)

	block := recoverBlock(t, key, token)
	want := `{"nonce":7,"expires":` + "1736938800" + `}`

	assert.Len(t, block, key.Size())
	assert.Equal(t, want, string(bytes.TrimRight(block, " ")))
	assert.Equal(t, strings.Repeat(" ", key.Size()-len(want)), string(block[len(want):]))
}

func TestRSACodec_ExpiredToken(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	codec := newTestCodec(t, clock, time.Hour)

	token, err := codec.Encode(session.Claims{Provider: "google", ID: "1"})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = codec.Decode(token)
	require.NoError(t, err, "a token is valid up to and including its expiry")

	clock.Advance(time.Second)
	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, session.ErrExpiredToken)
	assert.NotErrorIs(t, err, session.ErrInvalidToken)
}

func TestRSACodec_ClaimsTooLarge(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, newTestClock(), time.Hour)

	_, err := codec.Encode(session.Claims{Provider: "google", ID: "1", Name: strings.Repeat("x", 300)})
	assert.ErrorIs(t, err, session.ErrConfiguration)
}

func TestRSACodec_InvalidTokens(t *testing.T) {
	t.Parallel()

	key := getTestKey(t)
	clock := newTestClock()
	codec := newTestCodec(t, clock, time.Hour)

	valid, err := codec.Encode(session.Claims{Provider: "google", ID: "1"})
	require.NoError(t, err)

	flipped := []byte(valid)
	if flipped[10] == 'A' {
		flipped[10] = 'B'
	} else {
		flipped[10] = 'A'
	}

	otherKey, err := session.GenerateKey(2048)
	require.NoError(t, err)
	other, err := session.NewRSACodec(otherKey, time.Hour, session.WithClock(clock.Now))
	require.NoError(t, err)
	foreign, err := other.Encode(session.Claims{Provider: "google", ID: "1"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "not base64", token: "!!!not-base64!!!"},
		{name: "too short", token: valid[:session.PrefixLength]},
		{name: "too long", token: valid + "AAAA"},
		{name: "single character changed", token: string(flipped)},
		{name: "signed by another key", token: foreign},
		{name: "exceeds modulus", token: base64.RawURLEncoding.EncodeToString(bytes.Repeat([]byte{0xff}, key.Size()))},
		{name: "all zero", token: base64.RawURLEncoding.EncodeToString(make([]byte, key.Size()))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := codec.Decode(tt.token)
			assert.ErrorIs(t, err, session.ErrInvalidToken)
		})
	}
}

func TestRSACodec_ToleratesPadding(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, newTestClock(), time.Hour)

	token, err := codec.Encode(session.Claims{})
	require.NoError(t, err)

	_, err = codec.Decode(token + "==")
	assert.NoError(t, err)
}

func TestNewRSACodec_Configuration(t *testing.T) {
	t.Parallel()

	_, err := session.NewRSACodec(nil, time.Hour)
	assert.ErrorIs(t, err, session.ErrConfiguration)

	_, err = session.NewRSACodec(getTestKey(t), 0)
	assert.ErrorIs(t, err, session.ErrConfiguration)

	codec, err := session.NewRSACodec(getTestKey(t), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, codec.Timeout())

	// A 1029 bit modulus leaves the top byte of every padded block above N.
	partial := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: new(big.Int).Lsh(big.NewInt(1), 1028), E: 65537},
		D:         big.NewInt(3),
	}
	_, err = session.NewRSACodec(partial, time.Hour)
	assert.ErrorIs(t, err, session.ErrConfiguration)
}

func TestAuthFlags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, session.AuthFlags(1), session.AuthAdmin)
	assert.Equal(t, session.AuthFlags(2), session.AuthMod)

	both := session.AuthAdmin | session.AuthMod
	assert.True(t, both.Has(session.AuthAdmin))
	assert.True(t, both.Has(session.AuthMod))
	assert.False(t, session.AuthMod.Has(session.AuthAdmin))

	assert.Equal(t, "admin|mod", both.String())
	assert.Equal(t, "", session.AuthFlags(0).String())
	assert.Equal(t, "mod|0x8", (session.AuthMod | 8).String())
}
