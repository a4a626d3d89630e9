package session

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"
)

// PrefixLength is the number of leading token characters used as the
// registry key and matched against the Authorization header.
const PrefixLength = 32

// DefaultTimeout is the session lifetime used when none is configured.
const DefaultTimeout = 30 * 24 * time.Hour

// Codec turns claims into a token and back.
type Codec interface {
	// Encode stamps c with a fresh nonce and expiry and returns the token.
	Encode(c Claims) (string, error)
	// Decode recovers the claims from a token.
	Decode(token string) (Claims, error)
}

// RSACodec encodes claims with textbook RSA. It is safe for concurrent use.
type RSACodec struct {
	key     *rsa.PrivateKey
	timeout time.Duration
	now     func() time.Time
	random  io.Reader
}

// CodecOption configures an RSACodec.
type CodecOption func(*RSACodec)

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) CodecOption {
	return func(c *RSACodec) {
		c.now = now
	}
}

// WithRandom sets the nonce source. Defaults to crypto/rand.
func WithRandom(r io.Reader) CodecOption {
	return func(c *RSACodec) {
		c.random = r
	}
}

// NewRSACodec returns a codec issuing tokens valid for timeout. The key's
// byte size bounds the serialized claims.
func NewRSACodec(key *rsa.PrivateKey, timeout time.Duration, opts ...CodecOption) (*RSACodec, error) {
	if key == nil || key.N == nil || key.D == nil {
		return nil, fmt.Errorf("new rsa codec: missing private key: %w", ErrConfiguration)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("new rsa codec: timeout must be positive: %w", ErrConfiguration)
	}
	if bits := key.N.BitLen(); bits%8 != 0 {
		return nil, fmt.Errorf("new rsa codec: %d bit modulus is not a whole number of bytes: %w", bits, ErrConfiguration)
	}

	c := &RSACodec{
		key:     key,
		timeout: timeout,
		now:     time.Now,
		random:  rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Timeout returns how long issued tokens stay valid.
func (c *RSACodec) Timeout() time.Duration {
	return c.timeout
}

// Encode sets c.Nonce and c.ExpiresAt, pads the JSON form with spaces to
// the key size and returns base64url(m^d mod n) without padding.
func (c *RSACodec) Encode(claims Claims) (string, error) {
	var nonce [8]byte
	if _, err := io.ReadFull(c.random, nonce[:]); err != nil {
		return "", fmt.Errorf("encode session: read nonce: %w", err)
	}

	claims.Nonce = binary.BigEndian.Uint64(nonce[:])
	claims.ExpiresAt = c.now().Add(c.timeout).UTC().Truncate(time.Second)

	data, err := marshalClaims(claims)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	size := c.key.Size()
	if len(data) > size {
		return "", fmt.Errorf("encode session: claims are %d bytes, key holds %d: %w", len(data), size, ErrConfiguration)
	}

	block := make([]byte, size)
	copy(block, data)
	for i := len(data); i < size; i++ {
		block[i] = ' '
	}

	m := new(big.Int).SetBytes(block)
	if m.Cmp(c.key.N) >= 0 {
		return "", fmt.Errorf("encode session: message exceeds modulus: %w", ErrConfiguration)
	}

	sig := new(big.Int).Exp(m, c.key.D, c.key.N)

	return base64.RawURLEncoding.EncodeToString(sig.FillBytes(make([]byte, size))), nil
}

// Decode recovers and validates the claims in token. Trailing '=' padding
// is tolerated.
func (c *RSACodec) Decode(token string) (Claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return Claims{}, fmt.Errorf("decode session: %w: %w", ErrInvalidToken, err)
	}

	size := c.key.Size()
	if len(raw) != size {
		return Claims{}, fmt.Errorf("decode session: token is %d bytes, want %d: %w", len(raw), size, ErrInvalidToken)
	}

	sig := new(big.Int).SetBytes(raw)
	if sig.Cmp(c.key.N) >= 0 {
		return Claims{}, fmt.Errorf("decode session: value exceeds modulus: %w", ErrInvalidToken)
	}

	e := big.NewInt(int64(c.key.E))
	block := new(big.Int).Exp(sig, e, c.key.N).FillBytes(make([]byte, size))

	claims, err := unmarshalClaims(bytes.TrimRight(block, " "))
	if err != nil {
		return Claims{}, fmt.Errorf("decode session: %w: %w", ErrInvalidToken, err)
	}

	if claims.ExpiresAt.Before(c.now()) {
		return Claims{}, fmt.Errorf("decode session: expired at %s: %w", claims.ExpiresAt.Format(time.RFC3339), ErrExpiredToken)
	}

	return claims, nil
}
