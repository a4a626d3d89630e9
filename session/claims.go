package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthFlags is a permission bit set.
type AuthFlags uint64

const (
	AuthAdmin AuthFlags = 1 << iota
	AuthMod
)

// Has reports whether every bit of flag is set.
func (a AuthFlags) Has(flag AuthFlags) bool {
	return a&flag == flag
}

func (a AuthFlags) String() string {
	var names []string
	if a.Has(AuthAdmin) {
		names = append(names, "admin")
	}
	if a.Has(AuthMod) {
		names = append(names, "mod")
	}
	if rest := a &^ (AuthAdmin | AuthMod); rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint64(rest)))
	}
	return strings.Join(names, "|")
}

// Claims is the payload a token carries. ExpiresAt has second precision on
// the wire.
type Claims struct {
	Nonce     uint64
	ExpiresAt time.Time
	Provider  string
	ID        string
	Name      string
	Auth      AuthFlags
}

// Authenticated reports whether the claims name an identity.
func (c Claims) Authenticated() bool {
	return c.Provider != "" && c.ID != ""
}

type wireClaims struct {
	Nonce    *uint64   `json:"nonce"`
	Expires  *int64    `json:"expires"`
	Provider string    `json:"provider,omitempty"`
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name,omitempty"`
	Auth     AuthFlags `json:"auth,omitempty"`
}

// marshalClaims renders the compact form. The first byte is always '{'.
func marshalClaims(c Claims) ([]byte, error) {
	expires := c.ExpiresAt.Unix()
	w := wireClaims{
		Nonce:    &c.Nonce,
		Expires:  &expires,
		Provider: c.Provider,
		ID:       c.ID,
		Name:     c.Name,
		Auth:     c.Auth,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, fmt.Errorf("marshal claims: %w", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// unmarshalClaims is strict: unknown members, missing nonce or expires and
// trailing data are all rejected.
func unmarshalClaims(data []byte) (Claims, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wireClaims
	if err := dec.Decode(&w); err != nil {
		return Claims{}, fmt.Errorf("unmarshal claims: %w", err)
	}
	if rest := bytes.TrimSpace(data[dec.InputOffset():]); len(rest) > 0 {
		return Claims{}, errors.New("unmarshal claims: trailing data")
	}
	if w.Nonce == nil || w.Expires == nil {
		return Claims{}, errors.New("unmarshal claims: nonce and expires are required")
	}

	return Claims{
		Nonce:     *w.Nonce,
		ExpiresAt: time.Unix(*w.Expires, 0).UTC(),
		Provider:  w.Provider,
		ID:        w.ID,
		Name:      w.Name,
		Auth:      w.Auth,
	}, nil
}
