package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sagarc03/tollgate"
)

// IdentityHeaderConfig configures HeaderIdentity.
type IdentityHeaderConfig struct {
	UserHeader string `mapstructure:"user_header"`
	NameHeader string `mapstructure:"name_header"`
}

// HeaderIdentity trusts the identity an authenticating proxy puts in request
// headers, e.g. X-Forwarded-User from oauth2-proxy. Only deploy it behind a
// proxy that strips these headers from client requests.
type HeaderIdentity struct {
	userHeader string
	nameHeader string
}

// NewHeaderIdentity returns a resolver reading cfg's headers, or nil when
// no user header is configured.
func NewHeaderIdentity(cfg IdentityHeaderConfig) *HeaderIdentity {
	if cfg.UserHeader == "" {
		return nil
	}
	return &HeaderIdentity{userHeader: cfg.UserHeader, nameHeader: cfg.NameHeader}
}

// Resolve returns the identity in the configured headers. The name falls
// back to the user id.
func (h *HeaderIdentity) Resolve(_ context.Context, provider string, r *http.Request) (Identity, error) {
	user := strings.TrimSpace(r.Header.Get(h.userHeader))
	if user == "" {
		return Identity{}, fmt.Errorf("%s login: missing %s header: %w", provider, h.userHeader, tollgate.ErrUnauthorized)
	}

	name := user
	if h.nameHeader != "" {
		if v := strings.TrimSpace(r.Header.Get(h.nameHeader)); v != "" {
			name = v
		}
	}

	return Identity{ExternalID: user, Name: name}, nil
}
