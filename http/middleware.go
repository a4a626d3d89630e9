package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sagarc03/tollgate"
	"github.com/sagarc03/tollgate/session"
)

// DefaultCookieName is the session cookie name used when none is configured.
const DefaultCookieName = "tollgate.sid"

// CookieConfig controls the session cookie. The cookie is readable by
// scripts because clients echo its prefix in the Authorization header.
type CookieConfig struct {
	Name   string `mapstructure:"cookie_name"`
	Domain string `mapstructure:"cookie_domain"`
	Secure bool   `mapstructure:"secure"`
}

func (c CookieConfig) name() string {
	if c.Name == "" {
		return DefaultCookieName
	}
	return c.Name
}

// SetSessionCookie stores the session token in the response.
func SetSessionCookie(w http.ResponseWriter, cfg CookieConfig, s *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.name(),
		Value:    s.Token,
		Path:     "/",
		Domain:   cfg.Domain,
		Expires:  s.Claims.ExpiresAt,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie replaces the session cookie with an expired one.
func ClearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.name(),
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		Expires:  time.Unix(1, 0),
		MaxAge:   -1,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type sessionKey struct{}

// SessionFromContext returns the session resolved by SessionMiddleware.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*session.Session)
	return s, ok && s != nil
}

func withSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// authorizationMatches reports whether header is "Token <p>" where p has at
// least PrefixLength characters and token starts with p.
func authorizationMatches(header, token string) bool {
	prefix, ok := strings.CutPrefix(header, "Token ")
	if !ok || len(prefix) < session.PrefixLength {
		return false
	}
	return strings.HasPrefix(token, prefix)
}

type sessionResolver struct {
	registry *session.Registry
	cookies  CookieConfig
	logger   *slog.Logger
}

// resolve returns the request's session or nil. Sessions inside the grace
// period are rotated and the new cookie is written to w.
func (sr *sessionResolver) resolve(w http.ResponseWriter, r *http.Request, skipAuthCheck bool) *session.Session {
	ctx := r.Context()

	c, err := r.Cookie(sr.cookies.name())
	if err != nil || c.Value == "" {
		return nil
	}
	token := c.Value

	if !skipAuthCheck && !authorizationMatches(r.Header.Get("Authorization"), token) {
		sr.logger.DebugContext(ctx, "authorization does not match session cookie")
		return nil
	}

	s, err := sr.registry.Get(ctx, token)
	if err != nil {
		sr.logger.DebugContext(ctx, "session rejected", "err", err)
		return nil
	}

	if sr.registry.Expiring(s) {
		rotated, err := sr.registry.Rotate(ctx, s)
		if err != nil {
			sr.logger.WarnContext(ctx, "session rotation failed", "prefix", s.Prefix(), "err", err)
			return s
		}
		SetSessionCookie(w, sr.cookies, rotated)
		s = rotated
	}

	return s
}

// SessionMiddleware resolves the session from the cookie and the
// Authorization header and stores it in the request context. Requests with
// a missing, mismatched, invalid or expired session continue anonymously.
func SessionMiddleware(registry *session.Registry, cookies CookieConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	sr := &sessionResolver{registry: registry, cookies: cookies, logger: logger}

	return func(next http.Handler) http.Handler {
		return sr.middleware(next)
	}
}

func (sr *sessionResolver) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s := sr.resolve(w, r, false); s != nil {
			r = r.WithContext(withSession(r.Context(), s))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession rejects requests without an authenticated session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFromContext(r.Context())
		if !ok || !s.Authenticated() {
			HandleError(w, ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// verifyRequest checks a presigned request. Go keeps Host outside the
// header map, so it is copied in before verification.
func verifyRequest(verifier *tollgate.SignatureVerifier, method, host string, u *url.URL, header http.Header) error {
	headers := header.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	headers.Set("Host", host)

	return verifier.Verify(method, u.Path, u.Query(), headers)
}

// AuthMiddleware rejects requests whose own URL is not a valid presigned
// URL. A nil verifier disables the check.
func AuthMiddleware(verifier *tollgate.SignatureVerifier) func(http.Handler) http.Handler {
	if verifier == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := verifyRequest(verifier, r.Method, r.Host, r.URL, r.Header); err != nil {
				HandleError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
