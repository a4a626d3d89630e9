package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/sagarc03/tollgate"
	"github.com/sagarc03/tollgate/keybackend"
	"github.com/sagarc03/tollgate/session"
)

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// GrantConfig describes the bucket grants are issued for.
type GrantConfig struct {
	Bucket          string        `mapstructure:"bucket" validate:"required"`
	Endpoint        string        `mapstructure:"endpoint" validate:"required,url"`
	Region          string        `mapstructure:"region" validate:"required"`
	Service         string        `mapstructure:"service" validate:"required"`
	UploadPrefix    string        `mapstructure:"upload_prefix"`
	UploadExpires   time.Duration `mapstructure:"upload_expires" validate:"min=1s,max=168h"`
	DownloadExpires time.Duration `mapstructure:"download_expires" validate:"min=1s,max=168h"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size" validate:"min=0"`
}

// Identity is a user vouched for by an identity provider.
type Identity struct {
	ExternalID string
	Name       string
}

// IdentityResolver turns a provider callback request into an identity.
// Provider redirect flows live behind this interface.
type IdentityResolver interface {
	Resolve(ctx context.Context, provider string, r *http.Request) (Identity, error)
}

type HandlerConfig struct {
	Grants      GrantConfig
	Cookie      CookieConfig
	CORS        CORSConfig
	Credentials keybackend.CredentialSource
	Registry    *session.Registry

	// Identity enables POST /auth/login/{provider} when set.
	Identity IdentityResolver

	// Verifier enables GET /auth/verify when set.
	Verifier *tollgate.SignatureVerifier

	Logger *slog.Logger
	Now    func() time.Time
}

// Handler serves the session and grant endpoints.
type Handler struct {
	config   HandlerConfig
	endpoint *url.URL
	sessions *sessionResolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a new Handler with the given configuration.
func NewHandler(config *HandlerConfig) (*Handler, error) {
	if config.Registry == nil {
		return nil, errors.New("new handler: registry is required")
	}
	if config.Credentials == nil {
		return nil, errors.New("new handler: credential source is required")
	}

	endpoint, err := url.Parse(config.Grants.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("new handler: invalid endpoint %q", config.Grants.Endpoint)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Handler{
		config:   *config,
		endpoint: endpoint,
		sessions: &sessionResolver{registry: config.Registry, cookies: config.Cookie, logger: logger},
		logger:   logger,
		now:      now,
	}, nil
}

// Router returns an http.Handler with all routes configured.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	// Login entry points read the cookie without the Authorization check.
	r.Post("/auth/session", h.handleCreateSession)
	if h.config.Identity != nil {
		r.Post("/auth/login/{provider}", h.handleLogin)
	}
	r.Put("/auth/logout", h.handleLogout)
	if h.config.Verifier != nil {
		r.Get("/auth/verify", h.handleVerify)
	}

	r.Group(func(r chi.Router) {
		r.Use(h.sessions.middleware)
		r.Get("/auth/user", h.handleUser)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession)
			r.Post("/uploads", h.handleUpload)
			r.Get("/downloads/*", h.handleDownload)
		})
	})

	return r
}

// UserResponse is the identity view of an authenticated session.
type UserResponse struct {
	Provider  string           `json:"provider"`
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Admin     bool             `json:"admin"`
	Moderator bool             `json:"moderator"`
	Expires   time.Time        `json:"expires"`
	Profile   *session.Profile `json:"profile,omitempty"`
}

func newUserResponse(s *session.Session) UserResponse {
	return UserResponse{
		Provider:  s.Claims.Provider,
		ID:        s.Claims.ID,
		Name:      s.Claims.Name,
		Admin:     s.Claims.Auth.Has(session.AuthAdmin),
		Moderator: s.Claims.Auth.Has(session.AuthMod),
		Expires:   s.Claims.ExpiresAt,
		Profile:   s.Profile,
	}
}

// SessionResponse describes the session behind the cookie just set.
type SessionResponse struct {
	Authenticated bool      `json:"authenticated"`
	Expires       time.Time `json:"expires"`
}

func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFromContext(r.Context())
	if !ok || !s.Authenticated() {
		_ = WriteJSON(w, http.StatusOK, nil)
		return
	}

	_ = WriteJSON(w, http.StatusOK, newUserResponse(s))
}

func (h *Handler) currentOrNewSession(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	if s := h.sessions.resolve(w, r, true); s != nil {
		return s, nil
	}
	return h.config.Registry.Create(r.Context())
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.currentOrNewSession(w, r)
	if err != nil {
		HandleError(w, err)
		return
	}

	SetSessionCookie(w, h.config.Cookie, s)
	_ = WriteJSON(w, http.StatusOK, SessionResponse{Authenticated: s.Authenticated(), Expires: s.Claims.ExpiresAt})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if !h.config.Registry.Supports(provider) {
		HandleError(w, fmt.Errorf("login %q: %w", provider, session.ErrUnsupportedProvider))
		return
	}

	identity, err := h.config.Identity.Resolve(r.Context(), provider, r)
	if err != nil {
		if errors.Is(err, session.ErrUnsupportedProvider) {
			HandleError(w, err)
			return
		}
		HandleError(w, fmt.Errorf("resolve identity: %w: %w", err, tollgate.ErrUnauthorized))
		return
	}

	// Authenticate issues a fresh session when current is nil.
	current := h.sessions.resolve(w, r, true)

	s, err := h.config.Registry.Authenticate(r.Context(), current, provider, identity.ExternalID, identity.Name)
	if err != nil {
		HandleError(w, err)
		return
	}

	SetSessionCookie(w, h.config.Cookie, s)
	_ = WriteJSON(w, http.StatusOK, newUserResponse(s))
}

func (h *Handler) handleLogout(w http.ResponseWriter, _ *http.Request) {
	ClearSessionCookie(w, h.config.Cookie)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) scope(expires time.Duration) tollgate.Scope {
	return tollgate.Scope{
		Timestamp: h.now().UTC(),
		Expires:   expires,
		Service:   h.config.Grants.Service,
		Region:    h.config.Grants.Region,
	}
}

// UploadRequest asks for a POST policy. An empty Key lets the client pick
// the file name at upload time.
type UploadRequest struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
}

// UploadResponse is a browser-form upload grant.
type UploadResponse struct {
	URL     string            `json:"url"`
	Fields  map[string]string `json:"fields"`
	Expires time.Time         `json:"expires"`
}

// uploadKey places uploads under prefix/provider/id so users cannot write
// into each other's space.
func (h *Handler) uploadKey(s *session.Session, requested string) string {
	dir := path.Join(h.config.Grants.UploadPrefix, s.Claims.Provider, s.Claims.ID)
	if requested == "" {
		return dir + "/" + tollgate.FilenamePlaceholder
	}
	return dir + "/" + requested
}

// mayRead reports whether s may download key. Keys in the upload space
// belong to the user whose directory holds them; admins and moderators
// read everything. Keys outside the upload space are shared.
func (h *Handler) mayRead(s *session.Session, key string) bool {
	if s.Claims.Auth.Has(session.AuthAdmin) || s.Claims.Auth.Has(session.AuthMod) {
		return true
	}

	rest := key
	if prefix := h.config.Grants.UploadPrefix; prefix != "" {
		var ok bool
		if rest, ok = strings.CutPrefix(key, strings.Trim(prefix, "/")+"/"); !ok {
			return true
		}
	} else if provider, _, _ := strings.Cut(key, "/"); !h.config.Registry.Supports(provider) {
		return true
	}

	return strings.HasPrefix(rest, s.Claims.Provider+"/"+s.Claims.ID+"/")
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	s, _ := SessionFromContext(r.Context())

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		HandleError(w, fmt.Errorf("decode upload request: %w: %w", err, tollgate.ErrInvalidInput))
		return
	}

	// A bare placeholder asks for the same key as an empty one.
	if req.Key == tollgate.FilenamePlaceholder {
		req.Key = ""
	}
	if req.Key != "" && !tollgate.IsValidKey(req.Key) {
		HandleError(w, fmt.Errorf("upload key %q: %w", req.Key, tollgate.ErrInvalidInput))
		return
	}

	creds, err := h.config.Credentials.Credentials(r.Context())
	if err != nil {
		HandleError(w, err)
		return
	}

	scope := h.scope(h.config.Grants.UploadExpires)
	policy := tollgate.NewPostPolicy(h.config.Grants.Bucket, h.uploadKey(s, req.Key), scope)

	if req.ContentType != "" {
		if err := policy.Insert("Content-Type", req.ContentType); err != nil {
			HandleError(w, err)
			return
		}
	}

	if creds.SessionToken != "" {
		if err := policy.Insert("x-amz-security-token", creds.SessionToken); err != nil {
			HandleError(w, err)
			return
		}
	}

	if h.config.Grants.MaxUploadSize > 0 {
		if err := policy.SetLengthRange(0, h.config.Grants.MaxUploadSize); err != nil {
			HandleError(w, err)
			return
		}
	}

	fields, err := policy.Sign(creds.AccessKeyID, creds.SecretKey)
	if err != nil {
		HandleError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "upload granted", "id", s.Claims.ID, "key", fields["key"])

	_ = WriteJSON(w, http.StatusOK, UploadResponse{
		URL:     h.endpoint.String(),
		Fields:  fields,
		Expires: scope.Timestamp.Add(scope.Expires),
	})
}

// DownloadResponse is a presigned GET URL.
type DownloadResponse struct {
	URL     string    `json:"url"`
	Expires time.Time `json:"expires"`
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if !tollgate.IsValidKey(key) {
		HandleError(w, fmt.Errorf("download key %q: %w", key, tollgate.ErrInvalidInput))
		return
	}

	s, _ := SessionFromContext(r.Context())
	if !h.mayRead(s, key) {
		HandleError(w, fmt.Errorf("download key %q: %w", key, ErrForbidden))
		return
	}

	creds, err := h.config.Credentials.Credentials(r.Context())
	if err != nil {
		HandleError(w, err)
		return
	}

	scope := h.scope(h.config.Grants.DownloadExpires)
	presigned, err := tollgate.NewPresignedURL(h.endpoint.JoinPath(key), http.MethodGet, scope)
	if err != nil {
		HandleError(w, err)
		return
	}

	if creds.SessionToken != "" {
		if err := presigned.Set(tollgate.QuerySecurityToken, creds.SessionToken); err != nil {
			HandleError(w, err)
			return
		}
	}

	signed, err := presigned.Sign(creds.AccessKeyID, creds.SecretKey)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, DownloadResponse{
		URL:     signed,
		Expires: scope.Timestamp.Add(scope.Expires),
	})
}

// handleVerify checks the presigned URL a reverse proxy forwards in the
// X-Forwarded-Method, X-Forwarded-Host and X-Forwarded-Uri headers.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	method := r.Header.Get("X-Forwarded-Method")
	if method == "" {
		method = http.MethodGet
	}

	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}

	target, err := url.ParseRequestURI(r.Header.Get("X-Forwarded-Uri"))
	if err != nil {
		HandleError(w, fmt.Errorf("forwarded uri: %w: %w", err, tollgate.ErrInvalidInput))
		return
	}

	if err := verifyRequest(h.config.Verifier, method, host, target, r.Header); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
