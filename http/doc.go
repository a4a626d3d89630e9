// Package http exposes sessions and storage grants over HTTP.
//
// # Sessions
//
// The session token travels in a cookie (default name "tollgate.sid").
// Requests to session-aware routes must also carry
//
//	Authorization: Token <first 32 or more characters of the cookie>
//
// A missing or mismatched header, or an invalid or expired token, makes the
// request anonymous. Sessions that are inside the registry's grace period
// are rotated transparently and the new cookie is set on the response.
//
// # Routes
//
//	POST /auth/session            mint or reuse a session, set the cookie
//	POST /auth/login/{provider}   bind the session to an identity (needs IdentityResolver)
//	PUT  /auth/logout             clear the cookie
//	GET  /auth/user               authenticated identity, or null
//	GET  /auth/verify             forward-auth check of a presigned URL (needs Verifier)
//	POST /uploads                 signed POST policy for a browser upload
//	GET  /downloads/*             presigned GET URL
//
// Upload and download grants require an authenticated session. Downloads
// from another user's upload directory need admin or moderator rights. Grants made
// with temporary credentials carry the session token as
// x-amz-security-token / X-Amz-Security-Token.
//
// # Usage
//
//	creds, _ := keybackend.NewCredentialSource(ctx, cfg.Auth.Credentials, cfg.Storage.Region)
//	handler, err := http.NewHandler(&http.HandlerConfig{
//	    Grants:      cfg.Storage,
//	    Cookie:      cookieCfg,
//	    Credentials: creds,
//	    Registry:    registry,
//	})
//	if err != nil {
//	    return err
//	}
//	srv := &stdhttp.Server{Addr: ":5780", Handler: handler.Router()}
//
// Errors are returned as JSON: {"error": "<code>", "message": "<text>"}.
package http
