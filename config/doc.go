// Package config provides configuration loading and validation for tollgate.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (TOLLGATE_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with TOLLGATE_ prefix:
//   - server.port → TOLLGATE_SERVER_PORT
//   - session.key_file → TOLLGATE_SESSION_KEY_FILE
//   - auth.credentials.secret_key → TOLLGATE_AUTH_CREDENTIALS_SECRET_KEY
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: host, port and shutdown timeout
//   - Session: RSA key file, token timeout, rotation grace period, accepted
//     identity providers and cookie settings
//   - Storage: bucket, endpoint, region and expiry of issued grants
//   - Auth: credentials grants are signed with, and keys for /auth/verify
//   - Database: optional profile store (sqlite or postgres)
//   - CORS: cross-origin resource sharing settings
//   - Log: level and environment (dev or prod)
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Session timeout must be at least a minute and not shorter than the grace period
//   - Grant expiry must be between 1s and 168h
//   - Log level must be debug, info, warn, or error
package config
