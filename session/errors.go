package session

import "errors"

var (
	// ErrConfiguration is returned when the codec cannot represent the
	// claims, e.g. they serialize to more bytes than the key size.
	ErrConfiguration = errors.New("session configuration error")
	// ErrInvalidToken is returned when a token cannot be decoded.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrExpiredToken is returned when a token decodes but is past its expiry.
	ErrExpiredToken = errors.New("expired session token")
	// ErrUnsupportedProvider is returned when authenticating with a provider
	// the registry does not accept.
	ErrUnsupportedProvider = errors.New("unsupported identity provider")
	// ErrSessionExists is returned when a new token's prefix is already tracked.
	ErrSessionExists = errors.New("session already exists")
)
