package http

import "errors"

// ErrUnauthenticated is returned when a route needs a signed-in session.
var ErrUnauthenticated = errors.New("authentication required")

// ErrForbidden is returned when a session may not touch a key.
var ErrForbidden = errors.New("forbidden")
