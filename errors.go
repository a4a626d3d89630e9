package tollgate

import "errors"

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMissingRequiredField is returned when a POST policy is signed without a key field
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrUnsupportedMethod is returned when a presigned URL is built for an unknown HTTP method
	ErrUnsupportedMethod = errors.New("unsupported method")
	// ErrAlreadySigned is returned when a builder is mutated or signed after Sign succeeded
	ErrAlreadySigned = errors.New("already signed")
)
