package keybackend

import (
	"errors"
	"fmt"

	"github.com/sagarc03/tollgate"
)

var (
	// ErrKeyNotFound is returned when the access key does not exist in the store.
	ErrKeyNotFound = fmt.Errorf("access key not found: %w", tollgate.ErrUnauthorized)
	// ErrNoCredentials is returned when a credential source yields no usable key pair.
	ErrNoCredentials = errors.New("no signing credentials")
)
