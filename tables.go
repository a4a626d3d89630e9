package tollgate

import (
	"errors"
	"fmt"
	"regexp"
)

// Tables holds configurable table names for the profile store.
// This allows several deployments to share one database.
type Tables struct {
	Profiles string `mapstructure:"profiles"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	if t.Profiles == "" {
		return errors.New("validate tables: profiles table name cannot be empty")
	}

	if !IsValidTableName(t.Profiles) {
		return fmt.Errorf("validate tables: invalid profiles table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", t.Profiles)
	}

	return nil
}
