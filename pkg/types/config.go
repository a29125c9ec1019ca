package types

import (
	"errors"
	"fmt"
	"regexp"
)

// Config holds backend selection and parameters for Backend.Attach.
type Config struct {
	Backend string   `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir string   `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	Tables  []string `json:"tables,omitempty" yaml:"tables,omitempty" mapstructure:"tables"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrTableNameBad   = errors.New("table names must match [a-z0-9_]+")
	ErrTableDuplicate = errors.New("duplicate table name")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

var tableNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure, wrapped with the offending value where there
// is one.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return fmt.Errorf("%w: %q", ErrBackendUnknown, c.Backend)
	}
	seen := make(map[string]bool, len(c.Tables))
	for _, name := range c.Tables {
		if !tableNamePattern.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrTableNameBad, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: %q", ErrTableDuplicate, name)
		}
		seen[name] = true
	}
	return nil
}

// TableNames returns the configured tables, falling back to
// DefaultTableNames when none are listed. The result is a fresh slice.
func (c Config) TableNames() []string {
	src := c.Tables
	if len(src) == 0 {
		src = DefaultTableNames
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
