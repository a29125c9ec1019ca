// Package paths resolves where tablesync keeps its configuration and data.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user directories.
const AppName = "tablesync"

// Directory names used when nothing else is configured.
const (
	DefaultConfigDirName = ".tablesync"
	DefaultDataDirName   = ".tablesync-db"
)

// Environment overrides.
const (
	EnvConfigDir = "TABLESYNC_CONFIG_DIR"
	EnvDataDir   = "TABLESYNC_DATA_DIR"
)

// Resolver answers directory questions against a pluggable environment.
// The zero value uses the process environment.
type Resolver struct {
	Getenv        func(string) string
	Getwd         func() (string, error)
	UserHomeDir   func() (string, error)
	UserConfigDir func() (string, error)
	GOOS          string
}

func (r Resolver) getenv(key string) string {
	if r.Getenv != nil {
		return r.Getenv(key)
	}
	return os.Getenv(key)
}

func (r Resolver) getwd() (string, error) {
	if r.Getwd != nil {
		return r.Getwd()
	}
	return os.Getwd()
}

func (r Resolver) homeDir() (string, error) {
	if r.UserHomeDir != nil {
		return r.UserHomeDir()
	}
	return os.UserHomeDir()
}

func (r Resolver) userConfigDir() (string, error) {
	if r.UserConfigDir != nil {
		return r.UserConfigDir()
	}
	return os.UserConfigDir()
}

func (r Resolver) goos() string {
	if r.GOOS != "" {
		return r.GOOS
	}
	return runtime.GOOS
}

// abs makes p absolute relative to the resolver's working directory.
func (r Resolver) abs(p string) (string, error) {
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	wd, err := r.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

// DefaultConfigDir returns the per-user configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/tablesync (fallback ~/.config/tablesync)
// Others:  os.UserConfigDir()/tablesync
func (r Resolver) DefaultConfigDir() (string, error) {
	if r.goos() == "linux" {
		if xdg := r.getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := r.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppName), nil
	}
	dir, err := r.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// ConfigDir resolves the configuration directory: flag, then
// TABLESYNC_CONFIG_DIR, then DefaultConfigDir.
func (r Resolver) ConfigDir(flag string) (string, error) {
	if flag != "" {
		return r.abs(flag)
	}
	if env := r.getenv(EnvConfigDir); env != "" {
		return r.abs(env)
	}
	return r.DefaultConfigDir()
}

// DataDir resolves the data directory: flag, then the configured value,
// then TABLESYNC_DATA_DIR, then .tablesync-db under the working directory.
// A relative configured value is taken relative to configDir.
func (r Resolver) DataDir(flag, configured, configDir string) (string, error) {
	if flag != "" {
		return r.abs(flag)
	}
	if configured != "" {
		if filepath.IsAbs(configured) || configDir == "" {
			return r.abs(configured)
		}
		return filepath.Join(configDir, configured), nil
	}
	if env := r.getenv(EnvDataDir); env != "" {
		return r.abs(env)
	}
	return r.abs(DefaultDataDirName)
}

// ResolveConfigDir resolves the configuration directory against the process
// environment.
func ResolveConfigDir(flag string) (string, error) {
	return Resolver{}.ConfigDir(flag)
}

// ResolveDataDir resolves the data directory against the process
// environment.
func ResolveDataDir(flag, configured, configDir string) (string, error) {
	return Resolver{}.DataDir(flag, configured, configDir)
}
