package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/tablesync/internal/logging"
	"github.com/mesh-intelligence/tablesync/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envFileName    = ".env"
	envPrefix      = "TABLESYNC"
)

// settings mirrors config.yaml.
type settings struct {
	Backend string         `mapstructure:"backend" yaml:"backend"`
	DataDir string         `mapstructure:"data_dir" yaml:"data_dir,omitempty"`
	Tables  []string       `mapstructure:"tables" yaml:"tables,omitempty"`
	Log     logging.Config `mapstructure:"log" yaml:"log"`
}

// envKeys may be overridden by TABLESYNC_<KEY> variables. data_dir is left
// out; TABLESYNC_DATA_DIR is handled by the paths package with its own
// precedence.
var envKeys = []string{"backend", "tables", "log.level", "log.format"}

func defaultSettings() settings {
	return settings{
		Backend: types.BackendSQLite,
		Tables:  append([]string(nil), types.DefaultTableNames...),
		Log: logging.Config{
			Level:  logging.DefaultLevel,
			Format: logging.DefaultFormat,
		},
	}
}

// loadSettings reads config.yaml from configDir. A .env file beside it is
// loaded first without overriding variables already set in the process. A
// missing config.yaml or .env is not an error; a malformed .env is.
func loadSettings(configDir string) (settings, error) {
	envPath := filepath.Join(configDir, envFileName)
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return settings{}, fmt.Errorf("load %s: %w", envPath, err)
	}

	def := defaultSettings()
	v := viper.New()
	v.SetDefault("backend", def.Backend)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return settings{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("decode config: %w", err)
	}
	return s, nil
}
