package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/tablesync/pkg/sqlite"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and storage",
		Long:  "Create the configuration directory and a default config.yaml, then attach\nthe document store once so every configured table has its JSONL file.",
		Args:  cobra.NoArgs,
		RunE:  a.runInit,
	}
}

func (a *app) runInit(cmd *cobra.Command, _ []string) error {
	if err := os.MkdirAll(a.configDir, 0o755); err != nil {
		return systemError{fmt.Errorf("create config directory: %w", err)}
	}

	s := a.settings
	if a.flagDataDir != "" {
		s.DataDir = a.config.DataDir
	}
	configPath := filepath.Join(a.configDir, configFileExt)
	written, err := writeConfigIfMissing(configPath, s)
	if err != nil {
		return systemError{fmt.Errorf("write config: %w", err)}
	}

	store := sqlite.NewBackend(a.logger)
	if err := store.Attach(a.config); err != nil {
		return systemError{fmt.Errorf("initialize storage: %w", err)}
	}
	tables := store.Tables()
	if err := store.Detach(); err != nil {
		return systemError{fmt.Errorf("finalize storage: %w", err)}
	}
	a.logger.Info("initialized",
		zap.String("config", configPath),
		zap.Bool("config_written", written),
		zap.String("data_dir", a.config.DataDir))

	if a.jsonMode {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"config_dir": a.configDir,
			"data_dir":   a.config.DataDir,
			"tables":     tables,
		}, true)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tablesync initialized\nconfig: %s\ndata:   %s\n", configPath, a.config.DataDir)
	return nil
}

// writeConfigIfMissing writes s to path unless the file exists. It reports
// whether it wrote.
func writeConfigIfMissing(path string, s settings) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	def := defaultSettings()
	if s.Backend == "" {
		s.Backend = def.Backend
	}
	if len(s.Tables) == 0 {
		s.Tables = def.Tables
	}
	if s.Log.Level == "" {
		s.Log.Level = def.Log.Level
	}
	if s.Log.Format == "" {
		s.Log.Format = def.Log.Format
	}

	data, err := yaml.Marshal(&s)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	return true, os.WriteFile(path, data, 0o644)
}
