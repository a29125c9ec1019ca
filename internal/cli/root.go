// Package cli implements the tablesync command-line interface. Every data
// command mounts a table provider over the SQLite document store, resolves
// it from scope and drives it through its guarded actions.
package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tablesync/internal/logging"
	"github.com/mesh-intelligence/tablesync/internal/paths"
	"github.com/mesh-intelligence/tablesync/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app carries flag values and the state PersistentPreRunE derives from
// them. Each root command owns one, so tests can run commands side by side.
type app struct {
	flagConfigDir string
	flagDataDir   string
	flagLogLevel  string
	jsonMode      bool

	configDir string
	settings  settings
	config    types.Config
	logger    *zap.Logger
}

// NewRootCmd creates the top-level "tablesync" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "tablesync",
		Short: "Keep local table views in sync with a document store",
		Long: "tablesync drives create, update, remove, find and list operations against\n" +
			"named tables and reconciles every result into a local ordered index.",
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagConfigDir, "config-dir", "", "configuration directory (env "+paths.EnvConfigDir+")")
	pf.StringVar(&a.flagDataDir, "data-dir", "", "data directory (env "+paths.EnvDataDir+", default ./"+paths.DefaultDataDirName+")")
	pf.StringVar(&a.flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.jsonMode, "json", false, "compact JSON output")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newFindCmd(a),
		newCreateCmd(a),
		newUpdateCmd(a),
		newRemoveCmd(a),
		newListCmd(a),
		newPullCmd(a),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		return exitCode(err)
	}
	return exitSuccess
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(a.flagConfigDir)
	if err != nil {
		return systemError{err}
	}
	s, err := loadSettings(configDir)
	if err != nil {
		return err
	}
	logCfg := s.Log
	if a.flagLogLevel != "" {
		logCfg.Level = a.flagLogLevel
	}

	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	dataDir, err := paths.ResolveDataDir(a.flagDataDir, s.DataDir, configDir)
	if err != nil {
		return systemError{err}
	}

	a.configDir = configDir
	a.settings = s
	a.logger = logger.With(zap.String("command", cmd.Name()))
	a.config = types.Config{
		Backend: s.Backend,
		DataDir: dataDir,
		Tables:  s.Tables,
	}
	a.logger.Debug("configuration resolved",
		zap.String("config_dir", configDir),
		zap.String("data_dir", dataDir))
	return nil
}

// systemError marks failures of the environment rather than of the request.
type systemError struct {
	err error
}

func (e systemError) Error() string { return e.err.Error() }
func (e systemError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var sys systemError
	if errors.As(err, &sys) {
		return exitSysError
	}
	return exitUserError
}
