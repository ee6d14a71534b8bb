// Package cli implements the tickrunner command line.
package cli

import (
	"github.com/Swind/go-tick-runner/config"
	"github.com/Swind/go-tick-runner/core"
	"github.com/Swind/go-tick-runner/logging"
	"github.com/spf13/cobra"
)

// app holds what PersistentPreRunE prepared for the subcommands.
type app struct {
	cfg    *config.Config
	logger core.Logger
	sync   func()
}

// NewRootCmd creates the root cobra command for the tickrunner CLI.
func NewRootCmd() *cobra.Command {
	var (
		flagConfig     string
		flagDebug      bool
		flagLogLevel   string
		flagLogBackend string
	)
	a := &app{sync: func() {}}

	root := &cobra.Command{
		Use:   "tickrunner",
		Short: "Run and check tick-driven task plans",
		Long: `tickrunner drives declarative task plans through a cooperative,
tick-driven dispatcher. Plans are YAML trees of tasks, sequences and
parallel groups.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if flagConfig != "" {
				loaded, err := config.Load(flagConfig)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if flagLogLevel != "" {
				cfg.Log.Level = flagLogLevel
			}
			if flagDebug {
				cfg.Log.Level = "debug"
			}
			if flagLogBackend != "" {
				cfg.Log.Backend = flagLogBackend
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			opts := cfg.LoggingOptions()
			opts.Writer = cmd.ErrOrStderr()
			logger, sync, err := logging.New(opts)
			if err != nil {
				return err
			}
			a.cfg, a.logger, a.sync = cfg, logger, sync
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.sync()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (.yaml, .yml or .toml)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogBackend, "log-backend", "", "Log backend (zap, slog, std, none)")

	root.AddCommand(
		newRunCmd(a),
		newValidateCmd(a),
	)

	return root
}
