package main

import (
	"github.com/Cyclone1070/buildforme/internal/config"
	"github.com/Cyclone1070/buildforme/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// app carries what every subcommand needs once the root has set it up.
type app struct {
	deps  Dependencies
	flags rootFlags
	cfg   *config.Config
	log   *zap.Logger
}

func newRootCmd(deps Dependencies) *cobra.Command {
	a := &app{deps: deps}

	root := &cobra.Command{
		Use:   "buildforme",
		Short: "Turn a project description into a running app",
		Long: `buildforme classifies a project description, asks the model for the
project as a set of file and command actions, applies them and starts the
dev server in a sandbox.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.SetIn(deps.Stdin)
	root.SetOut(deps.Stdout)
	root.SetErr(deps.Stderr)
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "Config file (default ~/.config/buildforme/config.json)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "Log format: console or json")

	root.AddCommand(
		newServeCmd(a),
		newBuildCmd(a),
		newParseCmd(a),
		newClassifyCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := a.deps.LoadConfig(a.flags.configPath)
	if err != nil {
		return err
	}
	if a.flags.logLevel != "" {
		cfg.Logging.Level = a.flags.logLevel
	}
	if a.flags.logFormat != "" {
		cfg.Logging.Format = a.flags.logFormat
	}

	log, err := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}
