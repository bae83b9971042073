package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/credbox/cmd/credbox/commands"
	"github.com/systmms/credbox/internal/config"
	dserrors "github.com/systmms/credbox/internal/errors"
	"github.com/systmms/credbox/internal/logging"
	"github.com/systmms/credbox/internal/secure"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := run()
	secure.Purge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile  string
		prefix      string
		backend     string
		metricsFile string
		noColor     bool
		debug       bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "credbox",
		Short: "Namespaced secure key-value store over the system credential vault",
		Long: `credbox stores strings, lists, sets, maps, timestamps and binary blobs
in a credential vault (the OS keyring by default) under an application prefix,
and keeps per-user records such as names, tokens and encryption keys.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Logger = logging.New(debug, noColor)
			cfg.Path = configFile
			// The default path is optional; an explicit --config must exist.
			cfg.AllowMissing = !cmd.Flags().Changed("config")
			cfg.Prefix = prefix
			cfg.Backend = backend
			cfg.MetricsFile = metricsFile
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().StringVar(&prefix, "prefix", "", "Service prefix (default: config prefix, $CREDBOX_APP_ID or the executable name)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Vault name or type to use (default: config backend or keyring)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the command")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewSetCommand(cfg),
		commands.NewGetCommand(cfg),
		commands.NewDeleteCommand(cfg),
		commands.NewKeysCommand(cfg),
		commands.NewUserCommand(cfg),
		commands.NewUsersCommand(cfg),
		commands.NewLastUserCommand(cfg),
		commands.NewAppIDCommand(cfg),
		commands.NewCleanCommand(cfg),
		commands.NewMigrateCommand(cfg),
		commands.NewDumpCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	return rootCmd.Execute()
}
