package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/yairfalse/ilmari/internal/app"
	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/logger"
	"github.com/yairfalse/ilmari/internal/output"
	"github.com/yairfalse/ilmari/pkg/config"
	"github.com/yairfalse/ilmari/pkg/progress"
)

var (
	cfgFile string
	cfg     *config.Config

	log         logger.Logger = logger.Nop()
	closeLog    func() error
	application *app.App
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ilmari",
	Short: "Golden-config drift detection for network devices",
	Long: `ILMARI - forges golden configs and watches your network for drift.

Ilmari keeps a credential-matched inventory of network devices, captures their
running configuration as immutable golden snapshots and tells you what changed
since the last one.

EXAMPLES:
  ilmari golden capture 10.0.0.1     # Save the running config as golden
  ilmari golden compare R1           # Diff the running config against golden
  ilmari golden compare --all        # Check every device in the credential file
  ilmari health R1                   # Ping, routing, neighbors and CPU
  ilmari history --device R1         # What ilmari did to R1 recently`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			return runVersion(cmd, nil)
		}
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return shutdown()
	},
}

// silentError carries the exit code of an outcome that has already been printed
type silentError struct {
	err  error
	code int
}

func (e *silentError) Error() string { return e.err.Error() }
func (e *silentError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return &silentError{err: errors.New("operation failed"), code: 1}
	}
	return &silentError{err: err, code: opserrors.GetExitCode(err)}
}

// Execute adds all child commands to the root command and runs it until done
// or interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	// PersistentPostRunE is skipped when the command fails
	if cerr := shutdown(); cerr != nil {
		log.Warn("Failed to shut down cleanly: " + cerr.Error())
	}

	var silent *silentError
	if errors.As(err, &silent) {
		os.Exit(silent.code)
	}
	opserrors.DisplayError(err)
	os.Exit(opserrors.GetExitCode(err))
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ilmari/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug mode")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("output", "text", "output format (text, json, yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.Flags().Bool("version", false, "show version information")

	// Bind flags to viper
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("output.format", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("output.no_color", rootCmd.PersistentFlags().Lookup("no-color"))

	rootCmd.AddCommand(newGoldenCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newRotateCommand())
	rootCmd.AddCommand(newIPAMCommand())
	rootCmd.AddCommand(newHealthCommand())
	rootCmd.AddCommand(newCPUCommand())
	rootCmd.AddCommand(newDevicesCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newVersionCommand())
}

// initConfig reads in config file and ENV variables if set, then sets up logging.
func initConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return opserrors.Wrap(opserrors.KindConfiguration, err, "failed to load configuration")
	}

	// Expand paths like ~ to home directory
	if err := cfg.ExpandPaths(); err != nil {
		return opserrors.Wrap(opserrors.KindConfiguration, err, "failed to expand config paths")
	}

	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return opserrors.InputError("%v", err).WithSolutions("Use --output text, json or yaml")
	}
	cfg.Output.Format = string(format)

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Logging.Level = "debug"
	} else if verbose, _ := cmd.Flags().GetBool("verbose"); verbose && cfg.Logging.Level != "debug" {
		cfg.Logging.Level = "info"
	}

	l, closer, err := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return opserrors.Wrap(opserrors.KindConfiguration, err, "failed to set up logging").
			WithSolutions("Check logging.level, logging.format and logging.file")
	}
	log = l.WithField("command", cmd.CommandPath())
	closeLog = closer

	return nil
}

// getApp builds the application on first use
func getApp() (*app.App, error) {
	if application != nil {
		return application, nil
	}
	a, err := app.NewAppFactory().Create(cfg, log)
	if err != nil {
		return nil, err
	}
	application = a
	return a, nil
}

func shutdown() error {
	var firstErr error
	if application != nil {
		firstErr = application.Close()
		application = nil
	}
	if closeLog != nil {
		if err := closeLog(); err != nil && firstErr == nil {
			firstErr = err
		}
		closeLog = nil
	}
	return firstErr
}

// newPrinter renders results in the configured output format
func newPrinter(cmd *cobra.Command) *output.Printer {
	format := output.FormatText
	noColor := false
	if cfg != nil {
		format = output.Format(cfg.Output.Format)
		noColor = cfg.Output.NoColor
	}
	return output.NewPrinter(cmd.OutOrStdout(), format, noColor)
}

// withProgress shows batch progress on stderr when it is a terminal and the
// output is meant for humans
func withProgress(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if cfg == nil || cfg.Output.Format != string(output.FormatText) {
		return ctx
	}
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return ctx
	}
	return progress.WithProgress(ctx, progress.NewReporter(os.Stderr))
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

func noDeviceError() error {
	return opserrors.InputError("no device given").
		WithSolutions(
			"Pass a device IP or hostname from the credential file",
			"Or use --all to process every device",
			"Run 'ilmari devices' to list known devices",
		)
}

func exactlyOneOrAll(all bool, args []string) error {
	switch {
	case all && len(args) > 0:
		return opserrors.InputError("--all cannot be combined with a device argument")
	case !all && len(args) == 0:
		return noDeviceError()
	}
	return nil
}
