package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alishhde/Couriers-Planning-Problem/internal/config"
	"github.com/alishhde/Couriers-Planning-Problem/internal/logging"
)

const (
	ExitSuccess           = 0
	ExitRunFailure        = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
)

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &exitError{code: ExitInvalidInvocation, err: fmt.Errorf(format, args...)}
}

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cpp",
	Short: "Couriers Planning Problem: transcode instances, run MiniZinc models, collect results",
	Long: `cpp drives the MiniZinc models of the Multiple Couriers Planning problem.

It converts tabular instances into MiniZinc data files, runs a chosen model
against chosen instances under a time budget, decodes the solver's answer
into per-courier routes and merges the outcome into the result store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return &exitError{code: ExitConfigError, err: err}
		}
		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, verbose)
		if err != nil {
			return &exitError{code: ExitConfigError, err: err}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &exitError{code: ExitInvalidInvocation, err: err}
	})

	rootCmd.AddCommand(transcodeCmd)
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

// exactArgs is cobra.ExactArgs with the invalid-invocation exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &exitError{code: ExitInvalidInvocation, err: err}
		}
		return nil
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	err := rootCmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintln(os.Stderr, "cpp:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// cobra reports unknown commands as plain errors
	if cmd, _, ferr := rootCmd.Find(os.Args[1:]); ferr != nil || cmd == rootCmd {
		return ExitInvalidInvocation
	}
	return ExitRunFailure
}
