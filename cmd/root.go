/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"errors"
	"io"
	"os"

	"github.com/fulmenhq/indexgate/pkg/buildinfo"
	"github.com/fulmenhq/indexgate/pkg/exitcode"
	"github.com/fulmenhq/indexgate/pkg/logger"
	"github.com/spf13/cobra"
)

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indexgate [repo]",
		Short: "Pre-merge gate for agent manifests",
		Long: `indexgate validates the index.yaml agent manifest of a repository and checks
that the branch is up to date with the reference branch. It prints a report
and a single-line JSON array of findings, and exits non-zero when anything
needs fixing.

Examples:
   indexgate                      # Check the current directory
   indexgate check ../docs-repo   # Check another working copy
   indexgate --no-sync            # Skip the branch currency check
   indexgate --format github      # Emit workflow annotations`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
		RunE: runCheck,
	}

	// Add global flags
	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	// The root command runs the check directly
	addCheckFlags(cmd)

	cmd.Version = buildinfo.Version()
	cmd.SetVersionTemplate("indexgate {{.Version}}\n")
	return cmd
}

// registerSubcommands adds all subcommands to the root command.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newVersionCommand())
}

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return exitcode.String(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// execute runs a fresh command tree and returns the exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCommand()
	registerSubcommands(root)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitcode.Success
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.code != exitcode.Findings {
			logger.Error("Command execution failed", logger.Err(err))
		}
		return ee.code
	}
	// Cobra usage errors (unknown flag, too many args) are configuration errors
	logger.Error("Command execution failed", logger.Err(err))
	return exitcode.ConfigError
}

// Execute is called by main.main().
func Execute() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	config := logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor && os.Getenv("NO_COLOR") == "",
		JSON:      jsonLogs,
		Component: "indexgate",
	}

	if err := logger.Initialize(config); err != nil {
		// Fallback to stderr
		if _, writeErr := os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n"); writeErr != nil {
			_ = writeErr
		}
		os.Exit(exitcode.ConfigError)
	}
	logger.SetOutput(cmd.ErrOrStderr())
}
