/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fulmenhq/indexgate/internal/gate"
	"github.com/fulmenhq/indexgate/internal/vcs"
	"github.com/fulmenhq/indexgate/pkg/config"
	"github.com/fulmenhq/indexgate/pkg/exitcode"
	"github.com/fulmenhq/indexgate/pkg/logger"
	"github.com/fulmenhq/indexgate/pkg/safeio"
	"github.com/spf13/cobra"
)

// defaultRunTimeout bounds a whole run.
const defaultRunTimeout = 3 * time.Minute

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [repo]",
		Short: "Validate index.yaml and branch currency",
		Long: `Check runs every gate against the repository working copy (default: the
current directory): branch sync against the reference branch, manifest schema,
source path safety, orphaned documentation files, missing sources and, when
enabled, the committed file type allowlist.

Exit codes: 0 when there are no findings, 1 when there are, 2 on
configuration errors.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCheck,
	}
	addCheckFlags(cmd)
	return cmd
}

func addCheckFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("pr", os.Getenv("GITHUB_PR_NUMBER"), "Change number used to label the report (default $GITHUB_PR_NUMBER)")
	f.String("format", "text", "Output format (text|json|github)")
	f.String("json-output", "", "Write the JSON findings line to this file instead of stdout")
	f.String("markdown-output", "", "Also write a Markdown summary (PR comment body) to this file")
	f.String("junit-output", "", "Also write a JUnit XML report to this file")
	f.Bool("no-sync", false, "Skip the branch sync check")
	f.String("remote", "origin", "Remote holding the reference branch")
	f.String("branch", "main", "Reference branch the change must include")
	f.String("manifest", "index.yaml", "Manifest path relative to the repository root")
	f.Duration("sync-timeout", gate.DefaultSyncTimeout, "Timeout for each version-control call")
	f.String("vcs-backend", vcs.BackendCLI, "Version-control backend (cli|gogit)")
	f.StringSlice("exclude", nil, "Doublestar globs to leave out of the tree scan")
	f.Bool("gitignore", false, "Skip files ignored by .gitignore")
	f.Bool("file-types", false, "Flag committed files outside the allowed file types")
	f.Duration("timeout", defaultRunTimeout, "Overall timeout for the run")
}

func runCheck(cmd *cobra.Command, args []string) error {
	repo := "."
	if len(args) == 1 {
		repo = args[0]
	}
	repoRoot, err := filepath.Abs(repo)
	if err != nil {
		return &exitError{code: exitcode.ConfigError, err: fmt.Errorf("resolve repository path: %w", err)}
	}
	if st, err := os.Stat(repoRoot); err != nil || !st.IsDir() {
		return &exitError{code: exitcode.ConfigError, err: fmt.Errorf("repository root %s is not a directory", repoRoot)}
	}

	cfg, err := config.Load(repoRoot, cmd.Flags())
	if err != nil {
		return &exitError{code: exitcode.ConfigError, err: err}
	}
	if cfg.Source != "" {
		logger.Debug("Loaded config", logger.String("file", cfg.Source))
	}

	formatName, _ := cmd.Flags().GetString("format")
	format, err := gate.ParseFormat(formatName)
	if err != nil {
		return &exitError{code: exitcode.ConfigError, err: err}
	}

	opts := engineOptions(cmd, repoRoot, cfg)
	engine, err := gate.NewEngine(opts)
	if err != nil {
		return &exitError{code: exitcode.ConfigError, err: err}
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	report, err := engine.Run(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &exitError{code: exitcode.TimeoutError, err: fmt.Errorf("check timed out after %s: %w", timeout, err)}
		}
		return &exitError{code: exitcode.FileSystemError, err: err}
	}

	if err := writeReport(cmd, format, report); err != nil {
		return &exitError{code: exitcode.FileSystemError, err: err}
	}

	if report.Passed() {
		logger.Debug("Validation passed", logger.Duration("elapsed", report.Duration))
		return nil
	}
	logger.Debug("Validation failed", logger.Int("findings", len(report.Findings)))
	return &exitError{code: exitcode.Findings, err: fmt.Errorf("%d finding(s)", len(report.Findings))}
}

// engineOptions maps resolved configuration onto the engine.
func engineOptions(cmd *cobra.Command, repoRoot string, cfg *config.Config) gate.Options {
	label, _ := cmd.Flags().GetString("pr")
	noSync, _ := cmd.Flags().GetBool("no-sync")

	opts := gate.Options{
		RepoRoot:     repoRoot,
		ManifestPath: cfg.Manifest.Path,
		Label:        label,
		Sync: gate.SyncOptions{
			Remote:  cfg.Sync.Remote,
			Branch:  cfg.Sync.Branch,
			Fetch:   cfg.Sync.Fetch,
			Timeout: cfg.Sync.Timeout,
		},
		Scan: gate.ScanOptions{
			Exclude:          cfg.Scan.Exclude,
			RespectGitignore: cfg.Scan.RespectGitignore,
			DocExtensions:    cfg.Docs.Extensions,
		},
		AllowedExtensions: cfg.Paths.AllowedExtensions,
		SkipList:          cfg.Docs.Skip,
		FileTypes:         cfg.FileTypes.Enabled,
		AllowedFiles:      cfg.FileTypes.Allowed,
	}

	if cfg.Sync.Enabled && !noSync {
		vc, err := vcs.New(cfg.Sync.Backend, repoRoot)
		if err != nil {
			logger.Warn("Version control backend unavailable", logger.String("backend", cfg.Sync.Backend), logger.Err(err))
			vc = vcs.Unavailable(err)
		}
		opts.VCS = vc
	}
	return opts
}

// writeReport prints the report to stdout and writes any side files. The
// JSON findings line goes to --json-output when set, else it is the last
// stdout line.
func writeReport(cmd *cobra.Command, format gate.OutputFormat, report *gate.Report) error {
	noColor, _ := cmd.Flags().GetBool("no-color")
	jsonOut, _ := cmd.Flags().GetString("json-output")
	mdOut, _ := cmd.Flags().GetString("markdown-output")
	junitOut, _ := cmd.Flags().GetString("junit-output")

	formatter := gate.NewFormatter(format)
	formatter.SetNoColor(noColor)

	if err := formatter.Write(cmd.OutOrStdout(), report, jsonOut == ""); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if jsonOut != "" {
		line, err := report.MessagesJSON()
		if err != nil {
			return err
		}
		if err := safeio.WriteFilePreservePerms(jsonOut, []byte(line+"\n")); err != nil {
			return fmt.Errorf("write %s: %w", jsonOut, err)
		}
	}
	if mdOut != "" {
		var buf bytes.Buffer
		if err := formatter.WriteMarkdown(&buf, report); err != nil {
			return err
		}
		if err := safeio.WriteFilePreservePerms(mdOut, buf.Bytes()); err != nil {
			return fmt.Errorf("write %s: %w", mdOut, err)
		}
	}
	if junitOut != "" {
		var buf bytes.Buffer
		if err := formatter.WriteJUnit(&buf, report); err != nil {
			return err
		}
		if err := safeio.WriteFilePreservePerms(junitOut, buf.Bytes()); err != nil {
			return fmt.Errorf("write %s: %w", junitOut, err)
		}
	}
	return nil
}
