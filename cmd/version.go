/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/fulmenhq/indexgate/pkg/buildinfo"
	"github.com/fulmenhq/indexgate/pkg/exitcode"
	"github.com/spf13/cobra"
)

// versionInfo is the --extended output.
type versionInfo struct {
	Version   string `json:"version"`
	Module    string `json:"module,omitempty"`
	Revision  string `json:"revision,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
	Arch      string `json:"arch"`
}

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show indexgate version",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
	cmd.Flags().Bool("extended", false, "Show build information")
	cmd.Flags().String("output", "text", "Output format for --extended (text|json)")
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) error {
	extended, _ := cmd.Flags().GetBool("extended")
	output, _ := cmd.Flags().GetString("output")
	out := cmd.OutOrStdout()

	if !extended {
		_, err := fmt.Fprintf(out, "indexgate %s\n", buildinfo.Version())
		return err
	}

	info := collectVersionInfo()
	switch output {
	case "json":
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case "text", "":
		fmt.Fprintf(out, "indexgate %s\n", info.Version)
		if info.Module != "" {
			fmt.Fprintf(out, "Module:   %s\n", info.Module)
		}
		if info.Revision != "" {
			fmt.Fprintf(out, "Revision: %s\n", info.Revision)
		}
		fmt.Fprintf(out, "Go:       %s\n", info.GoVersion)
		fmt.Fprintf(out, "Platform: %s/%s\n", info.Platform, info.Arch)
		return nil
	default:
		return &exitError{code: exitcode.ConfigError, err: fmt.Errorf("unsupported output %q (expected text or json)", output)}
	}
}

func collectVersionInfo() versionInfo {
	info := versionInfo{
		Version:   buildinfo.Version(),
		Module:    buildinfo.ModuleVersion(),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				info.Revision = s.Value
			}
		}
	}
	return info
}
