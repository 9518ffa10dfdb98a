// Package cmd provides CLI commands for the formward binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for output-producing commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// ConfigDirFlag overrides the configuration directory.
	ConfigDirFlag = &cli.StringFlag{
		Name:  "config-dir",
		Usage: "Configuration directory (default ~/.formward)",
	}

	// WorkspaceFlag overrides the artifact cache directory.
	WorkspaceFlag = &cli.StringFlag{
		Name:  "workspace",
		Usage: "Artifact cache directory (default .cc/workspaces)",
	}
)

// ReadOnlyFlags returns the shared flags for read-only commands.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
	}
}
