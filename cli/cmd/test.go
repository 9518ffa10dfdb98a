package cmd

import "github.com/urfave/cli/v2"

// TestCommand groups the form-test subcommands.
func TestCommand() *cli.Command {
	return &cli.Command{
		Name:  "test",
		Usage: "Run and manage form tests",
		Subcommands: []*cli.Command{
			runCommand(),
			initCommand(),
			statsCommand(),
		},
	}
}
