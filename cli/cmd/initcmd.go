package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/formward/formward/testdef"
)

// initCommand returns the `test init` subcommand.
func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Write a commented test definition skeleton",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing file",
			},
		},
		Action: initAction,
	}
}

func initAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = "test.yaml"
	}

	if !c.Bool("force") {
		if _, err := os.Stat(path); err == nil {
			return cli.Exit(fmt.Sprintf("%s already exists (use --force to overwrite)", path), exitUsage)
		}
	}

	if err := os.WriteFile(path, []byte(testdef.Skeleton()), 0o644); err != nil {
		return cli.Exit(fmt.Sprintf("cannot write %s: %v", path, err), exitUsage)
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}
