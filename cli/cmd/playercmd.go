package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/formward/formward/player"
	"github.com/formward/formward/testdef"
)

// PlayerCommand groups player tooling subcommands.
func PlayerCommand() *cli.Command {
	return &cli.Command{
		Name:  "player",
		Usage: "Build and exercise the form player",
		Subcommands: []*cli.Command{
			playerBuildCommand(),
			playerValidateCommand(),
		},
	}
}

func playerBuildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Build the commcare-cli jar from a commcare-core checkout",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "core-dir",
				Usage: "commcare-core checkout",
				Value: "commcare-core",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Rebuild even if a cached jar exists",
			},
		},
		Action: func(c *cli.Context) error {
			loc := player.NewLocator(c.String("core-dir"))

			var jar string
			var err error
			if c.Bool("force") {
				jar, err = loc.Build(c.Context)
			} else {
				jar, err = loc.EnsureJar(c.Context)
			}
			if err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}
			fmt.Printf("Player jar ready at %s\n", jar)
			return nil
		},
	}
}

func playerValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate an app package with the player",
		ArgsUsage: "<app.ccz>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "jar",
				Usage: "Path to a prebuilt commcare-cli jar",
			},
			&cli.StringFlag{
				Name:  "core-dir",
				Usage: "commcare-core checkout used to build the jar",
				Value: "commcare-core",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Validation timeout in seconds",
				Value: testdef.DefaultTimeout,
			},
		},
		Action: playerValidateAction,
	}
}

func playerValidateAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("usage: formward player validate <app.ccz>", exitUsage)
	}

	runner, err := buildPlayer(c.Context, c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	timeout := time.Duration(c.Int("timeout")) * time.Second
	result, err := runner.Validate(c.Context, c.Args().First(), timeout)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	if result.ExitCode != 0 {
		fmt.Println(result.Stdout)
		return cli.Exit(fmt.Sprintf("validation failed (exit code %d)", result.ExitCode), exitFail)
	}
	fmt.Println("App package is valid")
	return nil
}
