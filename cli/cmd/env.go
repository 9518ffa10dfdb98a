package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/formward/formward/api"
	"github.com/formward/formward/cli/config"
	"github.com/formward/formward/cli/render"
)

// EnvCommand groups server-environment management subcommands.
func EnvCommand() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "Manage server environments",
		Subcommands: []*cli.Command{
			envListCommand(),
			envAddCommand(),
			envRemoveCommand(),
			envUseCommand(),
			envWhoamiCommand(),
		},
	}
}

// EnvEntry is one environment in listing form.
type EnvEntry struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Domain   string `json:"domain,omitempty"`
	Username string `json:"username,omitempty"`
	Current  bool   `json:"current"`
}

func envListCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "List configured environments",
		Flags:  append([]cli.Flag{ConfigDirFlag}, ReadOnlyFlags()...),
		Action: envListAction,
	}
}

func envListAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	mgr, err := config.NewManager(c.String("config-dir"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	cfg, err := mgr.Load()
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	entries := make([]EnvEntry, 0, len(cfg.Environments))
	for _, name := range cfg.EnvironmentNames() {
		env := cfg.Environments[name]
		entries = append(entries, EnvEntry{
			Name:     name,
			URL:      env.URL,
			Domain:   env.Domain,
			Username: env.Username,
			Current:  name == cfg.CurrentEnvironment,
		})
	}
	return r.Render(entries)
}

func envAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add or update a named environment",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "url",
				Usage:    "Server URL, e.g. https://www.commcarehq.org",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "domain",
				Usage: "Default project space",
			},
			&cli.StringFlag{
				Name:  "username",
				Usage: "Web user username",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "API key (stored in the credentials file)",
			},
			ConfigDirFlag,
		},
		Action: envAddAction,
	}
}

func envAddAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("usage: formward env add <name> --url <url>", exitUsage)
	}
	name := c.Args().First()

	mgr, err := config.NewManager(c.String("config-dir"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	env := config.Environment{
		URL:      c.String("url"),
		Domain:   c.String("domain"),
		Username: c.String("username"),
	}
	if err := mgr.AddEnvironment(name, env, c.String("api-key")); err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	fmt.Printf("Added environment %q\n", name)
	return nil
}

func envRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove a named environment",
		ArgsUsage: "<name>",
		Flags:     []cli.Flag{ConfigDirFlag},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("usage: formward env remove <name>", exitUsage)
			}
			mgr, err := config.NewManager(c.String("config-dir"))
			if err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}
			if err := mgr.RemoveEnvironment(c.Args().First()); err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}
			fmt.Printf("Removed environment %q\n", c.Args().First())
			return nil
		},
	}
}

func envUseCommand() *cli.Command {
	return &cli.Command{
		Name:      "use",
		Usage:     "Select the active environment",
		ArgsUsage: "<name>",
		Flags:     []cli.Flag{ConfigDirFlag},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("usage: formward env use <name>", exitUsage)
			}
			mgr, err := config.NewManager(c.String("config-dir"))
			if err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}
			if err := mgr.UseEnvironment(c.Args().First()); err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}
			fmt.Printf("Now using environment %q\n", c.Args().First())
			return nil
		},
	}
}

func envWhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Show the authenticated identity for the active environment",
		Flags:  append([]cli.Flag{ConfigDirFlag}, ReadOnlyFlags()...),
		Action: envWhoamiAction,
	}
}

func envWhoamiAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	mgr, err := config.NewManager(c.String("config-dir"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	name, env, apiKey, err := mgr.ResolveCurrent()
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	if env == nil {
		return cli.Exit("no environment selected (run 'formward env use <name>')", exitUsage)
	}

	client := api.New(api.Config{BaseURL: env.URL, Username: env.Username, APIKey: apiKey})

	ctx, cancel := context.WithTimeout(c.Context, api.DefaultTimeout)
	defer cancel()

	identity, err := client.GetIdentity(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("identity lookup against %q failed: %v", name, err), exitUsage)
	}
	return r.Render(identity)
}
