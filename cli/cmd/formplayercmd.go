package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/formward/formward/cli/config"
	"github.com/formward/formward/formplayer"
)

// FormplayerCommand groups local formplayer stack subcommands.
func FormplayerCommand() *cli.Command {
	return &cli.Command{
		Name:  "formplayer",
		Usage: "Manage a local formplayer Docker stack",
		Subcommands: []*cli.Command{
			formplayerComposeCommand(),
		},
	}
}

func formplayerComposeCommand() *cli.Command {
	return &cli.Command{
		Name:  "compose",
		Usage: "Generate the docker-compose.yml for a local formplayer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "CommCare HQ URL (default: active environment's URL)",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Data directory for volumes and the compose file",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Host port for formplayer",
				Value: formplayer.DefaultFormplayerPort,
			},
			&cli.IntFlag{
				Name:  "postgres-port",
				Usage: "Host port for postgres",
				Value: formplayer.DefaultPostgresPort,
			},
			&cli.IntFlag{
				Name:  "redis-port",
				Usage: "Host port for redis",
				Value: formplayer.DefaultRedisPort,
			},
			&cli.StringFlag{
				Name:  "auth-key",
				Usage: "Formplayer auth key",
				Value: formplayer.DefaultAuthKey,
			},
			ConfigDirFlag,
		},
		Action: formplayerComposeAction,
	}
}

func formplayerComposeAction(c *cli.Context) error {
	host := c.String("host")
	if host == "" {
		mgr, err := config.NewManager(c.String("config-dir"))
		if err != nil {
			return cli.Exit(err.Error(), exitUsage)
		}
		_, env, _, err := mgr.ResolveCurrent()
		if err != nil {
			return cli.Exit(err.Error(), exitUsage)
		}
		if env != nil {
			host = env.URL
		}
	}
	if host == "" {
		return cli.Exit("no CommCare host: pass --host or configure an environment", exitUsage)
	}

	path, err := formplayer.WriteFile(formplayer.ComposeConfig{
		CommCareHost:   host,
		DataDir:        c.String("data-dir"),
		FormplayerPort: c.Int("port"),
		PostgresPort:   c.Int("postgres-port"),
		RedisPort:      c.Int("redis-port"),
		AuthKey:        c.String("auth-key"),
	})
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Printf("Start the stack with: docker compose -f %s up -d\n", path)
	return nil
}
