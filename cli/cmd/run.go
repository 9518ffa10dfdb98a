package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/formward/formward/adapter"
	adapterredis "github.com/formward/formward/adapter/redis"
	adapterwebhook "github.com/formward/formward/adapter/webhook"
	"github.com/formward/formward/api"
	"github.com/formward/formward/cli/config"
	"github.com/formward/formward/cli/render"
	"github.com/formward/formward/metrics"
	"github.com/formward/formward/player"
	"github.com/formward/formward/runtime"
	"github.com/formward/formward/testdef"
	"github.com/formward/formward/workspace"
)

// Exit codes for `test run`: 0 pass, 1 fail, 2 usage or config error.
const (
	exitFail  = 1
	exitUsage = 2
)

// runCommand returns the `test run` subcommand, the only command that
// executes work.
func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a form test definition",
		ArgsUsage: "<test.yaml>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "domain",
				Usage: "Override the definition's domain",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Override the run timeout in seconds",
			},
			&cli.StringFlag{
				Name:  "output-xml",
				Usage: "Write the extracted form XML to a file",
			},
			&cli.BoolFlag{
				Name:  "show-output",
				Usage: "Print raw player stdout/stderr to stderr",
			},
			&cli.BoolFlag{
				Name:  "minimal-restore",
				Usage: "Generate a minimal restore instead of downloading one",
			},
			&cli.StringFlag{
				Name:  "jar",
				Usage: "Path to a prebuilt commcare-cli jar",
			},
			&cli.StringFlag{
				Name:  "core-dir",
				Usage: "commcare-core checkout used to build the jar",
				Value: "commcare-core",
			},
			ConfigDirFlag,
			WorkspaceFlag,
		}, ReadOnlyFlags()...),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("usage: formward test run <test.yaml>", exitUsage)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	def, err := testdef.Load(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	def = def.WithDomain(c.String("domain")).WithTimeout(c.Int("timeout"))

	mgr, err := config.NewManager(c.String("config-dir"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	cfg, err := mgr.Load()
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runConfig, cleanup, err := buildRunConfig(ctx, c, mgr, cfg, def)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer cleanup()

	orch, err := runtime.NewOrchestrator(runConfig)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	outcome := orch.Execute(ctx)
	report := outcome.Report()

	if c.Bool("show-output") {
		fmt.Fprintln(os.Stderr, "--- player stdout ---")
		fmt.Fprintln(os.Stderr, outcome.Stdout)
		if outcome.Stderr != "" {
			fmt.Fprintln(os.Stderr, "--- player stderr ---")
			fmt.Fprintln(os.Stderr, outcome.Stderr)
		}
	}

	if path := c.String("output-xml"); path != "" && outcome.FormXML != "" {
		if err := os.WriteFile(path, []byte(outcome.FormXML+"\n"), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "cannot write form XML: %v\n", err)
		}
	}

	if r.Format() == render.FormatTable {
		r.PrintStatusLine(outcome.Passed, outcome.TestName, report.DurationSeconds, outcome.Err)
	} else if err := r.Render(report); err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	if !outcome.Passed {
		return cli.Exit("", exitFail)
	}
	return nil
}

// buildRunConfig wires the orchestrator dependencies from flags and the
// user config. The returned cleanup closes the adapter, if any.
func buildRunConfig(ctx context.Context, c *cli.Context, mgr *config.Manager, cfg *config.Config, def *testdef.Definition) (*runtime.RunConfig, func(), error) {
	cleanup := func() {}

	wsDir := c.String("workspace")
	if wsDir == "" {
		wsDir = cfg.Workspace
	}
	ws := workspace.New(wsDir)

	runner, err := buildPlayer(ctx, c)
	if err != nil {
		return nil, cleanup, err
	}

	var source runtime.ArtifactSource
	_, env, apiKey, err := mgr.ResolveCurrent()
	if err != nil {
		return nil, cleanup, err
	}
	if env != nil && env.URL != "" {
		source = api.New(api.Config{
			BaseURL:  env.URL,
			Domain:   def.Domain,
			Username: env.Username,
			APIKey:   apiKey,
		})
	}

	var mirror runtime.ArtifactMirror
	if cfg.Mirror.Bucket != "" {
		m, err := workspace.NewMirror(ctx, workspace.MirrorConfig{
			Bucket:       cfg.Mirror.Bucket,
			Prefix:       cfg.Mirror.Prefix,
			Region:       cfg.Mirror.Region,
			Endpoint:     cfg.Mirror.Endpoint,
			UsePathStyle: cfg.Mirror.PathStyle,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("configure mirror: %w", err)
		}
		mirror = m
	}

	notify, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return nil, cleanup, err
	}
	if notify != nil {
		cleanup = func() { _ = notify.Close() }
	}

	return &runtime.RunConfig{
		Definition:     def,
		Workspace:      ws,
		Player:         runner,
		Source:         source,
		Mirror:         mirror,
		MinimalRestore: c.Bool("minimal-restore"),
		Adapter:        notify,
		Collector:      metrics.NewCollector(def.Domain, def.AppID),
	}, cleanup, nil
}

// buildPlayer resolves java and the player jar, building the jar from
// the commcare-core checkout when no prebuilt jar is given or cached.
func buildPlayer(ctx context.Context, c *cli.Context) (*player.Runner, error) {
	java, err := player.FindJava()
	if err != nil {
		return nil, err
	}

	jar := c.String("jar")
	if jar == "" {
		loc := player.NewLocator(c.String("core-dir"))
		jar, err = loc.EnsureJar(ctx)
		if err != nil {
			return nil, err
		}
	}

	return player.NewRunner(player.JarCommand(java, jar)), nil
}

// buildAdapter constructs the configured notification adapter, or nil
// when none is configured.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := -1
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case "":
		return nil, nil
	case "webhook":
		wcfg := adapterwebhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: adapterwebhook.DefaultRetries,
		}
		if retries >= 0 {
			wcfg.Retries = retries
		}
		return adapterwebhook.New(wcfg)
	case "redis":
		rcfg := adapterredis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: adapterredis.DefaultRetries,
		}
		if retries >= 0 {
			rcfg.Retries = retries
		}
		return adapterredis.New(rcfg)
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", cfg.Type)
	}
}
