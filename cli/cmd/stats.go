package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/formward/formward/cli/config"
	"github.com/formward/formward/cli/render"
	"github.com/formward/formward/workspace"
)

// StatsResponse is the aggregated run-history report.
type StatsResponse struct {
	Domain string          `json:"domain"`
	AppID  string          `json:"app_id"`
	Stats  workspace.Stats `json:"stats"`
	Recent []RecentRun     `json:"recent,omitempty"`
}

// RecentRun is one history record in listing form.
type RecentRun struct {
	Test       string `json:"test"`
	Username   string `json:"username"`
	Passed     bool   `json:"passed"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	At         string `json:"at"`
}

// statsCommand returns the `test stats` subcommand.
func statsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Aggregate run history for an app",
		ArgsUsage: "<domain> <app-id>",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "recent",
				Usage: "Number of recent runs to list",
				Value: 10,
			},
			ConfigDirFlag,
			WorkspaceFlag,
		}, ReadOnlyFlags()...),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("usage: formward test stats <domain> <app-id>", exitUsage)
	}
	domain, appID := c.Args().Get(0), c.Args().Get(1)

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

	wsDir := c.String("workspace")
	if wsDir == "" {
		wsDir = cfg.Workspace
	}
	ws := workspace.New(wsDir)

	records, err := ws.HistoryForApp(domain, appID)
	if err != nil {
		return cli.Exit(fmt.Sprintf("read run history: %v", err), exitUsage)
	}

	resp := StatsResponse{
		Domain: domain,
		AppID:  appID,
		Stats:  workspace.Summarize(records),
	}

	limit := c.Int("recent")
	for i := len(records) - 1; i >= 0 && len(resp.Recent) < limit; i-- {
		rec := records[i]
		resp.Recent = append(resp.Recent, RecentRun{
			Test:       rec.Test,
			Username:   rec.Username,
			Passed:     rec.Passed,
			ExitCode:   rec.ExitCode,
			DurationMs: rec.DurationMs,
			At:         rec.At.Format("2006-01-02 15:04:05"),
		})
	}

	return r.Render(resp)
}
