// Package runtime orchestrates a single form test run through its three
// phases: acquire artifacts, drive the player, classify the result.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/formward/formward/adapter"
	"github.com/formward/formward/extract"
	"github.com/formward/formward/log"
	"github.com/formward/formward/metrics"
	"github.com/formward/formward/player"
	"github.com/formward/formward/replay"
	"github.com/formward/formward/testdef"
	"github.com/formward/formward/types"
	"github.com/formward/formward/workspace"
)

// Player abstracts the form player session for testing.
// Implemented by player.Runner.
type Player interface {
	Play(ctx context.Context, cczPath, restorePath, script string, timeout time.Duration) (*player.Result, error)
}

// RunConfig configures a single test run.
type RunConfig struct {
	// Definition is the test to run (required).
	Definition *testdef.Definition
	// Workspace is the local artifact cache (required).
	Workspace *workspace.Workspace
	// Player drives the form player session (required).
	Player Player
	// Source fetches remote artifacts. If nil, the run is cache-only and
	// fails setup on a cache miss.
	Source ArtifactSource
	// Mirror is an optional shared artifact cache between workspace and
	// source.
	Mirror ArtifactMirror
	// MinimalRestore generates a user-registration-only restore instead
	// of downloading one, for exercising forms without real user data.
	MinimalRestore bool
	// Adapter publishes the completion event downstream. Optional;
	// publish failures are logged, never fatal.
	Adapter adapter.Adapter
	// Collector records run metrics. If nil, no metrics are recorded.
	Collector *metrics.Collector
	// Logger overrides the default run-context logger.
	Logger *log.Logger
}

// Orchestrator executes one test run end-to-end.
type Orchestrator struct {
	config      *RunConfig
	logger      *log.Logger
	startTime   time.Time
	extractPass extract.Pass
}

// NewOrchestrator creates an orchestrator for one run.
// Returns an error if required configuration is missing.
func NewOrchestrator(config *RunConfig) (*Orchestrator, error) {
	switch {
	case config.Definition == nil:
		return nil, errors.New("run config requires a test definition")
	case config.Workspace == nil:
		return nil, errors.New("run config requires a workspace")
	case config.Player == nil:
		return nil, errors.New("run config requires a player")
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(log.RunContext{
			Test:   config.Definition.Name,
			Domain: config.Definition.Domain,
			AppID:  config.Definition.AppID,
		})
	}

	return &Orchestrator{config: config, logger: logger}, nil
}

// Execute runs the test end-to-end and always produces an outcome.
// Infrastructure failures become failed outcomes with an explanation,
// never panics or bare errors: a broken run must still be reportable.
//
// Execution flow:
//  1. SETUP: resolve app package and restore (cache, mirror, source)
//  2. EXECUTE: encode the session script, drive the player
//  3. REPORT: extract the form XML, classify pass/fail
func (r *Orchestrator) Execute(ctx context.Context) *types.Outcome {
	r.startTime = time.Now()
	def := r.config.Definition
	r.config.Collector.IncTestStarted()

	r.logger.Info("starting test", map[string]any{
		"username": def.Username,
		"timeout":  def.Timeout,
	})

	// SETUP
	artifacts := &artifactManager{run: r}
	cczPath, restorePath, err := artifacts.ensure(ctx)
	if err != nil {
		r.config.Collector.IncSetupFailure()
		r.logger.Error("setup failed", map[string]any{"error": err.Error()})
		return r.finish(&types.Outcome{
			TestName: def.Name,
			ExitCode: -1,
			Err:      fmt.Sprintf("setup failed: %v", err),
		})
	}

	// EXECUTE
	script := replay.ScriptFor(def)
	timeout := time.Duration(def.Timeout) * time.Second

	r.logger.Debug("session script encoded", map[string]any{
		"navigation_steps": len(def.Navigation),
		"answers":          len(def.Answers),
	})

	result, err := r.config.Player.Play(ctx, cczPath, restorePath, script, timeout)
	if err != nil {
		return r.finish(r.classifyPlayError(err, def))
	}
	r.config.Collector.IncPlayerLaunchSuccess()

	// REPORT
	return r.finish(r.report(def, result))
}

// classifyPlayError maps player errors to failed outcomes. The exit code
// is -1 on every path here: the player either never ran or was killed
// before producing a meaningful status.
func (r *Orchestrator) classifyPlayError(err error, def *testdef.Definition) *types.Outcome {
	outcome := &types.Outcome{TestName: def.Name, ExitCode: -1}

	var timeoutErr *player.TimeoutError
	var notFoundErr *player.NotFoundError
	switch {
	case errors.As(err, &timeoutErr):
		r.config.Collector.IncPlayerTimeout()
		outcome.Err = fmt.Sprintf("Test timed out after %d seconds", def.Timeout)
		r.logger.Error("player timed out", map[string]any{"timeout_seconds": def.Timeout})
	case errors.As(err, &notFoundErr):
		r.config.Collector.IncPlayerLaunchFailure()
		outcome.Err = fmt.Sprintf("player not available: %v", err)
		r.logger.Error("player not available", map[string]any{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		outcome.Err = "run canceled"
		r.logger.Warn("run canceled", nil)
	default:
		r.config.Collector.IncPlayerLaunchFailure()
		outcome.Err = fmt.Sprintf("player launch failed: %v", err)
		r.logger.Error("player launch failed", map[string]any{"error": err.Error()})
	}
	return outcome
}

// report extracts the completed form and classifies the run. A test
// passes only when the player exited zero AND a form instance was
// recovered from its output; either signal alone is insufficient.
func (r *Orchestrator) report(def *testdef.Definition, result *player.Result) *types.Outcome {
	outcome := &types.Outcome{
		TestName: def.Name,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		ExitCode: result.ExitCode,
	}

	xml, pass := extract.FormXML(result.Stdout)
	outcome.FormXML = xml
	r.extractPass = pass

	switch pass {
	case extract.PassRegex:
		r.config.Collector.IncExtractRegex()
	case extract.PassScan:
		r.config.Collector.IncExtractScan()
		r.logger.Warn("form XML recovered by fallback scan", map[string]any{
			"size_bytes": len(xml),
		})
	default:
		r.config.Collector.IncExtractMiss()
	}

	switch {
	case result.ExitCode != 0:
		outcome.Err = fmt.Sprintf("Player exited with code %d", result.ExitCode)
	case xml == "":
		outcome.Err = "Form XML not found in output. The form may not have completed."
	default:
		outcome.Passed = true
	}

	r.logger.Info("test finished", map[string]any{
		"passed":       outcome.Passed,
		"exit_code":    result.ExitCode,
		"extract_pass": pass.String(),
	})
	return outcome
}

// finish stamps the duration, records metrics and history, publishes
// the completion event, and returns the outcome unchanged.
func (r *Orchestrator) finish(outcome *types.Outcome) *types.Outcome {
	outcome.Duration = time.Since(r.startTime)

	if outcome.Passed {
		r.config.Collector.IncTestPassed()
	} else {
		r.config.Collector.IncTestFailed()
	}

	r.appendHistory(outcome)
	r.publish(outcome)
	return outcome
}

func (r *Orchestrator) appendHistory(outcome *types.Outcome) {
	def := r.config.Definition
	rec := &workspace.Record{
		Test:        def.Name,
		Domain:      def.Domain,
		AppID:       def.AppID,
		Username:    def.Username,
		Passed:      outcome.Passed,
		ExitCode:    outcome.ExitCode,
		DurationMs:  outcome.Duration.Milliseconds(),
		Error:       outcome.Err,
		ExtractPass: r.extractPass.String(),
		At:          time.Now().UTC(),
	}
	if err := r.config.Workspace.AppendHistory(def.Domain, def.AppID, def.Username, rec); err != nil {
		r.logger.Warn("history append failed", map[string]any{"error": err.Error()})
	}
}

// publish sends the completion event downstream. Best effort on a
// detached context so a canceled run still notifies.
func (r *Orchestrator) publish(outcome *types.Outcome) {
	if r.config.Adapter == nil {
		return
	}
	def := r.config.Definition

	report := outcome.Report()
	event := &adapter.TestCompletedEvent{
		EventType:       adapter.EventType,
		Test:            def.Name,
		Domain:          def.Domain,
		AppID:           def.AppID,
		Username:        def.Username,
		Passed:          outcome.Passed,
		ExitCode:        outcome.ExitCode,
		DurationSeconds: report.DurationSeconds,
		Error:           outcome.Err,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.config.Adapter.Publish(ctx, event); err != nil {
		r.logger.Warn("completion event publish failed", map[string]any{"error": err.Error()})
	}
}
