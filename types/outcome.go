// Package types defines core domain types for the formward runtime.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"math"
	"time"
)

// Outcome is the result of one form test run.
// Created by the runtime orchestrator; never mutated after construction.
type Outcome struct {
	// TestName is the name from the test definition.
	TestName string
	// Passed reports whether the form completed successfully.
	Passed bool
	// FormXML is the extracted form instance XML, empty if not found.
	FormXML string
	// Stdout is the raw player stdout, kept for diagnosis.
	Stdout string
	// Stderr is the raw player stderr, kept for diagnosis.
	Stderr string
	// ExitCode is the player process exit code, -1 if it never ran.
	ExitCode int
	// Duration is the elapsed wall-clock time of the run.
	Duration time.Duration
	// Err is a one-line human-readable failure explanation, empty on pass.
	Err string
}

// Report is the stable machine-readable run report consumed by CI
// pipelines. Field names must not change across releases.
type Report struct {
	TestName         string  `json:"test_name"`
	Passed           bool    `json:"passed"`
	ExitCode         int     `json:"exit_code"`
	DurationSeconds  float64 `json:"duration_seconds"`
	Error            string  `json:"error,omitempty"`
	FormXMLSizeBytes int     `json:"form_xml_size_bytes,omitempty"`
}

// Report converts the outcome into its stable report form.
// The raw stdout/stderr and the XML body are deliberately excluded;
// they are diagnostic surfaces, not part of the report contract.
func (o *Outcome) Report() Report {
	r := Report{
		TestName:        o.TestName,
		Passed:          o.Passed,
		ExitCode:        o.ExitCode,
		DurationSeconds: math.Round(o.Duration.Seconds()*100) / 100,
		Error:           o.Err,
	}
	if o.FormXML != "" {
		r.FormXMLSizeBytes = len(o.FormXML)
	}
	return r
}
