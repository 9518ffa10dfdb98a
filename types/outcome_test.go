package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestOutcome_Report(t *testing.T) {
	o := &Outcome{
		TestName: "registration",
		Passed:   true,
		FormXML:  "<data>ok</data>",
		Stdout:   "noisy player output",
		ExitCode: 0,
		Duration: 4213 * time.Millisecond,
	}

	r := o.Report()
	if r.TestName != "registration" || !r.Passed || r.ExitCode != 0 {
		t.Errorf("report = %+v", r)
	}
	if r.DurationSeconds != 4.21 {
		t.Errorf("DurationSeconds = %v, want 4.21", r.DurationSeconds)
	}
	if r.FormXMLSizeBytes != len(o.FormXML) {
		t.Errorf("FormXMLSizeBytes = %d", r.FormXMLSizeBytes)
	}
}

func TestOutcome_ReportOmitsDiagnostics(t *testing.T) {
	o := &Outcome{
		TestName: "close-case",
		ExitCode: -1,
		Err:      "Test timed out after 120 seconds",
		Stdout:   "partial output",
		Stderr:   "stack trace",
	}

	data, err := json.Marshal(o.Report())
	if err != nil {
		t.Fatal(err)
	}

	s := string(data)
	for _, forbidden := range []string{"partial output", "stack trace", "stdout", "stderr"} {
		if strings.Contains(s, forbidden) {
			t.Errorf("report leaked diagnostics: %s", s)
		}
	}
	if !strings.Contains(s, `"error":"Test timed out after 120 seconds"`) {
		t.Errorf("report = %s", s)
	}
	// Empty XML means no size field at all.
	if strings.Contains(s, "form_xml_size_bytes") {
		t.Errorf("report = %s", s)
	}
}

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Fatal("version is empty")
	}
	if parts := strings.Split(Version, "."); len(parts) != 3 {
		t.Errorf("version %q is not semver-shaped", Version)
	}
}
