package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type sample struct {
	Name     string  `json:"name"`
	Passed   bool    `json:"passed"`
	Duration float64 `json:"duration_seconds"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"table", FormatTable, false},
		{"yaml", FormatYAML, false},
		{"JSON", FormatJSON, false},
		{"", "", false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) err = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, true, &buf)

	if err := r.Render(sample{Name: "registration", Passed: true, Duration: 4.2}); err != nil {
		t.Fatalf("render: %v", err)
	}

	var got sample
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if got.Name != "registration" || !got.Passed {
		t.Errorf("got = %+v", got)
	}
}

func TestRender_YAML(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatYAML, true, &buf)

	if err := r.Render(sample{Name: "registration"}); err != nil {
		t.Fatalf("render: %v", err)
	}

	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, buf.String())
	}
}

func TestRender_StructTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	if err := r.Render(sample{Name: "registration", Passed: true, Duration: 4.2}); err != nil {
		t.Fatalf("render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"name:", "registration", "passed:", "true"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRender_SliceTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	rows := []sample{
		{Name: "first", Passed: true},
		{Name: "second", Passed: false},
	}
	if err := r.Render(rows); err != nil {
		t.Fatalf("render: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "name") {
		t.Errorf("header = %q", lines[0])
	}
}

func TestRender_EmptySlice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	if err := r.Render([]sample{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "(no results)") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestStatusLine_NoColor(t *testing.T) {
	r := NewRendererWithWriter(FormatTable, true, nil)

	got := r.StatusLine(true, "registration", 4.21, "")
	if got != "PASSED  registration (4.21s)" {
		t.Errorf("pass line = %q", got)
	}

	got = r.StatusLine(false, "close-case", 120, "Test timed out after 120 seconds")
	if got != "FAILED  close-case (120.00s): Test timed out after 120 seconds" {
		t.Errorf("fail line = %q", got)
	}
}

func TestStatusLine_Colored(t *testing.T) {
	r := NewRendererWithWriter(FormatTable, false, nil)

	got := r.StatusLine(true, "registration", 1.5, "")
	if !strings.Contains(got, "PASSED") || !strings.Contains(got, "registration") {
		t.Errorf("line = %q", got)
	}
}

func TestPrintStatusLine(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	r.PrintStatusLine(true, "registration", 1, "")
	if buf.String() != "PASSED  registration (1.00s)\n" {
		t.Errorf("output = %q", buf.String())
	}
}
