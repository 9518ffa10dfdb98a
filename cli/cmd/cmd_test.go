package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/formward/formward/testdef"
)

func TestReadOnlyFlags_IncludesFormat(t *testing.T) {
	hasFormat := false
	for _, f := range ReadOnlyFlags() {
		if f.Names()[0] == "format" {
			hasFormat = true
			break
		}
	}
	if !hasFormat {
		t.Error("ReadOnlyFlags should include --format")
	}
}

func newInitApp() *cli.App {
	return &cli.App{
		Name:           "formward",
		Commands:       []*cli.Command{initCommand()},
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func TestInit_WritesSkeleton(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := newInitApp().Run([]string{"formward", "init"}); err != nil {
		t.Fatalf("init: %v", err)
	}

	data, err := os.ReadFile("test.yaml")
	if err != nil {
		t.Fatalf("read skeleton: %v", err)
	}
	if string(data) != testdef.Skeleton() {
		t.Error("skeleton content mismatch")
	}

	// Skeleton must be a loadable definition once filled in; parse it raw
	// to catch YAML syntax drift.
	if _, err := testdef.Parse(data); err != nil {
		t.Errorf("skeleton does not parse: %v", err)
	}
}

func TestInit_RefusesOverwriteWithoutForce(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(".", "test.yaml")
	if err := os.WriteFile(path, []byte("precious"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := newInitApp().Run([]string{"formward", "init"})
	if err == nil {
		t.Fatal("expected error for existing file")
	}
	var exitErr cli.ExitCoder
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != exitUsage {
		t.Errorf("err = %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "precious" {
		t.Error("existing file was overwritten")
	}

	if err := newInitApp().Run([]string{"formward", "init", "--force"}); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}
