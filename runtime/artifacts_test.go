package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/formward/formward/player"
	"github.com/formward/formward/workspace"
)

// fakeMirror is an in-memory ArtifactMirror.
type fakeMirror struct {
	objects  map[string][]byte
	fetchErr error
	stores   int
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{objects: map[string][]byte{}}
}

func (f *fakeMirror) Fetch(_ context.Context, key string) ([]byte, bool, error) {
	if f.fetchErr != nil {
		return nil, false, f.fetchErr
	}
	data, ok := f.objects[key]
	return data, ok, nil
}

func (f *fakeMirror) Store(_ context.Context, key string, data []byte) error {
	f.stores++
	f.objects[key] = data
	return nil
}

func TestEnsure_MirrorHitAvoidsSource(t *testing.T) {
	mirror := newFakeMirror()
	mirror.objects[workspace.AppKey("demo", "app1")] = []byte("mirrored-ccz")
	mirror.objects[workspace.RestoreKey("demo", "app1", "worker1")] = []byte("<mirrored/>")

	// Source that fails loudly if consulted.
	source := &fakeSource{fetchErr: errors.New("should not be called"), restoreErr: errors.New("should not be called")}

	cfg := newTestConfig(t, &fakePlayer{result: &player.Result{Stdout: formXML}}, source)
	cfg.Mirror = mirror

	orch, _ := NewOrchestrator(cfg)
	out := orch.Execute(t.Context())

	if !out.Passed {
		t.Fatalf("Passed = false, Err = %q", out.Err)
	}
	if !cfg.Workspace.HasAppCCZ("demo", "app1") {
		t.Error("mirrored app package not cached locally")
	}
}

func TestEnsure_DownloadPopulatesMirror(t *testing.T) {
	mirror := newFakeMirror()
	source := &fakeSource{ccz: []byte("ccz"), restore: []byte("<r/>")}

	cfg := newTestConfig(t, &fakePlayer{result: &player.Result{Stdout: formXML}}, source)
	cfg.Mirror = mirror

	orch, _ := NewOrchestrator(cfg)
	out := orch.Execute(t.Context())

	if !out.Passed {
		t.Fatalf("Passed = false, Err = %q", out.Err)
	}
	if mirror.stores != 2 {
		t.Errorf("mirror stores = %d, want 2", mirror.stores)
	}
	if string(mirror.objects[workspace.AppKey("demo", "app1")]) != "ccz" {
		t.Errorf("mirror objects = %v", mirror.objects)
	}
}

func TestEnsure_MirrorErrorFallsBackToSource(t *testing.T) {
	mirror := newFakeMirror()
	mirror.fetchErr = errors.New("mirror down")
	source := &fakeSource{ccz: []byte("ccz"), restore: []byte("<r/>")}

	cfg := newTestConfig(t, &fakePlayer{result: &player.Result{Stdout: formXML}}, source)
	cfg.Mirror = mirror

	orch, _ := NewOrchestrator(cfg)
	out := orch.Execute(t.Context())

	if !out.Passed {
		t.Fatalf("mirror error must not fail the run, Err = %q", out.Err)
	}
}
