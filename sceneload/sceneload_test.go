package sceneload

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soypat/sdfwalk"
	"github.com/soypat/sdfwalk/scenelang"
)

const (
	goodScene   = "opaque(1, 0, 0) sphere(1);"
	otherScene  = "opaque(0, 0, 1) box(1, 1, 1);"
	brokenScene = "opaque(1, 0, 0) sphere(1"
)

var noRetry = Options{RetryDelays: []time.Duration{}}

// writeScene writes src to path and sets its modification time to mod.
func writeScene(t *testing.T, path, src string, mod time.Time) {
	t.Helper()
	err := os.WriteFile(path, []byte(src), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	err = os.Chtimes(path, mod, mod)
	if err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.sdf")
	writeScene(t, path, goodScene, time.Now())
	sd, err := Load(path, noRetry)
	if err != nil {
		t.Fatal(err)
	}
	if sd.Fragment == "" || sd.Vertex == "" {
		t.Error("empty shader sources")
	}

	writeScene(t, path, brokenScene, time.Now())
	_, err = Load(path, noRetry)
	if !errors.Is(err, scenelang.ErrParse) {
		t.Errorf("want parse error, got %v", err)
	}

	_, err = Load(filepath.Join(t.TempDir(), "missing.sdf"), noRetry)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("want not exist error, got %v", err)
	}
}

func TestLoadIfUpdated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.sdf")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writeScene(t, path, goodScene, t0)

	sd, mod, updated, err := LoadIfUpdated(path, time.Time{}, noRetry)
	if err != nil || !updated || sd == nil {
		t.Fatalf("first load: sd=%v updated=%v err=%v", sd, updated, err)
	}
	if !mod.Equal(t0) {
		t.Errorf("want mod time %v, got %v", t0, mod)
	}

	sd, mod2, updated, err := LoadIfUpdated(path, mod, noRetry)
	if err != nil || updated || sd != nil {
		t.Errorf("unchanged file: sd=%v updated=%v err=%v", sd, updated, err)
	}
	if !mod2.Equal(mod) {
		t.Errorf("unchanged file should keep last seen time, got %v", mod2)
	}

	t1 := t0.Add(time.Second)
	writeScene(t, path, brokenScene, t1)
	sd, mod, updated, err = LoadIfUpdated(path, mod, noRetry)
	if !updated || err == nil || sd != nil {
		t.Errorf("broken file: sd=%v updated=%v err=%v", sd, updated, err)
	}
	if !mod.Equal(t1) {
		t.Errorf("want mod time %v, got %v", t1, mod)
	}
}

func TestLoadIfUpdatedRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sdf")
	opts := Options{RetryDelays: []time.Duration{time.Millisecond, time.Millisecond}}
	start := time.Now()
	_, _, updated, err := LoadIfUpdated(path, time.Time{}, opts)
	if updated || !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("want not exist error, got updated=%v err=%v", updated, err)
	}
	if elapsed := time.Since(start); elapsed < 2*time.Millisecond {
		t.Errorf("retries did not wait, elapsed %v", elapsed)
	}
}

func TestLoaderKeepsLastGoodScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.sdf")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writeScene(t, path, goodScene, t0)
	l, err := NewLoader(path, noRetry)
	if err != nil {
		t.Fatal(err)
	}
	first := l.Current()
	if first == nil {
		t.Fatal("nil initial scene")
	}
	if l.Path() != path {
		t.Errorf("want path %q, got %q", path, l.Path())
	}

	replaced, err := l.Poll()
	if replaced || err != nil {
		t.Errorf("unchanged file: replaced=%v err=%v", replaced, err)
	}

	writeScene(t, path, brokenScene, t0.Add(time.Second))
	replaced, err = l.Poll()
	if replaced || !errors.Is(err, scenelang.ErrParse) {
		t.Errorf("broken file: replaced=%v err=%v", replaced, err)
	}
	if l.Current() != first {
		t.Error("failed reload replaced the current scene")
	}
	// The failure is reported once per modification.
	replaced, err = l.Poll()
	if replaced || err != nil {
		t.Errorf("second poll of broken file: replaced=%v err=%v", replaced, err)
	}
	if err := l.Reload(); err == nil {
		t.Error("forced reload of broken file should fail")
	}
	if l.Current() != first {
		t.Error("failed forced reload replaced the current scene")
	}

	writeScene(t, path, otherScene, t0.Add(2*time.Second))
	replaced, err = l.Poll()
	if !replaced || err != nil {
		t.Fatalf("fixed file: replaced=%v err=%v", replaced, err)
	}
	if l.Current() == first || l.Current().Fragment == first.Fragment {
		t.Error("scene was not replaced")
	}
}

func TestNewLoaderFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.sdf")
	writeScene(t, path, brokenScene, time.Now())
	_, err := NewLoader(path, noRetry)
	if !errors.Is(err, scenelang.ErrParse) {
		t.Errorf("want parse error, got %v", err)
	}
}

func TestExampleScene(t *testing.T) {
	sd, err := Load(filepath.Join("..", "examples", "hall.sdf"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if sd.Camera == nil || sd.Camera.Duration() != 10 {
		t.Errorf("want 10 second camera, got %+v", sd.Camera)
	}
	if !sd.HasTransparent() {
		t.Error("want transparent entrypoint")
	}
	if issues := sd.Lint(); len(issues) != 0 {
		t.Errorf("unexpected lint issues: %v", issues)
	}
	sd, err = Load(filepath.Join("..", "examples", "hall.sdf"), Options{Scene: sdfwalk.Options{DisableCamera: true}})
	if err != nil {
		t.Fatal(err)
	}
	if sd.Camera != nil {
		t.Error("camera should be disabled")
	}
}
