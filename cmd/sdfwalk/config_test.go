package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		t.Fatal(err)
	}
	err = os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		t.Fatal(err)
	}
}

func TestConfigSearch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sdfwalk.json"), `{"width": 320, "fps": 24, "stamp": true, "output": "renders"}`)
	scene := filepath.Join(root, "scenes", "deep", "a.sdf")
	writeFile(t, scene, "opaque(1, 0, 0) sphere(1);")

	s, err := parseArgs([]string{"-w", "640", scene}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if s.ConfigPath != filepath.Join(root, "sdfwalk.json") {
		t.Errorf("config not found, got path %q", s.ConfigPath)
	}
	if s.Width != 640 {
		t.Errorf("explicit flag must override config: width %d", s.Width)
	}
	if s.FPS != 24 || !s.Stamp || s.Output != "renders" {
		t.Errorf("config not applied: %+v", s)
	}
	if s.Height != 600 {
		t.Errorf("unset config field must keep default height, got %d", s.Height)
	}
}

func TestConfigPreference(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".sdfwalkrc"), `{"width": 100}`)
	writeFile(t, filepath.Join(root, "sub", ".sdfwalkrc"), `{"width": 200}`)
	writeFile(t, filepath.Join(root, "sub", "sdfwalk.json"), `{"width": 300}`)
	scene := filepath.Join(root, "sub", "a.sdf")
	writeFile(t, scene, "")
	s, err := parseArgs([]string{scene}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if s.Width != 300 {
		t.Errorf("want nearest sdfwalk.json to win, got width %d from %s", s.Width, s.ConfigPath)
	}

	s, err = parseArgs([]string{"-no-config", scene}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if s.Width != 800 || s.ConfigPath != "" {
		t.Errorf("-no-config: got width %d from %q", s.Width, s.ConfigPath)
	}

	explicit := filepath.Join(root, "custom.json")
	writeFile(t, explicit, `{"width": 42, "noCamera": true}`)
	s, err = parseArgs([]string{"-config", explicit, scene}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if s.Width != 42 || !s.NoCamera {
		t.Errorf("-config not applied: %+v", s)
	}
}

func TestParseArgsErrors(t *testing.T) {
	root := t.TempDir()
	scene := filepath.Join(root, "a.sdf")
	writeFile(t, scene, "")
	bad := filepath.Join(root, "bad.json")
	writeFile(t, bad, `{"width": "wide"}`)
	for _, args := range [][]string{
		{},
		{scene, scene},
		{"-fps", "0", scene},
		{"-fov", "180", scene},
		{"-w", "-1", scene},
		{"-duration", "-2", scene},
		{"-config", bad, scene},
		{"-config", filepath.Join(root, "missing.json"), scene},
	} {
		_, err := parseArgs(args, io.Discard)
		if err == nil {
			t.Errorf("%q: want error", args)
		}
	}
	_, err := parseArgs([]string{}, io.Discard)
	if !errors.Is(err, errUsage) {
		t.Errorf("want usage error, got %v", err)
	}
}

func TestLintScene(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.sdf")
	writeFile(t, good, "opaque(1, 0, 0) sphere(1);")
	bad := filepath.Join(dir, "bad.sdf")
	writeFile(t, bad, "opaque(1, 0, 0) sphre(1);")
	stdout := os.Stdout
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err == nil {
		os.Stdout = devnull
		defer func() { os.Stdout = stdout; devnull.Close() }()
	}
	if err := run([]string{"-no-config", "-lint", good}); err != nil {
		t.Errorf("clean scene: %v", err)
	}
	if err := run([]string{"-no-config", "-lint", bad}); err == nil {
		t.Error("want lint error for misspelled primitive")
	}
}
