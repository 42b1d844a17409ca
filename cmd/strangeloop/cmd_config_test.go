package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/strangeloop/internal/config"
	"gopkg.in/yaml.v3"
)

func TestConfigList(t *testing.T) {
	isolateHome(t, t.TempDir())

	out, err := execute(t, newConfigCmd(), "config", "list")
	if err != nil {
		t.Fatalf("config list failed: %v", err)
	}
	var cfg config.Config
	if err := yaml.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, out)
	}
	if cfg.Simulation.GridSize != 40 || cfg.Simulation.CanvasSize != 600 {
		t.Errorf("simulation = %+v", cfg.Simulation)
	}

	out, err = execute(t, newConfigCmd(), "config", "list", "--json")
	if err != nil {
		t.Fatalf("config list --json failed: %v", err)
	}
	cfg = config.Config{}
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if cfg.Smoothing.Retain != 0.95 || cfg.Smoothing.Blend != 0.05 {
		t.Errorf("smoothing = %+v", cfg.Smoothing)
	}
}

func TestConfigList_UsesConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	path := filepath.Join(tmpDir, "exhibit.yaml")
	writeFile(t, path, "simulation:\n  grid_size: 12\n  seed: 99\n")

	out, err := execute(t, newConfigCmd(), "config", "list", "--json", "--config", path)
	if err != nil {
		t.Fatalf("config list failed: %v", err)
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Simulation.GridSize != 12 || cfg.Simulation.Seed != 99 {
		t.Errorf("simulation = %+v", cfg.Simulation)
	}
	// Unset keys keep their defaults.
	if cfg.Simulation.FrameRate != 60 {
		t.Errorf("frame_rate = %d, want 60", cfg.Simulation.FrameRate)
	}
}

func TestConfigValidate(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	good := filepath.Join(tmpDir, "good.yaml")
	writeFile(t, good, "simulation:\n  grid_size: 20\n")
	bad := filepath.Join(tmpDir, "bad.yaml")
	writeFile(t, bad, "simulation:\n  grid_size: 0\n")
	broken := filepath.Join(tmpDir, "broken.yaml")
	writeFile(t, broken, "simulation: [\n")

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    string
	}{
		{"effective", []string{"config", "validate"}, false, "effective configuration is valid"},
		{"good file", []string{"config", "validate", good}, false, good + " is valid"},
		{"bad value", []string{"config", "validate", bad}, true, ""},
		{"unparseable", []string{"config", "validate", broken}, true, ""},
		{"missing", []string{"config", "validate", filepath.Join(tmpDir, "none.yaml")}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, newConfigCmd(), tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.want != "" && !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestConfigValidate_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	bad := filepath.Join(tmpDir, "bad.yaml")
	writeFile(t, bad, "simulation:\n  frame_rate: 0\n")

	out, err := execute(t, newConfigCmd(), "config", "validate", bad, "--json")
	if err == nil {
		t.Fatal("expected error for frame_rate 0")
	}
	var got map[string]interface{}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["valid"] != false || got["error"] == "" {
		t.Errorf("got %v", got)
	}
}

func TestConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out, err := execute(t, newConfigCmd(), "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(tmpDir, "home", ".strangeloop", "config.yaml")
	if strings.TrimSpace(out) != want {
		t.Errorf("path = %q, want %q", strings.TrimSpace(out), want)
	}
}
