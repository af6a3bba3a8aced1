package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hazetools/dehaze/internal/dcp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoad_PartialOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "partial.yaml", `
algorithm:
  omega: 0.9
refinement:
  guided_filter:
    radius: 30
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Algorithm.Omega != 0.9 {
		t.Errorf("omega: got %g, want 0.9", cfg.Algorithm.Omega)
	}
	if cfg.Refinement.GuidedFilter.Radius != 30 {
		t.Errorf("radius: got %d, want 30", cfg.Refinement.GuidedFilter.Radius)
	}

	// Untouched keys keep their defaults.
	def := dcp.DefaultConfig()
	if cfg.Algorithm.PatchSize != def.Algorithm.PatchSize {
		t.Errorf("patch_size: got %d, want default %d", cfg.Algorithm.PatchSize, def.Algorithm.PatchSize)
	}
	if cfg.Refinement.SoftMatting != def.Refinement.SoftMatting {
		t.Errorf("soft matting config was modified: %+v", cfg.Refinement.SoftMatting)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeFile(t, "full.yaml", `
algorithm:
  patch_size: 9
  omega: 0.85
  atmospheric_light_percentile: 0.002
  t0: 0.2
refinement:
  method: soft_matting
  guided_filter:
    radius: 45
    epsilon: 0.01
  soft_matting:
    lambda: 0.01
    epsilon: 1.0e-6
    win_size: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Refinement.Method != dcp.MethodSoftMatting {
		t.Errorf("method: got %q", cfg.Refinement.Method)
	}
	if cfg.Refinement.SoftMatting.WinSize != 5 || cfg.Refinement.SoftMatting.Lambda != 0.01 {
		t.Errorf("soft matting: got %+v", cfg.Refinement.SoftMatting)
	}
	if cfg.Algorithm.T0 != 0.2 {
		t.Errorf("t0: got %g, want 0.2", cfg.Algorithm.T0)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "{{invalid"},
		{"invalid parameter", "algorithm:\n  patch_size: 4\n"},
		{"negative epsilon", "refinement:\n  guided_filter:\n    epsilon: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, "bad.yaml", tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadExperiment(t *testing.T) {
	path := writeFile(t, "experiment.yaml", `
algorithm:
  patch_size: 3
parameter_grid:
  algorithm.omega: [0.8, 0.9, 0.95]
  refinement.guided_filter.radius: [30, 60]
`)

	base, grid, err := LoadExperiment(path)
	if err != nil {
		t.Fatalf("LoadExperiment failed: %v", err)
	}
	if base.Algorithm.PatchSize != 3 {
		t.Errorf("base patch_size: got %d, want 3", base.Algorithm.PatchSize)
	}
	if len(grid) != 2 {
		t.Fatalf("grid keys: got %d, want 2", len(grid))
	}
	if len(grid["algorithm.omega"]) != 3 || len(grid["refinement.guided_filter.radius"]) != 2 {
		t.Errorf("grid values: got %+v", grid)
	}
}

func TestLoadExperiment_NoGrid(t *testing.T) {
	path := writeFile(t, "nogrid.yaml", "algorithm:\n  omega: 0.9\n")

	base, grid, err := LoadExperiment(path)
	if err != nil {
		t.Fatalf("LoadExperiment failed: %v", err)
	}
	if base.Algorithm.Omega != 0.9 {
		t.Errorf("omega: got %g", base.Algorithm.Omega)
	}
	if len(grid) != 0 {
		t.Errorf("grid: got %+v, want empty", grid)
	}
}
