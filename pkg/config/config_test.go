package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Expected defaults for a missing file, got error: %v", err)
	}
	def := DefaultConfig()
	if cfg.Processing.Connectivity != def.Processing.Connectivity {
		t.Errorf("Expected default connectivity %d, got %d",
			def.Processing.Connectivity, cfg.Processing.Connectivity)
	}
	if cfg.Radius.Max != def.Radius.Max || cfg.Radius.Sides != def.Radius.Sides {
		t.Errorf("Expected default radius settings, got %+v", cfg.Radius)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir, err := os.MkdirTemp("", "config-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Processing.NumCores = 3
	cfg.Processing.Connectivity = 6
	cfg.Processing.MinBranchPoints = 7
	cfg.Radius.Max = 12.5
	cfg.Radius.Min = 0.5
	cfg.Curve.SmoothSigma = 4.0
	cfg.Output.SaveIntermediaryResults = true

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Processing.NumCores != 3 {
		t.Errorf("Expected 3 cores, got %d", loaded.Processing.NumCores)
	}
	if loaded.Processing.Connectivity != 6 {
		t.Errorf("Expected connectivity 6, got %d", loaded.Processing.Connectivity)
	}
	if loaded.Processing.MinBranchPoints != 7 {
		t.Errorf("Expected 7 branch points, got %d", loaded.Processing.MinBranchPoints)
	}
	if loaded.Radius.Max != 12.5 || loaded.Radius.Min != 0.5 {
		t.Errorf("Expected radius 12.5/0.5, got %v/%v", loaded.Radius.Max, loaded.Radius.Min)
	}
	if loaded.Curve.SmoothSigma != 4.0 {
		t.Errorf("Expected smooth sigma 4.0, got %v", loaded.Curve.SmoothSigma)
	}
	if !loaded.Output.SaveIntermediaryResults {
		t.Error("Expected intermediary results flag to round trip")
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	dir, err := os.MkdirTemp("", "config-default")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "config.yaml")

	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("Failed to create default config: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load created config: %v", err)
	}
	def := DefaultConfig()
	if loaded.Radius.Sides != def.Radius.Sides {
		t.Errorf("Expected %d sides, got %d", def.Radius.Sides, loaded.Radius.Sides)
	}
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	dir, err := os.MkdirTemp("", "config-bad")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("processing: [not: a map"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected an error for malformed YAML")
	}
}
