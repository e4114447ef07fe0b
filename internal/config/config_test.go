package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Atlas.Width != 2048 {
		t.Errorf("expected atlas width 2048, got %d", cfg.Atlas.Width)
	}
	if cfg.Atlas.Height != 2048 {
		t.Errorf("expected atlas height 2048, got %d", cfg.Atlas.Height)
	}
	if cfg.Atlas.TexelsPerSlot != 8 {
		t.Errorf("expected 8 texels per slot, got %d", cfg.Atlas.TexelsPerSlot)
	}
	if cfg.Atlas.SlotAttribute != "_MATERIAL_SLOT" {
		t.Errorf("expected slot attribute _MATERIAL_SLOT, got %s", cfg.Atlas.SlotAttribute)
	}
	if cfg.Output.Overwrite {
		t.Error("expected overwrite to be false by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("atlas:\n  width: 1024\n  height: 1024\nlogging:\n  level: debug\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Atlas.Width != 1024 {
		t.Errorf("expected atlas width 1024, got %d", cfg.Atlas.Width)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unset keys keep their defaults.
	if cfg.Atlas.TexelsPerSlot != 8 {
		t.Errorf("expected texels per slot to keep default 8, got %d", cfg.Atlas.TexelsPerSlot)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
