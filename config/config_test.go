package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NetworkName != NetworkMain {
		t.Fatalf("default network = %q, want %q", cfg.NetworkName, NetworkMain)
	}
	if cfg.SnapshotInterval != 1000 {
		t.Fatalf("default snapshot interval = %d", cfg.SnapshotInterval)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	// Reloading reads the persisted file back.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *again != *cfg {
		t.Fatalf("reload mismatch: %+v != %+v", again, cfg)
	}
}

func TestLoadFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("MetricsAddress = \":9464\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NetworkName != NetworkMain {
		t.Fatalf("network fallback = %q", cfg.NetworkName)
	}
	if cfg.DataDir == "" {
		t.Fatal("data dir fallback not applied")
	}
	if cfg.MetricsAddress != ":9464" {
		t.Fatalf("metrics address = %q", cfg.MetricsAddress)
	}
}

func TestValidateRejectsUnknownNetwork(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("NetworkName = \"simnet\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown network to be rejected")
	}
}
