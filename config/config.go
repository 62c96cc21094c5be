package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Networks the node can follow. The network selects the consensus
// parameter table.
const (
	NetworkMain    = "main"
	NetworkTest    = "test"
	NetworkRegTest = "regtest"
)

type Config struct {
	DataDir        string `toml:"DataDir"`
	NetworkName    string `toml:"NetworkName"`
	LogPath        string `toml:"LogPath"`
	LogEnvironment string `toml:"LogEnvironment"`
	MetricsAddress string `toml:"MetricsAddress"`

	// SnapshotInterval is the number of blocks between persisted state
	// snapshots. Zero disables periodic snapshots.
	SnapshotInterval int64 `toml:"SnapshotInterval"`
}

// Load loads the configuration from the given path. A missing file is
// created with defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = NetworkMain
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./tokenlayer-data"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the node cannot run with.
func (c *Config) Validate() error {
	switch c.NetworkName {
	case NetworkMain, NetworkTest, NetworkRegTest:
	default:
		return fmt.Errorf("config: unknown network %q", c.NetworkName)
	}
	if c.SnapshotInterval < 0 {
		return fmt.Errorf("config: negative snapshot interval %d", c.SnapshotInterval)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:          "./tokenlayer-data",
		NetworkName:      NetworkMain,
		LogEnvironment:   "production",
		MetricsAddress:   "",
		SnapshotInterval: 1000,
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
