// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Drill DrillConfig `toml:"drill"`
	Stats StatsConfig `toml:"stats"`
}

// DrillConfig maps drill-related settings.
type DrillConfig struct {
	Tables   *[]int    `toml:"tables"`
	Ops      *[]string `toml:"ops"`
	Size     *int      `toml:"size"`
	Duration *string   `toml:"duration"`
	Backend  *string   `toml:"backend"`
	StateDir *string   `toml:"state-dir"`
}

// StatsConfig maps stats-related settings.
type StatsConfig struct {
	Weak *int `toml:"weak"`
	Top  *int `toml:"top"`
	Last *int `toml:"last"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
