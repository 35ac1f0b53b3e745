package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the adapter's file configuration. Zero values fall back to the
// defaults, so a config file only needs the sections it changes.
type Config struct {
	Kernel KernelConfig `toml:"kernel"`
	Plot   PlotConfig   `toml:"plot"`
	Log    LogConfig    `toml:"log"`
}

type KernelConfig struct {
	Name        string `toml:"name"`
	DisplayName string `toml:"display_name"`
}

type PlotConfig struct {
	Width  float64 `toml:"width"`  // inches
	Height float64 `toml:"height"` // inches
	DPI    float64 `toml:"dpi"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func DefaultConfig() Config {
	return Config{
		Kernel: KernelConfig{
			Name:        "webr",
			DisplayName: "R (webR)",
		},
		Plot: PlotConfig{
			Width:  7,
			Height: 5.25,
			DPI:    72,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads a TOML file and overlays it on the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %s: unknown key %s", path, undecoded[0])
	}
	return cfg, nil
}
