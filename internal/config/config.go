// Package config handles optimizer configuration loading and management.
package config

// Config holds all optimizer settings.
type Config struct {
	Atlas   AtlasConfig   `yaml:"atlas"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// AtlasConfig holds texture atlas and parameter texture settings.
type AtlasConfig struct {
	Width         int    `yaml:"width"`           // atlas width in pixels
	Height        int    `yaml:"height"`          // atlas height in pixels
	TexelsPerSlot int    `yaml:"texels_per_slot"` // parameter texture texels per material slot
	SlotAttribute string `yaml:"slot_attribute"`  // per-vertex material slot attribute name
}

// OutputConfig holds output file settings.
type OutputConfig struct {
	Path      string `yaml:"path"`      // output file; empty derives from input
	Overwrite bool   `yaml:"overwrite"` // replace an existing output file
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Atlas: AtlasConfig{
			Width:         2048,
			Height:        2048,
			TexelsPerSlot: 8,
			SlotAttribute: "_MATERIAL_SLOT",
		},
		Output: OutputConfig{
			Path:      "",
			Overwrite: false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
