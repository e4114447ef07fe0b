package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagAtlasSize = flag.Int("atlas-size", 0, "Atlas width/height in pixels (square)")
	flagOutput    = flag.String("o", "", "Output file path")
	flagOverwrite = flag.Bool("f", false, "Overwrite an existing output file")
)

// ParseFlags parses command-line flags. Subcommand binaries pass the
// arguments after the command word.
func ParseFlags(args []string) error {
	return flag.CommandLine.Parse(args)
}

// Args returns the non-flag arguments remaining after ParseFlags.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagAtlasSize > 0 {
		cfg.Atlas.Width = *flagAtlasSize
		cfg.Atlas.Height = *flagAtlasSize
	}
	if *flagOutput != "" {
		cfg.Output.Path = *flagOutput
	}
	if *flagOverwrite {
		cfg.Output.Overwrite = true
	}
}
