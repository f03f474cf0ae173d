package config

import "flag"

var (
	flagConfig      = flag.String("config", "", "Path to config file (.yaml, .yml or INI)")
	flagMotion      = flag.String("motion", "", "Glob of motion .npz archives")
	flagDebug       = flag.Bool("debug", false, "Enable debug logging")
	flagFloat16     = flag.Bool("float16", false, "Write half-float point caches")
	flagWorkers     = flag.Int("workers", -1, "Parallel conversions (0 = GOMAXPROCS)")
	flagChunkFrames = flag.Int("chunk-frames", 0, "Frames evaluated per batch")
	flagLogFile     = flag.String("log-file", "", "Also log to this rotating file")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagMotion != "" {
		cfg.Motion.Pattern = *flagMotion
	}
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagFloat16 {
		cfg.Output.Float16 = true
	}
	if *flagWorkers >= 0 {
		cfg.Output.Workers = *flagWorkers
	}
	if *flagChunkFrames > 0 {
		cfg.Output.ChunkFrames = *flagChunkFrames
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
}
