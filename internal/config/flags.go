package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagScheme   = flag.String("scheme", "", "Subdivision scheme (catmull-clark, loop, butterfly)")
	flagLevels   = flag.Int("levels", -1, "Subdivision levels")
	flagParallel = flag.Bool("parallel", false, "Subdivide on a worker pool")
	flagWorkers  = flag.Int("workers", 0, "Worker count (0 = config value)")
	flagNoGPU    = flag.Bool("no-gpu", false, "Skip GPU uploads")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after the flags.
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
	if *flagScheme != "" {
		cfg.Subdivision.Scheme = *flagScheme
	}
	if *flagLevels >= 0 {
		cfg.Subdivision.Levels = *flagLevels
	}
	if *flagParallel {
		cfg.Subdivision.Parallel = true
	}
	if *flagWorkers > 0 {
		cfg.Subdivision.Workers = *flagWorkers
	}
	if *flagNoGPU {
		cfg.GPU.Enabled = false
	}
}
