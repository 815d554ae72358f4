// Package config loads mpath.toml.
package config

import "time"

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "mpath.toml"

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	Exclude       Exclude       `toml:"exclude"`
	Cache         Cache         `toml:"cache"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
	Log           Log           `toml:"log"`
}

// Paths describes the MATLAB search path. Relative roots are resolved
// against the directory holding the configuration file.
type Paths struct {
	Roots       []string `toml:"roots"`
	Cwd         string   `toml:"cwd"`
	Recursive   bool     `toml:"recursive"`
	LiveScripts bool     `toml:"live_scripts"`
}

// Exclude holds glob patterns matched against folder and file base names.
type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Cache struct {
	Capacity     int `toml:"capacity"`
	ScanCapacity int `toml:"scan_capacity"`
	Concurrency  int `toml:"concurrency"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// RescanInterval is the minimum spacing between full rescans.
	RescanInterval time.Duration `toml:"rescan_interval"`
}

type Observability struct {
	MetricsAddr   string `toml:"metrics_addr"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	EnableTracing bool   `toml:"enable_tracing"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
