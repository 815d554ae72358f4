package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: MPATH_[SECTION]_[KEY] (e.g., MPATH_PATHS_RECURSIVE).
func ApplyEnvOverrides(cfg *Config) {
	// Paths
	setEnvList(&cfg.Paths.Roots, "MPATH_PATHS_ROOTS")
	setEnvString(&cfg.Paths.Cwd, "MPATH_PATHS_CWD")
	setEnvBool(&cfg.Paths.Recursive, "MPATH_PATHS_RECURSIVE")
	setEnvBool(&cfg.Paths.LiveScripts, "MPATH_PATHS_LIVE_SCRIPTS")

	// Cache
	setEnvInt(&cfg.Cache.Capacity, "MPATH_CACHE_CAPACITY")
	setEnvInt(&cfg.Cache.ScanCapacity, "MPATH_CACHE_SCAN_CAPACITY")
	setEnvInt(&cfg.Cache.Concurrency, "MPATH_CACHE_CONCURRENCY")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "MPATH_WATCH_DEBOUNCE")
	setEnvDuration(&cfg.Watch.RescanInterval, "MPATH_WATCH_RESCAN_INTERVAL")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "MPATH_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "MPATH_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "MPATH_OBSERVABILITY_ENABLE_TRACING")

	// Log
	setEnvString(&cfg.Log.Level, "MPATH_LOG_LEVEL")
	setEnvString(&cfg.Log.Format, "MPATH_LOG_FORMAT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

// setEnvList splits on the platform list separator, as MATLABPATH does.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		var out []string
		for _, part := range strings.Split(val, string(filepath.ListSeparator)) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		slog.Debug("applying env override", "key", key, "entries", len(out))
		*target = out
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
