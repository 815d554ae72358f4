package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mpath/internal/core/errors"

	"github.com/BurntSushi/toml"
)

// Load reads path, fills defaults, resolves relative paths against the
// file's directory and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeConfiguration, "read config"), errors.CtxPath, path)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeConfiguration, "decode config"), errors.CtxPath, path)
	}

	applyDefaults(&cfg)
	normalize(&cfg)
	resolvePaths(&cfg, filepath.Dir(path))

	if err := validateVersion(&cfg); err != nil {
		return nil, configError(err, path)
	}
	if err := validatePaths(&cfg); err != nil {
		return nil, configError(err, path)
	}
	if err := validateExclude(&cfg); err != nil {
		return nil, configError(err, path)
	}
	if err := validateCache(&cfg); err != nil {
		return nil, configError(err, path)
	}
	if err := validateLog(&cfg); err != nil {
		return nil, configError(err, path)
	}

	return &cfg, nil
}

func configError(err error, path string) error {
	return errors.AddContext(errors.Wrap(err, errors.CodeConfiguration, "invalid config"), errors.CtxPath, path)
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Cache.Capacity <= 0 {
		cfg.Cache.Capacity = 10_000
	}
	if cfg.Cache.ScanCapacity <= 0 {
		cfg.Cache.ScanCapacity = 64
	}
	if cfg.Cache.Concurrency <= 0 {
		cfg.Cache.Concurrency = 8
	}
	// Default debounce if not set.
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if cfg.Watch.RescanInterval == 0 {
		cfg.Watch.RescanInterval = time.Second
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	if strings.TrimSpace(cfg.Log.Format) == "" {
		cfg.Log.Format = "text"
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "resources"}
	}
}

func normalize(cfg *Config) {
	roots := make([]string, 0, len(cfg.Paths.Roots))
	for _, r := range cfg.Paths.Roots {
		if r = strings.TrimSpace(r); r != "" {
			roots = append(roots, r)
		}
	}
	cfg.Paths.Roots = roots
	cfg.Paths.Cwd = strings.TrimSpace(cfg.Paths.Cwd)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Observability.MetricsAddr = strings.TrimSpace(cfg.Observability.MetricsAddr)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
}

func resolvePaths(cfg *Config, base string) {
	for i, r := range cfg.Paths.Roots {
		cfg.Paths.Roots[i] = ResolveRelative(base, r)
	}
	if cfg.Paths.Cwd != "" {
		cfg.Paths.Cwd = ResolveRelative(base, cfg.Paths.Cwd)
	}
}

// LoadOrDefault loads path when it is set, else the nearest mpath.toml above
// start, else the defaults. The returned string is the file used, if any.
func LoadOrDefault(path, start string) (*Config, string, error) {
	if path == "" {
		found, ok := FindConfig(start)
		if !ok {
			return DefaultConfig(), "", nil
		}
		path = found
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Summary is a one-line description for logs.
func (c *Config) Summary() string {
	return fmt.Sprintf("roots=%d recursive=%t live_scripts=%t cwd=%q", len(c.Paths.Roots), c.Paths.Recursive, c.Paths.LiveScripts, c.Paths.Cwd)
}
