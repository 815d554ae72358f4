package config

import (
	"fmt"
	"os"

	"github.com/gobwas/glob"
)

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validatePaths(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Paths.Roots))
	for i, root := range cfg.Paths.Roots {
		if seen[root] {
			return fmt.Errorf("paths.roots[%d] %q is listed twice", i, root)
		}
		seen[root] = true
	}
	return nil
}

func validateExclude(cfg *Config) error {
	for i, p := range cfg.Exclude.Dirs {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("exclude.dirs[%d] %q: %w", i, p, err)
		}
	}
	for i, p := range cfg.Exclude.Files {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("exclude.files[%d] %q: %w", i, p, err)
		}
	}
	return nil
}

func validateCache(cfg *Config) error {
	if cfg.Cache.Concurrency > 256 {
		return fmt.Errorf("cache.concurrency must be <= 256, got %d", cfg.Cache.Concurrency)
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.RescanInterval < 0 {
		return fmt.Errorf("watch.rescan_interval must not be negative")
	}
	return nil
}

func validateLog(cfg *Config) error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be one of: text, json")
	}
	return nil
}

// Validate runs every check and reports all problems, including roots that
// are missing on disk, which Load leaves to the collection.
func Validate(cfg *Config) []error {
	var errs []error

	if err := validateVersion(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validatePaths(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateExclude(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateCache(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateLog(cfg); err != nil {
		errs = append(errs, err)
	}

	// Path verification
	for i, root := range cfg.Paths.Roots {
		if problem := dirProblem(root); problem != "" {
			errs = append(errs, fmt.Errorf("paths.roots[%d] %q %s", i, root, problem))
		}
	}
	if cfg.Paths.Cwd != "" {
		if problem := dirProblem(cfg.Paths.Cwd); problem != "" {
			errs = append(errs, fmt.Errorf("paths.cwd %q %s", cfg.Paths.Cwd, problem))
		}
	}
	return errs
}

// dirProblem describes why path cannot serve as a folder, or returns "".
func dirProblem(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "does not exist"
	}
	if !info.IsDir() {
		return "is not a directory"
	}
	return ""
}
