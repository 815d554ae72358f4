package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mpath/internal/core/config"
	"mpath/internal/engine/collection"
	"mpath/internal/shared/observability"

	"github.com/spf13/cobra"
)

// cli holds the global flags and the state built from them before a command
// runs.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath   string
	paths        []string
	cwd          string
	recursive    bool
	liveScripts  bool
	logLevel     string
	logFormat    string
	metricsAddr  string
	otlpEndpoint string

	cfg             *config.Config
	cfgPath         string
	coll            *collection.Collection
	closeLogs       func()
	shutdownTracing func(context.Context) error
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "mpath",
		Short:         "Resolve MATLAB names over a search path",
		Long:          "mpath parses MATLAB sources into an object model and resolves names the way the MATLAB path does.",
		Version:       versionString,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.teardown(cmd.Context())
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to mpath.toml (default: searched upward from the current folder)")
	flags.StringArrayVar(&c.paths, "path", nil, "search path root, highest precedence first (repeatable, replaces config roots)")
	flags.StringVar(&c.cwd, "cwd", "", "working directory that takes precedence over every root")
	flags.BoolVar(&c.recursive, "recursive", false, "add every subfolder of each root")
	flags.BoolVar(&c.liveScripts, "live-scripts", false, "index .mlx files and plain-text live code")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug|info|warn|error")
	flags.StringVar(&c.logFormat, "log-format", "", "log format: text|json")
	flags.StringVar(&c.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.StringVar(&c.otlpEndpoint, "otlp-endpoint", "", "export traces to this OTLP/gRPC endpoint")

	root.AddCommand(
		newResolveCmd(c),
		newWhichCmd(c),
		newSourceCmd(c),
		newListCmd(c),
		newMembersCmd(c),
		newDumpCmd(c),
		newWatchCmd(c),
	)
	return root
}

// setup loads the configuration, applies flag overrides and builds the
// collection.
func (c *cli) setup(cmd *cobra.Command) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("detecting working directory: %w", err)
	}

	cfg, cfgPath, err := config.LoadOrDefault(c.configPath, wd)
	if err != nil {
		return err
	}
	config.ApplyEnvOverrides(cfg)
	if err := c.applyFlags(cmd, cfg); err != nil {
		return err
	}
	c.cfg = cfg
	c.cfgPath = cfgPath

	c.closeLogs = configureLogging(c.stderr, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := observability.InitTracing(cmd.Context(), cfg.Observability.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	c.shutdownTracing = shutdown

	coll, err := collection.New(collectionOptions(cfg), cfg.Paths.Roots...)
	if err != nil {
		return err
	}
	c.coll = coll
	return nil
}

func (c *cli) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("path") {
		roots := make([]string, 0, len(c.paths))
		for _, p := range c.paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				return fmt.Errorf("resolving path %q: %w", p, err)
			}
			roots = append(roots, abs)
		}
		cfg.Paths.Roots = roots
	}
	if flags.Changed("cwd") {
		cwd := c.cwd
		if cwd != "" {
			abs, err := filepath.Abs(cwd)
			if err != nil {
				return fmt.Errorf("resolving cwd %q: %w", cwd, err)
			}
			cwd = abs
		}
		cfg.Paths.Cwd = cwd
	}
	if flags.Changed("recursive") {
		cfg.Paths.Recursive = c.recursive
	}
	if flags.Changed("live-scripts") {
		cfg.Paths.LiveScripts = c.liveScripts
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = c.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = c.logFormat
	}
	if flags.Changed("metrics-addr") {
		cfg.Observability.MetricsAddr = c.metricsAddr
	}
	if flags.Changed("otlp-endpoint") {
		cfg.Observability.OTLPEndpoint = c.otlpEndpoint
	}
	return nil
}

func (c *cli) teardown(ctx context.Context) error {
	if c.coll != nil {
		c.coll.Close()
	}
	var err error
	if c.shutdownTracing != nil {
		err = c.shutdownTracing(ctx)
	}
	if c.closeLogs != nil {
		c.closeLogs()
	}
	return err
}

func collectionOptions(cfg *config.Config) collection.Options {
	return collection.Options{
		Recursive:        cfg.Paths.Recursive,
		ParseLiveScripts: cfg.Paths.LiveScripts,
		WorkingDir:       cfg.Paths.Cwd,
		Exclude: collection.Exclude{
			Dirs:  cfg.Exclude.Dirs,
			Files: cfg.Exclude.Files,
		},
		CacheCapacity:     cfg.Cache.Capacity,
		ScanCacheCapacity: cfg.Cache.ScanCapacity,
		Concurrency:       cfg.Cache.Concurrency,
	}
}
