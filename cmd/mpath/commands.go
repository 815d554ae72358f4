package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"mpath/internal/core/config"
	"mpath/internal/core/errors"
	"mpath/internal/core/watcher"
	"mpath/internal/engine/collection"
	"mpath/internal/engine/model"
	"mpath/internal/shared/observability"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

func newResolveCmd(c *cli) *cobra.Command {
	var from, format string
	cmd := &cobra.Command{
		Use:   "resolve NAME",
		Short: "Resolve a name and print the object it refers to",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(format, "text", "json", "yaml")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, span := observability.Tracer.Start(cmd.Context(), "cli.resolve")
			defer span.End()
			span.SetAttributes(attribute.String("name", args[0]))

			var (
				obj *model.Object
				err error
			)
			if from != "" {
				caller, absErr := filepath.Abs(from)
				if absErr != nil {
					return fmt.Errorf("resolving --from %q: %w", from, absErr)
				}
				obj, err = c.coll.ResolveFrom(caller, args[0])
			} else {
				obj, err = c.coll.Resolve(args[0])
			}
			if err != nil {
				return err
			}

			if format == "text" {
				formatObjectText(c.stdout, obj)
				return nil
			}
			return writeStructured(c.stdout, format, newView(obj))
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "resolve as seen from this calling file")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text|json|yaml")
	return cmd
}

func newWhichCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "which NAME...",
		Short: "Print the file or folder each name resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var missing []string
			for _, name := range args {
				path, ok := c.coll.GetPath(name)
				if !ok {
					missing = append(missing, name)
					fmt.Fprintf(c.stdout, "'%s' not found.\n", name)
					continue
				}
				fmt.Fprintln(c.stdout, path)
			}
			if len(missing) > 0 {
				return errors.NotFound(strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

func newSourceCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "source NAME",
		Short: "Print the source code of the object a name resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := c.coll.Resolve(args[0])
			if err != nil {
				return err
			}
			src, err := c.coll.Source(obj)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, src)
			return nil
		},
	}
}

func newListCmd(c *cli) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every name visible on the search path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range c.coll.Names() {
				if strings.HasPrefix(name, prefix) {
					fmt.Fprintln(c.stdout, name)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only list names starting with this prefix")
	return cmd
}

func newMembersCmd(c *cli) *cobra.Command {
	var inherited bool
	cmd := &cobra.Command{
		Use:   "members NAME",
		Short: "List the members of a class or namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := c.coll.Resolve(args[0])
			if err != nil {
				return err
			}
			members := obj.Members.Values()
			if !inherited || !obj.IsClass() {
				formatMembersText(c.stdout, members, "")
				return nil
			}
			members = append(members, c.coll.InheritedMembers(obj)...)
			formatMembersText(c.stdout, members, "from")
			if _, unresolved := c.coll.ResolveBases(obj); len(unresolved) > 0 {
				slog.Warn("some base classes are not on the path", "class", obj.QualifiedName, "bases", unresolved)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&inherited, "inherited", false, "include members inherited from base classes")
	return cmd
}

func newDumpCmd(c *cli) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Parse everything on the path and print the object model",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(format, "json", "yaml")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			failures, err := c.coll.Materialize(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(failures))
			for name := range failures {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				slog.Warn("skipping object", "name", name, "error", failures[name])
			}

			objs := c.coll.Objects()
			out := make([]objectView, 0, len(objs))
			for _, o := range objs {
				out = append(out, newView(o))
			}
			slog.Debug("dump complete", "objects", len(out), "failures", len(failures), "duration", time.Since(start))
			return writeStructured(c.stdout, format, out)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json|yaml")
	return cmd
}

func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the collection current as files change",
		Long:  "Watches every root, evicts changed files, rescans on structural changes, reloads mpath.toml and serves metrics when --metrics-addr is set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.watch(ctx)
		},
	}
}

func (c *cli) watch(ctx context.Context) error {
	if _, err := c.coll.Materialize(ctx); err != nil {
		return err
	}

	if addr := c.cfg.Observability.MetricsAddr; addr != "" {
		srv := newMetricsServer(addr, c.coll)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				slog.Warn("metrics server shutdown failed", "error", err)
			}
		}()
	}

	applier := watcher.NewApplier(c.coll, c.cfg.Watch.RescanInterval)
	w, err := watcher.NewWatcher(c.cfg.Watch.Debounce, c.cfg.Exclude.Dirs, c.cfg.Exclude.Files, func(b watcher.Batch) {
		if err := applier.Apply(ctx, b); err != nil {
			slog.Error("failed to apply changes", "error", err)
			return
		}
		slog.Info("collection updated", "changed", len(b.Changed), "structural", b.Structural)
	})
	if err != nil {
		return err
	}
	defer w.Close()
	if !c.cfg.Paths.LiveScripts {
		w.SetExtensions([]string{".m", ".md"})
	}
	if err := w.Watch(watchRoots(c.coll)); err != nil {
		return err
	}

	if c.cfgPath != "" {
		cw := config.NewWatcher(c.cfgPath, c.cfg.Watch.Debounce, func(cfg *config.Config) {
			if err := reloadPaths(c.coll, w, cfg); err != nil {
				slog.Error("failed to apply reloaded config", "error", err)
			}
		})
		if err := cw.Start(ctx); err != nil {
			return err
		}
		defer cw.Stop()
	}

	slog.Info("watching", "roots", len(c.coll.Paths()), "config", c.cfgPath)
	<-ctx.Done()
	return nil
}

// watchRoots lists the folders to watch: the working directory, if any,
// then the roots.
func watchRoots(coll *collection.Collection) []string {
	roots := coll.Paths()
	if cwd := coll.WorkingDirectory(); cwd != "" {
		roots = append([]string{cwd}, roots...)
	}
	return roots
}

// reloadPaths applies a reloaded config and watches any folder it brought
// onto the path.
func reloadPaths(coll *collection.Collection, w *watcher.Watcher, cfg *config.Config) error {
	if err := syncPaths(coll, cfg); err != nil {
		return err
	}
	return w.AddRoots(watchRoots(coll))
}

// syncPaths brings the collection's roots and working directory in line with
// cfg, keeping cached entries for roots that did not change.
func syncPaths(coll *collection.Collection, cfg *config.Config) error {
	wanted := make(map[string]bool, len(cfg.Paths.Roots))
	for _, root := range cfg.Paths.Roots {
		wanted[root] = true
	}
	for _, root := range coll.Paths() {
		if !wanted[root] {
			if err := coll.RemovePath(root); err != nil && !errors.IsCode(err, errors.CodeNotFound) {
				return err
			}
		}
	}
	current := coll.Paths()
	for i, root := range cfg.Paths.Roots {
		if i < len(current) && current[i] == root {
			continue
		}
		if err := coll.InsertPath(root, i); err != nil {
			return err
		}
		current = coll.Paths()
	}
	if cfg.Paths.Cwd != coll.WorkingDirectory() {
		return coll.SetWorkingDirectory(cfg.Paths.Cwd)
	}
	return nil
}
