package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mpath/internal/core/errors"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	content := `
version = 1

[paths]
roots = ["./toolbox", "/opt/matlab/shared"]
cwd = "work"
recursive = true
live_scripts = true

[exclude]
dirs = ["build*"]
files = ["*_tmp.m"]

[cache]
capacity = 500
concurrency = 4

[watch]
debounce = "1s"

[observability]
metrics_addr = ":9090"

[log]
level = "DEBUG"
format = "json"
`
	path := writeConfig(t, dir, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	wantRoots := []string{filepath.Join(dir, "toolbox"), filepath.Clean("/opt/matlab/shared")}
	if len(cfg.Paths.Roots) != 2 || cfg.Paths.Roots[0] != wantRoots[0] || cfg.Paths.Roots[1] != wantRoots[1] {
		t.Errorf("unexpected roots %v", cfg.Paths.Roots)
	}
	if cfg.Paths.Cwd != filepath.Join(dir, "work") {
		t.Errorf("unexpected cwd %q", cfg.Paths.Cwd)
	}
	if !cfg.Paths.Recursive || !cfg.Paths.LiveScripts {
		t.Errorf("expected recursive live-script paths: %+v", cfg.Paths)
	}
	if cfg.Exclude.Dirs[0] != "build*" || cfg.Exclude.Files[0] != "*_tmp.m" {
		t.Errorf("unexpected exclude %+v", cfg.Exclude)
	}
	if cfg.Cache.Capacity != 500 || cfg.Cache.Concurrency != 4 || cfg.Cache.ScanCapacity != 64 {
		t.Errorf("unexpected cache %+v", cfg.Cache)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("expected 1s debounce, got %v", cfg.Watch.Debounce)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log %+v", cfg.Log)
	}
	if cfg.Observability.MetricsAddr != ":9090" {
		t.Errorf("unexpected metrics addr %q", cfg.Observability.MetricsAddr)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Version != 1 {
		t.Errorf("expected version 1, got %d", cfg.Version)
	}
	if cfg.Watch.Debounce != 300*time.Millisecond || cfg.Watch.RescanInterval != time.Second {
		t.Errorf("unexpected watch defaults %+v", cfg.Watch)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log defaults %+v", cfg.Log)
	}
	if len(cfg.Exclude.Dirs) == 0 {
		t.Error("expected default folder excludes")
	}
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("defaults should validate, got %v", errs)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad toml", "[paths\nroots = 1", "decode config"},
		{"bad version", "version = 3\n", "unsupported config version 3"},
		{"duplicate root", "[paths]\nroots = [\"a\", \"./a\"]\n", "listed twice"},
		{"bad glob", "[exclude]\nfiles = [\"[oops\"]\n", "exclude.files[0]"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "log.level"},
		{"bad format", "[log]\nformat = \"xml\"\n", "log.format"},
		{"negative rescan", "[watch]\nrescan_interval = \"-1s\"\n", "watch.rescan_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.IsCode(err, errors.CodeConfiguration) {
				t.Errorf("expected CONFIG_ERROR, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, err.Error())
			}
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if !errors.IsCode(err, errors.CodeConfiguration) {
		t.Errorf("expected CONFIG_ERROR for a missing file, got %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("MPATH_PATHS_ROOTS", "/a"+string(filepath.ListSeparator)+" /b ")
	t.Setenv("MPATH_PATHS_RECURSIVE", "true")
	t.Setenv("MPATH_CACHE_CONCURRENCY", "3")
	t.Setenv("MPATH_CACHE_CAPACITY", "not-a-number")
	t.Setenv("MPATH_WATCH_DEBOUNCE", "2s")
	t.Setenv("MPATH_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	ApplyEnvOverrides(cfg)

	if len(cfg.Paths.Roots) != 2 || cfg.Paths.Roots[0] != "/a" || cfg.Paths.Roots[1] != "/b" {
		t.Errorf("unexpected roots %v", cfg.Paths.Roots)
	}
	if !cfg.Paths.Recursive {
		t.Error("expected recursive override")
	}
	if cfg.Cache.Concurrency != 3 {
		t.Errorf("expected concurrency 3, got %d", cfg.Cache.Concurrency)
	}
	if cfg.Cache.Capacity != 10_000 {
		t.Errorf("invalid values must be ignored, got %d", cfg.Cache.Capacity)
	}
	if cfg.Watch.Debounce != 2*time.Second || cfg.Log.Level != "warn" {
		t.Errorf("unexpected overrides %v %q", cfg.Watch.Debounce, cfg.Log.Level)
	}
}

func TestValidate_ReportsMissingFolders(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Paths.Roots = []string{"/non/existent/path"}
	cfg.Paths.Cwd = file

	errs := Validate(cfg)
	want := []string{
		`paths.roots[0] "/non/existent/path" does not exist`,
		`paths.cwd "` + file + `" is not a directory`,
	}
	for _, w := range want {
		found := false
		for _, err := range errs {
			if err.Error() == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected %q, got %v", w, errs)
		}
	}
}

func TestFindConfigAndLoadOrDefault(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, root, "[paths]\nroots = [\"src\"]\n")

	found, ok := FindConfig(nested)
	if !ok || found != path {
		t.Fatalf("expected %q, got %q (%t)", path, found, ok)
	}

	cfg, used, err := LoadOrDefault("", nested)
	if err != nil {
		t.Fatal(err)
	}
	if used != path || cfg.Paths.Roots[0] != filepath.Join(root, "src") {
		t.Errorf("unexpected load %q %v", used, cfg.Paths.Roots)
	}

	if got := ResolveRelative("/base", "  "); got != filepath.Clean("/base") {
		t.Errorf("unexpected empty resolution %q", got)
	}
	if got := ResolveRelative("/base", "/abs/x"); got != filepath.Clean("/abs/x") {
		t.Errorf("unexpected absolute resolution %q", got)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "[paths]\nroots = [\"a\"]\n")

	reloaded := make(chan *Config, 4)
	w := NewWatcher(path, 50*time.Millisecond, func(cfg *Config) {
		reloaded <- cfg
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Invalid content keeps the previous configuration.
	writeConfig(t, dir, "[paths\n")
	select {
	case cfg := <-reloaded:
		t.Fatalf("unexpected reload with invalid config: %+v", cfg.Paths)
	case <-time.After(300 * time.Millisecond):
	}

	writeConfig(t, dir, "[paths]\nroots = [\"b\"]\n")
	select {
	case cfg := <-reloaded:
		if len(cfg.Paths.Roots) != 1 || cfg.Paths.Roots[0] != filepath.Join(dir, "b") {
			t.Errorf("unexpected reloaded roots %v", cfg.Paths.Roots)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
