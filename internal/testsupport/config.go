package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zackaholic/VHS-Coffeeman/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig produces a config rooted in a unique temp directory per test.
// Options run before the directories are created, so they may redirect any
// of the paths.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.RecipesDir = filepath.Join(base, "recipes")
	cfg.Paths.MediaDir = filepath.Join(base, "media")

	for _, opt := range opts {
		opt(t, base, &cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithStubbedBinaries puts no-op executables for the named programs on PATH
// for the duration of the test. With no names, the default media players are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, base string, _ *config.Config) {
		if len(names) == 0 {
			names = []string{"omxplayer", "cvlc"}
		}
		binDir := filepath.Join(base, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			path := filepath.Join(binDir, name)
			if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
