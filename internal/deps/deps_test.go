package deps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zackaholic/VHS-Coffeeman/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatal("expected detail message for missing binary")
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected status for unset command: %#v", results[2])
	}
}

func TestCheckPaths(t *testing.T) {
	dir := t.TempDir()
	node := filepath.Join(dir, "gpiochip0")
	if err := os.WriteFile(node, nil, 0o644); err != nil {
		t.Fatalf("write stub node: %v", err)
	}

	results := CheckPaths([]Requirement{
		{Name: "chip", Path: node},
		{Name: "missing", Path: filepath.Join(dir, "absent")},
		{Name: "unset"},
	})
	if !results[0].Available {
		t.Fatalf("existing path reported unavailable: %#v", results[0])
	}
	if results[1].Available {
		t.Fatal("missing path reported available")
	}
	if results[2].Detail != "path not configured" {
		t.Fatalf("unexpected detail for unset path: %q", results[2].Detail)
	}
}

func TestResolveCoversConfiguredDevices(t *testing.T) {
	cfg := config.Default()
	results := Resolve(&cfg)

	names := make(map[string]bool, len(results))
	for _, status := range results {
		names[status.Name] = true
	}
	for _, want := range []string{"motion controller", "pump gpio chip", "cup sensor", "tag reader", "recipes"} {
		if !names[want] {
			t.Errorf("preflight report missing %q", want)
		}
	}
}
