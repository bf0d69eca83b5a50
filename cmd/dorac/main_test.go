package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/dora/pkg/bytecode"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestSamplesAndDump(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "cache.db")
	out := filepath.Join(dir, "out")

	code, stdout, stderr := runCLI(t, "-cache", db, "samples", "-baseline", "-arch", "arm64", "-o", out)
	if code != 0 {
		t.Fatalf("samples exited %d: %s", code, stderr)
	}
	for _, want := range []string{"; === sub (arm64) ===", "; digest ", "session "} {
		if !strings.Contains(stdout, want) {
			t.Errorf("samples output does not contain %q", want)
		}
	}

	path := filepath.Join(out, "fib.drbc")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	fn, err := bytecode.Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr = runCLI(t, "dump", path)
	if code != 0 {
		t.Fatalf("dump exited %d: %s", code, stderr)
	}
	if want := bytecode.Disassemble(fn); stdout != want {
		t.Errorf("dump output =\n%s\nwant\n%s", stdout, want)
	}
}

func TestCacheCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cache.db")
	if code, _, stderr := runCLI(t, "-cache", db, "samples"); code != 0 {
		t.Fatalf("samples exited %d: %s", code, stderr)
	}

	code, stdout, _ := runCLI(t, "-cache", db, "cache", "ls")
	if code != 0 || !strings.Contains(stdout, "fib") || !strings.Contains(stdout, "DIGEST") {
		t.Errorf("cache ls = %d\n%s", code, stdout)
	}

	code, stdout, _ = runCLI(t, "-cache", db, "cache", "show", "fib")
	if code != 0 || !strings.HasPrefix(stdout, "; digest ") {
		t.Errorf("cache show fib = %d\n%s", code, stdout)
	}

	code, _, stderr := runCLI(t, "-cache", db, "cache", "show", "nope")
	if code != 1 || !strings.Contains(stderr, "not found") {
		t.Errorf("cache show nope = %d, %q", code, stderr)
	}

	code, stdout, _ = runCLI(t, "-cache", db, "cache", "prune", "-max-size", "0")
	if code != 0 || !strings.HasPrefix(stdout, "removed ") {
		t.Errorf("cache prune = %d\n%s", code, stdout)
	}
	_, stdout, _ = runCLI(t, "-cache", db, "cache", "ls")
	if !strings.Contains(stdout, "0 entries") {
		t.Errorf("cache ls after prune =\n%s", stdout)
	}
}

func TestUsageErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cache.db")
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, 2},
		{"unknown command", []string{"frobnicate"}, 2},
		{"dump without file", []string{"dump"}, 2},
		{"cache without subcommand", []string{"-cache", db, "cache"}, 2},
		{"unknown cache subcommand", []string{"-cache", db, "cache", "vacuum"}, 2},
		{"bad arch", []string{"-cache", db, "samples", "-arch", "sparc"}, 1},
		{"dump missing file", []string{"dump", filepath.Join(t.TempDir(), "none.drbc")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, _ := runCLI(t, tt.args...); code != tt.want {
				t.Errorf("exit code = %d, want %d", code, tt.want)
			}
		})
	}
}
