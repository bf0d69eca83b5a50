package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/dora/pkg/asm"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"

[compiler]
arch = "arm64"
workers = 8
baseline = true

[cache]
path = "build/cache.db"
max-size = "2MB"

[log]
verbosity = 2
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want demo", m.Project.Name)
	}
	if m.Arch() != asm.Arm64 {
		t.Errorf("Arch() = %s, want arm64", m.Arch().Name)
	}
	if m.Compiler.Workers != 8 {
		t.Errorf("workers = %d, want 8", m.Compiler.Workers)
	}
	if !m.Compiler.Baseline {
		t.Error("baseline = false, want true")
	}
	if got, want := m.CachePath(), filepath.Join(m.Dir, "build", "cache.db"); got != want {
		t.Errorf("CachePath() = %q, want %q", got, want)
	}
	if n, err := m.MaxCacheBytes(); err != nil || n != 2*1024*1024 {
		t.Errorf("MaxCacheBytes() = %d, %v, want %d", n, err, 2*1024*1024)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", m.Log.Verbosity)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Arch() != asm.X64 {
		t.Errorf("Arch() = %s, want x64", m.Arch().Name)
	}
	if m.Compiler.Workers != DefaultWorkers {
		t.Errorf("workers = %d, want %d", m.Compiler.Workers, DefaultWorkers)
	}
	if m.Compiler.Baseline {
		t.Error("baseline = true, want false")
	}
	if m.Cache.Path != DefaultCachePath {
		t.Errorf("cache path = %q, want %q", m.Cache.Path, DefaultCachePath)
	}
	if n, _ := m.MaxCacheBytes(); n != 64*1024*1024 {
		t.Errorf("MaxCacheBytes() = %d, want %d", n, 64*1024*1024)
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	if m.Arch() != asm.X64 || m.Compiler.Workers != DefaultWorkers {
		t.Errorf("Default() = %+v", m.Compiler)
	}
	if got := m.CachePath(); got != DefaultCachePath {
		t.Errorf("CachePath() = %q, want %q", got, DefaultCachePath)
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"arch", "[compiler]\narch = \"sparc\"\n", "unknown architecture"},
		{"size", "[cache]\nmax-size = \"lots\"\n", "invalid max-size"},
		{"zero size", "[cache]\nmax-size = \"0\"\n", "must be positive"},
		{"verbosity", "[log]\nverbosity = -1\n", "verbosity"},
		{"syntax", "[project\n", "parse error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("Load succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of a directory without dora.toml succeeded")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"parent\"\n")

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil || m.Project.Name != "parent" {
		t.Fatalf("FindAndLoad = %+v, want the parent manifest", m)
	}
}

func TestFindAndLoadNone(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		t.Errorf("FindAndLoad = %+v, want nil", m)
	}
}
