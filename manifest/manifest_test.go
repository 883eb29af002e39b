package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/aiscript/vm"
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
name = "test-app"
entry = "src/app.ais"

[vm]
max_frames = 512
stack_size = 4096
cancel_check_interval = 50

[gc]
initial_threshold = 65536
growth_factor = 1.5
stress = true

[cache]
path = "/tmp/cache.db"
enabled = false

[log]
verbosity = 2
file = "logs/aiscript.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if got, want := m.EntryPath(), filepath.Join(m.Dir, "src", "app.ais"); got != want {
		t.Errorf("EntryPath = %q, want %q", got, want)
	}
	if m.CacheEnabled() {
		t.Error("CacheEnabled = true, want false")
	}
	if m.CachePath() != "/tmp/cache.db" {
		t.Errorf("CachePath = %q, want /tmp/cache.db", m.CachePath())
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if got, want := m.LogPath(), filepath.Join(m.Dir, "logs", "aiscript.log"); got != want {
		t.Errorf("LogPath = %q, want %q", got, want)
	}

	cfg := m.VMConfig()
	if cfg.MaxFrames != 512 || cfg.StackSize != 4096 || cfg.CancelCheckInterval != 50 {
		t.Errorf("VMConfig limits = %d/%d/%d, want 512/4096/50", cfg.MaxFrames, cfg.StackSize, cfg.CancelCheckInterval)
	}
	if cfg.GCInitialThreshold != 65536 || cfg.GCGrowthFactor != 1.5 || !cfg.GCStress {
		t.Errorf("VMConfig gc = %d/%v/%v, want 65536/1.5/true", cfg.GCInitialThreshold, cfg.GCGrowthFactor, cfg.GCStress)
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

	if m.Project.Entry != "main.ais" {
		t.Errorf("default entry = %q, want main.ais", m.Project.Entry)
	}
	if !m.CacheEnabled() {
		t.Error("cache should be enabled by default")
	}
	if got, want := m.CachePath(), filepath.Join(m.Dir, ".aiscript", "cache.db"); got != want {
		t.Errorf("CachePath = %q, want %q", got, want)
	}
	if m.LogPath() != "" {
		t.Errorf("LogPath = %q, want empty", m.LogPath())
	}

	cfg := m.VMConfig()
	def := vm.DefaultConfig()
	if cfg.MaxFrames != def.MaxFrames || cfg.StackSize != def.StackSize ||
		cfg.GCInitialThreshold != def.GCInitialThreshold || cfg.GCGrowthFactor != def.GCGrowthFactor {
		t.Errorf("VMConfig = %+v, want defaults %+v", cfg, def)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[project\nname = 1", "parse error"},
		{"unknown key", "[project]\nnmae = \"x\"", "unknown key"},
		{"negative frames", "[vm]\nmax_frames = -1", "vm.max_frames"},
		{"growth factor", "[gc]\ngrowth_factor = 0.5", "gc.growth_factor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no aiscript.toml exists")
	}
}

func TestWriteThenLoad(t *testing.T) {
	dir := t.TempDir()
	off := false
	m := &Manifest{
		Project: Project{Name: "written", Entry: "run.ais"},
		GC:      GCSection{GrowthFactor: 3},
		Cache:   CacheConfig{Enabled: &off},
	}
	if err := Write(dir, m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Project.Name != "written" || loaded.Project.Entry != "run.ais" {
		t.Errorf("project = %+v, want written/run.ais", loaded.Project)
	}
	if loaded.GC.GrowthFactor != 3 {
		t.Errorf("growth factor = %v, want 3", loaded.GC.GrowthFactor)
	}
	if loaded.CacheEnabled() {
		t.Error("CacheEnabled = true, want false")
	}
}
