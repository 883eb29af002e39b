package integration_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/aiscript/manifest"
	"github.com/chazu/aiscript/pkg/bytecode"
	"github.com/chazu/aiscript/pkg/chunkcache"
	"github.com/chazu/aiscript/vm"
)

const examplesDir = "../../examples"

// ---------------------------------------------------------------------------
// Integration test helpers
// ---------------------------------------------------------------------------

// example is a script under examples/ with its expected output.
type example struct {
	name   string
	source string
	want   string
}

func loadExamples(t *testing.T) []example {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(examplesDir, "*.ais"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("no example scripts found")
	}

	var out []example
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("reading %s: %v", p, err)
		}
		want, err := os.ReadFile(strings.TrimSuffix(p, ".ais") + ".out")
		if err != nil {
			t.Fatalf("reading expected output for %s: %v", p, err)
		}
		out = append(out, example{
			name:   strings.TrimSuffix(filepath.Base(p), ".ais"),
			source: string(src),
			want:   string(want),
		})
	}
	return out
}

// execute runs prog on a fresh VM and returns what it printed.
func execute(t *testing.T, cfg vm.Config, compile func(*vm.VM) (*bytecode.Program, error)) string {
	t.Helper()
	var out bytes.Buffer
	cfg.Stdout = &out
	v := vm.New(cfg)
	prog, err := compile(v)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if _, err := v.Run(context.Background(), prog); err != nil {
		t.Fatalf("run error: %v\noutput so far:\n%s", err, out.String())
	}
	return out.String()
}

// ---------------------------------------------------------------------------
// Example scripts
// ---------------------------------------------------------------------------

func TestExamples(t *testing.T) {
	for _, ex := range loadExamples(t) {
		t.Run(ex.name, func(t *testing.T) {
			direct := func(v *vm.VM) (*bytecode.Program, error) {
				return v.Compile(ex.source)
			}
			got := execute(t, vm.DefaultConfig(), direct)
			if got != ex.want {
				t.Errorf("output:\n%s\nwant:\n%s", got, ex.want)
			}
		})
	}
}

func TestExamplesUnderGCStress(t *testing.T) {
	for _, ex := range loadExamples(t) {
		t.Run(ex.name, func(t *testing.T) {
			cfg := vm.DefaultConfig()
			cfg.GCStress = true
			got := execute(t, cfg, func(v *vm.VM) (*bytecode.Program, error) {
				return v.Compile(ex.source)
			})
			if got != ex.want {
				t.Errorf("output:\n%s\nwant:\n%s", got, ex.want)
			}
		})
	}
}

// Programs decoded from the wire format must behave like freshly compiled ones.
func TestExamplesAfterWireRoundTrip(t *testing.T) {
	for _, ex := range loadExamples(t) {
		t.Run(ex.name, func(t *testing.T) {
			got := execute(t, vm.DefaultConfig(), func(v *vm.VM) (*bytecode.Program, error) {
				prog, err := v.Compile(ex.source)
				if err != nil {
					return nil, err
				}
				data, err := bytecode.MarshalProgram(prog)
				if err != nil {
					return nil, err
				}
				return bytecode.UnmarshalProgram(data)
			})
			if got != ex.want {
				t.Errorf("output:\n%s\nwant:\n%s", got, ex.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Project pipeline: manifest, cache and VM together
// ---------------------------------------------------------------------------

func TestExampleProject(t *testing.T) {
	m, err := manifest.Load(examplesDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Project.Name != "examples" {
		t.Errorf("project name = %q, want %q", m.Project.Name, "examples")
	}
	cfg := m.VMConfig()
	if cfg.MaxFrames != 128 || cfg.GCGrowthFactor != 1.5 {
		t.Errorf("VMConfig = %+v, want manifest overrides applied", cfg)
	}

	// Keep the cache out of the source tree.
	m.Cache.Path = filepath.Join(t.TempDir(), "cache.db")
	cache, err := chunkcache.Open(m.CachePath())
	if err != nil {
		t.Fatalf("Open cache failed: %v", err)
	}
	defer cache.Close()

	source, err := os.ReadFile(m.EntryPath())
	if err != nil {
		t.Fatalf("reading entry: %v", err)
	}
	want, err := os.ReadFile(strings.TrimSuffix(m.EntryPath(), ".ais") + ".out")
	if err != nil {
		t.Fatalf("reading expected output: %v", err)
	}

	compiles := 0
	for i := 0; i < 2; i++ {
		got := execute(t, cfg, func(v *vm.VM) (*bytecode.Program, error) {
			return cache.Compile(string(source), v.NativeSignature(), func(src string) (*bytecode.Program, error) {
				compiles++
				return v.Compile(src)
			})
		})
		if got != string(want) {
			t.Errorf("run %d output:\n%s\nwant:\n%s", i, got, want)
		}
	}
	if compiles != 1 {
		t.Errorf("compiled %d times, want 1 (second run from cache)", compiles)
	}
}
