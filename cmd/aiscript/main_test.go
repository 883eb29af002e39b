package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/aiscript/compiler"
	"github.com/chazu/aiscript/manifest"
	"github.com/chazu/aiscript/vm"
)

func TestIncompleteInput(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"fn f() {", true},
		{"let s = \"abc", true},
		{"[1, 2", true},
		{"let = 1", false},
		{"1 +", true},
	}
	for _, tt := range tests {
		_, err := compiler.Parse(tt.src)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", tt.src)
			continue
		}
		if got := incomplete(err); got != tt.want {
			t.Errorf("incomplete(%q) = %v, want %v (error: %v)", tt.src, got, tt.want, err)
		}
	}
}

func TestReportRunError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&vm.RaisedError{Text: "E!::Bad"}, 1},
		{fmt.Errorf("run: %w", context.Canceled), 130},
		{errors.New("boom"), 70},
	}
	for _, tt := range tests {
		if got := reportRunError(tt.err); got != tt.want {
			t.Errorf("reportRunError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSessionUsesManifestCache(t *testing.T) {
	dir := t.TempDir()
	m := &manifest.Manifest{Project: manifest.Project{Name: "demo"}}
	if err := manifest.Write(dir, m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	s := newSession(m, &options{})
	defer s.close()
	if s.cache == nil {
		t.Fatal("expected the session to open the program cache")
	}

	for i := 0; i < 2; i++ {
		prog, err := s.compile("let x = 40\nx + 2")
		if err != nil {
			t.Fatalf("compile failed: %v", err)
		}
		result, err := s.vm.Run(context.Background(), prog)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if result.AsInt() != 42 {
			t.Errorf("result = %d, want 42", result.AsInt())
		}
	}

	if _, err := os.Stat(filepath.Join(dir, ".aiscript", "cache.db")); err != nil {
		t.Errorf("cache database not created: %v", err)
	}
	st, err := s.cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Entries != 1 {
		t.Errorf("cache entries = %d, want 1", st.Entries)
	}
}

func TestSessionWithoutCache(t *testing.T) {
	s := newSession(nil, &options{gcStress: true})
	defer s.close()
	if s.cache != nil {
		t.Error("expected no cache without a manifest")
	}
	if !s.vm.Config().GCStress {
		t.Error("expected -gc-stress to enable GCStress")
	}
}
