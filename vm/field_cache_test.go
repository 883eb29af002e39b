package vm

import (
	"context"
	"testing"

	"github.com/chazu/aiscript/pkg/bytecode"
)

func TestFieldCacheSlot(t *testing.T) {
	a := newClass(&bytecode.ClassTemplate{Name: "A", Layout: []string{"x"}})
	b := newClass(&bytecode.ClassTemplate{Name: "B", Layout: []string{"y", "x"}})

	var c fieldCache
	tests := []struct {
		class *ClassObj
		name  string
		slot  int
		ok    bool
	}{
		{a, "x", 0, true},
		{a, "x", 0, true},
		{b, "x", 1, true},
		{a, "x", 0, true},
	}
	for i, tt := range tests {
		slot, ok := c.slotFor(tt.class, tt.name)
		if slot != tt.slot || ok != tt.ok {
			t.Errorf("step %d: slotFor(%s, %q) = %d, %v; want %d, %v", i, tt.class.name, tt.name, slot, ok, tt.slot, tt.ok)
		}
	}

	var miss fieldCache
	if slot, ok := miss.slotFor(a, "missing"); ok || slot != -1 {
		t.Errorf("slotFor(undeclared) = %d, %v; want -1, false", slot, ok)
	}
}

func TestFieldAccessAcrossClasses(t *testing.T) {
	source := `class A { x }
class B { y, x }
fn getx(o) { return o.x }
let out = []
for o in [A(1), B(2, 3), A(4)] { out.append(getx(o)) }
let a = A(5)
a.x = 6
let extra = A(7)
extra.z = 8
let m = {x: 9}
print(out, getx(a), extra.z, getx(m))`
	eachMode(t, func(t *testing.T, cfg Config) {
		got, _, err := run(t, cfg, source)
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
		if want := "[1, 3, 4] 6 8 9\n"; got != want {
			t.Errorf("output = %q, want %q", got, want)
		}
	})
}

func TestFieldCachesArePerFunction(t *testing.T) {
	v := New(Config{})
	prog, err := v.Compile("class P { x }\nfn f(p) { return p.x }\nf(P(1))\nf(P(2))")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if _, err := v.Run(context.Background(), prog); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	filled := 0
	for _, caches := range v.fieldCaches {
		for _, c := range caches {
			if c.class != nil {
				filled++
			}
		}
	}
	if filled != 1 {
		t.Errorf("filled cache entries = %d, want 1", filled)
	}
}
