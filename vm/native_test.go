package vm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestRegisterNative(t *testing.T) {
	var out bytes.Buffer
	v := New(Config{Stdout: &out})
	err := v.RegisterNative("math.add", 2, func(ctx context.Context, args []any) (any, error) {
		return args[0].(int64) + args[1].(int64), nil
	})
	if err != nil {
		t.Fatalf("RegisterNative error: %v", err)
	}
	err = v.RegisterNative("words", -1, func(ctx context.Context, args []any) (any, error) {
		return []string{"a", "b"}, nil
	})
	if err != nil {
		t.Fatalf("RegisterNative error: %v", err)
	}

	if arity, ok := v.LookupNative("math.add"); !ok || arity != 2 {
		t.Errorf("LookupNative(math.add) = %d, %v; want 2, true", arity, ok)
	}

	prog, err := v.Compile(`print(math.add(1, 2), words(1, "x", nil))`)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if _, err := v.Run(context.Background(), prog); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := out.String(); got != "3 [a, b]\n" {
		t.Errorf("output = %q, want %q", got, "3 [a, b]\n")
	}
}

func TestNativeSignature(t *testing.T) {
	noop := func(ctx context.Context, args []any) (any, error) { return nil, nil }
	base := New(Config{}).NativeSignature()

	a := New(Config{})
	a.RegisterNative("io.write", 1, noop)
	a.RegisterNative("io.read", -1, noop)
	b := New(Config{})
	b.RegisterNative("io.read", -1, noop)
	b.RegisterNative("io.write", 1, noop)

	if a.NativeSignature() != b.NativeSignature() {
		t.Errorf("registration order changed the signature:\n%s\nvs\n%s", a.NativeSignature(), b.NativeSignature())
	}
	if a.NativeSignature() == base {
		t.Error("registering natives left the signature unchanged")
	}
	if !strings.Contains(a.NativeSignature(), "io.read/-1\nio.write/1\n") {
		t.Errorf("signature = %q, want sorted name/arity lines", a.NativeSignature())
	}

	b.RegisterNative("io.write", 2, noop)
	if a.NativeSignature() == b.NativeSignature() {
		t.Error("changing an arity left the signature unchanged")
	}
}

func TestRegisterNativeRejectsBadInput(t *testing.T) {
	v := New(Config{})
	noop := func(ctx context.Context, args []any) (any, error) { return nil, nil }

	tests := []struct {
		name  string
		arity int
		fn    NativeFunc
	}{
		{"", 0, noop},
		{"a..b", 0, noop},
		{"1abc", 0, noop},
		{"http.", 0, noop},
		{"has space", 0, noop},
		{"ok", -2, noop},
		{"ok", 0, nil},
	}
	for _, tt := range tests {
		if err := v.RegisterNative(tt.name, tt.arity, tt.fn); err == nil {
			t.Errorf("RegisterNative(%q, %d) succeeded, want error", tt.name, tt.arity)
		}
	}

	for _, name := range []string{"x", "http.get", "a_b.c2.d"} {
		if err := v.RegisterNative(name, 0, noop); err != nil {
			t.Errorf("RegisterNative(%q) error: %v", name, err)
		}
	}
}

func TestNativeFailuresBecomeErrorValues(t *testing.T) {
	var out bytes.Buffer
	v := New(Config{Stdout: &out})
	v.RegisterNative("boom", 0, func(ctx context.Context, args []any) (any, error) {
		return nil, errors.New("bad thing")
	})
	v.RegisterNative("explode", 0, func(ctx context.Context, args []any) (any, error) {
		panic("kaboom")
	})
	v.RegisterNative("weird", 0, func(ctx context.Context, args []any) (any, error) {
		return make(chan int), nil
	})

	source := `let a = boom() |e| { e.message }
let b = explode() |e| { e.function + ": " + e.message }
let c = weird() |e| { type(e) }
print(a)
print(b)
print(c)
let d = match boom() {
  x => type(x),
}
print(d)`
	prog, err := v.Compile(source)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if _, err := v.Run(context.Background(), prog); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	want := "bad thing\nexplode: panic: kaboom\nerror\nerror\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestNativeErrorClassIsGlobal(t *testing.T) {
	v := New(Config{})
	class, ok := v.Global(NativeErrorClass)
	if !ok {
		t.Fatalf("expected global %s", NativeErrorClass)
	}
	if got := v.Format(class); got != NativeErrorClass {
		t.Errorf("Format = %q, want %q", got, NativeErrorClass)
	}
}

func TestNativeReceivesContext(t *testing.T) {
	type key struct{}
	v := New(Config{})
	var seen any
	v.RegisterNative("peek", 0, func(ctx context.Context, args []any) (any, error) {
		seen = ctx.Value(key{})
		return nil, nil
	})
	prog, err := v.Compile("peek()")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	ctx := context.WithValue(context.Background(), key{}, "marker")
	if _, err := v.Run(ctx, prog); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if seen != "marker" {
		t.Errorf("context value = %v, want marker", seen)
	}
}

func TestNativeRejectsKeywords(t *testing.T) {
	v := New(Config{})
	v.RegisterNative("f", 1, func(ctx context.Context, args []any) (any, error) { return nil, nil })
	prog, err := v.Compile("f(x=1)")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	_, err = v.Run(context.Background(), prog)
	var rerr *RuntimeError
	if !errors.As(err, &rerr) || rerr.Message != "Native functions don't support keyword arguments." {
		t.Errorf("Run error = %v, want keyword rejection", err)
	}
}

func TestToHostFromHost(t *testing.T) {
	v := New(Config{})
	in := map[string]any{
		"list": []any{int64(1), "x", true, nil, 2.5},
		"nested": map[string]any{
			"k": "v",
		},
	}
	val, err := v.FromHost(in)
	if err != nil {
		t.Fatalf("FromHost error: %v", err)
	}
	got, err := v.ToHost(val)
	if err != nil {
		t.Fatalf("ToHost error: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("ToHost(FromHost(x)) = %#v, want %#v", got, in)
	}
	if s := v.Format(val); s != "{list: [1, x, true, nil, 2.5], nested: {k: v}}" {
		t.Errorf("Format = %q", s)
	}
}

func TestFromHostConversions(t *testing.T) {
	v := New(Config{})
	type point struct{ X int }
	n := 7
	tests := []struct {
		in   any
		want string
	}{
		{uint8(9), "9"},
		{float32(0.5), "0.5"},
		{&n, "7"},
		{[2]int{1, 2}, "[1, 2]"},
		{[]byte("raw"), "raw"},
		{fmt.Errorf("wrapped"), "wrapped"},
		{map[string]int{"b": 2, "a": 1}, "{a: 1, b: 2}"},
		{(*int)(nil), "nil"},
	}
	for _, tt := range tests {
		val, err := v.FromHost(tt.in)
		if err != nil {
			t.Errorf("FromHost(%#v) error: %v", tt.in, err)
			continue
		}
		if got := v.Format(val); got != tt.want {
			t.Errorf("FromHost(%#v) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := v.FromHost(point{X: 1}); err == nil {
		t.Error("expected error converting a struct")
	}
	if _, err := v.FromHost(map[int]string{1: "a"}); err == nil {
		t.Error("expected error converting a map with int keys")
	}
	if _, err := v.FromHost(uint64(math.MaxUint64)); err == nil {
		t.Error("expected error converting a uint64 above MaxInt64")
	}
	val, err := v.FromHost(uint64(math.MaxInt64))
	if err != nil || val.AsInt() != math.MaxInt64 {
		t.Errorf("FromHost(MaxInt64 as uint64) = %v, %v; want MaxInt64", val, err)
	}
}

func TestToHostRejectsNonStringKeys(t *testing.T) {
	tests := []struct {
		source string
		ok     bool
	}{
		{"let m = {}\nm[\"1\"] = 1\nm", true},
		{"let m = {}\nm[1] = 1\nm", false},
		{"let m = {}\nm[1] = 1\nm[\"1\"] = 2\nm", false},
		{"let m = {}\nm[\"k\"] = {}\nm[\"k\"][(1, 2)] = 3\nm", false},
	}
	for _, tt := range tests {
		v := New(Config{})
		prog, err := v.Compile(tt.source)
		if err != nil {
			t.Fatalf("Compile(%q) error: %v", tt.source, err)
		}
		val, err := v.Run(context.Background(), prog)
		if err != nil {
			t.Fatalf("Run(%q) error: %v", tt.source, err)
		}
		_, err = v.ToHost(val)
		if (err == nil) != tt.ok {
			t.Errorf("ToHost(%s) error = %v, want ok=%v", v.Format(val), err, tt.ok)
		}
	}
}

func TestToHostScriptValues(t *testing.T) {
	var out bytes.Buffer
	v := New(Config{Stdout: &out})
	var got []any
	v.RegisterNative("capture", -1, func(ctx context.Context, args []any) (any, error) {
		got = args
		return nil, nil
	})
	source := `class P { x, y }
enum C { Red = "r" }
capture(P(1, 2), C::Red, 1..=3, (1, "a"), set([1]))`
	prog, err := v.Compile(source)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if _, err := v.Run(context.Background(), prog); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	want := []any{
		map[string]any{"x": int64(1), "y": int64(2)},
		"r",
		[]any{int64(1), int64(2), int64(3)},
		[]any{int64(1), "a"},
		[]any{int64(1)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("capture args = %#v, want %#v", got, want)
	}
}

func TestToHostCycle(t *testing.T) {
	v := New(Config{})
	prog, err := v.Compile("let a = []\na.append(a)\na")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	val, err := v.Run(context.Background(), prog)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if _, err := v.ToHost(val); !errors.Is(err, ErrCyclicValue) {
		t.Errorf("ToHost error = %v, want ErrCyclicValue", err)
	}
	if got := v.Format(val); got != "[...]" {
		t.Errorf("Format = %q, want [...]", got)
	}
}
