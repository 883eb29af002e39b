package vm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

// run compiles and runs source on a fresh VM and returns what it printed.
func run(t *testing.T, cfg Config, source string) (string, Value, error) {
	t.Helper()
	var out bytes.Buffer
	cfg.Stdout = &out
	v := New(cfg)
	prog, err := v.Compile(source)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	result, err := v.Run(context.Background(), prog)
	return out.String(), result, err
}

// eachMode runs fn once normally and once collecting at every instruction.
func eachMode(t *testing.T, fn func(t *testing.T, cfg Config)) {
	t.Run("normal", func(t *testing.T) { fn(t, Config{}) })
	t.Run("gcstress", func(t *testing.T) { fn(t, Config{GCStress: true}) })
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name: "initializer chain through super",
			source: `class Base { fn new(a) { self.a = a } }
class Derived(Base) {
  fn new(a, b) {
    super.new(a)
    self.b = b
  }
}
let d = Derived("a", "b")
print(d.a, d.b)`,
			want: "a b\n",
		},
		{
			name: "enum variant and value access",
			source: `enum Num { One = 1, Two = 2 }
print(Num::One)
print(Num.One)
print(Num::Two.value, Num::Two.name)`,
			want: "Num::One(1)\n1\n2 Two\n",
		},
		{
			name: "error propagation",
			source: `enum ArithError! { DivideZero }
fn divide(a, b) -> int | ArithError! {
  if b == 0 { raise ArithError!::DivideZero }
  return a / b
}
fn calc() -> int | ArithError! {
  let r = divide(1, 0)?
  print("unreachable")
  return r
}
print(calc())
print(divide(7, 2))`,
			want: "ArithError!::DivideZero\n3\n",
		},
		{
			name: "catch handlers",
			source: `enum E! { Bad }
fn f(fail) -> int | E! {
  if fail { raise E!::Bad }
  return 2
}
let a = f(true) |err| { -1 }
let b = try f(false) catch err { 0 }
let c = try f(true) catch err { str(err) }
print(a, b, c)`,
			want: "-1 2 E!::Bad\n",
		},
		{
			name: "error class fields",
			source: `class ParseError! { msg }
fn parse(s) -> int | ParseError! {
  if s == "" { raise ParseError!(msg="empty") }
  return int(s)
}
let r = parse("") |e| { e.msg }
print(r, parse("7"))`,
			want: "empty 7\n",
		},
		{
			name: "match ranges and guards",
			source: `fn classify(n) {
  return match n {
    0..=10 => "small",
    11..=20 if n % 2 == 0 => "even medium",
    11..=20 => "odd medium",
    31.. => "large",
    _ => "other",
  }
}
print(classify(5), classify(12), classify(13), classify(40), classify(25))`,
			want: "small even medium odd medium large other\n",
		},
		{
			name: "match variants and bindings",
			source: `enum Shape { Circle, Square }
fn name(s) {
  return match s { Shape::Circle => "round", Shape::Square => "square" }
}
let v = match 7 { x if x > 5 => x * 10, _ => 0 }
let w = match 2 { 1 | 2 => "low", _ => "high" }
print(name(Shape::Square), v, w)`,
			want: "square 70 low\n",
		},
		{
			name: "bound method survives field shadowing",
			source: `class Greeter {
  name
  fn hello(self) { return "hello " + self.name }
}
fn other() { return "other" }
let g = Greeter("x")
let before = g.hello
g.hello = other
let after = g.hello
print(before(), after())`,
			want: "hello x other\n",
		},
		{
			name: "method dispatch through super",
			source: `class Base {
  fn greet(self, name) { return "base " + name + " " + self.kind() }
  fn kind(self) { return "base" }
}
class Sub(Base) {
  fn greet(self, name) { return super.greet(name) }
  fn kind(self) { return "sub" }
}
print(Sub().greet("x"))`,
			want: "base x sub\n",
		},
		{
			name: "fields with defaults and keywords",
			source: `class Point { x: int, y: int = 0 }
let p = Point(1)
let q = Point(x=2, y=3)
print(p, q.x + q.y)`,
			want: "Point {x: 1, y: 0} 5\n",
		},
		{
			name: "static and enum methods",
			source: `class M { fn twice(x) { return x * 2 } }
enum Color {
  Red = "r",
  Green = "g",
  fn label(self) { return self.name + ":" + self.value }
}
print(M.twice(4), Color::Red.label())`,
			want: "8 Red:r\n",
		},
		{
			name: "counter closure",
			source: `fn counter() {
  let n = 0
  return || { n += 1; n }
}
let c = counter()
c()
c()
print(c())`,
			want: "3\n",
		},
		{
			name: "shared upvalue",
			source: `fn pair() {
  let x = 1
  let get = || x
  let set = |v| { x = v }
  return get, set
}
let p = pair()
p[1](5)
print(p[0]())`,
			want: "5\n",
		},
		{
			name: "fresh binding per iteration",
			source: `let fns = []
for i in [1, 2, 3] { fns.append(|| i) }
print(fns[0](), fns[1](), fns[2]())`,
			want: "1 2 3\n",
		},
		{
			name: "capture closed at block exit",
			source: `let f
{
  let a = "outer"
  f = || a
  a = "changed"
  {
    let a = "inner"
  }
}
print(f())`,
			want: "changed\n",
		},
		{
			name: "enum equality is by identity",
			source: `enum A { X = 1 }
enum B { X = 1 }
enum C { X = 2 }
print(A::X == A::X, A::X == B::X, A.X == B.X, A.X == C.X, A::X == C::X)`,
			want: "true false true false false\n",
		},
		{
			name: "arithmetic",
			source: `print(7 / 2, -7 / 2, -7 % 3, 7.0 / 2, 2 ** 10, 1 + 2.5)`,
			want:   "3 -3 -1 3.5 1024 3.5\n",
		},
		{
			name: "default and keyword arguments",
			source: `fn greet(name, greeting = "hi") { return greeting + " " + name }
print(greet("a"), greet("b", greeting="yo"), greet(greeting="hey", name="c"))`,
			want: "hi a yo b hey c\n",
		},
		{
			name: "multiple return values",
			source: `fn mm() { return 1, 2 }
let t = mm()
print(t, t[0])`,
			want: "(1, 2) 1\n",
		},
		{
			name: "loops",
			source: `let i = 0
let out = []
while true {
  i += 1
  if i > 6 { break }
  if i % 2 == 0 { continue }
  out.append(i)
}
let total = 0
for k, v in {x: 1, y: 2} { total += v }
let s = 0
for n in 1..=4 { s += n }
for ch in "ab" { print(ch) }
print(out, total, s)`,
			want: "a\nb\n[1, 3, 5] 3 10\n",
		},
		{
			name: "strings",
			source: `let n = 3
print("a,b,c".split(","), "  hi ".trim(), "abc".to_uppercase(), "abc".contains("b"), "ab" * 3, f"n={n + 1}")`,
			want: "[a, b, c] hi ABC true ababab n=4\n",
		},
		{
			name: "higher order builtins",
			source: `print(map([1, 2, 3], |x| x * 2), filter([1, 2, 3, 4], |x| x % 2 == 0), [1, 2] |> len)`,
			want:   "[2, 4, 6] [2, 4] 2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eachMode(t, func(t *testing.T, cfg Config) {
				got, _, err := run(t, cfg, tt.source)
				if err != nil {
					t.Fatalf("Run error: %v", err)
				}
				if got != tt.want {
					t.Errorf("output = %q, want %q", got, tt.want)
				}
			})
		})
	}
}

func TestRunResult(t *testing.T) {
	eachMode(t, func(t *testing.T, cfg Config) {
		_, result, err := run(t, cfg, "let x = 20\nx + 22")
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
		if !result.IsInt() || result.AsInt() != 42 {
			t.Errorf("result = %v, want 42", result)
		}
	})
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"division by zero", "1 / 0", "Division by zero."},
		{"property on nil", "let a = nil\na.b", "Only instances have properties."},
		{"index out of bounds", "[1][5]", "Index 5 out of bounds for length 1."},
		{"operand types", `"a" - 1`, "Operands must be numbers."},
		{"mixed add", `"a" + 1`, "Operands must be two numbers or two strings."},
		{"arity", "fn f(a) {}\nf(1, 2)", "Expected 1 arguments but got 2."},
		{"super arity", "class A { fn m(self, x) { return x } }\nclass B(A) { fn m(self) { return super.m() } }\nB().m()", "Expected 1 arguments but got 0."},
		{"missing field", "class P { x: int }\nP()", "Missing required field 'x'."},
		{"field type", `class P { x: int }` + "\n" + `P("a")`, "Field 'x' expects type 'int' but got 'string'."},
		{"no match", `match 5 { 1 => "a" }`, "No match arm accepted value '5'."},
		{"unknown variant", "enum E { A }\nE::B", "Undefined variant 'B' in enum 'E'."},
		{"pop empty", "[].pop()", "Cannot pop from an empty array."},
		{"native keywords", "len(x=1)", "Native functions don't support keyword arguments."},
		{"unknown method keyword", "[1].sort(up=true)", "Unknown keyword argument 'up'."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, Config{}, tt.source)
			var rerr *RuntimeError
			if !errors.As(err, &rerr) {
				t.Fatalf("Run error = %v, want *RuntimeError", err)
			}
			if rerr.Message != tt.want {
				t.Errorf("Message = %q, want %q", rerr.Message, tt.want)
			}
		})
	}
}

func TestRuntimeErrorTrace(t *testing.T) {
	source := `fn inner() {
  return 1 / 0
}
fn outer() {
  return inner()
}
outer()`
	_, _, err := run(t, Config{}, source)
	var rerr *RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("Run error = %v, want *RuntimeError", err)
	}
	var names []string
	for _, e := range rerr.Trace {
		names = append(names, e.Function)
	}
	if got := strings.Join(names, ","); got != "inner,outer,script" {
		t.Errorf("trace functions = %s, want inner,outer,script", got)
	}
	if !strings.Contains(err.Error(), "[line 2] in inner") {
		t.Errorf("error text %q does not mention [line 2] in inner", err.Error())
	}
}

func TestStackOverflow(t *testing.T) {
	v := New(Config{MaxFrames: 64})
	prog, err := v.Compile("fn r(n) { return r(n + 1) }\nr(0)")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	_, err = v.Run(context.Background(), prog)
	if !errors.Is(err, ErrStackOverflow) {
		t.Fatalf("Run error = %v, want ErrStackOverflow", err)
	}

	// The VM is usable after the failed run.
	prog, err = v.Compile("1 + 1")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	result, err := v.Run(context.Background(), prog)
	if err != nil || result.AsInt() != 2 {
		t.Errorf("Run after overflow = %v, %v; want 2, nil", result, err)
	}
}

func TestUncaughtErrorValue(t *testing.T) {
	source := `enum E! { Bad }
fn f() -> int | E! { raise E!::Bad }
f()`
	_, _, err := run(t, Config{}, source)
	var raised *RaisedError
	if !errors.As(err, &raised) {
		t.Fatalf("Run error = %v, want *RaisedError", err)
	}
	if raised.Text != "E!::Bad" {
		t.Errorf("Text = %q, want %q", raised.Text, "E!::Bad")
	}
}

func TestCancellation(t *testing.T) {
	v := New(Config{CancelCheckInterval: 10})
	prog, err := v.Compile("while true {}")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = v.Run(ctx, prog)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	var rerr *RuntimeError
	if !errors.As(err, &rerr) || rerr.Message != "Execution cancelled." {
		t.Errorf("Run error = %v, want Execution cancelled.", err)
	}
}

func TestGlobalsPersistAcrossRuns(t *testing.T) {
	v := New(Config{})
	for _, src := range []string{"let x = 5", "fn add(a, b) { return a + b }"} {
		prog, err := v.Compile(src)
		if err != nil {
			t.Fatalf("Compile(%q) error: %v", src, err)
		}
		if _, err := v.Run(context.Background(), prog); err != nil {
			t.Fatalf("Run(%q) error: %v", src, err)
		}
	}

	prog, err := v.Compile("x * 2")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	result, err := v.Run(context.Background(), prog)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.AsInt() != 10 {
		t.Errorf("x * 2 = %v, want 10", result.AsInt())
	}

	add, ok := v.Global("add")
	if !ok {
		t.Fatal("expected global add")
	}
	sum, err := v.Call(context.Background(), add, FromInt(1), FromInt(2))
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if sum.AsInt() != 3 {
		t.Errorf("add(1, 2) = %d, want 3", sum.AsInt())
	}

	v.SetGlobal("greeting", v.NewString("hi"))
	prog, err = v.Compile("greeting + \"!\"")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	result, err = v.Run(context.Background(), prog)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := v.Format(result); got != "hi!" {
		t.Errorf("result = %q, want %q", got, "hi!")
	}
}

func TestVersionMismatch(t *testing.T) {
	v := New(Config{})
	prog, err := v.Compile("1")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	prog.Version++
	if _, err := v.Run(context.Background(), prog); err == nil {
		t.Error("expected an error for a bytecode version mismatch")
	}
}
