package vm

import (
	"context"
	"errors"
	"testing"
)

// eval runs source and formats the value of its final expression.
func eval(t *testing.T, cfg Config, source string) string {
	t.Helper()
	v := New(cfg)
	prog, err := v.Compile(source)
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", source, err)
	}
	result, err := v.Run(context.Background(), prog)
	if err != nil {
		t.Fatalf("Run(%q) error: %v", source, err)
	}
	return v.Format(result)
}

func TestBuiltinFunctions(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{`len("héllo")`, "5"},
		{`len([1, 2])`, "2"},
		{`len({a: 1})`, "1"},
		{`len(1..4)`, "3"},
		{`str(12) + "!"`, "12!"},
		{`int("42")`, "42"},
		{`int(" 0x10 ")`, "16"},
		{`int(3.9)`, "3"},
		{`int(true)`, "1"},
		{`float("1.5")`, "1.5"},
		{`float(2)`, "2"},
		{`bool("")`, "false"},
		{`bool([0])`, "true"},
		{`type(1)`, "int"},
		{`type("s")`, "string"},
		{`type([])`, "array"},
		{`type((1,))`, "tuple"},
		{`type(nil)`, "nil"},
		{"class P {}\ntype(P())", "P"},
		{`abs(-3)`, "3"},
		{`abs(-2.5)`, "2.5"},
		{`round(2.5)`, "2"},
		{`round(3.14159, 2)`, "3.14"},
		{`min(3, 1, 2)`, "1"},
		{`max([3, 9, 2])`, "9"},
		{`max("a", "c", "b")`, "c"},
		{`sum([1, 2, 3])`, "6"},
		{`sum([1, 2], 0.5)`, "3.5"},
		{`any([0, nil, 3])`, "true"},
		{`all([1, "", 3])`, "false"},
		{`zip([1, 2, 3], "ab")`, "[(1, a), (2, b)]"},
		{`set([1, 2, 1])`, "{1, 2}"},
		{`range(3)`, "[0, 1, 2]"},
		{`range(5, 0, -2)`, "[5, 3, 1]"},
		{`callable(len)`, "true"},
		{`callable(1)`, "false"},
		{`chr(65)`, "A"},
		{`ord("a")`, "97"},
		{`hex(255)`, "0xff"},
		{`oct(8)`, "0o10"},
		{`bin(-5)`, "-0b101"},
	}
	for _, tt := range tests {
		if got := eval(t, Config{}, tt.source); got != tt.want {
			t.Errorf("%s = %s, want %s", tt.source, got, tt.want)
		}
	}
}

func TestBuiltinMethods(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{`[3, 1, 2].sort()`, "[1, 2, 3]"},
		{`[3, 1, 2].sort(reverse=true)`, "[3, 2, 1]"},
		{`["b", "a"].sort()`, "[a, b]"},
		{`[1, 2, 3].pop()`, "3"},
		{`[1, 2, 3].pop(0)`, "1"},
		{`[1, 2, 3].pop(index=-2)`, "2"},
		{`[1, 3].insert(1, 2)`, "[1, 2, 3]"},
		{`[1, 2, 1].remove(1)`, "[2, 1]"},
		{`[1, 2].extend((3, 4))`, "[1, 2, 3, 4]"},
		{`[1, 2].push(3, 4).len()`, "4"},
		{`["a", 1].join("-")`, "a-1"},
		{`[1, 2].join(sep=",")`, "1,2"},
		{`[1, 2, 2].count(2)`, "2"},
		{`[1, 2, 3].index(3)`, "2"},
		{`[1, 2, 3].slice(1)`, "[2, 3]"},
		{`[1, 2, 3].reverse()`, "[3, 2, 1]"},
		{`[].is_empty()`, "true"},
		{`[1, 2, 3, 4][1:-1]`, "[2, 3]"},
		{`"héllo".index_of("l")`, "2"},
		{`"abc".index_of("z")`, "-1"},
		{`"a b  c".split()`, "[a, b, c]"},
		{`"a=b".split(sep="=")`, "[a, b]"},
		{`"abc".reverse()`, "cba"},
		{`"hello".substring(1, 3)`, "el"},
		{`"hello".slice(end=2)`, "he"},
		{`"héllo"[1]`, "é"},
		{`"-".join(["a", "b"])`, "a-b"},
		{`"aXbX".replace("X", "")`, "ab"},
		{`"ab".repeat(2)`, "abab"},
		{`"Hello".starts_with("He")`, "true"},
		{`"  x ".trim_start()`, "x "},
		{"let m = {a: 1}\nm.get(\"b\", 5)", "5"},
		{"let m = {a: 1}\nm.get(key=\"a\")", "1"},
		{"let m = {a: 1, b: 2}\nm.items()", "[(a, 1), (b, 2)]"},
		{"let m = {a: 1, b: 2}\nm.values()", "[1, 2]"},
		{"let m = {a: 1}\nm.remove(\"a\")", "1"},
		{"let m = {a: 1}\nm.missing", "nil"},
		{`set([1, 2]).union([2, 3])`, "{1, 2, 3}"},
		{`set([1, 2]).intersection([2, 3])`, "{2}"},
		{`set([1, 2]).difference([2, 3])`, "{1}"},
		{`set([1]).add(2).len()`, "2"},
		{`(1, 2, 1).count(1)`, "2"},
		{`(1, 2, 1).index(2)`, "1"},
		{`(1..=5).contains(5)`, "true"},
		{`(1..5).contains(5)`, "false"},
		{`(1..4).to_array()`, "[1, 2, 3]"},
		{`(1..).contains(1000)`, "true"},
	}
	for _, tt := range tests {
		if got := eval(t, Config{}, tt.source); got != tt.want {
			t.Errorf("%s = %s, want %s", tt.source, got, tt.want)
		}
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{`abs("x")`, "abs() argument must be a number."},
		{`int("abc")`, "could not convert string to int: 'abc'"},
		{`range(1, 2, 0)`, "range() step must not be zero."},
		{`min([])`, "min() arg is an empty sequence."},
		{`chr(-1)`, "chr() arg not in range(0x110000)"},
		{`map([1], 2)`, "map() second argument must be a function."},
		{`[1, "a"].sort()`, "sort() elements must be all numbers or all strings."},
		{`[1].remove(5)`, "Value '5' not found in array."},
		{`[1].pop(3)`, "Index 3 out of bounds for length 1."},
		{`"abc".foo()`, "Only instances have properties."},
		{`"ab".repeat(-1)`, "repeat() count must not be negative."},
		{`len(1..)`, "len() of an open-ended range is undefined."},
		{`"a".split(",", sep=",")`, "Keyword argument 'sep' was already specified as positional argument."},
		{`for x in 5 {}`, "Cannot iterate over a value of type 'int'."},
		{`(1, 2)[0] = 3`, "Tuples are immutable."},
		{`1 in 5`, "Right operand of 'in' must be an array, tuple, map, set, string or range."},
		{`1 in "abc"`, "Left operand of 'in' must be a string when the right is a string."},
	}
	for _, tt := range tests {
		_, _, err := run(t, Config{}, tt.source)
		var rerr *RuntimeError
		if !errors.As(err, &rerr) {
			t.Errorf("%s: error = %v, want *RuntimeError", tt.source, err)
			continue
		}
		if rerr.Message != tt.want {
			t.Errorf("%s: Message = %q, want %q", tt.source, rerr.Message, tt.want)
		}
	}
}

func TestStructuralKeys(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"array key", "let m = {}\nm[[1, 2]] = \"a\"\nm[[1, 2]]", "a"},
		{"map key replaces", "let m = {}\nm[{k: 1}] = 1\nm[{k: 1}] = 2\nm.len()", "1"},
		{"map key ignores order", "let m = {}\nm[{a: 1, b: 2}] = \"x\"\nm[{b: 2, a: 1}]", "x"},
		{"array and tuple differ", "let m = {}\nm[[1]] = 1\nm[(1,)]", "nil"},
		{"nested array key", "let m = {}\nm[[[1], \"s\"]] = 3\nm.get([[1], \"s\"])", "3"},
		{"set dedups arrays", `set([[1], [1]]).len()`, "1"},
		{"set dedups sets", `set([set([1, 2]), set([2, 1])]).len()`, "1"},
		{"set dedups numbers", `set([1.0, 1]).len()`, "1"},
		{"maps with array keys compare equal", "let a = {}\na[[1, 2]] = 1\nlet b = {}\nb[[1, 2]] = 1\na == b", "true"},
		{"self-referencing key", "let a = [1]\na.append(a)\nset([a, a]).len()", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eachMode(t, func(t *testing.T, cfg Config) {
				if got := eval(t, cfg, tt.source); got != tt.want {
					t.Errorf("%s = %s, want %s", tt.source, got, tt.want)
				}
			})
		})
	}
}

func TestInOperator(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{`2 in [1, 2, 3]`, "true"},
		{`4 in [1, 2, 3]`, "false"},
		{`[1] in [[1], [2]]`, "true"},
		{`3 in (1, 2)`, "false"},
		{`"b" in {a: 1, b: 2}`, "true"},
		{`"z" in {a: 1}`, "false"},
		{`[1, 2] in set([[1, 2]])`, "true"},
		{`"ell" in "hello"`, "true"},
		{`5 in 1..=5`, "true"},
		{`5 in 1..5`, "false"},
		{`1000 in 1..`, "true"},
		{`2.5 in 1..5`, "false"},
		{`!true`, "false"},
		{`!(1 in [2])`, "true"},
		{`!!nil`, "false"},
	}
	for _, tt := range tests {
		if got := eval(t, Config{}, tt.source); got != tt.want {
			t.Errorf("%s = %s, want %s", tt.source, got, tt.want)
		}
	}
}

func TestCallbacksSurviveCollection(t *testing.T) {
	source := `let words = map(range(50), |n| f"w{n}")
let long = filter(words, |w| len(w) == 3)
long.len()`
	got := eval(t, Config{GCStress: true}, source)
	if got != "40" {
		t.Errorf("result = %s, want 40", got)
	}
}
