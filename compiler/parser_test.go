package compiler

import (
	"fmt"
	"strings"
	"testing"
)

// sexpr renders an expression as a prefix S-expression for assertions.
func sexpr(e Expr) string {
	switch n := e.(type) {
	case nil:
		return "_"
	case *NilLiteral:
		return "nil"
	case *BoolLiteral:
		return fmt.Sprintf("%t", n.Value)
	case *IntLiteral:
		return fmt.Sprintf("%d", n.Value)
	case *FloatLiteral:
		return fmt.Sprintf("%g", n.Value)
	case *StringLiteral:
		return fmt.Sprintf("%q", n.Value)
	case *FString:
		parts := make([]string, len(n.Parts))
		for i, p := range n.Parts {
			parts[i] = sexpr(p)
		}
		return "(f " + strings.Join(parts, " ") + ")"
	case *Identifier:
		return n.Name
	case *SelfExpr:
		return "self"
	case *SuperExpr:
		return "(super " + n.Method + ")"
	case *UnaryExpr:
		return fmt.Sprintf("(%s %s)", n.Op, sexpr(n.Operand))
	case *BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", n.Op, sexpr(n.Left), sexpr(n.Right))
	case *LogicalExpr:
		return fmt.Sprintf("(%s %s %s)", n.Op, sexpr(n.Left), sexpr(n.Right))
	case *TernaryExpr:
		return fmt.Sprintf("(if %s %s %s)", sexpr(n.Cond), sexpr(n.Then), sexpr(n.Else))
	case *RangeExpr:
		op := ".."
		if n.Inclusive {
			op = "..="
		}
		return fmt.Sprintf("(%s %s %s)", op, sexpr(n.Start), sexpr(n.End))
	case *AssignExpr:
		return fmt.Sprintf("(%s %s %s)", n.Op, sexpr(n.Target), sexpr(n.Value))
	case *CallExpr:
		parts := []string{"call", sexpr(n.Callee)}
		for _, a := range n.Args {
			parts = append(parts, sexpr(a))
		}
		for _, kw := range n.Kwargs {
			parts = append(parts, kw.Name+"="+sexpr(kw.Value))
		}
		return "(" + strings.Join(parts, " ") + ")"
	case *PropertyExpr:
		return fmt.Sprintf("(. %s %s)", sexpr(n.Object), n.Name)
	case *VariantExpr:
		return fmt.Sprintf("(:: %s %s)", sexpr(n.Enum), n.Name)
	case *IndexExpr:
		return fmt.Sprintf("(index %s %s)", sexpr(n.Object), sexpr(n.Index))
	case *SliceExpr:
		return fmt.Sprintf("(slice %s %s %s)", sexpr(n.Object), sexpr(n.Start), sexpr(n.End))
	case *PropagateExpr:
		return fmt.Sprintf("(? %s)", sexpr(n.Operand))
	case *CatchExpr:
		return fmt.Sprintf("(catch %s %s)", sexpr(n.Operand), n.Name)
	case *ArrayLiteral:
		return "[" + joinExprs(n.Elements) + "]"
	case *TupleLiteral:
		return "(tuple " + joinExprs(n.Elements) + ")"
	case *MapLiteral:
		parts := make([]string, len(n.Entries))
		for i, en := range n.Entries {
			parts[i] = sexpr(en.Key) + ":" + sexpr(en.Value)
		}
		return "{" + strings.Join(parts, " ") + "}"
	case *LambdaExpr:
		names := make([]string, len(n.Func.Params))
		for i, p := range n.Func.Params {
			names[i] = p.Name
		}
		body := "block"
		if n.Func.ExprBody != nil {
			body = sexpr(n.Func.ExprBody)
		}
		return fmt.Sprintf("(lambda (%s) %s)", strings.Join(names, " "), body)
	case *MatchExpr:
		return fmt.Sprintf("(match %s %d)", sexpr(n.Subject), len(n.Arms))
	}
	return fmt.Sprintf("<%T>", e)
}

func joinExprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = sexpr(e)
	}
	return strings.Join(parts, " ")
}

func parseExpr(t *testing.T, input string) Expr {
	t.Helper()
	p := NewParser(input)
	expr := p.ParseExpression()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("ParseExpression(%q) errors: %v", input, errs)
	}
	if !p.curTokenIs(TokenEOF) {
		t.Fatalf("ParseExpression(%q) stopped at %s", input, p.curToken)
	}
	return expr
}

func TestParserPrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "(+ 1 (* 2 3))"},
		{"(1 + 2) * 3", "(* (+ 1 2) 3)"},
		{"1 - 2 - 3", "(- (- 1 2) 3)"},
		{"-2 ** 2", "(- (** 2 2))"},
		{"2 ** 3 ** 2", "(** 2 (** 3 2))"},
		{"2 ** -1", "(** 2 -1)"},
		{"-x", "(- x)"},
		{"-5", "-5"},
		{"not a == b", "(== (not a) b)"},
		{"!a and b", "(and (not a) b)"},
		{"!!a", "(not (not a))"},
		{"x in xs", "(in x xs)"},
		{"a + 1 in xs and ok", "(and (in (+ a 1) xs) ok)"},
		{"not x in xs", "(in (not x) xs)"},
		{"k in 1..5", "(in k (.. 1 5))"},
		{"a or b and c", "(or a (and b c))"},
		{"a < b == c > d", "(> (== (< a b) c) d)"},
		{"1 | 2 ^ 3 & 4", "(| 1 (^ 2 (& 3 4)))"},
		{"1 << 2 + 3", "(<< 1 (+ 2 3))"},
		{"~a & b", "(& (~ a) b)"},
		{"x % 2 == 0 and y", "(and (== (% x 2) 0) y)"},
		{"a if c else b", "(if c a b)"},
		{"a if c else b if d else e", "(if c a (if d b e))"},
		{"x |> f", "(call f x)"},
		{"x |> f(1) |> g", "(call g (call f x 1))"},
		{"1..5", "(.. 1 5)"},
		{"1..=n + 1", "(..= 1 (+ n 1))"},
		{"a..", "(.. a _)"},
		{"x = y = 3", "(= x (= y 3))"},
		{"a.b += 1", "(+= (. a b) 1)"},
		{"a[i] = v", "(= (index a i) v)"},
	}

	for _, tc := range tests {
		got := sexpr(parseExpr(t, tc.input))
		if got != tc.want {
			t.Errorf("parse(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParserPostfix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"f()", "(call f)"},
		{"f(1, b=2, c=x)", "(call f 1 b=2 c=x)"},
		{"a.b.c(1)", "(call (. (. a b) c) 1)"},
		{"a[1]", "(index a 1)"},
		{"a[1:2]", "(slice a 1 2)"},
		{"a[:2]", "(slice a _ 2)"},
		{"a[-2:]", "(slice a -2 _)"},
		{"Color::Red", "(:: Color Red)"},
		{"ArithError!::DivideZero", "(:: ArithError! DivideZero)"},
		{"Num.One", "(. Num One)"},
		{"f()?", "(? (call f))"},
		{"f(x)? + 1", "(+ (? (call f x)) 1)"},
		{"f() |e| { 0 }", "(catch (call f) e)"},
		{"try f() catch err { 0 }", "(catch (call f) err)"},
		{"super.greet(1)", "(call (super greet) 1)"},
		{"self.name", "(. self name)"},
	}

	for _, tc := range tests {
		got := sexpr(parseExpr(t, tc.input))
		if got != tc.want {
			t.Errorf("parse(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParserLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"nil", "nil"},
		{"true", "true"},
		{"0x10", "16"},
		{"0b101", "5"},
		{"1.5", "1.5"},
		{`"hi"`, `"hi"`},
		{`r"a\n"`, `"a\\n"`},
		{"[1, 2, 3,]", "[1 2 3]"},
		{"()", "(tuple )"},
		{"(1,)", "(tuple 1)"},
		{"(1, 2)", "(tuple 1 2)"},
		{`{a: 1, "b": 2, [k]: 3, c}`, `{"a":1 "b":2 k:3 "c":c}`},
		{"{}", "{}"},
		{"|a, b| a + b", "(lambda (a b) (+ a b))"},
		{"|| 1", "(lambda () 1)"},
		{"|x| { x }", "(lambda (x) block)"},
		{`f"a{x}b"`, `(f "a" x "b")`},
		{`f"{a + 1}"`, `(f (+ a 1))`},
		{`f"n={m["k"]}\n"`, `(f "n=" (index m "k") "\n")`},
		{`f"\{x\}"`, `(f "{x}")`},
	}

	for _, tc := range tests {
		got := sexpr(parseExpr(t, tc.input))
		if got != tc.want {
			t.Errorf("parse(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParserRawStringFlag(t *testing.T) {
	lit, ok := parseExpr(t, `r"x"`).(*StringLiteral)
	if !ok || !lit.Raw {
		t.Fatalf("expected raw string literal, got %#v", lit)
	}
}

func parseProgram(t *testing.T, input string) *Program {
	t.Helper()
	prog, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", input, err)
	}
	return prog
}

func TestParserStatements(t *testing.T) {
	prog := parseProgram(t, `
		let x = 1
		const Y = 2;
		let z
		fn add(a, b: int = 2) -> int { return a + b }
		if x { x = 2 } else if Y { x = 3 } else { x = 4 }
		while x < 10 { x += 1; if x == 5 { break } }
		for let i = 0; i < 3; i += 1 { continue }
		for k, v in m { print(k) }
		{ let inner = 1 }
	`)

	wantTypes := []string{
		"*compiler.LetStmt", "*compiler.LetStmt", "*compiler.LetStmt", "*compiler.FnStmt",
		"*compiler.IfStmt", "*compiler.WhileStmt", "*compiler.ForStmt", "*compiler.ForInStmt",
		"*compiler.Block",
	}
	if len(prog.Stmts) != len(wantTypes) {
		t.Fatalf("got %d statements, want %d", len(prog.Stmts), len(wantTypes))
	}
	for i, want := range wantTypes {
		if got := fmt.Sprintf("%T", prog.Stmts[i]); got != want {
			t.Errorf("stmt[%d] = %s, want %s", i, got, want)
		}
	}

	if c := prog.Stmts[1].(*LetStmt); !c.Const || c.Name != "Y" {
		t.Errorf("const stmt = %+v", c)
	}
	if z := prog.Stmts[2].(*LetStmt); z.Value != nil {
		t.Errorf("let z value = %v, want nil", z.Value)
	}

	fn := prog.Stmts[3].(*FnStmt).Func
	if fn.Name != "add" || len(fn.Params) != 2 || fn.ReturnType != "int" || fn.Fallible {
		t.Errorf("fn = %+v", fn)
	}
	if fn.Params[1].Type != "int" || fn.Params[1].Default == nil {
		t.Errorf("param b = %+v", fn.Params[1])
	}

	ifs := prog.Stmts[4].(*IfStmt)
	if _, ok := ifs.Else.(*IfStmt); !ok {
		t.Errorf("else branch = %T, want *IfStmt", ifs.Else)
	}

	forIn := prog.Stmts[7].(*ForInStmt)
	if len(forIn.Vars) != 2 || forIn.Vars[0] != "k" || forIn.Vars[1] != "v" {
		t.Errorf("for-in vars = %v", forIn.Vars)
	}
}

func TestParserFallibleFunction(t *testing.T) {
	prog := parseProgram(t, `
		fn divide(a, b) -> int | ArithError! {
			"""Divides a by b."""
			if b == 0 { raise ArithError!::DivideZero }
			return a / b
		}
	`)
	fn := prog.Stmts[0].(*FnStmt).Func
	if !fn.Fallible {
		t.Errorf("divide should be fallible")
	}
	if fn.ReturnType != "int | ArithError!" {
		t.Errorf("return type = %q", fn.ReturnType)
	}
	if fn.Doc != "Divides a by b." {
		t.Errorf("doc = %q", fn.Doc)
	}
}

func TestParserClass(t *testing.T) {
	prog := parseProgram(t, `
		class Point(Base) {
			"""A point."""
			x: int = 0,
			y: int = 0
			label
			fn new(x, y) { self.x = x; self.y = y }
			fn norm(self) -> float { return (self.x ** 2 + self.y ** 2) ** 0.5 }
			fn origin() { return Point(0, 0) }
		}
		class NotFound! { resource: str }
	`)
	cls := prog.Stmts[0].(*ClassDecl)
	if cls.Name != "Point" || cls.Super != "Base" || cls.Doc != "A point." {
		t.Errorf("class = %+v", cls)
	}
	if len(cls.Fields) != 3 || cls.Fields[2].Name != "label" || cls.Fields[0].Type != "int" {
		t.Errorf("fields = %+v", cls.Fields)
	}
	if len(cls.Methods) != 3 {
		t.Fatalf("methods = %d, want 3", len(cls.Methods))
	}
	if cls.Methods[1].HasSelf != true || len(cls.Methods[1].Params) != 0 {
		t.Errorf("norm = %+v", cls.Methods[1])
	}
	if cls.Methods[2].HasSelf {
		t.Errorf("origin should be static")
	}

	errCls := prog.Stmts[1].(*ClassDecl)
	if errCls.Name != "NotFound!" || !errCls.IsError {
		t.Errorf("error class = %+v", errCls)
	}
}

func TestParserEnum(t *testing.T) {
	prog := parseProgram(t, `
		enum Color { Red = 1, Green, Blue = 5, fn describe(self) { return self.name } }
		enum IoError! { NotFound, Denied }
	`)
	e := prog.Stmts[0].(*EnumDecl)
	if e.Name != "Color" || len(e.Variants) != 3 || len(e.Methods) != 1 {
		t.Fatalf("enum = %+v", e)
	}
	if e.Variants[1].Value != nil {
		t.Errorf("Green value = %v, want implicit", e.Variants[1].Value)
	}
	errEnum := prog.Stmts[1].(*EnumDecl)
	if !errEnum.IsError || errEnum.Name != "IoError!" {
		t.Errorf("error enum = %+v", errEnum)
	}
}

func TestParserMatchPatterns(t *testing.T) {
	expr := parseExpr(t, `match n {
		0 => "zero",
		1 | 2 | 3 => "small",
		-5..0 => "negative",
		..=-6 => "very negative",
		11..=20 if n % 2 == 0 => "even medium",
		31.. => "large",
		Color::Red => "red",
		x if x > 100 => { let y = x; y },
		_ => "other"
	}`)
	m := expr.(*MatchExpr)
	if len(m.Arms) != 9 {
		t.Fatalf("arms = %d, want 9", len(m.Arms))
	}

	tests := []struct {
		arm   int
		types []string
		guard bool
	}{
		{0, []string{"*compiler.ValuePattern"}, false},
		{1, []string{"*compiler.ValuePattern", "*compiler.ValuePattern", "*compiler.ValuePattern"}, false},
		{2, []string{"*compiler.RangePattern"}, false},
		{3, []string{"*compiler.RangePattern"}, false},
		{4, []string{"*compiler.RangePattern"}, true},
		{5, []string{"*compiler.RangePattern"}, false},
		{6, []string{"*compiler.ValuePattern"}, false},
		{7, []string{"*compiler.BindingPattern"}, true},
		{8, []string{"*compiler.WildcardPattern"}, false},
	}
	for _, tc := range tests {
		arm := m.Arms[tc.arm]
		if len(arm.Patterns) != len(tc.types) {
			t.Errorf("arm %d: %d patterns, want %d", tc.arm, len(arm.Patterns), len(tc.types))
			continue
		}
		for i, want := range tc.types {
			if got := fmt.Sprintf("%T", arm.Patterns[i]); got != want {
				t.Errorf("arm %d pattern %d = %s, want %s", tc.arm, i, got, want)
			}
		}
		if (arm.Guard != nil) != tc.guard {
			t.Errorf("arm %d guard = %v, want %v", tc.arm, arm.Guard != nil, tc.guard)
		}
	}

	neg := m.Arms[2].Patterns[0].(*RangePattern)
	if lo, ok := neg.Lo.(*IntLiteral); !ok || lo.Value != -5 {
		t.Errorf("range lo = %v, want -5", neg.Lo)
	}
	openStart := m.Arms[3].Patterns[0].(*RangePattern)
	if openStart.Lo != nil || !openStart.Inclusive {
		t.Errorf("open-start range = %+v", openStart)
	}
	openEnd := m.Arms[5].Patterns[0].(*RangePattern)
	if openEnd.Hi != nil {
		t.Errorf("open-end range hi = %v, want nil", openEnd.Hi)
	}
	if _, ok := m.Arms[7].Body.(*BlockExpr); !ok {
		t.Errorf("arm 7 body = %T, want *BlockExpr", m.Arms[7].Body)
	}
}

func TestParserTernaryNeedsSameLine(t *testing.T) {
	prog := parseProgram(t, "let a = 1\nif a { a = 2 }")
	if len(prog.Stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(prog.Stmts))
	}
	if _, ok := prog.Stmts[1].(*IfStmt); !ok {
		t.Errorf("stmt[1] = %T, want *IfStmt", prog.Stmts[1])
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		line   int
		column int
	}{
		{"let = 1", "Expected variable name", 1, 5},
		{"1 +", "Expected expression", 1, 4},
		{"f(a=1, 2)", "Positional argument follows keyword argument", 1, 8},
		{"1 = 2", "Invalid assignment target", 1, 3},
		{"fn f(a = 1, b) {}", "Non-default argument 'b'", 1, 13},
		{"const X", "must be initialized", 1, 8},
		{"let x = \"abc", "unterminated string", 1, 9},
		{"\n\nif x {", "Expected '}'", 3, 7},
		{"match x { 1..= => 0 }", "Inclusive range pattern needs an upper bound", 1, 16},
	}

	for _, tc := range tests {
		_, err := Parse(tc.input)
		list, ok := err.(ErrorList)
		if !ok || len(list) == 0 {
			t.Errorf("Parse(%q): error = %v, want ErrorList", tc.input, err)
			continue
		}
		first := list[0]
		if !strings.Contains(first.Message, tc.want) {
			t.Errorf("Parse(%q): message = %q, want it to contain %q", tc.input, first.Message, tc.want)
		}
		if first.Line != tc.line || first.Column != tc.column {
			t.Errorf("Parse(%q): position = %d:%d, want %d:%d", tc.input, first.Line, first.Column, tc.line, tc.column)
		}
	}
}

func TestParserRecoversAfterError(t *testing.T) {
	_, err := Parse("let = 1\nlet y = )\nlet ok = 3")
	list, ok := err.(ErrorList)
	if !ok {
		t.Fatalf("error = %v, want ErrorList", err)
	}
	if len(list) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(list), list)
	}
}
