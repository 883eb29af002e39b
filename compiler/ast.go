package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for aiscript
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// NilLiteral represents nil.
type NilLiteral struct {
	SpanVal Span
}

func (n *NilLiteral) Span() Span { return n.SpanVal }
func (n *NilLiteral) node()      {}
func (n *NilLiteral) expr()      {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// IntLiteral represents an integer literal.
type IntLiteral struct {
	SpanVal Span
	Value   int64
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// FloatLiteral represents a floating-point literal.
type FloatLiteral struct {
	SpanVal Span
	Value   float64
}

func (n *FloatLiteral) Span() Span { return n.SpanVal }
func (n *FloatLiteral) node()      {}
func (n *FloatLiteral) expr()      {}

// StringLiteral represents a plain or raw string literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
	Raw     bool
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// FString is an interpolated string. Parts alternate between string
// literals and spliced expressions in source order.
type FString struct {
	SpanVal Span
	Parts   []Expr
}

func (n *FString) Span() Span { return n.SpanVal }
func (n *FString) node()      {}
func (n *FString) expr()      {}

// ArrayLiteral represents [a, b, c].
type ArrayLiteral struct {
	SpanVal  Span
	Elements []Expr
}

func (n *ArrayLiteral) Span() Span { return n.SpanVal }
func (n *ArrayLiteral) node()      {}
func (n *ArrayLiteral) expr()      {}

// TupleLiteral represents (), (a,) and (a, b).
type TupleLiteral struct {
	SpanVal  Span
	Elements []Expr
}

func (n *TupleLiteral) Span() Span { return n.SpanVal }
func (n *TupleLiteral) node()      {}
func (n *TupleLiteral) expr()      {}

// MapEntry is one key: value pair of a map literal.
type MapEntry struct {
	Key   Expr
	Value Expr
}

// MapLiteral represents {k: v, ...}.
type MapLiteral struct {
	SpanVal Span
	Entries []MapEntry
}

func (n *MapLiteral) Span() Span { return n.SpanVal }
func (n *MapLiteral) node()      {}
func (n *MapLiteral) expr()      {}

// Identifier is a variable reference. Error type names keep their "!".
type Identifier struct {
	SpanVal Span
	Name    string
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}
func (n *Identifier) expr()      {}

// SelfExpr represents self.
type SelfExpr struct {
	SpanVal Span
}

func (n *SelfExpr) Span() Span { return n.SpanVal }
func (n *SelfExpr) node()      {}
func (n *SelfExpr) expr()      {}

// SuperExpr represents super.method.
type SuperExpr struct {
	SpanVal Span
	Method  string
}

func (n *SuperExpr) Span() Span { return n.SpanVal }
func (n *SuperExpr) node()      {}
func (n *SuperExpr) expr()      {}

// UnaryExpr represents -x, not x and ~x.
type UnaryExpr struct {
	SpanVal Span
	Op      TokenType
	Operand Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// BinaryExpr represents an arithmetic, bitwise or comparison operation.
type BinaryExpr struct {
	SpanVal Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// LogicalExpr represents short-circuit and/or.
type LogicalExpr struct {
	SpanVal Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

func (n *LogicalExpr) Span() Span { return n.SpanVal }
func (n *LogicalExpr) node()      {}
func (n *LogicalExpr) expr()      {}

// TernaryExpr represents `Then if Cond else Else`.
type TernaryExpr struct {
	SpanVal Span
	Then    Expr
	Cond    Expr
	Else    Expr
}

func (n *TernaryExpr) Span() Span { return n.SpanVal }
func (n *TernaryExpr) node()      {}
func (n *TernaryExpr) expr()      {}

// RangeExpr represents a..b, a..=b and a.. (End is nil when open).
type RangeExpr struct {
	SpanVal   Span
	Start     Expr
	End       Expr
	Inclusive bool
}

func (n *RangeExpr) Span() Span { return n.SpanVal }
func (n *RangeExpr) node()      {}
func (n *RangeExpr) expr()      {}

// AssignExpr assigns to an identifier, property or index target. Op is
// TokenAssign or a compound operator such as TokenPlusEq.
type AssignExpr struct {
	SpanVal Span
	Target  Expr
	Op      TokenType
	Value   Expr
}

func (n *AssignExpr) Span() Span { return n.SpanVal }
func (n *AssignExpr) node()      {}
func (n *AssignExpr) expr()      {}

// KeywordArg is a name=value call argument.
type KeywordArg struct {
	Name  string
	Value Expr
}

// CallExpr represents callee(args..., name=value...).
type CallExpr struct {
	SpanVal Span
	Callee  Expr
	Args    []Expr
	Kwargs  []KeywordArg
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// PropertyExpr represents obj.name.
type PropertyExpr struct {
	SpanVal Span
	Object  Expr
	Name    string
}

func (n *PropertyExpr) Span() Span { return n.SpanVal }
func (n *PropertyExpr) node()      {}
func (n *PropertyExpr) expr()      {}

// VariantExpr represents Enum::Variant.
type VariantExpr struct {
	SpanVal Span
	Enum    Expr
	Name    string
}

func (n *VariantExpr) Span() Span { return n.SpanVal }
func (n *VariantExpr) node()      {}
func (n *VariantExpr) expr()      {}

// IndexExpr represents obj[index].
type IndexExpr struct {
	SpanVal Span
	Object  Expr
	Index   Expr
}

func (n *IndexExpr) Span() Span { return n.SpanVal }
func (n *IndexExpr) node()      {}
func (n *IndexExpr) expr()      {}

// SliceExpr represents obj[start:end] with either bound optional.
type SliceExpr struct {
	SpanVal Span
	Object  Expr
	Start   Expr
	End     Expr
}

func (n *SliceExpr) Span() Span { return n.SpanVal }
func (n *SliceExpr) node()      {}
func (n *SliceExpr) expr()      {}

// PropagateExpr represents expr?.
type PropagateExpr struct {
	SpanVal Span
	Operand Expr
}

func (n *PropagateExpr) Span() Span { return n.SpanVal }
func (n *PropagateExpr) node()      {}
func (n *PropagateExpr) expr()      {}

// CatchExpr represents `try Operand catch Name {Handler}` and
// `Operand |Name| {Handler}`.
type CatchExpr struct {
	SpanVal Span
	Operand Expr
	Name    string
	Handler *Block
}

func (n *CatchExpr) Span() Span { return n.SpanVal }
func (n *CatchExpr) node()      {}
func (n *CatchExpr) expr()      {}

// LambdaExpr represents |params| body.
type LambdaExpr struct {
	SpanVal Span
	Func    *FuncDecl
}

func (n *LambdaExpr) Span() Span { return n.SpanVal }
func (n *LambdaExpr) node()      {}
func (n *LambdaExpr) expr()      {}

// MatchArm is one `patterns [if guard] => body` arm. Body is either an
// expression or a *BlockExpr.
type MatchArm struct {
	SpanVal  Span
	Patterns []Pattern
	Guard    Expr
	Body     Expr
}

// MatchExpr represents match subject { arms }.
type MatchExpr struct {
	SpanVal Span
	Subject Expr
	Arms    []*MatchArm
}

func (n *MatchExpr) Span() Span { return n.SpanVal }
func (n *MatchExpr) node()      {}
func (n *MatchExpr) expr()      {}

// BlockExpr is a block used for its value: the final expression
// statement, or nil.
type BlockExpr struct {
	SpanVal Span
	Block   *Block
}

func (n *BlockExpr) Span() Span { return n.SpanVal }
func (n *BlockExpr) node()      {}
func (n *BlockExpr) expr()      {}

// ---------------------------------------------------------------------------
// Patterns
// ---------------------------------------------------------------------------

// Pattern is the interface for match patterns.
type Pattern interface {
	Node
	pattern() // marker method
}

// ValuePattern matches by equality with a literal or enum path.
type ValuePattern struct {
	SpanVal Span
	Value   Expr
}

func (n *ValuePattern) Span() Span { return n.SpanVal }
func (n *ValuePattern) node()      {}
func (n *ValuePattern) pattern()   {}

// RangePattern matches numbers in lo..hi, lo..=hi, lo.. or ..hi.
type RangePattern struct {
	SpanVal   Span
	Lo        Expr
	Hi        Expr
	Inclusive bool
}

func (n *RangePattern) Span() Span { return n.SpanVal }
func (n *RangePattern) node()      {}
func (n *RangePattern) pattern()   {}

// WildcardPattern matches anything without binding.
type WildcardPattern struct {
	SpanVal Span
}

func (n *WildcardPattern) Span() Span { return n.SpanVal }
func (n *WildcardPattern) node()      {}
func (n *WildcardPattern) pattern()   {}

// BindingPattern matches anything and binds it to Name.
type BindingPattern struct {
	SpanVal Span
	Name    string
}

func (n *BindingPattern) Span() Span { return n.SpanVal }
func (n *BindingPattern) node()      {}
func (n *BindingPattern) pattern()   {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// LetStmt declares a variable or constant. Value may be nil.
type LetStmt struct {
	SpanVal Span
	Name    string
	Value   Expr
	Const   bool
}

func (n *LetStmt) Span() Span { return n.SpanVal }
func (n *LetStmt) node()      {}
func (n *LetStmt) stmt()      {}

// Block is a braced statement list with its own scope.
type Block struct {
	SpanVal Span
	Stmts   []Stmt
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) stmt()      {}

// ReturnStmt returns zero, one or several (packed as a tuple) values.
type ReturnStmt struct {
	SpanVal Span
	Values  []Expr
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// IfStmt is if/else if/else. Else is nil, a *Block or an *IfStmt.
type IfStmt struct {
	SpanVal Span
	Cond    Expr
	Then    *Block
	Else    Stmt
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// WhileStmt is a while loop.
type WhileStmt struct {
	SpanVal Span
	Cond    Expr
	Body    *Block
}

func (n *WhileStmt) Span() Span { return n.SpanVal }
func (n *WhileStmt) node()      {}
func (n *WhileStmt) stmt()      {}

// ForStmt is a C-style for loop. Any clause may be nil.
type ForStmt struct {
	SpanVal Span
	Init    Stmt
	Cond    Expr
	Post    Expr
	Body    *Block
}

func (n *ForStmt) Span() Span { return n.SpanVal }
func (n *ForStmt) node()      {}
func (n *ForStmt) stmt()      {}

// ForInStmt iterates an array, map, set, tuple, string or range.
type ForInStmt struct {
	SpanVal  Span
	Vars     []string
	Iterable Expr
	Body     *Block
}

func (n *ForInStmt) Span() Span { return n.SpanVal }
func (n *ForInStmt) node()      {}
func (n *ForInStmt) stmt()      {}

// BreakStmt exits the innermost loop.
type BreakStmt struct {
	SpanVal Span
}

func (n *BreakStmt) Span() Span { return n.SpanVal }
func (n *BreakStmt) node()      {}
func (n *BreakStmt) stmt()      {}

// ContinueStmt starts the next iteration of the innermost loop.
type ContinueStmt struct {
	SpanVal Span
}

func (n *ContinueStmt) Span() Span { return n.SpanVal }
func (n *ContinueStmt) node()      {}
func (n *ContinueStmt) stmt()      {}

// RaiseStmt raises an error value from a fallible function.
type RaiseStmt struct {
	SpanVal Span
	Value   Expr
}

func (n *RaiseStmt) Span() Span { return n.SpanVal }
func (n *RaiseStmt) node()      {}
func (n *RaiseStmt) stmt()      {}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// ParamDecl is a declared parameter. Default must be a literal.
type ParamDecl struct {
	Name    string
	Type    string
	Default Expr
	Pos     Position
}

// FuncDecl is a named function, method or lambda. Exactly one of Body
// and ExprBody is set; ExprBody only for expression-bodied lambdas.
type FuncDecl struct {
	SpanVal    Span
	Name       string
	Params     []ParamDecl
	HasSelf    bool
	ReturnType string
	Fallible   bool
	Doc        string
	Body       *Block
	ExprBody   Expr
}

// FnStmt declares a named function.
type FnStmt struct {
	SpanVal Span
	Func    *FuncDecl
}

func (n *FnStmt) Span() Span { return n.SpanVal }
func (n *FnStmt) node()      {}
func (n *FnStmt) stmt()      {}

// FieldDecl is a class field with optional type and literal default.
type FieldDecl struct {
	Name    string
	Type    string
	Default Expr
	Pos     Position
}

// ClassDecl declares a class. Error classes have a name ending in "!".
type ClassDecl struct {
	SpanVal Span
	Name    string
	IsError bool
	Super   string
	Fields  []FieldDecl
	Methods []*FuncDecl
	Doc     string
}

func (n *ClassDecl) Span() Span { return n.SpanVal }
func (n *ClassDecl) node()      {}
func (n *ClassDecl) stmt()      {}

// EnumVariant is one declared variant. Value is nil when implicit.
type EnumVariant struct {
	Name  string
	Value Expr
	Pos   Position
}

// EnumDecl declares an enum. Error enums have a name ending in "!".
type EnumDecl struct {
	SpanVal  Span
	Name     string
	IsError  bool
	Variants []EnumVariant
	Methods  []*FuncDecl
}

func (n *EnumDecl) Span() Span { return n.SpanVal }
func (n *EnumDecl) node()      {}
func (n *EnumDecl) stmt()      {}

// Program is the root of a parsed source unit.
type Program struct {
	Stmts []Stmt
}
