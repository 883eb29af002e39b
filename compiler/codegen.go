package compiler

import (
	"fmt"

	"github.com/chazu/aiscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Codegen: Compile AST to bytecode
// ---------------------------------------------------------------------------

// NativeResolver reports the arity of a registered native function.
// An arity of -1 accepts any number of arguments.
type NativeResolver interface {
	LookupNative(name string) (arity int, ok bool)
}

// Option configures a compilation.
type Option func(*Compiler)

// WithNatives makes the resolver's natives callable by qualified name.
func WithNatives(r NativeResolver) Option {
	return func(c *Compiler) { c.natives = r }
}

// WithGlobals predeclares global names, in slot order. A REPL passes the
// globals of earlier inputs so later inputs can reference them.
func WithGlobals(names []string) Option {
	return func(c *Compiler) {
		for _, name := range names {
			c.addGlobal(name)
		}
	}
}

// Compiler compiles AST nodes to bytecode.
type Compiler struct {
	natives NativeResolver

	globals      []string
	globalIndex  map[string]int
	constGlobals map[string]bool

	nativeNames []string
	nativeSeen  map[string]bool

	fs     *funcState
	pos    Position
	errors ErrorList
}

// local is a named stack slot of the current function.
type local struct {
	name    string
	depth   int // scope depth
	slot    int
	isConst bool
}

type upvalueRef struct {
	desc bytecode.UpvalueDesc
	name string
}

// loopState tracks jumps out of the innermost loop.
type loopState struct {
	breakDepth     int
	continueDepth  int
	continueTarget int // -1 when continues jump forward
	breaks         []int
	continues      []int
}

// funcState is the per-function compilation context.
type funcState struct {
	enclosing  *funcState
	fn         *bytecode.Function
	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
	depth      int // values on the frame's stack, slot 0 included
	loops      []*loopState
}

// NewCompiler creates a new compiler.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		globalIndex:  make(map[string]int),
		constGlobals: make(map[string]bool),
		nativeSeen:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile parses and compiles source into a program. All syntax errors
// are reported before any code generation; the returned error is an
// ErrorList.
func Compile(source string, opts ...Option) (*bytecode.Program, error) {
	prog, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return NewCompiler(opts...).CompileProgram(prog)
}

// CompileProgram compiles a parsed program. The script body returns the
// value of its final expression statement, or nil.
func (c *Compiler) CompileProgram(prog *Program) (*bytecode.Program, error) {
	for _, stmt := range prog.Stmts {
		c.declareTopLevel(stmt)
	}

	main := &bytecode.Function{Name: "script", Kind: bytecode.KindScript, Chunk: bytecode.NewChunk()}
	c.fs = &funcState{fn: main, depth: 1}
	c.fs.locals = append(c.fs.locals, local{name: "", slot: 0})

	c.compileValueStmts(prog.Stmts)
	c.emit(bytecode.OpReturn)

	if len(c.errors) > 0 {
		return nil, c.errors
	}
	return bytecode.NewProgram(main, c.globals, c.nativeNames), nil
}

// declareTopLevel reserves global slots for top-level declarations so
// functions can reference globals declared later in the file.
func (c *Compiler) declareTopLevel(stmt Stmt) {
	switch s := stmt.(type) {
	case *LetStmt:
		c.addGlobal(s.Name)
		if s.Const {
			c.constGlobals[s.Name] = true
		}
	case *FnStmt:
		c.addGlobal(s.Func.Name)
	case *ClassDecl:
		c.addGlobal(s.Name)
	case *EnumDecl:
		c.addGlobal(s.Name)
	}
}

func (c *Compiler) addGlobal(name string) int {
	if idx, ok := c.globalIndex[name]; ok {
		return idx
	}
	idx := len(c.globals)
	c.globals = append(c.globals, name)
	c.globalIndex[name] = idx
	return idx
}

// errorf records a compilation error at the current node.
func (c *Compiler) errorf(format string, args ...any) {
	c.errorAt(c.pos, format, args...)
}

func (c *Compiler) errorAt(pos Position, format string, args ...any) {
	c.errors = append(c.errors, &CompileError{Line: pos.Line, Column: pos.Column, Message: fmt.Sprintf(format, args...)})
}

// mark sets the source position for emitted code and returns the previous
// one so callers can restore it.
func (c *Compiler) mark(pos Position) Position {
	prev := c.pos
	if pos.Line > 0 {
		c.pos = pos
	}
	return prev
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (c *Compiler) chunk() *bytecode.Chunk {
	return c.fs.fn.Chunk
}

func (c *Compiler) recordPos(offset int) {
	c.chunk().AddSourceLocation(uint32(offset), uint32(c.pos.Line), uint16(c.pos.Column))
}

// emit appends an instruction and applies its stack effect.
func (c *Compiler) emit(op bytecode.Opcode, operands ...byte) int {
	offset := c.chunk().EmitWithOperand(op, operands...)
	c.recordPos(offset)
	c.fs.depth += stackEffect(op, operands)
	return offset
}

func (c *Compiler) emitU16(op bytecode.Opcode, v uint16, extra ...byte) int {
	return c.emit(op, append([]byte{byte(v >> 8), byte(v)}, extra...)...)
}

// stackEffect returns the net number of values op leaves on the stack.
func stackEffect(op bytecode.Opcode, operands []byte) int {
	u16 := func() int { return int(operands[0])<<8 | int(operands[1]) }
	switch op {
	case bytecode.OpEndScope, bytecode.OpPopN:
		return -int(operands[0])
	case bytecode.OpCall:
		return -(int(operands[0]) + 2*int(operands[1]))
	case bytecode.OpInvoke:
		return -(int(operands[2]) + 2*int(operands[3]))
	case bytecode.OpSuperInvoke:
		return -(int(operands[2]) + 2*int(operands[3]) + 1)
	case bytecode.OpArray, bytecode.OpTuple, bytecode.OpInterpolate:
		return 1 - u16()
	case bytecode.OpMap:
		return 1 - 2*u16()
	case bytecode.OpForIter:
		return int(operands[1])
	}
	info := bytecode.GetOpcodeInfo(op)
	return info.StackPush - info.StackPop
}

// emitJump emits a forward jump and returns its placeholder offset.
func (c *Compiler) emitJump(op bytecode.Opcode, leading ...byte) int {
	offset := c.chunk().CurrentOffset()
	ph := c.chunk().EmitJump(op, leading...)
	c.recordPos(offset)
	c.fs.depth += stackEffect(op, append(leading, 0, 0))
	return ph
}

func (c *Compiler) patchJump(ph int) {
	if err := c.chunk().PatchJump(ph); err != nil {
		c.errorf("Too much code to jump over.")
	}
}

func (c *Compiler) emitLoop(start int) {
	c.recordPos(c.chunk().CurrentOffset())
	if err := c.chunk().EmitLoop(start); err != nil {
		c.errorf("Loop body too large.")
	}
}

func (c *Compiler) makeConstant(k bytecode.Constant) uint16 {
	idx, err := c.chunk().AddConstant(k)
	if err != nil {
		c.errorf("Too many constants in one chunk.")
	}
	return idx
}

func (c *Compiler) nameConstant(name string) uint16 {
	return c.makeConstant(bytecode.StringConst(name))
}

func (c *Compiler) emitConstant(k bytecode.Constant) {
	switch k.Kind {
	case bytecode.ConstNil:
		c.emit(bytecode.OpNil)
	case bytecode.ConstBool:
		if k.Bool {
			c.emit(bytecode.OpTrue)
		} else {
			c.emit(bytecode.OpFalse)
		}
	default:
		c.emitU16(bytecode.OpConst, c.makeConstant(k))
	}
}

// emitPopN pops n slots, closing any captured ones.
func (c *Compiler) emitPopN(n int) {
	switch {
	case n == 1:
		c.emit(bytecode.OpPopN, 1)
	case n > 1:
		for n > 255 {
			c.emit(bytecode.OpPopN, 255)
			n -= 255
		}
		c.emit(bytecode.OpPopN, byte(n))
	}
}

// ---------------------------------------------------------------------------
// Scopes and variables
// ---------------------------------------------------------------------------

func (c *Compiler) beginScope() {
	c.fs.scopeDepth++
}

// closeScope drops the scope's locals from the table and returns how many
// stack slots they occupied.
func (c *Compiler) closeScope() int {
	fs := c.fs
	fs.scopeDepth--
	n := 0
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		fs.locals = fs.locals[:len(fs.locals)-1]
		n++
	}
	return n
}

// endScope pops the scope's locals.
func (c *Compiler) endScope() {
	c.emitPopN(c.closeScope())
}

// endScopeKeep pops the scope's locals from under the value on top.
func (c *Compiler) endScopeKeep() {
	if n := c.closeScope(); n > 0 {
		c.emit(bytecode.OpEndScope, byte(n))
	}
}

// declareLocal names the value on top of the stack.
func (c *Compiler) declareLocal(name string, isConst bool) {
	c.declareLocalAt(name, c.fs.depth-1, isConst)
}

func (c *Compiler) declareLocalAt(name string, slot int, isConst bool) {
	if slot > 255 {
		c.errorf("Too many local variables in function.")
		return
	}
	c.fs.locals = append(c.fs.locals, local{name: name, depth: c.fs.scopeDepth, slot: slot, isConst: isConst})
}

// atTopLevel reports whether declarations become globals.
func (c *Compiler) atTopLevel() bool {
	return c.fs.fn.Kind == bytecode.KindScript && c.fs.scopeDepth == 0
}

// defineVariable binds the value on top of the stack to name.
func (c *Compiler) defineVariable(name string, isConst bool) {
	if c.atTopLevel() {
		idx := c.addGlobal(name)
		if isConst {
			c.constGlobals[name] = true
		}
		c.emitU16(bytecode.OpDefineGlobal, uint16(idx))
		return
	}
	c.declareLocal(name, isConst)
}

func resolveLocal(fs *funcState, name string) (local, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return fs.locals[i], true
		}
	}
	return local{}, false
}

// resolveUpvalue finds name in an enclosing function and threads it
// through each intermediate closure.
func (c *Compiler) resolveUpvalue(fs *funcState, name string) (int, bool, bool) {
	if fs.enclosing == nil {
		return 0, false, false
	}
	if l, ok := resolveLocal(fs.enclosing, name); ok {
		idx, ok := c.addUpvalue(fs, bytecode.UpvalueDesc{IsLocal: true, Index: uint8(l.slot)}, name)
		return idx, l.isConst, ok
	}
	if up, isConst, ok := c.resolveUpvalue(fs.enclosing, name); ok {
		idx, ok := c.addUpvalue(fs, bytecode.UpvalueDesc{IsLocal: false, Index: uint8(up)}, name)
		return idx, isConst, ok
	}
	return 0, false, false
}

func (c *Compiler) addUpvalue(fs *funcState, desc bytecode.UpvalueDesc, name string) (int, bool) {
	for i, up := range fs.upvalues {
		if up.desc == desc {
			return i, true
		}
	}
	if len(fs.upvalues) >= 255 {
		c.errorf("Too many closure variables in function.")
		return 0, false
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{desc: desc, name: name})
	return len(fs.upvalues) - 1, true
}

// lookupNative resolves a qualified native name and records its use.
func (c *Compiler) lookupNative(name string) (int, bool) {
	if c.natives == nil {
		return 0, false
	}
	arity, ok := c.natives.LookupNative(name)
	if ok && !c.nativeSeen[name] {
		c.nativeSeen[name] = true
		c.nativeNames = append(c.nativeNames, name)
	}
	return arity, ok
}

// isVariable reports whether name resolves to a local, upvalue or global.
func (c *Compiler) isVariable(name string) bool {
	for fs := c.fs; fs != nil; fs = fs.enclosing {
		if _, ok := resolveLocal(fs, name); ok {
			return true
		}
	}
	_, ok := c.globalIndex[name]
	return ok
}

// emitGetVar loads a variable by name.
func (c *Compiler) emitGetVar(name string) {
	if l, ok := resolveLocal(c.fs, name); ok {
		c.emit(bytecode.OpGetLocal, byte(l.slot))
		return
	}
	if idx, _, ok := c.resolveUpvalue(c.fs, name); ok {
		c.emit(bytecode.OpGetUpvalue, byte(idx))
		return
	}
	if name == "self" || name == "super" {
		c.emitSpecialError(name)
		c.emit(bytecode.OpNil)
		return
	}
	if idx, ok := c.globalIndex[name]; ok {
		c.emitU16(bytecode.OpGetGlobal, uint16(idx))
		return
	}
	if _, ok := c.lookupNative(name); ok {
		c.emitU16(bytecode.OpNative, c.nameConstant(name))
		return
	}
	c.errorf("Undefined variable '%s'.", name)
	c.emit(bytecode.OpNil)
}

func (c *Compiler) emitSpecialError(name string) {
	if name == "self" {
		c.errorf("Can't use 'self' outside of a method.")
	} else {
		c.errorf("Can't use 'super' in a class with no superclass.")
	}
}

// emitSetVar stores the value on top of the stack into name, leaving it.
func (c *Compiler) emitSetVar(name string) {
	if l, ok := resolveLocal(c.fs, name); ok {
		if l.isConst {
			c.errorf("Cannot assign to constant '%s'.", name)
		}
		c.emit(bytecode.OpSetLocal, byte(l.slot))
		return
	}
	if idx, isConst, ok := c.resolveUpvalue(c.fs, name); ok {
		if isConst {
			c.errorf("Cannot assign to constant '%s'.", name)
		}
		c.emit(bytecode.OpSetUpvalue, byte(idx))
		return
	}
	if idx, ok := c.globalIndex[name]; ok {
		if c.constGlobals[name] {
			c.errorf("Cannot assign to constant '%s'.", name)
		}
		c.emitU16(bytecode.OpSetGlobal, uint16(idx))
		return
	}
	c.errorf("Undefined variable '%s'.", name)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// compileValueStmts compiles statements and leaves the value of the final
// expression statement (or nil) on the stack.
func (c *Compiler) compileValueStmts(stmts []Stmt) {
	for i, stmt := range stmts {
		if i == len(stmts)-1 {
			if es, ok := stmt.(*ExprStmt); ok {
				prev := c.mark(es.SpanVal.Start)
				c.compileExpr(es.Expr)
				c.mark(prev)
				return
			}
		}
		c.compileStmt(stmt)
	}
	c.emit(bytecode.OpNil)
}

func (c *Compiler) compileStmts(stmts []Stmt) {
	for _, stmt := range stmts {
		c.compileStmt(stmt)
	}
}

func (c *Compiler) compileStmt(stmt Stmt) {
	defer c.mark(c.mark(stmt.Span().Start))

	switch s := stmt.(type) {
	case *ExprStmt:
		c.compileExpr(s.Expr)
		c.emit(bytecode.OpPop)
	case *LetStmt:
		if s.Value != nil {
			c.compileExpr(s.Value)
		} else {
			c.emit(bytecode.OpNil)
		}
		c.defineVariable(s.Name, s.Const)
	case *FnStmt:
		c.compileFnStmt(s)
	case *Block:
		c.beginScope()
		c.compileStmts(s.Stmts)
		c.endScope()
	case *IfStmt:
		c.compileIf(s)
	case *WhileStmt:
		c.compileWhile(s)
	case *ForStmt:
		c.compileFor(s)
	case *ForInStmt:
		c.compileForIn(s)
	case *BreakStmt:
		c.compileBreak()
	case *ContinueStmt:
		c.compileContinue()
	case *ReturnStmt:
		c.compileReturn(s)
	case *RaiseStmt:
		if !c.fs.fn.Fallible {
			c.errorf("'raise' is only allowed in functions returning an error type.")
		}
		c.compileExpr(s.Value)
		c.emit(bytecode.OpRaise)
	case *ClassDecl:
		c.compileClass(s)
	case *EnumDecl:
		c.compileEnum(s)
	default:
		c.errorf("unsupported statement %T", stmt)
	}
}

func (c *Compiler) compileFnStmt(s *FnStmt) {
	if c.atTopLevel() {
		c.compileFunction(s.Func, bytecode.KindFunction)
		c.defineVariable(s.Func.Name, false)
		return
	}
	// Declare first so the body can refer to itself.
	c.declareLocalAt(s.Func.Name, c.fs.depth, false)
	c.compileFunction(s.Func, bytecode.KindFunction)
}

func (c *Compiler) compileIf(s *IfStmt) {
	c.compileExpr(s.Cond)
	elseJump := c.emitJump(bytecode.OpPopJumpIfFalse)
	c.compileStmt(s.Then)
	if s.Else == nil {
		c.patchJump(elseJump)
		return
	}
	endJump := c.emitJump(bytecode.OpJump)
	c.patchJump(elseJump)
	c.compileStmt(s.Else)
	c.patchJump(endJump)
}

func (c *Compiler) pushLoop(breakDepth, continueDepth, continueTarget int) *loopState {
	loop := &loopState{breakDepth: breakDepth, continueDepth: continueDepth, continueTarget: continueTarget}
	c.fs.loops = append(c.fs.loops, loop)
	return loop
}

func (c *Compiler) popLoop() {
	loop := c.fs.loops[len(c.fs.loops)-1]
	c.fs.loops = c.fs.loops[:len(c.fs.loops)-1]
	for _, ph := range loop.breaks {
		c.patchJump(ph)
	}
}

func (c *Compiler) compileWhile(s *WhileStmt) {
	start := c.chunk().CurrentOffset()
	c.compileExpr(s.Cond)
	exit := c.emitJump(bytecode.OpPopJumpIfFalse)
	c.pushLoop(c.fs.depth, c.fs.depth, start)
	c.compileStmt(s.Body)
	c.emitLoop(start)
	c.patchJump(exit)
	c.popLoop()
}

func (c *Compiler) compileFor(s *ForStmt) {
	c.beginScope()
	if s.Init != nil {
		c.compileStmt(s.Init)
	}
	start := c.chunk().CurrentOffset()
	exit := -1
	if s.Cond != nil {
		c.compileExpr(s.Cond)
		exit = c.emitJump(bytecode.OpPopJumpIfFalse)
	}
	loop := c.pushLoop(c.fs.depth, c.fs.depth, -1)
	c.compileStmt(s.Body)
	for _, ph := range loop.continues {
		c.patchJump(ph)
	}
	if s.Post != nil {
		c.compileExpr(s.Post)
		c.emit(bytecode.OpPop)
	}
	c.emitLoop(start)
	if exit >= 0 {
		c.patchJump(exit)
	}
	c.popLoop()
	c.endScope()
}

// compileForIn keeps the iterable and a cursor in hidden locals. Each
// iteration pushes fresh loop variables and pops them at the end, closing
// any captures.
func (c *Compiler) compileForIn(s *ForInStmt) {
	c.beginScope()
	c.compileExpr(s.Iterable)
	c.declareLocal("$iter", false)
	iterSlot := c.fs.depth - 1
	c.emitConstant(bytecode.IntConst(0))
	c.declareLocal("$idx", false)

	base := c.fs.depth
	start := c.chunk().CurrentOffset()
	vars := len(s.Vars)
	exit := c.emitJump(bytecode.OpForIter, byte(iterSlot), byte(vars))

	c.beginScope()
	for i, name := range s.Vars {
		c.declareLocalAt(name, base+i, false)
	}
	loop := c.pushLoop(base, c.fs.depth, -1)
	c.compileStmt(s.Body)
	for _, ph := range loop.continues {
		c.patchJump(ph)
	}
	c.endScope()
	c.emitLoop(start)
	c.patchJump(exit)
	c.popLoop()
	c.endScope()
}

func (c *Compiler) currentLoop() *loopState {
	if n := len(c.fs.loops); n > 0 {
		return c.fs.loops[n-1]
	}
	return nil
}

func (c *Compiler) compileBreak() {
	loop := c.currentLoop()
	if loop == nil {
		c.errorf("Can't use 'break' outside of a loop.")
		return
	}
	depth := c.fs.depth
	c.emitPopN(depth - loop.breakDepth)
	loop.breaks = append(loop.breaks, c.emitJump(bytecode.OpJump))
	c.fs.depth = depth
}

func (c *Compiler) compileContinue() {
	loop := c.currentLoop()
	if loop == nil {
		c.errorf("Can't use 'continue' outside of a loop.")
		return
	}
	depth := c.fs.depth
	c.emitPopN(depth - loop.continueDepth)
	if loop.continueTarget >= 0 {
		c.emitLoop(loop.continueTarget)
	} else {
		loop.continues = append(loop.continues, c.emitJump(bytecode.OpJump))
	}
	c.fs.depth = depth
}

func (c *Compiler) compileReturn(s *ReturnStmt) {
	switch c.fs.fn.Kind {
	case bytecode.KindScript:
		c.errorf("Can't return from top-level code.")
		return
	case bytecode.KindInitializer:
		if len(s.Values) > 0 {
			c.errorf("Can't return a value from an initializer.")
			return
		}
		c.emit(bytecode.OpGetLocal, 0)
		c.emit(bytecode.OpReturn)
		return
	}
	switch len(s.Values) {
	case 0:
		c.emit(bytecode.OpNil)
	case 1:
		c.compileExpr(s.Values[0])
	default:
		for _, v := range s.Values {
			c.compileExpr(v)
		}
		c.emitU16(bytecode.OpTuple, uint16(len(s.Values)))
	}
	c.emit(bytecode.OpReturn)
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// compileFunction compiles decl as a nested function and emits the
// closure that creates it.
func (c *Compiler) compileFunction(decl *FuncDecl, kind bytecode.FunctionKind) {
	defer c.mark(c.mark(decl.SpanVal.Start))

	if decl.HasSelf && kind != bytecode.KindMethod && kind != bytecode.KindInitializer {
		c.errorf("'self' parameter is only allowed in methods.")
	}

	fn := &bytecode.Function{
		Name:     decl.Name,
		Kind:     kind,
		Fallible: decl.Fallible,
		Doc:      decl.Doc,
		Chunk:    bytecode.NewChunk(),
	}
	for _, p := range decl.Params {
		param := bytecode.Param{Name: p.Name, Type: p.Type}
		if p.Default != nil {
			k, ok := literalConstant(p.Default)
			if !ok {
				c.errorAt(p.Pos, "Default value for '%s' must be a literal.", p.Name)
			}
			param.Default = &k
		}
		fn.Params = append(fn.Params, param)
	}

	fs := &funcState{enclosing: c.fs, fn: fn, scopeDepth: 1}
	slot0 := ""
	if kind == bytecode.KindMethod || kind == bytecode.KindInitializer {
		slot0 = "self"
	}
	fs.locals = append(fs.locals, local{name: slot0, depth: 1, slot: 0})
	for i, p := range decl.Params {
		fs.locals = append(fs.locals, local{name: p.Name, depth: 1, slot: i + 1})
	}
	fs.depth = 1 + len(decl.Params)
	c.fs = fs

	switch {
	case decl.ExprBody != nil:
		c.compileExpr(decl.ExprBody)
		c.emit(bytecode.OpReturn)
	case decl.Name == "" && kind == bytecode.KindFunction:
		// block-bodied lambdas evaluate to their final expression
		c.compileValueStmts(decl.Body.Stmts)
		c.emit(bytecode.OpReturn)
	default:
		c.compileStmts(decl.Body.Stmts)
		if kind == bytecode.KindInitializer {
			c.emit(bytecode.OpGetLocal, 0)
		} else {
			c.emit(bytecode.OpNil)
		}
		c.emit(bytecode.OpReturn)
	}

	for _, up := range fs.upvalues {
		fn.Upvalues = append(fn.Upvalues, up.desc)
	}
	c.fs = fs.enclosing

	operands := []byte{}
	for _, up := range fn.Upvalues {
		isLocal := byte(0)
		if up.IsLocal {
			isLocal = 1
		}
		operands = append(operands, isLocal, up.Index)
	}
	c.emitU16(bytecode.OpClosure, c.makeConstant(bytecode.FuncConst(fn)), operands...)
}

// literalConstant folds a literal expression into a constant.
func literalConstant(e Expr) (bytecode.Constant, bool) {
	switch lit := e.(type) {
	case *NilLiteral:
		return bytecode.NilConst(), true
	case *BoolLiteral:
		return bytecode.BoolConst(lit.Value), true
	case *IntLiteral:
		return bytecode.IntConst(lit.Value), true
	case *FloatLiteral:
		return bytecode.FloatConst(lit.Value), true
	case *StringLiteral:
		return bytecode.StringConst(lit.Value), true
	}
	return bytecode.NilConst(), false
}
