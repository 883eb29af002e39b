package compiler

import (
	"github.com/chazu/aiscript/pkg/bytecode"
)

var binaryOpcodes = map[TokenType]bytecode.Opcode{
	TokenPlus:      bytecode.OpAdd,
	TokenMinus:     bytecode.OpSub,
	TokenStar:      bytecode.OpMul,
	TokenSlash:     bytecode.OpDiv,
	TokenPercent:   bytecode.OpMod,
	TokenStarStar:  bytecode.OpPow,
	TokenAmp:       bytecode.OpBitAnd,
	TokenPipe:      bytecode.OpBitOr,
	TokenCaret:     bytecode.OpBitXor,
	TokenShl:       bytecode.OpShl,
	TokenShr:       bytecode.OpShr,
	TokenEq:        bytecode.OpEqual,
	TokenNotEq:     bytecode.OpNotEqual,
	TokenLess:      bytecode.OpLess,
	TokenLessEq:    bytecode.OpLessEqual,
	TokenGreater:   bytecode.OpGreater,
	TokenGreaterEq: bytecode.OpGreaterEqual,
	TokenIn:        bytecode.OpIn,
}

// compoundOpcodes maps compound assignment operators to their arithmetic.
var compoundOpcodes = map[TokenType]bytecode.Opcode{
	TokenPlusEq:    bytecode.OpAdd,
	TokenMinusEq:   bytecode.OpSub,
	TokenStarEq:    bytecode.OpMul,
	TokenSlashEq:   bytecode.OpDiv,
	TokenPercentEq: bytecode.OpMod,
}

func (c *Compiler) compileExpr(expr Expr) {
	defer c.mark(c.mark(expr.Span().Start))

	switch e := expr.(type) {
	case *NilLiteral:
		c.emit(bytecode.OpNil)
	case *BoolLiteral:
		c.emitConstant(bytecode.BoolConst(e.Value))
	case *IntLiteral:
		c.emitConstant(bytecode.IntConst(e.Value))
	case *FloatLiteral:
		c.emitConstant(bytecode.FloatConst(e.Value))
	case *StringLiteral:
		c.emitConstant(bytecode.StringConst(e.Value))
	case *FString:
		c.compileFString(e)
	case *ArrayLiteral:
		c.compileElements(e.Elements)
		c.emitU16(bytecode.OpArray, uint16(len(e.Elements)))
	case *TupleLiteral:
		c.compileElements(e.Elements)
		c.emitU16(bytecode.OpTuple, uint16(len(e.Elements)))
	case *MapLiteral:
		if len(e.Entries) > 0xFFFF {
			c.errorf("Too many entries in map literal.")
		}
		for _, entry := range e.Entries {
			c.compileExpr(entry.Key)
			c.compileExpr(entry.Value)
		}
		c.emitU16(bytecode.OpMap, uint16(len(e.Entries)))
	case *Identifier:
		c.emitGetVar(e.Name)
	case *SelfExpr:
		c.emitGetVar("self")
	case *SuperExpr:
		c.emitGetVar("self")
		c.emitGetVar("super")
		c.emitU16(bytecode.OpGetSuper, c.nameConstant(e.Method))
	case *UnaryExpr:
		c.compileExpr(e.Operand)
		switch e.Op {
		case TokenMinus:
			c.emit(bytecode.OpNeg)
		case TokenNot:
			c.emit(bytecode.OpNot)
		case TokenTilde:
			c.emit(bytecode.OpBitNot)
		}
	case *BinaryExpr:
		c.compileExpr(e.Left)
		c.compileExpr(e.Right)
		c.emit(binaryOpcodes[e.Op])
	case *LogicalExpr:
		c.compileExpr(e.Left)
		op := bytecode.OpJumpIfFalse
		if e.Op == TokenOr {
			op = bytecode.OpJumpIfTrue
		}
		end := c.emitJump(op)
		c.emit(bytecode.OpPop)
		c.compileExpr(e.Right)
		c.patchJump(end)
	case *TernaryExpr:
		c.compileExpr(e.Cond)
		elseJump := c.emitJump(bytecode.OpPopJumpIfFalse)
		depth := c.fs.depth
		c.compileExpr(e.Then)
		endJump := c.emitJump(bytecode.OpJump)
		c.fs.depth = depth
		c.patchJump(elseJump)
		c.compileExpr(e.Else)
		c.patchJump(endJump)
	case *RangeExpr:
		c.compileExpr(e.Start)
		flags := byte(0)
		if e.End != nil {
			c.compileExpr(e.End)
			if e.Inclusive {
				flags |= bytecode.RangeInclusive
			}
		} else {
			c.emit(bytecode.OpNil)
			flags |= bytecode.RangeOpenEnd
		}
		c.emit(bytecode.OpRange, flags)
	case *AssignExpr:
		c.compileAssign(e)
	case *CallExpr:
		c.compileCall(e)
	case *PropertyExpr:
		if name, ok := c.nativePath(e); ok {
			c.emitU16(bytecode.OpNative, c.nameConstant(name))
			return
		}
		c.compileExpr(e.Object)
		c.emitU16(bytecode.OpGetProperty, c.nameConstant(e.Name))
	case *VariantExpr:
		c.compileExpr(e.Enum)
		c.emitU16(bytecode.OpGetVariant, c.nameConstant(e.Name))
	case *IndexExpr:
		c.compileExpr(e.Object)
		c.compileExpr(e.Index)
		c.emit(bytecode.OpGetIndex)
	case *SliceExpr:
		c.compileExpr(e.Object)
		c.compileOptional(e.Start)
		c.compileOptional(e.End)
		c.emit(bytecode.OpSlice)
	case *PropagateExpr:
		if !c.fs.fn.Fallible {
			c.errorf("The '?' operator is only allowed in functions returning an error type.")
		}
		c.compileExpr(e.Operand)
		c.emit(bytecode.OpPropagate)
	case *CatchExpr:
		c.compileCatch(e)
	case *LambdaExpr:
		c.compileFunction(e.Func, bytecode.KindFunction)
	case *MatchExpr:
		c.compileMatch(e)
	case *BlockExpr:
		c.compileBlockValue(e.Block)
	default:
		c.errorf("unsupported expression %T", expr)
		c.emit(bytecode.OpNil)
	}
}

func (c *Compiler) compileElements(elems []Expr) {
	if len(elems) > 0xFFFF {
		c.errorf("Too many elements in literal.")
	}
	for _, el := range elems {
		c.compileExpr(el)
	}
}

func (c *Compiler) compileOptional(e Expr) {
	if e == nil {
		c.emit(bytecode.OpNil)
		return
	}
	c.compileExpr(e)
}

func (c *Compiler) compileFString(fs *FString) {
	switch {
	case len(fs.Parts) == 0:
		c.emitConstant(bytecode.StringConst(""))
		return
	case len(fs.Parts) == 1:
		if lit, ok := fs.Parts[0].(*StringLiteral); ok {
			c.emitConstant(bytecode.StringConst(lit.Value))
			return
		}
	}
	for _, part := range fs.Parts {
		c.compileExpr(part)
	}
	c.emitU16(bytecode.OpInterpolate, uint16(len(fs.Parts)))
}

// compileBlockValue runs a block in its own scope and leaves its value.
func (c *Compiler) compileBlockValue(b *Block) {
	c.beginScope()
	c.compileValueStmts(b.Stmts)
	c.endScopeKeep()
}

// compileCatch lowers `try e catch err { h }` and `e |err| { h }`. The
// error value stays in its stack slot as the handler's `err` local.
func (c *Compiler) compileCatch(e *CatchExpr) {
	c.compileExpr(e.Operand)
	end := c.emitJump(bytecode.OpJumpIfNotError)
	c.beginScope()
	c.declareLocal(e.Name, false)
	c.compileBlockValue(e.Handler)
	c.endScopeKeep()
	c.patchJump(end)
}

// nativePath returns the dotted native name for a.b.c chains whose root
// is not a variable, when such a native is registered.
func (c *Compiler) nativePath(e Expr) (string, bool) {
	name, ok := dottedName(e)
	if !ok {
		return "", false
	}
	root := name
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			root = name[:i]
			break
		}
	}
	if c.isVariable(root) {
		return "", false
	}
	if _, ok := c.lookupNative(name); !ok {
		return "", false
	}
	return name, true
}

func dottedName(e Expr) (string, bool) {
	switch n := e.(type) {
	case *Identifier:
		return n.Name, true
	case *PropertyExpr:
		prefix, ok := dottedName(n.Object)
		if !ok {
			return "", false
		}
		return prefix + "." + n.Name, true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

func (c *Compiler) compileAssign(e *AssignExpr) {
	arith, compound := compoundOpcodes[e.Op]

	switch target := e.Target.(type) {
	case *Identifier:
		if compound {
			c.emitGetVar(target.Name)
			c.compileExpr(e.Value)
			c.emit(arith)
		} else {
			c.compileExpr(e.Value)
		}
		c.emitSetVar(target.Name)

	case *PropertyExpr:
		c.compileExpr(target.Object)
		name := c.nameConstant(target.Name)
		if compound {
			c.emit(bytecode.OpDup)
			c.emitU16(bytecode.OpGetProperty, name)
			c.compileExpr(e.Value)
			c.emit(arith)
		} else {
			c.compileExpr(e.Value)
		}
		c.emitU16(bytecode.OpSetProperty, name)

	case *IndexExpr:
		c.compileExpr(target.Object)
		c.compileExpr(target.Index)
		if compound {
			c.emit(bytecode.OpDup2)
			c.emit(bytecode.OpGetIndex)
			c.compileExpr(e.Value)
			c.emit(arith)
		} else {
			c.compileExpr(e.Value)
		}
		c.emit(bytecode.OpSetIndex)

	default:
		c.errorf("Invalid assignment target.")
		c.emit(bytecode.OpNil)
	}
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// compileArgs pushes positional arguments then (name, value) keyword pairs.
func (c *Compiler) compileArgs(call *CallExpr) (byte, byte) {
	for _, arg := range call.Args {
		c.compileExpr(arg)
	}
	for _, kw := range call.Kwargs {
		c.emitConstant(bytecode.StringConst(kw.Name))
		c.compileExpr(kw.Value)
	}
	return byte(len(call.Args)), byte(len(call.Kwargs))
}

func (c *Compiler) compileCall(call *CallExpr) {
	switch callee := call.Callee.(type) {
	case *SuperExpr:
		c.emitGetVar("self")
		argc, kwc := c.compileArgs(call)
		c.emitGetVar("super")
		c.emitU16(bytecode.OpSuperInvoke, c.nameConstant(callee.Method), argc, kwc)
		return

	case *Identifier:
		if !c.isVariable(callee.Name) {
			c.checkNativeArity(callee.Name, call)
		}

	case *PropertyExpr:
		if name, ok := c.nativePath(callee); ok {
			c.checkNativeArity(name, call)
			c.emitU16(bytecode.OpNative, c.nameConstant(name))
			argc, kwc := c.compileArgs(call)
			c.emit(bytecode.OpCall, argc, kwc)
			return
		}
		c.compileExpr(callee.Object)
		argc, kwc := c.compileArgs(call)
		c.emitU16(bytecode.OpInvoke, c.nameConstant(callee.Name), argc, kwc)
		return
	}

	c.compileExpr(call.Callee)
	argc, kwc := c.compileArgs(call)
	c.emit(bytecode.OpCall, argc, kwc)
}

// checkNativeArity validates a call to a native at compile time.
func (c *Compiler) checkNativeArity(name string, call *CallExpr) {
	arity, ok := c.lookupNative(name)
	if !ok || arity < 0 {
		return
	}
	if got := len(call.Args) + len(call.Kwargs); got != arity {
		c.errorf("Expected %d arguments but got %d.", arity, got)
	}
}
