package compiler

import (
	"github.com/chazu/aiscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Class and enum declarations
// ---------------------------------------------------------------------------

// compileClass emits the class object, binds its name, then attaches
// methods. With a superclass, `super` becomes a local of an enclosing
// scope so methods capture the superclass as an upvalue.
func (c *Compiler) compileClass(d *ClassDecl) {
	tmpl := &bytecode.ClassTemplate{
		Name:      d.Name,
		IsError:   d.IsError,
		SuperName: d.Super,
		Doc:       d.Doc,
	}

	seen := make(map[string]bool)
	for _, f := range d.Fields {
		if seen[f.Name] {
			c.errorAt(f.Pos, "Duplicate field '%s' in class '%s'.", f.Name, d.Name)
			continue
		}
		seen[f.Name] = true
		field := bytecode.FieldDecl{Name: f.Name, Type: f.Type}
		if f.Default != nil {
			k, ok := literalConstant(f.Default)
			if !ok {
				c.errorAt(f.Pos, "Default value for field '%s' must be a literal.", f.Name)
			}
			field.Default = &k
		}
		tmpl.Fields = append(tmpl.Fields, field)
		tmpl.Layout = append(tmpl.Layout, f.Name)
	}

	methods := make(map[string]bool)
	for _, m := range d.Methods {
		if methods[m.Name] {
			c.errorAt(m.SpanVal.Start, "Duplicate method '%s' in class '%s'.", m.Name, d.Name)
		}
		methods[m.Name] = true
		if m.Name == "new" {
			for _, name := range collectSelfFields(m.Body) {
				if !seen[name] {
					seen[name] = true
					tmpl.Layout = append(tmpl.Layout, name)
				}
			}
		}
	}

	c.emitU16(bytecode.OpClass, c.makeConstant(bytecode.ClassConst(tmpl)))
	c.defineVariable(d.Name, false)

	if d.Super != "" {
		c.emitGetVar(d.Super)
		c.beginScope()
		c.declareLocal("super", false)
		c.emitGetVar(d.Name)
		c.emit(bytecode.OpInherit)
	}

	c.emitGetVar(d.Name)
	c.compileMethods(d.Methods)
	c.emit(bytecode.OpPop)

	if d.Super != "" {
		c.endScope()
	}
}

// compileMethods attaches each method closure to the class or enum on
// top of the stack.
func (c *Compiler) compileMethods(methods []*FuncDecl) {
	for _, m := range methods {
		kind := bytecode.KindStatic
		switch {
		case m.Name == "new":
			kind = bytecode.KindInitializer
		case m.HasSelf:
			kind = bytecode.KindMethod
		}
		c.compileFunction(m, kind)
		c.emitU16(bytecode.OpMethod, c.nameConstant(m.Name))
	}
}

// compileEnum validates variant payloads and emits the enum type.
func (c *Compiler) compileEnum(d *EnumDecl) {
	tmpl := &bytecode.EnumTemplate{Name: d.Name, IsError: d.IsError}

	names := make(map[string]bool)
	values := make(map[bytecode.Constant]string)
	next := int64(0)
	sawInt := false

	for _, v := range d.Variants {
		if names[v.Name] {
			c.errorAt(v.Pos, "Duplicate enum variant '%s'.", v.Name)
			continue
		}
		names[v.Name] = true

		var value bytecode.Constant
		if v.Value == nil {
			switch tmpl.Kind {
			case bytecode.PayloadNone:
				value = bytecode.NilConst()
			case bytecode.PayloadInt:
				value = bytecode.IntConst(next)
				next++
			default:
				c.errorAt(v.Pos, "Must specify value for non-integer enum variants")
				continue
			}
		} else {
			k, ok := literalConstant(v.Value)
			kind := payloadKind(k)
			if !ok || kind == bytecode.PayloadNone {
				c.errorAt(v.Pos, "Enum variant value must be a literal (integer, string, or boolean)")
				continue
			}
			if tmpl.Kind == bytecode.PayloadNone {
				tmpl.Kind = kind
			} else if kind != tmpl.Kind {
				c.errorAt(v.Pos, "Enum variant '%s' must be of type %s", v.Name, tmpl.Kind)
				continue
			}
			if kind == bytecode.PayloadInt {
				if sawInt && k.Int < next {
					c.errorAt(v.Pos, "Enum variant '%s' value %d must be greater than or equal to %d (next auto-increment value)", v.Name, k.Int, next)
					continue
				}
				sawInt = true
				next = k.Int + 1
			}
			value = k
		}

		if value.Kind != bytecode.ConstNil {
			if prev, dup := values[value]; dup {
				c.errorAt(v.Pos, "Duplicate value %s in enum variant '%s' (already used by '%s')", value, v.Name, prev)
				continue
			}
			values[value] = v.Name
		}
		tmpl.Variants = append(tmpl.Variants, bytecode.VariantDecl{Name: v.Name, Value: value})
	}

	for _, m := range d.Methods {
		if names[m.Name] {
			c.errorAt(m.SpanVal.Start, "Method '%s' conflicts with enum variant.", m.Name)
		}
		if m.Name == "new" {
			c.errorAt(m.SpanVal.Start, "Enums can't declare 'new'.")
		}
	}

	c.emitU16(bytecode.OpEnum, c.makeConstant(bytecode.EnumConst(tmpl)))
	c.defineVariable(d.Name, false)
	if len(d.Methods) > 0 {
		c.emitGetVar(d.Name)
		c.compileMethods(d.Methods)
		c.emit(bytecode.OpPop)
	}
}

func payloadKind(k bytecode.Constant) bytecode.PayloadKind {
	switch k.Kind {
	case bytecode.ConstInt:
		return bytecode.PayloadInt
	case bytecode.ConstString:
		return bytecode.PayloadString
	case bytecode.ConstBool:
		return bytecode.PayloadBool
	}
	return bytecode.PayloadNone
}

// collectSelfFields returns the names assigned via `self.name = ...`
// anywhere in a constructor body, in first-assignment order.
func collectSelfFields(body *Block) []string {
	var names []string
	seen := make(map[string]bool)
	var visitExpr func(e Expr)
	var visitStmt func(s Stmt)

	visitExpr = func(e Expr) {
		switch n := e.(type) {
		case *AssignExpr:
			if prop, ok := n.Target.(*PropertyExpr); ok {
				if _, isSelf := prop.Object.(*SelfExpr); isSelf && !seen[prop.Name] {
					seen[prop.Name] = true
					names = append(names, prop.Name)
				}
			}
			visitExpr(n.Target)
			visitExpr(n.Value)
		case *UnaryExpr:
			visitExpr(n.Operand)
		case *BinaryExpr:
			visitExpr(n.Left)
			visitExpr(n.Right)
		case *LogicalExpr:
			visitExpr(n.Left)
			visitExpr(n.Right)
		case *TernaryExpr:
			visitExpr(n.Then)
			visitExpr(n.Cond)
			visitExpr(n.Else)
		case *CallExpr:
			visitExpr(n.Callee)
			for _, a := range n.Args {
				visitExpr(a)
			}
			for _, kw := range n.Kwargs {
				visitExpr(kw.Value)
			}
		case *CatchExpr:
			visitExpr(n.Operand)
			visitStmt(n.Handler)
		case *MatchExpr:
			visitExpr(n.Subject)
			for _, arm := range n.Arms {
				if arm.Guard != nil {
					visitExpr(arm.Guard)
				}
				visitExpr(arm.Body)
			}
		case *BlockExpr:
			visitStmt(n.Block)
		}
	}

	visitStmt = func(s Stmt) {
		switch n := s.(type) {
		case *ExprStmt:
			visitExpr(n.Expr)
		case *LetStmt:
			if n.Value != nil {
				visitExpr(n.Value)
			}
		case *Block:
			for _, st := range n.Stmts {
				visitStmt(st)
			}
		case *IfStmt:
			visitExpr(n.Cond)
			visitStmt(n.Then)
			if n.Else != nil {
				visitStmt(n.Else)
			}
		case *WhileStmt:
			visitExpr(n.Cond)
			visitStmt(n.Body)
		case *ForStmt:
			if n.Init != nil {
				visitStmt(n.Init)
			}
			visitStmt(n.Body)
		case *ForInStmt:
			visitStmt(n.Body)
		}
	}

	if body != nil {
		visitStmt(body)
	}
	return names
}
