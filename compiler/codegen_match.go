package compiler

import (
	"github.com/chazu/aiscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Pattern matching
// ---------------------------------------------------------------------------

// compileMatch lowers a match expression into ordered tests. The subject
// lives in a hidden local; arms are tried in source order and the first
// whose pattern and guard both succeed produces the value.
func (c *Compiler) compileMatch(m *MatchExpr) {
	c.beginScope()
	c.compileExpr(m.Subject)
	c.declareLocal("$match", false)
	subject := c.fs.depth - 1
	base := c.fs.depth

	var ends []int
	for _, arm := range m.Arms {
		ends = append(ends, c.compileArm(arm, subject, base))
	}

	c.emit(bytecode.OpGetLocal, byte(subject))
	c.emit(bytecode.OpNoMatch)

	for _, ph := range ends {
		c.patchJump(ph)
	}
	c.fs.depth = base + 1
	c.endScopeKeep()
}

// compileArm emits one arm and returns the jump to the end of the match.
func (c *Compiler) compileArm(arm *MatchArm, subject, base int) int {
	defer c.mark(c.mark(arm.SpanVal.Start))

	binding := ""
	for _, pat := range arm.Patterns {
		if b, ok := pat.(*BindingPattern); ok {
			if len(arm.Patterns) > 1 {
				c.errorAt(b.SpanVal.Start, "Cannot mix binding patterns with alternatives.")
			}
			binding = b.Name
		}
	}

	// Structural tests: any alternative passing jumps to the arm body.
	var matched []int
	next := -1
	for i, pat := range arm.Patterns {
		if !c.compilePatternTest(pat, subject) {
			// irrefutable: later alternatives are unreachable
			break
		}
		if i < len(arm.Patterns)-1 {
			matched = append(matched, c.emitJump(bytecode.OpPopJumpIfTrue))
		} else {
			next = c.emitJump(bytecode.OpPopJumpIfFalse)
		}
	}
	for _, ph := range matched {
		c.patchJump(ph)
	}

	c.beginScope()
	if binding != "" {
		c.emit(bytecode.OpGetLocal, byte(subject))
		c.declareLocal(binding, false)
	}
	armLocals := c.fs.depth - base

	guardFail := -1
	if arm.Guard != nil {
		c.compileExpr(arm.Guard)
		guardFail = c.emitJump(bytecode.OpPopJumpIfFalse)
	}

	c.compileExpr(arm.Body)
	c.endScopeKeep()
	end := c.emitJump(bytecode.OpJump)

	if guardFail >= 0 {
		c.patchJump(guardFail)
		c.fs.depth = base + armLocals
		c.emitPopN(armLocals)
	}
	if next >= 0 {
		c.patchJump(next)
	}
	c.fs.depth = base
	return end
}

// compilePatternTest pushes a bool telling whether the subject matches.
// Returns false, emitting nothing, for patterns that always match.
func (c *Compiler) compilePatternTest(pat Pattern, subject int) bool {
	switch p := pat.(type) {
	case *WildcardPattern, *BindingPattern:
		return false
	case *ValuePattern:
		c.emit(bytecode.OpGetLocal, byte(subject))
		c.compileExpr(p.Value)
		c.emit(bytecode.OpEqual)
	case *RangePattern:
		c.emit(bytecode.OpGetLocal, byte(subject))
		flags := byte(0)
		if p.Lo == nil {
			flags |= bytecode.RangeOpenStart
			c.emit(bytecode.OpNil)
		} else {
			c.compileExpr(p.Lo)
		}
		if p.Hi == nil {
			flags |= bytecode.RangeOpenEnd
			c.emit(bytecode.OpNil)
		} else {
			c.compileExpr(p.Hi)
			if p.Inclusive {
				flags |= bytecode.RangeInclusive
			}
		}
		c.emit(bytecode.OpInRange, flags)
	}
	return true
}
