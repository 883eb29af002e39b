package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the function and every
// function nested in its constant pool.
func (f *Function) Disassemble() string {
	var sb strings.Builder
	f.disassembleInto(&sb)
	return sb.String()
}

// Disassemble returns the listing of the program's script body.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; aiscript bytecode v%d\n", p.Version))
	if len(p.Globals) > 0 {
		sb.WriteString(fmt.Sprintf("; Globals: %s\n", strings.Join(p.Globals, ", ")))
	}
	if len(p.Natives) > 0 {
		sb.WriteString(fmt.Sprintf("; Natives: %s\n", strings.Join(p.Natives, ", ")))
	}
	p.Main.disassembleInto(&sb)
	return sb.String()
}

func (f *Function) disassembleInto(sb *strings.Builder) {
	sb.WriteString(fmt.Sprintf("; === %s ===\n", f.DisplayName()))
	if len(f.Params) > 0 {
		names := make([]string, len(f.Params))
		for i, p := range f.Params {
			names[i] = p.Name
			if p.Default != nil {
				names[i] += "=" + p.Default.String()
			}
		}
		sb.WriteString(fmt.Sprintf("; Parameters (%d): %s\n", len(f.Params), strings.Join(names, ", ")))
	}
	if f.Fallible {
		sb.WriteString("; Fallible\n")
	}
	if len(f.Upvalues) > 0 {
		sb.WriteString(fmt.Sprintf("; Upvalues: %d\n", len(f.Upvalues)))
	}

	c := f.Chunk
	if len(c.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, k := range c.Constants {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, k.String()))
		}
	}

	sb.WriteString("; Code:\n")
	offset := 0
	lastLine := uint32(0)
	for offset < len(c.Code) {
		text, n := c.DisassembleInstruction(offset)
		line, _ := c.GetSourceLocation(uint32(offset))
		if line != lastLine {
			sb.WriteString(fmt.Sprintf("%04X  %4d  %s\n", offset, line, text))
			lastLine = line
		} else {
			sb.WriteString(fmt.Sprintf("%04X     |  %s\n", offset, text))
		}
		offset += n
	}
	sb.WriteString("\n")

	for _, k := range c.Constants {
		if k.Kind == ConstFunction {
			k.Func.disassembleInto(sb)
		}
	}
}

// DisassembleInstruction disassembles a single instruction at the given offset.
// Returns the formatted string and the instruction length.
func (c *Chunk) DisassembleInstruction(offset int) (string, int) {
	if offset >= len(c.Code) {
		return "<end of code>", 0
	}

	op := Opcode(c.Code[offset])
	name := op.String()
	n := c.InstructionLen(offset)

	switch op {
	case OpConst, OpNative, OpGetProperty, OpSetProperty, OpGetSuper, OpGetVariant,
		OpClass, OpEnum, OpMethod:
		idx := c.ReadU16(offset + 1)
		return fmt.Sprintf("%-18s %4d ; %s", name, idx, c.constString(idx)), n

	case OpGetGlobal, OpSetGlobal, OpDefineGlobal, OpArray, OpMap, OpTuple, OpInterpolate:
		return fmt.Sprintf("%-18s %4d", name, c.ReadU16(offset+1)), n

	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpEndScope, OpPopN:
		return fmt.Sprintf("%-18s %4d", name, c.Code[offset+1]), n

	case OpRange, OpInRange:
		return fmt.Sprintf("%-18s %s", name, rangeFlagString(c.Code[offset+1])), n

	case OpJump, OpJumpIfFalse, OpJumpIfTrue, OpPopJumpIfFalse, OpPopJumpIfTrue, OpJumpIfNotError:
		delta := c.ReadI16(offset + 1)
		return fmt.Sprintf("%-18s %4d -> %04X", name, delta, offset+n+delta), n

	case OpForIter:
		delta := c.ReadI16(offset + 3)
		return fmt.Sprintf("%-18s slot=%d vars=%d -> %04X", name, c.Code[offset+1], c.Code[offset+2], offset+n+delta), n

	case OpCall:
		return fmt.Sprintf("%-18s argc=%d kwc=%d", name, c.Code[offset+1], c.Code[offset+2]), n

	case OpInvoke, OpSuperInvoke:
		idx := c.ReadU16(offset + 1)
		return fmt.Sprintf("%-18s %s argc=%d kwc=%d", name, c.constString(idx), c.Code[offset+3], c.Code[offset+4]), n

	case OpClosure:
		idx := c.ReadU16(offset + 1)
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%-18s %4d ; %s", name, idx, c.constString(idx)))
		for i := 3; i < n; i += 2 {
			kind := "upvalue"
			if c.Code[offset+i] == 1 {
				kind = "local"
			}
			sb.WriteString(fmt.Sprintf(" [%s %d]", kind, c.Code[offset+i+1]))
		}
		return sb.String(), n
	}

	return name, n
}

func (c *Chunk) constString(idx uint16) string {
	if int(idx) < len(c.Constants) {
		return c.Constants[idx].String()
	}
	return "<bad constant>"
}

func rangeFlagString(flags byte) string {
	var parts []string
	if flags&RangeInclusive != 0 {
		parts = append(parts, "inclusive")
	}
	if flags&RangeOpenStart != 0 {
		parts = append(parts, "open-start")
	}
	if flags&RangeOpenEnd != 0 {
		parts = append(parts, "open-end")
	}
	if len(parts) == 0 {
		return "exclusive"
	}
	return strings.Join(parts, ",")
}
