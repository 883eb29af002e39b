package bytecode

import (
	"strings"
	"testing"
)

func newTestFunction() *Function {
	c := NewChunk()
	c.AddSourceLocation(0, 1, 1)
	idx, _ := c.AddConstant(IntConst(42))
	c.EmitU16(OpConst, idx)
	c.EmitU16(OpDefineGlobal, 0)
	c.AddSourceLocation(uint32(c.CodeLen()), 2, 1)
	c.Emit(OpNil)
	c.Emit(OpReturn)
	return &Function{Kind: KindScript, Chunk: c}
}

func TestDisassembleSimple(t *testing.T) {
	output := newTestFunction().Disassemble()

	for _, want := range []string{"=== script ===", "CONST", "; 42", "DEFINE_GLOBAL", "NIL", "RETURN"} {
		if !strings.Contains(output, want) {
			t.Errorf("Disassembly missing %q:\n%s", want, output)
		}
	}
}

func TestDisassembleJumpTarget(t *testing.T) {
	c := NewChunk()
	c.Emit(OpTrue)
	placeholder := c.EmitJump(OpPopJumpIfFalse)
	c.Emit(OpNil)
	c.PatchJump(placeholder)
	c.Emit(OpReturn)

	text, n := c.DisassembleInstruction(1)
	if n != 3 {
		t.Errorf("instruction length = %d, want 3", n)
	}
	if !strings.Contains(text, "-> 0005") {
		t.Errorf("jump listing %q should name target 0005", text)
	}
}

func TestDisassembleNestedClosure(t *testing.T) {
	inner := &Function{
		Name:     "adder",
		Kind:     KindFunction,
		Params:   []Param{{Name: "x"}},
		Upvalues: []UpvalueDesc{{IsLocal: true, Index: 1}},
		Chunk:    NewChunk(),
	}
	inner.Chunk.Emit(OpNil)
	inner.Chunk.Emit(OpReturn)

	outer := NewChunk()
	idx, _ := outer.AddConstant(FuncConst(inner))
	outer.EmitWithOperand(OpClosure, byte(idx>>8), byte(idx), 1, 1)
	outer.Emit(OpReturn)

	if n := outer.InstructionLen(0); n != 5 {
		t.Fatalf("closure instruction length = %d, want 5", n)
	}

	output := (&Function{Kind: KindScript, Chunk: outer}).Disassemble()
	for _, want := range []string{"CLOSURE", "[local 1]", "=== adder ===", "Parameters (1): x"} {
		if !strings.Contains(output, want) {
			t.Errorf("Disassembly missing %q:\n%s", want, output)
		}
	}
}

func TestProgramDisassembleHeader(t *testing.T) {
	p := NewProgram(newTestFunction(), []string{"answer"}, []string{"print"})
	output := p.Disassemble()

	if !strings.Contains(output, "Globals: answer") {
		t.Errorf("missing globals header:\n%s", output)
	}
	if !strings.Contains(output, "Natives: print") {
		t.Errorf("missing natives header:\n%s", output)
	}
}
