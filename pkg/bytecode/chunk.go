package bytecode

import (
	"fmt"
	"math"
)

// BytecodeVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const BytecodeVersion uint16 = 1

// ConstKind tags the payload carried by a Constant.
type ConstKind uint8

const (
	ConstNil ConstKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstString
	ConstFunction
	ConstClass
	ConstEnum
)

var constKindNames = [...]string{"nil", "bool", "int", "float", "string", "function", "class", "enum"}

// String returns a human-readable name for ConstKind.
func (k ConstKind) String() string {
	if int(k) < len(constKindNames) {
		return constKindNames[k]
	}
	return fmt.Sprintf("ConstKind(%d)", k)
}

// Constant is one entry of a chunk's constant pool. Scalars are stored
// inline; functions, classes and enums carry their compiled templates.
type Constant struct {
	Kind  ConstKind      `cbor:"k"`
	Bool  bool           `cbor:"b,omitempty"`
	Int   int64          `cbor:"i,omitempty"`
	Float float64        `cbor:"f,omitempty"`
	Str   string         `cbor:"s,omitempty"`
	Func  *Function      `cbor:"fn,omitempty"`
	Class *ClassTemplate `cbor:"cl,omitempty"`
	Enum  *EnumTemplate  `cbor:"en,omitempty"`
}

// Constructors for the scalar constant kinds.
func NilConst() Constant              { return Constant{Kind: ConstNil} }
func BoolConst(b bool) Constant       { return Constant{Kind: ConstBool, Bool: b} }
func IntConst(i int64) Constant       { return Constant{Kind: ConstInt, Int: i} }
func FloatConst(f float64) Constant   { return Constant{Kind: ConstFloat, Float: f} }
func StringConst(s string) Constant   { return Constant{Kind: ConstString, Str: s} }
func FuncConst(fn *Function) Constant { return Constant{Kind: ConstFunction, Func: fn} }

// Constructors for declaration templates.
func ClassConst(t *ClassTemplate) Constant { return Constant{Kind: ConstClass, Class: t} }
func EnumConst(t *EnumTemplate) Constant   { return Constant{Kind: ConstEnum, Enum: t} }

// sameScalar reports whether two scalar constants can share a pool slot.
// Floats compare by bit pattern so -0.0 and NaN stay distinct.
func (c Constant) sameScalar(o Constant) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case ConstNil:
		return true
	case ConstBool:
		return c.Bool == o.Bool
	case ConstInt:
		return c.Int == o.Int
	case ConstFloat:
		return math.Float64bits(c.Float) == math.Float64bits(o.Float)
	case ConstString:
		return c.Str == o.Str
	}
	return false
}

// String renders a constant for disassembly listings.
func (c Constant) String() string {
	switch c.Kind {
	case ConstNil:
		return "nil"
	case ConstBool:
		return fmt.Sprintf("%t", c.Bool)
	case ConstInt:
		return fmt.Sprintf("%d", c.Int)
	case ConstFloat:
		return fmt.Sprintf("%g", c.Float)
	case ConstString:
		s := c.Str
		if len(s) > 40 {
			s = s[:37] + "..."
		}
		return fmt.Sprintf("%q", s)
	case ConstFunction:
		return fmt.Sprintf("<fn %s>", c.Func.DisplayName())
	case ConstClass:
		return fmt.Sprintf("<class %s>", c.Class.Name)
	case ConstEnum:
		return fmt.Sprintf("<enum %s>", c.Enum.Name)
	}
	return "?"
}

// SourceLocation maps bytecode position to source location for debugging.
type SourceLocation struct {
	BytecodeOffset uint32 `cbor:"o"` // Offset in code section
	Line           uint32 `cbor:"l"` // Source line number (1-based)
	Column         uint16 `cbor:"c"` // Source column number (1-based)
}

// Chunk holds the instructions and constant pool of one function body.
type Chunk struct {
	Code      []byte           `cbor:"code"`
	Constants []Constant       `cbor:"consts"`
	SourceMap []SourceLocation `cbor:"lines,omitempty"`
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 64),
		Constants: make([]Constant, 0, 8),
	}
}

// AddConstant adds a constant to the pool and returns its index.
// Scalar constants already present are reused.
func (c *Chunk) AddConstant(value Constant) (uint16, error) {
	if value.Kind <= ConstString {
		for i, existing := range c.Constants {
			if existing.sameScalar(value) {
				return uint16(i), nil
			}
		}
	}
	if len(c.Constants) >= math.MaxUint16 {
		return 0, fmt.Errorf("too many constants in one chunk")
	}
	idx := uint16(len(c.Constants))
	c.Constants = append(c.Constants, value)
	return idx, nil
}

// GetConstant returns the constant at the given index.
// Panics if the index is out of bounds.
func (c *Chunk) GetConstant(index uint16) Constant {
	return c.Constants[index]
}

// Emit appends a single-byte opcode to the code section.
func (c *Chunk) Emit(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	return offset
}

// EmitWithOperand appends an opcode with operand bytes.
func (c *Chunk) EmitWithOperand(op Opcode, operands ...byte) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Code = append(c.Code, operands...)
	return offset
}

// EmitU16 appends an opcode followed by a big-endian 16-bit operand.
func (c *Chunk) EmitU16(op Opcode, operand uint16) int {
	return c.EmitWithOperand(op, byte(operand>>8), byte(operand))
}

// EmitJump emits a jump instruction with a placeholder offset after any
// leading operands. Returns the offset of the placeholder for later patching.
func (c *Chunk) EmitJump(op Opcode, leading ...byte) int {
	c.Code = append(c.Code, byte(op))
	c.Code = append(c.Code, leading...)
	offset := len(c.Code)
	c.Code = append(c.Code, 0xFF, 0xFF) // Placeholder
	return offset
}

// PatchJump patches a jump instruction's offset to jump to the current position.
func (c *Chunk) PatchJump(placeholderOffset int) error {
	return c.PatchJumpTo(placeholderOffset, len(c.Code))
}

// PatchJumpTo patches a jump to go to a specific offset.
func (c *Chunk) PatchJumpTo(placeholderOffset int, target int) error {
	jumpFrom := placeholderOffset + 2
	delta := target - jumpFrom
	if delta > math.MaxInt16 || delta < math.MinInt16 {
		return fmt.Errorf("jump distance %d exceeds 16-bit range", delta)
	}

	c.Code[placeholderOffset] = byte(delta >> 8)
	c.Code[placeholderOffset+1] = byte(delta)
	return nil
}

// EmitLoop emits a backward jump to the given loop start.
func (c *Chunk) EmitLoop(loopStart int) error {
	return c.PatchJumpTo(c.EmitJump(OpJump), loopStart)
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// CodeLen returns the length of the code section.
func (c *Chunk) CodeLen() int {
	return len(c.Code)
}

// ConstantCount returns the number of constants in the pool.
func (c *Chunk) ConstantCount() int {
	return len(c.Constants)
}

// ReadU16 decodes the big-endian operand at offset.
func (c *Chunk) ReadU16(offset int) uint16 {
	return uint16(c.Code[offset])<<8 | uint16(c.Code[offset+1])
}

// ReadI16 decodes the signed big-endian jump operand at offset.
func (c *Chunk) ReadI16(offset int) int {
	return int(int16(c.ReadU16(offset)))
}

// AddSourceLocation records the source position of the next instruction.
// Consecutive instructions on the same line share one entry.
func (c *Chunk) AddSourceLocation(bytecodeOffset uint32, line uint32, column uint16) {
	if n := len(c.SourceMap); n > 0 && c.SourceMap[n-1].Line == line {
		return
	}
	c.SourceMap = append(c.SourceMap, SourceLocation{
		BytecodeOffset: bytecodeOffset,
		Line:           line,
		Column:         column,
	})
}

// GetSourceLocation returns the source location for a bytecode offset.
// Returns line 0, column 0 if no mapping exists.
func (c *Chunk) GetSourceLocation(offset uint32) (line uint32, column uint16) {
	// Find the nearest mapping at or before the offset
	for i := len(c.SourceMap) - 1; i >= 0; i-- {
		if c.SourceMap[i].BytecodeOffset <= offset {
			return c.SourceMap[i].Line, c.SourceMap[i].Column
		}
	}
	return 0, 0
}

// InstructionLen returns the encoded length of the instruction at offset.
func (c *Chunk) InstructionLen(offset int) int {
	op := Opcode(c.Code[offset])
	if op == OpClosure {
		idx := c.ReadU16(offset + 1)
		fn := c.Constants[idx].Func
		return 3 + 2*len(fn.Upvalues)
	}
	n := op.OperandLen()
	if n < 0 {
		n = 0
	}
	return 1 + n
}
