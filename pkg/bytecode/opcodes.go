package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpNop      Opcode = 0x00 // No operation
	OpPop      Opcode = 0x01 // Pop top of stack
	OpDup      Opcode = 0x02 // Duplicate top of stack
	OpEndScope Opcode = 0x03 // Keep TOS, close upvalues and pop n slots below it: OpEndScope <n:u8>
	OpPopN     Opcode = 0x04 // Pop n slots, closing captured ones: OpPopN <n:u8>
	OpDup2     Opcode = 0x05 // Duplicate top two: a b -> a b a b

	// ========================================================================
	// Constants (0x10-0x1F)
	// ========================================================================

	OpConst  Opcode = 0x10 // Push constant from pool: OpConst <index:u16>
	OpNil    Opcode = 0x11 // Push nil
	OpTrue   Opcode = 0x12 // Push true
	OpFalse  Opcode = 0x13 // Push false
	OpNative Opcode = 0x14 // Push native function by qualified name: OpNative <name:u16>

	// ========================================================================
	// Variables (0x20-0x2F)
	// ========================================================================

	OpGetLocal     Opcode = 0x20 // Push local slot: OpGetLocal <slot:u8>
	OpSetLocal     Opcode = 0x21 // Store TOS to local slot (TOS stays): OpSetLocal <slot:u8>
	OpGetGlobal    Opcode = 0x22 // Push global: OpGetGlobal <slot:u16>
	OpSetGlobal    Opcode = 0x23 // Store TOS to global (TOS stays): OpSetGlobal <slot:u16>
	OpDefineGlobal Opcode = 0x24 // Pop TOS into global: OpDefineGlobal <slot:u16>
	OpGetUpvalue   Opcode = 0x25 // Push upvalue: OpGetUpvalue <index:u8>
	OpSetUpvalue   Opcode = 0x26 // Store TOS to upvalue (TOS stays): OpSetUpvalue <index:u8>

	// ========================================================================
	// Properties and indexing (0x30-0x3F)
	// ========================================================================

	OpGetProperty Opcode = 0x30 // obj -> value: OpGetProperty <name:u16>
	OpSetProperty Opcode = 0x31 // obj value -> value: OpSetProperty <name:u16>
	OpGetSuper    Opcode = 0x32 // self super -> bound method: OpGetSuper <name:u16>
	OpGetVariant  Opcode = 0x33 // enum -> variant: OpGetVariant <name:u16>
	OpGetIndex    Opcode = 0x34 // obj index -> value
	OpSetIndex    Opcode = 0x35 // obj index value -> value
	OpSlice       Opcode = 0x36 // obj start end -> slice (nil bounds mean open)

	// ========================================================================
	// Arithmetic and bitwise (0x40-0x4F)
	// ========================================================================

	OpAdd    Opcode = 0x40 // Pop two, push sum
	OpSub    Opcode = 0x41 // Pop two, push difference (a - b where b is TOS)
	OpMul    Opcode = 0x42 // Pop two, push product
	OpDiv    Opcode = 0x43 // Pop two, push quotient
	OpMod    Opcode = 0x44 // Pop two, push remainder
	OpPow    Opcode = 0x45 // Pop two, push a ** b
	OpNeg    Opcode = 0x46 // Negate top of stack
	OpBitAnd Opcode = 0x47
	OpBitOr  Opcode = 0x48
	OpBitXor Opcode = 0x49
	OpShl    Opcode = 0x4A
	OpShr    Opcode = 0x4B
	OpBitNot Opcode = 0x4C

	// ========================================================================
	// Comparison (0x50-0x5F)
	// ========================================================================

	OpEqual        Opcode = 0x50
	OpNotEqual     Opcode = 0x51
	OpLess         Opcode = 0x52
	OpLessEqual    Opcode = 0x53
	OpGreater      Opcode = 0x54
	OpGreaterEqual Opcode = 0x55
	OpNot          Opcode = 0x56 // Push true if TOS is falsy
	OpInRange      Opcode = 0x57 // subject lo hi -> bool: OpInRange <flags:u8>
	OpIn           Opcode = 0x58 // value container -> bool

	// ========================================================================
	// Control flow (0x60-0x6F)
	// ========================================================================

	OpJump           Opcode = 0x60 // Unconditional jump: OpJump <offset:i16>
	OpJumpIfFalse    Opcode = 0x61 // Jump if TOS is falsy, TOS stays: OpJumpIfFalse <offset:i16>
	OpJumpIfTrue     Opcode = 0x62 // Jump if TOS is truthy, TOS stays: OpJumpIfTrue <offset:i16>
	OpPopJumpIfFalse Opcode = 0x63 // Pop, jump if falsy: OpPopJumpIfFalse <offset:i16>
	OpPopJumpIfTrue  Opcode = 0x64 // Pop, jump if truthy: OpPopJumpIfTrue <offset:i16>
	OpJumpIfNotError Opcode = 0x65 // Jump if TOS is not an error value: OpJumpIfNotError <offset:i16>
	OpForIter        Opcode = 0x66 // Advance iterator: OpForIter <slot:u8> <vars:u8> <offset:i16>
	OpNoMatch        Opcode = 0x67 // Runtime error: no match arm accepted TOS

	// ========================================================================
	// Calls (0x70-0x7F)
	// ========================================================================

	OpCall        Opcode = 0x70 // callee args.. (name value).. -> result: OpCall <argc:u8> <kwc:u8>
	OpInvoke      Opcode = 0x71 // recv args.. -> result: OpInvoke <name:u16> <argc:u8> <kwc:u8>
	OpSuperInvoke Opcode = 0x72 // self args.. super -> result: OpSuperInvoke <name:u16> <argc:u8> <kwc:u8>
	OpClosure     Opcode = 0x73 // Create closure: OpClosure <fn:u16> then (<isLocal:u8> <index:u8>) per upvalue

	// ========================================================================
	// Declarations (0x80-0x8F)
	// ========================================================================

	OpClass   Opcode = 0x80 // Push class from template: OpClass <template:u16>
	OpInherit Opcode = 0x81 // super class -> super (copies layout and method table)
	OpMethod  Opcode = 0x82 // class|enum closure -> class|enum: OpMethod <name:u16>
	OpEnum    Opcode = 0x83 // Push enum type from template: OpEnum <template:u16>

	// ========================================================================
	// Collections (0x90-0x9F)
	// ========================================================================

	OpArray       Opcode = 0x90 // Pop n values into array: OpArray <n:u16>
	OpMap         Opcode = 0x91 // Pop n key/value pairs into map: OpMap <n:u16>
	OpTuple       Opcode = 0x92 // Pop n values into tuple: OpTuple <n:u16>
	OpRange       Opcode = 0x93 // start end -> range: OpRange <flags:u8>
	OpInterpolate Opcode = 0x94 // Pop n values, push their concatenated display text: OpInterpolate <n:u16>

	// ========================================================================
	// Errors (0xA0-0xAF)
	// ========================================================================

	OpRaise     Opcode = 0xA0 // Wrap TOS in an error value and return it
	OpPropagate Opcode = 0xA1 // Return TOS if it is an error value, else leave it

	// ========================================================================
	// Return (0xF0-0xFF)
	// ========================================================================

	OpReturn Opcode = 0xF0 // Return TOS from the current frame
)

// Range flags shared by OpRange and OpInRange.
const (
	RangeInclusive byte = 1 << 0 // a..=b
	RangeOpenEnd   byte = 1 << 1 // a..
	RangeOpenStart byte = 1 << 2 // ..b, patterns only
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack (-1 = variable)
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode (-1 = variable)
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack manipulation
	OpNop:      {"NOP", 0, 0, 0},
	OpPop:      {"POP", 1, 0, 0},
	OpDup:      {"DUP", 1, 2, 0},
	OpEndScope: {"END_SCOPE", -1, 1, 1},
	OpPopN:     {"POP_N", -1, 0, 1},
	OpDup2:     {"DUP2", 2, 4, 0},

	// Constants
	OpConst:  {"CONST", 0, 1, 2},
	OpNil:    {"NIL", 0, 1, 0},
	OpTrue:   {"TRUE", 0, 1, 0},
	OpFalse:  {"FALSE", 0, 1, 0},
	OpNative: {"NATIVE", 0, 1, 2},

	// Variables
	OpGetLocal:     {"GET_LOCAL", 0, 1, 1},
	OpSetLocal:     {"SET_LOCAL", 1, 1, 1},
	OpGetGlobal:    {"GET_GLOBAL", 0, 1, 2},
	OpSetGlobal:    {"SET_GLOBAL", 1, 1, 2},
	OpDefineGlobal: {"DEFINE_GLOBAL", 1, 0, 2},
	OpGetUpvalue:   {"GET_UPVALUE", 0, 1, 1},
	OpSetUpvalue:   {"SET_UPVALUE", 1, 1, 1},

	// Properties and indexing
	OpGetProperty: {"GET_PROPERTY", 1, 1, 2},
	OpSetProperty: {"SET_PROPERTY", 2, 1, 2},
	OpGetSuper:    {"GET_SUPER", 2, 1, 2},
	OpGetVariant:  {"GET_VARIANT", 1, 1, 2},
	OpGetIndex:    {"GET_INDEX", 2, 1, 0},
	OpSetIndex:    {"SET_INDEX", 3, 1, 0},
	OpSlice:       {"SLICE", 3, 1, 0},

	// Arithmetic and bitwise
	OpAdd:    {"ADD", 2, 1, 0},
	OpSub:    {"SUB", 2, 1, 0},
	OpMul:    {"MUL", 2, 1, 0},
	OpDiv:    {"DIV", 2, 1, 0},
	OpMod:    {"MOD", 2, 1, 0},
	OpPow:    {"POW", 2, 1, 0},
	OpNeg:    {"NEG", 1, 1, 0},
	OpBitAnd: {"BIT_AND", 2, 1, 0},
	OpBitOr:  {"BIT_OR", 2, 1, 0},
	OpBitXor: {"BIT_XOR", 2, 1, 0},
	OpShl:    {"SHL", 2, 1, 0},
	OpShr:    {"SHR", 2, 1, 0},
	OpBitNot: {"BIT_NOT", 1, 1, 0},

	// Comparison
	OpEqual:        {"EQUAL", 2, 1, 0},
	OpNotEqual:     {"NOT_EQUAL", 2, 1, 0},
	OpLess:         {"LESS", 2, 1, 0},
	OpLessEqual:    {"LESS_EQUAL", 2, 1, 0},
	OpGreater:      {"GREATER", 2, 1, 0},
	OpGreaterEqual: {"GREATER_EQUAL", 2, 1, 0},
	OpNot:          {"NOT", 1, 1, 0},
	OpInRange:      {"IN_RANGE", 3, 1, 1},
	OpIn:           {"IN", 2, 1, 0},

	// Control flow
	OpJump:           {"JUMP", 0, 0, 2},
	OpJumpIfFalse:    {"JUMP_IF_FALSE", 0, 0, 2},
	OpJumpIfTrue:     {"JUMP_IF_TRUE", 0, 0, 2},
	OpPopJumpIfFalse: {"POP_JUMP_IF_FALSE", 1, 0, 2},
	OpPopJumpIfTrue:  {"POP_JUMP_IF_TRUE", 1, 0, 2},
	OpJumpIfNotError: {"JUMP_IF_NOT_ERROR", 0, 0, 2},
	OpForIter:        {"FOR_ITER", 0, -1, 4},
	OpNoMatch:        {"NO_MATCH", 1, 0, 0},

	// Calls
	OpCall:        {"CALL", -1, 1, 2},
	OpInvoke:      {"INVOKE", -1, 1, 4},
	OpSuperInvoke: {"SUPER_INVOKE", -1, 1, 4},
	OpClosure:     {"CLOSURE", 0, 1, -1},

	// Declarations
	OpClass:   {"CLASS", 0, 1, 2},
	OpInherit: {"INHERIT", 2, 1, 0}, // super class -> super
	OpMethod:  {"METHOD", 2, 1, 2},
	OpEnum:    {"ENUM", 0, 1, 2},

	// Collections
	OpArray:       {"ARRAY", -1, 1, 2},
	OpMap:         {"MAP", -1, 1, 2},
	OpTuple:       {"TUPLE", -1, 1, 2},
	OpRange:       {"RANGE", 2, 1, 1},
	OpInterpolate: {"INTERPOLATE", -1, 1, 2},

	// Errors
	OpRaise:     {"RAISE", 1, 0, 0},
	OpPropagate: {"PROPAGATE", 1, 1, 0},

	// Return
	OpReturn: {"RETURN", 1, 0, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op)), StackPop: 0, StackPush: 0, OperandLen: 0}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode,
// or -1 when the length depends on the instruction (OpClosure).
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// IsJump returns true if this opcode carries a relative jump offset.
func (op Opcode) IsJump() bool {
	return op >= OpJump && op <= OpForIter
}

// IsCall returns true if this opcode transfers control into a callee.
func (op Opcode) IsCall() bool {
	return op >= OpCall && op <= OpSuperInvoke
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
