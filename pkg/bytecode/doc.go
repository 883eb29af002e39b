// Package bytecode defines the compiled form of aiscript programs.
//
// A Program holds the script body as a Function prototype plus the names of
// the global slots and native functions it references. Every Function owns
// a Chunk: a flat byte sequence of instructions and a typed constant pool.
// Nested functions, class templates and enum templates live in the constant
// pool of the chunk that declares them, so a Program is a tree that can be
// encoded as a single CBOR document (see MarshalProgram).
//
// # Instruction format
//
// Each instruction is a one-byte Opcode followed by fixed-width operands:
//
//   - u8 operands for local slots, upvalue indexes and argument counts
//   - big-endian u16 operands for constant and global indexes
//   - signed big-endian i16 jump offsets, relative to the end of the
//     instruction and always encoded as the last two operand bytes
//
// OpClosure is the only variable-length instruction: it is followed by one
// (isLocal, index) byte pair per upvalue declared by the target function.
//
// # Source locations
//
// Chunks carry a run-length source map from bytecode offsets to lines, used
// for runtime error traces and disassembly listings.
package bytecode
