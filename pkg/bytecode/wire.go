package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical options so equal programs encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a Program to CBOR bytes.
func MarshalProgram(p *Program) ([]byte, error) {
	if p == nil || p.Main == nil {
		return nil, fmt.Errorf("bytecode: marshal empty program")
	}
	return cborEncMode.Marshal(p)
}

// UnmarshalProgram deserializes a Program from CBOR bytes.
func UnmarshalProgram(data []byte) (*Program, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal program: %w", err)
	}
	if p.Version != BytecodeVersion {
		return nil, fmt.Errorf("bytecode: version %d does not match supported version %d", p.Version, BytecodeVersion)
	}
	if p.Main == nil || p.Main.Chunk == nil {
		return nil, fmt.Errorf("bytecode: program has no script body")
	}
	return &p, nil
}
