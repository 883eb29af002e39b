package bytecode

// FunctionKind distinguishes how a compiled function receives slot 0.
type FunctionKind uint8

const (
	KindScript      FunctionKind = iota // top-level program body
	KindFunction                        // fn declaration or lambda
	KindMethod                          // method taking self
	KindInitializer                     // class constructor `new`
	KindStatic                          // class or enum function without self
)

// Param describes one declared parameter.
type Param struct {
	Name    string    `cbor:"n"`
	Type    string    `cbor:"t,omitempty"`
	Default *Constant `cbor:"d,omitempty"` // nil when the argument is required
}

// UpvalueDesc tells OpClosure where to find one captured variable:
// a local slot of the enclosing frame or an upvalue of the enclosing closure.
type UpvalueDesc struct {
	IsLocal bool  `cbor:"l"`
	Index   uint8 `cbor:"i"`
}

// Function is the compiled prototype of a function, method or lambda.
type Function struct {
	Name     string        `cbor:"name"`
	Kind     FunctionKind  `cbor:"kind"`
	Params   []Param       `cbor:"params,omitempty"`
	Upvalues []UpvalueDesc `cbor:"upvalues,omitempty"`
	Fallible bool          `cbor:"fallible,omitempty"`
	Doc      string        `cbor:"doc,omitempty"`
	Chunk    *Chunk        `cbor:"chunk"`
}

// Arity returns the number of declared parameters, excluding self.
func (f *Function) Arity() int {
	return len(f.Params)
}

// RequiredArity returns the number of parameters without defaults.
func (f *Function) RequiredArity() int {
	n := 0
	for _, p := range f.Params {
		if p.Default == nil {
			n++
		}
	}
	return n
}

// DisplayName returns the name used in traces and listings.
func (f *Function) DisplayName() string {
	switch {
	case f.Kind == KindScript:
		return "script"
	case f.Name == "":
		return "<lambda>"
	}
	return f.Name
}

// FieldDecl is a class field declaration.
type FieldDecl struct {
	Name    string    `cbor:"n"`
	Type    string    `cbor:"t,omitempty"`
	Default *Constant `cbor:"d,omitempty"` // nil when the field is required
}

// ClassTemplate describes a class declaration. Layout lists every instance
// slot (inherited slots first) so field access resolves to a fixed index.
type ClassTemplate struct {
	Name      string      `cbor:"name"`
	IsError   bool        `cbor:"err,omitempty"`
	SuperName string      `cbor:"super,omitempty"`
	Fields    []FieldDecl `cbor:"fields,omitempty"`
	Layout    []string    `cbor:"layout,omitempty"`
	Doc       string      `cbor:"doc,omitempty"`
}

// PayloadKind is the scalar type shared by all explicit enum payloads.
type PayloadKind uint8

const (
	PayloadNone PayloadKind = iota
	PayloadInt
	PayloadString
	PayloadBool
)

var payloadKindNames = [...]string{"none", "integer", "string", "boolean"}

func (k PayloadKind) String() string {
	if int(k) < len(payloadKindNames) {
		return payloadKindNames[k]
	}
	return "unknown"
}

// VariantDecl is one enum variant and its payload.
type VariantDecl struct {
	Name  string   `cbor:"n"`
	Value Constant `cbor:"v"`
}

// EnumTemplate describes an enum declaration.
type EnumTemplate struct {
	Name     string        `cbor:"name"`
	IsError  bool          `cbor:"err,omitempty"`
	Kind     PayloadKind   `cbor:"kind"`
	Variants []VariantDecl `cbor:"variants"`
}

// Program is the output of compiling one source unit.
type Program struct {
	Version uint16    `cbor:"version"`
	Main    *Function `cbor:"main"`
	Globals []string  `cbor:"globals,omitempty"` // global slot names in slot order
	Natives []string  `cbor:"natives,omitempty"` // qualified native names referenced
}

// NewProgram wraps a compiled script body.
func NewProgram(main *Function, globals, natives []string) *Program {
	return &Program{
		Version: BytecodeVersion,
		Main:    main,
		Globals: globals,
		Natives: natives,
	}
}
