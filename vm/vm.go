package vm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/aiscript/compiler"
	"github.com/chazu/aiscript/pkg/bytecode"
)

var log = commonlog.GetLogger("aiscript.vm")

// ---------------------------------------------------------------------------
// VM: one isolated execution context
// ---------------------------------------------------------------------------

// callFrame is the execution state of one function activation. Slot 0 of
// the frame (stack[base]) holds the callee, or the receiver for methods.
type callFrame struct {
	callee  Value
	closure *ClosureObj
	fn      *bytecode.Function
	code    []byte
	consts  []Value
	fields  []fieldCache
	ip      int
	base    int
}

// VM executes compiled programs. A VM owns its heap, globals and native
// registry; it must not be used from more than one goroutine at a time.
type VM struct {
	id   uuid.UUID
	cfg  Config
	heap *Heap

	stack  []Value
	sp     int
	frames []callFrame
	fc     int

	openUpvalues []Value

	globals     []Value
	defined     []bool
	globalNames []string
	globalIndex map[string]int

	natives     map[string]Value
	methods     map[string]map[string]Value // builtin methods by receiver type
	constants   map[*bytecode.Function][]Value
	fieldCaches map[*bytecode.Function][]fieldCache
	pins        []Value
	result      Value

	nativeErrorClass Value

	ctx   context.Context
	steps int
	depth int // nesting of Run and Call
}

// New creates a VM with the given configuration. Zero fields take their
// values from DefaultConfig.
func New(cfg Config) *VM {
	cfg = cfg.withDefaults()
	initial := 256
	if cfg.StackSize < initial {
		initial = cfg.StackSize
	}
	vm := &VM{
		id:          uuid.New(),
		cfg:         cfg,
		heap:        newHeap(cfg.GCInitialThreshold),
		stack:       make([]Value, initial),
		frames:      make([]callFrame, cfg.MaxFrames),
		globalIndex: make(map[string]int),
		natives:     make(map[string]Value),
		methods:     make(map[string]map[string]Value),
		constants:   make(map[*bytecode.Function][]Value),
		fieldCaches: make(map[*bytecode.Function][]fieldCache),
		ctx:         context.Background(),
	}
	vm.registerBuiltins()
	vm.registerBuiltinMethods()
	log.Debugf("vm %s created: max frames %d, stack %d slots, gc threshold %d",
		vm.id, cfg.MaxFrames, cfg.StackSize, cfg.GCInitialThreshold)
	return vm
}

// ID returns the instance identifier used in logs.
func (vm *VM) ID() uuid.UUID {
	return vm.id
}

// Config returns the effective configuration.
func (vm *VM) Config() Config {
	return vm.cfg
}

// ---------------------------------------------------------------------------
// Compilation and execution
// ---------------------------------------------------------------------------

// LookupNative reports the arity of a registered native so the compiler
// can resolve qualified names against this VM.
func (vm *VM) LookupNative(name string) (int, bool) {
	v, ok := vm.natives[name]
	if !ok {
		return 0, false
	}
	if n, ok := vm.heap.get(v).(*NativeObj); ok {
		return n.arity(), true
	}
	return -1, true
}

// NativeSignature describes the registered natives as sorted "name/arity"
// lines. Programs compiled on VMs with equal signatures resolve native
// calls identically, so it serves as part of a compiled-program cache key.
func (vm *VM) NativeSignature() string {
	names := make([]string, 0, len(vm.natives))
	for name := range vm.natives {
		names = append(names, name)
	}
	slices.Sort(names)
	var b strings.Builder
	for _, name := range names {
		arity, _ := vm.LookupNative(name)
		fmt.Fprintf(&b, "%s/%d\n", name, arity)
	}
	return b.String()
}

// Compile compiles source against this VM's natives and existing globals.
func (vm *VM) Compile(source string) (*bytecode.Program, error) {
	return compiler.Compile(source,
		compiler.WithNatives(vm),
		compiler.WithGlobals(vm.globalNames))
}

// Run executes a program's top-level code and returns the value of its
// final expression statement. Globals persist across runs, so a REPL can
// run successive programs on one VM.
func (vm *VM) Run(ctx context.Context, prog *bytecode.Program) (Value, error) {
	if prog == nil || prog.Main == nil {
		return Nil, errors.New("vm: nil program")
	}
	if prog.Version != bytecode.BytecodeVersion {
		return Nil, fmt.Errorf("vm: bytecode version %d, want %d", prog.Version, bytecode.BytecodeVersion)
	}
	if vm.depth > 0 {
		return Nil, errors.New("vm: Run called while the VM is running")
	}
	for _, name := range prog.Natives {
		if _, ok := vm.natives[name]; !ok {
			return Nil, fmt.Errorf("vm: undefined native function '%s'", name)
		}
	}

	gmap := vm.mapGlobals(prog.Globals)
	main := vm.alloc(&ClosureObj{fn: prog.Main, gmap: gmap})

	log.Debugf("vm %s: run start", vm.id)
	vm.push(main)
	result, err := vm.enter(ctx, 0)
	if err != nil {
		log.Debugf("vm %s: run failed: %s", vm.id, firstLine(err.Error()))
		return result, err
	}
	log.Debugf("vm %s: run finished, heap %d objects", vm.id, vm.heap.live)
	return result, nil
}

// Call invokes a function value with positional arguments. It may be
// used after Run, for example on a function read with Global, or from
// within a native function to call back into the script.
func (vm *VM) Call(ctx context.Context, fn Value, args ...Value) (Value, error) {
	vm.push(fn)
	for _, a := range args {
		vm.push(a)
	}
	return vm.enter(ctx, len(args))
}

// enter calls the callee sitting below argc arguments and runs it to
// completion.
func (vm *VM) enter(ctx context.Context, argc int) (result Value, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	exit := vm.fc
	base := vm.sp - 1 - argc

	prevCtx := vm.ctx
	vm.ctx = ctx
	vm.depth++
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(stackOverflow); !ok {
				panic(r)
			}
			result, err = Nil, vm.overflowError()
			vm.unwindTo(exit, base)
		}
		vm.depth--
		vm.ctx = prevCtx
		if vm.depth == 0 && err != nil {
			vm.reset()
		}
	}()

	if err := vm.callValue(argc, 0); err != nil {
		vm.unwindTo(exit, base)
		return Nil, err
	}
	if vm.fc > exit {
		result, err = vm.run(exit)
		if err != nil {
			return Nil, err
		}
	} else {
		result = vm.pop()
	}

	if vm.depth == 1 {
		vm.result = result
	}
	if vm.isError(result) {
		return result, &RaisedError{Value: result, Text: vm.Format(result)}
	}
	return result, nil
}

// unwindTo drops frames above exit and stack slots from base, closing
// any upvalues that still alias them.
func (vm *VM) unwindTo(exit, base int) {
	vm.closeUpvalues(base)
	vm.sp = base
	vm.fc = exit
}

// reset discards all execution state after a failed top-level run.
func (vm *VM) reset() {
	vm.sp = 0
	vm.fc = 0
	vm.openUpvalues = vm.openUpvalues[:0]
	vm.pins = vm.pins[:0]
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// ---------------------------------------------------------------------------
// Globals
// ---------------------------------------------------------------------------

// mapGlobals translates a program's global names to VM slots, creating
// undefined slots for new names.
func (vm *VM) mapGlobals(names []string) []int {
	gmap := make([]int, len(names))
	for i, name := range names {
		gmap[i] = vm.globalSlot(name)
	}
	return gmap
}

func (vm *VM) globalSlot(name string) int {
	if slot, ok := vm.globalIndex[name]; ok {
		return slot
	}
	slot := len(vm.globals)
	vm.globals = append(vm.globals, Nil)
	vm.defined = append(vm.defined, false)
	vm.globalNames = append(vm.globalNames, name)
	vm.globalIndex[name] = slot
	return slot
}

// Global returns the value of a defined global variable.
func (vm *VM) Global(name string) (Value, bool) {
	slot, ok := vm.globalIndex[name]
	if !ok || !vm.defined[slot] {
		return Nil, false
	}
	return vm.globals[slot], true
}

// SetGlobal defines or replaces a global variable. Later compilations on
// this VM see the name.
func (vm *VM) SetGlobal(name string, v Value) {
	slot := vm.globalSlot(name)
	vm.globals[slot] = v
	vm.defined[slot] = true
}

// Globals returns the names of all global slots in slot order.
func (vm *VM) Globals() []string {
	return append([]string(nil), vm.globalNames...)
}

// ---------------------------------------------------------------------------
// Stack
// ---------------------------------------------------------------------------

func (vm *VM) push(v Value) {
	if vm.sp == len(vm.stack) {
		vm.growStack()
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek() Value {
	return vm.stack[vm.sp-1]
}

// growStack doubles the value stack up to the configured limit. Frames
// and upvalues address the stack by index, so moving it is safe.
func (vm *VM) growStack() {
	size := len(vm.stack) * 2
	if size > vm.cfg.StackSize {
		size = vm.cfg.StackSize
	}
	if size <= len(vm.stack) {
		panic(stackOverflow{})
	}
	stack := make([]Value, size)
	copy(stack, vm.stack[:vm.sp])
	vm.stack = stack
}

func (vm *VM) overflowError() *RuntimeError {
	err := vm.errorf("Stack overflow.")
	err.cause = ErrStackOverflow
	return err
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

func (vm *VM) alloc(obj Object) Value {
	return vm.heap.alloc(obj)
}

// NewString allocates a string value.
func (vm *VM) NewString(s string) Value {
	return vm.alloc(&StringObj{s: s})
}

func (vm *VM) newArray(items []Value) Value {
	return vm.alloc(&ArrayObj{items: items})
}

func (vm *VM) newTuple(items []Value) Value {
	return vm.alloc(&TupleObj{items: items})
}

func (vm *VM) newBound(receiver, method Value) Value {
	return vm.alloc(&BoundMethodObj{receiver: receiver, method: method})
}

func (vm *VM) newError(payload Value) Value {
	return vm.alloc(&ErrorObj{payload: payload})
}

// pin roots v until the matching unpin. Builtins that call back into
// script code pin their partial results.
func (vm *VM) pin(v Value) {
	vm.pins = append(vm.pins, v)
}

func (vm *VM) unpin(n int) {
	vm.pins = vm.pins[:len(vm.pins)-n]
}

// constValue converts a compile-time constant into a value.
func (vm *VM) constValue(k bytecode.Constant) Value {
	switch k.Kind {
	case bytecode.ConstBool:
		return FromBool(k.Bool)
	case bytecode.ConstInt:
		return FromInt(k.Int)
	case bytecode.ConstFloat:
		return FromFloat(k.Float)
	case bytecode.ConstString:
		return vm.NewString(k.Str)
	}
	return Nil
}

// constantsFor returns the materialized constant pool of fn. String
// constants are allocated once per function and stay rooted.
func (vm *VM) constantsFor(fn *bytecode.Function) []Value {
	if consts, ok := vm.constants[fn]; ok {
		return consts
	}
	consts := make([]Value, len(fn.Chunk.Constants))
	for i, k := range fn.Chunk.Constants {
		consts[i] = vm.constValue(k)
	}
	vm.constants[fn] = consts
	return consts
}

// stringValue returns the Go string held by v.
func (vm *VM) stringValue(v Value) (string, bool) {
	if s, ok := vm.heap.get(v).(*StringObj); ok {
		return s.s, true
	}
	return "", false
}

func (vm *VM) isError(v Value) bool {
	_, ok := vm.heap.get(v).(*ErrorObj)
	return ok
}

// HeapStats reports collector state.
func (vm *VM) HeapStats() HeapStats {
	return vm.heap.stats()
}
