package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/aiscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Native function bridge
// ---------------------------------------------------------------------------

// NativeFunc is a host function callable from scripts. Arguments arrive in
// host form (see ToHost) and the result is converted back with FromHost.
// A returned error becomes a NativeError! error value in the script; it
// never aborts the run.
type NativeFunc func(ctx context.Context, args []any) (any, error)

// builtinFunc is an internal native working on VM values directly.
type builtinFunc func(vm *VM, args []Value) (Value, error)

// methodFunc is an internal native method; recv is the receiver.
type methodFunc func(vm *VM, recv Value, args []Value) (Value, error)

// NativeErrorClass is the error class wrapping host function failures.
const NativeErrorClass = "NativeError!"

// RegisterNative makes fn callable from scripts compiled on this VM under a
// dotted qualified name such as "http.get". An arity of -1 accepts any
// number of arguments. Registering an existing name replaces it.
func (vm *VM) RegisterNative(name string, arity int, fn NativeFunc) error {
	if fn == nil {
		return errors.New("vm: nil native function")
	}
	if !validNativeName(name) {
		return fmt.Errorf("vm: invalid native name %q", name)
	}
	if arity < -1 {
		return fmt.Errorf("vm: invalid arity %d for native %q", arity, name)
	}
	if vm.depth > 0 {
		return fmt.Errorf("vm: cannot register native %q while running", name)
	}

	n := &NativeObj{name: name, minArgs: arity, maxArgs: arity, host: fn}
	if arity < 0 {
		n.minArgs = 0
	}
	if _, ok := vm.natives[name]; ok {
		log.Debugf("vm %s: replacing native %s", vm.id, name)
	}
	vm.natives[name] = vm.alloc(n)
	return nil
}

// validNativeName reports whether name is one or more identifiers joined
// by dots.
func validNativeName(name string) bool {
	start := true
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '.':
			if start {
				return false
			}
			start = true
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			start = false
		case c >= '0' && c <= '9':
			if start {
				return false
			}
		default:
			return false
		}
	}
	return !start
}

// defineBuiltin registers an internal global native.
func (vm *VM) defineBuiltin(name string, minArgs, maxArgs int, fn builtinFunc) {
	vm.natives[name] = vm.alloc(&NativeObj{name: name, minArgs: minArgs, maxArgs: maxArgs, builtin: fn})
}

// callNative runs a native whose callee slot is slot and replaces the
// callee and arguments with the result.
func (vm *VM) callNative(n *NativeObj, slot, argc, kwc int) error {
	if kwc > 0 {
		if n.keywords == nil {
			return vm.errorf("Native functions don't support keyword arguments.")
		}
		var err error
		if argc, err = vm.bindNativeKeywords(n, slot, argc, kwc); err != nil {
			return err
		}
	}
	if argc < n.minArgs || (n.maxArgs >= 0 && argc > n.maxArgs) {
		switch {
		case n.minArgs == n.maxArgs:
			return vm.errorf("Expected %d arguments but got %d.", n.minArgs, argc)
		case n.maxArgs < 0:
			return vm.errorf("Expected at least %d arguments but got %d.", n.minArgs, argc)
		}
		return vm.errorf("Expected %d to %d arguments but got %d.", n.minArgs, n.maxArgs, argc)
	}

	// The arguments stay on the stack, and so stay rooted, until the
	// native returns.
	args := vm.stack[slot+1 : slot+1+argc : slot+1+argc]
	var (
		result Value
		err    error
	)
	switch {
	case n.method != nil:
		result, err = n.method(vm, vm.stack[slot], args)
	case n.builtin != nil:
		result, err = n.builtin(vm, args)
	default:
		result = vm.callHost(n, args)
	}
	if err != nil {
		return vm.wrapError(err)
	}
	vm.sp = slot
	vm.push(result)
	return nil
}

// bindNativeKeywords moves keyword arguments into their positions after
// the positional ones. Skipped positions are nil. It returns the new
// argument count.
func (vm *VM) bindNativeKeywords(n *NativeObj, slot, argc, kwc int) (int, error) {
	start := slot + 1
	args := append([]Value(nil), vm.stack[start:start+argc]...)
	seen := make(map[int]bool, kwc)
	for i := 0; i < kwc; i++ {
		at := start + argc + 2*i
		name, ok := vm.stringValue(vm.stack[at])
		if !ok {
			return 0, vm.errorf("Keyword argument name must be a string.")
		}
		idx := -1
		for j, kw := range n.keywords {
			if kw == name {
				idx = j
				break
			}
		}
		switch {
		case idx < 0:
			return 0, vm.errorf("Unknown keyword argument '%s'.", name)
		case idx < argc:
			return 0, vm.errorf("Keyword argument '%s' was already specified as positional argument.", name)
		case seen[idx]:
			return 0, vm.errorf("Duplicate keyword argument '%s'.", name)
		}
		seen[idx] = true
		for len(args) <= idx {
			args = append(args, Nil)
		}
		args[idx] = vm.stack[at+1]
	}
	vm.sp = start
	for _, a := range args {
		vm.push(a)
	}
	return len(args), nil
}

// callHost marshals arguments out, calls the host function and marshals
// the result back. Host failures, including panics, become error values.
func (vm *VM) callHost(n *NativeObj, args []Value) Value {
	in := make([]any, len(args))
	for i, a := range args {
		x, err := vm.ToHost(a)
		if err != nil {
			return vm.nativeError(n.name, fmt.Errorf("argument %d: %w", i+1, err))
		}
		in[i] = x
	}

	out, err := func() (out any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return n.host(vm.ctx, in)
	}()
	if err != nil {
		log.Debugf("vm %s: native %s failed: %s", vm.id, n.name, err)
		return vm.nativeError(n.name, err)
	}

	v, err := vm.FromHost(out)
	if err != nil {
		return vm.nativeError(n.name, fmt.Errorf("result: %w", err))
	}
	return v
}

// defineNativeErrorClass creates the NativeError! class and publishes it
// as a global so scripts can match on it.
func (vm *VM) defineNativeErrorClass() {
	class := newClass(&bytecode.ClassTemplate{
		Name:    NativeErrorClass,
		IsError: true,
		Fields: []bytecode.FieldDecl{
			{Name: "message", Type: "str"},
			{Name: "function", Type: "str"},
		},
		Layout: []string{"message", "function"},
	})
	vm.nativeErrorClass = vm.alloc(class)
	vm.SetGlobal(NativeErrorClass, vm.nativeErrorClass)
}

// nativeError builds an error value describing a failed host call.
func (vm *VM) nativeError(function string, err error) Value {
	class := vm.heap.get(vm.nativeErrorClass).(*ClassObj)
	inst := &InstanceObj{
		classRef: vm.nativeErrorClass,
		class:    class,
		slots:    make([]Value, len(class.layout)),
		present:  make([]bool, len(class.layout)),
	}
	inst.setField("message", vm.NewString(err.Error()))
	inst.setField("function", vm.NewString(function))
	return vm.newError(vm.alloc(inst))
}
