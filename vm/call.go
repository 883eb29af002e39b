package vm

import (
	"github.com/chazu/aiscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Call protocol
// ---------------------------------------------------------------------------
//
// A call site leaves the callee, then argc positional arguments, then kwc
// (name, value) keyword pairs on the stack. Script functions get their
// arguments normalized into parameter order before the frame is pushed;
// the callee slot becomes slot 0 of the new frame.

// callValue calls the callee sitting below the arguments.
func (vm *VM) callValue(argc, kwc int) error {
	slot := vm.sp - 1 - argc - 2*kwc
	callee := vm.stack[slot]
	switch o := vm.heap.get(callee).(type) {
	case *ClosureObj:
		return vm.callClosure(callee, o, argc, kwc)
	case *NativeObj:
		return vm.callNative(o, slot, argc, kwc)
	case *ClassObj:
		return vm.instantiate(callee, o, slot, argc, kwc)
	case *BoundMethodObj:
		vm.stack[slot] = o.receiver
		return vm.callMethod(o.method, argc, kwc)
	}
	return vm.errorf("Can only call functions and classes.")
}

// callMethod calls method with the receiver already in the callee slot.
func (vm *VM) callMethod(method Value, argc, kwc int) error {
	switch m := vm.heap.get(method).(type) {
	case *ClosureObj:
		return vm.callClosure(method, m, argc, kwc)
	case *NativeObj:
		return vm.callNative(m, vm.sp-1-argc-2*kwc, argc, kwc)
	}
	return vm.errorf("Can only call functions and classes.")
}

func (vm *VM) callClosure(callee Value, cl *ClosureObj, argc, kwc int) error {
	if vm.fc == len(vm.frames) {
		return vm.overflowError()
	}
	if err := vm.bindArgs(cl.fn, argc, kwc); err != nil {
		return err
	}
	f := &vm.frames[vm.fc]
	vm.fc++
	*f = callFrame{
		callee:  callee,
		closure: cl,
		fn:      cl.fn,
		code:    cl.fn.Chunk.Code,
		consts:  vm.constantsFor(cl.fn),
		fields:  vm.fieldCachesFor(cl.fn),
		base:    vm.sp - 1 - len(cl.fn.Params),
	}
	return nil
}

// bindArgs rewrites the arguments on top of the stack into parameter
// order, resolving keywords and filling defaults.
func (vm *VM) bindArgs(fn *bytecode.Function, argc, kwc int) error {
	arity := len(fn.Params)
	if kwc == 0 && argc == arity {
		return nil
	}
	hasDefaults := fn.RequiredArity() < arity
	if (!hasDefaults && argc+kwc != arity) || argc > arity {
		return vm.errorf("Expected %d arguments but got %d.", arity, argc+kwc)
	}

	start := vm.sp - argc - 2*kwc
	rest := make([]Value, arity-argc)
	set := make([]bool, arity-argc)
	for i := 0; i < kwc; i++ {
		nameV := vm.stack[start+argc+2*i]
		name, ok := vm.stringValue(nameV)
		if !ok {
			return vm.errorf("Keyword argument name must be a string.")
		}
		idx := paramIndex(fn, name)
		switch {
		case idx < 0:
			return vm.errorf("Unknown keyword argument '%s'.", name)
		case idx < argc:
			return vm.errorf("Keyword argument '%s' was already specified as positional argument.", name)
		case set[idx-argc]:
			return vm.errorf("Duplicate keyword argument '%s'.", name)
		}
		rest[idx-argc] = vm.stack[start+argc+2*i+1]
		set[idx-argc] = true
	}
	for i := range rest {
		if set[i] {
			continue
		}
		p := fn.Params[argc+i]
		if p.Default == nil {
			return vm.errorf("Missing required argument '%s'.", p.Name)
		}
		rest[i] = vm.constValue(*p.Default)
	}

	vm.sp = start + argc
	for _, v := range rest {
		vm.push(v)
	}
	return nil
}

func paramIndex(fn *bytecode.Function, name string) int {
	for i, p := range fn.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// Method dispatch
// ---------------------------------------------------------------------------

// invoke calls a named method on the receiver below the arguments. It is
// equivalent to reading the property and calling it, without allocating
// a bound method.
func (vm *VM) invoke(name string, argc, kwc int) error {
	slot := vm.sp - 1 - argc - 2*kwc
	recv := vm.stack[slot]

	switch o := vm.heap.get(recv).(type) {
	case *InstanceObj:
		if v, ok := o.field(name); ok {
			vm.stack[slot] = v
			return vm.callValue(argc, kwc)
		}
		if m, ok := o.class.methods[name]; ok {
			return vm.callMethod(m, argc, kwc)
		}
		return vm.errorf("Undefined property '%s'.", name)
	case *ClassObj:
		if m, ok := o.methods[name]; ok {
			return vm.callMethod(m, argc, kwc)
		}
		return vm.errorf("Undefined property '%s'.", name)
	case *EnumObj:
		if m, ok := o.methods[name]; ok {
			return vm.callMethod(m, argc, kwc)
		}
	case *VariantObj:
		if m, ok := o.enum.methods[name]; ok {
			return vm.callMethod(m, argc, kwc)
		}
	case *ErrorObj:
		vm.stack[slot] = o.payload
		return vm.invoke(name, argc, kwc)
	case *MapObj:
		if i, ok := o.find(mapKey{tag: keyString, str: name}); ok {
			vm.stack[slot] = o.vals[i]
			return vm.callValue(argc, kwc)
		}
	}

	if m, ok := vm.builtinMethod(recv, name); ok {
		return vm.callMethod(m, argc, kwc)
	}
	v, err := vm.getProperty(recv, name)
	if err != nil {
		return err
	}
	vm.stack[slot] = v
	return vm.callValue(argc, kwc)
}

// superMethod finds name in the superclass's flattened method table.
func (vm *VM) superMethod(super Value, name string) (Value, error) {
	c, ok := vm.heap.get(super).(*ClassObj)
	if !ok {
		return Nil, vm.errorf("Superclass must be a class.")
	}
	m, ok := c.methods[name]
	if !ok {
		return Nil, vm.errorf("Undefined superclass method '%s'.", name)
	}
	return m, nil
}

// callFunction calls fn from Go code running inside the interpreter, such
// as a builtin taking a callback, and runs it to completion.
func (vm *VM) callFunction(fn Value, args ...Value) (Value, error) {
	exit := vm.fc
	base := vm.sp
	vm.push(fn)
	for _, a := range args {
		vm.push(a)
	}
	if err := vm.callValue(len(args), 0); err != nil {
		vm.unwindTo(exit, base)
		return Nil, err
	}
	if vm.fc > exit {
		return vm.run(exit)
	}
	return vm.pop(), nil
}

// ---------------------------------------------------------------------------
// Instantiation
// ---------------------------------------------------------------------------

// instantiate creates an instance of c in the callee slot. With an
// initializer (own or inherited) the arguments go to `new`; otherwise they
// bind to the declared fields positionally, then by keyword.
func (vm *VM) instantiate(classRef Value, c *ClassObj, slot, argc, kwc int) error {
	inst := &InstanceObj{
		classRef: classRef,
		class:    c,
		slots:    make([]Value, len(c.layout)),
		present:  make([]bool, len(c.layout)),
	}
	for _, f := range c.fields {
		if f.Default != nil {
			i := c.index[f.Name]
			inst.slots[i] = vm.constValue(*f.Default)
			inst.present[i] = true
		}
	}
	vm.stack[slot] = vm.alloc(inst)

	if init, ok := c.methods["new"]; ok {
		return vm.callMethod(init, argc, kwc)
	}
	if err := vm.bindFields(inst, slot, argc, kwc); err != nil {
		return err
	}
	vm.sp = slot + 1
	return nil
}

func (vm *VM) bindFields(inst *InstanceObj, slot, argc, kwc int) error {
	fields := inst.class.fields
	if argc > len(fields) {
		return vm.errorf("Expected %d arguments but got %d.", len(fields), argc+kwc)
	}
	given := make([]bool, len(fields))
	assign := func(i int, v Value) error {
		f := fields[i]
		if f.Type != "" && !vm.matchesType(v, f.Type) {
			return vm.errorf("Field '%s' expects type '%s' but got '%s'.", f.Name, f.Type, vm.typeName(v))
		}
		inst.setField(f.Name, v)
		given[i] = true
		return nil
	}

	for i := 0; i < argc; i++ {
		if err := assign(i, vm.stack[slot+1+i]); err != nil {
			return err
		}
	}
	for i := 0; i < kwc; i++ {
		at := slot + 1 + argc + 2*i
		name, ok := vm.stringValue(vm.stack[at])
		if !ok {
			return vm.errorf("Keyword argument name must be a string.")
		}
		idx := -1
		for j, f := range fields {
			if f.Name == name {
				idx = j
				break
			}
		}
		switch {
		case idx < 0:
			return vm.errorf("Unknown field '%s' for class '%s'.", name, inst.class.name)
		case given[idx]:
			return vm.errorf("Field '%s' was already specified.", name)
		}
		if err := assign(idx, vm.stack[at+1]); err != nil {
			return err
		}
	}
	for i, f := range fields {
		if !given[i] && f.Default == nil {
			return vm.errorf("Missing required field '%s'.", f.Name)
		}
	}
	return nil
}

// matchesType checks a value against a declared field type. Class and
// enum names match instances and variants, including subclasses; unknown
// type names accept anything.
func (vm *VM) matchesType(v Value, typ string) bool {
	switch typ {
	case "any":
		return true
	case "int":
		return v.IsInt()
	case "float":
		return v.IsNumber()
	case "bool":
		return v.IsBool()
	case "str", "string":
		_, ok := vm.stringValue(v)
		return ok
	case "array", "list":
		_, ok := vm.heap.get(v).(*ArrayObj)
		return ok
	case "map", "object":
		_, ok := vm.heap.get(v).(*MapObj)
		return ok
	case "tuple":
		_, ok := vm.heap.get(v).(*TupleObj)
		return ok
	case "set":
		_, ok := vm.heap.get(v).(*SetObj)
		return ok
	case "fn":
		switch vm.heap.get(v).(type) {
		case *ClosureObj, *NativeObj, *BoundMethodObj:
			return true
		}
		return false
	}

	switch o := vm.heap.get(v).(type) {
	case *InstanceObj:
		for c := o.class; c != nil; {
			if c.name == typ {
				return true
			}
			next, ok := vm.heap.get(c.super).(*ClassObj)
			if !ok {
				break
			}
			c = next
		}
		return !vm.isKnownType(typ)
	case *VariantObj:
		return o.enum.name == typ || !vm.isKnownType(typ)
	}
	return !vm.isKnownType(typ)
}

// isKnownType reports whether typ names a defined class or enum global.
func (vm *VM) isKnownType(typ string) bool {
	v, ok := vm.Global(typ)
	if !ok {
		return false
	}
	switch vm.heap.get(v).(type) {
	case *ClassObj, *EnumObj:
		return true
	}
	return false
}
