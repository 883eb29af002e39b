package vm

import (
	"strings"

	"github.com/chazu/aiscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Interpreter loop
// ---------------------------------------------------------------------------

func readU16(code []byte, ip int) int {
	return int(code[ip])<<8 | int(code[ip+1])
}

func readI16(code []byte, ip int) int {
	return int(int16(uint16(code[ip])<<8 | uint16(code[ip+1])))
}

// run executes frames until the frame count drops back to exit, and
// returns the value returned by the frame at that depth. On error the
// stack is unwound to where the entry frame began.
func (vm *VM) run(exit int) (result Value, err error) {
	entryBase := vm.frames[exit].base
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(stackOverflow); !ok {
				panic(r)
			}
			result, err = Nil, vm.overflowError()
		}
		if err != nil && vm.fc > exit {
			vm.unwindTo(exit, entryBase)
		}
	}()

	frame := &vm.frames[vm.fc-1]
	for {
		if vm.cfg.GCStress || vm.heap.shouldCollect() {
			vm.collect()
		}
		if vm.steps++; vm.steps >= vm.cfg.CancelCheckInterval {
			vm.steps = 0
			if err := vm.checkCancelled(); err != nil {
				return Nil, err
			}
		}

		code := frame.code
		op := bytecode.Opcode(code[frame.ip])
		frame.ip++

		switch op {
		// --- Stack operations ---
		case bytecode.OpNop:

		case bytecode.OpPop:
			vm.sp--

		case bytecode.OpDup:
			vm.push(vm.peek())

		case bytecode.OpDup2:
			a, b := vm.stack[vm.sp-2], vm.stack[vm.sp-1]
			vm.push(a)
			vm.push(b)

		case bytecode.OpEndScope:
			n := int(code[frame.ip])
			frame.ip++
			top := vm.peek()
			vm.closeUpvalues(vm.sp - 1 - n)
			vm.sp -= n
			vm.stack[vm.sp-1] = top

		case bytecode.OpPopN:
			n := int(code[frame.ip])
			frame.ip++
			vm.closeUpvalues(vm.sp - n)
			vm.sp -= n

		// --- Constants ---
		case bytecode.OpConst:
			idx := readU16(code, frame.ip)
			frame.ip += 2
			vm.push(frame.consts[idx])

		case bytecode.OpNil:
			vm.push(Nil)

		case bytecode.OpTrue:
			vm.push(True)

		case bytecode.OpFalse:
			vm.push(False)

		case bytecode.OpNative:
			name := frame.fn.Chunk.Constants[readU16(code, frame.ip)].Str
			frame.ip += 2
			v, ok := vm.natives[name]
			if !ok {
				return Nil, vm.errorf("Undefined native function '%s'.", name)
			}
			vm.push(v)

		// --- Variables ---
		case bytecode.OpGetLocal:
			slot := int(code[frame.ip])
			frame.ip++
			vm.push(vm.stack[frame.base+slot])

		case bytecode.OpSetLocal:
			slot := int(code[frame.ip])
			frame.ip++
			vm.stack[frame.base+slot] = vm.peek()

		case bytecode.OpGetGlobal:
			g := frame.closure.gmap[readU16(code, frame.ip)]
			frame.ip += 2
			if !vm.defined[g] {
				return Nil, vm.errorf("Undefined variable '%s'.", vm.globalNames[g])
			}
			vm.push(vm.globals[g])

		case bytecode.OpSetGlobal:
			g := frame.closure.gmap[readU16(code, frame.ip)]
			frame.ip += 2
			if !vm.defined[g] {
				return Nil, vm.errorf("Undefined variable '%s'.", vm.globalNames[g])
			}
			vm.globals[g] = vm.peek()

		case bytecode.OpDefineGlobal:
			g := frame.closure.gmap[readU16(code, frame.ip)]
			frame.ip += 2
			vm.globals[g] = vm.pop()
			vm.defined[g] = true

		case bytecode.OpGetUpvalue:
			up := vm.heap.get(frame.closure.upvalues[code[frame.ip]]).(*UpvalueObj)
			frame.ip++
			if up.open {
				vm.push(vm.stack[up.slot])
			} else {
				vm.push(up.closed)
			}

		case bytecode.OpSetUpvalue:
			up := vm.heap.get(frame.closure.upvalues[code[frame.ip]]).(*UpvalueObj)
			frame.ip++
			if up.open {
				vm.stack[up.slot] = vm.peek()
			} else {
				up.closed = vm.peek()
			}

		// --- Properties and indexing ---
		case bytecode.OpGetProperty:
			at := frame.ip - 1
			name := frame.fn.Chunk.Constants[readU16(code, frame.ip)].Str
			frame.ip += 2
			if v, ok := vm.cachedGet(frame.fields, at, vm.peek(), name); ok {
				vm.stack[vm.sp-1] = v
				break
			}
			v, err := vm.getProperty(vm.peek(), name)
			if err != nil {
				return Nil, err
			}
			vm.stack[vm.sp-1] = v

		case bytecode.OpSetProperty:
			at := frame.ip - 1
			name := frame.fn.Chunk.Constants[readU16(code, frame.ip)].Str
			frame.ip += 2
			v := vm.pop()
			if vm.cachedSet(frame.fields, at, vm.peek(), name, v) {
				vm.stack[vm.sp-1] = v
				break
			}
			if err := vm.setProperty(vm.peek(), name, v); err != nil {
				return Nil, err
			}
			vm.stack[vm.sp-1] = v

		case bytecode.OpGetSuper:
			name := frame.fn.Chunk.Constants[readU16(code, frame.ip)].Str
			frame.ip += 2
			super := vm.pop()
			method, err := vm.superMethod(super, name)
			if err != nil {
				return Nil, err
			}
			vm.stack[vm.sp-1] = vm.newBound(vm.peek(), method)

		case bytecode.OpGetVariant:
			name := frame.fn.Chunk.Constants[readU16(code, frame.ip)].Str
			frame.ip += 2
			v, err := vm.getVariant(vm.peek(), name)
			if err != nil {
				return Nil, err
			}
			vm.stack[vm.sp-1] = v

		case bytecode.OpGetIndex:
			index := vm.pop()
			v, err := vm.getIndex(vm.peek(), index)
			if err != nil {
				return Nil, err
			}
			vm.stack[vm.sp-1] = v

		case bytecode.OpSetIndex:
			v := vm.pop()
			index := vm.pop()
			if err := vm.setIndex(vm.peek(), index, v); err != nil {
				return Nil, err
			}
			vm.stack[vm.sp-1] = v

		case bytecode.OpSlice:
			end := vm.pop()
			start := vm.pop()
			v, err := vm.slice(vm.peek(), start, end)
			if err != nil {
				return Nil, err
			}
			vm.stack[vm.sp-1] = v

		// --- Arithmetic and bitwise ---
		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv,
			bytecode.OpMod, bytecode.OpPow:
			b := vm.pop()
			v, err := vm.arith(op, vm.peek(), b)
			if err != nil {
				return Nil, err
			}
			vm.stack[vm.sp-1] = v

		case bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor,
			bytecode.OpShl, bytecode.OpShr:
			b := vm.pop()
			v, err := vm.bitwise(op, vm.peek(), b)
			if err != nil {
				return Nil, err
			}
			vm.stack[vm.sp-1] = v

		case bytecode.OpNeg:
			v, err := vm.negate(vm.peek())
			if err != nil {
				return Nil, err
			}
			vm.stack[vm.sp-1] = v

		case bytecode.OpBitNot:
			v := vm.peek()
			if !v.IsInt() {
				return Nil, vm.errorf("Operand must be an integer.")
			}
			vm.stack[vm.sp-1] = FromInt(^v.AsInt())

		// --- Comparison ---
		case bytecode.OpEqual:
			b := vm.pop()
			vm.stack[vm.sp-1] = FromBool(vm.Equal(vm.peek(), b))

		case bytecode.OpNotEqual:
			b := vm.pop()
			vm.stack[vm.sp-1] = FromBool(!vm.Equal(vm.peek(), b))

		case bytecode.OpLess, bytecode.OpLessEqual, bytecode.OpGreater, bytecode.OpGreaterEqual:
			b := vm.pop()
			v, err := vm.compareOp(op, vm.peek(), b)
			if err != nil {
				return Nil, err
			}
			vm.stack[vm.sp-1] = v

		case bytecode.OpIn:
			container := vm.pop()
			found, err := vm.contains(container, vm.peek())
			if err != nil {
				return Nil, err
			}
			vm.stack[vm.sp-1] = FromBool(found)

		case bytecode.OpNot:
			vm.stack[vm.sp-1] = FromBool(!vm.peek().Truthy())

		case bytecode.OpInRange:
			flags := code[frame.ip]
			frame.ip++
			hi := vm.pop()
			lo := vm.pop()
			vm.stack[vm.sp-1] = FromBool(vm.inRange(vm.peek(), lo, hi, flags))

		// --- Control flow ---
		case bytecode.OpJump:
			offset := readI16(code, frame.ip)
			frame.ip += 2 + offset

		case bytecode.OpJumpIfFalse:
			offset := readI16(code, frame.ip)
			frame.ip += 2
			if !vm.peek().Truthy() {
				frame.ip += offset
			}

		case bytecode.OpJumpIfTrue:
			offset := readI16(code, frame.ip)
			frame.ip += 2
			if vm.peek().Truthy() {
				frame.ip += offset
			}

		case bytecode.OpPopJumpIfFalse:
			offset := readI16(code, frame.ip)
			frame.ip += 2
			if !vm.pop().Truthy() {
				frame.ip += offset
			}

		case bytecode.OpPopJumpIfTrue:
			offset := readI16(code, frame.ip)
			frame.ip += 2
			if vm.pop().Truthy() {
				frame.ip += offset
			}

		case bytecode.OpJumpIfNotError:
			offset := readI16(code, frame.ip)
			frame.ip += 2
			if !vm.isError(vm.peek()) {
				frame.ip += offset
			}

		case bytecode.OpForIter:
			slot := int(code[frame.ip])
			vars := int(code[frame.ip+1])
			offset := readI16(code, frame.ip+2)
			frame.ip += 4
			done, err := vm.forIter(frame.base+slot, vars)
			if err != nil {
				return Nil, err
			}
			if done {
				frame.ip += offset
			}

		case bytecode.OpNoMatch:
			v := vm.pop()
			return Nil, vm.errorf("No match arm accepted value '%s'.", vm.Format(v))

		// --- Calls ---
		case bytecode.OpCall:
			argc := int(code[frame.ip])
			kwc := int(code[frame.ip+1])
			frame.ip += 2
			if err := vm.callValue(argc, kwc); err != nil {
				return Nil, err
			}
			frame = &vm.frames[vm.fc-1]

		case bytecode.OpInvoke:
			name := frame.fn.Chunk.Constants[readU16(code, frame.ip)].Str
			argc := int(code[frame.ip+2])
			kwc := int(code[frame.ip+3])
			frame.ip += 4
			if err := vm.invoke(name, argc, kwc); err != nil {
				return Nil, err
			}
			frame = &vm.frames[vm.fc-1]

		case bytecode.OpSuperInvoke:
			name := frame.fn.Chunk.Constants[readU16(code, frame.ip)].Str
			argc := int(code[frame.ip+2])
			kwc := int(code[frame.ip+3])
			frame.ip += 4
			method, err := vm.superMethod(vm.pop(), name)
			if err != nil {
				return Nil, err
			}
			if err := vm.callMethod(method, argc, kwc); err != nil {
				return Nil, err
			}
			frame = &vm.frames[vm.fc-1]

		case bytecode.OpClosure:
			fn := frame.fn.Chunk.Constants[readU16(code, frame.ip)].Func
			frame.ip += 2
			upvalues := make([]Value, len(fn.Upvalues))
			for i := range upvalues {
				isLocal := code[frame.ip] == 1
				index := int(code[frame.ip+1])
				frame.ip += 2
				if isLocal {
					upvalues[i] = vm.captureUpvalue(frame.base + index)
				} else {
					upvalues[i] = frame.closure.upvalues[index]
				}
			}
			vm.push(vm.alloc(&ClosureObj{fn: fn, upvalues: upvalues, gmap: frame.closure.gmap}))

		// --- Declarations ---
		case bytecode.OpClass:
			tmpl := frame.fn.Chunk.Constants[readU16(code, frame.ip)].Class
			frame.ip += 2
			vm.push(vm.alloc(newClass(tmpl)))

		case bytecode.OpInherit:
			sub := vm.heap.get(vm.pop()).(*ClassObj)
			superRef := vm.peek()
			super, ok := vm.heap.get(superRef).(*ClassObj)
			if !ok {
				return Nil, vm.errorf("Superclass must be a class.")
			}
			if super == sub {
				return Nil, vm.errorf("A class can't inherit from itself.")
			}
			sub.inherit(superRef, super)

		case bytecode.OpMethod:
			name := frame.fn.Chunk.Constants[readU16(code, frame.ip)].Str
			frame.ip += 2
			method := vm.pop()
			switch owner := vm.heap.get(vm.peek()).(type) {
			case *ClassObj:
				owner.methods[name] = method
			case *EnumObj:
				owner.methods[name] = method
			}

		case bytecode.OpEnum:
			tmpl := frame.fn.Chunk.Constants[readU16(code, frame.ip)].Enum
			frame.ip += 2
			vm.push(vm.newEnum(tmpl))

		// --- Collections ---
		case bytecode.OpArray:
			n := readU16(code, frame.ip)
			frame.ip += 2
			items := make([]Value, n)
			copy(items, vm.stack[vm.sp-n:vm.sp])
			vm.sp -= n
			vm.push(vm.newArray(items))

		case bytecode.OpTuple:
			n := readU16(code, frame.ip)
			frame.ip += 2
			items := make([]Value, n)
			copy(items, vm.stack[vm.sp-n:vm.sp])
			vm.sp -= n
			vm.push(vm.newTuple(items))

		case bytecode.OpMap:
			n := readU16(code, frame.ip)
			frame.ip += 2
			m := &MapObj{}
			for i := vm.sp - 2*n; i < vm.sp; i += 2 {
				key := vm.stack[i]
				m.put(vm.keyOf(key), key, vm.stack[i+1])
			}
			vm.sp -= 2 * n
			vm.push(vm.alloc(m))

		case bytecode.OpRange:
			flags := code[frame.ip]
			frame.ip++
			end := vm.pop()
			v, err := vm.newRange(vm.peek(), end, flags)
			if err != nil {
				return Nil, err
			}
			vm.stack[vm.sp-1] = v

		case bytecode.OpInterpolate:
			n := readU16(code, frame.ip)
			frame.ip += 2
			var b strings.Builder
			for _, v := range vm.stack[vm.sp-n : vm.sp] {
				vm.format(&b, v, nil)
			}
			vm.sp -= n
			vm.push(vm.NewString(b.String()))

		// --- Errors and returns ---
		case bytecode.OpRaise:
			v, err := vm.raise(vm.pop())
			if err != nil {
				return Nil, err
			}
			if vm.leave(v, exit) {
				return v, nil
			}
			frame = &vm.frames[vm.fc-1]

		case bytecode.OpPropagate:
			if !vm.isError(vm.peek()) {
				break
			}
			v := vm.pop()
			if vm.leave(v, exit) {
				return v, nil
			}
			frame = &vm.frames[vm.fc-1]

		case bytecode.OpReturn:
			v := vm.pop()
			if vm.leave(v, exit) {
				return v, nil
			}
			frame = &vm.frames[vm.fc-1]

		default:
			return Nil, vm.errorf("Unknown opcode 0x%02X.", byte(op))
		}
	}
}

// leave pops the current frame and hands result to the caller. It reports
// whether the popped frame was the entry frame of the current run.
func (vm *VM) leave(result Value, exit int) bool {
	f := &vm.frames[vm.fc-1]
	vm.closeUpvalues(f.base)
	vm.sp = f.base
	vm.fc--
	f.callee = Nil
	if vm.fc == exit {
		return true
	}
	vm.push(result)
	return false
}

// ---------------------------------------------------------------------------
// Upvalues
// ---------------------------------------------------------------------------

// captureUpvalue returns the open upvalue aliasing slot, creating it if
// needed, so closures capturing the same variable share one cell.
func (vm *VM) captureUpvalue(slot int) Value {
	for _, ref := range vm.openUpvalues {
		if vm.heap.get(ref).(*UpvalueObj).slot == slot {
			return ref
		}
	}
	ref := vm.alloc(&UpvalueObj{slot: slot, open: true})
	vm.openUpvalues = append(vm.openUpvalues, ref)
	return ref
}

// closeUpvalues closes every open upvalue at or above slot, copying the
// variable out of the stack.
func (vm *VM) closeUpvalues(slot int) {
	kept := vm.openUpvalues[:0]
	for _, ref := range vm.openUpvalues {
		up := vm.heap.get(ref).(*UpvalueObj)
		if up.slot >= slot {
			up.closed = vm.stack[up.slot]
			up.open = false
			continue
		}
		kept = append(kept, ref)
	}
	vm.openUpvalues = kept
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// raise wraps an error payload in an error value. Raising an existing
// error value re-raises it unchanged.
func (vm *VM) raise(v Value) (Value, error) {
	switch o := vm.heap.get(v).(type) {
	case *ErrorObj:
		return v, nil
	case *VariantObj:
		if o.enum.isError {
			return vm.newError(v), nil
		}
	case *InstanceObj:
		if o.class.isError {
			return vm.newError(v), nil
		}
	}
	return Nil, vm.errorf("Can only raise error types, got '%s'.", vm.Format(v))
}
