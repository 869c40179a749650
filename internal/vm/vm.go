package vm

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"jmpl/internal/bytecode"
	jmplerr "jmpl/internal/errors"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// CallFrame is one activation record: the running closure, its
// instruction pointer into the closure's Chunk, the base stack slot the
// callee's locals start at (slot 0 holds the closure itself), and the
// implicit-return stash register.
type CallFrame struct {
	closure *ClosureObject
	ip      int
	base    int
	stash   Value
}

// VM is a single interpreter instance: its own stack, call frames,
// globals table, string intern table, open-upvalue list, and GC. Process-
// wide state is never a package-level singleton; natives receive this
// handle explicitly.
type VM struct {
	stack    [stackMax]Value
	stackTop int

	frames     [framesMax]CallFrame
	frameCount int

	globals *table
	strings *table
	gc      *GC

	openUpvalues *Object // head of the descending-by-slot open list

	Stdout *os.File
	Stdin  *os.File

	lastCallErr error
}

func (vm *VM) stdin() *os.File {
	if vm.Stdin != nil {
		return vm.Stdin
	}
	return os.Stdin
}

func New() *VM {
	vm := &VM{
		globals: newTable(),
		strings: newTable(),
		gc:      NewGC(),
		Stdout:  os.Stdout,
	}
	vm.gc.SetRoots(vm)
	vm.gc.SetInternTable(vm.strings)
	vm.gc.OnCollect(func(freed, heapBefore, heapAfter, next uint64) {
		fmt.Fprintf(os.Stderr, "gc: freed %s heap=%s next=%s\n",
			humanize.Bytes(freed), humanize.Bytes(heapAfter), humanize.Bytes(next))
	})
	registerNatives(vm)
	return vm
}

func (vm *VM) SetStressGC(on bool) { vm.gc.SetStressGC(on) }
func (vm *VM) SetTraceGC(on bool)  { vm.gc.SetTraceGC(on) }
func (vm *VM) GC() *GC             { return vm.gc }

func (vm *VM) push(v Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// MarkRoots implements RootsProvider: every live stack slot, every
// frame's closure, the open-upvalue list, the globals table, and the
// intern table.
func (vm *VM) MarkRoots(g *GC) {
	for i := 0; i < vm.stackTop; i++ {
		g.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		f := &vm.frames[i]
		g.markObject(f.closure.selfObject)
		g.markValue(f.stash)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.Data.(*UpvalueObject).Next {
		g.markObject(uv)
	}
	vm.globals.markTable(g)
	vm.strings.markTable(g)
}

// Run executes a freshly compiled top-level function (the script itself
// never captures anything, so it's wrapped in a zero-upvalue closure).
// The caller (cmd/jmpl, the REPL) is responsible for compiling source
// into fnObj first — vm cannot import the compiler package, which
// itself depends on vm's Value/Chunk/Object types.
func (vm *VM) Run(fnObj *Object) error {
	closureObj := vm.wrapClosure(fnObj)
	vm.push(ObjectValue(closureObj))
	if !vm.callValue(ObjectValue(closureObj), 0) {
		return vm.lastCallErr
	}
	return vm.run()
}

// wrapClosure builds a zero-upvalue closure around a freshly compiled
// top-level function.
func (vm *VM) wrapClosure(fnObj *Object) *Object {
	cl := &ClosureObject{Function: fnObj}
	clObj := vm.gc.NewClosure(cl)
	cl.selfObject = clObj
	return clObj
}

func (vm *VM) runtimeError(format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)
	var frames []jmplerr.Frame
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		fn := f.closure.Fn()
		line := fn.Chunk.GetLine(f.ip - 1)
		name := "script"
		if fn.Name != nil {
			name = fn.NameString()
		}
		frames = append(frames, jmplerr.Frame{Line: line, Function: name})
	}
	vm.resetStack()
	return jmplerr.NewRuntimeError(message).WithStack(frames)
}

// run is the main dispatch loop, executing until the frame stack empties
// (successful completion) or a runtime error unwinds it.
func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := frame.closure.Fn().Chunk.Code[frame.ip]
		frame.ip++
		return b
	}
	readU16 := func() uint16 {
		hi := readByte()
		lo := readByte()
		return uint16(hi)<<8 | uint16(lo)
	}
	readConstant := func() Value {
		return frame.closure.Fn().Chunk.Constants[readU16()]
	}

	for {
		op := bytecode.OpCode(readByte())
		switch op {
		case bytecode.OpConstant:
			vm.push(readConstant())

		case bytecode.OpNull:
			vm.push(NullValue)
		case bytecode.OpTrue:
			vm.push(BoolValue(true))
		case bytecode.OpFalse:
			vm.push(BoolValue(false))

		case bytecode.OpPop:
			vm.pop()
		case bytecode.OpStash:
			frame.stash = vm.peek(0)

		case bytecode.OpGetLocal:
			slot := int(readByte())
			vm.push(vm.stack[frame.base+slot])
		case bytecode.OpSetLocal:
			slot := int(readByte())
			vm.stack[frame.base+slot] = vm.peek(0)

		case bytecode.OpGetGlobal:
			name := readConstant().AsString()
			nameObj := vm.strings.findString([]byte(name.UTF8()), name.Hash())
			val, ok := vm.globals.get(nameObj)
			if !ok {
				return vm.runtimeError("undefined variable '%s'", name.UTF8())
			}
			vm.push(val)
		case bytecode.OpDefineGlobal:
			name := readConstant().AsString()
			nameObj := vm.internName(name)
			vm.globals.set(nameObj, vm.peek(0))
			vm.pop()
		case bytecode.OpSetGlobal:
			name := readConstant().AsString()
			nameObj := vm.internName(name)
			if vm.globals.set(nameObj, vm.peek(0)) {
				vm.globals.delete(nameObj)
				return vm.runtimeError("undefined variable '%s'", name.UTF8())
			}

		case bytecode.OpGetUpvalue:
			slot := int(readByte())
			uv := frame.closure.Upvalues[slot].Data.(*UpvalueObject)
			vm.push(*uv.Location)
		case bytecode.OpSetUpvalue:
			slot := int(readByte())
			uv := frame.closure.Upvalues[slot].Data.(*UpvalueObject)
			*uv.Location = vm.peek(0)
		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolValue(ValuesEqual(a, b)))
		case bytecode.OpNotEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolValue(!ValuesEqual(a, b)))
		case bytecode.OpGreater, bytecode.OpGreaterEqual, bytecode.OpLess, bytecode.OpLessEqual:
			if err := vm.binaryCompare(op); err != nil {
				return err
			}

		case bytecode.OpAdd:
			if err := vm.opAdd(); err != nil {
				return err
			}
		case bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide, bytecode.OpExponent, bytecode.OpMod:
			if err := vm.binaryArith(op); err != nil {
				return err
			}
		case bytecode.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("operand must be a number")
			}
			vm.push(NumberValue(-vm.pop().AsNumber()))
		case bytecode.OpNot:
			vm.push(BoolValue(vm.pop().IsFalsey()))

		case bytecode.OpJump:
			offset := readU16()
			frame.ip = int(offset)
		case bytecode.OpJumpIfFalse:
			offset := readU16()
			if vm.pop().IsFalsey() {
				frame.ip = int(offset)
			}
		case bytecode.OpJumpIfFalse2:
			offset := readU16()
			if vm.peek(0).IsFalsey() {
				frame.ip = int(offset)
			}
		case bytecode.OpLoop:
			offset := readU16()
			frame.ip = int(offset)

		case bytecode.OpCall:
			argCount := int(readByte())
			if !vm.callValue(vm.peek(argCount), argCount) {
				return vm.lastCallErr
			}
			frame = &vm.frames[vm.frameCount-1]

		case bytecode.OpClosure:
			fnVal := readConstant()
			fnObj := fnVal.obj
			fn := fnObj.Data.(*FunctionObject)
			cl := &ClosureObject{Function: fnObj, Upvalues: make([]*Object, fn.UpvalueCount)}
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte()
				index := readByte()
				if isLocal != 0 {
					cl.Upvalues[i] = vm.captureUpvalue(frame.base + int(index))
				} else {
					cl.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}
			clObj := vm.gc.NewClosure(cl)
			cl.selfObject = clObj
			vm.push(ObjectValue(clObj))

		case bytecode.OpReturn:
			implicit := readByte()
			var result Value
			if implicit != 0 {
				result = frame.stash
			} else {
				result = vm.pop()
			}
			vm.closeUpvalues(frame.base)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = frame.base
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		case bytecode.OpSetCreate:
			vm.push(ObjectValue(vm.gc.newObject(ObjSet, newEmptySet())))
		case bytecode.OpSetInsert:
			count := int(readByte())
			s := newEmptySet()
			base := vm.stackTop - count
			for i := 0; i < count; i++ {
				s.Insert(vm.stack[base+i])
				vm.gc.PushTemp(vm.stack[base+i])
			}
			vm.stackTop = base
			vm.push(ObjectValue(vm.gc.newObject(ObjSet, s)))
			for i := 0; i < count; i++ {
				vm.gc.PopTemp()
			}
		case bytecode.OpSetOmission:
			if err := vm.opSetOmission(readByte()); err != nil {
				return err
			}
		case bytecode.OpSetIn:
			target := vm.pop()
			elem := vm.pop()
			if !target.IsSet() {
				return vm.runtimeError("right-hand side of 'in' must be a set")
			}
			vm.push(BoolValue(target.AsSet().Contains(elem)))
		case bytecode.OpSetIntersect, bytecode.OpSetUnion, bytecode.OpSetDifference, bytecode.OpSubset, bytecode.OpSubsetEq:
			if err := vm.opSetBinary(op); err != nil {
				return err
			}
		case bytecode.OpSize:
			v := vm.pop()
			switch {
			case v.IsSet():
				vm.push(NumberValue(float64(v.AsSet().Size())))
			case v.IsTuple():
				vm.push(NumberValue(float64(v.AsTuple().Len())))
			case v.IsString():
				vm.push(NumberValue(float64(v.AsString().Length())))
			default:
				return vm.runtimeError("'#' requires a set, tuple, or string")
			}
		case bytecode.OpArb:
			v := vm.pop()
			if !v.IsSet() {
				return vm.runtimeError("arb() requires a set")
			}
			elem, ok := v.AsSet().Arb()
			if !ok {
				return vm.runtimeError("arb() of an empty set")
			}
			vm.push(elem)

		case bytecode.OpCreateTuple:
			count := int(readByte())
			base := vm.stackTop - count
			elements := append([]Value(nil), vm.stack[base:vm.stackTop]...)
			for _, v := range elements {
				vm.gc.PushTemp(v)
			}
			vm.stackTop = base
			vm.push(ObjectValue(vm.gc.newObject(ObjTuple, &TupleObject{Elements: elements})))
			for range elements {
				vm.gc.PopTemp()
			}
		case bytecode.OpTupleOmission:
			if err := vm.opTupleOmission(readByte()); err != nil {
				return err
			}

		case bytecode.OpSubscript:
			flag := readByte()
			if err := vm.opSubscript(flag); err != nil {
				return err
			}

		case bytecode.OpCreateIterator:
			target := vm.pop()
			if !target.IsObject() || !target.obj.Iterable() {
				return vm.runtimeError("value is not iterable")
			}
			vm.push(ObjectValue(vm.NewIterator(target.obj)))
		case bytecode.OpIterate:
			offset := readU16()
			it := vm.peek(0).AsIterator()
			value, ok := vm.Advance(it)
			if !ok {
				frame.ip = int(offset)
				continue
			}
			vm.push(value)

		case bytecode.OpSum:
			if err := vm.opSum(); err != nil {
				return err
			}

		case bytecode.OpCollectInsert:
			if err := vm.opCollectInsert(readByte()); err != nil {
				return err
			}

		default:
			return vm.runtimeError("unknown opcode %d", byte(op))
		}
	}
}

// internName returns the canonical interned Object for a name that was
// already interned once by the compiler (constants are always produced
// via vm.NewString, so this is always a hit).
func (vm *VM) internName(s *StringObject) *Object {
	return vm.strings.findString([]byte(s.UTF8()), s.Hash())
}

func (vm *VM) closeUpvalues(fromSlot int) {
	for vm.openUpvalues != nil {
		uv := vm.openUpvalues.Data.(*UpvalueObject)
		if uv.slot < fromSlot {
			break
		}
		uv.Closed = *uv.Location
		uv.Location = &uv.Closed
		vm.openUpvalues = uv.Next
	}
}

func (vm *VM) captureUpvalue(slot int) *Object {
	var prev *Object
	cur := vm.openUpvalues
	for cur != nil && cur.Data.(*UpvalueObject).slot > slot {
		prev = cur
		cur = cur.Data.(*UpvalueObject).Next
	}
	if cur != nil && cur.Data.(*UpvalueObject).slot == slot {
		return cur
	}
	created := vm.gc.NewUpvalue(&UpvalueObject{Location: &vm.stack[slot], slot: slot, Next: cur})
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Data.(*UpvalueObject).Next = created
	}
	return created
}

// callValue's boolean return (with the error stashed in vm.lastCallErr)
// matches the teacher's hot-path idiom of a bool check in the dispatch
// switch while still surfacing a real error value to the caller.
func (vm *VM) callValue(callee Value, argCount int) bool {
	if callee.IsClosure() {
		return vm.call(callee.AsClosure(), argCount)
	}
	if callee.IsNative() {
		native := callee.AsNative()
		if argCount != native.Arity && native.Arity >= 0 {
			vm.lastCallErr = vm.runtimeError("expected %d arguments but got %d", native.Arity, argCount)
			return false
		}
		args := vm.stack[vm.stackTop-argCount : vm.stackTop]
		result, err := native.Fn(vm, argCount, args)
		if err != nil {
			vm.lastCallErr = vm.runtimeError("%s", err.Error())
			return false
		}
		vm.stackTop -= argCount + 1
		vm.push(result)
		return true
	}
	vm.lastCallErr = vm.runtimeError("can only call functions")
	return false
}

func (vm *VM) call(closure *ClosureObject, argCount int) bool {
	fn := closure.Fn()
	if argCount != fn.Arity {
		vm.lastCallErr = vm.runtimeError("expected %d arguments but got %d", fn.Arity, argCount)
		return false
	}
	if vm.frameCount == framesMax {
		vm.lastCallErr = vm.runtimeError("stack overflow")
		return false
	}
	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.base = vm.stackTop - argCount - 1
	frame.stash = NullValue
	return true
}
