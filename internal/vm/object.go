package vm

// ObjectKind discriminates the payload carried by an Object header.
type ObjectKind uint8

const (
	ObjFunction ObjectKind = iota
	ObjClosure
	ObjUpvalue
	ObjNative
	ObjString
	ObjSet
	ObjTuple
	ObjIterator
)

// iterableKinds records which object kinds support the iterator protocol,
// a static property of the kind per the data model.
var iterableKinds = map[ObjectKind]bool{
	ObjString: true,
	ObjSet:    true,
	ObjTuple:  true,
}

// Object is the common header every heap value begins with. Next threads
// all live objects into the GC's intrusive singly-linked list; Marked is
// the tri-color mark bit; Data holds the kind-specific payload.
type Object struct {
	Kind    ObjectKind
	Marked  bool
	Next    *Object
	Data    interface{}
}

func (o *Object) Iterable() bool {
	return iterableKinds[o.Kind]
}

// FunctionObject is a compiled function: its arity, declared upvalue
// count, compiled Chunk, and optional name (nil for the top-level
// script). Name is the *Object wrapping the interned StringObject, not
// the StringObject directly, so the GC can mark it as a child.
type FunctionObject struct {
	Arity        int
	UpvalueCount int
	Chunk        *Chunk
	Name         *Object
}

func (f *FunctionObject) NameString() string {
	if f.Name == nil {
		return ""
	}
	return f.Name.Data.(*StringObject).UTF8()
}

// UpvalueDescriptor records, at closure-creation time, whether the i-th
// upvalue captures a local slot of the enclosing frame or one of the
// enclosing closure's own upvalues.
type UpvalueDescriptor struct {
	Index   uint8
	IsLocal bool
}

// ClosureObject bundles a compiled Function with its captured upvalues.
// Function is the *Object wrapping the FunctionObject so the GC can mark
// it as a child of the closure.
type ClosureObject struct {
	Function   *Object
	Upvalues   []*Object // each Data is *UpvalueObject
	selfObject *Object   // the Object wrapping this closure, for frame root-marking
}

func (c *ClosureObject) Fn() *FunctionObject {
	return c.Function.Data.(*FunctionObject)
}

// UpvalueObject is open while Location points into the live VM stack, and
// closed once Location is redirected to point at its own Closed field.
// slot records the stack index it was opened at, used to keep the open
// list sorted in descending order and to decide which upvalues a given
// return/CLOSE_UPVALUE must close.
type UpvalueObject struct {
	Location *Value
	Closed   Value
	slot     int
	Next     *Object // next in the VM's descending open-upvalue list
}

// NativeFn is the calling convention every native function implements:
// it receives the VM, the argument count, and a slice of the arguments
// (args[0] is the first argument), and returns a Value or an error.
type NativeFn func(vm *VM, argCount int, args []Value) (Value, error)

// NativeObject wraps a Go-implemented native function.
type NativeObject struct {
	Name  string
	Arity int
	Fn    NativeFn
}

// IteratorObject drives `x ∈ S` generation: Target is the set, tuple, or
// string being iterated; Index is the position of the next element to
// read, or -1 once exhausted.
type IteratorObject struct {
	Target *Object
	Index  int
}

// newObject links a freshly allocated object at the head of the GC's
// object list, accounts for its size, and returns it.
func (g *GC) newObject(kind ObjectKind, data interface{}) *Object {
	return g.newObjectSized(kind, data)
}

func (g *GC) NewFunction(fn *FunctionObject) *Object {
	return g.newObject(ObjFunction, fn)
}

func (g *GC) NewClosure(cl *ClosureObject) *Object {
	return g.newObject(ObjClosure, cl)
}

func (g *GC) NewUpvalue(uv *UpvalueObject) *Object {
	return g.newObject(ObjUpvalue, uv)
}

func (g *GC) NewNative(n *NativeObject) *Object {
	return g.newObject(ObjNative, n)
}

func (g *GC) NewIterator(it *IteratorObject) *Object {
	return g.newObject(ObjIterator, it)
}
