package vm

const initialNextGC = 1 << 20 // 1 MiB

// RootsProvider is implemented by the VM so the GC can walk VM-owned
// roots (the value stack, call frames, open-upvalue list, globals table)
// without the gc package depending on vm's call-frame layout directly —
// both live in this package, but the indirection keeps markRoots as the
// single place that enumerates root sources per §4.5.
type RootsProvider interface {
	MarkRoots(g *GC)
}

// GC implements precise mark-and-sweep: non-moving, single-threaded, with
// a gray worklist driving the tracing phase and a temp stack for rooting
// compound allocations whose parts aren't yet reachable from the VM stack.
type GC struct {
	objects        *Object
	bytesAllocated uint64
	nextGC         uint64
	gray           []*Object
	temp           []Value
	stressGC       bool
	traceGC        bool
	roots          RootsProvider
	compilerRoots  func(g *GC)
	onCollect      func(freed, heapBefore, heapAfter, next uint64)
	internTable    *table
}

func NewGC() *GC {
	return &GC{nextGC: initialNextGC}
}

func (g *GC) SetRoots(r RootsProvider)  { g.roots = r }
func (g *GC) SetStressGC(on bool)       { g.stressGC = on }
func (g *GC) SetTraceGC(on bool)        { g.traceGC = on }
func (g *GC) SetInternTable(t *table)   { g.internTable = t }
func (g *GC) OnCollect(fn func(freed, heapBefore, heapAfter, next uint64)) {
	g.onCollect = fn
}

// SetCompilerRoots registers (or, passed nil, clears) a callback consulted
// by CollectGarbage alongside the VM's own RootsProvider. The compiler
// package sets this for the duration of a single Compile call, so that
// FunctionObjects allocated for frames not yet linked into any enclosing
// chunk's constant pool — and so invisible to the VM's stack/frame/globals
// roots, which have nothing on them until execution begins — still survive
// a collection triggered mid-compile (e.g. under --stress-gc).
func (g *GC) SetCompilerRoots(fn func(g *GC)) { g.compilerRoots = fn }

// MarkObject exposes markObject to packages outside vm (namely the
// compiler) that need to root an object directly from a compiler-roots
// callback rather than through a Value.
func (g *GC) MarkObject(o *Object) { g.markObject(o) }

func (g *GC) BytesAllocated() uint64 { return g.bytesAllocated }
func (g *GC) NextGC() uint64         { return g.nextGC }

// PushTemp roots v for the duration of a compound allocation that isn't
// yet reachable from the VM stack (e.g. while building a concatenated
// string from two operands popped off the stack).
func (g *GC) PushTemp(v Value) {
	g.temp = append(g.temp, v)
}

func (g *GC) PopTemp() {
	g.temp = g.temp[:len(g.temp)-1]
}

// objectSize estimates an object's heap footprint for the purposes of the
// heap-growth policy; it need not be exact, only monotonic in the data an
// object carries.
func objectSize(kind ObjectKind, data interface{}) uint64 {
	const headerSize = 32
	switch kind {
	case ObjString:
		return headerSize + uint64(len(data.(*StringObject).CodePoints))*4
	case ObjSet:
		return headerSize + uint64(len(data.(*SetObject).entries))*24
	case ObjTuple:
		return headerSize + uint64(len(data.(*TupleObject).Elements))*16
	case ObjFunction:
		return headerSize + uint64(len(data.(*FunctionObject).Chunk.Code))
	default:
		return headerSize
	}
}

// allocateTracking adds size bytes of new allocation to bytesAllocated and
// collects if that exceeds nextGC (or the stress flag forces every growth
// to collect).
func (g *GC) allocateTracking(size uint64) {
	g.bytesAllocated += size
	if g.stressGC || g.bytesAllocated > g.nextGC {
		g.CollectGarbage()
	}
}

// newObjectSized accounts for a new object's size against the heap-growth
// policy (possibly collecting first), then links the object at the head of
// the object list, so a collection triggered by this allocation never
// sweeps the object being allocated.
func (g *GC) newObjectSized(kind ObjectKind, data interface{}) *Object {
	g.allocateTracking(objectSize(kind, data))
	o := &Object{Kind: kind, Data: data, Next: g.objects}
	g.objects = o
	return o
}

func (g *GC) markValue(v Value) {
	if v.Kind == ValObject {
		g.markObject(v.obj)
	}
}

func (g *GC) markObject(o *Object) {
	if o == nil || o.Marked {
		return
	}
	o.Marked = true
	g.gray = append(g.gray, o)
}

func (g *GC) blacken(o *Object) {
	switch o.Kind {
	case ObjFunction:
		fn := o.Data.(*FunctionObject)
		g.markObject(fn.Name)
		for _, c := range fn.Chunk.Constants {
			g.markValue(c)
		}
	case ObjClosure:
		cl := o.Data.(*ClosureObject)
		g.markObject(cl.Function)
		for _, uv := range cl.Upvalues {
			g.markObject(uv)
		}
	case ObjUpvalue:
		uv := o.Data.(*UpvalueObject)
		if uv.Location != nil {
			g.markValue(*uv.Location)
		}
		g.markValue(uv.Closed)
	case ObjTuple:
		t := o.Data.(*TupleObject)
		for _, v := range t.Elements {
			g.markValue(v)
		}
	case ObjSet:
		s := o.Data.(*SetObject)
		s.forEach(func(v Value) { g.markValue(v) })
	case ObjIterator:
		it := o.Data.(*IteratorObject)
		g.markObject(it.Target)
	case ObjString, ObjNative:
		// no children
	}
}

// CollectGarbage runs one full mark-sweep cycle: mark roots, trace the
// gray worklist to black, remove intern-table entries whose keys didn't
// survive, sweep the object list, and grow nextGC for the next cycle.
func (g *GC) CollectGarbage() {
	heapBefore := g.bytesAllocated
	if g.roots != nil {
		g.roots.MarkRoots(g)
	}
	if g.compilerRoots != nil {
		g.compilerRoots(g)
	}
	for _, v := range g.temp {
		g.markValue(v)
	}
	for len(g.gray) > 0 {
		o := g.gray[len(g.gray)-1]
		g.gray = g.gray[:len(g.gray)-1]
		g.blacken(o)
	}
	if g.internTable != nil {
		g.internTable.removeWhite()
	}
	freed := g.sweep()
	g.nextGC = g.bytesAllocated * 2
	if g.nextGC < initialNextGC {
		g.nextGC = initialNextGC
	}
	if g.traceGC && g.onCollect != nil {
		g.onCollect(freed, heapBefore, g.bytesAllocated, g.nextGC)
	}
}

// sweep unlinks and discards unmarked objects from the intrusive object
// list, clears the mark bit on survivors, and returns the bytes freed.
func (g *GC) sweep() uint64 {
	var freed uint64
	var prev *Object
	obj := g.objects
	for obj != nil {
		if obj.Marked {
			obj.Marked = false
			prev = obj
			obj = obj.Next
			continue
		}
		unreached := obj
		obj = obj.Next
		if prev != nil {
			prev.Next = obj
		} else {
			g.objects = obj
		}
		freed += objectSize(unreached.Kind, unreached.Data)
	}
	if freed > g.bytesAllocated {
		g.bytesAllocated = 0
	} else {
		g.bytesAllocated -= freed
	}
	return freed
}
