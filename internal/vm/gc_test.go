package vm

import "testing"

func TestCollectGarbageSweepsUnreachableObjects(t *testing.T) {
	machine := New()

	reachable := machine.gc.newObject(ObjTuple, NewTuple([]Value{NumberValue(1)}))
	machine.push(ObjectValue(reachable))

	before := machine.gc.BytesAllocated()
	// Allocated but never pushed onto the stack or stored anywhere: garbage.
	machine.gc.newObject(ObjTuple, NewTuple([]Value{NumberValue(2)}))
	afterAlloc := machine.gc.BytesAllocated()
	if afterAlloc <= before {
		t.Fatalf("expected bytesAllocated to grow after allocating, got %d -> %d", before, afterAlloc)
	}

	machine.gc.CollectGarbage()

	afterGC := machine.gc.BytesAllocated()
	if afterGC >= afterAlloc {
		t.Errorf("expected unreachable object to be swept, bytesAllocated stayed at %d", afterGC)
	}

	// The reachable object (still on the stack) must have survived.
	found := false
	for o := machine.gc.objects; o != nil; o = o.Next {
		if o == reachable {
			found = true
		}
	}
	if !found {
		t.Error("a tuple referenced from the VM stack was swept")
	}

	machine.pop()
}

func TestStressGCRunsOnEveryAllocation(t *testing.T) {
	machine := New()
	machine.SetStressGC(true)

	root := machine.gc.newObject(ObjTuple, NewTuple(nil))
	machine.push(ObjectValue(root))

	for i := 0; i < 50; i++ {
		machine.gc.newObjectSized(ObjTuple, NewTuple([]Value{NumberValue(float64(i))}))
	}

	found := false
	for o := machine.gc.objects; o != nil; o = o.Next {
		if o == root {
			found = true
		}
	}
	if !found {
		t.Error("the rooted tuple should have survived repeated stress collections")
	}
	machine.pop()
}
