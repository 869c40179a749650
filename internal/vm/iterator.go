package vm

// NewIterator constructs an iterator over target, with Index set to the
// first valid element position: the first occupied slot for sets, 0 for
// a non-empty tuple or string, or -1 if target is empty.
func (vm *VM) NewIterator(target *Object) *Object {
	index := -1
	switch target.Kind {
	case ObjSet:
		s := target.Data.(*SetObject)
		index = nextSetIndex(s, 0)
	case ObjTuple:
		if len(target.Data.(*TupleObject).Elements) > 0 {
			index = 0
		}
	case ObjString:
		if target.Data.(*StringObject).Length() > 0 {
			index = 0
		}
	}
	return vm.gc.NewIterator(&IteratorObject{Target: target, Index: index})
}

// Advance reads the element at the iterator's current position (if any),
// advances Index to the next valid position, and reports whether the
// pre-advance read was valid — the read-then-advance semantics ITERATE
// depends on. String elements are interned as one-code-point strings via
// the VM's string table.
func (vm *VM) Advance(it *IteratorObject) (Value, bool) {
	if it.Index < 0 {
		return NullValue, false
	}
	var value Value
	switch it.Target.Kind {
	case ObjSet:
		s := it.Target.Data.(*SetObject)
		value = s.entries[it.Index].key
		it.Index = nextSetIndex(s, it.Index+1)
	case ObjTuple:
		t := it.Target.Data.(*TupleObject)
		value = t.Elements[it.Index]
		if it.Index+1 >= len(t.Elements) {
			it.Index = -1
		} else {
			it.Index++
		}
	case ObjString:
		s := it.Target.Data.(*StringObject)
		value = ObjectValue(vm.NewStringFromRunes([]rune{s.CodePoints[it.Index]}))
		if it.Index+1 >= s.Length() {
			it.Index = -1
		} else {
			it.Index++
		}
	}
	return value, true
}

func nextSetIndex(s *SetObject, from int) int {
	for i := from; i < len(s.entries); i++ {
		if s.entries[i].present {
			return i
		}
	}
	return -1
}
