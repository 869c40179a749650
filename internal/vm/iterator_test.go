package vm

import "testing"

func TestIteratorOverTuple(t *testing.T) {
	machine := New()
	target := machine.gc.newObject(ObjTuple, NewTuple([]Value{
		NumberValue(1), NumberValue(2), NumberValue(3),
	}))
	itObj := machine.NewIterator(target)
	it := itObj.Data.(*IteratorObject)

	var got []float64
	for {
		v, ok := machine.Advance(it)
		if !ok {
			break
		}
		got = append(got, v.AsNumber())
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("got %v, want [1 2 3]", got)
	}
}

func TestIteratorOverEmptyTupleIsImmediatelyExhausted(t *testing.T) {
	machine := New()
	target := machine.gc.newObject(ObjTuple, NewTuple(nil))
	itObj := machine.NewIterator(target)
	it := itObj.Data.(*IteratorObject)

	if _, ok := machine.Advance(it); ok {
		t.Error("advancing an iterator over an empty tuple should report ok=false immediately")
	}
}

func TestIteratorOverSetVisitsEveryElementOnce(t *testing.T) {
	machine := New()
	s := newEmptySet()
	s.Insert(NumberValue(10))
	s.Insert(NumberValue(20))
	s.Insert(NumberValue(30))
	target := machine.gc.newObject(ObjSet, s)
	itObj := machine.NewIterator(target)
	it := itObj.Data.(*IteratorObject)

	seen := map[float64]int{}
	for {
		v, ok := machine.Advance(it)
		if !ok {
			break
		}
		seen[v.AsNumber()]++
	}
	for _, n := range []float64{10, 20, 30} {
		if seen[n] != 1 {
			t.Errorf("element %v visited %d times, want 1", n, seen[n])
		}
	}
}
