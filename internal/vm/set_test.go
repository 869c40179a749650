package vm

import "testing"

func setOf(nums ...float64) *SetObject {
	s := newEmptySet()
	for _, n := range nums {
		s.Insert(NumberValue(n))
	}
	return s
}

func setNums(s *SetObject) map[float64]bool {
	out := map[float64]bool{}
	s.forEach(func(v Value) { out[v.AsNumber()] = true })
	return out
}

func TestSetUnionIntersectDifference(t *testing.T) {
	a := setOf(1, 2, 3)
	b := setOf(2, 3, 4)

	union := setNums(Union(a, b))
	for _, n := range []float64{1, 2, 3, 4} {
		if !union[n] {
			t.Errorf("union missing %v", n)
		}
	}
	if len(union) != 4 {
		t.Errorf("union has %d elements, want 4", len(union))
	}

	inter := setNums(Intersect(a, b))
	if len(inter) != 2 || !inter[2] || !inter[3] {
		t.Errorf("intersection = %v, want {2, 3}", inter)
	}

	diff := setNums(Difference(a, b))
	if len(diff) != 1 || !diff[1] {
		t.Errorf("difference = %v, want {1}", diff)
	}
}

func TestSetSubsetAndProperSubset(t *testing.T) {
	a := setOf(1, 2)
	b := setOf(1, 2, 3)

	if !Subset(a, b) {
		t.Error("{1,2} should be a subset of {1,2,3}")
	}
	if !ProperSubset(a, b) {
		t.Error("{1,2} should be a proper subset of {1,2,3}")
	}
	if !Subset(a, a) {
		t.Error("a set is always a subset of itself")
	}
	if ProperSubset(a, a) {
		t.Error("a set is never a proper subset of itself")
	}
}

func TestSetInsertDeduplicates(t *testing.T) {
	s := newEmptySet()
	s.Insert(NumberValue(1))
	s.Insert(NumberValue(1))
	s.Insert(NumberValue(2))
	if s.Size() != 2 {
		t.Errorf("size = %d, want 2 (duplicate insert should be a no-op)", s.Size())
	}
}

func TestSetArbOnEmptySet(t *testing.T) {
	s := newEmptySet()
	if _, ok := s.Arb(); ok {
		t.Error("Arb on an empty set should report ok=false")
	}
}

func TestSetGrowPastInitialCapacity(t *testing.T) {
	s := newEmptySet()
	for i := 0; i < 1000; i++ {
		s.Insert(NumberValue(float64(i)))
	}
	if s.Size() != 1000 {
		t.Errorf("size = %d, want 1000", s.Size())
	}
	for i := 0; i < 1000; i++ {
		if !s.Contains(NumberValue(float64(i))) {
			t.Fatalf("missing element %d after growth", i)
		}
	}
}
