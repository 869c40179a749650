package vm

import "testing"

func tupleOf(nums ...float64) *TupleObject {
	vals := make([]Value, len(nums))
	for i, n := range nums {
		vals[i] = NumberValue(n)
	}
	return NewTuple(vals)
}

func TestTupleIndexNegative(t *testing.T) {
	tup := tupleOf(10, 20, 30)
	v, ok := tup.Index(-1)
	if !ok || v.AsNumber() != 30 {
		t.Errorf("Index(-1) = (%v, %v), want (30, true)", v, ok)
	}
	if _, ok := tup.Index(3); ok {
		t.Error("Index(3) on a 3-element tuple should be out of bounds")
	}
}

func TestTupleSliceClamps(t *testing.T) {
	tup := tupleOf(1, 2, 3, 4, 5)
	s := tup.Slice(1, 3)
	if s.Len() != 2 {
		t.Fatalf("slice length = %d, want 2", s.Len())
	}
	v0, _ := s.Index(0)
	v1, _ := s.Index(1)
	if v0.AsNumber() != 2 || v1.AsNumber() != 3 {
		t.Errorf("slice = (%v, %v), want (2, 3)", v0, v1)
	}
}

func TestTupleConcat(t *testing.T) {
	a := tupleOf(1, 2)
	b := tupleOf(3, 4)
	out := Concat(a, b)
	if out.Len() != 4 {
		t.Fatalf("length = %d, want 4", out.Len())
	}
	for i, want := range []float64{1, 2, 3, 4} {
		v, _ := out.Index(i)
		if v.AsNumber() != want {
			t.Errorf("element %d = %v, want %v", i, v.AsNumber(), want)
		}
	}
	// Concat must not mutate its operands.
	if a.Len() != 2 || b.Len() != 2 {
		t.Error("Concat mutated an input tuple")
	}
}

func TestOmissionAscendingAndDescending(t *testing.T) {
	asc, err := Omission(1, 5, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(asc) != 5 {
		t.Fatalf("got %d elements, want 5", len(asc))
	}

	desc, err := Omission(5, 1, -2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{5, 3, 1}
	if len(desc) != len(want) {
		t.Fatalf("got %d elements, want %d", len(desc), len(want))
	}
	for i, w := range want {
		if desc[i].AsNumber() != w {
			t.Errorf("element %d = %v, want %v", i, desc[i].AsNumber(), w)
		}
	}
}

func TestOmissionRejectsZeroOrWrongSignedStep(t *testing.T) {
	if _, err := Omission(1, 5, 0); err == nil {
		t.Error("zero step should be an error")
	}
	if _, err := Omission(1, 5, -1); err == nil {
		t.Error("a step moving away from the end bound should be an error")
	}
}
