package vm

import (
	"math"

	"jmpl/internal/bytecode"
)

// opAdd implements §4.4's overloaded `+`: numeric addition, string or
// mixed-with-string concatenation, and tuple concatenation.
func (vm *VM) opAdd() error {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case a.IsNumber() && b.IsNumber():
		bv := vm.pop()
		av := vm.pop()
		vm.push(NumberValue(av.AsNumber() + bv.AsNumber()))
	case a.IsString() || b.IsString():
		bv := vm.pop()
		av := vm.pop()
		vm.gc.PushTemp(av)
		vm.gc.PushTemp(bv)
		as := valueToStringObject(vm, av)
		bs := valueToStringObject(vm, bv)
		result := vm.ConcatStrings(as, bs)
		vm.gc.PopTemp()
		vm.gc.PopTemp()
		vm.push(ObjectValue(result))
	case a.IsTuple() && b.IsTuple():
		bv := vm.pop()
		av := vm.pop()
		vm.gc.PushTemp(av)
		vm.gc.PushTemp(bv)
		result := Concat(av.AsTuple(), bv.AsTuple())
		vm.push(ObjectValue(vm.gc.newObject(ObjTuple, result)))
		vm.gc.PopTemp()
		vm.gc.PopTemp()
	default:
		return vm.runtimeError("operands must be two numbers, two tuples, or involve a string")
	}
	return nil
}

// valueToStringObject renders any Value the way FormatValue does, for use
// as an operand of string concatenation (so `"x=" + 1` works).
func valueToStringObject(vm *VM, v Value) *StringObject {
	if v.IsString() {
		return v.AsString()
	}
	return vm.NewString(FormatValue(v)).Data.(*StringObject)
}

func (vm *VM) binaryArith(op bytecode.OpCode) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("operands must be numbers")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	switch op {
	case bytecode.OpSubtract:
		vm.push(NumberValue(a - b))
	case bytecode.OpMultiply:
		vm.push(NumberValue(a * b))
	case bytecode.OpDivide:
		if b == 0 {
			return vm.runtimeError("division by zero")
		}
		vm.push(NumberValue(a / b))
	case bytecode.OpExponent:
		vm.push(NumberValue(math.Pow(a, b)))
	case bytecode.OpMod:
		if b == 0 {
			return vm.runtimeError("division by zero")
		}
		vm.push(NumberValue(math.Mod(a, b)))
	}
	return nil
}

func (vm *VM) binaryCompare(op bytecode.OpCode) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("operands must be numbers")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	switch op {
	case bytecode.OpGreater:
		vm.push(BoolValue(a > b))
	case bytecode.OpGreaterEqual:
		vm.push(BoolValue(a >= b))
	case bytecode.OpLess:
		vm.push(BoolValue(a < b))
	case bytecode.OpLessEqual:
		vm.push(BoolValue(a <= b))
	}
	return nil
}

func (vm *VM) opSetBinary(op bytecode.OpCode) error {
	if !vm.peek(0).IsSet() || !vm.peek(1).IsSet() {
		return vm.runtimeError("operand must be a set")
	}
	bv := vm.pop()
	av := vm.pop()
	vm.gc.PushTemp(av)
	vm.gc.PushTemp(bv)
	a := av.AsSet()
	b := bv.AsSet()
	switch op {
	case bytecode.OpSetIntersect:
		vm.push(ObjectValue(vm.gc.newObject(ObjSet, Intersect(a, b))))
	case bytecode.OpSetUnion:
		vm.push(ObjectValue(vm.gc.newObject(ObjSet, Union(a, b))))
	case bytecode.OpSetDifference:
		vm.push(ObjectValue(vm.gc.newObject(ObjSet, Difference(a, b))))
	case bytecode.OpSubset:
		vm.push(BoolValue(ProperSubset(a, b)))
	case bytecode.OpSubsetEq:
		vm.push(BoolValue(Subset(a, b)))
	}
	vm.gc.PopTemp()
	vm.gc.PopTemp()
	return nil
}

// opSetOmission builds {a … b} (flag 0, step 1) or {a, n … b} (flag 1,
// step inferred from the second element n).
func (vm *VM) opSetOmission(flag byte) error {
	elements, err := vm.popOmissionElements(flag)
	if err != nil {
		return err
	}
	s := newEmptySet()
	for _, v := range elements {
		s.Insert(v)
		vm.gc.PushTemp(v)
	}
	vm.push(ObjectValue(vm.gc.newObject(ObjSet, s)))
	for range elements {
		vm.gc.PopTemp()
	}
	return nil
}

// opTupleOmission mirrors opSetOmission but preserves order (tuples never
// deduplicate).
func (vm *VM) opTupleOmission(flag byte) error {
	elements, err := vm.popOmissionElements(flag)
	if err != nil {
		return err
	}
	for _, v := range elements {
		vm.gc.PushTemp(v)
	}
	vm.push(ObjectValue(vm.gc.newObject(ObjTuple, &TupleObject{Elements: elements})))
	for range elements {
		vm.gc.PopTemp()
	}
	return nil
}

// popOmissionElements implements the shared arithmetic-progression
// construction for both set- and tuple-omission: flag 0 pops (start, end)
// with step 1; flag 1 pops (start, second, end) with step = second-start.
func (vm *VM) popOmissionElements(flag byte) ([]Value, error) {
	if flag == 0 {
		end := vm.pop()
		start := vm.pop()
		if !start.IsNumber() || !end.IsNumber() {
			return nil, vm.runtimeError("omission bounds must be numbers")
		}
		elems, err := Omission(start.AsNumber(), end.AsNumber(), 1)
		if err != nil {
			return nil, vm.runtimeError("%s", err.Error())
		}
		return elems, nil
	}
	end := vm.pop()
	second := vm.pop()
	start := vm.pop()
	if !start.IsNumber() || !second.IsNumber() || !end.IsNumber() {
		return nil, vm.runtimeError("omission bounds must be numbers")
	}
	step := second.AsNumber() - start.AsNumber()
	elems, err := Omission(start.AsNumber(), end.AsNumber(), step)
	if err != nil {
		return nil, vm.runtimeError("%s", err.Error())
	}
	return elems, nil
}

// opSubscript implements `s[i]`/`t[i]` (flag 0) and `s[i … j]`/`t[i … j]`
// (flag 1, with null bounds meaning an open end) over strings and tuples.
func (vm *VM) opSubscript(flag byte) error {
	if flag == 0 {
		idx := vm.pop()
		target := vm.pop()
		if !idx.IsNumber() {
			return vm.runtimeError("subscript index must be a number")
		}
		i := int(idx.AsNumber())
		switch {
		case target.IsString():
			r, ok := target.AsString().Index(i)
			if !ok {
				return vm.runtimeError("string index out of bounds")
			}
			vm.push(ObjectValue(vm.NewStringFromRunes([]rune{r})))
		case target.IsTuple():
			v, ok := target.AsTuple().Index(i)
			if !ok {
				return vm.runtimeError("tuple index out of bounds")
			}
			vm.push(v)
		default:
			return vm.runtimeError("value is not indexable")
		}
		return nil
	}

	hiVal := vm.pop()
	loVal := vm.pop()
	target := vm.pop()

	switch {
	case target.IsString():
		s := target.AsString()
		lo, hi := sliceBounds(loVal, hiVal, s.Length())
		vm.push(ObjectValue(vm.NewStringFromRunes(s.Slice(lo, hi))))
	case target.IsTuple():
		t := target.AsTuple()
		lo, hi := sliceBounds(loVal, hiVal, t.Len())
		vm.push(ObjectValue(vm.gc.newObject(ObjTuple, t.Slice(lo, hi))))
	default:
		return vm.runtimeError("value is not sliceable")
	}
	return nil
}

// opSum implements the ∑ prefix operator: totals the numbers held by a set
// or tuple. Non-numeric elements are a runtime error.
func (vm *VM) opSum() error {
	v := vm.pop()
	var total float64
	switch {
	case v.IsSet():
		var rangeErr error
		v.AsSet().forEach(func(elem Value) {
			if rangeErr != nil {
				return
			}
			if !elem.IsNumber() {
				rangeErr = vm.runtimeError("Sum requires a set or tuple of numbers")
				return
			}
			total += elem.AsNumber()
		})
		if rangeErr != nil {
			return rangeErr
		}
	case v.IsTuple():
		for _, elem := range v.AsTuple().Elements {
			if !elem.IsNumber() {
				return vm.runtimeError("Sum requires a set or tuple of numbers")
			}
			total += elem.AsNumber()
		}
	default:
		return vm.runtimeError("Sum requires a set or tuple")
	}
	vm.push(NumberValue(total))
	return nil
}

// opCollectInsert folds one comprehension element into its accumulator:
// the accumulator (pushed by a prior OP_GET_LOCAL, still referenced by its
// local slot) is mutated in place, so the loop never needs to push it back.
func (vm *VM) opCollectInsert(flag byte) error {
	value := vm.pop()
	accumulator := vm.pop()
	if flag == 0 {
		if !accumulator.IsSet() {
			return vm.runtimeError("comprehension accumulator is not a set")
		}
		accumulator.AsSet().Insert(value)
		return nil
	}
	if !accumulator.IsTuple() {
		return vm.runtimeError("comprehension accumulator is not a tuple")
	}
	t := accumulator.AsTuple()
	t.Elements = append(t.Elements, value)
	return nil
}

func sliceBounds(loVal, hiVal Value, length int) (int, int) {
	lo := 0
	hi := length
	if !loVal.IsNull() {
		lo = int(loVal.AsNumber())
	}
	if !hiVal.IsNull() {
		hi = int(hiVal.AsNumber()) + 1 // spec's slices are inclusive of the upper bound
	}
	return lo, hi
}
