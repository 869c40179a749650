// Package vm holds the tagged value representation, the object model, the
// garbage collector, the primitive containers (strings, sets, tuples,
// iterators), and the bytecode dispatch loop.
package vm

import (
	"fmt"
	"math"
)

// ValueKind discriminates the tag of a Value.
type ValueKind uint8

const (
	ValNull ValueKind = iota
	ValBool
	ValNumber
	ValObject
)

// Value is a tagged union: boolean, null, IEEE-754 double, or a heap object
// reference. A tagged struct is used rather than NaN-boxing; the spec
// permits either and allows implementations to choose the tagged
// representation unconditionally.
type Value struct {
	Kind ValueKind
	num  float64
	obj  *Object
}

// NullValue is the single null value.
var NullValue = Value{Kind: ValNull}

func BoolValue(b bool) Value {
	v := Value{Kind: ValBool}
	if b {
		v.num = 1
	}
	return v
}

func NumberValue(n float64) Value {
	return Value{Kind: ValNumber, num: n}
}

func ObjectValue(o *Object) Value {
	return Value{Kind: ValObject, obj: o}
}

func (v Value) IsNull() bool   { return v.Kind == ValNull }
func (v Value) IsBool() bool   { return v.Kind == ValBool }
func (v Value) IsNumber() bool { return v.Kind == ValNumber }
func (v Value) IsObject() bool { return v.Kind == ValObject }

func (v Value) AsBool() bool     { return v.num != 0 }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsObject() *Object { return v.obj }

func (v Value) IsObjKind(k ObjectKind) bool {
	return v.Kind == ValObject && v.obj != nil && v.obj.Kind == k
}

func (v Value) IsString() bool   { return v.IsObjKind(ObjString) }
func (v Value) IsSet() bool      { return v.IsObjKind(ObjSet) }
func (v Value) IsTuple() bool    { return v.IsObjKind(ObjTuple) }
func (v Value) IsClosure() bool  { return v.IsObjKind(ObjClosure) }
func (v Value) IsFunction() bool { return v.IsObjKind(ObjFunction) }
func (v Value) IsNative() bool   { return v.IsObjKind(ObjNative) }
func (v Value) IsIterator() bool { return v.IsObjKind(ObjIterator) }

func (v Value) AsString() *StringObject {
	return v.obj.Data.(*StringObject)
}

func (v Value) AsSet() *SetObject {
	return v.obj.Data.(*SetObject)
}

func (v Value) AsTuple() *TupleObject {
	return v.obj.Data.(*TupleObject)
}

func (v Value) AsClosure() *ClosureObject {
	return v.obj.Data.(*ClosureObject)
}

func (v Value) AsFunction() *FunctionObject {
	return v.obj.Data.(*FunctionObject)
}

func (v Value) AsNative() *NativeObject {
	return v.obj.Data.(*NativeObject)
}

func (v Value) AsIterator() *IteratorObject {
	return v.obj.Data.(*IteratorObject)
}

// IsFalsey implements JMPL truthiness: null and false are falsey, every
// other value (including 0 and the empty string/set/tuple) is truthy.
func (v Value) IsFalsey() bool {
	if v.IsNull() {
		return true
	}
	if v.IsBool() {
		return !v.AsBool()
	}
	return false
}

// ValuesEqual implements structural equality per the data model: numbers,
// booleans, and null compare by value; strings compare by pointer identity
// (they are interned); sets and tuples compare element-wise.
func ValuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ValNull:
		return true
	case ValBool:
		return a.AsBool() == b.AsBool()
	case ValNumber:
		return a.AsNumber() == b.AsNumber()
	case ValObject:
		return objectsEqual(a.obj, b.obj)
	}
	return false
}

func objectsEqual(a, b *Object) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ObjString:
		// Interned: distinct objects with equal bytes never occur, but
		// compare content defensively for strings built outside interning.
		sa := a.Data.(*StringObject)
		sb := b.Data.(*StringObject)
		return sa == sb || stringsEqual(sa, sb)
	case ObjTuple:
		ta := a.Data.(*TupleObject)
		tb := b.Data.(*TupleObject)
		if len(ta.Elements) != len(tb.Elements) {
			return false
		}
		for i := range ta.Elements {
			if !ValuesEqual(ta.Elements[i], tb.Elements[i]) {
				return false
			}
		}
		return true
	case ObjSet:
		return setsEqual(a.Data.(*SetObject), b.Data.(*SetObject))
	default:
		return false
	}
}

// FormatValue renders a Value the way println/print/string-conversion do.
func FormatValue(v Value) string {
	switch v.Kind {
	case ValNull:
		return "null"
	case ValBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case ValNumber:
		return formatNumber(v.AsNumber())
	case ValObject:
		return formatObject(v.obj)
	}
	return "?"
}

// formatNumber displays integer-valued doubles without a fractional part.
func formatNumber(n float64) string {
	if math.IsNaN(n) {
		return "nan"
	}
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

func formatObject(o *Object) string {
	switch o.Kind {
	case ObjString:
		return o.Data.(*StringObject).UTF8()
	case ObjTuple:
		return formatTuple(o.Data.(*TupleObject))
	case ObjSet:
		return formatSet(o.Data.(*SetObject))
	case ObjFunction:
		fn := o.Data.(*FunctionObject)
		if fn.Name == nil {
			return "<script>"
		}
		return fmt.Sprintf("<func %s>", fn.NameString())
	case ObjClosure:
		fn := o.Data.(*ClosureObject).Fn()
		if fn.Name == nil {
			return "<script>"
		}
		return fmt.Sprintf("<func %s>", fn.NameString())
	case ObjNative:
		return "<native fn>"
	case ObjIterator:
		return "<iterator>"
	case ObjUpvalue:
		return "<upvalue>"
	}
	return "<object>"
}

func formatTuple(t *TupleObject) string {
	s := "("
	for i, e := range t.Elements {
		if i > 0 {
			s += ", "
		}
		s += FormatValue(e)
	}
	if len(t.Elements) == 1 {
		s += ","
	}
	s += ")"
	return s
}

func formatSet(s *SetObject) string {
	out := "{"
	first := true
	s.forEach(func(v Value) {
		if !first {
			out += ", "
		}
		first = false
		out += FormatValue(v)
	})
	out += "}"
	return out
}

// TypeName returns the lowercase type name used by the `type` native.
func TypeName(v Value) string {
	switch v.Kind {
	case ValNull:
		return "null"
	case ValBool:
		return "bool"
	case ValNumber:
		return "number"
	case ValObject:
		switch v.obj.Kind {
		case ObjString:
			return "string"
		case ObjSet:
			return "set"
		case ObjTuple:
			return "tuple"
		case ObjFunction, ObjClosure:
			return "function"
		case ObjNative:
			return "native"
		case ObjIterator:
			return "iterator"
		case ObjUpvalue:
			return "upvalue"
		}
	}
	return "unknown"
}
