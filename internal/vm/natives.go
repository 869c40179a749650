package vm

import (
	"bufio"
	"fmt"
	"math"
	"time"
)

const jmplEpsilon = 1e-10

var vmStart = time.Now()

// registerNatives installs the native function ABI's fixed set into the
// globals table, matching c_jmpl/src/native.c's exact list and arities.
func registerNatives(vm *VM) {
	define := func(name string, arity int, fn NativeFn) {
		nameObj := vm.NewString(name)
		native := vm.gc.NewNative(&NativeObject{Name: name, Arity: arity, Fn: fn})
		vm.globals.set(nameObj, ObjectValue(native))
	}

	define("clock", 0, nativeClock)
	define("sleep", 1, nativeSleep)
	define("type", 1, nativeType)
	define("print", 1, nativePrint)
	define("println", 1, nativePrintln)
	define("input", 0, nativeInput)
	define("pi", 0, nativePi)
	define("sin", 1, nativeSin)
	define("cos", 1, nativeCos)
	define("tan", 1, nativeTan)
	define("arcsin", 1, nativeArcsin)
	define("arccos", 1, nativeArccos)
	define("arctan", 1, nativeArctan)
	define("max", 2, nativeMax)
	define("min", 2, nativeMin)
	define("floor", 1, nativeFloor)
	define("ceil", 1, nativeCeil)
	define("round", 1, nativeRound)
}

func nativeClock(vm *VM, argCount int, args []Value) (Value, error) {
	return NumberValue(time.Since(vmStart).Seconds()), nil
}

func nativeSleep(vm *VM, argCount int, args []Value) (Value, error) {
	if !args[0].IsNumber() {
		return NullValue, nil
	}
	seconds := args[0].AsNumber()
	if seconds < 0 {
		return NullValue, nil
	}
	time.Sleep(time.Duration(seconds * float64(time.Second)))
	return NullValue, nil
}

func nativeType(vm *VM, argCount int, args []Value) (Value, error) {
	return ObjectValue(vm.NewString(TypeName(args[0]))), nil
}

func nativePrint(vm *VM, argCount int, args []Value) (Value, error) {
	fmt.Fprint(vm.Stdout, FormatValue(args[0]))
	return NullValue, nil
}

func nativePrintln(vm *VM, argCount int, args []Value) (Value, error) {
	fmt.Fprintln(vm.Stdout, FormatValue(args[0]))
	return NullValue, nil
}

func nativeInput(vm *VM, argCount int, args []Value) (Value, error) {
	reader := bufio.NewReader(vm.stdin())
	line, _ := reader.ReadString('\n')
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return ObjectValue(vm.NewString(line)), nil
}

func nativePi(vm *VM, argCount int, args []Value) (Value, error) {
	return NumberValue(math.Pi), nil
}

// nativeSin snaps to exactly 0 at every multiple of pi, matching
// native.c's explicit epsilon check rather than trusting math.Sin's
// floating-point residue there.
func nativeSin(vm *VM, argCount int, args []Value) (Value, error) {
	if !args[0].IsNumber() {
		return NullValue, nil
	}
	arg := args[0].AsNumber()
	if math.Abs(arg/math.Pi-math.Round(arg/math.Pi)) < jmplEpsilon {
		return NumberValue(0), nil
	}
	return NumberValue(math.Sin(arg)), nil
}

// nativeCos snaps to exactly 0 at every odd multiple of pi/2.
func nativeCos(vm *VM, argCount int, args []Value) (Value, error) {
	if !args[0].IsNumber() {
		return NullValue, nil
	}
	arg := args[0].AsNumber()
	half := math.Pi / 2
	if math.Abs(arg/half-math.Round(arg/half)) < jmplEpsilon && math.Mod(math.Round(arg/half), 2) != 0 {
		return NumberValue(0), nil
	}
	return NumberValue(math.Cos(arg)), nil
}

// nativeTan snaps to 0 at multiples of pi and to null (undefined) at odd
// multiples of pi/2, matching native.c's two-branch special case.
func nativeTan(vm *VM, argCount int, args []Value) (Value, error) {
	if !args[0].IsNumber() {
		return NullValue, nil
	}
	arg := args[0].AsNumber()
	if math.Abs(arg/math.Pi-math.Round(arg/math.Pi)) < jmplEpsilon {
		return NumberValue(0), nil
	}
	half := math.Pi / 2
	if math.Abs(arg/half-math.Round(arg/half)) < jmplEpsilon && math.Mod(math.Round(arg/half), 2) != 0 {
		return NullValue, nil
	}
	return NumberValue(math.Tan(arg)), nil
}

func nativeArcsin(vm *VM, argCount int, args []Value) (Value, error) {
	if !args[0].IsNumber() {
		return NullValue, nil
	}
	return NumberValue(math.Asin(args[0].AsNumber())), nil
}

func nativeArccos(vm *VM, argCount int, args []Value) (Value, error) {
	if !args[0].IsNumber() {
		return NullValue, nil
	}
	return NumberValue(math.Acos(args[0].AsNumber())), nil
}

func nativeArctan(vm *VM, argCount int, args []Value) (Value, error) {
	if !args[0].IsNumber() {
		return NullValue, nil
	}
	return NumberValue(math.Atan(args[0].AsNumber())), nil
}

func nativeMax(vm *VM, argCount int, args []Value) (Value, error) {
	if !args[0].IsNumber() || !args[1].IsNumber() {
		return NullValue, nil
	}
	a, b := args[0].AsNumber(), args[1].AsNumber()
	if a > b {
		return NumberValue(a), nil
	}
	return NumberValue(b), nil
}

func nativeMin(vm *VM, argCount int, args []Value) (Value, error) {
	if !args[0].IsNumber() || !args[1].IsNumber() {
		return NullValue, nil
	}
	a, b := args[0].AsNumber(), args[1].AsNumber()
	if a < b {
		return NumberValue(a), nil
	}
	return NumberValue(b), nil
}

func nativeFloor(vm *VM, argCount int, args []Value) (Value, error) {
	if !args[0].IsNumber() {
		return NullValue, nil
	}
	return NumberValue(math.Floor(args[0].AsNumber())), nil
}

func nativeCeil(vm *VM, argCount int, args []Value) (Value, error) {
	if !args[0].IsNumber() {
		return NullValue, nil
	}
	return NumberValue(math.Ceil(args[0].AsNumber())), nil
}

func nativeRound(vm *VM, argCount int, args []Value) (Value, error) {
	if !args[0].IsNumber() {
		return NullValue, nil
	}
	return NumberValue(math.Round(args[0].AsNumber())), nil
}
