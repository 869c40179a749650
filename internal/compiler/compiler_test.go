package compiler_test

import (
	"io"
	"os"
	"testing"

	"jmpl/internal/compiler"
	"jmpl/internal/vm"
)

// runSource compiles and runs source against a fresh VM, returning
// whatever it writes via `out`/`print`/`println` plus any compile or
// runtime error.
func runSource(t *testing.T, source string) (string, error) {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}

	machine := vm.New()
	machine.Stdout = w

	fnObj, compileErr := compiler.Compile(machine, source)
	if compileErr != nil {
		w.Close()
		r.Close()
		return "", compileErr
	}

	runErr := machine.Run(fnObj)
	w.Close()
	out, _ := io.ReadAll(r)
	r.Close()
	return string(out), runErr
}

func TestCompileAndRunArithmetic(t *testing.T) {
	out, err := runSource(t, `
		let x := 3;
		let y := 4;
		out x * x + y * y;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "25\n" {
		t.Errorf("got %q, want %q", out, "25\n")
	}
}

func TestCompileAndRunStringConcatWithNumber(t *testing.T) {
	out, err := runSource(t, `out "answer=" + 42;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "answer=42\n" {
		t.Errorf("got %q, want %q", out, "answer=42\n")
	}
}

func TestCompileAndRunBooleanLiterals(t *testing.T) {
	out, err := runSource(t, `
		out true;
		out false;
		out true and false;
		out true or false;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "true\nfalse\nfalse\ntrue\n" {
		t.Errorf("got %q, want %q", out, "true\nfalse\nfalse\ntrue\n")
	}
}

func TestCompileAndRunSetLiteralAndMembership(t *testing.T) {
	out, err := runSource(t, `
		let s := {1, 2, 3};
		out 2 ∈ s;
		out 9 ∈ s;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "true\nfalse\n" {
		t.Errorf("got %q, want %q", out, "true\nfalse\n")
	}
}

func TestCompileAndRunSetComprehension(t *testing.T) {
	out, err := runSource(t, `
		let s := {1, 2, 3, 4};
		let squares := {x ∈ s : x * x};
		out #squares;
		out 16 ∈ squares;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "4\ntrue\n" {
		t.Errorf("got %q, want %q", out, "4\ntrue\n")
	}
}

func TestCompileAndRunTupleComprehension(t *testing.T) {
	out, err := runSource(t, `
		let t := (10, 20, 30);
		let doubled := (x ∈ t : x * 2);
		out doubled;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "(20, 40, 60)\n" {
		t.Errorf("got %q, want %q", out, "(20, 40, 60)\n")
	}
}

func TestCompileAndRunFunctionsAndClosures(t *testing.T) {
	// Function bodies run until their own explicit `return` (JMPL has no
	// block delimiter token), so every nested function here returns
	// explicitly rather than relying on implicit return.
	out, err := runSource(t, `
		func makeAdder(n):
			func adder(x): return x + n;
			return adder;
		let addFive := makeAdder(5);
		out addFive(10);
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "15\n" {
		t.Errorf("got %q, want %q", out, "15\n")
	}
}

func TestCompileErrorReportsLineAndLexeme(t *testing.T) {
	_, err := runSource(t, "let x := ;")
	if err == nil {
		t.Fatal("expected a compile error")
	}
	want := "[line 1] Error at ';': expected an expression."
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRuntimeErrorDivisionByZero(t *testing.T) {
	_, err := runSource(t, "out 1 / 0;")
	if err == nil {
		t.Fatal("expected a runtime error")
	}
}

func TestCompileAndRunUnderStressGC(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	machine := vm.New()
	machine.Stdout = w
	machine.SetStressGC(true)

	fnObj, compileErr := compiler.Compile(machine, `
		let s := {1, 2, 3, 4, 5};
		let squares := {x ∈ s : x * x};
		let total := ∑ squares;
		out total;
	`)
	if compileErr != nil {
		t.Fatalf("unexpected compile error: %v", compileErr)
	}
	runErr := machine.Run(fnObj)
	w.Close()
	out, _ := io.ReadAll(r)
	r.Close()
	if runErr != nil {
		t.Fatalf("unexpected runtime error under stress GC: %v", runErr)
	}
	if string(out) != "55\n" {
		t.Errorf("got %q, want %q", out, "55\n")
	}
}

// TestCompileNestedFunctionsUnderStressGC exercises compilation itself
// (not just execution) under --stress-gc: every allocation, including the
// FunctionObjects beginFrame allocates for nested, not-yet-finished
// function literals, forces a collection, so the compiler's in-progress
// frame chain must be reachable as a GC root for the whole compile to
// survive.
func TestCompileNestedFunctionsUnderStressGC(t *testing.T) {
	machine := vm.New()
	machine.SetStressGC(true)

	_, err := compiler.Compile(machine, `
		func outer(a):
			func middle(b):
				func inner(c): return a + b + c;
				return inner;
			return middle;
		let f := outer(1);
		let g := f(2);
		out g(3);
	`)
	if err != nil {
		t.Fatalf("unexpected compile error under stress GC: %v", err)
	}
}

func TestTooManyLocalsIsACompileError(t *testing.T) {
	src := "func f(): "
	for i := 0; i < 300; i++ {
		src += "let a" + itoa(i) + " := 1; "
	}
	src += "0;"
	_, err := runSource(t, src)
	if err == nil {
		t.Fatal("expected a compile error for exceeding the local-variable limit")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
