// Package repl implements JMPL's interactive read-eval-print loop.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"jmpl/internal/compiler"
	"jmpl/internal/vm"
)

// Start runs the REPL against in/out, compiling and executing one line at
// a time against a single persistent VM so that `let` bindings and
// function definitions from earlier lines remain visible to later ones.
// The prompt is suppressed when in is not a terminal (piped input), so a
// scripted REPL session doesn't pollute its own output.
func Start(in *os.File, out *os.File, traceGC, stressGC bool) {
	interactive := isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd())

	machine := vm.New()
	machine.Stdout = out
	machine.Stdin = in
	machine.SetTraceGC(traceGC)
	machine.SetStressGC(stressGC)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		if interactive {
			fmt.Fprint(out, "jmpl> ")
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && err != io.EOF {
				fmt.Fprintln(os.Stderr, err)
			}
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		fnObj, err := compiler.Compile(machine, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			continue
		}
		if err := machine.Run(fnObj); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
		}
	}
}
