// Command jmpl is the JMPL language's command-line entry point: with no
// arguments it starts a REPL, with one argument it compiles and runs that
// file, and with more it reports a usage error.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"jmpl/internal/compiler"
	jmplerr "jmpl/internal/errors"
	"jmpl/internal/repl"
	"jmpl/internal/vm"
)

func init() {
	log.SetFlags(0)
	log.SetPrefix("jmpl: ")
}

const (
	exitSuccess = 0
	exitUsage   = 64
	exitData    = 65
	exitSoftErr = 70
	exitIOErr   = 74
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run implements the CLI's entire behavior against an explicit argument
// list rather than the os.Args/flag.CommandLine globals directly, so it
// can also serve as the "jmpl" subcommand in testscript-driven CLI tests
// (see cmd/jmpl/testdata/script), which invoke a program's logic
// in-process, possibly more than once per test binary.
func run(args []string) int {
	fs := flag.NewFlagSet("jmpl", flag.ContinueOnError)
	traceGC := fs.Bool("trace-gc", false, "log every garbage collection cycle")
	stressGC := fs.Bool("stress-gc", false, "collect before every allocation")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: jmpl [--trace-gc] [--stress-gc] [script]")
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	switch fs.NArg() {
	case 0:
		repl.Start(os.Stdin, os.Stdout, *traceGC, *stressGC)
		return exitSuccess
	case 1:
		return runFile(fs.Arg(0), *traceGC, *stressGC)
	default:
		fs.Usage()
		return exitUsage
	}
}

func runFile(path string, traceGC, stressGC bool) int {
	source, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("can't find file %q", path)
		} else {
			wrapped := jmplerr.Wrap(err, fmt.Sprintf("can't read file %q", path))
			log.Print(wrapped)
		}
		return exitIOErr
	}

	machine := vm.New()
	machine.SetTraceGC(traceGC)
	machine.SetStressGC(stressGC)

	fnObj, err := compiler.Compile(machine, string(source))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return exitData
	}

	if err := machine.Run(fnObj); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return exitSoftErr
	}
	return exitSuccess
}
