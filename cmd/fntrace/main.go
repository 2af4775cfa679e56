// Package main implements the fntrace CLI tool.
//
// The fntrace tool adds call-level tracing to Go programs without any change
// to their source code. It works by:
//
//  1. Parsing and type-checking Go source files
//  2. Rewriting eligible function bodies to emit entry, argument, and
//     per-exit trace lines
//  3. Linking the trace runtime into the build
//  4. Building/running the instrumented code with the standard toolchain
//
// Usage:
//
//	fntrace build main.go        # Build with call tracing
//	fntrace run main.go          # Run with call tracing
//	fntrace instrument ./...     # Print or rewrite instrumented sources
//
// The tool is a drop-in replacement for `go build` and `go run` when call
// tracing is needed.
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "build":
		buildCommand(os.Args[2:])
	case "run":
		runCommand(os.Args[2:])
	case "instrument":
		instrumentCommand(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("fntrace version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`fntrace - Automatic Call Tracing for Go

USAGE:
    fntrace <command> [arguments]

COMMANDS:
    build       Build Go program with call tracing
    run         Run Go program with call tracing
    instrument  Print or rewrite instrumented sources
    version     Show version information
    help        Show this help message

EXAMPLES:
    # Build a program with call tracing
    fntrace build -o myapp main.go

    # Run a program and watch its calls
    fntrace run main.go --flag=value

    # See what the instrumented source looks like
    fntrace instrument main.go

    # Rewrite a package tree in place
    fntrace instrument -w ./...

    # Select the transformation by its stable name
    fntrace instrument -pass calltrace ./...

ABOUT:
    fntrace instruments Go code at the AST level so every eligible function
    reports its entry, each argument's value, and the value returned at each
    exit point:

        >> add
           add(arg0)=2
           add(arg1)=5
        << add returns 7

    Pointer values print as addresses, integers as zero-extended 64-bit
    numbers, floats as doubles; everything else (structs, slices, maps, ...)
    prints as "(aggregate)". Trace lines go to stdout, or to the file named
    by FNTRACE_OUT.

CONFIGURATION:
    An optional .fntrace.yml in the project tree can exclude functions by
    name prefix and set the default trace destination. See the repository
    documentation for details.
`)
}
