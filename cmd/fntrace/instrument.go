// instrument.go implements the 'fntrace instrument' command.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/fntrace/fntrace/cmd/fntrace/instrument"
)

// instrumentCommand implements the 'fntrace instrument' command.
//
// Unlike build and run, this command works on whole packages through the
// go/packages loader, so ./... patterns and properly resolved imports both
// work. Without -w the instrumented sources print to stdout; with -w the
// files are rewritten in place.
func instrumentCommand(args []string) {
	flags := flag.NewFlagSet("instrument", flag.ExitOnError)
	write := flags.Bool("w", false, "write instrumented files in place instead of printing")
	verbose := flags.Bool("v", false, "print per-file instrumentation statistics")
	pass := flags.String("pass", instrument.PassName, "transformation to apply")
	if err := flags.Parse(args); err != nil {
		os.Exit(1)
	}
	if err := validatePassName(*pass); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	patterns := flags.Args()
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	conf := loadToolConfig(cwd)
	if conf.Verbose {
		*verbose = true
	}

	if err := instrumentPackages(patterns, instrument.Options{SkipPrefixes: conf.Skip}, *write, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// validatePassName checks a -pass selection against the transformations
// this tool ships. There is exactly one today; the stable name keeps
// tooling-driven selection forward compatible.
func validatePassName(name string) error {
	if name != instrument.PassName {
		return fmt.Errorf("unknown pass %q (available: %s)", name, instrument.PassName)
	}
	return nil
}

// instrumentPackages loads the packages matching patterns, instruments every
// file, and either rewrites the files or prints them to stdout.
func instrumentPackages(patterns []string, opts instrument.Options, write, verbose bool) error {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedDeps | packages.NeedTypes |
			packages.NeedSyntax | packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return fmt.Errorf("failed to load packages: %w", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		return fmt.Errorf("packages contain errors")
	}

	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			filename := pkg.Fset.File(file.Pos()).Name()
			if strings.HasSuffix(filename, "_test.go") {
				continue
			}

			changed, st := instrument.File(pkg.Fset, file, pkg.TypesInfo, opts)
			code, err := instrument.Print(pkg.Fset, file)
			if err != nil {
				return fmt.Errorf("failed to generate code for %s: %w", filename, err)
			}

			if write {
				if changed {
					if err := os.WriteFile(filename, []byte(code), 0o644); err != nil {
						return fmt.Errorf("failed to write %s: %w", filename, err)
					}
					fmt.Printf("Instrumented: %s\n", filename)
				}
			} else {
				fmt.Printf("// %s\n%s\n", filename, code)
			}
			if verbose {
				printStats(filename, st)
			}
		}
	}
	return nil
}
