// Package instrument implements AST-level call tracing instrumentation.
//
// This package is the core of the fntrace standalone tool. It takes parsed
// and type-checked Go source, decides per function whether instrumentation
// applies, and rewrites eligible function bodies so that every call emits a
// runtime trace: an entry line, one line per argument, and one line
// immediately before every exit point.
//
// Example Transformation:
//
//	// INPUT (original code):
//	func add(a, b int) int {
//		return a + b
//	}
//
//	// OUTPUT (instrumented code):
//	import __fntrace "github.com/fntrace/fntrace/trace"
//	func add(a, b int) int {
//		__fntrace_fn := "add"
//		__fntrace.Printf(">> %s\n", __fntrace_fn)
//		__fntrace.Printf("   %s(arg%d)=%lld\n", __fntrace_fn, 0, uint64(uint(a)))
//		__fntrace.Printf("   %s(arg%d)=%lld\n", __fntrace_fn, 1, uint64(uint(b)))
//		var __fntrace_ret0 int = a + b
//		__fntrace.Printf("<< %s returns %lld\n", __fntrace_fn, uint64(uint(__fntrace_ret0)))
//		return __fntrace_ret0
//	}
//
// The transformation is stateless across functions: each body is classified,
// instrumented, and left alone independently of every other function. The
// one shared resource per file is the runtime import, injected idempotently
// (see inject.go).
//
// Thread Safety: distinct files may be instrumented concurrently; a single
// file must not be instrumented from two goroutines.
package instrument

import (
	"bytes"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/printer"
	"go/token"
	"go/types"
)

const (
	// RuntimeImportPath is the import path of the trace runtime injected
	// into every file that receives instrumentation.
	RuntimeImportPath = "github.com/fntrace/fntrace/trace"

	// ReservedPrefix marks every identifier the instrumenter creates: the
	// runtime import alias, the per-function name label, and the hoisted
	// return temporaries. Functions carrying it are never instrumented,
	// which keeps a second run from corrupting the first run's output.
	ReservedPrefix = "__fntrace"

	// OutputPrimitiveName is the name of the runtime output primitive. A
	// function with exactly this name is never instrumented so the tracer
	// cannot end up tracing its own output call.
	OutputPrimitiveName = "Printf"

	// PassName is the stable identifier under which the transformation is
	// addressable by tooling (the `fntrace instrument` selection surface).
	PassName = "calltrace"
)

// Options controls per-run instrumentation behavior.
type Options struct {
	// SkipPrefixes lists extra function-name prefixes that are never
	// instrumented, typically loaded from .fntrace.yml.
	SkipPrefixes []string
}

// Stats tracks what was instrumented and why functions were skipped.
//
// Enable with -v to see per-file statistics:
//
//	fntrace build -v main.go
//	Instrumented main.go:
//	  - 3 functions instrumented
//	  - 5 argument traces, 4 exit traces inserted
//	  - 2 functions skipped (1 declaration-only, 1 reserved)
type Stats struct {
	FunctionsInstrumented int // Functions that received trace calls
	ArgTraces             int // Argument trace lines inserted
	ExitTraces            int // Exit trace lines inserted (one per exit point)

	DeclarationsSkipped int // Body-less functions (assembly or external)
	IntrinsicsSkipped   int // Functions pinned by compiler directives
	PrimitiveSkipped    int // Functions named after the output primitive
	ReservedSkipped     int // Functions with the reserved name prefix
	InstrumentedSkipped int // Functions already carrying a trace prologue
	ConfiguredSkipped   int // Functions excluded by configured prefixes
	UntypedSkipped      int // Functions the type checker could not resolve
}

// TotalSkipped returns the total number of functions left untouched.
func (s *Stats) TotalSkipped() int {
	return s.DeclarationsSkipped + s.IntrinsicsSkipped + s.PrimitiveSkipped +
		s.ReservedSkipped + s.InstrumentedSkipped + s.ConfiguredSkipped +
		s.UntypedSkipped
}

// Result holds the outcome of instrumenting one source file.
type Result struct {
	Code    string // Instrumented source code
	Stats   Stats  // Instrumentation statistics
	Changed bool   // False guarantees the source was left untouched
}

// NewTypesInfo returns a types.Info with the maps the instrumenter reads.
func NewTypesInfo() *types.Info {
	return &types.Info{
		Defs:  make(map[*ast.Ident]types.Object),
		Uses:  make(map[*ast.Ident]types.Object),
		Types: make(map[ast.Expr]types.TypeAndValue),
	}
}

// Check type-checks files leniently, recording whatever the checker can
// resolve into info. Errors are tolerated on purpose: a partially resolvable
// file still gets classified where possible, and anything unresolved falls
// back to the Aggregate category (classification stays total, see
// classify.go).
func Check(fset *token.FileSet, files []*ast.File, info *types.Info) {
	if len(files) == 0 {
		return
	}
	conf := types.Config{
		Importer: importer.Default(),
		Error:    func(error) {}, // collect what we can, never abort
	}
	_, _ = conf.Check(files[0].Name.Name, fset, files, info)
}

// Source instruments a single Go source file and returns the rewritten code.
//
// This is the main single-file entry point, used by tests and by callers
// that hold source text rather than loaded packages. It performs:
//
//  1. Parse the source into an AST
//  2. Type-check leniently (declared types drive value classification)
//  3. Instrument every eligible function (see File)
//  4. Print the modified AST back to source
//
// src follows the go/parser convention: nil reads from filename, otherwise
// a string, []byte, or io.Reader is used directly.
func Source(filename string, src any, opts Options) (*Result, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, parseError(filename, err)
	}

	info := NewTypesInfo()
	Check(fset, []*ast.File{file}, info)

	changed, stats := File(fset, file, info, opts)

	code, err := Print(fset, file)
	if err != nil {
		return nil, err
	}
	return &Result{Code: code, Stats: stats, Changed: changed}, nil
}

// File instruments every eligible function declaration in file, mutating the
// AST in place. It reports whether anything changed; changed == false
// guarantees the AST was not touched, so callers can treat their cached view
// of the file as still valid.
//
// info must cover file (see Check); declarations the checker could not
// resolve are skipped rather than mis-instrumented.
func File(fset *token.FileSet, file *ast.File, info *types.Info, opts Options) (bool, Stats) {
	fi := &fileInstrumenter{fset: fset, file: file, info: info, opts: opts}
	var stats Stats

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if reason := skipReasonFor(fn, fi.opts); reason != skipNone {
			stats.recordSkip(reason)
			continue
		}
		if fi.instrumentFunc(fn, &stats) {
			stats.FunctionsInstrumented++
		}
	}

	changed := stats.FunctionsInstrumented > 0
	if changed {
		// Declare-if-absent: every instrumented call site in the file must
		// resolve to the same runtime primitive.
		injectRuntimeImport(fset, file)
		if fi.needsUnsafe {
			injectUnsafeImport(fset, file)
		}
	}
	return changed, stats
}

// Print renders the (possibly instrumented) AST back to Go source.
func Print(fset *token.FileSet, file *ast.File) (string, error) {
	var buf bytes.Buffer
	cfg := &printer.Config{
		Mode:     printer.UseSpaces | printer.TabIndent,
		Tabwidth: 8,
	}
	if err := cfg.Fprint(&buf, fset, file); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fileInstrumenter carries the per-file state of one instrumentation run.
type fileInstrumenter struct {
	fset *token.FileSet
	file *ast.File
	info *types.Info
	opts Options

	// needsUnsafe is set when a pointer value was cast for %p formatting;
	// the unsafe import is then injected alongside the runtime import.
	needsUnsafe bool

	// retIndex numbers the hoisted return temporaries within the current
	// function, so two exits in one scope never collide.
	retIndex int
}

// signatureOf resolves the type-checked signature of a declaration, or nil
// when the checker had nothing for it.
func (fi *fileInstrumenter) signatureOf(fn *ast.FuncDecl) *types.Signature {
	obj, _ := fi.info.Defs[fn.Name].(*types.Func)
	if obj == nil {
		return nil
	}
	sig, _ := obj.Type().(*types.Signature)
	return sig
}
