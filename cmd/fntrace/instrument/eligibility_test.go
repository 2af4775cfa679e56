// Package instrument - eligibility filter tests.
package instrument

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"
)

// firstFunc parses src and returns its first function declaration.
func firstFunc(t *testing.T, src string) *ast.FuncDecl {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "test.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			return fn
		}
	}
	t.Fatalf("no function declaration in source")
	return nil
}

func TestSkipReason_DeclarationOnly(t *testing.T) {
	fn := firstFunc(t, `package main

func memmove(dst, src uintptr, n int)
`)
	if got := skipReasonFor(fn, Options{}); got != skipDeclarationOnly {
		t.Errorf("skipReasonFor = %v, want skipDeclarationOnly", got)
	}
}

func TestSkipReason_Intrinsic(t *testing.T) {
	srcs := []string{
		`package main

//go:linkname nanotime runtime.nanotime
func nanotime() int64 { return 0 }
`,
		`package main

//go:noescape
func sum(xs []int) int { return 0 }
`,
	}
	for _, src := range srcs {
		fn := firstFunc(t, src)
		if got := skipReasonFor(fn, Options{}); got != skipIntrinsic {
			t.Errorf("skipReasonFor(%s) = %v, want skipIntrinsic", fn.Name.Name, got)
		}
	}
}

func TestSkipReason_PrimitiveName(t *testing.T) {
	fn := firstFunc(t, `package main

func Printf(format string, args ...any) {}
`)
	if got := skipReasonFor(fn, Options{}); got != skipPrimitiveName {
		t.Errorf("skipReasonFor = %v, want skipPrimitiveName", got)
	}
}

func TestSkipReason_ReservedPrefix(t *testing.T) {
	fn := firstFunc(t, `package main

func __fntrace_helper() {}
`)
	if got := skipReasonFor(fn, Options{}); got != skipReservedPrefix {
		t.Errorf("skipReasonFor = %v, want skipReservedPrefix", got)
	}
}

func TestSkipReason_AlreadyInstrumented(t *testing.T) {
	fn := firstFunc(t, `package main

func add(a, b int) int {
	__fntrace_fn := "add"
	_ = __fntrace_fn
	return a + b
}
`)
	if got := skipReasonFor(fn, Options{}); got != skipAlreadyInstrumented {
		t.Errorf("skipReasonFor = %v, want skipAlreadyInstrumented", got)
	}
}

func TestSkipReason_Configured(t *testing.T) {
	fn := firstFunc(t, `package main

func internalHelper() {}
`)
	opts := Options{SkipPrefixes: []string{"internal"}}
	if got := skipReasonFor(fn, opts); got != skipConfigured {
		t.Errorf("skipReasonFor = %v, want skipConfigured", got)
	}

	// Empty prefixes never match anything.
	opts = Options{SkipPrefixes: []string{""}}
	if got := skipReasonFor(fn, opts); got != skipNone {
		t.Errorf("skipReasonFor with empty prefix = %v, want skipNone", got)
	}
}

func TestSkipReason_EligibleFunction(t *testing.T) {
	srcs := []string{
		`package main

func add(a, b int) int { return a + b }
`,
		// A documented function is still eligible; only the intrinsic
		// directives exclude.
		`package main

// add returns the sum of a and b.
func add(a, b int) int { return a + b }
`,
		// An ordinary first statement is not the instrumentation marker.
		`package main

func add(a, b int) int {
	sum := a + b
	return sum
}
`,
	}
	for _, src := range srcs {
		fn := firstFunc(t, src)
		if got := skipReasonFor(fn, Options{}); got != skipNone {
			t.Errorf("skipReasonFor = %v, want skipNone", got)
		}
	}
}

// TestSkipReason_PrefixNotPrimitive tests that only the exact primitive name
// excludes; prefixed and suffixed variants stay eligible.
func TestSkipReason_PrefixNotPrimitive(t *testing.T) {
	fn := firstFunc(t, `package main

func PrintfStyle() {}
`)
	if got := skipReasonFor(fn, Options{}); got != skipNone {
		t.Errorf("skipReasonFor = %v, want skipNone (name is not exactly the primitive)", got)
	}
}

func TestStats_RecordSkip(t *testing.T) {
	var s Stats
	s.recordSkip(skipDeclarationOnly)
	s.recordSkip(skipIntrinsic)
	s.recordSkip(skipPrimitiveName)
	s.recordSkip(skipReservedPrefix)
	s.recordSkip(skipAlreadyInstrumented)
	s.recordSkip(skipConfigured)

	if s.TotalSkipped() != 6 {
		t.Errorf("TotalSkipped = %d, want 6", s.TotalSkipped())
	}
}
