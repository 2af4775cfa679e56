// Package instrument - eligibility filter.
//
// Decides, per function, whether instrumentation applies. The filter runs
// before anything else and has no side effects; everything it skips is left
// byte-for-byte intact.
package instrument

import (
	"go/ast"
	"go/token"
	"strings"
)

// skipReason says why a function was excluded from instrumentation.
type skipReason int

const (
	skipNone skipReason = iota

	// skipDeclarationOnly: the function has no body. Assembly-backed and
	// linkname-target declarations fall here.
	skipDeclarationOnly

	// skipIntrinsic: a compiler directive pins the function's semantics
	// outside user code; rewriting its body would be meaningless or unsafe.
	skipIntrinsic

	// skipPrimitiveName: the function is named exactly after the output
	// primitive. Instrumenting it would make the tracer trace its own
	// output call, recursively.
	skipPrimitiveName

	// skipReservedPrefix: the function name starts with the reserved
	// prefix, i.e. it is one of the tool's own generated symbols.
	skipReservedPrefix

	// skipAlreadyInstrumented: the body already starts with a
	// reserved-prefix declaration - the entry label a previous run
	// materialized. A second pass over the same file is a no-op by
	// construction.
	skipAlreadyInstrumented

	// skipConfigured: the name matches a user-configured skip prefix.
	skipConfigured
)

// directives whose presence marks a function as intrinsic-like: the host
// toolchain, not user code, fixes what the body means.
var intrinsicDirectives = []string{
	"//go:linkname",
	"//go:noescape",
	"//go:cgo_import_dynamic",
	"//go:cgo_import_static",
}

// skipReasonFor is the eligibility filter: it returns skipNone when fn
// should be instrumented, and the first matching exclusion otherwise.
func skipReasonFor(fn *ast.FuncDecl, opts Options) skipReason {
	if fn.Body == nil {
		return skipDeclarationOnly
	}
	if isIntrinsic(fn) {
		return skipIntrinsic
	}
	name := fn.Name.Name
	if name == OutputPrimitiveName {
		return skipPrimitiveName
	}
	if strings.HasPrefix(name, ReservedPrefix) {
		return skipReservedPrefix
	}
	if alreadyInstrumented(fn) {
		return skipAlreadyInstrumented
	}
	for _, prefix := range opts.SkipPrefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return skipConfigured
		}
	}
	return skipNone
}

// isIntrinsic reports whether the declaration carries one of the compiler
// directives in intrinsicDirectives.
func isIntrinsic(fn *ast.FuncDecl) bool {
	if fn.Doc == nil {
		return false
	}
	for _, c := range fn.Doc.List {
		for _, d := range intrinsicDirectives {
			if strings.HasPrefix(c.Text, d) {
				return true
			}
		}
	}
	return false
}

// alreadyInstrumented reports whether the body opens with a reserved-prefix
// short variable declaration, the shape of the entry label this tool
// injects. Function names themselves are unchanged by instrumentation, so
// this is what makes a re-run on processed output a no-op.
func alreadyInstrumented(fn *ast.FuncDecl) bool {
	if len(fn.Body.List) == 0 {
		return false
	}
	assign, ok := fn.Body.List[0].(*ast.AssignStmt)
	if !ok || assign.Tok != token.DEFINE || len(assign.Lhs) != 1 {
		return false
	}
	ident, ok := assign.Lhs[0].(*ast.Ident)
	return ok && strings.HasPrefix(ident.Name, ReservedPrefix)
}

// recordSkip increments the statistic matching reason.
func (s *Stats) recordSkip(reason skipReason) {
	switch reason {
	case skipDeclarationOnly:
		s.DeclarationsSkipped++
	case skipIntrinsic:
		s.IntrinsicsSkipped++
	case skipPrimitiveName:
		s.PrimitiveSkipped++
	case skipReservedPrefix:
		s.ReservedSkipped++
	case skipAlreadyInstrumented:
		s.InstrumentedSkipped++
	case skipConfigured:
		s.ConfiguredSkipped++
	}
}
