// Package instrument - runtime import injection.
//
// Injecting the trace runtime import is the source-level equivalent of
// declaring the output primitive in the enclosing program: every
// instrumented call site in the file resolves to the same primitive through
// the same reserved-prefix alias. Injection is declare-if-absent - running
// it twice, or on a file that already imports the runtime, changes nothing.
package instrument

import (
	"go/ast"
	"go/token"

	"golang.org/x/tools/go/ast/astutil"
)

// runtimeAlias is the import alias injected trace calls go through. It
// carries the reserved prefix so the eligibility filter and a human reader
// can both tell it apart from user code.
const runtimeAlias = ReservedPrefix

// injectRuntimeImport adds the trace runtime import under the reserved
// alias. AddNamedImport is idempotent: if the aliased import is already
// present the file is left unchanged.
func injectRuntimeImport(fset *token.FileSet, file *ast.File) {
	astutil.AddNamedImport(fset, file, runtimeAlias, RuntimeImportPath)
}

// injectUnsafeImport adds the unsafe import needed by the opaque pointer
// casts; only called when at least one pointer value was traced.
func injectUnsafeImport(fset *token.FileSet, file *ast.File) {
	astutil.AddImport(fset, file, "unsafe")
}
