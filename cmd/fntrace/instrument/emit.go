// Package instrument - entry and argument trace synthesis.
//
// The entry instrumenter prepends, before any original statement: the
// function-scoped name label (materialized once, reused by every trace line
// in the function), the entry trace call, and one argument trace call per
// declared argument in declaration order.
package instrument

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
)

// Trace line templates, in C printf notation. This is the tool's wire
// format: the runtime primitive receives these strings verbatim.
const (
	fmtEnter        = ">> %s\n"
	fmtArgPointer   = "   %s(arg%d)=%p\n"
	fmtArgInteger   = "   %s(arg%d)=%lld\n"
	fmtArgFloat     = "   %s(arg%d)=%f\n"
	fmtArgAggregate = "   %s(arg%d)=(aggregate)\n"
	fmtRetVoid      = "<< %s returns void\n"
	fmtRetPointer   = "<< %s returns %p\n"
	fmtRetInteger   = "<< %s returns %lld\n"
	fmtRetFloat     = "<< %s returns %f\n"
	fmtRetAggregate = "<< %s returns (aggregate)\n"
)

// labelName is the function-scoped identifier holding the function's name.
const labelName = ReservedPrefix + "_fn"

// instrumentFunc rewrites one eligible function body: exit traces first
// (collect-then-instrument, see exits.go), then the entry prologue, so the
// prologue ends up before any original statement. Returns false when the
// checker had no signature for the declaration, in which case the body is
// left untouched.
func (fi *fileInstrumenter) instrumentFunc(fn *ast.FuncDecl, stats *Stats) bool {
	sig := fi.signatureOf(fn)
	if sig == nil {
		stats.UntypedSkipped++
		return false
	}

	fi.retIndex = 0
	fi.instrumentExits(fn, sig, stats)

	prologue := []ast.Stmt{
		defineStmt(labelName, strLit(displayName(fn))),
		traceStmt(fmtEnter, ident(labelName)),
	}
	for i, arg := range declaredArgs(fn, sig) {
		prologue = append(prologue, fi.argTrace(i, arg))
		stats.ArgTraces++
	}
	fn.Body.List = append(prologue, fn.Body.List...)
	return true
}

// tracedArg pairs an argument's source identifier (nil when the parameter
// is unnamed or blank) with its declared type.
type tracedArg struct {
	name *ast.Ident
	typ  types.Type
}

// declaredArgs lists the function's arguments in declaration order. For
// methods the receiver is argument 0, matching the lowered calling
// convention the trace format indexes against.
func declaredArgs(fn *ast.FuncDecl, sig *types.Signature) []tracedArg {
	var args []tracedArg

	if fn.Recv != nil && len(fn.Recv.List) > 0 && sig.Recv() != nil {
		var name *ast.Ident
		if names := fn.Recv.List[0].Names; len(names) > 0 {
			name = names[0]
		}
		args = append(args, tracedArg{name: name, typ: sig.Recv().Type()})
	}

	idx := 0
	for _, field := range fn.Type.Params.List {
		n := len(field.Names)
		if n == 0 {
			n = 1 // unnamed parameter still occupies one argument slot
		}
		for j := 0; j < n; j++ {
			var name *ast.Ident
			if len(field.Names) > 0 {
				name = field.Names[j]
			}
			var typ types.Type
			if idx < sig.Params().Len() {
				typ = sig.Params().At(idx).Type()
			}
			args = append(args, tracedArg{name: name, typ: typ})
			idx++
		}
	}
	return args
}

// argTrace synthesizes the trace call for one argument. Unnamed and blank
// parameters exist in the signature but have no readable source value, so
// they report through the aggregate template.
func (fi *fileInstrumenter) argTrace(idx int, arg tracedArg) ast.Stmt {
	if arg.name == nil || arg.name.Name == "_" {
		return traceStmt(fmtArgAggregate, ident(labelName), intLit(idx))
	}
	val := ident(arg.name.Name)
	switch Classify(arg.typ) {
	case CategoryPointer:
		fi.needsUnsafe = true
		return traceStmt(fmtArgPointer, ident(labelName), intLit(idx), opaquePointerExpr(val))
	case CategoryInteger:
		return traceStmt(fmtArgInteger, ident(labelName), intLit(idx), zeroExtendExpr(arg.typ, val))
	case CategoryFloat:
		return traceStmt(fmtArgFloat, ident(labelName), intLit(idx), widenExpr(val))
	default:
		return traceStmt(fmtArgAggregate, ident(labelName), intLit(idx))
	}
}

// displayName is the name a function traces under: the plain name for
// functions, TypeName.MethodName for methods.
func displayName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return fn.Name.Name
	}
	return recvTypeName(fn.Recv.List[0].Type) + "." + fn.Name.Name
}

func recvTypeName(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.StarExpr:
		return recvTypeName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr: // generic receiver: T[P]
		return recvTypeName(t.X)
	case *ast.IndexListExpr: // generic receiver: T[P1, P2]
		return recvTypeName(t.X)
	}
	return fmt.Sprintf("%T", e)
}

// traceStmt builds `__fntrace.Printf(format, args...)` as a statement.
func traceStmt(format string, args ...ast.Expr) ast.Stmt {
	call := &ast.CallExpr{
		Fun: &ast.SelectorExpr{
			X:   ast.NewIdent(runtimeAlias),
			Sel: ast.NewIdent(OutputPrimitiveName),
		},
		Args: append([]ast.Expr{strLit(format)}, args...),
	}
	return &ast.ExprStmt{X: call}
}

// defineStmt builds `name := value`.
func defineStmt(name string, value ast.Expr) ast.Stmt {
	return &ast.AssignStmt{
		Lhs: []ast.Expr{ident(name)},
		Tok: token.DEFINE,
		Rhs: []ast.Expr{value},
	}
}

// varStmt builds `var name typ = value`. The explicit type keeps untyped
// constants (nil, literals) well-formed when a return operand is hoisted.
func varStmt(name string, typ ast.Expr, value ast.Expr) ast.Stmt {
	return &ast.DeclStmt{
		Decl: &ast.GenDecl{
			Tok: token.VAR,
			Specs: []ast.Spec{
				&ast.ValueSpec{
					Names:  []*ast.Ident{ident(name)},
					Type:   typ,
					Values: []ast.Expr{value},
				},
			},
		},
	}
}

func ident(name string) *ast.Ident { return ast.NewIdent(name) }

func strLit(s string) ast.Expr {
	return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(s)}
}

func intLit(i int) ast.Expr {
	return &ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(i)}
}
