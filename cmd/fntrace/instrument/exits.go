// Package instrument - exit point detection and trace synthesis.
//
// An exit point is a return statement, or the reachable end of a
// result-less body (the implicit return). Exits are enumerated into an
// explicit list before anything is mutated, and statement lists are then
// rebuilt against that fixed set - never modified while being traversed.
package instrument

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
)

// collectExits gathers every return statement in the body. Function
// literals belong to no named function and are not descended into.
func collectExits(body *ast.BlockStmt) []*ast.ReturnStmt {
	var exits []*ast.ReturnStmt
	var walkStmt func(ast.Stmt)

	walkList := func(list []ast.Stmt) {
		for _, s := range list {
			walkStmt(s)
		}
	}
	walkStmt = func(s ast.Stmt) {
		switch n := s.(type) {
		case *ast.ReturnStmt:
			exits = append(exits, n)
		case *ast.BlockStmt:
			walkList(n.List)
		case *ast.IfStmt:
			walkStmt(n.Body)
			if n.Else != nil {
				walkStmt(n.Else)
			}
		case *ast.ForStmt:
			walkStmt(n.Body)
		case *ast.RangeStmt:
			walkStmt(n.Body)
		case *ast.SwitchStmt:
			walkStmt(n.Body)
		case *ast.TypeSwitchStmt:
			walkStmt(n.Body)
		case *ast.SelectStmt:
			walkStmt(n.Body)
		case *ast.CaseClause:
			walkList(n.Body)
		case *ast.CommClause:
			walkList(n.Body)
		case *ast.LabeledStmt:
			walkStmt(n.Stmt)
		}
	}
	walkList(body.List)
	return exits
}

// instrumentExits inserts one trace line immediately before every exit
// point of fn, preserving each exit's return semantics and value unchanged.
// A single returned value is hoisted into a reserved-prefix temporary so it
// is evaluated exactly once: read by the trace line and then returned.
func (fi *fileInstrumenter) instrumentExits(fn *ast.FuncDecl, sig *types.Signature, stats *Stats) {
	exits := make(map[*ast.ReturnStmt]bool)
	for _, ret := range collectExits(fn.Body) {
		exits[ret] = true
	}

	var rewriteList func(list []ast.Stmt) []ast.Stmt
	var rewriteStmt func(s ast.Stmt) ast.Stmt

	rewriteList = func(list []ast.Stmt) []ast.Stmt {
		out := make([]ast.Stmt, 0, len(list))
		for _, s := range list {
			if ret, ok := s.(*ast.ReturnStmt); ok && exits[ret] {
				pre, final := fi.exitTrace(fn, sig, ret)
				out = append(out, pre...)
				out = append(out, final)
				stats.ExitTraces++
				continue
			}
			out = append(out, rewriteStmt(s))
		}
		return out
	}
	rewriteStmt = func(s ast.Stmt) ast.Stmt {
		switch n := s.(type) {
		case *ast.BlockStmt:
			n.List = rewriteList(n.List)
		case *ast.IfStmt:
			rewriteStmt(n.Body)
			if n.Else != nil {
				n.Else = rewriteStmt(n.Else)
			}
		case *ast.ForStmt:
			rewriteStmt(n.Body)
		case *ast.RangeStmt:
			rewriteStmt(n.Body)
		case *ast.SwitchStmt:
			rewriteStmt(n.Body)
		case *ast.TypeSwitchStmt:
			rewriteStmt(n.Body)
		case *ast.SelectStmt:
			rewriteStmt(n.Body)
		case *ast.CaseClause:
			n.Body = rewriteList(n.Body)
		case *ast.CommClause:
			n.Body = rewriteList(n.Body)
		case *ast.LabeledStmt:
			if ret, ok := n.Stmt.(*ast.ReturnStmt); ok && exits[ret] {
				// Wrap in a block so a goto to the label still runs the
				// trace before returning.
				pre, final := fi.exitTrace(fn, sig, ret)
				n.Stmt = &ast.BlockStmt{List: append(pre, final)}
				stats.ExitTraces++
			} else {
				n.Stmt = rewriteStmt(n.Stmt)
			}
		}
		return s
	}
	fn.Body.List = rewriteList(fn.Body.List)

	// Implicit exit: a result-less body that can fall off its end returns
	// there without a return statement.
	if sig.Results().Len() == 0 && !terminates(fn.Body.List) {
		fn.Body.List = append(fn.Body.List, traceStmt(fmtRetVoid, ident(labelName)))
		stats.ExitTraces++
	}
}

// exitTrace synthesizes the trace line(s) preceding one return statement
// and the return statement to emit in its place.
func (fi *fileInstrumenter) exitTrace(fn *ast.FuncDecl, sig *types.Signature, ret *ast.ReturnStmt) ([]ast.Stmt, ast.Stmt) {
	results := sig.Results()
	switch {
	case results.Len() == 0:
		return []ast.Stmt{traceStmt(fmtRetVoid, ident(labelName))}, ret
	case results.Len() > 1:
		// A multi-value result is a tuple, an aggregate.
		return []ast.Stmt{traceStmt(fmtRetAggregate, ident(labelName))}, ret
	}

	resType := results.At(0).Type()
	cat := Classify(resType)
	if cat == CategoryAggregate {
		return []ast.Stmt{traceStmt(fmtRetAggregate, ident(labelName))}, ret
	}

	var val ast.Expr
	var pre []ast.Stmt
	switch len(ret.Results) {
	case 1:
		typeExpr, ok := cloneTypeExpr(resultTypeExpr(fn))
		if !ok {
			// Cannot re-state the result type at source level; report the
			// exit without reading the value rather than risk the build.
			return []ast.Stmt{traceStmt(fmtRetAggregate, ident(labelName))}, ret
		}
		tmp := fmt.Sprintf("%s_ret%d", ReservedPrefix, fi.retIndex)
		fi.retIndex++
		pre = append(pre, varStmt(tmp, typeExpr, ret.Results[0]))
		val = ident(tmp)
		ret = &ast.ReturnStmt{Results: []ast.Expr{ident(tmp)}}
	case 0:
		// Naked return: the value lives in the named result variable.
		name := results.At(0).Name()
		if name == "" || name == "_" {
			return []ast.Stmt{traceStmt(fmtRetAggregate, ident(labelName))}, ret
		}
		val = ident(name)
	}

	switch cat {
	case CategoryPointer:
		fi.needsUnsafe = true
		pre = append(pre, traceStmt(fmtRetPointer, ident(labelName), opaquePointerExpr(val)))
	case CategoryInteger:
		pre = append(pre, traceStmt(fmtRetInteger, ident(labelName), zeroExtendExpr(resType, val)))
	case CategoryFloat:
		pre = append(pre, traceStmt(fmtRetFloat, ident(labelName), widenExpr(val)))
	}
	return pre, ret
}

// resultTypeExpr returns the source type expression of the single declared
// result.
func resultTypeExpr(fn *ast.FuncDecl) ast.Expr {
	if fn.Type.Results == nil || len(fn.Type.Results.List) == 0 {
		return nil
	}
	return fn.Type.Results.List[0].Type
}

// cloneTypeExpr builds a position-free copy of a type expression so it can
// be re-stated inside a hoisting declaration without sharing nodes with the
// signature. Every type-expression shape Go source can declare is covered;
// only exotic array-length expressions (anything beyond a literal or a named
// constant) report !ok, and the caller degrades to the aggregate template.
func cloneTypeExpr(e ast.Expr) (ast.Expr, bool) {
	switch t := e.(type) {
	case nil:
		return nil, false
	case *ast.Ident:
		return ast.NewIdent(t.Name), true
	case *ast.BasicLit:
		// Array lengths.
		return &ast.BasicLit{Kind: t.Kind, Value: t.Value}, true
	case *ast.SelectorExpr:
		x, ok := cloneTypeExpr(t.X)
		if !ok {
			return nil, false
		}
		return &ast.SelectorExpr{X: x, Sel: ast.NewIdent(t.Sel.Name)}, true
	case *ast.StarExpr:
		x, ok := cloneTypeExpr(t.X)
		if !ok {
			return nil, false
		}
		return &ast.StarExpr{X: x}, true
	case *ast.ParenExpr:
		x, ok := cloneTypeExpr(t.X)
		if !ok {
			return nil, false
		}
		return &ast.ParenExpr{X: x}, true
	case *ast.ArrayType:
		var length ast.Expr
		if t.Len != nil {
			l, ok := cloneTypeExpr(t.Len)
			if !ok {
				return nil, false
			}
			length = l
		}
		elt, ok := cloneTypeExpr(t.Elt)
		if !ok {
			return nil, false
		}
		return &ast.ArrayType{Len: length, Elt: elt}, true
	case *ast.MapType:
		key, ok := cloneTypeExpr(t.Key)
		if !ok {
			return nil, false
		}
		value, ok := cloneTypeExpr(t.Value)
		if !ok {
			return nil, false
		}
		return &ast.MapType{Key: key, Value: value}, true
	case *ast.ChanType:
		value, ok := cloneTypeExpr(t.Value)
		if !ok {
			return nil, false
		}
		return &ast.ChanType{Dir: t.Dir, Value: value}, true
	case *ast.FuncType:
		params, ok := cloneFieldList(t.Params)
		if !ok {
			return nil, false
		}
		results, ok := cloneFieldList(t.Results)
		if !ok {
			return nil, false
		}
		return &ast.FuncType{Params: params, Results: results}, true
	case *ast.StructType:
		fields, ok := cloneFieldList(t.Fields)
		if !ok {
			return nil, false
		}
		return &ast.StructType{Fields: fields}, true
	case *ast.InterfaceType:
		methods, ok := cloneFieldList(t.Methods)
		if !ok {
			return nil, false
		}
		return &ast.InterfaceType{Methods: methods}, true
	case *ast.Ellipsis:
		elt, ok := cloneTypeExpr(t.Elt)
		if !ok {
			return nil, false
		}
		return &ast.Ellipsis{Elt: elt}, true
	case *ast.IndexExpr:
		x, ok := cloneTypeExpr(t.X)
		if !ok {
			return nil, false
		}
		idx, ok := cloneTypeExpr(t.Index)
		if !ok {
			return nil, false
		}
		return &ast.IndexExpr{X: x, Index: idx}, true
	case *ast.IndexListExpr:
		x, ok := cloneTypeExpr(t.X)
		if !ok {
			return nil, false
		}
		indices := make([]ast.Expr, 0, len(t.Indices))
		for _, i := range t.Indices {
			c, ok := cloneTypeExpr(i)
			if !ok {
				return nil, false
			}
			indices = append(indices, c)
		}
		return &ast.IndexListExpr{X: x, Indices: indices}, true
	}
	return nil, false
}

// cloneFieldList copies a parameter, result, field, or method list for
// cloneTypeExpr. A nil list stays nil (a func type with no results).
func cloneFieldList(fl *ast.FieldList) (*ast.FieldList, bool) {
	if fl == nil {
		return nil, true
	}
	out := &ast.FieldList{}
	for _, f := range fl.List {
		typ, ok := cloneTypeExpr(f.Type)
		if !ok {
			return nil, false
		}
		nf := &ast.Field{Type: typ}
		for _, n := range f.Names {
			nf.Names = append(nf.Names, ast.NewIdent(n.Name))
		}
		if f.Tag != nil {
			nf.Tag = &ast.BasicLit{Kind: f.Tag.Kind, Value: f.Tag.Value}
		}
		out.List = append(out.List, nf)
	}
	return out, true
}

// terminates reports whether a statement list cannot fall off its end.
// The analysis is deliberately conservative in one direction only: when in
// doubt it answers false, so an implicit exit trace may be appended
// unreachably but a real exit is never missed.
func terminates(list []ast.Stmt) bool {
	if len(list) == 0 {
		return false
	}
	return stmtTerminates(list[len(list)-1])
}

func stmtTerminates(s ast.Stmt) bool {
	switch n := s.(type) {
	case *ast.ReturnStmt:
		return true
	case *ast.BranchStmt:
		return n.Tok == token.GOTO
	case *ast.ExprStmt:
		return isPanicCall(n.X)
	case *ast.BlockStmt:
		return terminates(n.List)
	case *ast.IfStmt:
		return n.Else != nil && stmtTerminates(n.Body) && stmtTerminates(n.Else)
	case *ast.ForStmt:
		return n.Cond == nil && !hasBreak(n.Body)
	case *ast.LabeledStmt:
		return stmtTerminates(n.Stmt)
	}
	return false
}

func isPanicCall(e ast.Expr) bool {
	call, ok := e.(*ast.CallExpr)
	if !ok {
		return false
	}
	fn, ok := call.Fun.(*ast.Ident)
	return ok && fn.Name == "panic"
}

// hasBreak reports whether body contains any break statement. Breaks that
// actually target an inner loop or switch also count, which errs toward
// treating the loop as escapable - the safe direction.
func hasBreak(body *ast.BlockStmt) bool {
	found := false
	ast.Inspect(body, func(n ast.Node) bool {
		switch b := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.BranchStmt:
			if b.Tok == token.BREAK {
				found = true
				return false
			}
		}
		return !found
	})
	return found
}
