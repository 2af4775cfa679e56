// Package instrument - value classification.
//
// Every traced value (argument or returned value) maps to exactly one of
// four categories, and the category picks the trace line template and the
// representation cast. The mapping is total: there is no type the classifier
// cannot place, and therefore no runtime abort path.
package instrument

import (
	"go/ast"
	"go/types"
)

// Category classifies a traced value for formatting purposes.
type Category int

const (
	// CategoryPointer formats through %p after an opaque unsafe.Pointer cast.
	CategoryPointer Category = iota
	// CategoryInteger formats through %lld after zero-extension to 64 bits.
	CategoryInteger
	// CategoryFloat formats through %f after widening to float64.
	CategoryFloat
	// CategoryAggregate prints "(aggregate)"; the value is never read.
	CategoryAggregate
)

// String returns the category name, for stats output and tests.
func (c Category) String() string {
	switch c {
	case CategoryPointer:
		return "pointer"
	case CategoryInteger:
		return "integer"
	case CategoryFloat:
		return "float"
	default:
		return "aggregate"
	}
}

// Classify maps a value type to its category. Checks run in precedence
// order and the first match wins; Pointer is deliberately checked before
// Integer so pointer-like values never print through the integer path on
// targets where the two encodings overlap.
//
// Structs, arrays, slices, maps, strings, bools, complex numbers, channels,
// funcs, interfaces, tuples (multi-value results), and type parameters all
// land in Aggregate, as does a nil type from an unresolved declaration.
func Classify(t types.Type) Category {
	if t == nil {
		return CategoryAggregate
	}
	switch u := t.Underlying().(type) {
	case *types.Pointer:
		return CategoryPointer
	case *types.Basic:
		if u.Kind() == types.UnsafePointer {
			return CategoryPointer
		}
		if u.Info()&types.IsInteger != 0 {
			return CategoryInteger
		}
		if u.Info()&types.IsFloat != 0 {
			return CategoryFloat
		}
	}
	return CategoryAggregate
}

// zeroExtendExpr builds the width-matched conversion chain that
// zero-extends an integer value to 64 bits: uint64(uint32(v)) for a 32-bit
// signed source, uint64(v) when the source is already unsigned. Signedness
// is not reconstructed; a negative narrow value prints as a large unsigned
// number.
func zeroExtendExpr(t types.Type, v ast.Expr) ast.Expr {
	basic, _ := t.Underlying().(*types.Basic)
	if basic == nil || basic.Info()&types.IsUnsigned != 0 {
		return convExpr("uint64", v)
	}
	switch basic.Kind() {
	case types.Int8:
		v = convExpr("uint8", v)
	case types.Int16:
		v = convExpr("uint16", v)
	case types.Int32:
		v = convExpr("uint32", v)
	case types.Int:
		v = convExpr("uint", v)
	}
	return convExpr("uint64", v)
}

// widenExpr widens a floating value to float64 for %f formatting.
func widenExpr(v ast.Expr) ast.Expr {
	return convExpr("float64", v)
}

// opaquePointerExpr casts a pointer value to unsafe.Pointer, the uniform
// representation %p formats.
func opaquePointerExpr(v ast.Expr) ast.Expr {
	return &ast.CallExpr{
		Fun: &ast.SelectorExpr{
			X:   ast.NewIdent("unsafe"),
			Sel: ast.NewIdent("Pointer"),
		},
		Args: []ast.Expr{v},
	}
}

func convExpr(typeName string, v ast.Expr) ast.Expr {
	return &ast.CallExpr{
		Fun:  ast.NewIdent(typeName),
		Args: []ast.Expr{v},
	}
}
