// Package expr is the scalar-expression sub-compiler: it lowers ast
// expressions into rel scalar expressions, resolving variables against the
// columns the current clause can see.
package expr

import (
	"strings"

	"github.com/orneryd/nornql/pkg/ast"
	"github.com/orneryd/nornql/pkg/diag"
	"github.com/orneryd/nornql/pkg/rel"
)

// Kind says which part of a clause an expression is compiled for. It mostly
// affects diagnostics.
type Kind int

const (
	KindNone Kind = iota
	KindWhere
	KindSelectTarget
	KindOrderBy
	KindGroupBy
	KindInsertTarget
	KindOffset
	KindLimit
)

// Scope resolves a variable name to the column expression the surrounding
// clause exposes for it.
type Scope interface {
	ResolveColumn(name string) (rel.Expr, bool)
}

// Compiler compiles ast expressions. It is stateless and safe to share.
type Compiler struct{}

func New() *Compiler { return &Compiler{} }

// Compile lowers e to a rel expression. Unknown variables are
// UnresolvedReference diagnostics.
func (c *Compiler) Compile(e ast.Expr, scope Scope, kind Kind) (rel.Expr, error) {
	switch v := e.(type) {
	case *ast.Literal:
		return &rel.Const{Value: v.Value}, nil

	case *ast.Parameter:
		return &rel.Param{Name: v.Name}, nil

	case *ast.Variable:
		if scope != nil {
			if col, ok := scope.ResolveColumn(v.Name); ok {
				return col, nil
			}
		}
		return nil, diag.Newf(diag.UnresolvedReference, v.Position,
			"variable `%s` does not exist", v.Name)

	case *ast.Property:
		base, err := c.Compile(v.Expr, scope, kind)
		if err != nil {
			return nil, err
		}
		return &rel.FuncExpr{
			Name: "_property_access",
			Args: []rel.Expr{base, &rel.Const{Value: v.Name}},
		}, nil

	case *ast.FuncCall:
		name := strings.ToLower(v.Name)
		args := make([]rel.Expr, 0, len(v.Args))
		for _, a := range v.Args {
			ce, err := c.Compile(a, scope, kind)
			if err != nil {
				return nil, err
			}
			args = append(args, ce)
		}
		return &rel.FuncExpr{Name: name, Args: args, Star: v.Star}, nil

	case *ast.BinaryOp:
		left, err := c.Compile(v.Left, scope, kind)
		if err != nil {
			return nil, err
		}
		right, err := c.Compile(v.Right, scope, kind)
		if err != nil {
			return nil, err
		}
		switch strings.ToUpper(v.Op) {
		case "AND":
			return rel.And(left, right), nil
		case "OR":
			return rel.Or(left, right), nil
		}
		return &rel.OpExpr{Op: v.Op, Left: left, Right: right}, nil

	case *ast.UnaryOp:
		operand, err := c.Compile(v.Operand, scope, kind)
		if err != nil {
			return nil, err
		}
		if strings.ToUpper(v.Op) == "NOT" {
			return &rel.BoolExpr{Op: rel.BoolNot, Args: []rel.Expr{operand}}, nil
		}
		return &rel.OpExpr{Op: v.Op, Right: operand}, nil

	case *ast.MapExpr:
		args := make([]rel.Expr, 0, len(v.Keys)*2)
		for i, k := range v.Keys {
			val, err := c.Compile(v.Values[i], scope, kind)
			if err != nil {
				return nil, err
			}
			args = append(args, &rel.Const{Value: k}, val)
		}
		return &rel.FuncExpr{Name: "_build_map", Args: args}, nil

	case *ast.ListExpr:
		args := make([]rel.Expr, 0, len(v.Elems))
		for _, el := range v.Elems {
			ce, err := c.Compile(el, scope, kind)
			if err != nil {
				return nil, err
			}
			args = append(args, ce)
		}
		return &rel.FuncExpr{Name: "_build_list", Args: args}, nil

	case *ast.GroupingSet:
		return nil, diag.Newf(diag.UnsupportedFeature, v.Position,
			"grouping sets are not implemented")
	}

	return nil, diag.Newf(diag.Internal, diag.NoPos, "unexpected expression node %T", e)
}

var aggregateFuncs = map[string]bool{
	"count":   true,
	"sum":     true,
	"avg":     true,
	"min":     true,
	"max":     true,
	"collect": true,
}

// IsAggregate reports whether name is an aggregate function.
func IsAggregate(name string) bool {
	return aggregateFuncs[strings.ToLower(name)]
}

// HasAggregate reports whether a compiled expression contains an aggregate
// call anywhere in its tree.
func HasAggregate(e rel.Expr) bool {
	found := false
	rel.Walk(e, func(x rel.Expr) bool {
		if f, ok := x.(*rel.FuncExpr); ok && aggregateFuncs[f.Name] {
			found = true
			return false
		}
		return true
	})
	return found
}

// ContainsAggregate reports whether any ast expression in the list contains
// an aggregate call, before compilation. Used to decide auto-grouping.
func ContainsAggregate(e ast.Expr) bool {
	switch v := e.(type) {
	case *ast.FuncCall:
		if IsAggregate(v.Name) {
			return true
		}
		for _, a := range v.Args {
			if ContainsAggregate(a) {
				return true
			}
		}
	case *ast.BinaryOp:
		return ContainsAggregate(v.Left) || ContainsAggregate(v.Right)
	case *ast.UnaryOp:
		return ContainsAggregate(v.Operand)
	case *ast.Property:
		return ContainsAggregate(v.Expr)
	case *ast.MapExpr:
		for _, val := range v.Values {
			if ContainsAggregate(val) {
				return true
			}
		}
	case *ast.ListExpr:
		for _, el := range v.Elems {
			if ContainsAggregate(el) {
				return true
			}
		}
	}
	return false
}
