// Package ast defines the clause-level abstract syntax consumed by the
// compiler. A surface parser produces these values; the compiler never sees
// query text. Positions are byte offsets into the original text and are only
// used for diagnostics.
package ast

import (
	"fmt"
	"strings"
)

// Expr is an expression node.
type Expr interface {
	exprNode()
	Pos() int
}

// Literal is a constant value: nil, bool, int64, float64, or string.
type Literal struct {
	Value    interface{}
	Position int
}

// Variable references a bound name.
type Variable struct {
	Name     string
	Position int
}

// Property accesses a named property of its operand, e.g. n.age.
type Property struct {
	Expr     Expr
	Name     string
	Position int
}

// Parameter is a query parameter placeholder, e.g. $name.
type Parameter struct {
	Name     string
	Position int
}

// FuncCall invokes a function. Star marks count(*).
type FuncCall struct {
	Name     string
	Args     []Expr
	Star     bool
	Position int
}

// BinaryOp applies an infix operator to two operands.
type BinaryOp struct {
	Op       string // "=", "<>", "<", "<=", ">", ">=", "+", "-", "*", "/", "%", "AND", "OR"
	Left     Expr
	Right    Expr
	Position int
}

// UnaryOp applies a prefix operator, e.g. NOT or unary minus.
type UnaryOp struct {
	Op       string
	Operand  Expr
	Position int
}

// MapExpr is a property-map literal, e.g. {name: 'Ann', age: 3}.
// Keys and Values are parallel; insertion order is preserved.
type MapExpr struct {
	Keys     []string
	Values   []Expr
	Position int
}

// ListExpr is a list literal.
type ListExpr struct {
	Elems    []Expr
	Position int
}

// GroupingSet is the parsed-but-unsupported GROUP BY grouping-set construct.
// The projection compiler rejects it.
type GroupingSet struct {
	Exprs    []Expr
	Position int
}

func (*Literal) exprNode()     {}
func (*Variable) exprNode()    {}
func (*Property) exprNode()    {}
func (*Parameter) exprNode()   {}
func (*FuncCall) exprNode()    {}
func (*BinaryOp) exprNode()    {}
func (*UnaryOp) exprNode()     {}
func (*MapExpr) exprNode()     {}
func (*ListExpr) exprNode()    {}
func (*GroupingSet) exprNode() {}

func (e *Literal) Pos() int     { return e.Position }
func (e *Variable) Pos() int    { return e.Position }
func (e *Property) Pos() int    { return e.Position }
func (e *Parameter) Pos() int   { return e.Position }
func (e *FuncCall) Pos() int    { return e.Position }
func (e *BinaryOp) Pos() int    { return e.Position }
func (e *UnaryOp) Pos() int     { return e.Position }
func (e *MapExpr) Pos() int     { return e.Position }
func (e *ListExpr) Pos() int    { return e.Position }
func (e *GroupingSet) Pos() int { return e.Position }

// Name renders a display name for an expression, used when a projection item
// has no explicit alias.
func Name(e Expr) string {
	switch v := e.(type) {
	case *Variable:
		return v.Name
	case *Property:
		return Name(v.Expr) + "." + v.Name
	case *FuncCall:
		if v.Star {
			return strings.ToLower(v.Name) + "(*)"
		}
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = Name(a)
		}
		return strings.ToLower(v.Name) + "(" + strings.Join(args, ", ") + ")"
	case *Literal:
		return fmt.Sprintf("%v", v.Value)
	case *Parameter:
		return "$" + v.Name
	default:
		return "expr"
	}
}
