package rel

// Expr is a scalar expression over the columns of a compiled clause.
type Expr interface{ relExpr() }

// Var references column Col of the Rel'th scan (both 1-based). Up is the
// number of query nesting levels between the expression and the scan it
// references; zero means the current query. Name is the column's display
// name and is informational only.
type Var struct {
	Rel  int
	Col  int
	Up   int
	Name string
}

// Const is a literal value: nil, bool, int64, float64, string, a
// map[string]interface{}, or an opaque []byte blob.
type Const struct {
	Value interface{}
}

// Param is a query parameter reference resolved at execution time.
type Param struct {
	Name string
}

// FuncExpr calls a function provided by the execution layer. Volatile
// functions must not be folded away or deduplicated by later optimization.
type FuncExpr struct {
	Name     string
	Args     []Expr
	Star     bool // count(*)
	Volatile bool
}

// OpExpr applies a comparison or arithmetic operator.
type OpExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// BoolOp is the connective of a BoolExpr.
type BoolOp int

const (
	BoolAnd BoolOp = iota
	BoolOr
	BoolNot
)

// BoolExpr combines predicates. BoolNot takes exactly one argument.
type BoolExpr struct {
	Op   BoolOp
	Args []Expr
}

func (*Var) relExpr()      {}
func (*Const) relExpr()    {}
func (*Param) relExpr()    {}
func (*FuncExpr) relExpr() {}
func (*OpExpr) relExpr()   {}
func (*BoolExpr) relExpr() {}

// And conjoins the given predicates, flattening trivial cases.
func And(exprs ...Expr) Expr {
	args := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			args = append(args, e)
		}
	}
	switch len(args) {
	case 0:
		return nil
	case 1:
		return args[0]
	default:
		return &BoolExpr{Op: BoolAnd, Args: args}
	}
}

// Or disjoins the given predicates.
func Or(exprs ...Expr) Expr {
	switch len(exprs) {
	case 0:
		return nil
	case 1:
		return exprs[0]
	default:
		return &BoolExpr{Op: BoolOr, Args: exprs}
	}
}

// Equal reports structural equality of two expressions. It is used to match
// ORDER BY and GROUP BY keys against existing target entries.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch av := a.(type) {
	case *Var:
		bv, ok := b.(*Var)
		return ok && av.Rel == bv.Rel && av.Col == bv.Col && av.Up == bv.Up
	case *Const:
		bv, ok := b.(*Const)
		return ok && constEqual(av.Value, bv.Value)
	case *Param:
		bv, ok := b.(*Param)
		return ok && av.Name == bv.Name
	case *FuncExpr:
		bv, ok := b.(*FuncExpr)
		if !ok || av.Name != bv.Name || av.Star != bv.Star || len(av.Args) != len(bv.Args) {
			return false
		}
		for i := range av.Args {
			if !Equal(av.Args[i], bv.Args[i]) {
				return false
			}
		}
		return true
	case *OpExpr:
		bv, ok := b.(*OpExpr)
		return ok && av.Op == bv.Op && Equal(av.Left, bv.Left) && Equal(av.Right, bv.Right)
	case *BoolExpr:
		bv, ok := b.(*BoolExpr)
		if !ok || av.Op != bv.Op || len(av.Args) != len(bv.Args) {
			return false
		}
		for i := range av.Args {
			if !Equal(av.Args[i], bv.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func constEqual(a, b interface{}) bool {
	if ab, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		if !ok || len(ab) != len(bb) {
			return false
		}
		for i := range ab {
			if ab[i] != bb[i] {
				return false
			}
		}
		return true
	}
	if _, ok := a.(map[string]interface{}); ok {
		// property maps are never deduplicated
		return false
	}
	return a == b
}

// Walk calls fn for e and every sub-expression, stopping early when fn
// returns false.
func Walk(e Expr, fn func(Expr) bool) bool {
	if e == nil {
		return true
	}
	if !fn(e) {
		return false
	}
	switch v := e.(type) {
	case *FuncExpr:
		for _, a := range v.Args {
			if !Walk(a, fn) {
				return false
			}
		}
	case *OpExpr:
		if !Walk(v.Left, fn) || !Walk(v.Right, fn) {
			return false
		}
	case *BoolExpr:
		for _, a := range v.Args {
			if !Walk(a, fn) {
				return false
			}
		}
	}
	return true
}

// FirstVar returns the first current-level column reference found in e, or
// nil if e is closed over the current relation. SKIP and LIMIT use this to
// reject expressions that depend on the current relation; references to
// enclosing queries (Up > 0) do not count.
func FirstVar(e Expr) *Var {
	var found *Var
	Walk(e, func(x Expr) bool {
		if v, ok := x.(*Var); ok && v.Up == 0 {
			found = v
			return false
		}
		return true
	})
	return found
}

// ContainsVars reports whether e references any column of the current
// relation.
func ContainsVars(e Expr) bool {
	return FirstVar(e) != nil
}

// Shift returns a copy of e with every column reference moved up the given
// number of query nesting levels, turning it into a correlated reference
// from a deeper query.
func Shift(e Expr, up int) Expr {
	if e == nil || up == 0 {
		return e
	}
	switch v := e.(type) {
	case *Var:
		return &Var{Rel: v.Rel, Col: v.Col, Up: v.Up + up, Name: v.Name}
	case *FuncExpr:
		args := make([]Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = Shift(a, up)
		}
		return &FuncExpr{Name: v.Name, Args: args, Star: v.Star, Volatile: v.Volatile}
	case *OpExpr:
		return &OpExpr{Op: v.Op, Left: Shift(v.Left, up), Right: Shift(v.Right, up)}
	case *BoolExpr:
		args := make([]Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = Shift(a, up)
		}
		return &BoolExpr{Op: v.Op, Args: args}
	default:
		return e
	}
}
