package compile

import (
	"fmt"

	"github.com/orneryd/nornql/pkg/rel"
)

// prevClauseAlias names the sub-relation wrapping the previous clause.
const prevClauseAlias = "_"

// shared is compilation context common to every scope of one chain.
type shared struct {
	registry   registry
	nextClause int
	nextAlias  int
}

// state is the per-scope compilation state. Each clause (and each
// where-wrapper and sub-pattern) compiles in its own state; states form a
// parent chain mirroring query nesting, so variable resolution can climb
// into enclosing scopes.
type state struct {
	parent   *state
	shared   *shared
	clauseID int

	scans     []*rel.Scan
	targets   []*rel.TargetEntry
	columns   []*column
	propQuals []rel.Expr
	hasAggs   bool
}

// column is one name this scope can resolve, independent of what it
// projects. Projection clauses read the predecessor's columns without
// forwarding them to their own output.
type column struct {
	name string
	expr rel.Expr
}

func newState(parent *state, sh *shared) *state {
	sh.nextClause++
	return &state{parent: parent, shared: sh, clauseID: sh.nextClause}
}

func (st *state) reg() *registry { return &st.shared.registry }

// genAlias hands out relation aliases for anonymous pattern elements.
func (st *state) genAlias() string {
	st.shared.nextAlias++
	return fmt.Sprintf("_gen_%d", st.shared.nextAlias)
}

func (st *state) addScan(s *rel.Scan) int {
	st.scans = append(st.scans, s)
	return len(st.scans)
}

// addTarget appends a visible output column and returns its 1-based
// attribute number.
func (st *state) addTarget(e rel.Expr, name string) int {
	st.targets = append(st.targets, &rel.TargetEntry{Expr: e, Name: name})
	return len(st.targets)
}

// addHiddenTarget appends a column invisible to the following clause.
func (st *state) addHiddenTarget(e rel.Expr, name string) int {
	st.targets = append(st.targets, &rel.TargetEntry{Expr: e, Name: name, Hidden: true})
	return len(st.targets)
}

// targetPosition returns the absolute attribute number of the visible column
// with the given name, or -1.
func (st *state) targetPosition(name string) int {
	for i, te := range st.targets {
		if !te.Hidden && te.Name == name {
			return i + 1
		}
	}
	return -1
}

func (st *state) targetExpr(name string) rel.Expr {
	if pos := st.targetPosition(name); pos > 0 {
		return st.targets[pos-1].Expr
	}
	return nil
}

// wrapTargetVolatile guards the column at pos (1-based) against being folded
// away or deduplicated before a write plan reads it.
func (st *state) wrapTargetVolatile(pos int) {
	te := st.targets[pos-1]
	if f, ok := te.Expr.(*rel.FuncExpr); ok && f.Volatile {
		return
	}
	te.Expr = volatileWrap(te.Expr)
}

func (st *state) addColumn(name string, e rel.Expr) {
	st.columns = append(st.columns, &column{name: name, expr: e})
}

// bindScanColumns makes the visible columns of a compiled sub-relation
// resolvable in this scope. Attribute numbers count hidden entries too, since
// the executor addresses sub-relation output by absolute position.
func (st *state) bindScanColumns(q *rel.Query, scanID int) {
	for i, te := range q.Targets {
		if te.Hidden {
			continue
		}
		st.addColumn(te.Name, &rel.Var{Rel: scanID, Col: i + 1, Name: te.Name})
	}
}

// projectScanColumns forwards the visible columns of a sub-relation into this
// scope's own output, preserving their order.
func (st *state) projectScanColumns(q *rel.Query, scanID int) {
	for i, te := range q.Targets {
		if te.Hidden {
			continue
		}
		st.addTarget(&rel.Var{Rel: scanID, Col: i + 1, Name: te.Name}, te.Name)
	}
}

// ResolveColumn resolves a variable to the column expression in scope,
// checking bound sub-relation columns before this scope's own targets and
// climbing into enclosing scopes for correlated references.
func (st *state) ResolveColumn(name string) (rel.Expr, bool) {
	for s, up := st, 0; s != nil; s, up = s.parent, up+1 {
		if e := s.lookupColumn(name); e != nil {
			return rel.Shift(e, up), true
		}
	}
	return nil, false
}

func (st *state) lookupColumn(name string) rel.Expr {
	for _, c := range st.columns {
		if c.name == name {
			return c.expr
		}
	}
	return st.targetExpr(name)
}

// finalize assembles the scope into a query.
func (st *state) finalize(where rel.Expr) *rel.Query {
	return &rel.Query{
		Targets: st.targets,
		Scans:   st.scans,
		Where:   where,
		HasAggs: st.hasAggs,
	}
}

// volatileWrap marks an expression volatile without changing its value.
func volatileWrap(e rel.Expr) rel.Expr {
	return &rel.FuncExpr{Name: "_volatile", Args: []rel.Expr{e}, Volatile: true}
}

// placeholder is the deferred-identity column value for entities that only
// exist at execution time.
func placeholder() rel.Expr {
	return volatileWrap(&rel.Const{Value: nil})
}
