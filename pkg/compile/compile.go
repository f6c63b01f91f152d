// Package compile lowers clause chains into relational queries. Each clause
// becomes one query that nests its predecessor as a sub-relation, so the
// chain compiles into a tower of subqueries the execution layer can walk
// from the inside out.
package compile

import (
	"github.com/orneryd/nornql/pkg/ast"
	"github.com/orneryd/nornql/pkg/catalog"
	"github.com/orneryd/nornql/pkg/diag"
	"github.com/orneryd/nornql/pkg/expr"
	"github.com/orneryd/nornql/pkg/rel"
)

// Compiler compiles clause chains against one graph's catalog.
type Compiler struct {
	cat   catalog.Catalog
	exprc *expr.Compiler
}

// New creates a compiler bound to the given catalog.
func New(cat catalog.Catalog) *Compiler {
	return &Compiler{cat: cat, exprc: expr.New()}
}

// Compile lowers a clause chain into a single nested query. The chain may be
// passed by any of its clauses; compilation starts from the tail and recurses
// toward the head.
func (c *Compiler) Compile(chain *ast.Clause) (*rel.Query, error) {
	if chain == nil {
		return nil, diag.Newf(diag.Internal, diag.NoPos, "empty clause chain")
	}
	sh := &shared{}
	st := newState(nil, sh)
	q, err := c.transformClause(st, chain.Tail())
	if err != nil {
		return nil, err
	}
	q.Terminal = true
	return q, nil
}

type clauseTransform func(*state, *ast.Clause) (*rel.Query, error)

func (c *Compiler) transformClause(st *state, clause *ast.Clause) (*rel.Query, error) {
	switch n := clause.Node.(type) {
	case *ast.Match:
		return c.transformWithWhere(st, clause, n.Where, c.transformMatch)
	case *ast.Create:
		return c.transformCreate(st, clause)
	case *ast.Return:
		return c.transformReturn(st, clause)
	case *ast.With:
		return c.transformWith(st, clause)
	case *ast.Set:
		return c.transformSet(st, clause)
	case *ast.Delete:
		return c.transformDelete(st, clause)
	case *ast.SubPattern:
		return c.transformSubPattern(st, clause)
	default:
		return nil, diag.Newf(diag.Internal, clause.Node.Pos(),
			"unexpected clause node %T", clause.Node)
	}
}

// transformPrev compiles the predecessor clause in a child scope and mounts
// it as the sub-relation this scope reads from. The predecessor's visible
// columns become resolvable names in this scope but not output columns;
// clauses that forward them use transformPrevPassThrough.
func (c *Compiler) transformPrev(st *state, prev *ast.Clause) (*rel.Query, error) {
	child := newState(st, st.shared)
	q, err := c.transformClause(child, prev)
	if err != nil {
		return nil, err
	}
	scanID := st.addScan(&rel.Scan{Kind: rel.ScanSubquery, Alias: prevClauseAlias, Subquery: q})
	st.bindScanColumns(q, scanID)
	return q, nil
}

// transformPrevPassThrough mounts the predecessor and re-projects its visible
// columns, for clauses that extend the predecessor's relation instead of
// replacing it with a new projection.
func (c *Compiler) transformPrevPassThrough(st *state, prev *ast.Clause) (*rel.Query, error) {
	q, err := c.transformPrev(st, prev)
	if err != nil {
		return nil, err
	}
	st.projectScanColumns(q, len(st.scans))
	return q, nil
}

// transformWithWhere runs transform for the clause and, when a WHERE
// predicate is present, wraps the result in a filtering query so the
// predicate sees the clause's output columns.
func (c *Compiler) transformWithWhere(st *state, clause *ast.Clause, where ast.Expr, transform clauseTransform) (*rel.Query, error) {
	if where == nil {
		return transform(st, clause)
	}

	inner := newState(st, st.shared)
	innerQ, err := transform(inner, clause)
	if err != nil {
		return nil, err
	}

	scanID := st.addScan(&rel.Scan{Kind: rel.ScanSubquery, Alias: prevClauseAlias, Subquery: innerQ})
	st.projectScanColumns(innerQ, scanID)

	qual, err := c.exprc.Compile(where, st, expr.KindWhere)
	if err != nil {
		return nil, err
	}
	return st.finalize(qual), nil
}

// transformSubPattern compiles a standalone pattern (EXISTS-style) as a
// sub-relation. Variables bound by enclosing scopes stay visible as
// correlated references.
func (c *Compiler) transformSubPattern(st *state, clause *ast.Clause) (*rel.Query, error) {
	sp := clause.Node.(*ast.SubPattern)
	m := &ast.Match{Pattern: sp.Pattern, Position: sp.Position}
	inner := &ast.Clause{Node: m}

	child := newState(st, st.shared)
	q, err := c.transformMatch(child, inner)
	if err != nil {
		return nil, err
	}

	scanID := st.addScan(&rel.Scan{Kind: rel.ScanSubquery, Alias: prevClauseAlias, Subquery: q})
	st.projectScanColumns(q, scanID)
	return st.finalize(nil), nil
}
