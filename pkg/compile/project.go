package compile

import (
	"github.com/orneryd/nornql/pkg/ast"
	"github.com/orneryd/nornql/pkg/diag"
	"github.com/orneryd/nornql/pkg/expr"
	"github.com/orneryd/nornql/pkg/rel"
)

func (c *Compiler) transformReturn(st *state, clause *ast.Clause) (*rel.Query, error) {
	r := clause.Node.(*ast.Return)
	if clause.Prev != nil {
		if _, err := c.transformPrev(st, clause.Prev); err != nil {
			return nil, err
		}
	}

	hasAggs := false
	for _, item := range r.Items {
		if expr.ContainsAggregate(item.Expr) {
			hasAggs = true
			break
		}
	}

	// with an aggregate anywhere in the projection, every non-aggregate item
	// becomes an implicit group key
	var groupTEs []*rel.TargetEntry
	for _, item := range r.Items {
		ce, err := c.exprc.Compile(item.Expr, st, expr.KindSelectTarget)
		if err != nil {
			return nil, err
		}
		name := item.Alias
		if name == "" {
			name = ast.Name(item.Expr)
		}
		pos := st.addTarget(ce, name)
		if hasAggs && !expr.HasAggregate(ce) {
			groupTEs = append(groupTEs, st.targets[pos-1])
		}
	}
	st.hasAggs = hasAggs
	q := st.finalize(nil)

	sortKeys, err := c.transformOrderBy(st, q, r.OrderBy)
	if err != nil {
		return nil, err
	}
	q.Sort = sortKeys
	q.Group = transformGroupKeys(q, groupTEs, sortKeys)

	if r.Distinct {
		refs, err := transformDistinct(q, sortKeys, r.Position)
		if err != nil {
			return nil, err
		}
		q.Distinct = refs
	}

	if q.Skip, err = c.transformLimitExpr(st, r.Skip, expr.KindOffset, "SKIP"); err != nil {
		return nil, err
	}
	if q.Limit, err = c.transformLimitExpr(st, r.Limit, expr.KindLimit, "LIMIT"); err != nil {
		return nil, err
	}
	return q, nil
}

// transformWith desugars WITH into RETURN plus an optional predicate over
// its output relation.
func (c *Compiler) transformWith(st *state, clause *ast.Clause) (*rel.Query, error) {
	w := clause.Node.(*ast.With)
	for _, item := range w.Items {
		if item.Alias != "" {
			continue
		}
		if _, ok := item.Expr.(*ast.Variable); !ok {
			return nil, diag.Newf(diag.MalformedPattern, item.Position,
				"expression in WITH must be aliased (use AS)")
		}
	}
	ret := &ast.Return{
		Distinct: w.Distinct,
		Items:    w.Items,
		OrderBy:  w.OrderBy,
		Skip:     w.Skip,
		Limit:    w.Limit,
		Position: w.Position,
	}
	wrapper := &ast.Clause{Node: ret, Prev: clause.Prev, Next: clause.Next}
	return c.transformWithWhere(st, wrapper, w.Where, c.transformReturn)
}

// transformOrderBy matches each sort expression structurally against the
// target list, appending a hidden target when nothing matches.
func (c *Compiler) transformOrderBy(st *state, q *rel.Query, items []*ast.SortItem) ([]rel.SortKey, error) {
	var keys []rel.SortKey
	for _, item := range items {
		ce, err := c.exprc.Compile(item.Expr, st, expr.KindOrderBy)
		if err != nil {
			return nil, err
		}
		te := findMatchingTarget(q, ce)
		if te == nil {
			te = &rel.TargetEntry{Expr: ce, Name: ast.Name(item.Expr), Hidden: true}
			q.Targets = append(q.Targets, te)
		}
		keys = append(keys, rel.SortKey{
			Ref:        q.AssignSortGroupRef(te),
			Descending: item.Descending,
		})
	}
	return keys, nil
}

// transformGroupKeys builds the implicit GROUP BY. A key that is also sorted
// on inherits the sort's comparison direction so one ordering serves both.
func transformGroupKeys(q *rel.Query, groupTEs []*rel.TargetEntry, sortKeys []rel.SortKey) []rel.GroupKey {
	var keys []rel.GroupKey
	seen := make(map[int]bool)
	for _, te := range groupTEs {
		match := findMatchingTarget(q, te.Expr)
		if match == nil {
			match = te
		}
		ref := q.AssignSortGroupRef(match)
		if seen[ref] {
			continue
		}
		seen[ref] = true

		key := rel.GroupKey{Ref: ref}
		for _, sk := range sortKeys {
			if sk.Ref == ref {
				key.Descending = sk.Descending
				key.NullsFirst = sk.NullsFirst
				break
			}
		}
		keys = append(keys, key)
	}
	return keys
}

// transformDistinct makes every visible output column a distinct key, with
// the sorted columns leading so DISTINCT can ride the same ordering.
func transformDistinct(q *rel.Query, sortKeys []rel.SortKey, pos int) ([]int, error) {
	var refs []int
	have := make(map[int]bool)
	for _, sk := range sortKeys {
		te := targetByRef(q, sk.Ref)
		if te == nil || te.Hidden {
			return nil, diag.Newf(diag.MalformedPattern, pos,
				"for DISTINCT, ORDER BY expressions must appear in the result list")
		}
		if !have[sk.Ref] {
			refs = append(refs, sk.Ref)
			have[sk.Ref] = true
		}
	}
	for _, te := range q.Targets {
		if te.Hidden {
			continue
		}
		ref := q.AssignSortGroupRef(te)
		if !have[ref] {
			refs = append(refs, ref)
			have[ref] = true
		}
	}
	return refs, nil
}

// transformLimitExpr compiles a SKIP or LIMIT expression, which must be
// closed over the clause's own relation.
func (c *Compiler) transformLimitExpr(st *state, e ast.Expr, kind expr.Kind, name string) (rel.Expr, error) {
	if e == nil {
		return nil, nil
	}
	ce, err := c.exprc.Compile(e, st, kind)
	if err != nil {
		return nil, err
	}
	if rel.ContainsVars(ce) {
		return nil, diag.Newf(diag.MalformedPattern, e.Pos(),
			"argument of %s must not contain variables", name)
	}
	return ce, nil
}

func findMatchingTarget(q *rel.Query, e rel.Expr) *rel.TargetEntry {
	for _, te := range q.Targets {
		if rel.Equal(te.Expr, e) {
			return te
		}
	}
	return nil
}

func targetByRef(q *rel.Query, ref int) *rel.TargetEntry {
	for _, te := range q.Targets {
		if te.SortGroupRef == ref {
			return te
		}
	}
	return nil
}
