package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornql/pkg/ast"
	"github.com/orneryd/nornql/pkg/diag"
	"github.com/orneryd/nornql/pkg/rel"
)

func countStar() ast.Expr { return &ast.FuncCall{Name: "count", Star: true} }

func TestReturnAliases(t *testing.T) {
	q := mustCompile(t,
		match(path(node("n"))),
		ret(aliased(propRef("n", "name"), "who"), item(propRef("n", "age"))),
	)
	require.Len(t, q.Targets, 2)
	assert.Equal(t, "who", q.Targets[0].Name)
	assert.Equal(t, "n.age", q.Targets[1].Name)
}

func TestReturnProjectsOnlyItems(t *testing.T) {
	// the predecessor binds a, e, and b, but only the item list is output
	q := mustCompile(t,
		match(path(node("a"), edge("e", "", ast.DirRight), node("b"))),
		ret(item(varRef("b"))),
	)
	require.Len(t, q.Targets, 1)
	assert.Equal(t, "b", q.Targets[0].Name)
	v, ok := q.Targets[0].Expr.(*rel.Var)
	require.True(t, ok)
	assert.Equal(t, 3, v.Col)
}

func TestWithNarrowsVisibleColumns(t *testing.T) {
	w := &ast.With{Items: []*ast.ReturnItem{{Expr: propRef("n", "name"), Alias: "name"}}}
	q := mustCompile(t, match(path(node("n"))), w, ret(item(varRef("name"))))

	require.Len(t, q.Targets, 1)
	assert.Equal(t, "name", q.Targets[0].Name)

	withQ := subqueryOf(t, q)
	require.Len(t, withQ.Targets, 1)
	assert.Equal(t, "name", withQ.Targets[0].Name)
}

func TestReturnAutoGrouping(t *testing.T) {
	q := mustCompile(t,
		match(path(node("n"))),
		ret(item(propRef("n", "name")), item(countStar())),
	)

	assert.True(t, q.HasAggs)
	require.Len(t, q.Group, 1)
	assert.Equal(t, q.Targets[0].SortGroupRef, q.Group[0].Ref)
	assert.False(t, q.Group[0].Descending)
	// the aggregate itself is not a group key
	assert.Zero(t, q.Targets[1].SortGroupRef)
}

func TestReturnAggregateOnlyHasNoGroupKeys(t *testing.T) {
	q := mustCompile(t,
		match(path(node("n"))),
		ret(item(countStar())),
	)
	assert.True(t, q.HasAggs)
	assert.Empty(t, q.Group)
}

func TestReturnNoAggregateNoGrouping(t *testing.T) {
	q := mustCompile(t,
		match(path(node("n"))),
		ret(item(propRef("n", "name"))),
	)
	assert.False(t, q.HasAggs)
	assert.Empty(t, q.Group)
}

func TestOrderByMatchesExistingTarget(t *testing.T) {
	r := ret(item(propRef("n", "name")))
	r.OrderBy = []*ast.SortItem{{Expr: propRef("n", "name")}}
	q := mustCompile(t, match(path(node("n"))), r)

	// structural match: no hidden column appended
	require.Len(t, q.Targets, 1)
	require.Len(t, q.Sort, 1)
	assert.Equal(t, q.Targets[0].SortGroupRef, q.Sort[0].Ref)
	assert.False(t, q.Sort[0].Descending)
}

func TestOrderByAppendsHiddenTarget(t *testing.T) {
	r := ret(item(propRef("n", "name")))
	r.OrderBy = []*ast.SortItem{{Expr: propRef("n", "age"), Descending: true}}
	q := mustCompile(t, match(path(node("n"))), r)

	require.Len(t, q.Targets, 2)
	hidden := q.Targets[1]
	assert.True(t, hidden.Hidden)
	assert.Equal(t, "n.age", hidden.Name)
	require.Len(t, q.Sort, 1)
	assert.Equal(t, hidden.SortGroupRef, q.Sort[0].Ref)
	assert.True(t, q.Sort[0].Descending)
	assert.False(t, q.Sort[0].NullsFirst)
}

func TestGroupKeyInheritsSortDirection(t *testing.T) {
	r := ret(item(propRef("n", "name")), item(countStar()))
	r.OrderBy = []*ast.SortItem{{Expr: propRef("n", "name"), Descending: true}}
	q := mustCompile(t, match(path(node("n"))), r)

	require.Len(t, q.Group, 1)
	assert.True(t, q.Group[0].Descending)
	assert.False(t, q.Group[0].NullsFirst)
	require.Len(t, q.Sort, 1)
	assert.Equal(t, q.Sort[0].Ref, q.Group[0].Ref)
}

func TestGroupKeysDeduplicated(t *testing.T) {
	q := mustCompile(t,
		match(path(node("n"))),
		ret(item(propRef("n", "name")), item(propRef("n", "name")), item(countStar())),
	)
	require.Len(t, q.Group, 1)
}

func TestDistinctCoversVisibleTargets(t *testing.T) {
	r := ret(item(propRef("n", "name")), item(propRef("n", "age")))
	r.Distinct = true
	q := mustCompile(t, match(path(node("n"))), r)

	require.Len(t, q.Distinct, 2)
	assert.Equal(t, q.Targets[0].SortGroupRef, q.Distinct[0])
	assert.Equal(t, q.Targets[1].SortGroupRef, q.Distinct[1])
}

func TestDistinctSortedColumnLeads(t *testing.T) {
	r := ret(item(propRef("n", "name")), item(propRef("n", "age")))
	r.Distinct = true
	r.OrderBy = []*ast.SortItem{{Expr: propRef("n", "age")}}
	q := mustCompile(t, match(path(node("n"))), r)

	require.Len(t, q.Distinct, 2)
	assert.Equal(t, q.Targets[1].SortGroupRef, q.Distinct[0])
}

func TestDistinctRejectsHiddenSortKey(t *testing.T) {
	r := ret(item(propRef("n", "name")))
	r.Distinct = true
	r.OrderBy = []*ast.SortItem{{Expr: propRef("n", "age")}}
	_, err := compileChain(t, match(path(node("n"))), r)
	require.Error(t, err)
	assert.Equal(t, diag.MalformedPattern, diag.CodeOf(err))
}

func TestSkipLimitConstants(t *testing.T) {
	r := ret(item(varRef("n")))
	r.Skip = lit(int64(5))
	r.Limit = lit(int64(10))
	q := mustCompile(t, match(path(node("n"))), r)

	skip, ok := q.Skip.(*rel.Const)
	require.True(t, ok)
	assert.Equal(t, int64(5), skip.Value)
	limit, ok := q.Limit.(*rel.Const)
	require.True(t, ok)
	assert.Equal(t, int64(10), limit.Value)
}

func TestSkipRejectsColumnReferences(t *testing.T) {
	r := ret(item(varRef("n")))
	r.Skip = propRef("n", "age")
	_, err := compileChain(t, match(path(node("n"))), r)
	require.Error(t, err)
	assert.Equal(t, diag.MalformedPattern, diag.CodeOf(err))
	assert.Contains(t, err.Error(), "SKIP")
}

func TestLimitAllowsParameters(t *testing.T) {
	r := ret(item(varRef("n")))
	r.Limit = &ast.Parameter{Name: "n_rows"}
	q := mustCompile(t, match(path(node("n"))), r)
	_, ok := q.Limit.(*rel.Param)
	assert.True(t, ok)
}

func TestGroupingSetsRejected(t *testing.T) {
	_, err := compileChain(t,
		match(path(node("n"))),
		ret(item(&ast.GroupingSet{Exprs: []ast.Expr{propRef("n", "name")}})),
	)
	require.Error(t, err)
	assert.Equal(t, diag.UnsupportedFeature, diag.CodeOf(err))
}

func TestWithDesugarsToProjection(t *testing.T) {
	w := &ast.With{Items: []*ast.ReturnItem{{Expr: varRef("n"), Alias: "m"}}}
	q := mustCompile(t,
		match(path(node("n"))),
		w,
		ret(item(varRef("m"))),
	)

	require.Len(t, q.Targets, 1)
	assert.Equal(t, "m", q.Targets[0].Name)

	// WITH compiled to a plain projection underneath
	withQ := subqueryOf(t, q)
	require.Len(t, withQ.Targets, 1)
	assert.Equal(t, "m", withQ.Targets[0].Name)
}

func TestWithWhereWrapsProjection(t *testing.T) {
	w := &ast.With{
		Items: []*ast.ReturnItem{{Expr: varRef("n"), Alias: "m"}},
		Where: &ast.BinaryOp{Op: ">", Left: propRef("m", "age"), Right: lit(int64(3))},
	}
	q := mustCompile(t, match(path(node("n"))), w, ret(item(varRef("m"))))

	wrapper := subqueryOf(t, q)
	require.NotNil(t, wrapper.Where)
	proj := subqueryOf(t, wrapper)
	assert.Nil(t, proj.Where)
	assert.Equal(t, "m", proj.Targets[0].Name)
}

func TestWithDropsUnprojectedVariables(t *testing.T) {
	w := &ast.With{Items: []*ast.ReturnItem{{Expr: propRef("n", "name"), Alias: "name"}}}
	_, err := compileChain(t,
		match(path(node("n"))),
		w,
		ret(item(varRef("n"))),
	)
	require.Error(t, err)
	assert.Equal(t, diag.UnresolvedReference, diag.CodeOf(err))
}

func TestWithRequiresAliasForExpressions(t *testing.T) {
	w := &ast.With{Items: []*ast.ReturnItem{{Expr: propRef("n", "name")}}}
	_, err := compileChain(t, match(path(node("n"))), w, ret(item(varRef("name"))))
	require.Error(t, err)
	assert.Equal(t, diag.MalformedPattern, diag.CodeOf(err))
	assert.Contains(t, err.Error(), "aliased")
}

func TestWithBareVariableNeedsNoAlias(t *testing.T) {
	w := &ast.With{Items: []*ast.ReturnItem{{Expr: varRef("n")}}}
	q := mustCompile(t, match(path(node("n"))), w, ret(item(varRef("n"))))
	assert.Equal(t, "n", q.Targets[0].Name)
}

func TestHiddenColumnsInvisibleToNextClause(t *testing.T) {
	// ORDER BY in WITH adds a hidden column; the following RETURN must not
	// be able to resolve it
	w := &ast.With{
		Items:   []*ast.ReturnItem{{Expr: propRef("n", "name"), Alias: "name"}},
		OrderBy: []*ast.SortItem{{Expr: propRef("n", "age")}},
	}
	_, err := compileChain(t, match(path(node("n"))), w, ret(item(varRef("n.age"))))
	require.Error(t, err)
	assert.Equal(t, diag.UnresolvedReference, diag.CodeOf(err))
}
