package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornql/pkg/ast"
	"github.com/orneryd/nornql/pkg/catalog"
	"github.com/orneryd/nornql/pkg/diag"
	"github.com/orneryd/nornql/pkg/plan"
	"github.com/orneryd/nornql/pkg/rel"
)

func create(paths ...*ast.Path) *ast.Create { return &ast.Create{Pattern: paths} }

func decodeCreatePlan(t *testing.T, q *rel.Query) *plan.CreatePlan {
	t.Helper()
	p, err := plan.DecodeCreate(planBlobArg(t, q, "__create_clause"))
	require.NoError(t, err)
	return p
}

func TestCreateSingleVertex(t *testing.T) {
	q := mustCompile(t, create(path(nodeL("n", "Person"))))

	require.True(t, q.Terminal)
	require.Empty(t, q.Scans)

	p := decodeCreatePlan(t, q)
	assert.Equal(t, "test", p.Graph)
	assert.False(t, p.HasPrevious)
	assert.True(t, p.Terminal)
	require.Len(t, p.Paths, 1)
	require.Len(t, p.Paths[0].Nodes, 1)

	tn := p.Paths[0].Nodes[0]
	assert.Equal(t, plan.NodeVertex, tn.Kind)
	assert.True(t, tn.Insert)
	assert.Equal(t, "Person", tn.Label)
	assert.Equal(t, "n", tn.Variable)
	assert.NotEmpty(t, tn.Token)

	// the projection carries identity and property expressions at the
	// positions the plan points at, and a placeholder for the entity value
	require.Greater(t, tn.IDPosition, 0)
	idTE := q.Targets[tn.IDPosition-1]
	assert.True(t, idTE.Hidden)
	idFn, ok := idTE.Expr.(*rel.FuncExpr)
	require.True(t, ok)
	assert.Equal(t, "_graphid_nextval", idFn.Name)
	assert.True(t, idFn.Volatile)

	require.Greater(t, tn.PropsPosition, 0)
	assert.True(t, q.Targets[tn.PropsPosition-1].Hidden)

	require.Greater(t, tn.TuplePosition, 0)
	entityTE := q.Targets[tn.TuplePosition-1]
	assert.False(t, entityTE.Hidden)
	assert.Equal(t, "n", entityTE.Name)
	ph, ok := entityTE.Expr.(*rel.FuncExpr)
	require.True(t, ok)
	assert.True(t, ph.Volatile)
}

func TestCreateAutoCreatesLabels(t *testing.T) {
	cat := testCatalog(t)
	_, err := New(cat).Compile(ast.Chain(
		create(path(nodeL("a", "Animal"), edge("e", "EATS", ast.DirRight), nodeL("b", "Plant"))),
	))
	require.NoError(t, err)

	l, ok := cat.ResolveLabel("Animal")
	require.True(t, ok)
	assert.Equal(t, catalog.KindVertex, l.Kind)
	assert.Equal(t, catalog.DefaultVertexLabel, l.Parent)

	l, ok = cat.ResolveLabel("EATS")
	require.True(t, ok)
	assert.Equal(t, catalog.KindEdge, l.Kind)
	assert.Equal(t, catalog.DefaultEdgeLabel, l.Parent)
}

func TestCreateEdgeEndpointTokens(t *testing.T) {
	q := mustCompile(t, create(path(
		node("a"), edge("e", "KNOWS", ast.DirRight), node("b"),
	)))

	p := decodeCreatePlan(t, q)
	nodes := p.Paths[0].Nodes
	require.Len(t, nodes, 3)
	e := nodes[1]
	assert.Equal(t, plan.NodeEdge, e.Kind)
	assert.Equal(t, plan.DirRight, e.Dir)
	assert.Equal(t, nodes[0].Token, e.StartToken)
	assert.Equal(t, nodes[2].Token, e.EndToken)
}

func TestCreateLeftEdgeSwapsTokens(t *testing.T) {
	q := mustCompile(t, create(path(
		node("a"), edge("e", "KNOWS", ast.DirLeft), node("b"),
	)))

	nodes := decodeCreatePlan(t, q).Paths[0].Nodes
	e := nodes[1]
	assert.Equal(t, plan.DirLeft, e.Dir)
	assert.Equal(t, nodes[2].Token, e.StartToken)
	assert.Equal(t, nodes[0].Token, e.EndToken)
}

func TestCreateAfterMatchReferencesColumn(t *testing.T) {
	q := mustCompile(t,
		match(path(node("a"))),
		create(path(node("a"), edge("e", "KNOWS", ast.DirRight), node("b"))),
	)

	p := decodeCreatePlan(t, q)
	assert.True(t, p.HasPrevious)
	nodes := p.Paths[0].Nodes

	a := nodes[0]
	assert.False(t, a.Insert)
	assert.False(t, a.SameClause)
	assert.Equal(t, 1, a.TuplePosition)
	assert.Zero(t, a.IDPosition)

	// the referenced column is wrapped volatile so it cannot be folded away
	wrapped, ok := q.Targets[0].Expr.(*rel.FuncExpr)
	require.True(t, ok)
	assert.True(t, wrapped.Volatile)

	b := nodes[2]
	assert.True(t, b.Insert)
	assert.True(t, b.SameClause == false)
}

func TestCreateSameClauseReference(t *testing.T) {
	q := mustCompile(t, create(
		path(node("a")),
		path(node("a"), edge("e", "KNOWS", ast.DirRight), node("b")),
	))

	p := decodeCreatePlan(t, q)
	require.Len(t, p.Paths, 2)
	a := p.Paths[1].Nodes[0]
	assert.False(t, a.Insert)
	assert.True(t, a.SameClause)
}

func TestCreateNamedPath(t *testing.T) {
	q := mustCompile(t, create(namedPath("p",
		node("a"), edge("e", "KNOWS", ast.DirRight), node("b"),
	)))

	p := decodeCreatePlan(t, q)
	cp := p.Paths[0]
	assert.Equal(t, "p", cp.Variable)
	require.Greater(t, cp.PathPosition, 0)
	te := q.Targets[cp.PathPosition-1]
	assert.Equal(t, "p", te.Name)
	assert.False(t, te.Hidden)
	for _, tn := range cp.Nodes {
		assert.True(t, tn.InPathVar)
	}
}

func TestCreateNamedPathTooShort(t *testing.T) {
	_, err := compileChain(t, create(namedPath("p", node("a"))))
	require.Error(t, err)
	assert.Equal(t, diag.MalformedPattern, diag.CodeOf(err))
}

func TestCreateUndirectedEdgeRejected(t *testing.T) {
	_, err := compileChain(t, create(path(
		node("a"), edge("e", "KNOWS", ast.DirNone), node("b"),
	)))
	require.Error(t, err)
	assert.Equal(t, diag.UnsupportedFeature, diag.CodeOf(err))
}

func TestCreateUnlabeledEdgeRejected(t *testing.T) {
	_, err := compileChain(t, create(path(
		node("a"), edge("e", "", ast.DirRight), node("b"),
	)))
	require.Error(t, err)
	assert.Equal(t, diag.MalformedPattern, diag.CodeOf(err))
}

func TestCreateParameterPropsRejected(t *testing.T) {
	_, err := compileChain(t, create(path(
		nodeP("n", "Person", &ast.Parameter{Name: "props"}),
	)))
	require.Error(t, err)
	assert.Equal(t, diag.UnsupportedFeature, diag.CodeOf(err))
}

func TestCreateBoundVariableWithLabelRejected(t *testing.T) {
	_, err := compileChain(t,
		match(path(node("a"))),
		create(path(nodeL("a", "Person"), edge("e", "KNOWS", ast.DirRight), node("b"))),
	)
	require.Error(t, err)
	assert.Equal(t, diag.SchemaConflict, diag.CodeOf(err))
}

func TestCreateBoundVariableWithPropsRejected(t *testing.T) {
	_, err := compileChain(t,
		match(path(node("a"))),
		create(path(
			nodeP("a", "", mapLit("x", lit(int64(1)))),
			edge("e", "KNOWS", ast.DirRight),
			node("b"),
		)),
	)
	require.Error(t, err)
	assert.Equal(t, diag.SchemaConflict, diag.CodeOf(err))
}

func TestCreateEdgeVariableReuseRejected(t *testing.T) {
	_, err := compileChain(t, create(
		path(node("a"), edge("e", "KNOWS", ast.DirRight), node("b")),
		path(node("c"), edge("e", "KNOWS", ast.DirRight), node("d")),
	))
	require.Error(t, err)
	assert.Equal(t, diag.SchemaConflict, diag.CodeOf(err))
}

func TestCreatePropsExpression(t *testing.T) {
	q := mustCompile(t, create(path(
		nodeP("n", "Person", mapLit("name", lit("Ann"))),
	)))

	tn := decodeCreatePlan(t, q).Paths[0].Nodes[0]
	propsTE := q.Targets[tn.PropsPosition-1]
	wrap, ok := propsTE.Expr.(*rel.FuncExpr)
	require.True(t, ok)
	require.True(t, wrap.Volatile)
	build, ok := wrap.Args[0].(*rel.FuncExpr)
	require.True(t, ok)
	assert.Equal(t, "_build_map", build.Name)
}

func TestCreateKindConflictOnExistingLabel(t *testing.T) {
	// KNOWS is an edge label; creating a vertex with it must fail
	_, err := compileChain(t, create(path(nodeL("n", "KNOWS"))))
	require.Error(t, err)
	assert.Equal(t, diag.SchemaConflict, diag.CodeOf(err))
}

func TestCreateNonTerminalFlag(t *testing.T) {
	q := mustCompile(t,
		create(path(nodeL("n", "Person"))),
		ret(item(varRef("n"))),
	)
	inner := subqueryOf(t, q)
	p := decodeCreatePlan(t, inner)
	assert.False(t, p.Terminal)
	assert.True(t, q.Terminal)
}
