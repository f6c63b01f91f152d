package compile

import (
	"github.com/google/uuid"

	"github.com/orneryd/nornql/pkg/ast"
	"github.com/orneryd/nornql/pkg/catalog"
	"github.com/orneryd/nornql/pkg/diag"
	"github.com/orneryd/nornql/pkg/expr"
	"github.com/orneryd/nornql/pkg/plan"
	"github.com/orneryd/nornql/pkg/rel"
)

// transformCreate compiles a CREATE clause. Pattern semantics (which labels
// to write, how entities depend on each other) are folded into a relocatable
// plan blob carried as a hidden projection column; the projection itself
// holds the identity and property expressions the plan points at, plus
// placeholder columns for the deferred entity values.
func (c *Compiler) transformCreate(st *state, clause *ast.Clause) (*rel.Query, error) {
	cr := clause.Node.(*ast.Create)

	p := &plan.CreatePlan{Graph: c.cat.Graph()}
	if clause.Prev != nil {
		if _, err := c.transformPrevPassThrough(st, clause.Prev); err != nil {
			return nil, err
		}
		p.HasPrevious = true
	}

	// keeps the projection non-empty for patterns that bind no variables
	st.addHiddenTarget(placeholder(), "__create_null")

	for _, path := range cr.Pattern {
		cp, err := c.transformCreatePath(st, path)
		if err != nil {
			return nil, err
		}
		p.Paths = append(p.Paths, *cp)
	}
	p.Terminal = clause.Next == nil

	blob, err := plan.EncodeCreate(p)
	if err != nil {
		return nil, diag.Newf(diag.Internal, cr.Position, "failed to encode create plan: %v", err)
	}
	st.addHiddenTarget(&rel.FuncExpr{
		Name:     "_create_clause",
		Args:     []rel.Expr{&rel.Const{Value: blob}},
		Volatile: true,
	}, "__create_clause")

	return st.finalize(nil), nil
}

func (c *Compiler) transformCreatePath(st *state, path *ast.Path) (*plan.CreatePath, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	if path.Variable != "" {
		if st.reg().find(path.Variable) != nil || st.targetPosition(path.Variable) > 0 {
			return nil, diag.Newf(diag.SchemaConflict, path.Position,
				"variable `%s` already exists", path.Variable)
		}
		if len(path.Elements) < 3 {
			return nil, diag.Newf(diag.MalformedPattern, path.Position,
				"paths require at least 2 vertices and 1 edge")
		}
	}

	cp := &plan.CreatePath{Variable: path.Variable}
	inPath := path.Variable != ""

	tokens := make([]string, len(path.Elements))
	for i, el := range path.Elements {
		switch v := el.(type) {
		case *ast.NodePattern:
			tn, err := c.transformCreateNode(st, v)
			if err != nil {
				return nil, err
			}
			tn.InPathVar = inPath
			tokens[i] = tn.Token
			cp.Nodes = append(cp.Nodes, *tn)
		case *ast.RelPattern:
			tn, err := c.transformCreateEdge(st, v)
			if err != nil {
				return nil, err
			}
			tn.InPathVar = inPath
			tokens[i] = tn.Token
			cp.Nodes = append(cp.Nodes, *tn)
		}
	}

	// resolve edge endpoints to their vertex tokens, honoring direction
	for i, el := range path.Elements {
		edge, ok := el.(*ast.RelPattern)
		if !ok {
			continue
		}
		if edge.Direction == ast.DirLeft {
			cp.Nodes[i].StartToken = tokens[i+1]
			cp.Nodes[i].EndToken = tokens[i-1]
		} else {
			cp.Nodes[i].StartToken = tokens[i-1]
			cp.Nodes[i].EndToken = tokens[i+1]
		}
	}

	if path.Variable != "" {
		cp.PathPosition = st.addTarget(placeholder(), path.Variable)
	}
	return cp, nil
}

func (c *Compiler) transformCreateNode(st *state, node *ast.NodePattern) (*plan.TargetNode, error) {
	tn := &plan.TargetNode{Kind: plan.NodeVertex, Token: uuid.NewString()}

	if node.Variable != "" {
		if ent := st.reg().find(node.Variable); ent != nil {
			if pos := st.targetPosition(node.Variable); pos > 0 {
				if ent.Kind != EntityVertex {
					return nil, diag.Newf(diag.SchemaConflict, node.Position,
						"variable `%s` is already bound to an edge", node.Variable)
				}
				if node.Label != "" {
					return nil, diag.Newf(diag.SchemaConflict, node.Position,
						"previously declared variables cannot have a label")
				}
				if node.Props != nil {
					return nil, diag.Newf(diag.SchemaConflict, node.Position,
						"previously declared nodes in a CREATE clause cannot have properties")
				}
				tn.Insert = false
				tn.Variable = node.Variable
				tn.Label = ent.Label
				if ent.ClauseID == st.clauseID {
					tn.SameClause = true
				}
				st.wrapTargetVolatile(pos)
				tn.TuplePosition = pos
				return tn, nil
			}
			// the variable was bound once but its column did not survive the
			// intervening projections; treat it as a fresh declaration
		}
	}

	label := node.Label
	if label == "" {
		label = catalog.DefaultVertexLabel
	}
	relHandle, err := c.openCreateLabel(label, catalog.KindVertex, node.Position)
	if err != nil {
		return nil, err
	}

	tn.Insert = true
	tn.Label = node.Label
	tn.IDPosition = st.addHiddenTarget(relHandle.DefaultIDExpr(), "__id")

	var propsExpr rel.Expr
	if node.Props != nil {
		if _, isParam := node.Props.(*ast.Parameter); isParam {
			return nil, diag.Newf(diag.UnsupportedFeature, node.Position,
				"properties in a CREATE clause as a parameter are not supported")
		}
		propsExpr, err = c.exprc.Compile(node.Props, st, expr.KindInsertTarget)
		if err != nil {
			return nil, err
		}
	} else {
		propsExpr = relHandle.DefaultPropsExpr()
	}
	tn.PropsPosition = st.addHiddenTarget(volatileWrap(propsExpr), "__props")

	if node.Variable != "" {
		tn.Variable = node.Variable
		tn.TuplePosition = st.addTarget(placeholder(), node.Variable)
		st.reg().add(&Entity{
			Kind: EntityVertex, Name: node.Variable, Label: node.Label,
			ClauseID: st.clauseID, Node: node,
		})
	}
	return tn, nil
}

func (c *Compiler) transformCreateEdge(st *state, edge *ast.RelPattern) (*plan.TargetNode, error) {
	if edge.Variable != "" {
		if st.reg().find(edge.Variable) != nil || st.targetPosition(edge.Variable) > 0 {
			return nil, diag.Newf(diag.SchemaConflict, edge.Position,
				"variable `%s` already exists", edge.Variable)
		}
	}
	if edge.VarLength != nil {
		return nil, diag.Newf(diag.UnsupportedFeature, edge.Position,
			"variable length relationships are not supported")
	}
	if edge.Direction == ast.DirNone {
		return nil, diag.Newf(diag.UnsupportedFeature, edge.Position,
			"only directed relationships are allowed in CREATE")
	}
	if edge.Label == "" {
		return nil, diag.Newf(diag.MalformedPattern, edge.Position,
			"relationships must specify a label in CREATE")
	}

	relHandle, err := c.openCreateLabel(edge.Label, catalog.KindEdge, edge.Position)
	if err != nil {
		return nil, err
	}

	dir := plan.DirRight
	if edge.Direction == ast.DirLeft {
		dir = plan.DirLeft
	}
	tn := &plan.TargetNode{
		Kind: plan.NodeEdge, Label: edge.Label, Insert: true,
		Token: uuid.NewString(), Dir: dir,
	}
	tn.IDPosition = st.addHiddenTarget(relHandle.DefaultIDExpr(), "__id")

	var propsExpr rel.Expr
	if edge.Props != nil {
		if _, isParam := edge.Props.(*ast.Parameter); isParam {
			return nil, diag.Newf(diag.UnsupportedFeature, edge.Position,
				"properties in a CREATE clause as a parameter are not supported")
		}
		propsExpr, err = c.exprc.Compile(edge.Props, st, expr.KindInsertTarget)
		if err != nil {
			return nil, err
		}
	} else {
		propsExpr = relHandle.DefaultPropsExpr()
	}
	tn.PropsPosition = st.addHiddenTarget(volatileWrap(propsExpr), "__props")

	if edge.Variable != "" {
		tn.Variable = edge.Variable
		tn.TuplePosition = st.addTarget(placeholder(), edge.Variable)
		st.reg().add(&Entity{
			Kind: EntityEdge, Name: edge.Variable, Label: edge.Label,
			ClauseID: st.clauseID, Rel: edge,
		})
	}
	return tn, nil
}

// openCreateLabel resolves a label for writing, creating it under the root
// label of its kind on first use.
func (c *Compiler) openCreateLabel(name string, kind catalog.Kind, pos int) (*catalog.Relation, error) {
	if l, ok := c.cat.ResolveLabel(name); ok {
		if l.Kind != kind {
			return nil, diag.Newf(diag.SchemaConflict, pos,
				"label `%s` is a %s label, not a %s label", name, l.Kind, kind)
		}
	} else {
		if _, err := c.cat.CreateLabel(name, kind, ""); err != nil {
			return nil, diag.Newf(diag.Internal, pos, "failed to create label `%s`: %v", name, err)
		}
	}
	relHandle, err := c.cat.OpenLabelRelation(name)
	if err != nil {
		return nil, diag.Newf(diag.Internal, pos, "failed to open label `%s`: %v", name, err)
	}
	return relHandle, nil
}
