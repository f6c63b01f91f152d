package compile

import (
	"github.com/orneryd/nornql/pkg/ast"
	"github.com/orneryd/nornql/pkg/catalog"
	"github.com/orneryd/nornql/pkg/diag"
	"github.com/orneryd/nornql/pkg/expr"
	"github.com/orneryd/nornql/pkg/rel"
)

func (c *Compiler) transformMatch(st *state, clause *ast.Clause) (*rel.Query, error) {
	m := clause.Node.(*ast.Match)
	if clause.Prev != nil {
		if _, err := c.transformPrevPassThrough(st, clause.Prev); err != nil {
			return nil, err
		}
	}
	where, err := c.transformMatchPattern(st, m.Pattern)
	if err != nil {
		return nil, err
	}
	return st.finalize(where), nil
}

func (c *Compiler) transformMatchPattern(st *state, pattern []*ast.Path) (rel.Expr, error) {
	var quals []rel.Expr
	for _, path := range pattern {
		pq, err := c.transformMatchPath(st, path)
		if err != nil {
			return nil, err
		}
		quals = append(quals, pq...)
	}
	// property constraints apply after the joins so every occurrence is bound
	quals = append(quals, st.propQuals...)
	return rel.And(quals...), nil
}

func (c *Compiler) transformMatchPath(st *state, path *ast.Path) ([]rel.Expr, error) {
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

	entities, err := c.transformMatchEntities(st, path)
	if err != nil {
		return nil, err
	}

	if path.Variable != "" {
		args := make([]rel.Expr, len(entities))
		for i, ent := range entities {
			args[i] = ent.Expr
		}
		st.addTarget(&rel.FuncExpr{Name: "_build_path", Args: args}, path.Variable)
	}

	quals, err := c.makePathJoinQuals(st, entities)
	if err != nil {
		return nil, err
	}
	if len(entities) > 3 {
		if uq := edgeUniquenessQual(entities); uq != nil {
			quals = append(quals, uq)
		}
	}
	return quals, nil
}

func validatePath(path *ast.Path) error {
	if len(path.Elements) == 0 || len(path.Elements)%2 == 0 {
		return diag.Newf(diag.MalformedPattern, path.Position,
			"paths must alternate vertices and relationships, starting and ending with a vertex")
	}
	for i, el := range path.Elements {
		_, isNode := el.(*ast.NodePattern)
		if isNode != (i%2 == 0) {
			return diag.Newf(diag.MalformedPattern, el.Pos(),
				"paths must alternate vertices and relationships, starting and ending with a vertex")
		}
	}
	return nil
}

// transformMatchEntities lowers each pattern element into scans and value
// expressions and registers one entity per occurrence, in pattern order.
func (c *Compiler) transformMatchEntities(st *state, path *ast.Path) ([]*Entity, error) {
	entities := make([]*Entity, 0, len(path.Elements))
	for _, el := range path.Elements {
		var ent *Entity
		switch v := el.(type) {
		case *ast.NodePattern:
			e, scanID, err := c.transformMatchNode(st, path, v)
			if err != nil {
				return nil, err
			}
			ent = &Entity{
				Kind: EntityVertex, Name: v.Variable, Label: v.Label,
				Expr: e, ScanID: scanID, ClauseID: st.clauseID, Node: v,
			}
			if v.Props != nil && e != nil {
				if err := c.addPropertyConstraint(st, ent, v.Props); err != nil {
					return nil, err
				}
			}
		case *ast.RelPattern:
			e, scanID, err := c.transformMatchEdge(st, v)
			if err != nil {
				return nil, err
			}
			ent = &Entity{
				Kind: EntityEdge, Name: v.Variable, Label: v.Label,
				Expr: e, ScanID: scanID, ClauseID: st.clauseID, Rel: v,
			}
			if v.Props != nil {
				if err := c.addPropertyConstraint(st, ent, v.Props); err != nil {
					return nil, err
				}
			}
		}
		st.reg().add(ent)
		entities = append(entities, ent)
	}
	return entities, nil
}

// transformMatchNode returns the vertex value expression and the scan it
// reads, or (nil, 0) when the occurrence stays out of the join tree.
func (c *Compiler) transformMatchNode(st *state, path *ast.Path, node *ast.NodePattern) (rel.Expr, int, error) {
	if node.Label != "" {
		l, ok := c.cat.ResolveLabel(node.Label)
		if !ok {
			return nil, 0, diag.Newf(diag.UnresolvedReference, node.Position,
				"label `%s` does not exist", node.Label)
		}
		if l.Kind != catalog.KindVertex {
			return nil, 0, diag.Newf(diag.SchemaConflict, node.Position,
				"label `%s` is an edge label, not a vertex label", node.Label)
		}
	}

	// anonymous, unlabeled-or-labeled, unconstrained nodes outside a named
	// path contribute nothing to the join tree; their label filter (if any)
	// is folded into the adjoining edge's conditions
	if path.Variable == "" && node.Variable == "" && node.Props == nil {
		return nil, 0, nil
	}

	if node.Variable != "" {
		if col, ok := st.ResolveColumn(node.Variable); ok {
			ent := st.reg().find(node.Variable)
			if ent == nil {
				return nil, 0, diag.Newf(diag.SchemaConflict, node.Position,
					"variable `%s` is not bound to a vertex", node.Variable)
			}
			if ent.Kind != EntityVertex {
				return nil, 0, diag.Newf(diag.SchemaConflict, node.Position,
					"variable `%s` is already bound to an edge", node.Variable)
			}
			if node.Label != "" && node.Label != ent.Label {
				return nil, 0, diag.Newf(diag.SchemaConflict, node.Position,
					"label `%s` conflicts with the label of variable `%s`", node.Label, node.Variable)
			}
			if node.Props != nil {
				return nil, 0, diag.Newf(diag.SchemaConflict, node.Position,
					"property constraints are not allowed on the already-bound variable `%s`", node.Variable)
			}
			scanID := 0
			if ent.ClauseID == st.clauseID {
				scanID = ent.ScanID
			}
			return col, scanID, nil
		}
	}

	label := node.Label
	if label == "" {
		label = catalog.DefaultVertexLabel
	}
	alias := node.Variable
	if alias == "" {
		alias = st.genAlias()
	}
	scanID := st.addScan(&rel.Scan{
		Kind: rel.ScanLabel, Alias: alias, Label: label, Entity: rel.EntityVertex,
	})

	id := &rel.Var{Rel: scanID, Col: rel.VertexColID, Name: "id"}
	props := &rel.Var{Rel: scanID, Col: rel.VertexColProps, Name: "properties"}
	ve := &rel.FuncExpr{
		Name: "_build_vertex",
		Args: []rel.Expr{id, labelNameExpr(id), props},
	}
	if node.Variable != "" {
		st.addTarget(ve, node.Variable)
	}
	return ve, scanID, nil
}

// transformMatchEdge always joins; relationships have no exclusion rule.
func (c *Compiler) transformMatchEdge(st *state, edge *ast.RelPattern) (rel.Expr, int, error) {
	if edge.VarLength != nil {
		return nil, 0, diag.Newf(diag.UnsupportedFeature, edge.Position,
			"variable length relationships are not supported")
	}
	if edge.Label != "" {
		l, ok := c.cat.ResolveLabel(edge.Label)
		if !ok {
			return nil, 0, diag.Newf(diag.UnresolvedReference, edge.Position,
				"label `%s` does not exist", edge.Label)
		}
		if l.Kind != catalog.KindEdge {
			return nil, 0, diag.Newf(diag.SchemaConflict, edge.Position,
				"label `%s` is a vertex label, not an edge label", edge.Label)
		}
	}

	if edge.Variable != "" {
		if col, ok := st.ResolveColumn(edge.Variable); ok {
			ent := st.reg().find(edge.Variable)
			if ent == nil {
				return nil, 0, diag.Newf(diag.SchemaConflict, edge.Position,
					"variable `%s` is not bound to an edge", edge.Variable)
			}
			if ent.Kind != EntityEdge {
				return nil, 0, diag.Newf(diag.SchemaConflict, edge.Position,
					"variable `%s` is already bound to a vertex", edge.Variable)
			}
			if edge.Label != "" && edge.Label != ent.Label {
				return nil, 0, diag.Newf(diag.SchemaConflict, edge.Position,
					"label `%s` conflicts with the label of variable `%s`", edge.Label, edge.Variable)
			}
			if edge.Props != nil {
				return nil, 0, diag.Newf(diag.SchemaConflict, edge.Position,
					"property constraints are not allowed on the already-bound variable `%s`", edge.Variable)
			}
			scanID := 0
			if ent.ClauseID == st.clauseID {
				scanID = ent.ScanID
			}
			return col, scanID, nil
		}
	}

	label := edge.Label
	if label == "" {
		label = catalog.DefaultEdgeLabel
	}
	alias := edge.Variable
	if alias == "" {
		alias = st.genAlias()
	}
	scanID := st.addScan(&rel.Scan{
		Kind: rel.ScanLabel, Alias: alias, Label: label, Entity: rel.EntityEdge,
	})

	id := &rel.Var{Rel: scanID, Col: rel.EdgeColID, Name: "id"}
	start := &rel.Var{Rel: scanID, Col: rel.EdgeColStartID, Name: "start_id"}
	end := &rel.Var{Rel: scanID, Col: rel.EdgeColEndID, Name: "end_id"}
	props := &rel.Var{Rel: scanID, Col: rel.EdgeColProps, Name: "properties"}
	ee := &rel.FuncExpr{
		Name: "_build_edge",
		Args: []rel.Expr{id, start, end, labelNameExpr(id), props},
	}
	if edge.Variable != "" {
		st.addTarget(ee, edge.Variable)
	}
	return ee, scanID, nil
}

func (c *Compiler) addPropertyConstraint(st *state, ent *Entity, props ast.Expr) error {
	constraint, err := c.exprc.Compile(props, st, expr.KindWhere)
	if err != nil {
		return err
	}
	st.propQuals = append(st.propQuals, &rel.FuncExpr{
		Name: "_property_constraint_check",
		Args: []rel.Expr{makeQual(ent, "properties"), constraint},
	})
	return nil
}

// makePathJoinQuals slides a window over the path: for each edge it sees the
// edge itself, both adjoining vertices, and the edges on either side, which
// is enough to join through vertices that were left out of the join tree.
func (c *Compiler) makePathJoinQuals(st *state, entities []*Entity) ([]rel.Expr, error) {
	var quals []rel.Expr
	var prevEdge *Entity
	for i := 1; i < len(entities); i += 2 {
		prevNode := entities[i-1]
		edge := entities[i]
		nextNode := entities[i+1]
		var nextEdge *Entity
		if i+2 < len(entities) {
			nextEdge = entities[i+2]
		}
		qs, err := c.makeEdgeJoinQuals(prevEdge, prevNode, edge, nextNode, nextEdge)
		if err != nil {
			return nil, err
		}
		quals = append(quals, qs...)
		prevEdge = edge
	}
	return quals, nil
}

func (c *Compiler) makeEdgeJoinQuals(prevEdge, prevNode, edge, nextNode, nextEdge *Entity) ([]rel.Expr, error) {
	prevFilter, nextFilter := "", ""
	prevEnt, nextEnt := prevNode, nextNode

	if !prevNode.InJoinTree() {
		prevFilter = prevNode.Label
		if prevEdge != nil {
			prevEnt = prevEdge
		}
	}
	if !nextNode.InJoinTree() {
		if nextEdge != nil {
			// defer: the excluded vertex joins at the following edge's
			// iteration, which also emits its label filter
			nextEnt = nextEdge
		} else {
			nextFilter = nextNode.Label
		}
	}

	start := makeQual(edge, "start_id")
	end := makeQual(edge, "end_id")

	// directed edges join only to the next vertex here; the deferred bridge
	// through an excluded vertex belongs to the next edge's prev side. An
	// undirected edge joins the adjoining edge now, inside its own
	// disjunction.
	switch edge.Rel.Direction {
	case ast.DirRight:
		return c.directedJoinQuals(prevEnt, nextNode, start, end, prevFilter, nextFilter)
	case ast.DirLeft:
		return c.directedJoinQuals(prevEnt, nextNode, end, start, prevFilter, nextFilter)
	default:
		first, err := c.directedJoinQuals(prevEnt, nextEnt, start, end, prevFilter, nextFilter)
		if err != nil {
			return nil, err
		}
		second, err := c.directedJoinQuals(prevEnt, nextEnt, end, start, prevFilter, nextFilter)
		if err != nil {
			return nil, err
		}
		if len(first) == 0 && len(second) == 0 {
			return nil, nil
		}
		return []rel.Expr{rel.Or(rel.And(first...), rel.And(second...))}, nil
	}
}

// directedJoinQuals joins one orientation of an edge to the entities on its
// two sides. prevQual and nextQual are the edge endpoint columns facing the
// previous and next entity for this orientation.
func (c *Compiler) directedJoinQuals(prevEnt, nextEnt *Entity, prevQual, nextQual rel.Expr, prevFilter, nextFilter string) ([]rel.Expr, error) {
	var quals []rel.Expr
	if prevEnt.InJoinTree() {
		quals = append(quals, joinToEntity(prevEnt, prevQual, sideLeft))
	}
	if nextEnt.InJoinTree() {
		quals = append(quals, joinToEntity(nextEnt, nextQual, sideRight))
	}
	if f, err := c.labelFilter(prevQual, prevFilter); err != nil {
		return nil, err
	} else if f != nil {
		quals = append(quals, f)
	}
	if f, err := c.labelFilter(nextQual, nextFilter); err != nil {
		return nil, err
	} else if f != nil {
		quals = append(quals, f)
	}
	return quals, nil
}

type edgeSide int

const (
	sideLeft edgeSide = iota
	sideRight
)

// joinToEntity equates an edge endpoint with the entity on that side: a
// vertex joins on its id, an adjoining edge joins on whichever of its own
// endpoints faces the shared (excluded) vertex.
func joinToEntity(ent *Entity, qual rel.Expr, side edgeSide) rel.Expr {
	if ent.Kind == EntityVertex {
		return &rel.OpExpr{Op: "=", Left: qual, Right: makeQual(ent, "id")}
	}
	qs := facingEndpointQuals(ent, side)
	if len(qs) == 2 {
		return rel.Or(
			&rel.OpExpr{Op: "=", Left: qual, Right: qs[0]},
			&rel.OpExpr{Op: "=", Left: qual, Right: qs[1]},
		)
	}
	return &rel.OpExpr{Op: "=", Left: qual, Right: qs[0]}
}

// facingEndpointQuals picks the endpoint columns of an adjoining edge that
// touch the shared vertex. side says whether the adjoining edge lies before
// (left) or after (right) the edge being joined; undirected edges face with
// both endpoints.
func facingEndpointQuals(ent *Entity, side edgeSide) []rel.Expr {
	var cols []string
	switch ent.Rel.Direction {
	case ast.DirRight:
		if side == sideLeft {
			cols = []string{"end_id"}
		} else {
			cols = []string{"start_id"}
		}
	case ast.DirLeft:
		if side == sideLeft {
			cols = []string{"start_id"}
		} else {
			cols = []string{"end_id"}
		}
	default:
		cols = []string{"start_id", "end_id"}
	}
	qs := make([]rel.Expr, len(cols))
	for i, col := range cols {
		qs[i] = makeQual(ent, col)
	}
	return qs
}

// labelFilter restricts a graphid-valued expression to a label. The root
// vertex label covers everything, so it never needs a filter.
func (c *Compiler) labelFilter(qual rel.Expr, label string) (rel.Expr, error) {
	if label == "" || label == catalog.DefaultVertexLabel {
		return nil, nil
	}
	l, ok := c.cat.ResolveLabel(label)
	if !ok {
		return nil, diag.Newf(diag.Internal, diag.NoPos,
			"label `%s` vanished during compilation", label)
	}
	return &rel.OpExpr{
		Op:    "=",
		Left:  &rel.FuncExpr{Name: "_label_id", Args: []rel.Expr{qual}},
		Right: &rel.Const{Value: int64(l.ID)},
	}, nil
}

// edgeUniquenessQual keeps a path from binding the same edge twice. Paths
// with a single edge cannot duplicate one, so the predicate only appears
// once a path has two or more.
func edgeUniquenessQual(entities []*Entity) rel.Expr {
	var args []rel.Expr
	for _, e := range entities {
		if e.Kind == EntityEdge {
			args = append(args, makeQual(e, "id"))
		}
	}
	if len(args) < 2 {
		return nil
	}
	return &rel.FuncExpr{Name: "_edge_uniqueness", Args: args}
}

// makeQual produces the expression for one logical column of an entity:
// a direct scan column when the occurrence owns a scan in this scope, an
// accessor over its value expression otherwise.
func makeQual(ent *Entity, col string) rel.Expr {
	if ent.ScanID > 0 {
		return &rel.Var{Rel: ent.ScanID, Col: colAttr(ent.Kind, col), Name: col}
	}
	return &rel.FuncExpr{Name: accessorName(ent.Kind, col), Args: []rel.Expr{ent.Expr}}
}

func colAttr(kind EntityKind, col string) int {
	if kind == EntityVertex {
		switch col {
		case "id":
			return rel.VertexColID
		case "properties":
			return rel.VertexColProps
		}
	} else {
		switch col {
		case "id":
			return rel.EdgeColID
		case "start_id":
			return rel.EdgeColStartID
		case "end_id":
			return rel.EdgeColEndID
		case "properties":
			return rel.EdgeColProps
		}
	}
	return 0
}

func accessorName(kind EntityKind, col string) string {
	if kind == EntityVertex {
		return "_vertex_" + col
	}
	return "_edge_" + col
}

func labelNameExpr(id rel.Expr) rel.Expr {
	return &rel.FuncExpr{Name: "_label_name", Args: []rel.Expr{id}}
}
