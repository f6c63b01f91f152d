package compile

import (
	"github.com/orneryd/nornql/pkg/ast"
	"github.com/orneryd/nornql/pkg/diag"
	"github.com/orneryd/nornql/pkg/expr"
	"github.com/orneryd/nornql/pkg/plan"
	"github.com/orneryd/nornql/pkg/rel"
)

// transformSet compiles SET and REMOVE. Both update a single property of an
// entity bound by an earlier clause, so the compiled query is the
// predecessor's relation plus the plan blob and, for SET, the new value.
func (c *Compiler) transformSet(st *state, clause *ast.Clause) (*rel.Query, error) {
	s := clause.Node.(*ast.Set)
	name := s.ClauseName()

	if clause.Prev == nil {
		return nil, diag.Newf(diag.MalformedPattern, s.Position,
			"%s cannot be the first clause in a query", name)
	}
	if _, err := c.transformPrevPassThrough(st, clause.Prev); err != nil {
		return nil, err
	}
	if len(s.Items) != 1 {
		return nil, diag.Newf(diag.UnsupportedFeature, s.Position,
			"%s clause does not support updating more than one item", name)
	}

	p := &plan.UpdatePlan{Clause: name, Graph: c.cat.Graph()}
	for _, item := range s.Items {
		ui, err := c.transformSetItem(st, s, item)
		if err != nil {
			return nil, err
		}
		p.Items = append(p.Items, *ui)
	}
	p.Terminal = clause.Next == nil

	blob, err := plan.EncodeUpdate(p)
	if err != nil {
		return nil, diag.Newf(diag.Internal, s.Position, "failed to encode %s plan: %v", name, err)
	}
	st.addHiddenTarget(&rel.FuncExpr{
		Name:     "_set_clause",
		Args:     []rel.Expr{&rel.Const{Value: blob}},
		Volatile: true,
	}, "__set_clause")

	return st.finalize(nil), nil
}

func (c *Compiler) transformSetItem(st *state, s *ast.Set, item *ast.SetItem) (*plan.UpdateItem, error) {
	name := s.ClauseName()
	if item.Merge {
		return nil, diag.Newf(diag.UnsupportedFeature, item.Position,
			"SET clause does not yet support adding multiple properties with a map")
	}

	prop, ok := item.Target.(*ast.Property)
	if !ok {
		return nil, diag.Newf(diag.MalformedPattern, item.Position,
			"%s clause expects the format: %s variable.property_name", name, name)
	}
	varref, ok := prop.Expr.(*ast.Variable)
	if !ok {
		return nil, diag.Newf(diag.MalformedPattern, prop.Expr.Pos(),
			"%s clause expects the format: %s variable.property_name", name, name)
	}

	pos := st.targetPosition(varref.Name)
	if pos < 0 {
		return nil, diag.Newf(diag.UnresolvedReference, varref.Position,
			"undefined reference to variable `%s` in %s clause", varref.Name, name)
	}
	st.wrapTargetVolatile(pos)

	ui := &plan.UpdateItem{
		Variable:       varref.Name,
		EntityPosition: pos,
		Property:       prop.Name,
		Remove:         s.Remove,
	}
	if !s.Remove {
		val, err := c.exprc.Compile(item.Value, st, expr.KindSelectTarget)
		if err != nil {
			return nil, err
		}
		ui.ValuePosition = st.addHiddenTarget(volatileWrap(val), "__set_value")
	}
	return ui, nil
}

// transformDelete compiles DELETE. The deleted entities must be columns of
// the predecessor relation; deletion itself is deferred to execution through
// the plan blob.
func (c *Compiler) transformDelete(st *state, clause *ast.Clause) (*rel.Query, error) {
	d := clause.Node.(*ast.Delete)

	if clause.Prev == nil {
		return nil, diag.Newf(diag.MalformedPattern, d.Position,
			"DELETE cannot be the first clause in a query")
	}
	if _, err := c.transformPrevPassThrough(st, clause.Prev); err != nil {
		return nil, err
	}

	p := &plan.DeletePlan{Graph: c.cat.Graph(), Detach: d.Detach}
	for _, item := range d.Items {
		varref, ok := item.(*ast.Variable)
		if !ok {
			return nil, diag.Newf(diag.MalformedPattern, item.Pos(),
				"DELETE expects a variable reference")
		}
		pos := st.targetPosition(varref.Name)
		if pos < 0 {
			return nil, diag.Newf(diag.UnresolvedReference, varref.Position,
				"undefined reference to variable `%s` in DELETE clause", varref.Name)
		}
		st.wrapTargetVolatile(pos)
		p.Items = append(p.Items, plan.DeleteItem{
			Variable:       varref.Name,
			EntityPosition: pos,
		})
	}
	p.Terminal = clause.Next == nil

	blob, err := plan.EncodeDelete(p)
	if err != nil {
		return nil, diag.Newf(diag.Internal, d.Position, "failed to encode delete plan: %v", err)
	}
	st.addHiddenTarget(&rel.FuncExpr{
		Name:     "_delete_clause",
		Args:     []rel.Expr{&rel.Const{Value: blob}},
		Volatile: true,
	}, "__delete_clause")

	return st.finalize(nil), nil
}
