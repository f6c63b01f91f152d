package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/nornql/pkg/ast"
)

// fixtureFile is the YAML surface the CLI accepts in place of query text:
// a label catalog plus a clause chain. It exists so queries can be compiled
// and inspected without a parser in the loop.
type fixtureFile struct {
	Graph  string                 `yaml:"graph"`
	Labels []fixtureLabel         `yaml:"labels"`
	Query  []map[string]yaml.Node `yaml:"query"`
}

type fixtureLabel struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"` // "vertex" or "edge"
	Parent string `yaml:"parent"`
}

func loadFixture(path string) (*fixtureFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(f.Query) == 0 {
		return nil, fmt.Errorf("%s contains no query clauses", path)
	}
	return &f, nil
}

// buildChain lowers the YAML clause list into the ast clause chain.
func buildChain(items []map[string]yaml.Node) (*ast.Clause, error) {
	nodes := make([]ast.ClauseNode, 0, len(items))
	for i, item := range items {
		if len(item) != 1 {
			return nil, fmt.Errorf("query item %d must have exactly one clause key", i)
		}
		for key, val := range item {
			n, err := buildClause(key, &val)
			if err != nil {
				return nil, fmt.Errorf("clause %d (%s): %w", i, key, err)
			}
			nodes = append(nodes, n)
		}
	}
	return ast.Chain(nodes...), nil
}

func buildClause(key string, n *yaml.Node) (ast.ClauseNode, error) {
	switch key {
	case "match":
		var s matchSpec
		if err := n.Decode(&s); err != nil {
			return nil, err
		}
		pattern, err := buildPattern(s.Pattern)
		if err != nil {
			return nil, err
		}
		m := &ast.Match{Pattern: pattern}
		if s.Where != nil {
			if m.Where, err = buildExpr(&s.Where.node); err != nil {
				return nil, err
			}
		}
		return m, nil

	case "create":
		var s matchSpec
		if err := n.Decode(&s); err != nil {
			return nil, err
		}
		pattern, err := buildPattern(s.Pattern)
		if err != nil {
			return nil, err
		}
		return &ast.Create{Pattern: pattern}, nil

	case "sub_pattern":
		var s matchSpec
		if err := n.Decode(&s); err != nil {
			return nil, err
		}
		pattern, err := buildPattern(s.Pattern)
		if err != nil {
			return nil, err
		}
		return &ast.SubPattern{Pattern: pattern}, nil

	case "return", "with":
		var s projectionSpec
		if err := n.Decode(&s); err != nil {
			return nil, err
		}
		return buildProjection(key, &s)

	case "set", "remove":
		var s setSpec
		if err := n.Decode(&s); err != nil {
			return nil, err
		}
		return buildSet(key == "remove", &s)

	case "delete":
		var s deleteSpec
		if err := n.Decode(&s); err != nil {
			return nil, err
		}
		return buildDelete(&s)
	}
	return nil, fmt.Errorf("unknown clause %q", key)
}

type matchSpec struct {
	Pattern []pathSpec `yaml:"pattern"`
	Where   *exprSpec  `yaml:"where"`
}

type pathSpec struct {
	Var      string        `yaml:"var"`
	Elements []elementSpec `yaml:"elements"`
}

type elementSpec struct {
	Node *nodeSpec `yaml:"node"`
	Rel  *relSpec  `yaml:"rel"`
}

type nodeSpec struct {
	Var   string    `yaml:"var"`
	Label string    `yaml:"label"`
	Props yaml.Node `yaml:"props"`
}

type relSpec struct {
	Var       string      `yaml:"var"`
	Label     string      `yaml:"label"`
	Dir       string      `yaml:"dir"` // "right", "left", "none" (default)
	Props     yaml.Node   `yaml:"props"`
	VarLength *varLenSpec `yaml:"var_length"`
}

type varLenSpec struct {
	Min *int `yaml:"min"`
	Max *int `yaml:"max"`
}

func buildPattern(paths []pathSpec) ([]*ast.Path, error) {
	out := make([]*ast.Path, 0, len(paths))
	for _, ps := range paths {
		p := &ast.Path{Variable: ps.Var}
		for _, el := range ps.Elements {
			switch {
			case el.Node != nil && el.Rel != nil:
				return nil, fmt.Errorf("pattern element cannot be both a node and a rel")
			case el.Node != nil:
				props, err := buildPropsMap(&el.Node.Props)
				if err != nil {
					return nil, err
				}
				p.Elements = append(p.Elements, &ast.NodePattern{
					Variable: el.Node.Var,
					Label:    el.Node.Label,
					Props:    props,
				})
			case el.Rel != nil:
				props, err := buildPropsMap(&el.Rel.Props)
				if err != nil {
					return nil, err
				}
				dir, err := parseDir(el.Rel.Dir)
				if err != nil {
					return nil, err
				}
				rp := &ast.RelPattern{
					Variable:  el.Rel.Var,
					Label:     el.Rel.Label,
					Props:     props,
					Direction: dir,
				}
				if el.Rel.VarLength != nil {
					rp.VarLength = &ast.VarLengthRange{
						Min: el.Rel.VarLength.Min,
						Max: el.Rel.VarLength.Max,
					}
				}
				p.Elements = append(p.Elements, rp)
			default:
				return nil, fmt.Errorf("pattern element must be a node or a rel")
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func parseDir(s string) (ast.Direction, error) {
	switch s {
	case "", "none":
		return ast.DirNone, nil
	case "right":
		return ast.DirRight, nil
	case "left":
		return ast.DirLeft, nil
	}
	return ast.DirNone, fmt.Errorf("unknown direction %q", s)
}

type projectionSpec struct {
	Distinct bool       `yaml:"distinct"`
	Items    []itemSpec `yaml:"items"`
	OrderBy  []sortSpec `yaml:"order_by"`
	Skip     *exprSpec  `yaml:"skip"`
	Limit    *exprSpec  `yaml:"limit"`
	Where    *exprSpec  `yaml:"where"` // WITH only
}

type itemSpec struct {
	Expr exprSpec `yaml:"expr"`
	As   string   `yaml:"as"`
}

type sortSpec struct {
	Expr exprSpec `yaml:"expr"`
	Desc bool     `yaml:"desc"`
}

func buildProjection(key string, s *projectionSpec) (ast.ClauseNode, error) {
	items := make([]*ast.ReturnItem, 0, len(s.Items))
	for _, it := range s.Items {
		e, err := buildExpr(&it.Expr.node)
		if err != nil {
			return nil, err
		}
		items = append(items, &ast.ReturnItem{Expr: e, Alias: it.As})
	}
	var orderBy []*ast.SortItem
	for _, o := range s.OrderBy {
		e, err := buildExpr(&o.Expr.node)
		if err != nil {
			return nil, err
		}
		orderBy = append(orderBy, &ast.SortItem{Expr: e, Descending: o.Desc})
	}
	var skip, limit, where ast.Expr
	var err error
	if s.Skip != nil {
		if skip, err = buildExpr(&s.Skip.node); err != nil {
			return nil, err
		}
	}
	if s.Limit != nil {
		if limit, err = buildExpr(&s.Limit.node); err != nil {
			return nil, err
		}
	}
	if key == "with" {
		if s.Where != nil {
			if where, err = buildExpr(&s.Where.node); err != nil {
				return nil, err
			}
		}
		return &ast.With{
			Distinct: s.Distinct, Items: items, OrderBy: orderBy,
			Skip: skip, Limit: limit, Where: where,
		}, nil
	}
	if s.Where != nil {
		return nil, fmt.Errorf("RETURN does not take a where")
	}
	return &ast.Return{
		Distinct: s.Distinct, Items: items, OrderBy: orderBy,
		Skip: skip, Limit: limit,
	}, nil
}

type setSpec struct {
	Items []setItemSpec `yaml:"items"`
}

type setItemSpec struct {
	Target exprSpec  `yaml:"target"`
	Value  *exprSpec `yaml:"value"`
	Merge  bool      `yaml:"merge"`
}

func buildSet(remove bool, s *setSpec) (ast.ClauseNode, error) {
	items := make([]*ast.SetItem, 0, len(s.Items))
	for _, it := range s.Items {
		target, err := buildExpr(&it.Target.node)
		if err != nil {
			return nil, err
		}
		si := &ast.SetItem{Target: target, Merge: it.Merge}
		if it.Value != nil {
			if si.Value, err = buildExpr(&it.Value.node); err != nil {
				return nil, err
			}
		}
		items = append(items, si)
	}
	return &ast.Set{Items: items, Remove: remove}, nil
}

type deleteSpec struct {
	Detach bool       `yaml:"detach"`
	Items  []exprSpec `yaml:"items"`
}

func buildDelete(s *deleteSpec) (ast.ClauseNode, error) {
	d := &ast.Delete{Detach: s.Detach}
	for _, it := range s.Items {
		e, err := buildExpr(&it.node)
		if err != nil {
			return nil, err
		}
		d.Items = append(d.Items, e)
	}
	return d, nil
}

// exprSpec delays expression decoding so scalars, operator trees, and maps
// can share one YAML shape.
type exprSpec struct {
	node yaml.Node
}

func (e *exprSpec) UnmarshalYAML(n *yaml.Node) error {
	e.node = *n
	return nil
}

// buildExpr lowers a YAML node into an expression:
//
//	42, "text", true        literals
//	{var: n}                variable reference
//	{param: name}           query parameter
//	{prop: {of: E, name: p}} property access
//	{fn: {name: f, args: [...], star: bool}}
//	{op: {op: "=", left: E, right: E}}
//	{not: E}
//	{neg: E}
//	{map: {k: E, ...}}      property-map literal
//	{list: [E, ...]}        list literal
func buildExpr(n *yaml.Node) (ast.Expr, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return buildLiteral(n)
	case yaml.SequenceNode:
		var elems []ast.Expr
		for _, c := range n.Content {
			e, err := buildExpr(c)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return &ast.ListExpr{Elems: elems}, nil
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return nil, fmt.Errorf("expression mapping must have exactly one key")
		}
		key := n.Content[0].Value
		val := n.Content[1]
		return buildExprForm(key, val)
	}
	return nil, fmt.Errorf("unsupported expression node")
}

func buildExprForm(key string, val *yaml.Node) (ast.Expr, error) {
	switch key {
	case "var":
		return &ast.Variable{Name: val.Value}, nil

	case "param":
		return &ast.Parameter{Name: val.Value}, nil

	case "prop":
		var s struct {
			Of   exprSpec `yaml:"of"`
			Name string   `yaml:"name"`
		}
		if err := val.Decode(&s); err != nil {
			return nil, err
		}
		of, err := buildExpr(&s.Of.node)
		if err != nil {
			return nil, err
		}
		return &ast.Property{Expr: of, Name: s.Name}, nil

	case "fn":
		var s struct {
			Name string     `yaml:"name"`
			Args []exprSpec `yaml:"args"`
			Star bool       `yaml:"star"`
		}
		if err := val.Decode(&s); err != nil {
			return nil, err
		}
		fc := &ast.FuncCall{Name: s.Name, Star: s.Star}
		for _, a := range s.Args {
			e, err := buildExpr(&a.node)
			if err != nil {
				return nil, err
			}
			fc.Args = append(fc.Args, e)
		}
		return fc, nil

	case "op":
		var s struct {
			Op    string    `yaml:"op"`
			Left  exprSpec  `yaml:"left"`
			Right *exprSpec `yaml:"right"`
		}
		if err := val.Decode(&s); err != nil {
			return nil, err
		}
		left, err := buildExpr(&s.Left.node)
		if err != nil {
			return nil, err
		}
		if s.Right == nil {
			return &ast.UnaryOp{Op: s.Op, Operand: left}, nil
		}
		right, err := buildExpr(&s.Right.node)
		if err != nil {
			return nil, err
		}
		return &ast.BinaryOp{Op: s.Op, Left: left, Right: right}, nil

	case "not":
		operand, err := buildExpr(val)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: "NOT", Operand: operand}, nil

	case "neg":
		operand, err := buildExpr(val)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: "-", Operand: operand}, nil

	case "map":
		return buildMapExpr(val)

	case "list":
		return buildExpr(val)
	}
	return nil, fmt.Errorf("unknown expression form %q", key)
}

func buildLiteral(n *yaml.Node) (ast.Expr, error) {
	var v interface{}
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	switch tv := v.(type) {
	case int:
		v = int64(tv)
	case nil, bool, int64, float64, string:
	default:
		return nil, fmt.Errorf("unsupported literal %T", v)
	}
	return &ast.Literal{Value: v}, nil
}

// buildMapExpr keeps key order, which matters for property-map display.
func buildMapExpr(n *yaml.Node) (ast.Expr, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("map expression must be a mapping")
	}
	m := &ast.MapExpr{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		val, err := buildExpr(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		m.Keys = append(m.Keys, n.Content[i].Value)
		m.Values = append(m.Values, val)
	}
	return m, nil
}

// buildPropsMap handles the props shorthand on pattern elements: a plain
// mapping becomes a property-map literal, {param: name} a parameter.
func buildPropsMap(n *yaml.Node) (ast.Expr, error) {
	if n == nil || n.IsZero() {
		return nil, nil
	}
	if n.Kind == yaml.MappingNode && len(n.Content) == 2 && n.Content[0].Value == "param" {
		return &ast.Parameter{Name: n.Content[1].Value}, nil
	}
	return buildMapExpr(n)
}
