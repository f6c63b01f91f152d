package rel

import (
	"fmt"
	"sort"
	"strings"
)

// Explain renders a query as an indented plan description, mainly for the
// CLI and for debugging compiled output.
func Explain(q *Query) string {
	var b strings.Builder
	explainQuery(&b, q, 0)
	return b.String()
}

func explainQuery(b *strings.Builder, q *Query, depth int) {
	pad := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%squery", pad)
	if q.Terminal {
		b.WriteString(" (terminal)")
	}
	b.WriteByte('\n')

	for _, te := range q.Targets {
		marker := ""
		if te.Hidden {
			marker = " [hidden]"
		}
		fmt.Fprintf(b, "%s  target %s%s: %s\n", pad, te.Name, marker, ExprString(te.Expr))
	}
	for i, s := range q.Scans {
		switch s.Kind {
		case ScanLabel:
			kind := "vertex"
			if s.Entity == EntityEdge {
				kind = "edge"
			}
			fmt.Fprintf(b, "%s  scan %d: %s label %q as %s\n", pad, i+1, kind, s.Label, s.Alias)
		case ScanSubquery:
			fmt.Fprintf(b, "%s  scan %d: subquery as %s\n", pad, i+1, s.Alias)
			explainQuery(b, s.Subquery, depth+2)
		}
	}
	if q.Where != nil {
		fmt.Fprintf(b, "%s  where: %s\n", pad, ExprString(q.Where))
	}
	for _, g := range q.Group {
		fmt.Fprintf(b, "%s  group by: %s%s\n", pad, refName(q, g.Ref), orderSuffix(g.Descending, g.NullsFirst))
	}
	for _, s := range q.Sort {
		fmt.Fprintf(b, "%s  order by: %s%s\n", pad, refName(q, s.Ref), orderSuffix(s.Descending, s.NullsFirst))
	}
	if len(q.Distinct) > 0 {
		refs := append([]int(nil), q.Distinct...)
		sort.Ints(refs)
		names := make([]string, len(refs))
		for i, r := range refs {
			names[i] = refName(q, r)
		}
		fmt.Fprintf(b, "%s  distinct on: %s\n", pad, strings.Join(names, ", "))
	}
	if q.Skip != nil {
		fmt.Fprintf(b, "%s  skip: %s\n", pad, ExprString(q.Skip))
	}
	if q.Limit != nil {
		fmt.Fprintf(b, "%s  limit: %s\n", pad, ExprString(q.Limit))
	}
}

func refName(q *Query, ref int) string {
	for _, te := range q.Targets {
		if te.SortGroupRef == ref {
			return te.Name
		}
	}
	return fmt.Sprintf("ref(%d)", ref)
}

func orderSuffix(desc, nullsFirst bool) string {
	s := ""
	if desc {
		s += " desc"
	}
	if nullsFirst {
		s += " nulls first"
	}
	return s
}

// ExprString renders an expression in a compact readable form.
func ExprString(e Expr) string {
	switch v := e.(type) {
	case nil:
		return "<nil>"
	case *Var:
		up := strings.Repeat("^", v.Up)
		if v.Name != "" {
			return fmt.Sprintf("$%s%d.%d(%s)", up, v.Rel, v.Col, v.Name)
		}
		return fmt.Sprintf("$%s%d.%d", up, v.Rel, v.Col)
	case *Const:
		if b, ok := v.Value.([]byte); ok {
			return fmt.Sprintf("blob(%d bytes)", len(b))
		}
		if s, ok := v.Value.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%v", v.Value)
	case *Param:
		return "$" + v.Name
	case *FuncExpr:
		if v.Star {
			return v.Name + "(*)"
		}
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = ExprString(a)
		}
		return v.Name + "(" + strings.Join(args, ", ") + ")"
	case *OpExpr:
		return "(" + ExprString(v.Left) + " " + v.Op + " " + ExprString(v.Right) + ")"
	case *BoolExpr:
		if v.Op == BoolNot {
			return "NOT " + ExprString(v.Args[0])
		}
		op := " AND "
		if v.Op == BoolOr {
			op = " OR "
		}
		parts := make([]string, len(v.Args))
		for i, a := range v.Args {
			parts[i] = ExprString(a)
		}
		return "(" + strings.Join(parts, op) + ")"
	}
	return "<unknown>"
}
