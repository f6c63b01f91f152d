package ast

// Direction of a relationship pattern relative to pattern order.
type Direction int

const (
	DirNone  Direction = iota // -[e]-
	DirRight                  // -[e]->
	DirLeft                   // <-[e]-
)

func (d Direction) String() string {
	switch d {
	case DirRight:
		return "right"
	case DirLeft:
		return "left"
	default:
		return "none"
	}
}

// PatternElement is one occurrence in a path: a NodePattern or a RelPattern.
type PatternElement interface {
	patternElement()
	Pos() int
}

// NodePattern is a vertex occurrence, e.g. (n:Person {name: 'Ann'}).
type NodePattern struct {
	Variable string // "" if anonymous
	Label    string // "" if unlabeled
	Props    Expr   // property-constraint map, or nil
	Position int
}

// VarLengthRange is the *..n quantifier on a relationship. The compiler
// rejects variable-length relationships; this exists so a parser can hand
// them over and get a proper diagnostic back.
type VarLengthRange struct {
	Min *int
	Max *int
}

// RelPattern is an edge occurrence, e.g. -[e:KNOWS]->.
type RelPattern struct {
	Variable  string
	Label     string
	Props     Expr
	Direction Direction
	VarLength *VarLengthRange // nil unless a quantifier was written
	Position  int
}

func (*NodePattern) patternElement() {}
func (*RelPattern) patternElement()  {}

func (n *NodePattern) Pos() int { return n.Position }
func (r *RelPattern) Pos() int  { return r.Position }

// Path is an alternating vertex/edge/vertex sequence of odd length >= 1.
// A named path binds Variable to a path value constructed from every
// element, which requires at least two vertices and one edge.
type Path struct {
	Variable string // "" if unnamed
	Elements []PatternElement
	Position int
}

// Edges counts the relationship elements in the path.
func (p *Path) Edges() int {
	n := 0
	for _, el := range p.Elements {
		if _, ok := el.(*RelPattern); ok {
			n++
		}
	}
	return n
}
