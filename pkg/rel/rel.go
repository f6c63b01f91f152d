// Package rel is the relational query representation produced by the
// compiler: target columns, scans, a join/filter predicate, and
// grouping/sort/limit clauses. The execution layer interprets these values
// against physical storage; nothing in this package touches storage itself.
package rel

// ScanKind distinguishes the two relation sources a compiled clause can
// read from.
type ScanKind int

const (
	// ScanLabel reads a label relation (vertex or edge storage).
	ScanLabel ScanKind = iota
	// ScanSubquery reads the relation produced by the previous clause.
	ScanSubquery
)

// EntityKind tags a label scan with the shape of its rows.
type EntityKind int

const (
	EntityVertex EntityKind = iota
	EntityEdge
)

// Vertex relation columns, in attribute order.
const (
	VertexColID    = 1
	VertexColProps = 2
)

// Edge relation columns, in attribute order.
const (
	EdgeColID      = 1
	EdgeColStartID = 2
	EdgeColEndID   = 3
	EdgeColProps   = 4
)

// Scan is one range-table entry of a compiled clause.
type Scan struct {
	Kind     ScanKind
	Alias    string
	Label    string     // ScanLabel only
	Entity   EntityKind // ScanLabel only
	Subquery *Query     // ScanSubquery only
}

// TargetEntry is one output column. Hidden entries exist only to carry sort
// keys or plan arguments; they are not visible to the following clause.
type TargetEntry struct {
	Expr   Expr
	Name   string
	Hidden bool
	// SortGroupRef links this entry to sort and group keys; zero means the
	// entry is neither sorted nor grouped on.
	SortGroupRef int
}

// SortKey orders the relation by the target entry carrying Ref.
type SortKey struct {
	Ref        int
	Descending bool
	NullsFirst bool
}

// GroupKey groups the relation by the target entry carrying Ref. When the
// same entry is also a sort key, the comparison semantics are inherited from
// the sort so one physical sort satisfies both clauses.
type GroupKey struct {
	Ref        int
	Descending bool
	NullsFirst bool
}

// Query is the compiled form of one clause. Each clause's query nests its
// predecessor as a ScanSubquery entry in Scans.
type Query struct {
	Targets  []*TargetEntry
	Scans    []*Scan
	Where    Expr // nil when the clause adds no predicate
	Sort     []SortKey
	Group    []GroupKey
	Distinct []int // sort-group refs; empty means no DISTINCT
	Skip     Expr
	Limit    Expr

	HasAggs bool
	// Terminal marks the last clause in the chain for the execution layer.
	Terminal bool
}

// Target returns the non-hidden entry with the given name, or nil.
func (q *Query) Target(name string) *TargetEntry {
	for _, te := range q.Targets {
		if !te.Hidden && te.Name == name {
			return te
		}
	}
	return nil
}

// TargetPosition returns the 1-based column position of the non-hidden entry
// with the given name, or -1. Positions count every entry, hidden included,
// since the executor addresses columns by absolute attribute number.
func (q *Query) TargetPosition(name string) int {
	for i, te := range q.Targets {
		if !te.Hidden && te.Name == name {
			return i + 1
		}
	}
	return -1
}

// AssignSortGroupRef gives te a stable ref shared by sort and group keys,
// allocating the next free one if the entry has none yet.
func (q *Query) AssignSortGroupRef(te *TargetEntry) int {
	if te.SortGroupRef > 0 {
		return te.SortGroupRef
	}
	max := 0
	for _, t := range q.Targets {
		if t.SortGroupRef > max {
			max = t.SortGroupRef
		}
	}
	te.SortGroupRef = max + 1
	return te.SortGroupRef
}
