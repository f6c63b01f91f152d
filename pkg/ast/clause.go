package ast

// ClauseNode is a tagged clause value: Match, Create, Return, With, Set
// (which also covers REMOVE), Delete, or SubPattern.
type ClauseNode interface {
	clauseNode()
	Pos() int
}

// Clause is a node in the doubly linked clause chain. Each clause consumes
// the relation produced by its predecessor.
type Clause struct {
	Node ClauseNode
	Prev *Clause
	Next *Clause
}

// Chain links clause nodes into a doubly linked list and returns the head.
func Chain(nodes ...ClauseNode) *Clause {
	var head, tail *Clause
	for _, n := range nodes {
		c := &Clause{Node: n}
		if tail == nil {
			head = c
		} else {
			tail.Next = c
			c.Prev = tail
		}
		tail = c
	}
	return head
}

// Tail walks to the last clause in the chain.
func (c *Clause) Tail() *Clause {
	for c.Next != nil {
		c = c.Next
	}
	return c
}

// Match is the MATCH clause. Where is the optional inline WHERE predicate.
type Match struct {
	Pattern  []*Path
	Where    Expr
	Position int
}

// Create is the CREATE clause.
type Create struct {
	Pattern  []*Path
	Position int
}

// ReturnItem is one projection target with an optional alias.
type ReturnItem struct {
	Expr     Expr
	Alias    string
	Position int
}

// SortItem is one ORDER BY key. Descending sorts place nulls last, matching
// the comparison the grouping step inherits.
type SortItem struct {
	Expr       Expr
	Descending bool
	Position   int
}

// Return is the RETURN clause.
type Return struct {
	Distinct bool
	Items    []*ReturnItem
	OrderBy  []*SortItem
	Skip     Expr
	Limit    Expr
	Position int
}

// With is the WITH clause: a RETURN with an optional trailing WHERE.
type With struct {
	Distinct bool
	Items    []*ReturnItem
	OrderBy  []*SortItem
	Skip     Expr
	Limit    Expr
	Where    Expr
	Position int
}

// SetItem is one SET or REMOVE item. Target must be a Property reference
// (variable.property). Merge marks the unsupported += map-merge form.
type SetItem struct {
	Target   Expr
	Value    Expr // nil for REMOVE
	Merge    bool
	Position int
}

// Set is the SET clause; with Remove it doubles as the REMOVE clause.
type Set struct {
	Items    []*SetItem
	Remove   bool
	Position int
}

// ClauseName names the clause for diagnostics.
func (s *Set) ClauseName() string {
	if s.Remove {
		return "REMOVE"
	}
	return "SET"
}

// Delete is the DELETE clause. Items must be plain variable references.
type Delete struct {
	Detach   bool
	Items    []Expr
	Position int
}

// SubPattern is a pattern compiled as a standalone sub-relation, used for
// EXISTS-style sub-queries.
type SubPattern struct {
	Pattern  []*Path
	Position int
}

func (*Match) clauseNode()      {}
func (*Create) clauseNode()     {}
func (*Return) clauseNode()     {}
func (*With) clauseNode()       {}
func (*Set) clauseNode()        {}
func (*Delete) clauseNode()     {}
func (*SubPattern) clauseNode() {}

func (c *Match) Pos() int      { return c.Position }
func (c *Create) Pos() int     { return c.Position }
func (c *Return) Pos() int     { return c.Position }
func (c *With) Pos() int       { return c.Position }
func (c *Set) Pos() int        { return c.Position }
func (c *Delete) Pos() int     { return c.Position }
func (c *SubPattern) Pos() int { return c.Position }
