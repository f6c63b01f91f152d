package compile

import (
	"github.com/orneryd/nornql/pkg/ast"
	"github.com/orneryd/nornql/pkg/rel"
)

// EntityKind tags a registered pattern entity.
type EntityKind int

const (
	EntityVertex EntityKind = iota
	EntityEdge
)

func (k EntityKind) String() string {
	if k == EntityEdge {
		return "edge"
	}
	return "vertex"
}

// Entity is one pattern-element occurrence registered during compilation.
// Entities live in a single arena shared by the whole clause chain; each is
// tagged with the id of the scope that declared it, so "declared in the
// clause being compiled" is a comparison against the current scope id rather
// than a flag that has to be flipped when scopes advance. Once registered an
// entity is read-only.
type Entity struct {
	Kind  EntityKind
	Name  string // "" for anonymous occurrences
	Label string // label as written; "" when unlabeled
	// Expr is the value expression for the occurrence, or nil when the
	// element was left out of the join tree (anonymous, unconstrained) or
	// declared by CREATE with a deferred identity.
	Expr rel.Expr
	// ScanID is the 1-based scan the occurrence reads in its declaring
	// scope, or zero when it rides on another occurrence's columns.
	ScanID   int
	ClauseID int

	Node *ast.NodePattern // vertex occurrences
	Rel  *ast.RelPattern  // edge occurrences
}

// InJoinTree reports whether the occurrence contributes a value expression
// the join construction can reference.
func (e *Entity) InJoinTree() bool { return e.Expr != nil }

// registry is the shared entity arena. Every occurrence is appended, reused
// variables included, and lookup returns the first (declaring) occurrence.
type registry struct {
	entities []*Entity
}

func (r *registry) add(e *Entity) {
	r.entities = append(r.entities, e)
}

func (r *registry) find(name string) *Entity {
	if name == "" {
		return nil
	}
	for _, e := range r.entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}
