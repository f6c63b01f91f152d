// Package catalog tracks graph labels and their storage relations. The
// compiler consults it to validate labels in MATCH patterns and to
// auto-create label storage for CREATE patterns.
package catalog

import (
	"fmt"

	"github.com/orneryd/nornql/pkg/rel"
)

// Kind distinguishes vertex labels from edge labels.
type Kind uint8

const (
	KindVertex Kind = iota
	KindEdge
)

func (k Kind) String() string {
	if k == KindEdge {
		return "edge"
	}
	return "vertex"
}

// Every graph carries two root labels; unlabeled pattern elements scan them,
// and new labels are created as their children.
const (
	DefaultVertexLabel = "_vertex"
	DefaultEdgeLabel   = "_edge"
)

// DefaultLabelFor returns the root label name for a kind.
func DefaultLabelFor(kind Kind) string {
	if kind == KindEdge {
		return DefaultEdgeLabel
	}
	return DefaultVertexLabel
}

// Label is a resolved catalog entry.
type Label struct {
	ID     int32
	Name   string
	Kind   Kind
	Parent string // "" for the root labels
}

// Relation is an open handle on a label's storage relation. It exposes the
// default expressions used when a CREATE pattern does not spell out an
// identity or property map.
type Relation struct {
	Label Label
}

// DefaultIDExpr is the identity-generation expression for new entities of
// this label. It is volatile: each evaluation draws a fresh graph id.
func (r *Relation) DefaultIDExpr() rel.Expr {
	return &rel.FuncExpr{
		Name:     "_graphid_nextval",
		Args:     []rel.Expr{&rel.Const{Value: int64(r.Label.ID)}},
		Volatile: true,
	}
}

// DefaultPropsExpr is the property expression for entities created without
// an explicit property map.
func (r *Relation) DefaultPropsExpr() rel.Expr {
	return &rel.Const{Value: map[string]interface{}{}}
}

// Catalog is the label/schema store consumed by the compiler. All methods
// are scoped to the graph the catalog was opened for.
type Catalog interface {
	// Graph names the graph this catalog describes.
	Graph() string
	// LabelExists reports whether the label is defined.
	LabelExists(name string) bool
	// ResolveLabel looks a label up by name.
	ResolveLabel(name string) (Label, bool)
	// CreateLabel defines a new label under the given parent. An empty
	// parent means the root label for the kind.
	CreateLabel(name string, kind Kind, parent string) (Label, error)
	// OpenLabelRelation opens the storage relation backing a label.
	OpenLabelRelation(name string) (*Relation, error)
}

func validateCreate(c Catalog, name string, parent string, kind Kind) (string, error) {
	if name == "" {
		return "", fmt.Errorf("label name must not be empty")
	}
	if c.LabelExists(name) {
		return "", fmt.Errorf("label %s already exists", name)
	}
	if parent == "" {
		parent = DefaultLabelFor(kind)
	}
	pl, ok := c.ResolveLabel(parent)
	if !ok {
		return "", fmt.Errorf("parent label %s does not exist", parent)
	}
	if pl.Kind != kind {
		return "", fmt.Errorf("parent label %s is a %s label, not %s", parent, pl.Kind, kind)
	}
	return parent, nil
}
