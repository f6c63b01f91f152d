// Package plan holds the compiled write plans that CREATE, SET, REMOVE, and
// DELETE clauses defer to execution time. Plans are plain value structs with
// a versioned msgpack encoding, so a plan blob can be copied across
// allocation contexts (prepared statements, plan caches, processes) without
// carrying live pointers.
package plan

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// FormatVersion is bumped whenever the encoded layout changes.
const FormatVersion = 1

// NodeKind tags a mutation target as a vertex or an edge.
type NodeKind uint8

const (
	NodeVertex NodeKind = iota
	NodeEdge
)

// EdgeDir is the declared direction of a created edge. CREATE requires an
// explicit direction, so there is no "none" value here.
type EdgeDir int8

const (
	DirRight EdgeDir = 1  // (a)-[e]->(b)
	DirLeft  EdgeDir = -1 // (a)<-[e]-(b)
)

// TargetNode is one element of a CREATE pattern. Column positions are
// 1-based attribute numbers into the clause's projection; zero means the
// column does not exist for this node.
//
// New vertices and all edges carry a deferred identity: their real value is
// only known at execution time, so the projection holds a volatile
// placeholder at TuplePosition and the executor fills it in. Edges reference
// their endpoint vertices through the endpoints' Token values, which makes
// the dependency explicit rather than inferred from pattern order.
type TargetNode struct {
	Kind  NodeKind `msgpack:"kind"`
	Label string   `msgpack:"label"`
	// Insert distinguishes new entities from references to an entity bound
	// by an earlier clause or element.
	Insert   bool   `msgpack:"insert"`
	Variable string `msgpack:"var,omitempty"`
	// Token identifies this node within its plan; edges use StartToken and
	// EndToken to name their endpoint vertices.
	Token      string  `msgpack:"token"`
	StartToken string  `msgpack:"start_token,omitempty"`
	EndToken   string  `msgpack:"end_token,omitempty"`
	Dir        EdgeDir `msgpack:"dir,omitempty"`

	// TuplePosition is the projected output slot for the entity value
	// (placeholder for new entities, prior column for existing ones).
	TuplePosition int `msgpack:"tuple_pos"`
	// IDPosition and PropsPosition locate the identity-generation and
	// property expressions in the projection. Zero for existing entities.
	IDPosition    int `msgpack:"id_pos"`
	PropsPosition int `msgpack:"props_pos"`

	// SameClause is set on existing vertices whose variable was declared in
	// the clause being compiled; the executor can skip existence checks.
	SameClause bool `msgpack:"same_clause,omitempty"`
	InPathVar  bool `msgpack:"in_path,omitempty"`
}

// CreatePath is one path of a CREATE pattern, in pattern order.
type CreatePath struct {
	Nodes []TargetNode `msgpack:"nodes"`
	// PathPosition is the projected slot of the named path value, or zero.
	PathPosition int    `msgpack:"path_pos"`
	Variable     string `msgpack:"var,omitempty"`
}

// CreatePlan is the full compiled CREATE clause.
type CreatePlan struct {
	Version     uint8        `msgpack:"v"`
	Graph       string       `msgpack:"graph"`
	Paths       []CreatePath `msgpack:"paths"`
	HasPrevious bool         `msgpack:"has_prev"`
	Terminal    bool         `msgpack:"terminal"`
}

// UpdateItem is one resolved SET or REMOVE instruction.
type UpdateItem struct {
	Variable string `msgpack:"var"`
	// EntityPosition is the predecessor output column holding the entity.
	EntityPosition int    `msgpack:"entity_pos"`
	Property       string `msgpack:"prop"`
	Remove         bool   `msgpack:"remove"`
	// ValuePosition is the projected column holding the new value (SET only).
	ValuePosition int `msgpack:"value_pos"`
}

// UpdatePlan is the compiled SET or REMOVE clause.
type UpdatePlan struct {
	Version  uint8        `msgpack:"v"`
	Clause   string       `msgpack:"clause"` // "SET" or "REMOVE"
	Graph    string       `msgpack:"graph"`
	Items    []UpdateItem `msgpack:"items"`
	Terminal bool         `msgpack:"terminal"`
}

// DeleteItem is one resolved DELETE target.
type DeleteItem struct {
	Variable       string `msgpack:"var"`
	EntityPosition int    `msgpack:"entity_pos"`
}

// DeletePlan is the compiled DELETE clause.
type DeletePlan struct {
	Version  uint8        `msgpack:"v"`
	Graph    string       `msgpack:"graph"`
	Detach   bool         `msgpack:"detach"`
	Items    []DeleteItem `msgpack:"items"`
	Terminal bool         `msgpack:"terminal"`
}

// EncodeCreate serializes a create plan into a relocatable blob.
func EncodeCreate(p *CreatePlan) ([]byte, error) {
	p.Version = FormatVersion
	return encode(p)
}

// DecodeCreate is the executor-side inverse of EncodeCreate.
func DecodeCreate(data []byte) (*CreatePlan, error) {
	var p CreatePlan
	if err := decode(data, &p, p.versionPtr()); err != nil {
		return nil, err
	}
	return &p, nil
}

// EncodeUpdate serializes a SET/REMOVE plan.
func EncodeUpdate(p *UpdatePlan) ([]byte, error) {
	p.Version = FormatVersion
	return encode(p)
}

// DecodeUpdate is the executor-side inverse of EncodeUpdate.
func DecodeUpdate(data []byte) (*UpdatePlan, error) {
	var p UpdatePlan
	if err := decode(data, &p, p.versionPtr()); err != nil {
		return nil, err
	}
	return &p, nil
}

// EncodeDelete serializes a delete plan.
func EncodeDelete(p *DeletePlan) ([]byte, error) {
	p.Version = FormatVersion
	return encode(p)
}

// DecodeDelete is the executor-side inverse of EncodeDelete.
func DecodeDelete(data []byte) (*DeletePlan, error) {
	var p DeletePlan
	if err := decode(data, &p, p.versionPtr()); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *CreatePlan) versionPtr() *uint8 { return &p.Version }
func (p *UpdatePlan) versionPtr() *uint8 { return &p.Version }
func (p *DeletePlan) versionPtr() *uint8 { return &p.Version }

func encode(v interface{}) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	return data, nil
}

func decode(data []byte, v interface{}, version *uint8) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode plan: %w", err)
	}
	if *version != FormatVersion {
		return fmt.Errorf("plan format version %d, expected %d", *version, FormatVersion)
	}
	return nil
}
