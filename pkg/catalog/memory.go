package catalog

import "fmt"

// MemoryCatalog is an in-memory Catalog for embedded use and tests.
type MemoryCatalog struct {
	graph  string
	labels map[string]Label
	nextID int32
}

var _ Catalog = (*MemoryCatalog)(nil)

// NewMemory creates a catalog for the given graph, seeded with the two root
// labels.
func NewMemory(graph string) *MemoryCatalog {
	c := &MemoryCatalog{
		graph:  graph,
		labels: make(map[string]Label),
		nextID: 1,
	}
	c.seed(DefaultVertexLabel, KindVertex)
	c.seed(DefaultEdgeLabel, KindEdge)
	return c
}

func (c *MemoryCatalog) seed(name string, kind Kind) {
	c.labels[name] = Label{ID: c.nextID, Name: name, Kind: kind}
	c.nextID++
}

func (c *MemoryCatalog) Graph() string { return c.graph }

func (c *MemoryCatalog) LabelExists(name string) bool {
	_, ok := c.labels[name]
	return ok
}

func (c *MemoryCatalog) ResolveLabel(name string) (Label, bool) {
	l, ok := c.labels[name]
	return l, ok
}

func (c *MemoryCatalog) CreateLabel(name string, kind Kind, parent string) (Label, error) {
	parent, err := validateCreate(c, name, parent, kind)
	if err != nil {
		return Label{}, err
	}
	l := Label{ID: c.nextID, Name: name, Kind: kind, Parent: parent}
	c.nextID++
	c.labels[name] = l
	return l, nil
}

func (c *MemoryCatalog) OpenLabelRelation(name string) (*Relation, error) {
	l, ok := c.labels[name]
	if !ok {
		return nil, fmt.Errorf("label %s does not exist", name)
	}
	return &Relation{Label: l}, nil
}
