package catalog

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// BadgerCatalog is a persistent Catalog backed by BadgerDB. Labels survive
// process restarts so CREATE-time auto-created labels stay resolvable.
type BadgerCatalog struct {
	graph string
	db    *badger.DB
	seq   *badger.Sequence
	owned bool // whether Close should close db
}

var _ Catalog = (*BadgerCatalog)(nil)

type labelRecord struct {
	ID     int32  `msgpack:"id"`
	Kind   Kind   `msgpack:"kind"`
	Parent string `msgpack:"parent"`
}

// BadgerCatalogOptions configures OpenBadger.
type BadgerCatalogOptions struct {
	DataDir  string
	Graph    string
	InMemory bool
	// SyncWrites trades write speed for durability of label creation.
	SyncWrites bool
}

// OpenBadger opens (creating if needed) the catalog for a graph and seeds the
// root labels.
func OpenBadger(opts BadgerCatalogOptions) (*BadgerCatalog, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir).WithLogger(nil)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog store: %w", err)
	}

	c, err := newBadgerCatalog(db, opts.Graph)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// NewBadgerWithDB wraps an already-open BadgerDB, for embedding the catalog
// in a database that owns the store.
func NewBadgerWithDB(db *badger.DB, graph string) (*BadgerCatalog, error) {
	return newBadgerCatalog(db, graph)
}

func newBadgerCatalog(db *badger.DB, graph string) (*BadgerCatalog, error) {
	if graph == "" {
		graph = "default"
	}
	seq, err := db.GetSequence([]byte("catalog:seq:"+graph), 16)
	if err != nil {
		return nil, fmt.Errorf("failed to open label sequence: %w", err)
	}
	c := &BadgerCatalog{graph: graph, db: db, seq: seq}

	if err := c.seedDefaults(); err != nil {
		_ = seq.Release()
		return nil, err
	}
	return c, nil
}

func (c *BadgerCatalog) seedDefaults() error {
	for _, root := range []struct {
		name string
		kind Kind
	}{
		{DefaultVertexLabel, KindVertex},
		{DefaultEdgeLabel, KindEdge},
	} {
		if c.LabelExists(root.name) {
			continue
		}
		if err := c.putLabel(root.name, root.kind, ""); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the label sequence and, when the catalog owns the store,
// closes it.
func (c *BadgerCatalog) Close() error {
	err := c.seq.Release()
	if c.owned {
		if cerr := c.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (c *BadgerCatalog) key(name string) []byte {
	return []byte("catalog:label:" + c.graph + ":" + name)
}

func (c *BadgerCatalog) Graph() string { return c.graph }

func (c *BadgerCatalog) LabelExists(name string) bool {
	_, ok := c.ResolveLabel(name)
	return ok
}

func (c *BadgerCatalog) ResolveLabel(name string) (Label, bool) {
	var rec labelRecord
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return Label{}, false
	}
	return Label{ID: rec.ID, Name: name, Kind: rec.Kind, Parent: rec.Parent}, true
}

func (c *BadgerCatalog) CreateLabel(name string, kind Kind, parent string) (Label, error) {
	parent, err := validateCreate(c, name, parent, kind)
	if err != nil {
		return Label{}, err
	}
	if err := c.putLabel(name, kind, parent); err != nil {
		return Label{}, err
	}
	l, ok := c.ResolveLabel(name)
	if !ok {
		return Label{}, fmt.Errorf("label %s vanished after create", name)
	}
	return l, nil
}

func (c *BadgerCatalog) putLabel(name string, kind Kind, parent string) error {
	id, err := c.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate label id: %w", err)
	}
	// sequence starts at 0; label ids start at 1
	rec := labelRecord{ID: int32(id) + 1, Kind: kind, Parent: parent}
	data, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("failed to encode label %s: %w", name, err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		_, getErr := txn.Get(c.key(name))
		if getErr == nil {
			return fmt.Errorf("label %s already exists", name)
		}
		if !errors.Is(getErr, badger.ErrKeyNotFound) {
			return getErr
		}
		return txn.Set(c.key(name), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store label %s: %w", name, err)
	}
	return nil
}

func (c *BadgerCatalog) OpenLabelRelation(name string) (*Relation, error) {
	l, ok := c.ResolveLabel(name)
	if !ok {
		return nil, fmt.Errorf("label %s does not exist", name)
	}
	return &Relation{Label: l}, nil
}
