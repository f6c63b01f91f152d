package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestCreatePlanRoundTrip(t *testing.T) {
	p := &CreatePlan{
		Graph:       "g",
		HasPrevious: true,
		Terminal:    true,
		Paths: []CreatePath{{
			Variable:     "p",
			PathPosition: 4,
			Nodes: []TargetNode{
				{Kind: NodeVertex, Label: "Person", Insert: true, Variable: "a", Token: "t1", TuplePosition: 1, IDPosition: 2, PropsPosition: 3, InPathVar: true},
				{Kind: NodeEdge, Label: "KNOWS", Insert: true, Token: "t2", StartToken: "t1", EndToken: "t3", Dir: DirLeft},
				{Kind: NodeVertex, Insert: false, Variable: "b", Token: "t3", TuplePosition: 5, SameClause: true},
			},
		}},
	}

	blob, err := EncodeCreate(p)
	require.NoError(t, err)

	got, err := DecodeCreate(blob)
	require.NoError(t, err)
	assert.Equal(t, uint8(FormatVersion), got.Version)
	assert.Equal(t, p.Graph, got.Graph)
	assert.Equal(t, p.Paths, got.Paths)
	assert.True(t, got.HasPrevious)
	assert.True(t, got.Terminal)
}

func TestUpdatePlanRoundTrip(t *testing.T) {
	p := &UpdatePlan{
		Clause: "REMOVE",
		Graph:  "g",
		Items:  []UpdateItem{{Variable: "n", EntityPosition: 1, Property: "age", Remove: true}},
	}
	blob, err := EncodeUpdate(p)
	require.NoError(t, err)
	got, err := DecodeUpdate(blob)
	require.NoError(t, err)
	assert.Equal(t, p.Clause, got.Clause)
	assert.Equal(t, p.Items, got.Items)
}

func TestDeletePlanRoundTrip(t *testing.T) {
	p := &DeletePlan{
		Graph:  "g",
		Detach: true,
		Items:  []DeleteItem{{Variable: "n", EntityPosition: 2}},
	}
	blob, err := EncodeDelete(p)
	require.NoError(t, err)
	got, err := DecodeDelete(blob)
	require.NoError(t, err)
	assert.True(t, got.Detach)
	assert.Equal(t, p.Items, got.Items)
	assert.False(t, got.Terminal)
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	blob, err := msgpack.Marshal(&CreatePlan{Version: FormatVersion + 1})
	require.NoError(t, err)
	_, err = DecodeCreate(blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeUpdate([]byte{0xc1, 0xff, 0x00})
	require.Error(t, err)
}
