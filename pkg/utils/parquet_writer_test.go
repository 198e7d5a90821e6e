package utils

import (
	"context"
	"os"
	"testing"

	"github.com/soundprediction/ontoreason/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParquetGraphWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewParquetGraphWriter(dir)
	require.NoError(t, err)

	community := 3
	nodes := []*types.Node{
		{ID: "Dog", Kind: types.KindClass, Embedding: []float32{0.1, 0.2}, Community: &community, Description: "a dog"},
		{ID: "owns", Kind: types.KindProperty},
	}
	ctx := context.Background()

	require.NoError(t, w.WriteNodes(ctx, nodes))
	require.NoError(t, w.WriteEdges(ctx, []types.Edge{{Source: "Dog", Target: "Animal", Type: types.EdgeSubclassOf}}))
	require.NoError(t, w.WriteFacts(ctx, []types.Triple{{Subject: "rex", Predicate: "rdf:type", Object: "Dog"}}))

	for _, p := range []string{w.NodesPath(), w.EdgesPath(), w.FactsPath()} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	rows, err := w.ReadNodes()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Dog", rows[0].ID)
	require.NotNil(t, rows[0].Community)
	assert.Equal(t, int64(3), *rows[0].Community)
	assert.Nil(t, rows[1].Community)
}
