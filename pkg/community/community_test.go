package community

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/soundprediction/ontoreason/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// undirected builds a symmetric projection from an edge list.
func undirected(nodes []string, edges [][2]string) Projection {
	weights := make(map[string]map[string]int)
	for _, n := range nodes {
		weights[n] = make(map[string]int)
	}
	for _, e := range edges {
		weights[e[0]][e[1]]++
		weights[e[1]][e[0]]++
	}
	p := make(Projection, len(weights))
	for id, nbrs := range weights {
		list := []types.Neighbor{}
		for n, c := range nbrs {
			list = append(list, types.Neighbor{NodeID: n, EdgeCount: c})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].NodeID < list[j].NodeID })
		p[id] = list
	}
	return p
}

func twoTriangles(bridge bool) Projection {
	edges := [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}, {"d", "e"}, {"d", "f"}, {"e", "f"}}
	if bridge {
		edges = append(edges, [2]string{"c", "d"})
	}
	return undirected([]string{"a", "b", "c", "d", "e", "f", "z"}, edges)
}

func assertTotal(t *testing.T, projection Projection, p Partition) {
	t.Helper()
	assert.Len(t, p, len(projection))
	for id := range projection {
		c, ok := p[id]
		assert.True(t, ok, "node %s unassigned", id)
		assert.GreaterOrEqual(t, c, 0)
		assert.Less(t, c, p.Count())
	}
}

func TestLouvainSplitsBridgedTriangles(t *testing.T) {
	projection := twoTriangles(true)
	p := (&Louvain{}).Partition(projection)

	assertTotal(t, projection, p)
	assert.Equal(t, Partition{"a": 0, "b": 0, "c": 0, "d": 1, "e": 1, "f": 1, "z": 2}, p)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d", "e", "f"}, {"z"}}, p.Groups())

	q := Modularity(projection, p)
	assert.InDelta(t, 2*(6.0/14-0.25), q, 1e-9)

	singletons := Partition{}
	for i, id := range sortedIDs(projection) {
		singletons[id] = i
	}
	assert.Greater(t, q, Modularity(projection, singletons))
}

func TestLabelPropagationDisconnectedComponents(t *testing.T) {
	projection := twoTriangles(false)
	p := (&LabelPropagation{}).Partition(projection)

	assertTotal(t, projection, p)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d", "e", "f"}, {"z"}}, p.Groups())
}

func TestPartitionersOnRandomGraphs(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	partitioners := map[string]Partitioner{
		AlgorithmLouvain:          &Louvain{},
		AlgorithmLabelPropagation: &LabelPropagation{},
	}

	for trial := 0; trial < 20; trial++ {
		n := 1 + rng.IntN(40)
		nodes := make([]string, n)
		for i := range nodes {
			nodes[i] = fmt.Sprintf("n%02d", i)
		}
		var edges [][2]string
		for k := rng.IntN(2 * n); k > 0; k-- {
			a, b := nodes[rng.IntN(n)], nodes[rng.IntN(n)]
			if a != b {
				edges = append(edges, [2]string{a, b})
			}
		}
		projection := undirected(nodes, edges)

		for name, partitioner := range partitioners {
			p := partitioner.Partition(projection)
			assertTotal(t, projection, p)
			assert.Equal(t, p, partitioner.Partition(projection), "%s is deterministic", name)

			// ids are ordered by smallest member
			groups := p.Groups()
			for i := 1; i < len(groups); i++ {
				assert.Less(t, groups[i-1][0], groups[i][0], name)
			}
		}
	}
}

func TestEmptyAndEdgelessProjections(t *testing.T) {
	for _, partitioner := range []Partitioner{&Louvain{}, &LabelPropagation{}} {
		assert.Empty(t, partitioner.Partition(Projection{}))

		edgeless := undirected([]string{"x", "y"}, nil)
		p := partitioner.Partition(edgeless)
		assert.Equal(t, Partition{"x": 0, "y": 1}, p)
		assert.Equal(t, 0.0, Modularity(edgeless, p))
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		algorithm string
		want      Partitioner
		wantErr   bool
	}{
		{name: "default", algorithm: "", want: &Louvain{}},
		{name: "louvain", algorithm: AlgorithmLouvain, want: &Louvain{}},
		{name: "label propagation", algorithm: AlgorithmLabelPropagation, want: &LabelPropagation{}},
		{name: "unknown", algorithm: "girvan_newman", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Algorithm = tt.algorithm
			p, err := New(cfg, nil)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
		})
	}
}
