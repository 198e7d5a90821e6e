package hierarchy

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBuildDegenerateInputs(t *testing.T) {
	t.Run("no communities", func(t *testing.T) {
		d, err := Build(nil, DefaultThreshold)
		require.NoError(t, err)
		assert.Empty(t, d.Leaves)
		assert.Empty(t, d.Merges)
		assert.Equal(t, 0, d.Levels())
		assert.Nil(t, d.Roots())
	})

	t.Run("one community", func(t *testing.T) {
		d, err := Build([][]float32{{1, 0}}, DefaultThreshold)
		require.NoError(t, err)
		assert.Len(t, d.Leaves, 1)
		assert.Empty(t, d.Merges)
		assert.Equal(t, 1, d.Levels())
		assert.Equal(t, []Cluster{{ID: 0, Members: []int{0}, Embedding: []float32{1, 0}}}, d.Roots())
	})
}

func TestBuildMergesClosestPairs(t *testing.T) {
	embeddings := [][]float32{
		{1, 0},
		{0, 1},
		{0.9, 0.1},
		{0.1, 0.9},
	}
	d, err := Build(embeddings, DefaultThreshold)
	require.NoError(t, err)

	// 0+2 and 1+3 merge, the two halves are orthogonal and stay apart
	require.Len(t, d.Merges, 2)
	assert.Equal(t, 4, d.Merges[0].ID)
	assert.Equal(t, 5, d.Merges[1].ID)
	assert.ElementsMatch(t, [][2]int{{0, 2}, {1, 3}}, [][2]int{
		{d.Merges[0].Left, d.Merges[0].Right},
		{d.Merges[1].Left, d.Merges[1].Right},
	})
	for _, m := range d.Merges {
		assert.LessOrEqual(t, m.Distance, DefaultThreshold)
	}

	roots := d.Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, []int{0, 2}, roots[0].Members)
	assert.Equal(t, []int{1, 3}, roots[1].Members)
	assert.InDeltaSlice(t, []float32{0.95, 0.05}, roots[0].Embedding, 1e-6)

	if diff := cmp.Diff([]int{0, 1, 2, 3}, clusterIDs(d.Level(0))); diff != "" {
		t.Errorf("level 0 mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, d.Level(1), 3)
	assert.Nil(t, d.Level(3))
}

func TestBuildTieBreaksOnLowerIDs(t *testing.T) {
	// three identical vectors: every pair is at distance 0
	embeddings := [][]float32{{1, 1}, {1, 1}, {1, 1}}
	d, err := Build(embeddings, DefaultThreshold)
	require.NoError(t, err)

	require.Len(t, d.Merges, 2)
	assert.Equal(t, Merge{ID: 3, Left: 0, Right: 1, Distance: d.Merges[0].Distance}, d.Merges[0])
	assert.Equal(t, 2, d.Merges[1].Left)
	assert.Equal(t, 3, d.Merges[1].Right)
	assert.Equal(t, []int{0, 1, 2}, d.Roots()[0].Members)
}

func TestBuildThreshold(t *testing.T) {
	embeddings := [][]float32{{1, 0}, {0, 1}}

	d, err := Build(embeddings, 0.5)
	require.NoError(t, err)
	assert.Empty(t, d.Merges, "orthogonal vectors are at distance 1")

	d, err = Build(embeddings, 1.0)
	require.NoError(t, err)
	assert.Len(t, d.Merges, 1)

	for _, bad := range []float64{-0.1, 2.5, math.NaN()} {
		_, err := Build(embeddings, bad)
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	}
}

func TestAverageLinkage(t *testing.T) {
	// after 0 and 1 merge, cluster 2 sits at the mean of its distances to
	// both, not at the distance to the merged embedding
	embeddings := [][]float32{{1, 0}, {0.8, 0.6}, {0, 1}}
	d, err := Build(embeddings, 2)
	require.NoError(t, err)
	require.Len(t, d.Merges, 2)

	want := (1.0 + (1 - 0.6)) / 2
	assert.InDelta(t, want, d.Merges[1].Distance, 1e-6)
}

func TestCommunityEmbeddings(t *testing.T) {
	vectors := map[string][]float32{
		"a": {1, 0},
		"b": {0, 1},
		"c": {2, 2},
	}
	got := CommunityEmbeddings([][]string{{"a", "b"}, {"c", "missing"}, {"missing"}}, vectors)
	assert.Equal(t, [][]float32{{0.5, 0.5}, {2, 2}, nil}, got)
}

func TestSummaries(t *testing.T) {
	defer goleak.VerifyNone(t)

	d, err := Build([][]float32{{1, 0}, {0.9, 0.1}, {0, 1}}, DefaultThreshold)
	require.NoError(t, err)
	labels := [][]string{{"Dog", "Animal"}, {"Cat"}, {"owns"}}

	summaries, err := Summaries(context.Background(), d, labels, nil, 2)
	require.NoError(t, err)
	assert.Len(t, summaries, d.Len())
	assert.Equal(t, "Animal, Dog", summaries[0])
	assert.Equal(t, "Animal, Cat, Dog", summaries[3])
	assert.Equal(t, "owns", summaries[2])
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, []string) (string, error) {
	return "", errors.New("model unavailable")
}

func TestSummariesError(t *testing.T) {
	defer goleak.VerifyNone(t)

	d, err := Build([][]float32{{1, 0}, {0, 1}}, DefaultThreshold)
	require.NoError(t, err)

	_, err = Summaries(context.Background(), d, [][]string{{"a"}, {"b"}}, failingSummarizer{}, 0)
	assert.ErrorContains(t, err, "model unavailable")
}

func TestListSummarizerMaxItems(t *testing.T) {
	s := ListSummarizer{MaxItems: 2}
	text, err := s.Summarize(context.Background(), []string{"c", "a", "b", "d"})
	require.NoError(t, err)
	assert.Equal(t, "a, b and 2 more", text)
}

func clusterIDs(clusters []Cluster) []int {
	ids := make([]int, 0, len(clusters))
	for _, c := range clusters {
		ids = append(ids, c.ID)
	}
	return ids
}
