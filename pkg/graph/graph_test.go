package graph

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/soundprediction/ontoreason/pkg/ontology"
	"github.com/soundprediction/ontoreason/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func animalOntology() *ontology.Static {
	s := ontology.NewStatic()
	s.AddClass("Animal", "")
	s.AddClass("Dog", "", "Animal")
	s.AddProperty("owns", "Person", "Animal", "")
	return s
}

func TestBuildAnimalOntology(t *testing.T) {
	g, err := Build(animalOntology(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 3, g.EdgeCount())
	assert.ElementsMatch(t, []types.Edge{
		{Source: "Dog", Target: "Animal", Type: types.EdgeSubclassOf},
		{Source: "owns", Target: "Person", Type: types.EdgeDomain},
		{Source: "owns", Target: "Animal", Type: types.EdgeRange},
	}, g.Edges())

	// Person is an edge target but never declared as a class
	assert.False(t, g.HasNode("Person"))
	_, err = g.Node("Person")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	dog, err := g.Node("Dog")
	require.NoError(t, err)
	assert.Equal(t, types.KindClass, dog.Kind)
	owns, err := g.Node("owns")
	require.NoError(t, err)
	assert.Equal(t, types.KindProperty, owns.Kind)
}

func TestBuildIsIdempotent(t *testing.T) {
	a, err := Build(ontology.Onboarding(), nil)
	require.NoError(t, err)
	b, err := Build(ontology.Onboarding(), nil)
	require.NoError(t, err)

	assert.Equal(t, a.NodeIDs(), b.NodeIDs())
	assert.Equal(t, a.Edges(), b.Edges())
}

func TestBuildNodeCountInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 25; trial++ {
		s := ontology.NewStatic()
		nClasses := 1 + rng.IntN(30)
		nProps := rng.IntN(15)
		for i := 0; i < nClasses; i++ {
			name := fmt.Sprintf("C%d", i)
			if i > 0 && rng.IntN(2) == 0 {
				s.AddClass(name, "", fmt.Sprintf("C%d", rng.IntN(i)))
			} else {
				s.AddClass(name, "")
			}
		}
		for i := 0; i < nProps; i++ {
			s.AddProperty(fmt.Sprintf("p%d", i),
				fmt.Sprintf("C%d", rng.IntN(nClasses)),
				fmt.Sprintf("C%d", rng.IntN(nClasses)), "")
		}

		g, err := Build(s, nil)
		require.NoError(t, err)
		assert.Equal(t, nClasses+nProps, g.NodeCount(), "trial %d", trial)

		seen := make(map[string]bool)
		for _, id := range g.NodeIDs() {
			assert.False(t, seen[id], "duplicate node %s", id)
			seen[id] = true
		}
	}
}

func TestBuildDuplicateSymbol(t *testing.T) {
	s := ontology.NewStatic()
	s.AddClass("thing", "")
	s.AddProperty("thing", "", "", "")

	_, err := Build(s, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ontology.ErrOntologyLoad)
	assert.ErrorIs(t, err, ErrDuplicateNode)
}

type failingAdapter struct{ ontology.Static }

func (failingAdapter) Classes() ([]string, error) { return nil, errors.New("source unreadable") }

func TestBuildAdapterError(t *testing.T) {
	_, err := Build(&failingAdapter{}, nil)
	assert.ErrorIs(t, err, ontology.ErrOntologyLoad)

	_, err = Build(nil, nil)
	assert.ErrorIs(t, err, ontology.ErrOntologyLoad)
}

func TestBuildRelations(t *testing.T) {
	s := ontology.Onboarding()
	s.AddRelation(ontology.Relation{ID: "alice_step1", Label: "hasOnboardingStep", Source: "User", Target: "OnboardingStep", Description: "first step"})

	g, err := Build(s, nil)
	require.NoError(t, err)

	rel, err := g.Node("alice_step1")
	require.NoError(t, err)
	assert.Equal(t, types.KindRelation, rel.Kind)
	assert.Equal(t, "first step", rel.Description)
	assert.Len(t, g.EdgesFrom("alice_step1"), 1)
	assert.Len(t, g.EdgesTo("alice_step1"), 1)
	assert.Contains(t, g.EdgeTypes(), "hasOnboardingStep")
}

func TestAddEdgeDeduplicates(t *testing.T) {
	g := New(nil)
	added, err := g.AddEdge("a", "b", "x")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = g.AddEdge("a", "b", "x")
	require.NoError(t, err)
	assert.False(t, added)

	// parallel edge with a different type is allowed
	added, err = g.AddEdge("a", "b", "y")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 2, g.EdgeCount())

	_, err = g.AddEdge("a", "", "x")
	assert.ErrorIs(t, err, types.ErrEmptyID)
}

func TestProjection(t *testing.T) {
	g := New(nil)
	for _, id := range []string{"a", "b", "c", "lonely"} {
		require.NoError(t, g.AddNode(types.KindClass, id, ""))
	}
	g.AddEdge("a", "b", "x")
	g.AddEdge("b", "a", "y")
	g.AddEdge("b", "c", "x")
	g.AddEdge("c", "c", "self")
	g.AddEdge("c", "external", "x")

	p := g.Projection()
	assert.Len(t, p, 4)
	assert.Equal(t, []types.Neighbor{{NodeID: "b", EdgeCount: 2}}, p["a"])
	assert.Equal(t, []types.Neighbor{{NodeID: "a", EdgeCount: 2}, {NodeID: "c", EdgeCount: 1}}, p["b"])
	assert.Equal(t, []types.Neighbor{{NodeID: "b", EdgeCount: 1}}, p["c"])
	assert.Empty(t, p["lonely"])
}

func TestAssignDerivedState(t *testing.T) {
	g, err := Build(animalOntology(), nil)
	require.NoError(t, err)
	version := g.Version()

	g.AssignEmbeddings(map[string][]float32{"Dog": {1, 0}, "Animal": {0, 1}})
	g.AssignCommunities(map[string]int{"Dog": 0, "Animal": 0, "owns": 1})

	dog, _ := g.Node("Dog")
	assert.Equal(t, []float32{1, 0}, dog.Embedding)
	c, ok := dog.CommunityID()
	assert.True(t, ok)
	assert.Equal(t, 0, c)

	owns, _ := g.Node("owns")
	assert.False(t, owns.HasEmbedding())

	// returned nodes are copies
	dog.Embedding[0] = 42
	again, _ := g.Node("Dog")
	assert.Equal(t, float32(1), again.Embedding[0])

	stats := g.Stats()
	assert.Equal(t, 3, stats.Nodes)
	assert.Equal(t, 2, stats.Embedded)
	assert.Equal(t, 2, stats.Communities)
	assert.Equal(t, version, g.Version(), "derived state does not bump the structural version")
}

func TestSetCommunity(t *testing.T) {
	g, err := Build(animalOntology(), nil)
	require.NoError(t, err)
	g.AssignCommunities(map[string]int{"Dog": 0, "Animal": 0, "owns": 1})
	require.NoError(t, g.AddNode(types.KindCase, "case-1", "ship weekly"))
	version := g.Version()

	require.NoError(t, g.SetCommunity("case-1", 2))
	assert.ErrorIs(t, g.SetCommunity("missing", 3), ErrNodeNotFound)

	got := make(map[string]int)
	for _, n := range g.Nodes() {
		c, ok := n.CommunityID()
		require.True(t, ok, n.ID)
		got[n.ID] = c
	}
	want := map[string]int{"Dog": 0, "Animal": 0, "owns": 1, "case-1": 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("communities mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, version, g.Version())
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	defer goleak.VerifyNone(t)

	g, err := Build(ontology.Onboarding(), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = g.Nodes()
				_ = g.Projection()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			id := fmt.Sprintf("case-%d", j)
			_ = g.AddNode(types.KindCase, id, "")
			_, _ = g.AddEdge(id, "User", "about")
		}
	}()
	wg.Wait()

	assert.Equal(t, 15+100, g.NodeCount())
}
