package embedder_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/soundprediction/ontoreason/pkg/embedder"
	"github.com/soundprediction/ontoreason/pkg/graph"
	"github.com/soundprediction/ontoreason/pkg/ontology"
	"github.com/soundprediction/ontoreason/pkg/types"
	"github.com/soundprediction/ontoreason/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() embedder.Config {
	cfg := embedder.NewDefaultConfig()
	cfg.Dimension = 32
	cfg.Epochs = 30
	return cfg
}

func animalGraph(t *testing.T) *graph.KnowledgeGraph {
	t.Helper()
	s := ontology.NewStatic()
	s.AddClass("Animal", "")
	s.AddClass("Dog", "", "Animal")
	s.AddProperty("owns", "Person", "Animal", "")
	g, err := graph.Build(s, nil)
	require.NoError(t, err)
	return g
}

// twoClusters builds two disconnected rings of four nodes with their own
// edge labels.
func twoClusters(t *testing.T) (*graph.KnowledgeGraph, []string, []string) {
	t.Helper()
	g := graph.New(nil)
	var left, right []string
	for i := 0; i < 4; i++ {
		left = append(left, fmt.Sprintf("left%d", i))
		right = append(right, fmt.Sprintf("right%d", i))
	}
	for _, ids := range [][]string{left, right} {
		for _, id := range ids {
			require.NoError(t, g.AddNode(types.KindClass, id, ""))
		}
	}
	for i := 0; i < 4; i++ {
		_, err := g.AddEdge(left[i], left[(i+1)%4], "leftLink")
		require.NoError(t, err)
		_, err = g.AddEdge(right[i], right[(i+1)%4], "rightLink")
		require.NoError(t, err)
	}
	return g, left, right
}

func TestCorpusFromGraph(t *testing.T) {
	g := animalGraph(t)
	cfg := embedder.NewDefaultConfig()
	corpus := embedder.CorpusFromGraph(g, cfg)

	// 3 edge sentences, 3 node sentences, 10 walks for each connected node
	assert.Len(t, corpus, 3+3+30)
	assert.Contains(t, corpus, []string{"Dog", types.EdgeSubclassOf, "Animal"})
	assert.Contains(t, corpus, []string{"owns", types.EdgeDomain, "Person"})
	assert.Contains(t, corpus, []string{"Dog"})

	for _, walk := range corpus[6:] {
		assert.Len(t, walk, cfg.WalkLength)
		for _, sym := range walk {
			assert.NotEqual(t, "Person", sym, "walks stay on nodes")
		}
	}

	again := embedder.CorpusFromGraph(g, cfg)
	assert.Equal(t, corpus, again)
}

func TestCorpusWithoutWalks(t *testing.T) {
	cfg := embedder.NewDefaultConfig()
	cfg.WalksPerNode = 0
	corpus := embedder.CorpusFromGraph(animalGraph(t), cfg)
	assert.Len(t, corpus, 6)
	assert.Equal(t, 3*3+3, corpus.Tokens())
}

func TestFitCoversEverySymbol(t *testing.T) {
	g := animalGraph(t)
	cfg := testConfig()
	model, err := embedder.Fit(embedder.CorpusFromGraph(g, cfg), cfg, nil)
	require.NoError(t, err)

	for _, sym := range []string{"Animal", "Dog", "owns", "Person", types.EdgeSubclassOf, types.EdgeDomain, types.EdgeRange} {
		v, err := model.Vector(sym)
		require.NoError(t, err, sym)
		assert.Len(t, v, cfg.Dimension)
	}
	assert.Equal(t, cfg.Dimension, model.Dimensions())

	_, err = model.Vector("Unicorn")
	assert.ErrorIs(t, err, embedder.ErrUnknownSymbol)
	var unknown *embedder.UnknownSymbolError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Unicorn", unknown.Symbol)
}

func TestFitIsDeterministic(t *testing.T) {
	g := animalGraph(t)
	cfg := testConfig()
	a, err := embedder.Fit(embedder.CorpusFromGraph(g, cfg), cfg, nil)
	require.NoError(t, err)
	b, err := embedder.Fit(embedder.CorpusFromGraph(g, cfg), cfg, nil)
	require.NoError(t, err)

	for _, sym := range a.Symbols() {
		va, _ := a.Vector(sym)
		vb, _ := b.Vector(sym)
		assert.Equal(t, va, vb, sym)
	}
}

func TestFitSeparatesDisconnectedClusters(t *testing.T) {
	g, left, right := twoClusters(t)

	for _, seed := range []uint64{1, 42, 1234} {
		cfg := testConfig()
		cfg.Seed = seed
		model, err := embedder.Fit(embedder.CorpusFromGraph(g, cfg), cfg, nil)
		require.NoError(t, err)

		vec := func(id string) []float32 {
			v, err := model.Vector(id)
			require.NoError(t, err)
			return v
		}

		var intra, inter float64
		var nIntra, nInter int
		for _, group := range [][]string{left, right} {
			for i := range group {
				for j := i + 1; j < len(group); j++ {
					intra += utils.CosineSimilarity(vec(group[i]), vec(group[j]))
					nIntra++
				}
			}
		}
		for _, l := range left {
			for _, r := range right {
				inter += utils.CosineSimilarity(vec(l), vec(r))
				nInter++
			}
		}
		assert.Greater(t, intra/float64(nIntra), inter/float64(nInter), "seed %d", seed)
	}
}

func TestFitSubclassCloserThanUnrelatedClass(t *testing.T) {
	s := ontology.NewStatic()
	s.AddClass("Animal", "")
	s.AddClass("Dog", "", "Animal")
	s.AddClass("Vehicle", "")
	s.AddClass("Car", "", "Vehicle")
	s.AddClass("Plant", "")
	s.AddClass("Tree", "", "Plant")
	g, err := graph.Build(s, nil)
	require.NoError(t, err)

	for _, seed := range []uint64{1, 7, 42, 1234} {
		cfg := testConfig()
		cfg.Seed = seed
		model, err := embedder.Fit(embedder.CorpusFromGraph(g, cfg), cfg, nil)
		require.NoError(t, err)

		sim := func(a, b string) float64 {
			va, err := model.Vector(a)
			require.NoError(t, err)
			vb, err := model.Vector(b)
			require.NoError(t, err)
			return utils.CosineSimilarity(va, vb)
		}
		for _, pair := range [][2]string{{"Animal", "Dog"}, {"Vehicle", "Car"}, {"Plant", "Tree"}} {
			related := sim(pair[0], pair[1])
			for _, other := range []string{"Animal", "Vehicle", "Plant"} {
				if other == pair[0] {
					continue
				}
				assert.Greater(t, related, sim(pair[1], other), "seed %d: %s vs %s", seed, pair[1], other)
			}
		}
	}
}

func TestFitEmptyCorpus(t *testing.T) {
	model, err := embedder.Fit(nil, testConfig(), nil)
	require.NoError(t, err)
	assert.Empty(t, model.Symbols())

	_, err = model.EmbedText("anything")
	assert.True(t, embedder.IsUnknownSymbol(err))
}

func TestFitRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*embedder.Config)
	}{
		{name: "zero dimension", mutate: func(c *embedder.Config) { c.Dimension = 0 }},
		{name: "zero window", mutate: func(c *embedder.Config) { c.Window = 0 }},
		{name: "zero epochs", mutate: func(c *embedder.Config) { c.Epochs = 0 }},
		{name: "negative samples", mutate: func(c *embedder.Config) { c.Negative = -1 }},
		{name: "zero learning rate", mutate: func(c *embedder.Config) { c.LearningRate = 0 }},
		{name: "negative walks", mutate: func(c *embedder.Config) { c.WalksPerNode = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := embedder.NewDefaultConfig()
			tt.mutate(&cfg)
			_, err := embedder.Fit(embedder.Corpus{{"a", "b"}}, cfg, nil)
			assert.ErrorIs(t, err, embedder.ErrInvalidConfig)
		})
	}
}

func TestEmbedText(t *testing.T) {
	cfg := testConfig()
	g, err := graph.Build(ontology.Onboarding(), nil)
	require.NoError(t, err)
	model, err := embedder.Fit(embedder.CorpusFromGraph(g, cfg), cfg, nil)
	require.NoError(t, err)

	user, _ := model.Vector("User")
	goal, _ := model.Vector("UserGoal")

	t.Run("exact symbol", func(t *testing.T) {
		v, err := model.EmbedText("User")
		require.NoError(t, err)
		assert.Equal(t, user, v)
	})

	t.Run("case insensitive symbol", func(t *testing.T) {
		v, err := model.EmbedText("  usergoal ")
		require.NoError(t, err)
		assert.Equal(t, goal, v)
	})

	t.Run("token mean", func(t *testing.T) {
		v, err := model.EmbedText("which user has a usergoal?")
		require.NoError(t, err)
		assert.InDeltaSlice(t, utils.MeanVector(user, goal), v, 1e-6)
	})

	t.Run("unknown text", func(t *testing.T) {
		_, err := model.EmbedText("quantum chromodynamics")
		assert.ErrorIs(t, err, embedder.ErrUnknownSymbol)
	})

	t.Run("client interface", func(t *testing.T) {
		var client embedder.Client = model
		vs, err := client.Embed(context.Background(), []string{"User", "UserGoal"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{user, goal}, vs)

		_, err = client.EmbedSingle(context.Background(), "nothing known")
		assert.ErrorIs(t, err, embedder.ErrUnknownSymbol)
	})
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "hasOnboardingStep", want: []string{"has", "Onboarding", "Step"}},
		{in: "dog owner", want: []string{"dog", "owner"}},
		{in: "xsd:string", want: []string{"xsd", "string"}},
		{in: "HTTPServer", want: []string{"HTTP", "Server"}},
		{in: "subclass_of", want: []string{"subclass", "of"}},
		{in: "step2Done", want: []string{"step2", "Done"}},
		{in: "  ", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, embedder.Tokenize(tt.in))
		})
	}
}
