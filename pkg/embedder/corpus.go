package embedder

import (
	"math/rand/v2"

	"github.com/soundprediction/ontoreason/pkg/graph"
)

// Corpus is a list of symbol sentences.
type Corpus [][]string

// Tokens returns the total number of symbols in the corpus.
func (c Corpus) Tokens() int {
	n := 0
	for _, s := range c {
		n += len(s)
	}
	return n
}

// CorpusFromGraph generates the training corpus of a graph: one
// [source, type, target] sentence per edge, one single-symbol sentence per
// node and cfg.WalksPerNode uniform random walks of cfg.WalkLength nodes
// from every node over the undirected projection.
func CorpusFromGraph(g *graph.KnowledgeGraph, cfg Config) Corpus {
	edges := g.Edges()
	ids := g.NodeIDs()
	corpus := make(Corpus, 0, len(edges)+len(ids)*(1+cfg.WalksPerNode))

	for _, e := range edges {
		corpus = append(corpus, []string{e.Source, e.Type, e.Target})
	}
	for _, id := range ids {
		corpus = append(corpus, []string{id})
	}

	if cfg.WalksPerNode == 0 || cfg.WalkLength < 2 {
		return corpus
	}

	projection := g.Projection()
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	for w := 0; w < cfg.WalksPerNode; w++ {
		for _, start := range ids {
			if len(projection[start]) == 0 {
				continue
			}
			walk := make([]string, 0, cfg.WalkLength)
			walk = append(walk, start)
			current := start
			for len(walk) < cfg.WalkLength {
				nbrs := projection[current]
				if len(nbrs) == 0 {
					break
				}
				current = nbrs[rng.IntN(len(nbrs))].NodeID
				walk = append(walk, current)
			}
			corpus = append(corpus, walk)
		}
	}
	return corpus
}
