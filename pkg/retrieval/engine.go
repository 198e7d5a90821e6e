// Package retrieval answers free-text queries against an embedded,
// partitioned knowledge graph.
//
// A query is embedded once and then matched twice: locally against every
// node embedding and globally against every cluster of the community
// dendrogram, where a matching cluster contributes all nodes of its
// communities. The two hit sets are merged, deduplicated, ranked by each
// node's own similarity to the query and cut to the configured top K.
package retrieval

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/soundprediction/ontoreason/pkg/hierarchy"
	"github.com/soundprediction/ontoreason/pkg/types"
	"github.com/soundprediction/ontoreason/pkg/utils"
)

// QueryEmbedder maps query text into the node embedding space.
type QueryEmbedder interface {
	EmbedText(text string) ([]float32, error)
}

// Snapshot is the derived state a query runs against. It must not be
// mutated while a query is running.
type Snapshot struct {
	Nodes []*types.Node
	// Groups lists the member node ids of each community, indexed by
	// community id.
	Groups     [][]string
	Dendrogram *hierarchy.Dendrogram
	Embedder   QueryEmbedder
}

// Engine runs local and global search.
type Engine struct {
	config Config
	logger *slog.Logger
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{config: cfg, logger: logger.With("component", "retrieval")}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// ProcessQuery embeds text and returns the ranked hits with a summary. An
// empty snapshot yields an empty result. A query that cannot be embedded
// returns an error wrapping embedder.ErrUnknownSymbol.
func (e *Engine) ProcessQuery(snapshot *Snapshot, text string) (*types.QueryResult, error) {
	if snapshot == nil || len(snapshot.Nodes) == 0 {
		return types.EmptyQueryResult(), nil
	}
	if snapshot.Embedder == nil {
		return nil, fmt.Errorf("snapshot has no query embedder")
	}

	query, err := snapshot.Embedder.EmbedText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	local := e.LocalSearch(snapshot, query)
	global := e.GlobalSearch(snapshot, query)
	results := e.Merge(local, global)

	e.logger.Debug("Query processed",
		"query", text,
		"local_hits", len(local),
		"global_hits", len(global),
		"results", len(results))
	return &types.QueryResult{Results: results, Summary: Summarize(results)}, nil
}

// LocalSearch returns every node whose embedding is more similar to query
// than the local threshold.
func (e *Engine) LocalSearch(snapshot *Snapshot, query []float32) []types.ScoredNode {
	var hits []types.ScoredNode
	for _, n := range snapshot.Nodes {
		if !n.HasEmbedding() {
			continue
		}
		score := utils.CosineSimilarity(n.Embedding, query)
		if score > e.config.LocalThreshold {
			hits = append(hits, types.ScoredNode{ID: n.ID, Description: n.Description, Score: score, Source: types.SourceLocal})
		}
	}
	return hits
}

// GlobalSearch walks the dendrogram level by level and scores each cluster
// once. A cluster more similar to query than the global threshold
// contributes every embedded node of its communities, scored by the
// node's own similarity.
func (e *Engine) GlobalSearch(snapshot *Snapshot, query []float32) []types.ScoredNode {
	d := snapshot.Dendrogram
	if d == nil {
		return nil
	}

	byID := make(map[string]*types.Node, len(snapshot.Nodes))
	for _, n := range snapshot.Nodes {
		byID[n.ID] = n
	}

	scored := make(map[int]bool)
	included := make(map[string]bool)
	var hits []types.ScoredNode
	for level := 0; level < d.Levels(); level++ {
		for _, cluster := range d.Level(level) {
			if scored[cluster.ID] {
				continue
			}
			scored[cluster.ID] = true
			if utils.CosineSimilarity(cluster.Embedding, query) <= e.config.GlobalThreshold {
				continue
			}
			for _, community := range cluster.Members {
				if community < 0 || community >= len(snapshot.Groups) {
					continue
				}
				for _, id := range snapshot.Groups[community] {
					n, ok := byID[id]
					if !ok || included[id] || !n.HasEmbedding() {
						continue
					}
					included[id] = true
					hits = append(hits, types.ScoredNode{
						ID:          id,
						Description: n.Description,
						Score:       utils.CosineSimilarity(n.Embedding, query),
						Source:      types.SourceGlobal,
					})
				}
			}
		}
	}
	return hits
}

// Merge unions local and global hits by id, sorts them by descending score
// with ties broken by id and truncates to TopK.
func (e *Engine) Merge(local, global []types.ScoredNode) []types.ScoredNode {
	merged := make(map[string]types.ScoredNode, len(local)+len(global))
	for _, h := range local {
		merged[h.ID] = h
	}
	for _, h := range global {
		if existing, ok := merged[h.ID]; ok {
			existing.Source = types.SourceBoth
			merged[h.ID] = existing
			continue
		}
		merged[h.ID] = h
	}

	results := make([]types.ScoredNode, 0, len(merged))
	for _, h := range merged {
		results = append(results, h)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > e.config.TopK {
		results = results[:e.config.TopK]
	}
	return results
}

// Summarize renders one "- id: description" line per result.
func Summarize(results []types.ScoredNode) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("- %s: %s", r.ID, r.Description))
	}
	return strings.Join(lines, "\n")
}
