// Package community partitions the undirected projection of a knowledge
// graph into disjoint communities.
//
// Two partitioners are provided: Louvain modularity optimization (the
// default) and weighted label propagation. Both are deterministic and
// return a total mapping: every node of the projection gets exactly one
// community, isolated nodes become singletons, and community ids are
// renumbered 0..k-1 ordered by each community's smallest member id.
package community

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/soundprediction/ontoreason/pkg/types"
)

// Algorithm names accepted by New.
const (
	AlgorithmLouvain          = "louvain"
	AlgorithmLabelPropagation = "label_propagation"
)

// ErrUnknownAlgorithm is returned by New for an unsupported algorithm.
var ErrUnknownAlgorithm = errors.New("unknown community algorithm")

// Projection is an undirected weighted adjacency keyed by node id.
type Projection = map[string][]types.Neighbor

// Partition maps node ids to community ids.
type Partition map[string]int

// Count returns the number of distinct communities.
func (p Partition) Count() int {
	seen := make(map[int]struct{})
	for _, c := range p {
		seen[c] = struct{}{}
	}
	return len(seen)
}

// Groups returns the members of each community, indexed by community id,
// with members sorted.
func (p Partition) Groups() [][]string {
	groups := make([][]string, p.Count())
	for id, c := range p {
		if c >= 0 && c < len(groups) {
			groups[c] = append(groups[c], id)
		}
	}
	for _, g := range groups {
		sort.Strings(g)
	}
	return groups
}

// Partitioner assigns every node of a projection to a community.
type Partitioner interface {
	Partition(projection Projection) Partition
}

// Config selects and tunes a partitioner.
type Config struct {
	// Algorithm is "louvain" or "label_propagation".
	Algorithm string `mapstructure:"algorithm" json:"algorithm"`
	// MaxPasses bounds the number of Louvain aggregation levels.
	MaxPasses int `mapstructure:"max_passes" json:"max_passes"`
	// MaxIterations bounds local-move sweeps per level, or label
	// propagation rounds.
	MaxIterations int `mapstructure:"max_iterations" json:"max_iterations"`
}

// NewDefaultConfig returns the Louvain defaults.
func NewDefaultConfig() Config {
	return Config{
		Algorithm:     AlgorithmLouvain,
		MaxPasses:     10,
		MaxIterations: 100,
	}
}

// New returns the partitioner named by cfg.Algorithm.
func New(cfg Config, logger *slog.Logger) (Partitioner, error) {
	switch cfg.Algorithm {
	case "", AlgorithmLouvain:
		return &Louvain{MaxPasses: cfg.MaxPasses, MaxIterations: cfg.MaxIterations, Logger: logger}, nil
	case AlgorithmLabelPropagation:
		return &LabelPropagation{MaxIterations: cfg.MaxIterations, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, cfg.Algorithm)
	}
}

// sortedIDs returns the projection keys in ascending order.
func sortedIDs(projection Projection) []string {
	ids := make([]string, 0, len(projection))
	for id := range projection {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// renumber maps arbitrary labels to 0..k-1 ordered by the smallest member
// id of each label. ids must be sorted.
func renumber(ids []string, labels map[string]int) Partition {
	next := 0
	remap := make(map[int]int)
	partition := make(Partition, len(ids))
	for _, id := range ids {
		label := labels[id]
		c, ok := remap[label]
		if !ok {
			c = next
			remap[label] = c
			next++
		}
		partition[id] = c
	}
	return partition
}

// Modularity returns the weighted modularity of a partition of projection.
// A projection without edges has modularity 0.
func Modularity(projection Projection, partition Partition) float64 {
	var twoM float64
	degree := make(map[string]float64, len(projection))
	for id, nbrs := range projection {
		for _, n := range nbrs {
			degree[id] += float64(n.EdgeCount)
		}
		twoM += degree[id]
	}
	if twoM == 0 {
		return 0
	}

	internal := make(map[int]float64)
	total := make(map[int]float64)
	for id, nbrs := range projection {
		c := partition[id]
		total[c] += degree[id]
		for _, n := range nbrs {
			if other, ok := partition[n.NodeID]; ok && other == c {
				internal[c] += float64(n.EdgeCount)
			}
		}
	}

	var q float64
	for c, tot := range total {
		q += internal[c]/twoM - (tot/twoM)*(tot/twoM)
	}
	return q
}
