package community

import (
	"log/slog"
	"sort"
)

// LabelPropagation assigns each node the label carrying the most edge
// weight among its neighbors until labels settle.
type LabelPropagation struct {
	// MaxIterations bounds the number of rounds. Zero means 100.
	MaxIterations int
	Logger        *slog.Logger
}

var _ Partitioner = (*LabelPropagation)(nil)

// Partition implements Partitioner. Nodes are updated in place in sorted
// id order. A node keeps its label when it is among the best candidates,
// otherwise it takes the smallest best label.
func (lp *LabelPropagation) Partition(projection Projection) Partition {
	ids := sortedIDs(projection)
	if len(ids) == 0 {
		return Partition{}
	}
	maxIterations := lp.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 100
	}

	// Initialize each node to its own community
	labels := make(map[string]int, len(ids))
	for i, id := range ids {
		labels[id] = i
	}

	type communityScore struct {
		community int
		count     int
	}

	iterations := 0
	for iteration := 0; iteration < maxIterations; iteration++ {
		iterations++
		changed := false

		for _, id := range ids {
			current := labels[id]

			// Count community occurrences among neighbors, weighted by edge count
			candidates := make(map[int]int)
			for _, nbr := range projection[id] {
				if nbr.NodeID == id {
					continue
				}
				if c, ok := labels[nbr.NodeID]; ok {
					candidates[c] += nbr.EdgeCount
				}
			}
			if len(candidates) == 0 {
				continue
			}

			scores := make([]communityScore, 0, len(candidates))
			for c, count := range candidates {
				scores = append(scores, communityScore{community: c, count: count})
			}
			// Sort by count (descending), then by community ID for tie-breaking
			sort.Slice(scores, func(i, j int) bool {
				if scores[i].count != scores[j].count {
					return scores[i].count > scores[j].count
				}
				return scores[i].community < scores[j].community
			})

			next := scores[0].community
			if candidates[current] == scores[0].count {
				next = current
			}
			if next != current {
				labels[id] = next
				changed = true
			}
		}

		if !changed {
			break
		}
	}

	partition := renumber(ids, labels)
	if lp.Logger != nil {
		lp.Logger.Debug("Label propagation partition computed",
			"nodes", len(ids),
			"communities", partition.Count(),
			"iterations", iterations)
	}
	return partition
}
