package community

import (
	"log/slog"
	"sort"
)

const modularityEpsilon = 1e-12

// Louvain maximizes modularity with repeated local moves followed by
// aggregation of each community into a single node. Nodes are visited in
// sorted id order so the result is reproducible.
type Louvain struct {
	// MaxPasses bounds the number of aggregation levels. Zero means 10.
	MaxPasses int
	// MaxIterations bounds local-move sweeps per level. Zero means 100.
	MaxIterations int
	Logger        *slog.Logger
}

var _ Partitioner = (*Louvain)(nil)

type weightedEdge struct {
	to     int
	weight float64
}

// Partition implements Partitioner.
func (l *Louvain) Partition(projection Projection) Partition {
	ids := sortedIDs(projection)
	if len(ids) == 0 {
		return Partition{}
	}
	maxPasses, maxIterations := l.MaxPasses, l.MaxIterations
	if maxPasses <= 0 {
		maxPasses = 10
	}
	if maxIterations <= 0 {
		maxIterations = 100
	}

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	adj := make([][]weightedEdge, len(ids))
	for i, id := range ids {
		for _, n := range projection[id] {
			j, ok := index[n.NodeID]
			if !ok || j == i || n.EdgeCount <= 0 {
				continue
			}
			adj[i] = append(adj[i], weightedEdge{to: j, weight: float64(n.EdgeCount)})
		}
		sort.Slice(adj[i], func(a, b int) bool { return adj[i][a].to < adj[i][b].to })
	}

	// membership of every original node in the current level's nodes
	membership := make([]int, len(ids))
	for i := range membership {
		membership[i] = i
	}

	levels := 0
	for pass := 0; pass < maxPasses; pass++ {
		comm, moved := localMoves(adj, maxIterations)
		if !moved {
			break
		}
		levels++
		var count int
		adj, comm, count = aggregate(adj, comm)
		for i := range membership {
			membership[i] = comm[membership[i]]
		}
		if count == len(comm) {
			break
		}
	}

	labels := make(map[string]int, len(ids))
	for i, id := range ids {
		labels[id] = membership[i]
	}
	partition := renumber(ids, labels)

	if l.Logger != nil {
		l.Logger.Debug("Louvain partition computed",
			"nodes", len(ids),
			"communities", partition.Count(),
			"levels", levels)
	}
	return partition
}

// localMoves runs modularity local moves until no node changes community
// or maxIterations sweeps have run. It reports whether any node moved.
func localMoves(adj [][]weightedEdge, maxIterations int) ([]int, bool) {
	n := len(adj)
	comm := make([]int, n)
	degree := make([]float64, n)
	total := make([]float64, n)
	var twoM float64
	for i := range adj {
		comm[i] = i
		for _, e := range adj[i] {
			degree[i] += e.weight
		}
		total[i] = degree[i]
		twoM += degree[i]
	}
	if twoM == 0 {
		return comm, false
	}

	anyMove := false
	links := make(map[int]float64)
	var candidates []int
	for sweep := 0; sweep < maxIterations; sweep++ {
		moved := false
		for i := 0; i < n; i++ {
			current := comm[i]
			clear(links)
			candidates = candidates[:0]
			for _, e := range adj[i] {
				if e.to == i {
					continue
				}
				c := comm[e.to]
				if _, seen := links[c]; !seen {
					candidates = append(candidates, c)
				}
				links[c] += e.weight
			}
			sort.Ints(candidates)

			total[current] -= degree[i]
			best := current
			bestGain := links[current] - total[current]*degree[i]/twoM
			for _, c := range candidates {
				gain := links[c] - total[c]*degree[i]/twoM
				if gain > bestGain+modularityEpsilon {
					best, bestGain = c, gain
				}
			}
			total[best] += degree[i]
			if best != current {
				comm[i] = best
				moved = true
				anyMove = true
			}
		}
		if !moved {
			break
		}
	}
	return comm, anyMove
}

// aggregate collapses every community into one node. Internal weight
// becomes a self loop. It returns the new adjacency, the renumbered
// community of every old node and the new node count.
func aggregate(adj [][]weightedEdge, comm []int) ([][]weightedEdge, []int, int) {
	remap := make(map[int]int)
	renumbered := make([]int, len(comm))
	for i, c := range comm {
		nc, ok := remap[c]
		if !ok {
			nc = len(remap)
			remap[c] = nc
		}
		renumbered[i] = nc
	}

	count := len(remap)
	weights := make([]map[int]float64, count)
	for i := range weights {
		weights[i] = make(map[int]float64)
	}
	for i, edges := range adj {
		ci := renumbered[i]
		for _, e := range edges {
			weights[ci][renumbered[e.to]] += e.weight
		}
	}

	next := make([][]weightedEdge, count)
	for c, w := range weights {
		for to, weight := range w {
			next[c] = append(next[c], weightedEdge{to: to, weight: weight})
		}
		sort.Slice(next[c], func(a, b int) bool { return next[c][a].to < next[c][b].to })
	}
	return next, renumbered, count
}
