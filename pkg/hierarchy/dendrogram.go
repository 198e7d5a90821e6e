// Package hierarchy builds an average-linkage dendrogram over community
// embeddings and produces textual summaries of its clusters.
//
// Leaves are the communities themselves (cluster ids 0..n-1). Merge i
// creates cluster n+i whose embedding is the mean of its two children and
// whose members are the union of their communities. Level k is the set of
// root clusters after k merges, so level 0 holds every leaf.
package hierarchy

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/soundprediction/ontoreason/pkg/utils"
)

// DefaultThreshold is the default maximum cosine distance at which two
// clusters are still merged.
const DefaultThreshold = 0.5

// ErrInvalidThreshold is returned for a threshold outside [0, 2].
var ErrInvalidThreshold = errors.New("invalid merge threshold")

// Cluster is a node of the dendrogram.
type Cluster struct {
	ID int `json:"id"`
	// Members are the community ids under this cluster, sorted.
	Members   []int     `json:"members"`
	Embedding []float32 `json:"embedding"`
	// Level is the first level at which the cluster is a root.
	Level int `json:"level"`
}

// Merge records the creation of cluster ID from Left and Right.
type Merge struct {
	ID       int     `json:"id"`
	Left     int     `json:"left"`
	Right    int     `json:"right"`
	Distance float64 `json:"distance"`
}

// Dendrogram is immutable once built.
type Dendrogram struct {
	Leaves    []Cluster `json:"leaves"`
	Merges    []Merge   `json:"merges"`
	Threshold float64   `json:"threshold"`
	clusters  []Cluster
}

// Build clusters community embeddings bottom-up with average linkage on
// cosine distance. The closest pair is merged first, ties going to the
// pair with the lower cluster ids, until the closest distance exceeds
// threshold or one cluster remains.
func Build(embeddings [][]float32, threshold float64) (*Dendrogram, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 2 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}

	n := len(embeddings)
	d := &Dendrogram{Threshold: threshold}
	for i, e := range embeddings {
		c := Cluster{ID: i, Members: []int{i}, Embedding: append([]float32(nil), e...)}
		d.Leaves = append(d.Leaves, c)
		d.clusters = append(d.clusters, c)
	}
	if n < 2 {
		return d, nil
	}

	// pairwise distances between active clusters, keyed by cluster id
	dist := make(map[[2]int]float64, n*n/2)
	size := make(map[int]int, n)
	active := make([]int, n)
	for i := 0; i < n; i++ {
		active[i] = i
		size[i] = 1
		for j := i + 1; j < n; j++ {
			dist[[2]int{i, j}] = utils.CosineDistance(embeddings[i], embeddings[j])
		}
	}
	get := func(a, b int) float64 {
		if a > b {
			a, b = b, a
		}
		return dist[[2]int{a, b}]
	}

	for len(active) > 1 {
		bestA, bestB := -1, -1
		best := math.Inf(1)
		for x := 0; x < len(active); x++ {
			for y := x + 1; y < len(active); y++ {
				if dd := get(active[x], active[y]); dd < best {
					best, bestA, bestB = dd, active[x], active[y]
				}
			}
		}
		if best > threshold {
			break
		}

		id := n + len(d.Merges)
		left, right := d.clusters[bestA], d.clusters[bestB]
		members := append(append([]int(nil), left.Members...), right.Members...)
		sort.Ints(members)
		merged := Cluster{
			ID:        id,
			Members:   members,
			Embedding: utils.MeanVector(left.Embedding, right.Embedding),
			Level:     len(d.Merges) + 1,
		}
		d.Merges = append(d.Merges, Merge{ID: id, Left: bestA, Right: bestB, Distance: best})
		d.clusters = append(d.clusters, merged)

		remaining := active[:0]
		for _, c := range active {
			if c != bestA && c != bestB {
				remaining = append(remaining, c)
			}
		}
		sa, sb := float64(size[bestA]), float64(size[bestB])
		for _, k := range remaining {
			dist[[2]int{k, id}] = (sa*get(bestA, k) + sb*get(bestB, k)) / (sa + sb)
		}
		size[id] = size[bestA] + size[bestB]
		active = append(remaining, id)
	}
	return d, nil
}

// Len returns the total number of clusters, leaves included.
func (d *Dendrogram) Len() int {
	return len(d.clusters)
}

// Cluster returns the cluster with the given id.
func (d *Dendrogram) Cluster(id int) (Cluster, bool) {
	if id < 0 || id >= len(d.clusters) {
		return Cluster{}, false
	}
	return d.clusters[id], true
}

// Clusters returns every cluster ordered by id.
func (d *Dendrogram) Clusters() []Cluster {
	return append([]Cluster(nil), d.clusters...)
}

// Levels returns the number of levels, len(Merges)+1 for a non-empty
// dendrogram and 0 for an empty one.
func (d *Dendrogram) Levels() int {
	if len(d.Leaves) == 0 {
		return 0
	}
	return len(d.Merges) + 1
}

// Level returns the root clusters after k merges, ordered by id.
func (d *Dendrogram) Level(k int) []Cluster {
	if k < 0 || k >= d.Levels() {
		return nil
	}
	n := len(d.Leaves)
	consumed := make(map[int]bool, 2*k)
	for _, m := range d.Merges[:k] {
		consumed[m.Left] = true
		consumed[m.Right] = true
	}
	var roots []Cluster
	for _, c := range d.clusters[:n+k] {
		if !consumed[c.ID] {
			roots = append(roots, c)
		}
	}
	return roots
}

// Roots returns the clusters at the top level.
func (d *Dendrogram) Roots() []Cluster {
	return d.Level(d.Levels() - 1)
}

// CommunityEmbeddings averages node vectors per community. groups[c] lists
// the members of community c; members without a vector are skipped.
func CommunityEmbeddings(groups [][]string, vectors map[string][]float32) [][]float32 {
	embeddings := make([][]float32, len(groups))
	for c, members := range groups {
		var vs [][]float32
		for _, m := range members {
			if v, ok := vectors[m]; ok {
				vs = append(vs, v)
			}
		}
		embeddings[c] = utils.MeanVector(vs...)
	}
	return embeddings
}
