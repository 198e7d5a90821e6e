// Package utils provides common utility functions for the ontoreason project.
package utils

import (
	"cmp"
	"math"
	"slices"
)

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. Mismatched, empty or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, aa, bb float64
	for i, x := range a {
		y := float64(b[i])
		dot += float64(x) * y
		aa += float64(x) * float64(x)
		bb += y * y
	}
	if aa == 0 || bb == 0 {
		return 0
	}
	return dot / math.Sqrt(aa*bb)
}

// CosineDistance is 1 - CosineSimilarity, in the range [0, 2].
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

// MeanVector returns the element-wise mean of vectors. Vectors whose length
// differs from the first non-empty vector are skipped. Returns nil when no
// usable vector is given.
func MeanVector(vectors ...[]float32) []float32 {
	var dim int
	for _, v := range vectors {
		if len(v) > 0 {
			dim = len(v)
			break
		}
	}
	if dim == 0 {
		return nil
	}

	sum := make([]float64, dim)
	count := 0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		count++
	}

	mean := make([]float32, dim)
	for i := range sum {
		mean[i] = float32(sum[i] / float64(count))
	}
	return mean
}

// ScoredItem pairs an item with its score.
type ScoredItem[T any] struct {
	Item  T
	Score float64
}

// TopKByScore returns at most k items, highest score first. Equal scores
// keep their input order.
func TopKByScore[T any](items []ScoredItem[T], k int) []ScoredItem[T] {
	if k <= 0 || len(items) == 0 {
		return nil
	}
	ranked := slices.Clone(items)
	slices.SortStableFunc(ranked, func(a, b ScoredItem[T]) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return ranked[:min(k, len(ranked))]
}
