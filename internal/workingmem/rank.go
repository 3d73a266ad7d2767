package workingmem

import (
	"math"
	"slices"
)

// Cosine returns the cosine similarity of two vectors, or 0 when either has
// zero magnitude or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// scored pairs a candidate index with its similarity.
type scored struct {
	index      int
	similarity float64
}

// rank scores every candidate against the query vector, drops entries below
// the threshold, and returns the top limit indexes in descending similarity
// order. Candidates are read through the vec accessor so ranking works over
// any slice type holding an embedding.
func rank(query []float32, n int, vec func(i int) []float32, threshold float64, limit int) []scored {
	if limit <= 0 {
		return nil
	}

	hits := make([]scored, 0, n)
	for i := range n {
		sim := Cosine(query, vec(i))
		if sim >= threshold {
			hits = append(hits, scored{index: i, similarity: sim})
		}
	}

	slices.SortStableFunc(hits, func(a, b scored) int {
		switch {
		case a.similarity > b.similarity:
			return -1
		case a.similarity < b.similarity:
			return 1
		default:
			return 0
		}
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
