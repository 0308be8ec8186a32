package enrich

import (
	"math"
	"sort"
)

// index is a brute-force cosine index over a fixed vocabulary. It is
// read-only after construction.
type index struct {
	tags    []string
	vectors [][]float32
}

func (x *index) search(query []float32, topK int) []Hit {
	if len(x.tags) == 0 || topK <= 0 {
		return nil
	}
	hits := make([]Hit, len(x.tags))
	for i, tag := range x.tags {
		hits[i] = Hit{Tag: tag, Score: cosine(query, x.vectors[i])}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// cosine returns the cosine similarity of a and b in [-1, 1]. Mismatched
// dimensions and zero vectors score -1.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return -1
	}
	s := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return float32(max(-1, min(1, s)))
}
