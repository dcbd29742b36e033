// Package similarity ranks embedding vectors against a query by cosine
// similarity. It is pure: no store or network access, so retrieval
// ordering can be tested in isolation.
package similarity

import (
	"encoding/json"
	"math"
	"sort"
)

// epsilon keeps the cosine denominator away from zero for near-zero vectors.
const epsilon = 1e-8

// Match points back to a candidate by its input position.
type Match struct {
	Index int
	Score float64
}

// DecodeVector normalizes a stored JSON embedding to a flat []float32.
// Accepts a bare array or the legacy {"v":[...]} wrapper; anything
// empty, missing or unparseable yields an empty vector.
func DecodeVector(raw []byte) []float32 {
	if len(raw) == 0 {
		return nil
	}
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat
	}
	var wrapped struct {
		V []float32 `json:"v"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.V
	}
	return nil
}

// Cosine returns the cosine similarity of q and e, or 0 when e is empty.
func Cosine(q, e []float32) float64 {
	if len(e) == 0 {
		return 0
	}
	n := len(q)
	if len(e) < n {
		n = len(e)
	}
	var dot, normQ, normE float64
	for i := 0; i < n; i++ {
		dot += float64(q[i]) * float64(e[i])
	}
	for _, v := range q {
		normQ += float64(v) * float64(v)
	}
	for _, v := range e {
		normE += float64(v) * float64(v)
	}
	return dot / (math.Sqrt(normQ)*math.Sqrt(normE) + epsilon)
}

// TopK scores every candidate vector against query and returns the k best
// matches in descending score order. The sort is stable: candidates with
// equal scores keep their input order. k <= 0 defaults to len(vectors).
func TopK(query []float32, vectors [][]float32, k int) []Match {
	matches := make([]Match, len(vectors))
	for i, vec := range vectors {
		matches[i] = Match{Index: i, Score: Cosine(query, vec)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > 0 && k < len(matches) {
		matches = matches[:k]
	}
	return matches
}
