package similarity

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		q    []float32
		e    []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"empty embedding", []float32{1, 2}, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.q, tt.e)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Cosine similarity must not depend on vector magnitude.
func TestCosineScaleInvariant(t *testing.T) {
	q := []float32{0.3, 0.5, 0.2}
	e := []float32{0.1, 0.9, 0.4}
	scaled := []float32{1, 9, 4}

	a := Cosine(q, e)
	b := Cosine(q, scaled)
	if math.Abs(a-b) > 1e-6 {
		t.Errorf("scaled embedding changed score: %v vs %v", a, b)
	}
}

func TestDecodeVector(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []float32
	}{
		{"bare array", `[0.1, 0.2, 0.3]`, []float32{0.1, 0.2, 0.3}},
		{"legacy wrapper", `{"v":[0.1, 0.2, 0.3]}`, []float32{0.1, 0.2, 0.3}},
		{"empty array", `[]`, []float32{}},
		{"garbage", `not json`, nil},
		{"empty string", ``, nil},
		{"wrapper without v", `{"x":[1]}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeVector([]byte(tt.raw))
			if len(got) != len(tt.want) {
				t.Fatalf("DecodeVector(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range got {
				if math.Abs(float64(got[i]-tt.want[i])) > 1e-6 {
					t.Errorf("element %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTopK(t *testing.T) {
	query := []float32{1, 0}
	vectors := [][]float32{
		{0, 1},    // orthogonal
		{1, 0},    // exact match
		{1, 1},    // ~0.707
		nil,       // missing embedding scores 0
		{-1, 0},   // opposite
		{0.9, .1}, // close
	}

	matches := TopK(query, vectors, 3)
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	wantOrder := []int{1, 5, 2}
	for i, m := range matches {
		if m.Index != wantOrder[i] {
			t.Errorf("match %d index = %d, want %d", i, m.Index, wantOrder[i])
		}
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("scores not descending at %d: %v > %v", i, matches[i].Score, matches[i-1].Score)
		}
	}
}

func TestTopKClamp(t *testing.T) {
	query := []float32{1, 0}
	vectors := [][]float32{{1, 0}, {0, 1}}

	if got := TopK(query, vectors, 10); len(got) != 2 {
		t.Errorf("k beyond size: got %d matches, want 2", len(got))
	}
	if got := TopK(query, vectors, 0); len(got) != 2 {
		t.Errorf("k zero returns all: got %d matches, want 2", len(got))
	}
	if got := TopK(query, nil, 3); len(got) != 0 {
		t.Errorf("no vectors: got %d matches, want 0", len(got))
	}
}

// Equal scores keep input order, so results are deterministic. Identical
// vectors produce bit-identical scores; scaled copies do not, because the
// epsilon in the denominator makes the score depend on magnitude.
func TestTopKStableTies(t *testing.T) {
	query := []float32{1, 0}
	vectors := [][]float32{{2, 0}, {2, 0}, {2, 0}}

	matches := TopK(query, vectors, 3)
	for i, m := range matches {
		if m.Index != i {
			t.Fatalf("tie order broken: match %d has index %d", i, m.Index)
		}
	}
}
