package lifecycle

import (
	"testing"

	"newsroom/internal/ports"
)

func TestRankRelated(t *testing.T) {
	candidates := []ports.ArticleEmbedding{
		{ArticleID: 2, Title: "gleich", Vector: []float64{1, 0}},
		{ArticleID: 3, Title: "orthogonal", Vector: []float64{0, 1}},
		{ArticleID: 4, Title: "nah", Vector: []float64{1, 1}},
		{ArticleID: 5, Title: "falsche Dimension", Vector: []float64{1, 0, 0}},
	}

	got := rankRelated([]float64{1, 0}, candidates)
	if len(got) != 2 {
		t.Fatalf("rankRelated() = %+v, want 2 entries", got)
	}
	if got[0].ArticleID != 2 || got[0].Similarity != 1 {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].ArticleID != 4 || got[1].Similarity != 0.707 {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{name: "identical", a: []float64{2, 0}, b: []float64{5, 0}, want: 1},
		{name: "opposite", a: []float64{1, 0}, b: []float64{-1, 0}, want: -1},
		{name: "zero vector", a: []float64{0, 0}, b: []float64{1, 0}, want: 0},
		{name: "length mismatch", a: []float64{1}, b: []float64{1, 0}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosineSimilarity(tt.a, tt.b); got != tt.want {
				t.Fatalf("cosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}
