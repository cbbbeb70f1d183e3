package analyzers

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"scaled is identical", []float64{1, 2}, []float64{2, 4}, 1},
		{"length mismatch", []float64{1, 2}, []float64{1}, 0},
		{"empty", nil, nil, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeSimilarity(t *testing.T) {
	tests := []struct {
		sim  float64
		want float64
	}{
		{1, 1},
		{-1, 0},
		{0, 0.5},
		{0.6, 0.8},
		{1.2, 1},  // clamp float noise
		{-1.1, 0}, // clamp float noise
	}
	for _, tt := range tests {
		if got := NormalizeSimilarity(tt.sim); math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("NormalizeSimilarity(%v) = %v, want %v", tt.sim, got, tt.want)
		}
	}
}
