package telemetry

import (
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		wantMean float64
	}{
		{"empty", nil, 0},
		{"single", []float64{4}, 4},
		{"unsorted", []float64{9, 1, 5, 3, 7}, 5},
		{"ramp", []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}, 0.55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := append([]float64(nil), tt.values...)
			mean, p10, p50, p90 := Summarize(input)

			if math.Abs(mean-tt.wantMean) > 1e-9 {
				t.Errorf("mean = %v, want %v", mean, tt.wantMean)
			}
			if !(p10 <= p50 && p50 <= p90) {
				t.Errorf("percentiles out of order: %v %v %v", p10, p50, p90)
			}
			if len(tt.values) == 0 {
				if p10 != 0 || p50 != 0 || p90 != 0 {
					t.Errorf("empty percentiles = %v %v %v", p10, p50, p90)
				}
				return
			}
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, v := range tt.values {
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
			if p10 < lo || p90 > hi {
				t.Errorf("percentiles %v..%v outside [%v, %v]", p10, p90, lo, hi)
			}
			for i := range input {
				if input[i] != tt.values[i] {
					t.Fatalf("Summarize reordered its input: %v", input)
				}
			}
		})
	}
}

func TestSummarizeSingleValue(t *testing.T) {
	_, p10, p50, p90 := Summarize([]float64{7, 7, 7})
	if p10 != 7 || p50 != 7 || p90 != 7 {
		t.Errorf("percentiles of a constant = %v %v %v, want 7", p10, p50, p90)
	}
}
