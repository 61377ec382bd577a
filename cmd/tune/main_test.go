package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0m00s"},
		{65 * time.Second, "1m05s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h02m03s"},
		{1500 * time.Millisecond, "0m02s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestEvalLogTracksBest(t *testing.T) {
	pv := NewParamVector()
	path := filepath.Join(t.TempDir(), "tune_log.csv")
	l, err := newEvalLog(path, pv, 3)
	if err != nil {
		t.Fatal(err)
	}

	first := pv.DefaultVector()
	second := pv.Clamp(pv.Denormalize(make([]float64, pv.Dim())))
	l.Record(-0.5, runQuality{Coverage: 0.5}, first)
	l.Record(-0.8, runQuality{Coverage: 0.8}, second)
	l.Record(-0.2, runQuality{Coverage: 0.2}, first)
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	if l.count != 3 || l.bestFitness != -0.8 {
		t.Errorf("count = %d, best = %v", l.count, l.bestFitness)
	}
	for i := range second {
		if l.best[i] != second[i] {
			t.Fatalf("best = %v, want %v", l.best, second)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header + 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "eval,fitness,coverage,scan_rate,churn,") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "2,-0.800000,0.8000,") {
		t.Errorf("row 2 = %q", lines[2])
	}
}
