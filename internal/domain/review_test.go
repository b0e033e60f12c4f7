package domain

import (
	"math"
	"testing"
)

func TestRoundRating(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"zero", 0, 0},
		{"round-up", 3.75, 3.8},
		{"round-down", 2.74, 2.7},
		{"exact", 4.5, 4.5},
		{"half-away-from-zero", 4.65, 4.7},
		{"two-thirds", 14.0 / 3.0, 4.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundRating(tt.value)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("RoundRating(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestDefaultRatingSummary(t *testing.T) {
	s := DefaultRatingSummary()
	if s.Average != 4.5 || s.Quantity != 0 {
		t.Fatalf("default summary = %+v, want {4.5 0}", s)
	}
}

func TestValidDifficulty(t *testing.T) {
	for _, v := range []string{DifficultyEasy, DifficultyMedium, DifficultyDifficult} {
		if !ValidDifficulty(v) {
			t.Fatalf("difficulty %q should be valid", v)
		}
	}
	for _, v := range []string{"", "EASY", "extreme"} {
		if ValidDifficulty(v) {
			t.Fatalf("difficulty %q should not be valid", v)
		}
	}
}
