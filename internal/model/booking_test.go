package model

import (
	"math/rand"
	"testing"
	"time"
)

var base = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func hour(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd int
		want                       bool
	}{
		{"identical windows", 8, 10, 8, 10, true},
		{"b inside a", 8, 12, 9, 10, true},
		{"a inside b", 9, 10, 8, 12, true},
		{"partial left", 8, 10, 9, 11, true},
		{"partial right", 9, 11, 8, 10, true},
		{"a ends where b starts", 8, 10, 10, 12, false},
		{"b ends where a starts", 10, 12, 8, 10, false},
		{"disjoint", 8, 9, 11, 12, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Overlaps(hour(tc.aStart), hour(tc.aEnd), hour(tc.bStart), hour(tc.bEnd))
			if got != tc.want {
				t.Fatalf("Overlaps(%d-%d, %d-%d) = %v, want %v",
					tc.aStart, tc.aEnd, tc.bStart, tc.bEnd, got, tc.want)
			}
		})
	}
}

// TestOverlapsAgainstBruteForce cross-checks the predicate against a
// minute-by-minute scan on random windows.
func TestOverlapsAgainstBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		aStart := rng.Intn(20 * 60)
		aEnd := aStart + 1 + rng.Intn(4*60)
		bStart := rng.Intn(20 * 60)
		bEnd := bStart + 1 + rng.Intn(4*60)

		brute := false
		for m := aStart; m < aEnd; m++ {
			if m >= bStart && m < bEnd {
				brute = true
				break
			}
		}

		toTime := func(m int) time.Time { return base.Add(time.Duration(m) * time.Minute) }
		got := Overlaps(toTime(aStart), toTime(aEnd), toTime(bStart), toTime(bEnd))
		if got != brute {
			t.Fatalf("windows [%d,%d) and [%d,%d): predicate %v, brute force %v",
				aStart, aEnd, bStart, bEnd, got, brute)
		}
	}
}

func TestOverlapsSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		aS, bS := rng.Intn(100), rng.Intn(100)
		aE, bE := aS+1+rng.Intn(50), bS+1+rng.Intn(50)
		f := Overlaps(hour(aS), hour(aE), hour(bS), hour(bE))
		r := Overlaps(hour(bS), hour(bE), hour(aS), hour(aE))
		if f != r {
			t.Fatalf("predicate not symmetric for [%d,%d) vs [%d,%d)", aS, aE, bS, bE)
		}
	}
}
