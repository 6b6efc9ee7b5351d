package bloom

import (
	"testing"

	"gossipmesh/internal/crypto"
)

func hashOf(s string) crypto.Hash {
	return crypto.HashBytes([]byte(s))
}

func TestFilterNoFalseNegatives(t *testing.T) {
	f := NewFilter(1000, 0.01, 42)

	items := make([]crypto.Hash, 0, 500)
	for i := 0; i < 500; i++ {
		h := hashOf(string(rune('a')) + string(rune(i)))
		items = append(items, h)
		f.Add(h)
	}

	for _, h := range items {
		if !f.Contains(h) {
			t.Fatalf("expected filter to contain previously added item %v", h)
		}
	}
}

func TestFilterFalsePositiveRateIsBounded(t *testing.T) {
	const n = 2000
	f := NewFilter(n, 0.01, 7)

	for i := 0; i < n; i++ {
		f.Add(hashOf("present-" + string(rune(i))))
	}

	falsePositives := 0
	const trials = 5000
	for i := 0; i < trials; i++ {
		h := hashOf("absent-" + string(rune(i)))
		if f.Contains(h) {
			falsePositives++
		}
	}

	rate := float64(falsePositives) / float64(trials)
	if rate > 0.05 {
		t.Fatalf("false positive rate too high: %f", rate)
	}
}

func TestNewFilterSizing(t *testing.T) {
	f := NewFilter(0, 0, 1)
	if f.K() < 1 {
		t.Fatalf("expected at least one hash function, got %d", f.K())
	}
	if f.NumBits() < 64 {
		t.Fatalf("expected at least 64 bits, got %d", f.NumBits())
	}
}
