package core

import "testing"

func TestRNGDeterministic(t *testing.T) {
	a, b := NewRNG(42), NewRNG(42)
	for i := 0; i < 100; i++ {
		if x, y := a.IntN(1000), b.IntN(1000); x != y {
			t.Fatalf("draw %d differs: %d vs %d", i, x, y)
		}
	}
}

func TestRNGBounds(t *testing.T) {
	r := NewRNG(7)
	for i := 0; i < 1000; i++ {
		if v := r.Between(3, 5); v < 3 || v > 5 {
			t.Fatalf("Between(3,5) = %d", v)
		}
		if v := r.IntN(4); v < 0 || v >= 4 {
			t.Fatalf("IntN(4) = %d", v)
		}
	}
	if r.IntN(0) != 0 || r.Between(9, 2) != 9 {
		t.Fatal("degenerate ranges must return their lower bound")
	}
	if len(r.Perm(6)) != 6 {
		t.Fatal("Perm length mismatch")
	}
}
