package core

import (
	"errors"
	"sync"
	"testing"
)

func TestIsValidMatchesBounds(t *testing.T) {
	g := NewGrid(4, 3)
	for y := -2; y < 6; y++ {
		for x := -2; x < 6; x++ {
			want := x >= 0 && x < 4 && y >= 0 && y < 3
			if got := g.IsValid(P(x, y)); got != want {
				t.Fatalf("IsValid(%d,%d)=%v, expected %v", x, y, got, want)
			}
		}
	}
}

func TestIsValidNilGridIsUnbounded(t *testing.T) {
	var g *Grid
	if !g.IsValid(P(1000, 1000)) {
		t.Fatal("nil grid must accept large positive positions")
	}
	if g.IsValid(P(-1, 0)) || g.IsValid(P(0, -1)) {
		t.Fatal("nil grid must reject negative coordinates")
	}
}

func TestSetStaticReturnsPrevious(t *testing.T) {
	g := NewGrid(3, 3)
	old, err := g.SetStatic(P(1, 1), Obstacle)
	if err != nil || old != Empty {
		t.Fatalf("first SetStatic = (%v, %v), expected (empty, nil)", old, err)
	}
	old, err = g.SetStatic(P(1, 1), Empty)
	if err != nil || old != Obstacle {
		t.Fatalf("second SetStatic = (%v, %v), expected (obstacle, nil)", old, err)
	}
	if _, err := g.SetStatic(P(3, 0), Obstacle); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if _, err := g.SetStatic(P(0, 0), Occupied); !errors.Is(err, ErrBadKind) {
		t.Fatalf("expected ErrBadKind, got %v", err)
	}
}

func TestPlacePersonAndGet(t *testing.T) {
	g := NewGrid(3, 3)
	p := NewPerson(7)
	if old, err := g.PlacePerson(P(2, 1), p); err != nil || old != Empty {
		t.Fatalf("PlacePerson = (%v, %v)", old, err)
	}
	kind, got := g.Get(P(2, 1))
	if kind != Occupied || got != p {
		t.Fatalf("Get = (%v, %p), expected person %p", kind, got, p)
	}
	if kind, _ := g.Get(P(-1, 0)); kind != Invalid {
		t.Fatalf("expected Invalid for out of range, got %v", kind)
	}
	if _, _, err := g.Lookup(P(0, 3)); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if _, err := g.PlaceIfEmpty(P(2, 1), NewPerson(8)); !errors.Is(err, ErrOccupied) {
		t.Fatalf("expected ErrOccupied, got %v", err)
	}
	if g.Vacate(P(2, 1), NewPerson(8)) {
		t.Fatal("Vacate must not clear a cell held by another person")
	}
	if !g.Vacate(P(2, 1), p) {
		t.Fatal("Vacate should clear the owner's cell")
	}
}

func TestMoveRejectsBusyTarget(t *testing.T) {
	g := NewGrid(3, 1)
	a, b := NewPerson(1), NewPerson(2)
	g.PlacePerson(P(0, 0), a)
	g.PlacePerson(P(2, 0), b)
	if err := g.Move(P(0, 0), P(2, 0), a); !errors.Is(err, ErrOccupied) {
		t.Fatalf("expected ErrOccupied, got %v", err)
	}
	if err := g.Move(P(0, 0), P(1, 0), a); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if kind, _ := g.Get(P(0, 0)); kind != Empty {
		t.Fatalf("source cell should be empty, got %v", kind)
	}
	if _, got := g.Get(P(1, 0)); got != a {
		t.Fatal("target cell should hold the mover")
	}
}

func TestNeighborOrder(t *testing.T) {
	g := NewGrid(3, 3)
	got := g.Neighbors(P(1, 1))
	want := []Pos{P(0, 0), P(1, 0), P(2, 0), P(0, 1), P(2, 1), P(0, 2), P(1, 2), P(2, 2)}
	if len(got) != len(want) {
		t.Fatalf("expected %d neighbours, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("neighbour %d = %v, expected %v", i, got[i], want[i])
		}
	}
	corner := g.Neighbors(P(0, 0))
	if len(corner) != 3 {
		t.Fatalf("corner should have 3 neighbours, got %v", corner)
	}
}

func TestConcurrentMovesKeepCellsExclusive(t *testing.T) {
	g := NewGrid(64, 64)
	var wg sync.WaitGroup
	for row := 0; row < 64; row += 2 {
		p := NewPerson(row)
		g.PlacePerson(P(0, row), p)
		wg.Add(1)
		go func(p *Person, y int) {
			defer wg.Done()
			for x := 0; x < 63; x++ {
				if err := g.Move(P(x, y), P(x+1, y), p); err != nil {
					t.Errorf("row %d move %d: %v", y, x, err)
					return
				}
			}
		}(p, row)
	}
	wg.Wait()

	cells := g.Cells()
	count := 0
	for i, c := range cells {
		if c == CellPerson {
			count++
			if i%64 != 63 {
				t.Fatalf("person left behind at index %d", i)
			}
		}
	}
	if count != 32 {
		t.Fatalf("expected 32 persons, got %d", count)
	}
	if len(g.Occupants()) != 32 {
		t.Fatalf("Occupants disagrees with Cells")
	}
}
