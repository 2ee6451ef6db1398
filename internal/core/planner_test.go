package core

import "testing"

func TestNextPositionStepsDiagonally(t *testing.T) {
	g := NewGrid(5, 5)
	p := NewPerson(1)
	p.Place(P(0, 0), P(4, 4))
	g.PlacePerson(P(0, 0), p)

	if got := NextPosition(p, g); got != P(1, 1) {
		t.Fatalf("expected (1,1), got %v", got)
	}
}

func TestNextPositionIsIdempotent(t *testing.T) {
	g := NewGrid(6, 6)
	g.SetStatic(P(2, 2), Obstacle)
	p := NewPerson(1)
	p.Place(P(1, 1), P(5, 5))
	g.PlacePerson(P(1, 1), p)

	first := NextPosition(p, g)
	second := NextPosition(p, g)
	if first != second {
		t.Fatalf("planner not deterministic: %v vs %v", first, second)
	}
	if p.Pos() != P(1, 1) {
		t.Fatal("planner must not move the person")
	}
}

func TestNextPositionTieUsesTableOrder(t *testing.T) {
	// (2,0) and (2,2) are equally close to (3,1); with (2,1) blocked the
	// earlier table entry wins.
	g := NewGrid(4, 3)
	g.SetStatic(P(2, 1), Obstacle)
	p := NewPerson(1)
	p.Place(P(1, 1), P(3, 1))
	g.PlacePerson(P(1, 1), p)

	if got := NextPosition(p, g); got != P(2, 0) {
		t.Fatalf("expected first tied candidate (2,0), got %v", got)
	}
}

func TestNextPositionNoMove(t *testing.T) {
	g := NewGrid(3, 3)

	atGoal := NewPerson(1)
	atGoal.Place(P(1, 1), P(1, 1))
	if got := NextPosition(atGoal, g); got != P(1, 1) {
		t.Fatalf("agent at goal moved to %v", got)
	}

	detached := NewPerson(2)
	if got := NextPosition(detached, g); got != NoPos {
		t.Fatalf("detached agent moved to %v", got)
	}

	badGoal := NewPerson(3)
	badGoal.Place(P(0, 0), P(9, 9))
	if got := NextPosition(badGoal, g); got != P(0, 0) {
		t.Fatalf("agent with invalid goal moved to %v", got)
	}
}

func TestNextPositionStallsBehindWall(t *testing.T) {
	g := NewGrid(3, 3)
	for y := 0; y < 3; y++ {
		g.SetStatic(P(1, y), Obstacle)
	}
	p := NewPerson(1)
	p.Place(P(0, 1), P(2, 1))
	g.PlacePerson(P(0, 1), p)

	if got := NextPosition(p, g); got != P(0, 1) {
		t.Fatalf("expected stall at (0,1), got %v", got)
	}
}

func TestNextPositionSkipsPersons(t *testing.T) {
	g := NewGrid(3, 1)
	a, b := NewPerson(1), NewPerson(2)
	a.Place(P(0, 0), P(2, 0))
	g.PlacePerson(P(0, 0), a)
	g.PlacePerson(P(1, 0), b)

	if got := NextPosition(a, g); got != P(0, 0) {
		t.Fatalf("expected stall behind person, got %v", got)
	}
}
