package core

import (
	"errors"
	"sync"
)

// CellKind describes what a grid cell holds.
type CellKind int8

const (
	// Invalid is returned for positions outside the grid.
	Invalid CellKind = iota - 1
	// Empty marks a free cell.
	Empty
	// Occupied marks a cell holding a person.
	Occupied
	// Obstacle marks a static wall cell.
	Obstacle
)

func (k CellKind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Occupied:
		return "person"
	case Obstacle:
		return "obstacle"
	default:
		return "invalid"
	}
}

var (
	// ErrOutOfBounds is returned for positions outside the grid extent.
	ErrOutOfBounds = errors.New("position out of bounds")
	// ErrOccupied is returned when a move targets a non-empty cell.
	ErrOccupied = errors.New("cell occupied")
	// ErrBadKind is returned when SetStatic receives a person kind.
	ErrBadKind = errors.New("static cells must be empty or obstacle")
)

// NeighborOffsets lists the 8-neighbourhood row by row, skipping the centre.
// Planner tie-breaks follow this order.
var NeighborOffsets = [8]Pos{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

const maxStripes = 256

type cell struct {
	kind   CellKind
	person *Person
}

// Grid stores cells in row-major order. Each cell is guarded by one of a fixed
// set of striped locks so distant cells can be updated in parallel.
type Grid struct {
	W, H    int
	cells   []cell
	stripes []sync.RWMutex
}

// NewGrid allocates an empty grid with the given dimensions.
func NewGrid(w, h int) *Grid {
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	n := w * h
	stripes := maxStripes
	if n < stripes {
		stripes = n
	}
	return &Grid{W: w, H: h, cells: make([]cell, n), stripes: make([]sync.RWMutex, stripes)}
}

// Size returns the grid dimensions.
func (g *Grid) Size() Size { return Size{W: g.W, H: g.H} }

// Index returns the linear slice index for p. p must be valid.
func (g *Grid) Index(p Pos) int { return p.Y*g.W + p.X }

// IsValid reports whether p lies inside the grid. A nil grid is treated as
// unbounded towards positive coordinates.
func (g *Grid) IsValid(p Pos) bool {
	ok := p.X >= 0 && p.Y >= 0
	if ok && g != nil {
		ok = p.X < g.W && p.Y < g.H
	}
	return ok
}

func (g *Grid) stripe(idx int) *sync.RWMutex { return &g.stripes[idx%len(g.stripes)] }

// Get returns the cell content at p, or Invalid when p is out of range.
func (g *Grid) Get(p Pos) (CellKind, *Person) {
	if !g.IsValid(p) {
		return Invalid, nil
	}
	idx := g.Index(p)
	mu := g.stripe(idx)
	mu.RLock()
	c := g.cells[idx]
	mu.RUnlock()
	return c.kind, c.person
}

// Lookup is Get with an explicit error for out of range positions.
func (g *Grid) Lookup(p Pos) (CellKind, *Person, error) {
	kind, person := g.Get(p)
	if kind == Invalid {
		return Invalid, nil, ErrOutOfBounds
	}
	return kind, person, nil
}

// SetStatic writes an Empty or Obstacle cell and returns the previous kind.
// It must not run concurrently with a simulation tick.
func (g *Grid) SetStatic(p Pos, kind CellKind) (CellKind, error) {
	if kind != Empty && kind != Obstacle {
		return Invalid, ErrBadKind
	}
	if !g.IsValid(p) {
		return Invalid, ErrOutOfBounds
	}
	idx := g.Index(p)
	mu := g.stripe(idx)
	mu.Lock()
	defer mu.Unlock()
	old := g.cells[idx].kind
	g.cells[idx] = cell{kind: kind}
	return old, nil
}

// PlacePerson associates person with p, overwriting any previous content, and
// returns the previous kind.
func (g *Grid) PlacePerson(p Pos, person *Person) (CellKind, error) {
	if !g.IsValid(p) {
		return Invalid, ErrOutOfBounds
	}
	idx := g.Index(p)
	mu := g.stripe(idx)
	mu.Lock()
	defer mu.Unlock()
	old := g.cells[idx].kind
	g.cells[idx] = cell{kind: Occupied, person: person}
	return old, nil
}

// PlaceIfEmpty occupies p only when it is currently empty.
func (g *Grid) PlaceIfEmpty(p Pos, person *Person) (CellKind, error) {
	if !g.IsValid(p) {
		return Invalid, ErrOutOfBounds
	}
	idx := g.Index(p)
	mu := g.stripe(idx)
	mu.Lock()
	defer mu.Unlock()
	old := g.cells[idx].kind
	if old != Empty {
		return old, ErrOccupied
	}
	g.cells[idx] = cell{kind: Occupied, person: person}
	return old, nil
}

// Vacate clears p if it currently holds person.
func (g *Grid) Vacate(p Pos, person *Person) bool {
	if !g.IsValid(p) {
		return false
	}
	idx := g.Index(p)
	mu := g.stripe(idx)
	mu.Lock()
	defer mu.Unlock()
	if g.cells[idx].person != person {
		return false
	}
	g.cells[idx] = cell{}
	return true
}

// Move vacates from and occupies to in one step. Both stripes are locked in
// ascending order.
func (g *Grid) Move(from, to Pos, person *Person) error {
	if !g.IsValid(from) || !g.IsValid(to) {
		return ErrOutOfBounds
	}
	fi, ti := g.Index(from), g.Index(to)
	a, b := fi%len(g.stripes), ti%len(g.stripes)
	if a > b {
		a, b = b, a
	}
	g.stripes[a].Lock()
	defer g.stripes[a].Unlock()
	if b != a {
		g.stripes[b].Lock()
		defer g.stripes[b].Unlock()
	}
	if g.cells[fi].person != person || g.cells[ti].kind != Empty {
		return ErrOccupied
	}
	g.cells[fi] = cell{}
	g.cells[ti] = cell{kind: Occupied, person: person}
	return nil
}

// Neighbors returns the in-bounds neighbours of p in NeighborOffsets order.
func (g *Grid) Neighbors(p Pos) []Pos {
	out := make([]Pos, 0, len(NeighborOffsets))
	for _, off := range NeighborOffsets {
		if n := p.Add(off); g.IsValid(n) {
			out = append(out, n)
		}
	}
	return out
}

// Cells returns a copy of the grid encoded with the Cell* constants.
func (g *Grid) Cells() []uint8 {
	out := make([]uint8, len(g.cells))
	for i := range g.cells {
		mu := g.stripe(i)
		mu.RLock()
		switch g.cells[i].kind {
		case Obstacle:
			out[i] = CellObstacle
		case Occupied:
			out[i] = CellPerson
		}
		mu.RUnlock()
	}
	return out
}

// Occupants returns every person currently on the grid keyed by position.
func (g *Grid) Occupants() map[Pos]*Person {
	out := make(map[Pos]*Person)
	for i := range g.cells {
		mu := g.stripe(i)
		mu.RLock()
		if c := g.cells[i]; c.kind == Occupied {
			out[Pos{X: i % g.W, Y: i / g.W}] = c.person
		}
		mu.RUnlock()
	}
	return out
}
