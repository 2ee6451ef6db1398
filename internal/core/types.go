package core

// Size describes the dimensions of a simulation grid.
type Size struct {
	W int
	H int
}

// Cell values returned by Grid.Cells.
const (
	CellEmpty    uint8 = 0
	CellObstacle uint8 = 1
	CellPerson   uint8 = 2
)
