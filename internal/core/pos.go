package core

import (
	"fmt"
	"math"
)

// Pos is a cell coordinate. X grows to the right and Y grows downwards in
// row-major storage order.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NoPos is the sentinel used by detached persons.
var NoPos = Pos{X: -1, Y: -1}

// P is shorthand for Pos{X: x, Y: y}.
func P(x, y int) Pos { return Pos{X: x, Y: y} }

// Add returns the component-wise sum.
func (p Pos) Add(o Pos) Pos { return Pos{X: p.X + o.X, Y: p.Y + o.Y} }

// Eq reports whether both components match.
func (p Pos) Eq(o Pos) bool { return p.X == o.X && p.Y == o.Y }

// DistanceSq returns the squared Euclidean distance. Comparisons use this form
// so ties are exact.
func (p Pos) DistanceSq(o Pos) int {
	dx := o.X - p.X
	dy := o.Y - p.Y
	return dx*dx + dy*dy
}

// Distance returns the Euclidean distance ignoring obstacles.
func (p Pos) Distance(o Pos) float64 {
	return math.Sqrt(float64(p.DistanceSq(o)))
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }
