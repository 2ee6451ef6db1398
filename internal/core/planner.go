package core

// NextPosition returns where p should step next on g. It picks the empty
// neighbour strictly closer to the goal than the current cell, preferring the
// earliest entry of NeighborOffsets on ties. The grid is only read.
func NextPosition(p *Person, g *Grid) Pos {
	cur, goal := p.state()
	if !g.IsValid(cur) || !g.IsValid(goal) || cur.Eq(goal) {
		return cur
	}
	best := cur
	bestDist := cur.DistanceSq(goal)
	for _, off := range NeighborOffsets {
		cand := cur.Add(off)
		if kind, _ := g.Get(cand); kind != Empty {
			continue
		}
		if d := cand.DistanceSq(goal); d < bestDist {
			best, bestDist = cand, d
		}
	}
	return best
}
