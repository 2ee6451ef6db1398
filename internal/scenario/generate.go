package scenario

import (
	"fmt"
	"time"

	"crowdsim/internal/core"
	pcore "crowdsim/pkg/core"
)

// GenConfig controls Generate.
type GenConfig struct {
	Width, Height int
	Obstacles     int
	MaxObstacle   int
	Persons       int
	Insertions    int
	Interval      time.Duration
	Seed          int64
}

// DefaultGenConfig returns a small, moderately crowded scenario.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:       64,
		Height:      64,
		Obstacles:   12,
		MaxObstacle: 6,
		Persons:     200,
		Insertions:  10,
		Interval:    50 * time.Millisecond,
		Seed:        1,
	}
}

// Generate builds a random scenario. The same config always yields the same
// scenario. Persons start on distinct free cells; when the grid runs out of
// free cells fewer persons are generated than requested.
func Generate(cfg GenConfig) (*Scenario, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("grid size %dx%d must be positive", cfg.Width, cfg.Height)
	}
	if cfg.MaxObstacle <= 0 {
		cfg.MaxObstacle = 1
	}
	rng := pcore.NewRNG(cfg.Seed)
	sc := &Scenario{Width: cfg.Width, Height: cfg.Height, InsertionInterval: cfg.Interval}

	for i := 0; i < cfg.Obstacles; i++ {
		w := rng.Between(1, min(cfg.MaxObstacle, cfg.Width))
		h := rng.Between(1, min(cfg.MaxObstacle, cfg.Height))
		sc.Obstacles = append(sc.Obstacles, Rect{
			X: rng.IntN(cfg.Width - w + 1),
			Y: rng.IntN(cfg.Height - h + 1),
			W: w,
			H: h,
		})
	}

	free := make([]core.Pos, 0, cfg.Width*cfg.Height)
	for _, idx := range rng.Perm(cfg.Width * cfg.Height) {
		p := core.P(idx%cfg.Width, idx/cfg.Width)
		if !sc.blocked(p) {
			free = append(free, p)
		}
	}
	if len(free) == 0 {
		return sc, nil
	}
	goal := func() core.Pos { return free[rng.IntN(len(free))] }

	n := min(cfg.Persons, len(free))
	for _, start := range free[:n] {
		sc.Persons = append(sc.Persons, Route{Start: start, Goal: goal()})
	}
	for i := 0; i < cfg.Insertions; i++ {
		sc.Insertions = append(sc.Insertions, Route{Start: goal(), Goal: goal()})
	}
	return sc, nil
}
