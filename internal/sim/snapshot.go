package sim

import (
	"crowdsim/internal/core"
)

// AgentState is one person as seen at a tick boundary.
type AgentState struct {
	ID      int      `json:"id"`
	Pos     core.Pos `json:"pos"`
	Goal    core.Pos `json:"goal"`
	Reached bool     `json:"reached"`
	Idle    uint64   `json:"idle"`
}

// Snapshot is a consistent view of the simulation between two ticks.
type Snapshot struct {
	ID     string       `json:"id"`
	Tick   uint64       `json:"tick"`
	State  string       `json:"state"`
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Cells  []uint8      `json:"cells,omitempty"`
	Agents []AgentState `json:"agents"`
}

// Snapshot captures the agents, and the cell contents when withCells is set.
// It never observes a partially applied tick.
func (s *Simulation) Snapshot(withCells bool) Snapshot {
	s.stepMu.RLock()
	defer s.stepMu.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:     s.id,
		Tick:   s.tick,
		State:  s.state.String(),
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
	}
	members := s.members.sorted()
	snap.Agents = make([]AgentState, 0, len(members))
	for _, p := range members {
		snap.Agents = append(snap.Agents, AgentState{
			ID:      p.ID,
			Pos:     p.Pos(),
			Goal:    p.Goal(),
			Reached: p.Reached(),
			Idle:    p.Idle(),
		})
	}
	if withCells && s.grid != nil {
		snap.Cells = s.grid.Cells()
	}
	return snap
}

// Size returns the grid dimensions.
func (s *Simulation) Size() core.Size {
	return core.Size{W: s.cfg.Width, H: s.cfg.Height}
}

// Cells returns the grid encoded with the core.Cell* constants. A destroyed
// simulation reports an empty grid.
func (s *Simulation) Cells() []uint8 {
	s.stepMu.RLock()
	defer s.stepMu.RUnlock()
	g := s.Grid()
	if g == nil {
		return make([]uint8, s.cfg.Width*s.cfg.Height)
	}
	return g.Cells()
}

// Goals returns the goal cell of every plugged person that has not arrived.
func (s *Simulation) Goals() []core.Pos {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.members.sorted()
	out := make([]core.Pos, 0, len(members))
	for _, p := range members {
		if !p.Reached() {
			out = append(out, p.Goal())
		}
	}
	return out
}

// Parameters reports the live values shown by the viewer HUD.
func (s *Simulation) Parameters() core.ParameterSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.ParameterSnapshot{Groups: []core.ParameterGroup{
		{
			Name: "Engine",
			Params: []core.Parameter{
				core.StringParam("state", "State", s.state.String()),
				core.Uint64Param("tick", "Tick", s.tick),
				core.IntParam("workers", "Workers", s.cfg.Workers),
				core.DurationParam("interval", "Interval", s.pacer.Step()),
			},
		},
		{
			Name: "Last tick",
			Params: []core.Parameter{
				core.IntParam("active", "Active", s.last.Active),
				core.IntParam("moved", "Moved", s.last.Moved),
				core.IntParam("conflicts", "Conflicts", s.last.Conflicts),
				core.DurationParam("duration", "Duration", s.last.Duration),
			},
		},
	}}
}
