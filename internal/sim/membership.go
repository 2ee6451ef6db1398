package sim

import (
	"errors"
	"fmt"

	"crowdsim/internal/core"
)

// PlugResult is the outcome of a plug attempt that did not fail with an error.
type PlugResult int

const (
	// PlugRejected accompanies a non-nil error.
	PlugRejected PlugResult = iota
	// PlugInserted means the person is now on the grid and ticking.
	PlugInserted
	// PlugOccupied means the person's cell was taken; nothing changed.
	PlugOccupied
)

func (r PlugResult) String() string {
	switch r {
	case PlugInserted:
		return "inserted"
	case PlugOccupied:
		return "occupied"
	default:
		return "rejected"
	}
}

type opKind int

const (
	opPlug opKind = iota
	opUnplug
)

type reply struct {
	res PlugResult
	err error
}

// request is a membership change waiting for the next tick boundary.
type request struct {
	op    opKind
	p     *core.Person
	reply chan reply
}

// PlugUnsafe inserts p while no tick can be in flight: before the first
// Start or while paused.
func (s *Simulation) PlugUnsafe(p *core.Person) (PlugResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing || !(s.state == Created || (s.state == Paused && s.idle)) {
		return PlugRejected, s.invalidLocked("plug")
	}
	return s.plugLocked(p)
}

// Plug inserts p at its current position. While ticks are running the
// request is applied at the next boundary and Plug blocks until then.
func (s *Simulation) Plug(p *core.Person) (PlugResult, error) {
	r := s.submit(opPlug, p)
	return r.res, r.err
}

// Unplug removes p from the grid. Joiners waiting on p are released with
// ErrUnplugged unless it already reached its goal.
func (s *Simulation) Unplug(p *core.Person) error {
	return s.submit(opUnplug, p).err
}

func (s *Simulation) submit(op opKind, p *core.Person) reply {
	s.mu.Lock()
	if s.closing || s.state == Destroyed {
		s.mu.Unlock()
		return reply{err: ErrDestroyed}
	}
	if s.loopDone == nil || s.idle {
		defer s.mu.Unlock()
		r := s.applyLocked(op, p)
		s.cond.Broadcast()
		return r
	}
	req := &request{op: op, p: p, reply: make(chan reply, 1)}
	s.pending = append(s.pending, req)
	s.cond.Broadcast()
	s.mu.Unlock()
	return <-req.reply
}

func (s *Simulation) applyLocked(op opKind, p *core.Person) reply {
	if op == opUnplug {
		return reply{err: s.unplugLocked(p)}
	}
	res, err := s.plugLocked(p)
	return reply{res: res, err: err}
}

func (s *Simulation) applyPendingLocked() {
	if len(s.pending) == 0 {
		return
	}
	for _, req := range s.pending {
		req.reply <- s.applyLocked(req.op, req.p)
	}
	s.log.Debug("membership applied", "tick", s.tick, "requests", len(s.pending), "members", s.members.len())
	s.pending = nil
}

func (s *Simulation) failPendingLocked(err error) {
	for _, req := range s.pending {
		req.reply <- reply{err: err}
	}
	s.pending = nil
}

func (s *Simulation) plugLocked(p *core.Person) (PlugResult, error) {
	if s.members.contains(p) {
		return PlugRejected, fmt.Errorf("plug person %d: %w", p.ID, ErrAlreadyPlugged)
	}
	cur := p.Pos()
	if _, err := s.grid.PlaceIfEmpty(cur, p); err != nil {
		if errors.Is(err, core.ErrOccupied) {
			s.log.Debug("plug rejected", "person", p.ID, "pos", cur.String())
			return PlugOccupied, nil
		}
		return PlugRejected, fmt.Errorf("plug person %d at %v: %w", p.ID, cur, err)
	}
	s.members.add(p)
	p.Arm(s.tick)
	s.log.Debug("person plugged", "person", p.ID, "pos", cur.String(), "goal", p.Goal().String())
	return PlugInserted, nil
}

func (s *Simulation) unplugLocked(p *core.Person) error {
	if !s.members.remove(p) {
		return fmt.Errorf("unplug person %d: %w", p.ID, ErrNotPlugged)
	}
	if pos := p.Pos(); !s.grid.Vacate(pos, p) {
		s.log.Error("unplugged person missing from its cell", "person", p.ID, "pos", pos.String())
	}
	p.Release(ErrUnplugged)
	s.log.Debug("person unplugged", "person", p.ID)
	return nil
}

// Members returns the number of plugged persons.
func (s *Simulation) Members() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members.len()
}
