// Package sim runs persons on a shared grid with a fixed pool of workers.
//
// A coordinator goroutine drives ticks. Every tick has a read-only plan
// phase, a sequential resolve step that grants contested cells to the lowest
// person ID, and a parallel grant phase that applies the moves. Membership
// changes and pause requests are only honoured between ticks.
package sim

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"crowdsim/internal/core"
	"crowdsim/internal/logging"
)

// State is the lifecycle state of a Simulation.
type State int

const (
	Created State = iota
	Running
	Paused
	Destroyed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidTransition reports lifecycle misuse by the caller.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	// ErrDestroyed is returned to callers woken by Destroy.
	ErrDestroyed = errors.New("simulation destroyed")
	// ErrUnplugged is returned by Join when the person is unplugged before
	// reaching its goal.
	ErrUnplugged = errors.New("person unplugged")
	// ErrNotPlugged is returned by Unplug for non-members.
	ErrNotPlugged = errors.New("person not plugged")
	// ErrAlreadyPlugged is returned by Plug for current members.
	ErrAlreadyPlugged = errors.New("person already plugged")
)

// TickReport summarises one completed tick.
type TickReport struct {
	Tick      uint64        `json:"tick"`
	Active    int           `json:"active"`
	Moved     int           `json:"moved"`
	Stalled   int           `json:"stalled"`
	Conflicts int           `json:"conflicts"`
	Reached   int           `json:"reached"`
	Duration  time.Duration `json:"duration"`
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTickObserver registers fn to run on the coordinator goroutine after
// every tick, with no simulation lock held. fn may read snapshots but must
// not call Pause, Advance or Destroy.
func WithTickObserver(fn func(TickReport)) Option {
	return func(s *Simulation) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// WithTickInterval overrides Config.TickInterval.
func WithTickInterval(d time.Duration) Option {
	return func(s *Simulation) {
		s.cfg.TickInterval = d
		s.pacer.SetStep(d)
	}
}

// Simulation owns the grid, the worker pool and the active person set.
type Simulation struct {
	id        string
	cfg       Config
	log       logging.Logger
	observers []func(TickReport)

	// stepMu is held for writing while a tick mutates the grid so readers
	// outside the engine only ever see whole ticks.
	stepMu sync.RWMutex

	mu       sync.Mutex
	cond     *sync.Cond
	grid     *core.Grid
	state    State
	tick     uint64
	members  *roster
	pending  []*request
	idle     bool
	closing  bool
	budget   int
	loopDone chan struct{}
	pacer    *core.FixedStep
	last     TickReport
	poolErr  error

	pool *pool
}

// New creates a simulation in the Created state.
func New(cfg Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulation{
		id:      uuid.NewString(),
		cfg:     cfg,
		log:     logging.NoOpLogger{},
		grid:    core.NewGrid(cfg.Width, cfg.Height),
		members: newRoster(),
		pacer:   core.NewFixedStep(cfg.TickInterval),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.With(s.log, "sim", s.id)
	s.log.Info("simulation created", "width", cfg.Width, "height", cfg.Height, "workers", cfg.Workers)
	return s, nil
}

// ID returns the unique run identifier.
func (s *Simulation) ID() string { return s.id }

// Workers returns the pool size.
func (s *Simulation) Workers() int { return s.cfg.Workers }

// Grid returns the grid, or nil once destroyed. Static cells may only be
// edited before Start.
func (s *Simulation) Grid() *core.Grid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid
}

// State returns the lifecycle state.
func (s *Simulation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// LastReport returns the report of the most recent tick.
func (s *Simulation) LastReport() TickReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Simulation) invalidLocked(op string) error {
	s.log.Error("invalid lifecycle transition", "op", op, "state", s.state.String())
	if s.closing || s.state == Destroyed {
		return fmt.Errorf("%w: %s while %s: %w", ErrInvalidTransition, op, s.state, ErrDestroyed)
	}
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, s.state)
}

// Start moves a Created or Paused simulation to Running and returns
// immediately; ticks continue in the background.
func (s *Simulation) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing || (s.state != Created && s.state != Paused) {
		return s.invalidLocked("start")
	}
	s.state = Running
	s.ensureLoopLocked()
	s.cond.Broadcast()
	s.log.Info("simulation started", "tick", s.tick, "members", s.members.len())
	return nil
}

// Pause stops ticking at the next boundary and waits until it is reached.
func (s *Simulation) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing || s.state != Running {
		return s.invalidLocked("pause")
	}
	s.state = Paused
	s.cond.Broadcast()
	for !s.idle && !s.closing {
		s.cond.Wait()
	}
	if s.closing {
		return ErrDestroyed
	}
	s.log.Info("simulation paused", "tick", s.tick)
	return nil
}

// Continue resumes a paused simulation.
func (s *Simulation) Continue() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing || s.state != Paused {
		return s.invalidLocked("continue")
	}
	s.state = Running
	s.cond.Broadcast()
	s.log.Info("simulation resumed", "tick", s.tick)
	return nil
}

// Advance runs exactly n ticks on the worker pool and returns parked at a
// boundary. It is valid in the Created and Paused states; a Created
// simulation becomes Paused.
func (s *Simulation) Advance(n int) error {
	if n <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing || (s.state != Created && s.state != Paused) {
		return s.invalidLocked("advance")
	}
	s.state = Paused
	s.ensureLoopLocked()
	target := s.tick + uint64(n)
	s.budget += n
	s.cond.Broadcast()
	for !s.closing && (s.tick < target || (s.state == Paused && !s.idle)) {
		s.cond.Wait()
	}
	if s.closing {
		return ErrDestroyed
	}
	return nil
}

// Destroy stops the workers at a tick boundary, wakes every blocked caller
// with ErrDestroyed, detaches all persons and releases the grid. It returns
// the first panic a worker recovered from, if any. Calling it again is a
// no-op.
func (s *Simulation) Destroy() error {
	s.mu.Lock()
	if s.state == Destroyed {
		s.mu.Unlock()
		return nil
	}
	if !s.closing {
		s.closing = true
		s.log.Info("simulation destroying", "tick", s.tick, "state", s.state.String())
	}
	done := s.loopDone
	s.cond.Broadcast()
	s.mu.Unlock()

	if done != nil {
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Destroyed {
		return nil
	}
	s.failPendingLocked(ErrDestroyed)
	for _, p := range s.members.sorted() {
		s.grid.Vacate(p.Pos(), p)
		p.Release(ErrDestroyed)
	}
	s.members = newRoster()
	s.grid = nil
	s.state = Destroyed
	s.idle = false
	s.cond.Broadcast()
	s.log.Info("simulation destroyed", "tick", s.tick)
	return s.poolErr
}

func (s *Simulation) ensureLoopLocked() {
	if s.loopDone != nil {
		return
	}
	s.pool = newPool(s.cfg.Workers)
	s.loopDone = make(chan struct{})
	go s.loop()
}

func (s *Simulation) wake() {
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Simulation) loop() {
	defer close(s.loopDone)
	defer func() {
		err := s.pool.close()
		s.mu.Lock()
		s.poolErr = err
		s.mu.Unlock()
	}()
	for {
		active, tick, ok := s.awaitBoundary()
		if !ok {
			return
		}
		report := s.step(active, tick)

		s.mu.Lock()
		s.tick = tick
		s.last = report
		s.cond.Broadcast()
		s.mu.Unlock()

		for _, fn := range s.observers {
			fn(report)
		}
	}
}

// awaitBoundary applies queued membership changes and blocks while paused or
// pacing. Once Destroy has begun, queued changes fail with ErrDestroyed. A running simulation without members parks until one is plugged.
// It returns the members for the next tick and that tick's number.
func (s *Simulation) awaitBoundary() ([]*core.Person, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.closing {
			s.failPendingLocked(ErrDestroyed)
			s.idle = false
			return nil, 0, false
		}
		s.applyPendingLocked()
		if s.budget == 0 {
			if s.state == Paused || s.members.len() == 0 {
				s.idle = true
				s.cond.Broadcast()
				s.cond.Wait()
				continue
			}
			if d := s.pacer.Delay(time.Now()); d > 0 {
				s.idle = true
				t := time.AfterFunc(d, s.wake)
				s.cond.Wait()
				t.Stop()
				continue
			}
		}
		break
	}
	s.idle = false
	if s.budget > 0 {
		s.budget--
	}
	s.pacer.Mark(time.Now())
	return s.members.sorted(), s.tick + 1, true
}

type move struct {
	p        *core.Person
	from, to core.Pos
}

// step runs one tick over active, which is sorted by ID.
func (s *Simulation) step(active []*core.Person, tick uint64) TickReport {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	start := time.Now()
	grid := s.grid
	n := len(active)
	from := make([]core.Pos, n)
	plans := make([]core.Pos, n)

	if err := s.pool.each(n, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			p := active[i]
			from[i] = p.Pos()
			plans[i] = core.NextPosition(p, grid)
			p.Observe(tick)
		}
		return nil
	}); err != nil {
		s.log.Error("plan phase failed", "tick", tick, "error", err)
	}

	report := TickReport{Tick: tick, Active: n}
	claimed := make(map[int]struct{}, n)
	moves := make([]move, 0, n)
	for i, p := range active {
		if plans[i].Eq(from[i]) {
			if !p.Reached() {
				report.Stalled++
			}
			continue
		}
		idx := grid.Index(plans[i])
		if _, taken := claimed[idx]; taken {
			report.Conflicts++
			report.Stalled++
			continue
		}
		claimed[idx] = struct{}{}
		moves = append(moves, move{p: p, from: from[i], to: plans[i]})
	}

	var moved, reached atomic.Int64
	if err := s.pool.each(len(moves), func(lo, hi int) error {
		var errs []error
		for _, m := range moves[lo:hi] {
			if err := grid.Move(m.from, m.to, m.p); err != nil {
				errs = append(errs, fmt.Errorf("person %d %v->%v: %w", m.p.ID, m.from, m.to, err))
				continue
			}
			moved.Add(1)
			if m.p.Advance(m.to, tick) {
				reached.Add(1)
			}
		}
		return errors.Join(errs...)
	}); err != nil {
		s.log.Error("grant phase failed", "tick", tick, "error", err)
	}

	report.Moved = int(moved.Load())
	report.Reached = int(reached.Load())
	report.Duration = time.Since(start)
	s.log.Debug("tick", "tick", tick, "active", n, "moved", report.Moved, "conflicts", report.Conflicts, "reached", report.Reached)
	return report
}
