package core

import (
	"context"
	"sync"
)

// signal is a one-shot broadcast. err is written before ch is closed.
type signal struct {
	ch  chan struct{}
	err error
}

func newSignal() *signal { return &signal{ch: make(chan struct{})} }

func (s *signal) fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Person is an agent walking toward its goal. While plugged into a
// simulation its position is written only by the engine.
type Person struct {
	ID int

	mu       sync.Mutex
	cur      Pos
	goal     Pos
	time     uint64
	lastMove uint64
	reached  *signal
}

// NewPerson returns a detached person with both positions unset.
func NewPerson(id int) *Person {
	return &Person{ID: id, cur: NoPos, goal: NoPos, reached: newSignal()}
}

// Pos returns the current position.
func (p *Person) Pos() Pos {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

// Goal returns the goal position.
func (p *Person) Goal() Pos {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.goal
}

// Place sets both positions. Only valid while the person is detached.
func (p *Person) Place(cur, goal Pos) {
	p.mu.Lock()
	p.cur = cur
	p.goal = goal
	p.mu.Unlock()
}

// SetPos sets the current position. Only valid while the person is detached.
func (p *Person) SetPos(cur Pos) {
	p.mu.Lock()
	p.cur = cur
	p.mu.Unlock()
}

// Time returns the last tick at which the engine evaluated this person.
func (p *Person) Time() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.time
}

// LastMove returns the tick of the last actual move.
func (p *Person) LastMove() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastMove
}

// Idle returns how many ticks passed since the person last moved.
func (p *Person) Idle() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.time - p.lastMove
}

// Reached reports whether the person is at its goal.
func (p *Person) Reached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur.Eq(p.goal) && p.cur != NoPos
}

// Join blocks until the person reaches its goal. It returns the detach error
// when the person is unplugged or its simulation is destroyed first.
func (p *Person) Join(ctx context.Context) error {
	p.mu.Lock()
	sig := p.reached
	p.mu.Unlock()
	select {
	case <-sig.ch:
		return sig.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Arm prepares the reached signal for a new membership and fires it at once
// when the person already stands on its goal.
func (p *Person) Arm(tick uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reached.fired() {
		p.reached = newSignal()
	}
	p.time = tick
	p.lastMove = tick
	if p.cur.Eq(p.goal) {
		close(p.reached.ch)
	}
}

// Release wakes joiners with err unless the goal was already reached.
func (p *Person) Release(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reached.fired() {
		return
	}
	p.reached.err = err
	close(p.reached.ch)
}

// Observe records that the engine evaluated the person during tick.
func (p *Person) Observe(tick uint64) {
	p.mu.Lock()
	p.time = tick
	p.mu.Unlock()
}

// Advance stores the position granted during tick and fires the reached
// signal when the goal is hit. It reports whether the goal was reached.
func (p *Person) Advance(to Pos, tick uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cur = to
	p.time = tick
	p.lastMove = tick
	if !to.Eq(p.goal) {
		return false
	}
	if !p.reached.fired() {
		close(p.reached.ch)
	}
	return true
}

// state returns both positions under a single lock.
func (p *Person) state() (Pos, Pos) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur, p.goal
}
