package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"crowdsim/internal/core"
	"crowdsim/internal/logging"
	"crowdsim/internal/sim"
)

// Summary describes the cycle durations of a run in milliseconds.
type Summary struct {
	Count  int     `json:"count"`
	MeanMS float64 `json:"mean_ms"`
	StdMS  float64 `json:"std_ms"`
	MinMS  float64 `json:"min_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// Summarize computes a Summary over durations.
func Summarize(durations []time.Duration) Summary {
	if len(durations) == 0 {
		return Summary{}
	}
	ms := make([]float64, len(durations))
	for i, d := range durations {
		ms[i] = float64(d) / float64(time.Millisecond)
	}
	s := Summary{Count: len(ms), MinMS: floats.Min(ms), MaxMS: floats.Max(ms)}
	if len(ms) == 1 {
		s.MeanMS = ms[0]
		return s
	}
	s.MeanMS, s.StdMS = stat.MeanStdDev(ms, nil)
	return s
}

// Result is the outcome of Runner.Run.
type Result struct {
	RunID     string          `json:"run_id"`
	Threads   int             `json:"threads"`
	Persons   int             `json:"persons"`
	Cycles    []time.Duration `json:"cycles"`
	Summary   Summary         `json:"summary"`
	Ticks     uint64          `json:"ticks"`
	Conflicts int64           `json:"conflicts"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger shared by the runner and its simulation.
func WithLogger(l logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithOutput sets where per-cycle timings are printed.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		if w != nil {
			r.out = w
		}
	}
}

// WithSimOptions passes extra options to the simulation.
func WithSimOptions(opts ...sim.Option) Option {
	return func(r *Runner) { r.simOpts = append(r.simOpts, opts...) }
}

// Runner drives a scenario through a number of cycles.
type Runner struct {
	scenario   *Scenario
	sim        *sim.Simulation
	persons    []*core.Person
	insertions []*core.Person

	log     logging.Logger
	out     io.Writer
	simOpts []sim.Option

	conflicts atomic.Int64
	retries   atomic.Int64
	ticked    chan struct{}

	stop         chan struct{}
	inserterDone chan struct{}
	tearDown     sync.Once
	tearErr      error
}

// Load parses the scenario at path and builds a Runner with threads workers.
func Load(path string, threads int, opts ...Option) (*Runner, error) {
	sc, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return NewRunner(sc, threads, opts...)
}

// NewRunner builds the simulation for sc and plugs its initial persons.
func NewRunner(sc *Scenario, threads int, opts ...Option) (*Runner, error) {
	r := &Runner{
		scenario: sc,
		log:      logging.NoOpLogger{},
		out:      io.Discard,
		stop:     make(chan struct{}),
		ticked:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	simOpts := append([]sim.Option{
		sim.WithLogger(r.log),
		sim.WithTickObserver(func(rep sim.TickReport) {
			r.conflicts.Add(int64(rep.Conflicts))
			select {
			case r.ticked <- struct{}{}:
			default:
			}
		}),
	}, r.simOpts...)
	s, err := sim.New(sim.Config{Width: sc.Width, Height: sc.Height, Workers: threads}, simOpts...)
	if err != nil {
		return nil, err
	}
	r.sim = s
	if err := r.build(); err != nil {
		_ = s.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Runner) build() error {
	g := r.sim.Grid()
	for _, rect := range r.scenario.Obstacles {
		for y := rect.Y; y < rect.Y+rect.H; y++ {
			for x := rect.X; x < rect.X+rect.W; x++ {
				if _, err := g.SetStatic(core.P(x, y), core.Obstacle); err != nil {
					return fmt.Errorf("obstacle %v: %w", rect, err)
				}
			}
		}
	}
	for i, route := range r.scenario.Persons {
		p := core.NewPerson(i + 1)
		p.Place(route.Start, route.Goal)
		res, err := r.sim.PlugUnsafe(p)
		if err != nil {
			return fmt.Errorf("person %d: %w", p.ID, err)
		}
		if res != sim.PlugInserted {
			return fmt.Errorf("%w: person %d at %v: %s", ErrMalformed, p.ID, route.Start, res)
		}
		r.persons = append(r.persons, p)
	}
	next := len(r.persons)
	for _, route := range r.scenario.Insertions {
		next++
		p := core.NewPerson(next)
		p.Place(route.Start, route.Goal)
		r.insertions = append(r.insertions, p)
	}
	return nil
}

// Simulation returns the simulation being driven.
func (r *Runner) Simulation() *sim.Simulation { return r.sim }

// Persons returns the initial persons in ID order.
func (r *Runner) Persons() []*core.Person { return r.persons }

// Run starts the simulation and waits for every person to reach its goal,
// cycles times. Between cycles all persons are put back on their start cells.
func (r *Runner) Run(ctx context.Context, cycles int) (Result, error) {
	if cycles < 1 {
		cycles = 1
	}
	res := Result{RunID: r.sim.ID(), Threads: r.sim.Workers(), Persons: len(r.persons)}
	r.startInserter()

	start := time.Now()
	if err := r.sim.Start(); err != nil {
		return res, err
	}
	r.log.Info("run started", "persons", len(r.persons), "insertions", len(r.insertions), "cycles", cycles)
	var sum time.Duration
	for i := 0; i < cycles; i++ {
		if i > 0 {
			start = time.Now()
			if err := r.replug(ctx); err != nil {
				return r.finish(res), fmt.Errorf("cycle %d: %w", i, err)
			}
		}
		for _, p := range r.persons {
			if err := p.Join(ctx); err != nil {
				return r.finish(res), fmt.Errorf("cycle %d: join person %d: %w", i, p.ID, err)
			}
		}
		d := time.Since(start)
		sum += d
		res.Cycles = append(res.Cycles, d)
		fmt.Fprintf(r.out, "Cycle %d took %.3f ms\n", i, float64(d)/float64(time.Millisecond))
	}
	fmt.Fprintf(r.out, "Avg. per cycle: %.3f\n", float64(sum)/float64(cycles)/float64(time.Millisecond))
	return r.finish(res), nil
}

func (r *Runner) finish(res Result) Result {
	res.Summary = Summarize(res.Cycles)
	res.Ticks = r.sim.Tick()
	res.Conflicts = r.conflicts.Load()
	return res
}

// replug takes every person off the grid and plugs it back at its start.
// A start cell held by an insertion is retried after the next tick.
func (r *Runner) replug(ctx context.Context) error {
	for _, p := range r.persons {
		if err := r.sim.Unplug(p); err != nil && !errors.Is(err, sim.ErrNotPlugged) {
			return err
		}
	}
	for i, p := range r.persons {
		route := r.scenario.Persons[i]
		for {
			seen := r.sim.Tick()
			p.Place(route.Start, route.Goal)
			res, err := r.sim.Plug(p)
			if err != nil {
				return fmt.Errorf("replug person %d: %w", p.ID, err)
			}
			if res == sim.PlugInserted {
				break
			}
			r.retries.Add(1)
			r.log.Debug("start cell occupied, waiting for next tick", "person", p.ID, "pos", route.Start, "tick", seen)
			if err := r.waitTick(ctx, seen); err != nil {
				return fmt.Errorf("replug person %d: %w", p.ID, err)
			}
		}
	}
	return nil
}

// waitTick blocks until the simulation has completed a tick after the given
// one.
func (r *Runner) waitTick(ctx context.Context, after uint64) error {
	for r.sim.Tick() <= after {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return sim.ErrDestroyed
		case <-r.ticked:
		}
	}
	return nil
}

func (r *Runner) startInserter() {
	if len(r.insertions) == 0 || r.inserterDone != nil {
		return
	}
	r.inserterDone = make(chan struct{})
	go r.insert()
}

// insert keeps plugging the insertion persons, waiting the scenario interval
// and unplugging them again until TearDown.
func (r *Runner) insert() {
	defer close(r.inserterDone)
	interval := r.scenario.InsertionInterval
	for {
		select {
		case <-r.stop:
			return
		default:
		}
		for i, p := range r.insertions {
			route := r.scenario.Insertions[i]
			p.Place(route.Start, route.Goal)
			res, err := r.sim.Plug(p)
			if err != nil {
				r.log.Warn("insertion plug failed", "person", p.ID, "error", err)
				return
			}
			if res == sim.PlugOccupied {
				r.log.Debug("insertion skipped, cell occupied", "person", p.ID, "pos", route.Start)
			}
		}
		if interval > 0 {
			select {
			case <-r.stop:
			case <-time.After(interval):
			}
		}
		for _, p := range r.insertions {
			if err := r.sim.Unplug(p); err != nil && !errors.Is(err, sim.ErrNotPlugged) {
				r.log.Warn("insertion unplug failed", "person", p.ID, "error", err)
				return
			}
		}
	}
}

// TearDown stops the inserter and destroys the simulation. It is safe to call
// more than once.
func (r *Runner) TearDown() error {
	r.tearDown.Do(func() {
		close(r.stop)
		if r.inserterDone != nil {
			<-r.inserterDone
		}
		r.tearErr = r.sim.Destroy()
		r.log.Info("run torn down", "ticks", r.sim.Tick())
	})
	return r.tearErr
}
