package sim

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

type job struct {
	lo, hi int
	fn     func(lo, hi int) error
	errs   []error
	slot   int
	wg     *sync.WaitGroup
}

// pool is a fixed set of worker goroutines reused for every phase of every
// tick. each() is the phase barrier: it returns once all workers finished
// their chunk.
type pool struct {
	queues []chan job
	g      errgroup.Group
}

func newPool(workers int) *pool {
	p := &pool{queues: make([]chan job, workers)}
	for i := range p.queues {
		q := make(chan job)
		p.queues[i] = q
		p.g.Go(func() error { return work(q) })
	}
	return p
}

// work serves jobs until q is closed. A panicking job fails only its own
// chunk; the first panic is also returned when the worker exits.
func work(q <-chan job) error {
	var panicked error
	for j := range q {
		func() {
			defer j.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("worker panic: %v", r)
					j.errs[j.slot] = err
					if panicked == nil {
						panicked = err
					}
				}
			}()
			if j.lo < j.hi {
				j.errs[j.slot] = j.fn(j.lo, j.hi)
			}
		}()
	}
	return panicked
}

func (p *pool) size() int { return len(p.queues) }

// each splits [0, n) into one contiguous chunk per worker, runs fn on every
// chunk in parallel and waits for all of them. Workers with an empty chunk
// still pass through the barrier.
func (p *pool) each(n int, fn func(lo, hi int) error) error {
	workers := len(p.queues)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w, q := range p.queues {
		q <- job{lo: w * n / workers, hi: (w + 1) * n / workers, fn: fn, errs: errs, slot: w, wg: &wg}
	}
	wg.Wait()
	return errors.Join(errs...)
}

// close stops every worker and waits for them to exit. It reports the first
// panic any worker recovered from.
func (p *pool) close() error {
	for _, q := range p.queues {
		close(q)
	}
	return p.g.Wait()
}
