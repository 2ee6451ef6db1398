package core

import "time"

// FixedStep paces simulation ticks at a steady rate. A zero step disables
// pacing.
type FixedStep struct {
	step time.Duration
	last time.Time
}

// NewFixedStep constructs a FixedStep that allows one tick every step.
func NewFixedStep(step time.Duration) *FixedStep {
	fs := &FixedStep{}
	fs.SetStep(step)
	return fs
}

// NewFixedStepTPS constructs a FixedStep targeting the given ticks per second.
func NewFixedStepTPS(tps int) *FixedStep {
	if tps <= 0 {
		return NewFixedStep(0)
	}
	return NewFixedStep(time.Second / time.Duration(tps))
}

// SetStep changes the tick period. Negative values disable pacing.
func (f *FixedStep) SetStep(step time.Duration) {
	if step < 0 {
		step = 0
	}
	f.step = step
}

// Step returns the configured period.
func (f *FixedStep) Step() time.Duration { return f.step }

// Delay reports how long to wait at now before the next tick may run.
func (f *FixedStep) Delay(now time.Time) time.Duration {
	if f.step == 0 || f.last.IsZero() {
		return 0
	}
	if d := f.last.Add(f.step).Sub(now); d > 0 {
		return d
	}
	return 0
}

// Mark records that a tick started at now.
func (f *FixedStep) Mark(now time.Time) { f.last = now }
