package app

import (
	"flag"
	"time"
)

// Config represents the command-line parameters for the viewer.
type Config struct {
	Scale    int
	TPS      int
	HUDWidth int
	Workers  int
	Cycles   int
	Interval time.Duration
}

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{Scale: 8, TPS: 60, HUDWidth: 220, Workers: 4, Cycles: 1, Interval: 100 * time.Millisecond}
}

// Bind attaches the configuration to the provided FlagSet.
func (c *Config) Bind(fs *flag.FlagSet) {
	fs.IntVar(&c.Scale, "scale", c.Scale, "pixel scale multiplier")
	fs.IntVar(&c.TPS, "tps", c.TPS, "frames per second")
	fs.IntVar(&c.HUDWidth, "hud", c.HUDWidth, "parameter panel width in pixels (0 hides it)")
	fs.IntVar(&c.Workers, "workers", c.Workers, "simulation worker count")
	fs.IntVar(&c.Cycles, "cycles", c.Cycles, "number of times persons are re-plugged at their start")
	fs.DurationVar(&c.Interval, "interval", c.Interval, "minimum time between ticks")
}
