package sim

import (
	"flag"
	"fmt"
	"runtime"
	"strconv"
	"time"
)

// Config controls the grid dimensions and the worker pool.
type Config struct {
	Width   int
	Height  int
	Workers int

	// TickInterval is the minimum wall time between tick starts. Zero runs
	// ticks back to back.
	TickInterval time.Duration
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{Width: 32, Height: 32, Workers: runtime.NumCPU()}
}

// FromMap populates the config from a string map (flag-style key/value pairs).
func FromMap(cfg map[string]string) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if v, ok := cfg["w"]; ok {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			c.Width = parsed
		}
	}
	if v, ok := cfg["h"]; ok {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			c.Height = parsed
		}
	}
	if v, ok := cfg["workers"]; ok {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			c.Workers = parsed
		}
	}
	if v, ok := cfg["interval"]; ok {
		if parsed, err := time.ParseDuration(v); err == nil && parsed >= 0 {
			c.TickInterval = parsed
		}
	}
	return c
}

// Bind attaches the tunables that are not positional CLI arguments.
func (c *Config) Bind(fs *flag.FlagSet) {
	fs.DurationVar(&c.TickInterval, "interval", c.TickInterval, "minimum time between ticks (0 = unpaced)")
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("grid size %dx%d must be positive", c.Width, c.Height)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("worker count %d must be positive", c.Workers)
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("tick interval %v must not be negative", c.TickInterval)
	}
	return nil
}
