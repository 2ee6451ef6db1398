package app

import (
	"flag"
	"testing"
	"time"
)

func TestBindOverridesDefaults(t *testing.T) {
	cfg := NewConfig()
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	cfg.Bind(fs)
	if err := fs.Parse([]string{"-scale", "4", "-workers", "2", "-interval", "5ms", "-hud", "0"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Scale != 4 || cfg.Workers != 2 || cfg.Interval != 5*time.Millisecond || cfg.HUDWidth != 0 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.TPS != 60 || cfg.Cycles != 1 {
		t.Fatalf("untouched defaults changed: %+v", cfg)
	}
}
