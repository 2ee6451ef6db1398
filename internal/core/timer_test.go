package core

import (
	"testing"
	"time"
)

func TestFixedStepDelay(t *testing.T) {
	fs := NewFixedStep(100 * time.Millisecond)
	now := time.Unix(100, 0)
	if d := fs.Delay(now); d != 0 {
		t.Fatalf("first tick should not wait, got %v", d)
	}
	fs.Mark(now)
	if d := fs.Delay(now.Add(30 * time.Millisecond)); d != 70*time.Millisecond {
		t.Fatalf("expected 70ms, got %v", d)
	}
	if d := fs.Delay(now.Add(200 * time.Millisecond)); d != 0 {
		t.Fatalf("late tick should not wait, got %v", d)
	}
}

func TestFixedStepDisabled(t *testing.T) {
	fs := NewFixedStepTPS(0)
	fs.Mark(time.Now())
	if d := fs.Delay(time.Now()); d != 0 {
		t.Fatalf("disabled pacing should never wait, got %v", d)
	}
	if NewFixedStepTPS(4).Step() != 250*time.Millisecond {
		t.Fatal("4 TPS should map to 250ms")
	}
}
