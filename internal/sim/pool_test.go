package sim

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

func TestPoolEachCoversEveryIndexOnce(t *testing.T) {
	for _, workers := range []int{1, 3, 8} {
		p := newPool(workers)
		for _, n := range []int{0, 1, 2, 7, 64, 1000} {
			hits := make([]int32, n)
			if err := p.each(n, func(lo, hi int) error {
				for i := lo; i < hi; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
				return nil
			}); err != nil {
				t.Fatalf("workers=%d n=%d: unexpected error %v", workers, n, err)
			}
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("workers=%d n=%d: index %d visited %d times", workers, n, i, h)
				}
			}
		}
		if err := p.close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
}

func TestPoolEachJoinsErrors(t *testing.T) {
	p := newPool(4)
	defer p.close()
	boom := errors.New("boom")
	err := p.each(8, func(lo, hi int) error {
		if lo == 0 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	p := newPool(2)
	defer p.close()
	err := p.each(2, func(lo, hi int) error {
		if lo == 1 {
			panic("bad chunk")
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
	// The pool must survive and keep serving phases.
	if err := p.each(2, func(int, int) error { return nil }); err != nil {
		t.Fatalf("pool unusable after panic: %v", err)
	}
	if p.size() != 2 {
		t.Fatalf("size = %d, expected 2", p.size())
	}
}

func TestPoolCloseReportsPanic(t *testing.T) {
	p := newPool(3)
	_ = p.each(3, func(lo, hi int) error {
		if lo == 2 {
			panic("bad chunk")
		}
		return nil
	})
	err := p.close()
	if err == nil || !strings.Contains(err.Error(), "bad chunk") {
		t.Fatalf("close() = %v, expected the recovered panic", err)
	}
}

func TestPoolCloseCleanRun(t *testing.T) {
	p := newPool(2)
	if err := p.each(4, func(int, int) error { return nil }); err != nil {
		t.Fatalf("each: %v", err)
	}
	if err := p.close(); err != nil {
		t.Fatalf("close() = %v, expected nil", err)
	}
}
