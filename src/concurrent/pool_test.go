package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMapKeepsOrderAndErrors(t *testing.T) {
	boom := errors.New("boom")
	got := Map(context.Background(), []int{1, 2, 3, 4}, 2, func(_ context.Context, n int) (int, error) {
		if n == 3 {
			return 0, boom
		}
		return n * 10, nil
	})

	if len(got) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(got))
	}
	for i, want := range []int{10, 20, 0, 40} {
		if got[i].Value != want {
			t.Errorf("outcome %d: value %d, want %d", i, got[i].Value, want)
		}
	}
	if !errors.Is(got[2].Err, boom) {
		t.Errorf("outcome 2: err %v, want boom", got[2].Err)
	}
	if got[0].Err != nil || got[3].Err != nil {
		t.Errorf("unexpected errors: %v %v", got[0].Err, got[3].Err)
	}
}

func TestMapBoundsParallelism(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := make([]int, 12)
	Map(context.Background(), items, 3, func(context.Context, int) (struct{}, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, nil
	})
	if peak.Load() > 3 {
		t.Fatalf("peak parallelism %d exceeds limit 3", peak.Load())
	}
}

func TestMapCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	got := Map(ctx, []string{"a", "b"}, 1, func(context.Context, string) (string, error) {
		calls.Add(1)
		return "x", nil
	})
	if calls.Load() != 0 {
		t.Fatalf("fn ran %d times on a cancelled context", calls.Load())
	}
	for i, o := range got {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("outcome %d: err %v, want context.Canceled", i, o.Err)
		}
	}
	if Map[int, int](context.Background(), nil, 0, nil) != nil {
		t.Fatal("empty input should return nil")
	}
}
