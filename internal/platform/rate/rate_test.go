package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGate_BurstBoundedByCapacity(t *testing.T) {
	// capacity 3, one token every 500ms: within a window much shorter
	// than the refill interval, no more than 3 acquisitions may succeed
	// regardless of how many workers compete.
	gate := NewGate(Config{Capacity: 3, RefillInterval: 500 * time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var acquired int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gate.Acquire(ctx, "rest-api"); err == nil {
				atomic.AddInt64(&acquired, 1)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&acquired); got > 3 {
		t.Errorf("acquired %d tokens within one refill window, capacity is 3", got)
	}
	if got := atomic.LoadInt64(&acquired); got != 3 {
		t.Errorf("expected full burst of 3 acquisitions, got %d", got)
	}
}

func TestGate_MinSpacingEnforced(t *testing.T) {
	// Tokens are plentiful; only the spacing floor should pace callers.
	gate := NewGate(Config{Capacity: 10, RefillInterval: time.Millisecond, MinSpacing: 50 * time.Millisecond}, nil)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := gate.Acquire(ctx, "cdn-endpoint"); err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	// Three consecutive requests imply at least two spacing intervals.
	if elapsed < 100*time.Millisecond {
		t.Errorf("3 acquisitions took %v, want >= 100ms with 50ms spacing", elapsed)
	}
}

func TestGate_SourcesDoNotShareBudget(t *testing.T) {
	gate := NewGate(Config{Capacity: 1, RefillInterval: time.Minute}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := gate.Acquire(ctx, "dns-resolver"); err != nil {
		t.Fatalf("first source acquire failed: %v", err)
	}
	// A different source has its own bucket and must not be starved by
	// the first one being drained.
	if err := gate.Acquire(ctx, "rest-api"); err != nil {
		t.Fatalf("second source acquire failed: %v", err)
	}
}

func TestGate_PerSourceOverride(t *testing.T) {
	overrides := map[string]Config{
		"cdn-endpoint": {Capacity: 2, RefillInterval: time.Minute},
	}
	gate := NewGate(Config{Capacity: 1, RefillInterval: time.Minute}, overrides)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Override grants a burst of 2 where the default would allow 1.
	if err := gate.Acquire(ctx, "cdn-endpoint"); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := gate.Acquire(ctx, "cdn-endpoint"); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if err := gate.Acquire(ctx, "cdn-endpoint"); err == nil {
		t.Error("third acquire succeeded, override capacity is 2")
	}
}

func TestGate_AcquireHonorsCancellation(t *testing.T) {
	gate := NewGate(Config{Capacity: 1, RefillInterval: time.Minute}, nil)

	ctx := context.Background()
	if err := gate.Acquire(ctx, "rest-api"); err != nil {
		t.Fatalf("initial acquire failed: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- gate.Acquire(cancelled, "rest-api")
	}()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("acquire returned nil after cancellation with empty bucket")
		}
	case <-time.After(time.Second):
		t.Fatal("acquire did not return after cancellation")
	}
}

func TestGate_AcquireFailsOnCancelledContextWithoutWait(t *testing.T) {
	// Bucket disabled, no spacing: acquire would normally return
	// immediately. A context cancelled beforehand must still be reported
	// so callers can discard work without starting it.
	gate := NewGate(Config{Capacity: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := gate.Acquire(ctx, "rest-api"); err == nil {
		t.Error("acquire returned nil on an already cancelled context")
	}
}

func TestConfig_Normalized(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "zero capacity defaults to 1",
			in:   Config{Capacity: 0, RefillInterval: time.Second},
			want: Config{Capacity: 1, RefillInterval: time.Second},
		},
		{
			name: "negative values clamped",
			in:   Config{Capacity: -3, RefillInterval: -time.Second, MinSpacing: -time.Second},
			want: Config{Capacity: 1},
		},
		{
			name: "valid config unchanged",
			in:   Config{Capacity: 5, RefillInterval: time.Second, MinSpacing: 100 * time.Millisecond},
			want: Config{Capacity: 5, RefillInterval: time.Second, MinSpacing: 100 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.normalized(); got != tt.want {
				t.Errorf("normalized() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
