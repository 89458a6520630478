package crdt

import (
	"sync"
	"testing"
	"time"
)

func TestClock_NowIsStrictlyIncreasing(t *testing.T) {
	c := NewClock()
	prev := c.Now()
	for range 1000 {
		next := c.Now()
		if next <= prev {
			t.Fatalf("timestamp went back: %d after %d", next, prev)
		}
		prev = next
	}
}

func TestClock_AfterFloor(t *testing.T) {
	c := NewClock()
	floor := time.Now().Add(time.Hour).UnixNano()

	got := c.After(floor)
	if got != floor+1 {
		t.Fatalf("After(%d) = %d, want %d", floor, got, floor+1)
	}
	// the floor is remembered
	if next := c.Now(); next <= got {
		t.Errorf("Now() = %d, want > %d", next, got)
	}
}

func TestClock_WithOffset(t *testing.T) {
	ahead := NewClock().WithOffset(time.Hour)
	if ahead.Now() <= time.Now().Add(30*time.Minute).UnixNano() {
		t.Errorf("offset not applied")
	}
}

func TestClock_ConcurrentUnique(t *testing.T) {
	const (
		workers = 8
		perG    = 500
	)
	c := NewClock()
	results := make(chan int64, workers*perG)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perG {
				results <- c.Now()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]struct{}, workers*perG)
	for ts := range results {
		if _, dup := seen[ts]; dup {
			t.Fatalf("duplicate timestamp %d", ts)
		}
		seen[ts] = struct{}{}
	}
}

func TestCompareInt64(t *testing.T) {
	tests := []struct {
		a, b int64
		want int
	}{
		{1, 2, Lower},
		{2, 1, Greater},
		{3, 3, Equal},
	}
	for _, tc := range tests {
		if got := compareInt64(tc.a, tc.b); got != tc.want {
			t.Errorf("compareInt64(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
