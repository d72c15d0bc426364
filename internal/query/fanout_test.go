package query

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func newDetailFanOut(c *Cache, calls *atomic.Int64) *FanOut {
	return NewFanOut(c, NewKey("secrets", "detail"), Options{StaleAfter: time.Hour},
		func(element string) Fetcher {
			return func(context.Context) (any, error) {
				if calls != nil {
					calls.Add(1)
				}
				return "detail:" + element, nil
			}
		})
}

// waitSnapshot blocks until cond holds for the fan-out's snapshot.
func waitSnapshot(t *testing.T, fan *FanOut, cond func(map[string]Result) bool) map[string]Result {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if snap := fan.Snapshot(); cond(snap) {
			return snap
		}
		select {
		case <-fan.Ready():
		case <-deadline:
			t.Fatalf("timed out waiting for fan-out snapshot, have %v", fan.Snapshot())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func allSettled(want ...string) func(map[string]Result) bool {
	return func(snap map[string]Result) bool {
		if len(snap) != len(want) {
			return false
		}
		for _, el := range want {
			res, ok := snap[el]
			if !ok || res.Status != StatusSuccess {
				return false
			}
		}
		return true
	}
}

func TestFanOutSubscribesPerElement(t *testing.T) {
	c := NewCache(context.Background())
	fan := newDetailFanOut(c, nil)
	defer fan.Close()

	fan.SetEnabled(true)
	fan.Sync([]string{"alpha", "beta"})

	snap := waitSnapshot(t, fan, allSettled("alpha", "beta"))
	if snap["alpha"].Data != "detail:alpha" || snap["beta"].Data != "detail:beta" {
		t.Fatalf("snapshot = %v, want per-element details", snap)
	}
}

func TestFanOutRemovedElementDropsOut(t *testing.T) {
	c := NewCache(context.Background())
	fan := newDetailFanOut(c, nil)
	defer fan.Close()

	fan.SetEnabled(true)
	fan.Sync([]string{"alpha", "beta"})
	waitSnapshot(t, fan, allSettled("alpha", "beta"))

	fan.Sync([]string{"alpha"})
	waitSnapshot(t, fan, allSettled("alpha"))
}

func TestFanOutDisabledIssuesNoQueries(t *testing.T) {
	c := NewCache(context.Background())
	var calls atomic.Int64
	fan := newDetailFanOut(c, &calls)
	defer fan.Close()

	fan.Sync([]string{"alpha"})
	time.Sleep(50 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Fatalf("disabled fan-out issued %d fetches, want 0", got)
	}
	if got := fan.Elements(); len(got) != 1 || got[0] != "alpha" {
		t.Fatalf("elements = %v, want selection retained while disabled", got)
	}

	fan.SetEnabled(true)
	waitSnapshot(t, fan, allSettled("alpha"))
}

func TestFanOutDisableUnsubscribesAll(t *testing.T) {
	c := NewCache(context.Background())
	fan := newDetailFanOut(c, nil)
	defer fan.Close()

	fan.SetEnabled(true)
	fan.Sync([]string{"alpha", "beta"})
	waitSnapshot(t, fan, allSettled("alpha", "beta"))

	fan.SetEnabled(false)
	waitSnapshot(t, fan, func(snap map[string]Result) bool { return len(snap) == 0 })

	if got := fan.Elements(); len(got) != 2 {
		t.Fatalf("elements after disable = %v, want selection retained", got)
	}
}

func TestFanOutCloseRetainsSelection(t *testing.T) {
	c := NewCache(context.Background())
	fan := newDetailFanOut(c, nil)

	fan.SetEnabled(true)
	fan.Sync([]string{"alpha"})
	waitSnapshot(t, fan, allSettled("alpha"))

	fan.Close()
	if snap := fan.Snapshot(); len(snap) != 0 {
		t.Fatalf("snapshot after Close = %v, want empty", snap)
	}
	if got := fan.Elements(); len(got) != 1 || got[0] != "alpha" {
		t.Fatalf("elements after Close = %v, want [alpha]", got)
	}
}

func TestFanOutSharesCacheEntries(t *testing.T) {
	c := NewCache(context.Background())

	var direct atomic.Int64
	key := NewKey("secrets", "detail", "alpha")
	sub, _ := c.Subscribe(key, func(context.Context) (any, error) {
		direct.Add(1)
		return "detail:alpha", nil
	}, Options{StaleAfter: time.Hour})
	defer sub.Close()
	waitResult(t, sub, isSuccess)

	var fanCalls atomic.Int64
	fan := newDetailFanOut(c, &fanCalls)
	defer fan.Close()
	fan.SetEnabled(true)
	fan.Sync([]string{"alpha"})

	snap := waitSnapshot(t, fan, allSettled("alpha"))
	if snap["alpha"].Data != "detail:alpha" {
		t.Fatalf("fan-out data = %v, want shared cache entry value", snap["alpha"].Data)
	}
	if got := fanCalls.Load(); got != 0 {
		t.Fatalf("fan-out issued %d fetches for a fresh shared entry, want 0", got)
	}
}
