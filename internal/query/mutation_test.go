package query

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMutationSuccessInvalidatesDeclaredPrefixes(t *testing.T) {
	c := NewCache(context.Background())

	started := make(chan struct{}, 4)
	sub, _ := c.Subscribe(NewKey("jobs", "list"), func(context.Context) (any, error) {
		started <- struct{}{}
		return "jobs", nil
	}, Options{StaleAfter: time.Hour})
	defer sub.Close()

	waitResult(t, sub, isSuccess)
	<-started

	mut := NewMutation(c, NewKey("jobs"))
	if err := mut.Run(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got := mut.Status(); got != MutationSuccess {
		t.Fatalf("status = %v, want success", got)
	}

	// The refetch was issued before Run returned.
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("no refetch after successful mutation")
	}
}

func TestMutationErrorSkipsInvalidationAndTags(t *testing.T) {
	c := NewCache(context.Background())

	var calls atomic.Int64
	sub, _ := c.Subscribe(NewKey("jobs", "list"), func(context.Context) (any, error) {
		return calls.Add(1), nil
	}, Options{StaleAfter: time.Hour})
	defer sub.Close()
	waitResult(t, sub, isSuccess)

	conflict := errors.New("already exists")
	mut := NewMutation(c, NewKey("jobs")).WithClassifier(func(err error) Tag {
		if errors.Is(err, conflict) {
			return TagConflict
		}
		return TagUnknown
	})

	err := mut.Run(context.Background(), func(context.Context) error { return conflict })
	if !errors.Is(err, conflict) {
		t.Fatalf("Run error = %v, want %v", err, conflict)
	}
	if got := mut.Status(); got != MutationError {
		t.Fatalf("status = %v, want error", got)
	}
	if got := mut.Tag(); got != TagConflict {
		t.Fatalf("tag = %v, want %v", got, TagConflict)
	}
	if !errors.Is(mut.Err(), conflict) {
		t.Fatalf("Err() = %v, want %v", mut.Err(), conflict)
	}

	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("failed mutation triggered %d fetches, want 1", got)
	}
}

func TestMutationDefaultTagIsUnknown(t *testing.T) {
	c := NewCache(context.Background())
	mut := NewMutation(c)

	_ = mut.Run(context.Background(), func(context.Context) error {
		return errors.New("boom")
	})
	if got := mut.Tag(); got != TagUnknown {
		t.Fatalf("tag without classifier = %v, want %v", got, TagUnknown)
	}
}

func TestMutationRejectsConcurrentRun(t *testing.T) {
	c := NewCache(context.Background())
	mut := NewMutation(c)

	gate := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- mut.Run(context.Background(), func(context.Context) error {
			<-gate
			return nil
		})
	}()

	// Wait for the first run to be pending.
	deadline := time.After(time.Second)
	for mut.Status() != MutationPending {
		select {
		case <-deadline:
			t.Fatal("first run never became pending")
		case <-time.After(time.Millisecond):
		}
	}

	err := mut.Run(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, ErrMutationPending) {
		t.Fatalf("second Run = %v, want ErrMutationPending", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	if got := mut.Status(); got != MutationSuccess {
		t.Fatalf("status after gated run = %v, want success", got)
	}
}

func TestMutationReset(t *testing.T) {
	c := NewCache(context.Background())
	mut := NewMutation(c)

	_ = mut.Run(context.Background(), func(context.Context) error {
		return errors.New("boom")
	})
	if got := mut.Status(); got != MutationError {
		t.Fatalf("status = %v, want error", got)
	}

	mut.Reset()
	if got := mut.Status(); got != MutationIdle {
		t.Fatalf("status after Reset = %v, want idle", got)
	}
	if mut.Err() != nil || mut.Tag() != "" {
		t.Fatalf("Reset left err=%v tag=%q", mut.Err(), mut.Tag())
	}
}

func TestMutationResetIgnoredWhilePending(t *testing.T) {
	c := NewCache(context.Background())
	mut := NewMutation(c)

	gate := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- mut.Run(context.Background(), func(context.Context) error {
			<-gate
			return nil
		})
	}()

	deadline := time.After(time.Second)
	for mut.Status() != MutationPending {
		select {
		case <-deadline:
			t.Fatal("run never became pending")
		case <-time.After(time.Millisecond):
		}
	}

	mut.Reset()
	if got := mut.Status(); got != MutationPending {
		t.Fatalf("Reset interrupted a pending run: status = %v", got)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}
