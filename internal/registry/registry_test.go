package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/voicedesk/voicedesk/internal/registry"
)

func TestWaitAfterSignal(t *testing.T) {
	r := registry.New()
	r.Create("item-1")
	r.Signal("item-1")

	if !r.Wait(context.Background(), "item-1", time.Second) {
		t.Fatal("wait after signal = false; want true")
	}
}

func TestWaitBlocksUntilSignal(t *testing.T) {
	r := registry.New()
	r.Create("item-1")

	done := make(chan bool, 1)
	go func() {
		done <- r.Wait(context.Background(), "item-1", 5*time.Second)
	}()

	select {
	case <-done:
		t.Fatal("wait returned before signal")
	case <-time.After(20 * time.Millisecond):
	}

	r.Signal("item-1")
	select {
	case completed := <-done:
		if !completed {
			t.Fatal("wait = false after signal; want true")
		}
	case <-time.After(time.Second):
		t.Fatal("wait did not unblock after signal")
	}
}

func TestWaitTimeout(t *testing.T) {
	r := registry.New()
	r.Create("item-1")

	if r.Wait(context.Background(), "item-1", 20*time.Millisecond) {
		t.Fatal("wait = true without a signal; want timeout")
	}
}

func TestWaitUnknownIDCompletes(t *testing.T) {
	r := registry.New()
	if !r.Wait(context.Background(), "never-created", time.Second) {
		t.Fatal("wait on unknown id = false; want true (treated as completed)")
	}
}

func TestSignalIdempotent(t *testing.T) {
	r := registry.New()
	r.Create("item-1")
	r.Signal("item-1")
	r.Signal("item-1") // must not panic on a closed channel

	if !r.Wait(context.Background(), "item-1", time.Second) {
		t.Fatal("wait = false after double signal")
	}
}

func TestSignalUnknownIDIgnored(t *testing.T) {
	r := registry.New()
	r.Signal("never-created") // no-op
}

func TestCleanupCollectsEvent(t *testing.T) {
	r := registry.New()
	r.Create("item-1")
	r.Signal("item-1")
	r.ScheduleCleanup("item-1", 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	// Collected events behave like unknown ids: completed.
	if !r.Wait(context.Background(), "item-1", time.Second) {
		t.Fatal("wait after cleanup = false; want true")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	r := registry.New()
	r.Create("item-1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		done <- r.Wait(ctx, "item-1", 5*time.Second)
	}()
	cancel()

	select {
	case completed := <-done:
		if completed {
			t.Fatal("wait = true after context cancel; want false")
		}
	case <-time.After(time.Second):
		t.Fatal("wait did not observe context cancellation")
	}
}

func TestCloseStopsCleanups(t *testing.T) {
	r := registry.New()
	r.Create("item-1")
	r.Signal("item-1")
	r.ScheduleCleanup("item-1", time.Hour)
	r.Close()

	// Existing events stay readable after Close.
	if !r.Wait(context.Background(), "item-1", time.Second) {
		t.Fatal("wait after close = false; want true")
	}
}
