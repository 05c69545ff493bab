package hotkey

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptedTap feeds raw key states from the test.
type scriptedTap struct {
	states chan bool
	once   sync.Once
}

func newScriptedTap() *scriptedTap {
	return &scriptedTap{states: make(chan bool, 16)}
}

func (t *scriptedTap) States() <-chan bool { return t.states }
func (t *scriptedTap) Close()              { t.once.Do(func() { close(t.states) }) }

// edgeCounter records callback invocations.
type edgeCounter struct {
	mu       sync.Mutex
	presses  int
	releases int
}

func (c *edgeCounter) press() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presses++
}

func (c *edgeCounter) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases++
}

func (c *edgeCounter) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presses, c.releases
}

func newTestMonitor(t *testing.T, st *scriptedTap) (*Monitor, *edgeCounter) {
	t.Helper()
	var c edgeCounter
	m := NewMonitor("fn", c.press, c.release)
	m.newTap = func(string) (tap, error) { return st, nil }
	m.Start()
	t.Cleanup(m.Stop)
	return m, &c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestEdgesDispatchCallbacks(t *testing.T) {
	tap := newScriptedTap()
	m, c := newTestMonitor(t, tap)

	tap.states <- true
	waitFor(t, m.Pressed)

	tap.states <- false
	waitFor(t, func() bool { return !m.Pressed() })

	presses, releases := c.counts()
	if presses != 1 || releases != 1 {
		t.Fatalf("presses=%d releases=%d; want 1 and 1", presses, releases)
	}
}

func TestLatchSuppressesRepeats(t *testing.T) {
	tap := newScriptedTap()
	m, c := newTestMonitor(t, tap)

	// Taps may repeat the same state; only edges count.
	tap.states <- true
	tap.states <- true
	tap.states <- true
	waitFor(t, m.Pressed)

	tap.states <- false
	tap.states <- false
	waitFor(t, func() bool { return !m.Pressed() })

	presses, releases := c.counts()
	if presses != 1 || releases != 1 {
		t.Fatalf("presses=%d releases=%d after repeats; want 1 and 1", presses, releases)
	}
}

func TestReleaseWithoutPressIgnored(t *testing.T) {
	tap := newScriptedTap()
	_, c := newTestMonitor(t, tap)

	tap.states <- false
	time.Sleep(20 * time.Millisecond)

	if _, releases := c.counts(); releases != 0 {
		t.Fatalf("releases=%d without a preceding press; want 0", releases)
	}
}

func TestTapFailureLeavesMonitorIdle(t *testing.T) {
	m := NewMonitor("fn", nil, nil)
	m.newTap = func(string) (tap, error) { return nil, errors.New("no permission") }

	m.Start() // must not panic or block
	st := m.GetStatus()
	if st.Running {
		t.Fatal("monitor running despite tap failure")
	}
	m.Stop() // no-op on an idle monitor
}

func TestNormalizeUnknownHotkey(t *testing.T) {
	if got := Normalize("hyper"); got != DefaultHotkey {
		t.Fatalf("Normalize(hyper) = %q; want %q", got, DefaultHotkey)
	}
	if got := Normalize("shift"); got != "shift" {
		t.Fatalf("Normalize(shift) = %q; want shift", got)
	}
}

func TestStatusSnapshot(t *testing.T) {
	tap := newScriptedTap()
	m, _ := newTestMonitor(t, tap)

	st := m.GetStatus()
	if st.Hotkey != "fn" || !st.Running || st.Pressed {
		t.Fatalf("status = %+v; want fn, running, not pressed", st)
	}

	tap.states <- true
	waitFor(t, func() bool { return m.GetStatus().Pressed })
}

func TestStopIsIdempotent(t *testing.T) {
	tap := newScriptedTap()
	m, _ := newTestMonitor(t, tap)

	m.Stop()
	m.Stop()
	if m.GetStatus().Running {
		t.Fatal("monitor still running after stop")
	}
}
