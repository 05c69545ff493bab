// Package hotkey watches a single modifier key and reports press and release
// edges. Holding the key means the user is dictating into another
// application, so the coordinator pauses playback for the duration.
//
// The OS-level tap runs on its own thread and posts raw key states onto a
// channel; a monitor goroutine latches them into clean edges and invokes the
// callbacks. OS callbacks never call into the rest of the service directly.
package hotkey

import (
	"log/slog"
	"sync/atomic"
)

// Modifiers is the set of recognized hotkey identifiers.
var Modifiers = []string{"fn", "ctrl", "option", "command", "shift"}

// DefaultHotkey is used when the configured identifier is unknown.
const DefaultHotkey = "fn"

// Normalize validates a hotkey identifier, falling back to [DefaultHotkey]
// with a warning for unknown values.
func Normalize(name string) string {
	for _, m := range Modifiers {
		if name == m {
			return name
		}
	}
	slog.Warn("unknown hotkey, defaulting", "hotkey", name, "default", DefaultHotkey)
	return DefaultHotkey
}

// Status is a snapshot of the monitor for /status.
type Status struct {
	Hotkey  string
	Pressed bool
	Running bool
}

// tap is the platform watcher. States delivers the raw pressed state of the
// configured key; repeats are permitted, the monitor latches them.
type tap interface {
	States() <-chan bool
	Close()
}

// Monitor watches one modifier key and dispatches at most one callback per
// edge. Callbacks run on the monitor goroutine and must be fast and
// non-blocking.
type Monitor struct {
	hotkey    string
	onPress   func()
	onRelease func()

	pressed atomic.Bool
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}

	// newTap is swapped in tests for a scripted state source.
	newTap func(hotkey string) (tap, error)
}

// NewMonitor creates a monitor for the given hotkey identifier. Unknown
// identifiers coerce to [DefaultHotkey]. Either callback may be nil.
func NewMonitor(hotkey string, onPress, onRelease func()) *Monitor {
	return &Monitor{
		hotkey:    Normalize(hotkey),
		onPress:   onPress,
		onRelease: onRelease,
		newTap:    newPlatformTap,
	}
}

// Start creates the platform tap and begins dispatching edges. If the tap
// cannot be created — missing OS permissions, unsupported platform — the
// failure is logged once and the monitor stays idle: the service runs on
// without pause-on-dictation. Start is not an error in that case.
func (m *Monitor) Start() {
	if m.running.Load() {
		return
	}

	t, err := m.newTap(m.hotkey)
	if err != nil {
		slog.Error("hotkey monitoring unavailable, pause-on-dictation disabled",
			"hotkey", m.hotkey, "err", err)
		return
	}

	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.running.Store(true)
	go m.loop(t)

	slog.Info("hotkey monitor started", "hotkey", m.hotkey)
}

// Stop shuts down the tap and the dispatch goroutine. Idempotent.
func (m *Monitor) Stop() {
	if !m.running.Swap(false) {
		return
	}
	close(m.stop)
	<-m.done
}

// Pressed reports whether the hotkey is currently held.
func (m *Monitor) Pressed() bool { return m.pressed.Load() }

// GetStatus returns the monitor snapshot.
func (m *Monitor) GetStatus() Status {
	return Status{
		Hotkey:  m.hotkey,
		Pressed: m.pressed.Load(),
		Running: m.running.Load(),
	}
}

// loop latches raw key states into edges and fires the callbacks. Spurious
// repeats from the tap are suppressed by the latch.
func (m *Monitor) loop(t tap) {
	defer close(m.done)
	defer t.Close()

	for {
		select {
		case <-m.stop:
			return
		case down, ok := <-t.States():
			if !ok {
				return
			}
			if down == m.pressed.Load() {
				continue
			}
			m.pressed.Store(down)
			if down {
				slog.Debug("hotkey pressed", "hotkey", m.hotkey)
				if m.onPress != nil {
					m.onPress()
				}
			} else {
				slog.Debug("hotkey released", "hotkey", m.hotkey)
				if m.onRelease != nil {
					m.onRelease()
				}
			}
		}
	}
}
