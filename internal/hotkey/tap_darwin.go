//go:build darwin && cgo

package hotkey

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation

#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>

extern void hotkeyFlagsChanged(unsigned long long flags);

static CFMachPortRef hotkeyTapPort = NULL;

static CGEventRef flagsTapCallback(CGEventTapProxy proxy, CGEventType type,
                                   CGEventRef event, void *refcon) {
	if (type == kCGEventFlagsChanged) {
		hotkeyFlagsChanged((unsigned long long)CGEventGetFlags(event));
	}
	return event;
}

// hotkeyStartTap creates and attaches the flags-changed event tap on the
// calling thread's run loop. Returns 0 when the tap is refused (missing
// Accessibility permission).
static int hotkeyStartTap(void) {
	hotkeyTapPort = CGEventTapCreate(kCGSessionEventTap, kCGHeadInsertEventTap,
	                                 kCGEventTapOptionListenOnly,
	                                 CGEventMaskBit(kCGEventFlagsChanged),
	                                 flagsTapCallback, NULL);
	if (hotkeyTapPort == NULL) {
		return 0;
	}
	CFRunLoopSourceRef source =
	    CFMachPortCreateRunLoopSource(kCFAllocatorDefault, hotkeyTapPort, 0);
	CFRunLoopAddSource(CFRunLoopGetCurrent(), source, kCFRunLoopCommonModes);
	CFRelease(source);
	CGEventTapEnable(hotkeyTapPort, true);
	return 1;
}

static void hotkeyRunLoopTick(void) {
	CFRunLoopRunInMode(kCFRunLoopDefaultMode, 0.5, false);
}

static void hotkeyStopTap(void) {
	if (hotkeyTapPort != NULL) {
		CGEventTapEnable(hotkeyTapPort, false);
		CFRelease(hotkeyTapPort);
		hotkeyTapPort = NULL;
	}
}
*/
import "C"

import (
	"errors"
	"runtime"
	"sync/atomic"
)

// Quartz modifier flag masks per hotkey identifier.
var modifierFlags = map[string]uint64{
	"fn":      0x800000, // kCGEventFlagMaskSecondaryFn
	"ctrl":    0x40000,  // kCGEventFlagMaskControl
	"option":  0x80000,  // kCGEventFlagMaskAlternate
	"command": 0x100000, // kCGEventFlagMaskCommand
	"shift":   0x20000,  // kCGEventFlagMaskShift
}

// flagsCh receives raw modifier flag words from the C callback. Buffered so
// the event tap thread never blocks on a slow consumer; a dropped repeat is
// recovered by the next flags-changed event. One tap per process.
var flagsCh = make(chan uint64, 64)

//export hotkeyFlagsChanged
func hotkeyFlagsChanged(flags C.ulonglong) {
	select {
	case flagsCh <- uint64(flags):
	default:
	}
}

// darwinTap observes modifier flag changes through a session event tap.
// Creating the tap requires Accessibility permission; without it the tap is
// refused and the monitor stays idle.
type darwinTap struct {
	mask   uint64
	states chan bool
	quit   atomic.Bool
	done   chan struct{}
}

func newPlatformTap(hotkey string) (tap, error) {
	mask, ok := modifierFlags[hotkey]
	if !ok {
		return nil, errors.New("no modifier flag for hotkey " + hotkey)
	}

	t := &darwinTap{
		mask:   mask,
		states: make(chan bool, 16),
		done:   make(chan struct{}),
	}

	created := make(chan error, 1)
	go t.run(created)
	if err := <-created; err != nil {
		return nil, err
	}
	return t, nil
}

// run owns the tap for its entire lifetime. Event taps are bound to the run
// loop of the thread that attaches them, so the goroutine is pinned.
func (t *darwinTap) run(created chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(t.done)

	if C.hotkeyStartTap() == 0 {
		created <- errors.New("event tap refused; grant Accessibility permission in System Settings > Privacy & Security")
		return
	}
	created <- nil

	for !t.quit.Load() {
		C.hotkeyRunLoopTick()
		t.drain()
	}
	C.hotkeyStopTap()
	close(t.states)
}

// drain converts buffered flag words into pressed states.
func (t *darwinTap) drain() {
	for {
		select {
		case flags := <-flagsCh:
			select {
			case t.states <- flags&t.mask != 0:
			default:
			}
		default:
			return
		}
	}
}

func (t *darwinTap) States() <-chan bool { return t.states }

func (t *darwinTap) Close() {
	t.quit.Store(true)
	<-t.done
}
