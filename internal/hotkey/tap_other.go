//go:build !darwin || !cgo

package hotkey

import "errors"

// Low-level modifier taps are only implemented on macOS, where dictation
// tools bind the secondary-function key. Elsewhere the monitor reports the
// failure and stays idle; the service runs without pause-on-dictation.
func newPlatformTap(hotkey string) (tap, error) {
	return nil, errors.New("modifier key monitoring is not supported on this platform")
}
