// Package playback renders PCM buffers through the machine's audio output.
// The engine owns the device exclusively: playback is serialized, one buffer
// at a time, and pausing substitutes silence for signal without losing the
// position in the buffer.
package playback

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultFramesPerChunk is the number of frames pushed to the device per
// write.
const DefaultFramesPerChunk = 2048

// ErrStopped is returned by [Engine.Play] when the buffer was aborted by
// [Engine.Stop]. Callers treat a stopped item the same as a played one.
var ErrStopped = errors.New("playback stopped")

// Device opens output streams. The production implementation sits on
// PortAudio; tests substitute a fake that records what was written.
type Device interface {
	// Open prepares an output stream for mono 16-bit PCM at the given
	// sample rate, consuming framesPerChunk frames per Write.
	Open(sampleRate, framesPerChunk int) (Stream, error)
}

// Stream is a single open output stream. Write blocks until the device has
// consumed the chunk; transient underruns are absorbed by the
// implementation, only unrecoverable device errors surface.
type Stream interface {
	Write(chunk []int16) error
	Close() error
}

// Option configures an [Engine].
type Option func(*Engine)

// WithFramesPerChunk overrides the chunk size. Test hook; the default suits
// real devices.
func WithFramesPerChunk(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.frames = n
		}
	}
}

// Engine plays one PCM buffer at a time through a [Device]. The paused flag
// is observed between chunks: while set, the engine writes silence and the
// read cursor stays put, so resuming continues from the exact sample where
// playback stopped. All methods are safe for concurrent use.
type Engine struct {
	device Device
	frames int

	// paused is read on the chunk hot path; Pause/Resume only flip it.
	paused atomic.Bool

	mu             sync.Mutex
	playing        bool
	currentProject string
	cancel         chan struct{} // per-buffer; closed by Stop
}

// NewEngine creates an [Engine] over the given device.
func NewEngine(device Device, opts ...Option) *Engine {
	e := &Engine{
		device: device,
		frames: DefaultFramesPerChunk,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Play renders pcm (raw 16-bit signed little-endian mono) at sampleRate,
// blocking until the buffer is fully consumed or the engine is stopped. A
// stopped buffer returns [ErrStopped]. An empty buffer completes
// immediately. The tail chunk is zero-padded.
func (e *Engine) Play(pcm []byte, sampleRate int, project string) error {
	samples := decodeSamples(pcm)

	cancel := make(chan struct{})
	e.mu.Lock()
	if e.playing {
		e.mu.Unlock()
		return fmt.Errorf("playback: device busy")
	}
	e.playing = true
	e.currentProject = project
	e.cancel = cancel
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.playing = false
		e.currentProject = ""
		e.cancel = nil
		e.mu.Unlock()
	}()

	if len(samples) == 0 {
		return nil
	}

	stream, err := e.device.Open(sampleRate, e.frames)
	if err != nil {
		return fmt.Errorf("playback: open stream: %w", err)
	}
	defer stream.Close()

	chunk := make([]int16, e.frames)
	silence := make([]int16, e.frames)
	cursor := 0

	for cursor < len(samples) {
		select {
		case <-cancel:
			return ErrStopped
		default:
		}

		if e.paused.Load() {
			// Keep the device fed so it stays paced, but do not
			// advance the cursor.
			if err := stream.Write(silence); err != nil {
				return fmt.Errorf("playback: write silence: %w", err)
			}
			continue
		}

		n := copy(chunk, samples[cursor:])
		for i := n; i < len(chunk); i++ {
			chunk[i] = 0
		}
		if err := stream.Write(chunk); err != nil {
			return fmt.Errorf("playback: write: %w", err)
		}
		cursor += n
	}
	return nil
}

// Pause sets the paused flag. Idempotent; takes effect at the next chunk
// boundary, and applies to future playback when nothing is playing now.
func (e *Engine) Pause() {
	if !e.paused.Swap(true) {
		slog.Debug("playback paused")
	}
}

// Resume clears the paused flag. Idempotent.
func (e *Engine) Resume() {
	if e.paused.Swap(false) {
		slog.Debug("playback resumed")
	}
}

// Stop aborts the in-flight buffer, if any, and reports whether something
// was actually playing. The aborted item is considered done.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.playing || e.cancel == nil {
		return false
	}
	select {
	case <-e.cancel:
		// already stopped
	default:
		close(e.cancel)
	}
	return true
}

// Paused reports the paused flag.
func (e *Engine) Paused() bool { return e.paused.Load() }

// Playing reports whether a buffer is being rendered right now.
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// CurrentProject returns the project of the buffer being rendered, or ""
// when idle.
func (e *Engine) CurrentProject() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentProject
}

// decodeSamples converts little-endian 16-bit PCM bytes to samples. A
// trailing odd byte is dropped.
func decodeSamples(pcm []byte) []int16 {
	n := len(pcm) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return samples
}
