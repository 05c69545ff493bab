package playback

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// Compile-time interface assertion.
var _ Device = (*PortAudioDevice)(nil)

// PortAudioDevice is the production [Device] over the system's default
// output, via PortAudio. Create exactly one per process and Close it on
// shutdown; the underlying library is initialized globally.
type PortAudioDevice struct{}

// NewPortAudioDevice initializes PortAudio and returns the device.
func NewPortAudioDevice() (*PortAudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("playback: initialize portaudio: %w", err)
	}
	return &PortAudioDevice{}, nil
}

// Close terminates the PortAudio library. No stream may be open.
func (d *PortAudioDevice) Close() error {
	return portaudio.Terminate()
}

// Open opens and starts a mono 16-bit output stream on the default device.
func (d *PortAudioDevice) Open(sampleRate, framesPerChunk int) (Stream, error) {
	buf := make([]int16, framesPerChunk)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), framesPerChunk, &buf)
	if err != nil {
		return nil, fmt.Errorf("playback: open default stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("playback: start stream: %w", err)
	}
	return &paStream{stream: stream, buf: buf}, nil
}

// paStream adapts a portaudio stream with its bound buffer to [Stream].
type paStream struct {
	stream *portaudio.Stream
	buf    []int16
}

// Write pushes one chunk to the device, blocking until it is consumed.
// Output underruns are logged and absorbed: the device recovered by playing
// silence, the data was still accepted.
func (s *paStream) Write(chunk []int16) error {
	copy(s.buf, chunk)
	if err := s.stream.Write(); err != nil {
		if errors.Is(err, portaudio.OutputUnderflowed) {
			slog.Warn("audio output underrun", "err", err)
			return nil
		}
		return err
	}
	return nil
}

// Close stops the stream, waiting for buffered audio to drain, then frees it.
func (s *paStream) Close() error {
	if err := s.stream.Stop(); err != nil {
		s.stream.Close()
		return err
	}
	return s.stream.Close()
}
