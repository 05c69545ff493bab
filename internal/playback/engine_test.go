package playback_test

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voicedesk/voicedesk/internal/playback"
)

// fakeDevice records every stream it opens.
type fakeDevice struct {
	mu         sync.Mutex
	streams    []*fakeStream
	openErr    error
	writeDelay time.Duration
}

func (d *fakeDevice) Open(sampleRate, framesPerChunk int) (playback.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := &fakeStream{sampleRate: sampleRate, writeDelay: d.writeDelay}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDevice) streamCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

func (d *fakeDevice) stream(t *testing.T, i int) *fakeStream {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.streams) {
		t.Fatalf("stream %d not opened (have %d)", i, len(d.streams))
	}
	return d.streams[i]
}

// fakeStream records written chunks.
type fakeStream struct {
	mu         sync.Mutex
	sampleRate int
	chunks     [][]int16
	closed     bool
	writeDelay time.Duration
}

func (s *fakeStream) Write(chunk []int16) error {
	cp := make([]int16, len(chunk))
	copy(cp, chunk)
	s.mu.Lock()
	s.chunks = append(s.chunks, cp)
	s.mu.Unlock()
	if s.writeDelay > 0 {
		time.Sleep(s.writeDelay)
	}
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) chunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// snapshot returns a copy of the chunks written so far.
func (s *fakeStream) snapshot() [][]int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]int16, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// encode converts samples to the wire PCM form.
func encode(samples []int16) []byte {
	b := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

// ramp returns n distinct non-zero samples.
func ramp(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(i%2000 + 1)
	}
	return s
}

// nonSilent concatenates samples from chunks that contain any signal,
// trimming the zero padding of the final chunk.
func nonSilent(chunks [][]int16) []int16 {
	var out []int16
	for _, c := range chunks {
		silent := true
		for _, v := range c {
			if v != 0 {
				silent = false
				break
			}
		}
		if !silent {
			out = append(out, c...)
		}
	}
	for len(out) > 0 && out[len(out)-1] == 0 {
		out = out[:len(out)-1]
	}
	return out
}

func TestPlayWritesAllSamplesChunked(t *testing.T) {
	dev := &fakeDevice{}
	e := playback.NewEngine(dev, playback.WithFramesPerChunk(2048))

	samples := ramp(5000)
	if err := e.Play(encode(samples), 24000, "A"); err != nil {
		t.Fatalf("play: %v", err)
	}

	s := dev.stream(t, 0)
	if s.sampleRate != 24000 {
		t.Fatalf("stream sample rate = %d; want 24000", s.sampleRate)
	}
	chunks := s.snapshot()
	if len(chunks) != 3 {
		t.Fatalf("chunk count = %d; want 3 (5000 samples / 2048 frames)", len(chunks))
	}

	got := nonSilent(chunks)
	if len(got) != len(samples) {
		t.Fatalf("delivered %d samples; want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d = %d; want %d", i, got[i], samples[i])
		}
	}
	if !s.closed {
		t.Fatal("stream not closed after play")
	}
}

func TestEmptyAudioCompletesImmediately(t *testing.T) {
	dev := &fakeDevice{}
	e := playback.NewEngine(dev)

	if err := e.Play(nil, 24000, "A"); err != nil {
		t.Fatalf("play empty: %v", err)
	}
	if dev.streamCount() != 0 {
		t.Fatal("empty buffer opened a device stream")
	}
}

func TestPauseEmitsSilenceWithoutAdvancing(t *testing.T) {
	dev := &fakeDevice{writeDelay: time.Millisecond}
	e := playback.NewEngine(dev, playback.WithFramesPerChunk(8))

	samples := ramp(64)

	// Pause before playback starts: the engine must feed the device
	// silence from the first chunk on, holding the cursor at zero.
	e.Pause()

	done := make(chan error, 1)
	go func() { done <- e.Play(encode(samples), 24000, "A") }()

	waitFor(t, func() bool {
		return dev.streamCount() == 1 && dev.stream(t, 0).chunkCount() >= 3
	})

	for i, c := range dev.stream(t, 0).snapshot() {
		for _, v := range c {
			if v != 0 {
				t.Fatalf("chunk %d carried signal while paused", i)
			}
		}
	}

	e.Resume()
	if err := <-done; err != nil {
		t.Fatalf("play: %v", err)
	}

	got := nonSilent(dev.stream(t, 0).snapshot())
	if len(got) != len(samples) {
		t.Fatalf("delivered %d samples; want all %d after resume", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d = %d; want %d — cursor moved during pause", i, got[i], samples[i])
		}
	}
}

func TestStopAbortsBuffer(t *testing.T) {
	dev := &fakeDevice{writeDelay: time.Millisecond}
	e := playback.NewEngine(dev, playback.WithFramesPerChunk(8))

	done := make(chan error, 1)
	go func() { done <- e.Play(encode(ramp(8000)), 24000, "A") }()

	waitFor(t, func() bool {
		return dev.streamCount() == 1 && dev.stream(t, 0).chunkCount() >= 2
	})

	if !e.Stop() {
		t.Fatal("stop = false while playing")
	}

	select {
	case err := <-done:
		if !errors.Is(err, playback.ErrStopped) {
			t.Fatalf("play after stop = %v; want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("play did not return after stop")
	}
}

func TestStopWhenIdle(t *testing.T) {
	e := playback.NewEngine(&fakeDevice{})
	if e.Stop() {
		t.Fatal("stop = true with nothing playing")
	}
}

func TestPauseResumeIdempotent(t *testing.T) {
	e := playback.NewEngine(&fakeDevice{})

	e.Pause()
	e.Pause()
	if !e.Paused() {
		t.Fatal("not paused after double pause")
	}
	e.Resume()
	if e.Paused() {
		t.Fatal("still paused after resume — double pause must not nest")
	}
	e.Resume()
	if e.Paused() {
		t.Fatal("paused after double resume")
	}
}

func TestDeviceOpenFailure(t *testing.T) {
	dev := &fakeDevice{openErr: errors.New("no output device")}
	e := playback.NewEngine(dev)

	if err := e.Play(encode(ramp(16)), 24000, "A"); err == nil {
		t.Fatal("play succeeded with a broken device")
	}
}

func TestCurrentProjectTracksPlayback(t *testing.T) {
	dev := &fakeDevice{writeDelay: time.Millisecond}
	e := playback.NewEngine(dev, playback.WithFramesPerChunk(8))

	done := make(chan error, 1)
	go func() { done <- e.Play(encode(ramp(800)), 24000, "notes") }()

	waitFor(t, func() bool { return e.Playing() })
	if got := e.CurrentProject(); got != "notes" {
		t.Fatalf("current project = %q; want notes", got)
	}

	e.Stop()
	<-done
	if got := e.CurrentProject(); got != "" {
		t.Fatalf("current project after play = %q; want empty", got)
	}
}

// waitFor polls cond until it holds or the deadline passes.
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
