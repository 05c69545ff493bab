// Package service wires the audio manager together: the queue, the playback
// engine, the completion registry, the chime limiter, and the hotkey
// monitor. It owns the playback worker and the pause state, and exposes the
// operations the HTTP surface translates to.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voicedesk/voicedesk/internal/chime"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/hotkey"
	"github.com/voicedesk/voicedesk/internal/observe"
	"github.com/voicedesk/voicedesk/internal/playback"
	"github.com/voicedesk/voicedesk/internal/queue"
	"github.com/voicedesk/voicedesk/internal/registry"
)

// dequeueWait bounds one worker wait on a pending head before the loop
// reconsiders the queue.
const dequeueWait = 100 * time.Millisecond

// ReserveResult is the outcome of [Service.Reserve].
type ReserveResult struct {
	ItemID   string
	Position int

	// ShouldAnnounce is advisory: true when audio from a different
	// project is playing or scheduled ahead of the new slot, so the
	// caller may want to prepend a "from project X" preamble.
	ShouldAnnounce bool
}

// EnqueueResult is the outcome of [Service.Enqueue].
type EnqueueResult struct {
	ItemID        string
	Position      int
	EstimatedWait time.Duration
}

// Status is the full service state reported by /status.
type Status struct {
	Playing             bool
	Paused              bool
	CurrentProject      string // empty when idle
	QueueLength         int
	PendingReservations int
	TotalEnqueued       int
	TotalPlayed         int
	EstimatedWait       time.Duration
	DictationActive     bool
	Hotkey              string
	HotkeyPressed       bool
}

// Option is a functional option for [New]. Use these to inject test doubles.
type Option func(*Service)

// WithMetrics injects a metrics instance instead of the process default.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock injects the time source used for reservation expiry and the
// chime cooldown.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service coordinates all subsystems. Construct with [New], drive with
// [Service.Run], tear down with [Service.Close].
type Service struct {
	cfg     *config.Config
	queue   *queue.AudioQueue
	engine  *playback.Engine
	reg     *registry.Registry
	chimes  *chime.Limiter
	monitor *hotkey.Monitor
	metrics *observe.Metrics
	now     func() time.Time

	dictating atomic.Bool
	workerUp  atomic.Bool

	stopOnce sync.Once
}

// New creates a [Service] over the given output device. The hotkey monitor
// is created but not started; [Service.Run] starts it.
func New(cfg *config.Config, device playback.Device, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		engine:  playback.NewEngine(device),
		reg:     registry.New(),
		chimes:  chime.New(cfg.ChimeCooldown.Std()),
		metrics: observe.DefaultMetrics(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	s.queue = queue.New(
		queue.WithReservationTimeout(cfg.ReservationTimeout.Std()),
		queue.WithClock(s.now),
	)
	s.chimes.WithClock(s.now)

	// Hotkey edges arrive on the monitor's goroutine; the handlers only
	// flip flags, so dispatching them synchronously is safe.
	s.monitor = hotkey.NewMonitor(cfg.Hotkey, s.onDictationStart, s.onDictationEnd)

	return s
}

// onDictationStart handles a hotkey press edge.
func (s *Service) onDictationStart() {
	slog.Info("dictation started", "hotkey", s.monitor.GetStatus().Hotkey)
	s.dictating.Store(true)
	s.engine.Pause()
}

// onDictationEnd handles a hotkey release edge.
func (s *Service) onDictationEnd() {
	slog.Info("dictation ended", "hotkey", s.monitor.GetStatus().Hotkey)
	s.dictating.Store(false)
	s.engine.Resume()
}

// ─── Public operations ───────────────────────────────────────────────────────

// Reserve inserts a pending slot for project at the given priority and
// returns its id, position, and the cross-project announce hint. The
// completion event exists before the id is returned, so a wait on the id can
// never race its creation.
func (s *Service) Reserve(project string, priority queue.Priority) ReserveResult {
	id, pos := s.queue.Reserve(project, priority)
	s.reg.Create(id)

	announce := false
	if current := s.engine.CurrentProject(); current != "" && current != project {
		announce = true
	}
	if !announce {
		for _, p := range s.queue.ProjectsAhead(id) {
			if p != project {
				announce = true
				break
			}
		}
	}

	ctx := context.Background()
	s.metrics.ItemsEnqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("priority", priority.String())))
	s.metrics.QueueDepth.Add(ctx, 1)

	slog.Info("slot reserved", "item_id", id, "project", project, "priority", priority, "position", pos, "should_announce", announce)
	return ReserveResult{ItemID: id, Position: pos, ShouldAnnounce: announce}
}

// Fill attaches audio to a reserved slot. Returns [queue.ErrItemNotFound]
// when the reservation is unknown or already expired.
func (s *Service) Fill(itemID string, audio []byte, sampleRate int) error {
	if err := s.queue.Fill(itemID, audio, sampleRate); err != nil {
		slog.Warn("fill failed", "item_id", itemID, "err", err)
		return err
	}
	slog.Info("slot filled", "item_id", itemID, "bytes", len(audio), "sample_rate", sampleRate)
	return nil
}

// Enqueue inserts audio that is already rendered — reserve and fill in one
// step. Used for chimes and for callers that synthesized before contacting
// the manager.
func (s *Service) Enqueue(audio []byte, sampleRate int, project string, priority queue.Priority) EnqueueResult {
	id, pos, wait := s.queue.Enqueue(audio, sampleRate, project, priority)
	s.reg.Create(id)

	ctx := context.Background()
	s.metrics.ItemsEnqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("priority", priority.String())))
	s.metrics.QueueDepth.Add(ctx, 1)

	slog.Info("audio enqueued", "item_id", id, "project", project, "priority", priority, "position", pos, "bytes", len(audio))
	return EnqueueResult{ItemID: id, Position: pos, EstimatedWait: wait}
}

// WaitForItem blocks until the item finishes (played, expired, or cleared),
// up to timeout. Unknown ids report completed — the event was collected or
// never existed; either way there is nothing to wait for.
func (s *Service) WaitForItem(ctx context.Context, itemID string, timeout time.Duration) bool {
	completed := s.reg.Wait(ctx, itemID, timeout)
	if !completed {
		slog.Warn("timeout waiting for item", "item_id", itemID, "timeout", timeout)
	}
	return completed
}

// Pause sets the paused flag; playback emits silence until Resume. Always
// succeeds, also when nothing is playing.
func (s *Service) Pause() { s.engine.Pause() }

// Resume clears the paused flag. Always succeeds.
func (s *Service) Resume() { s.engine.Resume() }

// StopPlayback aborts the item being rendered, if any, and reports whether
// something was stopped. The aborted item completes normally from the
// caller's perspective.
func (s *Service) StopPlayback() bool { return s.engine.Stop() }

// ClearQueue removes queued items — all of them, or only the given
// project's — and fires their completion events so waiters unblock. Returns
// the number removed.
func (s *Service) ClearQueue(project string) int {
	removed := s.queue.Clear(project)
	for _, id := range removed {
		s.reg.Signal(id)
		s.reg.ScheduleCleanup(id, s.cfg.CompletionCleanupDelay.Std())
	}
	if n := len(removed); n > 0 {
		ctx := context.Background()
		s.metrics.ItemsCleared.Add(ctx, int64(n))
		s.metrics.QueueDepth.Add(ctx, int64(-n))
		slog.Info("queue cleared", "project", project, "removed", n)
	}
	return len(removed)
}

// ChimeAllowed atomically checks and records the cross-window chime
// cooldown.
func (s *Service) ChimeAllowed() chime.Result {
	res := s.chimes.CheckAndRecord()
	if !res.Allowed {
		s.metrics.ChimesDenied.Add(context.Background(), 1)
	}
	return res
}

// GetStatus aggregates queue, player, and hotkey state.
func (s *Service) GetStatus() Status {
	qs := s.queue.Stats()
	hs := s.monitor.GetStatus()
	return Status{
		Playing:             s.engine.Playing(),
		Paused:              s.engine.Paused(),
		CurrentProject:      s.engine.CurrentProject(),
		QueueLength:         qs.Length,
		PendingReservations: qs.PendingReservations,
		TotalEnqueued:       qs.TotalEnqueued,
		TotalPlayed:         qs.TotalPlayed,
		EstimatedWait:       qs.EstimatedWait,
		DictationActive:     s.dictating.Load(),
		Hotkey:              hs.Hotkey,
		HotkeyPressed:       hs.Pressed,
	}
}

// WorkerAlive reports whether the playback worker loop is running.
func (s *Service) WorkerAlive() bool { return s.workerUp.Load() }

// ─── Worker ──────────────────────────────────────────────────────────────────

// Run starts the hotkey monitor and the playback worker, then blocks until
// ctx is cancelled. Cancellation is noticed between items: an item already
// being rendered plays on until it ends or [Service.StopPlayback] aborts it.
func (s *Service) Run(ctx context.Context) error {
	s.monitor.Start()
	defer s.monitor.Stop()

	s.workerUp.Store(true)
	defer s.workerUp.Store(false)

	slog.Info("playback worker started")
	for {
		select {
		case <-ctx.Done():
			s.engine.Stop()
			slog.Info("playback worker stopped")
			return ctx.Err()
		default:
		}

		item, expired := s.queue.Dequeue(dequeueWait)
		s.finishExpired(expired)
		if item == nil {
			continue
		}
		s.playOne(item)
	}
}

// finishExpired fires completion for reservations the queue dropped, so
// their waiters unblock as if the items had played.
func (s *Service) finishExpired(ids []string) {
	if len(ids) == 0 {
		return
	}
	ctx := context.Background()
	for _, id := range ids {
		slog.Info("reservation expired", "item_id", id)
		s.reg.Signal(id)
		s.reg.ScheduleCleanup(id, s.cfg.CompletionCleanupDelay.Std())
	}
	s.metrics.ItemsExpired.Add(ctx, int64(len(ids)))
	s.metrics.QueueDepth.Add(ctx, int64(-len(ids)))
}

// playOne renders a single item and fires its completion. The worker must
// never die: device failures and even panics are contained here, the item is
// marked done, and the loop continues with the next one.
func (s *Service) playOne(item *queue.Item) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("playback panic recovered", "item_id", item.ID, "panic", r)
		}
		item.State = queue.StateDone
		s.reg.Signal(item.ID)
		s.reg.ScheduleCleanup(item.ID, s.cfg.CompletionCleanupDelay.Std())
	}()

	item.State = queue.StatePlaying
	slog.Info("playing", "item_id", item.ID, "project", item.Project, "priority", item.Priority, "bytes", len(item.Audio))

	ctx := context.Background()
	start := s.now()
	err := s.engine.Play(item.Audio, item.SampleRate, item.Project)
	s.metrics.PlaybackDuration.Record(ctx, s.now().Sub(start).Seconds())
	s.metrics.ItemsPlayed.Add(ctx, 1)
	s.metrics.QueueDepth.Add(ctx, -1)

	switch {
	case errors.Is(err, playback.ErrStopped):
		slog.Info("playback stopped", "item_id", item.ID)
	case err != nil:
		slog.Error("playback failed", "item_id", item.ID, "err", err)
	default:
		slog.Debug("playback complete", "item_id", item.ID)
	}
}

// Close tears the service down: stops the hotkey monitor and cancels pending
// registry cleanups. Idempotent.
func (s *Service) Close() error {
	s.stopOnce.Do(func() {
		s.monitor.Stop()
		s.engine.Stop()
		s.reg.Close()
	})
	return nil
}
