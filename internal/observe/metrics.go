// Package observe provides observability primitives for the audio manager:
// OpenTelemetry metrics, request spans, and HTTP middleware tying them
// together. Metrics are recorded through the OTel Metrics API and exposed
// for scraping via a Prometheus exporter bridge (see [InitProvider]).
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope for all audio manager metrics.
const meterName = "github.com/voicedesk/voicedesk"

// Metrics holds the metric instruments for the service. The underlying OTel
// types handle their own synchronisation.
type Metrics struct {
	// ItemsEnqueued counts items inserted into the queue. Use with
	// attribute.String("priority", ...).
	ItemsEnqueued metric.Int64Counter

	// ItemsPlayed counts items the worker handed to the playback engine,
	// including items whose playback failed or was stopped.
	ItemsPlayed metric.Int64Counter

	// ItemsExpired counts reservations dropped unfilled.
	ItemsExpired metric.Int64Counter

	// ItemsCleared counts items removed by clear requests.
	ItemsCleared metric.Int64Counter

	// PlaybackDuration tracks wall-clock seconds spent rendering one
	// item, pauses included.
	PlaybackDuration metric.Float64Histogram

	// QueueDepth tracks the number of live items in the queue.
	QueueDepth metric.Int64UpDownCounter

	// ChimesDenied counts chime requests rejected by the cooldown.
	ChimesDenied metric.Int64Counter

	// HTTPRequestDuration tracks request handling latency in seconds.
	HTTPRequestDuration metric.Float64Histogram
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide [Metrics] built from the global
// meter provider. Tests should use [NewMetrics] with their own provider to
// avoid cross-test pollution.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			// Instrument creation from the global provider only
			// fails on malformed names; fall back to no-ops so
			// callers never nil-check.
			m, _ = NewMetrics(noop.NewMeterProvider())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// NewMetrics creates all instruments from the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.ItemsEnqueued, err = meter.Int64Counter("audio_items_enqueued_total",
		metric.WithDescription("Items inserted into the audio queue")); err != nil {
		return nil, err
	}
	if m.ItemsPlayed, err = meter.Int64Counter("audio_items_played_total",
		metric.WithDescription("Items handed to the playback engine")); err != nil {
		return nil, err
	}
	if m.ItemsExpired, err = meter.Int64Counter("audio_items_expired_total",
		metric.WithDescription("Reservations dropped unfilled")); err != nil {
		return nil, err
	}
	if m.ItemsCleared, err = meter.Int64Counter("audio_items_cleared_total",
		metric.WithDescription("Items removed by clear requests")); err != nil {
		return nil, err
	}
	if m.PlaybackDuration, err = meter.Float64Histogram("audio_playback_duration_seconds",
		metric.WithDescription("Wall-clock time spent rendering one item")); err != nil {
		return nil, err
	}
	if m.QueueDepth, err = meter.Int64UpDownCounter("audio_queue_depth",
		metric.WithDescription("Live items in the audio queue")); err != nil {
		return nil, err
	}
	if m.ChimesDenied, err = meter.Int64Counter("audio_chimes_denied_total",
		metric.WithDescription("Chime requests rejected by the cooldown")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request handling latency")); err != nil {
		return nil, err
	}
	return m, nil
}
