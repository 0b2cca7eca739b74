// Package observe provides the OpenTelemetry metric instruments of the
// animation core and a Prometheus exporter bridge for scraping them.
//
// Tests should build [Metrics] with [NewMetrics] over their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/normanking/avatarcore"

// Metrics holds all instruments. The OTel types handle their own
// synchronisation.
type Metrics struct {
	// FrameDelta records the clamped delta time of every integrated frame.
	FrameDelta metric.Float64Histogram

	// UnknownEmotions counts labels that fell back to neutral. Use with
	// attribute.String("label", ...).
	UnknownEmotions metric.Int64Counter

	// SkippedCommits counts bone/channel writes skipped because the model
	// lacks them. Use with attribute.String("kind", ...), attribute.String("name", ...).
	SkippedCommits metric.Int64Counter

	HeadTaps   metric.Int64Counter
	Utterances metric.Int64Counter

	// FeedEvents counts upstream turn-feed events by attribute.String("event", ...).
	FeedEvents metric.Int64Counter

	ActiveEffects metric.Int64UpDownCounter
	StreamClients metric.Int64UpDownCounter
}

// frameBuckets are in seconds and centre on common display rates.
var frameBuckets = []float64{
	0.004, 0.007, 0.0111, 0.0167, 0.0222, 0.0334, 0.05, 0.1,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FrameDelta, err = m.Float64Histogram("avatarcore.frame.delta",
		metric.WithDescription("Clamped delta time of integrated frames."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}

	if met.UnknownEmotions, err = m.Int64Counter("avatarcore.emotion.unknown",
		metric.WithDescription("Emotion labels mapped to neutral because they were not recognised."),
	); err != nil {
		return nil, err
	}
	if met.SkippedCommits, err = m.Int64Counter("avatarcore.commit.skipped",
		metric.WithDescription("Bone or expression writes skipped because the model lacks them."),
	); err != nil {
		return nil, err
	}
	if met.HeadTaps, err = m.Int64Counter("avatarcore.interaction.head_taps",
		metric.WithDescription("Head taps received from the pointer boundary."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("avatarcore.speech.utterances",
		metric.WithDescription("Speech playbacks started."),
	); err != nil {
		return nil, err
	}
	if met.FeedEvents, err = m.Int64Counter("avatarcore.feed.events",
		metric.WithDescription("Upstream turn feed events by type."),
	); err != nil {
		return nil, err
	}

	if met.ActiveEffects, err = m.Int64UpDownCounter("avatarcore.effects.active",
		metric.WithDescription("Interaction effects currently alive."),
	); err != nil {
		return nil, err
	}
	if met.StreamClients, err = m.Int64UpDownCounter("avatarcore.stream.clients",
		metric.WithDescription("Connected pose stream clients."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on the global
// meter provider. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func (m *Metrics) RecordUnknownEmotion(ctx context.Context, label string) {
	m.UnknownEmotions.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
}

func (m *Metrics) RecordSkippedCommit(ctx context.Context, kind, name string) {
	m.SkippedCommits.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("name", name),
		),
	)
}

func (m *Metrics) RecordFeedEvent(ctx context.Context, event string) {
	m.FeedEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}
