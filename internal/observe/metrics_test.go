package observe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestFrameDeltaHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FrameDelta.Record(ctx, 1.0/60)
	m.FrameDelta.Record(ctx, 1.0/30)

	got := findMetric(collect(t, reader), "avatarcore.frame.delta")
	require.NotNil(t, got)
	hist, ok := got.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.Equal(t, "s", got.Unit)
}

func TestRecordUnknownEmotion(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordUnknownEmotion(ctx, "confused")
	m.RecordUnknownEmotion(ctx, "confused")
	m.RecordUnknownEmotion(ctx, "smug")

	got := findMetric(collect(t, reader), "avatarcore.emotion.unknown")
	require.NotNil(t, got)
	sum, ok := got.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byLabel := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("label"))
		byLabel[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"confused": 2, "smug": 1}, byLabel)
}

func TestRecordSkippedCommit(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordSkippedCommit(context.Background(), "bone", "chest")

	got := findMetric(collect(t, reader), "avatarcore.commit.skipped")
	require.NotNil(t, got)
	sum := got.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)

	kind, _ := sum.DataPoints[0].Attributes.Value("kind")
	name, _ := sum.DataPoints[0].Attributes.Value("name")
	assert.Equal(t, "bone", kind.AsString())
	assert.Equal(t, "chest", name.AsString())
}

func TestActiveEffectsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveEffects.Add(ctx, 1)
	m.ActiveEffects.Add(ctx, 1)
	m.ActiveEffects.Add(ctx, -1)

	got := findMetric(collect(t, reader), "avatarcore.effects.active")
	require.NotNil(t, got)
	sum := got.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
	assert.False(t, sum.IsMonotonic)
}
