package avatar

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/normanking/avatarcore/internal/avatar3d"
	"github.com/normanking/avatarcore/internal/bus"
	"github.com/normanking/avatarcore/internal/model/memmodel"
	"github.com/normanking/avatarcore/internal/observe"
)

const dt = 1.0 / 60

func newTestController(t *testing.T, model avatar3d.Model) (*Controller, *bus.EventBus) {
	t.Helper()
	b := bus.NewEventBus()
	c := NewController(model, Options{
		Logger: zerolog.Nop(),
		Bus:    b,
		Seed:   42,
	})
	return c, b
}

func frames(c *Controller, seconds float64) FrameSnapshot {
	var snap FrameSnapshot
	for n := int(seconds/dt + 0.5); n > 0; n-- {
		snap = c.Frame(dt)
	}
	return snap
}

func TestControllerDrivesModel(t *testing.T) {
	m := memmodel.New(memmodel.Options{})
	c, _ := newTestController(t, m)

	assert.Equal(t, avatar3d.EmotionSurprised, c.ApplyTurn(Turn{Emotion: "Surprise", Text: "Oh!"}))
	snap := frames(c, 2)

	assert.Equal(t, uint64(120), snap.Sequence)
	assert.Equal(t, c.SessionID(), snap.SessionID)
	assert.Empty(t, snap.Skipped)
	assert.InDelta(t, 1, m.Weights()["surprised"], 1e-2)

	updates, _, elapsed := m.Springs().Stats()
	assert.Equal(t, 120, updates)
	assert.InDelta(t, 2, elapsed, 1e-3)
}

func TestControllerUnknownEmotion(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	require.NoError(t, err)

	c := NewController(memmodel.New(memmodel.Options{}), Options{
		Logger:  zerolog.Nop(),
		Metrics: metrics,
		Seed:    1,
	})
	c.SetEmotion("happy")
	assert.Equal(t, avatar3d.EmotionNeutral, c.SetEmotion("befuddled"))
	assert.Equal(t, avatar3d.EmotionNeutral, c.Emotion())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "avatarcore.emotion.unknown" {
				found = true
				sum := m.Data.(metricdata.Sum[int64])
				require.Len(t, sum.DataPoints, 1)
				assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			}
		}
	}
	assert.True(t, found)
}

func TestControllerHeadTap(t *testing.T) {
	c, b := newTestController(t, memmodel.New(memmodel.Options{}))

	var finished atomic.Int64
	b.Subscribe(bus.EventTypeEffectFinished, func(e bus.Event) {
		finished.Store(e.Data["effect"].(int64))
	})

	c.SetEmotion("sad")
	origin := mgl32.Vec3{0, 1.5, 0.1}
	id := c.HandleHeadTap(origin)

	effects := c.Effects()
	require.Len(t, effects, 1)
	assert.Equal(t, id, effects[0].ID)
	assert.Equal(t, origin, effects[0].Origin)
	assert.Len(t, effects[0].Particles, 20)

	snap := c.Frame(dt)
	assert.Equal(t, avatar3d.EmotionHappy, snap.Frame.Emotion)
	assert.Len(t, snap.Effects, 1)

	snap = frames(c, 1.3)
	assert.Empty(t, snap.Effects)
	assert.Empty(t, c.Effects())
	assert.Eventually(t, func() bool { return finished.Load() == id }, time.Second, 5*time.Millisecond)

	snap = frames(c, 1.5)
	assert.Equal(t, avatar3d.EmotionSad, snap.Frame.Emotion)
}

func TestControllerPointerRay(t *testing.T) {
	c := NewController(memmodel.New(memmodel.Options{}), Options{
		Logger:   zerolog.Nop(),
		Seed:     3,
		Collider: &avatar3d.HeadCollider{Center: mgl32.Vec3{0, 1.5, 0}, Radius: 0.12},
	})

	_, ok := c.HandlePointerRay(mgl32.Vec3{0, 0, 2}, mgl32.Vec3{0, 0, -1})
	assert.False(t, ok)

	id, ok := c.HandlePointerRay(mgl32.Vec3{0, 1.5, 2}, mgl32.Vec3{0, 0, -1})
	require.True(t, ok)
	effects := c.Effects()
	require.Len(t, effects, 1)
	assert.Equal(t, id, effects[0].ID)
	assert.InDelta(t, 0.12, effects[0].Origin[2], 1e-5)
}

func TestControllerSpeechLifecycle(t *testing.T) {
	m := memmodel.New(memmodel.Options{})
	c, b := newTestController(t, m)

	var started, stopped atomic.Int32
	b.Subscribe(bus.EventTypeSpeakingStarted, func(bus.Event) { started.Add(1) })
	b.Subscribe(bus.EventTypeSpeakingStopped, func(bus.Event) { stopped.Add(1) })

	analyser := avatar3d.NewSnapshotAnalyser(32)
	loud := make([]byte, 32)
	for i := range loud {
		loud[i] = 100
	}
	analyser.Update(loud)

	c.StartSpeaking(analyser)
	c.StartSpeaking(analyser)
	assert.True(t, c.IsSpeaking())

	snap := frames(c, 1)
	assert.InDelta(t, 1, snap.Frame.MouthOpen, 1e-6)
	assert.False(t, snap.Frame.Idle)
	assert.InDelta(t, 1, m.Weights()["aa"], 1e-2)

	c.StopSpeaking()
	c.StopSpeaking()
	snap = frames(c, 1)
	assert.True(t, snap.Frame.Idle)
	assert.InDelta(t, 0, m.Weights()["aa"], 1e-3)

	assert.Eventually(t, func() bool { return started.Load() == 1 && stopped.Load() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestControllerShortSpeechCancelsOverride(t *testing.T) {
	c, _ := newTestController(t, memmodel.New(memmodel.Options{}))

	c.HandleHeadTap(mgl32.Vec3{0, 1.5, 0})
	snap := c.Frame(dt)
	require.Equal(t, avatar3d.EmotionHappy, snap.Frame.Emotion)

	c.StartSpeaking(nil)
	c.StopSpeaking()
	snap = c.Frame(dt)
	assert.False(t, c.State().Override.Active)
	assert.Equal(t, avatar3d.EmotionNeutral, snap.Frame.Emotion)

	// The start is consumed by one frame.
	c.HandleHeadTap(mgl32.Vec3{0, 1.5, 0})
	snap = c.Frame(dt)
	assert.Equal(t, avatar3d.EmotionHappy, snap.Frame.Emotion)
}

func TestControllerSpeakingWithoutAnalyser(t *testing.T) {
	c, _ := newTestController(t, memmodel.New(memmodel.Options{}))
	c.StartSpeaking(nil)

	snap := frames(c, 0.5)
	assert.Zero(t, snap.Frame.MouthOpen)
	assert.False(t, snap.Frame.Idle)
}

func TestControllerMissingParts(t *testing.T) {
	m := memmodel.New(memmodel.Options{
		MissingBones:    []avatar3d.Bone{avatar3d.BoneLeftUpperArm},
		MissingChannels: []avatar3d.ExpressionChannel{avatar3d.ChannelLookUp},
	})
	c, b := newTestController(t, m)

	var mu sync.Mutex
	reported := map[string]int{}
	b.Subscribe(bus.EventTypeMissingModelPart, func(e bus.Event) {
		mu.Lock()
		reported[e.Data["part"].(string)]++
		mu.Unlock()
	})

	c.SetEmotion("happy")
	snap := frames(c, 1)
	assert.ElementsMatch(t, []string{"leftUpperArm", "lookUp"}, snap.Skipped)
	assert.InDelta(t, 1, m.Weights()["happy"], 1e-2)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reported) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"leftUpperArm": 1, "lookUp": 1}, reported)
}

func TestControllerReset(t *testing.T) {
	m := memmodel.New(memmodel.Options{})
	c, _ := newTestController(t, m)

	c.SetEmotion("angry")
	c.StartSpeaking(nil)
	c.HandleHeadTap(mgl32.Vec3{})
	c.Frame(dt)
	require.True(t, c.State().Override.Active)

	c.Reset()
	assert.Equal(t, avatar3d.EmotionNeutral, c.Emotion())
	assert.False(t, c.IsSpeaking())
	assert.False(t, c.State().Override.Active)

	_, resets, _ := m.Springs().Stats()
	assert.Equal(t, 1, resets)

	snap := c.Frame(dt)
	assert.Equal(t, avatar3d.EmotionNeutral, snap.Frame.Emotion)
}

func TestControllerUpdateTuning(t *testing.T) {
	c, _ := newTestController(t, memmodel.New(memmodel.Options{}))

	tuning := c.Tuning()
	tuning.Effects.ParticleCount = 8
	tuning.MaxDeltaTime = 0.05
	c.UpdateTuning(tuning)

	c.HandleHeadTap(mgl32.Vec3{})
	assert.Len(t, c.Effects()[0].Particles, 8)

	snap := c.Frame(1)
	assert.Equal(t, 0.05, snap.Frame.DeltaTime)
}

func TestControllerLoop(t *testing.T) {
	c, _ := newTestController(t, memmodel.New(memmodel.Options{}))

	var count atomic.Int32
	c.SetOnFrame(func(FrameSnapshot) { count.Add(1) })

	require.NoError(t, c.Start(context.Background(), 120))
	assert.ErrorIs(t, c.Start(context.Background(), 120), ErrAlreadyRunning)

	assert.Eventually(t, func() bool { return count.Load() >= 5 }, 2*time.Second, 5*time.Millisecond)
	c.Stop()
	c.Stop()

	// A frame already in flight may still finish.
	time.Sleep(20 * time.Millisecond)
	after := count.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, count.Load())

	require.NoError(t, c.Start(context.Background(), 120))
	c.Stop()
}

func TestControllerStopFromFrameCallback(t *testing.T) {
	c, _ := newTestController(t, memmodel.New(memmodel.Options{}))

	returned := make(chan struct{})
	var once sync.Once
	c.SetOnFrame(func(FrameSnapshot) {
		once.Do(func() {
			c.Stop()
			close(returned)
		})
	})

	require.NoError(t, c.Start(context.Background(), 120))
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked inside the frame callback")
	}

	c.SetOnFrame(nil)
	require.NoError(t, c.Start(context.Background(), 120))
	c.Stop()
}
