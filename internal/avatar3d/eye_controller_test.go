package avatar3d

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlinkOnsetIntervals(t *testing.T) {
	tuning := DefaultTuning()
	gen := NewBlinkGenerator(tuning, rand.New(rand.NewSource(7)))
	timer := gen.Start()

	require.GreaterOrEqual(t, timer.NextBlinkDelay, tuning.BlinkMinDelay)
	require.Less(t, timer.NextBlinkDelay, tuning.BlinkMaxDelay)

	const dt = 1.0 / 60
	var onsets []float64
	wasBlinking := false
	for i := 1; i <= 60*600; i++ {
		now := float64(i) * dt
		var w float32
		timer, w = gen.Advance(timer, now, false)

		assert.GreaterOrEqual(t, w, float32(0))
		assert.LessOrEqual(t, w, float32(1))
		if !timer.IsBlinking {
			assert.Zero(t, w, "eyes must be fully open between blinks at t=%f", now)
		}
		if timer.IsBlinking && !wasBlinking {
			onsets = append(onsets, timer.PhaseStartTime)
		}
		wasBlinking = timer.IsBlinking
	}

	require.Greater(t, len(onsets), 60)
	for i := 1; i < len(onsets); i++ {
		gap := onsets[i] - onsets[i-1]
		assert.GreaterOrEqual(t, gap, tuning.BlinkMinDelay-1e-9)
		assert.Less(t, gap, tuning.BlinkMaxDelay)
	}
}

func TestBlinkCurveShape(t *testing.T) {
	assert.Zero(t, blinkCurve(0))
	assert.Zero(t, blinkCurve(1))
	assert.Zero(t, blinkCurve(-0.3))
	assert.InDelta(t, 1.0, blinkCurve(0.5), 1e-6)
	assert.InDelta(t, blinkCurve(0.2), blinkCurve(0.8), 1e-6)
}

func TestBlinkHeldDoesNotDisturbTimer(t *testing.T) {
	tuning := DefaultTuning()
	held := NewBlinkGenerator(tuning, rand.New(rand.NewSource(3)))
	free := NewBlinkGenerator(tuning, rand.New(rand.NewSource(3)))

	a, b := held.Start(), free.Start()
	for i := 1; i <= 60*30; i++ {
		now := float64(i) / 60
		var w float32
		a, w = held.Advance(a, now, true)
		b, _ = free.Advance(b, now, false)

		assert.Equal(t, float32(1), w)
		assert.Equal(t, b, a)
	}
}

func TestBlinkClockJumpResynchronises(t *testing.T) {
	gen := NewBlinkGenerator(DefaultTuning(), rand.New(rand.NewSource(1)))
	timer := gen.Start()

	timer, w := gen.Advance(timer, 1e6, false)
	assert.Zero(t, w)
	assert.False(t, timer.IsBlinking)
	assert.Equal(t, 1e6, timer.PhaseStartTime)

	timer, w = gen.Advance(timer, 1e6+0.5, false)
	assert.Zero(t, w)
	assert.False(t, timer.IsBlinking)
}
