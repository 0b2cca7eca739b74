package avatar3d

import (
	"math"
	"math/rand"
)

// maxBlinkCatchUp bounds how many whole blinks a single Advance may skip
// over when the clock jumps.
const maxBlinkCatchUp = 64

// BlinkTimer is the blink state machine. It is a plain value; only
// BlinkGenerator mutates it.
type BlinkTimer struct {
	IsBlinking bool
	// PhaseStartTime is the onset of the current or most recent blink,
	// or zero before the first one.
	PhaseStartTime float64
	// NextBlinkDelay is the gap between the last onset and the next.
	NextBlinkDelay float64
}

// BlinkGenerator drives BlinkTimer values against the shared clock.
type BlinkGenerator struct {
	minDelay float64
	maxDelay float64
	duration float64
	rng      *rand.Rand
}

func NewBlinkGenerator(t Tuning, rng *rand.Rand) *BlinkGenerator {
	return &BlinkGenerator{
		minDelay: t.BlinkMinDelay,
		maxDelay: t.BlinkMaxDelay,
		duration: t.BlinkDuration,
		rng:      rng,
	}
}

// Start returns an open timer whose first blink is drawn from the
// configured delay range, measured from clock zero.
func (g *BlinkGenerator) Start() BlinkTimer {
	return BlinkTimer{NextBlinkDelay: g.drawDelay()}
}

func (g *BlinkGenerator) drawDelay() float64 {
	d := g.minDelay + g.rng.Float64()*(g.maxDelay-g.minDelay)
	if d >= g.maxDelay {
		d = g.minDelay
	}
	return d
}

// Advance moves the timer to clock time now and returns the eyelid weight.
// When held is true the weight is forced to 1 (eyes closed) but the
// timer's own bookkeeping still advances normally.
func (g *BlinkGenerator) Advance(b BlinkTimer, now float64, held bool) (BlinkTimer, float32) {
	b, weight := g.step(b, now)
	if held {
		return b, 1
	}
	return b, weight
}

func (g *BlinkGenerator) step(b BlinkTimer, now float64) (BlinkTimer, float32) {
	for i := 0; i < maxBlinkCatchUp; i++ {
		if !b.IsBlinking {
			onset := b.PhaseStartTime + b.NextBlinkDelay
			if now < onset {
				return b, 0
			}
			b.IsBlinking = true
			b.PhaseStartTime = onset
		}

		progress := (now - b.PhaseStartTime) / g.duration
		if progress < 1 {
			return b, blinkCurve(progress)
		}

		b.IsBlinking = false
		b.NextBlinkDelay = g.drawDelay()
	}

	// Clock jumped past many blinks; resynchronise instead of replaying them.
	b.IsBlinking = false
	b.PhaseStartTime = now
	return b, 0
}

// blinkCurve is symmetric on [0,1], exactly 0 at both ends and 1 at 0.5.
func blinkCurve(progress float64) float32 {
	if progress <= 0 || progress >= 1 {
		return 0
	}
	return clamp(float32(math.Sin(math.Pi*progress)), 0, 1)
}
