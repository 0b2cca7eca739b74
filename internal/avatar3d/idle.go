package avatar3d

import (
	"math"
	"math/rand"
)

// IdleOffsets is the idle motion sampled at one instant.
type IdleOffsets struct {
	FloatHeight float32
	SpineYaw    float32
	NeckYaw     float32
	HeadPitch   float32
}

// IdleMotion produces low-amplitude periodic motion as a pure function of
// elapsed time. Each axis sums incommensurate sines with its own phase so
// the composite never repeats on a short cycle.
type IdleMotion struct {
	cfg          IdleTuning
	noiseOffsets [5]float64
}

func NewIdleMotion(cfg IdleTuning, rng *rand.Rand) *IdleMotion {
	im := &IdleMotion{cfg: cfg}
	for i := range im.noiseOffsets {
		im.noiseOffsets[i] = rng.Float64() * 100
	}
	return im
}

func (im *IdleMotion) Sample(t float64) IdleOffsets {
	c := im.cfg
	return IdleOffsets{
		FloatHeight: float32(c.FloatAmplitude * noise(t*c.FloatRate, im.noiseOffsets[0])),
		SpineYaw:    float32(c.SwayAmplitude * noise(t*c.SwayRate, im.noiseOffsets[1])),
		NeckYaw:     float32(c.SwayAmplitude * 0.6 * noise(t*c.SwayRate*1.3, im.noiseOffsets[2])),
		HeadPitch:   float32(c.HeadBobAmplitude * noise(t*c.HeadBobRate, im.noiseOffsets[3])),
	}
}

// Breathing is the chest pitch offset at time t. It never stops, whatever
// the avatar is doing.
func (im *IdleMotion) Breathing(t float64) float32 {
	phase := t*im.cfg.BreathingRate*2*math.Pi + im.noiseOffsets[4]
	return float32(im.cfg.BreathingAmplitude * math.Sin(phase))
}

// Overlay adds idle offsets onto resolved targets.
func (o IdleOffsets) Overlay(target *PoseTargets) {
	target.RootHeight += o.FloatHeight
	target.Bones[BoneSpine][1] += o.SpineYaw
	target.Bones[BoneNeck][1] += o.NeckYaw
	target.Bones[BoneHead][0] += o.HeadPitch
}

// noise returns a smooth value in [-1,1].
func noise(t, offset float64) float64 {
	t += offset

	n1 := math.Sin(t * 1.0)
	n2 := math.Sin(t*2.3+1.7) * 0.5
	n3 := math.Sin(t*4.1+3.2) * 0.25

	return (n1 + n2 + n3) / 1.75
}
