package avatar3d

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// SmoothingFactor is the frame-rate independent interpolation factor for
// an exponential approach at rate per second over dt seconds.
func SmoothingFactor(rate, dt float64) float32 {
	if dt <= 0 || rate <= 0 {
		return 0
	}
	return float32(1 - math.Exp(-rate*dt))
}

// Approach moves current toward target by the smoothing factor. It never
// overshoots.
func Approach(current, target float32, rate, dt float64) float32 {
	return lerp(current, target, SmoothingFactor(rate, dt))
}

func approachVec3(current, target mgl32.Vec3, t float32) mgl32.Vec3 {
	return current.Add(target.Sub(current).Mul(t))
}

// smoothPose advances every channel and bone of current toward target.
// Blink and mouth use their own faster rates.
func smoothPose(current Pose, target PoseTargets, tuning Tuning, dt float64) Pose {
	exprT := SmoothingFactor(tuning.ExpressionRate, dt)
	mouthT := SmoothingFactor(tuning.MouthRate, dt)
	boneT := SmoothingFactor(tuning.BoneRate, dt)
	rootT := SmoothingFactor(tuning.RootRate, dt)
	blinkT := SmoothingFactor(tuning.BlinkRate, dt)

	next := current
	for i := ExpressionChannel(0); i < ChannelCount; i++ {
		switch i {
		case ChannelBlink:
			next.Expressions.Set(i, lerp(current.Expressions[i], target.Expressions[i], blinkT))
		case ChannelMouthOpen:
			next.Expressions.Set(i, lerp(current.Expressions[i], target.Expressions[i], mouthT))
		default:
			next.Expressions.Set(i, lerp(current.Expressions[i], target.Expressions[i], exprT))
		}
	}

	for b := Bone(0); b < BoneCount; b++ {
		next.Bones[b] = approachVec3(current.Bones[b], target.Bones[b], boneT)
	}

	next.RootHeight = lerp(current.RootHeight, target.RootHeight, rootT)
	return next
}
