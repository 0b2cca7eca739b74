package avatar3d

import "github.com/go-gl/mathgl/mgl32"

const armRest = 1.2

// Pondering look used while thinking.
const (
	thinkingLookUp float32 = 0.4
	thinkingOu     float32 = 0.25
)

var thinkingHeadTilt = mgl32.Vec3{-0.12, 0.1, 0.22}

type bonePreset struct {
	head, neck, spine, chest mgl32.Vec3
	arm                      float32
}

var emotionBonePresets = map[Emotion]bonePreset{
	EmotionNeutral:   {arm: armRest},
	EmotionHappy:     {head: mgl32.Vec3{0, 0, 0.06}, chest: mgl32.Vec3{-0.03, 0, 0}, arm: 1.1},
	EmotionSad:       {head: mgl32.Vec3{0.18, 0, 0}, neck: mgl32.Vec3{0.06, 0, 0}, spine: mgl32.Vec3{0.05, 0, 0}, arm: 1.3},
	EmotionAngry:     {head: mgl32.Vec3{0.08, 0, 0}, chest: mgl32.Vec3{0.04, 0, 0}, arm: 1.25},
	EmotionSurprised: {head: mgl32.Vec3{-0.12, 0, 0}, spine: mgl32.Vec3{-0.04, 0, 0}, arm: 1.0},
	EmotionRelaxed:   {head: mgl32.Vec3{0, 0, -0.05}, arm: 1.25},
	EmotionThinking:  {head: thinkingHeadTilt, neck: mgl32.Vec3{0, 0.05, 0.05}, arm: armRest},
}

var (
	speakingHeadLean  = mgl32.Vec3{0.04, 0, 0}
	speakingChestLean = mgl32.Vec3{0.02, 0, 0}
)

// ResolveTargets computes expression and bone targets for an emotion.
// It is a pure function of its inputs. Values outside the closed emotion
// set resolve exactly like EmotionNeutral.
func ResolveTargets(emotion Emotion, speaking bool) PoseTargets {
	if !emotion.Valid() {
		emotion = EmotionNeutral
	}

	var target PoseTargets

	if emotion == EmotionThinking {
		target.Expressions.Set(ChannelLookUp, thinkingLookUp)
		target.Expressions.Set(ChannelOu, thinkingOu)
	} else if ch, ok := emotion.Channel(); ok {
		target.Expressions.Set(ch, 1)
	}

	preset := emotionBonePresets[emotion]
	target.Bones[BoneHead] = preset.head
	target.Bones[BoneNeck] = preset.neck
	target.Bones[BoneSpine] = preset.spine
	target.Bones[BoneChest] = preset.chest
	target.Bones[BoneLeftUpperArm] = mgl32.Vec3{0, 0, -preset.arm}
	target.Bones[BoneRightUpperArm] = mgl32.Vec3{0, 0, preset.arm}

	if speaking {
		target.Bones.Add(BoneHead, speakingHeadLean)
		target.Bones.Add(BoneChest, speakingChestLean)
	}

	return target
}
