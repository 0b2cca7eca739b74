package avatar3d

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmotion(t *testing.T) {
	tests := []struct {
		label   string
		want    Emotion
		wantErr bool
	}{
		{"happy", EmotionHappy, false},
		{"  Thinking ", EmotionThinking, false},
		{"SAD", EmotionSad, false},
		{"joy", EmotionHappy, false},
		{"calm", EmotionRelaxed, false},
		{"confused", EmotionNeutral, true},
		{"", EmotionNeutral, true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseEmotion(tt.label)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnknownEmotion))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveTargetsUnknownIsNeutral(t *testing.T) {
	for _, speaking := range []bool{false, true} {
		assert.Equal(t,
			ResolveTargets(EmotionNeutral, speaking),
			ResolveTargets(Emotion("bogus"), speaking))
	}
}

func TestResolveTargetsEmotionChannels(t *testing.T) {
	for _, e := range Emotions {
		target := ResolveTargets(e, false)
		ch, ok := e.Channel()

		for c := ExpressionChannel(0); c < ChannelCount; c++ {
			w := target.Expressions.Get(c)
			switch {
			case ok && c == ch:
				assert.Equal(t, float32(1), w, "%s/%s", e, c)
			case e == EmotionThinking && c == ChannelLookUp:
				assert.Equal(t, thinkingLookUp, w)
			case e == EmotionThinking && c == ChannelOu:
				assert.Equal(t, thinkingOu, w)
			default:
				assert.Zero(t, w, "%s/%s", e, c)
			}
		}
	}
}

func TestResolveTargetsThinkingTiltsHead(t *testing.T) {
	target := ResolveTargets(EmotionThinking, false)
	assert.Equal(t, thinkingHeadTilt, target.Bones[BoneHead])
}

func TestResolveTargetsArmsAtRest(t *testing.T) {
	target := ResolveTargets(EmotionNeutral, false)
	assert.InDelta(t, -armRest, target.Bones[BoneLeftUpperArm][2], 1e-6)
	assert.InDelta(t, armRest, target.Bones[BoneRightUpperArm][2], 1e-6)
}

func TestResolveTargetsSpeakingLean(t *testing.T) {
	quiet := ResolveTargets(EmotionHappy, false)
	talking := ResolveTargets(EmotionHappy, true)

	assert.Equal(t, quiet.Expressions, talking.Expressions)
	assert.InDelta(t, quiet.Bones[BoneHead][0]+speakingHeadLean[0], talking.Bones[BoneHead][0], 1e-6)
	assert.InDelta(t, quiet.Bones[BoneChest][0]+speakingChestLean[0], talking.Bones[BoneChest][0], 1e-6)
}

func TestChannelAndBoneNames(t *testing.T) {
	assert.Equal(t, ChannelMouthOpen, ChannelFromName("aa"))
	assert.Equal(t, ChannelLookUp, ChannelFromName("LOOKUP"))
	assert.Equal(t, ExpressionChannel(-1), ChannelFromName("nope"))

	assert.Equal(t, BoneLeftUpperArm, BoneFromName("leftupperarm"))
	assert.Equal(t, Bone(-1), BoneFromName("tail"))
	assert.Equal(t, "unknown", Bone(42).String())
}
