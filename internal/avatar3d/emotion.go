package avatar3d

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownEmotion = errors.New("unknown emotion label")
	ErrMissingBone    = errors.New("model has no such bone")
	ErrMissingChannel = errors.New("model has no such expression")
)

// Emotion is the single authoritative emotional state of the avatar.
type Emotion string

const (
	EmotionNeutral   Emotion = "neutral"
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionAngry     Emotion = "angry"
	EmotionSurprised Emotion = "surprised"
	EmotionRelaxed   Emotion = "relaxed"

	// EmotionThinking is layered on top of the expression system; it has
	// no channel of its own.
	EmotionThinking Emotion = "thinking"
)

var Emotions = []Emotion{
	EmotionNeutral,
	EmotionHappy,
	EmotionSad,
	EmotionAngry,
	EmotionSurprised,
	EmotionRelaxed,
	EmotionThinking,
}

var emotionAliases = map[string]Emotion{
	"joy":      EmotionHappy,
	"sadness":  EmotionSad,
	"anger":    EmotionAngry,
	"surprise": EmotionSurprised,
	"calm":     EmotionRelaxed,
}

// ParseEmotion maps an upstream label onto the closed emotion set.
// Unknown labels yield EmotionNeutral together with an error wrapping
// ErrUnknownEmotion; callers are expected to log it and carry on.
func ParseEmotion(label string) (Emotion, error) {
	key := strings.ToLower(strings.TrimSpace(label))
	for _, e := range Emotions {
		if string(e) == key {
			return e, nil
		}
	}
	if e, ok := emotionAliases[key]; ok {
		return e, nil
	}
	return EmotionNeutral, fmt.Errorf("%w: %q", ErrUnknownEmotion, label)
}

// Channel returns the expression channel named after the emotion.
// Neutral and thinking have none.
func (e Emotion) Channel() (ExpressionChannel, bool) {
	switch e {
	case EmotionHappy:
		return ChannelHappy, true
	case EmotionSad:
		return ChannelSad, true
	case EmotionAngry:
		return ChannelAngry, true
	case EmotionSurprised:
		return ChannelSurprised, true
	case EmotionRelaxed:
		return ChannelRelaxed, true
	}
	return -1, false
}

func (e Emotion) Valid() bool {
	for _, known := range Emotions {
		if e == known {
			return true
		}
	}
	return false
}
