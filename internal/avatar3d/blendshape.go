package avatar3d

import "strings"

// ExpressionChannel is one of the fixed expression names of the model format.
type ExpressionChannel int

const (
	ChannelHappy ExpressionChannel = iota
	ChannelSad
	ChannelAngry
	ChannelSurprised
	ChannelRelaxed
	ChannelBlink
	ChannelMouthOpen
	ChannelLookUp
	ChannelOu
	ChannelCount
)

var ChannelNames = [ChannelCount]string{
	"happy",
	"sad",
	"angry",
	"surprised",
	"relaxed",
	"blink",
	"aa",
	"lookUp",
	"ou",
}

func (c ExpressionChannel) String() string {
	if c < 0 || c >= ChannelCount {
		return "unknown"
	}
	return ChannelNames[c]
}

// ChannelFromName resolves a model expression name, case-insensitively.
// Returns -1 when the name is not part of the vocabulary.
func ChannelFromName(name string) ExpressionChannel {
	for i, n := range ChannelNames {
		if strings.EqualFold(n, name) {
			return ExpressionChannel(i)
		}
	}
	return -1
}

// ExpressionWeights holds one weight per channel, each kept in [0,1].
type ExpressionWeights [ChannelCount]float32

func (w *ExpressionWeights) Set(ch ExpressionChannel, value float32) {
	w[ch] = clamp(value, 0, 1)
}

func (w *ExpressionWeights) Get(ch ExpressionChannel) float32 {
	return w[ch]
}

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}
