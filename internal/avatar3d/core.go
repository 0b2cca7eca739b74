package avatar3d

import (
	"math"
	"math/rand"
)

// CoreState is everything the animation core remembers between frames.
// It is a value; Engine.Advance returns the next one.
type CoreState struct {
	// Clock is seconds since the first post-load frame.
	Clock       float64
	Pose        Pose
	Blink       BlinkTimer
	Override    InteractionOverride
	WasSpeaking bool
}

// FrameInput is what the outside world tells the core for one frame.
type FrameInput struct {
	DeltaTime float64
	Emotion   Emotion
	Speaking  bool
	Analyser  FrequencyAnalyser
	// HeadTaps counts head taps received since the previous frame.
	HeadTaps int
	// SpeechStarted reports that speech began since the previous frame,
	// even if it has already stopped again.
	SpeechStarted bool
}

// Frame describes one integrated frame.
type Frame struct {
	Clock     float64
	DeltaTime float64
	// Emotion is the effective emotion after the interaction override.
	Emotion   Emotion
	Idle      bool
	Blink     float32
	MouthOpen float32
	Targets   PoseTargets
	Pose      Pose
}

// Engine owns the generators and advances CoreState values.
type Engine struct {
	tuning  Tuning
	blink   *BlinkGenerator
	lipSync LipSync
	idle    *IdleMotion
	rng     *rand.Rand
}

// NewEngine returns an engine using a validated copy of t.
func NewEngine(t Tuning, rng *rand.Rand) *Engine {
	t = t.Validate()
	return &Engine{
		tuning:  t,
		blink:   NewBlinkGenerator(t, rng),
		lipSync: NewLipSync(t),
		idle:    NewIdleMotion(t.Idle, rng),
		rng:     rng,
	}
}

// Tuning returns the active knobs.
func (e *Engine) Tuning() Tuning {
	return e.tuning
}

// SetTuning swaps every knob. Idle phases are kept so motion does not jump.
func (e *Engine) SetTuning(t Tuning) {
	t = t.Validate()
	e.tuning = t
	e.blink = NewBlinkGenerator(t, e.rng)
	e.lipSync = NewLipSync(t)
	e.idle.cfg = t.Idle
}

// InitialState returns the state at clock zero, posed at the neutral
// targets so the first frames do not sweep in from the bind pose.
func (e *Engine) InitialState() CoreState {
	neutral := ResolveTargets(EmotionNeutral, false)
	return CoreState{
		Pose: Pose{
			Expressions: neutral.Expressions,
			Bones:       neutral.Bones,
		},
		Blink: e.blink.Start(),
	}
}

// ClampDelta sanitises a frame delta: negative or NaN becomes 0 and large
// gaps are capped at max.
func ClampDelta(dt, max float64) float64 {
	if math.IsNaN(dt) || dt < 0 {
		return 0
	}
	if dt > max {
		return max
	}
	return dt
}

// Advance integrates one frame.
func (e *Engine) Advance(s CoreState, in FrameInput) (CoreState, Frame) {
	dt := ClampDelta(in.DeltaTime, e.tuning.MaxDeltaTime)
	s.Clock += dt

	if in.SpeechStarted || (in.Speaking && !s.WasSpeaking) {
		s.Override = s.Override.Cancel()
	}
	if in.HeadTaps > 0 {
		s.Override = s.Override.Trigger(s.Clock, e.tuning.InteractionDuration)
	}
	s.Override = s.Override.Expire(s.Clock)
	s.WasSpeaking = in.Speaking

	base := in.Emotion
	if !base.Valid() {
		base = EmotionNeutral
	}
	// The override only changes the resolved targets. Eye hold and idle
	// motion follow the emotion that was asked for.
	thinking := base == EmotionThinking
	emotion := base
	if s.Override.IsActive(s.Clock) {
		emotion = EmotionHappy
	}

	var blink float32
	s.Blink, blink = e.blink.Advance(s.Blink, s.Clock, thinking)

	targets := ResolveTargets(emotion, in.Speaking)

	idle := !in.Speaking && !thinking
	if idle {
		e.idle.Sample(s.Clock).Overlay(&targets)
	}
	targets.Bones[BoneChest][0] += e.idle.Breathing(s.Clock)

	mouth := e.lipSync.SampleMouthOpen(in.Speaking, in.Analyser)
	if in.Speaking {
		targets.Bones[BoneHead][0] += mouth * float32(e.tuning.SpeakingNod)
	}
	targets.Expressions.Set(ChannelMouthOpen, mouth)
	targets.Expressions.Set(ChannelBlink, blink)

	s.Pose = smoothPose(s.Pose, targets, e.tuning, dt)

	return s, Frame{
		Clock:     s.Clock,
		DeltaTime: dt,
		Emotion:   emotion,
		Idle:      idle,
		Blink:     blink,
		MouthOpen: mouth,
		Targets:   targets,
		Pose:      s.Pose,
	}
}
