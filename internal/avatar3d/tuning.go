package avatar3d

// Tuning holds every numeric knob of the animation core.
type Tuning struct {
	// MaxDeltaTime caps a single frame step, in seconds.
	MaxDeltaTime float64 `mapstructure:"max_delta_time"`

	ExpressionRate float64 `mapstructure:"expression_rate"`
	MouthRate      float64 `mapstructure:"mouth_rate"`
	BoneRate       float64 `mapstructure:"bone_rate"`
	RootRate       float64 `mapstructure:"root_rate"`
	// BlinkRate is fast enough to keep a blink visible but removes the
	// snap when eyes are held shut or released.
	BlinkRate float64 `mapstructure:"blink_rate"`

	BlinkMinDelay float64 `mapstructure:"blink_min_delay"`
	BlinkMaxDelay float64 `mapstructure:"blink_max_delay"`
	BlinkDuration float64 `mapstructure:"blink_duration"`

	LipSyncCalibration float64 `mapstructure:"lipsync_calibration"`
	LipSyncExponent    float64 `mapstructure:"lipsync_exponent"`
	SpeakingNod        float64 `mapstructure:"speaking_nod"`

	Idle IdleTuning `mapstructure:"idle"`

	Effects EffectTuning `mapstructure:"effects"`

	InteractionDuration float64 `mapstructure:"interaction_duration"`
}

type IdleTuning struct {
	FloatAmplitude     float64 `mapstructure:"float_amplitude"`
	FloatRate          float64 `mapstructure:"float_rate"`
	SwayAmplitude      float64 `mapstructure:"sway_amplitude"`
	SwayRate           float64 `mapstructure:"sway_rate"`
	HeadBobAmplitude   float64 `mapstructure:"head_bob_amplitude"`
	HeadBobRate        float64 `mapstructure:"head_bob_rate"`
	BreathingAmplitude float64 `mapstructure:"breathing_amplitude"`
	BreathingRate      float64 `mapstructure:"breathing_rate"`
}

// EffectTuning shapes particle bursts. Damping is the velocity retained
// per 1/60 s.
type EffectTuning struct {
	ParticleCount int     `mapstructure:"particle_count"`
	BaseSpeed     float64 `mapstructure:"base_speed"`
	MinSpeedScale float64 `mapstructure:"min_speed_scale"`
	MaxSpeedScale float64 `mapstructure:"max_speed_scale"`
	MinLifetime   float64 `mapstructure:"min_lifetime"`
	MaxLifetime   float64 `mapstructure:"max_lifetime"`
	Damping       float64 `mapstructure:"damping"`
	Gravity       float64 `mapstructure:"gravity"`
	ParticleSize  float64 `mapstructure:"particle_size"`
}

func DefaultTuning() Tuning {
	return Tuning{
		MaxDeltaTime:       0.1,
		ExpressionRate:     8,
		MouthRate:          18,
		BoneRate:           6,
		RootRate:           4,
		BlinkRate:          40,
		BlinkMinDelay:      2.0,
		BlinkMaxDelay:      7.0,
		BlinkDuration:      0.2,
		LipSyncCalibration: 100,
		LipSyncExponent:    1.5,
		SpeakingNod:        0.08,
		Idle: IdleTuning{
			FloatAmplitude:     0.02,
			FloatRate:          0.35,
			SwayAmplitude:      0.04,
			SwayRate:           0.18,
			HeadBobAmplitude:   0.03,
			HeadBobRate:        0.5,
			BreathingAmplitude: 0.02,
			BreathingRate:      0.25,
		},
		Effects: EffectTuning{
			ParticleCount: 20,
			BaseSpeed:     1.6,
			MinSpeedScale: 0.5,
			MaxSpeedScale: 1.5,
			MinLifetime:   0.6,
			MaxLifetime:   1.2,
			Damping:       0.96,
			Gravity:       1.5,
			ParticleSize:  0.03,
		},
		InteractionDuration: 2.5,
	}
}

// Validate replaces degenerate values with their defaults and returns the
// corrected copy.
func (t Tuning) Validate() Tuning {
	d := DefaultTuning()

	if t.MaxDeltaTime <= 0 {
		t.MaxDeltaTime = d.MaxDeltaTime
	}
	if t.ExpressionRate <= 0 {
		t.ExpressionRate = d.ExpressionRate
	}
	if t.MouthRate <= 0 {
		t.MouthRate = d.MouthRate
	}
	if t.BoneRate <= 0 {
		t.BoneRate = d.BoneRate
	}
	if t.RootRate <= 0 {
		t.RootRate = d.RootRate
	}
	if t.BlinkRate <= 0 {
		t.BlinkRate = d.BlinkRate
	}
	if t.BlinkMinDelay <= 0 || t.BlinkMaxDelay <= t.BlinkMinDelay {
		t.BlinkMinDelay, t.BlinkMaxDelay = d.BlinkMinDelay, d.BlinkMaxDelay
	}
	if t.BlinkDuration <= 0 || t.BlinkDuration >= t.BlinkMinDelay {
		t.BlinkDuration = d.BlinkDuration
	}
	if t.LipSyncCalibration <= 0 {
		t.LipSyncCalibration = d.LipSyncCalibration
	}
	if t.LipSyncExponent <= 0 {
		t.LipSyncExponent = d.LipSyncExponent
	}
	if t.SpeakingNod < 0 {
		t.SpeakingNod = d.SpeakingNod
	}
	if t.InteractionDuration <= 0 {
		t.InteractionDuration = d.InteractionDuration
	}

	e := &t.Effects
	if e.ParticleCount <= 0 {
		e.ParticleCount = d.Effects.ParticleCount
	}
	if e.BaseSpeed <= 0 {
		e.BaseSpeed = d.Effects.BaseSpeed
	}
	if e.MinSpeedScale <= 0 || e.MaxSpeedScale <= e.MinSpeedScale {
		e.MinSpeedScale, e.MaxSpeedScale = d.Effects.MinSpeedScale, d.Effects.MaxSpeedScale
	}
	if e.MinLifetime <= 0 || e.MaxLifetime <= e.MinLifetime {
		e.MinLifetime, e.MaxLifetime = d.Effects.MinLifetime, d.Effects.MaxLifetime
	}
	if e.Damping <= 0 || e.Damping > 1 {
		e.Damping = d.Effects.Damping
	}
	if e.Gravity < 0 {
		e.Gravity = d.Effects.Gravity
	}
	if e.ParticleSize <= 0 {
		e.ParticleSize = d.Effects.ParticleSize
	}

	return t
}
