package avatar3d

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// Particle is one spark of an interaction burst.
type Particle struct {
	Position  mgl32.Vec3
	Velocity  mgl32.Vec3
	Color     mgl32.Vec3
	Remaining float32
	Initial   float32
	Scale     float32
}

func (p *Particle) Visible() bool {
	return p.Remaining > 0
}

// InteractionEffect is a self-expiring particle burst.
type InteractionEffect struct {
	ID        int64
	Origin    mgl32.Vec3
	Particles []Particle

	onComplete func(id int64)
	completed  bool
}

func (e *InteractionEffect) Done() bool {
	for i := range e.Particles {
		if e.Particles[i].Remaining > 0 {
			return false
		}
	}
	return true
}

func (e *InteractionEffect) advance(dt float32, cfg EffectTuning, size float32) {
	damping := float32(math.Pow(cfg.Damping, float64(dt)*60))
	gravity := float32(cfg.Gravity) * dt

	for i := range e.Particles {
		p := &e.Particles[i]
		if p.Remaining <= 0 {
			continue
		}
		p.Velocity = p.Velocity.Mul(damping)
		p.Velocity[1] -= gravity
		p.Position = p.Position.Add(p.Velocity.Mul(dt))

		p.Remaining -= dt
		if p.Remaining < 0 {
			p.Remaining = 0
		}
		p.Scale = size * p.Remaining / p.Initial
	}

	if !e.completed && e.Done() {
		e.completed = true
		if e.onComplete != nil {
			e.onComplete(e.ID)
		}
	}
}

func (e *InteractionEffect) clone() InteractionEffect {
	out := InteractionEffect{ID: e.ID, Origin: e.Origin}
	out.Particles = make([]Particle, len(e.Particles))
	copy(out.Particles, e.Particles)
	return out
}

// EffectSystem exclusively owns the active interaction effects. Effects
// leave the collection only through their own completion signal.
type EffectSystem struct {
	cfg    EffectTuning
	rng    *rand.Rand
	nextID int64

	effects  []*InteractionEffect
	finished []int64

	onComplete func(id int64)
}

// NewEffectSystem returns an empty system that draws particles from rng.
func NewEffectSystem(cfg EffectTuning, rng *rand.Rand) *EffectSystem {
	return &EffectSystem{
		cfg:    cfg,
		rng:    rng,
		nextID: 1,
	}
}

// SetOnComplete registers a hook fired when an effect is pruned.
func (s *EffectSystem) SetOnComplete(fn func(id int64)) {
	s.onComplete = fn
}

func (s *EffectSystem) SetTuning(cfg EffectTuning) {
	s.cfg = cfg
}

// Spawn creates a burst at origin and returns its id.
func (s *EffectSystem) Spawn(origin mgl32.Vec3) int64 {
	id := s.nextID
	s.nextID++

	effect := &InteractionEffect{
		ID:         id,
		Origin:     origin,
		Particles:  make([]Particle, s.cfg.ParticleCount),
		onComplete: s.markFinished,
	}

	for i := range effect.Particles {
		dir := s.randomUnitVector()
		speed := s.cfg.BaseSpeed * s.uniform(s.cfg.MinSpeedScale, s.cfg.MaxSpeedScale)
		life := float32(s.uniform(s.cfg.MinLifetime, s.cfg.MaxLifetime))

		effect.Particles[i] = Particle{
			Position:  origin,
			Velocity:  dir.Mul(float32(speed)),
			Color:     hueToRGB(s.rng.Float64()),
			Remaining: life,
			Initial:   life,
			Scale:     float32(s.cfg.ParticleSize),
		}
	}

	s.effects = append(s.effects, effect)
	return id
}

// Advance integrates every active effect by dt seconds and prunes the ones
// that signalled completion. It returns the ids pruned this step.
func (s *EffectSystem) Advance(dt float64) []int64 {
	if dt < 0 {
		dt = 0
	}
	size := float32(s.cfg.ParticleSize)
	for _, e := range s.effects {
		e.advance(float32(dt), s.cfg, size)
	}

	if len(s.finished) == 0 {
		return nil
	}

	pruned := s.finished
	s.finished = nil

	kept := s.effects[:0]
	for _, e := range s.effects {
		if !e.completed {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(s.effects); i++ {
		s.effects[i] = nil
	}
	s.effects = kept

	if s.onComplete != nil {
		for _, id := range pruned {
			s.onComplete(id)
		}
	}
	return pruned
}

func (s *EffectSystem) markFinished(id int64) {
	s.finished = append(s.finished, id)
}

// Active returns copies of the live effects.
func (s *EffectSystem) Active() []InteractionEffect {
	out := make([]InteractionEffect, 0, len(s.effects))
	for _, e := range s.effects {
		out = append(out, e.clone())
	}
	return out
}

// Len reports the number of live effects.
func (s *EffectSystem) Len() int {
	return len(s.effects)
}

func (s *EffectSystem) uniform(min, max float64) float64 {
	return min + s.rng.Float64()*(max-min)
}

// randomUnitVector samples the unit sphere uniformly.
func (s *EffectSystem) randomUnitVector() mgl32.Vec3 {
	z := 2*s.rng.Float64() - 1
	phi := 2 * math.Pi * s.rng.Float64()
	r := math.Sqrt(1 - z*z)
	return mgl32.Vec3{float32(r * math.Cos(phi)), float32(r * math.Sin(phi)), float32(z)}
}

// hueToRGB converts a hue in [0,1) at fixed saturation and value.
func hueToRGB(h float64) mgl32.Vec3 {
	const s, v = 0.7, 1.0
	h = math.Mod(h, 1) * 6
	i := math.Floor(h)
	f := h - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return mgl32.Vec3{float32(r), float32(g), float32(b)}
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}
