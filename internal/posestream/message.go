package posestream

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/avatarcore/internal/avatar"
	"github.com/normanking/avatarcore/internal/avatar3d"
)

// Message types exchanged over the socket.
const (
	TypeHello = "hello"
	TypeFrame = "frame"
	TypeTap   = "tap"
	TypeRay   = "ray"
)

// HelloMessage is the first message every client receives.
type HelloMessage struct {
	Type     string   `json:"type"`
	Session  string   `json:"session"`
	Bones    []string `json:"bones"`
	Channels []string `json:"channels"`
}

// FrameMessage carries one smoothed pose. Bone offsets are XYZ Euler
// angles in radians.
type FrameMessage struct {
	Type        string                `json:"type"`
	Sequence    uint64                `json:"sequence"`
	Clock       float64               `json:"clock"`
	Emotion     string                `json:"emotion"`
	Idle        bool                  `json:"idle"`
	MouthOpen   float32               `json:"mouth_open"`
	Bones       map[string][3]float32 `json:"bones"`
	Expressions map[string]float32    `json:"expressions"`
	RootHeight  float32               `json:"root_height"`
	Effects     []EffectMessage       `json:"effects,omitempty"`
}

type EffectMessage struct {
	ID        int64             `json:"id"`
	Origin    [3]float32        `json:"origin"`
	Particles []ParticleMessage `json:"particles"`
}

// ParticleMessage omits velocity; renderers only draw.
type ParticleMessage struct {
	Position [3]float32 `json:"position"`
	Color    [3]float32 `json:"color"`
	Opacity  float32    `json:"opacity"`
	Scale    float32    `json:"scale"`
}

// InputMessage is sent by clients. Tap uses Point; ray uses Origin and
// Direction.
type InputMessage struct {
	Type      string     `json:"type"`
	Point     [3]float32 `json:"point"`
	Origin    [3]float32 `json:"origin"`
	Direction [3]float32 `json:"direction"`
}

func newHello(session string) HelloMessage {
	return HelloMessage{
		Type:     TypeHello,
		Session:  session,
		Bones:    avatar3d.BoneNames[:],
		Channels: avatar3d.ChannelNames[:],
	}
}

// NewFrameMessage flattens a snapshot into its wire form.
func NewFrameMessage(snap avatar.FrameSnapshot) FrameMessage {
	pose := snap.Frame.Pose
	msg := FrameMessage{
		Type:        TypeFrame,
		Sequence:    snap.Sequence,
		Clock:       snap.Frame.Clock,
		Emotion:     string(snap.Frame.Emotion),
		Idle:        snap.Frame.Idle,
		MouthOpen:   snap.Frame.MouthOpen,
		Bones:       make(map[string][3]float32, avatar3d.BoneCount),
		Expressions: make(map[string]float32, avatar3d.ChannelCount),
		RootHeight:  pose.RootHeight,
	}
	for b := avatar3d.Bone(0); b < avatar3d.BoneCount; b++ {
		msg.Bones[b.String()] = pose.Bones[b]
	}
	for ch := avatar3d.ExpressionChannel(0); ch < avatar3d.ChannelCount; ch++ {
		msg.Expressions[ch.String()] = pose.Expressions.Get(ch)
	}

	for _, e := range snap.Effects {
		em := EffectMessage{ID: e.ID, Origin: e.Origin, Particles: make([]ParticleMessage, 0, len(e.Particles))}
		for _, p := range e.Particles {
			if !p.Visible() {
				continue
			}
			var opacity float32
			if p.Initial > 0 {
				opacity = p.Remaining / p.Initial
			}
			em.Particles = append(em.Particles, ParticleMessage{
				Position: p.Position,
				Color:    p.Color,
				Opacity:  opacity,
				Scale:    p.Scale,
			})
		}
		msg.Effects = append(msg.Effects, em)
	}
	return msg
}

func vec(v [3]float32) mgl32.Vec3 {
	return mgl32.Vec3(v)
}
