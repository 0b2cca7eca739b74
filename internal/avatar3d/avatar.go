package avatar3d

import "github.com/go-gl/mathgl/mgl32"

// BoneNode is a mutable joint of the loaded model.
type BoneNode interface {
	// RestRotation is the joint's rest pose. The core never changes it.
	RestRotation() mgl32.Quat
	LocalRotation() mgl32.Quat
	SetLocalRotation(q mgl32.Quat)
}

// ExpressionControl is one weighted expression of the loaded model.
type ExpressionControl interface {
	Weight() float32
	SetWeight(w float32)
}

// SpringBones is the optional secondary-physics capability of a model.
type SpringBones interface {
	Update(dt float32)
	Reset()
}

// RootTransform is the model's root node position.
type RootTransform interface {
	Position() mgl32.Vec3
	SetPosition(p mgl32.Vec3)
}

// Model is the render-bound avatar as seen by the animation core.
type Model interface {
	Bone(b Bone) (BoneNode, bool)
	Expression(ch ExpressionChannel) (ExpressionControl, bool)
	// SpringBones returns nil when the model has no secondary physics.
	SpringBones() SpringBones
	Root() RootTransform
}

// MissingPartError reports a bone or expression the model does not have.
// It unwraps to ErrMissingBone or ErrMissingChannel.
type MissingPartError struct {
	Kind error
	Name string
}

func (e *MissingPartError) Error() string {
	return e.Kind.Error() + ": " + e.Name
}

func (e *MissingPartError) Unwrap() error {
	return e.Kind
}

// IsBone reports whether the missing part is a bone.
func (e *MissingPartError) IsBone() bool {
	return e.Kind == ErrMissingBone
}

// Committer writes poses into a model. It remembers the root's rest
// position so height offsets do not accumulate across frames.
type Committer struct {
	model    Model
	rootSet  bool
	rootRest mgl32.Vec3
}

func NewCommitter(model Model) *Committer {
	return &Committer{model: model}
}

// Commit applies every bone and channel of the pose that the model
// supports. Missing ones are skipped and reported; the rest still apply.
func (c *Committer) Commit(p Pose) []*MissingPartError {
	var skipped []*MissingPartError

	for b := Bone(0); b < BoneCount; b++ {
		node, ok := c.model.Bone(b)
		if !ok || node == nil {
			skipped = append(skipped, &MissingPartError{Kind: ErrMissingBone, Name: b.String()})
			continue
		}
		node.SetLocalRotation(node.RestRotation().Mul(p.Bones.Quat(b)).Normalize())
	}

	for ch := ExpressionChannel(0); ch < ChannelCount; ch++ {
		ctl, ok := c.model.Expression(ch)
		if !ok || ctl == nil {
			skipped = append(skipped, &MissingPartError{Kind: ErrMissingChannel, Name: ch.String()})
			continue
		}
		ctl.SetWeight(clamp(p.Expressions[ch], 0, 1))
	}

	if root := c.model.Root(); root != nil {
		if !c.rootSet {
			c.rootRest = root.Position()
			c.rootSet = true
		}
		root.SetPosition(c.rootRest.Add(mgl32.Vec3{0, p.RootHeight, 0}))
	}

	return skipped
}

// StepPhysics advances the model's spring bones, if any.
func (c *Committer) StepPhysics(dt float32) {
	if sb := c.model.SpringBones(); sb != nil {
		sb.Update(dt)
	}
}

// ResetPhysics resets the model's spring bones, if any.
func (c *Committer) ResetPhysics() {
	if sb := c.model.SpringBones(); sb != nil {
		sb.Reset()
	}
}
