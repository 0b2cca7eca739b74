package avatar3d

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Bone is one of the humanoid joints animated by the core.
type Bone int

const (
	BoneHead Bone = iota
	BoneNeck
	BoneSpine
	BoneChest
	BoneLeftUpperArm
	BoneRightUpperArm
	BoneCount
)

var BoneNames = [BoneCount]string{
	"head",
	"neck",
	"spine",
	"chest",
	"leftUpperArm",
	"rightUpperArm",
}

func (b Bone) String() string {
	if b < 0 || b >= BoneCount {
		return "unknown"
	}
	return BoneNames[b]
}

// BoneFromName resolves a humanoid bone name, case-insensitively.
// Returns -1 when the name is not part of the vocabulary.
func BoneFromName(name string) Bone {
	for i, n := range BoneNames {
		if strings.EqualFold(n, name) {
			return Bone(i)
		}
	}
	return -1
}

// BoneOffsets holds a rotation offset per bone as Euler angles in radians:
// X is pitch, Y is yaw, Z is roll. Offsets are layered on the rest pose.
type BoneOffsets [BoneCount]mgl32.Vec3

func (o *BoneOffsets) Add(b Bone, delta mgl32.Vec3) {
	o[b] = o[b].Add(delta)
}

// Quat converts the Euler offset of bone b into a quaternion (XYZ order).
func (o *BoneOffsets) Quat(b Bone) mgl32.Quat {
	v := o[b]
	return mgl32.AnglesToQuat(v[0], v[1], v[2], mgl32.XYZ)
}

// PoseTargets is the output of the resolver for one frame.
type PoseTargets struct {
	Expressions ExpressionWeights
	Bones       BoneOffsets
	RootHeight  float32
}

// Pose is the smoothed result committed to the model.
type Pose struct {
	Expressions ExpressionWeights
	Bones       BoneOffsets
	RootHeight  float32
}
