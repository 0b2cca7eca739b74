package avatar3d_test

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/avatarcore/internal/avatar3d"
	"github.com/normanking/avatarcore/internal/model/memmodel"
)

func TestCommitSkipsMissingParts(t *testing.T) {
	m := memmodel.New(memmodel.Options{
		MissingBones:    []avatar3d.Bone{avatar3d.BoneChest},
		MissingChannels: []avatar3d.ExpressionChannel{avatar3d.ChannelOu},
	})
	c := avatar3d.NewCommitter(m)

	var pose avatar3d.Pose
	pose.Expressions.Set(avatar3d.ChannelHappy, 0.6)
	pose.Expressions.Set(avatar3d.ChannelOu, 0.3)
	pose.Bones[avatar3d.BoneHead] = mgl32.Vec3{0.1, 0, 0}

	skipped := c.Commit(pose)
	require.Len(t, skipped, 2)

	var bones, channels int
	for _, err := range skipped {
		switch {
		case errors.Is(err, avatar3d.ErrMissingBone):
			bones++
			assert.True(t, err.IsBone())
			assert.Equal(t, "chest", err.Name)
		case errors.Is(err, avatar3d.ErrMissingChannel):
			channels++
			assert.False(t, err.IsBone())
			assert.Equal(t, "model has no such expression: ou", err.Error())
		}
	}
	assert.Equal(t, 1, bones)
	assert.Equal(t, 1, channels)

	assert.InDelta(t, 0.6, m.Weights()["happy"], 1e-6)
	_, hasOu := m.Weights()["ou"]
	assert.False(t, hasOu)

	want := mgl32.AnglesToQuat(0.1, 0, 0, mgl32.XYZ)
	got := m.Rotations()["head"]
	assert.True(t, got.ApproxEqualThreshold(want, 1e-5), "head rotation %v", got)
}

func TestCommitComposesRestRotation(t *testing.T) {
	rest := mgl32.QuatRotate(0.5, mgl32.Vec3{0, 1, 0})
	m := memmodel.New(memmodel.Options{
		RestRotations: map[avatar3d.Bone]mgl32.Quat{avatar3d.BoneNeck: rest},
	})
	c := avatar3d.NewCommitter(m)

	var pose avatar3d.Pose
	pose.Bones[avatar3d.BoneNeck] = mgl32.Vec3{0, 0.2, 0}
	require.Empty(t, c.Commit(pose))
	require.Empty(t, c.Commit(pose))

	want := mgl32.QuatRotate(0.7, mgl32.Vec3{0, 1, 0})
	got := m.Rotations()["neck"]
	assert.True(t, got.ApproxEqualThreshold(want, 1e-5), "neck rotation %v", got)

	node, ok := m.Bone(avatar3d.BoneNeck)
	require.True(t, ok)
	assert.Equal(t, rest, node.RestRotation())
}

func TestCommitRootHeightDoesNotAccumulate(t *testing.T) {
	m := memmodel.New(memmodel.Options{RootPosition: mgl32.Vec3{0, 1, 0}})
	c := avatar3d.NewCommitter(m)

	pose := avatar3d.Pose{RootHeight: 0.05}
	for i := 0; i < 10; i++ {
		c.Commit(pose)
	}
	assert.InDelta(t, 1.05, m.Root().Position()[1], 1e-6)
}

func TestCommitterPhysics(t *testing.T) {
	m := memmodel.New(memmodel.Options{})
	c := avatar3d.NewCommitter(m)

	c.StepPhysics(0.016)
	c.StepPhysics(0.016)
	c.ResetPhysics()

	updates, resets, elapsed := m.Springs().Stats()
	assert.Equal(t, 2, updates)
	assert.Equal(t, 1, resets)
	assert.Zero(t, elapsed)

	bare := avatar3d.NewCommitter(memmodel.New(memmodel.Options{NoSpringBones: true}))
	assert.NotPanics(t, func() {
		bare.StepPhysics(0.016)
		bare.ResetPhysics()
	})
}
