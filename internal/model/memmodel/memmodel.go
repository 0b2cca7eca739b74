// Package memmodel is an in-memory avatar model. It backs headless runs,
// snapshot exports without a source asset, and tests.
package memmodel

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/normanking/avatarcore/internal/avatar3d"
)

// Options selects which capabilities the model exposes.
type Options struct {
	MissingBones    []avatar3d.Bone
	MissingChannels []avatar3d.ExpressionChannel
	NoSpringBones   bool
	RestRotations   map[avatar3d.Bone]mgl32.Quat
	RootPosition    mgl32.Vec3
}

type Model struct {
	bones   [avatar3d.BoneCount]*Node
	exprs   [avatar3d.ChannelCount]*Expression
	springs *Springs
	root    *Root
}

func New(opts Options) *Model {
	m := &Model{root: &Root{pos: opts.RootPosition}}

	for b := avatar3d.Bone(0); b < avatar3d.BoneCount; b++ {
		rest := mgl32.QuatIdent()
		if q, ok := opts.RestRotations[b]; ok {
			rest = q
		}
		m.bones[b] = &Node{rest: rest, local: rest}
	}
	for _, b := range opts.MissingBones {
		if b >= 0 && b < avatar3d.BoneCount {
			m.bones[b] = nil
		}
	}

	for ch := avatar3d.ExpressionChannel(0); ch < avatar3d.ChannelCount; ch++ {
		m.exprs[ch] = &Expression{}
	}
	for _, ch := range opts.MissingChannels {
		if ch >= 0 && ch < avatar3d.ChannelCount {
			m.exprs[ch] = nil
		}
	}

	if !opts.NoSpringBones {
		m.springs = &Springs{}
	}
	return m
}

func (m *Model) Bone(b avatar3d.Bone) (avatar3d.BoneNode, bool) {
	if b < 0 || b >= avatar3d.BoneCount || m.bones[b] == nil {
		return nil, false
	}
	return m.bones[b], true
}

func (m *Model) Expression(ch avatar3d.ExpressionChannel) (avatar3d.ExpressionControl, bool) {
	if ch < 0 || ch >= avatar3d.ChannelCount || m.exprs[ch] == nil {
		return nil, false
	}
	return m.exprs[ch], true
}

// SpringBones returns a nil interface, not a typed nil, when disabled.
func (m *Model) SpringBones() avatar3d.SpringBones {
	if m.springs == nil {
		return nil
	}
	return m.springs
}

func (m *Model) Root() avatar3d.RootTransform {
	return m.root
}

// Springs reports the spring-bone probe, or nil.
func (m *Model) Springs() *Springs {
	return m.springs
}

// Weights returns the current weight of every present channel.
func (m *Model) Weights() map[string]float32 {
	out := make(map[string]float32, avatar3d.ChannelCount)
	for ch, e := range m.exprs {
		if e != nil {
			out[avatar3d.ExpressionChannel(ch).String()] = e.Weight()
		}
	}
	return out
}

// Rotations returns the current local rotation of every present bone.
func (m *Model) Rotations() map[string]mgl32.Quat {
	out := make(map[string]mgl32.Quat, avatar3d.BoneCount)
	for b, n := range m.bones {
		if n != nil {
			out[avatar3d.Bone(b).String()] = n.LocalRotation()
		}
	}
	return out
}

type Node struct {
	mu    sync.RWMutex
	rest  mgl32.Quat
	local mgl32.Quat
}

func (n *Node) RestRotation() mgl32.Quat {
	return n.rest
}

func (n *Node) LocalRotation() mgl32.Quat {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.local
}

func (n *Node) SetLocalRotation(q mgl32.Quat) {
	n.mu.Lock()
	n.local = q
	n.mu.Unlock()
}

type Expression struct {
	mu     sync.RWMutex
	weight float32
}

func (e *Expression) Weight() float32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weight
}

func (e *Expression) SetWeight(w float32) {
	e.mu.Lock()
	e.weight = w
	e.mu.Unlock()
}

// Springs counts physics steps instead of simulating them.
type Springs struct {
	mu      sync.Mutex
	updates int
	resets  int
	elapsed float32
}

func (s *Springs) Update(dt float32) {
	s.mu.Lock()
	s.updates++
	s.elapsed += dt
	s.mu.Unlock()
}

func (s *Springs) Reset() {
	s.mu.Lock()
	s.resets++
	s.elapsed = 0
	s.mu.Unlock()
}

// Stats returns update count, reset count and simulated time since reset.
func (s *Springs) Stats() (updates, resets int, elapsed float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates, s.resets, s.elapsed
}

type Root struct {
	mu  sync.RWMutex
	pos mgl32.Vec3
}

func (r *Root) Position() mgl32.Vec3 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pos
}

func (r *Root) SetPosition(p mgl32.Vec3) {
	r.mu.Lock()
	r.pos = p
	r.mu.Unlock()
}
