// Package gltfmodel exposes a glTF or VRM document as an animatable avatar
// model. Bone rotations, morph target weights and the root translation are
// written straight into the document, which can then be saved.
package gltfmodel

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"

	"github.com/normanking/avatarcore/internal/avatar3d"
)

// Mapping sources reported by Model.Source.
const (
	SourceVRM1  = "VRMC_vrm"
	SourceVRM0  = "VRM"
	SourceNames = "names"
)

type Model struct {
	mu     sync.RWMutex
	doc    *gltf.Document
	source string

	bones [avatar3d.BoneCount]*boneNode
	exprs [avatar3d.ChannelCount]*expression
	root  *rootNode
}

// Open loads a .gltf, .glb or .vrm file.
func Open(path string) (*Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	m, err := FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FromDocument wraps an already decoded document. Humanoid bones and
// expressions come from the VRM 1.0 extension, then the VRM 0.x extension,
// then node names and mesh targetNames.
func FromDocument(doc *gltf.Document) (*Model, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("document has no nodes")
	}

	m := &Model{doc: doc}

	var binding humanoidBinding
	var err error
	switch {
	case hasExtension(doc, SourceVRM1):
		m.source = SourceVRM1
		binding, err = bindVRM1(doc)
	case hasExtension(doc, SourceVRM0):
		m.source = SourceVRM0
		binding, err = bindVRM0(doc)
	default:
		m.source = SourceNames
		binding = bindByName(doc)
	}
	if err != nil {
		return nil, err
	}

	for b, idx := range binding.bones {
		if idx < 0 || idx >= len(doc.Nodes) {
			continue
		}
		node := doc.Nodes[idx]
		m.bones[b] = &boneNode{model: m, node: node, rest: nodeRotation(node)}
	}
	for ch, binds := range binding.expressions {
		if len(binds) > 0 {
			m.exprs[ch] = &expression{model: m, binds: binds}
		}
	}

	if idx := rootIndex(doc); idx >= 0 {
		m.root = &rootNode{model: m, node: doc.Nodes[idx]}
	}
	return m, nil
}

// Source names where the humanoid mapping came from.
func (m *Model) Source() string {
	return m.source
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

// SpringBones is nil: a document carries spring parameters but no solver.
func (m *Model) SpringBones() avatar3d.SpringBones {
	return nil
}

func (m *Model) Root() avatar3d.RootTransform {
	if m.root == nil {
		return nil
	}
	return m.root
}

// Missing lists the bones and channels the document could not provide.
func (m *Model) Missing() (bones []avatar3d.Bone, channels []avatar3d.ExpressionChannel) {
	for b, n := range m.bones {
		if n == nil {
			bones = append(bones, avatar3d.Bone(b))
		}
	}
	for ch, e := range m.exprs {
		if e == nil {
			channels = append(channels, avatar3d.ExpressionChannel(ch))
		}
	}
	return bones, channels
}

// Save writes the posed document. A .glb or .vrm extension selects the
// binary container.
func (m *Model) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".glb", ".vrm":
		err = gltf.SaveBinary(m.doc, path)
	default:
		err = gltf.Save(m.doc, path)
	}
	if err != nil {
		return fmt.Errorf("save gltf: %w", err)
	}
	return nil
}

// Document returns the underlying document. Callers must not mutate it
// while frames are being committed.
func (m *Model) Document() *gltf.Document {
	return m.doc
}

type boneNode struct {
	model *Model
	node  *gltf.Node
	rest  mgl32.Quat
}

func (b *boneNode) RestRotation() mgl32.Quat {
	return b.rest
}

func (b *boneNode) LocalRotation() mgl32.Quat {
	b.model.mu.RLock()
	defer b.model.mu.RUnlock()
	return nodeRotation(b.node)
}

func (b *boneNode) SetLocalRotation(q mgl32.Quat) {
	b.model.mu.Lock()
	b.node.Rotation = [4]float64{float64(q.V[0]), float64(q.V[1]), float64(q.V[2]), float64(q.W)}
	b.model.mu.Unlock()
}

// nodeRotation reads a node's rotation, treating the zero value as identity.
func nodeRotation(n *gltf.Node) mgl32.Quat {
	r := n.Rotation
	if r == [4]float64{} {
		return mgl32.QuatIdent()
	}
	return mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
}

type rootNode struct {
	model *Model
	node  *gltf.Node
}

func (r *rootNode) Position() mgl32.Vec3 {
	r.model.mu.RLock()
	defer r.model.mu.RUnlock()
	t := r.node.Translation
	return mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])}
}

func (r *rootNode) SetPosition(p mgl32.Vec3) {
	r.model.mu.Lock()
	r.node.Translation = [3]float64{float64(p[0]), float64(p[1]), float64(p[2])}
	r.model.mu.Unlock()
}

// rootIndex picks the first root node of the default scene.
func rootIndex(doc *gltf.Document) int {
	scene := 0
	if doc.Scene != nil {
		scene = *doc.Scene
	}
	if scene < len(doc.Scenes) && len(doc.Scenes[scene].Nodes) > 0 {
		return doc.Scenes[scene].Nodes[0]
	}
	return 0
}
