package gltfmodel

import "github.com/qmuntal/gltf"

// morphBind drives one morph target of one mesh.
type morphBind struct {
	mesh   int
	index  int
	weight float64
}

type expression struct {
	model  *Model
	binds  []morphBind
	weight float32
}

func (e *expression) Weight() float32 {
	e.model.mu.RLock()
	defer e.model.mu.RUnlock()
	return e.weight
}

// SetWeight records the expression weight and recomputes every morph
// target it touches. Overlapping expressions add up, capped at 1.
func (e *expression) SetWeight(w float32) {
	m := e.model
	m.mu.Lock()
	defer m.mu.Unlock()

	e.weight = w
	for _, b := range e.binds {
		m.refreshMorph(b.mesh, b.index)
	}
}

// refreshMorph must be called with m.mu held.
func (m *Model) refreshMorph(mesh, index int) {
	if mesh < 0 || mesh >= len(m.doc.Meshes) || index < 0 {
		return
	}
	gm := m.doc.Meshes[mesh]
	ensureWeights(gm, index+1)

	var sum float64
	for _, e := range m.exprs {
		if e == nil {
			continue
		}
		for _, b := range e.binds {
			if b.mesh == mesh && b.index == index {
				sum += float64(e.weight) * b.weight
			}
		}
	}
	if sum > 1 {
		sum = 1
	}
	gm.Weights[index] = sum
}

// ensureWeights grows mesh.Weights to cover every morph target.
func ensureWeights(mesh *gltf.Mesh, n int) {
	if len(mesh.Weights) > 0 && len(mesh.Weights) >= n {
		return
	}
	if c := morphCount(mesh); c > n {
		n = c
	}
	if len(mesh.Weights) >= n {
		return
	}
	grown := make([]float64, n)
	copy(grown, mesh.Weights)
	mesh.Weights = grown
}

func morphCount(mesh *gltf.Mesh) int {
	n := len(mesh.Weights)
	for _, p := range mesh.Primitives {
		if p != nil && len(p.Targets) > n {
			n = len(p.Targets)
		}
	}
	if names := targetNames(mesh); len(names) > n {
		n = len(names)
	}
	return n
}
