// Package models loads GLB/glTF assets into a flat graph of mesh nodes whose
// materials can be patched in place.
package models

import (
	"github.com/taigrr/showroom/pkg/math3d"
)

// Asset is a loaded model. Nodes hold world-space transforms; materials are
// shared between nodes that reference the same glTF material.
type Asset struct {
	Source    string
	Nodes     []*MeshNode
	Materials []*Material
}

// MeshNode is one drawable primitive placed in the world.
type MeshNode struct {
	Name     string
	Geometry *Geometry
	World    math3d.Mat4
	Material *Material
}

// Geometry is an indexed triangle list in local space.
type Geometry struct {
	Positions []math3d.Vec3
	Normals   []math3d.Vec3
	Indices   []uint32
}

// Material is the PBR state the viewer can override. Version increments on
// every effective change so renderers know to rebuild derived state.
type Material struct {
	Name               string
	BaseColor          [4]float64
	Metalness          float64
	Roughness          float64
	ClearcoatRoughness float64
	Version            uint64
}

// DefaultMaterial is used for primitives without a material.
func DefaultMaterial() *Material {
	return &Material{
		Name:      "default",
		BaseColor: [4]float64{1, 1, 1, 1},
		Metalness: 1,
		Roughness: 1,
	}
}

// SetMetalness updates the factor and reports whether it changed.
func (m *Material) SetMetalness(v float64) bool {
	return m.set(&m.Metalness, v)
}

// SetRoughness updates the factor and reports whether it changed.
func (m *Material) SetRoughness(v float64) bool {
	return m.set(&m.Roughness, v)
}

// SetClearcoatRoughness updates the factor and reports whether it changed.
func (m *Material) SetClearcoatRoughness(v float64) bool {
	return m.set(&m.ClearcoatRoughness, v)
}

func (m *Material) set(field *float64, v float64) bool {
	if *field == v {
		return false
	}
	*field = v
	m.Version++
	return true
}

// Bounds returns the world-space bounding box of every node.
func (a *Asset) Bounds() math3d.Box3 {
	b := math3d.EmptyBox()
	for _, n := range a.Nodes {
		b = b.Union(n.Geometry.Bounds().Transform(n.World))
	}
	return b
}

// TriangleCount returns the number of triangles across all nodes.
func (a *Asset) TriangleCount() int {
	count := 0
	for _, n := range a.Nodes {
		count += len(n.Geometry.Indices) / 3
	}
	return count
}

// Walk calls fn for every mesh node in order.
func (a *Asset) Walk(fn func(*MeshNode)) {
	for _, n := range a.Nodes {
		fn(n)
	}
}

// Bounds returns the local-space bounding box.
func (g *Geometry) Bounds() math3d.Box3 {
	b := math3d.EmptyBox()
	for _, p := range g.Positions {
		b = b.ExpandByPoint(p)
	}
	return b
}

// CalculateSmoothNormals computes averaged vertex normals.
func (g *Geometry) CalculateSmoothNormals() {
	g.Normals = make([]math3d.Vec3, len(g.Positions))

	// Accumulate unnormalized face normals so larger faces weigh more.
	for i := 0; i+2 < len(g.Indices); i += 3 {
		a, b, c := g.Indices[i], g.Indices[i+1], g.Indices[i+2]
		v0, v1, v2 := g.Positions[a], g.Positions[b], g.Positions[c]
		n := v1.Sub(v0).Cross(v2.Sub(v0))
		g.Normals[a] = g.Normals[a].Add(n)
		g.Normals[b] = g.Normals[b].Add(n)
		g.Normals[c] = g.Normals[c].Add(n)
	}

	for i := range g.Normals {
		g.Normals[i] = g.Normals[i].Normalize()
	}
}
