package render

import (
	"github.com/taigrr/showroom/pkg/math3d"
)

// Plane represents a plane in 3D space using the equation: Ax + By + Cz + D = 0
// where (A, B, C) is the normal and D is the distance from origin.
type Plane struct {
	Normal math3d.Vec3
	D      float64
}

func (p Plane) normalized() Plane {
	l := p.Normal.Len()
	if l == 0 {
		return p
	}
	return Plane{Normal: p.Normal.Scale(1 / l), D: p.D / l}
}

// Frustum represents the 6 planes of a view frustum, normals pointing inward.
type Frustum struct {
	Planes [6]Plane
}

// NewFrustumFromMatrix extracts frustum planes from a view-projection matrix
// using the Gribb/Hartmann method.
func NewFrustumFromMatrix(m math3d.Mat4) Frustum {
	// For column-major m, row i element j is m[i+j*4].
	row := func(i int) (float64, float64, float64, float64) {
		return m[i], m[i+4], m[i+8], m[i+12]
	}
	x3, y3, z3, w3 := row(3)

	var f Frustum
	for i := range 3 {
		x, y, z, w := row(i)
		f.Planes[i*2] = Plane{Normal: math3d.V3(x3+x, y3+y, z3+z), D: w3 + w}.normalized()
		f.Planes[i*2+1] = Plane{Normal: math3d.V3(x3-x, y3-y, z3-z), D: w3 - w}.normalized()
	}
	return f
}

// IntersectsBox reports whether any part of b may lie inside the frustum.
// It tests the box corner furthest along each plane normal.
func (f Frustum) IntersectsBox(b math3d.Box3) bool {
	if b.IsEmpty() {
		return false
	}
	for _, p := range f.Planes {
		v := b.Min
		if p.Normal.X >= 0 {
			v.X = b.Max.X
		}
		if p.Normal.Y >= 0 {
			v.Y = b.Max.Y
		}
		if p.Normal.Z >= 0 {
			v.Z = b.Max.Z
		}
		if p.Normal.Dot(v)+p.D < 0 {
			return false
		}
	}
	return true
}

// CullingStats tracks frustum culling per frame.
type CullingStats struct {
	NodesTested int
	NodesCulled int
	NodesDrawn  int
}
