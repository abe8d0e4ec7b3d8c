package render

import (
	"image/color"
	"math"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/models"
)

// Rasterizer draws mesh nodes into a framebuffer with a depth buffer.
// Triangles are drawn double-sided with Gouraud shading.
type Rasterizer struct {
	fb           *Framebuffer
	zbuffer      []float64
	CullingStats CullingStats
}

// NewRasterizer creates a rasterizer for fb.
func NewRasterizer(fb *Framebuffer) *Rasterizer {
	r := &Rasterizer{fb: fb}
	r.Resize()
	return r
}

// Framebuffer returns the target framebuffer.
func (r *Rasterizer) Framebuffer() *Framebuffer { return r.fb }

// Resize resizes the depth buffer to match the framebuffer.
func (r *Rasterizer) Resize() {
	if n := r.fb.Width * r.fb.Height; len(r.zbuffer) != n {
		r.zbuffer = make([]float64, n)
	}
}

// ClearDepth clears the Z-buffer (call before each frame).
func (r *Rasterizer) ClearDepth() {
	// Use copy-doubling for faster clearing
	n := len(r.zbuffer)
	if n == 0 {
		return
	}
	r.zbuffer[0] = math.MaxFloat64
	for i := 1; i < n; i *= 2 {
		copy(r.zbuffer[i:], r.zbuffer[:i])
	}
}

// DrawBackground fills the framebuffer with the environment as seen through
// cam, or with fallback when env is nil.
func (r *Rasterizer) DrawBackground(cam *Camera, l Lighting, fallback color.RGBA) {
	if l.Env == nil {
		r.fb.Clear(fallback)
		return
	}
	w, h := r.fb.Width, r.fb.Height
	forward, right, up := cam.Basis()
	tanHalf := math.Tan(cam.FovDeg * math.Pi / 360)
	aspect := float64(w) / float64(max(h, 1))

	for y := range h {
		ny := 1 - (float64(y)+0.5)/float64(h)*2
		for x := range w {
			nx := (float64(x)+0.5)/float64(w)*2 - 1
			d := forward.
				Add(right.Scale(nx * tanHalf * aspect)).
				Add(up.Scale(ny * tanHalf))
			r.fb.Pixels[y*w+x] = l.Env.Sample(Equirect(d))
		}
	}
}

// screenVertex holds a vertex transformed to screen space.
type screenVertex struct {
	X, Y  float64
	Z     float64
	W     float64
	Color [3]float64
}

// DrawNode shades and rasterizes one mesh node. It reports false when the
// node was frustum culled.
func (r *Rasterizer) DrawNode(cam *Camera, node *models.MeshNode, l Lighting) bool {
	viewProj := cam.ViewProjectionMatrix()
	r.CullingStats.NodesTested++
	bounds := node.Geometry.Bounds().Transform(node.World)
	if !NewFrustumFromMatrix(viewProj).IntersectsBox(bounds) {
		r.CullingStats.NodesCulled++
		return false
	}
	r.CullingStats.NodesDrawn++

	g := node.Geometry
	verts := make([]screenVertex, len(g.Positions))
	width, height := float64(r.fb.Width), float64(r.fb.Height)
	for i, p := range g.Positions {
		wp := node.World.MulPoint(p)
		var n math3d.Vec3
		if i < len(g.Normals) {
			n = node.World.MulDir(g.Normals[i]).Normalize()
		}
		clip := viewProj.Project(wp)
		sv := screenVertex{W: clip.W, Color: Shade(wp, n, cam.Position, node.Material, l)}
		if clip.W > 0 {
			sv.X = (clip.X/clip.W + 1) * 0.5 * width
			sv.Y = (1 - clip.Y/clip.W) * 0.5 * height
			sv.Z = clip.Z / clip.W
		}
		verts[i] = sv
	}

	for i := 0; i+2 < len(g.Indices); i += 3 {
		r.drawTriangle(verts[g.Indices[i]], verts[g.Indices[i+1]], verts[g.Indices[i+2]])
	}
	return true
}

// edge evaluates the edge function of (a, b) at p: twice the signed area of
// the triangle a, b, p.
func edge(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func (r *Rasterizer) drawTriangle(v0, v1, v2 screenVertex) {
	// No near-plane clipping; triangles crossing the camera plane are dropped.
	if v0.W <= 0 || v1.W <= 0 || v2.W <= 0 {
		return
	}
	area := edge(v0.X, v0.Y, v1.X, v1.Y, v2.X, v2.Y)
	if area == 0 {
		return
	}
	if area < 0 {
		v1, v2 = v2, v1
		area = -area
	}

	minX := int(math.Max(0, math.Floor(min(v0.X, v1.X, v2.X))))
	maxX := int(math.Min(float64(r.fb.Width-1), math.Ceil(max(v0.X, v1.X, v2.X))))
	minY := int(math.Max(0, math.Floor(min(v0.Y, v1.Y, v2.Y))))
	maxY := int(math.Min(float64(r.fb.Height-1), math.Ceil(max(v0.Y, v1.Y, v2.Y))))

	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5
			w0 := edge(v1.X, v1.Y, v2.X, v2.Y, px, py)
			w1 := edge(v2.X, v2.Y, v0.X, v0.Y, px, py)
			w2 := edge(v0.X, v0.Y, v1.X, v1.Y, px, py)
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			b0, b1, b2 := w0/area, w1/area, w2/area

			z := b0*v0.Z + b1*v1.Z + b2*v2.Z
			idx := y*r.fb.Width + x
			if z >= r.zbuffer[idx] {
				continue
			}
			r.zbuffer[idx] = z

			var c [3]float64
			for i := range 3 {
				c[i] = b0*v0.Color[i] + b1*v1.Color[i] + b2*v2.Color[i]
			}
			r.fb.Pixels[idx] = encode(c)
		}
	}
}
