package render

import (
	"image/color"

	"github.com/taigrr/showroom/pkg/models"
)

// Frame is an immutable snapshot of everything needed to draw one image. It
// owns copies of mutable state so it can be rendered off the event loop.
type Frame struct {
	Seq      uint64
	Camera   Camera
	Nodes    []*models.MeshNode
	Lighting Lighting
	Clear    color.RGBA
}

// Render draws f into the rasterizer's framebuffer.
func (r *Rasterizer) Render(f *Frame) {
	r.Resize()
	cam := f.Camera
	cam.SetAspect(float64(r.fb.Width) / float64(max(r.fb.Height, 1)))

	r.CullingStats = CullingStats{}
	r.DrawBackground(&cam, f.Lighting, f.Clear)
	r.ClearDepth()
	for _, n := range f.Nodes {
		r.DrawNode(&cam, n, f.Lighting)
	}
}
