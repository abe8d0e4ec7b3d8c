package render

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/taigrr/showroom/pkg/envmap"
	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/models"
)

func boxNode(t *testing.T, min, max math3d.Vec3) *models.MeshNode {
	t.Helper()
	asset, err := models.FromDocument(models.BoxDocument(min, max, 0, 0.5))
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	return asset.Nodes[0]
}

func solidEnv(c color.RGBA) *envmap.Texture {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	lin := envmap.SRGBToLinear(c.R)
	return &envmap.Texture{Path: "solid", Image: img, Average: [3]float64{lin, envmap.SRGBToLinear(c.G), envmap.SRGBToLinear(c.B)}}
}

func TestSetFovSkipsUnchanged(t *testing.T) {
	cam := NewCamera(math3d.V3(3, 3, 3), 75)
	cam.UpdateProjection()
	if cam.ProjectionBuilds != 1 {
		t.Fatalf("builds = %d, want 1", cam.ProjectionBuilds)
	}
	if cam.SetFov(75) {
		t.Error("SetFov(75) reported a change")
	}
	cam.UpdateProjection()
	if cam.ProjectionBuilds != 1 {
		t.Errorf("unchanged fov rebuilt projection: builds = %d", cam.ProjectionBuilds)
	}
	if !cam.SetFov(60) {
		t.Error("SetFov(60) reported no change")
	}
	cam.UpdateProjection()
	if cam.ProjectionBuilds != 2 {
		t.Errorf("builds = %d, want 2", cam.ProjectionBuilds)
	}
}

func TestWorldToScreenCentersTarget(t *testing.T) {
	cam := NewCamera(math3d.V3(0, 0, 5), 60)
	x, y, _, ok := cam.WorldToScreen(math3d.V3(0, 0, 0), 100, 50)
	if !ok {
		t.Fatal("target not visible")
	}
	if x != 50 || y != 25 {
		t.Errorf("screen = (%v, %v), want (50, 25)", x, y)
	}
	if _, _, _, ok := cam.WorldToScreen(math3d.V3(0, 0, 10), 100, 50); ok {
		t.Error("point behind camera reported visible")
	}
}

func TestDrawNodeCoversCenter(t *testing.T) {
	fb := NewFramebuffer(40, 40)
	r := NewRasterizer(fb)
	cam := NewCamera(math3d.V3(0, 0, 5), 60)
	bg := color.RGBA{1, 2, 3, 255}

	r.DrawBackground(cam, Lighting{}, bg)
	r.ClearDepth()
	if !r.DrawNode(cam, boxNode(t, math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1)), Lighting{Ambient: 1}) {
		t.Fatal("box in front of camera was culled")
	}
	if got := fb.GetPixel(20, 20); got == bg {
		t.Error("center pixel still background")
	}
	if got := fb.GetPixel(0, 0); got != bg {
		t.Errorf("corner pixel = %v, want background", got)
	}
}

func TestDrawNodeCullsBehindCamera(t *testing.T) {
	fb := NewFramebuffer(20, 20)
	r := NewRasterizer(fb)
	cam := NewCamera(math3d.V3(0, 0, 5), 60)
	r.ClearDepth()
	if r.DrawNode(cam, boxNode(t, math3d.V3(-1, -1, 10), math3d.V3(1, 1, 12)), Lighting{}) {
		t.Error("box behind camera was drawn")
	}
	if r.CullingStats.NodesCulled != 1 || r.CullingStats.NodesTested != 1 {
		t.Errorf("stats = %+v", r.CullingStats)
	}
}

func TestDepthKeepsNearest(t *testing.T) {
	fb := NewFramebuffer(30, 30)
	r := NewRasterizer(fb)
	cam := NewCamera(math3d.V3(0, 0, 5), 60)
	r.ClearDepth()

	near := boxNode(t, math3d.V3(-1, -1, 0), math3d.V3(1, 1, 1))
	far := boxNode(t, math3d.V3(-2, -2, -4), math3d.V3(2, 2, -3))
	near.Material.BaseColor = [4]float64{1, 0, 0, 1}
	far.Material.BaseColor = [4]float64{0, 0, 1, 1}

	r.DrawNode(cam, near, Lighting{Ambient: 1})
	r.DrawNode(cam, far, Lighting{Ambient: 1})
	c := fb.GetPixel(15, 15)
	if c.R <= c.B {
		t.Errorf("center = %v, want the nearer red box", c)
	}
}

func TestDrawBackgroundSamplesEnv(t *testing.T) {
	fb := NewFramebuffer(8, 8)
	r := NewRasterizer(fb)
	cam := NewCamera(math3d.V3(0, 0, 5), 60)
	sky := color.RGBA{10, 200, 30, 255}
	r.DrawBackground(cam, Lighting{Env: solidEnv(sky)}, ColorBlack)
	for _, p := range fb.Pixels {
		if p != sky {
			t.Fatalf("pixel = %v, want %v", p, sky)
		}
	}
}

func TestShadeMetalnessRemovesAmbient(t *testing.T) {
	m := models.DefaultMaterial()
	m.BaseColor = [4]float64{1, 1, 1, 1}
	p, n, eye := math3d.V3(0, 0, 0), math3d.V3(0, 0, 1), math3d.V3(0, 0, 5)

	m.Metalness = 1
	metal := Shade(p, n, eye, m, Lighting{Ambient: 2})
	metalNoAmbient := Shade(p, n, eye, m, Lighting{})
	if metal != metalNoAmbient {
		t.Error("ambient light should not affect a fully metallic surface")
	}

	m.Metalness = 0
	plastic := Shade(p, n, eye, m, Lighting{Ambient: 2})
	plasticNoAmbient := Shade(p, n, eye, m, Lighting{})
	if plastic[0] <= plasticNoAmbient[0] {
		t.Error("ambient light should brighten a dielectric surface")
	}
}

func TestEquirect(t *testing.T) {
	u, v := Equirect(math3d.V3(0, 1, 0))
	if v != 0 {
		t.Errorf("up maps to v=%v, want 0", v)
	}
	u, v = Equirect(math3d.V3(0, 0, -1))
	if u != 0.5 || v != 0.5 {
		t.Errorf("forward maps to (%v, %v), want (0.5, 0.5)", u, v)
	}
}

func TestSavePNGScales(t *testing.T) {
	fb := NewFramebuffer(4, 3)
	fb.Clear(ColorWhite)
	path := filepath.Join(t.TempDir(), "out.png")
	if err := fb.SavePNG(path, 2); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 6 {
		t.Errorf("bounds = %v, want 8x6", b)
	}
}

func TestFrustumRejectsEmptyBox(t *testing.T) {
	cam := NewCamera(math3d.V3(0, 0, 5), 60)
	f := NewFrustumFromMatrix(cam.ViewProjectionMatrix())
	if f.IntersectsBox(math3d.EmptyBox()) {
		t.Error("empty box intersects frustum")
	}
	if !f.IntersectsBox(math3d.Box3{Min: math3d.V3(-1, -1, -1), Max: math3d.V3(1, 1, 1)}) {
		t.Error("box at target does not intersect frustum")
	}
}
