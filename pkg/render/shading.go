package render

import (
	"image/color"
	"math"

	"github.com/taigrr/showroom/pkg/envmap"
	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/models"
)

// Lighting is everything a frame is shaded with besides materials.
type Lighting struct {
	// Env provides both background and image-based lighting. Nil means none
	// has loaded yet.
	Env *envmap.Texture
	// Ambient is the ambient light intensity, zero when no ambient light
	// exists.
	Ambient float64
}

// fallbackIrradiance keeps unlit frames from going fully black.
const fallbackIrradiance = 0.15

// dielectricF0 is the reflectance of non-metals at normal incidence.
const dielectricF0 = 0.04

// Shade returns the linear color of a surface point seen from eye.
func Shade(p, n, eye math3d.Vec3, m *models.Material, l Lighting) [3]float64 {
	v := eye.Sub(p).Normalize()
	if n.Dot(v) < 0 {
		n = n.Negate()
	}
	r := n.Scale(2 * n.Dot(v)).Sub(v)

	irr := [3]float64{fallbackIrradiance, fallbackIrradiance, fallbackIrradiance}
	refl := irr
	if l.Env != nil {
		irr = l.Env.Average
		refl = sampleLinear(l.Env, r)
	}

	var out [3]float64
	for i := range 3 {
		base := m.BaseColor[i]
		blurred := lerp(refl[i], irr[i], m.Roughness)
		coat := dielectricF0 * lerp(refl[i], irr[i], m.ClearcoatRoughness)
		diffuse := base * (1 - m.Metalness)
		f0 := lerp(dielectricF0, base, m.Metalness)
		out[i] = diffuse*(irr[i]+l.Ambient) + f0*blurred + coat
	}
	return out
}

// Equirect maps a direction to equirectangular texture coordinates.
func Equirect(d math3d.Vec3) (u, v float64) {
	d = d.Normalize()
	u = 0.5 + math.Atan2(d.X, -d.Z)/(2*math.Pi)
	v = 0.5 - math.Asin(math.Max(-1, math.Min(1, d.Y)))/math.Pi
	return u, v
}

func sampleLinear(t *envmap.Texture, d math3d.Vec3) [3]float64 {
	c := t.Sample(Equirect(d))
	return [3]float64{envmap.SRGBToLinear(c.R), envmap.SRGBToLinear(c.G), envmap.SRGBToLinear(c.B)}
}

func encode(c [3]float64) color.RGBA {
	return color.RGBA{
		R: envmap.LinearToSRGB(c[0]),
		G: envmap.LinearToSRGB(c[1]),
		B: envmap.LinearToSRGB(c[2]),
		A: 255,
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
