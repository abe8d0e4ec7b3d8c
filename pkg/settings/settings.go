// Package settings defines the canonical description of a viewer's camera,
// material, lighting and environment state.
//
// A Settings value is a snapshot: it is never mutated in place. Edits build
// a new value with one category replaced, and only serialized copies cross
// the boundary between the control panel and the rendering surface.
package settings

import "math"

// Value ranges accepted by the viewer.
const (
	MinFov       = 30.0
	MaxFov       = 120.0
	MaxIntensity = 5.0
)

// Vec3 is an [x, y, z] triple. It encodes as a three-element JSON array.
type Vec3 [3]float64

// Camera describes the viewpoint. A nil Target means the caller did not pin
// one down and the surface may auto-frame the asset.
type Camera struct {
	Fov      float64 `json:"fov"`
	Position Vec3    `json:"position"`
	Target   *Vec3   `json:"target,omitempty"`
}

// TargetOrDefault returns the target, or the origin when none is set.
func (c Camera) TargetOrDefault() Vec3 {
	if c.Target == nil {
		return Vec3{}
	}
	return *c.Target
}

// PoseEqual reports whether position and target match by value.
func (c Camera) PoseEqual(o Camera) bool {
	if c.Position != o.Position {
		return false
	}
	if (c.Target == nil) != (o.Target == nil) {
		return false
	}
	return c.Target == nil || *c.Target == *o.Target
}

// Material holds the PBR overrides applied uniformly to every mesh.
type Material struct {
	ClearcoatRoughness float64 `json:"clearcoatRoughness"`
	Metalness          float64 `json:"metalness"`
	Roughness          float64 `json:"roughness"`
}

// Lighting controls the optional ambient light. Intensity is kept while
// AmbientLight is false so re-enabling restores it.
type Lighting struct {
	AmbientLight bool    `json:"ambientLight"`
	Intensity    float64 `json:"intensity"`
}

// Settings is one complete snapshot.
type Settings struct {
	Camera     Camera   `json:"camera"`
	Material   Material `json:"material"`
	Lighting   Lighting `json:"lighting"`
	EnvMapPath string   `json:"envMapPath,omitempty"`
	Name       string   `json:"name,omitempty"`
}

// Default returns the settings a new model starts with.
func Default() Settings {
	return Settings{
		Camera: Camera{
			Fov:      75,
			Position: Vec3{3, 3, 3},
			Target:   &Vec3{0, 0, 0},
		},
		Material: Material{
			ClearcoatRoughness: 0,
			Metalness:          1,
			Roughness:          0,
		},
		Lighting: Lighting{
			AmbientLight: false,
			Intensity:    1,
		},
		EnvMapPath: DefaultEnvMapPath,
	}
}

// EnvMapOrDefault returns the environment path, falling back to the
// canonical asset.
func (s Settings) EnvMapOrDefault() string {
	if s.EnvMapPath == "" {
		return DefaultEnvMapPath
	}
	return s.EnvMapPath
}

// WithCamera returns a copy of s with the camera replaced.
func (s Settings) WithCamera(c Camera) Settings {
	s.Camera = c
	return s
}

// WithMaterial returns a copy of s with the material replaced.
func (s Settings) WithMaterial(m Material) Settings {
	s.Material = m
	return s
}

// WithLighting returns a copy of s with the lighting replaced.
func (s Settings) WithLighting(l Lighting) Settings {
	s.Lighting = l
	return s
}

// WithEnvMap returns a copy of s with the environment path replaced.
func (s Settings) WithEnvMap(path string) Settings {
	s.EnvMapPath = path
	return s
}

// Clone returns a copy that shares no pointers with s.
func (s Settings) Clone() Settings {
	if s.Camera.Target != nil {
		t := *s.Camera.Target
		s.Camera.Target = &t
	}
	return s
}

// Normalize clamps every field into its documented range. NaN values fall
// back to the defaults.
func (s Settings) Normalize() Settings {
	d := Default()
	s = s.Clone()
	if fov, ok := ClampFov(s.Camera.Fov); ok {
		s.Camera.Fov = fov
	} else {
		s.Camera.Fov = d.Camera.Fov
	}
	s.Material = s.Material.Normalize()
	s.Lighting.Intensity = clamp(s.Lighting.Intensity, 0, MaxIntensity, d.Lighting.Intensity)
	return s
}

// Normalize clamps every factor into [0, 1].
func (m Material) Normalize() Material {
	d := Default().Material
	return Material{
		ClearcoatRoughness: clamp(m.ClearcoatRoughness, 0, 1, d.ClearcoatRoughness),
		Metalness:          clamp(m.Metalness, 0, 1, d.Metalness),
		Roughness:          clamp(m.Roughness, 0, 1, d.Roughness),
	}
}

// ClampFov clamps fov into [MinFov, MaxFov]. It reports false for NaN,
// which has no meaningful clamp.
func ClampFov(fov float64) (float64, bool) {
	if math.IsNaN(fov) {
		return 0, false
	}
	return math.Max(MinFov, math.Min(MaxFov, fov)), true
}

func clamp(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return math.Max(lo, math.Min(hi, v))
}
