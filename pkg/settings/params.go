package settings

import (
	"fmt"
	"net/url"
	"strconv"
)

// Mount is the bootstrap configuration of a rendering surface: which asset to
// show and the settings to show it with. It travels once, as a query string,
// before the message channel takes over.
type Mount struct {
	ModelURL string
	Settings Settings
}

// Query encodes the mount parameters. Target parameters are written only
// when the camera has an explicit target.
func (m Mount) Query() url.Values {
	s := m.Settings
	q := url.Values{}
	q.Set("model", m.ModelURL)
	q.Set("envMap", s.EnvMapOrDefault())
	q.Set("fov", formatFloat(s.Camera.Fov))
	q.Set("cameraX", formatFloat(s.Camera.Position[0]))
	q.Set("cameraY", formatFloat(s.Camera.Position[1]))
	q.Set("cameraZ", formatFloat(s.Camera.Position[2]))
	if t := s.Camera.Target; t != nil {
		q.Set("targetX", formatFloat(t[0]))
		q.Set("targetY", formatFloat(t[1]))
		q.Set("targetZ", formatFloat(t[2]))
	}
	q.Set("clearcoatRoughness", formatFloat(s.Material.ClearcoatRoughness))
	q.Set("metalness", formatFloat(s.Material.Metalness))
	q.Set("roughness", formatFloat(s.Material.Roughness))
	q.Set("ambientLight", strconv.FormatBool(s.Lighting.AmbientLight))
	q.Set("lightIntensity", formatFloat(s.Lighting.Intensity))
	return q
}

// ParseMount decodes mount parameters. Absent parameters take their default
// value; present but malformed ones are an error. The camera target is
// explicit only when at least one of targetX/Y/Z is present.
func ParseMount(q url.Values) (Mount, error) {
	d := Default()
	p := paramReader{q: q}

	s := Settings{
		Camera: Camera{
			Fov: p.float("fov", d.Camera.Fov),
			Position: Vec3{
				p.float("cameraX", d.Camera.Position[0]),
				p.float("cameraY", d.Camera.Position[1]),
				p.float("cameraZ", d.Camera.Position[2]),
			},
		},
		Material: Material{
			ClearcoatRoughness: p.float("clearcoatRoughness", d.Material.ClearcoatRoughness),
			Metalness:          p.float("metalness", d.Material.Metalness),
			Roughness:          p.float("roughness", d.Material.Roughness),
		},
		Lighting: Lighting{
			AmbientLight: p.bool("ambientLight", d.Lighting.AmbientLight),
			Intensity:    p.float("lightIntensity", d.Lighting.Intensity),
		},
		EnvMapPath: q.Get("envMap"),
	}
	if q.Has("targetX") || q.Has("targetY") || q.Has("targetZ") {
		s.Camera.Target = &Vec3{
			p.float("targetX", 0),
			p.float("targetY", 0),
			p.float("targetZ", 0),
		}
	}
	if s.EnvMapPath == "" {
		s.EnvMapPath = DefaultEnvMapPath
	}
	if p.err != nil {
		return Mount{}, p.err
	}

	return Mount{ModelURL: q.Get("model"), Settings: s.Normalize()}, nil
}

// paramReader keeps the first parse error so ParseMount can read every
// field without checking each one.
type paramReader struct {
	q   url.Values
	err error
}

func (p *paramReader) float(key string, def float64) float64 {
	if !p.q.Has(key) {
		return def
	}
	v, err := strconv.ParseFloat(p.q.Get(key), 64)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("parse %s: %w", key, err)
		}
		return def
	}
	return v
}

func (p *paramReader) bool(key string, def bool) bool {
	if !p.q.Has(key) {
		return def
	}
	v, err := strconv.ParseBool(p.q.Get(key))
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("parse %s: %w", key, err)
		}
		return def
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
