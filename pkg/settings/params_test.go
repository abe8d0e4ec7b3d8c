package settings

import (
	"net/url"
	"testing"
)

func TestMountRoundTrip(t *testing.T) {
	s := Default()
	s.Camera.Fov = 42.5
	s.Camera.Position = Vec3{0.1, -2, 1e-3}
	s.Camera.Target = &Vec3{0, 0.25, 0}
	s.Material = Material{ClearcoatRoughness: 0.3, Metalness: 0, Roughness: 0.7}
	s.Lighting = Lighting{AmbientLight: true, Intensity: 2.5}
	s.EnvMapPath = "/images/cannon_1k.hdr"
	m := Mount{ModelURL: "https://cdn.example.com/chair.glb", Settings: s}

	got, err := ParseMount(m.Query())
	if err != nil {
		t.Fatal(err)
	}
	if got.ModelURL != m.ModelURL {
		t.Errorf("model = %q", got.ModelURL)
	}
	if got.Settings.Camera.Fov != 42.5 || got.Settings.Camera.Position != s.Camera.Position {
		t.Errorf("camera = %+v", got.Settings.Camera)
	}
	if got.Settings.Camera.Target == nil || *got.Settings.Camera.Target != *s.Camera.Target {
		t.Errorf("target = %v", got.Settings.Camera.Target)
	}
	if got.Settings.Material != s.Material || got.Settings.Lighting != s.Lighting {
		t.Errorf("got %+v", got.Settings)
	}
	if got.Settings.EnvMapPath != s.EnvMapPath {
		t.Errorf("env = %q", got.Settings.EnvMapPath)
	}
}

func TestParseMountDefaults(t *testing.T) {
	m, err := ParseMount(url.Values{"model": {"a.glb"}})
	if err != nil {
		t.Fatal(err)
	}
	d := Default()
	if m.Settings.Camera.Fov != d.Camera.Fov || m.Settings.Camera.Position != d.Camera.Position {
		t.Errorf("camera = %+v", m.Settings.Camera)
	}
	if m.Settings.Camera.Target != nil {
		t.Error("absent target params must leave target unset for auto-framing")
	}
	if m.Settings.EnvMapPath != DefaultEnvMapPath {
		t.Errorf("env = %q", m.Settings.EnvMapPath)
	}
}

func TestParseMountHonorsExplicitZero(t *testing.T) {
	q := url.Values{
		"metalness":      {"0"},
		"lightIntensity": {"0"},
		"cameraX":        {"0"},
	}
	m, err := ParseMount(q)
	if err != nil {
		t.Fatal(err)
	}
	if m.Settings.Material.Metalness != 0 {
		t.Errorf("metalness = %v, want 0", m.Settings.Material.Metalness)
	}
	if m.Settings.Lighting.Intensity != 0 {
		t.Errorf("intensity = %v, want 0", m.Settings.Lighting.Intensity)
	}
	if m.Settings.Camera.Position[0] != 0 {
		t.Errorf("cameraX = %v, want 0", m.Settings.Camera.Position[0])
	}
}

func TestParseMountPartialTarget(t *testing.T) {
	m, err := ParseMount(url.Values{"targetY": {"1.5"}})
	if err != nil {
		t.Fatal(err)
	}
	if m.Settings.Camera.Target == nil || *m.Settings.Camera.Target != (Vec3{0, 1.5, 0}) {
		t.Errorf("target = %v", m.Settings.Camera.Target)
	}
}

func TestParseMountErrors(t *testing.T) {
	for _, q := range []url.Values{
		{"fov": {"wide"}},
		{"ambientLight": {"maybe"}},
		{"targetZ": {""}},
	} {
		if _, err := ParseMount(q); err == nil {
			t.Errorf("ParseMount(%v) succeeded", q)
		}
	}
}

func TestParseMountClamps(t *testing.T) {
	m, err := ParseMount(url.Values{"fov": {"5"}, "roughness": {"3"}})
	if err != nil {
		t.Fatal(err)
	}
	if m.Settings.Camera.Fov != MinFov {
		t.Errorf("fov = %v", m.Settings.Camera.Fov)
	}
	if m.Settings.Material.Roughness != 1 {
		t.Errorf("roughness = %v", m.Settings.Material.Roughness)
	}
}
