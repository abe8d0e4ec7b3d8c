package settings

import (
	"encoding/json"
	"math"
	"testing"
)

func TestDefault(t *testing.T) {
	d := Default()
	if d.Camera.Fov != 75 {
		t.Errorf("fov = %v, want 75", d.Camera.Fov)
	}
	if d.Camera.Position != (Vec3{3, 3, 3}) {
		t.Errorf("position = %v", d.Camera.Position)
	}
	if d.Camera.Target == nil || *d.Camera.Target != (Vec3{}) {
		t.Errorf("target = %v, want origin", d.Camera.Target)
	}
	if d.Material != (Material{ClearcoatRoughness: 0, Metalness: 1, Roughness: 0}) {
		t.Errorf("material = %+v", d.Material)
	}
	if d.Lighting != (Lighting{AmbientLight: false, Intensity: 1}) {
		t.Errorf("lighting = %+v", d.Lighting)
	}
	if d.EnvMapPath != DefaultEnvMapPath {
		t.Errorf("env = %q", d.EnvMapPath)
	}
}

func TestDefaultReturnsFreshTarget(t *testing.T) {
	a := Default()
	a.Camera.Target[0] = 9
	if b := Default(); b.Camera.Target[0] != 0 {
		t.Fatal("Default shares target storage between calls")
	}
}

func TestClampFov(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
		ok   bool
	}{
		{75, 75, true},
		{10, MinFov, true},
		{500, MaxFov, true},
		{math.Inf(1), MaxFov, true},
		{math.NaN(), 0, false},
	}
	for _, tt := range tests {
		got, ok := ClampFov(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ClampFov(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalize(t *testing.T) {
	s := Default()
	s.Camera.Fov = math.NaN()
	s.Material = Material{ClearcoatRoughness: -1, Metalness: 2, Roughness: math.NaN()}
	s.Lighting.Intensity = 42

	n := s.Normalize()
	if n.Camera.Fov != 75 {
		t.Errorf("fov = %v, want default", n.Camera.Fov)
	}
	if n.Material != (Material{ClearcoatRoughness: 0, Metalness: 1, Roughness: 0}) {
		t.Errorf("material = %+v", n.Material)
	}
	if n.Lighting.Intensity != MaxIntensity {
		t.Errorf("intensity = %v", n.Lighting.Intensity)
	}
	if n.Camera.Target == s.Camera.Target {
		t.Error("Normalize must not share the target pointer")
	}
}

func TestWithLeavesReceiverUntouched(t *testing.T) {
	s := Default()
	next := s.WithMaterial(Material{Metalness: 0.5})
	if s.Material.Metalness != 1 {
		t.Error("WithMaterial mutated receiver")
	}
	if next.Material.Metalness != 0.5 {
		t.Error("WithMaterial did not apply")
	}
	if next.Camera != s.Camera {
		t.Error("WithMaterial changed camera")
	}
}

func TestPoseEqual(t *testing.T) {
	a := Camera{Position: Vec3{1, 2, 3}, Target: &Vec3{0, 1, 0}}
	b := Camera{Position: Vec3{1, 2, 3}, Target: &Vec3{0, 1, 0}}
	if !a.PoseEqual(b) {
		t.Error("equal poses with distinct pointers should compare equal")
	}
	b.Target = nil
	if a.PoseEqual(b) {
		t.Error("nil target should differ from explicit target")
	}
	a.Target = nil
	if !a.PoseEqual(b) {
		t.Error("two nil targets should compare equal")
	}
	b.Fov = 90
	if !a.PoseEqual(b) {
		t.Error("fov is not part of the pose")
	}
}

func TestJSONFieldNames(t *testing.T) {
	b, err := json.Marshal(Default())
	if err != nil {
		t.Fatal(err)
	}
	var raw struct {
		Camera   map[string]json.RawMessage `json:"camera"`
		Material map[string]json.RawMessage `json:"material"`
		Lighting map[string]json.RawMessage `json:"lighting"`
		EnvMap   string                     `json:"envMapPath"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"fov", "position", "target"} {
		if _, ok := raw.Camera[key]; !ok {
			t.Errorf("camera missing %q", key)
		}
	}
	for _, key := range []string{"clearcoatRoughness", "metalness", "roughness"} {
		if _, ok := raw.Material[key]; !ok {
			t.Errorf("material missing %q", key)
		}
	}
	for _, key := range []string{"ambientLight", "intensity"} {
		if _, ok := raw.Lighting[key]; !ok {
			t.Errorf("lighting missing %q", key)
		}
	}
	if raw.EnvMap != DefaultEnvMapPath {
		t.Errorf("envMapPath = %q", raw.EnvMap)
	}
}

func TestEnvMaps(t *testing.T) {
	e, ok := LookupEnvMap("cannon")
	if !ok || e.Path != "/images/cannon_1k.hdr" {
		t.Fatalf("LookupEnvMap(cannon) = %+v, %v", e, ok)
	}
	if _, ok := LookupEnvMap("/images/nope.hdr"); ok {
		t.Error("unknown env map found")
	}
	if got := NextEnvMap(DefaultEnvMapPath); got.Name != "spruit_sunrise" {
		t.Errorf("next after default = %s", got.Name)
	}
	if got := NextEnvMap("/images/cannon_1k.hdr"); got.Path != DefaultEnvMapPath {
		t.Errorf("cycle should wrap, got %s", got.Name)
	}
	if got := NextEnvMap("custom.hdr"); got.Path != DefaultEnvMapPath {
		t.Errorf("unknown path should restart, got %s", got.Name)
	}
}
