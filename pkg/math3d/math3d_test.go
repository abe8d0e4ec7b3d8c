package math3d

import (
	"math"
	"testing"
)

func approxVec(a, b Vec3) bool {
	const eps = 1e-9
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps && math.Abs(a.Z-b.Z) < eps
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	eye := V3(3, 3, 3)
	view := LookAt(eye, V3(0, 0, 0), Up())

	if got := view.MulPoint(eye); !approxVec(got, Vec3{}) {
		t.Errorf("eye in view space = %v, want origin", got)
	}

	// The target lies straight down -Z.
	got := view.MulPoint(V3(0, 0, 0))
	if math.Abs(got.X) > 1e-9 || math.Abs(got.Y) > 1e-9 || got.Z >= 0 {
		t.Errorf("target in view space = %v, want on -Z axis", got)
	}
}

func TestComposeMatchesTranslateForIdentityRotation(t *testing.T) {
	m := Compose(V3(1, 2, 3), [4]float64{0, 0, 0, 1}, V3(1, 1, 1))
	if m != Translate(V3(1, 2, 3)) {
		t.Errorf("Compose = %v, want pure translation", m)
	}
}

func TestComposeRotatesAboutY(t *testing.T) {
	// 90 degrees about +Y maps +X to -Z.
	s := math.Sqrt2 / 2
	m := Compose(Vec3{}, [4]float64{0, s, 0, s}, V3(1, 1, 1))
	if got := m.MulDir(V3(1, 0, 0)); !approxVec(got, V3(0, 0, -1)) {
		t.Errorf("rotated +X = %v, want (0,0,-1)", got)
	}
}

func TestBoxAccumulation(t *testing.T) {
	b := EmptyBox()
	if !b.IsEmpty() {
		t.Fatal("EmptyBox should be empty")
	}

	b = b.ExpandByPoint(V3(-1, -2, -3)).ExpandByPoint(V3(1, 2, 3))
	if b.IsEmpty() {
		t.Fatal("box with points should not be empty")
	}
	if c := b.Center(); c != (Vec3{}) {
		t.Errorf("center = %v, want origin", c)
	}
	if s := b.Size(); s != V3(2, 4, 6) {
		t.Errorf("size = %v, want (2,4,6)", s)
	}
	if m := b.Size().MaxComponent(); m != 6 {
		t.Errorf("max component = %v, want 6", m)
	}
}

func TestBoxUnionWithEmpty(t *testing.T) {
	b := Box3{Min: V3(0, 0, 0), Max: V3(1, 1, 1)}
	if got := EmptyBox().Union(b); got != b {
		t.Errorf("empty ∪ b = %v, want %v", got, b)
	}
	if got := b.Union(EmptyBox()); got != b {
		t.Errorf("b ∪ empty = %v, want %v", got, b)
	}
}

func TestBoxTransform(t *testing.T) {
	b := Box3{Min: V3(-1, -1, -1), Max: V3(1, 1, 1)}
	got := b.Transform(Compose(V3(10, 0, 0), [4]float64{0, 0, 0, 1}, V3(2, 2, 2)))
	want := Box3{Min: V3(8, -2, -2), Max: V3(12, 2, 2)}
	if !approxVec(got.Min, want.Min) || !approxVec(got.Max, want.Max) {
		t.Errorf("transformed box = %v, want %v", got, want)
	}
}

func TestPerspectiveProjectsCenterToOrigin(t *testing.T) {
	p := Perspective(math.Pi/2, 1, 0.1, 100)
	clip := p.Project(V3(0, 0, -5))
	if clip.W != 5 {
		t.Errorf("w = %v, want 5", clip.W)
	}
	if clip.X != 0 || clip.Y != 0 {
		t.Errorf("center projected to (%v, %v), want (0, 0)", clip.X, clip.Y)
	}
}
