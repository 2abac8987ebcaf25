package optix

import (
	"math"
	"testing"
)

func TestReflectIdempotent(t *testing.T) {
	normal := Vec3{0, 0, 1}
	dirs := []Vec3{{0.3, -0.2, 1}, {1, 1, -1}, {0, 0, 1}}
	for _, d := range dirs {
		d = d.Unit()
		once := Reflect(d, normal)
		twice := Reflect(once, normal)
		if math.Abs(twice.X-d.X) > 1e-12 || math.Abs(twice.Y-d.Y) > 1e-12 || math.Abs(twice.Z-d.Z) > 1e-12 {
			t.Errorf("reflect(reflect(%v)) = %v, want %v", d, twice, d)
		}
	}
}

func TestShapeInterceptMovesForward(t *testing.T) {
	shapes := []Shape{
		PlaneShape{},
		SphereShape{R: 2},
		CylinderShape{R: 1.5},
		ConeShape{Alpha: 0.2, Apex: 0},
	}
	for _, sh := range shapes {
		r := NewRay(Vec3{0.01, -0.02, -5}, Vec3{0, 0, 1}, 0)
		pos, normal, err := sh.Intercept(&r)
		if err != nil {
			t.Fatalf("%T: Intercept error: %v", sh, err)
		}
		if math.Abs(normal.Norm()-1) > 1e-10 {
			t.Errorf("%T: |normal| = %v, want 1", sh, normal.Norm())
		}
		if got := r.Direction.Dot(pos.Sub(Vec3{0.01, -0.02, -5})); got < -1e-9 {
			t.Errorf("%T: ray moved backward, direction.(intercept-origin) = %v", sh, got)
		}
	}
}

func TestSphereShapeNormalPointsFromCentre(t *testing.T) {
	sh := SphereShape{R: 3}
	r := NewRay(Vec3{0, 0, -1}, Vec3{0, 0, 1}, 0)
	pos, normal, err := sh.Intercept(&r)
	if err != nil {
		t.Fatalf("Intercept error: %v", err)
	}
	want := pos.Sub(Vec3{0, 0, 3}).Unit()
	if math.Abs(normal.X-want.X) > 1e-10 || math.Abs(normal.Y-want.Y) > 1e-10 || math.Abs(normal.Z-want.Z) > 1e-10 {
		t.Errorf("normal = %v, want %v", normal, want)
	}
}
