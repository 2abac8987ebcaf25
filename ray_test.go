package optix

import (
	"math"
	"testing"
)

func TestRayUnitNormInvariant(t *testing.T) {
	cases := []Vec3{
		{1, 2, 3},
		{0, 0, 1},
		{-4, 0.5, 9},
	}
	for _, dir := range cases {
		r := NewRay(Vec3{}, dir, 0)
		if got := r.Direction.Norm(); math.Abs(got-1) > 1e-12 {
			t.Errorf("NewRay(%v): |direction| = %v, want 1", dir, got)
		}
	}
}

func TestRayPositionAtZero(t *testing.T) {
	r := NewRay(Vec3{1, 2, 3}, Vec3{0, 0, 1}, 5)
	r.Origin = r.PositionAt(0)
	r.Distance = 0
	got := r.PositionAt(0)
	if got != r.Origin {
		t.Errorf("position_at(0) = %v, want %v", got, r.Origin)
	}
}

func TestRayRebase(t *testing.T) {
	r := NewRay(Vec3{0, 0, 0}, Vec3{0, 0, 1}, 0)
	r.Distance = 3
	want := r.PositionAt(0)
	r.Rebase()
	if r.Origin != want {
		t.Errorf("Rebase origin = %v, want %v", r.Origin, want)
	}
	if r.Distance != 0 {
		t.Errorf("Rebase distance = %v, want 0", r.Distance)
	}
}

func TestApplyAffineRenormalises(t *testing.T) {
	r := NewRay(Vec3{}, Vec3{1, 0, 0}, 0)
	t2 := Affine{Rotation: Rz(math.Pi / 3).Mul(Ry(0.7))}
	r.ApplyAffine(t2)
	if math.Abs(r.Direction.Norm()-1) > 1e-12 {
		t.Errorf("|direction| after ApplyAffine = %v, want 1", r.Direction.Norm())
	}
}
