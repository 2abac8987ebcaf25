package optix

import (
	"math"
	"testing"
)

// TestToroidInterceptNearVertex: a ray close to, but not on, the
// vertex should intercept near (0, y0, 0) with a normal close to
// (0,0,1).
func TestToroidInterceptNearVertex(t *testing.T) {
	toroid := ToroidShape{R: 80, Rmin: 0.2}
	r := NewRay(Vec3{0, -1e-3, -1}, Vec3{0, 0, 1}, 0)

	pos, normal, err := toroid.Intercept(&r)
	if err != nil {
		t.Fatalf("Intercept: %v", err)
	}
	if math.Abs(pos.X) > 1e-6 || math.Abs(pos.Y-(-1e-3)) > 1e-6 || math.Abs(pos.Z) > 1e-6 {
		t.Errorf("intercept = %v, want ~(0,-1e-3,0)", pos)
	}
	if math.Abs(normal.X) > 1e-6 || math.Abs(normal.Y) > 1e-6 || math.Abs(normal.Z-1) > 1e-6 {
		t.Errorf("normal = %v, want ~(0,0,1)", normal)
	}
}

func TestToroidInterceptAtVertexIsExact(t *testing.T) {
	toroid := ToroidShape{R: 80, Rmin: 0.2}
	r := NewRay(Vec3{0, 0, -1}, Vec3{0, 0, 1}, 0)

	pos, normal, err := toroid.Intercept(&r)
	if err != nil {
		t.Fatalf("Intercept: %v", err)
	}
	if math.Abs(pos.X) > 1e-9 || math.Abs(pos.Y) > 1e-9 || math.Abs(pos.Z) > 1e-9 {
		t.Errorf("intercept = %v, want ~(0,0,0)", pos)
	}
	if math.Abs(normal.Norm()-1) > 1e-9 {
		t.Errorf("|normal| = %v, want 1", normal.Norm())
	}
}

// TestToroidInterceptOffAxisPicksNearestRoot sends a ray through the
// minor-radius tube well off the meridional axis, where the implicit
// quartic (quarticCoeffs/quarticRealRoots) has more than one real root
// ahead of the ray. The tie-break is the
// smallest positive parameter among the candidates that also satisfy
// the unsquared implicit equation; this checks Intercept returns the
// near-side crossing of the tube rather than the far one, and that the
// chosen point actually lies on the surface.
func TestToroidInterceptOffAxisPicksNearestRoot(t *testing.T) {
	toroid := ToroidShape{R: 80, Rmin: 5}
	// A ray travelling in +Z, offset in X onto the torus tube, starting
	// well behind the surface so both tube crossings are ahead of it.
	r := NewRay(Vec3{20, 0, -50}, Vec3{0, 0, 1}, 0)

	pos, normal, err := toroid.Intercept(&r)
	if err != nil {
		t.Fatalf("Intercept: %v", err)
	}
	if r.Distance <= 0 {
		t.Fatalf("Distance = %v, want > 0 (ahead of the ray)", r.Distance)
	}
	if math.Abs(toroid.implicitF(pos)) > 1e-6 {
		t.Errorf("intercept %v does not satisfy the implicit surface: f=%v", pos, toroid.implicitF(pos))
	}
	if math.Abs(normal.Norm()-1) > 1e-9 {
		t.Errorf("|normal| = %v, want 1", normal.Norm())
	}

	// The far crossing of the same tube lies strictly behind the near
	// one along this ray; confirm the chosen root is the smaller of the
	// two by re-deriving both roots directly.
	a4, a3, a2, a1, a0 := toroid.quarticCoeffs(&r)
	seeds := quarticRealRoots(a3/a4, a2/a4, a1/a4, a0/a4)
	var positive []float64
	for _, s := range seeds {
		if tp, ok := toroid.polishRoot(&r, s); ok && tp > 1e-9 {
			p := r.Origin.Add(r.Direction.Scale(tp))
			if math.Abs(toroid.implicitF(p)) < 1e-6 {
				positive = append(positive, tp)
			}
		}
	}
	if len(positive) < 2 {
		t.Fatalf("expected at least 2 valid positive roots off-axis, got %d (%v)", len(positive), positive)
	}
	min := positive[0]
	for _, v := range positive[1:] {
		if v < min {
			min = v
		}
	}
	if math.Abs(r.Distance-min) > 1e-6 {
		t.Errorf("Intercept chose t=%v, want the smallest positive root %v", r.Distance, min)
	}
}

// TestToroidInterceptMissLosesRay sends a ray that passes entirely
// outside the torus's tube radius, so the implicit quartic has no real
// root that maps back to the surface; Intercept must report the ray
// lost rather than returning a spurious intersection.
func TestToroidInterceptMissLosesRay(t *testing.T) {
	toroid := ToroidShape{R: 80, Rmin: 0.2}
	r := NewRay(Vec3{0, 50, -1}, Vec3{0, 0, 1}, 0)

	_, _, err := toroid.Intercept(&r)
	if err == nil {
		t.Fatal("Intercept = nil error, want a lost-ray error for a ray that misses the tube entirely")
	}
}
