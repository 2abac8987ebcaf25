package optix

import (
	"math"
	"testing"
)

func approxVec(a, b Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol && math.Abs(a.Z-b.Z) < tol
}

func approxMat(a, b Mat3, tol float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(a[i][j]-b[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

func TestSetupTransformsAreMutualInverses(t *testing.T) {
	e := NewElement("m1", "Mirror<Plane>", KindMirror, false)
	e.Shape = PlaneShape{}
	e.Params.Set("distance", 1.2)
	e.Params.Set("theta", 0.3)
	e.Params.Set("phi", 0.7)
	e.Params.Set("psi", -0.2)

	if err := e.SetupTransforms(1e-6, upstreamExitFrame{}); err != nil {
		t.Fatalf("SetupTransforms: %v", err)
	}

	roundTrip := e.SurfaceDirect.Compose(e.SurfaceInverse)
	if !approxMat(roundTrip.Rotation, Identity3, 1e-12) {
		t.Errorf("surface_direct.surface_inverse rotation = %v, want identity", roundTrip.Rotation)
	}
	if !approxVec(roundTrip.Translation, Vec3{}, 1e-12) {
		t.Errorf("surface_direct.surface_inverse translation = %v, want zero", roundTrip.Translation)
	}

	frameRoundTrip := e.FrameDirect.Mul(e.FrameInverse)
	if !approxMat(frameRoundTrip, Identity3, 1e-12) {
		t.Errorf("frame_direct.frame_inverse = %v, want identity", frameRoundTrip)
	}
}

func TestSetupTransformsFailsForUnsatisfiableGratingOrder(t *testing.T) {
	e := NewElement("g1", "Grating<Poly1D,Plane>", KindGrating, false)
	e.Shape = PlaneShape{}
	e.Pattern = Polynomial1DPattern{Degree: 0, Central: 1e9}
	e.Params.Define("order_align", NewScalarParameter(1, -100, 100, UnitNone, GroupGrating, 0))
	e.Params.Set("theta", 0.1)

	if err := e.SetupTransforms(5e-7, upstreamExitFrame{}); err == nil {
		t.Error("SetupTransforms with an unsatisfiable grating order = nil error, want error")
	}
}
