package optix

import (
	"math"
	"testing"
)

func TestDiffractConservesUnitNorm(t *testing.T) {
	normal := Vec3{0, 0, 1}
	direction := Vec3{0, 0.05, 1}.Unit()
	g := Vec3{0, 0.05, 0} // tangential grating vector, m^-1 * lambda already folded in for this unit test

	out, ok := Diffract(direction, normal, g, false)
	if !ok {
		t.Fatal("Diffract reported evanescent order for a small in-plane kick")
	}
	if math.Abs(out.Norm()-1) > 1e-12 {
		t.Errorf("|direction_out| = %v, want 1", out.Norm())
	}
}

func TestDiffractTangentialDifferenceMatchesGratingVector(t *testing.T) {
	normal := Vec3{0, 0, 1}
	direction := Vec3{0.01, -0.02, 1}.Unit()
	g := Vec3{0.05, -0.02, 0}

	out, ok := Diffract(direction, normal, g, false)
	if !ok {
		t.Fatal("Diffract reported evanescent order")
	}

	tangentIn := tangentProject(direction, normal)
	tangentOut := tangentProject(out, normal)
	diff := tangentOut.Sub(tangentIn)
	if math.Abs(diff.X-g.X) > 1e-9 || math.Abs(diff.Y-g.Y) > 1e-9 {
		t.Errorf("tangential difference = %v, want %v", diff, g)
	}
}

// TestHolographicGratingAlignmentScenario aligns a plane holographic
// grating (both construction points at 1m, elevations +/-0.1 rad,
// recording wavelength 413nm) at 25nm in order +1: the corrective
// angles stay within +/-pi/2 and the
// diffracted chief ray leaves at exactly the 2*theta deviation angle,
// i.e. along the local Z of the downstream film.
func TestHolographicGratingAlignmentScenario(t *testing.T) {
	sys := NewSystem()
	src := NewCartesianGridSource("src")
	if _, err := sys.AddElement("src", src); err != nil {
		t.Fatalf("AddElement(src): %v", err)
	}
	grt, err := sys.CreateElement("grt", "Grating<Holo,Plane>")
	if err != nil {
		t.Fatalf("CreateElement(grt): %v", err)
	}
	if _, err := sys.CreateElement("film", "Film<Plane>"); err != nil {
		t.Fatalf("CreateElement(film): %v", err)
	}
	if err := sys.Link("src", "grt"); err != nil {
		t.Fatalf("Link(src,grt): %v", err)
	}
	if err := sys.Link("grt", "film"); err != nil {
		t.Fatalf("Link(grt,film): %v", err)
	}

	const theta = 0.1
	for _, pv := range []struct {
		el, name string
		val      float64
	}{
		{"grt", "distance", 1}, {"grt", "theta", theta},
		{"grt", "recordingWavelength", 4.13e-7},
		{"grt", "inverseDist1", 1}, {"grt", "inverseDist2", 1},
		{"grt", "elevationAngle1", 0.1}, {"grt", "elevationAngle2", -0.1},
		{"film", "distance", 1},
	} {
		if err := sys.SetParameter(pv.el, pv.name, pv.val); err != nil {
			t.Fatalf("SetParameter(%s,%s): %v", pv.el, pv.name, err)
		}
	}

	const useWavelength = 2.5e-8
	if err := sys.AlignFromHere("src", useWavelength); err != nil {
		t.Fatalf("AlignFromHere: %v", err)
	}

	chi, omega, err := grt.solveGratingAngles(useWavelength, theta, 0)
	if err != nil {
		t.Fatalf("solveGratingAngles: %v", err)
	}
	if math.Abs(chi) >= math.Pi/2 || math.Abs(omega) >= math.Pi/2 {
		t.Errorf("chi = %v, omega = %v, want both within +/-pi/2", chi, omega)
	}

	if err := sys.Radiate("src", useWavelength, 'S', nil); err != nil {
		t.Fatalf("Radiate: %v", err)
	}
	film, _ := sys.Get("film")
	if len(film.Impacts) != 1 {
		t.Fatalf("len(film.Impacts) = %d, want 1", len(film.Impacts))
	}
	d := film.Impacts[0].Direction
	if math.Abs(d.X) > 1e-10 || math.Abs(d.Y) > 1e-10 || math.Abs(d.Z-1) > 1e-10 {
		t.Errorf("film-local diffracted chief direction = %v, want (0,0,1)", d)
	}
}

func TestDiffractEvanescentOrderRejected(t *testing.T) {
	normal := Vec3{0, 0, 1}
	direction := Vec3{0, 0, 1}
	g := Vec3{2, 0, 0} // far beyond unit tangential budget
	if _, ok := Diffract(direction, normal, g, true); ok {
		t.Error("Diffract accepted an evanescent order, want rejection")
	}
}
