package optix

import "testing"

// buildFannedSourceFilm wires a small fan of rays from a Cartesian grid
// source directly onto a film 1m downstream, for diagnostics tests that
// need more than the single on-axis ray.
func buildFannedSourceFilm(t *testing.T) (*System, *SurfaceData) {
	t.Helper()
	sys := NewSystem()
	src := NewCartesianGridSource("src")
	film := NewFilm("film", "Film<Plane>", PlaneShape{})
	sys.AddElement("src", src)
	sys.AddElement("film", film)
	if err := sys.Link("src", "film"); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := sys.SetParameter("src", "divX", 1e-3); err != nil {
		t.Fatalf("SetParameter(divX): %v", err)
	}
	if err := sys.SetParameter("src", "nXdiv", 3); err != nil {
		t.Fatalf("SetParameter(nXdiv): %v", err)
	}
	if err := sys.SetParameter("film", "distance", 1); err != nil {
		t.Fatalf("SetParameter(film,distance): %v", err)
	}
	if err := sys.AlignFromHere("src", 1e-6); err != nil {
		t.Fatalf("AlignFromHere: %v", err)
	}
	if err := sys.Radiate("src", 1e-6, 'S', nil); err != nil {
		t.Fatalf("Radiate: %v", err)
	}
	return sys, film.SurfaceData
}

func TestSpotDiagramAccountsForEveryImpact(t *testing.T) {
	sys, film := buildFannedSourceFilm(t)
	diag, err := sys.SpotDiagram("film", 0)
	if err != nil {
		t.Fatalf("SpotDiagram: %v", err)
	}
	if diag.Dim != 5 {
		t.Errorf("Dim = %d, want 5", diag.Dim)
	}
	if diag.Count+diag.Lost != len(film.Impacts) {
		t.Errorf("Count(%d)+Lost(%d) = %d, want %d", diag.Count, diag.Lost, diag.Count+diag.Lost, len(film.Impacts))
	}
}

func TestCausticAccountsForEveryImpact(t *testing.T) {
	sys, film := buildFannedSourceFilm(t)
	diag, err := sys.Caustic("src", "film")
	if err != nil {
		t.Fatalf("Caustic: %v", err)
	}
	if diag.Dim != 4 {
		t.Errorf("Dim = %d, want 4", diag.Dim)
	}
	if got := diag.Count + diag.Lost + diag.Dropped; got != len(film.Impacts) {
		t.Errorf("Count(%d)+Lost(%d)+Dropped(%d) = %d, want %d",
			diag.Count, diag.Lost, diag.Dropped, got, len(film.Impacts))
	}
}

// TestCausticDropsNearParallelRays relies on the fanned fixture
// recording the chief ray itself among the film impacts: its direction
// is exactly the chief's, so the caustic must count it as dropped (no
// closest-approach point) rather than lost, and still account for
// every impact.
func TestCausticDropsNearParallelRays(t *testing.T) {
	sys, film := buildFannedSourceFilm(t)
	diag, err := sys.Caustic("src", "film")
	if err != nil {
		t.Fatalf("Caustic: %v", err)
	}
	if diag.Dropped < 1 {
		t.Errorf("Dropped = %d, want >= 1 (the chief ray's own impact is parallel to itself)", diag.Dropped)
	}
	if diag.Lost != 0 {
		t.Errorf("Lost = %d, want 0 (every ray in this fixture stays alive)", diag.Lost)
	}
	if got := diag.Count + diag.Lost + diag.Dropped; got != len(film.Impacts) {
		t.Errorf("Count(%d)+Lost(%d)+Dropped(%d) = %d, want %d",
			diag.Count, diag.Lost, diag.Dropped, got, len(film.Impacts))
	}
}

func TestImpactDataRecordsPositionDirectionWavelength(t *testing.T) {
	sys, film := buildFannedSourceFilm(t)
	diag, err := sys.ImpactData("film")
	if err != nil {
		t.Fatalf("ImpactData: %v", err)
	}
	if diag.Dim != 7 {
		t.Errorf("Dim = %d, want 7", diag.Dim)
	}
	if diag.Count+diag.Lost != len(film.Impacts) {
		t.Errorf("Count(%d)+Lost(%d) = %d, want %d", diag.Count, diag.Lost, diag.Count+diag.Lost, len(film.Impacts))
	}
	for i := 0; i < diag.Count; i++ {
		lambda := diag.Data[i*diag.Dim+6]
		if lambda != 1e-6 {
			t.Fatalf("spot %d wavelength = %v, want 1e-6", i, lambda)
		}
	}
}

func TestCausticUnknownSourceErrors(t *testing.T) {
	sys, _ := buildFannedSourceFilm(t)
	if _, err := sys.Caustic("nope", "film"); err == nil {
		t.Error("Caustic with unknown source = nil error, want error")
	}
}

func TestWavefrontExpansionRejectsTooFewImpacts(t *testing.T) {
	sys := NewSystem()
	src := NewCartesianGridSource("src")
	film := NewFilm("film", "Film<Plane>", PlaneShape{})
	sys.AddElement("src", src)
	sys.AddElement("film", film)
	sys.Link("src", "film")
	sys.AlignFromHere("src", 1e-6)
	if err := sys.Radiate("src", 1e-6, 'S', nil); err != nil {
		t.Fatalf("Radiate: %v", err)
	}
	if _, err := sys.WavefrontExpansion("film", 0, 3, 3); err == nil {
		t.Error("WavefrontExpansion with a single impact = nil error, want error")
	}
}
