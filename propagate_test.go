package optix

import (
	"math"
	mrand "math/rand"
	"testing"
)

// buildPointSourceMirrorFilm wires a point source through a 45-degree
// plane mirror to a film at 1m.
func buildPointSourceMirrorFilm(t *testing.T) (*System, *SurfaceData) {
	t.Helper()
	sys := NewSystem()
	src := NewCartesianGridSource("src")
	mirror := NewMirror("mirror", "Mirror<Plane>", PlaneShape{})
	film := NewFilm("film", "Film<Plane>", PlaneShape{})

	if _, err := sys.AddElement("src", src); err != nil {
		t.Fatalf("AddElement(src): %v", err)
	}
	if _, err := sys.AddElement("mirror", mirror); err != nil {
		t.Fatalf("AddElement(mirror): %v", err)
	}
	if _, err := sys.AddElement("film", film); err != nil {
		t.Fatalf("AddElement(film): %v", err)
	}
	if err := sys.Link("src", "mirror"); err != nil {
		t.Fatalf("Link(src,mirror): %v", err)
	}
	if err := sys.Link("mirror", "film"); err != nil {
		t.Fatalf("Link(mirror,film): %v", err)
	}
	if err := sys.SetParameter("mirror", "distance", 1); err != nil {
		t.Fatalf("SetParameter(mirror,distance): %v", err)
	}
	if err := sys.SetParameter("mirror", "theta", math.Pi/4); err != nil {
		t.Fatalf("SetParameter(mirror,theta): %v", err)
	}
	if err := sys.SetParameter("film", "distance", 1); err != nil {
		t.Fatalf("SetParameter(film,distance): %v", err)
	}
	if err := sys.AlignFromHere("src", 1e-6); err != nil {
		t.Fatalf("AlignFromHere: %v", err)
	}
	return sys, film.SurfaceData
}

func TestPointSourceMirrorFilmScenario(t *testing.T) {
	sys, film := buildPointSourceMirrorFilm(t)
	if err := sys.Radiate("src", 1e-6, 'S', nil); err != nil {
		t.Fatalf("Radiate: %v", err)
	}
	if len(film.Impacts) != 1 {
		t.Fatalf("len(film.Impacts) = %d, want 1", len(film.Impacts))
	}
	r := film.Impacts[0]
	if !r.Alive {
		t.Fatal("chief ray died before reaching the film")
	}
	if math.Abs(r.Origin.X) > 1e-9 || math.Abs(r.Origin.Y) > 1e-9 || math.Abs(r.Origin.Z) > 1e-9 {
		t.Errorf("film-local impact = %v, want ~(0,0,0)", r.Origin)
	}
	if math.Abs(r.Direction.X) > 1e-9 || math.Abs(r.Direction.Y) > 1e-9 || math.Abs(r.Direction.Z-1) > 1e-9 {
		t.Errorf("film-local direction = %v, want ~(0,0,1)", r.Direction)
	}
}

func TestRadiatePropagatesWithPool(t *testing.T) {
	sys, film := buildPointSourceMirrorFilm(t)
	pool := NewPool(4)
	defer pool.StopAndWait()
	if err := sys.Radiate("src", 1e-6, 'S', pool); err != nil {
		t.Fatalf("Radiate: %v", err)
	}
	if len(film.Impacts) != 1 {
		t.Fatalf("len(film.Impacts) = %d, want 1", len(film.Impacts))
	}
}

// TestPoolPreservesSourceEmissionOrder radiates a multi-ray grid both
// sequentially and through a pool, and checks the recorded film
// impacts come back in the same order either way: parallel
// impact-buffer writes must preserve source-emission order.
func TestPoolPreservesSourceEmissionOrder(t *testing.T) {
	build := func(t *testing.T) (*System, *SurfaceData) {
		sys, film := buildPointSourceMirrorFilm(t)
		src, ok := sys.Get("src")
		if !ok {
			t.Fatal("src not found")
		}
		for _, pv := range []struct {
			name string
			val  float64
		}{
			{"sizeX", 1e-3}, {"sizeY", 1e-3},
			{"nXsize", 5}, {"nYsize", 5},
		} {
			if err := sys.SetParameter("src", pv.name, pv.val); err != nil {
				t.Fatalf("SetParameter(%s): %v", pv.name, err)
			}
		}
		_ = src
		return sys, film
	}

	seqSys, seqFilm := build(t)
	if err := seqSys.Radiate("src", 1e-6, 'S', nil); err != nil {
		t.Fatalf("sequential Radiate: %v", err)
	}

	poolSys, poolFilm := build(t)
	pool := NewPool(4)
	defer pool.StopAndWait()
	if err := poolSys.Radiate("src", 1e-6, 'S', pool); err != nil {
		t.Fatalf("pooled Radiate: %v", err)
	}

	if len(seqFilm.Impacts) < 10 {
		t.Fatalf("expected a multi-ray grid, got %d impacts", len(seqFilm.Impacts))
	}
	if len(seqFilm.Impacts) != len(poolFilm.Impacts) {
		t.Fatalf("impact count mismatch: sequential=%d pooled=%d", len(seqFilm.Impacts), len(poolFilm.Impacts))
	}
	for i := range seqFilm.Impacts {
		want, got := seqFilm.Impacts[i].Origin, poolFilm.Impacts[i].Origin
		if want != got {
			t.Fatalf("impact %d out of order: sequential origin=%v pooled origin=%v", i, want, got)
		}
	}
}

// TestGaussianSphericalMirrorScenario traces an isotropic gaussian
// (5000 rays, 1 mrad divergence) onto a spherical mirror (R=0.25m) at
// theta=pi/4, then a film 1m further. Every ray must survive and the
// spot must be centred on the film origin.
func TestGaussianSphericalMirrorScenario(t *testing.T) {
	sys := NewSystem()
	src := NewGaussianSource("src")
	src.Rng = mrand.New(mrand.NewSource(12345))
	mirror := NewMirror("mirror", "Mirror<Sphere>", SphereShape{R: 0.25})
	film := NewFilm("film", "Film<Plane>", PlaneShape{})
	for name, holder := range map[string]surfaceHolder{"src": src, "mirror": mirror, "film": film} {
		if _, err := sys.AddElement(name, holder); err != nil {
			t.Fatalf("AddElement(%s): %v", name, err)
		}
	}
	if err := sys.Link("src", "mirror"); err != nil {
		t.Fatalf("Link(src,mirror): %v", err)
	}
	if err := sys.Link("mirror", "film"); err != nil {
		t.Fatalf("Link(mirror,film): %v", err)
	}
	for _, pv := range []struct {
		el, name string
		val      float64
	}{
		{"src", "nRays", 5000},
		{"src", "sigmaXdiv", 1e-3}, {"src", "sigmaYdiv", 1e-3},
		{"mirror", "distance", 1}, {"mirror", "theta", math.Pi / 4},
		{"film", "distance", 1},
	} {
		if err := sys.SetParameter(pv.el, pv.name, pv.val); err != nil {
			t.Fatalf("SetParameter(%s,%s): %v", pv.el, pv.name, err)
		}
	}
	if err := sys.AlignFromHere("src", 2.5e-8); err != nil {
		t.Fatalf("AlignFromHere: %v", err)
	}
	if err := sys.Radiate("src", 2.5e-8, 'S', nil); err != nil {
		t.Fatalf("Radiate: %v", err)
	}

	if len(film.Impacts) != 5000 {
		t.Fatalf("len(film.Impacts) = %d, want 5000", len(film.Impacts))
	}
	diag, err := sys.SpotDiagram("film", 0)
	if err != nil {
		t.Fatalf("SpotDiagram: %v", err)
	}
	if diag.Count != 5000 || diag.Lost != 0 {
		t.Fatalf("Count = %d, Lost = %d, want 5000 and 0", diag.Count, diag.Lost)
	}
	for c := 0; c < 2; c++ {
		if diag.Sigma[c] <= 0 {
			t.Fatalf("Sigma[%d] = %v, want > 0", c, diag.Sigma[c])
		}
		if math.Abs(diag.Mean[c]) > 0.1*diag.Sigma[c] {
			t.Errorf("Mean[%d] = %v not centred (sigma %v)", c, diag.Mean[c], diag.Sigma[c])
		}
	}
}

func TestRadiateUnknownSourceErrors(t *testing.T) {
	sys := NewSystem()
	if err := sys.Radiate("nope", 1e-6, 'S', nil); err == nil {
		t.Error("Radiate on unknown source = nil error, want error")
	}
}

func TestClearImpactsEmptiesBuffer(t *testing.T) {
	sys, film := buildPointSourceMirrorFilm(t)
	if err := sys.Radiate("src", 1e-6, 'S', nil); err != nil {
		t.Fatalf("Radiate: %v", err)
	}
	if len(film.Impacts) == 0 {
		t.Fatal("expected at least one impact before clearing")
	}
	if err := sys.ClearImpacts("film"); err != nil {
		t.Fatalf("ClearImpacts: %v", err)
	}
	if len(film.Impacts) != 0 {
		t.Errorf("len(film.Impacts) after ClearImpacts = %d, want 0", len(film.Impacts))
	}
}
