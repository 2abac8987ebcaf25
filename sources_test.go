package optix

import "testing"

func TestCartesianGridSourceSingleRay(t *testing.T) {
	s := NewCartesianGridSource("src")
	if err := s.Generate(1e-6, 'S'); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(s.Impacts) != 1 {
		t.Fatalf("len(Impacts) = %d, want 1", len(s.Impacts))
	}
	r := s.Impacts[0]
	if r.Origin != (Vec3{0, 0, 0}) || r.Direction != (Vec3{0, 0, 1}) {
		t.Errorf("on-axis ray = %+v", r)
	}
}

func TestCartesianGridSourceProductCount(t *testing.T) {
	s := NewCartesianGridSource("src")
	if err := s.Params.Set("nXsize", 3); err != nil {
		t.Fatalf("Set nXsize: %v", err)
	}
	if err := s.Params.Set("nYsize", 2); err != nil {
		t.Fatalf("Set nYsize: %v", err)
	}
	if err := s.Params.Set("sizeX", 1); err != nil {
		t.Fatalf("Set sizeX: %v", err)
	}
	if err := s.Params.Set("sizeY", 1); err != nil {
		t.Fatalf("Set sizeY: %v", err)
	}
	if err := s.Generate(1e-6, 'S'); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	nx := 2*3 - 1
	ny := 2*2 - 1
	if len(s.Impacts) != nx*ny {
		t.Errorf("len(Impacts) = %d, want %d", len(s.Impacts), nx*ny)
	}
}

func TestPolarGridSourceSingleRayWhenNoRings(t *testing.T) {
	s := NewPolarGridSource("src")
	if err := s.Generate(1e-6, 'S'); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(s.Impacts) != 1 {
		t.Fatalf("len(Impacts) = %d, want 1", len(s.Impacts))
	}
	r := s.Impacts[0]
	if r.Origin != (Vec3{0, 0, 0}) || r.Direction != (Vec3{0, 0, 1}) {
		t.Errorf("on-axis ray = %+v", r)
	}
}

func TestGaussianSourceSingleRayIsOnAxis(t *testing.T) {
	s := NewGaussianSource("src")
	if err := s.Params.Set("nRays", 1); err != nil {
		t.Fatalf("Set nRays: %v", err)
	}
	if err := s.Params.Set("sigmaX", 1e-3); err != nil {
		t.Fatalf("Set sigmaX: %v", err)
	}
	if err := s.Generate(1e-6, 'S'); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(s.Impacts) != 1 {
		t.Fatalf("len(Impacts) = %d, want 1", len(s.Impacts))
	}
	r := s.Impacts[0]
	if r.Origin != (Vec3{0, 0, 0}) || r.Direction != (Vec3{0, 0, 1}) {
		t.Errorf("nRays=1 ray = %+v, want on-axis", r)
	}
}

func TestGaussianRaysCarryWavelengthAndPolarisation(t *testing.T) {
	s := NewGaussianSource("src")
	if err := s.Params.Set("nRays", 50); err != nil {
		t.Fatalf("Set nRays: %v", err)
	}
	if err := s.Params.Set("sigmaX", 2e-3); err != nil {
		t.Fatalf("Set sigmaX: %v", err)
	}
	if err := s.Params.Set("sigmaY", 2e-3); err != nil {
		t.Fatalf("Set sigmaY: %v", err)
	}
	if err := s.Generate(5.3e-7, 'P'); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(s.Impacts) != 50 {
		t.Fatalf("len(Impacts) = %d, want 50", len(s.Impacts))
	}
	for i, r := range s.Impacts {
		if r.Lambda != 5.3e-7 {
			t.Errorf("ray %d: Lambda = %v, want 5.3e-7", i, r.Lambda)
		}
		if r.AmpS != 0 || r.AmpP != 1 {
			t.Errorf("ray %d: AmpS=%v AmpP=%v, want 0,1 for P polarisation", i, r.AmpS, r.AmpP)
		}
	}
}

func TestGenerateRejectsNegativeWavelength(t *testing.T) {
	s := NewCartesianGridSource("src")
	if err := s.Generate(-1, 'S'); err == nil {
		t.Error("Generate(-1, ...) = nil error, want error")
	}
}

func TestGenerateRejectsInvalidPolarisation(t *testing.T) {
	s := NewCartesianGridSource("src")
	if err := s.Generate(1e-6, 'X'); err == nil {
		t.Error("Generate(..., 'X') = nil error, want error")
	}
}
