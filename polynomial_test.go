package optix

import (
	"math"
	"testing"
)

// TestFitHeightsRoundTrip fits a quadratic surface sampled on a regular
// grid and checks the recovered expansion reproduces it closely.
func TestFitHeightsRoundTrip(t *testing.T) {
	const n = 21
	f := func(x, y float64) float64 { return 0.5*x*x + 0.3*y*y + 0.1*x*y }

	var xs, ys, zs []float64
	for i := 0; i < n; i++ {
		x := -1 + 2*float64(i)/float64(n-1)
		for j := 0; j < n; j++ {
			y := -1 + 2*float64(j)/float64(n-1)
			xs = append(xs, x)
			ys = append(ys, y)
			zs = append(zs, f(x, y))
		}
	}

	surf, rms, err := FitHeights(BasisNatural, 3, 3, -1, 1, -1, 1, xs, ys, zs)
	if err != nil {
		t.Fatalf("FitHeights: %v", err)
	}
	if rms > 1e-8 {
		t.Errorf("fit RMS = %v, want < 1e-8", rms)
	}

	for _, pt := range [][2]float64{{0, 0}, {0.5, -0.3}, {-1, 1}, {0.7, 0.2}} {
		got := surf.Z(pt[0], pt[1])
		want := f(pt[0], pt[1])
		if math.Abs(got-want) > 1e-6 {
			t.Errorf("surf.Z(%v,%v) = %v, want %v", pt[0], pt[1], got, want)
		}
	}
}

func TestPolynomialInterceptMatchesSurface(t *testing.T) {
	surf := PolynomialSurface{
		Basis: BasisNatural, Nx: 2, Ny: 2,
		Xmin: -1, Xmax: 1, Ymin: -1, Ymax: 1,
		// column-major, rows=Nx+1=3: z = 0.2*x^2 + 0.1*y^2
		Coeff: ArrayValue(3, 3, []float64{
			0, 0, 0.2, // j=0 (y^0) column: coeff of 1, x, x^2
			0, 0, 0, // j=1 (y^1) column
			0.1, 0, 0, // j=2 (y^2) column: coeff of 1, x, x^2
		}),
	}
	r := NewRay(Vec3{0.1, -0.2, -5}, Vec3{0, 0, 1}, 0)
	pos, normal, err := surf.Intercept(&r)
	if err != nil {
		t.Fatalf("Intercept: %v", err)
	}
	zSurf := surf.Z(pos.X, pos.Y)
	if math.Abs(pos.Z-zSurf) > 1e-10 {
		t.Errorf("|z(x,y)-ray_z| = %v, want < 1e-10", math.Abs(pos.Z-zSurf))
	}

	gx, gy, _, _, _ := surf.gradientAndCurvature(pos.X, pos.Y)
	tangentX := Vec3{1, 0, gx}
	tangentY := Vec3{0, 1, gy}
	if math.Abs(normal.Dot(tangentX)) > 1e-9 {
		t.Errorf("normal.tangentX = %v, want ~0", normal.Dot(tangentX))
	}
	if math.Abs(normal.Dot(tangentY)) > 1e-9 {
		t.Errorf("normal.tangentY = %v, want ~0", normal.Dot(tangentY))
	}
}
