package optix

import (
	"math"
	"math/rand"
)

// GenerateSurfaceErrors produces an Nx x Ny height map over
// [xmin,xmax]x[ymin,ymax] with the given target RMS, via a random
// low-order Legendre expansion whose coefficients are drawn from a
// normal distribution and rescaled to hit the target RMS exactly (the
// RMS of an orthogonal expansion is just the RMS of its coefficients
// weighted by each basis term's own normalisation). Returns the
// generated height map plus the small Legendre coefficient matrix
// (order legOrder in both axes) that characterises it.
func GenerateSurfaceErrors(rng *rand.Rand, xmin, xmax, ymin, ymax float64, nx, ny, legOrder int, targetRMS float64) (*SurfaceErrorMap, PolynomialSurface) {
	surf := PolynomialSurface{
		Basis: BasisLegendre,
		Nx:    legOrder, Ny: legOrder,
		Xmin: xmin, Xmax: xmax, Ymin: ymin, Ymax: ymax,
	}
	ncoef := (legOrder + 1) * (legOrder + 1)
	coeff := make([]float64, ncoef)
	for i := range coeff {
		if i == 0 {
			continue // no piston term in a surface error map
		}
		coeff[i] = rng.NormFloat64()
	}
	surf.Coeff = ArrayValue(legOrder+1, legOrder+1, coeff)

	heights := make([]float64, nx*ny)
	var sumSq float64
	for j := 0; j < ny; j++ {
		y := ymin + (ymax-ymin)*float64(j)/float64(ny-1)
		for i := 0; i < nx; i++ {
			x := xmin + (xmax-xmin)*float64(i)/float64(nx-1)
			h := surf.Z(x, y)
			heights[j*nx+i] = h
			sumSq += h * h
		}
	}
	rms := math.Sqrt(sumSq / float64(nx*ny))
	if rms > 0 {
		scale := targetRMS / rms
		for i := range heights {
			heights[i] *= scale
		}
		for i := range coeff {
			coeff[i] *= scale
		}
		surf.Coeff = ArrayValue(legOrder+1, legOrder+1, coeff)
	}

	return &SurfaceErrorMap{
		Xmin: xmin, Xmax: xmax, Ymin: ymin, Ymax: ymax,
		Nx: nx, Ny: ny, Heights: heights,
	}, surf
}
