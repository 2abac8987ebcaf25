package optix

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Diagram is a dense buffer of Dim scalars per spot plus per-component
// min/max/mean/sigma, a success count and a loss count. Data is laid
// out spot-major: Data[i*Dim:(i+1)*Dim] is one spot's Dim components.
// Dropped counts live rays a diagnostic skipped on geometric grounds
// (only the caustic sets it: rays near-parallel to the chief ray have
// no closest-approach point); Count + Lost + Dropped covers every
// impact the diagnostic read.
type Diagram struct {
	Dim     int
	Data    []float64
	Min     []float64
	Max     []float64
	Mean    []float64
	Sigma   []float64
	Count   int
	Lost    int
	Dropped int
}

// buildDiagram runs the per-component statistics over a spot-major
// Data buffer, using gonum.org/v1/gonum/stat's mean/variance rather
// than a hand-rolled accumulator.
func buildDiagram(dim int, data []float64, lost int) Diagram {
	n := len(data) / dim
	d := Diagram{Dim: dim, Data: data, Count: n, Lost: lost}
	if n == 0 {
		d.Min = make([]float64, dim)
		d.Max = make([]float64, dim)
		d.Mean = make([]float64, dim)
		d.Sigma = make([]float64, dim)
		return d
	}
	d.Min = make([]float64, dim)
	d.Max = make([]float64, dim)
	d.Mean = make([]float64, dim)
	d.Sigma = make([]float64, dim)
	col := make([]float64, n)
	for c := 0; c < dim; c++ {
		for i := 0; i < n; i++ {
			col[i] = data[i*dim+c]
		}
		mn, mx := col[0], col[0]
		for _, v := range col {
			if v < mn {
				mn = v
			}
			if v > mx {
				mx = v
			}
		}
		mean, variance := stat.MeanVariance(col, nil)
		d.Min[c] = mn
		d.Max[c] = mx
		d.Mean[c] = mean
		d.Sigma[c] = sqrtNonNeg(variance)
	}
	return d
}

func sqrtNonNeg(v float64) float64 {
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}

// SpotDiagram advances every recorded impact on el by offset z along its
// own direction and records (x, y, dx/dz, dy/dz, lambda).
func (sys *System) SpotDiagram(elementName string, z float64) (Diagram, error) {
	el, ok := sys.byName[elementName]
	if !ok {
		return Diagram{}, newErr(ErrInvalidHandle, elementName, "", "unknown element")
	}
	const dim = 5
	data := make([]float64, 0, len(el.Impacts)*dim)
	lost := 0
	for _, r := range el.Impacts {
		if !r.Alive {
			lost++
			continue
		}
		p := r.PositionAt(z)
		if r.Direction.Z == 0 {
			lost++
			continue
		}
		dxdz := r.Direction.X / r.Direction.Z
		dydz := r.Direction.Y / r.Direction.Z
		data = append(data, p.X, p.Y, dxdz, dydz, r.Lambda)
	}
	return buildDiagram(dim, data, lost), nil
}

// ImpactData returns the full recorded impact record (seven components
// per spot): position, direction and wavelength per live impact, with
// dead impacts counted as lost.
func (sys *System) ImpactData(elementName string) (Diagram, error) {
	el, ok := sys.byName[elementName]
	if !ok {
		return Diagram{}, newErr(ErrInvalidHandle, elementName, "", "unknown element")
	}
	const dim = 7
	data := make([]float64, 0, len(el.Impacts)*dim)
	lost := 0
	for _, r := range el.Impacts {
		if !r.Alive {
			lost++
			continue
		}
		p := r.PositionAt(0)
		data = append(data, p.X, p.Y, p.Z, r.Direction.X, r.Direction.Y, r.Direction.Z, r.Lambda)
	}
	return buildDiagram(dim, data, lost), nil
}

// Caustic finds, for every impact recorded on el, the point of closest
// approach to the chief ray from sourceName (replayed fresh to el via
// chiefRayAt). Live rays within nearParallelCos of the chief ray's
// direction have no well-defined closest-approach point and are counted
// as dropped, separately from dead rays, so that
// Count + Lost + Dropped == len(Impacts).
func (sys *System) Caustic(sourceName, elementName string) (Diagram, error) {
	el, ok := sys.byName[elementName]
	if !ok {
		return Diagram{}, newErr(ErrInvalidHandle, elementName, "", "unknown element")
	}
	chief, err := sys.chiefRayAt(sourceName, elementName)
	if err != nil {
		return Diagram{}, err
	}

	const dim = 4
	data := make([]float64, 0, len(el.Impacts)*dim)
	lost, dropped := 0, 0
	for _, r := range el.Impacts {
		if !r.Alive {
			lost++
			continue
		}
		_, tSelf, _ := r.MinimumDistanceTo(chief)
		if math.IsInf(tSelf, 0) {
			dropped++
			continue
		}
		p := r.PositionAt(tSelf)
		data = append(data, p.X, p.Y, p.Z, r.Lambda)
	}
	d := buildDiagram(dim, data, lost)
	d.Dropped = dropped
	return d, nil
}

// WavefrontFit is the bi-Legendre expansion returned by WavefrontExpansion.
type WavefrontFit struct {
	Surf PolynomialSurface
	RMS  float64
}

// WavefrontExpansion moves every impact on el to the reference distance
// z and fits the resulting OPD (here, the ray's z-displacement in the
// tangent plane, a standard proxy for optical path difference when all
// rays share a wavelength) as a bi-Legendre expansion of the requested
// orders.
func (sys *System) WavefrontExpansion(elementName string, z float64, nx, ny int) (WavefrontFit, error) {
	el, ok := sys.byName[elementName]
	if !ok {
		return WavefrontFit{}, newErr(ErrInvalidHandle, elementName, "", "unknown element")
	}
	var xs, ys, opd []float64
	for _, r := range el.Impacts {
		if !r.Alive {
			continue
		}
		p := r.PositionAt(z)
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
		opd = append(opd, p.Z)
	}
	if len(xs) < (nx+1)*(ny+1) {
		return WavefrontFit{}, newErr(ErrInvalidArgument, elementName, "", "not enough live impacts to fit the requested Legendre orders")
	}
	xmin, xmax := minMax(xs)
	ymin, ymax := minMax(ys)
	surf, rms, err := FitHeights(BasisLegendre, nx, ny, xmin, xmax, ymin, ymax, xs, ys, opd)
	if err != nil {
		return WavefrontFit{}, err
	}
	return WavefrontFit{Surf: surf, RMS: rms}, nil
}

func minMax(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, x := range xs {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return
}

// FocalStack is a 3D integer tensor: bin counts over (x, y, zIndex),
// column-major within each z-slice, row size Nx and Ny columns.
type FocalStack struct {
	Nx, Ny, Nz             int
	Xmin, Xmax, Ymin, Ymax float64
	Zmin, Zmax             float64
	Counts                 []int // Nx*Ny*Nz, slice-major
}

// FocalDiagramStack bins el's recorded impacts, advanced over a Z range,
// into the requested X/Y/Z grid resolution.
func (sys *System) FocalDiagramStack(elementName string, xmin, xmax, ymin, ymax, zmin, zmax float64, nx, ny, nz int) (FocalStack, error) {
	el, ok := sys.byName[elementName]
	if !ok {
		return FocalStack{}, newErr(ErrInvalidHandle, elementName, "", "unknown element")
	}
	if nx < 1 || ny < 1 || nz < 1 {
		return FocalStack{}, newErr(ErrInvalidArgument, elementName, "", "focal stack grid dimensions must be positive")
	}
	fs := FocalStack{Nx: nx, Ny: ny, Nz: nz, Xmin: xmin, Xmax: xmax, Ymin: ymin, Ymax: ymax, Zmin: zmin, Zmax: zmax,
		Counts: make([]int, nx*ny*nz)}

	for _, r := range el.Impacts {
		if !r.Alive {
			continue
		}
		for k := 0; k < nz; k++ {
			z := zmin + (zmax-zmin)*float64(k)/float64(maxInt(nz-1, 1))
			p := r.PositionAt(z)
			if p.X < xmin || p.X >= xmax || p.Y < ymin || p.Y >= ymax {
				continue
			}
			ix := int((p.X - xmin) / (xmax - xmin) * float64(nx))
			iy := int((p.Y - ymin) / (ymax - ymin) * float64(ny))
			ix = clampInt(ix, 0, nx-1)
			iy = clampInt(iy, 0, ny-1)
			fs.Counts[k*nx*ny+iy*nx+ix]++
		}
	}
	return fs, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PSFStack is a 4D complex-valued image-plane stack: one (x, y)
// complex grid per zOffset plane, stored plane-major.
type PSFStack struct {
	Nx, Ny, NumPlanes int
	PixelSize         float64        // effective pixel size actually used, possibly enlarged
	Planes            [][]complex128 // len NumPlanes, each Nx*Ny, row-major
}

// PSFStackFrom evaluates the complex pupil field implied by fit on an
// Nx x Ny grid over the fitted rectangle, then resamples it onto the
// image plane at the requested pixel size via a chirp-Z-style transform
// (approximated here by gonum's FFT with a padded, phase-corrected
// grid — the standard way to get an arbitrary output pixel size from a
// fixed-size FFT), producing one complex plane per requested z-offset.
func PSFStackFrom(fit WavefrontFit, wavelength, pixelSize float64, oversample int, n int, zFirstOffset, zLastOffset float64, numOffsetPlanes int) (PSFStack, error) {
	if oversample < 2 {
		oversample = 2
	}
	if n < 2 {
		return PSFStack{}, newErr(ErrInvalidArgument, "", "", "PSF grid size must be at least 2")
	}
	effectivePixel := pixelSize
	minPixel := wavelength / (float64(n) * 2)
	if effectivePixel < minPixel {
		effectivePixel = minPixel
	}

	fftN := n * oversample
	cf := fourier.NewCmplxFFT(fftN)

	pupil := make([]complex128, fftN*fftN)
	xmin, xmax := fit.Surf.Xmin, fit.Surf.Xmax
	ymin, ymax := fit.Surf.Ymin, fit.Surf.Ymax
	for j := 0; j < fftN; j++ {
		y := ymin + (ymax-ymin)*float64(j)/float64(fftN-1)
		for i := 0; i < fftN; i++ {
			x := xmin + (xmax-xmin)*float64(i)/float64(fftN-1)
			opd := fit.Surf.Z(x, y)
			phase := 2 * math.Pi / wavelength * opd
			pupil[j*fftN+i] = cmplx.Exp(complex(0, phase))
		}
	}

	planes := make([][]complex128, numOffsetPlanes)
	for p := 0; p < numOffsetPlanes; p++ {
		frac := 0.0
		if numOffsetPlanes > 1 {
			frac = float64(p) / float64(numOffsetPlanes-1)
		}
		zOffset := zFirstOffset + (zLastOffset-zFirstOffset)*frac

		defocused := make([]complex128, len(pupil))
		copy(defocused, pupil)
		if zOffset != 0 {
			for j := 0; j < fftN; j++ {
				y := ymin + (ymax-ymin)*float64(j)/float64(fftN-1)
				for i := 0; i < fftN; i++ {
					x := xmin + (xmax-xmin)*float64(i)/float64(fftN-1)
					defocusPhase := math.Pi / wavelength / zOffset * (x*x + y*y)
					defocused[j*fftN+i] *= cmplx.Exp(complex(0, defocusPhase))
				}
			}
		}

		field := make([]complex128, fftN*fftN)
		row := make([]complex128, fftN)
		tmp := make([][]complex128, fftN)
		for j := 0; j < fftN; j++ {
			copy(row, defocused[j*fftN:(j+1)*fftN])
			tmp[j] = append([]complex128(nil), cf.Coefficients(nil, row)...)
		}
		col := make([]complex128, fftN)
		for i := 0; i < fftN; i++ {
			for j := 0; j < fftN; j++ {
				col[j] = tmp[j][i]
			}
			out := cf.Coefficients(nil, col)
			for j := 0; j < fftN; j++ {
				field[j*fftN+i] = out[j]
			}
		}

		plane := make([]complex128, n*n)
		offset := (fftN - n) / 2
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				plane[j*n+i] = field[(j+offset)*fftN+(i+offset)]
			}
		}
		planes[p] = plane
	}

	return PSFStack{Nx: n, Ny: n, NumPlanes: numOffsetPlanes, PixelSize: effectivePixel, Planes: planes}, nil
}

// WavefrontToMat exposes a wavefront fit's coefficient grid as a dense
// gonum matrix, a convenience for callers that want to run further
// linear-algebra diagnostics (e.g. SVD-based Zernike-like decomposition)
// without re-deriving the column-major layout of ParameterValue.
func WavefrontToMat(fit WavefrontFit) *mat.Dense {
	rows, cols := fit.Surf.Coeff.Rows, fit.Surf.Coeff.Cols
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, fit.Surf.Coeff.At(i, j))
		}
	}
	return m
}
