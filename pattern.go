package optix

import "math"

// PatternKind tags the grating line-density law variant.
type PatternKind int

const (
	PatternHolographic PatternKind = iota
	PatternPolynomial1D
)

// Pattern yields the grating line-density vector at a surface point.
type Pattern interface {
	Kind() PatternKind
	// LineDensityAt returns the tangential line-density vector at
	// surface position p with outward normal n.
	LineDensityAt(p, n Vec3) Vec3
}

// sourcePoint describes a holographic construction point as
// (inverse-distance, elevation, azimuth).
type sourcePoint struct {
	InvDistance float64
	Elevation   float64
	Azimuth     float64
}

func (s sourcePoint) directionFrom(p Vec3) (Vec3, bool) {
	// Elevation is measured from the surface normal in the dispersion
	// (X-Z) plane, azimuth rotates about the normal. A construction
	// point at "infinity" (InvDistance == 0) is a plane wave along that
	// direction; otherwise the point sits at distance 1/InvDistance
	// from the surface origin along it, and the returned vector is the
	// unit vector from p to that point.
	dir := Vec3{
		math.Sin(s.Elevation) * math.Cos(s.Azimuth),
		math.Sin(s.Elevation) * math.Sin(s.Azimuth),
		math.Cos(s.Elevation),
	}
	if s.InvDistance == 0 {
		return dir, true
	}
	center := dir.Scale(1 / s.InvDistance)
	return center.Sub(p).Unit(), false
}

// HolographicPattern implements the two-construction-point holographic
// grating line-density law.
type HolographicPattern struct {
	RecordingWavelength float64
	C1, C2              sourcePoint
	LineDensity         float64 // constant-density override; 0 means "not set"
}

func (HolographicPattern) Kind() PatternKind { return PatternHolographic }

func (h HolographicPattern) LineDensityAt(p, n Vec3) Vec3 {
	if h.LineDensity != 0 {
		return tangentProject(Vec3{1, 0, 0}, n).Unit().Scale(h.LineDensity)
	}
	u1, _ := h.C1.directionFrom(p)
	u2, _ := h.C2.directionFrom(p)
	diff := u2.Sub(u1)
	tangential := tangentProject(diff, n)
	return tangential.Scale(1 / h.RecordingWavelength)
}

// tangentProject removes the component of v along n.
func tangentProject(v, n Vec3) Vec3 {
	nUnit := n.Unit()
	return v.Sub(nUnit.Scale(v.Dot(nUnit)))
}

// PatternInfo is the aggregate fit returned by pattern_info: a degree-3
// polynomial approximation of axial line density, the central line tilt
// angle, and the line curvature radius.
type PatternInfo struct {
	DensityPoly [4]float64 // degree <= 3, coeff[0]+coeff[1]x+...
	TiltAngle   float64
	CurveRadius float64
}

// PatternInfoOf fits the axial line density over [-halfLength,halfLength]
// with a cubic in x, and takes the line curvature radius from the turn
// of the line direction across [-halfWidth,halfWidth] near the centre;
// the result is a fit over the sampled area, not a fundamental parameter.
func PatternInfoOf(pat Pattern, halfLength, halfWidth float64) PatternInfo {
	const samples = 11
	xs := make([]float64, samples)
	densities := make([]float64, samples)
	for i := 0; i < samples; i++ {
		x := -halfLength + 2*halfLength*float64(i)/float64(samples-1)
		xs[i] = x
		d := pat.LineDensityAt(Vec3{X: x}, Vec3{0, 0, 1})
		densities[i] = d.Norm()
	}
	coeffs := polyFit1D(xs, densities, 3)

	d0 := pat.LineDensityAt(Vec3{}, Vec3{0, 0, 1}).Unit()
	tilt := math.Atan2(d0.Y, d0.X)

	radius := math.Inf(1)
	if dy := halfWidth * 0.01; dy > 0 {
		uP := pat.LineDensityAt(Vec3{Y: dy}, Vec3{0, 0, 1}).Unit()
		uM := pat.LineDensityAt(Vec3{Y: -dy}, Vec3{0, 0, 1}).Unit()
		curvature := math.Atan2(uM.X*uP.Y-uM.Y*uP.X, uM.Dot(uP)) / (2 * dy)
		if curvature != 0 {
			radius = 1 / curvature
		}
	}

	var pi PatternInfo
	copy(pi.DensityPoly[:], coeffs)
	pi.TiltAngle = tilt
	pi.CurveRadius = radius
	return pi
}

// polyFit1D is a small closed-form least-squares fit (normal equations)
// used only by PatternInfoOf's low-order, low-sample-count fit; the
// heavier polynomial-surface fits in polynomial.go go through gonum's
// QR solve instead.
func polyFit1D(xs, ys []float64, degree int) []float64 {
	n := len(xs)
	ncoef := degree + 1
	ata := make([][]float64, ncoef)
	atb := make([]float64, ncoef)
	for i := range ata {
		ata[i] = make([]float64, ncoef)
	}
	for k := 0; k < n; k++ {
		powers := naturalPow(degree, xs[k])
		for i := 0; i < ncoef; i++ {
			atb[i] += powers[i] * ys[k]
			for j := 0; j < ncoef; j++ {
				ata[i][j] += powers[i] * powers[j]
			}
		}
	}
	return gaussSolve(ata, atb)
}

// gaussSolve solves a small dense linear system via Gauss elimination
// with partial pivoting; used only for the tiny (<=4x4) systems in
// polyFit1D.
func gaussSolve(a [][]float64, b []float64) []float64 {
	n := len(b)
	for col := 0; col < n; col++ {
		piv := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[piv][col]) {
				piv = row
			}
		}
		a[col], a[piv] = a[piv], a[col]
		b[col], b[piv] = b[piv], b[col]
		if a[col][col] == 0 {
			continue
		}
		for row := col + 1; row < n; row++ {
			f := a[row][col] / a[col][col]
			for k := col; k < n; k++ {
				a[row][k] -= f * a[col][k]
			}
			b[row] -= f * b[col]
		}
	}
	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		s := b[row]
		for k := row + 1; k < n; k++ {
			s -= a[row][k] * x[k]
		}
		if a[row][row] == 0 {
			x[row] = 0
			continue
		}
		x[row] = s / a[row][row]
	}
	return x
}

// Polynomial1DPattern implements the polynomial line-density variant:
// line density at x is (central + sum_k k*coeff_k*x^(k-1)) along x-hat.
type Polynomial1DPattern struct {
	Degree  int
	Central float64
	Coeff   []float64 // length Degree, coeff[0] is the linear term's coefficient
}

func (Polynomial1DPattern) Kind() PatternKind { return PatternPolynomial1D }

func (p Polynomial1DPattern) LineDensityAt(pos, n Vec3) Vec3 {
	density := p.Central
	for k := 1; k <= p.Degree; k++ {
		density += float64(k) * p.Coeff[k-1] * pow(pos.X, k-1)
	}
	xhat := tangentProject(Vec3{1, 0, 0}, n).Unit()
	return xhat.Scale(density)
}
