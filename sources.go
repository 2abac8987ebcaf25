package optix

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	mrand "math/rand"
)

// SourceKind tags the variant held by a KindSource Element.
type SourceKind int

const (
	SourceCartesianGrid SourceKind = iota
	SourcePolarGrid
	SourceGaussian
	SourceAstigmaticGaussian
	SourceBMGaussian
)

// seedRand returns a math/rand source seeded from a process CSPRNG read.
func seedRand() *mrand.Rand {
	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return mrand.New(mrand.NewSource(1))
	}
	return mrand.New(mrand.NewSource(int64(binary.LittleEndian.Uint64(seed[:]))))
}

func polarAmplitudes(polar byte) (amps, ampp complex128, err error) {
	switch polar {
	case 'S':
		return 1, 0, nil
	case 'P':
		return 0, 1, nil
	case 'R':
		return complex(math.Sqrt2, 0), complex(0, math.Sqrt2), nil
	case 'L':
		return complex(math.Sqrt2, 0), complex(0, -math.Sqrt2), nil
	default:
		return 0, 0, newErr(ErrInvalidArgument, "", "", "invalid polarization (S, P, R or L only are allowed)")
	}
}

// NewCartesianGridSource builds the eight-parameter Cartesian grid
// source.
func NewCartesianGridSource(name string) *SurfaceData {
	e := NewElement(name, "Source<XY,Grid>", KindSource, true)
	e.Shape = PlaneShape{}
	e.SourceVariant = SourceCartesianGrid
	p := e.Params
	p.Define("divX", NewScalarParameter(0, 0, 1, UnitAngle, GroupSource, 0))
	p.Define("divY", NewScalarParameter(0, 0, 1, UnitAngle, GroupSource, 0))
	p.Define("sizeX", NewScalarParameter(0, 0, 1e6, UnitDistance, GroupSource, 0))
	p.Define("sizeY", NewScalarParameter(0, 0, 1e6, UnitDistance, GroupSource, 0))
	p.Define("nXdiv", NewScalarParameter(1, 1, 1e4, UnitNone, GroupSource, FlagNotOptimisable))
	p.Define("nYdiv", NewScalarParameter(1, 1, 1e4, UnitNone, GroupSource, FlagNotOptimisable))
	p.Define("nXsize", NewScalarParameter(1, 1, 1e4, UnitNone, GroupSource, FlagNotOptimisable))
	p.Define("nYsize", NewScalarParameter(1, 1, 1e4, UnitNone, GroupSource, FlagNotOptimisable))
	return NewSurfaceData(e, RecordOnExit)
}

// NewPolarGridSource builds the six-parameter polar grid source.
func NewPolarGridSource(name string) *SurfaceData {
	e := NewElement(name, "Source<Radial,Grid>", KindSource, true)
	e.Shape = PlaneShape{}
	e.SourceVariant = SourcePolarGrid
	p := e.Params
	p.Define("divR", NewScalarParameter(0, 0, 1, UnitAngle, GroupSource, 0))
	p.Define("sizeR", NewScalarParameter(0, 0, 1e6, UnitDistance, GroupSource, 0))
	p.Define("nRdiv", NewScalarParameter(1, 1, 1e4, UnitNone, GroupSource, FlagNotOptimisable))
	p.Define("nRsize", NewScalarParameter(1, 1, 1e4, UnitNone, GroupSource, FlagNotOptimisable))
	p.Define("nThetaDiv", NewScalarParameter(1, 1, 1e4, UnitNone, GroupSource, FlagNotOptimisable))
	p.Define("nThetaSize", NewScalarParameter(1, 1, 1e4, UnitNone, GroupSource, FlagNotOptimisable))
	return NewSurfaceData(e, RecordOnExit)
}

// NewGaussianSource builds the isotropic gaussian source (nRays,
// sigmaX, sigmaY, sigmaXdiv, sigmaYdiv).
func NewGaussianSource(name string) *SurfaceData {
	e := NewElement(name, "Source<Gaussian>", KindSource, true)
	e.Shape = PlaneShape{}
	e.SourceVariant = SourceGaussian
	p := e.Params
	p.Define("nRays", NewScalarParameter(1000, 1, 1e8, UnitNone, GroupSource, FlagNotOptimisable))
	p.Define("sigmaX", NewScalarParameter(0, 0, 1e6, UnitDistance, GroupSource, 0))
	p.Define("sigmaY", NewScalarParameter(0, 0, 1e6, UnitDistance, GroupSource, 0))
	p.Define("sigmaXdiv", NewScalarParameter(0, 0, 1, UnitAngle, GroupSource, 0))
	p.Define("sigmaYdiv", NewScalarParameter(0, 0, 1, UnitAngle, GroupSource, 0))
	e.Rng = seedRand()
	return NewSurfaceData(e, RecordOnExit)
}

// NewAstigmaticGaussianSource adds waistX/waistY to the isotropic
// gaussian source.
func NewAstigmaticGaussianSource(name string) *SurfaceData {
	s := NewGaussianSource(name)
	s.Class = "Source<Astigmatic,Gaussian>"
	s.SourceVariant = SourceAstigmaticGaussian
	s.Params.Define("waistX", NewScalarParameter(0, -1e6, 1e6, UnitDistance, GroupSource, 0))
	s.Params.Define("waistY", NewScalarParameter(0, -1e6, 1e6, UnitDistance, GroupSource, 0))
	return s
}

// NewBMGaussianSource adds trajectoryRadius/apertureX to the isotropic
// gaussian source.
func NewBMGaussianSource(name string) *SurfaceData {
	s := NewGaussianSource(name)
	s.Class = "Source<BMtype,Gaussian>"
	s.SourceVariant = SourceBMGaussian
	s.Params.Define("trajectoryRadius", NewScalarParameter(0, 0, 1e9, UnitDistance, GroupSource, 0))
	s.Params.Define("apertureX", NewScalarParameter(0, 0, 1, UnitAngle, GroupSource, 0))
	return s
}

// symmetricLinspace returns the 2n-1 point grid symmetric about zero
// over [-half, half]; n==1 collapses to the single point 0.
func symmetricLinspace(half float64, n int) []float64 {
	if n <= 1 {
		return []float64{0}
	}
	m := 2*n - 1
	out := make([]float64, m)
	for i := 0; i < m; i++ {
		out[i] = -half + 2*half*float64(i)/float64(m-1)
	}
	return out
}

// Generate populates the source's own impact buffer with its initial
// ray ensemble and sets the wavelength and polarisation amplitudes on
// every ray. It does not forward rays to the next element; that is
// System.Radiate's job.
func (s *SurfaceData) Generate(wavelength float64, polar byte) error {
	if wavelength < 0 {
		return newErr(ErrInvalidArgument, s.Name, "", "negative wavelength")
	}
	amps, ampp, err := polarAmplitudes(polar)
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.Element = s.Name
		}
		return err
	}

	var rays []Ray
	switch s.SourceVariant {
	case SourceCartesianGrid:
		rays = s.cartesianGridRays()
	case SourcePolarGrid:
		rays = s.polarGridRays()
	case SourceGaussian:
		rays = s.gaussianRays(false)
	case SourceAstigmaticGaussian:
		rays = s.astigmaticGaussianRays()
	case SourceBMGaussian:
		rays = s.gaussianRays(polar == 'P')
	}

	for i := range rays {
		rays[i].Lambda = wavelength
		rays[i].AmpS = amps
		rays[i].AmpP = ampp
		rays[i].SRef = Vec3{1, 0, 0}
	}
	s.Impacts = append(s.Impacts, rays...)
	return nil
}

func (s *SurfaceData) cartesianGridRays() []Ray {
	divX := s.paramOr("divX", 0)
	divY := s.paramOr("divY", 0)
	sizeX := s.paramOr("sizeX", 0)
	sizeY := s.paramOr("sizeY", 0)
	nXdiv := int(s.paramOr("nXdiv", 1))
	nYdiv := int(s.paramOr("nYdiv", 1))
	nXsize := int(s.paramOr("nXsize", 1))
	nYsize := int(s.paramOr("nYsize", 1))

	xs := symmetricLinspace(sizeX, nXsize)
	ys := symmetricLinspace(sizeY, nYsize)
	dxs := symmetricLinspace(divX, nXdiv)
	dys := symmetricLinspace(divY, nYdiv)

	rays := make([]Ray, 0, len(xs)*len(ys)*len(dxs)*len(dys))
	for _, y := range ys {
		for _, x := range xs {
			for _, dy := range dys {
				for _, dx := range dxs {
					rays = append(rays, NewRay(Vec3{x, y, 0}, Vec3{dx, dy, 1}, 0))
				}
			}
		}
	}
	return rays
}

// polarRing returns (radius, theta) pairs over the [0,max] disc with n
// radial rings beyond the on-axis point and nTheta azimuthal samples
// per ring, radii spaced as R*sqrt(i/n) for uniform areal density.
func polarRing(max float64, n, nTheta int) (radii, thetas []float64) {
	radii = append(radii, 0)
	thetas = append(thetas, 0)
	if n <= 0 {
		return
	}
	for i := 1; i <= n; i++ {
		r := max * math.Sqrt(float64(i)/float64(n))
		for j := 0; j < nTheta; j++ {
			radii = append(radii, r)
			thetas = append(thetas, 2*math.Pi*float64(j)/float64(nTheta))
		}
	}
	return
}

func (s *SurfaceData) polarGridRays() []Ray {
	divR := s.paramOr("divR", 0)
	sizeR := s.paramOr("sizeR", 0)
	nRdiv := int(s.paramOr("nRdiv", 1)) - 1
	nRsize := int(s.paramOr("nRsize", 1)) - 1
	nThetaDiv := int(s.paramOr("nThetaDiv", 1))
	nThetaSize := int(s.paramOr("nThetaSize", 1))
	if nRdiv < 0 {
		nRdiv = 0
	}
	if nRsize < 0 {
		nRsize = 0
	}

	posR, posT := polarRing(sizeR, nRsize, nThetaSize)
	dirR, dirT := polarRing(divR, nRdiv, nThetaDiv)

	rays := make([]Ray, 0, len(posR)*len(dirR))
	for i := range posR {
		x := posR[i] * math.Cos(posT[i])
		y := posR[i] * math.Sin(posT[i])
		for j := range dirR {
			dx := dirR[j] * math.Cos(dirT[j])
			dy := dirR[j] * math.Sin(dirT[j])
			rays = append(rays, NewRay(Vec3{x, y, 0}, Vec3{dx, dy, 1}, 0))
		}
	}
	return rays
}

func (s *SurfaceData) gaussianRays(bmYDivergence bool) []Ray {
	nRays := int(s.paramOr("nRays", 1))
	if nRays < 1 {
		nRays = 1
	}
	sigmaX := s.paramOr("sigmaX", 0)
	sigmaY := s.paramOr("sigmaY", 0)
	sigmaXdiv := s.paramOr("sigmaXdiv", 0)
	sigmaYdiv := s.paramOr("sigmaYdiv", 0)

	if nRays == 1 {
		return []Ray{NewRay(Vec3{}, Vec3{0, 0, 1}, 0)}
	}

	rng := s.Rng
	if rng == nil {
		rng = seedRand()
		s.Rng = rng
	}

	rays := make([]Ray, nRays)
	for i := 0; i < nRays; i++ {
		var x, y, dx, dy float64
		if sigmaX > 0 {
			x = rng.NormFloat64() * sigmaX
		}
		if sigmaY > 0 {
			y = rng.NormFloat64() * sigmaY
		}
		if sigmaXdiv > 0 {
			dx = rng.NormFloat64() * sigmaXdiv
		}
		if bmYDivergence {
			dy = sampleBMYDivergence(rng, sigmaYdiv)
		} else if sigmaYdiv > 0 {
			dy = rng.NormFloat64() * sigmaYdiv
		}
		rays[i] = NewRay(Vec3{x, y, 0}, Vec3{dx, dy, 1}, 0)
	}
	return rays
}

// sampleBMYDivergence draws the Y-divergence angle of a bending-magnet
// source in P polarisation from the density
// theta^2/(theta^2+2*pi*sigma'^2) * exp(-theta^2/(2*sigma'^2)), via
// rejection sampling against a gaussian envelope scaled by the
// density's maximum.
func sampleBMYDivergence(rng *mrand.Rand, sigma float64) float64 {
	if sigma <= 0 {
		return 0
	}
	bmDensity := func(theta float64) float64 {
		t2 := theta * theta
		s2 := sigma * sigma
		return t2 / (t2 + 2*math.Pi*s2) * math.Exp(-t2/(2*s2))
	}
	const envelopeScale = 3.0
	for iter := 0; iter < 1000; iter++ {
		theta := rng.NormFloat64() * sigma * envelopeScale
		envelope := math.Exp(-theta*theta/(2*sigma*sigma*envelopeScale*envelopeScale)) / envelopeScale
		u := rng.Float64() * envelope
		if u <= bmDensity(theta) {
			return theta
		}
	}
	return rng.NormFloat64() * sigma
}

func (s *SurfaceData) astigmaticGaussianRays() []Ray {
	nRays := int(s.paramOr("nRays", 1))
	if nRays < 1 {
		nRays = 1
	}
	sigmaX := s.paramOr("sigmaX", 0)
	sigmaY := s.paramOr("sigmaY", 0)
	sigmaXdiv := s.paramOr("sigmaXdiv", 0)
	sigmaYdiv := s.paramOr("sigmaYdiv", 0)
	waistX := s.paramOr("waistX", 0)
	waistY := s.paramOr("waistY", 0)

	if nRays == 1 {
		return []Ray{NewRay(Vec3{}, Vec3{0, 0, 1}, 0)}
	}

	rng := s.Rng
	if rng == nil {
		rng = seedRand()
		s.Rng = rng
	}

	rays := make([]Ray, nRays)
	for i := 0; i < nRays; i++ {
		dir := Vec3{0, 0, 1}
		if sigmaXdiv > 0 {
			dir.X = rng.NormFloat64() * sigmaXdiv
		}
		if sigmaYdiv > 0 {
			dir.Y = rng.NormFloat64() * sigmaYdiv
		}
		dir = dir.Unit()

		var x, y float64
		if sigmaX > 0 {
			x = rng.NormFloat64() * sigmaX
		}
		if sigmaY > 0 {
			y = rng.NormFloat64() * sigmaY
		}
		// the waist is displaced by -waist*direction_x/y.
		x -= waistX * dir.X
		y -= waistY * dir.Y

		rays[i] = NewRay(Vec3{x, y, 0}, dir, 0)
	}
	return rays
}

// UndulatorParams is the set of gaussian-source parameters derived by
// EmulateUndulator.
type UndulatorParams struct {
	SigmaX, SigmaY       float64
	SigmaXDiv, SigmaYDiv float64
	WaistX, WaistY       float64
}

// EmulateUndulator derives the (up to six) gaussian-source parameters
// from undulator geometry:
//
//	sigma2_diff = lambda*L/(8*pi^2*detuning)
//	sigmaprim2_diff = lambda*detuning/(2*L)
//	sigmaprim2_total = sigmaprim2 + sigmaprim2_diff
//	waist = sigmaprim2_diff*D_sd/sigmaprim2_total
//	sigma2_total = sigma2 + sigma2_diff + sigmaprim2*sigmaprim2_diff*D_sd^2/sigmaprim2_total
//
// independently in X and Y. D_sd is 0 for a plain (non-astigmatic)
// gaussian source, for which the waist outputs are meaningless and
// should be ignored by the caller.
func EmulateUndulator(sigmaX, sigmaY, sigmaXdiv, sigmaYdiv, undulatorLength, sdDistance, wavelength, detuning float64) (UndulatorParams, error) {
	if wavelength < 0 {
		return UndulatorParams{}, newErr(ErrInvalidArgument, "", "", "negative wavelength")
	}
	if undulatorLength <= 0 || detuning <= 0 {
		return UndulatorParams{}, newErr(ErrInvalidArgument, "", "", "undulator length and detuning must be strictly positive")
	}

	sigmaPrimDiff2 := wavelength * detuning / (2 * undulatorLength)
	sigmaDiff2 := wavelength * undulatorLength / detuning / (8 * math.Pi * math.Pi)

	axis := func(sigma, sigmaPrim float64) (sigmaTotal, sigmaPrimTotal, waist float64) {
		sigmaPrim2 := sigmaPrim * sigmaPrim
		sigmaPrim2Total := sigmaPrim2 + sigmaPrimDiff2
		w := sigmaPrimDiff2 / sigmaPrim2Total * sdDistance
		sigma2Total := sigma*sigma + sigmaDiff2 + sigmaPrim2*sigmaPrimDiff2*sdDistance*sdDistance/sigmaPrim2Total
		return math.Sqrt(sigma2Total), math.Sqrt(sigmaPrim2Total), w
	}

	sx, sxd, wx := axis(sigmaX, sigmaXdiv)
	sy, syd, wy := axis(sigmaY, sigmaYdiv)

	return UndulatorParams{
		SigmaX: sx, SigmaY: sy,
		SigmaXDiv: sxd, SigmaYDiv: syd,
		WaistX: wx, WaistY: wy,
	}, nil
}

// WaveRadiate generates rays on a regular Cartesian angular grid for
// wavefront/PSF extraction: Nx*Ny rays, no random sampling regardless
// of the element's kind.
func (s *SurfaceData) WaveRadiate(wavelength, thetaX, thetaY float64, nx, ny int, polar byte) error {
	if wavelength < 0 {
		return newErr(ErrInvalidArgument, s.Name, "", "negative wavelength")
	}
	amps, ampp, err := polarAmplitudes(polar)
	if err != nil {
		return err
	}
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}
	dxs := gridLinspace(-thetaX, thetaX, nx)
	dys := gridLinspace(-thetaY, thetaY, ny)

	rays := make([]Ray, 0, nx*ny)
	for _, dy := range dys {
		for _, dx := range dxs {
			r := NewRay(Vec3{}, Vec3{dx, dy, 1}, 0)
			r.Lambda = wavelength
			r.AmpS = amps
			r.AmpP = ampp
			rays = append(rays, r)
		}
	}
	s.Impacts = append(s.Impacts, rays...)
	return nil
}

func gridLinspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{(lo + hi) / 2}
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}
