package optix

import "sync"

// RecordMode controls when a Surface appends a copy of a propagating
// ray to its impact buffer.
type RecordMode int

const (
	RecordNone RecordMode = iota
	RecordOnEntry
	RecordOnExit
)

// SurfaceErrorMap is a rectangular grid of height errors plus an
// interpolator.
type SurfaceErrorMap struct {
	Xmin, Xmax, Ymin, Ymax float64
	Nx, Ny                 int
	Heights                []float64 // row-major, Nx*Ny
}

// heightAndGradient bilinearly interpolates the height and its gradient
// at (x,y); points outside the map's rectangle are clamped to the edge.
func (m *SurfaceErrorMap) heightAndGradient(x, y float64) (h, gx, gy float64) {
	if m == nil || m.Nx < 2 || m.Ny < 2 {
		return 0, 0, 0
	}
	u := clamp((x-m.Xmin)/(m.Xmax-m.Xmin), 0, 1) * float64(m.Nx-1)
	v := clamp((y-m.Ymin)/(m.Ymax-m.Ymin), 0, 1) * float64(m.Ny-1)
	i0 := int(u)
	j0 := int(v)
	if i0 > m.Nx-2 {
		i0 = m.Nx - 2
	}
	if j0 > m.Ny-2 {
		j0 = m.Ny - 2
	}
	fu := u - float64(i0)
	fv := v - float64(j0)

	at := func(i, j int) float64 { return m.Heights[j*m.Nx+i] }
	h00, h10, h01, h11 := at(i0, j0), at(i0+1, j0), at(i0, j0+1), at(i0+1, j0+1)

	h = (1-fu)*(1-fv)*h00 + fu*(1-fv)*h10 + (1-fu)*fv*h01 + fu*fv*h11
	dx := m.Xmax - m.Xmin
	dy := m.Ymax - m.Ymin
	gx = ((h10-h00)*(1-fv) + (h11-h01)*fv) / (dx / float64(m.Nx-1))
	gy = ((h01-h00)*(1-fu) + (h11-h10)*fu) / (dy / float64(m.Ny-1))
	return
}

// ErrorApplyMethod selects how a surface-error map perturbs a ray
// during propagation: method 1 displaces the intercept along the
// unperturbed normal; method 2 tilts the normal only.
type ErrorApplyMethod int

const (
	ErrorApplyDisplace ErrorApplyMethod = iota
	ErrorApplyTiltOnly
)

// CoatingTable looks up (rs, rp) Fresnel reflectivity amplitudes for a
// named coating entry at a given wavelength and local incidence angle.
// The full reflectivity library lives outside this module; this
// interface plus the in-memory implementation in coating.go is enough
// to drive the transmissive Fresnel update end to end.
type CoatingTable interface {
	Reflectivity(table, entry string, wavelength, incidenceAngle float64) (rs, rp complex128, ok bool)
}

// Aperture reports whether a local surface point lies within the
// element's clear aperture; the rectangular/elliptical implementations
// in aperture.go stand in for the full region library.
type Aperture interface {
	Contains(localX, localY float64) bool
}

// SurfaceData is the recording layer embedded by every element kind
// (Mirror, Film, Grating, and the sources).
type SurfaceData struct {
	*Element

	// impactsMu guards Impacts against concurrent RecordImpact calls
	// when rays are propagated through a pond worker pool (see
	// propagate.go); single-threaded callers pay an uncontended lock.
	impactsMu sync.Mutex

	Mode    RecordMode
	Impacts []Ray

	ErrorMap    *SurfaceErrorMap
	ErrorMethod ErrorApplyMethod

	CoatingTable string
	CoatingEntry string

	ApertureEnabled bool
	ApertureRegion  Aperture
}

func NewSurfaceData(e *Element, mode RecordMode) *SurfaceData {
	return &SurfaceData{Element: e, Mode: mode}
}

// RecordImpact appends a copy of ray to the impact buffer if alive (or
// unconditionally for RecordOnEntry ray-death bookkeeping, handled by
// the caller in propagate.go).
func (s *SurfaceData) RecordImpact(r Ray) {
	s.impactsMu.Lock()
	s.Impacts = append(s.Impacts, r)
	s.impactsMu.Unlock()
}

// ClearImpacts empties the impact buffer; impacts otherwise accumulate
// across radiate calls until the element is destroyed.
func (s *SurfaceData) ClearImpacts() {
	s.impactsMu.Lock()
	s.Impacts = s.Impacts[:0]
	s.impactsMu.Unlock()
}

func (s *SurfaceData) SetErrorGenerator(m *SurfaceErrorMap, method ErrorApplyMethod) {
	s.ErrorMap = m
	s.ErrorMethod = method
}

// SetSurfaceErrors installs an externally provided height-error map
// over [xmin,xmax]x[ymin,ymax].
func (s *SurfaceData) SetSurfaceErrors(xmin, xmax, ymin, ymax float64, nx, ny int, heights []float64) error {
	if xmax <= xmin || ymax <= ymin {
		return newErr(ErrInvalidArgument, s.Name, "", "surface error bounds are inverted")
	}
	if nx < 2 || ny < 2 || len(heights) != nx*ny {
		return newErr(ErrInvalidArgument, s.Name, "", "surface error map dimensions do not match the height buffer")
	}
	s.ErrorMap = &SurfaceErrorMap{Xmin: xmin, Xmax: xmax, Ymin: ymin, Ymax: ymax, Nx: nx, Ny: ny, Heights: heights}
	return nil
}

func (s *SurfaceData) UnsetSurfaceErrors() {
	s.ErrorMap = nil
}

func (s *SurfaceData) SetCoating(table, entry string) {
	s.CoatingTable = table
	s.CoatingEntry = entry
}
