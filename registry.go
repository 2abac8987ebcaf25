package optix

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// surfaceHolder lets every element-kind wrapper (Mirror, Film, Grating)
// and the bare *SurfaceData returned by the Source constructors present
// a uniform handle to the registry.
type surfaceHolder interface {
	base() *SurfaceData
}

func (s *SurfaceData) base() *SurfaceData { return s }
func (m *Mirror) base() *SurfaceData      { return m.SurfaceData }
func (f *Film) base() *SurfaceData        { return f.SurfaceData }
func (g *Grating) base() *SurfaceData     { return g.SurfaceData }

// System is the registry: name -> owned element, the set of valid
// handles, and the chain/alignment/radiate operations that act on them.
// Deletion of an element removes it from both maps and nulls dangling
// neighbour links.
type System struct {
	byName map[string]*SurfaceData
	byID   map[ElementID]*SurfaceData
	order  []string // insertion order, for deterministic iteration/persistence
	nextID ElementID

	Coating             CoatingTable
	ApertureEnabled     bool
	ReflectivityEnabled bool
	ErrorsEnabled       bool
}

func NewSystem() *System {
	return &System{
		byName: make(map[string]*SurfaceData),
		byID:   make(map[ElementID]*SurfaceData),
	}
}

// AddElement registers holder under name, failing if the name is
// already taken.
func (s *System) AddElement(name string, holder surfaceHolder) (ElementID, error) {
	if _, exists := s.byName[name]; exists {
		return InvalidElementID, newErr(ErrInvalidParameter, name, "", "duplicate element name")
	}
	sd := holder.base()
	sd.Name = name
	id := s.nextID
	s.nextID++
	s.byName[name] = sd
	s.byID[id] = sd
	s.order = append(s.order, name)
	return id, nil
}

// DeleteElement removes name, nulling the Prev/Next links of its
// neighbours and invalidating its handle.
func (s *System) DeleteElement(name string) error {
	sd, ok := s.byName[name]
	if !ok {
		return newErr(ErrInvalidHandle, name, "", "unknown element")
	}
	if prev, ok := s.byName[s.nameForID(sd.Prev)]; ok {
		prev.Next = InvalidElementID
	}
	if next, ok := s.byName[s.nameForID(sd.Next)]; ok {
		next.Prev = InvalidElementID
	}
	for id, v := range s.byID {
		if v == sd {
			delete(s.byID, id)
			break
		}
	}
	delete(s.byName, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *System) nameForID(id ElementID) string {
	sd, ok := s.byID[id]
	if !ok {
		return ""
	}
	return sd.Name
}

// NeighborNames returns the previous and next element names for name
// (empty string for either side with no neighbour), the public form of
// the Prev/Next links the persist package writes as its
// previous-name-or-empty / next-name-or-empty fields.
func (s *System) NeighborNames(name string) (prev, next string, err error) {
	sd, ok := s.byName[name]
	if !ok {
		return "", "", newErr(ErrInvalidHandle, name, "", "unknown element")
	}
	return s.nameForID(sd.Prev), s.nameForID(sd.Next), nil
}

// Get returns the element registered under name.
func (s *System) Get(name string) (*SurfaceData, bool) {
	sd, ok := s.byName[name]
	return sd, ok
}

// Elements returns every registered element in insertion order.
func (s *System) Elements() []*SurfaceData {
	out := make([]*SurfaceData, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.byName[n])
	}
	return out
}

// ClearImpacts empties name's impact buffer.
func (s *System) ClearImpacts(name string) error {
	sd, ok := s.byName[name]
	if !ok {
		return newErr(ErrInvalidHandle, name, "", "unknown element")
	}
	sd.ClearImpacts()
	return nil
}

// Names returns the registered element names, sorted, for deterministic
// enumeration at the FFI/persistence boundary.
func (s *System) Names() []string {
	names := lo.Keys(s.byName)
	sort.Strings(names)
	return names
}

// Sources returns the names of every registered source element, in no
// particular order.
func (s *System) Sources() []string {
	return lo.FilterMap(s.order, func(name string, _ int) (string, bool) {
		return name, s.byName[name].Kind == KindSource
	})
}

// Link establishes prev.Next == next and next.Prev == prev. Either
// endpoint may be "" to cut that side only.
func (s *System) Link(prevName, nextName string) error {
	var prev, next *SurfaceData
	var ok bool
	if prevName != "" {
		prev, ok = s.byName[prevName]
		if !ok {
			return newErr(ErrInvalidHandle, prevName, "", "unknown element")
		}
	}
	if nextName != "" {
		next, ok = s.byName[nextName]
		if !ok {
			return newErr(ErrInvalidHandle, nextName, "", "unknown element")
		}
	}
	if prev != nil {
		if err := s.wouldCycle(prev, next); err != nil {
			return err
		}
		if next != nil {
			prev.Next = s.idFor(next)
		} else {
			prev.Next = InvalidElementID
		}
	}
	if next != nil {
		if prev != nil {
			next.Prev = s.idFor(prev)
		} else {
			next.Prev = InvalidElementID
		}
	}
	return nil
}

func (s *System) idFor(sd *SurfaceData) ElementID {
	for id, v := range s.byID {
		if v == sd {
			return id
		}
	}
	return InvalidElementID
}

// wouldCycle walks forward from next and reports an error if it ever
// reaches prev; chains must stay acyclic.
func (s *System) wouldCycle(prev, next *SurfaceData) error {
	if next == nil {
		return nil
	}
	cur := next
	for i := 0; i < len(s.byName)+1; i++ {
		if cur == prev {
			return newErr(ErrInvalidParameter, prev.Name, "", "chain link would create a cycle")
		}
		nextID := cur.Next
		nv, ok := s.byID[nextID]
		if !ok {
			return nil
		}
		cur = nv
	}
	return newErr(ErrInvalidParameter, prev.Name, "", "chain link would create a cycle")
}

// Heads returns every chain head: an element whose previous is none
// and whose kind is a source.
func (s *System) Heads() []*SurfaceData {
	var heads []*SurfaceData
	for _, n := range s.order {
		sd := s.byName[n]
		if sd.Prev == InvalidElementID && sd.Kind == KindSource {
			heads = append(heads, sd)
		}
	}
	return heads
}

// AlignFromHere recursively aligns headName and every successor. It
// stops and returns the failing element's error, leaving aligned=false
// at and after the failure point.
func (s *System) AlignFromHere(headName string, wavelength float64) error {
	head, ok := s.byName[headName]
	if !ok {
		return newErr(ErrInvalidHandle, headName, "", "unknown element")
	}
	return s.alignChain(head, wavelength, upstreamExitFrame{})
}

func (s *System) alignChain(el *SurfaceData, wavelength float64, upstream upstreamExitFrame) error {
	if err := el.SetupTransforms(wavelength, upstream); err != nil {
		for cur, ok := el, true; ok; cur, ok = s.byID[cur.Next] {
			cur.Aligned = false
		}
		return err
	}
	next, ok := s.byID[el.Next]
	if !ok {
		return nil
	}
	return s.alignChain(next, wavelength, upstreamExitFrame{hasUpstream: true, frame: el.ExitFrame})
}

// SetParameter sets a scalar parameter by the registry's public API,
// invalidating the element's aligned state and, for shape/grating
// parameters that the geometry solvers read as plain struct fields
// (a sphere's radius and similar), resyncing the concrete Shape/Pattern
// value so the change takes effect on the next intercept.
func (s *System) SetParameter(name, param string, value float64) error {
	sd, ok := s.byName[name]
	if !ok {
		return newErr(ErrInvalidHandle, name, "", "unknown element")
	}
	if err := sd.Params.Set(param, value); err != nil {
		return err
	}
	sd.Aligned = false
	RefreshShape(sd.Element)
	RefreshPattern(sd.Element)
	return nil
}

// classTag renders the runtime-class name for an element
// (e.g. "Mirror<Sphere>", "Grating<Holo,Toroid>").
func classTag(kind ElementKind, shapeKind ShapeKind, patternKind PatternKind, sourceKind SourceKind) string {
	shapeName := shapeTagNames[shapeKind]
	switch kind {
	case KindMirror:
		return "Mirror<" + shapeName + ">"
	case KindFilm:
		return "Film<" + shapeName + ">"
	case KindGrating:
		return "Grating<" + patternTagNames[patternKind] + "," + shapeName + ">"
	case KindSource:
		return sourceTagNames[sourceKind]
	}
	return "Element"
}

var shapeTagNames = map[ShapeKind]string{
	ShapePlane:             "Plane",
	ShapeSphere:            "Sphere",
	ShapeCylinder:          "Cylinder",
	ShapeToroid:            "Toroid",
	ShapeConicCylinder:     "ConicCylinder",
	ShapeRevolutionQuadric: "RevolutionQuadric",
	ShapeCone:              "Cone",
	ShapeNaturalPoly:       "NaturalPoly",
	ShapeLegendrePoly:      "LegendrePoly",
}

var shapeTagsByName = lo.Invert(shapeTagNames)

var patternTagNames = map[PatternKind]string{
	PatternHolographic:  "Holo",
	PatternPolynomial1D: "Poly1D",
}

var patternTagsByName = lo.Invert(patternTagNames)

var sourceTagNames = map[SourceKind]string{
	SourceCartesianGrid:      "Source<XY,Grid>",
	SourcePolarGrid:          "Source<Radial,Grid>",
	SourceGaussian:           "Source<Gaussian>",
	SourceAstigmaticGaussian: "Source<Astigmatic,Gaussian>",
	SourceBMGaussian:         "Source<BMtype,Gaussian>",
}

var sourceTagsByName = lo.Invert(sourceTagNames)

// CreateElement is the element factory: creation is by runtime-class
// name, e.g. "Mirror<Sphere>", "Grating<Holo,Toroid>",
// "Source<Astigmatic,Gaussian>".
func (s *System) CreateElement(name, class string) (*SurfaceData, error) {
	if _, exists := s.byName[name]; exists {
		return nil, newErr(ErrInvalidParameter, name, "", "duplicate element name")
	}

	var sd *SurfaceData
	switch {
	case strings.HasPrefix(class, "Source<"):
		sk, ok := sourceTagsByName[class]
		if !ok {
			return nil, newErr(ErrInvalidParameter, name, "", "unknown source class "+class)
		}
		switch sk {
		case SourceCartesianGrid:
			sd = NewCartesianGridSource(name)
		case SourcePolarGrid:
			sd = NewPolarGridSource(name)
		case SourceGaussian:
			sd = NewGaussianSource(name)
		case SourceAstigmaticGaussian:
			sd = NewAstigmaticGaussianSource(name)
		case SourceBMGaussian:
			sd = NewBMGaussianSource(name)
		}
	case strings.HasPrefix(class, "Mirror<"):
		shapeName := strings.TrimSuffix(strings.TrimPrefix(class, "Mirror<"), ">")
		shapeKind, ok := shapeTagsByName[shapeName]
		if !ok {
			return nil, newErr(ErrInvalidParameter, name, "", "unknown shape "+shapeName)
		}
		m := NewMirror(name, class, defaultShape(shapeKind))
		defineShapeParams(m.Element, shapeKind)
		sd = m.SurfaceData
	case strings.HasPrefix(class, "Film<"):
		shapeName := strings.TrimSuffix(strings.TrimPrefix(class, "Film<"), ">")
		shapeKind, ok := shapeTagsByName[shapeName]
		if !ok {
			return nil, newErr(ErrInvalidParameter, name, "", "unknown shape "+shapeName)
		}
		f := NewFilm(name, class, defaultShape(shapeKind))
		defineShapeParams(f.Element, shapeKind)
		sd = f.SurfaceData
	case strings.HasPrefix(class, "Grating<"):
		inner := strings.TrimSuffix(strings.TrimPrefix(class, "Grating<"), ">")
		parts := strings.SplitN(inner, ",", 3)
		if len(parts) < 2 {
			return nil, newErr(ErrInvalidParameter, name, "", "malformed grating class "+class)
		}
		patternKind, ok := patternTagsByName[parts[0]]
		if !ok {
			return nil, newErr(ErrInvalidParameter, name, "", "unknown pattern "+parts[0])
		}
		shapeKind, ok := shapeTagsByName[parts[1]]
		if !ok {
			return nil, newErr(ErrInvalidParameter, name, "", "unknown shape "+parts[1])
		}
		// A grating is reflective by default; an explicit third segment
		// selects transmission, e.g. "Grating<Holo,Toroid,Transmit>".
		reflective := true
		if len(parts) == 3 {
			switch parts[2] {
			case "Reflect":
				reflective = true
			case "Transmit":
				reflective = false
			default:
				return nil, newErr(ErrInvalidParameter, name, "", "unknown grating mode "+parts[2])
			}
		}
		g := NewGrating(name, class, defaultShape(shapeKind), defaultPattern(patternKind), reflective)
		defineShapeParams(g.Element, shapeKind)
		definePatternParams(g.Element, patternKind)
		sd = g.SurfaceData
	default:
		return nil, newErr(ErrInvalidParameter, name, "", "unrecognised element class "+class)
	}

	id := s.nextID
	s.nextID++
	s.byName[name] = sd
	s.byID[id] = sd
	s.order = append(s.order, name)
	return sd, nil
}

func defaultShape(kind ShapeKind) Shape {
	switch kind {
	case ShapePlane:
		return PlaneShape{}
	case ShapeSphere:
		return SphereShape{R: 1}
	case ShapeCylinder:
		return CylinderShape{R: 1}
	case ShapeToroid:
		return ToroidShape{R: 1, Rmin: 0.1}
	case ShapeConicCylinder:
		return ConicCylinderShape{R: 1}
	case ShapeRevolutionQuadric:
		return RevolutionQuadricShape{R: 1}
	case ShapeCone:
		return ConeShape{Alpha: 0.1}
	case ShapeNaturalPoly:
		return PolynomialSurface{Basis: BasisNatural, Nx: 2, Ny: 2, Xmin: -1, Xmax: 1, Ymin: -1, Ymax: 1, Coeff: ArrayValue(3, 3, make([]float64, 9))}
	case ShapeLegendrePoly:
		return PolynomialSurface{Basis: BasisLegendre, Nx: 2, Ny: 2, Xmin: -1, Xmax: 1, Ymin: -1, Ymax: 1, Coeff: ArrayValue(3, 3, make([]float64, 9))}
	}
	return PlaneShape{}
}

func defaultPattern(kind PatternKind) Pattern {
	switch kind {
	case PatternHolographic:
		return HolographicPattern{RecordingWavelength: 4.13e-7}
	case PatternPolynomial1D:
		return Polynomial1DPattern{Degree: 1, Central: 1000, Coeff: []float64{0}}
	}
	return Polynomial1DPattern{Degree: 0, Central: 0}
}

// defineShapeParams installs the dictionary entries for a shape's
// geometric parameters, in the GroupShape bucket.
func defineShapeParams(e *Element, kind ShapeKind) {
	d := e.Params
	switch kind {
	case ShapeSphere, ShapeCylinder, ShapeRevolutionQuadric:
		d.Define("curvature", NewScalarParameter(1, 1e-9, 1e9, UnitInverseDistance, GroupShape, 0))
		if kind != ShapeSphere && kind != ShapeCylinder {
			d.Define("conic", NewScalarParameter(0, -1e3, 1e3, UnitNone, GroupShape, 0))
		}
	case ShapeConicCylinder:
		d.Define("curvature", NewScalarParameter(1, 1e-9, 1e9, UnitInverseDistance, GroupShape, 0))
		d.Define("conic", NewScalarParameter(0, -1e3, 1e3, UnitNone, GroupShape, 0))
	case ShapeToroid:
		d.Define("majorCurvature", NewScalarParameter(1, 1e-9, 1e9, UnitInverseDistance, GroupShape, 0))
		d.Define("minorCurvature", NewScalarParameter(10, 1e-9, 1e9, UnitInverseDistance, GroupShape, 0))
	case ShapeCone:
		d.Define("halfAngle", NewScalarParameter(0.1, -1.5, 1.5, UnitAngle, GroupShape, 0))
		d.Define("apex", NewScalarParameter(0, -1e6, 1e6, UnitDistance, GroupShape, 0))
	}
}

// RefreshShape rebuilds e.Shape from its dictionary's shape-group
// parameters, for the kinds whose geometry solver reads plain struct
// fields rather than the dictionary directly (see DESIGN.md). A field
// whose parameter is not in the dictionary keeps its current value.
func RefreshShape(e *Element) {
	switch sh := e.Shape.(type) {
	case SphereShape:
		e.Shape = SphereShape{R: 1 / e.paramOr("curvature", 1/sh.R)}
	case CylinderShape:
		e.Shape = CylinderShape{R: 1 / e.paramOr("curvature", 1/sh.R)}
	case ConicCylinderShape:
		e.Shape = ConicCylinderShape{R: 1 / e.paramOr("curvature", 1/sh.R), Conv: e.paramOr("conic", sh.Conv)}
	case RevolutionQuadricShape:
		e.Shape = RevolutionQuadricShape{R: 1 / e.paramOr("curvature", 1/sh.R), Conv: e.paramOr("conic", sh.Conv)}
	case ToroidShape:
		e.Shape = ToroidShape{R: 1 / e.paramOr("majorCurvature", 1/sh.R), Rmin: 1 / e.paramOr("minorCurvature", 1/sh.Rmin)}
	case ConeShape:
		e.Shape = ConeShape{Alpha: e.paramOr("halfAngle", sh.Alpha), Apex: e.paramOr("apex", sh.Apex)}
	default:
		_ = sh
	}
}

func definePatternParams(e *Element, kind PatternKind) {
	d := e.Params
	switch kind {
	case PatternHolographic:
		d.Define("recordingWavelength", NewScalarParameter(4.13e-7, 1e-10, 1e-3, UnitDistance, GroupGrating, FlagNotOptimisable))
		d.Define("lineDensity", NewScalarParameter(0, 0, 1e8, UnitInverseDistance, GroupGrating, 0))
		d.Define("inverseDist1", NewScalarParameter(0, -1e6, 1e6, UnitInverseDistance, GroupGrating, 0))
		d.Define("inverseDist2", NewScalarParameter(0, -1e6, 1e6, UnitInverseDistance, GroupGrating, 0))
		d.Define("elevationAngle1", NewScalarParameter(0, -math.Pi/2, math.Pi/2, UnitAngle, GroupGrating, 0))
		d.Define("elevationAngle2", NewScalarParameter(0, -math.Pi/2, math.Pi/2, UnitAngle, GroupGrating, 0))
		d.Define("azimuthAngle1", NewScalarParameter(0, -math.Pi, math.Pi, UnitAngle, GroupGrating, 0))
		d.Define("azimuthAngle2", NewScalarParameter(0, -math.Pi, math.Pi, UnitAngle, GroupGrating, 0))
	case PatternPolynomial1D:
		d.Define("centralDensity", NewScalarParameter(1000, 0, 1e8, UnitInverseDistance, GroupGrating, 0))
		d.Define("degree", NewScalarParameter(1, 0, 4, UnitNone, GroupGrating, FlagNotOptimisable))
		d.Define("coeff1", NewScalarParameter(0, -1e12, 1e12, UnitInverseDistanceSquared, GroupGrating, 0))
		d.Define("coeff2", NewScalarParameter(0, -1e12, 1e12, UnitInverseDistanceSquared, GroupGrating, 0))
		d.Define("coeff3", NewScalarParameter(0, -1e12, 1e12, UnitInverseDistanceSquared, GroupGrating, 0))
		d.Define("coeff4", NewScalarParameter(0, -1e12, 1e12, UnitInverseDistanceSquared, GroupGrating, 0))
	}
}

// RefreshPattern rebuilds e.Pattern from its dictionary's grating-group
// parameters, mirroring RefreshShape.
func RefreshPattern(e *Element) {
	switch p := e.Pattern.(type) {
	case HolographicPattern:
		p.RecordingWavelength = e.paramOr("recordingWavelength", p.RecordingWavelength)
		p.LineDensity = e.paramOr("lineDensity", p.LineDensity)
		p.C1 = sourcePoint{
			InvDistance: e.paramOr("inverseDist1", p.C1.InvDistance),
			Elevation:   e.paramOr("elevationAngle1", p.C1.Elevation),
			Azimuth:     e.paramOr("azimuthAngle1", p.C1.Azimuth),
		}
		p.C2 = sourcePoint{
			InvDistance: e.paramOr("inverseDist2", p.C2.InvDistance),
			Elevation:   e.paramOr("elevationAngle2", p.C2.Elevation),
			Azimuth:     e.paramOr("azimuthAngle2", p.C2.Azimuth),
		}
		e.Pattern = p
	case Polynomial1DPattern:
		p.Central = e.paramOr("centralDensity", p.Central)
		degree := int(e.paramOr("degree", float64(p.Degree)))
		if degree < 0 {
			degree = 0
		}
		if degree > 4 {
			degree = 4
		}
		coeff := make([]float64, degree)
		for k := 1; k <= degree; k++ {
			coeff[k-1] = e.paramOr("coeff"+strconv.Itoa(k), 0)
		}
		p.Degree = degree
		p.Coeff = coeff
		e.Pattern = p
	}
}
