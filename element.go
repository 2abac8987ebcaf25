package optix

import (
	"math"
	"math/rand"

	"github.com/soniakeys/unit"
)

// ElementID is a stable, non-reusable handle into the System registry.
// Neighbour links carry IDs rather than pointers, so deleting an
// element never leaves a dangling reference.
type ElementID int

const InvalidElementID ElementID = -1

// ElementKind tags which interaction behaviour an Element carries.
type ElementKind int

const (
	KindMirror ElementKind = iota
	KindFilm
	KindGrating
	KindSource
)

// Element carries identity, chain position, the parameter dictionary,
// the transmissive/reflective flag, the aligned flag and the six
// cached transforms computed at alignment time.
type Element struct {
	Name  string
	Class string // runtime-class tag, e.g. "Mirror<Sphere>"
	Kind  ElementKind

	Prev, Next, Parent ElementID

	Params *Dictionary

	Transmissive bool
	Aligned      bool

	ExitFrame               Affine
	SurfaceDirect           Affine
	SurfaceInverse          Affine
	FrameDirect             Mat3
	FrameInverse            Mat3
	TranslationFromPrevious Vec3

	// entranceInv maps lab orientation back to the upstream exit frame,
	// for recording impacts in the entrance (pre-interaction) frame.
	entranceInv Mat3

	Shape   Shape
	Pattern Pattern // nil unless Kind == KindGrating

	SourceVariant SourceKind // meaningful only when Kind == KindSource
	Rng           *rand.Rand // process-seeded CSPRNG, gaussian source kinds only
}

// NewElement constructs a bare Element with the standard alignment
// parameter set installed; callers add shape/source/grating-specific
// parameters on top.
func NewElement(name, class string, kind ElementKind, transmissive bool) *Element {
	d := NewDictionary()
	standardAlignmentParams(d)
	return &Element{
		Name:           name,
		Class:          class,
		Kind:           kind,
		Prev:           InvalidElementID,
		Next:           InvalidElementID,
		Parent:         InvalidElementID,
		Params:         d,
		Transmissive:   transmissive,
		ExitFrame:      IdentityAffine,
		SurfaceDirect:  IdentityAffine,
		SurfaceInverse: IdentityAffine,
		FrameDirect:    Identity3,
		FrameInverse:   Identity3,
		entranceInv:    Identity3,
	}
}

func (e *Element) paramOr(name string, def float64) float64 {
	if p, ok := e.Params.Get(name); ok {
		return p.Value.Value
	}
	return def
}

// angleOr is paramOr for a UnitAngle parameter, returning a
// soniakeys/unit Angle rather than a bare float64 so the alignment math
// below carries the angle unit as a type, not just a convention.
func (e *Element) angleOr(name string, def float64) unit.Angle {
	if p, ok := e.Params.Get(name); ok {
		return p.AsAngle()
	}
	return unit.Angle(def)
}

// upstreamExitFrame is supplied by the registry when aligning a chain
// (an element cannot see its neighbours' Element structs directly,
// since those live in the registry's arena).
type upstreamExitFrame struct {
	hasUpstream bool
	frame       Affine
}

// flipSurfaceFrame maps the surface-definition frame onto the local
// computation frame of a reflective element: surface X (the dispersion
// direction) goes to local Z, surface Y to local X and the surface
// normal Z to local Y, so the tilted normal faces the incoming beam at
// grazing incidence.
var flipSurfaceFrame = Mat3{{0, 1, 0}, {0, 0, 1}, {1, 0, 0}}

// SetupTransforms computes the exit frame, the surface direct/inverse
// pair, the frame direct/inverse pair and the translation from the
// previous element. For reflective gratings it additionally solves
// chi/omega so the grating equation is satisfied at the chief-ray
// wavelength for the alignment order.
func (e *Element) SetupTransforms(wavelength float64, upstream upstreamExitFrame) error {
	labRot := Identity3
	var labTrans Vec3
	if upstream.hasUpstream {
		labRot = upstream.frame.Rotation
		labTrans = upstream.frame.Translation
	}

	distance := e.paramOr("distance", 0)
	theta := e.angleOr("theta", 0)
	phi := e.angleOr("phi", 0)
	psi := e.angleOr("psi", 0)
	dtheta := e.angleOr("Dtheta", 0)
	dphi := e.angleOr("Dphi", 0)
	dpsi := e.angleOr("Dpsi", 0)
	dx := e.paramOr("DX", 0)
	dy := e.paramOr("DY", 0)
	dz := e.paramOr("DZ", 0)

	// 1. chief ray along the upstream exit direction, advanced by
	// distance, rebased; the rebased origin is translation_from_previous.
	chief := NewRay(Vec3{}, labRot.MulVec(Vec3{0, 0, 1}), 0)
	chief.Advance(distance)
	chief.Rebase()
	e.TranslationFromPrevious = chief.Origin

	// 2. exit_frame rotation: Rz(phi), then Rx(-2*theta) for reflective
	// elements only; transmissive surfaces do not redirect the chief
	// ray here. Positive theta deflects toward +Y when phi=0.
	exitRot := labRot.Mul(Rz(phi.Rad()))
	if !e.Transmissive {
		exitRot = exitRot.Mul(Rx(-2 * theta.Rad()))
	}
	e.ExitFrame = Affine{Rotation: exitRot, Translation: labTrans.Add(e.TranslationFromPrevious)}
	e.FrameDirect = exitRot
	e.FrameInverse = exitRot.Transpose()
	e.entranceInv = labRot.Transpose()

	// 3. surface_direct: Rz(phi+Dphi+chi), Rx(-(theta+Dtheta+omega)),
	// flip-to-normal-along-Y for reflective surfaces, Rz(psi+Dpsi),
	// pre-translated by (DX,DY,DZ). chi and omega are zero except on
	// reflective gratings, where they orient the surface so the chief
	// ray diffracted at the alignment order leaves along the exit frame.
	var chi, omega float64
	if e.Kind == KindGrating && !e.Transmissive {
		var err error
		chi, omega, err = e.solveGratingAngles(wavelength, theta.Rad(), psi.Rad())
		if err != nil {
			e.Aligned = false
			return err
		}
	}
	rot := labRot.Mul(Rz((phi + dphi).Rad() + chi)).Mul(Rx(-((theta + dtheta).Rad() + omega)))
	if !e.Transmissive {
		rot = rot.Mul(flipSurfaceFrame)
	}
	rot = rot.Mul(Rz((psi + dpsi).Rad()))
	surfaceDirect := Affine{Rotation: rot, Translation: Vec3{dx, dy, dz}}
	e.SurfaceDirect = surfaceDirect
	e.SurfaceInverse = surfaceDirect.Inverse()

	e.Aligned = true
	return nil
}

// solveGratingAngles computes the conical (chi) and tangential (omega)
// alignment corrections of a reflective grating:
// G = Flip . R_psi . g(0) . n . lambda_align / (2 sin theta), then
// chi = asin(Gx), omega = asin(Gz). With
// omega folded into the theta rotation, the chief ray diffracted at
// the alignment order makes exactly the 2*theta deviation angle.
// Returns AlignmentFailure if |Gx|>1 or |Gz|>1.
func (e *Element) solveGratingAngles(wavelength, theta, psi float64) (chi, omega float64, err error) {
	if e.Pattern == nil {
		return 0, 0, nil
	}
	orderAlign := e.paramOr("order_align", 1)
	lineDensity := e.Pattern.LineDensityAt(Vec3{}, Vec3{0, 0, 1})
	g := flipSurfaceFrame.Mul(Rz(psi)).MulVec(lineDensity)
	G := g.Scale(orderAlign * wavelength / (2 * math.Sin(theta)))

	if math.IsNaN(G.X) || math.IsNaN(G.Z) || math.Abs(G.X) > 1 || math.Abs(G.Z) > 1 {
		return 0, 0, newErr(ErrAlignmentFailure, e.Name, "", "grating cannot diffract the requested order at this wavelength")
	}
	chi = math.Asin(G.X)
	omega = math.Asin(G.Z)
	return chi, omega, nil
}

// toExitFrame re-expresses a lab-oriented ray, origin relative to this
// element, in the element's aligned exit frame (the frame impacts are
// recorded in for RecordOnExit).
func (e *Element) toExitFrame(r Ray) Ray {
	r.Origin = e.FrameInverse.MulVec(r.Origin)
	r.Direction = e.FrameInverse.MulVec(r.Direction)
	r.SRef = e.FrameInverse.MulVec(r.SRef)
	return r
}

// toEntranceFrame is toExitFrame's counterpart for RecordOnEntry: the
// entrance frame of an element is the exit frame of its predecessor.
func (e *Element) toEntranceFrame(r Ray) Ray {
	r.Origin = e.entranceInv.MulVec(r.Origin)
	r.Direction = e.entranceInv.MulVec(r.Direction)
	r.SRef = e.entranceInv.MulVec(r.SRef)
	return r
}
