package optix

import "math"

// nearParallelCos is the threshold on the absolute cosine between two ray
// directions above which MinimumDistanceTo reports them as parallel.
const nearParallelCos = 1 - 1e-10

// Ray is the base primitive: position, direction (unit-norm invariant),
// accumulated parameter along direction, liveness, wavelength and the
// two complex polarisation amplitudes plus the S-polarisation reference.
type Ray struct {
	Origin    Vec3
	Direction Vec3
	Distance  float64 // accumulated parameter along Direction
	Alive     bool
	Lambda    float64 // wavelength, metres

	AmpS complex128
	AmpP complex128
	SRef Vec3 // S-polarisation reference vector
}

// NewRay constructs a ray from an origin, a direction (normalised on
// construction) and an initial accumulated distance.
func NewRay(origin, direction Vec3, distance float64) Ray {
	return Ray{
		Origin:    origin,
		Direction: direction.Unit(),
		Distance:  distance,
		Alive:     true,
		AmpS:      1,
		AmpP:      0,
		SRef:      Vec3{1, 0, 0},
	}
}

// Normalize forces Direction back to unit length. Every method below
// that touches Direction calls this before returning so the unit-norm
// invariant never slips.
func (r *Ray) Normalize() {
	r.Direction = r.Direction.Unit()
}

// PositionAt returns origin + (distance+offset)*direction, per the
// invariant position_at(t) = origin + (distance + t)*direction.
func (r *Ray) PositionAt(offset float64) Vec3 {
	return r.Origin.Add(r.Direction.Scale(r.Distance + offset))
}

// Rebase sets origin := position_at(0); distance := 0, clearing the
// accumulated parameter.
func (r *Ray) Rebase() {
	r.Origin = r.PositionAt(0)
	r.Distance = 0
}

// Translate moves Origin by a lab-frame vector, in place.
func (r *Ray) Translate(delta Vec3) {
	r.Origin = r.Origin.Add(delta)
}

// Advance moves the accumulated parameter by offset along Direction.
func (r *Ray) Advance(offset float64) {
	r.Distance += offset
}

// ApplyAffine maps both origin and direction through T, renormalising
// the direction afterwards.
func (r *Ray) ApplyAffine(t Affine) {
	r.Origin = t.Apply(r.Origin)
	r.Direction = t.ApplyDirection(r.Direction)
	r.Normalize()
}

// Plane is the surface origin_z + t*direction_z = 0 expressed in
// whatever frame the caller supplies the ray in: only the Z offset of
// the plane from the local origin matters, carried here as Z0.
type Plane struct {
	Z0 float64
}

// MoveToPlane sets Distance to the unique intersection parameter, or
// marks the ray lost if it is parallel to the plane.
func (r *Ray) MoveToPlane(p Plane) bool {
	if math.Abs(r.Direction.Z) < 1e-15 {
		r.Alive = false
		return false
	}
	t := (p.Z0 - r.Origin.Z) / r.Direction.Z
	r.Distance = t
	return true
}

// Quadric is the homogeneous quadratic form x^T A x + b^T x + c = 0,
// A symmetric 3x3, used for Sphere/Cylinder/Cone/RevolutionQuadric and
// the conic-base cylinder.
type Quadric struct {
	A Mat3
	B Vec3
	C float64
}

// coeffs returns (a, b, c) of the scalar quadratic a*t^2 + b*t + c = 0
// obtained by substituting position_at(t) into the quadric.
func (q Quadric) coeffs(origin, dir Vec3) (a, b, c float64) {
	ad := q.A.MulVec(dir)
	ao := q.A.MulVec(origin)
	a = dir.Dot(ad)
	b = 2*dir.Dot(ao) + q.B.Dot(dir)
	c = origin.Dot(ao) + q.B.Dot(origin) + q.C
	return
}

// MoveToQuadric chooses the intersection of smaller absolute parameter
// among the two roots of the quadratic form, marking the ray lost if
// the discriminant is negative. The ray is first rebased to its point
// of closest approach to the surface-frame origin, so that "smaller
// absolute parameter" selects the intercept near the vertex and not a
// far hemisphere crossing at grazing incidence.
func (r *Ray) MoveToQuadric(q Quadric) bool {
	r.Distance = -r.Direction.Dot(r.Origin)
	r.Rebase()
	a, b, c := q.coeffs(r.Origin, r.Direction)
	if math.Abs(a) < 1e-15 {
		if math.Abs(b) < 1e-15 {
			r.Alive = false
			return false
		}
		r.Distance = -c / b
		return true
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		r.Alive = false
		return false
	}
	sq := math.Sqrt(disc)
	t1 := (-b + sq) / (2 * a)
	t2 := (-b - sq) / (2 * a)
	if math.Abs(t1) <= math.Abs(t2) {
		r.Distance = t1
	} else {
		r.Distance = t2
	}
	return true
}

// MinimumDistanceTo returns the shortest distance vector between this
// ray's line and other's, plus the two parameters at closest approach.
// If the rays are near-parallel (|cos angle| > nearParallelCos) both
// parameters are returned as +Inf.
func (r Ray) MinimumDistanceTo(other Ray) (gap Vec3, tSelf, tOther float64) {
	d1 := r.Direction
	d2 := other.Direction
	cos := d1.Dot(d2)
	if math.Abs(cos) > nearParallelCos {
		return Vec3{}, math.Inf(1), math.Inf(1)
	}

	w0 := r.Origin.Sub(other.Origin)
	a := d1.Dot(d1)
	b := d1.Dot(d2)
	c := d2.Dot(d2)
	d := d1.Dot(w0)
	e := d2.Dot(w0)

	denom := a*c - b*b
	tSelf = (b*e - c*d) / denom
	tOther = (a*e - b*d) / denom

	p1 := r.Origin.Add(d1.Scale(tSelf))
	p2 := other.Origin.Add(d2.Scale(tOther))
	gap = p1.Sub(p2)
	return
}
