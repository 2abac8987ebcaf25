package optix

import "math"

// ShapeKind tags the variant held by an Element's shape payload, so
// dispatch is an explicit switch rather than type reflection.
type ShapeKind int

const (
	ShapePlane ShapeKind = iota
	ShapeSphere
	ShapeCylinder
	ShapeToroid
	ShapeConicCylinder
	ShapeRevolutionQuadric
	ShapeCone
	ShapeNaturalPoly
	ShapeLegendrePoly
)

// Shape is implemented by every surface-intercept solver. Intercept is
// expressed in the local computation frame: the caller maps between
// local and surface frames via Element.SurfaceDirect/SurfaceInverse.
// The returned normal is unit-norm and points toward the side the ray
// arrived from.
type Shape interface {
	Kind() ShapeKind
	Intercept(r *Ray) (position, normal Vec3, err error)
}

// PlaneShape solves origin_z + t*direction_z = 0; normal is Z.
type PlaneShape struct{}

func (PlaneShape) Kind() ShapeKind { return ShapePlane }

func (PlaneShape) Intercept(r *Ray) (Vec3, Vec3, error) {
	if !r.MoveToPlane(Plane{Z0: 0}) {
		return Vec3{}, Vec3{}, newErr(ErrRayLost, "", "", "ray parallel to plane")
	}
	pos := r.PositionAt(0)
	return pos, Vec3{0, 0, 1}, nil
}

// SphereShape is a sphere of radius R centred on the local Z axis at
// distance R from the origin (the usual optix convention: vertex at
// the local origin, centre at (0,0,R)).
type SphereShape struct{ R float64 }

func (SphereShape) Kind() ShapeKind { return ShapeSphere }

func (s SphereShape) quadric() Quadric {
	return Quadric{
		A: Identity3,
		B: Vec3{0, 0, -2 * s.R},
		C: 0,
	}
}

func (s SphereShape) Intercept(r *Ray) (Vec3, Vec3, error) {
	q := s.quadric()
	if !r.MoveToQuadric(q) {
		return Vec3{}, Vec3{}, newErr(ErrRayLost, "", "", "no real sphere intersection")
	}
	pos := r.PositionAt(0)
	normal := pos.Sub(Vec3{0, 0, s.R}).Unit()
	return pos, normal, nil
}

// CylinderShape is a cylinder of radius R with its axis along local X,
// vertex at the origin (axis at (x,0,R)).
type CylinderShape struct{ R float64 }

func (CylinderShape) Kind() ShapeKind { return ShapeCylinder }

func (c CylinderShape) quadric() Quadric {
	return Quadric{
		A: Mat3{{0, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		B: Vec3{0, 0, -2 * c.R},
		C: 0,
	}
}

func (c CylinderShape) Intercept(r *Ray) (Vec3, Vec3, error) {
	q := c.quadric()
	if !r.MoveToQuadric(q) {
		return Vec3{}, Vec3{}, newErr(ErrRayLost, "", "", "no real cylinder intersection")
	}
	pos := r.PositionAt(0)
	normal := Vec3{0, pos.Y, pos.Z - c.R}.Unit()
	return pos, normal, nil
}

// ConicCylinderShape generalises CylinderShape with a conic constant
// (parabolic/elliptical/hyperbolic cylinder base), solved as a quadric.
type ConicCylinderShape struct {
	R    float64 // base radius of curvature at the vertex
	Conv float64 // conic constant (kappa); 0 = circular cylinder
}

func (ConicCylinderShape) Kind() ShapeKind { return ShapeConicCylinder }

func (c ConicCylinderShape) quadric() Quadric {
	// z = y^2 / (R + sqrt(R^2 - (1+kappa) y^2)) linearised to the conic
	// form (1+kappa) z^2 - 2 R z + y^2 = 0 in the (y,z) plane.
	return Quadric{
		A: Mat3{{0, 0, 0}, {0, 1, 0}, {0, 0, 1 + c.Conv}},
		B: Vec3{0, 0, -2 * c.R},
		C: 0,
	}
}

func (c ConicCylinderShape) Intercept(r *Ray) (Vec3, Vec3, error) {
	q := c.quadric()
	if !r.MoveToQuadric(q) {
		return Vec3{}, Vec3{}, newErr(ErrRayLost, "", "", "no real conic-cylinder intersection")
	}
	pos := r.PositionAt(0)
	normal := Vec3{0, pos.Y, (1+c.Conv)*pos.Z - c.R}.Unit()
	return pos, normal, nil
}

// RevolutionQuadricShape is a conic of revolution about local Z
// (paraboloid/ellipsoid/hyperboloid of revolution), vertex at origin.
type RevolutionQuadricShape struct {
	R    float64
	Conv float64
}

func (RevolutionQuadricShape) Kind() ShapeKind { return ShapeRevolutionQuadric }

func (q RevolutionQuadricShape) quadric() Quadric {
	return Quadric{
		A: Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1 + q.Conv}},
		B: Vec3{0, 0, -2 * q.R},
		C: 0,
	}
}

func (rq RevolutionQuadricShape) Intercept(r *Ray) (Vec3, Vec3, error) {
	q := rq.quadric()
	if !r.MoveToQuadric(q) {
		return Vec3{}, Vec3{}, newErr(ErrRayLost, "", "", "no real quadric-of-revolution intersection")
	}
	pos := r.PositionAt(0)
	normal := Vec3{pos.X, pos.Y, (1+rq.Conv)*pos.Z - rq.R}.Unit()
	return pos, normal, nil
}

// ConeShape is a right circular cone of half-angle Alpha about local Z,
// apex at (0,0,-Apex).
type ConeShape struct {
	Alpha float64
	Apex  float64
}

func (ConeShape) Kind() ShapeKind { return ShapeCone }

func (c ConeShape) quadric() Quadric {
	t := math.Tan(c.Alpha)
	k := t * t
	return Quadric{
		A: Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, -k}},
		B: Vec3{0, 0, -2 * k * c.Apex},
		C: -k * c.Apex * c.Apex,
	}
}

func (c ConeShape) Intercept(r *Ray) (Vec3, Vec3, error) {
	q := c.quadric()
	if !r.MoveToQuadric(q) {
		return Vec3{}, Vec3{}, newErr(ErrRayLost, "", "", "no real cone intersection")
	}
	pos := r.PositionAt(0)
	t := math.Tan(c.Alpha)
	normal := Vec3{pos.X, pos.Y, -t * t * (pos.Z + c.Apex)}.Unit()
	return pos, normal, nil
}
