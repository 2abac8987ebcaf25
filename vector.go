package optix

import "math"

// Vec3 is a plain 3-component vector used throughout the geometry layer.
// Kept as a value type (not gonum) since every shape/ray hot path needs
// it allocation-free; gonum.org/v1/gonum/mat is reserved for the
// eigendecomposition and least-squares fits where it earns its keep
// (see toroid.go, polynomial.go, diagnostics.go).
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Unit returns v scaled to unit length. The zero vector is returned
// unchanged rather than dividing by zero.
func (v Vec3) Unit() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// Mat3 is a row-major 3x3 matrix.
type Mat3 [3][3]float64

var Identity3 = Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

func (a Mat3) Mul(b Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += a[i][k] * b[k][j]
			}
			out[i][j] = s
		}
	}
	return out
}

// Transpose doubles as the inverse for the pure-rotation matrices this
// package builds (Rx/Ry/Rz and their products).
func (m Mat3) Transpose() Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[j][i]
		}
	}
	return out
}

// Rx, Ry, Rz build right-handed rotation matrices about the named axis,
// angles in radians.
func Rx(theta float64) Mat3 {
	c, s := math.Cos(theta), math.Sin(theta)
	return Mat3{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

func Ry(theta float64) Mat3 {
	c, s := math.Cos(theta), math.Sin(theta)
	return Mat3{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
}

func Rz(theta float64) Mat3 {
	c, s := math.Cos(theta), math.Sin(theta)
	return Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

// Affine is a rigid (or near-rigid) transform: rotation then translation,
// applied as out = Rotation*v + Translation.
type Affine struct {
	Rotation    Mat3
	Translation Vec3
}

var IdentityAffine = Affine{Rotation: Identity3}

func (a Affine) Apply(v Vec3) Vec3 {
	return a.Rotation.MulVec(v).Add(a.Translation)
}

// ApplyDirection applies only the rotation part, for direction vectors.
func (a Affine) ApplyDirection(v Vec3) Vec3 {
	return a.Rotation.MulVec(v)
}

// Inverse returns the inverse of a rigid transform (rotation assumed
// orthonormal, i.e. built from Rx/Ry/Rz products only).
func (a Affine) Inverse() Affine {
	rt := a.Rotation.Transpose()
	return Affine{
		Rotation:    rt,
		Translation: rt.MulVec(a.Translation).Scale(-1),
	}
}

func (a Affine) Compose(b Affine) Affine {
	return Affine{
		Rotation:    a.Rotation.Mul(b.Rotation),
		Translation: a.Rotation.MulVec(b.Translation).Add(a.Translation),
	}
}
