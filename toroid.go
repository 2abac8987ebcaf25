package optix

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// ToroidShape is a toroidal mirror/grating base: major (meridional)
// radius R about the local X axis, minor (sagittal) radius Rmin, vertex
// at the origin with outward normal +Z. Its implicit surface is
//
//	(sqrt((z-R)^2 + x^2) - (R-Rmin))^2 + y^2 - Rmin^2 = 0
//
// a quartic in (x,y,z). The common-point pencil of two conics reduces
// to 3x3 eigenproblems; that reduction classifies the degenerate cases
// here, while the intercept itself comes from the implicit quartic's
// real roots along the ray.
type ToroidShape struct {
	R    float64
	Rmin float64
}

func (ToroidShape) Kind() ShapeKind { return ShapeToroid }

// zeroEigenTolRatio bounds the ratio of the next-smallest to the
// zero-assumed eigenvalue of the pencil; beyond it the solver reports
// a hard numerical failure.
const zeroEigenTolRatio = 1e12

// pencilConics builds the two conic matrices (as homogeneous 4x4 forms,
// represented here as 3x3 + linear + constant, matching Quadric) whose
// common real intersections are candidate base points of the toroid
// pencil. M1 carries the quartic's "sphere-like" part, M2
// the "cylinder-like" part; their generalised eigenvalues are the roots
// of the resolvent cubic det(M1 - lambda*M2) = 0.
func (t ToroidShape) pencilConics() (m1, m2 Quadric) {
	Rm := t.Rmin
	Rmaj := t.R
	m1 = Quadric{
		A: Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		B: Vec3{0, 0, -2 * Rm},
		C: Rm*Rm - (Rmaj-Rm)*(Rmaj-Rm),
	}
	m2 = Quadric{
		A: Mat3{{1, 0, 0}, {0, 0, 0}, {0, 0, 1}},
		B: Vec3{0, 0, -2 * Rm},
		C: Rm * Rm,
	}
	return
}

// resolventRoots returns the three roots (real or complex) of the cubic
// det(M1 - lambda*M2) = 0 for the 3x3 symmetric pencil, via the closed
// form cubic solution (Cardano's formula in trigonometric form).
func resolventRoots(m1, m2 Quadric) []complex128 {
	// det(A1 - lambda*A2) as a cubic a3*l^3+a2*l^2+a1*l+a0.
	at := func(l float64) float64 {
		var m Mat3
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				m[i][j] = m1.A[i][j] - l*m2.A[i][j]
			}
		}
		return det3(m)
	}
	// Sample at 4 points and fit the cubic via finite differences
	// (Lagrange over {-1,0,1,2}) since det3 is already cubic in l.
	xs := []float64{-1, 0, 1, 2}
	ys := make([]float64, 4)
	for i, x := range xs {
		ys[i] = at(x)
	}
	// Newton divided differences -> coefficients of p(l) = a0+a1 l+a2 l^2+a3 l^3.
	a3 := (ys[3] - 3*ys[2] + 3*ys[1] - ys[0]) / 6
	a2 := (ys[2] - 2*ys[1] + ys[0]) / 2
	a1 := ys[1] - ys[0] - a2 - a3
	a0 := ys[0]
	return cubicRoots(a3, a2, a1, a0)
}

func det3(m Mat3) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// cubicRoots solves a3*x^3+a2*x^2+a1*x+a0=0, returning all three roots
// (possibly a complex-conjugate pair).
func cubicRoots(a3, a2, a1, a0 float64) []complex128 {
	if math.Abs(a3) < 1e-300 {
		// Degenerates to quadratic; unexpected for this pencil but
		// handled defensively rather than panicking.
		a3 = 1e-300
	}
	b := a2 / a3
	c := a1 / a3
	d := a0 / a3

	p := c - b*b/3
	q := 2*b*b*b/27 - b*c/3 + d

	roots := make([]complex128, 3)
	disc := q*q/4 + p*p*p/27
	if disc >= 0 {
		sq := math.Sqrt(disc)
		u := math.Cbrt(-q/2 + sq)
		v := math.Cbrt(-q/2 - sq)
		r1 := u + v - b/3
		roots[0] = complex(r1, 0)
		re := -(u+v)/2 - b/3
		im := (u - v) * math.Sqrt(3) / 2
		roots[1] = complex(re, im)
		roots[2] = complex(re, -im)
	} else {
		// three real roots, trigonometric form
		r := math.Sqrt(-p * p * p / 27)
		phi := math.Acos(clamp(-q/(2*r), -1, 1))
		m := 2 * math.Sqrt(-p/3)
		roots[0] = complex(m*math.Cos(phi/3)-b/3, 0)
		roots[1] = complex(m*math.Cos((phi+2*math.Pi)/3)-b/3, 0)
		roots[2] = complex(m*math.Cos((phi+4*math.Pi)/3)-b/3, 0)
	}
	return roots
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// realEigenBranch finds a real symmetric eigendecomposition of
// M1 - lambda*M2 at the given real lambda, used to classify the zero
// eigenvalue (the degenerate direction) against zeroEigenTolRatio.
// Returns the sorted eigenvalues.
func realEigenBranch(m1, m2 Quadric, lambda float64) []float64 {
	var diff mat.SymDense
	data := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			data[i*3+j] = m1.A[i][j] - lambda*m2.A[i][j]
		}
	}
	diff = *mat.NewSymDense(3, data)
	var eig mat.EigenSym
	ok := eig.Factorize(&diff, false)
	if !ok {
		return nil
	}
	return eig.Values(nil)
}

// quarticCoeffs builds the coefficients (descending, a4..a0) of the
// quartic in the ray parameter t that the toroid's implicit equation
// reduces to along the line P(t) = Origin + t*Direction. Squaring
// (s-K)^2+y^2-Rmin^2=0 (s=sqrt((z-R)^2+x^2), K=R-Rmin) to eliminate
// the square root gives 4*K^2*u(t) - w(t)^2 = 0, with u(t)=(z-R)^2+x^2
// and w(t)=u(t)+y(t)^2+K^2-Rmin^2 both quadratic in t; w(t)^2 is the
// quartic term. Since w's t^2 coefficient is |Direction|^2 (==1 for a
// normalised ray direction), a4 is never zero for a live ray.
func (t ToroidShape) quarticCoeffs(r *Ray) (a4, a3, a2, a1, a0 float64) {
	K := t.R - t.Rmin
	Ox, Oy, Oz := r.Origin.X, r.Origin.Y, r.Origin.Z
	Dx, Dy, Dz := r.Direction.X, r.Direction.Y, r.Direction.Z
	zz0 := Oz - t.R

	u2 := Dz*Dz + Dx*Dx
	u1 := 2*zz0*Dz + 2*Ox*Dx
	u0 := zz0*zz0 + Ox*Ox

	w2 := u2 + Dy*Dy
	w1 := u1 + 2*Oy*Dy
	w0 := u0 + Oy*Oy + K*K - t.Rmin*t.Rmin

	a4 = -(w2 * w2)
	a3 = -2 * w2 * w1
	a2 = 4*K*K*u2 - (w1*w1 + 2*w2*w0)
	a1 = 4*K*K*u1 - 2*w1*w0
	a0 = 4*K*K*u0 - w0*w0
	return
}

// quarticRealRoots returns the real roots of the monic quartic
// y^4+b y^3+c y^2+d y+e=0 via Ferrari's method: depress to
// y^4+p y^2+q y+r=0, solve the resolvent cubic for a real m, then
// factor into two real quadratics. Falls back to the biquadratic split
// when q is already negligible, since the resolvent cubic degenerates
// there.
func quarticRealRoots(b, c, d, e float64) []float64 {
	p := c - 3*b*b/8
	q := b*b*b/8 - b*c/2 + d
	r := -3*b*b*b*b/256 + b*b*c/16 - b*d/4 + e

	shift := func(ys []float64) []float64 {
		out := make([]float64, len(ys))
		for i, y := range ys {
			out[i] = y - b/4
		}
		return out
	}

	if math.Abs(q) < 1e-12 {
		disc := p*p - 4*r
		if disc < 0 {
			return nil
		}
		sq := math.Sqrt(disc)
		var ys []float64
		for _, y2 := range []float64{(-p + sq) / 2, (-p - sq) / 2} {
			if y2 >= 0 {
				sy := math.Sqrt(y2)
				ys = append(ys, sy, -sy)
			}
		}
		return shift(ys)
	}

	cubic := cubicRoots(1, p, p*p/4-r, -q*q/8)
	m := math.Inf(-1)
	for _, root := range cubic {
		if math.Abs(imag(root)) < 1e-7 && real(root) > m {
			m = real(root)
		}
	}
	if m <= 0 {
		m = 1e-12
	}

	sq2m := math.Sqrt(2 * m)
	var ys []float64
	quad := func(qa, qb, qc float64) {
		disc := qb*qb - 4*qa*qc
		if disc < 0 {
			return
		}
		sq := math.Sqrt(disc)
		ys = append(ys, (-qb+sq)/(2*qa), (-qb-sq)/(2*qa))
	}
	quad(1, sq2m, p/2+m-q/(2*sq2m))
	quad(1, -sq2m, p/2+m+q/(2*sq2m))
	return shift(ys)
}

// polishRoot refines a quartic-derived seed t0 against the exact
// implicit quartic with Newton-Raphson, the same step used by the
// final polish in Intercept. Returns ok=false if the iteration diverges
// or the residual stays too large to trust.
func (t ToroidShape) polishRoot(r *Ray, t0 float64) (float64, bool) {
	tParam := t0
	for i := 0; i < 20; i++ {
		p := r.Origin.Add(r.Direction.Scale(tParam))
		f := t.implicitF(p)
		grad := t.gradient(p)
		g := r.Direction.Dot(grad)
		if math.Abs(g) < 1e-15 {
			return 0, false
		}
		dt := -f / g
		tParam += dt
		if math.Abs(dt) < 1e-11 {
			return tParam, true
		}
	}
	p := r.Origin.Add(r.Direction.Scale(tParam))
	return tParam, math.Abs(t.implicitF(p)) < 1e-7
}

// implicitF evaluates the toroid's implicit quartic at a point.
func (t ToroidShape) implicitF(p Vec3) float64 {
	s := math.Sqrt((p.Z-t.R)*(p.Z-t.R) + p.X*p.X)
	term := s - (t.R - t.Rmin)
	return term*term + p.Y*p.Y - t.Rmin*t.Rmin
}

func (t ToroidShape) gradient(p Vec3) Vec3 {
	const h = 1e-6
	fx := (t.implicitF(Vec3{p.X + h, p.Y, p.Z}) - t.implicitF(Vec3{p.X - h, p.Y, p.Z})) / (2 * h)
	fy := (t.implicitF(Vec3{p.X, p.Y + h, p.Z}) - t.implicitF(Vec3{p.X, p.Y - h, p.Z})) / (2 * h)
	fz := (t.implicitF(Vec3{p.X, p.Y, p.Z + h}) - t.implicitF(Vec3{p.X, p.Y, p.Z - h})) / (2 * h)
	return Vec3{fx, fy, fz}
}

// Intercept solves the toroid quartic along the ray: the pencil-of-
// conics resolvent first classifies the real/complex eigenvalue
// branches and reports ErrEigenFailure, a recoverable error rather
// than a hard process exit, when the zero-eigenvalue tolerance is
// exceeded. The intercept itself comes
// from enumerating the implicit quartic's real roots along the ray
// (quarticRealRoots), Newton-polishing each one, rejecting any that do
// not also satisfy the unsquared implicit equation (spurious roots
// introduced by squaring away the square root) or that lie behind the
// ray, and taking the smallest positive surviving parameter. ErrRayLost
// is reported when no root survives that filter.
func (t ToroidShape) Intercept(r *Ray) (Vec3, Vec3, error) {
	m1, m2 := t.pencilConics()
	roots := resolventRoots(m1, m2)

	var bestLambda float64
	foundReal := false
	for _, root := range roots {
		if math.Abs(imag(root)) < 1e-9 {
			bestLambda = real(root)
			foundReal = true
			break
		}
	}
	if !foundReal {
		// All-complex branch: fall back to the smallest-modulus root's
		// real part as a numerical seed for the Newton polish; a full
		// complex Hermitian eigendecomposition is not needed once we
		// only need a scalar seed for the quartic root-polish below.
		best := roots[0]
		for _, root := range roots[1:] {
			if cmplx.Abs(root) < cmplx.Abs(best) {
				best = root
			}
		}
		bestLambda = real(best)
	} else {
		eigs := realEigenBranch(m1, m2, bestLambda)
		if len(eigs) == 3 {
			// eigs sorted ascending by gonum; the "zero" branch should
			// be the smallest in magnitude.
			minAbs, nextAbs := math.Inf(1), math.Inf(1)
			for _, e := range eigs {
				a := math.Abs(e)
				if a < minAbs {
					nextAbs = minAbs
					minAbs = a
				} else if a < nextAbs {
					nextAbs = a
				}
			}
			if minAbs > 1e-300 && nextAbs/minAbs > zeroEigenTolRatio {
				return Vec3{}, Vec3{}, newErr(ErrEigenFailure, "", "", "toroid pencil zero-eigenvalue tolerance exceeded")
			}
		}
	}

	// Enumerate the real roots of the implicit quartic along the ray
	// (quarticCoeffs/quarticRealRoots) rather than Newton-walking from a
	// single sphere-quadric seed: the toroid
	// can present more than one candidate intercept, and the seed-walk
	// only ever finds whichever one it happens to converge to.
	a4, a3, a2, a1, a0 := t.quarticCoeffs(r)
	if math.Abs(a4) < 1e-300 {
		return Vec3{}, Vec3{}, newErr(ErrInterceptFailure, "", "", "degenerate toroid quartic (zero leading coefficient)")
	}
	seeds := quarticRealRoots(a3/a4, a2/a4, a1/a4, a0/a4)

	const epsAhead = 1e-9
	const residualTol = 1e-6
	bestT := math.Inf(1)
	found := false
	for _, seed := range seeds {
		tp, ok := t.polishRoot(r, seed)
		if !ok || tp <= epsAhead {
			continue
		}
		p := r.Origin.Add(r.Direction.Scale(tp))
		if math.Abs(t.implicitF(p)) > residualTol {
			// Squaring the original sqrt equation can manufacture roots
			// that do not map back to the real toroid surface; reject
			// any candidate that does not also zero the unsquared form.
			continue
		}
		// Tie-break: the smallest positive parameter among the
		// candidates that survive the checks above.
		if tp < bestT {
			bestT = tp
			found = true
		}
	}
	if !found {
		return Vec3{}, Vec3{}, newErr(ErrRayLost, "", "", "toroid quartic has no real intersection ahead of the ray")
	}

	p := r.Origin.Add(r.Direction.Scale(bestT))
	normal := t.gradient(p).Unit().Scale(-1)
	r.Distance = bestT
	return p, normal, nil
}
