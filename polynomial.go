package optix

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"
)

// PolynomialSurface is a bivariate expansion on either natural monomials
// or Legendre polynomials over a rectangle [Xmin,Xmax]x[Ymin,Ymax].
// Coeff is column-major, (Nx+1) rows by (Ny+1)
// cols: Coeff.At(i,j) is the coefficient of basis_x[i]*basis_y[j].
type PolynomialSurface struct {
	Basis                  PolyBasis
	Nx, Ny                 int
	Xmin, Xmax, Ymin, Ymax float64
	Coeff                  ParameterValue // IsArray, Rows=Nx+1, Cols=Ny+1
}

func (PolynomialSurface) Kind() ShapeKind {
	// Reported kind depends on Basis; callers needing the tag use
	// ShapeKindFor instead of a fixed constant, since PolynomialSurface
	// serves both ShapeNaturalPoly and ShapeLegendrePoly.
	return ShapeNaturalPoly
}

func (p PolynomialSurface) ShapeKindFor() ShapeKind {
	if p.Basis == BasisLegendre {
		return ShapeLegendrePoly
	}
	return ShapeNaturalPoly
}

// scale maps x in [Xmin,Xmax] to [-1,1] for Legendre evaluation; the
// natural basis is evaluated directly in the unscaled rectangle.
func (p PolynomialSurface) scaleX(x float64) float64 {
	return 2*(x-p.Xmin)/(p.Xmax-p.Xmin) - 1
}
func (p PolynomialSurface) scaleY(y float64) float64 {
	return 2*(y-p.Ymin)/(p.Ymax-p.Ymin) - 1
}

func (p PolynomialSurface) basisX(x float64) (val, d1, d2 []float64) {
	if p.Basis == BasisLegendre {
		u := p.scaleX(x)
		jac := 2 / (p.Xmax - p.Xmin)
		val = legendreP(p.Nx, u)
		d1raw := legendreDP(p.Nx, u)
		d2raw := legendreD2P(p.Nx, u)
		d1 = make([]float64, len(d1raw))
		d2 = make([]float64, len(d2raw))
		for i := range d1raw {
			d1[i] = d1raw[i] * jac
			d2[i] = d2raw[i] * jac * jac
		}
		return
	}
	return naturalPow(p.Nx, x), naturalDPow(p.Nx, x), naturalD2Pow(p.Nx, x)
}

func (p PolynomialSurface) basisY(y float64) (val, d1, d2 []float64) {
	if p.Basis == BasisLegendre {
		u := p.scaleY(y)
		jac := 2 / (p.Ymax - p.Ymin)
		val = legendreP(p.Ny, u)
		d1raw := legendreDP(p.Ny, u)
		d2raw := legendreD2P(p.Ny, u)
		d1 = make([]float64, len(d1raw))
		d2 = make([]float64, len(d2raw))
		for i := range d1raw {
			d1[i] = d1raw[i] * jac
			d2[i] = d2raw[i] * jac * jac
		}
		return
	}
	return naturalPow(p.Ny, y), naturalDPow(p.Ny, y), naturalD2Pow(p.Ny, y)
}

// Z evaluates the surface height at (x,y).
func (p PolynomialSurface) Z(x, y float64) float64 {
	bx, _, _ := p.basisX(x)
	by, _, _ := p.basisY(y)
	var z float64
	for i := 0; i <= p.Nx; i++ {
		for j := 0; j <= p.Ny; j++ {
			z += p.Coeff.At(i, j) * bx[i] * by[j]
		}
	}
	return z
}

// gradientAndCurvature returns grad z = (dz/dx, dz/dy, -1) convention
// and the Hessian [zxx zxy; zxy zyy] at (x,y).
func (p PolynomialSurface) gradientAndCurvature(x, y float64) (gx, gy, zxx, zxy, zyy float64) {
	bx, dbx, d2bx := p.basisX(x)
	by, dby, d2by := p.basisY(y)
	for i := 0; i <= p.Nx; i++ {
		for j := 0; j <= p.Ny; j++ {
			c := p.Coeff.At(i, j)
			gx += c * dbx[i] * by[j]
			gy += c * bx[i] * dby[j]
			zxx += c * d2bx[i] * by[j]
			zxy += c * dbx[i] * dby[j]
			zyy += c * bx[i] * d2by[j]
		}
	}
	return
}

// Intercept refines a z=0 starting intersection with Newton-Raphson:
// step with the third-order curvature-corrected update, cap at 20
// iterations, and fall back to a plain Newton step with a logged
// warning when the normalised step falls outside |gamma|<0.5.
func (p PolynomialSurface) Intercept(r *Ray) (Vec3, Vec3, error) {
	work := *r
	if !work.MoveToPlane(Plane{Z0: 0}) {
		return Vec3{}, Vec3{}, newErr(ErrRayLost, "", "", "ray parallel to polynomial surface base plane")
	}
	t := work.Distance

	const maxIter = 20
	for iter := 0; iter < maxIter; iter++ {
		pos := r.Origin.Add(r.Direction.Scale(t))
		zSurf := p.Z(pos.X, pos.Y)
		dz := zSurf - pos.Z

		if math.Abs(dz) < 1e-11 {
			gx, gy, _, _, _ := p.gradientAndCurvature(pos.X, pos.Y)
			normal := Vec3{-gx, -gy, 1}.Unit()
			r.Distance = t
			return pos, normal, nil
		}

		gx, gy, zxx, zxy, zyy := p.gradientAndCurvature(pos.X, pos.Y)
		grad := Vec3{-gx, -gy, 1}
		g := r.Direction.Dot(grad)
		if math.Abs(g) < 1e-15 {
			return Vec3{}, Vec3{}, newErr(ErrInterceptFailure, "", "", "zero gradient projection in polynomial intercept")
		}

		dirC := Vec3{
			zxx*r.Direction.X + zxy*r.Direction.Y,
			zxy*r.Direction.X + zyy*r.Direction.Y,
			0,
		}
		c := r.Direction.Dot(dirC)
		gamma := c * dz / (g * g)

		var dt float64
		if math.Abs(gamma) < 0.5 {
			dt = (dz / g) * (1 - gamma*(1-gamma*(2-5*gamma)))
		} else {
			log.Printf("polynomial intercept: curvature step out of range (gamma=%g), using plain Newton step", gamma)
			dt = dz / g
		}
		t += dt
	}
	return Vec3{}, Vec3{}, newErr(ErrInterceptFailure, "", "", "polynomial Newton-Raphson exceeded 20 iterations")
}

// FitHeights recovers coefficients from sampled heights by least
// squares, via gonum's QR solve.
func FitHeights(basis PolyBasis, nx, ny int, xmin, xmax, ymin, ymax float64, xs, ys, zs []float64) (PolynomialSurface, float64, error) {
	if len(xs) != len(ys) || len(xs) != len(zs) {
		return PolynomialSurface{}, 0, newErr(ErrInvalidArgument, "", "", "mismatched sample slice lengths")
	}
	surf := PolynomialSurface{Basis: basis, Nx: nx, Ny: ny, Xmin: xmin, Xmax: xmax, Ymin: ymin, Ymax: ymax}
	ncoef := (nx + 1) * (ny + 1)
	n := len(xs)

	design := mat.NewDense(n, ncoef, nil)
	for row := 0; row < n; row++ {
		bx, _, _ := surf.basisX(xs[row])
		by, _, _ := surf.basisY(ys[row])
		for i := 0; i <= nx; i++ {
			for j := 0; j <= ny; j++ {
				design.Set(row, j*(nx+1)+i, bx[i]*by[j])
			}
		}
	}
	target := mat.NewVecDense(n, zs)

	var qr mat.QR
	qr.Factorize(design)
	var coefVec mat.VecDense
	err := qr.SolveVecTo(&coefVec, false, target)
	if err != nil {
		return PolynomialSurface{}, 0, newErr(ErrInvalidArgument, "", "", "least-squares solve failed: "+err.Error())
	}

	coefData := make([]float64, ncoef)
	for i := 0; i < ncoef; i++ {
		coefData[i] = coefVec.AtVec(i)
	}
	surf.Coeff = ArrayValue(nx+1, ny+1, coefData)

	var resid float64
	for row := 0; row < n; row++ {
		z := surf.Z(xs[row], ys[row])
		d := z - zs[row]
		resid += d * d
	}
	rms := math.Sqrt(resid / float64(n))
	return surf, rms, nil
}

// FitSlopes recovers coefficients from sampled slopes (dz/dx, dz/dy) by
// least squares on the partial-derivative basis, with the constant term
// pinned to zero.
func FitSlopes(basis PolyBasis, nx, ny int, xmin, xmax, ymin, ymax float64, xs, ys, dzdx, dzdy []float64) (PolynomialSurface, error) {
	n := len(xs)
	surf := PolynomialSurface{Basis: basis, Nx: nx, Ny: ny, Xmin: xmin, Xmax: xmax, Ymin: ymin, Ymax: ymax}
	ncoef := (nx+1)*(ny+1) - 1 // constant term pinned to zero, excluded from the design matrix

	design := mat.NewDense(2*n, ncoef, nil)
	target := mat.NewVecDense(2*n, nil)
	for row := 0; row < n; row++ {
		bx, dbx, _ := surf.basisX(xs[row])
		byv, dby, _ := surf.basisY(ys[row])

		col := 0
		for i := 0; i <= nx; i++ {
			for j := 0; j <= ny; j++ {
				if i == 0 && j == 0 {
					continue
				}
				design.Set(row, col, dbx[i]*byv[j])
				design.Set(row+n, col, bx[i]*dby[j])
				col++
			}
		}
		target.SetVec(row, dzdx[row])
		target.SetVec(row+n, dzdy[row])
	}

	var qr mat.QR
	qr.Factorize(design)
	var coefVec mat.VecDense
	if err := qr.SolveVecTo(&coefVec, false, target); err != nil {
		return PolynomialSurface{}, newErr(ErrInvalidArgument, "", "", "slope least-squares solve failed: "+err.Error())
	}

	coefData := make([]float64, (nx+1)*(ny+1))
	col := 0
	for i := 0; i <= nx; i++ {
		for j := 0; j <= ny; j++ {
			if i == 0 && j == 0 {
				coefData[j*(nx+1)+i] = 0
				continue
			}
			coefData[j*(nx+1)+i] = coefVec.AtVec(col)
			col++
		}
	}
	surf.Coeff = ArrayValue(nx+1, ny+1, coefData)
	return surf, nil
}
