package optix

// PolyBasis selects the bivariate basis a PolynomialSurface is expressed
// in: natural monomials or Legendre polynomials over the surface's
// definition rectangle.
type PolyBasis int

const (
	BasisNatural PolyBasis = iota
	BasisLegendre
)

// legendreP evaluates the Legendre polynomials P_0..P_n at x in [-1,1],
// via the standard three-term recurrence.
func legendreP(n int, x float64) []float64 {
	p := make([]float64, n+1)
	p[0] = 1
	if n == 0 {
		return p
	}
	p[1] = x
	for k := 2; k <= n; k++ {
		kf := float64(k)
		p[k] = ((2*kf-1)*x*p[k-1] - (kf-1)*p[k-2]) / kf
	}
	return p
}

// legendreDP evaluates the first derivatives of P_0..P_n at x.
func legendreDP(n int, x float64) []float64 {
	p := legendreP(n, x)
	dp := make([]float64, n+1)
	dp[0] = 0
	for k := 1; k <= n; k++ {
		kf := float64(k)
		if x == 1 {
			dp[k] = kf * (kf + 1) / 2
			continue
		}
		if x == -1 {
			sign := 1.0
			if k%2 == 0 {
				sign = -1
			}
			dp[k] = sign * kf * (kf + 1) / 2
			continue
		}
		dp[k] = kf / (x*x - 1) * (x*p[k] - p[k-1])
	}
	return dp
}

// legendreD2P evaluates the second derivatives of P_0..P_n at x via a
// central finite difference of legendreDP; exact closed forms exist but
// the basis orders used here (<=~10) make this adequately precise and
// much simpler to keep correct.
func legendreD2P(n int, x float64) []float64 {
	const h = 1e-5
	xp := x + h
	xm := x - h
	if xp > 1 {
		xp = 1
	}
	if xm < -1 {
		xm = -1
	}
	dp1 := legendreDP(n, xp)
	dp2 := legendreDP(n, xm)
	d2 := make([]float64, n+1)
	denom := xp - xm
	for k := 0; k <= n; k++ {
		if denom == 0 {
			d2[k] = 0
			continue
		}
		d2[k] = (dp1[k] - dp2[k]) / denom
	}
	return d2
}

// naturalPow returns x^0..x^n.
func naturalPow(n int, x float64) []float64 {
	p := make([]float64, n+1)
	p[0] = 1
	for k := 1; k <= n; k++ {
		p[k] = p[k-1] * x
	}
	return p
}

// naturalDPow returns d/dx(x^0..x^n).
func naturalDPow(n int, x float64) []float64 {
	p := make([]float64, n+1)
	for k := 1; k <= n; k++ {
		p[k] = float64(k) * pow(x, k-1)
	}
	return p
}

func naturalD2Pow(n int, x float64) []float64 {
	p := make([]float64, n+1)
	for k := 2; k <= n; k++ {
		p[k] = float64(k) * float64(k-1) * pow(x, k-2)
	}
	return p
}

func pow(x float64, n int) float64 {
	if n <= 0 {
		return 1
	}
	v := 1.0
	for i := 0; i < n; i++ {
		v *= x
	}
	return v
}
