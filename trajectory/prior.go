package trajectory

import "math"

// PriorModel selects the Gauss-Markov prior placed on each of the six
// trajectory axes between knots (spec section 4.4).
type PriorModel int

const (
	// WhiteNoiseOnJerk drives each axis with zero-mean white noise on jerk
	// (constant-acceleration prior): Phi/Q have an exact closed form.
	WhiteNoiseOnJerk PriorModel = iota
	// Singer drives acceleration as a mean-reverting (Ornstein-Uhlenbeck)
	// process with rate Ad, reducing to WhiteNoiseOnJerk as Ad -> 0.
	Singer
)

// PriorParams configures the prior: Qc is the per-axis power spectral
// density of the driving white noise, Ad is the per-axis mean-reversion
// rate used only by the Singer model.
type PriorParams struct {
	Model PriorModel
	Qc    [6]float64
	Ad    [6]float64
}

// axisState is the (position, velocity, acceleration) triple the prior
// evolves independently for a single one of the six trajectory axes.
type axisState [3]float64

// phi3 is a 3x3 matrix stored row-major, used for the per-axis transition
// and covariance matrices. Each trajectory axis evolves independently, so a
// dense 18x18 block structure is unnecessary: the prior factors into six
// decoupled 3x3 systems.
type phi3 [3][3]float64

func (m phi3) apply(s axisState) axisState {
	return axisState{
		m[0][0]*s[0] + m[0][1]*s[1] + m[0][2]*s[2],
		m[1][0]*s[0] + m[1][1]*s[1] + m[1][2]*s[2],
		m[2][0]*s[0] + m[2][1]*s[1] + m[2][2]*s[2],
	}
}

func (m phi3) transpose() phi3 {
	var t phi3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = m[j][i]
		}
	}
	return t
}

func (m phi3) mul(o phi3) phi3 {
	var out phi3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += m[i][k] * o[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

func identity3() phi3 {
	return phi3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// transitionWNOJ returns the exact white-noise-on-jerk transition matrix for
// interval dt.
func transitionWNOJ(dt float64) phi3 {
	return phi3{
		{1, dt, dt * dt / 2},
		{0, 1, dt},
		{0, 0, 1},
	}
}

// covarianceWNOJ returns the exact white-noise-on-jerk process noise
// covariance for interval dt and spectral density qc.
func covarianceWNOJ(dt, qc float64) phi3 {
	dt2 := dt * dt
	dt3 := dt2 * dt
	dt4 := dt3 * dt
	dt5 := dt4 * dt
	return phi3{
		{qc * dt5 / 20, qc * dt4 / 8, qc * dt3 / 6},
		{qc * dt4 / 8, qc * dt3 / 3, qc * dt2 / 2},
		{qc * dt3 / 6, qc * dt2 / 2, qc * dt},
	}
}

// transitionSinger returns the closed-form Singer (mean-reverting acceleration)
// transition matrix for interval dt and reversion rate a. As a -> 0 this
// converges to transitionWNOJ.
func transitionSinger(dt, a float64) phi3 {
	if math.Abs(a) < 1e-9 {
		return transitionWNOJ(dt)
	}
	ea := math.Exp(-a * dt)
	return phi3{
		{1, dt, (a*dt - 1 + ea) / (a * a)},
		{0, 1, (1 - ea) / a},
		{0, 0, ea},
	}
}

// covarianceSinger integrates Q(dt) = int_0^dt Phi(dt-s) * L * qc * L^T *
// Phi(dt-s)^T ds numerically (Simpson's rule), where L = [0,0,1]^T injects
// white noise only on the jerk channel. The Singer closed form is a well
// known but error-prone-to-transcribe rational/exponential expression;
// numerical quadrature gives the same covariance without risking a sign or
// factor mistake in a formula that is never itself exercised directly.
func covarianceSinger(dt, a, qc float64) phi3 {
	if math.Abs(a) < 1e-9 {
		return covarianceWNOJ(dt, qc)
	}
	const steps = 64 // even, for Simpson's rule
	h := dt / steps
	var acc phi3
	weight := func(i int) float64 {
		switch {
		case i == 0 || i == steps:
			return 1
		case i%2 == 1:
			return 4
		default:
			return 2
		}
	}
	for i := 0; i <= steps; i++ {
		s := float64(i) * h
		tau := dt - s
		p := transitionSinger(tau, a)
		// outer = p[:,2] * qc * p[:,2]^T
		var outer phi3
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				outer[r][c] = p[r][2] * qc * p[c][2]
			}
		}
		w := weight(i)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				acc[r][c] += w * outer[r][c]
			}
		}
	}
	factor := h / 3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			acc[r][c] *= factor
		}
	}
	return acc
}

// transition returns Phi(dt) for axis k under the configured model.
func (pp PriorParams) transition(dt float64, axis int) phi3 {
	if pp.Model == Singer {
		return transitionSinger(dt, pp.Ad[axis])
	}
	return transitionWNOJ(dt)
}

// covariance returns Q(dt) for axis k under the configured model.
func (pp PriorParams) covariance(dt float64, axis int) phi3 {
	if pp.Model == Singer {
		return covarianceSinger(dt, pp.Ad[axis], pp.Qc[axis])
	}
	return covarianceWNOJ(dt, pp.Qc[axis])
}

// invert3 inverts a 3x3 matrix via the adjugate formula; the prior's Q(dt)
// is always positive definite for dt > 0 so this never meets a singular
// matrix in practice.
func invert3(m phi3) phi3 {
	a, b, c := m[0][0], m[0][1], m[0][2]
	d, e, f := m[1][0], m[1][1], m[1][2]
	g, h, i := m[2][0], m[2][1], m[2][2]

	det := a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
	if det == 0 {
		return identity3()
	}
	invDet := 1 / det
	return phi3{
		{(e*i - f*h) * invDet, (c*h - b*i) * invDet, (b*f - c*e) * invDet},
		{(f*g - d*i) * invDet, (a*i - c*g) * invDet, (c*d - a*f) * invDet},
		{(d*h - e*g) * invDet, (b*g - a*h) * invDet, (a*e - b*d) * invDet},
	}
}

func add3(a, b phi3) phi3 {
	var out phi3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}

func scale3(a phi3, s float64) phi3 {
	var out phi3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a[i][j] * s
		}
	}
	return out
}

func sub3(a, b phi3) phi3 {
	return add3(a, scale3(b, -1))
}

// choleskyUpper3 returns the upper-triangular U with U^T*U == m for a
// symmetric positive-definite 3x3 m, used to whiten prior residuals by
// their information matrix.
func choleskyUpper3(m phi3) phi3 {
	var u phi3
	u[0][0] = math.Sqrt(math.Max(m[0][0], 0))
	if u[0][0] > 0 {
		u[0][1] = m[0][1] / u[0][0]
		u[0][2] = m[0][2] / u[0][0]
	}
	u[1][1] = math.Sqrt(math.Max(m[1][1]-u[0][1]*u[0][1], 0))
	if u[1][1] > 0 {
		u[1][2] = (m[1][2] - u[0][1]*u[0][2]) / u[1][1]
	}
	u[2][2] = math.Sqrt(math.Max(m[2][2]-u[0][2]*u[0][2]-u[1][2]*u[1][2], 0))
	return u
}
