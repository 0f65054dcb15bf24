package residuals

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/cartograph-robotics/lio/spatialmath"
)

// AccelerometerFactor is the accelerometer residual of spec section 4.5:
// r_a = R_im(t)*(dw_lin + R_mi(t_i)*g) + b_a - a_meas, where T_mi is taken
// from the knot bracketing the IMU sample's timestamp.
type AccelerometerFactor struct {
	Measured r3.Vector
	Gravity  float64 // signed z component, gravity vector is (0,0,Gravity) in the inertial frame
	Sigma    r3.Vector // diagonal of r_imu_acc
}

// Evaluate computes the accelerometer residual given the body linear
// acceleration dwLin, the accelerometer bias ba, and the gravity-frame pose
// Tmi at the bracketing knot.
func (f AccelerometerFactor) Evaluate(dwLin r3.Vector, ba r3.Vector, tmi *spatialmath.Pose) [3]float64 {
	g := mat.NewVecDense(3, []float64{0, 0, f.Gravity})
	var rg mat.VecDense
	rg.MulVec(tmi.R, g)

	sum := r3.Vector{X: dwLin.X + rg.AtVec(0), Y: dwLin.Y + rg.AtVec(1), Z: dwLin.Z + rg.AtVec(2)}

	var rt mat.Dense
	rt.CloneFrom(tmi.R.T())
	sumVec := mat.NewVecDense(3, []float64{sum.X, sum.Y, sum.Z})
	var rimSum mat.VecDense
	rimSum.MulVec(&rt, sumVec)

	return [3]float64{
		whiten(rimSum.AtVec(0)+ba.X-f.Measured.X, f.Sigma.X),
		whiten(rimSum.AtVec(1)+ba.Y-f.Measured.Y, f.Sigma.Y),
		whiten(rimSum.AtVec(2)+ba.Z-f.Measured.Z, f.Sigma.Z),
	}
}

// GyroscopeFactor is the gyroscope residual: r_g = w_ang(t) + b_g - w_meas.
type GyroscopeFactor struct {
	Measured r3.Vector
	Sigma    r3.Vector // diagonal of r_imu_ang
}

// Evaluate computes the gyroscope residual given the interpolated body
// angular rate wAng and gyro bias bg.
func (f GyroscopeFactor) Evaluate(wAng r3.Vector, bg r3.Vector) [3]float64 {
	return [3]float64{
		whiten(wAng.X+bg.X-f.Measured.X, f.Sigma.X),
		whiten(wAng.Y+bg.Y-f.Measured.Y, f.Sigma.Y),
		whiten(wAng.Z+bg.Z-f.Measured.Z, f.Sigma.Z),
	}
}

// whiten divides a scalar residual by its standard deviation, the diagonal
// analogue of the Cholesky whitening used for the dense point-to-plane
// information matrix. No robust loss is applied to either IMU residual: they
// enter the solve whitened only.
func whiten(r, sigma float64) float64 {
	if sigma <= 0 {
		return r
	}
	return r / math.Sqrt(sigma)
}
