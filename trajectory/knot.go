// Package trajectory implements the continuous-time trajectory representation
// at the heart of the estimator (spec section 4.4): a sequence of knots
// carrying pose, body velocity, body acceleration, IMU bias, and the
// gravity-alignment transform, interpolated between knots by a selectable
// Gauss-Markov prior (white-noise-on-jerk or Singer).
package trajectory

import "github.com/cartograph-robotics/lio/spatialmath"

// Knot is a time-indexed trajectory state, matching the data model of spec
// section 3: pose of world in robot frame, body twist, body acceleration,
// IMU bias, and the inertial-to-world transform.
type Knot struct {
	Time float64
	Trm  *spatialmath.Pose // pose of world frame expressed in robot frame
	W    [6]float64        // body-frame twist (linear; angular)
	Dw   [6]float64        // body-frame acceleration, d/dt of W
	B    [6]float64        // IMU bias (accel 0:3, gyro 3:6)
	Tmi  *spatialmath.Pose // inertial/gravity frame to world frame
	// TmiLocked marks T_mi as fixed (not optimized), used for the
	// gravity-frame-locked-after-init configuration (T_mi_init_only).
	TmiLocked bool
}

// NewKnot creates a knot at the given time with identity pose/T_mi and zero
// velocity/acceleration/bias.
func NewKnot(t float64) *Knot {
	return &Knot{
		Time: t,
		Trm:  spatialmath.Identity(),
		Tmi:  spatialmath.Identity(),
	}
}

// Clone returns a deep copy of the knot, used when the optimizer needs to
// evaluate a perturbed state without mutating the original.
func (k *Knot) Clone() *Knot {
	out := *k
	out.Trm = k.Trm.Clone()
	out.Tmi = k.Tmi.Clone()
	return &out
}

// WorldPose returns the vehicle's pose in the world frame, the inverse of
// Trm (which stores the world frame expressed in the robot frame).
func (k *Knot) WorldPose() *spatialmath.Pose {
	return k.Trm.Inverse()
}
