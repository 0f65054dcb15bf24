package odometry

import (
	"github.com/golang/geo/r3"

	"github.com/cartograph-robotics/lio/residuals"
	"github.com/cartograph-robotics/lio/spatialmath"
	"github.com/cartograph-robotics/lio/trajectory"
)

// priorTerm adapts a trajectory Gauss-Markov prior factor to
// optimizer.CostTerm.
type priorTerm struct {
	traj   *trajectory.Trajectory
	ki, kj *trajectory.Knot
}

func (t *priorTerm) Dim() int { return 18 }
func (t *priorTerm) Residual() []float64 {
	w := t.traj.PriorResidual(t.ki, t.kj).Whitened()
	return w[:]
}

// pointToPlaneTerm adapts a point-to-plane ICP factor, interpolating the
// keypoint's world position from the live trajectory at evaluation time.
type pointToPlaneTerm struct {
	traj   *trajectory.Trajectory
	tsr    *spatialmath.Pose
	factor residuals.PointToPlaneFactor
}

func (t *pointToPlaneTerm) Dim() int { return 3 }
func (t *pointToPlaneTerm) Residual() []float64 {
	rm, _, _ := t.traj.Interpolate(t.factor.Time)
	pose := rm.Inverse().Compose(t.tsr.Inverse())
	world := residuals.WorldPoint(pose, t.factor.Raw)
	r := t.factor.Evaluate(world)
	return r[:]
}

// accelerometerTerm adapts the accelerometer residual, reading the live
// trajectory's interpolated acceleration and the bracketing knot's T_mi.
type accelerometerTerm struct {
	traj    *trajectory.Trajectory
	bracket *trajectory.Knot
	time    float64
	factor  residuals.AccelerometerFactor
}

func (t *accelerometerTerm) Dim() int { return 3 }
func (t *accelerometerTerm) Residual() []float64 {
	_, _, dw := t.traj.Interpolate(t.time)
	dwLin := vecOf(dw, 0)
	ba := vecOf(t.bracket.B, 0)
	r := t.factor.Evaluate(dwLin, ba, t.bracket.Tmi)
	return r[:]
}

func vecOf(a [6]float64, offset int) r3.Vector {
	return r3.Vector{X: a[offset], Y: a[offset+1], Z: a[offset+2]}
}

// gyroscopeTerm adapts the gyroscope residual.
type gyroscopeTerm struct {
	traj    *trajectory.Trajectory
	bracket *trajectory.Knot
	time    float64
	factor  residuals.GyroscopeFactor
}

func (t *gyroscopeTerm) Dim() int { return 3 }
func (t *gyroscopeTerm) Residual() []float64 {
	_, w, _ := t.traj.Interpolate(t.time)
	wAng := vecOf(w, 3)
	bg := vecOf(t.bracket.B, 3)
	r := t.factor.Evaluate(wAng, bg)
	return r[:]
}

// biasTerm adapts the bias random-walk factor between adjacent knots.
type biasTerm struct {
	ki, kj *trajectory.Knot
	factor residuals.BiasRandomWalkFactor
}

func (t *biasTerm) Dim() int { return 6 }
func (t *biasTerm) Residual() []float64 {
	r := t.factor.Evaluate(t.kj.B, t.ki.B)
	return r[:]
}

// gravityTerm adapts the gravity-frame random-walk factor between adjacent
// knots' T_mi. Callers must not construct this when T_mi is locked.
type gravityTerm struct {
	ki, kj *trajectory.Knot
	factor residuals.GravityPriorFactor
}

func (t *gravityTerm) Dim() int { return 6 }
func (t *gravityTerm) Residual() []float64 {
	r := t.factor.Evaluate(t.kj.Tmi, t.ki.Tmi)
	return r[:]
}
