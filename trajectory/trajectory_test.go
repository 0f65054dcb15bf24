package trajectory

import (
	"testing"

	"go.viam.com/test"

	"github.com/cartograph-robotics/lio/spatialmath"
)

func testParams() PriorParams {
	var qc, ad [6]float64
	for i := range qc {
		qc[i] = 1.0
		ad[i] = 1.0
	}
	return PriorParams{Model: WhiteNoiseOnJerk, Qc: qc, Ad: ad}
}

func TestInterpolateEndpointsMatchKnots(t *testing.T) {
	traj := New(testParams())
	k0 := NewKnot(0)
	k0.Trm = spatialmath.ExpSE3([6]float64{0, 0, 0, 0, 0, 0})
	k0.W = [6]float64{1, 0, 0, 0, 0, 0.2}

	k1 := NewKnot(1)
	k1.Trm = spatialmath.ExpSE3([6]float64{1, 0, 0, 0, 0, 0.3})
	k1.W = [6]float64{1, 0, 0, 0, 0, 0.2}

	traj.Add(k0)
	traj.Add(k1)

	pose0, w0, _ := traj.Interpolate(0)
	test.That(t, pose0.T.X, test.ShouldAlmostEqual, k0.Trm.T.X, 1e-6)
	test.That(t, w0[0], test.ShouldAlmostEqual, k0.W[0], 1e-9)

	pose1, w1, _ := traj.Interpolate(1)
	test.That(t, pose1.T.X, test.ShouldAlmostEqual, k1.Trm.T.X, 1e-6)
	test.That(t, w1[0], test.ShouldAlmostEqual, k1.W[0], 1e-9)
}

func TestInterpolateClampsOutsideWindow(t *testing.T) {
	traj := New(testParams())
	k0 := NewKnot(0)
	k1 := NewKnot(1)
	traj.Add(k1)
	traj.Add(k0)

	pose, _, _ := traj.Interpolate(-5)
	test.That(t, pose.T.X, test.ShouldAlmostEqual, k0.Trm.T.X, 1e-9)

	pose2, _, _ := traj.Interpolate(50)
	test.That(t, pose2.T.X, test.ShouldAlmostEqual, k1.Trm.T.X, 1e-9)
}

func TestPriorResidualZeroWhenConsistentWithTransition(t *testing.T) {
	traj := New(testParams())
	k0 := NewKnot(0)
	k0.W = [6]float64{1, 0, 0, 0, 0, 0}
	k0.Dw = [6]float64{0, 0, 0, 0, 0, 0}

	// kj consistent with constant-velocity propagation of k0 under dt=1.
	k1 := NewKnot(1)
	k1.Trm = spatialmath.ExpSE3([6]float64{1, 0, 0, 0, 0, 0})
	k1.W = [6]float64{1, 0, 0, 0, 0, 0}
	k1.Dw = [6]float64{0, 0, 0, 0, 0, 0}

	f := traj.PriorResidual(k0, k1)
	for axis := 0; axis < 6; axis++ {
		test.That(t, f.Residual[axis][0], test.ShouldAlmostEqual, 0.0, 1e-6)
		test.That(t, f.Residual[axis][1], test.ShouldAlmostEqual, 0.0, 1e-9)
		test.That(t, f.Residual[axis][2], test.ShouldAlmostEqual, 0.0, 1e-9)
	}
}

func TestPriorResidualNonzeroWhenInconsistent(t *testing.T) {
	traj := New(testParams())
	k0 := NewKnot(0)
	k0.W = [6]float64{0, 0, 0, 0, 0, 0}

	k1 := NewKnot(1)
	k1.Trm = spatialmath.ExpSE3([6]float64{5, 0, 0, 0, 0, 0}) // jumped, inconsistent with zero velocity

	f := traj.PriorResidual(k0, k1)
	test.That(t, f.Residual[0][0], test.ShouldBeGreaterThan, 1.0)
}

func TestInterpolateHistorySurvivesDropBefore(t *testing.T) {
	traj := New(testParams())
	k0 := NewKnot(0)
	k1 := NewKnot(1)
	traj.Add(k0)
	traj.Add(k1)

	traj.DropBefore(1)
	test.That(t, len(traj.Knots), test.ShouldEqual, 1)
	test.That(t, len(traj.History), test.ShouldEqual, 2)

	pose, _, _ := traj.InterpolateHistory(0)
	test.That(t, pose.T.X, test.ShouldAlmostEqual, k0.Trm.T.X, 1e-9)

	liveAtZero, _, _ := traj.Interpolate(0)
	test.That(t, liveAtZero.T.X, test.ShouldAlmostEqual, k1.Trm.T.X, 1e-9)
}

func TestWhitenedIsZeroWhenResidualIsZero(t *testing.T) {
	traj := New(testParams())
	k0 := NewKnot(0)
	k1 := NewKnot(1)
	f := traj.PriorResidual(k0, k1)
	w := f.Whitened()
	for _, v := range w {
		test.That(t, v, test.ShouldAlmostEqual, 0.0, 1e-9)
	}
}
