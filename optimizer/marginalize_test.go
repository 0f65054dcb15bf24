package optimizer

import (
	"testing"

	"go.viam.com/test"

	"github.com/cartograph-robotics/lio/trajectory"
)

func TestMarginalizeProducesFrontierSizedPrior(t *testing.T) {
	retiring := trajectory.NewKnot(0)
	frontier := trajectory.NewKnot(1)
	retiring.TmiLocked = true
	frontier.TmiLocked = true

	term := &velocityTargetTerm{knot: retiring, target: 1.0}
	prior := Marginalize([]*trajectory.Knot{retiring}, []*trajectory.Knot{frontier}, []CostTerm{term})

	test.That(t, prior.Dim(), test.ShouldEqual, 24) // pose+vel+accel+bias, T_mi locked
}

func TestLinearizedPriorZeroAtLinearizationPointAfterConvergence(t *testing.T) {
	retiring := trajectory.NewKnot(0)
	frontier := trajectory.NewKnot(1)
	retiring.TmiLocked = true
	frontier.TmiLocked = true

	term := &velocityTargetTerm{knot: retiring, target: 1.0}
	// Marginalizing only makes sense once the affected terms are already
	// near their optimum, so the folded prior's gradient at the
	// linearization point is near zero.
	pre := &Problem{Knots: []*trajectory.Knot{retiring}, Terms: []CostTerm{term}}
	_, err := Solve(pre, 10, 0)
	test.That(t, err, test.ShouldBeNil)

	prior := Marginalize([]*trajectory.Knot{retiring}, []*trajectory.Knot{frontier}, []CostTerm{term})

	r := prior.Residual()
	for _, v := range r {
		test.That(t, v, test.ShouldAlmostEqual, 0.0, 1e-3)
	}
}
