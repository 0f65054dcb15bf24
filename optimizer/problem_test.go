package optimizer

import (
	"testing"

	"go.viam.com/test"

	"github.com/cartograph-robotics/lio/trajectory"
)

// velocityTargetTerm is a trivial cost term used to exercise the solver without
// depending on the residuals package: it drives a single knot's velocity
// axis 0 toward a target value.
type velocityTargetTerm struct {
	knot   *trajectory.Knot
	target float64
}

func (t *velocityTargetTerm) Dim() int { return 1 }
func (t *velocityTargetTerm) Residual() []float64 {
	return []float64{t.knot.W[0] - t.target}
}

func TestNumParamsCountsLockedTmiOut(t *testing.T) {
	k0 := trajectory.NewKnot(0)
	k1 := trajectory.NewKnot(1)
	k1.TmiLocked = true

	p := &Problem{Knots: []*trajectory.Knot{k0, k1}}
	test.That(t, p.NumParams(), test.ShouldEqual, 30+24)
}

func TestPerturbVelocityIsAdditiveAndRestores(t *testing.T) {
	k0 := trajectory.NewKnot(0)
	p := &Problem{Knots: []*trajectory.Knot{k0}}

	restore := p.perturb(dimPose, 0.5) // first velocity axis
	test.That(t, k0.W[0], test.ShouldAlmostEqual, 0.5, 1e-12)
	restore()
	test.That(t, k0.W[0], test.ShouldAlmostEqual, 0.0, 1e-12)
}

func TestSolveDrivesResidualToZero(t *testing.T) {
	k0 := trajectory.NewKnot(0)
	term := &velocityTargetTerm{knot: k0, target: 2.0}
	p := &Problem{Knots: []*trajectory.Knot{k0}, Terms: []CostTerm{term}}

	stats, err := Solve(p, 10, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, k0.W[0], test.ShouldAlmostEqual, 2.0, 1e-4)
	test.That(t, stats.FinalCost, test.ShouldBeLessThan, 1e-6)
}

func TestGuardrailRejectsTooManyVariables(t *testing.T) {
	knots := make([]*trajectory.Knot, 21) // 21 knots x 5 blocks = 105 > 100
	for i := range knots {
		knots[i] = trajectory.NewKnot(float64(i))
	}
	p := &Problem{Knots: knots}
	err := p.CheckGuardrails()
	test.That(t, err, test.ShouldBeError)
}
