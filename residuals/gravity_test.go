package residuals

import (
	"testing"

	"go.viam.com/test"

	"github.com/cartograph-robotics/lio/spatialmath"
)

func TestGravityPriorZeroWhenUnchanged(t *testing.T) {
	f := GravityPriorFactor{QgDiag: [6]float64{1e-3, 1e-3, 1e-3, 0.1, 0.1, 1e-4}}
	tmi := spatialmath.Identity()
	e := f.Evaluate(tmi, tmi)
	for _, v := range e {
		test.That(t, v, test.ShouldAlmostEqual, 0.0, 1e-9)
	}
}

func TestGravityPriorNonzeroOnDrift(t *testing.T) {
	f := GravityPriorFactor{QgDiag: [6]float64{1e-3, 1e-3, 1e-3, 0.1, 0.1, 1e-4}}
	tmiPrev := spatialmath.Identity()
	tmiNext := spatialmath.ExpSE3([6]float64{0.1, 0, 0, 0, 0, 0})
	e := f.Evaluate(tmiNext, tmiPrev)
	test.That(t, e[0], test.ShouldBeGreaterThan, 0.0)
}
