package residuals

import (
	"testing"

	"go.viam.com/test"
)

func TestBiasRandomWalkZeroWhenUnchanged(t *testing.T) {
	f := BiasRandomWalkFactor{QImu: 1e-4}
	b := [6]float64{0.1, 0.2, 0.3, 0, 0, 0}
	e := f.Evaluate(b, b)
	for _, v := range e {
		test.That(t, v, test.ShouldAlmostEqual, 0.0, 1e-9)
	}
}

func TestBiasRandomWalkScalesByQImu(t *testing.T) {
	f := BiasRandomWalkFactor{QImu: 4.0}
	prev := [6]float64{}
	next := [6]float64{2, 0, 0, 0, 0, 0}
	e := f.Evaluate(next, prev)
	test.That(t, e[0], test.ShouldAlmostEqual, 1.0, 1e-9) // 2 / sqrt(4)
}
