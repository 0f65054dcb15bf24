package residuals

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/cartograph-robotics/lio/spatialmath"
)

func TestAccelerometerResidualZeroWhenConsistent(t *testing.T) {
	tmi := spatialmath.Identity()
	f := AccelerometerFactor{Measured: r3.Vector{X: 0, Y: 0, Z: -9.81}, Gravity: -9.81, Sigma: r3.Vector{X: 1, Y: 1, Z: 1}}
	e := f.Evaluate(r3.Vector{}, r3.Vector{}, tmi)
	for _, v := range e {
		test.That(t, v, test.ShouldAlmostEqual, 0.0, 1e-9)
	}
}

func TestAccelerometerResidualNonzeroOnBias(t *testing.T) {
	tmi := spatialmath.Identity()
	f := AccelerometerFactor{Measured: r3.Vector{X: 0, Y: 0, Z: -9.81}, Gravity: -9.81, Sigma: r3.Vector{X: 1, Y: 1, Z: 1}}
	e := f.Evaluate(r3.Vector{}, r3.Vector{X: 0.5}, tmi)
	test.That(t, e[0], test.ShouldAlmostEqual, 0.5, 1e-9)
}

func TestGyroscopeResidualZeroWhenConsistent(t *testing.T) {
	f := GyroscopeFactor{Measured: r3.Vector{X: 0.1, Y: 0, Z: 0}, Sigma: r3.Vector{X: 1, Y: 1, Z: 1}}
	e := f.Evaluate(r3.Vector{X: 0.1}, r3.Vector{})
	for _, v := range e {
		test.That(t, v, test.ShouldAlmostEqual, 0.0, 1e-9)
	}
}

func TestAccelerometerResidualWhitenedByStddevNotVariance(t *testing.T) {
	tmi := spatialmath.Identity()
	f := AccelerometerFactor{Measured: r3.Vector{X: 0, Y: 0, Z: -9.81}, Gravity: -9.81, Sigma: r3.Vector{X: 4, Y: 4, Z: 4}}
	e := f.Evaluate(r3.Vector{}, r3.Vector{X: 2}, tmi)
	// raw residual is 2, variance is 4 -> whitened by sqrt(4)=2, not by 4.
	test.That(t, e[0], test.ShouldAlmostEqual, 1.0, 1e-9)
}

func TestGyroscopeResidualWhitenedByStddevNotVariance(t *testing.T) {
	f := GyroscopeFactor{Measured: r3.Vector{X: 0, Y: 0, Z: 0}, Sigma: r3.Vector{X: 9, Y: 9, Z: 9}}
	e := f.Evaluate(r3.Vector{X: 0.6}, r3.Vector{})
	// raw residual is 0.6, variance is 9 -> whitened by sqrt(9)=3, not by 9.
	test.That(t, e[0], test.ShouldAlmostEqual, 0.2, 1e-9)
}
