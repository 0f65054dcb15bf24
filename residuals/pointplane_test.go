package residuals

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestAcceptGatesOnDistance(t *testing.T) {
	plane := Neighborhood{Center: r3.Vector{}, Normal: r3.Vector{X: 0, Y: 0, Z: 1}}
	test.That(t, Accept(r3.Vector{X: 0, Y: 0, Z: 0.05}, plane, 0.1), test.ShouldBeTrue)
	test.That(t, Accept(r3.Vector{X: 0, Y: 0, Z: 0.5}, plane, 0.1), test.ShouldBeFalse)
}

func TestPointToPlaneResidualZeroOnPlane(t *testing.T) {
	plane := Neighborhood{Center: r3.Vector{X: 1, Y: 0, Z: 0}, Normal: r3.Vector{X: 0, Y: 0, Z: 1}, Planarity: 1}
	f := NewPointToPlaneFactor(r3.Vector{}, 0, plane, 1, L2Loss{}, 1)

	e := f.Evaluate(r3.Vector{X: 1, Y: 0, Z: 0})
	for _, v := range e {
		test.That(t, v, test.ShouldAlmostEqual, 0.0, 1e-9)
	}
}

func TestPointToPlaneResidualNonzeroOffPlane(t *testing.T) {
	plane := Neighborhood{Center: r3.Vector{X: 0, Y: 0, Z: 0}, Normal: r3.Vector{X: 0, Y: 0, Z: 1}, Planarity: 1}
	f := NewPointToPlaneFactor(r3.Vector{}, 0, plane, 1, L2Loss{}, 1)

	e := f.Evaluate(r3.Vector{X: 0, Y: 0, Z: 0.2})
	test.That(t, e[2], test.ShouldBeGreaterThan, 0.0)
}

func TestNeighborhoodPlanarPatchHasHighPlanarity(t *testing.T) {
	pts := []r3.Vector{
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0},
		{X: 1, Y: 1, Z: 0}, {X: 0.5, Y: 0.5, Z: 0},
	}
	nb, ok := ComputeNeighborhood(pts, 3)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, nb.Planarity, test.ShouldBeGreaterThan, 0.9)
	test.That(t, math.Abs(nb.Normal.Z), test.ShouldBeGreaterThan, 0.9)
}

func TestNeighborhoodRejectsTooFewPoints(t *testing.T) {
	_, ok := ComputeNeighborhood([]r3.Vector{{X: 0}, {X: 1}}, 3)
	test.That(t, ok, test.ShouldBeFalse)
}
