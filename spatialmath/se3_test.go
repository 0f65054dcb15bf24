package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestExpLogSO3RoundTrip(t *testing.T) {
	cases := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 0.1, Y: 0, Z: 0},
		{X: 0.3, Y: -0.2, Z: 0.5},
		{X: 1.0, Y: 1.5, Z: -2.0},
	}
	for _, phi := range cases {
		r := ExpSO3(phi)
		got := LogSO3(r)
		test.That(t, got.X, test.ShouldAlmostEqual, phi.X, 1e-9)
		test.That(t, got.Y, test.ShouldAlmostEqual, phi.Y, 1e-9)
		test.That(t, got.Z, test.ShouldAlmostEqual, phi.Z, 1e-9)
	}
}

func TestExpLogSE3RoundTrip(t *testing.T) {
	cases := [][6]float64{
		{0, 0, 0, 0, 0, 0},
		{1, 2, 3, 0.1, -0.2, 0.05},
		{-0.5, 0.25, 1.1, 0.9, -0.4, 0.2},
	}
	for _, xi := range cases {
		p := ExpSE3(xi)
		got := LogSE3(p)
		for i := range xi {
			test.That(t, got[i], test.ShouldAlmostEqual, xi[i], 1e-8)
		}
	}
}

func TestOrthonormalizeFixesDrift(t *testing.T) {
	r := eye3()
	r.Set(0, 1, 1e-3) // perturb away from orthogonality
	test.That(t, OrthogonalityError(r) > orthogonalityTol, test.ShouldBeTrue)

	fixed := Orthonormalize(r)
	test.That(t, OrthogonalityError(fixed) <= orthogonalityTol, test.ShouldBeTrue)
}

func TestPoseInverseIdentity(t *testing.T) {
	p := ExpSE3([6]float64{1, 2, 3, 0.2, 0.1, -0.3})
	id := p.Compose(p.Inverse())
	test.That(t, OrthogonalityError(id.R) < 1e-9, test.ShouldBeTrue)
	test.That(t, id.T.Norm(), test.ShouldBeLessThan, 1e-9)
}

func TestSlerpEndpoints(t *testing.T) {
	ra := eye3()
	rb := ExpSO3(r3.Vector{X: 0, Y: 0, Z: math.Pi / 2})

	r0 := SlerpRotation(ra, rb, 0)
	r1 := SlerpRotation(ra, rb, 1)

	test.That(t, matAlmostEqual(r0, ra, 1e-6), test.ShouldBeTrue)
	test.That(t, matAlmostEqual(r1, rb, 1e-6), test.ShouldBeTrue)
}

func matAlmostEqual(a, b *mat.Dense, tol float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(a.At(i, j)-b.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}
