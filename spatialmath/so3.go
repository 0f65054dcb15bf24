// Package spatialmath provides SE(3)/SO(3) Lie group primitives used throughout the
// trajectory, residual, and optimizer packages: exponential/logarithm maps, adjoints,
// left/right Jacobians, and rotation reprojection.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// smallAngleEps is the threshold below which we switch to the Taylor series
// approximations of sin(x)/x and friends to avoid catastrophic cancellation.
const smallAngleEps = 1e-8

// Skew returns the 3x3 skew-symmetric (cross-product) matrix of v, such that
// Skew(v)*x == v.Cross(x) for all x.
func Skew(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}

// Unskew extracts the axis vector from a 3x3 skew-symmetric matrix. It does not
// validate that m is actually skew-symmetric; callers that need that guarantee
// should check separately.
func Unskew(m *mat.Dense) r3.Vector {
	return r3.Vector{X: m.At(2, 1), Y: m.At(0, 2), Z: m.At(1, 0)}
}

// ExpSO3 computes the matrix exponential of a rotation vector (axis-angle) phi,
// returning the corresponding 3x3 rotation matrix via Rodrigues' formula.
func ExpSO3(phi r3.Vector) *mat.Dense {
	theta := phi.Norm()
	skew := Skew(phi)

	r := mat.NewDense(3, 3, nil)
	r.Scale(1, eye3())

	if theta < smallAngleEps {
		// R = I + skew + 0.5*skew^2 + O(theta^4)
		var skew2 mat.Dense
		skew2.Mul(skew, skew)
		r.Add(r, skew)
		skew2.Scale(0.5, &skew2)
		r.Add(r, &skew2)
		return r
	}

	a := math.Sin(theta) / theta
	b := (1 - math.Cos(theta)) / (theta * theta)

	var skew2 mat.Dense
	skew2.Mul(skew, skew)

	var aTerm, bTerm mat.Dense
	aTerm.Scale(a, skew)
	bTerm.Scale(b, &skew2)

	r.Add(r, &aTerm)
	r.Add(r, &bTerm)
	return r
}

// LogSO3 computes the matrix logarithm of a rotation matrix r, returning the
// rotation vector (axis-angle) phi such that ExpSO3(phi) == r.
func LogSO3(r *mat.Dense) r3.Vector {
	cosTheta := (mat.Trace(r) - 1) / 2
	cosTheta = math.Max(-1, math.Min(1, cosTheta))
	theta := math.Acos(cosTheta)

	var rt mat.Dense
	rt.CloneFrom(r.T())
	skewPart := mat.NewDense(3, 3, nil)
	skewPart.Sub(r, &rt)

	if theta < smallAngleEps {
		// log(R) ~= 0.5*(R - R^T) for small angles
		skewPart.Scale(0.5, skewPart)
		return Unskew(skewPart)
	}

	coeff := theta / (2 * math.Sin(theta))
	skewPart.Scale(coeff, skewPart)
	return Unskew(skewPart)
}

// LeftJacobianSO3 computes the left Jacobian J(phi) of SO(3), used to relate
// perturbations in the Lie algebra to perturbations of the group element.
func LeftJacobianSO3(phi r3.Vector) *mat.Dense {
	theta := phi.Norm()
	skew := Skew(phi)

	j := eye3()
	if theta < smallAngleEps {
		var half mat.Dense
		half.Scale(0.5, skew)
		j.Add(j, &half)
		return j
	}

	a := (1 - math.Cos(theta)) / (theta * theta)
	b := (theta - math.Sin(theta)) / (theta * theta * theta)

	var skew2 mat.Dense
	skew2.Mul(skew, skew)

	var aTerm, bTerm mat.Dense
	aTerm.Scale(a, skew)
	bTerm.Scale(b, &skew2)

	j.Add(j, &aTerm)
	j.Add(j, &bTerm)
	return j
}

// LeftJacobianInverseSO3 computes J(phi)^-1 directly (rather than inverting
// LeftJacobianSO3) to avoid numerical issues near theta == 0.
func LeftJacobianInverseSO3(phi r3.Vector) *mat.Dense {
	theta := phi.Norm()
	skew := Skew(phi)

	j := eye3()
	if theta < smallAngleEps {
		var half mat.Dense
		half.Scale(-0.5, skew)
		j.Add(j, &half)
		return j
	}

	halfTheta := theta / 2
	cot := halfTheta / math.Tan(halfTheta)
	a := -0.5
	b := (1.0/(theta*theta))*(1-cot)

	var skew2 mat.Dense
	skew2.Mul(skew, skew)

	var aTerm, bTerm mat.Dense
	aTerm.Scale(a, skew)
	bTerm.Scale(b, &skew2)

	j.Add(j, &aTerm)
	j.Add(j, &bTerm)
	return j
}

// Orthonormalize projects a near-rotation matrix c back onto SO(3) via the
// polar decomposition O(C) = (C*C^T)^-1/2 * C, applied whenever ||C*C^T -
// I||_F^2 exceeds orthogonalityTol (1e-6, per the reprojection contract).
func Orthonormalize(c *mat.Dense) *mat.Dense {
	if OrthogonalityError(c) <= orthogonalityTol {
		var out mat.Dense
		out.CloneFrom(c)
		return &out
	}

	var cct mat.Dense
	cct.Mul(c, c.T())

	var eig mat.EigenSym
	ok := eig.Factorize(sym(&cct), true)
	if !ok {
		var out mat.Dense
		out.CloneFrom(c)
		return &out
	}

	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	inv := mat.NewDense(3, 3, nil)
	for i, v := range vals {
		if v <= 0 {
			v = smallAngleEps
		}
		inv.Set(i, i, 1/math.Sqrt(v))
	}

	var tmp, invSqrt mat.Dense
	tmp.Mul(&vecs, inv)
	invSqrt.Mul(&tmp, vecs.T())

	out := mat.NewDense(3, 3, nil)
	out.Mul(&invSqrt, c)
	return out
}

// orthogonalityTol is the squared-Frobenius-norm threshold from spec section
// 4.1: reprojection onto SO(3) is silent when this is exceeded.
const orthogonalityTol = 1e-6

// OrthogonalityError returns ||C*C^T - I||_F^2.
func OrthogonalityError(c *mat.Dense) float64 {
	var cct mat.Dense
	cct.Mul(c, c.T())
	cct.Sub(&cct, eye3())
	return mat.Norm(&cct, 2) * mat.Norm(&cct, 2)
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func sym(m *mat.Dense) mat.Symmetric {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, m.At(i, j))
		}
	}
	return s
}
