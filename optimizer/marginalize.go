package optimizer

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cartograph-robotics/lio/spatialmath"
	"github.com/cartograph-robotics/lio/trajectory"
)

// LinearizedPrior is a dense Gaussian prior folded out of retired knots via
// Schur complement (spec section 4.6). It is itself a CostTerm, so the next
// window's problem can include it exactly like any other residual: the
// linearization point is a frozen clone of the frontier knots at
// marginalization time, and the residual grows as the live knots drift away
// from that snapshot, measured in the same tangent-space coordinates the
// solver perturbs in.
type LinearizedPrior struct {
	frontier []*trajectory.Knot // live knots, mutated by the solver
	linKnots []*trajectory.Knot // frozen clones at marginalization time
	sqrtInfo *mat.Dense         // upper-triangular Cholesky factor U, U^T*U = Lambda_rr'
	bias     []float64          // c = U^-T * b_r', so that e = U*delta + c
}

// Dim implements CostTerm.
func (lp *LinearizedPrior) Dim() int {
	r, _ := lp.sqrtInfo.Dims()
	return r
}

// Residual implements CostTerm: e = sqrtInfo*delta + bias, where delta is
// the live frontier knots' tangent-space displacement from their state at
// marginalization time.
func (lp *LinearizedPrior) Residual() []float64 {
	delta := make([]float64, len(lp.bias))
	idx := 0
	for i, k := range lp.frontier {
		block := relativeKnotDelta(k, lp.linKnots[i])
		copy(delta[idx:], block)
		idx += len(block)
	}

	dv := mat.NewVecDense(len(delta), delta)
	var out mat.VecDense
	out.MulVec(lp.sqrtInfo, dv)

	res := make([]float64, out.Len())
	for i := range res {
		res[i] = out.AtVec(i) + lp.bias[i]
	}
	return res
}

// relativeKnotDelta returns how far live has moved from lin, in the same
// per-block coordinates jacobian() perturbs in: SE(3) log of the relative
// transform for pose and (if present) T_mi, plain differences for
// velocity, acceleration, and bias.
func relativeKnotDelta(live, lin *trajectory.Knot) []float64 {
	out := make([]float64, 0, dimPose+dimVel+dimAccel+dimBias+dimTmi)
	relPose := live.Trm.Compose(lin.Trm.Inverse())
	xi := spatialmath.LogSE3(relPose)
	out = append(out, xi[:]...)
	for i := 0; i < 6; i++ {
		out = append(out, live.W[i]-lin.W[i])
	}
	for i := 0; i < 6; i++ {
		out = append(out, live.Dw[i]-lin.Dw[i])
	}
	for i := 0; i < 6; i++ {
		out = append(out, live.B[i]-lin.B[i])
	}
	if !live.TmiLocked {
		relTmi := live.Tmi.Compose(lin.Tmi.Inverse())
		tmiXi := spatialmath.LogSE3(relTmi)
		out = append(out, tmiXi[:]...)
	}
	return out
}

// Marginalize folds every term touching a retiring knot into a
// LinearizedPrior over the remaining frontier knots, implementing the
// Schur complement described in spec section 4.6:
//
//	Lambda = J^T*J over the affected terms, partitioned [mm, mr; rm, rr]
//	Lambda_rr' = Lambda_rr - Lambda_rm * Lambda_mm^-1 * Lambda_rm^T
//	b_r'       = b_r - Lambda_rm * Lambda_mm^-1 * b_m
//
// retiring and frontier must be disjoint; terms is every cost term whose
// residual depends on at least one retiring knot (terms touching only
// surviving knots are carried over unchanged and are not passed here).
func Marginalize(retiring, frontier []*trajectory.Knot, terms []CostTerm) *LinearizedPrior {
	sub := &Problem{Knots: append(append([]*trajectory.Knot{}, retiring...), frontier...), Terms: terms}
	j, r := sub.jacobian()

	n := sub.NumParams()
	var jtj mat.Dense
	jtj.Mul(j.T(), j)
	rVec := mat.NewVecDense(len(r), r)
	var jtr mat.VecDense
	jtr.MulVec(j.T(), rVec)

	mSize := 0
	for i := range retiring {
		mSize += sub.blockSize(i)
	}
	rSize := n - mSize

	lambdaMM := subMatrix(&jtj, 0, 0, mSize, mSize)
	lambdaMR := subMatrix(&jtj, 0, mSize, mSize, rSize)
	lambdaRR := subMatrix(&jtj, mSize, mSize, rSize, rSize)
	bM := subVector(&jtr, 0, mSize)
	bR := subVector(&jtr, mSize, rSize)

	mmInv := pseudoInverse(lambdaMM, mSize)

	var tmp, schurCorrection mat.Dense
	tmp.Mul(lambdaMR.T(), mmInv)
	schurCorrection.Mul(&tmp, lambdaMR)

	var rrPrime mat.Dense
	rrPrime.Sub(lambdaRR, &schurCorrection)

	var biasCorrection mat.VecDense
	biasCorrection.MulVec(&tmp, bM)
	var bRPrime mat.VecDense
	bRPrime.SubVec(bR, &biasCorrection)

	sqrtInfo := choleskyUpper(&rrPrime, rSize)

	// With b = J^T*r the reduced cost is 0.5*dx^T*Lambda_rr'*dx + b_r'^T*dx;
	// writing it as 0.5*||U*dx + c||^2 (up to a constant) requires U^T*c = b_r'.
	var c mat.VecDense
	if err := c.SolveVec(sqrtInfo.T(), &bRPrime); err != nil {
		c = *mat.NewVecDense(rSize, nil)
	}
	biasVec := make([]float64, rSize)
	for i := 0; i < rSize; i++ {
		biasVec[i] = c.AtVec(i)
	}

	linKnots := make([]*trajectory.Knot, len(frontier))
	for i, k := range frontier {
		linKnots[i] = k.Clone()
	}

	return &LinearizedPrior{
		frontier: frontier,
		linKnots: linKnots,
		sqrtInfo: sqrtInfo,
		bias:     biasVec,
	}
}

func subMatrix(m *mat.Dense, r, c, rows, cols int) *mat.Dense {
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(r+i, c+j))
		}
	}
	return out
}

func subVector(v *mat.VecDense, off, n int) *mat.VecDense {
	out := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		out.SetVec(i, v.AtVec(off+i))
	}
	return out
}

// pseudoInverse inverts a (possibly near-singular) SPD block via its
// eigendecomposition, flooring tiny eigenvalues: the marginalized block can
// be rank-deficient when a knot contributes no terms of its own (e.g. a
// locked T_mi already excluded from the parameterization).
func pseudoInverse(m *mat.Dense, n int) *mat.Dense {
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, m.At(i, j))
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return mat.NewDense(n, n, nil)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	inv := mat.NewDense(n, n, nil)
	for i, v := range vals {
		if v < 1e-12 {
			continue
		}
		inv.Set(i, i, 1/v)
	}
	var tmp, out mat.Dense
	tmp.Mul(&vecs, inv)
	out.Mul(&tmp, vecs.T())
	return &out
}

// choleskyUpper returns the upper-triangular factor U such that U^T*U == m,
// flooring negative eigenvalues introduced by numerical error in the Schur
// complement to zero.
func choleskyUpper(m *mat.Dense, n int) *mat.Dense {
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, m.At(i, j))
		}
	}
	var chol mat.Cholesky
	if chol.Factorize(sym) {
		var u mat.TriDense
		chol.UTo(&u)
		out := mat.NewDense(n, n, nil)
		out.Copy(&u)
		return out
	}
	// fall back to the eigendecomposition square root for a borderline
	// indefinite Schur complement.
	var eig mat.EigenSym
	eig.Factorize(sym, true)
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	sq := mat.NewDense(n, n, nil)
	for i, v := range vals {
		if v < 0 {
			v = 0
		}
		sq.Set(i, i, math.Sqrt(v))
	}
	var tmp, out mat.Dense
	tmp.Mul(&vecs, sq)
	out.Mul(&tmp, vecs.T())
	return &out
}
