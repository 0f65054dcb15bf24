package optimizer

import "gonum.org/v1/gonum/mat"

// Covariance returns the pseudo-inverse of the Gauss-Newton information
// matrix J^T*J restricted to knot i's diagonal block, an approximate
// marginal covariance for that knot's state at the problem's current
// linearization point. Used to populate a frame's mid-time covariance after
// the sliding-window solve converges; it is not itself recomputed during
// solving, matching the frozen-at-convergence covariance the spec's frame
// record stores.
func (p *Problem) Covariance(knotIndex int) *mat.Dense {
	j, _ := p.jacobian()
	var jtj mat.Dense
	jtj.Mul(j.T(), j)

	offs, _ := p.offsets()
	off := offs[knotIndex]
	size := p.blockSize(knotIndex)

	block := subMatrix(&jtj, off, off, size, size)
	return pseudoInverse(block, size)
}
