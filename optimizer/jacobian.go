package optimizer

import "gonum.org/v1/gonum/mat"

// finiteDiffStep is the central-difference step size used to linearize
// every cost term. The trajectory and residual packages expose residuals
// as plain functions of knot state rather than a Jacobian graph, so the
// solver differentiates numerically; see DESIGN.md for why this was chosen
// over hand-derived analytic Jacobians for every residual type.
const finiteDiffStep = 1e-6

// jacobian returns the dense residual Jacobian at the problem's current
// state, evaluated by central differences: J[:,j] = (r(x+h*e_j) -
// r(x-h*e_j)) / (2h).
func (p *Problem) jacobian() (*mat.Dense, []float64) {
	r0 := p.stackResiduals()
	m := len(r0)
	n := p.NumParams()
	j := mat.NewDense(m, n, nil)

	for col := 0; col < n; col++ {
		restoreMinus := p.perturb(col, -finiteDiffStep)
		rMinus := p.stackResiduals()
		restoreMinus()

		restorePlus := p.perturb(col, finiteDiffStep)
		rPlus := p.stackResiduals()
		restorePlus()

		for row := 0; row < m; row++ {
			j.Set(row, col, (rPlus[row]-rMinus[row])/(2*finiteDiffStep))
		}
	}
	return j, r0
}
