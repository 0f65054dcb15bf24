package optimizer

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Guardrail limits from spec section 4.6: exceeding any of these causes the
// frame to be rejected rather than solved.
const (
	MaxActiveVariables = 100
	MaxActiveCostTerms = 100000
)

// ErrTooManyVariables and ErrTooManyCostTerms signal a guardrail violation;
// the caller (the odometry driver) marks the frame as failed.
var (
	ErrTooManyVariables = errors.New("active variable count exceeds guardrail")
	ErrTooManyCostTerms = errors.New("active cost-term count exceeds guardrail")
)

// CheckGuardrails validates the problem size against the fixed limits of
// spec section 4.6 before a solve is attempted. A variable is one knot state
// block (pose, velocity, acceleration, bias, and T_mi unless locked), so a
// knot counts 4 or 5; a cost term is one entry of Terms, whatever its Dim.
func (p *Problem) CheckGuardrails() error {
	vars := 0
	for _, k := range p.Knots {
		vars += 4 // T_rm, w, dw, b
		if !k.TmiLocked {
			vars++
		}
	}
	if vars > MaxActiveVariables {
		return errors.Wrapf(ErrTooManyVariables, "have %d, limit %d", vars, MaxActiveVariables)
	}
	if n := len(p.Terms); n > MaxActiveCostTerms {
		return errors.Wrapf(ErrTooManyCostTerms, "have %d, limit %d", n, MaxActiveCostTerms)
	}
	return nil
}

// SolveStats summarizes a finished Gauss-Newton solve.
type SolveStats struct {
	Iterations int
	FinalCost  float64
	Converged  bool
}

// stepNormTol is the L2 norm of the parameter update below which the solve
// is reported converged; Solve stops iterating at that point. Otherwise it
// runs the full maxIters budget, and not converging is not an error.
const stepNormTol = 1e-10

// Solve runs up to maxIters Gauss-Newton iterations against the problem's
// current state, updating knots in place. damping is added to the normal
// equations' diagonal to guard against rank-deficient Jacobians (e.g. a
// locked T_mi contributing no terms); pass 0 for pure Gauss-Newton. When the
// normal equations are not positive definite, the minimum-norm step from
// their pseudo-inverse is taken.
func Solve(p *Problem, maxIters int, damping float64) (SolveStats, error) {
	if err := p.CheckGuardrails(); err != nil {
		return SolveStats{}, err
	}

	stats := SolveStats{}
	for iter := 0; iter < maxIters; iter++ {
		j, r := p.jacobian()
		stats.Iterations = iter + 1
		stats.FinalCost = 0.5 * dot(r, r)

		n := p.NumParams()
		if n == 0 {
			break
		}

		var jtj mat.Dense
		jtj.Mul(j.T(), j)
		for i := 0; i < n; i++ {
			jtj.Set(i, i, jtj.At(i, i)+damping)
		}

		rVec := mat.NewVecDense(len(r), r)
		var jtr mat.VecDense
		jtr.MulVec(j.T(), rVec)

		sym := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for k := i; k < n; k++ {
				sym.SetSym(i, k, jtj.At(i, k))
			}
		}

		var chol mat.Cholesky
		var dx mat.VecDense
		if chol.Factorize(sym) {
			chol.SolveVecTo(&dx, &jtr)
		} else {
			dx.MulVec(pseudoInverse(&jtj, n), &jtr)
		}

		step := make([]float64, n)
		norm := 0.0
		for i := 0; i < n; i++ {
			step[i] = -dx.AtVec(i)
			norm += step[i] * step[i]
		}
		p.applyStep(step)

		if norm < stepNormTol*stepNormTol {
			stats.Converged = true
			break
		}
	}
	return stats, nil
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
