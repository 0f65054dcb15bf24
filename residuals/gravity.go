package residuals

import (
	"math"

	"github.com/cartograph-robotics/lio/spatialmath"
)

// GravityPriorFactor is the gravity-frame prior of spec section 4.5. When
// Locked is true, T_mi is fixed after initialization and no factor is
// emitted (the caller should skip evaluation and exclude T_mi from the
// optimizer's variable set for that knot). Otherwise it is a random walk
// between consecutive knots' T_mi with covariance diag(QgDiag).
type GravityPriorFactor struct {
	Locked  bool
	QgDiag  [6]float64
}

// Evaluate returns the whitened 6-vector SE(3) log-difference residual
// between consecutive knots' T_mi, Log(Tmi_next * Tmi_prev^-1), scaled by
// the inverse of sqrt(QgDiag). It is undefined (do not call) when Locked.
func (f GravityPriorFactor) Evaluate(tmiNext, tmiPrev *spatialmath.Pose) [6]float64 {
	rel := tmiNext.Compose(tmiPrev.Inverse())
	xi := spatialmath.LogSE3(rel)
	var out [6]float64
	for i := 0; i < 6; i++ {
		sigma := 1.0
		if f.QgDiag[i] > 0 {
			sigma = math.Sqrt(f.QgDiag[i])
		}
		out[i] = xi[i] / sigma
	}
	return out
}
