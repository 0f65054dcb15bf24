package trajectory

import (
	"sort"

	"github.com/cartograph-robotics/lio/spatialmath"
)

// Trajectory holds the ordered, append-only set of knots that make up the
// sliding window plus everything already marginalized out. Knots are kept
// sorted by time; interpolation and prior-factor construction both operate
// on neighboring pairs.
type Trajectory struct {
	Params PriorParams
	Knots  []*Knot

	// History holds every knot ever added, in time order, and is never
	// pruned by DropBefore. A marginalized knot's Trm/W/Dw no longer
	// change (nothing in the active problem touches it once it leaves
	// Knots), so History lets the final trajectory dump replay the whole
	// run rather than only whatever window survived to the last frame.
	History []*Knot
}

// New creates an empty trajectory under the given prior.
func New(params PriorParams) *Trajectory {
	return &Trajectory{Params: params}
}

// Add inserts a knot, keeping Knots and History sorted by time.
func (t *Trajectory) Add(k *Knot) {
	t.Knots = insertSorted(t.Knots, k)
	t.History = insertSorted(t.History, k)
}

func insertSorted(knots []*Knot, k *Knot) []*Knot {
	i := sort.Search(len(knots), func(i int) bool { return knots[i].Time >= k.Time })
	knots = append(knots, nil)
	copy(knots[i+1:], knots[i:])
	knots[i] = k
	return knots
}

// DropBefore removes all knots strictly older than t, implementing
// marginalization's bookkeeping step of discarding consumed state (the
// information those knots carried is folded into the window via
// Marginalize before this is called; see the optimizer package).
func (t *Trajectory) DropBefore(cutoff float64) {
	i := sort.Search(len(t.Knots), func(i int) bool { return t.Knots[i].Time >= cutoff })
	t.Knots = t.Knots[i:]
}

// bracket returns the indices of the last knot at or before query time t and
// the first knot strictly after it, clamped to the slice's ends. Per spec section 4.4, queries
// outside the active window reuse the nearest boundary knot.
func bracket(knots []*Knot, time float64) (int, int) {
	n := len(knots)
	if n == 0 {
		return -1, -1
	}
	if n == 1 || time <= knots[0].Time {
		return 0, 0
	}
	if time >= knots[n-1].Time {
		return n - 1, n - 1
	}
	i := sort.Search(n, func(i int) bool { return knots[i].Time > time })
	return i - 1, i
}

// Interpolate evaluates the trajectory at time t, returning the pose and the
// body-frame velocity and acceleration twists. It uses the Gauss-Markov
// Lambda/Omega interpolation formula (Barfoot, "State Estimation for
// Robotics", ch. 3 Gaussian process priors): for each of the six decoupled
// axes,
//
//	Lambda(tau) = Phi(tau) - Omega(tau)*Phi(Dt)
//	Omega(tau)  = Q(tau) * Phi(Dt-tau)^T * Q(Dt)^-1
//	x(tau)      = Lambda(tau)*x_i + Omega(tau)*x_{i+1}
//
// where x_i's position channel is zero (the interpolation is expressed in
// the local frame of knot i) and x_{i+1}'s position channel is the relative
// twist Log(T_{i+1} * T_i^-1).
func (t *Trajectory) Interpolate(time float64) (*spatialmath.Pose, [6]float64, [6]float64) {
	return t.interpolateIn(t.Knots, time)
}

// InterpolateHistory evaluates the trajectory at time t against the full,
// never-pruned knot history rather than the current active window; used for
// the final trajectory dump, which must cover the whole run even after
// marginalization has discarded older knots from Knots.
func (t *Trajectory) InterpolateHistory(time float64) (*spatialmath.Pose, [6]float64, [6]float64) {
	return t.interpolateIn(t.History, time)
}

func (t *Trajectory) interpolateIn(knots []*Knot, time float64) (*spatialmath.Pose, [6]float64, [6]float64) {
	lo, hi := bracket(knots, time)
	if lo < 0 {
		return spatialmath.Identity(), [6]float64{}, [6]float64{}
	}
	ki := knots[lo]
	if lo == hi {
		return ki.Trm.Clone(), ki.W, ki.Dw
	}
	kj := knots[hi]
	dt := kj.Time - ki.Time
	tau := time - ki.Time

	rel := kj.Trm.Compose(ki.Trm.Inverse())
	xiRel := spatialmath.LogSE3(rel)

	var xi [6]float64
	var w, dw [6]float64
	for axis := 0; axis < 6; axis++ {
		si := axisState{0, ki.W[axis], ki.Dw[axis]}
		sj := axisState{xiRel[axis], kj.W[axis], kj.Dw[axis]}

		phiDt := t.Params.transition(dt, axis)
		qDt := t.Params.covariance(dt, axis)
		phiTau := t.Params.transition(tau, axis)
		qTau := t.Params.covariance(tau, axis)
		phiRem := t.Params.transition(dt-tau, axis)

		qDtInv := invert3(qDt)
		omega := qTau.mul(phiRem.transpose()).mul(qDtInv)
		lambda := sub3(phiTau, omega.mul(phiDt))

		s := add3FromStates(lambda.apply(si), omega.apply(sj))
		xi[axis] = s[0]
		w[axis] = s[1]
		dw[axis] = s[2]
	}

	pose := spatialmath.ExpSE3(xi).Compose(ki.Trm)
	return pose, w, dw
}

func add3FromStates(a, b axisState) axisState {
	return axisState{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// PriorFactor is the evaluated Gauss-Markov prior residual between two
// adjacent active knots: for each axis k, Residual[k] = x_{i+1,k} -
// Phi(dt)*x_{i,k}, weighted by Info[k] = Q(dt,k)^-1.
type PriorFactor struct {
	Residual [6]axisState
	Info     [6]phi3
}

// Whitened returns the prior factor's residual whitened by the Cholesky
// factor of each axis's information matrix, stacked into one 18-vector:
// e_k = U_k * r_k, where U_k^T*U_k = Info[k].
func (f PriorFactor) Whitened() [18]float64 {
	var out [18]float64
	for axis := 0; axis < 6; axis++ {
		u := choleskyUpper3(f.Info[axis])
		r := f.Residual[axis]
		out[axis*3+0] = u[0][0]*r[0] + u[0][1]*r[1] + u[0][2]*r[2]
		out[axis*3+1] = u[1][0]*r[0] + u[1][1]*r[1] + u[1][2]*r[2]
		out[axis*3+2] = u[2][0]*r[0] + u[2][1]*r[1] + u[2][2]*r[2]
	}
	return out
}

// PriorResidual builds the prior factor linking ki to kj (kj.Time > ki.Time),
// the continuous-time analogue of a between-knot odometry factor.
func (t *Trajectory) PriorResidual(ki, kj *Knot) PriorFactor {
	dt := kj.Time - ki.Time
	rel := kj.Trm.Compose(ki.Trm.Inverse())
	xiRel := spatialmath.LogSE3(rel)

	var f PriorFactor
	for axis := 0; axis < 6; axis++ {
		si := axisState{0, ki.W[axis], ki.Dw[axis]}
		sj := axisState{xiRel[axis], kj.W[axis], kj.Dw[axis]}

		phiDt := t.Params.transition(dt, axis)
		predicted := phiDt.apply(si)
		f.Residual[axis] = axisState{
			sj[0] - predicted[0],
			sj[1] - predicted[1],
			sj[2] - predicted[2],
		}
		f.Info[axis] = invert3(t.Params.covariance(dt, axis))
	}
	return f
}
