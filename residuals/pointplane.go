package residuals

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/cartograph-robotics/lio/spatialmath"
)

// PointToPlaneFactor is one ICP cost term: a keypoint in sensor frame,
// paired with the map plane it was associated to, weighted by local
// planarity (spec section 4.5).
type PointToPlaneFactor struct {
	Raw       r3.Vector // sensor-frame position
	Time      float64   // measurement time, for trajectory interpolation
	Plane     Neighborhood
	Weight    float64 // w = planarity^powerPlanarity
	Epsilon   float64 // isotropic regularizer added to the normal outer product
	Loss      Loss
	LossSigma float64
}

// NewPointToPlaneFactor builds a factor from an accepted association,
// applying the epsilon=1e-5 regularizer from spec section 4.5.
func NewPointToPlaneFactor(raw r3.Vector, t float64, plane Neighborhood, powerPlanarity float64, loss Loss, sigma float64) PointToPlaneFactor {
	w := math.Pow(math.Max(plane.Planarity, 0), powerPlanarity)
	return PointToPlaneFactor{Raw: raw, Time: t, Plane: plane, Weight: w, Epsilon: 1e-5, Loss: loss, LossSigma: sigma}
}

// Accept reports whether the association passes the distance gate
// |n^T(p_m - c)| < maxDist, given the keypoint's world position.
func Accept(worldPoint r3.Vector, plane Neighborhood, maxDist float64) bool {
	d := worldPoint.Sub(plane.Center)
	return math.Abs(plane.Normal.Dot(d)) < maxDist
}

// informationMatrix returns W = weight*n*n^T + epsilon*I, as a 3x3 SPD
// matrix.
func (f PointToPlaneFactor) informationMatrix() *mat.SymDense {
	n := f.Plane.Normal
	w := mat.NewSymDense(3, nil)
	nv := [3]float64{n.X, n.Y, n.Z}
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			v := f.Weight*nv[i]*nv[j]
			if i == j {
				v += f.Epsilon
			}
			w.SetSym(i, j, v)
		}
	}
	return w
}

// Evaluate computes the whitened, robustly-weighted residual at world point
// worldPoint (= pose.Transform(Raw), pose interpolated at f.Time by the
// caller). The returned 3-vector e satisfies e^T*e == loss.Weight(s,sigma)*s
// where s = r^T*W*r, r = worldPoint - plane.Center.
func (f PointToPlaneFactor) Evaluate(worldPoint r3.Vector) [3]float64 {
	r := worldPoint.Sub(f.Plane.Center)
	rv := mat.NewVecDense(3, []float64{r.X, r.Y, r.Z})

	w := f.informationMatrix()
	var chol mat.Cholesky
	if !chol.Factorize(w) {
		return [3]float64{}
	}
	var lt mat.TriDense
	chol.UTo(&lt) // U such that W = U^T*U

	var whitened mat.VecDense
	whitened.MulVec(&lt, rv)

	s := whitened.AtVec(0)*whitened.AtVec(0) + whitened.AtVec(1)*whitened.AtVec(1) + whitened.AtVec(2)*whitened.AtVec(2)

	loss := f.Loss
	if loss == nil {
		loss = L2Loss{}
	}
	scale := math.Sqrt(loss.Weight(s, f.LossSigma))

	return [3]float64{whitened.AtVec(0) * scale, whitened.AtVec(1) * scale, whitened.AtVec(2) * scale}
}

// WorldPoint maps a raw sensor point through an interpolated pose,
// convenience wrapper kept next to the factor that consumes it.
func WorldPoint(pose *spatialmath.Pose, raw r3.Vector) r3.Vector {
	return pose.Transform(raw)
}
