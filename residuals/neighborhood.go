package residuals

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Neighborhood is the local planar estimate computed from a keypoint's
// nearest map neighbors (spec section 4.5).
type Neighborhood struct {
	Center    r3.Vector
	Normal    r3.Vector
	Planarity float64 // a2D = (sigma2-sigma3)/sigma1, raised to power_planarity by callers
}

// ComputeNeighborhood estimates the barycenter, covariance, and normal
// (eigenvector of the smallest eigenvalue) of a set of neighbor points.
// Returns false if fewer than minNeighbors points are given or the
// resulting planarity is NaN.
func ComputeNeighborhood(neighbors []r3.Vector, minNeighbors int) (Neighborhood, bool) {
	if len(neighbors) < minNeighbors || len(neighbors) < 3 {
		return Neighborhood{}, false
	}

	var center r3.Vector
	for _, p := range neighbors {
		center = center.Add(p)
	}
	center = center.Mul(1 / float64(len(neighbors)))

	cov := mat.NewSymDense(3, nil)
	for _, p := range neighbors {
		d := p.Sub(center)
		dv := [3]float64{d.X, d.Y, d.Z}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				cov.SetSym(i, j, cov.At(i, j)+dv[i]*dv[j])
			}
		}
	}
	n := float64(len(neighbors))
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			cov.SetSym(i, j, cov.At(i, j)/n)
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return Neighborhood{}, false
	}
	vals := eig.Values(nil) // ascending order
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	sigma1 := math.Sqrt(math.Max(vals[2], 0))
	sigma2 := math.Sqrt(math.Max(vals[1], 0))
	sigma3 := math.Sqrt(math.Max(vals[0], 0))
	if sigma1 <= 0 {
		return Neighborhood{}, false
	}
	planarity := (sigma2 - sigma3) / sigma1
	if math.IsNaN(planarity) {
		return Neighborhood{}, false
	}

	normal := r3.Vector{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)}.Normalize()

	return Neighborhood{Center: center, Normal: normal, Planarity: planarity}, true
}
