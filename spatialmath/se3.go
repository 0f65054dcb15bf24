package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Pose is a rigid transform in SE(3): a rotation R and translation T such that
// Pose.Transform(p) = R*p + T. It is the representation used for every knot's
// T_rm and T_mi, and for the fixed sensor-to-robot extrinsic T_sr.
type Pose struct {
	R *mat.Dense // 3x3 rotation matrix
	T r3.Vector  // translation
}

// NewPose builds a Pose from a rotation matrix and translation.
func NewPose(r *mat.Dense, t r3.Vector) *Pose {
	return &Pose{R: r, T: t}
}

// Identity returns the identity transform.
func Identity() *Pose {
	return &Pose{R: eye3(), T: r3.Vector{}}
}

// Transform applies the pose to a point: R*p + T.
func (p *Pose) Transform(pt r3.Vector) r3.Vector {
	v := mat.NewVecDense(3, []float64{pt.X, pt.Y, pt.Z})
	var out mat.VecDense
	out.MulVec(p.R, v)
	return r3.Vector{X: out.AtVec(0) + p.T.X, Y: out.AtVec(1) + p.T.Y, Z: out.AtVec(2) + p.T.Z}
}

// Inverse returns the inverse transform: R^T, -R^T*T.
func (p *Pose) Inverse() *Pose {
	var rt mat.Dense
	rt.CloneFrom(p.R.T())
	v := mat.NewVecDense(3, []float64{p.T.X, p.T.Y, p.T.Z})
	var out mat.VecDense
	out.MulVec(&rt, v)
	return &Pose{R: &rt, T: r3.Vector{X: -out.AtVec(0), Y: -out.AtVec(1), Z: -out.AtVec(2)}}
}

// Compose returns p * other, i.e. applying other first, then p.
func (p *Pose) Compose(other *Pose) *Pose {
	var r mat.Dense
	r.Mul(p.R, other.R)
	t := p.Transform(other.T)
	return &Pose{R: &r, T: t}
}

// Clone returns a deep copy of the pose.
func (p *Pose) Clone() *Pose {
	var r mat.Dense
	r.CloneFrom(p.R)
	return &Pose{R: &r, T: p.T}
}

// Reproject reprojects the rotation part back onto SO(3) in place, using
// Orthonormalize, whenever its orthogonality error exceeds the 1e-6 tolerance.
// Per spec section 4.1, this must happen before the pose is used outside the
// optimizer's inner loop.
func (p *Pose) Reproject() {
	p.R = Orthonormalize(p.R)
}

// ExpSE3 maps a 6-vector twist xi = (rho, phi) -- linear part first, angular
// part second -- to a Pose via the SE(3) exponential map using the SO(3) left
// Jacobian: T = (J(phi)*rho, exp(phi)).
func ExpSE3(xi [6]float64) *Pose {
	rho := r3.Vector{X: xi[0], Y: xi[1], Z: xi[2]}
	phi := r3.Vector{X: xi[3], Y: xi[4], Z: xi[5]}

	r := ExpSO3(phi)
	j := LeftJacobianSO3(phi)

	v := mat.NewVecDense(3, []float64{rho.X, rho.Y, rho.Z})
	var out mat.VecDense
	out.MulVec(j, v)

	return &Pose{R: r, T: r3.Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}}
}

// LogSE3 maps a Pose to its twist xi = (rho, phi) via the SE(3) logarithm,
// the inverse of ExpSE3.
func LogSE3(p *Pose) [6]float64 {
	phi := LogSO3(p.R)
	jInv := LeftJacobianInverseSO3(phi)

	v := mat.NewVecDense(3, []float64{p.T.X, p.T.Y, p.T.Z})
	var out mat.VecDense
	out.MulVec(jInv, v)

	return [6]float64{out.AtVec(0), out.AtVec(1), out.AtVec(2), phi.X, phi.Y, phi.Z}
}

// AdjointSE3 returns the 6x6 adjoint matrix Ad(T) mapping twists in the frame
// of T's domain into twists in the frame of T's codomain: Ad(T) = [[R, skew(t)*R],[0, R]].
func AdjointSE3(p *Pose) *mat.Dense {
	ad := mat.NewDense(6, 6, nil)
	setBlock(ad, 0, 0, p.R)
	setBlock(ad, 3, 3, p.R)

	var skewT, skewTR mat.Dense
	skewT.CloneFrom(Skew(p.T))
	skewTR.Mul(&skewT, p.R)
	setBlock(ad, 0, 3, &skewTR)
	return ad
}

// setBlock writes src into the rowOff,colOff upper-left-indexed block of d.
// gonum's mat.Dense does not provide a block-set helper, so this is a small
// local convenience used only for assembling the 6x6 adjoint and Jacobians.
func setBlock(d *mat.Dense, rowOff, colOff int, src mat.Matrix) {
	rows, cols := src.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d.Set(rowOff+i, colOff+j, src.At(i, j))
		}
	}
}
