package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// RotationToQuat converts a rotation matrix to a unit quaternion via the
// standard Shepperd trace method.
func RotationToQuat(r *mat.Dense) quat.Number {
	tr := mat.Trace(r)
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		return quat.Number{
			Real: 0.25 * s,
			Imag: (r.At(2, 1) - r.At(1, 2)) / s,
			Jmag: (r.At(0, 2) - r.At(2, 0)) / s,
			Kmag: (r.At(1, 0) - r.At(0, 1)) / s,
		}
	case r.At(0, 0) > r.At(1, 1) && r.At(0, 0) > r.At(2, 2):
		s := math.Sqrt(1+r.At(0, 0)-r.At(1, 1)-r.At(2, 2)) * 2
		return quat.Number{
			Real: (r.At(2, 1) - r.At(1, 2)) / s,
			Imag: 0.25 * s,
			Jmag: (r.At(0, 1) + r.At(1, 0)) / s,
			Kmag: (r.At(0, 2) + r.At(2, 0)) / s,
		}
	case r.At(1, 1) > r.At(2, 2):
		s := math.Sqrt(1+r.At(1, 1)-r.At(0, 0)-r.At(2, 2)) * 2
		return quat.Number{
			Real: (r.At(0, 2) - r.At(2, 0)) / s,
			Imag: (r.At(0, 1) + r.At(1, 0)) / s,
			Jmag: 0.25 * s,
			Kmag: (r.At(1, 2) + r.At(2, 1)) / s,
		}
	default:
		s := math.Sqrt(1+r.At(2, 2)-r.At(0, 0)-r.At(1, 1)) * 2
		return quat.Number{
			Real: (r.At(1, 0) - r.At(0, 1)) / s,
			Imag: (r.At(0, 2) + r.At(2, 0)) / s,
			Jmag: (r.At(1, 2) + r.At(2, 1)) / s,
			Kmag: 0.25 * s,
		}
	}
}

// QuatToRotation converts a unit quaternion back to a rotation matrix.
func QuatToRotation(q quat.Number) *mat.Dense {
	n := quat.Abs(q)
	if n > 0 {
		q = quat.Scale(1/n, q)
	}
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	})
}

// SlerpRotation spherically interpolates between rotations ra and rb at
// fraction alpha in [0,1], used for de-skewing points within a sweep (spec
// section 4.3).
func SlerpRotation(ra, rb *mat.Dense, alpha float64) *mat.Dense {
	qa := RotationToQuat(ra)
	qb := RotationToQuat(rb)
	return QuatToRotation(SlerpQuat(qa, qb, alpha))
}

// SlerpQuat spherically interpolates between two unit quaternions, taking the
// shorter arc.
func SlerpQuat(qa, qb quat.Number, alpha float64) quat.Number {
	dot := qa.Real*qb.Real + qa.Imag*qb.Imag + qa.Jmag*qb.Jmag + qa.Kmag*qb.Kmag
	if dot < 0 {
		qb = quat.Scale(-1, qb)
		dot = -dot
	}
	dot = math.Max(-1, math.Min(1, dot))

	const dotThreshold = 0.9995
	if dot > dotThreshold {
		// Nearly parallel: linear interpolation avoids division by ~0.
		out := quat.Number{
			Real: qa.Real + alpha*(qb.Real-qa.Real),
			Imag: qa.Imag + alpha*(qb.Imag-qa.Imag),
			Jmag: qa.Jmag + alpha*(qb.Jmag-qa.Jmag),
			Kmag: qa.Kmag + alpha*(qb.Kmag-qa.Kmag),
		}
		n := quat.Abs(out)
		if n == 0 {
			return qa
		}
		return quat.Scale(1/n, out)
	}

	theta0 := math.Acos(dot)
	theta := theta0 * alpha
	sinTheta0 := math.Sin(theta0)
	sinTheta := math.Sin(theta)

	s0 := math.Cos(theta) - dot*sinTheta/sinTheta0
	s1 := sinTheta / sinTheta0

	return quat.Number{
		Real: s0*qa.Real + s1*qb.Real,
		Imag: s0*qa.Imag + s1*qb.Imag,
		Jmag: s0*qa.Jmag + s1*qb.Jmag,
		Kmag: s0*qa.Kmag + s1*qb.Kmag,
	}
}
