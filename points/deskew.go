package points

import (
	"github.com/golang/geo/r3"

	"github.com/cartograph-robotics/lio/spatialmath"
)

// Deskew applies the initial (bootstrap) motion de-skew described in spec
// section 4.3: given begin/end world poses (Rb,tb), (Re,te) and each point's
// in-sweep fraction alpha, it sets World = R(alpha)*Raw + t(alpha), with
// R(alpha) the slerp of Rb and Re and t(alpha) their linear interpolation.
// This is used only to bootstrap the first ICP iteration, before a
// continuous-time trajectory is defined over the sweep; once the optimizer
// has run, World positions are recomputed by interpolating the trajectory
// instead (see trajectory.Interpolate).
func Deskew(pts []Point, begin, end *spatialmath.Pose) {
	for i := range pts {
		alpha := pts[i].Alpha
		r := spatialmath.SlerpRotation(begin.R, end.R, alpha)
		t := lerp(begin.T, end.T, alpha)
		pose := spatialmath.NewPose(r, t)
		pts[i].World = pose.Transform(pts[i].Raw)
	}
}

func lerp(a, b r3.Vector, alpha float64) r3.Vector {
	return r3.Vector{
		X: (1-alpha)*a.X + alpha*b.X,
		Y: (1-alpha)*a.Y + alpha*b.Y,
		Z: (1-alpha)*a.Z + alpha*b.Z,
	}
}
