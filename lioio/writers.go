package lioio

import (
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/cartograph-robotics/lio/spatialmath"
	"github.com/cartograph-robotics/lio/trajectory"
)

// WriteTrajectoryTxt samples traj at 100 Hz across [begin, end] and writes
// one row per sample: `0.0, t_ns, T00..T33, w0..w5` (spec section 6).
func WriteTrajectoryTxt(w io.Writer, traj *trajectory.Trajectory, begin, end float64) error {
	const hz = 100.0
	dt := 1.0 / hz
	for t := begin; t <= end+1e-9; t += dt {
		pose, vel, _ := traj.InterpolateHistory(t)
		world := pose.Inverse()
		if _, err := fmt.Fprintf(w, "0.0,%d,%s,%s\n", int64(t*1e9), formatPoseRowMajor4x4(world), formatVec6(vel)); err != nil {
			return errors.Wrap(err, "writing trajectory row")
		}
	}
	return nil
}

// WriteLidarPosesCSV writes one ground-truth-shape row per frame:
// easting/northing/altitude, linear velocity (east,north,up), roll/pitch/
// heading, angular velocity (z,y,x).
func WriteLidarPosesCSV(w io.Writer, rows []LidarPoseRow) error {
	if _, err := fmt.Fprintln(w, "easting,northing,altitude,vel_east,vel_north,vel_up,roll,pitch,heading,angvel_z,angvel_y,angvel_x"); err != nil {
		return errors.Wrap(err, "writing lidar_poses.csv header")
	}
	for i, r := range rows {
		_, err := fmt.Fprintf(w, "%g,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g\n",
			r.Easting, r.Northing, r.Altitude,
			r.VelEast, r.VelNorth, r.VelUp,
			r.Roll, r.Pitch, r.Heading,
			r.AngVelZ, r.AngVelY, r.AngVelX)
		if err != nil {
			return errors.Wrapf(err, "writing lidar_poses.csv row %d", i)
		}
	}
	return nil
}

// LidarPoseRow is one row of lidar_poses.csv.
type LidarPoseRow struct {
	Easting, Northing, Altitude    float64
	VelEast, VelNorth, VelUp       float64
	Roll, Pitch, Heading           float64
	AngVelZ, AngVelY, AngVelX      float64
}

// WriteTUM writes `t x y z qx qy qz qw` rows, the TUM trajectory format.
func WriteTUM(w io.Writer, times []float64, poses []*spatialmath.Pose) error {
	if len(times) != len(poses) {
		return errors.New("times and poses length mismatch")
	}
	for i, p := range poses {
		q := spatialmath.RotationToQuat(p.R)
		_, err := fmt.Fprintf(w, "%.9f %g %g %g %g %g %g %g\n", times[i], p.T.X, p.T.Y, p.T.Z, q.Imag, q.Jmag, q.Kmag, q.Real)
		if err != nil {
			return errors.Wrapf(err, "writing TUM row %d", i)
		}
	}
	return nil
}

func formatPoseRowMajor4x4(p *spatialmath.Pose) string {
	r := p.R
	return fmt.Sprintf("%g,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g",
		r.At(0, 0), r.At(0, 1), r.At(0, 2), p.T.X,
		r.At(1, 0), r.At(1, 1), r.At(1, 2), p.T.Y,
		r.At(2, 0), r.At(2, 1), r.At(2, 2), p.T.Z,
		0.0, 0.0, 0.0, 1.0,
	)
}

func formatVec6(v [6]float64) string {
	return fmt.Sprintf("%g,%g,%g,%g,%g,%g", v[0], v[1], v[2], v[3], v[4], v[5])
}

// HeadingFromRotation extracts a yaw/heading angle from a rotation matrix,
// used by callers building a LidarPoseRow from a Pose.
func HeadingFromRotation(p *spatialmath.Pose) float64 {
	return math.Atan2(p.R.At(1, 0), p.R.At(0, 0))
}
