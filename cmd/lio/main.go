// Command lio runs the continuous-time LiDAR-inertial odometry engine over
// a directory of point sweep files and an IMU CSV, writing the trajectory
// and pose output artifacts of spec section 6.
package main

import (
	"flag"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cartograph-robotics/lio/config"
	"github.com/cartograph-robotics/lio/lioio"
	"github.com/cartograph-robotics/lio/odometry"
	"github.com/cartograph-robotics/lio/points"
	"github.com/cartograph-robotics/lio/spatialmath"
)

func main() {
	pointsDir := flag.String("points-dir", "", "directory of <microseconds>.bin sweep files")
	imuCSV := flag.String("imu-csv", "", "IMU CSV path")
	outDir := flag.String("out-dir", ".", "output directory for trajectory/pose artifacts")
	flag.Parse()

	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	if err := run(*pointsDir, *imuCSV, *outDir, logger); err != nil {
		logger.Fatalw("run failed", "error", err)
	}
}

func newLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return l.Sugar()
}

func run(pointsDir, imuCSVPath, outDir string, logger *zap.SugaredLogger) error {
	if pointsDir == "" {
		return errors.New("-points-dir is required")
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	var imuSamples []lioio.IMUSample
	if imuCSVPath != "" {
		samples, err := lioio.ReadIMUCSV(imuCSVPath)
		if err != nil {
			return errors.Wrap(err, "reading IMU CSV")
		}
		imuSamples = samples
	}

	files, err := sweepFiles(pointsDir)
	if err != nil {
		return errors.Wrap(err, "listing sweep files")
	}

	driver := odometry.NewDriver(cfg, logger)

	var (
		errs       error
		frames     []*odometry.FrameRecord
		imuCursor  int
		firstBegin = 0.0
		lastEnd    = 0.0
	)

	for i, path := range files {
		fileTime, pts, err := lioio.ReadPointFile(path)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "reading %s", path))
			continue
		}

		frameIMU, newCursor := sliceIMUForFrame(imuSamples, imuCursor, pts)
		imuCursor = newCursor

		frame, err := driver.Process(fileTime, pts, frameIMU)
		if err != nil {
			return errors.Wrapf(err, "frame %d (%s)", i, path)
		}
		if frame.Failed {
			logger.Warnw("frame marked failed", "index", i, "file", path)
			continue
		}

		if i == 0 {
			firstBegin = frame.BeginTimestamp
		}
		lastEnd = frame.EndTimestamp
		frames = append(frames, frame)
	}

	if cfg.UseFinalStateValue {
		driver.RecomputeFinal(frames)
	}

	var (
		lidarRows []lioio.LidarPoseRow
		tumTimes  []float64
		tumPoses  []*spatialmath.Pose
	)
	for _, frame := range frames {
		lidarRows = append(lidarRows, lidarRowFromFrame(frame))
		if frame.MidPose != nil {
			tumTimes = append(tumTimes, frame.EvalTime)
			tumPoses = append(tumPoses, frame.MidPose)
		}
	}

	if err := writeOutputs(outDir, driver, firstBegin, lastEnd, lidarRows, tumTimes, tumPoses); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// sweepFiles lists <microseconds>.bin files in pointsDir sorted by the
// numeric timestamp encoded in their name, not lexical order (timestamps
// don't share a fixed digit width across long runs).
func sweepFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bin") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Slice(files, func(i, j int) bool {
		return sweepSortKey(files[i]) < sweepSortKey(files[j])
	})
	return files, nil
}

func sweepSortKey(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	const width = 20
	if len(base) >= width {
		return base
	}
	return strings.Repeat("0", width-len(base)) + base
}

// sliceIMUForFrame returns every sample up to the frame's last point
// timestamp, advancing cursor past them so the next frame doesn't see them
// again.
func sliceIMUForFrame(samples []lioio.IMUSample, cursor int, pts []points.Point) ([]lioio.IMUSample, int) {
	if len(pts) == 0 {
		return nil, cursor
	}
	maxT := pts[0].Timestamp
	for _, p := range pts {
		if p.Timestamp > maxT {
			maxT = p.Timestamp
		}
	}
	start := cursor
	for cursor < len(samples) && samples[cursor].Time <= maxT {
		cursor++
	}
	return samples[start:cursor], cursor
}

func lidarRowFromFrame(frame *odometry.FrameRecord) lioio.LidarPoseRow {
	pose := frame.MidPose
	if pose == nil {
		return lioio.LidarPoseRow{}
	}
	roll, pitch := rollPitchFromRotation(pose)
	return lioio.LidarPoseRow{
		Easting:  pose.T.X,
		Northing: pose.T.Y,
		Altitude: pose.T.Z,
		VelEast:  frame.MidVelocity[0],
		VelNorth: frame.MidVelocity[1],
		VelUp:    frame.MidVelocity[2],
		Roll:     roll,
		Pitch:    pitch,
		Heading:  lioio.HeadingFromRotation(pose),
		AngVelZ:  frame.MidVelocity[5],
		AngVelY:  frame.MidVelocity[4],
		AngVelX:  frame.MidVelocity[3],
	}
}

// rollPitchFromRotation extracts roll and pitch (radians) from an XYZ-order
// rotation matrix; HeadingFromRotation covers the remaining yaw channel.
func rollPitchFromRotation(p *spatialmath.Pose) (roll, pitch float64) {
	r := p.R
	roll = math.Atan2(r.At(2, 1), r.At(2, 2))
	pitch = math.Atan2(-r.At(2, 0), math.Hypot(r.At(2, 1), r.At(2, 2)))
	return roll, pitch
}

func writeOutputs(outDir string, driver *odometry.Driver, begin, end float64, rows []lioio.LidarPoseRow, tumTimes []float64, tumPoses []*spatialmath.Pose) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	var errs error

	// spec section 6 names this artifact trajectory_<utc>.txt, one run per
	// timestamp so successive runs over the same out-dir don't clobber
	// each other's dumps.
	trajName := "trajectory_" + time.Now().UTC().Format("20060102T150405Z") + ".txt"
	trajFile, err := os.Create(filepath.Join(outDir, trajName))
	if err != nil {
		return errors.Wrap(err, "creating "+trajName)
	}
	if err := lioio.WriteTrajectoryTxt(trajFile, driver.Traj, begin, end); err != nil {
		errs = multierr.Append(errs, err)
	}
	errs = multierr.Append(errs, trajFile.Close())

	posesFile, err := os.Create(filepath.Join(outDir, "lidar_poses.csv"))
	if err != nil {
		return errors.Wrap(err, "creating lidar_poses.csv")
	}
	if err := lioio.WriteLidarPosesCSV(posesFile, rows); err != nil {
		errs = multierr.Append(errs, err)
	}
	errs = multierr.Append(errs, posesFile.Close())

	tumFile, err := os.Create(filepath.Join(outDir, "lidar_poses_tum.txt"))
	if err != nil {
		return errors.Wrap(err, "creating lidar_poses_tum.txt")
	}
	if err := lioio.WriteTUM(tumFile, tumTimes, tumPoses); err != nil {
		errs = multierr.Append(errs, err)
	}
	errs = multierr.Append(errs, tumFile.Close())

	return errs
}
