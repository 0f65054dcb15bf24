package lioio

import (
	"bytes"
	"strings"
	"testing"

	"go.viam.com/test"

	"github.com/cartograph-robotics/lio/spatialmath"
	"github.com/cartograph-robotics/lio/trajectory"
)

func TestWriteTrajectoryTxtSamplesAt100Hz(t *testing.T) {
	traj := trajectory.New(trajectory.PriorParams{Model: trajectory.WhiteNoiseOnJerk, Qc: [6]float64{1, 1, 1, 1, 1, 1}})
	traj.Add(trajectory.NewKnot(0))
	traj.Add(trajectory.NewKnot(1))

	var buf bytes.Buffer
	err := WriteTrajectoryTxt(&buf, traj, 0, 1)
	test.That(t, err, test.ShouldBeNil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	test.That(t, len(lines), test.ShouldEqual, 101)
}

func TestWriteTUMRoundTripsIdentity(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTUM(&buf, []float64{0.0}, []*spatialmath.Pose{spatialmath.Identity()})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.Contains(buf.String(), "0 0 0 0 0 0 1"), test.ShouldBeTrue)
}

func TestWriteLidarPosesCSVHeaderAndRowCount(t *testing.T) {
	var buf bytes.Buffer
	err := WriteLidarPosesCSV(&buf, []LidarPoseRow{{Easting: 1}, {Easting: 2}})
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	test.That(t, len(lines), test.ShouldEqual, 3)
}
