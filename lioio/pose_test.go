package lioio

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestReadPoseCSVParsesIdentityRow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pose.csv")
	content := "GPSTime,T00,T01,T02,T03,T10,T11,T12,T13,T20,T21,T22,T23\n" +
		"2.0,1,0,0,5,0,1,0,6,0,0,1,7\n"
	test.That(t, os.WriteFile(path, []byte(content), 0o644), test.ShouldBeNil)

	samples, err := ReadPoseCSV(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(samples), test.ShouldEqual, 1)
	test.That(t, samples[0].Time, test.ShouldAlmostEqual, 2.0, 1e-9)
	test.That(t, samples[0].Pose.T.X, test.ShouldAlmostEqual, 5.0, 1e-9)
	test.That(t, samples[0].Pose.T.Z, test.ShouldAlmostEqual, 7.0, 1e-9)
	test.That(t, samples[0].Pose.R.At(1, 1), test.ShouldAlmostEqual, 1.0, 1e-9)
}
