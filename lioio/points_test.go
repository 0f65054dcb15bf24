package lioio

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func writeRecord(buf []byte, x, y, z, intensity, reserved, timeOffset float32) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(x))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(y))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(z))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(intensity))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(reserved))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(timeOffset))
}

func TestReadPointFileParsesRecordsAndTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1500000.bin")

	buf := make([]byte, 48)
	writeRecord(buf[0:24], 1, 2, 3, 0.5, 0, 0.001)
	writeRecord(buf[24:48], 4, 5, 6, 0.25, 0, 0.002)
	test.That(t, os.WriteFile(path, buf, 0o644), test.ShouldBeNil)

	ts, pts, err := ReadPointFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ts, test.ShouldAlmostEqual, 1.5, 1e-9)
	test.That(t, len(pts), test.ShouldEqual, 2)
	test.That(t, pts[0].Raw.X, test.ShouldAlmostEqual, 1.0, 1e-6)
	test.That(t, pts[1].Intensity, test.ShouldAlmostEqual, 0.25, 1e-6)
	test.That(t, pts[0].Timestamp, test.ShouldAlmostEqual, 1.5+0.001, 1e-6)
}

func TestReadPointFileRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-a-number.bin")
	test.That(t, os.WriteFile(path, []byte{}, 0o644), test.ShouldBeNil)

	_, _, err := ReadPointFile(path)
	test.That(t, err, test.ShouldBeError)
}
