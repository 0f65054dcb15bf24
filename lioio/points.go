// Package lioio implements the binary and CSV readers and text/CSV writers
// of spec section 6: point sweeps, IMU samples, pose measurements, and the
// trajectory/pose output artifacts.
package lioio

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/cartograph-robotics/lio/points"
)

// pointRecordBytes is the fixed little-endian record size of spec section 6:
// f32 x, y, z, intensity, reserved, time_offset_s.
const pointRecordBytes = 24

// ReadPointFile parses a `<microseconds>.bin` sweep file into Points. The
// file's base name (microseconds since some fixed epoch) becomes the
// returned fileTimestamp in seconds.
func ReadPointFile(path string) (fileTimestamp float64, pts []points.Point, err error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	micros, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "point file name %q is not a microsecond timestamp", base)
	}
	fileTimestamp = float64(micros) / 1e6

	f, err := os.Open(path)
	if err != nil {
		return 0, nil, errors.Wrap(err, "opening point file")
	}
	defer f.Close()

	buf := make([]byte, pointRecordBytes)
	for i := 0; ; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, nil, errors.Wrapf(err, "reading point record %d", i)
		}
		x := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
		z := math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12]))
		intensity := math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16]))
		timeOffset := math.Float32frombits(binary.LittleEndian.Uint32(buf[20:24]))

		pts = append(pts, points.Point{
			Raw:       r3.Vector{X: float64(x), Y: float64(y), Z: float64(z)},
			Intensity: float64(intensity),
			Timestamp: fileTimestamp + float64(timeOffset),
		})
	}
	return fileTimestamp, pts, nil
}
