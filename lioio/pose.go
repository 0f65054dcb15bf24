package lioio

import (
	"encoding/csv"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/cartograph-robotics/lio/spatialmath"
)

// PoseSample is one parsed row of the pose-measurement CSV: a timestamp and
// the sensor-to-world transform.
type PoseSample struct {
	Time float64
	Pose *spatialmath.Pose
}

// ReadPoseCSV parses the `GPSTime, T00..T23` columns of spec section 6: the
// row-major top 3 rows of the 4x4 sensor-to-world transform.
func ReadPoseCSV(path string) ([]PoseSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening pose CSV")
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading pose CSV")
	}
	rows = skipHeader(rows, "GPSTime")

	samples := make([]PoseSample, 0, len(rows))
	for i, row := range rows {
		if len(row) < 13 {
			return nil, errors.Errorf("pose CSV row %d has %d columns, want 13", i, len(row))
		}
		vals, err := parseFloats(row[:13])
		if err != nil {
			return nil, errors.Wrapf(err, "pose CSV row %d", i)
		}
		r3x3 := mat.NewDense(3, 3, []float64{
			vals[1], vals[2], vals[3],
			vals[5], vals[6], vals[7],
			vals[9], vals[10], vals[11],
		})
		t := r3.Vector{X: vals[4], Y: vals[8], Z: vals[12]}
		samples = append(samples, PoseSample{Time: vals[0], Pose: spatialmath.NewPose(r3x3, t)})
	}
	return samples, nil
}
