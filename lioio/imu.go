package lioio

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// IMUSample is one parsed row of the IMU CSV. Each angvel_/accel_ column is
// stored in the field of the same axis (angvel_x to AngVel.X, and so on);
// no body-to-robot rotation is applied.
type IMUSample struct {
	Time   float64
	AngVel r3.Vector
	Accel  r3.Vector
}

// ReadIMUCSV parses the `GPSTime, angvel_z, angvel_y, angvel_x, accel_z,
// accel_y, accel_x` columns of spec section 6.
func ReadIMUCSV(path string) ([]IMUSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening IMU CSV")
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading IMU CSV")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rows = skipHeader(rows, "GPSTime")

	samples := make([]IMUSample, 0, len(rows))
	for i, row := range rows {
		if len(row) < 7 {
			return nil, errors.Errorf("IMU CSV row %d has %d columns, want 7", i, len(row))
		}
		vals, err := parseFloats(row[:7])
		if err != nil {
			return nil, errors.Wrapf(err, "IMU CSV row %d", i)
		}
		samples = append(samples, IMUSample{
			Time:   vals[0],
			AngVel: r3.Vector{X: vals[3], Y: vals[2], Z: vals[1]},
			Accel:  r3.Vector{X: vals[6], Y: vals[5], Z: vals[4]},
		})
	}
	return samples, nil
}

func skipHeader(rows [][]string, headerToken string) [][]string {
	if len(rows) > 0 && len(rows[0]) > 0 && rows[0][0] == headerToken {
		return rows[1:]
	}
	return rows
}

func parseFloats(cols []string) ([]float64, error) {
	out := make([]float64, len(cols))
	for i, c := range cols {
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "column %d value %q", i, c)
		}
		out[i] = v
	}
	return out, nil
}
