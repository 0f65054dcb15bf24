// Package config holds the exhaustive set of recognized tuning options
// (spec section 6) and the validation that turns a malformed file into the
// MalformedConfig error kind (spec section 7).
package config

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/cartograph-robotics/lio/residuals"
	"github.com/cartograph-robotics/lio/spatialmath"
	"github.com/cartograph-robotics/lio/trajectory"
)

// ErrMalformedConfig is the sentinel wrapped by every validation failure.
var ErrMalformedConfig = errors.New("malformed config")

// Config is every recognized tuning option from spec section 6.
type Config struct {
	VoxelSize            float64
	InitVoxelSize        float64
	SampleVoxelSize      float64
	InitSampleVoxelSize  float64
	SizeVoxelMap         float64
	MinDistancePoints    float64
	MaxNumPointsInVoxel  int
	MaxDistance          float64
	MaxNumberNeighbors   int
	MinNumberNeighbors   int
	MinNumberKeypoints   int
	NumItersICP          int
	MaxIterations        int
	ThresholdOrientation float64
	ThresholdTranslation float64
	DelayAddingPoints    int
	InitNumFrames        int
	NumExtraStates       int
	P2PMaxDist           float64
	P2PLossFunc          residuals.LossKind
	P2PLossSigma         float64
	PowerPlanarity       float64
	UseIMU               bool
	RImuAcc              r3.Vector
	RImuAng              r3.Vector
	QImu                 float64
	P0Imu                [6]float64
	QcDiag               [6]float64
	AdDiag               [6]float64
	QgDiag               [6]float64
	TmiInitOnly          bool
	Gravity              float64
	UseFinalStateValue   bool
	NumThreads           int
	TSR                  *spatialmath.Pose
	PriorModel           trajectory.PriorModel
}

// Default returns a Config with the values the reference implementation
// ships as defaults, grounded on the option list of spec section 6 and
// original_source/steam_icp's Options struct.
func Default() Config {
	c := Config{
		VoxelSize:            0.5,
		InitVoxelSize:        0.2,
		SampleVoxelSize:      1.5,
		InitSampleVoxelSize:  1.0,
		SizeVoxelMap:         1.0,
		MinDistancePoints:    0.1,
		MaxNumPointsInVoxel:  20,
		MaxDistance:          100,
		MaxNumberNeighbors:   20,
		MinNumberNeighbors:   20,
		MinNumberKeypoints:   100,
		NumItersICP:          15,
		MaxIterations:        5,
		ThresholdOrientation: 0.1,
		ThresholdTranslation: 0.01,
		DelayAddingPoints:    4,
		InitNumFrames:        20,
		NumExtraStates:       0,
		P2PMaxDist:           0.5,
		P2PLossFunc:          residuals.LossCauchy,
		P2PLossSigma:         0.1,
		PowerPlanarity:       2,
		UseIMU:               true,
		RImuAcc:              r3.Vector{X: 1e-2, Y: 1e-2, Z: 1e-2},
		RImuAng:              r3.Vector{X: 1e-3, Y: 1e-3, Z: 1e-3},
		QImu:                 1e-5,
		Gravity:              -9.81,
		NumThreads:           4,
		TSR:                  spatialmath.Identity(),
		PriorModel:           trajectory.Singer,
	}
	for i := 0; i < 6; i++ {
		c.P0Imu[i] = 1e-4
		c.QcDiag[i] = 1.0
		c.AdDiag[i] = 1.0
	}
	c.QgDiag = [6]float64{1e-3, 1e-3, 1e-3, 0.1, 0.1, 1e-4}
	return c
}

// Validate rejects zero/negative scales, missing extrinsic calibration, and
// any per-axis vector whose length mismatches the six trajectory axes --
// the MalformedConfig cases named in spec section 7.
func (c Config) Validate() error {
	if c.VoxelSize <= 0 || c.InitVoxelSize <= 0 {
		return errors.Wrap(ErrMalformedConfig, "voxel sizes must be positive")
	}
	if c.MaxNumPointsInVoxel <= 0 {
		return errors.Wrap(ErrMalformedConfig, "max_num_points_in_voxel must be positive")
	}
	if c.MinDistancePoints < 0 {
		return errors.Wrap(ErrMalformedConfig, "min_distance_points must be non-negative")
	}
	if c.MinNumberNeighbors <= 0 || c.MaxNumberNeighbors < c.MinNumberNeighbors {
		return errors.Wrap(ErrMalformedConfig, "neighbor count bounds are inconsistent")
	}
	if c.NumItersICP <= 0 || c.MaxIterations <= 0 {
		return errors.Wrap(ErrMalformedConfig, "iteration counts must be positive")
	}
	if c.TSR == nil {
		return errors.Wrap(ErrMalformedConfig, "missing sensor-to-robot extrinsic T_sr")
	}
	for i := 0; i < 6; i++ {
		if c.QcDiag[i] <= 0 {
			return errors.Wrap(ErrMalformedConfig, "qc_diag entries must be positive")
		}
	}
	if c.NumThreads <= 0 {
		return errors.Wrap(ErrMalformedConfig, "num_threads must be positive")
	}
	return nil
}
