// Package odometry implements the per-sweep driver loop of spec section
// 4.7: frame bookkeeping, motion initialization, the ICP loop, the
// sliding-window solve, and map maintenance.
package odometry

import (
	"github.com/pkg/errors"

	"github.com/cartograph-robotics/lio/points"
	"github.com/cartograph-robotics/lio/spatialmath"
)

// FrameRecord is the per-sweep bookkeeping structure of spec section 3.
type FrameRecord struct {
	Index          int
	BeginTimestamp float64
	EndTimestamp   float64
	EvalTime       float64

	RawPoints []points.Point
	Keypoints []points.Point

	BeginPose *spatialmath.Pose
	EndPose   *spatialmath.Pose
	MidPose   *spatialmath.Pose

	MidVelocity     [6]float64
	MidAcceleration [6]float64
	MidBias         [6]float64
	MidCovariance   [18][18]float64

	// AcceptedP2PTerms is the number of point-to-plane cost terms that
	// actually survived the planarity/distance association gate on the
	// most recent buildCostTerms call, as opposed to len(Keypoints) (the
	// pre-association down-sampled count). Spec section 4.6 guardrail
	// (iii) gates on this, not on Keypoints.
	AcceptedP2PTerms int

	Failed bool
}

// Error kinds from spec section 7. InvariantViolation is fatal;
// DegenerateFrame marks the current frame failed but lets processing
// continue.
var (
	ErrInvariantViolation = errors.New("invariant violation")
	ErrDegenerateFrame    = errors.New("degenerate frame")
)
