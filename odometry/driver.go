package odometry

import (
	"math"
	"math/rand"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/cartograph-robotics/lio/config"
	"github.com/cartograph-robotics/lio/lioio"
	"github.com/cartograph-robotics/lio/optimizer"
	"github.com/cartograph-robotics/lio/points"
	"github.com/cartograph-robotics/lio/residuals"
	"github.com/cartograph-robotics/lio/spatialmath"
	"github.com/cartograph-robotics/lio/trajectory"
	"github.com/cartograph-robotics/lio/voxelmap"
)

// shuffleSeed fixes the point-shuffling order (spec section 4.7 step 3) so a
// run is reproducible.
const shuffleSeed = 42

// Driver runs the per-frame pipeline of spec section 4.7: frame bookkeeping,
// motion initialization, the ICP loop, the sliding-window solve, and map
// maintenance.
type Driver struct {
	Cfg    config.Config
	Traj   *trajectory.Trajectory
	Map    *voxelmap.Map
	Logger *zap.SugaredLogger

	frames     []*FrameRecord // every processed frame, used for delayed map insertion
	marginal   *optimizer.LinearizedPrior
	pendingIMU []lioio.IMUSample // IMU samples observed during the frame currently being processed

	rng *rand.Rand
}

// NewDriver constructs a driver from a validated config.
func NewDriver(cfg config.Config, logger *zap.SugaredLogger) *Driver {
	return &Driver{
		Cfg: cfg,
		Traj: trajectory.New(trajectory.PriorParams{
			Model: cfg.PriorModel,
			Qc:    cfg.QcDiag,
			Ad:    cfg.AdDiag,
		}),
		Map:    voxelmap.New(cfg.SizeVoxelMap, cfg.MaxNumPointsInVoxel, cfg.MinDistancePoints),
		Logger: logger,
		rng:    rand.New(rand.NewSource(shuffleSeed)),
	}
}

// Process runs the full per-frame pipeline on one incoming sweep, returning
// the frame's record (Failed set on a degenerate frame rather than an
// error) and an error only for a fatal invariant violation.
func (d *Driver) Process(fileTime float64, raw []points.Point, imu []lioio.IMUSample) (*FrameRecord, error) {
	idx := len(d.frames)
	frame := &FrameRecord{Index: idx, EvalTime: fileTime}
	d.pendingIMU = imu
	// Appended up front (not after processing) so steps that index
	// d.frames by the current frame's own Index -- map-update delay,
	// marginalization's window cutoff -- see it immediately; Failed and
	// the pose fields are filled in on this same pointer as work proceeds.
	d.frames = append(d.frames, frame)

	if len(raw) == 0 {
		frame.Failed = true
		return frame, nil
	}

	frame.BeginTimestamp, frame.EndTimestamp = timestampRange(raw)
	if frame.EndTimestamp < frame.BeginTimestamp {
		return nil, errors.Wrap(ErrInvariantViolation, "frame end precedes begin")
	}

	beginWorld, endWorld := d.initializeMotion(idx)
	frame.BeginPose = beginWorld
	frame.EndPose = endWorld

	d.initializeFrame(frame, raw)

	if idx == 0 {
		d.freezeAnchorKnot(frame.BeginTimestamp)
	} else {
		d.appendExtraStates(idx, d.frames[idx-1].EndTimestamp, frame.EndTimestamp)
	}

	hadMap := d.Map.Size() > 0
	if err := d.runICPLoop(frame); err != nil {
		if errors.Is(err, optimizer.ErrTooManyVariables) || errors.Is(err, optimizer.ErrTooManyCostTerms) {
			frame.Failed = true
			d.Logger.Warnw("solve rejected by guardrail", "index", idx, "error", err)
			return frame, nil
		}
		return nil, err
	}

	// Guardrail (iii) of spec section 4.6: too few down-sampled keypoints
	// to begin with (e.g. a degenerate single-voxel sweep) is degenerate
	// regardless of map state. Separately, once a map exists to associate
	// against, too few of those keypoints surviving the planarity/distance
	// association gate (frame.AcceptedP2PTerms) is degenerate even when
	// the raw keypoint count looked adequate -- a sparse or newly
	// initialized map, or a bad initial guess after fast motion, can fail
	// association for nearly every keypoint. A bootstrap frame (no map
	// yet) can't produce association residuals by construction, so it is
	// exempt from the second check.
	tooFewKeypoints := len(frame.Keypoints) < d.Cfg.MinNumberKeypoints
	tooFewAssociations := hadMap && frame.AcceptedP2PTerms < d.Cfg.MinNumberKeypoints
	if tooFewKeypoints || tooFewAssociations {
		frame.Failed = true
		d.Logger.Warnw("degenerate frame", "index", idx, "accepted_terms", frame.AcceptedP2PTerms, "keypoints", len(frame.Keypoints))
		return frame, nil
	}

	if err := d.slidingWindowSolve(frame); err != nil {
		if errors.Is(err, optimizer.ErrTooManyVariables) || errors.Is(err, optimizer.ErrTooManyCostTerms) {
			frame.Failed = true
			d.Logger.Warnw("solve rejected by guardrail", "index", idx, "error", err)
			return frame, nil
		}
		return nil, err
	}

	d.updateMap(idx)
	return frame, nil
}

func timestampRange(raw []points.Point) (float64, float64) {
	begin, end := raw[0].Timestamp, raw[0].Timestamp
	for _, p := range raw[1:] {
		if p.Timestamp < begin {
			begin = p.Timestamp
		}
		if p.Timestamp > end {
			end = p.Timestamp
		}
	}
	return begin, end
}

// initializeMotion implements spec section 4.7 step 2: identity for frame 0,
// hold for frame 1, constant-velocity extrapolation of the last two ends
// for frame >= 2.
func (d *Driver) initializeMotion(idx int) (begin, end *spatialmath.Pose) {
	switch {
	case idx == 0:
		return spatialmath.Identity(), spatialmath.Identity()
	case idx == 1:
		prev := d.frames[0].EndPose
		return prev, prev
	default:
		p1 := d.frames[idx-1].EndPose // R_{-1}, t_{-1}
		p2 := d.frames[idx-2].EndPose // R_{-2}, t_{-2}

		var rel mat.Dense // R_{-1} * R_{-2}^-1 == R_{-1} * R_{-2}^T, rotations are orthogonal
		rel.Mul(p1.R, p2.R.T())

		var re mat.Dense
		re.Mul(&rel, p1.R)

		delta := p1.T.Sub(p2.T)
		dv := mat.NewVecDense(3, []float64{delta.X, delta.Y, delta.Z})
		var tv mat.VecDense
		tv.MulVec(&rel, dv)
		te := p1.T.Add(r3.Vector{X: tv.AtVec(0), Y: tv.AtVec(1), Z: tv.AtVec(2)})

		return p1, spatialmath.NewPose(&re, te)
	}
}

// initializeFrame implements spec section 4.7 step 3: shuffle, voxel
// subsample at the frame's working resolution, shuffle again, de-skew, then
// subsample again at the (coarser) keypoint resolution.
func (d *Driver) initializeFrame(frame *FrameRecord, raw []points.Point) {
	dt := frame.EndTimestamp - frame.BeginTimestamp
	withAlpha := make([]points.Point, len(raw))
	copy(withAlpha, raw)
	for i := range withAlpha {
		if dt > 0 {
			withAlpha[i].Alpha = (withAlpha[i].Timestamp - frame.BeginTimestamp) / dt
		}
	}

	d.shuffle(withAlpha)
	voxelSize := d.Cfg.VoxelSize
	if frame.Index < d.Cfg.InitNumFrames {
		voxelSize = d.Cfg.InitVoxelSize
	}
	subsampled := points.VoxelSubsample(withAlpha, voxelSize)

	d.shuffle(subsampled)
	points.Deskew(subsampled, frame.BeginPose, frame.EndPose)
	frame.RawPoints = subsampled

	sampleSize := d.Cfg.SampleVoxelSize
	if frame.Index < d.Cfg.InitNumFrames {
		sampleSize = d.Cfg.InitSampleVoxelSize
	}
	frame.Keypoints = points.VoxelSubsample(subsampled, sampleSize)
}

func (d *Driver) shuffle(pts []points.Point) {
	d.rng.Shuffle(len(pts), func(i, j int) { pts[i], pts[j] = pts[j], pts[i] })
}

// freezeAnchorKnot creates the first knot of the whole run at identity pose
// with zero velocity, acceleration and bias; it is the first knot later
// marginalization retires. No absolute prior is attached to it: it is a
// regular active knot, free in every solve like the others, constrained
// only by the cost terms that read its state.
func (d *Driver) freezeAnchorKnot(beginTime float64) {
	k := trajectory.NewKnot(beginTime)
	d.Traj.Add(k)
}

// appendExtraStates implements spec section 4.7 step 5: num_extra_states+1
// new knots at uniformly spaced times between the previous frame's end and
// this frame's end, seeded by interpolating the existing trajectory (which
// clamps to the last known knot for times beyond it -- the same
// extrapolation Interpolate always performs).
func (d *Driver) appendExtraStates(frameIndex int, prevEndTime, endTime float64) {
	locked := d.Cfg.TmiInitOnly && frameIndex >= d.Cfg.InitNumFrames
	n := d.Cfg.NumExtraStates + 1
	dt := (endTime - prevEndTime) / float64(n)
	for i := 1; i <= n; i++ {
		t := prevEndTime + float64(i)*dt
		pose, w, dw := d.Traj.Interpolate(t)
		k := trajectory.NewKnot(t)
		k.Trm = pose
		k.W = w
		k.Dw = dw
		k.TmiLocked = locked
		if last := d.lastKnot(); last != nil {
			k.B = last.B
			k.Tmi = last.Tmi.Clone()
		}
		d.Traj.Add(k)
	}
}

// sensorToWorld composes the trajectory's interpolated T_rm with the fixed
// sensor-to-robot extrinsic to produce T_ms, the transform a raw sensor-frame
// point needs to land in the world frame.
func (d *Driver) sensorToWorld(t float64) *spatialmath.Pose {
	pose, _, _ := d.Traj.Interpolate(t)
	return pose.Inverse().Compose(d.Cfg.TSR.Inverse())
}

func (d *Driver) lastKnot() *trajectory.Knot {
	if len(d.Traj.Knots) == 0 {
		return nil
	}
	return d.Traj.Knots[len(d.Traj.Knots)-1]
}

// runICPLoop implements spec section 4.7 step 6: up to num_iters_icp
// rounds of re-association against the map followed by a bounded
// Gauss-Newton solve, stopping early once pose change falls below the
// configured thresholds.
func (d *Driver) runICPLoop(frame *FrameRecord) error {
	if d.Map.Size() == 0 {
		// Bootstrap frame: nothing to associate against yet.
		d.refreshFramePoses(frame)
		return nil
	}

	var prevEnd *spatialmath.Pose
	for iter := 0; iter < d.Cfg.NumItersICP; iter++ {
		terms, err := d.buildCostTerms(frame)
		if err != nil {
			return err
		}
		problem := &optimizer.Problem{Knots: d.Traj.Knots, Terms: terms}
		if _, err := optimizer.Solve(problem, d.Cfg.MaxIterations, 1e-6); err != nil {
			return errors.Wrap(err, "ICP solve")
		}

		d.refreshFramePoses(frame)

		if iter >= 2 && prevEnd != nil {
			if poseDelta(prevEnd, frame.EndPose) < d.Cfg.ThresholdTranslation &&
				rotationDelta(prevEnd, frame.EndPose) < d.Cfg.ThresholdOrientation {
				break
			}
		}
		prevEnd = frame.EndPose
	}
	return nil
}

func poseDelta(a, b *spatialmath.Pose) float64 {
	return a.T.Sub(b.T).Norm()
}

func rotationDelta(a, b *spatialmath.Pose) float64 {
	rel := a.Inverse().Compose(b)
	return spatialmath.LogSO3(rel.R).Norm()
}

// refreshFramePoses re-reads begin/mid/end poses and mid-time velocity and
// acceleration from the live trajectory, and the bias of its newest knot.
func (d *Driver) refreshFramePoses(frame *FrameRecord) {
	beginPose, _, _ := d.Traj.Interpolate(frame.BeginTimestamp)
	endPose, _, _ := d.Traj.Interpolate(frame.EndTimestamp)
	midTime := 0.5 * (frame.BeginTimestamp + frame.EndTimestamp)
	midPose, midW, midDw := d.Traj.Interpolate(midTime)

	frame.BeginPose = beginPose.Inverse()
	frame.EndPose = endPose.Inverse()
	frame.MidPose = midPose.Inverse()
	frame.MidVelocity = midW
	frame.MidAcceleration = midDw
	if last := d.lastKnot(); last != nil {
		frame.MidBias = last.B
	}

	for i := range frame.Keypoints {
		pose := d.sensorToWorld(frame.Keypoints[i].Timestamp)
		frame.Keypoints[i].World = pose.Transform(frame.Keypoints[i].Raw)
	}
}

// buildCostTerms assembles every cost term touching the active window:
// point-to-plane associations against the map, between-knot trajectory
// priors, IMU accelerometer/gyroscope residuals, bias random walk, the
// gravity-frame prior, and the carried-over marginalized prior.
func (d *Driver) buildCostTerms(frame *FrameRecord) ([]optimizer.CostTerm, error) {
	var terms []optimizer.CostTerm
	if d.marginal != nil {
		terms = append(terms, d.marginal)
	}

	// Association results are commutative, but the floating-point sum
	// over cost terms is not; pin the keypoint order before building
	// terms so accumulation order is reproducible across runs (spec
	// section 5).
	points.SortByBeamThenTime(frame.Keypoints)

	loss := residuals.ResolveLoss(d.Cfg.P2PLossFunc)
	accepted := 0
	for i := range frame.Keypoints {
		kp := &frame.Keypoints[i]
		pose := d.sensorToWorld(kp.Timestamp)
		world := pose.Transform(kp.Raw)

		neighbors := d.Map.SearchNeighbors(world, 2, d.Cfg.MaxNumberNeighbors)
		nb, ok := residuals.ComputeNeighborhood(neighbors, d.Cfg.MinNumberNeighbors)
		if !ok {
			continue
		}
		if !residuals.Accept(world, nb, d.Cfg.P2PMaxDist) {
			continue
		}
		factor := residuals.NewPointToPlaneFactor(kp.Raw, kp.Timestamp, nb, d.Cfg.PowerPlanarity, loss, d.Cfg.P2PLossSigma)
		terms = append(terms, &pointToPlaneTerm{traj: d.Traj, tsr: d.Cfg.TSR, factor: factor})
		accepted++
	}
	frame.AcceptedP2PTerms = accepted

	for i := 0; i+1 < len(d.Traj.Knots); i++ {
		ki, kj := d.Traj.Knots[i], d.Traj.Knots[i+1]
		terms = append(terms, &priorTerm{traj: d.Traj, ki: ki, kj: kj})
		terms = append(terms, &biasTerm{ki: ki, kj: kj, factor: residuals.BiasRandomWalkFactor{QImu: d.Cfg.QImu}})
		if !ki.TmiLocked && !kj.TmiLocked {
			terms = append(terms, &gravityTerm{ki: ki, kj: kj, factor: residuals.GravityPriorFactor{QgDiag: d.Cfg.QgDiag}})
		}
	}

	if d.Cfg.UseIMU {
		imuTerms, err := d.buildIMUTerms()
		if err != nil {
			return nil, err
		}
		terms = append(terms, imuTerms...)
	}
	return terms, nil
}

// buildIMUTerms pairs each pending IMU sample with the knot bracketing its
// timestamp, per spec section 4.5; an IMU sample outside every bracketing
// knot pair is an invariant violation (spec section 7).
func (d *Driver) buildIMUTerms() ([]optimizer.CostTerm, error) {
	var terms []optimizer.CostTerm
	for _, s := range d.pendingIMU {
		bracket := d.bracketKnot(s.Time)
		if bracket == nil {
			return nil, errors.Wrapf(ErrInvariantViolation, "IMU sample at %v outside bracketing knots", s.Time)
		}
		accel := residuals.AccelerometerFactor{Measured: s.Accel, Gravity: d.Cfg.Gravity, Sigma: d.Cfg.RImuAcc}
		gyro := residuals.GyroscopeFactor{Measured: s.AngVel, Sigma: d.Cfg.RImuAng}
		terms = append(terms,
			&accelerometerTerm{traj: d.Traj, bracket: bracket, time: s.Time, factor: accel},
			&gyroscopeTerm{traj: d.Traj, bracket: bracket, time: s.Time, factor: gyro},
		)
	}
	return terms, nil
}

func (d *Driver) bracketKnot(t float64) *trajectory.Knot {
	knots := d.Traj.Knots
	if len(knots) == 0 {
		return nil
	}
	if t < knots[0].Time || t > knots[len(knots)-1].Time {
		return nil
	}
	i := sort.Search(len(knots), func(i int) bool { return knots[i].Time > t })
	if i == 0 {
		return knots[0]
	}
	return knots[i-1]
}

// slidingWindowSolve implements spec section 4.7 step 7: a final solve
// against every accumulated cost (including the carried marginal prior),
// then extraction of the mid-time state and covariance, then marginalizing
// out knots older than the active window.
func (d *Driver) slidingWindowSolve(frame *FrameRecord) error {
	terms, err := d.buildCostTerms(frame)
	if err != nil {
		return err
	}
	if len(terms) == 0 {
		// A lone bootstrap knot with no IMU data: nothing to solve yet.
		d.refreshFramePoses(frame)
		return nil
	}
	problem := &optimizer.Problem{Knots: d.Traj.Knots, Terms: terms}
	if _, err := optimizer.Solve(problem, d.Cfg.MaxIterations, 1e-6); err != nil {
		return errors.Wrap(err, "sliding-window solve")
	}
	d.refreshFramePoses(frame)

	midTime := 0.5 * (frame.BeginTimestamp + frame.EndTimestamp)
	if midKnotIdx := d.nearestKnotIndex(midTime); midKnotIdx >= 0 {
		cov := problem.Covariance(midKnotIdx)
		for r := 0; r < 18; r++ {
			for c := 0; c < 18; c++ {
				frame.MidCovariance[r][c] = cov.At(r, c)
			}
		}
	}

	d.marginalizeOldKnots(frame.Index, terms)
	return nil
}

// RecomputeFinal re-derives begin/mid/end pose and mid velocity/acceleration
// for every successful frame from the full, never-marginalized knot history
// rather than the live estimate captured when each frame was processed.
// Only meaningful once every frame has been processed: earlier frames'
// knots keep moving as later frames' priors and associations pull on them,
// so the online per-frame estimate and the final smoothed one can differ.
// Gated by use_final_state_value (spec section 6), matching the reference
// behavior of rebuilding the dumped trajectory from the full variable set.
func (d *Driver) RecomputeFinal(records []*FrameRecord) {
	for _, frame := range records {
		if frame.Failed {
			continue
		}
		beginPose, _, _ := d.Traj.InterpolateHistory(frame.BeginTimestamp)
		endPose, _, _ := d.Traj.InterpolateHistory(frame.EndTimestamp)
		midTime := 0.5 * (frame.BeginTimestamp + frame.EndTimestamp)
		midPose, midW, midDw := d.Traj.InterpolateHistory(midTime)

		frame.BeginPose = beginPose.Inverse()
		frame.EndPose = endPose.Inverse()
		frame.MidPose = midPose.Inverse()
		frame.MidVelocity = midW
		frame.MidAcceleration = midDw
	}
}

func (d *Driver) nearestKnotIndex(t float64) int {
	best, bestDist := -1, math.Inf(1)
	for i, k := range d.Traj.Knots {
		dist := math.Abs(k.Time - t)
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// marginalizeOldKnots keeps the active window to delay_adding_points+1
// frames' worth of knots, per scenario 6 of spec section 8, folding
// everything older into the carried LinearizedPrior via Schur complement.
func (d *Driver) marginalizeOldKnots(frameIndex int, terms []optimizer.CostTerm) {
	windowFrames := d.Cfg.DelayAddingPoints + 1
	if frameIndex < windowFrames {
		return
	}
	cutoffTime := d.frames[frameIndex-windowFrames+1].BeginTimestamp

	var retiring, frontier []*trajectory.Knot
	for _, k := range d.Traj.Knots {
		if k.Time < cutoffTime {
			retiring = append(retiring, k)
		} else {
			frontier = append(frontier, k)
		}
	}
	if len(retiring) == 0 {
		return
	}

	var touching []optimizer.CostTerm
	retiringSet := make(map[*trajectory.Knot]bool, len(retiring))
	for _, k := range retiring {
		retiringSet[k] = true
	}
	for _, t := range terms {
		if _, isPrior := t.(*optimizer.LinearizedPrior); isPrior || termTouchesAny(t, retiringSet) {
			touching = append(touching, t)
		}
	}

	d.marginal = optimizer.Marginalize(retiring, frontier, touching)
	d.Traj.DropBefore(cutoffTime)
}

// termTouchesAny reports whether t reads the state of any knot in set; cost
// terms don't expose their knot references directly, so this is a
// type-switch over the adapters defined in costterms.go.
func termTouchesAny(t optimizer.CostTerm, set map[*trajectory.Knot]bool) bool {
	switch v := t.(type) {
	case *priorTerm:
		return set[v.ki] || set[v.kj]
	case *biasTerm:
		return set[v.ki] || set[v.kj]
	case *gravityTerm:
		return set[v.ki] || set[v.kj]
	case *accelerometerTerm:
		return set[v.bracket]
	case *gyroscopeTerm:
		return set[v.bracket]
	default:
		return false
	}
}

// updateMap implements spec section 4.7 step 8: once a frame is
// delay_adding_points sweeps old, re-interpolate its stored points at their
// per-point times and insert them, then evict voxels beyond max_distance
// of the current sensor location.
func (d *Driver) updateMap(currentIndex int) {
	target := currentIndex - d.Cfg.DelayAddingPoints
	if target < 0 || target >= len(d.frames) {
		return
	}
	frame := d.frames[target]
	if frame.Failed {
		return
	}

	world := make([]r3.Vector, len(frame.RawPoints))
	for i, p := range frame.RawPoints {
		pose := d.sensorToWorld(p.Timestamp)
		world[i] = pose.Transform(p.Raw)
	}
	d.Map.Add(world)

	if current := d.frames[currentIndex]; current.EndPose != nil {
		d.Map.Remove(current.EndPose.T, d.Cfg.MaxDistance)
	}
}

