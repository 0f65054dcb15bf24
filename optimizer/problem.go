// Package optimizer implements the sliding-window Gauss-Newton solver (spec
// section 4.6): variable parameterization over active knots, residual
// stacking, a finite-difference Gauss-Newton solve, and marginalization of
// retired knots via Schur complement into a dense linear prior.
package optimizer

import (
	"github.com/cartograph-robotics/lio/spatialmath"
	"github.com/cartograph-robotics/lio/trajectory"
)

const (
	dimPose  = 6
	dimVel   = 6
	dimAccel = 6
	dimBias  = 6
	dimTmi   = 6
)

// CostTerm is any residual contributed to the problem: point-to-plane,
// trajectory priors, IMU residuals, bias and gravity random walks, and
// linearized marginalization priors all implement it uniformly so the
// solver can treat them identically.
type CostTerm interface {
	// Dim is the residual's dimension.
	Dim() int
	// Residual returns the current (whitened, robustly-weighted) residual
	// vector, reading the live state of whatever knots it closes over.
	Residual() []float64
}

// Problem is one sliding-window optimization: the active knots (in time
// order) and every cost term touching them.
type Problem struct {
	Knots []*trajectory.Knot
	Terms []CostTerm
}

// blockSize returns the number of free parameters knot i contributes: 24 for
// pose+velocity+acceleration+bias, plus 6 more unless T_mi is locked.
func (p *Problem) blockSize(i int) int {
	n := dimPose + dimVel + dimAccel + dimBias
	if !p.Knots[i].TmiLocked {
		n += dimTmi
	}
	return n
}

// offsets returns the starting parameter index of each knot's block and the
// total parameter count.
func (p *Problem) offsets() ([]int, int) {
	offs := make([]int, len(p.Knots))
	total := 0
	for i := range p.Knots {
		offs[i] = total
		total += p.blockSize(i)
	}
	return offs, total
}

// NumParams is the total free parameter count across all active knots.
func (p *Problem) NumParams() int {
	_, total := p.offsets()
	return total
}

// stackResiduals concatenates every term's current residual into one slice.
func (p *Problem) stackResiduals() []float64 {
	total := 0
	for _, t := range p.Terms {
		total += t.Dim()
	}
	out := make([]float64, 0, total)
	for _, t := range p.Terms {
		out = append(out, t.Residual()...)
	}
	return out
}

// perturb applies delta to global parameter index idx, returning a restore
// function that undoes it exactly. Pose and T_mi perturbations are applied
// as a left Lie-group update Exp(delta*e_k)*T; velocity, acceleration, and
// bias perturbations are additive.
func (p *Problem) perturb(idx int, delta float64) (restore func()) {
	offs, _ := p.offsets()
	ki := 0
	for ki+1 < len(offs) && offs[ki+1] <= idx {
		ki++
	}
	local := idx - offs[ki]
	k := p.Knots[ki]

	switch {
	case local < dimPose:
		old := k.Trm
		var xi [6]float64
		xi[local] = delta
		k.Trm = spatialmath.ExpSE3(xi).Compose(old)
		return func() { k.Trm = old }
	case local < dimPose+dimVel:
		axis := local - dimPose
		old := k.W[axis]
		k.W[axis] = old + delta
		return func() { k.W[axis] = old }
	case local < dimPose+dimVel+dimAccel:
		axis := local - dimPose - dimVel
		old := k.Dw[axis]
		k.Dw[axis] = old + delta
		return func() { k.Dw[axis] = old }
	case local < dimPose+dimVel+dimAccel+dimBias:
		axis := local - dimPose - dimVel - dimAccel
		old := k.B[axis]
		k.B[axis] = old + delta
		return func() { k.B[axis] = old }
	default:
		axis := local - dimPose - dimVel - dimAccel - dimBias
		old := k.Tmi
		var xi [6]float64
		xi[axis] = delta
		k.Tmi = spatialmath.ExpSE3(xi).Compose(old)
		return func() { k.Tmi = old }
	}
}

// applyStep applies a full parameter step dx (one component per global
// index, no restore retained) -- used to accept a Gauss-Newton update.
func (p *Problem) applyStep(dx []float64) {
	for idx, d := range dx {
		if d == 0 {
			continue
		}
		p.perturb(idx, d)
	}
}
