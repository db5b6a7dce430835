package plant

import (
	"errors"
	"fmt"
	"math"
)

// Error tolerances for one integration step. The Arrhenius term makes the
// system stiff near runaway, so the step is solved implicitly and the step
// size adapts until the local error estimate is inside these bounds.
const (
	relTol = 1e-6
	absTol = 1e-8

	newtonTol     = 1e-10
	maxNewtonIter = 25

	// A substep smaller than this fraction of dt means the solver is not
	// converging for this tick.
	minStepFraction = 1e-8
)

var errNoConvergence = errors.New("integration step did not converge")

// Step advances the state across [0, dt] and clamps the result to
// [StateMin, StateMax].
//
// The interval is covered by adaptive backward-Euler substeps. Each substep
// is taken once at h and twice at h/2; the difference estimates the local
// error, and the Richardson-extrapolated value is kept. If the substep
// size underflows, the tick is reported as failed and the caller decides
// what state to hold.
func (p Params) Step(s State, in Inputs, dt float64) (State, error) {
	if dt <= 0 {
		return State{}, fmt.Errorf("non-positive step size %g", dt)
	}

	y := s
	elapsed := 0.0
	h := dt
	minStep := dt * minStepFraction

	for elapsed < dt {
		if h > dt-elapsed {
			h = dt - elapsed
		}

		full, errFull := p.implicitStep(y, in, h)

		var half State
		errHalf := errFull
		if errFull == nil {
			half, errHalf = p.implicitStep(y, in, h/2)
			if errHalf == nil {
				half, errHalf = p.implicitStep(half, in, h/2)
			}
		}

		if errFull != nil || errHalf != nil {
			h /= 2
			if h < minStep {
				return State{}, errNoConvergence
			}
			continue
		}

		errRatio := math.Max(
			math.Abs(full.Ca-half.Ca)/(absTol+relTol*math.Abs(half.Ca)),
			math.Abs(full.T-half.T)/(absTol+relTol*math.Abs(half.T)),
		)

		if errRatio > 1 {
			h /= 2
			if h < minStep {
				return State{}, errNoConvergence
			}
			continue
		}

		elapsed += h
		y = State{
			Ca: 2*half.Ca - full.Ca,
			T:  2*half.T - full.T,
		}

		if errRatio < 0.25 {
			h *= 2
		}
	}

	return y.Clamp(), nil
}

// implicitStep solves one backward-Euler step with Newton iteration on the
// analytic Jacobian.
func (p Params) implicitStep(y State, in Inputs, h float64) (State, error) {
	next := y

	for i := 0; i < maxNewtonIter; i++ {
		fCa, fT := p.RHS(next, in)
		resCa := next.Ca - y.Ca - h*fCa
		resT := next.T - y.T - h*fT

		jCaCa, jCaT, jTCa, jTT := p.jacobian(next, in)
		m00 := 1 - h*jCaCa
		m01 := -h * jCaT
		m10 := -h * jTCa
		m11 := 1 - h*jTT

		det := m00*m11 - m01*m10
		if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
			return State{}, errors.New("singular newton system")
		}

		deltaCa := (-resCa*m11 + resT*m01) / det
		deltaT := (resCa*m10 - resT*m00) / det

		next.Ca += deltaCa
		next.T += deltaT

		if math.IsNaN(next.Ca) || math.IsNaN(next.T) {
			return State{}, errors.New("newton iteration diverged")
		}

		if math.Abs(deltaCa) <= newtonTol*(1+math.Abs(next.Ca)) &&
			math.Abs(deltaT) <= newtonTol*(1+math.Abs(next.T)) {
			return next, nil
		}
	}

	return State{}, errors.New("newton iteration exceeded limit")
}
