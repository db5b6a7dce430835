// Package plant models a continuously-stirred tank reactor with an
// exothermic first-order reaction and integrates it over fixed time steps.
package plant

import "math"

// State is the true, noise-free physical state of the reactor.
type State struct {
	// Ca is the reactant concentration in mol/m^3.
	Ca float64

	// T is the reactor temperature in K.
	T float64
}

// Inputs are the driving conditions for one integration step.
type Inputs struct {
	// FlowRate is the feed flow rate in L/s.
	FlowRate float64

	// CoolantTemp is the actual coolant temperature in K.
	CoolantTemp float64

	// FeedConc is the feed concentration in mol/m^3.
	FeedConc float64
}

// Bounds every state component is clamped to after integration. The lower
// bound tolerates small numerical undershoot; the upper bound stops solver
// blow-up from propagating.
const (
	StateMin = -1.0
	StateMax = 1e5
)

// RHS evaluates the instantaneous rates of change of the state.
//
// The reaction is exothermic (negative enthalpy), so the heat-generation
// term negates ReactionEnthalpy to add heat. Without that sign the model
// cannot run away thermally.
func (p Params) RHS(s State, in Inputs) (dCa, dT float64) {
	rate := p.reactionRate(s)

	dCa = in.FlowRate/p.Volume*(in.FeedConc-s.Ca) - rate

	rhoCp := p.Density * p.HeatCapacity
	dT = in.FlowRate/p.Volume*(p.FeedTemp-s.T) -
		p.ReactionEnthalpy/rhoCp*rate +
		p.HeatTransfer/(rhoCp*p.Volume)*(in.CoolantTemp-s.T)

	return dCa, dT
}

// reactionRate evaluates the Arrhenius rate term. The max(T, 1) guard keeps
// the exponent finite at non-physical temperatures.
func (p Params) reactionRate(s State) float64 {
	return p.PreExp * p.CatalystActivity *
		math.Exp(-p.ActivationOverR/math.Max(s.T, 1.0)) * s.Ca
}

// jacobian evaluates the partial derivatives of RHS with respect to the
// state, used by the implicit solver's Newton iteration.
func (p Params) jacobian(s State, in Inputs) (dfCadCa, dfCadT, dfTdCa, dfTdT float64) {
	t := math.Max(s.T, 1.0)
	k := p.PreExp * p.CatalystActivity * math.Exp(-p.ActivationOverR/t)

	drdCa := k
	drdT := 0.0
	if s.T > 1.0 {
		drdT = k * s.Ca * p.ActivationOverR / (t * t)
	}

	qOverV := in.FlowRate / p.Volume
	rhoCp := p.Density * p.HeatCapacity
	hGen := -p.ReactionEnthalpy / rhoCp

	dfCadCa = -qOverV - drdCa
	dfCadT = -drdT
	dfTdCa = hGen * drdCa
	dfTdT = -qOverV + hGen*drdT - p.HeatTransfer/(rhoCp*p.Volume)

	return dfCadCa, dfCadT, dfTdCa, dfTdT
}

// Clamp bounds both state components to [StateMin, StateMax].
func (s State) Clamp() State {
	return State{
		Ca: clamp(s.Ca, StateMin, StateMax),
		T:  clamp(s.T, StateMin, StateMax),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
