package plant

// Params holds the physical constants of the reactor. All values are fixed
// configuration, never derived at run time.
type Params struct {
	// Volume is the reactor volume in m^3.
	Volume float64

	// Density is the liquid density in kg/m^3.
	Density float64

	// HeatCapacity is the liquid heat capacity in kJ/kg/K.
	HeatCapacity float64

	// ActivationOverR is the Arrhenius activation energy divided by the gas
	// constant, in K.
	ActivationOverR float64

	// PreExp is the Arrhenius pre-exponential factor in 1/s.
	PreExp float64

	// HeatTransfer is the overall heat-transfer coefficient times area, in
	// J/s/K.
	HeatTransfer float64

	// ReactionEnthalpy is the reaction enthalpy in kJ/mol. It is negative
	// for the exothermic reaction modeled here.
	ReactionEnthalpy float64

	// FeedTemp is the feed stream temperature in K.
	FeedTemp float64

	// CatalystActivity scales the pre-exponential factor. 1.0 is a fresh
	// catalyst. Batch scenario runs model an aged catalyst with 0.9.
	CatalystActivity float64
}

// DefaultParams returns the reactor parameter set that exhibits both a
// controllable operating point and thermal runaway.
func DefaultParams() Params {
	return Params{
		Volume:           100.0,
		Density:          1000.0,
		HeatCapacity:     0.239,
		ActivationOverR:  8750.0,
		PreExp:           7.2e10,
		HeatTransfer:     5.0e4,
		ReactionEnthalpy: -5.5e4,
		FeedTemp:         350.0,
		CatalystActivity: 1.0,
	}
}
