package engine

import "math"

// Defaults for the recoverable-value model.
const (
	// RecoveryFraction is the share of e-waste mass assumed recoverable.
	RecoveryFraction = 0.02
	// PricePerTonneUSD is the average price of one recovered tonne.
	PricePerTonneUSD = 2000.0
)

// Params holds the constants of the recoverable-value model.
type Params struct {
	RecoveryFraction float64
	PricePerTonneUSD float64
}

// DefaultParams returns the built-in model constants.
func DefaultParams() Params {
	return Params{RecoveryFraction: RecoveryFraction, PricePerTonneUSD: PricePerTonneUSD}
}

// RecoverableUSD values kt of e-waste: kt * 1000 t * fraction * price.
// A nil input gives nil.
func (p Params) RecoverableUSD(kt *float64) *float64 {
	if kt == nil {
		return nil
	}
	return Finite(*kt * 1000.0 * p.RecoveryFraction * p.PricePerTonneUSD)
}

// Flow is the sankey balance for one country-year. Every member is set.
type Flow struct {
	Generated         float64
	FormallyCollected float64
	Exported          float64
	Imported          float64
	Informal          float64
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// InformalResidual balances generated = formal + exported - imported + informal.
// Missing inputs count as zero and a negative residual is floored at zero.
func InformalResidual(generated, formal, exported, imported *float64) Flow {
	f := Flow{
		Generated:         orZero(generated),
		FormallyCollected: orZero(formal),
		Exported:          orZero(exported),
		Imported:          orZero(imported),
	}
	f.Informal = math.Max(f.Generated-f.FormallyCollected-f.Exported+f.Imported, 0)
	return f
}

// Share is kt/total, nil unless both are known and total is positive.
func Share(kt, total *float64) *float64 {
	if kt == nil || total == nil || *total <= 0 {
		return nil
	}
	return Finite(*kt / *total)
}

// Projection is the outcome of a formal-collection scenario.
type Projection struct {
	BaseFormal    float64
	NewFormal     float64
	DeltaAbsolute float64
	BaseValueUSD  *float64
	NewValueUSD   *float64
}

// Project scales formal collection by deltaPercent, capped at generation.
// Missing inputs count as zero. The base value is computed from baseFormal,
// or from generated when baseFormal is zero.
func (p Params) Project(baseFormal, generated *float64, deltaPercent float64) Projection {
	base := orZero(baseFormal)
	gen := orZero(generated)

	proj := Projection{BaseFormal: base}
	proj.NewFormal = math.Min(base*(1+deltaPercent/100), gen)
	proj.DeltaAbsolute = proj.NewFormal - base

	if base != 0 {
		proj.BaseValueUSD = p.RecoverableUSD(&base)
	} else {
		proj.BaseValueUSD = p.RecoverableUSD(&gen)
	}
	proj.NewValueUSD = p.RecoverableUSD(&proj.NewFormal)
	return proj
}
