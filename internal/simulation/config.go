// Package simulation models how a paper order would have degraded on a real
// venue: rejections, partial fills, slippage, market impact, gas and fees.
//
// Each effect has its own toggle in Config so scenarios can isolate them.
// Random draws come from an injected Rand.
package simulation

import "github.com/shopspring/decimal"

// Config is an immutable snapshot of the execution model.
type Config struct {
	FeesEnabled     bool
	SlippageEnabled bool
	FillsEnabled    bool
	ImpactEnabled   bool

	GasFeeMin      decimal.Decimal
	GasFeeMax      decimal.Decimal
	PlatformFeePct decimal.Decimal // on profitable exits only
	MakerFeePct    decimal.Decimal // resting orders only; paper orders always take, so it is never charged
	TakerFeePct    decimal.Decimal

	BaseSlippagePct      decimal.Decimal
	SizePenaltyPct       decimal.Decimal // per dollar above SizePenaltyThreshold
	SizePenaltyThreshold decimal.Decimal

	RejectProbability      decimal.Decimal
	PartialFillProbability decimal.Decimal
	MinLiquidityVolume     decimal.Decimal // below this the partial-fill odds double

	ImpactThreshold    decimal.Decimal
	ImpactPerDollarPct decimal.Decimal
}

// DefaultConfig returns the execution model used for paper trading.
func DefaultConfig() Config {
	return Config{
		FeesEnabled:            true,
		SlippageEnabled:        true,
		FillsEnabled:           true,
		ImpactEnabled:          true,
		GasFeeMin:              decimal.RequireFromString("0.01"),
		GasFeeMax:              decimal.RequireFromString("0.05"),
		PlatformFeePct:         decimal.RequireFromString("0.02"),
		MakerFeePct:            decimal.Zero,
		TakerFeePct:            decimal.Zero,
		BaseSlippagePct:        decimal.RequireFromString("0.001"),
		SizePenaltyPct:         decimal.RequireFromString("0.005"),
		SizePenaltyThreshold:   decimal.RequireFromString("1.00"),
		RejectProbability:      decimal.RequireFromString("0.05"),
		PartialFillProbability: decimal.RequireFromString("0.15"),
		MinLiquidityVolume:     decimal.RequireFromString("10.00"),
		ImpactThreshold:        decimal.RequireFromString("2.00"),
		ImpactPerDollarPct:     decimal.RequireFromString("0.003"),
	}
}

// Disabled returns a model where orders fill completely at the quoted price
// with no costs.
func Disabled() Config {
	return Config{}
}
