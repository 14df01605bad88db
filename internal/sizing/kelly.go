// Package sizing turns a believed probability into a stake.
//
// Everything here is pure: the same inputs always give the same answer, and
// every guard returns a zero stake instead of an error. A zero stake means
// "skip", which is a normal outcome.
package sizing

import (
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// RiskLevel is a coarse label for the final bankroll fraction.
type RiskLevel string

const (
	RiskNone     RiskLevel = "NONE"
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskBelowMin RiskLevel = "BELOW_MIN"
)

var (
	// MinTradeSize is the smallest stake the venue accepts.
	MinTradeSize = decimal.RequireFromString("0.10")

	absoluteCap  = decimal.RequireFromString("0.80")
	growthSlope  = decimal.RequireFromString("0.5")
	lowRiskBelow = decimal.RequireFromString("0.02")
	midRiskBelow = decimal.RequireFromString("0.03")
)

// KellyInput describes one sizing question. Probability and Price are for
// the side being bought, not for YES.
type KellyInput struct {
	Bankroll    decimal.Decimal
	Probability decimal.Decimal
	Price       decimal.Decimal
	Fraction    decimal.Decimal // share of full Kelly, e.g. 0.40
	MaxPct      decimal.Decimal // nominal cap on the bankroll fraction

	// BaseBankroll is the starting bankroll used for growth scaling of
	// MaxPct. Zero disables growth scaling.
	BaseBankroll decimal.Decimal

	// SurvivalCap is clamped independently of the growth-scaled cap.
	SurvivalCap decimal.NullDecimal
}

// KellyResult is transient: it is consumed by the risk manager and never stored.
type KellyResult struct {
	FullKelly     decimal.Decimal
	AdjustedKelly decimal.Decimal // after the Fraction multiplier
	Fraction      decimal.Decimal // after every cap
	BetSize       decimal.Decimal
	RiskLevel     RiskLevel
	ExpectedValue decimal.Decimal
}

// IsZero reports whether the result means "do not trade".
func (r KellyResult) IsZero() bool {
	return !r.BetSize.IsPositive()
}

// Kelly computes the stake for a binary contract paying 1 per share.
func Kelly(in KellyInput) KellyResult {
	none := KellyResult{RiskLevel: RiskNone}

	if !in.Bankroll.IsPositive() ||
		!in.Probability.IsPositive() || !in.Probability.LessThan(domain.One) ||
		!in.Price.IsPositive() || !in.Price.LessThan(domain.One) {
		return none
	}

	p := in.Probability
	q := domain.One.Sub(p)
	b := domain.One.Sub(in.Price).Div(in.Price)

	full := p.Mul(b).Sub(q).Div(b)
	if !full.IsPositive() {
		none.FullKelly = full
		return none
	}

	adjusted := full.Mul(in.Fraction)
	capPct := ScaledCap(in.MaxPct, in.Bankroll, in.BaseBankroll)
	if in.SurvivalCap.Valid && in.SurvivalCap.Decimal.LessThan(capPct) {
		capPct = in.SurvivalCap.Decimal
	}
	final := decimal.Min(adjusted, capPct)

	bet := in.Bankroll.Mul(final).Round(2)
	if bet.GreaterThan(in.Bankroll) {
		bet = in.Bankroll
	}

	res := KellyResult{
		FullKelly:     full,
		AdjustedKelly: adjusted,
		Fraction:      final,
	}
	if bet.LessThan(MinTradeSize) {
		res.RiskLevel = RiskBelowMin
		return res
	}

	res.BetSize = bet
	res.RiskLevel = classifyRisk(final)
	res.ExpectedValue = p.Mul(bet).Mul(b).Sub(q.Mul(bet)).Round(4)
	return res
}

// ScaledCap grows maxPct by half of the bankroll's growth over base and
// never lets it exceed 80% of the bankroll.
func ScaledCap(maxPct, bankroll, base decimal.Decimal) decimal.Decimal {
	scale := domain.One
	if base.IsPositive() && bankroll.GreaterThan(base) {
		growth := bankroll.Div(base).Sub(domain.One)
		scale = domain.One.Add(growth.Mul(growthSlope))
	}
	return decimal.Min(maxPct.Mul(scale), absoluteCap)
}

func classifyRisk(fraction decimal.Decimal) RiskLevel {
	switch {
	case fraction.LessThan(lowRiskBelow):
		return RiskLow
	case fraction.LessThan(midRiskBelow):
		return RiskMedium
	default:
		return RiskHigh
	}
}
