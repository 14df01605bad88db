package simulation

import (
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

var (
	spreadReference    = decimal.RequireFromString("0.05")
	maxSpreadFactor    = decimal.NewFromInt(3)
	exitSpreadEstimate = decimal.RequireFromString("0.03")
	maxEntryPrice      = decimal.RequireFromString("0.99")
)

// SlippagePct is the fractional price degradation for an order of size bet
// on a book with the given spread. Wider spreads scale the base rate up to
// 3× the 5%-spread reference; size above the threshold adds a linear penalty.
func (c Config) SlippagePct(bet, spread decimal.Decimal) decimal.Decimal {
	if !c.SlippageEnabled {
		return decimal.Zero
	}
	factor := domain.One
	if spread.IsPositive() {
		factor = decimal.Min(spread.Div(spreadReference), maxSpreadFactor)
	}
	slip := c.BaseSlippagePct.Mul(factor)
	if bet.GreaterThan(c.SizePenaltyThreshold) {
		slip = slip.Add(c.SizePenaltyPct.Mul(bet.Sub(c.SizePenaltyThreshold)))
	}
	return slip
}

// ImpactPct is the extra degradation an order causes by its own size.
func (c Config) ImpactPct(bet decimal.Decimal) decimal.Decimal {
	if !c.ImpactEnabled || bet.LessThanOrEqual(c.ImpactThreshold) {
		return decimal.Zero
	}
	return c.ImpactPerDollarPct.Mul(bet.Sub(c.ImpactThreshold))
}

// EntryFill is the buy-side execution of an order.
type EntryFill struct {
	RawPrice     decimal.Decimal
	Price        decimal.Decimal
	SlippagePct  decimal.Decimal
	ImpactPct    decimal.Decimal
	SlippageCost decimal.Decimal // cash lost to the worse price
}

// Entry prices a buy of bet dollars at raw. Buying pushes the price up, capped
// at 0.99 and never below the quoted price.
func (c Config) Entry(raw, bet, spread decimal.Decimal) EntryFill {
	slip := c.SlippagePct(bet, spread)
	impact := c.ImpactPct(bet)

	price := decimal.Max(raw.Mul(domain.One.Add(slip).Add(impact)), raw)
	if price.GreaterThan(maxEntryPrice) {
		price = decimal.Max(maxEntryPrice, raw)
	}

	fill := EntryFill{RawPrice: raw, Price: price, SlippagePct: slip, ImpactPct: impact}
	if price.IsPositive() {
		fill.SlippageCost = price.Sub(raw).Abs().Mul(bet).Div(price)
	}
	return fill
}

// ExitFill is the sell-side execution of a position.
type ExitFill struct {
	RawPrice     decimal.Decimal
	Price        decimal.Decimal
	SlippagePct  decimal.Decimal
	SlippageCost decimal.Decimal
}

// Exit prices a sale of shares at raw. Selling pushes the price down, within
// [0, raw]. The spread is not known at exit, so a 3% estimate is used.
func (c Config) Exit(raw, bet, shares decimal.Decimal) ExitFill {
	raw = domain.Clamp(raw, decimal.Zero, domain.One)
	slip := c.SlippagePct(bet, exitSpreadEstimate)

	price := domain.Clamp(raw.Mul(domain.One.Sub(slip)), decimal.Zero, raw)
	return ExitFill{
		RawPrice:     raw,
		Price:        price,
		SlippagePct:  slip,
		SlippageCost: raw.Sub(price).Abs().Mul(shares),
	}
}
