package simulation

import "github.com/shopspring/decimal"

// GasFee draws a uniform gas cost in [GasFeeMin, GasFeeMax], rounded to 4dp.
func (c Config) GasFee(r Rand) decimal.Decimal {
	if !c.FeesEnabled {
		return decimal.Zero
	}
	lo := decimal.Max(c.GasFeeMin, decimal.Zero)
	if c.GasFeeMax.LessThanOrEqual(lo) {
		return lo
	}
	span := c.GasFeeMax.Sub(lo)
	return lo.Add(span.Mul(decimal.NewFromFloat(r.Float64()))).Round(4)
}

// TakerFee is the maker/taker charge on a leg of the given notional.
// Paper orders cross the book, so the taker rate applies.
func (c Config) TakerFee(notional decimal.Decimal) decimal.Decimal {
	if !c.FeesEnabled || !c.TakerFeePct.IsPositive() {
		return decimal.Zero
	}
	return notional.Abs().Mul(c.TakerFeePct)
}

// PlatformFee is charged on winnings only.
func (c Config) PlatformFee(grossPnL decimal.Decimal) decimal.Decimal {
	if !c.FeesEnabled || !grossPnL.IsPositive() || !c.PlatformFeePct.IsPositive() {
		return decimal.Zero
	}
	return grossPnL.Mul(c.PlatformFeePct)
}
