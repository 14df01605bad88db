package simulation

import (
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// FillOutcome is the result of submitting an order to the simulated book.
type FillOutcome uint8

const (
	FillComplete FillOutcome = iota
	FillPartial
	FillRejected
)

func (o FillOutcome) String() string {
	switch o {
	case FillPartial:
		return "PARTIAL"
	case FillRejected:
		return "REJECTED"
	default:
		return "COMPLETE"
	}
}

// Fill says how much of the requested size was filled.
type Fill struct {
	Outcome FillOutcome
	Ratio   decimal.Decimal // 0 when rejected, 1 when complete
}

var (
	partialMin   = 0.5
	partialRange = 0.4
	thinBookMult = decimal.NewFromInt(2)
)

// SimulateFill draws a rejection, then a partial fill. Markets whose volume
// is known and below MinLiquidityVolume get twice the partial-fill odds.
func (c Config) SimulateFill(r Rand, volume decimal.Decimal) Fill {
	full := Fill{Outcome: FillComplete, Ratio: domain.One}
	if !c.FillsEnabled {
		return full
	}

	if decimal.NewFromFloat(r.Float64()).LessThan(c.RejectProbability) {
		return Fill{Outcome: FillRejected, Ratio: decimal.Zero}
	}

	partialProb := c.PartialFillProbability
	if volume.IsPositive() && volume.LessThan(c.MinLiquidityVolume) {
		partialProb = decimal.Min(partialProb.Mul(thinBookMult), domain.One)
	}
	if decimal.NewFromFloat(r.Float64()).LessThan(partialProb) {
		ratio := decimal.NewFromFloat(partialMin + r.Float64()*partialRange).Round(4)
		return Fill{Outcome: FillPartial, Ratio: ratio}
	}
	return full
}
