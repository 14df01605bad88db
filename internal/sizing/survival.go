package sizing

import (
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

var (
	survivalFloor  = decimal.RequireFromString("0.01")
	survivalHalf   = decimal.RequireFromString("0.5")
	bufferMultiple = decimal.NewFromInt(3)
)

// SurvivalAdjust shrinks the max position fraction as bankroll approaches the
// kill threshold. Inside the buffer zone (kill .. 3×kill) the fraction moves
// linearly from 1% at the threshold to half the normal fraction at the
// buffer edge, never above normalPct. At or below the threshold the strategy
// is dead.
func SurvivalAdjust(bankroll, kill, normalPct decimal.Decimal) (decimal.Decimal, bool) {
	if bankroll.LessThanOrEqual(kill) {
		return decimal.Zero, true
	}

	buffer := kill.Mul(bufferMultiple)
	if bankroll.LessThan(buffer) {
		ratio := bankroll.Sub(kill).Div(buffer.Sub(kill))
		half := normalPct.Mul(survivalHalf)
		return decimal.Min(survivalFloor.Add(half.Sub(survivalFloor).Mul(ratio)), normalPct), false
	}

	return normalPct, false
}

// InSurvivalZone reports whether bankroll sits inside the buffer zone.
func InSurvivalZone(bankroll, kill decimal.Decimal) bool {
	return bankroll.GreaterThan(kill) && bankroll.LessThan(kill.Mul(bufferMultiple))
}

// CheckConsecutiveLosses maps a losing streak to the agent's response.
func CheckConsecutiveLosses(losses int) domain.LossAction {
	switch {
	case losses >= 5:
		return domain.LossPause
	case losses >= 4:
		return domain.LossReduceSize
	case losses >= 3:
		return domain.LossSkipCycle
	default:
		return domain.LossContinue
	}
}
