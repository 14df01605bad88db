// Package strategist turns an approved verdict into an exit plan and opens
// the trade on the ledger.
package strategist

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

var (
	convictionEdge = decimal.RequireFromString("0.20")
	convictionConf = decimal.RequireFromString("0.75")
	scalpEdge      = decimal.RequireFromString("0.15")
	scalpConf      = decimal.RequireFromString("0.70")

	scalpTP      = decimal.RequireFromString("0.12")
	scalpSL      = decimal.RequireFromString("0.08")
	swingTPShare = decimal.RequireFromString("0.8")
	swingTPMin   = decimal.RequireFromString("0.05")
	swingTPMax   = decimal.RequireFromString("0.20")
	swingSL      = decimal.RequireFromString("0.10")

	scalpSpreadWarn      = decimal.RequireFromString("0.02")
	swingSpreadWarn      = decimal.RequireFromString("0.04")
	convictionSpreadWarn = decimal.RequireFromString("0.05")
)

const scalpMaxDays = 7

// Plan classifies the trade and derives its exit parameters. It is
// deterministic given its inputs.
func Plan(v domain.Verdict, d domain.RiskDecision, m domain.Market, now time.Time) domain.TradePlan {
	edge := v.FairValue.Sub(m.YesPrice()).Abs()
	days := daysLeft(m, now)
	mode := classify(edge, v.Confidence, days)

	var plan domain.TradePlan
	switch mode {
	case domain.ModeScalp:
		plan = domain.TradePlan{
			TakeProfitPct: scalpTP,
			StopLossPct:   scalpSL,
			MaxHold:       24 * time.Hour,
			CheckInterval: 30 * time.Second,
			SpreadWarning: scalpSpreadWarn,
		}
	case domain.ModeConviction:
		plan = domain.TradePlan{
			CheckInterval: 3 * time.Minute,
			SpreadWarning: convictionSpreadWarn,
		}
	default:
		plan = domain.TradePlan{
			TakeProfitPct: domain.Clamp(edge.Mul(swingTPShare), swingTPMin, swingTPMax),
			StopLossPct:   swingSL,
			MaxHold:       7 * 24 * time.Hour,
			CheckInterval: 90 * time.Second,
			SpreadWarning: swingSpreadWarn,
		}
	}
	plan.Mode = mode

	spread := m.BookSpread()
	plan.Reasoning = fmt.Sprintf("[%s] edge=%s conf=%s days_left=%d spread=%s size=%s",
		mode, domain.Pct(edge), v.Confidence.StringFixed(2), days, domain.Pct(spread), domain.USD(d.PositionSize))
	if spread.GreaterThan(plan.SpreadWarning) {
		plan.Reasoning += " (WARN: spread exceeds " + domain.Pct(plan.SpreadWarning) + " limit)"
	}

	slog.Debug("strategist: plan", "market", v.MarketID, "plan", plan.Reasoning)
	return plan
}

func classify(edge, conf decimal.Decimal, days int) domain.TradeMode {
	switch {
	case edge.GreaterThan(convictionEdge) && conf.GreaterThanOrEqual(convictionConf):
		return domain.ModeConviction
	case edge.GreaterThan(scalpEdge) && conf.GreaterThanOrEqual(scalpConf) && days <= scalpMaxDays:
		return domain.ModeScalp
	default:
		return domain.ModeSwing
	}
}

// daysLeft counts whole days until the market resolves, never negative.
func daysLeft(m domain.Market, now time.Time) int {
	return max(int(math.Floor(m.DaysToExpiry(now))), 0)
}
