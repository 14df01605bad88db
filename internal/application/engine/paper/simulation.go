package paper

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/domain"
	"github.com/alejandrodnm/polyagent/internal/simulation"
)

// OpenRequest is everything the ledger needs to open a position.
type OpenRequest struct {
	MarketID    string
	Question    string
	Direction   domain.Direction
	MarketPrice decimal.Decimal // YES price
	FairValue   decimal.Decimal // YES probability
	Edge        decimal.Decimal
	Size        decimal.Decimal // requested stake in cash
	Volume      decimal.Decimal // liquidity signal for the fill model
	Spread      decimal.Decimal // quoted spread; zero = estimate from price
	Plan        domain.TradePlan
	Provenance  domain.Provenance
}

// Execute opens a position. It returns false when the order is rejected by
// the fill model or nothing is left to stake; state is unchanged then.
func (p *Portfolio) Execute(req OpenRequest, sim simulation.Config) (domain.Trade, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bet := decimal.Min(req.Size, p.balance)
	if !bet.IsPositive() {
		slog.Debug("paper: nothing to stake", "market", req.MarketID, "balance", domain.USD(p.balance))
		return domain.Trade{}, false
	}

	raw := req.Direction.SidePrice(req.MarketPrice)
	if !raw.IsPositive() || !raw.LessThan(domain.One) {
		slog.Debug("paper: no tradable price", "market", req.MarketID, "dir", req.Direction, "price", raw)
		return domain.Trade{}, false
	}

	fill := sim.SimulateFill(p.rng, req.Volume)
	switch fill.Outcome {
	case simulation.FillRejected:
		slog.Info("paper: order rejected by venue", "market", req.MarketID, "size", domain.USD(bet))
		return domain.Trade{}, false
	case simulation.FillPartial:
		filled := bet.Mul(fill.Ratio).Round(2)
		slog.Info("paper: partial fill",
			"market", req.MarketID,
			"requested", domain.USD(bet),
			"filled", domain.USD(filled),
			"ratio", fill.Ratio.StringFixed(2),
		)
		bet = filled
	}

	spread := req.Spread
	if !spread.IsPositive() {
		spread = raw.Sub(domain.One.Sub(raw)).Abs()
	}

	entry := sim.Entry(raw, bet, spread)
	gas := sim.GasFee(p.rng)
	makerTaker := sim.TakerFee(bet)

	if bet.Add(gas).Add(makerTaker).GreaterThan(p.balance) {
		bet = decimal.Max(p.balance.Sub(gas).Sub(makerTaker), decimal.Zero)
		entry = sim.Entry(raw, bet, spread)
	}
	if !bet.IsPositive() || !entry.Price.IsPositive() {
		slog.Info("paper: fees leave nothing to stake", "market", req.MarketID, "balance", domain.USD(p.balance))
		return domain.Trade{}, false
	}

	now := p.now()
	t := domain.Trade{
		ID:            uuid.New().String()[:8],
		OpenedAt:      now,
		MarketID:      req.MarketID,
		Question:      req.Question,
		Direction:     req.Direction,
		EntryPrice:    entry.Price,
		RawEntryPrice: raw,
		FairValue:     req.FairValue,
		Edge:          req.Edge,
		Shares:        bet.Div(entry.Price),
		BetSize:       bet,
		Status:        domain.StatusOpen,
		LastPrice:     raw,
		BalanceAfter:  p.balance.Sub(bet).Sub(gas).Sub(makerTaker),
		Mode:          req.Plan.Mode,
		Costs: domain.TradeCosts{
			EntryGas:      gas,
			EntrySlippage: entry.SlippageCost,
			MakerTakerFee: makerTaker,
		},
		Provenance: req.Provenance,
	}
	applyPlan(&t, req.Plan, now)

	p.balance = t.BalanceAfter
	p.trades = append(p.trades, t)
	p.open = append(p.open, len(p.trades)-1)

	slog.Info("paper: trade opened",
		"id", t.ID,
		"market", t.MarketID,
		"dir", t.Direction,
		"mode", t.Mode,
		"entry", t.EntryPrice.StringFixed(4),
		"raw", raw.StringFixed(4),
		"size", domain.USD(bet),
		"gas", gas.StringFixed(4),
		"slippage", entry.SlippageCost.StringFixed(4),
		"balance", domain.USD(p.balance),
	)
	return t, true
}

// applyPlan converts the plan's percentages into side-price levels
// relative to the effective entry price.
func applyPlan(t *domain.Trade, plan domain.TradePlan, now time.Time) {
	if plan.TakeProfitPct.IsPositive() {
		t.TakeProfit = t.EntryPrice.Mul(domain.One.Add(plan.TakeProfitPct))
	}
	if plan.StopLossPct.IsPositive() {
		t.StopLoss = t.EntryPrice.Mul(domain.One.Sub(plan.StopLossPct))
	}
	if plan.MaxHold > 0 {
		t.MaxHoldUntil = now.Add(plan.MaxHold)
	}
}
