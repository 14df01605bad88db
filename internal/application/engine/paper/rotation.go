package paper

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/domain"
	"github.com/alejandrodnm/polyagent/internal/simulation"
)

var (
	edgeCapturedRatio   = decimal.RequireFromString("0.60")
	safetyValveLossPct  = decimal.RequireFromString("-0.30")
	safetyValveMinConf  = decimal.RequireFromString("0.70")
	defaultJudgeConfRef = decimal.RequireFromString("0.5")
)

// ResolveWithPrices re-evaluates every open trade against a fresh market
// snapshot and settles the ones whose exit rule fired. legacyTP and legacySL
// are the percentage thresholds for trades without a mode; zero disables
// each. Trades that do not exit stay open for the next call.
func (p *Portfolio) ResolveWithPrices(markets []domain.Market, legacyTP, legacySL decimal.Decimal, sim simulation.Config) []domain.Trade {
	byID := domain.IndexMarkets(markets)

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var closed []domain.Trade
	stillOpen := make([]int, 0, len(p.open))

	for _, idx := range p.open {
		t := &p.trades[idx]
		reason := p.exitSignal(t, byID, legacyTP, legacySL, now)
		if reason == domain.ExitNone {
			stillOpen = append(stillOpen, idx)
			continue
		}
		p.settle(t, t.LastPrice, reason, sim, now)
		closed = append(closed, *t)
	}

	p.open = stillOpen
	if len(closed) > 0 {
		p.updateDrawdown()
	}
	return closed
}

// CloseAllPositions settles every open trade at its current price with
// ExitManualStop. Markets missing from the snapshot close at the last known
// price. Used once at shutdown.
func (p *Portfolio) CloseAllPositions(markets []domain.Market, sim simulation.Config) []domain.Trade {
	byID := domain.IndexMarkets(markets)

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	closed := make([]domain.Trade, 0, len(p.open))
	for _, idx := range p.open {
		t := &p.trades[idx]
		if m, ok := byID[t.MarketID]; ok {
			t.LastPrice = m.PriceFor(t.Direction)
		}
		p.settle(t, t.LastPrice, domain.ExitManualStop, sim, now)
		closed = append(closed, *t)
	}

	p.open = nil
	if len(closed) > 0 {
		p.updateDrawdown()
	}
	return closed
}

// exitSignal marks t to market and returns the exit rule that fired, if any.
func (p *Portfolio) exitSignal(t *domain.Trade, byID map[string]domain.Market, legacyTP, legacySL decimal.Decimal, now time.Time) domain.ExitReason {
	if t.Direction == domain.DirectionSkip {
		return domain.ExitNone
	}

	m, ok := byID[t.MarketID]
	if !ok {
		return domain.ExitMarketResolved
	}
	cur := m.PriceFor(t.Direction)
	t.LastPrice = cur

	switch t.Mode {
	case domain.ModeScalp:
		return scalpExit(t, cur, now)
	case domain.ModeSwing:
		return swingExit(t, cur, now)
	case domain.ModeConviction:
		return convictionExit(t, cur)
	case domain.ModeLegacy:
		return legacyExit(t, cur, legacyTP, legacySL)
	}
	return domain.ExitNone
}

// Take-profit is checked first so a tick crossing both levels counts as a win.
func scalpExit(t *domain.Trade, cur decimal.Decimal, now time.Time) domain.ExitReason {
	switch {
	case hitTakeProfit(t, cur):
		return domain.ExitTakeProfit
	case hitStopLoss(t, cur):
		return domain.ExitStopLoss
	case expired(t, now):
		return domain.ExitTimeExpiry
	}
	return domain.ExitNone
}

func swingExit(t *domain.Trade, cur decimal.Decimal, now time.Time) domain.ExitReason {
	switch {
	case hitTakeProfit(t, cur):
		return domain.ExitTakeProfit
	case edgeCaptured(t, cur):
		return domain.ExitEdgeCaptured
	case hitStopLoss(t, cur):
		return domain.ExitStopLoss
	case expired(t, now):
		return domain.ExitTimeExpiry
	}
	return domain.ExitNone
}

// Conviction trades ride to resolution unless they are deep underwater on a
// verdict that was not confident to begin with.
func convictionExit(t *domain.Trade, cur decimal.Decimal) domain.ExitReason {
	if !t.BetSize.IsPositive() {
		return domain.ExitNone
	}
	conf := t.Provenance.JudgeConfidence
	if conf.IsZero() {
		conf = defaultJudgeConfRef
	}
	pnlPct := t.UnrealizedPnL(cur).Div(t.BetSize)
	if pnlPct.LessThan(safetyValveLossPct) && conf.LessThan(safetyValveMinConf) {
		return domain.ExitSafetyValve
	}
	return domain.ExitNone
}

func legacyExit(t *domain.Trade, cur, tp, sl decimal.Decimal) domain.ExitReason {
	if !t.BetSize.IsPositive() {
		return domain.ExitNone
	}
	change := t.UnrealizedPnL(cur).Div(t.BetSize)
	switch {
	case tp.IsPositive() && change.GreaterThanOrEqual(tp):
		return domain.ExitTakeProfit
	case sl.IsPositive() && change.LessThanOrEqual(sl.Neg()):
		return domain.ExitStopLoss
	}
	return domain.ExitNone
}

func hitTakeProfit(t *domain.Trade, cur decimal.Decimal) bool {
	return t.TakeProfit.IsPositive() && cur.GreaterThanOrEqual(t.TakeProfit)
}

func hitStopLoss(t *domain.Trade, cur decimal.Decimal) bool {
	return t.StopLoss.IsPositive() && cur.LessThanOrEqual(t.StopLoss)
}

func expired(t *domain.Trade, now time.Time) bool {
	return !t.MaxHoldUntil.IsZero() && now.After(t.MaxHoldUntil)
}

// edgeCaptured reports whether the price has covered 60% of the way from
// entry to the judge's fair value for the held side. A fair value at or
// below entry has no edge to capture.
func edgeCaptured(t *domain.Trade, cur decimal.Decimal) bool {
	fair := t.Provenance.JudgeFairValue
	if fair.IsZero() {
		fair = t.FairValue
	}
	target := t.Direction.SidePrice(fair)
	total := target.Sub(t.EntryPrice)
	if !total.IsPositive() {
		return false
	}
	captured := cur.Sub(t.EntryPrice).Div(total)
	return captured.GreaterThanOrEqual(edgeCapturedRatio)
}

// settle closes t at rawExit. Must be called with the lock held.
func (p *Portfolio) settle(t *domain.Trade, rawExit decimal.Decimal, reason domain.ExitReason, sim simulation.Config, now time.Time) {
	exit := sim.Exit(rawExit, t.BetSize, t.Shares)
	gross := exit.Price.Sub(t.EntryPrice).Mul(t.Shares)

	gas := sim.GasFee(p.rng)
	makerTaker := sim.TakerFee(exit.Price.Mul(t.Shares))
	platform := sim.PlatformFee(gross)

	t.ExitPrice = exit.Price
	t.RawExitPrice = exit.RawPrice
	t.PnL = gross
	t.ExitReason = reason
	t.ClosedAt = now
	t.HoldDuration = now.Sub(t.OpenedAt)
	t.Costs.ExitGas = gas
	t.Costs.ExitSlippage = exit.SlippageCost
	t.Costs.PlatformFee = platform
	t.Costs.MakerTakerFee = t.Costs.MakerTakerFee.Add(makerTaker)

	if gross.IsPositive() {
		t.Status = domain.StatusWon
		p.wins++
		p.consecutiveLosses = 0
	} else {
		t.Status = domain.StatusLost
		p.losses++
		p.consecutiveLosses++
	}

	returned := t.BetSize.Add(gross).Sub(gas).Sub(makerTaker).Sub(platform)
	if returned.IsNegative() {
		returned = decimal.Zero
	}
	p.balance = p.balance.Add(returned)
	t.BalanceAfter = p.balance

	slog.Info("paper: trade closed",
		"id", t.ID,
		"market", t.MarketID,
		"reason", reason,
		"status", t.Status,
		"entry", t.EntryPrice.StringFixed(4),
		"exit", t.ExitPrice.StringFixed(4),
		"pnl", domain.USD(gross),
		"fees", gas.Add(makerTaker).Add(platform).StringFixed(4),
		"held", t.HoldDuration.Round(time.Second),
		"balance", domain.USD(p.balance),
	)
}
