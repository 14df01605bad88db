package paper

import (
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// StatsWithMarkets returns a read-only snapshot of the ledger. Open trades
// whose market is missing from the snapshot contribute no unrealized P&L.
func (p *Portfolio) StatsWithMarkets(markets []domain.Market) domain.PortfolioStats {
	byID := domain.IndexMarkets(markets)

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	s := domain.PortfolioStats{
		Timestamp:         now,
		Balance:           p.balance,
		InitialBalance:    p.initial,
		RealizedPnL:       p.balance.Sub(p.initial),
		PeakBalance:       p.peak,
		MaxDrawdownPct:    p.maxDrawdown.Mul(domain.Hundred).Round(1),
		Wins:              p.wins,
		Losses:            p.losses,
		TotalTrades:       len(p.trades),
		OpenPositions:     len(p.open),
		ConsecutiveLosses: p.consecutiveLosses,
		APICost:           p.apiCost,
		Elapsed:           now.Sub(p.startedAt),
	}

	for _, idx := range p.open {
		t := p.trades[idx]
		s.LockedBalance = s.LockedBalance.Add(t.BetSize)
		if m, ok := byID[t.MarketID]; ok {
			s.UnrealizedPnL = s.UnrealizedPnL.Add(t.UnrealizedPnL(m.PriceFor(t.Direction)))
		}
	}
	s.TotalPnL = s.RealizedPnL.Add(s.UnrealizedPnL)

	if p.initial.IsPositive() {
		s.ROIPct = s.TotalPnL.Div(p.initial).Mul(domain.Hundred).Round(1)
	}
	if settled := p.wins + p.losses; settled > 0 {
		s.WinRate = decimal.NewFromInt(int64(p.wins)).
			Div(decimal.NewFromInt(int64(settled))).
			Mul(domain.Hundred).Round(1)
	}

	for _, t := range p.trades {
		s.Costs.Gas = s.Costs.Gas.Add(t.Costs.EntryGas).Add(t.Costs.ExitGas)
		s.Costs.Slippage = s.Costs.Slippage.Add(t.Costs.EntrySlippage).Add(t.Costs.ExitSlippage)
		s.Costs.Platform = s.Costs.Platform.Add(t.Costs.PlatformFee)
		s.Costs.MakerTaker = s.Costs.MakerTaker.Add(t.Costs.MakerTakerFee)
	}

	n := min(recentTradesShown, len(p.trades))
	s.RecentTrades = make([]domain.Trade, 0, n)
	for i := len(p.trades) - 1; i >= len(p.trades)-n; i-- {
		s.RecentTrades = append(s.RecentTrades, p.trades[i])
	}
	return s
}
