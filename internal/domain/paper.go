package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SimulationCosts aggregates every simulated execution cost across a run.
type SimulationCosts struct {
	Gas        decimal.Decimal
	Slippage   decimal.Decimal
	Platform   decimal.Decimal
	MakerTaker decimal.Decimal
}

// Total returns the sum of all cost buckets.
func (c SimulationCosts) Total() decimal.Decimal {
	return c.Gas.Add(c.Slippage).Add(c.Platform).Add(c.MakerTaker)
}

// PortfolioStats is a read-only projection of the ledger at a point in time.
type PortfolioStats struct {
	Timestamp         time.Time       `json:"timestamp"`
	Balance           decimal.Decimal `json:"balance"`
	InitialBalance    decimal.Decimal `json:"initial_balance"`
	RealizedPnL       decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL     decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL          decimal.Decimal `json:"total_pnl"`
	ROIPct            decimal.Decimal `json:"roi_pct"`
	PeakBalance       decimal.Decimal `json:"peak_balance"`
	MaxDrawdownPct    decimal.Decimal `json:"max_drawdown_pct"`
	WinRate           decimal.Decimal `json:"win_rate"` // percentage, 0-100
	Wins              int             `json:"wins"`
	Losses            int             `json:"losses"`
	TotalTrades       int             `json:"total_trades"`
	OpenPositions     int             `json:"open_positions"`
	LockedBalance     decimal.Decimal `json:"locked_balance"`
	ConsecutiveLosses int             `json:"consecutive_losses"`
	APICost           decimal.Decimal `json:"api_cost"`
	Elapsed           time.Duration   `json:"elapsed"`
	Costs             SimulationCosts `json:"costs"`
	RecentTrades      []Trade         `json:"recent_trades"`
}

// ElapsedHours devuelve el tiempo transcurrido en horas.
func (s PortfolioStats) ElapsedHours() float64 {
	return s.Elapsed.Hours()
}

// CycleLog is one row of the per-cycle audit trail.
type CycleLog struct {
	Number          int
	StartedAt       time.Time
	Duration        time.Duration
	MarketsScanned  int
	CandidatesFound int
	TradesOpened    int
	TradesClosed    int
	BalanceAfter    decimal.Decimal
	OpenPositions   int
	APICost         decimal.Decimal
	LossAction      LossAction
}
