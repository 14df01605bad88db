// Package paper holds the portfolio ledger for paper trading.
//
// The ledger is the only mutable state shared between the agent's tasks.
// Every exported method takes the lock for its whole duration and never
// performs I/O while holding it, so operations are atomic with respect to
// each other.
package paper

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/domain"
	"github.com/alejandrodnm/polyagent/internal/simulation"
)

const recentTradesShown = 5

// Config holds the ledger's construction parameters.
type Config struct {
	InitialBalance decimal.Decimal
	Rand           simulation.Rand // nil = simulation.DefaultRand()
}

// Portfolio is the paper trading ledger.
type Portfolio struct {
	mu  sync.Mutex
	rng simulation.Rand
	now func() time.Time

	initial   decimal.Decimal
	balance   decimal.Decimal
	startedAt time.Time

	// trades is append-only; open holds indexes into it.
	trades []domain.Trade
	open   []int

	wins              int
	losses            int
	consecutiveLosses int
	peak              decimal.Decimal
	maxDrawdown       decimal.Decimal // fraction of peak
	apiCost           decimal.Decimal
}

// New creates a ledger with the given starting cash.
func New(cfg Config) *Portfolio {
	rng := cfg.Rand
	if rng == nil {
		rng = simulation.DefaultRand()
	}
	p := &Portfolio{
		rng:     rng,
		now:     time.Now,
		initial: cfg.InitialBalance,
		balance: cfg.InitialBalance,
		peak:    cfg.InitialBalance,
	}
	p.startedAt = p.now()
	return p
}

// Balance returns the free cash balance.
func (p *Portfolio) Balance() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}

// InitialBalance returns the starting cash.
func (p *Portfolio) InitialBalance() decimal.Decimal {
	return p.initial
}

// IsAlive reports whether the balance is still above the kill threshold.
func (p *Portfolio) IsAlive(kill decimal.Decimal) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance.GreaterThan(kill)
}

// ConsecutiveLosses returns the current losing streak.
func (p *Portfolio) ConsecutiveLosses() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consecutiveLosses
}

// OpenPositionCount returns how many trades are open.
func (p *Portfolio) OpenPositionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.open)
}

// HasOpenPosition reports whether any open trade is on marketID.
func (p *Portfolio) HasOpenPosition(marketID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, idx := range p.open {
		if p.trades[idx].MarketID == marketID {
			return true
		}
	}
	return false
}

// OpenTrades returns copies of the open trades in opening order.
func (p *Portfolio) OpenTrades() []domain.Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Trade, 0, len(p.open))
	for _, idx := range p.open {
		out = append(out, p.trades[idx])
	}
	return out
}

// ClosedTrades returns copies of every settled trade in opening order.
func (p *Portfolio) ClosedTrades() []domain.Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Trade
	for _, t := range p.trades {
		if !t.IsOpen() {
			out = append(out, t)
		}
	}
	return out
}

// Trades returns a copy of the full history.
func (p *Portfolio) Trades() []domain.Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

// TotalTradeCount returns the number of trades ever opened.
func (p *Portfolio) TotalTradeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.trades)
}

// AddAPICost records money spent outside the market, e.g. on model calls.
func (p *Portfolio) AddAPICost(cost decimal.Decimal) {
	if !cost.IsPositive() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.apiCost = p.apiCost.Add(cost)
}

// updateDrawdown must be called with the lock held.
func (p *Portfolio) updateDrawdown() {
	if p.balance.GreaterThan(p.peak) {
		p.peak = p.balance
	}
	if !p.peak.IsPositive() {
		return
	}
	dd := p.peak.Sub(p.balance).Div(p.peak)
	if dd.GreaterThan(p.maxDrawdown) {
		p.maxDrawdown = dd
	}
}
