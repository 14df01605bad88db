package strategist

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/application/engine/paper"
	"github.com/alejandrodnm/polyagent/internal/domain"
	"github.com/alejandrodnm/polyagent/internal/simulation"
)

// Ledger is the part of the portfolio that opens positions.
type Ledger interface {
	Execute(req paper.OpenRequest, sim simulation.Config) (domain.Trade, bool)
}

// Executor opens planned trades on the ledger.
type Executor struct {
	ledger    Ledger
	sim       simulation.Config
	maxSpread decimal.Decimal
}

// NewExecutor creates an executor. A zero maxSpread accepts any spread.
func NewExecutor(ledger Ledger, sim simulation.Config, maxSpread decimal.Decimal) *Executor {
	return &Executor{ledger: ledger, sim: sim, maxSpread: maxSpread}
}

// Open executes an approved decision with the given plan. It returns false
// when the entry is refused here or by the ledger.
func (e *Executor) Open(v domain.Verdict, d domain.RiskDecision, m domain.Market, plan domain.TradePlan) (domain.Trade, bool) {
	if !d.Approved || v.Direction == domain.DirectionSkip {
		return domain.Trade{}, false
	}

	spread := m.BookSpread()
	if e.maxSpread.IsPositive() && spread.GreaterThan(e.maxSpread) {
		slog.Info("executor: spread too wide",
			"market", m.ID,
			"spread", domain.Pct(spread),
			"max", domain.Pct(e.maxSpread),
		)
		return domain.Trade{}, false
	}
	if spread.GreaterThan(plan.SpreadWarning) {
		slog.Warn("executor: spread above mode limit",
			"market", m.ID,
			"mode", plan.Mode,
			"spread", domain.Pct(spread),
			"limit", domain.Pct(plan.SpreadWarning),
		)
	}

	req := paper.OpenRequest{
		MarketID:    m.ID,
		Question:    m.Question,
		Direction:   v.Direction,
		MarketPrice: m.YesPrice(),
		FairValue:   v.FairValue,
		Edge:        v.FairValue.Sub(m.YesPrice()),
		Size:        d.PositionSize,
		Volume:      m.Volume,
		Spread:      m.Spread,
		Plan:        plan,
		Provenance: domain.Provenance{
			JudgeFairValue:  v.FairValue,
			JudgeConfidence: v.Confidence,
			BullProbability: v.BullProbability,
			BearProbability: v.BearProbability,
			Desk:            v.Desk,
			Model:           v.Model,
			Category:        m.Category,
			TokenID:         m.TokenFor(v.Direction),
		},
	}

	t, ok := e.ledger.Execute(req, e.sim)
	if !ok {
		return domain.Trade{}, false
	}
	slog.Info("executor: opened",
		"id", t.ID,
		"mode", t.Mode,
		"dir", t.Direction,
		"question", truncate(t.Question, 40),
		"entry", t.EntryPrice.StringFixed(4),
		"size", domain.USD(t.BetSize),
		"desk", v.Desk,
	)
	return t, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
