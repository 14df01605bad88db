package strategist_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyagent/internal/application/engine/paper"
	"github.com/alejandrodnm/polyagent/internal/application/strategist"
	"github.com/alejandrodnm/polyagent/internal/domain"
	"github.com/alejandrodnm/polyagent/internal/simulation"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decEq(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func market(yes string, days int) domain.Market {
	y := dec(yes)
	m := domain.Market{
		ID:       "0xabc",
		Question: "Will the Fed cut rates in June?",
		Category: "economics",
		Volume:   dec("25000"),
		Tokens: [2]domain.Token{
			{TokenID: "tok-yes", Outcome: "Yes", Price: y},
			{TokenID: "tok-no", Outcome: "No", Price: domain.One.Sub(y)},
		},
	}
	if days > 0 {
		m.EndDate = now.Add(time.Duration(days) * 24 * time.Hour)
	}
	return m
}

func verdict(dir domain.Direction, fair, conf string) domain.Verdict {
	return domain.Verdict{
		MarketID:        "0xabc",
		Direction:       dir,
		FairValue:       dec(fair),
		Confidence:      dec(conf),
		BullProbability: dec("0.70"),
		BearProbability: dec("0.55"),
		Desk:            "general",
		Model:           "judge-sim",
	}
}

var approved = domain.RiskDecision{Approved: true, PositionSize: dec("10")}

func TestPlan_Modes(t *testing.T) {
	tests := []struct {
		name    string
		verdict domain.Verdict
		market  domain.Market
		mode    domain.TradeMode
		tp      string
		sl      string
		hold    time.Duration
		check   time.Duration
	}{
		{"conviction", verdict(domain.DirectionYes, "0.65", "0.80"), market("0.40", 30), domain.ModeConviction, "0", "0", 0, 3 * time.Minute},
		{"scalp near expiry", verdict(domain.DirectionYes, "0.58", "0.72"), market("0.40", 3), domain.ModeScalp, "0.12", "0.08", 24 * time.Hour, 30 * time.Second},
		{"scalp edge far from expiry is swing", verdict(domain.DirectionYes, "0.58", "0.72"), market("0.40", 10), domain.ModeSwing, "0.144", "0.10", 168 * time.Hour, 90 * time.Second},
		{"unknown end date counts as 30 days", verdict(domain.DirectionYes, "0.58", "0.72"), market("0.40", 0), domain.ModeSwing, "0.144", "0.10", 168 * time.Hour, 90 * time.Second},
		{"swing tp floor", verdict(domain.DirectionYes, "0.53", "0.90"), market("0.50", 3), domain.ModeSwing, "0.05", "0.10", 168 * time.Hour, 90 * time.Second},
		{"swing tp cap", verdict(domain.DirectionNo, "0.20", "0.60"), market("0.50", 3), domain.ModeSwing, "0.20", "0.10", 168 * time.Hour, 90 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := strategist.Plan(tt.verdict, approved, tt.market, now)
			assert.Equal(t, tt.mode, p.Mode)
			decEq(t, tt.tp, p.TakeProfitPct)
			decEq(t, tt.sl, p.StopLossPct)
			assert.Equal(t, tt.hold, p.MaxHold)
			assert.Equal(t, tt.check, p.CheckInterval)
			assert.Contains(t, p.Reasoning, "["+tt.mode.String()+"]")
		})
	}
}

func TestPlan_SpreadWarning(t *testing.T) {
	m := market("0.40", 3)
	m.Spread = dec("0.03")

	p := strategist.Plan(verdict(domain.DirectionYes, "0.58", "0.72"), approved, m, now)
	require.Equal(t, domain.ModeScalp, p.Mode)
	assert.Contains(t, p.Reasoning, "WARN")

	m.Spread = dec("0.01")
	p = strategist.Plan(verdict(domain.DirectionYes, "0.58", "0.72"), approved, m, now)
	assert.NotContains(t, p.Reasoning, "WARN")
}

func TestExecutor_OpensPlannedTrade(t *testing.T) {
	ledger := paper.New(paper.Config{InitialBalance: dec("100")})
	exec := strategist.NewExecutor(ledger, simulation.Disabled(), dec("0.05"))

	v := verdict(domain.DirectionNo, "0.40", "0.72")
	m := market("0.50", 10)
	plan := strategist.Plan(v, approved, m, now)

	tr, ok := exec.Open(v, approved, m, plan)
	require.True(t, ok)
	assert.Equal(t, domain.ModeSwing, tr.Mode)
	assert.Equal(t, domain.DirectionNo, tr.Direction)
	decEq(t, "0.50", tr.EntryPrice)
	decEq(t, "10", tr.BetSize)
	// 0.50 × (1 + 0.08), 0.50 × (1 − 0.10)
	decEq(t, "0.54", tr.TakeProfit)
	decEq(t, "0.45", tr.StopLoss)
	assert.False(t, tr.MaxHoldUntil.IsZero())

	assert.Equal(t, "tok-no", tr.Provenance.TokenID)
	assert.Equal(t, "economics", tr.Provenance.Category)
	assert.Equal(t, "general", tr.Provenance.Desk)
	decEq(t, "0.40", tr.Provenance.JudgeFairValue)
	decEq(t, "0.72", tr.Provenance.JudgeConfidence)
	decEq(t, "0.70", tr.Provenance.BullProbability)

	assert.True(t, ledger.HasOpenPosition("0xabc"))
	decEq(t, "90", ledger.Balance())
}

func TestExecutor_Refusals(t *testing.T) {
	ledger := paper.New(paper.Config{InitialBalance: dec("100")})
	exec := strategist.NewExecutor(ledger, simulation.Disabled(), dec("0.05"))
	v := verdict(domain.DirectionYes, "0.58", "0.72")

	wide := market("0.40", 3)
	wide.Spread = dec("0.08")
	_, ok := exec.Open(v, approved, wide, strategist.Plan(v, approved, wide, now))
	assert.False(t, ok)

	m := market("0.40", 3)
	rejected := domain.RiskDecision{Reason: "confidence 0.50 < min 0.60"}
	_, ok = exec.Open(v, rejected, m, strategist.Plan(v, rejected, m, now))
	assert.False(t, ok)

	skip := verdict(domain.DirectionSkip, "0.58", "0.72")
	_, ok = exec.Open(skip, approved, m, strategist.Plan(skip, approved, m, now))
	assert.False(t, ok)

	assert.Equal(t, 0, ledger.TotalTradeCount())
	decEq(t, "100", ledger.Balance())
}
