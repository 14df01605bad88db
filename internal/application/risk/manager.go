// Package risk decides whether a verdict becomes a trade and how large.
//
// The manager performs no I/O. Every rejection is a RiskDecision with
// Approved=false and a reason, never an error.
package risk

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/domain"
	"github.com/alejandrodnm/polyagent/internal/sizing"
)

var (
	defaultMaxEdge = decimal.RequireFromString("0.35")
	fullConfidence = decimal.RequireFromString("0.80")
)

// Ledger is the part of the portfolio the manager reads.
type Ledger interface {
	Balance() decimal.Decimal
	IsAlive(kill decimal.Decimal) bool
}

// Config configura el risk manager.
type Config struct {
	InitialBalance    decimal.Decimal
	KillThreshold     decimal.Decimal
	KellyFraction     decimal.Decimal
	MinConfidence     decimal.Decimal
	BalanceReservePct decimal.Decimal
	MaxEdge           decimal.Decimal // zero = 0.35
}

// Manager applies the portfolio-level checks and sizes approved trades.
type Manager struct {
	initial       decimal.Decimal
	kill          decimal.Decimal
	kellyFraction decimal.Decimal
	minConfidence decimal.Decimal
	reservePct    decimal.Decimal
	maxEdge       decimal.Decimal
}

// New crea el manager con la configuración dada.
func New(cfg Config) *Manager {
	maxEdge := cfg.MaxEdge
	if !maxEdge.IsPositive() {
		maxEdge = defaultMaxEdge
	}
	return &Manager{
		initial:       cfg.InitialBalance,
		kill:          cfg.KillThreshold,
		kellyFraction: cfg.KellyFraction,
		minConfidence: cfg.MinConfidence,
		reservePct:    cfg.BalanceReservePct,
		maxEdge:       maxEdge,
	}
}

// Check evaluates v against the ledger. maxPct is the cap on the bankroll
// fraction for this trade (the loss guard may have lowered it) and yesPrice
// is the market's current YES price.
func (m *Manager) Check(v domain.Verdict, ledger Ledger, maxPct, yesPrice decimal.Decimal) domain.RiskDecision {
	if v.Direction == domain.DirectionSkip {
		return reject("direction is SKIP")
	}

	balance := ledger.Balance()
	if !ledger.IsAlive(m.kill) {
		return reject(fmt.Sprintf("balance %s below kill threshold %s", domain.USD(balance), domain.USD(m.kill)))
	}

	reserve := m.initial.Mul(m.reservePct)
	available := balance.Sub(reserve)
	if !available.IsPositive() {
		return reject(fmt.Sprintf("balance %s <= reserve %s", domain.USD(balance), domain.USD(reserve)))
	}

	if v.Confidence.LessThan(m.minConfidence) {
		return reject(fmt.Sprintf("confidence %s < min %s", v.Confidence.StringFixed(2), m.minConfidence.StringFixed(2)))
	}

	edge := v.FairValue.Sub(yesPrice).Abs()
	if edge.GreaterThan(m.maxEdge) {
		return reject(fmt.Sprintf("edge %s too large (> %s), likely calibration error", domain.Pct(edge), domain.Pct(m.maxEdge)))
	}

	var adjustments []string

	survivalPct, dead := sizing.SurvivalAdjust(balance, m.kill, maxPct)
	if dead {
		return reject("portfolio is dead")
	}
	in := sizing.KellyInput{
		Bankroll:     balance,
		Probability:  v.Direction.SidePrice(v.FairValue),
		Price:        v.Direction.SidePrice(yesPrice),
		Fraction:     m.kellyFraction,
		MaxPct:       maxPct,
		BaseBankroll: m.initial,
	}
	if survivalPct.LessThan(maxPct) {
		in.SurvivalCap = decimal.NewNullDecimal(survivalPct)
		adjustments = append(adjustments, "survival mode: max pct reduced to "+domain.Pct(survivalPct))
	}

	kelly := sizing.Kelly(in)
	if kelly.IsZero() {
		return domain.RiskDecision{
			Reason:      fmt.Sprintf("kelly bet size is zero (%s)", kelly.RiskLevel),
			Adjustments: adjustments,
		}
	}

	bet := decimal.Min(kelly.BetSize, available)
	if bet.LessThan(kelly.BetSize) {
		adjustments = append(adjustments, "capped to available "+domain.USD(available))
	}

	scale := domain.One
	if v.Confidence.LessThan(fullConfidence) {
		scale = decimal.Min(v.Confidence.Div(fullConfidence), domain.One)
	}
	bet = bet.Mul(scale).Round(2)
	if !bet.IsPositive() {
		return domain.RiskDecision{
			Reason:      "bet size after confidence scaling is zero",
			Adjustments: adjustments,
		}
	}
	adjustments = append(adjustments, fmt.Sprintf("kelly %s | conf scale %s", domain.Pct(kelly.AdjustedKelly), scale.StringFixed(2)))

	slog.Info("risk: approved",
		"market", v.MarketID,
		"size", domain.USD(bet),
		"kelly", domain.Pct(kelly.AdjustedKelly),
		"conf_scale", scale.StringFixed(2),
		"level", kelly.RiskLevel,
	)

	return domain.RiskDecision{
		Approved:     true,
		PositionSize: bet,
		Reason:       fmt.Sprintf("approved %s (%s risk)", domain.USD(bet), kelly.RiskLevel),
		Adjustments:  adjustments,
	}
}

func reject(reason string) domain.RiskDecision {
	slog.Debug("risk: rejected", "reason", reason)
	return domain.RiskDecision{Reason: reason}
}
