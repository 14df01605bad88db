package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Verdict is the output of the reasoning pipeline for one market.
// FairValue is always the YES probability, whatever the direction.
type Verdict struct {
	MarketID        string
	Question        string
	Direction       Direction
	FairValue       decimal.Decimal
	Confidence      decimal.Decimal
	Edge            decimal.Decimal // fair value minus YES price
	BullProbability decimal.Decimal
	BearProbability decimal.Decimal
	Desk            string
	Model           string
	Reasoning       string
	APICost         decimal.Decimal
}

// RiskDecision is the risk manager's answer to a verdict.
type RiskDecision struct {
	Approved     bool
	PositionSize decimal.Decimal
	Reason       string
	Adjustments  []string
}

// TradePlan is the exit policy the strategist attaches to an approved trade.
type TradePlan struct {
	Mode          TradeMode
	TakeProfitPct decimal.Decimal // zero = none
	StopLossPct   decimal.Decimal // zero = none
	MaxHold       time.Duration   // zero = hold until resolution
	CheckInterval time.Duration
	SpreadWarning decimal.Decimal
	Reasoning     string
}

// LossAction is what the agent does after a run of consecutive losses.
type LossAction uint8

const (
	LossContinue LossAction = iota
	LossSkipCycle
	LossReduceSize
	LossPause
)

func (a LossAction) String() string {
	switch a {
	case LossSkipCycle:
		return "SKIP_CYCLE"
	case LossReduceSize:
		return "REDUCE_SIZE"
	case LossPause:
		return "PAUSE"
	default:
		return "CONTINUE"
	}
}
