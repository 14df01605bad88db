package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a binary market a trade buys.
type Direction string

const (
	DirectionYes  Direction = "YES"
	DirectionNo   Direction = "NO"
	DirectionSkip Direction = "SKIP"
)

// ParseDirection accepts "YES"/"NO" in any case; anything else is Skip.
func ParseDirection(s string) Direction {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES":
		return DirectionYes
	case "NO":
		return DirectionNo
	default:
		return DirectionSkip
	}
}

// SidePrice converts a YES price (or probability) into the price of the side
// this direction buys. Skip has no side and returns zero.
func (d Direction) SidePrice(yes decimal.Decimal) decimal.Decimal {
	switch d {
	case DirectionYes:
		return yes
	case DirectionNo:
		return One.Sub(yes)
	default:
		return decimal.Zero
	}
}

// TradeStatus is the lifecycle state of a trade. Once a trade leaves Open it
// is never modified again.
type TradeStatus string

const (
	StatusOpen      TradeStatus = "OPEN"
	StatusWon       TradeStatus = "WON"
	StatusLost      TradeStatus = "LOST"
	StatusCancelled TradeStatus = "CANCELLED"
)

// ExitReason says why a position was closed.
type ExitReason uint8

const (
	ExitNone ExitReason = iota
	ExitTakeProfit
	ExitStopLoss
	ExitTimeExpiry
	ExitMarketResolved
	ExitManualStop
	ExitSafetyValve
	ExitEdgeCaptured
)

var exitReasonNames = [...]string{
	ExitNone:           "",
	ExitTakeProfit:     "TAKE_PROFIT",
	ExitStopLoss:       "STOP_LOSS",
	ExitTimeExpiry:     "TIME_EXPIRY",
	ExitMarketResolved: "MARKET_RESOLVED",
	ExitManualStop:     "MANUAL_STOP",
	ExitSafetyValve:    "SAFETY_VALVE",
	ExitEdgeCaptured:   "EDGE_CAPTURED",
}

func (r ExitReason) String() string {
	if int(r) < len(exitReasonNames) {
		return exitReasonNames[r]
	}
	return fmt.Sprintf("ExitReason(%d)", uint8(r))
}

// MarshalText lets the reason travel as its name in JSON.
func (r ExitReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ParseExitReason is the inverse of String. Unknown names map to ExitNone.
func ParseExitReason(s string) ExitReason {
	for i, name := range exitReasonNames {
		if name == s {
			return ExitReason(i)
		}
	}
	return ExitNone
}

// TradeMode selects the exit policy applied while a trade is open.
// ModeLegacy is the zero value: percentage take-profit/stop-loss on
// unrealized P&L, configured globally rather than per trade.
type TradeMode uint8

const (
	ModeLegacy TradeMode = iota
	ModeScalp
	ModeSwing
	ModeConviction
)

var tradeModeNames = [...]string{
	ModeLegacy:     "LEGACY",
	ModeScalp:      "SCALP",
	ModeSwing:      "SWING",
	ModeConviction: "CONVICTION",
}

func (m TradeMode) String() string {
	if int(m) < len(tradeModeNames) {
		return tradeModeNames[m]
	}
	return fmt.Sprintf("TradeMode(%d)", uint8(m))
}

// MarshalText lets the mode travel as its name in JSON.
func (m TradeMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseTradeMode is the inverse of String. Unknown names map to ModeLegacy.
func ParseTradeMode(s string) TradeMode {
	for i, name := range tradeModeNames {
		if name == s {
			return TradeMode(i)
		}
	}
	return ModeLegacy
}

// TradeCosts itemizes every simulated execution cost of a trade.
// Slippage is already reflected in the entry/exit prices; the rest is not.
type TradeCosts struct {
	EntryGas      decimal.Decimal
	ExitGas       decimal.Decimal
	EntrySlippage decimal.Decimal
	ExitSlippage  decimal.Decimal
	PlatformFee   decimal.Decimal
	MakerTakerFee decimal.Decimal // entry + exit legs
}

// Fees returns the costs charged on top of the fill price.
func (c TradeCosts) Fees() decimal.Decimal {
	return c.EntryGas.Add(c.ExitGas).Add(c.PlatformFee).Add(c.MakerTakerFee)
}

// Total returns every cost including slippage.
func (c TradeCosts) Total() decimal.Decimal {
	return c.Fees().Add(c.EntrySlippage).Add(c.ExitSlippage)
}

// Provenance records where a trade idea came from. Only the judge
// confidence and fair value are read by the exit rules.
type Provenance struct {
	JudgeFairValue  decimal.Decimal // YES probability
	JudgeConfidence decimal.Decimal
	BullProbability decimal.Decimal
	BearProbability decimal.Decimal
	Desk            string
	Model           string
	Category        string
	TokenID         string
}

// Trade is one paper position from open to close.
type Trade struct {
	ID        string
	OpenedAt  time.Time
	ClosedAt  time.Time
	MarketID  string
	Question  string
	Direction Direction

	EntryPrice    decimal.Decimal // after slippage and impact
	RawEntryPrice decimal.Decimal
	FairValue     decimal.Decimal
	Edge          decimal.Decimal
	Shares        decimal.Decimal
	BetSize       decimal.Decimal

	Status       TradeStatus
	ExitPrice    decimal.Decimal // after slippage
	RawExitPrice decimal.Decimal
	LastPrice    decimal.Decimal // last side price seen by the ledger
	PnL          decimal.Decimal // gross: (exit - entry) * shares
	ExitReason   ExitReason
	HoldDuration time.Duration
	BalanceAfter decimal.Decimal

	Mode         TradeMode
	TakeProfit   decimal.Decimal // side price; zero = none
	StopLoss     decimal.Decimal // side price; zero = none
	MaxHoldUntil time.Time       // zero = no deadline

	Costs      TradeCosts
	Provenance Provenance
}

// IsOpen reports whether the trade still holds a position.
func (t Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// UnrealizedPnL marks the position against a side price.
func (t Trade) UnrealizedPnL(current decimal.Decimal) decimal.Decimal {
	return current.Sub(t.EntryPrice).Mul(t.Shares)
}

// NetPnL is the gross P&L minus every fee not already in the fill prices.
func (t Trade) NetPnL() decimal.Decimal {
	return t.PnL.Sub(t.Costs.Fees())
}
