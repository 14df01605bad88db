package notify_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyagent/internal/adapters/notify"
	"github.com/alejandrodnm/polyagent/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var opened = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTrade(id, question string) domain.Trade {
	return domain.Trade{
		ID:         id,
		OpenedAt:   opened,
		MarketID:   "0x" + id,
		Question:   question,
		Direction:  domain.DirectionYes,
		EntryPrice: dec("0.40"),
		Shares:     dec("25"),
		BetSize:    dec("10"),
		Status:     domain.StatusOpen,
		Mode:       domain.ModeScalp,
		TakeProfit: dec("0.448"),
		StopLoss:   dec("0.368"),
	}
}

func closedTrade(id string, mode domain.TradeMode, exit string, reason domain.ExitReason) domain.Trade {
	t := openTrade(id, "Will "+id+" happen?")
	t.Mode = mode
	t.ExitPrice = dec(exit)
	t.PnL = t.ExitPrice.Sub(t.EntryPrice).Mul(t.Shares)
	t.Status = domain.StatusLost
	if t.PnL.IsPositive() {
		t.Status = domain.StatusWon
	}
	t.ExitReason = reason
	t.ClosedAt = opened.Add(time.Hour)
	t.HoldDuration = time.Hour
	t.Costs = domain.TradeCosts{EntryGas: dec("0.02"), ExitGas: dec("0.03")}
	return t
}

func TestConsole_NotifyTrade_Open(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, c.NotifyTrade(context.Background(), openTrade("a1", "Will BTC hit 100k?")))

	out := buf.String()
	assert.Contains(t, out, "OPEN")
	assert.Contains(t, out, "SCALP")
	assert.Contains(t, out, "Will BTC hit 100k?")
	assert.Contains(t, out, "$10.00")
	assert.Contains(t, out, "0.4480")
}

func TestConsole_NotifyTrade_Close(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	// (0.50 - 0.40) × 25 = 2.50 gross, 0.05 fees
	tr := closedTrade("a1", domain.ModeSwing, "0.50", domain.ExitTakeProfit)
	require.NoError(t, c.NotifyTrade(context.Background(), tr))

	out := buf.String()
	assert.Contains(t, out, "CLOSE")
	assert.Contains(t, out, "WON")
	assert.Contains(t, out, "+$2.45")
	assert.Contains(t, out, "TAKE_PROFIT")
}

func TestConsole_NotifyTrade_LongQuestionTruncated(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, c.NotifyTrade(context.Background(), openTrade("a1", strings.Repeat("A", 50))))
	assert.Contains(t, buf.String(), "...")
}

func TestConsole_Notify_StatusLine(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	st := domain.PortfolioStats{
		Timestamp:         opened,
		Balance:           dec("92.5"),
		TotalPnL:          dec("-7.5"),
		ROIPct:            dec("-7.5"),
		OpenPositions:     2,
		Wins:              1,
		Losses:            3,
		WinRate:           dec("25"),
		MaxDrawdownPct:    dec("9.2"),
		ConsecutiveLosses: 3,
		APICost:           dec("0.12"),
		Elapsed:           90 * time.Minute,
		RecentTrades:      []domain.Trade{openTrade("a1", "Will X happen?")},
	}
	require.NoError(t, c.Notify(context.Background(), st))

	out := buf.String()
	assert.Contains(t, out, "bal $92.50")
	assert.Contains(t, out, "-$7.50")
	assert.Contains(t, out, "W1/L3")
	assert.Contains(t, out, "streak -3")
	assert.Contains(t, out, "up 1.5h")
	assert.NotContains(t, out, "Will X happen?", "table only in table mode")
}

func TestConsole_Notify_TableMode(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, true)

	st := domain.PortfolioStats{
		Timestamp:    opened,
		Balance:      dec("100"),
		RecentTrades: []domain.Trade{openTrade("a1", "Will X happen?")},
	}
	require.NoError(t, c.Notify(context.Background(), st))
	assert.Contains(t, buf.String(), "Will X happen?")
}

func TestConsole_Report(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	trades := []domain.Trade{
		closedTrade("w1", domain.ModeScalp, "0.50", domain.ExitTakeProfit),
		closedTrade("l1", domain.ModeSwing, "0.30", domain.ExitStopLoss),
		openTrade("o1", "Still open?"),
	}
	require.NoError(t, c.Report(context.Background(), trades, dec("100")))

	out := buf.String()
	assert.Contains(t, out, "PAPER TRADING REPORT")
	assert.Contains(t, out, "W1 / L1")
	assert.Contains(t, out, "50.0%")
	// gross 2.50 - 2.50 = 0, fees 0.10
	assert.Contains(t, out, "Net PnL:               -$0.10")
	assert.Contains(t, out, "SCALP")
	assert.Contains(t, out, "STOP_LOSS:")
	assert.Contains(t, out, "Need at least 10 closed trades")
}

func TestConsole_Report_Empty(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, c.Report(context.Background(), nil, dec("100")))
	assert.Contains(t, buf.String(), "No paper trading data yet")
}
