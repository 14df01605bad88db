package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyagent/internal/adapters/storage"
	"github.com/alejandrodnm/polyagent/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func makeTrade(id string, opened time.Time) domain.Trade {
	return domain.Trade{
		ID:            id,
		OpenedAt:      opened,
		MarketID:      "0x" + id,
		Question:      "Will X happen?",
		Direction:     domain.DirectionYes,
		EntryPrice:    dec("0.4012"),
		RawEntryPrice: dec("0.40"),
		FairValue:     dec("0.60"),
		Edge:          dec("0.20"),
		Shares:        dec("24.925224"),
		BetSize:       dec("10"),
		Status:        domain.StatusOpen,
		LastPrice:     dec("0.40"),
		BalanceAfter:  dec("90"),
		Mode:          domain.ModeSwing,
		TakeProfit:    dec("0.46"),
		StopLoss:      dec("0.36"),
		MaxHoldUntil:  opened.Add(168 * time.Hour),
		Costs: domain.TradeCosts{
			EntryGas:      dec("0.01"),
			EntrySlippage: dec("0.03"),
		},
		Provenance: domain.Provenance{
			JudgeFairValue:  dec("0.60"),
			JudgeConfidence: dec("0.72"),
			BullProbability: dec("0.66"),
			BearProbability: dec("0.52"),
			Desk:            "general",
			Model:           "sim-judge-v1",
			Category:        "politics",
			TokenID:         "tok-yes",
		},
	}
}

func TestSQLiteStorage_SaveAndLoadTrade(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	opened := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	want := makeTrade("t1", opened)
	require.NoError(t, db.SaveTrade(ctx, want))

	trades, err := db.LoadTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	got := trades[0]
	assert.Equal(t, want.ID, got.ID)
	assert.True(t, want.OpenedAt.Equal(got.OpenedAt))
	assert.True(t, got.ClosedAt.IsZero())
	assert.True(t, want.MaxHoldUntil.Equal(got.MaxHoldUntil))
	assert.Equal(t, domain.DirectionYes, got.Direction)
	assert.Equal(t, domain.ModeSwing, got.Mode)
	assert.Equal(t, domain.StatusOpen, got.Status)
	assert.Equal(t, domain.ExitNone, got.ExitReason)
	assert.True(t, want.Shares.Equal(got.Shares), "shares %s", got.Shares)
	assert.True(t, want.EntryPrice.Equal(got.EntryPrice))
	assert.True(t, want.Costs.EntrySlippage.Equal(got.Costs.EntrySlippage))
	assert.Equal(t, want.Provenance.TokenID, got.Provenance.TokenID)
	assert.Equal(t, want.Provenance.Desk, got.Provenance.Desk)
	assert.True(t, want.Provenance.JudgeConfidence.Equal(got.Provenance.JudgeConfidence))
}

func TestSQLiteStorage_SaveTradeUpdatesOnClose(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	opened := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tr := makeTrade("t1", opened)
	require.NoError(t, db.SaveTrade(ctx, tr))

	tr.Status = domain.StatusWon
	tr.ExitReason = domain.ExitTakeProfit
	tr.ClosedAt = opened.Add(90 * time.Minute)
	tr.HoldDuration = 90 * time.Minute
	tr.ExitPrice = dec("0.47")
	tr.PnL = dec("1.71")
	tr.Costs.ExitGas = dec("0.01")
	require.NoError(t, db.SaveTrade(ctx, tr))

	trades, err := db.LoadTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	got := trades[0]
	assert.Equal(t, domain.StatusWon, got.Status)
	assert.Equal(t, domain.ExitTakeProfit, got.ExitReason)
	assert.Equal(t, 90*time.Minute, got.HoldDuration)
	assert.True(t, tr.ClosedAt.Equal(got.ClosedAt))
	assert.True(t, dec("1.71").Equal(got.PnL))
	assert.True(t, dec("0.02").Equal(got.Costs.Fees()), "fees %s", got.Costs.Fees())
}

func TestSQLiteStorage_LoadTradesOrdered(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.SaveTrade(ctx, makeTrade("late", base.Add(time.Hour))))
	require.NoError(t, db.SaveTrade(ctx, makeTrade("early", base)))

	trades, err := db.LoadTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "early", trades[0].ID)
	assert.Equal(t, "late", trades[1].ID)
}

func TestSQLiteStorage_LoadTradesEmpty(t *testing.T) {
	db := newDB(t)

	trades, err := db.LoadTrades(context.Background())
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestSQLiteStorage_DailySnapshotUpsert(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	stats := domain.PortfolioStats{
		Timestamp:      day,
		Balance:        dec("95"),
		InitialBalance: dec("100"),
		TotalTrades:    1,
	}
	require.NoError(t, db.SaveDailySnapshot(ctx, stats))

	// mismo día UTC: sobrescribe
	stats.Timestamp = day.Add(10 * time.Hour)
	stats.Balance = dec("104.5")
	stats.TotalTrades = 3
	require.NoError(t, db.SaveDailySnapshot(ctx, stats))

	// día siguiente: fila nueva
	stats.Timestamp = day.Add(24 * time.Hour)
	require.NoError(t, db.SaveDailySnapshot(ctx, stats))
}

func TestSQLiteStorage_LogCycle(t *testing.T) {
	db := newDB(t)

	err := db.LogCycle(context.Background(), domain.CycleLog{
		Number:          1,
		StartedAt:       time.Now().UTC(),
		Duration:        1500 * time.Millisecond,
		MarketsScanned:  120,
		CandidatesFound: 4,
		TradesOpened:    2,
		BalanceAfter:    dec("80.25"),
		OpenPositions:   2,
		APICost:         dec("0.04"),
		LossAction:      domain.LossReduceSize,
	})
	assert.NoError(t, err)
}

func TestSQLiteStorage_ReopenKeepsTrades(t *testing.T) {
	path := t.TempDir() + "/agent.db"
	ctx := context.Background()

	db, err := storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, db.SaveTrade(ctx, makeTrade("t1", time.Now().UTC())))
	require.NoError(t, db.Close())

	// la segunda apertura re-aplica schema y migraciones sin error
	db, err = storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	defer db.Close()

	trades, err := db.LoadTrades(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}
