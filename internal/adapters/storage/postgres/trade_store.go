package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alejandrodnm/polyagent/internal/domain"
	"github.com/alejandrodnm/polyagent/internal/ports"
)

// TradeStore implements ports.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a TradeStore and makes sure the schema exists.
func NewTradeStore(ctx context.Context, pool *Pool) (*TradeStore, error) {
	if err := pool.Migrate(ctx); err != nil {
		return nil, err
	}
	return &TradeStore{pool: pool}, nil
}

// Compile-time interface check.
var _ ports.TradeStore = (*TradeStore)(nil)

const tradeColumns = `id, opened_at, closed_at, market_id, question,
	direction, mode, status, exit_reason,
	entry_price, raw_entry_price, fair_value, edge, shares, bet_size,
	exit_price, raw_exit_price, last_price, pnl, balance_after,
	take_profit, stop_loss, max_hold_until, hold_ms,
	entry_gas, exit_gas, entry_slippage, exit_slippage, platform_fee, maker_taker_fee,
	judge_fair_value, judge_confidence, bull_probability, bear_probability,
	desk, model, category, token_id`

// SaveTrade inserts the trade or updates its exit fields.
func (s *TradeStore) SaveTrade(ctx context.Context, t domain.Trade) error {
	query := `
		INSERT INTO trades (` + tradeColumns + `) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20,
			$21, $22, $23, $24,
			$25, $26, $27, $28, $29, $30,
			$31, $32, $33, $34,
			$35, $36, $37, $38
		)
		ON CONFLICT (id) DO UPDATE SET
			closed_at       = EXCLUDED.closed_at,
			status          = EXCLUDED.status,
			exit_reason     = EXCLUDED.exit_reason,
			exit_price      = EXCLUDED.exit_price,
			raw_exit_price  = EXCLUDED.raw_exit_price,
			last_price      = EXCLUDED.last_price,
			pnl             = EXCLUDED.pnl,
			balance_after   = EXCLUDED.balance_after,
			hold_ms         = EXCLUDED.hold_ms,
			exit_gas        = EXCLUDED.exit_gas,
			exit_slippage   = EXCLUDED.exit_slippage,
			platform_fee    = EXCLUDED.platform_fee,
			maker_taker_fee = EXCLUDED.maker_taker_fee
	`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.OpenedAt.UTC(), timePtr(t.ClosedAt), t.MarketID, t.Question,
		string(t.Direction), t.Mode.String(), string(t.Status), t.ExitReason.String(),
		t.EntryPrice, t.RawEntryPrice, t.FairValue, t.Edge, t.Shares, t.BetSize,
		t.ExitPrice, t.RawExitPrice, t.LastPrice, t.PnL, t.BalanceAfter,
		t.TakeProfit, t.StopLoss, timePtr(t.MaxHoldUntil), t.HoldDuration.Milliseconds(),
		t.Costs.EntryGas, t.Costs.ExitGas, t.Costs.EntrySlippage, t.Costs.ExitSlippage,
		t.Costs.PlatformFee, t.Costs.MakerTakerFee,
		t.Provenance.JudgeFairValue, t.Provenance.JudgeConfidence,
		t.Provenance.BullProbability, t.Provenance.BearProbability,
		t.Provenance.Desk, t.Provenance.Model, t.Provenance.Category, t.Provenance.TokenID,
	)
	if err != nil {
		return fmt.Errorf("upsert trade %s: %w", t.ID, err)
	}
	return nil
}

// GetTrade retrieves a trade by ID. Returns ErrNotFound if it does not exist.
func (s *TradeStore) GetTrade(ctx context.Context, id string) (domain.Trade, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return domain.Trade{}, ErrNotFound
		}
		return domain.Trade{}, fmt.Errorf("get trade %s: %w", id, err)
	}
	return t, nil
}

// LoadTrades returns every trade ordered by open time.
func (s *TradeStore) LoadTrades(ctx context.Context) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tradeColumns+` FROM trades ORDER BY opened_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// SaveDailySnapshot upserts the snapshot for the UTC day of stats.Timestamp.
func (s *TradeStore) SaveDailySnapshot(ctx context.Context, st domain.PortfolioStats) error {
	query := `
		INSERT INTO daily_snapshots (
			date, balance, initial_balance, realized_pnl, unrealized_pnl, total_pnl,
			roi_pct, peak_balance, max_drawdown_pct, win_rate, wins, losses,
			total_trades, open_positions, api_cost, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (date) DO UPDATE SET
			balance          = EXCLUDED.balance,
			realized_pnl     = EXCLUDED.realized_pnl,
			unrealized_pnl   = EXCLUDED.unrealized_pnl,
			total_pnl        = EXCLUDED.total_pnl,
			roi_pct          = EXCLUDED.roi_pct,
			peak_balance     = EXCLUDED.peak_balance,
			max_drawdown_pct = EXCLUDED.max_drawdown_pct,
			win_rate         = EXCLUDED.win_rate,
			wins             = EXCLUDED.wins,
			losses           = EXCLUDED.losses,
			total_trades     = EXCLUDED.total_trades,
			open_positions   = EXCLUDED.open_positions,
			api_cost         = EXCLUDED.api_cost,
			updated_at       = EXCLUDED.updated_at
	`

	ts := st.Timestamp.UTC()
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	_, err := s.pool.Exec(ctx, query,
		day, st.Balance, st.InitialBalance, st.RealizedPnL, st.UnrealizedPnL, st.TotalPnL,
		st.ROIPct, st.PeakBalance, st.MaxDrawdownPct, st.WinRate, st.Wins, st.Losses,
		st.TotalTrades, st.OpenPositions, st.APICost, ts,
	)
	if err != nil {
		return fmt.Errorf("upsert daily snapshot: %w", err)
	}
	return nil
}

// CountSnapshots returns the number of stored daily snapshots.
func (s *TradeStore) CountSnapshots(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM daily_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

// LogCycle appends one cycle summary.
func (s *TradeStore) LogCycle(ctx context.Context, c domain.CycleLog) error {
	query := `
		INSERT INTO cycles (
			number, started_at, duration_ms, markets_scanned, candidates_found,
			trades_opened, trades_closed, balance_after, open_positions, api_cost, loss_action
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		c.Number, c.StartedAt.UTC(), c.Duration.Milliseconds(), c.MarketsScanned, c.CandidatesFound,
		c.TradesOpened, c.TradesClosed, c.BalanceAfter, c.OpenPositions, c.APICost, c.LossAction.String(),
	)
	if err != nil {
		return fmt.Errorf("insert cycle %d: %w", c.Number, err)
	}
	return nil
}

// Close releases the pool.
func (s *TradeStore) Close() error {
	s.pool.Close()
	return nil
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (domain.Trade, error) {
	var (
		t                               domain.Trade
		closedAt, maxHold               *time.Time
		direction, mode, status, reason string
		holdMs                          int64
	)
	err := row.Scan(
		&t.ID, &t.OpenedAt, &closedAt, &t.MarketID, &t.Question,
		&direction, &mode, &status, &reason,
		&t.EntryPrice, &t.RawEntryPrice, &t.FairValue, &t.Edge, &t.Shares, &t.BetSize,
		&t.ExitPrice, &t.RawExitPrice, &t.LastPrice, &t.PnL, &t.BalanceAfter,
		&t.TakeProfit, &t.StopLoss, &maxHold, &holdMs,
		&t.Costs.EntryGas, &t.Costs.ExitGas, &t.Costs.EntrySlippage, &t.Costs.ExitSlippage,
		&t.Costs.PlatformFee, &t.Costs.MakerTakerFee,
		&t.Provenance.JudgeFairValue, &t.Provenance.JudgeConfidence,
		&t.Provenance.BullProbability, &t.Provenance.BearProbability,
		&t.Provenance.Desk, &t.Provenance.Model, &t.Provenance.Category, &t.Provenance.TokenID,
	)
	if err != nil {
		return domain.Trade{}, err
	}

	t.OpenedAt = t.OpenedAt.UTC()
	if closedAt != nil {
		t.ClosedAt = closedAt.UTC()
	}
	if maxHold != nil {
		t.MaxHoldUntil = maxHold.UTC()
	}
	t.HoldDuration = time.Duration(holdMs) * time.Millisecond
	t.Direction = domain.ParseDirection(direction)
	t.Mode = domain.ParseTradeMode(mode)
	t.Status = domain.TradeStatus(status)
	t.ExitReason = domain.ParseExitReason(reason)
	return t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
