package storage

// sqlite.go — registro durable del paper trading.
//
// Estrategia:
//   - `trades`: UNA fila por trade (UPSERT por id). Se escribe al abrir y al cerrar.
//   - `daily_snapshots`: una fila por día UTC, sobrescrita en cada ciclo.
//   - `cycles`: resumen ligero por ciclo, con prune automático al arrancar.
//   - Importes y precios como TEXT decimal: round-trip exacto, sin REAL.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id               TEXT PRIMARY KEY,
    opened_at        TEXT NOT NULL,
    closed_at        TEXT,
    market_id        TEXT NOT NULL,
    question         TEXT,
    direction        TEXT NOT NULL,
    mode             TEXT NOT NULL DEFAULT 'LEGACY',
    status           TEXT NOT NULL,
    exit_reason      TEXT NOT NULL DEFAULT '',
    entry_price      TEXT NOT NULL DEFAULT '0',
    raw_entry_price  TEXT NOT NULL DEFAULT '0',
    fair_value       TEXT NOT NULL DEFAULT '0',
    edge             TEXT NOT NULL DEFAULT '0',
    shares           TEXT NOT NULL DEFAULT '0',
    bet_size         TEXT NOT NULL DEFAULT '0',
    exit_price       TEXT NOT NULL DEFAULT '0',
    raw_exit_price   TEXT NOT NULL DEFAULT '0',
    last_price       TEXT NOT NULL DEFAULT '0',
    pnl              TEXT NOT NULL DEFAULT '0',
    balance_after    TEXT NOT NULL DEFAULT '0',
    take_profit      TEXT NOT NULL DEFAULT '0',
    stop_loss        TEXT NOT NULL DEFAULT '0',
    max_hold_until   TEXT,
    hold_ms          INTEGER NOT NULL DEFAULT 0,
    entry_gas        TEXT NOT NULL DEFAULT '0',
    exit_gas         TEXT NOT NULL DEFAULT '0',
    entry_slippage   TEXT NOT NULL DEFAULT '0',
    exit_slippage    TEXT NOT NULL DEFAULT '0',
    platform_fee     TEXT NOT NULL DEFAULT '0',
    maker_taker_fee  TEXT NOT NULL DEFAULT '0',
    judge_fair_value TEXT NOT NULL DEFAULT '0',
    judge_confidence TEXT NOT NULL DEFAULT '0',
    bull_probability TEXT NOT NULL DEFAULT '0',
    bear_probability TEXT NOT NULL DEFAULT '0',
    desk             TEXT NOT NULL DEFAULT '',
    model            TEXT NOT NULL DEFAULT '',
    category         TEXT NOT NULL DEFAULT '',
    token_id         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS daily_snapshots (
    date             TEXT PRIMARY KEY,
    balance          TEXT NOT NULL,
    initial_balance  TEXT NOT NULL,
    realized_pnl     TEXT NOT NULL,
    unrealized_pnl   TEXT NOT NULL,
    total_pnl        TEXT NOT NULL,
    roi_pct          TEXT NOT NULL,
    peak_balance     TEXT NOT NULL,
    max_drawdown_pct TEXT NOT NULL,
    win_rate         TEXT NOT NULL,
    wins             INTEGER NOT NULL DEFAULT 0,
    losses           INTEGER NOT NULL DEFAULT 0,
    total_trades     INTEGER NOT NULL DEFAULT 0,
    open_positions   INTEGER NOT NULL DEFAULT 0,
    api_cost         TEXT NOT NULL DEFAULT '0',
    updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cycles (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    number           INTEGER NOT NULL,
    started_at       TEXT    NOT NULL,
    duration_ms      INTEGER NOT NULL DEFAULT 0,
    markets_scanned  INTEGER NOT NULL DEFAULT 0,
    candidates_found INTEGER NOT NULL DEFAULT 0,
    trades_opened    INTEGER NOT NULL DEFAULT 0,
    trades_closed    INTEGER NOT NULL DEFAULT 0,
    balance_after    TEXT    NOT NULL DEFAULT '0',
    open_positions   INTEGER NOT NULL DEFAULT 0,
    api_cost         TEXT    NOT NULL DEFAULT '0',
    loss_action      TEXT    NOT NULL DEFAULT 'CONTINUE'
);

CREATE INDEX IF NOT EXISTS idx_trades_opened ON trades(opened_at);
CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
CREATE INDEX IF NOT EXISTS idx_cycles_at     ON cycles(started_at DESC);
`

const retentionCycles = 30 * 24 * time.Hour // ciclos: 30 días

// SQLiteStorage implementa ports.TradeStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia ciclos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.migrate(context.Background())
	s.pruneOld(context.Background())
	return s, nil
}

// SaveTrade hace upsert del trade completo por id.
func (s *SQLiteStorage) SaveTrade(ctx context.Context, t domain.Trade) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (`+tradeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			closed_at        = excluded.closed_at,
			status           = excluded.status,
			exit_reason      = excluded.exit_reason,
			exit_price       = excluded.exit_price,
			raw_exit_price   = excluded.raw_exit_price,
			last_price       = excluded.last_price,
			pnl              = excluded.pnl,
			balance_after    = excluded.balance_after,
			hold_ms          = excluded.hold_ms,
			exit_gas         = excluded.exit_gas,
			exit_slippage    = excluded.exit_slippage,
			platform_fee     = excluded.platform_fee,
			maker_taker_fee  = excluded.maker_taker_fee`,
		t.ID, fmtTime(t.OpenedAt), nullTime(t.ClosedAt), t.MarketID, t.Question,
		string(t.Direction), t.Mode.String(), string(t.Status), t.ExitReason.String(),
		t.EntryPrice, t.RawEntryPrice, t.FairValue, t.Edge, t.Shares, t.BetSize,
		t.ExitPrice, t.RawExitPrice, t.LastPrice, t.PnL, t.BalanceAfter,
		t.TakeProfit, t.StopLoss, nullTime(t.MaxHoldUntil), t.HoldDuration.Milliseconds(),
		t.Costs.EntryGas, t.Costs.ExitGas, t.Costs.EntrySlippage, t.Costs.ExitSlippage,
		t.Costs.PlatformFee, t.Costs.MakerTakerFee,
		t.Provenance.JudgeFairValue, t.Provenance.JudgeConfidence,
		t.Provenance.BullProbability, t.Provenance.BearProbability,
		t.Provenance.Desk, t.Provenance.Model, t.Provenance.Category, t.Provenance.TokenID,
	); err != nil {
		return fmt.Errorf("storage.SaveTrade: upsert %s: %w", t.ID, err)
	}
	return nil
}

// SaveDailySnapshot guarda la foto del día UTC de stats.Timestamp.
func (s *SQLiteStorage) SaveDailySnapshot(ctx context.Context, st domain.PortfolioStats) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_snapshots
			(date, balance, initial_balance, realized_pnl, unrealized_pnl, total_pnl,
			 roi_pct, peak_balance, max_drawdown_pct, win_rate, wins, losses,
			 total_trades, open_positions, api_cost, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			balance          = excluded.balance,
			realized_pnl     = excluded.realized_pnl,
			unrealized_pnl   = excluded.unrealized_pnl,
			total_pnl        = excluded.total_pnl,
			roi_pct          = excluded.roi_pct,
			peak_balance     = excluded.peak_balance,
			max_drawdown_pct = excluded.max_drawdown_pct,
			win_rate         = excluded.win_rate,
			wins             = excluded.wins,
			losses           = excluded.losses,
			total_trades     = excluded.total_trades,
			open_positions   = excluded.open_positions,
			api_cost         = excluded.api_cost,
			updated_at       = excluded.updated_at`,
		snapshotDate(st.Timestamp), st.Balance, st.InitialBalance, st.RealizedPnL,
		st.UnrealizedPnL, st.TotalPnL, st.ROIPct, st.PeakBalance, st.MaxDrawdownPct,
		st.WinRate, st.Wins, st.Losses, st.TotalTrades, st.OpenPositions, st.APICost,
		fmtTime(st.Timestamp),
	); err != nil {
		return fmt.Errorf("storage.SaveDailySnapshot: %w", err)
	}
	return nil
}

// LogCycle inserta el resumen de un ciclo.
func (s *SQLiteStorage) LogCycle(ctx context.Context, c domain.CycleLog) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles
			(number, started_at, duration_ms, markets_scanned, candidates_found,
			 trades_opened, trades_closed, balance_after, open_positions, api_cost, loss_action)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Number, fmtTime(c.StartedAt), c.Duration.Milliseconds(), c.MarketsScanned,
		c.CandidatesFound, c.TradesOpened, c.TradesClosed, c.BalanceAfter,
		c.OpenPositions, c.APICost, c.LossAction.String(),
	); err != nil {
		return fmt.Errorf("storage.LogCycle: %w", err)
	}
	return nil
}

// LoadTrades devuelve todos los trades en orden de apertura.
func (s *SQLiteStorage) LoadTrades(ctx context.Context) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tradeColumns+` FROM trades ORDER BY opened_at, id`)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadTrades: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t                               domain.Trade
			openedAt                        string
			closedAt, maxHold               sql.NullString
			direction, mode, status, reason string
			holdMs                          int64
		)
		if err := rows.Scan(
			&t.ID, &openedAt, &closedAt, &t.MarketID, &t.Question,
			&direction, &mode, &status, &reason,
			&t.EntryPrice, &t.RawEntryPrice, &t.FairValue, &t.Edge, &t.Shares, &t.BetSize,
			&t.ExitPrice, &t.RawExitPrice, &t.LastPrice, &t.PnL, &t.BalanceAfter,
			&t.TakeProfit, &t.StopLoss, &maxHold, &holdMs,
			&t.Costs.EntryGas, &t.Costs.ExitGas, &t.Costs.EntrySlippage, &t.Costs.ExitSlippage,
			&t.Costs.PlatformFee, &t.Costs.MakerTakerFee,
			&t.Provenance.JudgeFairValue, &t.Provenance.JudgeConfidence,
			&t.Provenance.BullProbability, &t.Provenance.BearProbability,
			&t.Provenance.Desk, &t.Provenance.Model, &t.Provenance.Category, &t.Provenance.TokenID,
		); err != nil {
			return nil, fmt.Errorf("storage.LoadTrades: scan row: %w", err)
		}

		t.OpenedAt = parseTime(openedAt)
		t.ClosedAt = parseTime(closedAt.String)
		t.MaxHoldUntil = parseTime(maxHold.String)
		t.HoldDuration = time.Duration(holdMs) * time.Millisecond
		t.Direction = domain.ParseDirection(direction)
		t.Mode = domain.ParseTradeMode(mode)
		t.Status = domain.TradeStatus(status)
		t.ExitReason = domain.ParseExitReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

const tradeColumns = `id, opened_at, closed_at, market_id, question,
	direction, mode, status, exit_reason,
	entry_price, raw_entry_price, fair_value, edge, shares, bet_size,
	exit_price, raw_exit_price, last_price, pnl, balance_after,
	take_profit, stop_loss, max_hold_until, hold_ms,
	entry_gas, exit_gas, entry_slippage, exit_slippage, platform_fee, maker_taker_fee,
	judge_fair_value, judge_confidence, bull_probability, bear_probability,
	desk, model, category, token_id`

// migrate añade columnas que pueden faltar en bases creadas por versiones anteriores.
func (s *SQLiteStorage) migrate(ctx context.Context) {
	for _, stmt := range []string{
		"ALTER TABLE trades ADD COLUMN token_id TEXT NOT NULL DEFAULT ''",
		"ALTER TABLE trades ADD COLUMN maker_taker_fee TEXT NOT NULL DEFAULT '0'",
		"ALTER TABLE cycles ADD COLUMN loss_action TEXT NOT NULL DEFAULT 'CONTINUE'",
	} {
		s.db.ExecContext(ctx, stmt) // ignore errors (column already exists)
	}
}

// pruneOld elimina ciclos antiguos para mantener la DB ligera. Los trades
// y snapshots diarios se conservan siempre.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := fmtTime(time.Now().UTC().Add(-retentionCycles))
	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < ?`, cutoff)
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := fmtTime(t)
	return &s
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func snapshotDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
