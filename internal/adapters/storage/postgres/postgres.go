// Package postgres persists the paper-trading ledger in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Migrate creates the ledger tables if they do not exist.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Money columns are NOT NULL: decimal.Decimal cannot scan NULL.
const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id               TEXT PRIMARY KEY,
    opened_at        TIMESTAMPTZ NOT NULL,
    closed_at        TIMESTAMPTZ,
    market_id        TEXT NOT NULL,
    question         TEXT NOT NULL DEFAULT '',
    direction        TEXT NOT NULL,
    mode             TEXT NOT NULL DEFAULT 'LEGACY',
    status           TEXT NOT NULL,
    exit_reason      TEXT NOT NULL DEFAULT '',
    entry_price      NUMERIC NOT NULL DEFAULT 0,
    raw_entry_price  NUMERIC NOT NULL DEFAULT 0,
    fair_value       NUMERIC NOT NULL DEFAULT 0,
    edge             NUMERIC NOT NULL DEFAULT 0,
    shares           NUMERIC NOT NULL DEFAULT 0,
    bet_size         NUMERIC NOT NULL DEFAULT 0,
    exit_price       NUMERIC NOT NULL DEFAULT 0,
    raw_exit_price   NUMERIC NOT NULL DEFAULT 0,
    last_price       NUMERIC NOT NULL DEFAULT 0,
    pnl              NUMERIC NOT NULL DEFAULT 0,
    balance_after    NUMERIC NOT NULL DEFAULT 0,
    take_profit      NUMERIC NOT NULL DEFAULT 0,
    stop_loss        NUMERIC NOT NULL DEFAULT 0,
    max_hold_until   TIMESTAMPTZ,
    hold_ms          BIGINT NOT NULL DEFAULT 0,
    entry_gas        NUMERIC NOT NULL DEFAULT 0,
    exit_gas         NUMERIC NOT NULL DEFAULT 0,
    entry_slippage   NUMERIC NOT NULL DEFAULT 0,
    exit_slippage    NUMERIC NOT NULL DEFAULT 0,
    platform_fee     NUMERIC NOT NULL DEFAULT 0,
    maker_taker_fee  NUMERIC NOT NULL DEFAULT 0,
    judge_fair_value NUMERIC NOT NULL DEFAULT 0,
    judge_confidence NUMERIC NOT NULL DEFAULT 0,
    bull_probability NUMERIC NOT NULL DEFAULT 0,
    bear_probability NUMERIC NOT NULL DEFAULT 0,
    desk             TEXT NOT NULL DEFAULT '',
    model            TEXT NOT NULL DEFAULT '',
    category         TEXT NOT NULL DEFAULT '',
    token_id         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_trades_opened_at ON trades(opened_at);
CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);

CREATE TABLE IF NOT EXISTS daily_snapshots (
    date             DATE PRIMARY KEY,
    balance          NUMERIC NOT NULL,
    initial_balance  NUMERIC NOT NULL,
    realized_pnl     NUMERIC NOT NULL,
    unrealized_pnl   NUMERIC NOT NULL,
    total_pnl        NUMERIC NOT NULL,
    roi_pct          NUMERIC NOT NULL,
    peak_balance     NUMERIC NOT NULL,
    max_drawdown_pct NUMERIC NOT NULL,
    win_rate         NUMERIC NOT NULL,
    wins             INTEGER NOT NULL DEFAULT 0,
    losses           INTEGER NOT NULL DEFAULT 0,
    total_trades     INTEGER NOT NULL DEFAULT 0,
    open_positions   INTEGER NOT NULL DEFAULT 0,
    api_cost         NUMERIC NOT NULL DEFAULT 0,
    updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS cycles (
    id               BIGSERIAL PRIMARY KEY,
    number           INTEGER NOT NULL,
    started_at       TIMESTAMPTZ NOT NULL,
    duration_ms      BIGINT NOT NULL DEFAULT 0,
    markets_scanned  INTEGER NOT NULL DEFAULT 0,
    candidates_found INTEGER NOT NULL DEFAULT 0,
    trades_opened    INTEGER NOT NULL DEFAULT 0,
    trades_closed    INTEGER NOT NULL DEFAULT 0,
    balance_after    NUMERIC NOT NULL DEFAULT 0,
    open_positions   INTEGER NOT NULL DEFAULT 0,
    api_cost         NUMERIC NOT NULL DEFAULT 0,
    loss_action      TEXT NOT NULL DEFAULT 'CONTINUE'
);

CREATE INDEX IF NOT EXISTS idx_cycles_started_at ON cycles(started_at DESC);
`

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
