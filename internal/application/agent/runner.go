// Package agent runs the paper-trading loop: scan markets, settle exits,
// size and open new positions, and report the portfolio after every cycle.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/application/engine/paper"
	"github.com/alejandrodnm/polyagent/internal/application/risk"
	"github.com/alejandrodnm/polyagent/internal/application/strategist"
	"github.com/alejandrodnm/polyagent/internal/domain"
	"github.com/alejandrodnm/polyagent/internal/ports"
	"github.com/alejandrodnm/polyagent/internal/simulation"
	"github.com/alejandrodnm/polyagent/internal/sizing"
)

// ErrPortfolioDead is returned by Run when the balance falls to the kill threshold.
var ErrPortfolioDead = errors.New("portfolio below kill threshold")

const (
	reducedSizeTrades = 3
	shutdownTimeout   = 30 * time.Second
)

var half = decimal.RequireFromString("0.5")

// Config contiene los parámetros del loop.
type Config struct {
	KillThreshold      decimal.Decimal
	MaxPositionPct     decimal.Decimal
	MaxOpenPositions   int
	MarketsPerCycle    int // 0 = todos
	LegacyTP           decimal.Decimal
	LegacySL           decimal.Decimal
	ScanInterval       time.Duration
	PriceCheckInterval time.Duration // 0 = sin chequeo rápido
	StopFile           string        // vacío = sin fichero de parada
	JudgeWorkers       int
	Once               bool // un ciclo y shutdown
	Sim                simulation.Config
}

// Deps agrupa los colaboradores. Store y Publisher son opcionales.
type Deps struct {
	Feed      ports.MarketFeed
	Judge     ports.VerdictSource
	Store     ports.TradeStore
	Notifier  ports.Notifier
	Publisher ports.StatusPublisher
	Ledger    *paper.Portfolio
	Risk      *risk.Manager
	Executor  *strategist.Executor
}

// Runner es el orquestador del paper trading.
type Runner struct {
	cfg Config
	Deps
	now func() time.Time

	cycles      int
	reducedLeft int
	pauseTicks  int
	lastMarkets []domain.Market
}

// New crea un Runner con todas las dependencias inyectadas.
func New(cfg Config, deps Deps) *Runner {
	return &Runner{cfg: cfg, Deps: deps, now: time.Now}
}

// Run ejecuta un ciclo inmediatamente y luego uno por cada tick hasta que el
// contexto se cancele, aparezca el fichero STOP o el portfolio muera. Siempre
// cierra las posiciones abiertas antes de volver.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("agent starting",
		"interval", r.cfg.ScanInterval,
		"price_check", r.cfg.PriceCheckInterval,
		"balance", domain.USD(r.Ledger.Balance()),
		"max_open", r.cfg.MaxOpenPositions,
	)
	defer r.Shutdown(ctx)

	if _, alive := r.RunCycle(ctx); !alive {
		return ErrPortfolioDead
	}
	if r.cfg.Once {
		return nil
	}

	scan := time.NewTicker(r.cfg.ScanInterval)
	defer scan.Stop()

	var priceC <-chan time.Time
	if r.cfg.PriceCheckInterval > 0 {
		price := time.NewTicker(r.cfg.PriceCheckInterval)
		defer price.Stop()
		priceC = price.C
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("agent stopping (signal)")
			return nil
		case <-priceC:
			if r.stopRequested() {
				return nil
			}
			r.CheckPrices(ctx)
		case <-scan.C:
			if r.stopRequested() {
				return nil
			}
			if r.pauseTicks > 0 {
				r.pauseTicks--
				slog.Info("agent: paused after loss streak, skipping cycle")
				continue
			}
			if _, alive := r.RunCycle(ctx); !alive {
				return ErrPortfolioDead
			}
		}
	}
}

// RunCycle ejecuta un ciclo completo. Devuelve false si el portfolio está muerto.
func (r *Runner) RunCycle(ctx context.Context) (domain.CycleLog, bool) {
	r.cycles++
	rec := domain.CycleLog{Number: r.cycles, StartedAt: r.now()}

	if !r.Ledger.IsAlive(r.cfg.KillThreshold) {
		slog.Error("agent: portfolio dead, stopping",
			"balance", domain.USD(r.Ledger.Balance()),
			"kill", domain.USD(r.cfg.KillThreshold),
		)
		return rec, false
	}

	rec.LossAction = r.lossGuard()

	markets, err := r.Feed.FetchMarkets(ctx)
	if err != nil {
		// sin snapshot no se resuelve nada: un mercado ausente cerraría la posición
		slog.Warn("agent: fetch markets failed", "err", err)
	} else {
		r.lastMarkets = markets
		rec.MarketsScanned = len(markets)

		closed := r.Ledger.ResolveWithPrices(markets, r.cfg.LegacyTP, r.cfg.LegacySL, r.cfg.Sim)
		rec.TradesClosed = len(closed)
		r.recordTrades(ctx, closed)

		if rec.LossAction == domain.LossContinue || rec.LossAction == domain.LossReduceSize {
			rec.CandidatesFound, rec.TradesOpened = r.openPositions(ctx, markets)
		}
	}

	stats := r.Ledger.StatsWithMarkets(r.lastMarkets)
	rec.Duration = r.now().Sub(rec.StartedAt)
	rec.BalanceAfter = stats.Balance
	rec.OpenPositions = stats.OpenPositions
	rec.APICost = stats.APICost
	r.report(ctx, stats, &rec)

	slog.Info("cycle complete",
		"cycle", rec.Number,
		"markets", rec.MarketsScanned,
		"candidates", rec.CandidatesFound,
		"opened", rec.TradesOpened,
		"closed", rec.TradesClosed,
		"balance", domain.USD(stats.Balance),
		"open", stats.OpenPositions,
		"survival", sizing.InSurvivalZone(stats.Balance, r.cfg.KillThreshold),
		"loss_action", rec.LossAction,
		"duration", rec.Duration.Round(time.Millisecond),
	)
	return rec, true
}

// CheckPrices re-evalúa las salidas de las posiciones abiertas con precios frescos.
func (r *Runner) CheckPrices(ctx context.Context) int {
	if r.Ledger.OpenPositionCount() == 0 {
		return 0
	}
	markets, err := r.Feed.FetchMarkets(ctx)
	if err != nil {
		slog.Warn("agent: price check fetch failed", "err", err)
		return 0
	}
	r.lastMarkets = markets

	closed := r.Ledger.ResolveWithPrices(markets, r.cfg.LegacyTP, r.cfg.LegacySL, r.cfg.Sim)
	r.recordTrades(ctx, closed)
	if len(closed) > 0 && r.Publisher != nil {
		r.Publisher.Publish(r.Ledger.StatsWithMarkets(markets))
	}
	slog.Debug("agent: price check", "open", r.Ledger.OpenPositionCount(), "closed", len(closed))
	return len(closed)
}

// Shutdown cierra todas las posiciones a precio de mercado y muestra el
// informe final. No se cancela con ctx.
func (r *Runner) Shutdown(ctx context.Context) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	markets := r.lastMarkets
	if r.Ledger.OpenPositionCount() > 0 {
		if fresh, err := r.Feed.FetchMarkets(sctx); err == nil {
			markets = fresh
		} else {
			slog.Warn("agent: final fetch failed, closing at last prices", "err", err)
		}
	}

	closed := r.Ledger.CloseAllPositions(markets, r.cfg.Sim)
	r.recordTrades(sctx, closed)

	stats := r.Ledger.StatsWithMarkets(markets)
	if r.Store != nil {
		if err := r.Store.SaveDailySnapshot(sctx, stats); err != nil {
			slog.Warn("storage error", "err", err)
		}
	}
	if r.Publisher != nil {
		r.Publisher.Publish(stats)
	}
	if err := r.Notifier.Report(sctx, r.Ledger.Trades(), r.Ledger.InitialBalance()); err != nil {
		slog.Warn("notifier error", "err", err)
	}

	slog.Info("agent stopped",
		"closed", len(closed),
		"balance", domain.USD(stats.Balance),
		"pnl", domain.USD(stats.TotalPnL),
	)
}

// lossGuard decide qué hacer tras una racha de pérdidas.
func (r *Runner) lossGuard() domain.LossAction {
	action := sizing.CheckConsecutiveLosses(r.Ledger.ConsecutiveLosses())
	switch action {
	case domain.LossPause:
		r.pauseTicks = 1
	case domain.LossReduceSize:
		if r.reducedLeft == 0 {
			r.reducedLeft = reducedSizeTrades
		}
	}
	if action != domain.LossContinue {
		slog.Warn("agent: loss streak", "losses", r.Ledger.ConsecutiveLosses(), "action", action)
	}
	return action
}

// openPositions pide veredictos para mercados sin posición y abre los aprobados.
func (r *Runner) openPositions(ctx context.Context, markets []domain.Market) (candidates, opened int) {
	if r.Ledger.OpenPositionCount() >= r.cfg.MaxOpenPositions {
		return 0, 0
	}

	fresh := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if r.Ledger.HasOpenPosition(m.ID) {
			continue
		}
		fresh = append(fresh, m)
		if r.cfg.MarketsPerCycle > 0 && len(fresh) >= r.cfg.MarketsPerCycle {
			break
		}
	}

	for _, j := range judgeConcurrent(ctx, r.Judge, fresh, r.cfg.JudgeWorkers) {
		r.Ledger.AddAPICost(j.verdict.APICost)
		if j.verdict.Direction == domain.DirectionSkip {
			continue
		}
		candidates++
		if r.Ledger.OpenPositionCount() >= r.cfg.MaxOpenPositions {
			continue
		}

		maxPct := r.cfg.MaxPositionPct
		if r.reducedLeft > 0 {
			maxPct = maxPct.Mul(half)
		}

		decision := r.Risk.Check(j.verdict, r.Ledger, maxPct, j.market.YesPrice())
		if !decision.Approved {
			continue
		}
		plan := strategist.Plan(j.verdict, decision, j.market, r.now())
		t, ok := r.Executor.Open(j.verdict, decision, j.market, plan)
		if !ok {
			continue
		}

		opened++
		if r.reducedLeft > 0 {
			r.reducedLeft--
		}
		r.recordTrades(ctx, []domain.Trade{t})
	}
	return candidates, opened
}

// recordTrades persiste y notifica aperturas o cierres.
func (r *Runner) recordTrades(ctx context.Context, trades []domain.Trade) {
	for _, t := range trades {
		if r.Store != nil {
			if err := r.Store.SaveTrade(ctx, t); err != nil {
				slog.Warn("storage error", "trade", t.ID, "err", err)
			}
		}
		if err := r.Notifier.NotifyTrade(ctx, t); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}
}

// report envía el snapshot del ciclo a notifier, storage y dashboard.
func (r *Runner) report(ctx context.Context, stats domain.PortfolioStats, rec *domain.CycleLog) {
	if err := r.Notifier.Notify(ctx, stats); err != nil {
		slog.Warn("notifier error", "err", err)
	}
	if r.Store != nil {
		if err := r.Store.SaveDailySnapshot(ctx, stats); err != nil {
			slog.Warn("storage error", "err", err)
		}
		if err := r.Store.LogCycle(ctx, *rec); err != nil {
			slog.Warn("storage error", "err", err)
		}
	}
	if r.Publisher != nil {
		r.Publisher.Publish(stats)
	}
}

// stopRequested detecta el fichero STOP y lo consume.
func (r *Runner) stopRequested() bool {
	if r.cfg.StopFile == "" {
		return false
	}
	if _, err := os.Stat(r.cfg.StopFile); err != nil {
		return false
	}
	slog.Info("STOP file detected, shutting down", "file", r.cfg.StopFile)
	if err := os.Remove(r.cfg.StopFile); err != nil {
		slog.Warn("could not remove STOP file, next start will stop again", "file", r.cfg.StopFile, "err", err)
	}
	return true
}
