package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/polyagent/config"
	"github.com/alejandrodnm/polyagent/internal/adapters/judge"
	"github.com/alejandrodnm/polyagent/internal/adapters/notify"
	"github.com/alejandrodnm/polyagent/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyagent/internal/adapters/status"
	"github.com/alejandrodnm/polyagent/internal/adapters/storage"
	"github.com/alejandrodnm/polyagent/internal/adapters/storage/postgres"
	"github.com/alejandrodnm/polyagent/internal/application/agent"
	"github.com/alejandrodnm/polyagent/internal/application/engine/paper"
	"github.com/alejandrodnm/polyagent/internal/application/risk"
	"github.com/alejandrodnm/polyagent/internal/application/strategist"
	"github.com/alejandrodnm/polyagent/internal/ports"
	"github.com/alejandrodnm/polyagent/internal/simulation"
)

type options struct {
	configPath string
	once       bool
	verbose    bool
	logFormat  string
	table      bool
	report     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "config.yaml", "path to config file")
	flag.BoolVar(&opts.once, "once", false, "run one cycle, close everything and exit")
	flag.BoolVar(&opts.verbose, "verbose", false, "set log level to debug")
	flag.StringVar(&opts.logFormat, "format", "", "log format: text|json (overrides config)")
	flag.BoolVar(&opts.table, "table", false, "print the recent trades table after every cycle")
	flag.BoolVar(&opts.report, "report", false, "print the report for stored trades and exit")
	flag.Parse()

	os.Exit(run(opts))
}

// run devuelve el código de salida; los defers (store, señales) corren antes
// de que main llame a os.Exit.
func run(opts options) int {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", opts.configPath)
		return 1
	}

	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to open storage", "err", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close storage", "err", err)
		}
	}()

	console := notify.NewConsole(opts.table)

	if opts.report {
		trades, err := store.LoadTrades(ctx)
		if err != nil {
			slog.Error("failed to load trades", "err", err)
			return 1
		}
		if err := console.Report(ctx, trades, cfg.Agent.InitialBalance); err != nil {
			slog.Error("report failed", "err", err)
			return 1
		}
		return 0
	}

	slog.Info("polyagent starting",
		"config", opts.configPath,
		"interval", cfg.ScanInterval(),
		"price_check", cfg.PriceCheckInterval(),
		"balance", cfg.Agent.InitialBalance,
		"once", opts.once,
		"status", cfg.Status.Addr,
	)

	var rng simulation.Rand
	if cfg.Judge.Seed != 0 {
		rng = simulation.NewSeeded(cfg.Judge.Seed)
	}
	sim := cfg.SimConfig()
	ledger := paper.New(paper.Config{InitialBalance: cfg.Agent.InitialBalance, Rand: rng})

	deps := agent.Deps{
		Feed:     polymarket.NewClient(cfg.API.GammaBase, 0),
		Judge:    judge.New(judge.Config{Seed: cfg.Judge.Seed, APICost: cfg.Judge.APICost}),
		Store:    store,
		Notifier: console,
		Ledger:   ledger,
		Risk: risk.New(risk.Config{
			InitialBalance:    cfg.Agent.InitialBalance,
			KillThreshold:     cfg.Agent.KillThreshold,
			KellyFraction:     cfg.Agent.KellyFraction,
			MinConfidence:     cfg.Agent.MinConfidence,
			BalanceReservePct: cfg.Agent.BalanceReservePct,
			MaxEdge:           cfg.Agent.MaxEdge,
		}),
		Executor: strategist.NewExecutor(ledger, sim, cfg.Agent.MaxSpread),
	}

	var hub *status.Hub
	if cfg.Status.Addr != "" {
		hub = status.NewHub()
		deps.Publisher = hub
	}

	runner := agent.New(agent.Config{
		KillThreshold:      cfg.Agent.KillThreshold,
		MaxPositionPct:     cfg.Agent.MaxPositionPct,
		MaxOpenPositions:   cfg.Agent.MaxOpenPositions,
		MarketsPerCycle:    cfg.Agent.MarketsPerCycle,
		LegacyTP:           cfg.Agent.ExitTPPct,
		LegacySL:           cfg.Agent.ExitSLPct,
		ScanInterval:       cfg.ScanInterval(),
		PriceCheckInterval: cfg.PriceCheckInterval(),
		StopFile:           cfg.Agent.StopFile,
		Once:               opts.once,
		Sim:                sim,
	}, deps)

	// el hub vive lo mismo que el runner
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer stop()
		return runner.Run(gctx)
	})
	if hub != nil {
		g.Go(func() error {
			return hub.Run(gctx, cfg.Status.Addr)
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, agent.ErrPortfolioDead) {
			slog.Error("portfolio dead, agent stopped", "kill", cfg.Agent.KillThreshold)
			return 2
		}
		slog.Error("agent exited with error", "err", err)
		return 1
	}

	slog.Info("polyagent stopped cleanly")
	return 0
}

// openStore elige SQLite o PostgreSQL según el DSN.
var openStore = func(ctx context.Context, cfg config.StorageConfig) (ports.TradeStore, error) {
	if cfg.IsPostgres() {
		pool, err := postgres.NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		ts, err := postgres.NewTradeStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return ts, nil
	}
	s, err := storage.NewSQLiteStorage(cfg.DSN)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
