// Package app assembles the engine from configuration and supervises the
// component lifecycles.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"cross_arb/internal/config"
	"cross_arb/internal/core"
	"cross_arb/internal/engine"
	"cross_arb/internal/exchange/binance"
	"cross_arb/internal/exchange/hyperliquid"
	"cross_arb/internal/journal"
	"cross_arb/internal/market"
	"cross_arb/internal/reconcile"
	"cross_arb/pkg/concurrency"
	"cross_arb/pkg/telemetry"
)

const shutdownTimeout = 5 * time.Second

// App holds the assembled components. Construction wires everything;
// nothing runs until Run.
type App struct {
	cfg    *config.Config
	logger core.ILogger

	journal *journal.FillJournal
	cex     *binance.Client
	dex     *hyperliquid.Client
	board   *market.Board
	pool    *concurrency.WorkerPool
	machine *engine.Machine

	cexFeed *market.BinanceFeed
	dexFeed *market.HyperliquidFeed

	runners []core.Runner
	metrics *telemetry.Server
}

// New builds the full component graph: journal, venue clients, price board,
// state machine, market feeds, and the tick loop.
func New(cfg *config.Config, logger core.ILogger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger.WithField("component", "app"),
	}

	var recorder core.TradeRecorder
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open fill journal: %w", err)
		}
		a.journal = j
		recorder = j
	}

	a.cex = binance.New(cfg.CEX.APIKey, cfg.CEX.SecretKey, cfg.CEX.BaseURL, logger)

	signer, err := hyperliquid.NewSigner(cfg.DEX.PrivateKey, cfg.DEX.Testnet)
	if err != nil {
		return nil, fmt.Errorf("dex signer: %w", err)
	}
	// Agent wallets are not supported: the signing key must own the account
	// that is queried and subscribed.
	if cfg.DEX.WalletAddress != "" && !strings.EqualFold(cfg.DEX.WalletAddress, signer.Address().Hex()) {
		return nil, fmt.Errorf("dex wallet_address %s does not match signing key address %s",
			cfg.DEX.WalletAddress, signer.Address().Hex())
	}
	a.dex = hyperliquid.New(cfg.DEX.BaseURL, cfg.DEX.WsURL, signer, logger)

	cexFees := core.FeeSchedule{
		MakerFee: decimal.NewFromFloat(cfg.CEX.MakerFee),
		TakerFee: decimal.NewFromFloat(cfg.CEX.TakerFee),
	}
	dexFees := core.FeeSchedule{
		MakerFee: decimal.NewFromFloat(cfg.DEX.MakerFee),
		TakerFee: decimal.NewFromFloat(cfg.DEX.TakerFee),
	}
	a.board = market.NewBoard(cexFees, dexFees, cfg.MaxDelay(),
		decimal.NewFromFloat(cfg.Strategy.OpenThreshold),
		decimal.NewFromFloat(cfg.Strategy.CloseThreshold))

	a.pool = concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "OrderCancelPool",
		MaxWorkers:  4,
		MaxCapacity: 64,
		NonBlocking: true,
	}, logger)

	a.machine = engine.NewMachine(engine.Config{
		CEXSymbol:         cfg.CEX.Symbol,
		DEXSymbol:         cfg.DEX.Symbol,
		BaseQuantity:      decimal.NewFromFloat(cfg.Strategy.OrderQuantity),
		OrderTimeout:      cfg.OrderTimeout(),
		MaxChaseRetries:   cfg.Strategy.MaxChaseAttempts,
		ChaseStep:         decimal.NewFromFloat(cfg.Strategy.ChaseStep),
		CEXPricePrecision: cfg.CEX.PricePrecision,
		CEXQtyPrecision:   cfg.CEX.QuantityPrecision,
		DEXPricePrecision: cfg.DEX.PricePrecision,
		DEXQtyPrecision:   cfg.DEX.QuantityPrecision,
	}, a.board, a.cex, a.dex, a.pool, recorder, logger)

	// Signal evaluation rides the CEX depth stream; the DEX feed only
	// refreshes the board.
	onBookUpdate := func() {
		a.machine.CheckAndExecuteOpen(a.board.OpenSignal)
		a.machine.CheckAndExecuteClose(a.board.CloseSignal)
	}
	a.cexFeed = market.NewBinanceFeed(cfg.CEX.WsURL, cfg.CEX.Symbol, cfg.Market.DepthLevels,
		a.board, onBookUpdate, logger)
	a.dexFeed = market.NewHyperliquidFeed(cfg.DEX.WsURL, cfg.DEX.Symbol, a.board, logger)

	a.runners = append(a.runners, engine.NewTickLoop(a.machine, cfg.TickInterval(), logger))

	if cfg.Telemetry.EnableMetrics {
		a.metrics = telemetry.NewServer(cfg.Telemetry.MetricsPort, logger)
	}

	return a, nil
}

// Run reconciles venue state, starts every component, and blocks until a
// termination signal arrives or a component fails. Returns nil on clean
// shutdown.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := reconcile.New(a.cex, a.dex, a.cfg.CEX.Symbol, a.cfg.DEX.Symbol, a.logger)
	result, err := rec.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("startup reconciliation: %w", err)
	}

	a.machine.Start(ctx)
	a.machine.SetInitialState(result.State, result.Position)

	if a.metrics != nil {
		a.metrics.Start()
	}

	// User streams must be attached before the feeds can trigger placements,
	// or an immediate fill could go unobserved.
	if err := a.cex.SubscribeUserStream(ctx, a.machine.OnOrderUpdate); err != nil {
		a.shutdown()
		return fmt.Errorf("cex user stream: %w", err)
	}
	if err := a.dex.SubscribeUserStream(ctx, a.machine.OnOrderUpdate); err != nil {
		a.shutdown()
		return fmt.Errorf("dex user stream: %w", err)
	}

	a.cexFeed.Start()
	a.dexFeed.Start()

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range a.runners {
		runner := r
		g.Go(func() error {
			return runner.Run(gctx)
		})
	}

	a.logger.Info("Engine running",
		"cex_symbol", a.cfg.CEX.Symbol,
		"dex_symbol", a.cfg.DEX.Symbol,
		"state", result.State.String(),
		"position", result.Position,
	)

	err = g.Wait()
	a.shutdown()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Engine stopped with error", "error", err)
		return err
	}
	a.logger.Info("Engine shut down cleanly")
	return nil
}

// shutdown stops components in dependency order: feeds first so no new
// signals fire, then the cancel pool drains, then observability flushes.
// User streams and the tick loop stop with the run context.
func (a *App) shutdown() {
	a.cexFeed.Stop()
	a.dexFeed.Stop()
	a.pool.Stop()

	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.metrics.Stop(ctx); err != nil {
			a.logger.Warn("Metrics server shutdown failed", "error", err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("Journal close failed", "error", err)
		}
	}
}
