package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"versechain/audit"
	"versechain/config"
	"versechain/core"
	"versechain/native/arb"
	"versechain/native/chain"
	nativecommon "versechain/native/common"
	"versechain/native/lending"
	"versechain/native/liquidity"
	"versechain/native/staking"
	"versechain/observability"
	"versechain/observability/logging"
	"versechain/observability/otel"
	"versechain/rpc"
	"versechain/storage"
)

const envVar = "VERSE_ENV"

type fanoutRecorder []chain.Recorder

func (f fanoutRecorder) RecordChainEvent(event chain.Event) {
	for _, r := range f {
		r.RecordChainEvent(event)
	}
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envVar))
	logger := logging.Setup("versed", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if endpoint := strings.TrimSpace(cfg.Telemetry.Endpoint); endpoint != "" {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Environment: env,
			Endpoint:    endpoint,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			logger.Error("Failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()
	ledger := core.NewLedger(db)

	verses := make([]chain.VerseConfig, 0, len(cfg.Verses))
	for i := range cfg.Verses {
		v := &cfg.Verses[i]
		liquidityTotal, err := v.Liquidity()
		if err != nil {
			panic(fmt.Sprintf("Invalid verse %q: %v", v.ID, err))
		}
		verses = append(verses, chain.VerseConfig{
			ID:               v.ID,
			TotalLiquidity:   liquidityTotal,
			CoverageRatioBps: v.CoverageRatioBps,
		})
	}

	pauses := nativecommon.StaticPauses{}
	for _, module := range cfg.PausedModules {
		pauses[strings.TrimSpace(module)] = true
	}

	engine := chain.NewEngine(chain.NewCoverageGuard(verses...))
	engine.SetState(ledger)
	engine.SetPauses(pauses)

	lendingEngine := lending.NewEngine(lending.DefaultParams())
	lendingEngine.SetState(ledger.LendingState())
	lendingEngine.SetPauses(pauses)
	engine.RegisterSubProtocol(chain.StepBorrow, lendingEngine)

	liquidityEngine := liquidity.NewEngine(liquidity.DefaultParams())
	liquidityEngine.SetState(ledger.LiquidityState())
	liquidityEngine.SetPauses(pauses)
	engine.RegisterSubProtocol(chain.StepLiquidity, liquidityEngine)

	stakingEngine := staking.NewEngine(staking.DefaultParams())
	stakingEngine.SetState(ledger.StakingState())
	stakingEngine.SetPauses(pauses)
	engine.RegisterSubProtocol(chain.StepStake, stakingEngine)

	desk := arb.NewDesk(arb.DefaultParams())
	desk.SetState(ledger.ArbState())
	desk.SetPauses(pauses)
	engine.RegisterSubProtocol(chain.StepArbitrage, desk)

	for i := range cfg.Verses {
		v := &cfg.Verses[i]
		poolLiquidity, err := v.PoolLiquidity()
		if err != nil {
			panic(fmt.Sprintf("Invalid verse %q: %v", v.ID, err))
		}
		if err := lendingEngine.SeedPool(v.ID, poolLiquidity); err != nil {
			panic(fmt.Sprintf("Failed to seed borrow pool for verse %q: %v", v.ID, err))
		}
		logger.Info("verse configured",
			slog.String("verse", v.ID),
			slog.String("liquidity", poolLiquidity.String()),
			slog.Uint64("coverageBps", v.CoverageRatioBps))
	}

	auditStore, err := audit.Open(cfg.AuditDB, logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to open audit store: %v", err))
	}
	defer func() {
		if err := auditStore.Close(); err != nil {
			logger.Warn("audit store close failed", slog.Any("error", err))
		}
	}()
	engine.SetRecorder(fanoutRecorder{auditStore, observability.EventRecorder{}})

	server := rpc.NewServer(engine, auditStore, logger, cfg.RateLimitRPS, cfg.RateLimitBurst)
	if err := server.Start(ctx, cfg.ListenAddress); err != nil {
		logger.Error("rpc server failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("versed shut down")
}
