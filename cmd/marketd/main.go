package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marketgym/dmarket/params"
	"github.com/marketgym/dmarket/pkg/api"
	"github.com/marketgym/dmarket/pkg/engine"
	"github.com/marketgym/dmarket/pkg/sim"
	"github.com/marketgym/dmarket/pkg/util"
)

func main() {
	// Load config from .env file and environment variables.
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	// ---- Matching engine ----
	eng := engine.New(cfg.EngineConfig())
	sugar.Infow("engine_started",
		"market_policy", cfg.Engine.MarketPolicy,
		"self_trade_policy", cfg.Engine.SelfTradePolicy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API server ----
	server := api.NewServer(eng)
	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.API.Addr)
		if err := server.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	// ---- Synthetic order flow (optional) ----
	if cfg.Feeder.Enabled {
		var feederCfg sim.FeederConfig
		switch cfg.Feeder.Mode {
		case "high":
			feederCfg = sim.HighLoadConfig()
			sugar.Infow("feeder_enabled", "mode", "high_load")
		default:
			feederCfg = sim.DefaultFeederConfig()
			sugar.Infow("feeder_enabled", "mode", "default")
		}

		feeder := sim.NewFeeder(eng, feederCfg, util.RealClock{})
		feeder.OnTrades = func(trades []engine.Trade) {
			server.BroadcastBook()
			for _, tr := range trades {
				server.BroadcastTrade(tr)
			}
		}
		cancelFeeder := feeder.Start(ctx)
		defer cancelFeeder()
	} else {
		sugar.Info("feeder_disabled - orders arrive via the API only")
	}

	// Progress logging loop.
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sugar.Info("shutting_down")
			return
		case <-ticker.C:
			if err := eng.Halted(); err != nil {
				sugar.Fatalw("engine_halted", "err", err)
			}
			bid, _ := eng.BestBid()
			ask, _ := eng.BestAsk()
			sugar.Infow("market_progress",
				"trades", len(eng.Trades()),
				"resting_orders", eng.RestingOrders(),
				"best_bid", bid,
				"best_ask", ask,
				"last_price", eng.LastPrice())
		}
	}
}
