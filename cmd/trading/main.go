package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rzcastilho/trading-strategy-sub000/internal/engine"
	"github.com/rzcastilho/trading-strategy-sub000/internal/indicator"
	"github.com/rzcastilho/trading-strategy-sub000/internal/logger"
	"github.com/rzcastilho/trading-strategy-sub000/internal/realtime"
	"github.com/rzcastilho/trading-strategy-sub000/internal/strategy"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/marketdata"
)

// Paper trading loop: stream live bars into a strategy engine instance and
// log every produced signal. No orders are placed anywhere.
func tradingAction(ctx context.Context, cmd *cli.Command) error {
	zlog, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer zlog.Sync()

	registry := indicator.NewDefaultRegistry()

	def, err := strategy.Load(cmd.String("strategy"))
	if err != nil {
		return fmt.Errorf("failed to load strategy: %w", err)
	}

	if err := strategy.Validate(def, registry); err != nil {
		return fmt.Errorf("strategy failed validation: %w", err)
	}

	eng, err := engine.NewEngine(def, registry, engine.Config{
		InitialCapital:         decimal.NewFromFloat(cmd.Float("capital")),
		MaxConcurrentPositions: int(cmd.Int("max-positions")),
		HistoryLimit:           int(cmd.Int("history-limit")),
	}, zlog)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	instance := engine.NewInstance(eng)
	defer instance.Stop()

	// A rolling engine over the same stream keeps indicator values
	// observable independently of tick processing.
	rolling, err := realtime.NewRollingEngine(realtime.Config{
		Symbol:     def.Symbol,
		Timeframe:  def.Timeframe,
		WindowSize: int(cmd.Int("history-limit")),
	}, registry, def.Indicators, zlog)
	if err != nil {
		return fmt.Errorf("failed to create rolling engine: %w", err)
	}
	defer rolling.Stop()

	err = rolling.Subscribe(ctx, "log", func(symbol string, values map[string]decimal.Decimal) {
		fields := make([]zap.Field, 0, len(values)+1)
		fields = append(fields, zap.String("symbol", symbol))

		for name, value := range values {
			fields = append(fields, zap.String(name, value.String()))
		}

		zlog.Debug("indicator values", fields...)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to rolling engine: %w", err)
	}

	provider, err := marketdata.NewProvider(marketdata.ProviderType(cmd.String("provider")))
	if err != nil {
		return fmt.Errorf("failed to create market data provider: %w", err)
	}

	zlog.Info("paper trading started",
		zap.String("strategy", def.Name),
		zap.String("symbol", def.Symbol),
		zap.String("timeframe", def.Timeframe),
		zap.String("session", instance.SessionID()))

	for bar, err := range provider.Stream(ctx, []string{def.Symbol}, def.Timeframe) {
		if err != nil {
			zlog.Error("stream error", zap.Error(err))

			continue
		}

		if _, err := rolling.PushBar(ctx, bar); err != nil {
			zlog.Warn("rolling engine rejected bar", zap.Error(err))
		}

		result, err := instance.ProcessData(ctx, bar)
		if err != nil {
			if errors.IsConflictError(err) {
				zlog.Warn("conflicting signals, tick rejected", zap.Error(err))

				continue
			}

			return fmt.Errorf("tick processing failed: %w", err)
		}

		for _, signal := range result.Signals {
			zlog.Info("signal",
				zap.String("type", string(signal.Type)),
				zap.String("direction", string(signal.Direction)),
				zap.String("symbol", signal.Symbol),
				zap.String("price", signal.Price.String()))
		}
	}

	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "trading",
		Usage: "Paper-trade a strategy against a live market data stream",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "strategy",
				Aliases:  []string{"s"},
				Usage:    "Path to a strategy YAML file",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "Market data provider",
				Value:   string(marketdata.ProviderBinance),
			},
			&cli.FloatFlag{
				Name:  "capital",
				Usage: "Initial paper capital",
				Value: 10000,
			},
			&cli.IntFlag{
				Name:  "max-positions",
				Usage: "Maximum concurrently open positions (0 = uncapped)",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "history-limit",
				Usage: "Bars of history retained for indicator computation",
				Value: 1000,
			},
		},
		Action: tradingAction,
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
