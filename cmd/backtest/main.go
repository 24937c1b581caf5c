package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"

	"github.com/rzcastilho/trading-strategy-sub000/internal/backtest"
	"github.com/rzcastilho/trading-strategy-sub000/internal/engine"
	"github.com/rzcastilho/trading-strategy-sub000/internal/indicator"
	"github.com/rzcastilho/trading-strategy-sub000/internal/logger"
	"github.com/rzcastilho/trading-strategy-sub000/internal/strategy"
	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
)

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	zlog, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer zlog.Sync()

	registry := indicator.NewDefaultRegistry()

	// Load and validate every strategy before touching any data.
	var defs []*types.StrategyDefinition

	for _, path := range cmd.StringSlice("strategy") {
		def, err := strategy.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load strategy %s: %w", path, err)
		}

		if err := strategy.Validate(def, registry); err != nil {
			return fmt.Errorf("strategy %s failed validation: %w", path, err)
		}

		defs = append(defs, def)
	}

	bars, err := backtest.LoadBarsCSV(cmd.String("data"), defs[0].Symbol)
	if err != nil {
		return fmt.Errorf("failed to load market data: %w", err)
	}

	runCfg := backtest.RunConfig{
		SessionID:              cmd.String("session"),
		InitialCapital:         decimal.NewFromFloat(cmd.Float("capital")),
		CommissionRate:         decimal.NewFromFloat(cmd.Float("commission")),
		SlippageRate:           decimal.NewFromFloat(cmd.Float("slippage")),
		RiskFreeRate:           decimal.NewFromFloat(cmd.Float("risk-free")),
		MaxConcurrentPositions: int(cmd.Int("max-positions")),
		ConflictPolicy:         engine.ConflictPolicy(cmd.String("conflict-policy")),
		ShowProgress:           !cmd.Bool("quiet"),
	}

	if start := cmd.Timestamp("start"); !start.IsZero() {
		runCfg.Start = optional.Some(start)
	}

	if end := cmd.Timestamp("end"); !end.IsZero() {
		runCfg.End = optional.Some(end)
	}

	runner := backtest.NewRunner(registry, zlog)

	var results []*backtest.Result

	if len(defs) == 1 {
		result, err := runner.Run(ctx, defs[0], bars, runCfg)
		if err != nil {
			return fmt.Errorf("backtest failed: %w", err)
		}

		results = append(results, result)
	} else {
		batch := backtest.NewBatchRunner(runner)

		results, err = batch.RunAll(ctx, defs, bars, runCfg)
		if err != nil {
			return fmt.Errorf("batch backtest failed: %w", err)
		}
	}

	outputDir := cmd.String("output")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var store *backtest.ResultStore

	if dbPath := cmd.String("db"); dbPath != "" {
		store, err = backtest.NewResultStore(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open result store: %w", err)
		}
		defer store.Close()
	}

	for _, result := range results {
		path, err := backtest.WriteResult(result, outputDir)
		if err != nil {
			return fmt.Errorf("failed to write report for %s: %w", result.StrategyName, err)
		}

		if store != nil {
			if err := store.SaveResult(ctx, result); err != nil {
				return fmt.Errorf("failed to persist %s: %w", result.StrategyName, err)
			}
		}

		fmt.Printf("%s: %d trades, net profit %s, win rate %s%%, max drawdown %s%% -> %s\n",
			result.StrategyName,
			result.Metrics.TotalTrades,
			result.Metrics.NetProfit.StringFixed(2),
			result.Metrics.WinRate.StringFixed(1),
			result.Metrics.MaxDrawdownPercent.StringFixed(1),
			path)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run strategy backtests over historical CSV data",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "strategy",
				Aliases:  []string{"s"},
				Usage:    "Path to a strategy YAML file (repeat for a batch run)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Path to an OHLCV CSV file",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory for YAML reports",
				Value:   "results",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "DuckDB file to persist runs, trades, and signals (optional)",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Session ID; fixing it makes runs reproducible",
			},
			&cli.FloatFlag{
				Name:  "capital",
				Usage: "Initial capital",
				Value: 10000,
			},
			&cli.FloatFlag{
				Name:  "commission",
				Usage: "Commission rate per trade notional",
			},
			&cli.FloatFlag{
				Name:  "slippage",
				Usage: "Slippage rate per trade notional",
			},
			&cli.FloatFlag{
				Name:  "risk-free",
				Usage: "Risk-free rate per trade, in percent",
			},
			&cli.IntFlag{
				Name:  "max-positions",
				Usage: "Maximum concurrently open positions (0 = uncapped)",
				Value: 1,
			},
			&cli.StringFlag{
				Name:  "conflict-policy",
				Usage: fmt.Sprintf("Entry/exit conflict policy: %s or %s", engine.ConflictPolicyReject, engine.ConflictPolicyExitWins),
				Value: string(engine.ConflictPolicyReject),
			},
			&cli.TimestampFlag{
				Name:  "start",
				Usage: "Restrict the run to bars at or after this time (`YYYY-MM-DD`)",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02", time.RFC3339},
				},
			},
			&cli.TimestampFlag{
				Name:  "end",
				Usage: "Restrict the run to bars at or before this time (`YYYY-MM-DD`)",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02", time.RFC3339},
				},
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Disable the progress bar",
			},
		},
		Action: backtestAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
