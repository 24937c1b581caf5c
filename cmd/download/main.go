package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rzcastilho/trading-strategy-sub000/internal/backtest"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/marketdata"
)

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	symbol := cmd.String("symbol")
	interval := cmd.String("interval")
	start := cmd.Timestamp("start")
	end := cmd.Timestamp("end")

	provider, err := marketdata.NewProvider(marketdata.ProviderType(cmd.String("provider")))
	if err != nil {
		return fmt.Errorf("failed to create market data provider: %w", err)
	}

	log.Printf("Downloading %s %s klines from %s to %s...",
		symbol, interval, start.Format("2006-01-02"), end.Format("2006-01-02"))

	bars, err := provider.Klines(ctx, symbol, interval, start, end)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	outputPath := cmd.String("output")
	if outputPath == "" {
		outputPath = filepath.Join("data", fmt.Sprintf("%s_%s.csv", symbol, interval))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := backtest.SaveBarsCSV(outputPath, bars); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	log.Printf("Wrote %d bars to %s", len(bars), outputPath)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "download",
		Usage: "Download historical market data into a CSV file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"t"},
				Usage:    "Symbol to download, e.g. BTCUSDT",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Bar interval, e.g. 1m, 1h, 1d",
				Value:   "1m",
			},
			&cli.TimestampFlag{
				Name:     "start",
				Aliases:  []string{"s"},
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format. Defaults to today.",
				Value:   time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "Data provider",
				Value:   string(marketdata.ProviderBinance),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output CSV path. Defaults to data/<symbol>_<interval>.csv",
			},
		},
		Action: downloadAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
