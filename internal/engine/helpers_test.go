package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
)

var testBarStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func closesToBars(closes ...string) []types.Bar {
	bars := make([]types.Bar, 0, len(closes))

	for i, raw := range closes {
		c := decimal.RequireFromString(raw)

		bars = append(bars, types.Bar{
			Time:   testBarStart.Add(time.Duration(i) * time.Minute),
			Symbol: "BTCUSDT",
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: decimal.NewFromInt(100),
		})
	}

	return bars
}

func testStrategy(entry, exit, stop string) *types.StrategyDefinition {
	return &types.StrategyDefinition{
		Name:          "test-strategy",
		SchemaVersion: "1.0.0",
		Symbol:        "BTCUSDT",
		Timeframe:     "1m",
		Entry:         entry,
		Exit:          exit,
		Stop:          stop,
		SizingPolicy:  types.SizingPolicyFixed,
		SizingValue:   100,
	}
}

func testConfig() Config {
	return Config{
		InitialCapital:         decimal.NewFromInt(1000),
		MaxConcurrentPositions: 1,
	}
}
