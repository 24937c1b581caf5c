package indicator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
)

var testBarStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// closesToBars builds one-minute bars from closing prices, with open/high/low
// derived so the bars are well-formed.
func closesToBars(closes ...string) []types.Bar {
	bars := make([]types.Bar, 0, len(closes))

	for i, raw := range closes {
		c := decimal.RequireFromString(raw)
		spread := decimal.RequireFromString("0.5")

		bars = append(bars, types.Bar{
			Time:   testBarStart.Add(time.Duration(i) * time.Minute),
			Symbol: "BTCUSDT",
			Open:   c,
			High:   c.Add(spread),
			Low:    c.Sub(spread),
			Close:  c,
			Volume: decimal.NewFromInt(100),
		})
	}

	return bars
}

// streamOver feeds every bar through a fresh incremental state and returns
// the value produced by the final bar.
func streamOver(impl StreamingIndicator, params Params, bars []types.Bar) (Value, error) {
	state, err := impl.InitState(params)
	if err != nil {
		return Value{}, err
	}

	var (
		value   Value
		lastErr error
	)

	for _, bar := range bars {
		state, value, lastErr = impl.UpdateState(state, bar)
	}

	return value, lastErr
}

func ohlcBar(i int, high, low, close string) types.Bar {
	c := decimal.RequireFromString(close)

	return types.Bar{
		Time:   testBarStart.Add(time.Duration(i) * time.Minute),
		Symbol: "BTCUSDT",
		Open:   c,
		High:   decimal.RequireFromString(high),
		Low:    decimal.RequireFromString(low),
		Close:  c,
		Volume: decimal.NewFromInt(100),
	}
}
