package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

var timeframeSeconds = map[string]int64{
	"1m":  60,
	"3m":  180,
	"5m":  300,
	"15m": 900,
	"30m": 1800,
	"1h":  3600,
	"2h":  7200,
	"4h":  14400,
	"1d":  86400,
}

// TimeframeSeconds maps a timeframe string to its length in seconds. The
// second count is the integer-division bucketing key for period boundaries.
func TimeframeSeconds(timeframe string) (int64, error) {
	seconds, ok := timeframeSeconds[timeframe]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeInvalidTimeframe, "unsupported timeframe %q", timeframe)
	}

	return seconds, nil
}

// Bar is a single OHLCV interval for a symbol. All prices and the volume are
// exact decimals; float64 never enters the engine's arithmetic.
//
// Bars are immutable once their period has closed. The only exception is the
// most recent bar of a live stream, which the rolling engine mutates in place
// (high-water/low-water/close updates) until its period boundary passes.
type Bar struct {
	Time   time.Time       `csv:"time"`
	Symbol string          `csv:"symbol"`
	Open   decimal.Decimal `csv:"open"`
	High   decimal.Decimal `csv:"high"`
	Low    decimal.Decimal `csv:"low"`
	Close  decimal.Decimal `csv:"close"`
	Volume decimal.Decimal `csv:"volume"`
}

// ApplyTick folds a traded price into the bar, raising the high, lowering the
// low, and moving the close. Used for the in-progress bar of a live stream.
func (b *Bar) ApplyTick(price decimal.Decimal) {
	if price.GreaterThan(b.High) {
		b.High = price
	}

	if price.LessThan(b.Low) {
		b.Low = price
	}

	b.Close = price
}

// NewBarFromTick opens a fresh bar seeded entirely from a single traded price.
func NewBarFromTick(symbol string, ts time.Time, price decimal.Decimal) Bar {
	return Bar{
		Time:   ts,
		Symbol: symbol,
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: decimal.Zero,
	}
}
