package indicator

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// MACD is the Moving Average Convergence Divergence. The latest value is the
// MACD line; the signal line and histogram are surfaced as components
// ("signal", "hist"). Batch-only: the layered EMAs make a faithful
// incremental form not worth the state it would carry.
type MACD struct{}

// NewMACD creates a new MACD indicator.
func NewMACD() *MACD {
	return &MACD{}
}

// Type returns the type tag of the indicator.
func (m *MACD) Type() types.IndicatorType {
	return types.IndicatorTypeMACD
}

// ComputeBatch computes MACD over the full history. Requires
// slow+signal-1 bars so the signal line's seed average has a full window.
func (m *MACD) ComputeBatch(ctx context.Context, params Params, bars []types.Bar) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, errors.Wrap(errors.ErrCodeComputeTimeout, "macd computation cancelled", err)
	}

	fast, err := params.IntValue("fast_period", 12)
	if err != nil {
		return Value{}, err
	}

	slow, err := params.IntValue("slow_period", 26)
	if err != nil {
		return Value{}, err
	}

	signal, err := params.IntValue("signal_period", 9)
	if err != nil {
		return Value{}, err
	}

	if fast <= 0 || slow <= 0 || signal <= 0 {
		return Value{}, errors.Newf(errors.ErrCodeInvalidPeriod,
			"macd periods must be positive, got fast=%d slow=%d signal=%d", fast, slow, signal)
	}

	if fast >= slow {
		return Value{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"macd fast period %d must be shorter than slow period %d", fast, slow)
	}

	required := slow + signal - 1
	if len(bars) < required {
		return Value{}, errors.NewInsufficientDataErrorf(required, len(bars), barsSymbol(bars),
			"macd(%d,%d,%d) requires %d bars, have %d", fast, slow, signal, required, len(bars))
	}

	fastSeries, err := emaSeries(fast, bars)
	if err != nil {
		return Value{}, err
	}

	slowSeries, err := emaSeries(slow, bars)
	if err != nil {
		return Value{}, err
	}

	// Align the fast series to the slow series: the slow EMA starts
	// slow-fast entries later.
	offset := slow - fast
	macdLine := make([]decimal.Decimal, len(slowSeries))

	for i := range slowSeries {
		macdLine[i] = fastSeries[i+offset].Sub(slowSeries[i])
	}

	signalSeries, err := emaOver(signal, macdLine)
	if err != nil {
		return Value{}, err
	}

	latestMACD := macdLine[len(macdLine)-1]
	latestSignal := signalSeries[len(signalSeries)-1]

	return Value{
		Latest: latestMACD,
		Series: boundedSeries(macdLine),
		Components: map[string]decimal.Decimal{
			"signal": latestSignal,
			"hist":   latestMACD.Sub(latestSignal),
		},
	}, nil
}

// ComponentNames lists the secondary outputs: the signal line and the
// histogram.
func (m *MACD) ComponentNames() []string {
	return []string{"signal", "hist"}
}

// ParamNames lists the accepted parameter keys.
func (m *MACD) ParamNames() []string {
	return []string{"fast_period", "slow_period", "signal_period"}
}

var (
	_ ComponentIndicator = (*MACD)(nil)
	_ ParamSpec          = (*MACD)(nil)
)
