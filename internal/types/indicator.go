package types

// IndicatorType identifies an indicator computation implementation. Strategy
// definitions reference indicators by this type tag; the registry resolves the
// tag to an implementation at strategy-load time.
type IndicatorType string

const (
	IndicatorTypeSMA            IndicatorType = "sma"
	IndicatorTypeEMA            IndicatorType = "ema"
	IndicatorTypeRSI            IndicatorType = "rsi"
	IndicatorTypeMACD           IndicatorType = "macd"
	IndicatorTypeATR            IndicatorType = "atr"
	IndicatorTypeBollingerBands IndicatorType = "bollinger_bands"
)
