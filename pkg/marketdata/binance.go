package marketdata

import (
	"context"
	"iter"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// Binance caps kline responses at 500 rows; historical downloads paginate.
const klinesPageLimit = 500

// Aliases over the upstream websocket types, so tests can construct events
// without importing the binance module directly.
type (
	BinanceWsKlineEvent = binance.WsKlineEvent
	BinanceWsKline      = binance.WsKline
	WsKlineHandler      = func(event *BinanceWsKlineEvent)
	WsErrorHandler      = func(err error)
)

// BinanceWebSocketService abstracts the binance websocket entry point for
// testing.
type BinanceWebSocketService interface {
	WsKlineServe(symbol, interval string, handler WsKlineHandler, errHandler WsErrorHandler) (doneC, stopC chan struct{}, err error)
}

type binanceWebSocket struct{}

func (binanceWebSocket) WsKlineServe(symbol, interval string, handler WsKlineHandler, errHandler WsErrorHandler) (chan struct{}, chan struct{}, error) {
	return binance.WsKlineServe(symbol, interval, handler, errHandler)
}

// klinesFetcher abstracts one page of the historical klines API.
type klinesFetcher interface {
	fetch(ctx context.Context, symbol, interval string, start, end int64) ([]*binance.Kline, error)
}

type binanceKlines struct {
	client *binance.Client
}

func (b binanceKlines) fetch(ctx context.Context, symbol, interval string, start, end int64) ([]*binance.Kline, error) {
	return b.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		StartTime(start).
		EndTime(end).
		Limit(klinesPageLimit).
		Do(ctx)
}

// BinanceProvider sources bars from Binance: REST klines for history and the
// kline websocket for live streaming. All prices are parsed into exact
// decimals; a row that fails to parse surfaces a parse error instead of a
// silently zeroed bar.
type BinanceProvider struct {
	klines klinesFetcher
	ws     BinanceWebSocketService
}

// NewBinanceProvider creates a provider against the public Binance API.
// Market data endpoints need no credentials.
func NewBinanceProvider() *BinanceProvider {
	return NewBinanceProviderWith(binance.NewClient("", ""), binanceWebSocket{})
}

// NewBinanceProviderWith creates a provider over an explicit client and
// websocket service. Tests pass mocks; a nil client restricts the provider
// to streaming.
func NewBinanceProviderWith(client *binance.Client, ws BinanceWebSocketService) *BinanceProvider {
	return &BinanceProvider{
		klines: binanceKlines{client: client},
		ws:     ws,
	}
}

// Klines downloads historical bars, paginating past the per-request limit.
func (p *BinanceProvider) Klines(ctx context.Context, symbol, interval string, start, end time.Time) ([]types.Bar, error) {
	if _, err := types.TimeframeSeconds(interval); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidInterval, err, "unsupported interval %q", interval)
	}

	endMillis := end.UnixMilli()
	current := start.UnixMilli()

	var bars []types.Bar

	for {
		klines, err := p.klines.fetch(ctx, symbol, interval, current, endMillis)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err,
				"cannot fetch %s klines", symbol)
		}

		for _, kline := range klines {
			bar, err := barFromKline(symbol, kline)
			if err != nil {
				return nil, err
			}

			bars = append(bars, bar)
		}

		if len(klines) < klinesPageLimit {
			break
		}

		// Resume just past the last close time to avoid duplicate rows.
		current = klines[len(klines)-1].CloseTime + 1
		if current >= endMillis {
			break
		}
	}

	return bars, nil
}

// Stream subscribes to the kline websocket of every symbol and yields only
// finalized candles as bars.
func (p *BinanceProvider) Stream(ctx context.Context, symbols []string, interval string) iter.Seq2[types.Bar, error] {
	return func(yield func(types.Bar, error) bool) {
		if len(symbols) == 0 {
			yield(types.Bar{}, errors.New(errors.ErrCodeInvalidParameter, "no symbols to stream"))

			return
		}

		if _, err := types.TimeframeSeconds(interval); err != nil {
			yield(types.Bar{}, errors.Wrapf(errors.ErrCodeInvalidInterval, err,
				"unsupported interval %q", interval))

			return
		}

		type item struct {
			bar types.Bar
			err error
		}

		items := make(chan item, klinesPageLimit)
		quit := make(chan struct{})

		push := func(it item) {
			select {
			case items <- it:
			case <-quit:
			case <-ctx.Done():
			}
		}

		stops := make([]chan struct{}, 0, len(symbols))
		stopAll := func() {
			close(quit)

			for _, stop := range stops {
				close(stop)
			}
		}

		for _, symbol := range symbols {
			_, stop, err := p.ws.WsKlineServe(symbol, interval,
				func(event *BinanceWsKlineEvent) {
					if event == nil || !event.Kline.IsFinal {
						return
					}

					bar, err := barFromWsKline(event)
					push(item{bar: bar, err: err})
				},
				func(err error) {
					push(item{err: errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "kline stream error", err)})
				})
			if err != nil {
				stopAll()
				yield(types.Bar{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err,
					"cannot subscribe to %s klines", symbol))

				return
			}

			stops = append(stops, stop)
		}

		defer stopAll()

		for {
			select {
			case <-ctx.Done():
				return
			case it := <-items:
				if !yield(it.bar, it.err) {
					return
				}
			}
		}
	}
}

func barFromKline(symbol string, kline *binance.Kline) (types.Bar, error) {
	return parseBar(symbol, time.UnixMilli(kline.OpenTime).UTC(),
		kline.Open, kline.High, kline.Low, kline.Close, kline.Volume)
}

func barFromWsKline(event *BinanceWsKlineEvent) (types.Bar, error) {
	return parseBar(event.Symbol, time.UnixMilli(event.Kline.StartTime).UTC(),
		event.Kline.Open, event.Kline.High, event.Kline.Low, event.Kline.Close, event.Kline.Volume)
}

func parseBar(symbol string, ts time.Time, open, high, low, closePrice, volume string) (types.Bar, error) {
	bar := types.Bar{Time: ts, Symbol: symbol}

	fields := []struct {
		raw  string
		into *decimal.Decimal
	}{
		{open, &bar.Open},
		{high, &bar.High},
		{low, &bar.Low},
		{closePrice, &bar.Close},
		{volume, &bar.Volume},
	}

	for _, field := range fields {
		value, err := decimal.NewFromString(field.raw)
		if err != nil {
			return types.Bar{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err,
				"unparseable %s kline field %q", symbol, field.raw)
		}

		*field.into = value
	}

	return bar, nil
}

var _ Provider = (*BinanceProvider)(nil)
