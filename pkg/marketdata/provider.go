// Package marketdata fetches historical and live bars from external venues
// and adapts them into exact-decimal engine bars.
package marketdata

import (
	"context"
	"iter"
	"time"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// ProviderType identifies a market data provider implementation.
type ProviderType string

const (
	ProviderBinance ProviderType = "binance"
)

// Provider is a source of market bars.
type Provider interface {
	// Klines downloads historical bars for one symbol over a time range.
	Klines(ctx context.Context, symbol, interval string, start, end time.Time) ([]types.Bar, error)
	// Stream yields live bars as their periods close. Cancel the context
	// to stop streaming; the iterator also stops when the consumer breaks.
	Stream(ctx context.Context, symbols []string, interval string) iter.Seq2[types.Bar, error]
}

// NewProvider creates a provider by type.
func NewProvider(providerType ProviderType) (Provider, error) {
	switch providerType {
	case ProviderBinance:
		return NewBinanceProvider(), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"unsupported market data provider %q", providerType)
	}
}
