package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

var oneHundred = decimal.NewFromInt(100)

// Position is one open-to-close trade lifecycle instance. A position
// transitions open to closed exactly once; closed positions are append-only
// history and are never mutated again.
type Position struct {
	// ID is the unique identifier of this position.
	ID string
	// Symbol is the traded symbol.
	Symbol string
	// Direction is long or short.
	Direction Direction
	// Status is open or closed.
	Status PositionStatus
	// EntrySignalID references the signal that opened the position.
	EntrySignalID string
	// EntryPrice is the fill price at open.
	EntryPrice decimal.Decimal
	// EntryTime is the market time at open.
	EntryTime time.Time
	// Quantity is the position size in units of the asset.
	Quantity decimal.Decimal
	// ExitSignalID references the signal that closed the position.
	ExitSignalID string
	// ExitPrice is the fill price at close. Zero while open.
	ExitPrice decimal.Decimal
	// ExitTime is the market time at close. Zero while open.
	ExitTime time.Time
	// RealizedPnL is the profit or loss realized at close, net of costs.
	RealizedPnL decimal.Decimal
	// PnLPercent is RealizedPnL relative to the entry notional, in percent.
	PnLPercent decimal.Decimal
}

// IsOpen reports whether the position has not been closed yet.
func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}

// UnrealizedPnL returns the mark-to-market profit or loss of an open position
// at the given price. Short positions profit from falling prices.
func (p *Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	if p.Direction == DirectionShort {
		return p.EntryPrice.Sub(price).Mul(p.Quantity)
	}

	return price.Sub(p.EntryPrice).Mul(p.Quantity)
}

// UnrealizedPnLPercent returns the unrealized profit or loss relative to the
// entry notional, in percent. Returns zero when the entry notional is zero.
func (p *Position) UnrealizedPnLPercent(price decimal.Decimal) decimal.Decimal {
	notional := p.EntryPrice.Mul(p.Quantity)
	if notional.IsZero() {
		return decimal.Zero
	}

	return p.UnrealizedPnL(price).Div(notional).Mul(oneHundred)
}

// Drawdown returns the current decline from the entry price in percent,
// signed so that an adverse move yields a positive value. Zero entry price
// yields zero.
func (p *Position) Drawdown(price decimal.Decimal) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}

	var decline decimal.Decimal
	if p.Direction == DirectionShort {
		decline = price.Sub(p.EntryPrice)
	} else {
		decline = p.EntryPrice.Sub(price)
	}

	if decline.IsNegative() {
		return decimal.Zero
	}

	return decline.Div(p.EntryPrice).Mul(oneHundred)
}

// Age returns the elapsed time since entry, in seconds, as a decimal so it
// can participate in condition expressions.
func (p *Position) Age(now time.Time) decimal.Decimal {
	if now.Before(p.EntryTime) {
		return decimal.Zero
	}

	return decimal.NewFromInt(int64(now.Sub(p.EntryTime) / time.Second))
}

// Close transitions the position to closed, recording the exit signal, price,
// and time and computing gross realized PnL from the direction and price
// movement. Costs are applied by the caller before aggregation.
func (p *Position) Close(exitSignalID string, price decimal.Decimal, ts time.Time) {
	p.Status = PositionStatusClosed
	p.ExitSignalID = exitSignalID
	p.ExitPrice = price
	p.ExitTime = ts
	p.RealizedPnL = p.UnrealizedPnL(price)

	notional := p.EntryPrice.Mul(p.Quantity)
	if notional.IsZero() {
		p.PnLPercent = decimal.Zero
	} else {
		p.PnLPercent = p.RealizedPnL.Div(notional).Mul(oneHundred)
	}
}
