package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalType classifies what triggered a signal record.
type SignalType string

const (
	// SignalTypeEntry records a satisfied entry condition that opened a position.
	SignalTypeEntry SignalType = "entry"
	// SignalTypeExit records a satisfied exit condition that closed positions.
	SignalTypeExit SignalType = "exit"
	// SignalTypeStop records a satisfied stop condition that closed positions.
	SignalTypeStop SignalType = "stop"
)

// Direction is the side of a position or signal.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Signal is one recorded entry/exit/stop trigger. Signals are created exactly
// once per triggering evaluation, are immutable, and live in an append-only
// log per engine instance ordered by non-decreasing timestamp.
type Signal struct {
	// ID is the unique identifier of this signal.
	ID string
	// Time is the market time of the tick that triggered the signal.
	Time time.Time
	// Type classifies the signal as entry, exit, or stop.
	Type SignalType
	// Direction is the side the signal acts on.
	Direction Direction
	// Symbol is the traded symbol.
	Symbol string
	// Price is the tick price at which the signal fired.
	Price decimal.Decimal
	// StrategyName identifies the owning strategy.
	StrategyName string
	// SessionID identifies the owning engine run.
	SessionID string
	// Snapshot holds the indicator values present when the signal fired.
	Snapshot map[string]decimal.Decimal
}
