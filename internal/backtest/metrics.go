package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
)

var hundred = decimal.NewFromInt(100)

// Trade is one closed position with its trading costs applied.
type Trade struct {
	Position   types.Position  `yaml:"position"`
	Commission decimal.Decimal `yaml:"commission"`
	Slippage   decimal.Decimal `yaml:"slippage"`
	// NetPnL is the position's realized PnL minus commission and slippage.
	NetPnL decimal.Decimal `yaml:"net_pnl"`
	// NetPnLPercent is NetPnL relative to the entry notional, in percent.
	NetPnLPercent decimal.Decimal `yaml:"net_pnl_percent"`
}

// EquityPoint is one sample of the cumulative equity curve, taken after each
// closed trade.
type EquityPoint struct {
	Time   time.Time       `yaml:"time"`
	Equity decimal.Decimal `yaml:"equity"`
}

// Metrics are the aggregate statistics of a completed run. All ratios are
// computed over closed trades only, after per-trade costs were deducted.
type Metrics struct {
	TotalTrades   int `yaml:"total_trades"`
	WinningTrades int `yaml:"winning_trades"`
	LosingTrades  int `yaml:"losing_trades"`

	WinRate      decimal.Decimal `yaml:"win_rate"`
	GrossProfit  decimal.Decimal `yaml:"gross_profit"`
	GrossLoss    decimal.Decimal `yaml:"gross_loss"`
	NetProfit    decimal.Decimal `yaml:"net_profit"`
	ProfitFactor decimal.Decimal `yaml:"profit_factor"`

	AverageWin  decimal.Decimal `yaml:"average_win"`
	AverageLoss decimal.Decimal `yaml:"average_loss"`
	LargestWin  decimal.Decimal `yaml:"largest_win"`
	LargestLoss decimal.Decimal `yaml:"largest_loss"`

	MaxDrawdown        decimal.Decimal `yaml:"max_drawdown"`
	MaxDrawdownPercent decimal.Decimal `yaml:"max_drawdown_percent"`
	SharpeRatio        decimal.Decimal `yaml:"sharpe_ratio"`

	TotalCommission decimal.Decimal `yaml:"total_commission"`
	TotalSlippage   decimal.Decimal `yaml:"total_slippage"`
}

// applyCosts turns a closed position into a Trade: commission and slippage
// are each the entry plus exit notional times the respective rate, deducted
// from the raw PnL before any aggregation.
func applyCosts(position types.Position, commissionRate, slippageRate decimal.Decimal) Trade {
	entryNotional := position.EntryPrice.Mul(position.Quantity)
	exitNotional := position.ExitPrice.Mul(position.Quantity)
	turnover := entryNotional.Add(exitNotional)

	commission := turnover.Mul(commissionRate)
	slippage := turnover.Mul(slippageRate)
	netPnL := position.RealizedPnL.Sub(commission).Sub(slippage)

	netPct := decimal.Zero
	if !entryNotional.IsZero() {
		netPct = netPnL.Div(entryNotional).Mul(hundred)
	}

	return Trade{
		Position:      position,
		Commission:    commission,
		Slippage:      slippage,
		NetPnL:        netPnL,
		NetPnLPercent: netPct,
	}
}

// computeMetrics aggregates closed trades, in exit order, into run metrics.
// The equity curve starts at the initial capital and adds each trade's net
// PnL; the maximum drawdown tracks the largest decline from the running
// equity peak.
func computeMetrics(trades []Trade, initialCapital, riskFreeRate decimal.Decimal) (Metrics, []EquityPoint) {
	metrics := Metrics{TotalTrades: len(trades)}
	curve := make([]EquityPoint, 0, len(trades))

	equity := initialCapital
	peak := initialCapital

	for _, trade := range trades {
		metrics.NetProfit = metrics.NetProfit.Add(trade.NetPnL)
		metrics.TotalCommission = metrics.TotalCommission.Add(trade.Commission)
		metrics.TotalSlippage = metrics.TotalSlippage.Add(trade.Slippage)

		switch {
		case trade.NetPnL.Sign() > 0:
			metrics.WinningTrades++
			metrics.GrossProfit = metrics.GrossProfit.Add(trade.NetPnL)

			if trade.NetPnL.GreaterThan(metrics.LargestWin) {
				metrics.LargestWin = trade.NetPnL
			}

		case trade.NetPnL.Sign() < 0:
			metrics.LosingTrades++
			loss := trade.NetPnL.Neg()
			metrics.GrossLoss = metrics.GrossLoss.Add(loss)

			if loss.GreaterThan(metrics.LargestLoss) {
				metrics.LargestLoss = loss
			}
		}

		equity = equity.Add(trade.NetPnL)
		if equity.GreaterThan(peak) {
			peak = equity
		}

		drawdown := peak.Sub(equity)
		if drawdown.GreaterThan(metrics.MaxDrawdown) {
			metrics.MaxDrawdown = drawdown

			if peak.Sign() > 0 {
				metrics.MaxDrawdownPercent = drawdown.Div(peak).Mul(hundred)
			}
		}

		curve = append(curve, EquityPoint{Time: trade.Position.ExitTime, Equity: equity})
	}

	if metrics.TotalTrades > 0 {
		metrics.WinRate = decimal.NewFromInt(int64(metrics.WinningTrades)).
			Div(decimal.NewFromInt(int64(metrics.TotalTrades))).Mul(hundred)
	}

	if metrics.WinningTrades > 0 {
		metrics.AverageWin = metrics.GrossProfit.Div(decimal.NewFromInt(int64(metrics.WinningTrades)))
	}

	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = metrics.GrossLoss.Div(decimal.NewFromInt(int64(metrics.LosingTrades)))
	}

	if metrics.GrossLoss.Sign() > 0 {
		metrics.ProfitFactor = metrics.GrossProfit.Div(metrics.GrossLoss)
	}

	metrics.SharpeRatio = sharpeRatio(trades, riskFreeRate)

	return metrics, curve
}

// sharpeRatio is the simplified per-trade form: mean percent PnL minus the
// risk-free rate, over the sample standard deviation of percent PnL. Zero
// with fewer than two trades or zero variance.
func sharpeRatio(trades []Trade, riskFreeRate decimal.Decimal) decimal.Decimal {
	if len(trades) < 2 {
		return decimal.Zero
	}

	count := decimal.NewFromInt(int64(len(trades)))

	mean := decimal.Zero
	for _, trade := range trades {
		mean = mean.Add(trade.NetPnLPercent)
	}

	mean = mean.Div(count)

	variance := decimal.Zero
	for _, trade := range trades {
		deviation := trade.NetPnLPercent.Sub(mean)
		variance = variance.Add(deviation.Mul(deviation))
	}

	variance = variance.Div(count.Sub(decimal.NewFromInt(1)))
	if variance.IsZero() {
		return decimal.Zero
	}

	return mean.Sub(riskFreeRate).Div(types.DecimalSqrt(variance))
}
