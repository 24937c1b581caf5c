package backtest

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// ResultStore persists run results into DuckDB: one row per run, plus its
// trades and signals. An empty path opens an in-memory database.
type ResultStore struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

// NewResultStore opens the database and creates the schema.
func NewResultStore(path string) (*ResultStore, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResultStoreFailed, "cannot open result database", err)
	}

	store := &ResultStore{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

func (s *ResultStore) initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			session_id TEXT PRIMARY KEY,
			strategy_name TEXT,
			symbol TEXT,
			start_time TIMESTAMP,
			end_time TIMESTAMP,
			initial_capital TEXT,
			final_capital TEXT,
			total_trades INTEGER,
			win_rate TEXT,
			net_profit TEXT,
			profit_factor TEXT,
			max_drawdown TEXT,
			sharpe_ratio TEXT,
			total_commission TEXT,
			total_slippage TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			session_id TEXT,
			position_id TEXT,
			symbol TEXT,
			direction TEXT,
			entry_time TIMESTAMP,
			entry_price TEXT,
			exit_time TIMESTAMP,
			exit_price TEXT,
			quantity TEXT,
			realized_pnl TEXT,
			commission TEXT,
			slippage TEXT,
			net_pnl TEXT,
			net_pnl_percent TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS signals (
			session_id TEXT,
			signal_id TEXT,
			time TIMESTAMP,
			type TEXT,
			direction TEXT,
			symbol TEXT,
			price TEXT,
			strategy_name TEXT
		)`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return errors.Wrap(errors.ErrCodeResultStoreFailed, "schema creation failed", err)
		}
	}

	return nil
}

// SaveResult writes one run with all its trades and signals in a single
// transaction. Decimal values are stored as text so no precision is lost.
func (s *ResultStore) SaveResult(ctx context.Context, result *Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultStoreFailed, "cannot begin transaction", err)
	}

	runInsert := s.sq.
		Insert("runs").
		Columns(
			"session_id", "strategy_name", "symbol", "start_time", "end_time",
			"initial_capital", "final_capital", "total_trades", "win_rate",
			"net_profit", "profit_factor", "max_drawdown", "sharpe_ratio",
			"total_commission", "total_slippage",
		).
		Values(
			result.SessionID, result.StrategyName, result.Symbol,
			result.StartTime, result.EndTime,
			result.InitialCapital.String(), result.FinalCapital.String(),
			result.Metrics.TotalTrades, result.Metrics.WinRate.String(),
			result.Metrics.NetProfit.String(), result.Metrics.ProfitFactor.String(),
			result.Metrics.MaxDrawdown.String(), result.Metrics.SharpeRatio.String(),
			result.Metrics.TotalCommission.String(), result.Metrics.TotalSlippage.String(),
		).
		RunWith(tx)

	if _, err := runInsert.ExecContext(ctx); err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeResultStoreFailed, "cannot insert run", err)
	}

	for _, trade := range result.Trades {
		tradeInsert := s.sq.
			Insert("trades").
			Columns(
				"session_id", "position_id", "symbol", "direction",
				"entry_time", "entry_price", "exit_time", "exit_price",
				"quantity", "realized_pnl", "commission", "slippage",
				"net_pnl", "net_pnl_percent",
			).
			Values(
				result.SessionID, trade.Position.ID, trade.Position.Symbol,
				string(trade.Position.Direction),
				trade.Position.EntryTime, trade.Position.EntryPrice.String(),
				trade.Position.ExitTime, trade.Position.ExitPrice.String(),
				trade.Position.Quantity.String(), trade.Position.RealizedPnL.String(),
				trade.Commission.String(), trade.Slippage.String(),
				trade.NetPnL.String(), trade.NetPnLPercent.String(),
			).
			RunWith(tx)

		if _, err := tradeInsert.ExecContext(ctx); err != nil {
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeResultStoreFailed, "cannot insert trade", err)
		}
	}

	for _, signal := range result.Signals {
		signalInsert := s.sq.
			Insert("signals").
			Columns(
				"session_id", "signal_id", "time", "type", "direction",
				"symbol", "price", "strategy_name",
			).
			Values(
				result.SessionID, signal.ID, signal.Time, string(signal.Type),
				string(signal.Direction), signal.Symbol, signal.Price.String(),
				signal.StrategyName,
			).
			RunWith(tx)

		if _, err := signalInsert.ExecContext(ctx); err != nil {
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeResultStoreFailed, "cannot insert signal", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeResultStoreFailed, "cannot commit result", err)
	}

	return nil
}

// CountRuns returns the number of persisted runs.
func (s *ResultStore) CountRuns(ctx context.Context) (int, error) {
	var count int

	row := s.sq.Select("count(*)").From("runs").RunWith(s.db).QueryRowContext(ctx)
	if err := row.Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeResultStoreFailed, "cannot count runs", err)
	}

	return count, nil
}

// Close releases the underlying database.
func (s *ResultStore) Close() error {
	return s.db.Close()
}
