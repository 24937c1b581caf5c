package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/rzcastilho/trading-strategy-sub000/internal/indicator"
	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

type RollingEngineTestSuite struct {
	suite.Suite

	engine *RollingEngine
	clock  time.Time
}

func TestRollingEngineSuite(t *testing.T) {
	suite.Run(t, new(RollingEngineTestSuite))
}

func (suite *RollingEngineTestSuite) SetupTest() {
	suite.clock = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	suite.engine = suite.newEngine(Config{
		Symbol:               "BTCUSDT",
		Timeframe:            "1m",
		WindowSize:           10,
		MinRecomputeInterval: time.Second,
	})
}

func (suite *RollingEngineTestSuite) TearDownTest() {
	if suite.engine != nil {
		suite.engine.Stop()
	}
}

func (suite *RollingEngineTestSuite) newEngine(cfg Config) *RollingEngine {
	defs := []types.IndicatorDefinition{
		{Name: "sma_2", Type: types.IndicatorTypeSMA, Params: map[string]any{"period": 2}},
	}

	engine, err := NewRollingEngine(cfg, indicator.NewDefaultRegistry(), defs, nil)
	suite.Require().NoError(err)

	// Frozen clock; tests advance it explicitly.
	engine.now = func() time.Time { return suite.clock }

	return engine
}

func (suite *RollingEngineTestSuite) bar(minute int, close string) types.Bar {
	c := decimal.RequireFromString(close)

	return types.Bar{
		Time:   time.Date(2024, 3, 1, 9, minute, 0, 0, time.UTC),
		Symbol: "BTCUSDT",
		Open:   c,
		High:   c,
		Low:    c,
		Close:  c,
		Volume: decimal.NewFromInt(1),
	}
}

func (suite *RollingEngineTestSuite) TestRejectsUnknownTimeframe() {
	_, err := NewRollingEngine(Config{
		Symbol:     "BTCUSDT",
		Timeframe:  "7m",
		WindowSize: 10,
	}, indicator.NewDefaultRegistry(), nil, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidTimeframe))
}

func (suite *RollingEngineTestSuite) TestRejectsNonPositiveWindow() {
	_, err := NewRollingEngine(Config{
		Symbol:    "BTCUSDT",
		Timeframe: "1m",
	}, indicator.NewDefaultRegistry(), nil, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *RollingEngineTestSuite) TestNotReadyBeforeFirstRecompute() {
	_, err := suite.engine.CurrentValues(context.Background())
	suite.True(errors.IsNotReadyError(err))
}

func (suite *RollingEngineTestSuite) TestPushBarRecomputes() {
	ctx := context.Background()

	_, err := suite.engine.PushBar(ctx, suite.bar(0, "10"))
	suite.Require().NoError(err)

	values, err := suite.engine.PushBar(ctx, suite.bar(1, "20"))
	suite.Require().NoError(err)
	suite.True(values["sma_2"].Equal(decimal.NewFromInt(15)))

	current, err := suite.engine.CurrentValues(ctx)
	suite.Require().NoError(err)
	suite.True(current["sma_2"].Equal(decimal.NewFromInt(15)))
}

func (suite *RollingEngineTestSuite) TestPushBarRejectsForeignSymbol() {
	bar := suite.bar(0, "10")
	bar.Symbol = "ETHUSDT"

	_, err := suite.engine.PushBar(context.Background(), bar)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *RollingEngineTestSuite) TestPushBarRejectsOutOfOrder() {
	ctx := context.Background()

	_, err := suite.engine.PushBar(ctx, suite.bar(1, "10"))
	suite.Require().NoError(err)

	_, err = suite.engine.PushBar(ctx, suite.bar(0, "9"))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *RollingEngineTestSuite) TestWindowEvictsOldest() {
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := suite.engine.PushBar(ctx, suite.bar(i, "10"))
		suite.Require().NoError(err)
	}

	// Window of 10: newest first, oldest two evicted.
	suite.Len(suite.engine.buffer, 10)
	suite.Equal(suite.bar(11, "10").Time, suite.engine.buffer[0].Time)
	suite.Equal(suite.bar(2, "10").Time, suite.engine.buffer[9].Time)
}

func (suite *RollingEngineTestSuite) TestTickMutatesInProgressBar() {
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 9, 0, 10, 0, time.UTC)

	_, err := suite.engine.PushTick(ctx, ts, decimal.NewFromInt(10))
	suite.Require().NoError(err)

	suite.clock = suite.clock.Add(2 * time.Second)
	_, err = suite.engine.PushTick(ctx, ts.Add(5*time.Second), decimal.NewFromInt(14))
	suite.Require().NoError(err)

	suite.clock = suite.clock.Add(2 * time.Second)
	_, err = suite.engine.PushTick(ctx, ts.Add(10*time.Second), decimal.NewFromInt(8))
	suite.Require().NoError(err)

	suite.Require().Len(suite.engine.buffer, 1)
	bar := suite.engine.buffer[0]
	suite.True(bar.Open.Equal(decimal.NewFromInt(10)))
	suite.True(bar.High.Equal(decimal.NewFromInt(14)))
	suite.True(bar.Low.Equal(decimal.NewFromInt(8)))
	suite.True(bar.Close.Equal(decimal.NewFromInt(8)))
}

func (suite *RollingEngineTestSuite) TestTickOpensNewBarOnPeriodBoundary() {
	ctx := context.Background()

	_, err := suite.engine.PushTick(ctx,
		time.Date(2024, 3, 1, 9, 0, 59, 0, time.UTC), decimal.NewFromInt(10))
	suite.Require().NoError(err)

	suite.clock = suite.clock.Add(2 * time.Second)
	_, err = suite.engine.PushTick(ctx,
		time.Date(2024, 3, 1, 9, 1, 0, 0, time.UTC), decimal.NewFromInt(20))
	suite.Require().NoError(err)

	suite.Require().Len(suite.engine.buffer, 2)
	suite.Equal(time.Date(2024, 3, 1, 9, 1, 0, 0, time.UTC), suite.engine.buffer[0].Time)
	suite.True(suite.engine.buffer[0].Open.Equal(decimal.NewFromInt(20)))
	suite.True(suite.engine.buffer[1].Close.Equal(decimal.NewFromInt(10)))
}

func (suite *RollingEngineTestSuite) TestTickRejectsStalePeriod() {
	ctx := context.Background()

	_, err := suite.engine.PushTick(ctx,
		time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC), decimal.NewFromInt(10))
	suite.Require().NoError(err)

	_, err = suite.engine.PushTick(ctx,
		time.Date(2024, 3, 1, 9, 3, 0, 0, time.UTC), decimal.NewFromInt(9))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *RollingEngineTestSuite) TestTickRecomputeRateLimited() {
	ctx := context.Background()

	_, err := suite.engine.PushBar(ctx, suite.bar(0, "10"))
	suite.Require().NoError(err)

	ts := time.Date(2024, 3, 1, 9, 1, 0, 0, time.UTC)
	first, err := suite.engine.PushTick(ctx, ts, decimal.NewFromInt(20))
	suite.Require().NoError(err)
	suite.True(first["sma_2"].Equal(decimal.NewFromInt(15)))

	// Inside the interval: previous values returned even though the close
	// moved.
	suite.clock = suite.clock.Add(100 * time.Millisecond)
	second, err := suite.engine.PushTick(ctx, ts.Add(time.Second), decimal.NewFromInt(30))
	suite.Require().NoError(err)
	suite.True(second["sma_2"].Equal(decimal.NewFromInt(15)))

	// Past the interval the new close is picked up.
	suite.clock = suite.clock.Add(time.Second)
	third, err := suite.engine.PushTick(ctx, ts.Add(2*time.Second), decimal.NewFromInt(30))
	suite.Require().NoError(err)
	suite.True(third["sma_2"].Equal(decimal.NewFromInt(20)))
}

func (suite *RollingEngineTestSuite) TestClosedBarBypassesRateLimit() {
	ctx := context.Background()

	_, err := suite.engine.PushBar(ctx, suite.bar(0, "10"))
	suite.Require().NoError(err)

	// No clock advance: a closed bar still recomputes.
	values, err := suite.engine.PushBar(ctx, suite.bar(1, "20"))
	suite.Require().NoError(err)
	suite.True(values["sma_2"].Equal(decimal.NewFromInt(15)))
}

func (suite *RollingEngineTestSuite) TestSubscribersNotifiedAsynchronously() {
	ctx := context.Background()

	received := make(chan map[string]decimal.Decimal, 4)
	err := suite.engine.Subscribe(ctx, "listener", func(symbol string, values map[string]decimal.Decimal) {
		suite.Equal("BTCUSDT", symbol)
		received <- values
	})
	suite.Require().NoError(err)

	// Re-subscribing the same ID replaces, never duplicates.
	err = suite.engine.Subscribe(ctx, "listener", func(symbol string, values map[string]decimal.Decimal) {
		received <- values
	})
	suite.Require().NoError(err)

	_, err = suite.engine.PushBar(ctx, suite.bar(0, "10"))
	suite.Require().NoError(err)
	_, err = suite.engine.PushBar(ctx, suite.bar(1, "20"))
	suite.Require().NoError(err)

	suite.engine.notifyWG.Wait()
	suite.Len(received, 2)

	// The second recompute has enough bars for the SMA; at least one
	// delivery carries it.
	first, second := <-received, <-received
	if _, ok := first["sma_2"]; !ok {
		suite.Contains(second, "sma_2")
	}
}

func (suite *RollingEngineTestSuite) TestUnsubscribeStopsNotifications() {
	ctx := context.Background()

	received := make(chan struct{}, 4)
	err := suite.engine.Subscribe(ctx, "listener", func(string, map[string]decimal.Decimal) {
		received <- struct{}{}
	})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.engine.Unsubscribe(ctx, "listener"))
	// Unknown IDs are a no-op.
	suite.Require().NoError(suite.engine.Unsubscribe(ctx, "absent"))

	_, err = suite.engine.PushBar(ctx, suite.bar(0, "10"))
	suite.Require().NoError(err)

	suite.engine.notifyWG.Wait()
	suite.Empty(received)
}

func (suite *RollingEngineTestSuite) TestStopRejectsFurtherRequests() {
	suite.engine.Stop()
	suite.engine.Stop()

	_, err := suite.engine.PushBar(context.Background(), suite.bar(0, "10"))
	suite.True(errors.HasCode(err, errors.ErrCodeEngineStopped))

	suite.engine = nil
}
