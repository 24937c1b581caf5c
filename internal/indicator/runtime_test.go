package indicator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/rzcastilho/trading-strategy-sub000/internal/logger"
	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

const indicatorTypeFlaky types.IndicatorType = "flaky"

// flakyIndicator streams negative update counts until the configured update
// fails, and reports the bar count from batch computation. The sign of the
// produced value tells the test which path computed it.
type flakyIndicator struct {
	failAt      int
	warmUpdates int
	updates     int
	batchCalls  int
}

func (f *flakyIndicator) Type() types.IndicatorType {
	return indicatorTypeFlaky
}

func (f *flakyIndicator) ComputeBatch(_ context.Context, _ Params, bars []types.Bar) (Value, error) {
	f.batchCalls++

	return Value{Latest: decimal.NewFromInt(int64(len(bars)))}, nil
}

func (f *flakyIndicator) InitState(_ Params) (State, error) {
	return &struct{}{}, nil
}

func (f *flakyIndicator) UpdateState(state State, bar types.Bar) (State, Value, error) {
	f.updates++

	if f.updates <= f.warmUpdates {
		return state, Value{}, errors.NewInsufficientDataErrorf(f.warmUpdates+1, f.updates, bar.Symbol,
			"flaky warming up")
	}

	if f.failAt > 0 && f.updates == f.failAt {
		return nil, Value{}, errors.New(errors.ErrCodeIndicatorCalculation, "flaky update blew up")
	}

	return state, Value{Latest: decimal.NewFromInt(int64(f.updates)).Neg()}, nil
}

type RuntimeTestSuite struct {
	suite.Suite
}

func TestRuntimeSuite(t *testing.T) {
	suite.Run(t, new(RuntimeTestSuite))
}

func (suite *RuntimeTestSuite) flakyRuntime(flaky *flakyIndicator) *Runtime {
	registry := NewRegistry()
	suite.Require().NoError(registry.RegisterIndicator(flaky))

	defs := []types.IndicatorDefinition{{Name: "flaky", Type: indicatorTypeFlaky}}

	runtime, err := NewRuntime(registry, defs, 0, logger.NewNopLogger())
	suite.Require().NoError(err)

	return runtime
}

func (suite *RuntimeTestSuite) TestStreamingFailureFallsBackPermanently() {
	flaky := &flakyIndicator{failAt: 3}
	runtime := suite.flakyRuntime(flaky)

	closes := []string{"1", "2", "3", "4", "5", "6"}
	bars := closesToBars(closes...)

	for i := 1; i <= len(bars); i++ {
		values := runtime.OnBar(context.Background(), bars[:i])

		value, ok := values["flaky"]
		suite.Require().True(ok, "tick %d should produce a value", i)

		switch {
		case i < 3:
			// Streaming path: negative update count.
			suite.True(value.Latest.Equal(decimal.NewFromInt(int64(i)).Neg()),
				"tick %d expected streaming value, got %s", i, value.Latest)
		default:
			// Batch fallback from the failing tick on: bar count.
			suite.True(value.Latest.Equal(decimal.NewFromInt(int64(i))),
				"tick %d expected batch value, got %s", i, value.Latest)
		}
	}

	// Streaming was attempted exactly until the failure and never retried.
	suite.Equal(3, flaky.updates)
	suite.Equal(4, flaky.batchCalls)
}

func (suite *RuntimeTestSuite) TestWarmUpKeepsStreamingAlive() {
	flaky := &flakyIndicator{warmUpdates: 2}
	runtime := suite.flakyRuntime(flaky)

	bars := closesToBars("1", "2", "3", "4")

	values := runtime.OnBar(context.Background(), bars[:1])
	suite.Empty(values)

	values = runtime.OnBar(context.Background(), bars[:2])
	suite.Empty(values)

	// Warm-up is not a failure: no batch fallback happened and the
	// streaming state survived.
	suite.Equal(0, flaky.batchCalls)

	values = runtime.OnBar(context.Background(), bars[:3])
	suite.Require().Contains(values, "flaky")
	suite.True(values["flaky"].Latest.Equal(decimal.NewFromInt(-3)))
	suite.Equal(0, flaky.batchCalls)
}

func (suite *RuntimeTestSuite) TestAbandonedStageConsumesNothing() {
	registry := NewRegistry()
	suite.Require().NoError(registry.RegisterIndicator(NewSMA()))

	defs := []types.IndicatorDefinition{
		{Name: "sma_2", Type: types.IndicatorTypeSMA, Params: map[string]any{"period": 2}},
	}

	runtime, err := NewRuntime(registry, defs, 0, logger.NewNopLogger())
	suite.Require().NoError(err)

	bars := closesToBars("10", "20")
	runtime.OnBar(context.Background(), bars[:1])

	tick := runtime.Stage(context.Background(), bars)
	suite.Require().Contains(tick.Values(), "sma_2")
	suite.True(tick.Values()["sma_2"].Latest.Equal(decimal.NewFromInt(15)))

	// Dropped, not committed: the runtime still reports the warm-up state.
	suite.Empty(runtime.Latest())
	suite.Empty(runtime.ContextValues())

	// Reprocessing the bar consumes it exactly once; a leaked staged update
	// would have advanced the window twice and skewed the average.
	values := runtime.OnBar(context.Background(), bars)
	suite.Require().Contains(values, "sma_2")
	suite.True(values["sma_2"].Latest.Equal(decimal.NewFromInt(15)))
}

func (suite *RuntimeTestSuite) TestBatchRuntimeNeverStreams() {
	flaky := &flakyIndicator{failAt: 1}
	registry := NewRegistry()
	suite.Require().NoError(registry.RegisterIndicator(flaky))

	defs := []types.IndicatorDefinition{{Name: "flaky", Type: indicatorTypeFlaky}}

	runtime, err := NewBatchRuntime(registry, defs, 0, logger.NewNopLogger())
	suite.Require().NoError(err)

	bars := closesToBars("1", "2", "3")
	for i := 1; i <= len(bars); i++ {
		values := runtime.OnBar(context.Background(), bars[:i])
		suite.Require().Contains(values, "flaky")
	}

	suite.Equal(0, flaky.updates)
	suite.Equal(3, flaky.batchCalls)
}

func (suite *RuntimeTestSuite) TestFailureDoesNotAbortOtherIndicators() {
	flaky := &flakyIndicator{failAt: 1}
	registry := NewRegistry()
	suite.Require().NoError(registry.RegisterIndicator(flaky))
	suite.Require().NoError(registry.RegisterIndicator(NewSMA()))

	defs := []types.IndicatorDefinition{
		{Name: "flaky", Type: indicatorTypeFlaky},
		{Name: "sma_2", Type: types.IndicatorTypeSMA, Params: map[string]any{"period": 2}},
	}

	runtime, err := NewRuntime(registry, defs, 0, logger.NewNopLogger())
	suite.Require().NoError(err)

	bars := closesToBars("10", "20")

	runtime.OnBar(context.Background(), bars[:1])
	values := runtime.OnBar(context.Background(), bars)

	suite.Contains(values, "flaky")
	suite.Require().Contains(values, "sma_2")
	suite.True(values["sma_2"].Latest.Equal(decimal.NewFromInt(15)))
}

func (suite *RuntimeTestSuite) TestContextValuesCarryPreviousTick() {
	registry := NewDefaultRegistry()
	defs := []types.IndicatorDefinition{
		{Name: "sma_fast", Type: types.IndicatorTypeSMA, Params: map[string]any{"period": 2}},
	}

	runtime, err := NewRuntime(registry, defs, 0, logger.NewNopLogger())
	suite.Require().NoError(err)

	bars := closesToBars("10", "20", "30")

	runtime.OnBar(context.Background(), bars[:2])
	runtime.OnBar(context.Background(), bars)

	values := runtime.ContextValues()
	suite.Require().Contains(values, "sma_fast")
	suite.Require().Contains(values, "sma_fast"+types.PrevSuffix)
	suite.True(values["sma_fast"].Equal(decimal.NewFromInt(25)))
	suite.True(values["sma_fast"+types.PrevSuffix].Equal(decimal.NewFromInt(15)))
}

func (suite *RuntimeTestSuite) TestContextValuesFlattenComponents() {
	registry := NewDefaultRegistry()
	defs := []types.IndicatorDefinition{
		{Name: "bb", Type: types.IndicatorTypeBollingerBands, Params: map[string]any{"period": 2}},
	}

	runtime, err := NewRuntime(registry, defs, 0, logger.NewNopLogger())
	suite.Require().NoError(err)

	bars := closesToBars("100", "100", "100")

	runtime.OnBar(context.Background(), bars[:2])
	runtime.OnBar(context.Background(), bars)

	values := runtime.ContextValues()
	suite.Contains(values, "bb")
	suite.Contains(values, "bb_upper")
	suite.Contains(values, "bb_lower")
	suite.Contains(values, "bb_upper"+types.PrevSuffix)
	suite.Contains(values, "bb_lower"+types.PrevSuffix)
}

func (suite *RuntimeTestSuite) TestDuplicateNameRejected() {
	registry := NewDefaultRegistry()
	defs := []types.IndicatorDefinition{
		{Name: "sma", Type: types.IndicatorTypeSMA},
		{Name: "sma", Type: types.IndicatorTypeEMA},
	}

	_, err := NewRuntime(registry, defs, 0, logger.NewNopLogger())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *RuntimeTestSuite) TestUnknownTypeRejected() {
	registry := NewDefaultRegistry()
	defs := []types.IndicatorDefinition{
		{Name: "mystery", Type: types.IndicatorType("vwap")},
	}

	_, err := NewRuntime(registry, defs, 0, logger.NewNopLogger())
	suite.True(errors.HasCode(err, errors.ErrCodeIndicatorNotFound))
}

func (suite *RuntimeTestSuite) TestInvalidParamsRejectedAtLoad() {
	registry := NewDefaultRegistry()
	defs := []types.IndicatorDefinition{
		{Name: "sma", Type: types.IndicatorTypeSMA, Params: map[string]any{"period": -1}},
	}

	_, err := NewRuntime(registry, defs, 0, logger.NewNopLogger())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *RuntimeTestSuite) TestBatchTimeoutApplied() {
	registry := NewDefaultRegistry()
	defs := []types.IndicatorDefinition{
		{Name: "macd", Type: types.IndicatorTypeMACD},
	}

	runtime, err := NewRuntime(registry, defs, time.Millisecond, logger.NewNopLogger())
	suite.Require().NoError(err)

	// The deadline propagates; the computation is fast enough that this
	// simply exercises the timeout wiring.
	values := runtime.OnBar(context.Background(), closesToBars("1", "2", "3"))
	suite.NotContains(values, "macd")
}

func (suite *RuntimeTestSuite) TestEmptyHistoryReturnsNil() {
	registry := NewDefaultRegistry()
	runtime, err := NewRuntime(registry, nil, 0, logger.NewNopLogger())
	suite.Require().NoError(err)

	suite.Nil(runtime.OnBar(context.Background(), nil))
}
