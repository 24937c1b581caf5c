package indicator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

type MACDTestSuite struct {
	suite.Suite

	macd *MACD
}

func TestMACDSuite(t *testing.T) {
	suite.Run(t, new(MACDTestSuite))
}

func (suite *MACDTestSuite) SetupTest() {
	suite.macd = NewMACD()
}

func (suite *MACDTestSuite) params() Params {
	return Params{"fast_period": 2, "slow_period": 3, "signal_period": 2}
}

func (suite *MACDTestSuite) TestBatchAgainstComponentSeries() {
	bars := closesToBars("1", "2", "3", "4", "5", "6", "7")

	value, err := suite.macd.ComputeBatch(context.Background(), suite.params(), bars)
	suite.Require().NoError(err)

	fastSeries, err := emaSeries(2, bars)
	suite.Require().NoError(err)
	slowSeries, err := emaSeries(3, bars)
	suite.Require().NoError(err)

	expected := fastSeries[len(fastSeries)-1].Sub(slowSeries[len(slowSeries)-1])
	suite.True(value.Latest.Equal(expected), "macd %s != %s", value.Latest, expected)

	signal, ok := value.Components["signal"]
	suite.Require().True(ok)
	hist, ok := value.Components["hist"]
	suite.Require().True(ok)
	suite.True(hist.Equal(value.Latest.Sub(signal)))
}

func (suite *MACDTestSuite) TestBatchRequiresSignalSeedWindow() {
	// slow + signal - 1 = 4 bars required.
	_, err := suite.macd.ComputeBatch(context.Background(), suite.params(), closesToBars("1", "2", "3"))
	suite.Require().Error(err)
	suite.True(errors.IsInsufficientDataError(err))

	var insufficientErr *errors.InsufficientDataError
	suite.Require().ErrorAs(err, &insufficientErr)
	suite.Equal(4, insufficientErr.Required)
}

func (suite *MACDTestSuite) TestBatchRejectsFastNotShorterThanSlow() {
	params := Params{"fast_period": 5, "slow_period": 5}

	_, err := suite.macd.ComputeBatch(context.Background(), params, closesToBars("1", "2", "3", "4", "5"))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *MACDTestSuite) TestNoStreamingSupport() {
	_, streaming := Indicator(suite.macd).(StreamingIndicator)
	suite.False(streaming)
}
