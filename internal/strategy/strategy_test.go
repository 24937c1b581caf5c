package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rzcastilho/trading-strategy-sub000/internal/indicator"
	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/internal/version"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

const validYAML = `
name: rsi-reversal
symbol: BTCUSDT
timeframe: 1m
indicators:
  - name: rsi_14
    type: rsi
    params:
      period: 14
entry: "rsi_14 < 30"
exit: "rsi_14 > 70 or unrealized_pnl_pct < -5"
sizing_policy: percentage
sizing_value: 0.1
`

type StrategyTestSuite struct {
	suite.Suite

	registry indicator.Registry
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

func (suite *StrategyTestSuite) SetupTest() {
	suite.registry = indicator.NewDefaultRegistry()
}

func (suite *StrategyTestSuite) definition() *types.StrategyDefinition {
	def, err := Parse([]byte(validYAML))
	suite.Require().NoError(err)

	return def
}

func (suite *StrategyTestSuite) TestParseAppliesDefaults() {
	def := suite.definition()

	suite.Equal("rsi-reversal", def.Name)
	suite.Equal(version.SchemaVersion, def.SchemaVersion)
	suite.Equal(types.DirectionLong, def.Direction)
	suite.Require().Len(def.Indicators, 1)
	suite.Equal(types.IndicatorTypeRSI, def.Indicators[0].Type)
}

func (suite *StrategyTestSuite) TestParseRejectsMalformedYAML() {
	_, err := Parse([]byte("name: [unclosed"))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *StrategyTestSuite) TestLoadFromFile() {
	path := filepath.Join(suite.T().TempDir(), "strategy.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte(validYAML), 0o644))

	def, err := Load(path)
	suite.Require().NoError(err)
	suite.Equal("rsi-reversal", def.Name)
}

func (suite *StrategyTestSuite) TestLoadMissingFile() {
	_, err := Load(filepath.Join(suite.T().TempDir(), "absent.yaml"))
	suite.True(errors.HasCode(err, errors.ErrCodeDataNotFound))
}

func (suite *StrategyTestSuite) TestValidateAcceptsValidDefinition() {
	suite.NoError(Validate(suite.definition(), suite.registry))
}

func (suite *StrategyTestSuite) TestValidateNilDefinition() {
	err := Validate(nil, suite.registry)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyNotLoaded))
}

func (suite *StrategyTestSuite) TestValidateRejectsUndefinedVariable() {
	def := suite.definition()
	def.Entry = "momentum > 0"

	err := Validate(def, suite.registry)
	suite.Require().Error(err)
	suite.True(errors.IsUndefinedVariablesError(err))
}

func (suite *StrategyTestSuite) TestValidatePositionVariablesOnlyInCloseExpressions() {
	def := suite.definition()
	def.Entry = "unrealized_pnl > 0"

	suite.True(errors.IsUndefinedVariablesError(Validate(def, suite.registry)))
}

func (suite *StrategyTestSuite) TestValidateAllowsPrevAndComponentNames() {
	def := suite.definition()
	def.Indicators = append(def.Indicators, types.IndicatorDefinition{
		Name:   "macd_x",
		Type:   types.IndicatorTypeMACD,
		Params: map[string]any{"fast_period": 12, "slow_period": 26, "signal_period": 9},
	})
	def.Entry = "macd_x_prev < macd_x_signal_prev and macd_x > macd_x_signal"

	suite.NoError(Validate(def, suite.registry))
}

func (suite *StrategyTestSuite) TestValidateRejectsUnknownParamKeys() {
	def := suite.definition()
	def.Indicators = append(def.Indicators, types.IndicatorDefinition{
		Name: "macd_x",
		Type: types.IndicatorTypeMACD,
		// "fast" is a typo for "fast_period"; silently ignoring it would run
		// the indicator with its default periods.
		Params: map[string]any{"fast": 5, "slow_period": 26, "signal_period": 9},
	})

	err := Validate(def, suite.registry)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
	suite.Contains(err.Error(), "unknown parameter")
	suite.Contains(err.Error(), "fast")
}

func (suite *StrategyTestSuite) TestExampleStrategiesValidate() {
	paths, err := filepath.Glob(filepath.Join("..", "..", "examples", "strategy", "*.yaml"))
	suite.Require().NoError(err)
	suite.Require().NotEmpty(paths)

	for _, path := range paths {
		def, err := Load(path)
		suite.Require().NoError(err, path)
		suite.NoError(Validate(def, suite.registry), path)
	}
}

func (suite *StrategyTestSuite) TestValidateRejectsUnknownIndicatorType() {
	def := suite.definition()
	def.Indicators[0].Type = "vwap"

	err := Validate(def, suite.registry)
	suite.True(errors.HasCode(err, errors.ErrCodeIndicatorNotFound))
}

func (suite *StrategyTestSuite) TestValidateRejectsDuplicateIndicatorNames() {
	def := suite.definition()
	def.Indicators = append(def.Indicators, def.Indicators[0])

	err := Validate(def, suite.registry)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *StrategyTestSuite) TestValidateRejectsIncompatibleSchema() {
	def := suite.definition()
	def.SchemaVersion = "9.0.0"

	err := Validate(def, suite.registry)
	suite.True(errors.HasCode(err, errors.ErrCodeSchemaVersion))
}

func (suite *StrategyTestSuite) TestValidateReportsAllErrorsTogether() {
	def := suite.definition()
	def.SchemaVersion = "9.0.0"
	def.Entry = "momentum > 0"
	def.Exit = "exhaustion > 1"

	err := Validate(def, suite.registry)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSchemaVersion))
	suite.True(errors.IsUndefinedVariablesError(err))
	suite.Contains(err.Error(), "momentum")
	suite.Contains(err.Error(), "exhaustion")
}

func (suite *StrategyTestSuite) TestValidateRejectsMissingRequiredFields() {
	def := suite.definition()
	def.Symbol = ""

	err := Validate(def, suite.registry)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *StrategyTestSuite) TestValidateRejectsUnknownDirection() {
	def := suite.definition()
	def.Direction = "sideways"

	err := Validate(def, suite.registry)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *StrategyTestSuite) TestDefinitionJSONSchema() {
	schema, err := DefinitionJSONSchema()
	suite.Require().NoError(err)
	suite.Contains(schema, "sizing_policy")
	suite.Contains(schema, "percentage")
	suite.Contains(schema, "risk_based")
}
