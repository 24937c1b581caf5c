package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidPeriod        ErrorCode = 102
	ErrCodeMissingParameter     ErrorCode = 103
	ErrCodeInvalidTimeframe     ErrorCode = 104
	ErrCodeInvalidSizingPolicy  ErrorCode = 105
	ErrCodeSchemaVersion        ErrorCode = 106

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound     ErrorCode = 200
	ErrCodeEmptyDataSet     ErrorCode = 201
	ErrCodeInsufficientData ErrorCode = 202
	ErrCodeNotReady         ErrorCode = 203

	// Indicator errors (300-399)
	ErrCodeIndicatorNotFound      ErrorCode = 300
	ErrCodeIndicatorAlreadyExists ErrorCode = 301
	ErrCodeIndicatorCalculation   ErrorCode = 302
	ErrCodeStreamingNotSupported  ErrorCode = 303
	ErrCodeComputeTimeout         ErrorCode = 304

	// Expression errors (400-499)
	ErrCodeExpressionSyntax    ErrorCode = 400
	ErrCodeUndefinedVariable   ErrorCode = 401
	ErrCodeUnbalancedParens    ErrorCode = 402
	ErrCodeMalformedOperator   ErrorCode = 403
	ErrCodeNonBooleanResult    ErrorCode = 404
	ErrCodeInvalidNumericValue ErrorCode = 405

	// Signal/Position errors (500-599)
	ErrCodeSignalConflict   ErrorCode = 500
	ErrCodePositionNotFound ErrorCode = 501
	ErrCodePositionClosed   ErrorCode = 502

	// Backtest errors (600-699)
	ErrCodeBacktestNoData       ErrorCode = 600
	ErrCodeBacktestInitFailed   ErrorCode = 601
	ErrCodeBacktestConfigError  ErrorCode = 602
	ErrCodeResultStoreFailed    ErrorCode = 603
	ErrCodeBacktestNoStrategies ErrorCode = 604

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataParseFailed ErrorCode = 701
	ErrCodeInvalidInterval       ErrorCode = 702

	// Engine errors (800-899)
	ErrCodeEngineStopped     ErrorCode = 800
	ErrCodeEngineInitFailed  ErrorCode = 801
	ErrCodeStrategyNotLoaded ErrorCode = 802
)
