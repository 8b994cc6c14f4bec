package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeServiceTimeout    Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Price engine error codes
const (
	// Sources
	CodeSourceUnavailable Code = "SOURCE_UNAVAILABLE"
	CodePriceNotFound     Code = "PRICE_NOT_FOUND"
	CodeUnknownSource     Code = "UNKNOWN_SOURCE"

	// Arithmetic
	CodeDivisionByZero Code = "DIVISION_BY_ZERO"
	CodeUndefinedRatio Code = "UNDEFINED_RATIO"
	CodeInvalidDecimal Code = "INVALID_DECIMAL"

	// History
	CodeDuplicateBucket Code = "DUPLICATE_BUCKET"
	CodePersistFailure  Code = "PERSIST_FAILURE"
	CodeInvalidInterval Code = "INVALID_INTERVAL"
	CodeStoreFailure    Code = "STORE_FAILURE"

	// Positions
	CodePositionNotFound Code = "POSITION_NOT_FOUND"

	// Chains
	CodeChainNotConfigured Code = "CHAIN_NOT_CONFIGURED"
	CodeChainConnection    Code = "CHAIN_CONNECTION_FAILED"
	CodeContractCallFailed Code = "CONTRACT_CALL_FAILED"

	// WebSocket
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
