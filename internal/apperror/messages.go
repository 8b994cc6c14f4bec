package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeServiceTimeout:    "Service request timeout",
	CodeRateLimitExceeded: "Rate limit exceeded",

	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	CodeSourceUnavailable: "Price source unavailable",
	CodePriceNotFound:     "No price available",
	CodeUnknownSource:     "Unknown price source",

	CodeDivisionByZero: "Division by zero",
	CodeUndefinedRatio: "Collateral ratio is undefined for a zero mint value",
	CodeInvalidDecimal: "Invalid decimal value",

	CodeDuplicateBucket: "Candle bucket already sealed",
	CodePersistFailure:  "Failed to persist candle",
	CodeInvalidInterval: "Unsupported candle interval",
	CodeStoreFailure:    "History store failure",

	CodePositionNotFound: "Position not found",

	CodeChainNotConfigured: "Chain is not configured",
	CodeChainConnection:    "Failed to connect to chain RPC",
	CodeContractCallFailed: "Smart contract call failed",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	CodeCircuitOpen: "Circuit breaker is open",
}
