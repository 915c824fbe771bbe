package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode identifies a class of application error.
type ErrorCode string

const (
	// General errors (1000-1999)
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT"

	// Cache errors (3000-3999)
	ErrCodeCacheConnection ErrorCode = "CACHE_CONNECTION_ERROR"
	ErrCodeCacheOperation  ErrorCode = "CACHE_OPERATION_ERROR"
	ErrCodeCacheMiss       ErrorCode = "CACHE_MISS"

	// Broker gateway errors (5000-5999) — spec §7, §9
	ErrCodeBrokerUnavailable  ErrorCode = "BROKER_UNAVAILABLE"
	ErrCodeBrokerTransient    ErrorCode = "BROKER_TRANSIENT_ERROR"
	ErrCodeBrokerPermanent    ErrorCode = "BROKER_PERMANENT_ERROR"
	ErrCodeInvalidPrice       ErrorCode = "INVALID_PRICE"
	ErrCodeOrderInvalid       ErrorCode = "ORDER_INVALID"
	ErrCodeOrderExecution     ErrorCode = "ORDER_EXECUTION_ERROR"
	ErrCodePositionNotFound   ErrorCode = "POSITION_NOT_FOUND"
	ErrCodeSymbolUnmapped     ErrorCode = "SYMBOL_UNMAPPED"

	// Tracker errors (6000-6999) — spec §4.3
	ErrCodeTrackerConflict       ErrorCode = "TRACKER_CONFLICT"
	ErrCodeRecoveryChainTooDeep  ErrorCode = "RECOVERY_CHAIN_TOO_DEEP"

	// Arbitrage & risk errors (7000-7999) — spec §4.4, §9
	ErrCodeTriangleInvalid   ErrorCode = "TRIANGLE_INVALID"
	ErrCodeRateLimited       ErrorCode = "RATE_LIMITED"
	ErrCodeCircuitBreaker    ErrorCode = "CIRCUIT_BREAKER_TRIGGERED"
	ErrCodeRiskLimitExceeded ErrorCode = "RISK_LIMIT_EXCEEDED"

	// Market/correlation data errors (8000-8999)
	ErrCodeMarketDataUnavailable ErrorCode = "MARKET_DATA_UNAVAILABLE"
	ErrCodeMarketDataTimeout    ErrorCode = "MARKET_DATA_TIMEOUT"
)

// ErrorSeverity 定义错误严重程度
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// AppError 应用错误结构
type AppError struct {
	Code      ErrorCode     `json:"code"`
	Message   string        `json:"message"`
	Details   string        `json:"details,omitempty"`
	Severity  ErrorSeverity `json:"severity"`
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error         `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code an operator-facing surface would
// report for this error. The engine itself exposes no HTTP API; this
// mapping exists so the metrics/alerting layer can classify severity the
// same way the teacher's API layer did.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeNotFound, ErrCodePositionNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidInput, ErrCodeOrderInvalid, ErrCodeTriangleInvalid:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeTrackerConflict:
		return http.StatusConflict
	case ErrCodeTimeout, ErrCodeMarketDataTimeout:
		return http.StatusRequestTimeout
	case ErrCodeRateLimit, ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeRiskLimitExceeded, ErrCodeCircuitBreaker:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// NewAppError 创建新的应用错误
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	severity := getSeverityByCode(code)
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now(),
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// NewAppErrorWithDetails 创建带详细信息的应用错误
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	err := NewAppError(code, message, cause)
	err.Details = details
	return err
}

// WithContext 添加上下文信息
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRequestID 添加请求ID
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// WithUserID 添加用户ID
func (e *AppError) WithUserID(userID string) *AppError {
	e.UserID = userID
	return e
}

// getSeverityByCode determines the default severity for an error code.
func getSeverityByCode(code ErrorCode) ErrorSeverity {
	switch code {
	case ErrCodeInternal, ErrCodeBrokerUnavailable:
		return SeverityCritical
	case ErrCodeOrderExecution, ErrCodeRiskLimitExceeded, ErrCodeCircuitBreaker,
		ErrCodeBrokerPermanent:
		return SeverityHigh
	case ErrCodeCacheConnection, ErrCodeCacheOperation,
		ErrCodeMarketDataUnavailable, ErrCodeTrackerConflict:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// IsRetryable reports whether the failed operation is safe to retry. The
// broker circuit breaker and retry helper do not consult it.
func (e *AppError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeTimeout, ErrCodeCacheConnection,
		ErrCodeBrokerTransient, ErrCodeMarketDataTimeout:
		return true
	default:
		return false
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Error     *AppError `json:"error"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, path string) *ErrorResponse {
	return &ErrorResponse{
		Error:     err,
		Success:   false,
		Timestamp: time.Now(),
		Path:      path,
	}
}

// Common predefined errors.
var (
	ErrInternalServer = NewAppError(ErrCodeInternal, "internal error", nil)
	ErrInvalidInput   = NewAppError(ErrCodeInvalidInput, "invalid input parameters", nil)
	ErrNotFound       = NewAppError(ErrCodeNotFound, "resource not found", nil)
	ErrTimeout        = NewAppError(ErrCodeTimeout, "operation timed out", nil)
	ErrRateLimit      = NewAppError(ErrCodeRateLimit, "rate limit exceeded", nil)
)

// WrapError 包装标准错误为应用错误
func WrapError(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	
	// 如果已经是AppError，直接返回
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	
	return NewAppError(code, message, err)
}

// IsAppError 检查是否为应用错误
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return nil
}