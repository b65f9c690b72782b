package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies a class of application error.
type ErrorCode string

const (
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

	// Session and key errors
	ErrCodeInvalidKey     ErrorCode = "INVALID_KEY"
	ErrCodeSessionExpired ErrorCode = "SESSION_EXPIRED"
	ErrCodeKeyRevoked     ErrorCode = "KEY_REVOKED"

	// Delivery errors
	ErrCodeFetchFailed     ErrorCode = "FETCH_FAILED"
	ErrCodeTransportFailed ErrorCode = "TRANSPORT_FAILED"

	// Backing services
	ErrCodeStoreError  ErrorCode = "STORE_ERROR"
	ErrCodeTelegramAPI ErrorCode = "TELEGRAM_API_ERROR"
)

// Sentinels usable with errors.Is; matching is done by code.
var (
	ErrInvalidKey     = &AppError{Code: ErrCodeInvalidKey, Message: "activation key not recognised"}
	ErrSessionExpired = &AppError{Code: ErrCodeSessionExpired, Message: "no active session"}
	ErrKeyRevoked     = &AppError{Code: ErrCodeKeyRevoked, Message: "activation key no longer resolves"}
	ErrFetchFailed    = &AppError{Code: ErrCodeFetchFailed, Message: "image fetch failed"}
	ErrTransport      = &AppError{Code: ErrCodeTransportFailed, Message: "transport call failed"}
	ErrStore          = &AppError{Code: ErrCodeStoreError, Message: "record store failure"}
)

// AppError is a typed application error.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Stack     []string               `json:"stack,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail attaches a detail value to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Stack:     getStackTrace(),
	}
}

// Wrap wraps err with a code and message.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf is Wrap with formatting.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func getStackTrace() []string {
	var stack []string
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), "internal/common/errors") {
			continue
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		if len(stack) >= 10 {
			break
		}
	}
	return stack
}

// NewFetchError reports a failed image download.
func NewFetchError(url string, err error) *AppError {
	return Wrap(err, ErrCodeFetchFailed, "Image fetch failed").
		WithDetail("url", url)
}

// NewTransportError reports a failed chat transport call.
func NewTransportError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeTransportFailed, fmt.Sprintf("Transport operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// NewStoreError reports a failed record store operation.
func NewStoreError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStoreError, fmt.Sprintf("Record store operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// NewTelegramAPIError reports a Bot API response with ok=false.
func NewTelegramAPIError(method, description string) *AppError {
	return New(ErrCodeTelegramAPI, fmt.Sprintf("Telegram API error in %s: %s", method, description)).
		WithDetail("method", method)
}

// AsAppError extracts an *AppError from err.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
