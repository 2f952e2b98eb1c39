package apperrors

import (
	"fmt"
	"net/http"
)

// ErrorType is the stable, HTTP-independent error taxonomy callers switch on.
type ErrorType string

const (
	ErrValidation          ErrorType = "VALIDATION"
	ErrNotFound            ErrorType = "NOT_FOUND"
	ErrInsufficientFunds   ErrorType = "INSUFFICIENT_FUNDS"
	ErrAllowanceRequired   ErrorType = "ALLOWANCE_REQUIRED"
	ErrSlippageOrLiquidity ErrorType = "SLIPPAGE_OR_LIQUIDITY"
	ErrExpired             ErrorType = "EXPIRED"
	ErrNonceStale          ErrorType = "NONCE_STALE"
	ErrDeviceRejected      ErrorType = "DEVICE_REJECTED"
	ErrDeviceLocked        ErrorType = "DEVICE_LOCKED"
	ErrDeviceWrongApp      ErrorType = "DEVICE_WRONG_APP"
	ErrAuthFailed          ErrorType = "AUTH_FAILED"
	ErrRiskReject          ErrorType = "RISK_REJECT"
	ErrReadOnly            ErrorType = "READ_ONLY"
	ErrInternal            ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error envelope returned by every handler.
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int        `json:"-"`
	Retryable  bool       `json:"retryable,omitempty"`
	Cause      error      `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Retryable:  mapTypeToRetryable(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewValidation(msg string) *AppError        { return New(ErrValidation, msg, nil) }
func NewNotFound(msg string) *AppError          { return New(ErrNotFound, msg, nil) }
func NewInsufficientFunds(msg string) *AppError { return New(ErrInsufficientFunds, msg, nil) }
func NewAllowanceRequired(msg string) *AppError { return New(ErrAllowanceRequired, msg, nil) }
func NewSlippageOrLiquidity(msg string) *AppError {
	return New(ErrSlippageOrLiquidity, msg, nil)
}
func NewExpired(msg string) *AppError        { return New(ErrExpired, msg, nil) }
func NewNonceStale(msg string) *AppError     { return New(ErrNonceStale, msg, nil) }
func NewDeviceRejected(msg string) *AppError { return New(ErrDeviceRejected, msg, nil) }
func NewDeviceLocked(msg string) *AppError   { return New(ErrDeviceLocked, msg, nil) }
func NewDeviceWrongApp(msg string) *AppError { return New(ErrDeviceWrongApp, msg, nil) }
func NewRiskReject(msg string) *AppError     { return New(ErrRiskReject, msg, nil) }
func NewReadOnly(msg string) *AppError       { return New(ErrReadOnly, msg, nil) }

// Wrap lifts a plain error into an *AppError, preserving one that is already typed.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrValidation, ErrInsufficientFunds, ErrAllowanceRequired, ErrSlippageOrLiquidity,
		ErrDeviceRejected, ErrDeviceLocked, ErrDeviceWrongApp, ErrRiskReject:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrReadOnly, ErrExpired:
		return http.StatusServiceUnavailable
	case ErrNonceStale:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToRetryable(t ErrorType) bool {
	switch t {
	case ErrNonceStale, ErrExpired:
		return true
	default:
		return false
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrAllowanceRequired:
		return "Submit an approve transaction for the named spender and retry."
	case ErrNonceStale:
		return "Retry the request; the nonce cache has been invalidated."
	case ErrExpired:
		return "Refresh the quote and retry."
	case ErrRiskReject:
		return "Check order parameters against configured risk limits."
	case ErrAuthFailed:
		return "Check the API key used for this request."
	default:
		return ""
	}
}
