package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeNoImage          ErrorCode = "NO_IMAGE"
	ErrCodeImageTooLarge    ErrorCode = "IMAGE_TOO_LARGE"
	ErrCodeUnsupportedImage ErrorCode = "UNSUPPORTED_IMAGE"
	ErrCodeInvalidID        ErrorCode = "INVALID_ID"

	ErrCodeReceiptNotFound   ErrorCode = "RECEIPT_NOT_FOUND"
	ErrCodeReceiptFinalized  ErrorCode = "RECEIPT_FINALIZED"
	ErrCodeProcessingFailed  ErrorCode = "PROCESSING_FAILED"
	ErrCodeNudgeNotFound     ErrorCode = "NUDGE_NOT_FOUND"
	ErrCodeUnauthenticated   ErrorCode = "UNAUTHENTICATED"
	ErrCodeInvalidCredential ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken      ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired      ErrorCode = "TOKEN_EXPIRED"
	ErrCodeUsernameTaken     ErrorCode = "USERNAME_TAKEN"
	ErrCodeUserNotFound      ErrorCode = "USER_NOT_FOUND"
)

type AppError struct {
	Type       ErrorType `json:"type"`
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
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

// Is matches on Type and Code so that sentinels survive WithCause copies.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithCause returns a copy of e carrying cause. Sentinels are shared values
// and must never be mutated.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrUnauthenticated = NewUnauthorizedError("Unauthorized", ErrCodeUnauthenticated)
	ErrInvalidID       = NewValidationError("Invalid id", ErrCodeInvalidID)
)

// AsAppError unwraps err to an AppError. Anything else becomes an internal
// error with a generic message so no detail leaks to clients.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError("Internal server error", err)
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}{
		Code:    e.StatusCode,
		Message: e.Message,
	})
}
