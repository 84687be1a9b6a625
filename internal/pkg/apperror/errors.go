package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError      ErrorCode = "DATABASE_ERROR"
	ErrCodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrCodeInsufficientFunds  ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeGateway            ErrorCode = "GATEWAY_ERROR"
	ErrCodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// InvalidTransition возвращает ошибку перехода с конкретной причиной.
func InvalidTransition(message string) *AppError {
	return New(ErrCodeInvalidTransition, message)
}

// Conflict возвращает ошибку проигранной гонки.
func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

// Validation возвращает ошибку валидации входных данных.
func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeInvalidTransition:
		return http.StatusConflict
	case ErrCodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case ErrCodeGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или INTERNAL_ERROR для неизвестных ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool {
	return is(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return is(err, ErrCodeForbidden)
}

func IsValidation(err error) bool {
	return is(err, ErrCodeValidation)
}

func IsConflict(err error) bool {
	return is(err, ErrCodeConflict)
}

func IsInvalidTransition(err error) bool {
	return is(err, ErrCodeInvalidTransition)
}

func IsInsufficientFunds(err error) bool {
	return is(err, ErrCodeInsufficientFunds)
}

func IsGateway(err error) bool {
	return is(err, ErrCodeGateway)
}

func IsInvariantViolation(err error) bool {
	return is(err, ErrCodeInvariantViolation)
}

var (
	ErrJobNotFound          = New(ErrCodeNotFound, "заказ не найден")
	ErrProposalNotFound     = New(ErrCodeNotFound, "предложение не найдено")
	ErrContractNotFound     = New(ErrCodeNotFound, "контракт не найден")
	ErrEscrowNotFound       = New(ErrCodeNotFound, "платёж эскроу не найден")
	ErrDisputeNotFound      = New(ErrCodeNotFound, "спор не найден")
	ErrWalletNotFound       = New(ErrCodeNotFound, "кошелёк не найден")
	ErrNotificationNotFound = New(ErrCodeNotFound, "уведомление не найдено")
	ErrUnauthorized         = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden            = New(ErrCodeForbidden, "недостаточно прав")
	ErrInsufficientFunds    = New(ErrCodeInsufficientFunds, "недостаточно средств на кошельке")
	ErrStaleWrite           = New(ErrCodeConflict, "запись была изменена параллельным запросом")
)
