package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeMalformedResult      = "MALFORMED_RESULT"
	ErrCodeUnknownMethod        = "UNKNOWN_METHOD"
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrCodeOrderNotFound        = "ORDER_NOT_FOUND"
	ErrCodeTransactionNotFound  = "TRANSACTION_NOT_FOUND"
	ErrCodeTokenNotFound        = "TOKEN_NOT_FOUND"
)

func NewMalformedResultError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMalformedResult,
		Message: fmt.Sprintf("gateway result is missing %s", field),
	}
}

func NewUnknownMethodError(code string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnknownMethod,
		Message: fmt.Sprintf("unknown payment method %q", code),
	}
}

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewOrderNotFoundError(orderID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeOrderNotFound,
		Message: fmt.Sprintf("order %s not found", orderID),
	}
}

func NewTransactionNotFoundError(ref string) *DomainError {
	return &DomainError{
		Code:    ErrCodeTransactionNotFound,
		Message: fmt.Sprintf("transaction %s not found", ref),
	}
}

func NewTokenNotFoundError(customerID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeTokenNotFound,
		Message: fmt.Sprintf("no stored payment token for customer %s", customerID),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
