package application

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError carries an orchestration-level failure with its HTTP
// mapping.
type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeGatewayUnavailable    = "GATEWAY_UNAVAILABLE"
	ErrCodeGatewayRejected       = "GATEWAY_REJECTED"
	ErrCodePreconditionViolation = "PRECONDITION_VIOLATION"
	ErrCodeInvalidInput          = "INVALID_INPUT"
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// NewGatewayUnavailableError wraps a transport failure talking to the
// gateway. Retryable; no order state was touched.
func NewGatewayUnavailableError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeGatewayUnavailable,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewGatewayRejectedError wraps a NOK response. The gateway's raw return
// message is appended for back-office diagnostics.
func NewGatewayRejectedError(message, returnMessage string, err error) *ServiceError {
	if returnMessage != "" {
		message = message + ": " + returnMessage
	}
	return &ServiceError{
		Code:       ErrCodeGatewayRejected,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

// NewPreconditionError reports an operation refused before any network
// call.
func NewPreconditionError(reason string, err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePreconditionViolation,
		Message:    reason,
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewInvalidInputError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewNotFoundError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeNotFound,
		Message:    message,
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}

func NewInternalError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsServiceError(err error) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr)
}

// ToHTTPStatus maps an error to its response status code.
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// ToErrorCode maps an error to its machine-readable code.
func ToErrorCode(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return ErrCodeInternal
}
