package rest

import (
	"github.com/dot-do/gateway/internal/validate"
)

// Wire error codes and their HTTP statuses.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeBadRequest       = "BAD_REQUEST"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodePaymentRequired  = "PAYMENT_REQUIRED"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeAuthRequired     = "AUTH_REQUIRED"
	CodeInvalidToken     = "INVALID_TOKEN"
)

var statusForCode = map[string]int{
	CodeValidation:       422,
	CodeBadRequest:       400,
	CodeNotFound:         404,
	CodeUnauthorized:     401,
	CodeForbidden:        403,
	CodeConflict:         409,
	CodePaymentRequired:  402,
	CodeMethodNotAllowed: 405,
	CodeRateLimited:      429,
	CodeInternal:         500,
	CodeAuthRequired:     401,
	CodeInvalidToken:     401,
}

// APIError is an error that maps directly onto the envelope's error object.
type APIError struct {
	Code           string
	Status         int
	Message        string
	Fields         []validate.FieldError
	YourVersion    any
	CurrentVersion any
	Feature        string
	RetryAfter     int
}

func (e *APIError) Error() string { return e.Message }

// NewAPIError builds an APIError for a known code, resolving the status.
func NewAPIError(code, message string) *APIError {
	status, ok := statusForCode[code]
	if !ok {
		code, status = CodeInternal, 500
	}
	return &APIError{Code: code, Status: status, Message: message}
}

// ErrNotFound is a 404 with the given message.
func ErrNotFound(message string) *APIError { return NewAPIError(CodeNotFound, message) }

// ErrBadRequest is a 400 with the given message.
func ErrBadRequest(message string) *APIError { return NewAPIError(CodeBadRequest, message) }

// ErrValidation is a 422 carrying every failing field.
func ErrValidation(fields []validate.FieldError) *APIError {
	e := NewAPIError(CodeValidation, "Validation failed")
	e.Fields = fields
	return e
}

// errObject renders the error for the envelope.
func (e *APIError) errObject() map[string]any {
	obj := map[string]any{
		"message": e.Message,
		"code":    e.Code,
		"status":  e.Status,
	}
	if len(e.Fields) > 0 {
		obj["fields"] = e.Fields
	}
	if e.YourVersion != nil {
		obj["yourVersion"] = e.YourVersion
	}
	if e.CurrentVersion != nil {
		obj["currentVersion"] = e.CurrentVersion
	}
	if e.Feature != "" {
		obj["feature"] = e.Feature
	}
	if e.RetryAfter > 0 {
		obj["retryAfter"] = e.RetryAfter
	}
	return obj
}
