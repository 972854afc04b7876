package apierror

import (
	"fmt"
	"net/http"
)

const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeUnprocessableEntity = "UNPROCESSABLE_ENTITY"
	CodeInternal            = "INTERNAL_ERROR"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel the error was built from, so callers can
// still match it with errors.Is after it crossed a layer boundary.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Wrap builds an APIError around cause.
func Wrap(cause error, code string, message string, status int) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: status, cause: cause}
}

func Unauthorized(cause error, message string) *APIError {
	return Wrap(cause, CodeUnauthorized, message, http.StatusUnauthorized)
}

func Forbidden(cause error, message string) *APIError {
	return Wrap(cause, CodeForbidden, message, http.StatusForbidden)
}

func NotFound(cause error, message string, details string) *APIError {
	err := Wrap(cause, CodeNotFound, message, http.StatusNotFound)
	err.Details = details
	return err
}

func Unprocessable(cause error, message string, details string) *APIError {
	err := Wrap(cause, CodeUnprocessableEntity, message, http.StatusUnprocessableEntity)
	err.Details = details
	return err
}

func BadRequest(message string, details string) *APIError {
	return New(CodeBadRequest, message, details, http.StatusBadRequest)
}
