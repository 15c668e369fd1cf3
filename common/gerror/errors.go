package gerror

import (
	"errors"
	"net/http"
)

const (
	ErrCodeInternal              Code = "Internal"
	ErrCodeValidationFailed      Code = "ValidationFailed"
	ErrCodeInvalidQueryParameter Code = "InvalidQueryParameter"
	ErrCodeNotFound              Code = "NotFound"
	ErrCodeUnauthorized          Code = "Unauthorized"
	ErrCodeForbidden             Code = "Forbidden"
	ErrCodeAlreadyExists         Code = "AlreadyExists"
	ErrCodeAccountDisabled       Code = "AccountDisabled"
	ErrCodeUnavailable           Code = "Unavailable"
)

// ToError locates an Error in the provided error chain and returns it if it
// matches the provided code. Otherwise, returns nil.
func ToError(err error, code Code) *Error {
	if err == nil {
		return nil
	}
	var gErr Error
	if errors.As(err, &gErr) && gErr.Code() == code {
		return &gErr
	}
	return nil
}

func NewErrInternal() Error {
	return NewError(
		"An internal server error occurred",
		AudienceExternal,
		ErrCodeInternal,
		http.StatusInternalServerError,
		nil,
	)
}

func ToInternal(err error) *Error {
	return ToError(err, ErrCodeInternal)
}

func IsInternal(err error) bool {
	return ToInternal(err) != nil
}

func NewErrValidationFailed(message string) Error {
	return NewError(message, AudienceExternal, ErrCodeValidationFailed, http.StatusBadRequest, nil)
}

func ToValidationFailed(err error) *Error {
	return ToError(err, ErrCodeValidationFailed)
}

func IsValidationFailed(err error) bool {
	return ToValidationFailed(err) != nil
}

func NewErrInvalidQueryParameter(message string) Error {
	return NewError(message, AudienceExternal, ErrCodeInvalidQueryParameter, http.StatusBadRequest, nil)
}

func ToInvalidQueryParameter(err error) *Error {
	return ToError(err, ErrCodeInvalidQueryParameter)
}

func IsInvalidQueryParameter(err error) bool {
	return ToInvalidQueryParameter(err) != nil
}

func NewErrNotFound(message string) Error {
	return NewError(message, AudienceExternal, ErrCodeNotFound, http.StatusNotFound, nil)
}

func ToNotFound(err error) *Error {
	return ToError(err, ErrCodeNotFound)
}

func IsNotFound(err error) bool {
	return ToNotFound(err) != nil
}

func NewErrUnauthorized(message string) Error {
	return NewError(message, AudienceExternal, ErrCodeUnauthorized, http.StatusUnauthorized, nil)
}

func ToUnauthorized(err error) *Error {
	return ToError(err, ErrCodeUnauthorized)
}

func IsUnauthorized(err error) bool {
	return ToUnauthorized(err) != nil
}

// NewErrForbidden is the verbose denial surface of the decision engine and
// the error for business rules that no grant can override.
func NewErrForbidden(message string) Error {
	return NewError(message, AudienceExternal, ErrCodeForbidden, http.StatusForbidden, nil)
}

func ToForbidden(err error) *Error {
	return ToError(err, ErrCodeForbidden)
}

func IsForbidden(err error) bool {
	return ToForbidden(err) != nil
}

func NewErrAlreadyExists(message string) Error {
	return NewError(message, AudienceExternal, ErrCodeAlreadyExists, http.StatusConflict, nil)
}

func ToAlreadyExists(err error) *Error {
	return ToError(err, ErrCodeAlreadyExists)
}

func IsAlreadyExists(err error) bool {
	return ToAlreadyExists(err) != nil
}

func NewErrAccountDisabled() Error {
	return NewError(
		"Account disabled; Please contact your administrator",
		AudienceExternal,
		ErrCodeAccountDisabled,
		http.StatusForbidden,
		nil,
	)
}

func ToAccountDisabled(err error) *Error {
	return ToError(err, ErrCodeAccountDisabled)
}

func IsAccountDisabled(err error) bool {
	return ToAccountDisabled(err) != nil
}

// NewErrUnavailable wraps a store or infrastructure failure that the caller
// can retry.
func NewErrUnavailable(message string, err error) Error {
	return NewError(message, AudienceInternal, ErrCodeUnavailable, http.StatusServiceUnavailable, err)
}

func ToUnavailable(err error) *Error {
	return ToError(err, ErrCodeUnavailable)
}

func IsUnavailable(err error) bool {
	return ToUnavailable(err) != nil
}
