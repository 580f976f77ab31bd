// Package apperrors defines the error taxonomy surfaced to API clients.
//
// Every error a handler writes to the wire is one of the kinds below. Wrapped
// causes are kept for logs and never rendered.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrDuplicateAccount   = errors.New("duplicate account")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOAuthExchange      = errors.New("oauth exchange error")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrConfiguration      = errors.New("configuration error")
)

const internalDetail = "Internal server error"

// AppError pairs a taxonomy kind with the client-facing detail.
type AppError struct {
	Kind   error
	Detail string
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *AppError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func Validation(detail string) *AppError {
	return &AppError{Kind: ErrValidation, Detail: detail}
}

func DuplicateAccount() *AppError {
	return &AppError{Kind: ErrDuplicateAccount, Detail: "User with this email already exists"}
}

// InvalidCredentials is shared by the unknown-email and wrong-password paths
// so the two stay indistinguishable.
func InvalidCredentials() *AppError {
	return &AppError{Kind: ErrInvalidCredentials, Detail: "Invalid username or password"}
}

func OAuthExchange(detail string, err error) *AppError {
	return &AppError{Kind: ErrOAuthExchange, Detail: "OAuth Error: " + detail, Err: err}
}

func Unauthorized(detail string) *AppError {
	return &AppError{Kind: ErrUnauthorized, Detail: detail}
}

func TooManyAttempts() *AppError {
	return &AppError{Kind: ErrTooManyAttempts, Detail: "Too many login attempts, try again later"}
}

func Configuration(detail string) *AppError {
	return &AppError{Kind: ErrConfiguration, Detail: detail}
}

// HTTPStatus maps err to the response status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrDuplicateAccount),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrOAuthExchange):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTooManyAttempts):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Detail returns the client-safe message for err. Anything outside the
// taxonomy collapses to a generic message.
func Detail(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != ErrConfiguration {
		return appErr.Detail
	}
	return internalDetail
}
