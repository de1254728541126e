package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrDuplicateIdentity is returned when email or username is already taken.
	ErrDuplicateIdentity = errors.New("email or username already exists")
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned for both unknown identity and wrong
	// password, so a caller cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotVerified is returned when a user logs in before consuming the
	// verification link.
	ErrNotVerified = errors.New("account email is not verified")
	// ErrPasswordMismatch is returned when password and confirmation differ.
	ErrPasswordMismatch = errors.New("password confirmation does not match")
	// ErrUnauthorized is returned when no usable credential was presented.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the presented credential lacks the
	// required role or does not match the target user.
	ErrForbidden = errors.New("forbidden")
	// ErrTokenExpired is returned for an expired session or verification token.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for a malformed or badly signed token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenConsumed is returned when a single-use token is presented again.
	ErrTokenConsumed = errors.New("token already used")
	// ErrWrongPurpose is returned when a token is valid but minted for a
	// different flow.
	ErrWrongPurpose = errors.New("token purpose mismatch")
	// ErrOTPNotFound is returned when no live OTP exists for the user.
	ErrOTPNotFound = errors.New("otp expired or not issued")
	// ErrOTPMismatch is returned when the supplied OTP code is wrong.
	ErrOTPMismatch = errors.New("otp code mismatch")
	// ErrInvalidAmount is returned for non-positive wallet credit amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Message: e.Message,
		Code:    e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Internal faults collapse
// to a generic 500 so no detail leaks to the client.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrDuplicateIdentity):
		return NewHTTPError(http.StatusConflict, err.Error(), "DUPLICATE_IDENTITY")
	case errors.Is(err, ErrPasswordMismatch):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "PASSWORD_MISMATCH")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrNotVerified):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "NOT_VERIFIED")
	case errors.Is(err, ErrUnauthorized):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "UNAUTHORIZED")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "USER_NOT_FOUND")
	case errors.Is(err, ErrTokenExpired):
		return NewHTTPError(http.StatusGone, err.Error(), "TOKEN_EXPIRED")
	case errors.Is(err, ErrTokenConsumed):
		return NewHTTPError(http.StatusGone, err.Error(), "TOKEN_CONSUMED")
	case errors.Is(err, ErrTokenInvalid):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "TOKEN_INVALID")
	case errors.Is(err, ErrWrongPurpose):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "TOKEN_WRONG_PURPOSE")
	case errors.Is(err, ErrOTPNotFound):
		return NewHTTPError(http.StatusForbidden, err.Error(), "OTP_NOT_FOUND")
	case errors.Is(err, ErrOTPMismatch):
		return NewHTTPError(http.StatusForbidden, err.Error(), "OTP_MISMATCH")
	case errors.Is(err, ErrInvalidAmount):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_AMOUNT")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
