package accounts

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrNoEmptyString is the error we return when asked to hash an empty password
var ErrNoEmptyString = errors.New("password should not be an empty string")

// ErrMismatchedHashAndPassword is the unified credential failure, we never
// tell the caller whether the email or the password was wrong
var ErrMismatchedHashAndPassword = errors.New("email or password is wrong")

// ErrEmailInUse is returned when registration hits an existing email,
// either on the pre-check or on the store's uniqueness constraint
var ErrEmailInUse = goerrors.New("email in use", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode("EMAIL_IN_USE")

// ErrInvalidCredentials is the response-level credential failure
var ErrInvalidCredentials = goerrors.New("email or password is wrong", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("INVALID_CREDENTIALS")

// ErrNotAuthorized covers every guard failure: missing header, bad scheme,
// forged or expired token, stale session. Deliberately undifferentiated.
var ErrNotAuthorized = goerrors.New("not authorized", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("NOT_AUTHORIZED")

// ErrUserNotFound also covers consumed verification tokens, the token is
// opaque and we disclose nothing about why it no longer matches
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode("USER_NOT_FOUND")

// ErrAlreadyVerified is returned when verification is re-requested for a
// verified account
var ErrAlreadyVerified = goerrors.New("verification has already been passed", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode("ALREADY_VERIFIED")

// ErrTokenExpired is surfaced by the token service past expiry
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("TOKEN_EXPIRED")

// ErrTokenMalformed is surfaced by the token service on structural or
// signature failures
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("TOKEN_MALFORMED")

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsDuplicateKeyError will check for uniqueness constraint violations.
// Driver errors are not typed across dialects so we match on message,
// sqlite and postgres phrasings covered.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
