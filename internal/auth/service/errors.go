package service

import "errors"

// Outcomes of account operations. Handlers map these onto HTTP statuses;
// anything else is an internal failure.
var (
	ErrValidationFailed    = errors.New("validation_failed")
	ErrEmailTaken          = errors.New("email_taken")
	ErrNotFound            = errors.New("user_not_found")
	ErrAlreadyVerified     = errors.New("already_verified")
	ErrEmailNotVerified    = errors.New("email_not_verified")
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrOtpInvalidOrExpired = errors.New("otp_invalid_or_expired")
	ErrTokenInvalid        = errors.New("token_invalid")
	ErrTokenExpired        = errors.New("token_expired")
	ErrUnauthenticated     = errors.New("unauthenticated")
)

var outcomes = []error{
	ErrValidationFailed,
	ErrEmailTaken,
	ErrNotFound,
	ErrAlreadyVerified,
	ErrEmailNotVerified,
	ErrInvalidCredentials,
	ErrOtpInvalidOrExpired,
	ErrTokenInvalid,
	ErrTokenExpired,
	ErrUnauthenticated,
}

// Outcome names the sentinel err wraps, "ok" for nil and "internal_error"
// for anything unrecognised.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomes {
		if errors.Is(err, o) {
			return o.Error()
		}
	}
	return "internal_error"
}
