package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

// Failure codes carried in Response.Code.
const (
	CodeValidationFailed    = "validation_failed"
	CodeEmailTaken          = "email_taken"
	CodeNotFound            = "user_not_found"
	CodeAlreadyVerified     = "already_verified"
	CodeEmailNotVerified    = "email_not_verified"
	CodeInvalidCredentials  = "invalid_credentials"
	CodeOTPInvalidOrExpired = "otp_invalid_or_expired"
	CodeTokenInvalid        = "token_invalid"
	CodeTokenExpired        = "token_expired"
	CodeUnauthenticated     = "unauthenticated"
	CodeInternal            = "internal_error"
)

// APIError is an error envelope returned by the service. It is used both by
// the server, to write the response, and by the client, to report it.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// WriteError writes the error envelope.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, e.StatusCode, Response{
		Status:  StatusError,
		Code:    e.Code,
		Message: e.Message,
	})
}

// NewAPIError creates an APIError.
func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Message: message}
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var env Response
	if err := json.Unmarshal(body, &env); err == nil && env.Status == StatusError {
		code := env.Code
		if code == "" {
			code = CodeInternal
		}
		return &APIError{StatusCode: resp.StatusCode, Code: code, Message: env.Message}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       CodeInternal,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
