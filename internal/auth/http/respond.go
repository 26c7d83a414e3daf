package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/errutil"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// maxJSONBody bounds JSON request bodies. Multipart registration has its
// own limit.
const maxJSONBody = 64 << 10

// errorStatus maps service outcomes onto HTTP. Anything unlisted is a 500.
var errorStatus = []struct {
	err     error
	status  int
	message string
}{
	{service.ErrValidationFailed, http.StatusBadRequest, "Validation failed"},
	{service.ErrEmailTaken, http.StatusBadRequest, "User already exists"},
	{service.ErrAlreadyVerified, http.StatusBadRequest, "User is already verified"},
	{service.ErrOtpInvalidOrExpired, http.StatusBadRequest, "Invalid or expired OTP"},
	{service.ErrTokenExpired, http.StatusBadRequest, "Reset token has expired"},
	{service.ErrTokenInvalid, http.StatusBadRequest, "Invalid reset token"},
	{service.ErrInvalidCredentials, http.StatusBadRequest, "Invalid email or password"},
	{service.ErrEmailNotVerified, http.StatusUnauthorized, "Please verify your email first"},
	{service.ErrUnauthenticated, http.StatusUnauthorized, "Not authorized"},
	{service.ErrNotFound, http.StatusNotFound, "User not found"},
}

// writeError renders err as an error envelope. Validation failures carry
// their detail; internal failures are logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorStatus {
		if !errors.Is(err, e.err) {
			continue
		}
		msg := e.message
		if e.err == service.ErrValidationFailed {
			msg = err.Error()
		}
		authsdk.NewAPIError(e.status, service.Outcome(err), msg).WriteError(w)
		return
	}

	errutil.LogError(slogx.FromContext(r.Context()), "request failed", err,
		"method", r.Method, "path", r.URL.Path)
	authsdk.NewAPIError(http.StatusInternalServerError, authsdk.CodeInternal, "Internal server error").WriteError(w)
}

// decodeJSON reads a JSON body into v, answering 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.CodeValidationFailed, "Request body must be valid JSON").WriteError(w)
		return false
	}
	return true
}

func writeOK(w http.ResponseWriter, status int, resp authsdk.Response) {
	resp.Status = authsdk.StatusSuccess
	httpx.WriteJSON(w, status, resp)
}

func toUser(u domain.UserSummary) *authsdk.User {
	return &authsdk.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		ProfileImage: u.ProfileImage,
		IsVerified:   u.IsVerified,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
