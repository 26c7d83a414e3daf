package http

import (
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
)

// PasswordHandler serves the reset and change-password endpoints.
type PasswordHandler struct {
	Accounts *service.AccountService
}

// HandleRequestReset godoc
//
//	@Summary		Send reset link
//	@Description	Emails a reset link valid for one hour.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.EmailRequest	true	"email"
//	@Success		200		{object}	authsdk.Response		"token, link (non-production only)"
//	@Failure		400		{object}	authsdk.Response		"validation_failed"
//	@Failure		404		{object}	authsdk.Response		"user_not_found"
//	@Router			/users/send-reset-password-email [post]
func (h *PasswordHandler) HandleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Accounts.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, authsdk.Response{
		Message:   "Password reset email sent",
		Token:     res.Token,
		Link:      res.Link,
		ExpiresAt: timePtr(res.ExpiresAt),
	})
}

// HandleResetWithToken godoc
//
//	@Summary		Reset password with token
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"User id from the reset link"
//	@Param			token	path		string					true	"Reset token from the reset link"
//	@Param			request	body		authsdk.PasswordRequest	true	"password, confirm_password"
//	@Success		200		{object}	authsdk.Response
//	@Failure		400		{object}	authsdk.Response	"validation_failed, token_invalid, token_expired"
//	@Failure		404		{object}	authsdk.Response	"user_not_found"
//	@Router			/users/password-reset/{id}/{token} [post]
func (h *PasswordHandler) HandleResetWithToken(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.Accounts.ResetPasswordWithToken(r.Context(),
		r.PathValue("id"), r.PathValue("token"), req.Password, req.ConfirmPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, authsdk.Response{Message: "Password reset successfully"})
}

// HandleResetDirect godoc
//
//	@Summary		Reset password by email
//	@Description	Requires the code from /users/check-email unless the service runs with AUTH_DIRECT_RESET_REQUIRES_OTP=false.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.DirectResetRequest	true	"email, otp, password, confirm_password"
//	@Success		200		{object}	authsdk.Response
//	@Failure		400		{object}	authsdk.Response	"validation_failed, otp_invalid_or_expired"
//	@Failure		404		{object}	authsdk.Response	"user_not_found"
//	@Router			/users/reset-password-direct [post]
func (h *PasswordHandler) HandleResetDirect(w http.ResponseWriter, r *http.Request) {
	var req authsdk.DirectResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.Accounts.ResetPasswordDirect(r.Context(), service.DirectResetInput{
		Email:           req.Email,
		OTP:             req.OTP,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, authsdk.Response{Message: "Password reset successfully"})
}

// HandleChangeByEmail godoc
//
//	@Summary		Change password by email
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ChangePasswordByEmailRequest	true	"email, oldPassword, newPassword"
//	@Success		200		{object}	authsdk.Response
//	@Failure		400		{object}	authsdk.Response	"validation_failed, invalid_credentials"
//	@Failure		404		{object}	authsdk.Response	"user_not_found"
//	@Router			/users/change-password-email [post]
func (h *PasswordHandler) HandleChangeByEmail(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ChangePasswordByEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.Accounts.ChangePasswordByEmail(r.Context(), req.Email, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, authsdk.Response{Message: "Password changed successfully"})
}

// HandleRequestChange godoc
//
//	@Summary		Request password change
//	@Description	Stages the new password and emails a confirmation code valid for 10 minutes.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.PasswordRequest	true	"password, confirm_password"
//	@Success		200		{object}	authsdk.Response		"otp (non-production only)"
//	@Failure		400		{object}	authsdk.Response		"validation_failed"
//	@Failure		401		{object}	authsdk.Response		"unauthenticated"
//	@Router			/users/change-password [post]
func (h *PasswordHandler) HandleRequestChange(w http.ResponseWriter, r *http.Request) {
	user, ok := service.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, service.ErrUnauthenticated)
		return
	}

	var req authsdk.PasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Accounts.RequestChangePassword(r.Context(), user, req.Password, req.ConfirmPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, authsdk.Response{
		Message:   "OTP sent to your email",
		OTP:       res.OTP,
		ExpiresAt: timePtr(res.ExpiresAt),
	})
}

// HandleConfirmChange godoc
//
//	@Summary		Confirm password change
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.OTPRequest	true	"otp"
//	@Success		200		{object}	authsdk.Response
//	@Failure		400		{object}	authsdk.Response	"validation_failed, otp_invalid_or_expired"
//	@Failure		401		{object}	authsdk.Response	"unauthenticated"
//	@Router			/users/verify-change-password-otp [post]
func (h *PasswordHandler) HandleConfirmChange(w http.ResponseWriter, r *http.Request) {
	user, ok := service.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, service.ErrUnauthenticated)
		return
	}

	var req authsdk.OTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.Accounts.ConfirmChangePassword(r.Context(), user, req.OTP); err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, authsdk.Response{Message: "Password changed successfully"})
}
