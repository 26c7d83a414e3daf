package http

import (
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
)

// OTPHandler serves the email verification endpoints.
type OTPHandler struct {
	Accounts *service.AccountService
}

// HandleVerify godoc
//
//	@Summary		Verify email
//	@Description	Marks the account verified when otp is the live code. Codes are single use.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyOTPRequest	true	"email, otp"
//	@Success		200		{object}	authsdk.Response			"user"
//	@Failure		400		{object}	authsdk.Response			"validation_failed, otp_invalid_or_expired"
//	@Failure		404		{object}	authsdk.Response			"user_not_found"
//	@Router			/users/verify-otp [post]
func (h *OTPHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.Accounts.VerifyEmail(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, authsdk.Response{
		Message: "Email verified successfully",
		User:    toUser(user),
	})
}

// HandleResend godoc
//
//	@Summary		Resend verification code
//	@Description	Replaces the verification code of an unverified account. The previous code stops working.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.EmailRequest	true	"email"
//	@Success		200		{object}	authsdk.Response		"otp (non-production only)"
//	@Failure		400		{object}	authsdk.Response		"validation_failed, already_verified"
//	@Failure		404		{object}	authsdk.Response		"user_not_found"
//	@Router			/users/resend-otp [post]
func (h *OTPHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Accounts.ResendOtp(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, authsdk.Response{
		Message:   "OTP resent successfully",
		OTP:       res.OTP,
		ExpiresAt: timePtr(res.ExpiresAt),
	})
}

// HandleCheckEmail godoc
//
//	@Summary		Check email and issue code
//	@Description	Sends a code to a registered address. The code authorises reset-password-direct.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.EmailRequest	true	"email"
//	@Success		200		{object}	authsdk.Response		"otp (non-production only)"
//	@Failure		400		{object}	authsdk.Response		"validation_failed"
//	@Failure		404		{object}	authsdk.Response		"user_not_found"
//	@Router			/users/check-email [post]
func (h *OTPHandler) HandleCheckEmail(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Accounts.CheckEmailAndIssueOtp(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, authsdk.Response{
		Message:   "OTP sent to email",
		OTP:       res.OTP,
		ExpiresAt: timePtr(res.ExpiresAt),
	})
}
