package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
)

// CookieName carries the session token for browser clients.
const CookieName = "token"

// SessionHandler serves login, logout and the current user.
type SessionHandler struct {
	Accounts *service.AccountService

	// SecureCookie marks the session cookie Secure; off for plain-http dev.
	SecureCookie bool
}

// HandleLogin godoc
//
//	@Summary		Login
//	@Description	Checks credentials and issues a 24h session token, returned in the body and as an httpOnly cookie.
//	@Description	Unverified accounts are refused before the password is checked.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"email, password"
//	@Success		200		{object}	authsdk.Response		"user, token, expiresAt"
//	@Failure		400		{object}	authsdk.Response		"validation_failed, invalid_credentials"
//	@Failure		401		{object}	authsdk.Response		"email_not_verified"
//	@Failure		404		{object}	authsdk.Response		"user_not_found"
//	@Router			/users/login [post]
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		MaxAge:   int(time.Until(res.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	writeOK(w, http.StatusOK, authsdk.Response{
		Message:   "Login successful",
		User:      toUser(res.User),
		Token:     res.Token,
		ExpiresAt: timePtr(res.ExpiresAt),
	})
}

// HandleLogout godoc
//
//	@Summary		Logout
//	@Description	Clears the session cookie. Tokens are not revoked server side.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	authsdk.Response
//	@Router			/users/logout [post]
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Accounts.Logout(r.Context())

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	writeOK(w, http.StatusOK, authsdk.Response{Message: "Logged out successfully"})
}

// HandleCurrentUser godoc
//
//	@Summary		Current user
//	@Tags			Session
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.Response	"user"
//	@Failure		401	{object}	authsdk.Response	"unauthenticated"
//	@Router			/users/logged-user [get]
func (h *SessionHandler) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := service.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, service.ErrUnauthenticated)
		return
	}

	writeOK(w, http.StatusOK, authsdk.Response{User: toUser(h.Accounts.CurrentUser(user))})
}
