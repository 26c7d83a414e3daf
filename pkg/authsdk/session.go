package authsdk

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Session is a logged-in client. Tokens are not refreshed; once ExpiresAt
// passes the caller logs in again.
type Session struct {
	client *SDKClient

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	user      *User
}

func newSession(client *SDKClient, resp *Response) *Session {
	s := &Session{
		client: client,
		token:  resp.Token,
		user:   resp.User,
	}
	if resp.ExpiresAt != nil {
		s.expiresAt = *resp.ExpiresAt
	}
	return s
}

// Token returns the session token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// ExpiresAt is zero when the session was built from a bare token.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// User returns the user reported at login, or nil.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// CurrentUser fetches the signed-in user.
func (s *Session) CurrentUser(ctx context.Context) (*User, error) {
	var resp Response
	if err := s.do(ctx, http.MethodGet, "/users/logged-user", nil, &resp); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.user = resp.User
	s.mu.Unlock()
	return resp.User, nil
}

// RequestChangePassword stages a new password and triggers the
// confirmation code.
func (s *Session) RequestChangePassword(ctx context.Context, password, confirmPassword string) (*Response, error) {
	var resp Response
	err := s.do(ctx, http.MethodPost, "/users/change-password",
		PasswordRequest{Password: password, ConfirmPassword: confirmPassword}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConfirmChangePassword activates the staged password.
func (s *Session) ConfirmChangePassword(ctx context.Context, otp string) (*Response, error) {
	var resp Response
	if err := s.do(ctx, http.MethodPost, "/users/verify-change-password-otp", OTPRequest{OTP: otp}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout tells the service to clear its cookie and forgets the token
// locally. The token itself stays valid until it expires.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.do(ctx, http.MethodPost, "/users/logout", nil, nil); err != nil {
		return err
	}

	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}

func (s *Session) do(ctx context.Context, method, path string, in, out any) error {
	return s.client.doJSONAuth(ctx, method, path, s.Token(), in, out, http.StatusOK)
}
