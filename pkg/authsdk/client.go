package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the accounts service. It covers the public
// endpoints and creates Sessions on login.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new accounts service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login authenticates with email and password and returns a Session holding
// the issued token.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp Response
	err := c.doJSON(ctx, http.MethodPost, "/users/login", LoginRequest{Email: email, Password: password}, &resp, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return newSession(c, &resp), nil
}

// NewSessionFromToken wraps a token obtained elsewhere, for example from the
// login cookie.
func (c *SDKClient) NewSessionFromToken(token string) *Session {
	return &Session{client: c, token: token}
}
