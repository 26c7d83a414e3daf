package authsdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// Register creates an unverified account.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*Response, error) {
	var resp Response
	if err := c.doJSON(ctx, http.MethodPost, "/users/register", req, &resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegisterWithImage creates an account with a profile image, sent as a
// multipart form.
func (c *SDKClient) RegisterWithImage(ctx context.Context, req RegisterRequest, filename string, image io.Reader) (*Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, value := range map[string]string{
		"name":             req.Name,
		"email":            req.Email,
		"password":         req.Password,
		"confirm_password": req.ConfirmPassword,
	} {
		if err := mw.WriteField(field, value); err != nil {
			return nil, fmt.Errorf("failed to encode form: %w", err)
		}
	}
	part, err := mw.CreateFormFile("profileImage", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}

	httpResp, err := c.doRequest(ctx, http.MethodPost, "/users/register", &buf,
		map[string]string{"Content-Type": mw.FormDataContentType()}, "")
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := decodeJSON(httpResp, &resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyOTP confirms the email address with the code sent on registration.
func (c *SDKClient) VerifyOTP(ctx context.Context, email, otp string) (*Response, error) {
	return c.post(ctx, "/users/verify-otp", VerifyOTPRequest{Email: email, OTP: otp})
}

// ResendOTP replaces the verification code of an unverified account.
func (c *SDKClient) ResendOTP(ctx context.Context, email string) (*Response, error) {
	return c.post(ctx, "/users/resend-otp", EmailRequest{Email: email})
}

// CheckEmail issues a code for the direct reset path.
func (c *SDKClient) CheckEmail(ctx context.Context, email string) (*Response, error) {
	return c.post(ctx, "/users/check-email", EmailRequest{Email: email})
}

// RequestPasswordReset sends a reset link to the account's address.
func (c *SDKClient) RequestPasswordReset(ctx context.Context, email string) (*Response, error) {
	return c.post(ctx, "/users/send-reset-password-email", EmailRequest{Email: email})
}

// ResetPassword completes a reset with the user id and token from the link.
func (c *SDKClient) ResetPassword(ctx context.Context, userID, token, password, confirmPassword string) (*Response, error) {
	path := "/users/password-reset/" + url.PathEscape(userID) + "/" + url.PathEscape(token)
	return c.post(ctx, path, PasswordRequest{Password: password, ConfirmPassword: confirmPassword})
}

// ResetPasswordDirect resets a password by email and the code from CheckEmail.
func (c *SDKClient) ResetPasswordDirect(ctx context.Context, req DirectResetRequest) (*Response, error) {
	return c.post(ctx, "/users/reset-password-direct", req)
}

// ChangePasswordByEmail replaces the password after checking the old one.
func (c *SDKClient) ChangePasswordByEmail(ctx context.Context, req ChangePasswordByEmailRequest) (*Response, error) {
	return c.post(ctx, "/users/change-password-email", req)
}

// GetFile downloads a stored profile image. The caller closes the body.
func (c *SDKClient) GetFile(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/files/"+ref, nil, nil, "")
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, "", parseErrorResponse(resp, body)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (c *SDKClient) post(ctx context.Context, path string, in any) (*Response, error) {
	var resp Response
	if err := c.doJSON(ctx, http.MethodPost, path, in, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}
