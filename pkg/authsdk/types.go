package authsdk

import "time"

// ============================================================================
// Envelope
// ============================================================================

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the envelope every /users endpoint answers with. Fields that
// do not apply to an operation are omitted.
type Response struct {
	// Status is "success" or "error"
	Status string `json:"status"`

	// Message is a human-readable summary of the outcome
	Message string `json:"message,omitempty"`

	// Code names the failure (e.g. "otp_invalid_or_expired"); only set on errors
	Code string `json:"code,omitempty"`

	User *User `json:"user,omitempty"`

	// Token is the session token (login) or the reset token (non-production only)
	Token string `json:"token,omitempty"`

	// OTP is only returned outside production
	OTP string `json:"otp,omitempty"`

	// Link is the password reset link (non-production only)
	Link string `json:"link,omitempty"`

	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// User is the public view of an account.
type User struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	ProfileImage *string `json:"profileImage,omitempty"`
	IsVerified   bool    `json:"isVerified"`
}

// ============================================================================
// Requests
// ============================================================================

// RegisterRequest is the JSON body of POST /users/register. Multipart
// requests use the same field names plus a profileImage file part.
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordRequest sets a new password; used by the token reset and the
// session change-password endpoints.
type PasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type DirectResetRequest struct {
	Email           string `json:"email"`
	OTP             string `json:"otp,omitempty"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type ChangePasswordByEmailRequest struct {
	Email       string `json:"email"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type OTPRequest struct {
	OTP string `json:"otp"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the readiness of the store and the token signer.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}
