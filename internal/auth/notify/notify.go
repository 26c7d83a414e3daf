// Package notify delivers one-time codes and reset links to users.
package notify

import (
	"context"
	"time"
)

// Purpose says what an OTP unlocks; it selects the message wording.
type Purpose string

const (
	PurposeVerifyEmail    Purpose = "verify_email"
	PurposeResendOTP      Purpose = "resend_otp"
	PurposeChangePassword Purpose = "change_password"
	PurposeResetPassword  Purpose = "reset_password"
)

type OTPMessage struct {
	To        string
	Name      string
	Code      string
	Purpose   Purpose
	ExpiresAt time.Time
}

type ResetMessage struct {
	To        string
	Name      string
	Link      string
	ExpiresAt time.Time
}

// Notifier is the outbound delivery channel. Implementations must be safe
// for concurrent use.
type Notifier interface {
	SendOTP(ctx context.Context, msg OTPMessage) error
	SendPasswordReset(ctx context.Context, msg ResetMessage) error
}

func subjectFor(p Purpose) string {
	switch p {
	case PurposeVerifyEmail, PurposeResendOTP:
		return "Verify your email"
	case PurposeChangePassword:
		return "Confirm your password change"
	case PurposeResetPassword:
		return "Your password reset code"
	default:
		return "Your one-time code"
	}
}
