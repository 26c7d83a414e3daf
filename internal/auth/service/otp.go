package service

import (
	"time"

	"github.com/aussiebroadwan/accounts/pkg/cryptox"
)

const (
	// DefaultRegistrationWindow is how long the code sent at sign-up lives.
	DefaultRegistrationWindow = time.Hour

	// DefaultTransactionalWindow covers resend, check-email and change-password codes.
	DefaultTransactionalWindow = 10 * time.Minute
)

// OTPGenerator issues six digit codes and their expiry.
type OTPGenerator struct {
	Generate            func() (string, error)
	RegistrationWindow  time.Duration
	TransactionalWindow time.Duration
}

func NewOTPGenerator(registration, transactional time.Duration) *OTPGenerator {
	if registration <= 0 {
		registration = DefaultRegistrationWindow
	}
	if transactional <= 0 {
		transactional = DefaultTransactionalWindow
	}
	return &OTPGenerator{
		Generate:            cryptox.GenerateOTP,
		RegistrationWindow:  registration,
		TransactionalWindow: transactional,
	}
}

// ExpiryFrom returns the instant a code issued at now stops being valid.
// A code is accepted strictly before that instant.
func ExpiryFrom(now time.Time, window time.Duration) time.Time {
	return now.Add(window)
}
