package domain

import (
	"strings"
	"time"
)

// User is the account record. PasswordHash and PendingPasswordHash never
// leave the service layer; responses are rendered from UserSummary.
type User struct {
	ID              string
	Name            string
	Email           string  // lowercased and trimmed
	PasswordHash    string  // argon2id PHC string
	ProfileImageRef *string // blob store key (nullable)
	IsVerified      bool

	// OTP and OTPExpiresAt are set and cleared together.
	OTP          *string
	OTPExpiresAt *time.Time

	// PendingPasswordHash is staged by a change-password request until the
	// matching OTP is confirmed.
	PendingPasswordHash *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserSummary is the public view of a User.
type UserSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	ProfileImage *string `json:"profileImage,omitempty"`
	IsVerified   bool    `json:"isVerified"`
}

func (u User) Summary() UserSummary {
	return UserSummary{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		ProfileImage: u.ProfileImageRef,
		IsVerified:   u.IsVerified,
	}
}

// HasLiveOTP reports whether an OTP is outstanding at now. The expiry
// instant itself counts as expired.
func (u User) HasLiveOTP(now time.Time) bool {
	return u.OTP != nil && u.OTPExpiresAt != nil && now.Before(*u.OTPExpiresAt)
}

// NormalizeEmail is applied at every entry point before an email is
// compared or stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
