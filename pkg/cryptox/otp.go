package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/pquerna/otp"
)

// OTPDigits is the length of every one-time code we hand out.
const OTPDigits = otp.DigitsSix

var otpSpace = big.NewInt(1_000_000)

// GenerateOTP returns a numeric code sampled uniformly from [0, 999999] and
// zero-padded to six digits, so "004217" is as likely as "734120".
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", fmt.Errorf("cryptox: generate otp: %w", err)
	}
	return OTPDigits.Format(int32(n.Int64())), nil // #nosec G115 - n < 1e6
}

// ValidOTP reports whether code has the shape GenerateOTP produces. It lets
// callers drop malformed input before it reaches the store.
func ValidOTP(code string) bool {
	if len(code) != OTPDigits.Length() {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
