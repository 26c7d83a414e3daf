package notify

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// LogNotifier writes messages to the log instead of delivering them. Codes
// and links appear in plain text, so it is for development only.
type LogNotifier struct {
	Logger *slog.Logger // falls back to the request logger
}

func (n LogNotifier) logger(ctx context.Context) *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slogx.FromContext(ctx)
}

func (n LogNotifier) SendOTP(ctx context.Context, msg OTPMessage) error {
	n.logger(ctx).Info("otp issued",
		"to", msg.To,
		"purpose", string(msg.Purpose),
		"code", msg.Code,
		"expires_at", msg.ExpiresAt,
	)
	return nil
}

func (n LogNotifier) SendPasswordReset(ctx context.Context, msg ResetMessage) error {
	n.logger(ctx).Info("password reset link issued",
		"to", msg.To,
		"link", msg.Link,
		"expires_at", msg.ExpiresAt,
	)
	return nil
}
