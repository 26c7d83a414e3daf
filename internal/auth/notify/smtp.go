package notify

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"github.com/samber/oops"
)

type SMTPConfig struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends plain-text mail through a relay.
type SMTPNotifier struct {
	cfg  SMTPConfig
	auth smtp.Auth
	send sendFunc
}

func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").With("addr", cfg.Addr).Wrap(err)
	}
	if cfg.From == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("smtp sender address is required")
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return &SMTPNotifier{cfg: cfg, auth: auth, send: smtp.SendMail}, nil
}

var otpBody = template.Must(template.New("otp").Parse(
	`Hi {{.Name}},

Your code is {{.Code}}. It expires at {{.ExpiresAt.UTC.Format "15:04 MST"}}.

If you did not ask for this code you can ignore this message.
`))

var resetBody = template.Must(template.New("reset").Parse(
	`Hi {{.Name}},

Reset your password here:

{{.Link}}

The link expires at {{.ExpiresAt.UTC.Format "15:04 MST"}}.
`))

func (n *SMTPNotifier) SendOTP(ctx context.Context, msg OTPMessage) error {
	return n.deliver(ctx, msg.To, subjectFor(msg.Purpose), otpBody, msg)
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, msg ResetMessage) error {
	return n.deliver(ctx, msg.To, "Reset your password", resetBody, msg)
}

func (n *SMTPNotifier) deliver(ctx context.Context, to, subject string, body *template.Template, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") {
		return oops.Code("NOTIFY_SEND_FAILED").With("to", to).Errorf("invalid recipient")
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	if err := body.Execute(&buf, data); err != nil {
		return oops.Code("NOTIFY_RENDER_FAILED").Wrap(err)
	}

	if err := n.send(n.cfg.Addr, n.auth, n.cfg.From, []string{to}, buf.Bytes()); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").With("to", to).With("subject", subject).Wrap(err)
	}
	return nil
}
