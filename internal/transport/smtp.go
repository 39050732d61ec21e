package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"

	"github.com/jhillyerd/enmime"

	"cusplit/internal/config"
	"cusplit/internal/dispatch"
)

// SMTPTransport delivers through a plain SMTP submission endpoint with
// PLAIN auth (STARTTLS is negotiated by the sender when the server
// offers it).
type SMTPTransport struct {
	host string
	addr string
	auth smtp.Auth
	from string
}

func NewSMTP(cfg config.Config) (*SMTPTransport, error) {
	if err := cfg.Require("SMTP_HOST", cfg.SMTPHost); err != nil {
		return nil, err
	}
	if err := cfg.Require("SMTP_USER", cfg.SMTPUser); err != nil {
		return nil, err
	}
	if err := cfg.Require("SMTP_PASSWORD", cfg.SMTPPass); err != nil {
		return nil, err
	}

	return &SMTPTransport{
		host: cfg.SMTPHost,
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		auth: smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost),
		from: cfg.SMTPFrom,
	}, nil
}

// Verify opens a session, authenticates and quits without sending
// anything, so bad credentials surface before a batch starts.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", t.addr, err)
	}

	client, err := smtp.NewClient(conn, t.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake %s: %w", t.addr, err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: t.host}); err != nil {
			return fmt.Errorf("smtp starttls %s: %w", t.addr, err)
		}
	}
	if err := client.Auth(t.auth); err != nil {
		return fmt.Errorf("smtp auth %s: %w", t.addr, err)
	}
	return client.Quit()
}

func (t *SMTPTransport) Send(ctx context.Context, msg dispatch.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	builder := enmime.Builder().
		From("", t.from).
		To("", msg.To).
		Subject(msg.Subject).
		HTML([]byte(msg.HTMLBody)).
		AddAttachment(msg.Attachment, "application/pdf", msg.AttachmentName)

	if err := builder.Send(enmime.NewSMTP(t.addr, t.auth)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}
