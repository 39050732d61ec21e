package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/jhillyerd/enmime"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"cusplit/internal/config"
	"cusplit/internal/dispatch"
)

// GmailTransport sends through the Gmail API with an OAuth refresh token,
// for setups where direct SMTP submission is blocked.
type GmailTransport struct {
	service *gmail.Service
	tokens  oauth2.TokenSource
	from    string
}

func NewGmail(cfg config.Config) (*GmailTransport, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_FROM", cfg.GmailFrom); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailSendScope},
	}

	tokenSource := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(context.Background(), option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &GmailTransport{service: svc, tokens: tokenSource, from: cfg.GmailFrom}, nil
}

// Verify forces a token refresh, which fails fast on a revoked or
// mistyped refresh token without sending any mail.
func (t *GmailTransport) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.tokens.Token(); err != nil {
		return fmt.Errorf("gmail token refresh: %w", err)
	}
	return nil
}

func (t *GmailTransport) Send(ctx context.Context, msg dispatch.Message) error {
	part, err := enmime.Builder().
		From("", t.from).
		To("", msg.To).
		Subject(msg.Subject).
		HTML([]byte(msg.HTMLBody)).
		AddAttachment(msg.Attachment, "application/pdf", msg.AttachmentName).
		Build()
	if err != nil {
		return fmt.Errorf("build message for %s: %w", msg.To, err)
	}

	var raw bytes.Buffer
	if err := part.Encode(&raw); err != nil {
		return fmt.Errorf("encode message for %s: %w", msg.To, err)
	}

	gmsg := &gmail.Message{Raw: base64.RawURLEncoding.EncodeToString(raw.Bytes())}
	if _, err := t.service.Users.Messages.Send("me", gmsg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail send to %s: %w", msg.To, err)
	}
	return nil
}
