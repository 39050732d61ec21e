package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"time"

	"github.com/jhillyerd/enmime"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"cusplit/internal"
	"cusplit/internal/config"
)

// Connector lists payroll drops through the Gmail API. The search query
// is restricted to messages carrying a PDF attachment, since anything
// else can never yield a document to split.
type Connector struct {
	service       *gmail.Service
	subjectFilter string
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(context.Background(), option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &Connector{service: svc, subjectFilter: cfg.IntakeSubjectFilter}, nil
}

func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	query := "has:attachment filename:pdf"
	if c.subjectFilter != "" {
		query += fmt.Sprintf(" subject:%q", c.subjectFilter)
	}

	listResp, err := c.service.Users.Messages.List("me").
		LabelIds(label).Q(query).MaxResults(int64(max)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, msgRef := range listResp.Messages {
		if msgRef.Id == "" {
			continue
		}

		rawResp, err := c.service.Users.Messages.Get("me", msgRef.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		if rawResp.Raw == "" {
			continue
		}

		rawBytes, err := decodeBase64URL(rawResp.Raw)
		if err != nil {
			return nil, err
		}

		msg := internal.FetchedMailMessage{
			Provider:   "gmail",
			MessageID:  msgRef.Id,
			ReceivedAt: time.Now().UTC().Format(time.RFC3339),
			Raw:        rawBytes,
		}

		// Headers come out of the raw message itself, sparing a second
		// API round trip per message.
		if envelope, err := enmime.ReadEnvelope(bytes.NewReader(rawBytes)); err == nil {
			if id := envelope.GetHeader("Message-Id"); id != "" {
				msg.MessageID = id
			}
			msg.Subject = envelope.GetHeader("Subject")
			msg.From = envelope.GetHeader("From")
			if date, err := mail.ParseDate(envelope.GetHeader("Date")); err == nil {
				msg.ReceivedAt = date.UTC().Format(time.RFC3339)
			}
		}

		out = append(out, msg)
	}

	return out, nil
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
