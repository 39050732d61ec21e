package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cusplit/internal/config"
	gmailconnector "cusplit/internal/intake/gmail"
	imapconnector "cusplit/internal/intake/imap"
	"cusplit/internal/storage"
)

// Listener polls a mailbox for payroll exports and segments whatever
// arrives, so the operator only has to run match and send.
type Listener struct {
	db  *storage.DB
	cfg config.Config
}

func NewListener(db *storage.DB, cfg config.Config) *Listener {
	return &Listener{db: db, cfg: cfg}
}

func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := l.runCycle(ctx); err != nil {
			fmt.Printf("listener cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(l.cfg.IntakeIntervalSec) * time.Second):
		}
	}
}

func (l *Listener) runCycle(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(l.cfg.IntakeProvider))
	connector, err := MakeConnector(provider, l.cfg)
	if err != nil {
		return err
	}

	fetchService := NewFetchService(l.db, l.cfg.RawDir, connector)
	fetchResult, err := fetchService.FetchAndStore(ctx, l.cfg.IntakeLabel, l.cfg.IntakeFetchMax)
	if err != nil {
		return err
	}

	processResult, err := NewProcessService(l.db).ProcessStored(l.cfg.IntakeFetchMax)
	if err != nil {
		return err
	}
	for _, warning := range processResult.Warnings {
		fmt.Printf("listener warning: %s\n", warning)
	}

	if err := l.db.SetMetadata("listener:lastCycle", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	fmt.Printf("listener cycle done provider=%s fetched=%d stored=%d split=%d records=%d\n",
		provider, fetchResult.Fetched, fetchResult.Stored, processResult.Documents, processResult.Records)
	return nil
}

func MakeConnector(provider string, cfg config.Config) (MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported intake provider: %s", provider)
	}
}
