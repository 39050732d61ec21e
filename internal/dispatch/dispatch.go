package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cusplit/internal"
	"cusplit/internal/config"
	"cusplit/internal/pdfio"
)

// Transport sends one composed message with one attachment.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To             string
	Subject        string
	HTMLBody       string
	Attachment     []byte
	AttachmentName string
}

// Item is one confirmed (record, recipient) pair. Only Exact, Fuzzy and
// operator-resolved Ambiguous matches become items; Unmatched and orphan
// roster entries never reach the dispatcher.
type Item struct {
	Record internal.CURecord
	Email  string
}

func Key(recordIndex int, email string) string {
	return fmt.Sprintf("%d|%s", recordIndex, email)
}

// Slicer cuts the attachment for one record out of the source document.
type Slicer interface {
	Slice(start, end int) ([]byte, error)
}

type Dispatcher struct {
	cfg       config.Config
	transport Transport
	slicer    Slicer
}

func New(cfg config.Config, transport Transport, slicer Slicer) *Dispatcher {
	return &Dispatcher{cfg: cfg, transport: transport, slicer: slicer}
}

// Run delivers every item not present in alreadySent, with bounded
// concurrency. Each send is independent: one failure never aborts the
// batch. The returned log holds exactly one entry per item passed in
// (minus the skipped ones): terminal for every attempted send, PENDING
// only for items never started because the context was cancelled.
// In-flight sends run to completion on cancellation and are recorded with
// their true outcome.
func (d *Dispatcher) Run(ctx context.Context, items []Item, alreadySent map[string]bool) []internal.DeliveryOutcome {
	pending := make([]Item, 0, len(items))
	for _, item := range items {
		if alreadySent[Key(item.Record.Index, item.Email)] {
			continue
		}
		pending = append(pending, item)
	}

	outcomes := make([]internal.DeliveryOutcome, len(pending))
	for i, item := range pending {
		outcomes[i] = internal.DeliveryOutcome{
			RecordIndex: item.Record.Index,
			Recipient:   item.Email,
			Filename:    pdfio.CUFileName(item.Record),
			Status:      internal.DeliveryPending,
		}
	}

	workers := d.cfg.SendConcurrency
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range pending {
		select {
		case <-ctx.Done():
			wg.Wait()
			return outcomes
		case sem <- struct{}{}:
		}
		// A freed slot can win the select against an already-cancelled
		// context; re-check so cancellation never starts another send.
		if ctx.Err() != nil {
			<-sem
			wg.Wait()
			return outcomes
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := d.send(context.WithoutCancel(ctx), pending[i])
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
		}(i)
	}

	wg.Wait()
	return outcomes
}

func (d *Dispatcher) send(ctx context.Context, item Item) internal.DeliveryOutcome {
	outcome := internal.DeliveryOutcome{
		RecordIndex: item.Record.Index,
		Recipient:   item.Email,
		Filename:    pdfio.CUFileName(item.Record),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	blob, err := d.slicer.Slice(item.Record.StartPage, item.Record.EndPage)
	if err != nil {
		outcome.Status = internal.DeliveryFailed
		outcome.Reason = fmt.Sprintf("slice attachment: %v", err)
		return outcome
	}

	msg := Message{
		To:             item.Email,
		Subject:        Render(d.cfg.MailSubject, item.Record),
		HTMLBody:       Render(d.cfg.MailTemplate, item.Record),
		Attachment:     blob,
		AttachmentName: outcome.Filename,
	}

	if err := d.transport.Send(ctx, msg); err != nil {
		outcome.Status = internal.DeliveryFailed
		outcome.Reason = err.Error()
		return outcome
	}

	outcome.Status = internal.DeliverySent
	return outcome
}
