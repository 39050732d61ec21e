package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"cusplit/internal"
	"cusplit/internal/config"
	"cusplit/internal/util"
)

type fakeSlicer struct{ fail bool }

func (s fakeSlicer) Slice(start, end int) ([]byte, error) {
	if s.fail {
		return nil, fmt.Errorf("boom")
	}
	return []byte(fmt.Sprintf("pdf %d-%d", start, end)), nil
}

type fakeTransport struct {
	mu      sync.Mutex
	sent    []Message
	failFor map[string]bool
}

func (t *fakeTransport) Send(_ context.Context, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failFor[msg.To] {
		return fmt.Errorf("mailbox unavailable")
	}
	t.sent = append(t.sent, msg)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		SendConcurrency: 2,
		MailSubject:     "Certificazione Unica {anno}",
		MailTemplate:    "<p>Gentile {nome} {cognome}, in allegato la CU {anno}.</p>",
	}
}

func item(index int, surname, given string, year int, email string) Item {
	return Item{
		Record: internal.CURecord{
			Index:     index,
			StartPage: index * 2,
			EndPage:   index*2 + 1,
			Year:      util.IntPtr(year),
			Surname:   util.StringPtr(surname),
			GivenName: util.StringPtr(given),
		},
		Email: email,
	}
}

func TestRunDeliversIndependently(t *testing.T) {
	transport := &fakeTransport{failFor: map[string]bool{"luigi@example.it": true}}
	d := New(testConfig(), transport, fakeSlicer{})

	items := []Item{
		item(1, "ROSSI", "MARIO", 2025, "mario@example.it"),
		item(2, "VERDI", "LUIGI", 2025, "luigi@example.it"),
		item(3, "BIANCHI", "ANNA", 2025, "anna@example.it"),
	}

	log := d.Run(context.Background(), items, nil)
	if len(log) != 3 {
		t.Fatalf("len=%d", len(log))
	}

	byRecipient := map[string]internal.DeliveryOutcome{}
	for _, o := range log {
		byRecipient[o.Recipient] = o
	}

	if byRecipient["mario@example.it"].Status != internal.DeliverySent {
		t.Fatalf("mario: %+v", byRecipient["mario@example.it"])
	}
	if byRecipient["anna@example.it"].Status != internal.DeliverySent {
		t.Fatalf("anna: %+v", byRecipient["anna@example.it"])
	}

	failed := byRecipient["luigi@example.it"]
	if failed.Status != internal.DeliveryFailed || failed.Reason == "" {
		t.Fatalf("luigi: %+v", failed)
	}
	if failed.Timestamp == "" {
		t.Fatalf("terminal outcome without timestamp")
	}
}

func TestRunRendersPlaceholders(t *testing.T) {
	transport := &fakeTransport{}
	d := New(testConfig(), transport, fakeSlicer{})

	d.Run(context.Background(), []Item{item(1, "ROSSI", "MARIO", 2025, "mario@example.it")}, nil)

	if len(transport.sent) != 1 {
		t.Fatalf("sent=%d", len(transport.sent))
	}
	msg := transport.sent[0]
	if msg.Subject != "Certificazione Unica 2025" {
		t.Fatalf("subject=%q", msg.Subject)
	}
	if !strings.Contains(msg.HTMLBody, "Gentile Mario Rossi") {
		t.Fatalf("body=%q", msg.HTMLBody)
	}
	if msg.AttachmentName != "CU2025_Rossi_Mario.pdf" {
		t.Fatalf("attachment=%q", msg.AttachmentName)
	}
}

func TestRunSkipsAlreadySent(t *testing.T) {
	transport := &fakeTransport{}
	d := New(testConfig(), transport, fakeSlicer{})

	items := []Item{
		item(1, "ROSSI", "MARIO", 2025, "mario@example.it"),
		item(2, "VERDI", "LUIGI", 2025, "luigi@example.it"),
	}
	alreadySent := map[string]bool{Key(1, "mario@example.it"): true}

	log := d.Run(context.Background(), items, alreadySent)
	if len(log) != 1 {
		t.Fatalf("len=%d", len(log))
	}
	if log[0].Recipient != "luigi@example.it" {
		t.Fatalf("log: %+v", log)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("re-run must not resend: sent=%d", len(transport.sent))
	}

	// Second run with everything sent: nothing goes out.
	alreadySent[Key(2, "luigi@example.it")] = true
	log = d.Run(context.Background(), items, alreadySent)
	if len(log) != 0 || len(transport.sent) != 1 {
		t.Fatalf("idempotent re-run: log=%d sent=%d", len(log), len(transport.sent))
	}
}

type blockingTransport struct {
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (t *blockingTransport) Send(_ context.Context, _ Message) error {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	t.started <- struct{}{}
	<-t.release
	return nil
}

func TestRunCancellationLetsInFlightFinish(t *testing.T) {
	cfg := testConfig()
	cfg.SendConcurrency = 1
	transport := &blockingTransport{started: make(chan struct{}), release: make(chan struct{})}
	d := New(cfg, transport, fakeSlicer{})

	items := []Item{
		item(1, "ROSSI", "MARIO", 2025, "mario@example.it"),
		item(2, "VERDI", "LUIGI", 2025, "luigi@example.it"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan []internal.DeliveryOutcome, 1)
	go func() { done <- d.Run(ctx, items, nil) }()

	// Cancel while the first send is in flight, then let it complete.
	<-transport.started
	cancel()
	close(transport.release)

	log := <-done
	if len(log) != 2 {
		t.Fatalf("len=%d", len(log))
	}
	if log[0].Status != internal.DeliverySent {
		t.Fatalf("in-flight send must record its true outcome: %+v", log[0])
	}
	if log[1].Status != internal.DeliveryPending || log[1].Timestamp != "" {
		t.Fatalf("unstarted item must stay pending: %+v", log[1])
	}
	if transport.calls != 1 {
		t.Fatalf("cancellation must not start new sends: calls=%d", transport.calls)
	}
}

func TestRunSliceFailureIsTerminal(t *testing.T) {
	transport := &fakeTransport{}
	d := New(testConfig(), transport, fakeSlicer{fail: true})

	log := d.Run(context.Background(), []Item{item(1, "ROSSI", "MARIO", 2025, "mario@example.it")}, nil)
	if len(log) != 1 || log[0].Status != internal.DeliveryFailed {
		t.Fatalf("log: %+v", log)
	}
	if !strings.Contains(log[0].Reason, "slice attachment") {
		t.Fatalf("reason=%q", log[0].Reason)
	}
	if len(transport.sent) != 0 {
		t.Fatalf("transport should not be reached")
	}
}

func TestRenderMissingFields(t *testing.T) {
	got := Render("CU {anno} per {nome} {cognome}", internal.CURecord{})
	if got != "CU  per  " {
		t.Fatalf("got %q", got)
	}
}
