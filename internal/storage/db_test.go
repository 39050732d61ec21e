package storage

import (
	"path/filepath"
	"testing"

	"cusplit/internal"
	"cusplit/internal/util"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpsertDocumentByHash(t *testing.T) {
	db := openTestDB(t)

	doc, err := db.UpsertDocument("cli", "", "hash-1", 10, "/tmp/a.pdf", "2026-03-01T10:00:00Z", "stored")
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID == 0 || doc.Pages != 10 {
		t.Fatalf("doc: %+v", doc)
	}

	again, err := db.UpsertDocument("cli", "", "hash-1", 12, "/tmp/b.pdf", "2026-03-02T10:00:00Z", "stored")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != doc.ID {
		t.Fatalf("same hash must reuse the row: %d vs %d", again.ID, doc.ID)
	}
	if again.Pages != 12 || again.RawRef != "/tmp/b.pdf" {
		t.Fatalf("upsert did not refresh fields: %+v", again)
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	doc, err := db.UpsertDocument("cli", "", "hash-1", 4, "/tmp/a.pdf", "", "stored")
	if err != nil {
		t.Fatal(err)
	}

	records := []internal.CURecord{
		{Index: 1, StartPage: 0, EndPage: 1, Year: util.IntPtr(2025), Surname: util.StringPtr("ROSSI"), GivenName: util.StringPtr("MARIO"), FiscalCode: util.StringPtr("RSSMRA80A01H501U")},
		{Index: 2, StartPage: 2, EndPage: 3},
	}
	if err := db.ReplaceRecords(doc.ID, records); err != nil {
		t.Fatal(err)
	}

	loaded, err := db.ListRecords(doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("len=%d", len(loaded))
	}
	first := loaded[0]
	if first.Surname == nil || *first.Surname != "ROSSI" || first.Year == nil || *first.Year != 2025 {
		t.Fatalf("first: %+v", first)
	}
	second := loaded[1]
	if second.Surname != nil || second.FiscalCode != nil || second.Year != nil {
		t.Fatalf("nil fields must stay nil: %+v", second)
	}
}

func TestMatchesRoundTrip(t *testing.T) {
	db := openTestDB(t)
	doc, err := db.UpsertDocument("cli", "", "hash-1", 2, "/tmp/a.pdf", "", "stored")
	if err != nil {
		t.Fatal(err)
	}

	record := internal.CURecord{Index: 1, StartPage: 0, EndPage: 1, Surname: util.StringPtr("ROSSI")}
	if err := db.ReplaceRecords(doc.ID, []internal.CURecord{record}); err != nil {
		t.Fatal(err)
	}

	entry := internal.RosterEntry{Surname: "ROSSI", GivenName: "MARIO", FiscalCode: "RSSMRA80A01H501U", Email: "mario@example.it"}
	orphan := internal.RosterEntry{Surname: "VERDI", FiscalCode: "VRDLGI75C10F205X", Email: "luigi@example.it"}
	outcomes := []internal.MatchOutcome{
		{Record: &record, Decision: internal.DecisionFuzzy, Candidate: &entry, Score: 0.9,
			Candidates: []internal.MatchCandidate{{Entry: entry, Score: 0.9}}},
		{Decision: internal.DecisionOrphanRoster, Candidate: &orphan},
	}
	if err := db.ReplaceMatches(doc.ID, outcomes); err != nil {
		t.Fatal(err)
	}

	loaded, err := db.ListMatches(doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("len=%d", len(loaded))
	}

	fuzzy := loaded[0]
	if fuzzy.Decision != internal.DecisionFuzzy || fuzzy.Score != 0.9 {
		t.Fatalf("fuzzy: %+v", fuzzy)
	}
	if fuzzy.Record == nil || fuzzy.Record.Index != 1 {
		t.Fatalf("record not re-attached: %+v", fuzzy.Record)
	}
	if fuzzy.Candidate == nil || fuzzy.Candidate.Email != "mario@example.it" {
		t.Fatalf("candidate: %+v", fuzzy.Candidate)
	}
	if len(fuzzy.Candidates) != 1 || fuzzy.Candidates[0].Entry.Surname != "ROSSI" {
		t.Fatalf("candidates: %+v", fuzzy.Candidates)
	}

	loadedOrphan := loaded[1]
	if loadedOrphan.Decision != internal.DecisionOrphanRoster || loadedOrphan.Record != nil {
		t.Fatalf("orphan: %+v", loadedOrphan)
	}
	if loadedOrphan.Candidate == nil || loadedOrphan.Candidate.Surname != "VERDI" {
		t.Fatalf("orphan candidate: %+v", loadedOrphan.Candidate)
	}
}

func TestDeliverySentIsTerminal(t *testing.T) {
	db := openTestDB(t)
	doc, err := db.UpsertDocument("cli", "", "hash-1", 2, "/tmp/a.pdf", "", "stored")
	if err != nil {
		t.Fatal(err)
	}

	sent := internal.DeliveryOutcome{RecordIndex: 1, Recipient: "mario@example.it", Filename: "CU2025_Rossi.pdf", Status: internal.DeliverySent, Timestamp: "2026-03-01T10:00:00Z"}
	if err := db.UpsertDelivery(doc.ID, sent); err != nil {
		t.Fatal(err)
	}

	// A later failed attempt for the same pair must not downgrade SENT.
	failed := sent
	failed.Status = internal.DeliveryFailed
	failed.Reason = "mailbox unavailable"
	if err := db.UpsertDelivery(doc.ID, failed); err != nil {
		t.Fatal(err)
	}

	deliveries, err := db.ListDeliveries(doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(deliveries) != 1 || deliveries[0].Status != internal.DeliverySent {
		t.Fatalf("deliveries: %+v", deliveries)
	}

	keys, err := db.SentKeys(doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !keys["1|mario@example.it"] {
		t.Fatalf("keys: %v", keys)
	}

	// FAILED rows are retried, so they never show up as sent keys.
	other := internal.DeliveryOutcome{RecordIndex: 2, Recipient: "luigi@example.it", Filename: "CU2025_Verdi.pdf", Status: internal.DeliveryFailed, Reason: "boom"}
	if err := db.UpsertDelivery(doc.ID, other); err != nil {
		t.Fatal(err)
	}
	keys, err = db.SentKeys(doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 {
		t.Fatalf("keys: %v", keys)
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)

	if v, err := db.GetMetadata("missing"); err != nil || v != nil {
		t.Fatalf("v=%v err=%v", v, err)
	}
	if err := db.SetMetadata("k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("k", "v2"); err != nil {
		t.Fatal(err)
	}
	v, err := db.GetMetadata("k")
	if err != nil {
		t.Fatal(err)
	}
	if v == nil || *v != "v2" {
		t.Fatalf("v=%v", v)
	}
}
