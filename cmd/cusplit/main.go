package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cusplit/internal"
	"cusplit/internal/config"
	"cusplit/internal/dispatch"
	"cusplit/internal/extract"
	"cusplit/internal/intake"
	"cusplit/internal/match"
	"cusplit/internal/pdfio"
	"cusplit/internal/report"
	"cusplit/internal/roster"
	"cusplit/internal/segment"
	"cusplit/internal/storage"
	"cusplit/internal/transport"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "split":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "massive CU pdf path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}

		doc, records, warnings := splitDocument(db, *input)
		for _, w := range warnings {
			fmt.Printf("warning: %s\n", w)
		}
		fmt.Printf("split done docId=%d pages=%d records=%d\n", doc.ID, doc.Pages, len(records))
		for _, r := range records {
			fmt.Printf("  #%d pages %d-%d -> %s\n", r.Index, r.StartPage+1, r.EndPage+1, pdfio.CUFileName(r))
		}
	case "match":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		docID := fs.Int("docId", 0, "internal document id")
		rosterPath := fs.String("roster", "", "roster file (.xlsx, .csv or .html)")
		_ = fs.Parse(os.Args[2:])
		if *docID == 0 || strings.TrimSpace(*rosterPath) == "" {
			must(fmt.Errorf("--docId and --roster are required"))
		}

		records, err := db.ListRecords(*docID)
		must(err)
		if len(records) == 0 {
			must(fmt.Errorf("no records for docId=%d (run split first)", *docID))
		}

		entries, err := roster.LoadFile(*rosterPath)
		must(err)

		outcomes, err := match.Reconcile(cfg, records, entries)
		must(err)
		must(db.ReplaceMatches(*docID, outcomes))

		counts := map[internal.MatchDecision]int{}
		for _, o := range outcomes {
			counts[o.Decision]++
		}
		fmt.Printf("match done docId=%d exact=%d fuzzy=%d ambiguous=%d unmatched=%d orphans=%d\n",
			*docID, counts[internal.DecisionExact], counts[internal.DecisionFuzzy],
			counts[internal.DecisionAmbiguous], counts[internal.DecisionUnmatched],
			counts[internal.DecisionOrphanRoster])
	case "send":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		docID := fs.Int("docId", 0, "internal document id")
		via := fs.String("via", "smtp", "smtp|gmail")
		_ = fs.Parse(os.Args[2:])
		if *docID == 0 {
			must(fmt.Errorf("--docId is required"))
		}

		doc, err := db.GetDocumentByID(*docID)
		must(err)
		if doc == nil {
			must(fmt.Errorf("unknown docId=%d", *docID))
		}

		document, err := pdfio.Open(doc.RawRef)
		must(err)

		outcomes, err := db.ListMatches(*docID)
		must(err)
		items, skipped := deliverableItems(outcomes)
		if len(items) == 0 {
			must(fmt.Errorf("no deliverable matches for docId=%d (run match first)", *docID))
		}

		sender, err := makeTransport(cfg, *via)
		must(err)

		alreadySent, err := db.SentKeys(*docID)
		must(err)

		dispatcher := dispatch.New(cfg, sender, document)
		log := dispatcher.Run(context.Background(), items, alreadySent)

		sent, failed := 0, 0
		for _, outcome := range log {
			must(db.UpsertDelivery(*docID, outcome))
			switch outcome.Status {
			case internal.DeliverySent:
				sent++
			case internal.DeliveryFailed:
				failed++
				fmt.Printf("  failed #%d %s: %s\n", outcome.RecordIndex, outcome.Recipient, outcome.Reason)
			}
		}
		fmt.Printf("send done docId=%d sent=%d failed=%d already=%d skipped=%d\n",
			*docID, sent, failed, len(items)-len(log), skipped)
	case "send:test":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		via := fs.String("via", "smtp", "smtp|gmail")
		_ = fs.Parse(os.Args[2:])

		sender, err := makeTransport(cfg, *via)
		must(err)
		verifier, ok := sender.(interface{ Verify(context.Context) error })
		if !ok {
			must(fmt.Errorf("transport %s does not support verification", *via))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		must(verifier.Verify(ctx))
		fmt.Printf("send test ok via=%s\n", *via)
	case "export:zip":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		docID := fs.Int("docId", 0, "internal document id")
		out := fs.String("out", "", "output zip path")
		_ = fs.Parse(os.Args[2:])
		if *docID == 0 || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--docId and --out are required"))
		}

		doc, err := db.GetDocumentByID(*docID)
		must(err)
		if doc == nil {
			must(fmt.Errorf("unknown docId=%d", *docID))
		}
		records, err := db.ListRecords(*docID)
		must(err)
		if len(records) == 0 {
			must(fmt.Errorf("no records for docId=%d (run split first)", *docID))
		}

		document, err := pdfio.Open(doc.RawRef)
		must(err)
		blob, err := document.ExportZip(records)
		must(err)
		must(os.MkdirAll(filepath.Dir(*out), 0o755))
		must(os.WriteFile(*out, blob, 0o644))
		fmt.Printf("exported %d certificates to %s\n", len(records), *out)
	case "export:review":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		docID := fs.Int("docId", 0, "internal document id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *docID == 0 || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--docId and --out are required"))
		}

		outcomes, err := db.ListMatches(*docID)
		must(err)
		if len(outcomes) == 0 {
			must(fmt.Errorf("no matches for docId=%d (run match first)", *docID))
		}
		rows := report.BuildReviewRows(outcomes)
		must(report.ExportReviewXLSX(rows, *out))
		fmt.Printf("exported %d review rows to %s\n", len(rows), *out)
	case "export:deliveries":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		docID := fs.Int("docId", 0, "internal document id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *docID == 0 || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--docId and --out are required"))
		}

		deliveries, err := db.ListDeliveries(*docID)
		must(err)
		if len(deliveries) == 0 {
			must(fmt.Errorf("no deliveries for docId=%d", *docID))
		}
		must(report.ExportDeliveriesXLSX(deliveries, *out))
		fmt.Printf("exported %d delivery rows to %s\n", len(deliveries), *out)
	case "intake:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.IntakeProvider, "gmail|imap")
		label := fs.String("label", cfg.IntakeLabel, "mailbox/label")
		max := fs.Int("max", cfg.IntakeFetchMax, "max messages")
		_ = fs.Parse(os.Args[2:])

		conn, err := intake.MakeConnector(strings.ToLower(strings.TrimSpace(*provider)), cfg)
		must(err)
		fetch := intake.NewFetchService(db, cfg.RawDir, conn)
		result, err := fetch.FetchAndStore(context.Background(), *label, *max)
		must(err)
		fmt.Printf("intake fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "intake:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])

		result, err := intake.NewProcessService(db).ProcessStored(*batch)
		must(err)
		for _, w := range result.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		fmt.Printf("intake process done documents=%d records=%d\n", result.Documents, result.Records)
	case "intake:listen":
		must(intake.NewListener(db, cfg).Run(context.Background()))
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "massive CU pdf path")
		rosterPath := fs.String("roster", "", "roster file (.xlsx, .csv or .html)")
		output := fs.String("output", "", "output review xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *input == "" || *rosterPath == "" || *output == "" {
			must(fmt.Errorf("--input --roster --output are required"))
		}

		doc, records, warnings := splitDocument(db, *input)
		for _, w := range warnings {
			fmt.Printf("warning: %s\n", w)
		}

		entries, err := roster.LoadFile(*rosterPath)
		must(err)
		outcomes, err := match.Reconcile(cfg, records, entries)
		must(err)
		must(db.ReplaceMatches(doc.ID, outcomes))

		rows := report.BuildReviewRows(outcomes)
		must(report.ExportReviewXLSX(rows, *output))
		fmt.Printf("run done docId=%d records=%d rows=%d output=%s\n", doc.ID, len(records), len(rows), *output)
	default:
		usage()
		os.Exit(1)
	}
}

func splitDocument(db *storage.DB, input string) (internal.DocumentRow, []internal.CURecord, []string) {
	blob, err := os.ReadFile(input)
	must(err)

	document, err := pdfio.FromBytes(blob)
	must(err)

	hashBytes := sha256.Sum256(blob)
	hash := hex.EncodeToString(hashBytes[:])

	absPath, err := filepath.Abs(input)
	must(err)

	doc, err := db.UpsertDocument("cli", "", hash, document.PageCount(), absPath,
		time.Now().UTC().Format(time.RFC3339), "stored")
	must(err)

	result := segment.Split(document.Pages())
	extractor := extract.New()
	for i := range result.Records {
		result.Records[i] = extractor.Populate(result.Records[i])
	}

	must(db.ReplaceRecords(doc.ID, result.Records))
	status := "split"
	if len(result.Records) == 0 {
		status = "empty"
	}
	must(db.UpdateDocumentStatus(doc.ID, status))

	return doc, result.Records, result.Warnings
}

// deliverableItems keeps the confirmed pairs: Exact and Fuzzy decisions
// with a recipient address. Ambiguous and Unmatched records stay behind
// for operator review.
func deliverableItems(outcomes []internal.MatchOutcome) ([]dispatch.Item, int) {
	items := make([]dispatch.Item, 0, len(outcomes))
	skipped := 0
	for _, o := range outcomes {
		if o.Record == nil {
			continue
		}
		if o.Decision != internal.DecisionExact && o.Decision != internal.DecisionFuzzy {
			skipped++
			continue
		}
		if o.Candidate == nil || o.Candidate.Email == "" {
			skipped++
			continue
		}
		items = append(items, dispatch.Item{Record: *o.Record, Email: o.Candidate.Email})
	}
	return items, skipped
}

func makeTransport(cfg config.Config, via string) (dispatch.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(via)) {
	case "smtp":
		return transport.NewSMTP(cfg)
	case "gmail":
		return transport.NewGmail(cfg)
	default:
		return nil, fmt.Errorf("unsupported transport: %s", via)
	}
}

func usage() {
	fmt.Println("usage: cusplit <command>")
	fmt.Println("commands:")
	fmt.Println("  split --input=./cu_massivo.pdf")
	fmt.Println("  match --docId=1 --roster=./dipendenti.xlsx")
	fmt.Println("  send --docId=1 --via=smtp|gmail")
	fmt.Println("  send:test --via=smtp|gmail")
	fmt.Println("  export:zip --docId=1 --out=./out/certificati.zip")
	fmt.Println("  export:review --docId=1 --out=./out/review.xlsx")
	fmt.Println("  export:deliveries --docId=1 --out=./out/deliveries.xlsx")
	fmt.Println("  intake:fetch --provider=gmail|imap --label=INBOX --max=10")
	fmt.Println("  intake:process --batch=20")
	fmt.Println("  intake:listen")
	fmt.Println("  run --input=./cu_massivo.pdf --roster=./dipendenti.xlsx --output=./out/review.xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
