package internal

type PageText struct {
	Index int
	Text  string
}

// CURecord is one certificate inside the massive PDF. Page indexes are
// 0-based and EndPage is inclusive. Identity fields stay nil when the
// extractor could not find them.
type CURecord struct {
	Index      int
	StartPage  int
	EndPage    int
	Year       *int
	Surname    *string
	GivenName  *string
	FiscalCode *string
	RawText    string
}

func (r CURecord) PageCount() int {
	return r.EndPage - r.StartPage + 1
}

func (r CURecord) HasName() bool {
	return (r.Surname != nil && *r.Surname != "") || (r.GivenName != nil && *r.GivenName != "")
}

func (r CURecord) FullName() string {
	name := ""
	if r.Surname != nil {
		name = *r.Surname
	}
	if r.GivenName != nil && *r.GivenName != "" {
		if name != "" {
			name += " "
		}
		name += *r.GivenName
	}
	return name
}

type RosterEntry struct {
	Surname    string
	GivenName  string
	FiscalCode string
	Email      string
}

func (e RosterEntry) FullName() string {
	if e.GivenName == "" {
		return e.Surname
	}
	if e.Surname == "" {
		return e.GivenName
	}
	return e.Surname + " " + e.GivenName
}

type MatchDecision string

const (
	DecisionExact        MatchDecision = "EXACT"
	DecisionFuzzy        MatchDecision = "FUZZY"
	DecisionAmbiguous    MatchDecision = "AMBIGUOUS"
	DecisionUnmatched    MatchDecision = "UNMATCHED"
	DecisionOrphanRoster MatchDecision = "ORPHAN_ROSTER"
)

type MatchCandidate struct {
	Entry RosterEntry `json:"entry"`
	Score float64     `json:"score"`
}

// MatchOutcome is one row of the reconciliation: a certificate with its
// decision, or an orphan roster entry (Record == nil).
type MatchOutcome struct {
	Record     *CURecord
	Decision   MatchDecision
	Candidate  *RosterEntry
	Score      float64
	Candidates []MatchCandidate
}

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
	DeliverySent    DeliveryStatus = "SENT"
	DeliveryFailed  DeliveryStatus = "FAILED"
)

// DeliveryOutcome is the audit row for one (record, recipient) pair.
// Status moves from PENDING to exactly one terminal state, never back.
type DeliveryOutcome struct {
	RecordIndex int
	Recipient   string
	Filename    string
	Status      DeliveryStatus
	Reason      string
	Timestamp   string
}

type DocumentRow struct {
	ID         int
	Source     string
	MessageID  string
	Hash       string
	Pages      int
	Status     string
	RawRef     string
	ReceivedAt string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type ReviewRow struct {
	RecordIndex    *int
	Pages          *string
	Surname        string
	GivenName      string
	FiscalCode     string
	Year           *int
	Decision       string
	Score          *float64
	MatchedSurname *string
	MatchedName    *string
	MatchedEmail   *string
	RunnerUpName   *string
	RunnerUpScore  *float64
	SuggestedFile  *string
}
