package match

import (
	"sort"
	"strings"

	"cusplit/internal"
	"cusplit/internal/config"
	"cusplit/internal/util"
)

const maxCandidates = 5

type Matcher struct {
	cfg   config.Config
	index *Index
}

// NewMatcher builds a matcher over an already-validated roster (duplicate
// fiscal codes must have been rejected beforehand, see roster.Validate).
func NewMatcher(cfg config.Config, entries []internal.RosterEntry) *Matcher {
	return &Matcher{cfg: cfg, index: BuildIndex(entries)}
}

// Match decides how one certificate maps onto the roster. The fiscal code
// is the authoritative key: a hit is Exact no matter how dissimilar the
// names are. The fuzzy fallback applies threshold T and separation margin
// M; a near-tie is surfaced as Ambiguous for a human instead of guessing.
func (m *Matcher) Match(record internal.CURecord) internal.MatchOutcome {
	outcome, _ := m.match(record)
	return outcome
}

type scored struct {
	pos   int
	score float64
}

// match additionally reports the claimed roster entry position, -1 when
// the decision claims nobody.
func (m *Matcher) match(record internal.CURecord) (internal.MatchOutcome, int) {
	if record.FiscalCode != nil && util.IsFiscalCodeShaped(*record.FiscalCode) {
		hits := m.index.ByFiscal[strings.ToUpper(*record.FiscalCode)]
		if len(hits) >= 1 {
			pos := hits[0]
			entry := m.index.Entries[pos]
			return internal.MatchOutcome{
				Record:     &record,
				Decision:   internal.DecisionExact,
				Candidate:  &entry,
				Score:      1,
				Candidates: []internal.MatchCandidate{{Entry: entry, Score: 1}},
			}, pos
		}
	}

	if !record.HasName() {
		return internal.MatchOutcome{Record: &record, Decision: internal.DecisionUnmatched}, -1
	}

	ranked := m.rankCandidates(record)
	if len(ranked) == 0 {
		return internal.MatchOutcome{Record: &record, Decision: internal.DecisionUnmatched}, -1
	}

	candidates := make([]internal.MatchCandidate, 0, len(ranked))
	for _, s := range ranked {
		candidates = append(candidates, internal.MatchCandidate{Entry: m.index.Entries[s.pos], Score: s.score})
	}

	top := ranked[0]
	gap := top.score
	if len(ranked) > 1 {
		gap = top.score - ranked[1].score
	}

	switch {
	case top.score < m.cfg.MatchThreshold:
		return internal.MatchOutcome{
			Record:     &record,
			Decision:   internal.DecisionUnmatched,
			Score:      top.score,
			Candidates: candidates,
		}, -1
	case gap < m.cfg.MatchMargin:
		return internal.MatchOutcome{
			Record:     &record,
			Decision:   internal.DecisionAmbiguous,
			Score:      top.score,
			Candidates: candidates,
		}, -1
	default:
		entry := m.index.Entries[top.pos]
		return internal.MatchOutcome{
			Record:     &record,
			Decision:   internal.DecisionFuzzy,
			Candidate:  &entry,
			Score:      top.score,
			Candidates: candidates,
		}, top.pos
	}
}

// rankCandidates scores the record's name against the whole roster. The
// margin rule compares the top score with the true runner-up, so no
// shortlist may cut the scan short: a pre-filter that hides a near-tie
// would mispick where a human should decide.
func (m *Matcher) rankCandidates(record internal.CURecord) []scored {
	return m.scorePool(record.FullName(), allPositions(len(m.index.Entries)))
}

func (m *Matcher) scorePool(name string, pool []int) []scored {
	out := make([]scored, 0, len(pool))
	for _, pos := range pool {
		entry := m.index.Entries[pos]
		if entry.FullName() == "" {
			continue
		}
		out = append(out, scored{pos: pos, score: util.Similarity(name, entry.FullName())})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

func allPositions(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
