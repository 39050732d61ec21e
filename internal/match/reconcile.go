package match

import (
	"cusplit/internal"
	"cusplit/internal/config"
	"cusplit/internal/roster"
)

// Reconcile runs the matcher over every record in document order and then
// emits an OrphanRoster outcome for each roster entry never claimed by an
// Exact or Fuzzy decision. Deterministic for identical inputs. Duplicate
// fiscal codes in the roster abort before any matching starts.
func Reconcile(cfg config.Config, records []internal.CURecord, entries []internal.RosterEntry) ([]internal.MatchOutcome, error) {
	if err := roster.Validate(entries); err != nil {
		return nil, err
	}

	matcher := NewMatcher(cfg, entries)
	claimed := make(map[int]bool, len(entries))

	out := make([]internal.MatchOutcome, 0, len(records)+len(entries))
	for _, record := range records {
		outcome, pos := matcher.match(record)
		if pos >= 0 {
			claimed[pos] = true
		}
		out = append(out, outcome)
	}

	for i := range entries {
		if claimed[i] {
			continue
		}
		entry := entries[i]
		out = append(out, internal.MatchOutcome{
			Decision:  internal.DecisionOrphanRoster,
			Candidate: &entry,
		})
	}

	return out, nil
}
