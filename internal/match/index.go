package match

import (
	"cusplit/internal"
)

// Index holds the roster with an exact fiscal-code map for O(1) key hits.
type Index struct {
	Entries  []internal.RosterEntry
	ByFiscal map[string][]int
}

func BuildIndex(entries []internal.RosterEntry) *Index {
	idx := &Index{
		Entries:  entries,
		ByFiscal: map[string][]int{},
	}

	for i, entry := range entries {
		if entry.FiscalCode != "" {
			idx.ByFiscal[entry.FiscalCode] = append(idx.ByFiscal[entry.FiscalCode], i)
		}
	}

	return idx
}
