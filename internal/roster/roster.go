package roster

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"cusplit/internal"
	"cusplit/internal/util"
)

// LoadFile reads a roster file from disk.
func LoadFile(path string) ([]internal.RosterEntry, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(blob, path)
}

// Load picks a loader by file extension. Entries come back normalized the
// same way extracted certificate fields are (uppercase, no diacritics).
func Load(blob []byte, filename string) ([]internal.RosterEntry, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls"):
		return LoadXLSX(blob)
	case strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm"):
		return LoadHTML(blob)
	default:
		return LoadCSV(blob)
	}
}

type columnMap struct {
	surname, given, fiscal, email int
}

func mapColumns(headers []string) columnMap {
	cols := columnMap{surname: -1, given: -1, fiscal: -1, email: -1}
	for i, h := range headers {
		h = strings.ToLower(strings.TrimSpace(h))
		h = strings.ReplaceAll(h, " ", "_")
		switch {
		case strings.Contains(h, "cognome") || strings.Contains(h, "denominazione"):
			if cols.surname < 0 {
				cols.surname = i
			}
		case strings.Contains(h, "nome"):
			if cols.given < 0 {
				cols.given = i
			}
		case h == "cf" || strings.Contains(h, "fiscale") || strings.Contains(h, "codicefiscale"):
			if cols.fiscal < 0 {
				cols.fiscal = i
			}
		case strings.Contains(h, "mail"):
			if cols.email < 0 {
				cols.email = i
			}
		}
	}
	return cols
}

func (c columnMap) recognized() bool {
	return c.surname >= 0 || c.given >= 0 || c.fiscal >= 0
}

func entryFromCells(cells []string, cols columnMap) (internal.RosterEntry, bool) {
	pick := func(idx int) string {
		if idx >= 0 && idx < len(cells) {
			return strings.TrimSpace(cells[idx])
		}
		return ""
	}

	entry := internal.RosterEntry{
		Surname:    util.NormalizeName(pick(cols.surname)),
		GivenName:  util.NormalizeName(pick(cols.given)),
		FiscalCode: strings.ToUpper(pick(cols.fiscal)),
		Email:      pick(cols.email),
	}
	if entry.Surname == "" && entry.GivenName == "" && entry.FiscalCode == "" {
		return internal.RosterEntry{}, false
	}
	return entry, true
}

// Validate surfaces duplicate fiscal codes as a data-quality error before
// any matching starts. Duplicates are never silently deduplicated.
func Validate(entries []internal.RosterEntry) error {
	seen := map[string]int{}
	for _, entry := range entries {
		if entry.FiscalCode == "" {
			continue
		}
		seen[entry.FiscalCode]++
	}

	var dupes []string
	for code, count := range seen {
		if count > 1 {
			dupes = append(dupes, code)
		}
	}
	if len(dupes) == 0 {
		return nil
	}
	sort.Strings(dupes)
	return fmt.Errorf("roster contains duplicate fiscal code(s): %s", strings.Join(dupes, ", "))
}
