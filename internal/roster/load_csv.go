package roster

import (
	"encoding/csv"
	"fmt"
	"strings"

	"cusplit/internal"
)

// LoadCSV autodetects the separator; Italian payroll exports commonly use
// semicolons.
func LoadCSV(blob []byte) ([]internal.RosterEntry, error) {
	text := strings.TrimPrefix(string(blob), "\ufeff")

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffSeparator(text)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse roster csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("roster csv has no data rows")
	}

	cols := mapColumns(rows[0])
	if !cols.recognized() {
		return nil, fmt.Errorf("roster csv: no recognized columns (expected cognome, nome, codice_fiscale, email)")
	}

	out := make([]internal.RosterEntry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if entry, ok := entryFromCells(row, cols); ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

func sniffSeparator(text string) rune {
	header := text
	if idx := strings.IndexByte(header, '\n'); idx >= 0 {
		header = header[:idx]
	}

	best := ';'
	bestCount := 0
	for _, sep := range []rune{';', ',', '\t', '|'} {
		if count := strings.Count(header, string(sep)); count > bestCount {
			best = sep
			bestCount = count
		}
	}
	return best
}
