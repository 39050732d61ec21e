package roster

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"cusplit/internal"
)

func LoadXLSX(blob []byte) ([]internal.RosterEntry, error) {
	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("open roster xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("roster xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("roster xlsx has no data rows")
	}

	cols := mapColumns(rows[0])
	if !cols.recognized() {
		return nil, fmt.Errorf("roster xlsx: no recognized columns (expected cognome, nome, codice_fiscale, email)")
	}

	out := make([]internal.RosterEntry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if entry, ok := entryFromCells(row, cols); ok {
			out = append(out, entry)
		}
	}
	return out, nil
}
