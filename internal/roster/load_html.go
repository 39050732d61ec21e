package roster

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cusplit/internal"
)

// LoadHTML reads the first recognizable table of an HTML roster export.
func LoadHTML(blob []byte) ([]internal.RosterEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("parse roster html: %w", err)
	}

	var out []internal.RosterEntry
	found := false

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return true
		}

		var headers []string
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, strings.TrimSpace(cell.Text()))
		})

		cols := mapColumns(headers)
		if !cols.recognized() {
			return true
		}

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			var cells []string
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			if entry, ok := entryFromCells(cells, cols); ok {
				out = append(out, entry)
			}
		})

		found = true
		return false
	})

	if !found {
		return nil, fmt.Errorf("roster html: no table with recognized columns")
	}
	return out, nil
}
