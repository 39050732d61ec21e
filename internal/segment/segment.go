package segment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cusplit/internal"
)

// A page starts a new certificate when the marker appears anywhere in its
// text. Dense layouts can put the next certificate's header on a page that
// also carries the tail of the previous one; splitting there over-segments
// at worst, which the operator can see and merge, while a silent merge
// cannot be undone.
var startMarker = regexp.MustCompile(`(?i)CERTIFICAZIONE\s+UNICA\s+(\d{4})`)

type Result struct {
	Records  []internal.CURecord
	Warnings []string
}

// Split partitions the page sequence into certificate shells. Page ranges
// are contiguous, non-overlapping and cover every page from the first
// marker to the end of the document.
func Split(pages []internal.PageText) Result {
	type boundary struct {
		page int
		year *int
	}

	var boundaries []boundary
	for _, page := range pages {
		m := startMarker.FindStringSubmatch(page.Text)
		if m == nil {
			continue
		}
		var year *int
		if parsed, err := strconv.Atoi(m[1]); err == nil {
			year = &parsed
		}
		boundaries = append(boundaries, boundary{page: page.Index, year: year})
	}

	res := Result{}
	if len(boundaries) == 0 {
		res.Warnings = append(res.Warnings, "no certificate start markers found: input may not be a supported payroll export")
		return res
	}

	if first := boundaries[0].page; first > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("dropped %d front-matter page(s) before the first certificate", first))
	}

	for i, b := range boundaries {
		end := len(pages) - 1
		if i+1 < len(boundaries) {
			end = boundaries[i+1].page - 1
		}

		var text strings.Builder
		for p := b.page; p <= end; p++ {
			text.WriteString(pages[p].Text)
			text.WriteString("\n")
		}

		res.Records = append(res.Records, internal.CURecord{
			Index:     i + 1,
			StartPage: b.page,
			EndPage:   end,
			Year:      b.year,
			RawText:   text.String(),
		})
	}

	return res
}
