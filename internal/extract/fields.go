package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cusplit/internal"
	"cusplit/internal/util"
)

// Labels lists the recognized anchors per vendor layout, tried in order.
// Adding a payroll vendor means appending variants here, not touching the
// extraction logic.
type Labels struct {
	SectionAnchors []*regexp.Regexp
	SurnameLabels  []*regexp.Regexp
	NameLabels     []*regexp.Regexp
	YearAnchors    []*regexp.Regexp
}

func DefaultLabels() Labels {
	return Labels{
		SectionAnchors: []*regexp.Regexp{
			regexp.MustCompile(`(?i)DATI\s+RELATIVI\s+AL\s+DIPENDENTE`),
			regexp.MustCompile(`(?i)DATI\s+ANAGRAFICI\s+DEL\s+PERCIPIENTE`),
			regexp.MustCompile(`(?i)DATI\s+RELATIVI\s+AL\s+PERCIPIENTE`),
			regexp.MustCompile(`(?i)DATI\s+ANAGRAFICI`),
		},
		SurnameLabels: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Cognome\s+o\s+Denominazione\s*[:\s]\s*([A-Za-zÀ-ÿ' ]+)`),
			regexp.MustCompile(`(?i)\bCognome\b\s*[:\s]\s*([A-Za-zÀ-ÿ' ]+)`),
		},
		NameLabels: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bNome\b\s*[:\s]\s*([A-Za-zÀ-ÿ' ]+)`),
		},
		YearAnchors: []*regexp.Regexp{
			regexp.MustCompile(`(?i)CERTIFICAZIONE\s+UNICA\s+(\d{4})`),
			regexp.MustCompile(`(?i)\bANNO\s+D.IMPOSTA\s*[:\s]\s*(\d{4})`),
			regexp.MustCompile(`(?i)\bANNO\s*[:\s]\s*(\d{4})`),
		},
	}
}

type Extractor struct {
	labels Labels
}

func New() *Extractor {
	return &Extractor{labels: DefaultLabels()}
}

func NewWithLabels(labels Labels) *Extractor {
	return &Extractor{labels: labels}
}

// Populate fills the identity fields of a segmented shell. Each field is
// extracted independently; a field that cannot be found stays nil and the
// record is still returned.
func (e *Extractor) Populate(shell internal.CURecord) internal.CURecord {
	record := shell
	text := record.RawText

	if cf := e.extractFiscalCode(text); cf != "" {
		record.FiscalCode = util.StringPtr(cf)
	}

	surname, given := e.extractNames(text)
	if surname == "" && given == "" {
		surname, given = e.namesNearFiscalCode(text, record.FiscalCode)
	}
	if surname != "" {
		record.Surname = util.StringPtr(surname)
	}
	if given != "" {
		record.GivenName = util.StringPtr(given)
	}

	if record.Year == nil {
		if year := e.extractYear(text); year != 0 {
			record.Year = util.IntPtr(year)
		}
	}

	return record
}

// extractFiscalCode prefers a code following a recipient-section anchor
// (the first code in a CU is routinely the employer's). Without an anchor
// hit, the first checksum-valid occurrence wins, then the first
// shape-valid one.
func (e *Extractor) extractFiscalCode(text string) string {
	for _, anchor := range e.labels.SectionAnchors {
		loc := anchor.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if codes := util.FindFiscalCodes(text[loc[1]:]); len(codes) > 0 {
			return codes[0]
		}
	}

	codes := util.FindFiscalCodes(text)
	for _, code := range codes {
		if util.FiscalCodeChecksumOK(code) {
			return code
		}
	}
	if len(codes) > 0 {
		return codes[0]
	}
	return ""
}

func (e *Extractor) extractNames(text string) (surname, given string) {
	search := text
	for _, anchor := range e.labels.SectionAnchors {
		if loc := anchor.FindStringIndex(text); loc != nil {
			search = text[loc[1]:]
			break
		}
	}

	surname = firstLabelValue(e.labels.SurnameLabels, search)
	given = firstLabelValue(e.labels.NameLabels, search)
	return surname, given
}

func firstLabelValue(labels []*regexp.Regexp, text string) string {
	for _, label := range labels {
		m := label.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := strings.SplitN(m[1], "\n", 2)[0]
		if normalized := util.NormalizeName(value); normalized != "" {
			return normalized
		}
	}
	return ""
}

var nameLine = regexp.MustCompile(`^[A-Za-zÀ-ÿ' ]{3,}$`)

// namesNearFiscalCode is the positional fallback: the lines right before
// the recipient's code usually carry "SURNAME GIVENNAME".
func (e *Extractor) namesNearFiscalCode(text string, fiscalCode *string) (surname, given string) {
	if fiscalCode == nil {
		return "", ""
	}
	pos := strings.Index(strings.ToUpper(text), *fiscalCode)
	if pos <= 0 {
		return "", ""
	}

	lines := strings.Split(text[:pos], "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	if len(kept) > 5 {
		kept = kept[len(kept)-5:]
	}

	for i := len(kept) - 1; i >= 0; i-- {
		if !nameLine.MatchString(kept[i]) {
			continue
		}
		parts := util.Tokenize(kept[i])
		if len(parts) >= 2 {
			return parts[0], strings.Join(parts[1:], " ")
		}
	}
	return "", ""
}

var yearToken = regexp.MustCompile(`\b(\d{4})\b`)

// extractYear tries the anchored labels first, then falls back to the
// latest plausible 4-digit token anywhere in the text.
func (e *Extractor) extractYear(text string) int {
	maxYear := time.Now().Year() + 1

	for _, anchor := range e.labels.YearAnchors {
		if m := anchor.FindStringSubmatch(text); m != nil {
			if year, err := strconv.Atoi(m[1]); err == nil && year >= 2000 && year <= maxYear {
				return year
			}
		}
	}

	best := 0
	for _, m := range yearToken.FindAllStringSubmatch(text, -1) {
		year, err := strconv.Atoi(m[1])
		if err != nil || year < 2000 || year > maxYear {
			continue
		}
		if year > best {
			best = year
		}
	}
	return best
}
