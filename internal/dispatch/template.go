package dispatch

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cusplit/internal"
)

var nameCaser = cases.Title(language.Italian)

// Render substitutes the {nome}, {cognome} and {anno} placeholders with
// the record's fields. Names are title-cased for the message body; an
// absent year renders as the empty string.
func Render(template string, record internal.CURecord) string {
	nome, cognome, anno := "", "", ""
	if record.GivenName != nil {
		nome = nameCaser.String(strings.ToLower(*record.GivenName))
	}
	if record.Surname != nil {
		cognome = nameCaser.String(strings.ToLower(*record.Surname))
	}
	if record.Year != nil {
		anno = strconv.Itoa(*record.Year)
	}

	r := strings.NewReplacer("{nome}", nome, "{cognome}", cognome, "{anno}", anno)
	return r.Replace(template)
}
