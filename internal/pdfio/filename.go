package pdfio

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cusplit/internal"
)

var titleCaser = cases.Title(language.Und)

// CUFileName builds the per-certificate file name. Absent fields are
// omitted rather than left blank: CU2025_Rossi_Mario_RSSMRA80A01H501U.pdf,
// CU2025_Rossi_Mario.pdf, CU_Rossi.pdf and so on.
func CUFileName(r internal.CURecord) string {
	parts := []string{"CU"}
	if r.Year != nil {
		parts[0] = fmt.Sprintf("CU%d", *r.Year)
	}
	if r.Surname != nil && *r.Surname != "" {
		parts = append(parts, fileToken(*r.Surname))
	}
	if r.GivenName != nil && *r.GivenName != "" {
		parts = append(parts, fileToken(*r.GivenName))
	}
	if r.FiscalCode != nil && *r.FiscalCode != "" {
		parts = append(parts, strings.ToUpper(*r.FiscalCode))
	}
	return strings.Join(parts, "_") + ".pdf"
}

func fileToken(name string) string {
	return strings.ReplaceAll(titleCaser.String(strings.ToLower(name)), " ", "")
}
