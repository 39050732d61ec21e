package pdfio

import (
	"testing"

	"cusplit/internal"
	"cusplit/internal/util"
)

func TestCUFileName(t *testing.T) {
	full := internal.CURecord{
		Year:       util.IntPtr(2025),
		Surname:    util.StringPtr("ROSSI"),
		GivenName:  util.StringPtr("MARIO"),
		FiscalCode: util.StringPtr("rssmra80a01h501u"),
	}
	if got := CUFileName(full); got != "CU2025_Rossi_Mario_RSSMRA80A01H501U.pdf" {
		t.Fatalf("got %q", got)
	}

	noCode := internal.CURecord{Year: util.IntPtr(2025), Surname: util.StringPtr("ROSSI"), GivenName: util.StringPtr("MARIO")}
	if got := CUFileName(noCode); got != "CU2025_Rossi_Mario.pdf" {
		t.Fatalf("got %q", got)
	}

	compound := internal.CURecord{Surname: util.StringPtr("DE LUCA")}
	if got := CUFileName(compound); got != "CU_DeLuca.pdf" {
		t.Fatalf("got %q", got)
	}

	if got := CUFileName(internal.CURecord{}); got != "CU.pdf" {
		t.Fatalf("got %q", got)
	}
}
