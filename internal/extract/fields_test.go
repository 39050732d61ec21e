package extract

import (
	"testing"

	"cusplit/internal"
)

func shell(text string) internal.CURecord {
	return internal.CURecord{Index: 1, RawText: text}
}

func TestPopulateAnchoredSection(t *testing.T) {
	text := "CERTIFICAZIONE UNICA 2025\n" +
		"DATI RELATIVI AL DATORE DI LAVORO\n" +
		"Codice fiscale CMESPA00A01H501X\n" +
		"DATI RELATIVI AL DIPENDENTE\n" +
		"Cognome o Denominazione ROSSI\n" +
		"Nome MARIO\n" +
		"Codice fiscale RSSMRA80A01H501U\n"

	r := New().Populate(shell(text))
	if r.FiscalCode == nil || *r.FiscalCode != "RSSMRA80A01H501U" {
		t.Fatalf("fiscal code: %v", r.FiscalCode)
	}
	if r.Surname == nil || *r.Surname != "ROSSI" {
		t.Fatalf("surname: %v", r.Surname)
	}
	if r.GivenName == nil || *r.GivenName != "MARIO" {
		t.Fatalf("given name: %v", r.GivenName)
	}
	if r.Year == nil || *r.Year != 2025 {
		t.Fatalf("year: %v", r.Year)
	}
}

func TestPopulatePrefersChecksumValidCode(t *testing.T) {
	// No section anchor: the first code has a wrong control letter, the
	// second verifies.
	text := "azienda RSSMRA80A01H501Z\npoi RSSMRA80A01H501U\n"

	r := New().Populate(shell(text))
	if r.FiscalCode == nil || *r.FiscalCode != "RSSMRA80A01H501U" {
		t.Fatalf("fiscal code: %v", r.FiscalCode)
	}
}

func TestPopulateFallsBackToFirstShapedCode(t *testing.T) {
	// Only one code, checksum wrong. Still better than nothing.
	text := "documento di RSSMRA80A01H501Z\n"

	r := New().Populate(shell(text))
	if r.FiscalCode == nil || *r.FiscalCode != "RSSMRA80A01H501Z" {
		t.Fatalf("fiscal code: %v", r.FiscalCode)
	}
}

func TestPopulateNamesNearFiscalCode(t *testing.T) {
	text := "CERTIFICAZIONE UNICA 2025\n" +
		"ROSSI MARIO\n" +
		"RSSMRA80A01H501U\n"

	r := New().Populate(shell(text))
	if r.Surname == nil || *r.Surname != "ROSSI" {
		t.Fatalf("surname: %v", r.Surname)
	}
	if r.GivenName == nil || *r.GivenName != "MARIO" {
		t.Fatalf("given name: %v", r.GivenName)
	}
}

func TestPopulateRejectsMalformedCodes(t *testing.T) {
	// 15 chars, and digits where letters belong: neither may surface.
	r := New().Populate(shell("RSSMRA80A01H501\nRSS1RA80A01H501UX\n"))
	if r.FiscalCode != nil {
		t.Fatalf("fiscal code: %v", *r.FiscalCode)
	}
}

func TestPopulateMissingFieldsStayNil(t *testing.T) {
	r := New().Populate(shell("pagina senza dati utili\n"))
	if r.FiscalCode != nil || r.Surname != nil || r.GivenName != nil {
		t.Fatalf("expected nil fields: %+v", r)
	}
}

func TestExtractYearAnchors(t *testing.T) {
	r := New().Populate(shell("ANNO D'IMPOSTA 2024\nimporto 1234\n"))
	if r.Year == nil || *r.Year != 2024 {
		t.Fatalf("year: %v", r.Year)
	}
}
