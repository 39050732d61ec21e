package util

import "testing"

func TestIsFiscalCodeShaped(t *testing.T) {
	if !IsFiscalCodeShaped("RSSMRA80A01H501U") {
		t.Fatalf("valid code rejected")
	}
	if !IsFiscalCodeShaped(" rssmra80a01h501z ") {
		t.Fatalf("case and whitespace should not matter")
	}
	if IsFiscalCodeShaped("RSSMRA80A01H501") {
		t.Fatalf("15 chars accepted")
	}
	if IsFiscalCodeShaped("12345678901") {
		t.Fatalf("partita iva accepted")
	}
}

func TestFiscalCodeChecksum(t *testing.T) {
	if !FiscalCodeChecksumOK("RSSMRA80A01H501U") {
		t.Fatalf("correct control letter rejected")
	}
	if FiscalCodeChecksumOK("RSSMRA80A01H501Z") {
		t.Fatalf("wrong control letter accepted")
	}
	if FiscalCodeChecksumOK("not a code") {
		t.Fatalf("garbage accepted")
	}
}

func TestFindFiscalCodes(t *testing.T) {
	text := "datore 80012345678 dipendente rssmra80a01h501u poi VRDLGI75C10F205X"
	codes := FindFiscalCodes(text)
	if len(codes) != 2 {
		t.Fatalf("len=%d codes=%v", len(codes), codes)
	}
	if codes[0] != "RSSMRA80A01H501U" || codes[1] != "VRDLGI75C10F205X" {
		t.Fatalf("codes=%v", codes)
	}
}
