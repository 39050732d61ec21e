package roster

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"cusplit/internal"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestLoadXLSX(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Cognome", "Nome", "Codice Fiscale", "Email"},
		{"Rossi", "Màrio", "rssmra80a01h501u", "mario.rossi@example.it"},
		{"Verdi", "Luigi", "VRDLGI75C10F205X", "luigi.verdi@example.it"},
	})

	entries, err := Load(blob, "dipendenti.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("len=%d", len(entries))
	}

	first := entries[0]
	if first.Surname != "ROSSI" || first.GivenName != "MARIO" {
		t.Fatalf("normalization: %+v", first)
	}
	if first.FiscalCode != "RSSMRA80A01H501U" {
		t.Fatalf("fiscal code not uppercased: %q", first.FiscalCode)
	}
	if first.Email != "mario.rossi@example.it" {
		t.Fatalf("email: %q", first.Email)
	}
}

func TestLoadCSVSemicolon(t *testing.T) {
	blob := []byte("\ufeffCognome;Nome;Codice Fiscale;Email\n" +
		"Rossi;Mario;RSSMRA80A01H501U;mario.rossi@example.it\n" +
		";;;\n")

	entries, err := Load(blob, "dipendenti.csv")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("len=%d (blank row should be skipped)", len(entries))
	}
	if entries[0].Surname != "ROSSI" {
		t.Fatalf("entry: %+v", entries[0])
	}
}

func TestLoadCSVComma(t *testing.T) {
	blob := []byte("cognome,nome,cf,email\nBianchi,Anna,BNCNNA85M41H501T,anna@example.it\n")

	entries, err := LoadCSV(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].FiscalCode != "BNCNNA85M41H501T" {
		t.Fatalf("entries: %+v", entries)
	}
}

func TestLoadCSVUnrecognizedHeader(t *testing.T) {
	_, err := LoadCSV([]byte("a;b;c\n1;2;3\n"))
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadHTML(t *testing.T) {
	blob := []byte(`<html><body>
<table><tr><td>niente</td></tr></table>
<table>
<tr><th>Cognome</th><th>Nome</th><th>Codice Fiscale</th><th>Email</th></tr>
<tr><td>Rossi</td><td>Mario</td><td>RSSMRA80A01H501U</td><td>mario@example.it</td></tr>
</table>
</body></html>`)

	entries, err := Load(blob, "dipendenti.html")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("len=%d", len(entries))
	}
	if entries[0].Surname != "ROSSI" || entries[0].Email != "mario@example.it" {
		t.Fatalf("entry: %+v", entries[0])
	}
}

func TestValidateDuplicates(t *testing.T) {
	entries := []internal.RosterEntry{
		{Surname: "ROSSI", FiscalCode: "RSSMRA80A01H501U"},
		{Surname: "ROSSI", FiscalCode: "RSSMRA80A01H501U"},
		{Surname: "VERDI", FiscalCode: "VRDLGI75C10F205X"},
	}

	err := Validate(entries)
	if err == nil {
		t.Fatalf("expected duplicate error")
	}
	if !strings.Contains(err.Error(), "RSSMRA80A01H501U") {
		t.Fatalf("error should name the duplicate: %v", err)
	}

	if err := Validate(entries[1:]); err != nil {
		t.Fatalf("unique roster rejected: %v", err)
	}
}
