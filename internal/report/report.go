package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"cusplit/internal"
	"cusplit/internal/pdfio"
	"cusplit/internal/util"
)

// BuildReviewRows flattens the reconciliation into the table an operator
// reviews before sending: one row per certificate plus one row per roster
// entry that claimed no certificate.
func BuildReviewRows(outcomes []internal.MatchOutcome) []internal.ReviewRow {
	rows := make([]internal.ReviewRow, 0, len(outcomes))

	for _, o := range outcomes {
		row := internal.ReviewRow{Decision: string(o.Decision)}

		if o.Record != nil {
			r := o.Record
			row.RecordIndex = util.IntPtr(r.Index)
			row.Pages = util.StringPtr(fmt.Sprintf("%d-%d", r.StartPage+1, r.EndPage+1))
			row.Year = r.Year
			if r.Surname != nil {
				row.Surname = *r.Surname
			}
			if r.GivenName != nil {
				row.GivenName = *r.GivenName
			}
			if r.FiscalCode != nil {
				row.FiscalCode = *r.FiscalCode
			}
			row.Score = util.FloatPtr(o.Score)
			row.SuggestedFile = util.StringPtr(pdfio.CUFileName(*r))
		} else if o.Candidate != nil {
			row.Surname = o.Candidate.Surname
			row.GivenName = o.Candidate.GivenName
			row.FiscalCode = o.Candidate.FiscalCode
		}

		if o.Record != nil && o.Candidate != nil {
			row.MatchedSurname = util.StringPtr(o.Candidate.Surname)
			row.MatchedName = util.StringPtr(o.Candidate.GivenName)
			row.MatchedEmail = util.StringPtr(o.Candidate.Email)
		}

		if len(o.Candidates) > 1 {
			runnerUp := o.Candidates[1]
			row.RunnerUpName = util.StringPtr(runnerUp.Entry.FullName())
			row.RunnerUpScore = util.FloatPtr(runnerUp.Score)
		}

		rows = append(rows, row)
	}

	return rows
}

func ExportReviewXLSX(rows []internal.ReviewRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"record_no", "pages", "surname", "given_name", "fiscal_code", "year",
		"decision", "score", "matched_surname", "matched_name", "matched_email",
		"runner_up", "runner_up_score", "suggested_file",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, derefInt(row.RecordIndex))
		set(2, derefString(row.Pages))
		set(3, row.Surname)
		set(4, row.GivenName)
		set(5, row.FiscalCode)
		set(6, derefInt(row.Year))
		set(7, row.Decision)
		set(8, derefFloat(row.Score))
		set(9, derefString(row.MatchedSurname))
		set(10, derefString(row.MatchedName))
		set(11, derefString(row.MatchedEmail))
		set(12, derefString(row.RunnerUpName))
		set(13, derefFloat(row.RunnerUpScore))
		set(14, derefString(row.SuggestedFile))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func ExportDeliveriesXLSX(outcomes []internal.DeliveryOutcome, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{"record_no", "recipient", "filename", "status", "reason", "timestamp"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, o := range outcomes {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, o.RecordIndex)
		set(2, o.Recipient)
		set(3, o.Filename)
		set(4, string(o.Status))
		set(5, o.Reason)
		set(6, o.Timestamp)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
