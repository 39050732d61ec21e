package pdfio

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"

	pdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"cusplit/internal"
)

// Document is the massive CU PDF. Page text is extracted once at open
// time; a page whose text cannot be decoded contributes an empty string,
// which is not an error.
type Document struct {
	blob  []byte
	pages []internal.PageText
}

func Open(path string) (*Document, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromBytes(blob)
}

func FromBytes(blob []byte) (*Document, error) {
	r, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	pages := make([]internal.PageText, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		text := ""
		p := r.Page(i)
		if !p.V.IsNull() {
			if extracted, err := p.GetPlainText(nil); err == nil {
				text = extracted
			}
		}
		pages = append(pages, internal.PageText{Index: i - 1, Text: text})
	}

	return &Document{blob: blob, pages: pages}, nil
}

func (d *Document) PageCount() int {
	return len(d.pages)
}

func (d *Document) Pages() []internal.PageText {
	return d.pages
}

func (d *Document) Bytes() []byte {
	return d.blob
}

// Slice returns the PDF bytes of pages [start, end] (0-based, inclusive).
func (d *Document) Slice(start, end int) ([]byte, error) {
	if start < 0 || end < start || end >= len(d.pages) {
		return nil, fmt.Errorf("page range %d-%d out of bounds (document has %d pages)", start, end, len(d.pages))
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var out bytes.Buffer
	selected := []string{fmt.Sprintf("%d-%d", start+1, end+1)}
	if err := api.Trim(bytes.NewReader(d.blob), &out, selected, conf); err != nil {
		return nil, fmt.Errorf("trim pages %d-%d: %w", start+1, end+1, err)
	}
	return out.Bytes(), nil
}

// ExportZip bundles one sliced PDF per record, named per the
// CU<year>_<Surname>_<GivenName>_<CF>.pdf convention.
func (d *Document) ExportZip(records []internal.CURecord) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, record := range records {
		blob, err := d.Slice(record.StartPage, record.EndPage)
		if err != nil {
			return nil, err
		}
		w, err := zw.Create(CUFileName(record))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(blob); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
