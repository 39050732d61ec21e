package intake

import (
	"fmt"

	"cusplit/internal/extract"
	"cusplit/internal/pdfio"
	"cusplit/internal/segment"
	"cusplit/internal/storage"
)

// ProcessService segments stored documents into certificate records and
// persists the result. A document moves from "stored" to "split", or to
// "empty" when it carries no certificate markers.
type ProcessService struct {
	db *storage.DB
}

type ProcessResult struct {
	Documents int
	Records   int
	Warnings  []string
}

func NewProcessService(db *storage.DB) *ProcessService {
	return &ProcessService{db: db}
}

func (s *ProcessService) ProcessStored(batch int) (ProcessResult, error) {
	docs, err := s.db.ListDocumentsByStatus("stored", batch)
	if err != nil {
		return ProcessResult{}, err
	}

	result := ProcessResult{}
	extractor := extract.New()

	for _, doc := range docs {
		document, err := pdfio.Open(doc.RawRef)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("document %d: %v", doc.ID, err))
			if err := s.db.UpdateDocumentStatus(doc.ID, "error"); err != nil {
				return result, err
			}
			continue
		}

		split := segment.Split(document.Pages())
		result.Warnings = append(result.Warnings, split.Warnings...)

		for i := range split.Records {
			split.Records[i] = extractor.Populate(split.Records[i])
		}

		if err := s.db.ReplaceRecords(doc.ID, split.Records); err != nil {
			return result, err
		}

		status := "split"
		if len(split.Records) == 0 {
			status = "empty"
		}
		if err := s.db.UpdateDocumentStatus(doc.ID, status); err != nil {
			return result, err
		}

		result.Documents++
		result.Records += len(split.Records)
	}

	return result, nil
}
