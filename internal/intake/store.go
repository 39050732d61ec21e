package intake

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"

	"cusplit/internal"
	"cusplit/internal/storage"
)

// DocumentStore pulls PDF attachments out of fetched messages and files
// them into the raw document directory, one row per attachment.
type DocumentStore struct {
	db     *storage.DB
	rawDir string
}

func NewDocumentStore(db *storage.DB, rawDir string) *DocumentStore {
	return &DocumentStore{db: db, rawDir: rawDir}
}

// Store saves every PDF attachment of msg and returns the stored rows.
// Messages without PDF attachments are skipped silently.
func (s *DocumentStore) Store(msg internal.FetchedMailMessage) ([]internal.DocumentRow, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(msg.Raw))
	if err != nil {
		return nil, fmt.Errorf("parse message %s: %w", msg.MessageID, err)
	}

	if err := os.MkdirAll(s.rawDir, 0o755); err != nil {
		return nil, err
	}

	var rows []internal.DocumentRow
	for _, part := range envelope.Attachments {
		if !isPDF(part) {
			continue
		}

		hashBytes := sha256.Sum256(part.Content)
		hash := hex.EncodeToString(hashBytes[:])

		rawPath := filepath.Join(s.rawDir, hash+".pdf")
		if _, err := os.Stat(rawPath); os.IsNotExist(err) {
			if err := os.WriteFile(rawPath, part.Content, 0o644); err != nil {
				return nil, err
			}
		}

		row, err := s.db.UpsertDocument(msg.Provider, msg.MessageID, hash, 0, rawPath, msg.ReceivedAt, "stored")
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func isPDF(part *enmime.Part) bool {
	if strings.EqualFold(part.ContentType, "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(part.FileName), ".pdf")
}
