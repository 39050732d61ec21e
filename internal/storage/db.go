package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"cusplit/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source TEXT NOT NULL,
  messageId TEXT,
  hash TEXT NOT NULL,
  pages INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'stored',
  rawRef TEXT NOT NULL,
  receivedAt TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(hash)
);

CREATE TABLE IF NOT EXISTS records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  documentId INTEGER NOT NULL,
  idx INTEGER NOT NULL,
  startPage INTEGER NOT NULL,
  endPage INTEGER NOT NULL,
  year INTEGER,
  surname TEXT,
  givenName TEXT,
  fiscalCode TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(documentId, idx),
  FOREIGN KEY(documentId) REFERENCES documents(id)
);

CREATE TABLE IF NOT EXISTS matches (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  documentId INTEGER NOT NULL,
  recordIdx INTEGER,
  decision TEXT NOT NULL,
  score REAL NOT NULL DEFAULT 0,
  candSurname TEXT,
  candGivenName TEXT,
  candFiscalCode TEXT,
  candEmail TEXT,
  candidatesJson TEXT NOT NULL DEFAULT '[]',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(documentId) REFERENCES documents(id)
);

CREATE TABLE IF NOT EXISTS deliveries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  documentId INTEGER NOT NULL,
  recordIdx INTEGER NOT NULL,
  recipient TEXT NOT NULL,
  filename TEXT NOT NULL,
  status TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  sentAt TEXT NOT NULL DEFAULT '',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(documentId, recordIdx, recipient),
  FOREIGN KEY(documentId) REFERENCES documents(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertDocument(source, messageID, hash string, pages int, rawRef, receivedAt, status string) (internal.DocumentRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO documents (source, messageId, hash, pages, status, rawRef, receivedAt)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(hash) DO UPDATE SET
  source=excluded.source,
  messageId=excluded.messageId,
  pages=excluded.pages,
  rawRef=excluded.rawRef,
  receivedAt=excluded.receivedAt,
  updatedAt=CURRENT_TIMESTAMP
`, source, messageID, hash, pages, status, rawRef, receivedAt)
	if err != nil {
		return internal.DocumentRow{}, err
	}

	row, err := d.GetDocumentByHash(hash)
	if err != nil {
		return internal.DocumentRow{}, err
	}
	if row == nil {
		return internal.DocumentRow{}, errors.New("failed to upsert document")
	}
	return *row, nil
}

func (d *DB) GetDocumentByHash(hash string) (*internal.DocumentRow, error) {
	return d.getDocument(`SELECT id, source, COALESCE(messageId,''), hash, pages, status, rawRef, COALESCE(receivedAt,'') FROM documents WHERE hash = ?`, hash)
}

func (d *DB) GetDocumentByID(id int) (*internal.DocumentRow, error) {
	return d.getDocument(`SELECT id, source, COALESCE(messageId,''), hash, pages, status, rawRef, COALESCE(receivedAt,'') FROM documents WHERE id = ?`, id)
}

func (d *DB) getDocument(query string, arg any) (*internal.DocumentRow, error) {
	var row internal.DocumentRow
	err := d.conn.QueryRow(query, arg).Scan(
		&row.ID, &row.Source, &row.MessageID, &row.Hash, &row.Pages, &row.Status, &row.RawRef, &row.ReceivedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListDocumentsByStatus(status string, limit int) ([]internal.DocumentRow, error) {
	rows, err := d.conn.Query(`
SELECT id, source, COALESCE(messageId,''), hash, pages, status, rawRef, COALESCE(receivedAt,'')
FROM documents WHERE status = ? ORDER BY createdAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DocumentRow
	for rows.Next() {
		var row internal.DocumentRow
		if err := rows.Scan(&row.ID, &row.Source, &row.MessageID, &row.Hash, &row.Pages, &row.Status, &row.RawRef, &row.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateDocumentStatus(documentID int, status string) error {
	_, err := d.conn.Exec(`UPDATE documents SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, documentID)
	return err
}

// ReplaceRecords rewrites the segmentation result for a document, along
// with any stale matches derived from it.
func (d *DB) ReplaceRecords(documentID int, records []internal.CURecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM matches WHERE documentId = ?`, documentID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM records WHERE documentId = ?`, documentID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO records (documentId, idx, startPage, endPage, year, surname, givenName, fiscalCode)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(documentID, r.Index, r.StartPage, r.EndPage, r.Year, r.Surname, r.GivenName, r.FiscalCode); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListRecords(documentID int) ([]internal.CURecord, error) {
	rows, err := d.conn.Query(`
SELECT idx, startPage, endPage, year, surname, givenName, fiscalCode
FROM records WHERE documentId = ? ORDER BY idx ASC
`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.CURecord
	for rows.Next() {
		var r internal.CURecord
		if err := rows.Scan(&r.Index, &r.StartPage, &r.EndPage, &r.Year, &r.Surname, &r.GivenName, &r.FiscalCode); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceMatches rewrites the reconciliation result for a document.
// Orphan roster rows are stored with a NULL recordIdx.
func (d *DB) ReplaceMatches(documentID int, outcomes []internal.MatchOutcome) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM matches WHERE documentId = ?`, documentID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO matches (documentId, recordIdx, decision, score, candSurname, candGivenName, candFiscalCode, candEmail, candidatesJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range outcomes {
		var recordIdx *int
		if o.Record != nil {
			recordIdx = &o.Record.Index
		}
		var candSurname, candGiven, candFiscal, candEmail *string
		if o.Candidate != nil {
			candSurname = &o.Candidate.Surname
			candGiven = &o.Candidate.GivenName
			candFiscal = &o.Candidate.FiscalCode
			candEmail = &o.Candidate.Email
		}
		candidatesJSON, _ := json.Marshal(o.Candidates)
		if _, err := stmt.Exec(documentID, recordIdx, string(o.Decision), o.Score, candSurname, candGiven, candFiscal, candEmail, string(candidatesJSON)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListMatches rebuilds the reconciliation for a document, re-attaching
// stored records to their outcomes.
func (d *DB) ListMatches(documentID int) ([]internal.MatchOutcome, error) {
	records, err := d.ListRecords(documentID)
	if err != nil {
		return nil, err
	}
	byIdx := make(map[int]internal.CURecord, len(records))
	for _, r := range records {
		byIdx[r.Index] = r
	}

	rows, err := d.conn.Query(`
SELECT recordIdx, decision, score, candSurname, candGivenName, candFiscalCode, candEmail, candidatesJson
FROM matches WHERE documentId = ? ORDER BY recordIdx IS NULL, recordIdx ASC, id ASC
`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.MatchOutcome
	for rows.Next() {
		var o internal.MatchOutcome
		var recordIdx *int
		var decision string
		var candSurname, candGiven, candFiscal, candEmail *string
		var candidatesJSON string
		if err := rows.Scan(&recordIdx, &decision, &o.Score, &candSurname, &candGiven, &candFiscal, &candEmail, &candidatesJSON); err != nil {
			return nil, err
		}

		o.Decision = internal.MatchDecision(decision)
		if recordIdx != nil {
			if record, ok := byIdx[*recordIdx]; ok {
				o.Record = &record
			}
		}
		if candSurname != nil || candEmail != nil {
			o.Candidate = &internal.RosterEntry{
				Surname:    deref(candSurname),
				GivenName:  deref(candGiven),
				FiscalCode: deref(candFiscal),
				Email:      deref(candEmail),
			}
		}
		_ = json.Unmarshal([]byte(candidatesJSON), &o.Candidates)
		out = append(out, o)
	}

	return out, rows.Err()
}

// UpsertDelivery records one delivery outcome. A SENT row is terminal:
// later writes for the same pair can never downgrade it.
func (d *DB) UpsertDelivery(documentID int, o internal.DeliveryOutcome) error {
	_, err := d.conn.Exec(`
INSERT INTO deliveries (documentId, recordIdx, recipient, filename, status, reason, sentAt)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(documentId, recordIdx, recipient) DO UPDATE SET
  filename=excluded.filename,
  status=excluded.status,
  reason=excluded.reason,
  sentAt=excluded.sentAt
WHERE deliveries.status != 'SENT'
`, documentID, o.RecordIndex, o.Recipient, o.Filename, string(o.Status), o.Reason, o.Timestamp)
	return err
}

func (d *DB) ListDeliveries(documentID int) ([]internal.DeliveryOutcome, error) {
	rows, err := d.conn.Query(`
SELECT recordIdx, recipient, filename, status, reason, sentAt
FROM deliveries WHERE documentId = ? ORDER BY recordIdx ASC, recipient ASC
`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DeliveryOutcome
	for rows.Next() {
		var o internal.DeliveryOutcome
		var status string
		if err := rows.Scan(&o.RecordIndex, &o.Recipient, &o.Filename, &status, &o.Reason, &o.Timestamp); err != nil {
			return nil, err
		}
		o.Status = internal.DeliveryStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// SentKeys returns the already-delivered (record, recipient) pairs, used
// to keep re-runs idempotent.
func (d *DB) SentKeys(documentID int) (map[string]bool, error) {
	rows, err := d.conn.Query(`
SELECT recordIdx, recipient FROM deliveries WHERE documentId = ? AND status = 'SENT'
`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var idx int
		var recipient string
		if err := rows.Scan(&idx, &recipient); err != nil {
			return nil, err
		}
		out[fmt.Sprintf("%d|%s", idx, recipient)] = true
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
