package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/starford/codex/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
}

// Upsert inserts or replaces a record and its FTS entry within a transaction.
// The rendered body is stored as plain text.
func (db *DB) Upsert(rec models.Record) error {
	fields := make(map[string]any, len(rec.Fields))
	for _, f := range rec.Fields {
		fields[f.Name] = f.Value
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("index: encode fields: %w", err)
	}
	title := Title(rec)
	body := PlainText(rec.Body)

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO records (collection, id, path, title, checksum, body, fields, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			path       = excluded.path,
			title      = excluded.title,
			checksum   = excluded.checksum,
			body       = excluded.body,
			fields     = excluded.fields,
			updated_at = excluded.updated_at
	`, rec.Collection, rec.ID, rec.Path, title, rec.Checksum, body, string(fieldsJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: upsert record: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, rec.Collection, rec.ID, title, body, string(fieldsJSON)); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a record and its FTS entry.
func (db *DB) Delete(collection, id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, collection, id)
	if _, err := tx.Exec(`DELETE FROM records WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return fmt.Errorf("index: delete record: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a record, or empty string if not found.
func (db *DB) GetChecksum(collection, id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM records WHERE collection = ? AND id = ?`, collection, id).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// Checksums returns id → checksum for every indexed record of collection.
func (db *DB) Checksums(collection string) (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM records WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("index: checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// Count returns the number of indexed records of collection.
func (db *DB) Count(collection string) (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM records WHERE collection = ?`, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// Title picks the display title of a record: its string "title" field, or the id.
func Title(rec models.Record) string {
	if v, ok := rec.Value("title"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return rec.ID
}

// PlainText strips markup from rendered HTML, collapsing whitespace.
func PlainText(body string) string {
	z := html.NewTokenizer(strings.NewReader(body))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
			b.WriteByte(' ')
		}
	}
}
