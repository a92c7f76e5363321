//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

const ftsSchemaSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
	collection UNINDEXED,
	id UNINDEXED,
	title,
	body,
	fields,
	tokenize = 'unicode61 remove_diacritics 2'
);
`

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(ftsSchemaSQL)
	return err
}

func dropFTS(conn *sql.DB) error {
	_, err := conn.Exec(`DROP TABLE IF EXISTS records_fts`)
	return err
}

func ftsUpsert(tx *sql.Tx, collection, id, title, body, fields string) error {
	ftsDelete(tx, collection, id)
	if _, err := tx.Exec(
		`INSERT INTO records_fts (collection, id, title, body, fields) VALUES (?, ?, ?, ?, ?)`,
		collection, id, title, body, fields,
	); err != nil {
		return fmt.Errorf("index: fts insert %s/%s: %w", collection, id, err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, collection, id string) {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE collection = ? AND id = ?`, collection, id)
}

// Search runs an FTS5 match over title, body and fields, weighting title
// hits tenfold. The snippet comes from the body column.
func (db *DB) Search(q Query) ([]SearchResult, error) {
	terms := q.terms()
	if len(terms) == 0 {
		return []SearchResult{}, nil
	}
	rows, err := db.conn.Query(`
		SELECT collection, id, title,
		       snippet(records_fts, 3, '', '', '...', 32)
		FROM records_fts
		WHERE records_fts MATCH ?
		  AND (? = '' OR collection = ?)
		ORDER BY bm25(records_fts, 0, 0, 10.0, 1.0, 2.0), collection, id
		LIMIT ?
	`, matchExpr(terms), q.Collection, q.Collection, q.limit())
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows, nil)
}
