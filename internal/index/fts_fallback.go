//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Without FTS5 the records table is searched directly.
func initFTS(_ *sql.DB) error { return nil }

func dropFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ *sql.Tx, _, _, _, _, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _, _ string) {}

// Search matches every query term as a case-insensitive substring of the
// title, body or field values. Title hits on the first term sort first.
func (db *DB) Search(q Query) ([]SearchResult, error) {
	terms := q.terms()
	if len(terms) == 0 {
		return []SearchResult{}, nil
	}

	var (
		where []string
		args  []any
	)
	for _, t := range terms {
		p := likePattern(t)
		where = append(where, `(title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR fields LIKE ? ESCAPE '\')`)
		args = append(args, p, p, p)
	}
	if q.Collection != "" {
		where = append(where, `collection = ?`)
		args = append(args, q.Collection)
	}
	args = append(args, likePattern(terms[0]), q.limit())

	rows, err := db.conn.Query(`
		SELECT collection, id, title, body
		FROM records
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY CASE WHEN title LIKE ? ESCAPE '\' THEN 0 ELSE 1 END, collection, id
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows, func(body string) string {
		return snippetAround(body, terms[0])
	})
}
