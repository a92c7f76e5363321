package index

import (
	"database/sql"
	"strings"
	"unicode/utf8"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	snippetRunes       = 160
)

// Query selects indexed records by free text. Every term of Text must
// match; Collection, when set, restricts hits to one collection.
type Query struct {
	Text       string
	Collection string
	Limit      int
}

func (q Query) terms() []string {
	return strings.Fields(strings.ToLower(q.Text))
}

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return defaultSearchLimit
	case q.Limit > maxSearchLimit:
		return maxSearchLimit
	default:
		return q.Limit
	}
}

// likePattern escapes the LIKE wildcards in term and wraps it for a
// substring match. Callers pass ESCAPE '\'.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// matchExpr quotes each term as an FTS5 string so user input never parses
// as query syntax. Adjacent strings are ANDed by FTS5.
func matchExpr(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// snippetAround cuts a window of body centred on the first occurrence of
// term. Without a hit it returns the leading window.
func snippetAround(body, term string) string {
	runes := []rune(body)
	if len(runes) <= snippetRunes {
		return body
	}
	start := 0
	if i := strings.Index(strings.ToLower(body), term); i >= 0 && term != "" {
		start = utf8.RuneCountInString(body[:min(i, len(body))]) - snippetRunes/4
	}
	start = max(0, min(start, len(runes)-snippetRunes))
	out := string(runes[start : start+snippetRunes])
	if start > 0 {
		out = "..." + out
	}
	if start+snippetRunes < len(runes) {
		out += "..."
	}
	return out
}

func scanResults(rows *sql.Rows, snippet func(string) string) ([]SearchResult, error) {
	defer rows.Close()
	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Collection, &r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		if snippet != nil {
			r.Snippet = snippet(r.Snippet)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
