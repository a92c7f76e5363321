package collection

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/codex/internal/models"
)

// ErrIncomparable is returned by Compare for values of different or
// unsupported types.
var ErrIncomparable = errors.New("values are not comparable")

// Compare is the three-way comparison used by list: strings compare
// lexicographically, numbers numerically. Anything else, including a pair of
// mixed types or a nil value, is an error.
func Compare(a, b any) (int, error) {
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
		}
		return strings.Compare(sa, sb), nil
	}
	na, okA := number(a)
	nb, okB := number(b)
	if !okA || !okB {
		return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
	}
	return cmp.Compare(na, nb), nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// SortRecords orders records by s. Without a sort specification records are
// ordered by id. A record missing the sort field, or a pair of incomparable
// values, fails with a SortError and leaves the order unspecified.
func SortRecords(collection string, records []models.Record, s *Sort) error {
	if s == nil {
		slices.SortStableFunc(records, func(a, b models.Record) int {
			return strings.Compare(a.ID, b.ID)
		})
		return nil
	}
	for _, r := range records {
		if v, ok := r.Value(s.Field); !ok || v == nil {
			return &SortError{Collection: collection, Field: s.Field, Reason: fmt.Sprintf("record %q has no value", r.ID)}
		}
	}

	var firstErr error
	slices.SortStableFunc(records, func(a, b models.Record) int {
		if firstErr != nil {
			return 0
		}
		x, _ := a.Value(s.Field)
		y, _ := b.Value(s.Field)
		c, err := Compare(x, y)
		if err != nil {
			firstErr = &SortError{
				Collection: collection,
				Field:      s.Field,
				Reason:     fmt.Sprintf("records %q and %q: %v", a.ID, b.ID, err),
			}
			return 0
		}
		if s.Order == Descending {
			return -c
		}
		return c
	})
	return firstErr
}
