package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is matched by every *ValidationError.
var ErrInvalid = errors.New("schema validation failed")

// Issue is one failing field.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError enumerates the fields that failed validation.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return ErrInvalid.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return ErrInvalid.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

// Fields returns the distinct failing field names in issue order.
func (e *ValidationError) Fields() []string {
	var out []string
	seen := map[string]struct{}{}
	for _, issue := range e.Issues {
		if _, ok := seen[issue.Field]; ok {
			continue
		}
		seen[issue.Field] = struct{}{}
		out = append(out, issue.Field)
	}
	return out
}
