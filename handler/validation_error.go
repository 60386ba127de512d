package handler

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError maps a field name to its failure messages. It renders as a
// 422 with per-field details in the JSON error envelope.
type ValidationError map[string][]string

// NewValidationError builds an empty ValidationError ready for Add calls.
func NewValidationError() ValidationError {
	return make(ValidationError)
}

// Add appends a message for a field.
func (e ValidationError) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Error summarizes the failures, one field per clause, in field order so the
// message is stable across runs.
func (e ValidationError) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}

	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		if msgs := e[field]; len(msgs) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", field, msgs[0]))
		}
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
