// Package validation collects field violations into one ValidationError.
package validation

import (
	"net/mail"
	"sort"
	"strings"

	"github.com/diewo77/go-pharmacy/internal/apperr"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Err returns nil when there are no violations, otherwise a ValidationError
// naming the first field (alphabetically) and carrying the full map.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	details := make(map[string]string, len(v))
	for k, val := range v {
		details[k] = val
	}
	return &apperr.ValidationError{Field: fields[0], Reason: v[fields[0]], Details: details}
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = apperr.ReasonRequired
	}
}

func Email(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		v[field] = "invalid_email"
	}
}
