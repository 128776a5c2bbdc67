// Package validate checks raw user input against a field definition and
// produces the normalized value that gets recorded.
package validate

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ent0n29/intake/internal/schema"
)

// Reasons reported in ValidationError.
const (
	ReasonEmpty        = "empty"
	ReasonTooShort     = "too_short"
	ReasonTooLong      = "too_long"
	ReasonNotInteger   = "not_integer"
	ReasonOutOfRange   = "out_of_range"
	ReasonInvalidPhone = "invalid_phone"
	ReasonInvalidEmail = "invalid_email"
	ReasonInvalidText  = "invalid_text"
)

const (
	defaultMinNumber   = 0
	defaultMaxNumber   = 150
	defaultMinPhone    = 10
	defaultMaxPhone    = 15
	defaultMaxText     = 255
	defaultMaxFreeText = 2000
	maxEmailLen        = 254
)

// ValidationError names the rejected field and the violated constraint.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

// Result is an accepted input. Skipped is set when an optional field was left
// blank; Value is nil in that case and nothing should be recorded.
type Result struct {
	Value   any
	Skipped bool
}

// Field validates raw against def. The returned error is nil or a *ValidationError.
func Field(def schema.FieldDefinition, raw string) (Result, error) {
	in := strings.TrimSpace(raw)
	if in == "" {
		if !def.Required {
			return Result{Skipped: true}, nil
		}
		return Result{}, reject(def, ReasonEmpty)
	}
	if !encodable(def.Kind, in) {
		return Result{}, reject(def, ReasonInvalidText)
	}

	var (
		v      any
		reason string
	)
	switch def.Kind {
	case schema.KindNumber:
		v, reason = number(def, in)
	case schema.KindPhone:
		v, reason = phone(def, in)
	case schema.KindEmail:
		v, reason = email(in)
	case schema.KindText:
		v, reason = text(def, in, defaultMaxText)
	case schema.KindFreeText:
		v, reason = text(def, in, defaultMaxFreeText)
	default:
		reason = "unsupported_kind"
	}
	if reason != "" {
		return Result{}, reject(def, reason)
	}
	return Result{Value: v}, nil
}

// encodable reports whether in survives a JSON and Postgres jsonb round trip
// unchanged: valid UTF-8 and no control runes. Free text may span lines.
func encodable(kind schema.Kind, in string) bool {
	if !utf8.ValidString(in) {
		return false
	}
	for _, r := range in {
		if !unicode.IsControl(r) {
			continue
		}
		if kind == schema.KindFreeText && (r == '\n' || r == '\r' || r == '\t') {
			continue
		}
		return false
	}
	return true
}

func reject(def schema.FieldDefinition, reason string) *ValidationError {
	return &ValidationError{Field: def.Name, Reason: reason}
}

func number(def schema.FieldDefinition, in string) (any, string) {
	n, err := strconv.ParseInt(in, 10, 64)
	if err != nil {
		return nil, ReasonNotInteger
	}
	lo, hi := int64(defaultMinNumber), int64(defaultMaxNumber)
	if def.Min != nil {
		lo = int64(*def.Min)
	}
	if def.Max != nil {
		hi = int64(*def.Max)
	}
	if n < lo || n > hi {
		return nil, ReasonOutOfRange
	}
	return n, ""
}

func phone(def schema.FieldDefinition, in string) (any, string) {
	var b strings.Builder
	digits := 0
	for i, r := range in {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return nil, ReasonInvalidPhone
		}
	}
	lo, hi := defaultMinPhone, defaultMaxPhone
	if def.MinLen > 0 {
		lo = def.MinLen
	}
	if def.MaxLen > 0 {
		hi = def.MaxLen
	}
	if digits < lo || digits > hi {
		return nil, ReasonInvalidPhone
	}
	return b.String(), ""
}

func email(in string) (any, string) {
	if len(in) > maxEmailLen || strings.Count(in, "@") != 1 {
		return nil, ReasonInvalidEmail
	}
	local, domain, _ := strings.Cut(in, "@")
	if local == "" || domain == "" {
		return nil, ReasonInvalidEmail
	}
	if strings.IndexFunc(in, unicode.IsSpace) >= 0 {
		return nil, ReasonInvalidEmail
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return nil, ReasonInvalidEmail
	}
	return local + "@" + strings.ToLower(domain), ""
}

func text(def schema.FieldDefinition, in string, fallbackMax int) (any, string) {
	n := utf8.RuneCountInString(in)
	if def.MinLen > 0 && n < def.MinLen {
		return nil, ReasonTooShort
	}
	hi := fallbackMax
	if def.MaxLen > 0 {
		hi = def.MaxLen
	}
	if n > hi {
		return nil, ReasonTooLong
	}
	return in, ""
}
