// Package policy masks personal data before it reaches logs.
package policy

import (
	"regexp"

	"github.com/ent0n29/intake/internal/schema"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-(). ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

const (
	redactedEmail = "[REDACTED_EMAIL]"
	redactedPhone = "[REDACTED_PHONE]"
	redactedCard  = "[REDACTED_CARD]"
	redactedValue = "[REDACTED]"
)

// RedactPII masks email addresses, card numbers and phone numbers found in
// free text.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, redactedEmail)
	changed = changed || next != out
	out = next

	// Cards first so long digit runs are not reported as phones.
	next = cardPattern.ReplaceAllString(out, redactedCard)
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, redactedPhone)
	changed = changed || next != out
	out = next

	return out, changed
}

// RedactInput masks a raw answer for logging. Rejected phone and email
// answers are often typos of the real value, so they are hidden entirely.
func RedactInput(kind schema.Kind, raw string) string {
	switch kind {
	case schema.KindPhone, schema.KindEmail:
		if raw == "" {
			return raw
		}
		return redactedValue
	case schema.KindNumber:
		return raw
	default:
		out, _ := RedactPII(raw)
		return out
	}
}
