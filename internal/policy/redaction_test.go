package policy

import (
	"strings"
	"testing"

	"github.com/ent0n29/intake/internal/schema"
)

func TestRedactPII(t *testing.T) {
	input := "Reach me at maria@example.com or 8 (912) 345-67-89, card 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{redactedEmail, redactedPhone, redactedCard} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
	if strings.Contains(out, "maria@") || strings.Contains(out, "345-67") {
		t.Fatalf("output leaks input: %q", out)
	}
}

func TestRedactPIILeavesPlainText(t *testing.T) {
	out, changed := RedactPII("Four years of backend work")
	if changed || out != "Four years of backend work" {
		t.Fatalf("RedactPII() = %q, %v; want unchanged", out, changed)
	}
}

func TestRedactInput(t *testing.T) {
	cases := []struct {
		kind schema.Kind
		raw  string
		want string
	}{
		{schema.KindEmail, "maria@@example", redactedValue},
		{schema.KindPhone, "12-ab", redactedValue},
		{schema.KindPhone, "", ""},
		{schema.KindNumber, "-5", "-5"},
		{schema.KindText, "mail maria@example.com", "mail " + redactedEmail},
	}
	for _, tc := range cases {
		if got := RedactInput(tc.kind, tc.raw); got != tc.want {
			t.Fatalf("RedactInput(%s, %q) = %q, want %q", tc.kind, tc.raw, got, tc.want)
		}
	}
}
