package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestParseClientMessageText(t *testing.T) {
	raw := []byte(`{"type":"client_message","seq":3,"text":"Alex Doe"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	text, ok := msg.(ClientMessage)
	if !ok {
		t.Fatalf("message type = %T, want ClientMessage", msg)
	}
	if text.Seq != 3 || text.Text != "Alex Doe" {
		t.Fatalf("unexpected client message: %+v", text)
	}
}

func TestParseClientMessageAllowsBlankText(t *testing.T) {
	// Blank text skips optional fields.
	msg, err := ParseClientMessage([]byte(`{"type":"client_message","text":""}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if _, ok := msg.(ClientMessage); !ok {
		t.Fatalf("message type = %T, want ClientMessage", msg)
	}
}

func TestParseClientMessageRejectsLongText(t *testing.T) {
	raw := []byte(`{"type":"client_message","text":"` + strings.Repeat("a", maxClientTextLen+1) + `"}`)
	if _, err := ParseClientMessage(raw); err == nil {
		t.Fatalf("expected error for oversized text")
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","seq":9,"action":" save "}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	control, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("message type = %T, want ClientControl", msg)
	}
	if control.Action != "save" || control.Seq != 9 {
		t.Fatalf("unexpected client control: %+v", control)
	}
}

func TestParseClientMessageRejectsEmptyControl(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"client_control","action":"  "}`)); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestParseClientMessageRejectsGarbage(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`not json`)); err == nil {
		t.Fatalf("expected envelope error")
	}
}

func BenchmarkParseClientMessageText(b *testing.B) {
	raw := []byte(`{"type":"client_message","seq":7,"text":"Four years of backend work in Go and Postgres"}`)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg, err := ParseClientMessage(raw)
		if err != nil {
			b.Fatalf("ParseClientMessage() error = %v", err)
		}
		if _, ok := msg.(ClientMessage); !ok {
			b.Fatalf("message type = %T, want ClientMessage", msg)
		}
	}
}
