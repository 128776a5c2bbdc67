package reliability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsRetryableSQLState(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"08006", true},
		{"40001", true},
		{"40P01", true},
		{"57P01", true},
		{"23505", false},
		{"23503", false},
		{"42P01", false},
	}
	for _, tc := range cases {
		got := IsRetryableSQLState(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableSQLState(%q) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsTransientStorageError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", fmt.Errorf("upsert: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"fk violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), false},
		{"sqlite busy", errors.New("SQLITE_BUSY: database is locked"), true},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsTransientStorageError(tc.err); got != tc.want {
			t.Fatalf("%s: IsTransientStorageError() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(2, base, capDur); got != 400*time.Millisecond {
		t.Fatalf("attempt 2 = %v, want %v", got, 400*time.Millisecond)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}
