package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestSeedAndList(t *testing.T) {
	ctx := context.Background()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()

	items, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("fresh catalog has %d items, want 0", len(items))
	}

	if err := c.Seed(ctx, DefaultItems); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	// Seeding twice replaces rather than duplicates.
	if err := c.Seed(ctx, DefaultItems); err != nil {
		t.Fatalf("Seed() second error = %v", err)
	}

	items, err = c.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != len(DefaultItems) {
		t.Fatalf("len(items) = %d, want %d", len(items), len(DefaultItems))
	}
	if items[0].ID != 1 || items[0].Description != DefaultItems[0].Description {
		t.Fatalf("unexpected first item: %+v", items[0])
	}

	it, err := c.Get(ctx, 2)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if it.ID != 2 {
		t.Fatalf("Get() id = %d, want 2", it.ID)
	}
	if _, err := c.Get(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(99) error = %v, want ErrNotFound", err)
	}
}
